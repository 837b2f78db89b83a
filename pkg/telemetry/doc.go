// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package telemetry installs the OpenTelemetry providers for bip39-keygen.
//
// Both exporters default to "none": the global providers stay the OTel
// no-ops and instrumented packages (pkg/transaction) record nothing.
//
// # Trace Exporters
//
//   - stdout: pretty-printed spans on the configured writer (stderr in the CLI)
//   - otlp: OTLP/gRPC to OTLPEndpoint
//
// # Metric Exporters
//
//   - stdout: pretty-printed metrics on the configured writer, flushed at shutdown
//   - prometheus: collected on a private registry and written to MetricsFile
//     in the text exposition format at shutdown, for the node_exporter
//     textfile collector. A one-shot CLI has no process to scrape.
//
// # Usage
//
//	shutdown, err := telemetry.Init(ctx, cfg)
//	if err != nil {
//	    return fmt.Errorf("init telemetry: %w", err)
//	}
//	defer shutdown(context.Background())
//
// # Thread Safety
//
// Call Init once at startup. The shutdown function must be called exactly
// once.
package telemetry
