// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package transaction provides a reversible log of filesystem mutations.
//
// A Transaction records each directory creation, file creation, file
// removal and directory removal it performs. Removed entries are renamed
// into a private backup store instead of being deleted, so every record has
// an exact inverse. RollbackTo replays inverses newest first down to any
// earlier version; Close rolls back everything unless Commit was called,
// and always deletes the backup store.
//
// The log lives in memory only. Nothing survives a crash of the process,
// and nothing coordinates two transactions touching the same paths.
//
// Basic usage:
//
//	tx, err := transaction.Begin(ctx, transaction.WithLogger(logger))
//	if err != nil {
//	    return err
//	}
//	defer tx.Close()
//
//	if err := tx.WriteFile(pubPath, pub, 0o644); err != nil {
//	    return err
//	}
//	if err := tx.WriteFile(privPath, priv, 0o600); err != nil {
//	    return err
//	}
//	tx.Commit()
//
// # Observability
//
// Metrics are exported through the global OpenTelemetry MeterProvider:
//
//	transaction_begin_total{status}
//	transaction_commit_total
//	transaction_rollback_total{reason}
//	transaction_operations_total{kind,status}
//	transaction_reverted_operations_total{kind}
//	transaction_rollback_failures_total
//	transaction_active
//	transaction_duration_seconds{outcome}
//
// Each transaction also gets one span named "transaction" with an event per
// logged operation, commit and rollback.
package transaction
