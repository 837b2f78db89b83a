// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package telemetry

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, "bip39-keygen", cfg.ServiceName)
	assert.Equal(t, ExporterNone, cfg.TraceExporter)
	assert.Equal(t, ExporterNone, cfg.MetricExporter)
	assert.Equal(t, "localhost:4317", cfg.OTLPEndpoint)
	assert.False(t, cfg.Enabled())
}

func TestInit_NilContext(t *testing.T) {
	var ctx context.Context
	_, err := Init(ctx, DefaultConfig())
	assert.ErrorIs(t, err, ErrNilContext)
}

func TestInit_NoopExporters(t *testing.T) {
	shutdown, err := Init(context.Background(), DefaultConfig())
	require.NoError(t, err)
	require.NotNil(t, shutdown)
	assert.NoError(t, shutdown(context.Background()))
}

func TestInit_StdoutTraces(t *testing.T) {
	var buf bytes.Buffer
	cfg := DefaultConfig()
	cfg.TraceExporter = ExporterStdout
	cfg.Writer = &buf

	shutdown, err := Init(context.Background(), cfg)
	require.NoError(t, err)

	_, span := otel.Tracer("telemetry-test").Start(context.Background(), "test-span")
	span.End()

	require.NoError(t, shutdown(context.Background()))
	assert.Contains(t, buf.String(), "test-span")
}

func TestInit_StdoutMetrics(t *testing.T) {
	var buf bytes.Buffer
	cfg := DefaultConfig()
	cfg.MetricExporter = ExporterStdout
	cfg.Writer = &buf

	shutdown, err := Init(context.Background(), cfg)
	require.NoError(t, err)

	counter, err := otel.Meter("telemetry-test").Int64Counter("stdout_test_counter")
	require.NoError(t, err)
	counter.Add(context.Background(), 3)

	require.NoError(t, shutdown(context.Background()))
	assert.Contains(t, buf.String(), "stdout_test_counter")
}

func TestInit_PrometheusTextfile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bip39_keygen.prom")
	cfg := DefaultConfig()
	cfg.MetricExporter = ExporterPrometheus
	cfg.MetricsFile = path

	shutdown, err := Init(context.Background(), cfg)
	require.NoError(t, err)

	counter, err := otel.Meter("telemetry-test").Int64Counter("textfile_test_counter")
	require.NoError(t, err)
	counter.Add(context.Background(), 1)

	require.NoError(t, shutdown(context.Background()))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "textfile_test_counter")
}

func TestInit_PrometheusNeedsFile(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MetricExporter = ExporterPrometheus

	_, err := Init(context.Background(), cfg)
	assert.ErrorIs(t, err, ErrMissingMetricsFile)
}

func TestInit_OTLPTraces(t *testing.T) {
	cfg := DefaultConfig()
	cfg.TraceExporter = ExporterOTLP
	cfg.OTLPEndpoint = "127.0.0.1:1"

	// The gRPC client connects lazily, so Init succeeds without a collector.
	shutdown, err := Init(context.Background(), cfg)
	require.NoError(t, err)
	assert.NoError(t, shutdown(context.Background()))
}

func TestInit_UnknownExporter(t *testing.T) {
	tests := []struct {
		name string
		cfg  func(*Config)
	}{
		{"trace", func(c *Config) { c.TraceExporter = "jaeger-thrift" }},
		{"metric", func(c *Config) { c.MetricExporter = "statsd" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.cfg(&cfg)
			_, err := Init(context.Background(), cfg)
			assert.ErrorIs(t, err, ErrUnknownExporter)
		})
	}
}

func TestConfig_Enabled(t *testing.T) {
	cfg := DefaultConfig()
	cfg.TraceExporter = ""
	cfg.MetricExporter = ""
	assert.False(t, cfg.Enabled())

	cfg.MetricExporter = ExporterStdout
	assert.True(t, cfg.Enabled())
}
