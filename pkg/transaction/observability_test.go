// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package transaction

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.opentelemetry.io/otel/trace"
)

// recordingTracer returns an enabled Tracer backed by an in-memory recorder.
func recordingTracer(t *testing.T) (*Tracer, *tracetest.SpanRecorder) {
	t.Helper()
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })

	tracer := NewTracer(testLogger(), true)
	tracer.tracer = tp.Tracer(instrumentationName)
	return tracer, recorder
}

func TestNewTracer(t *testing.T) {
	t.Run("creates tracer with logger", func(t *testing.T) {
		logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
		tracer := NewTracer(logger, true)

		require.NotNil(t, tracer)
		assert.Same(t, logger, tracer.logger)
		assert.True(t, tracer.enabled)
	})

	t.Run("creates tracer with default logger", func(t *testing.T) {
		tracer := NewTracer(nil, false)

		require.NotNil(t, tracer)
		assert.NotNil(t, tracer.logger)
		assert.False(t, tracer.enabled)
	})
}

func TestTracer_StartTransaction(t *testing.T) {
	ctx := context.Background()

	t.Run("returns noop span when disabled", func(t *testing.T) {
		tracer := NewTracer(nil, false)

		newCtx, span := tracer.StartTransaction(ctx, "tx-1", "/tmp/b")

		assert.Equal(t, ctx, newCtx)
		assert.False(t, span.IsRecording())
		span.End()
	})

	t.Run("records lifecycle events", func(t *testing.T) {
		tracer, recorder := recordingTracer(t)

		newCtx, span := tracer.StartTransaction(ctx, "tx-1", "/tmp/b")
		assert.True(t, trace.SpanContextFromContext(newCtx).IsValid())

		tracer.RecordOperation(span, CreateDir{Path: "/a"}, 1)
		tracer.RecordOperation(span, CreateFile{Path: "/a/f"}, 2)
		tracer.RecordRollback(span, reasonExplicit, 1, 1, nil)
		tracer.RecordCommit(span, 1)
		tracer.EndTransaction(span, true, nil)

		ended := recorder.Ended()
		require.Len(t, ended, 1)
		assert.Equal(t, "transaction", ended[0].Name())
		assert.Equal(t, codes.Ok, ended[0].Status().Code)

		var names []string
		for _, ev := range ended[0].Events() {
			names = append(names, ev.Name)
		}
		assert.Equal(t, []string{"operation", "operation", "rollback", "commit"}, names)
	})

	t.Run("records error status", func(t *testing.T) {
		tracer, recorder := recordingTracer(t)

		_, span := tracer.StartTransaction(ctx, "tx-2", "/tmp/b")
		tracer.EndTransaction(span, false, errors.New("boom"))

		ended := recorder.Ended()
		require.Len(t, ended, 1)
		assert.Equal(t, codes.Error, ended[0].Status().Code)
		assert.Equal(t, "boom", ended[0].Status().Description)
	})

	t.Run("handles nil span", func(t *testing.T) {
		tracer := NewTracer(nil, true)
		tracer.RecordOperation(nil, CreateDir{Path: "/a"}, 1)
		tracer.RecordCommit(nil, 0)
		tracer.RecordRollback(nil, reasonAbandoned, 0, 0, errors.New("x"))
		tracer.EndTransaction(nil, false, nil)
	})
}

func TestTransaction_SpanCoversLifetime(t *testing.T) {
	tracer, recorder := recordingTracer(t)
	root := t.TempDir()

	tx := beginTx(t)
	// Re-open the span on the recording tracer.
	tx.tracer = tracer
	tx.ctx, tx.span = tracer.StartTransaction(context.Background(), tx.ID(), tx.BackupDir())

	require.NoError(t, tx.CreateFile(filepath.Join(root, "f")))
	require.NoError(t, tx.Close())

	ended := recorder.Ended()
	require.Len(t, ended, 1)

	var names []string
	for _, ev := range ended[0].Events() {
		names = append(names, ev.Name)
	}
	assert.Equal(t, []string{"operation", "rollback"}, names)
}

func TestTruncateForTrace(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		maxLen   int
		expected string
	}{
		{"short string within limit", "short", 10, "short"},
		{"exactly at limit", "exactly_10", 10, "exactly_10"},
		{"exceeds limit with ellipsis", "this is a longer string", 10, "this is..."},
		{"empty string", "", 10, ""},
		{"maxLen zero", "hello", 0, ""},
		{"maxLen three", "hello", 3, "hel"},
		{"maxLen four truncates with ellipsis", "hello", 4, "h..."},
		{"negative maxLen", "hello", -1, ""},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, truncateForTrace(tc.input, tc.maxLen))
		})
	}
}

func TestLoggerWithTrace(t *testing.T) {
	t.Run("returns original logger without trace", func(t *testing.T) {
		logger := testLogger()
		assert.Same(t, logger, LoggerWithTrace(context.Background(), logger))
	})

	t.Run("adds trace fields when trace present", func(t *testing.T) {
		tracer, _ := recordingTracer(t)
		logger := testLogger()
		ctx, span := tracer.StartTransaction(context.Background(), "tx", "/tmp/b")
		defer span.End()

		assert.NotSame(t, logger, LoggerWithTrace(ctx, logger))
	})

	t.Run("handles invalid span context", func(t *testing.T) {
		logger := testLogger()
		ctx := trace.ContextWithSpanContext(context.Background(), trace.SpanContext{})
		assert.Same(t, logger, LoggerWithTrace(ctx, logger))
	})
}
