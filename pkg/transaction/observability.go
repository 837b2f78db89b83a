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
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

const instrumentationName = "bip39-keygen.transaction"

// Rollback reasons used for span events and metrics.
const (
	reasonExplicit  = "explicit"
	reasonAbandoned = "abandoned"
)

// Tracer provides OpenTelemetry tracing for a transaction's lifetime.
//
// # Description
//
// One span covers a transaction from Begin to Close. Logged operations,
// commits and rollbacks are added to it as events. When disabled, every
// method works on noop spans.
//
// # Thread Safety
//
// All methods are safe for concurrent use.
type Tracer struct {
	tracer  trace.Tracer
	logger  *slog.Logger
	enabled bool
}

// NewTracer creates a new transaction tracer.
//
// # Inputs
//
//   - logger: Logger for structured logging. Uses slog.Default() if nil.
//   - enabled: Whether tracing is enabled. When false, uses noop spans.
//
// # Outputs
//
//   - *Tracer: Ready-to-use tracer instance.
func NewTracer(logger *slog.Logger, enabled bool) *Tracer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Tracer{
		tracer:  otel.Tracer(instrumentationName),
		logger:  logger,
		enabled: enabled,
	}
}

// StartTransaction starts the span that lives until Close.
//
// # Inputs
//
//   - ctx: Parent context for span creation.
//   - txID: Transaction identifier.
//   - backupDir: Path of the transaction's backup store.
//
// # Outputs
//
//   - context.Context: Context with span attached.
//   - trace.Span: The created span. Caller must call EndTransaction.
func (t *Tracer) StartTransaction(ctx context.Context, txID, backupDir string) (context.Context, trace.Span) {
	if !t.enabled {
		return ctx, noop.Span{}
	}

	return t.tracer.Start(ctx, "transaction",
		trace.WithAttributes(
			attribute.String("tx.id", txID),
			attribute.String("tx.backup_dir", truncateForTrace(backupDir, 200)),
		),
		trace.WithSpanKind(trace.SpanKindInternal),
	)
}

// RecordOperation adds a logged operation to the span.
//
// # Inputs
//
//   - span: The transaction span.
//   - op: The operation that was appended to the log.
//   - version: The version after appending.
func (t *Tracer) RecordOperation(span trace.Span, op Operation, version int) {
	if span == nil || !span.IsRecording() {
		return
	}
	span.AddEvent("operation",
		trace.WithAttributes(
			attribute.String("tx.op.kind", string(op.Kind())),
			attribute.String("tx.op", truncateForTrace(op.String(), 200)),
			attribute.Int("tx.version", version),
		),
	)
}

// RecordCommit adds a commit event to the span.
func (t *Tracer) RecordCommit(span trace.Span, operations int) {
	if span == nil || !span.IsRecording() {
		return
	}
	span.AddEvent("commit",
		trace.WithAttributes(attribute.Int("tx.operations", operations)),
	)
}

// RecordRollback adds a rollback event to the span.
//
// # Inputs
//
//   - span: The transaction span.
//   - reason: reasonExplicit or reasonAbandoned.
//   - target: Version the rollback was asked to reach.
//   - reached: Version actually reached.
//   - err: The inverse failure that stopped the run, if any.
func (t *Tracer) RecordRollback(span trace.Span, reason string, target, reached int, err error) {
	if span == nil || !span.IsRecording() {
		return
	}
	attrs := []attribute.KeyValue{
		attribute.String("tx.reason", reason),
		attribute.Int("tx.target_version", target),
		attribute.Int("tx.reached_version", reached),
	}
	if err != nil {
		span.RecordError(err)
		attrs = append(attrs, attribute.String("tx.error", truncateForTrace(err.Error(), 200)))
	}
	span.AddEvent("rollback", trace.WithAttributes(attrs...))
}

// EndTransaction completes the transaction span.
//
// # Inputs
//
//   - span: The span to end.
//   - committed: Whether the transaction was committed.
//   - err: Error from the implicit rollback or backup cleanup, if any.
func (t *Tracer) EndTransaction(span trace.Span, committed bool, err error) {
	if span == nil {
		return
	}
	defer span.End()

	span.SetAttributes(attribute.Bool("tx.committed", committed))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return
	}
	span.SetStatus(codes.Ok, "")
}

// truncateForTrace truncates a string for use in span attributes.
// Prevents excessive memory usage from long strings.
//
// If maxLen is less than 4, returns at most maxLen characters without suffix.
func truncateForTrace(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	if maxLen < 4 {
		if maxLen <= 0 {
			return ""
		}
		return s[:maxLen]
	}
	return s[:maxLen-3] + "..."
}

// LoggerWithTrace returns a logger with trace context fields.
//
// # Description
//
// Extracts trace_id and span_id from the context and adds them
// to the logger for correlation with distributed traces.
//
// # Inputs
//
//   - ctx: Context that may contain trace information.
//   - logger: Base logger to extend.
//
// # Outputs
//
//   - *slog.Logger: Logger with trace_id and span_id if available.
func LoggerWithTrace(ctx context.Context, logger *slog.Logger) *slog.Logger {
	spanCtx := trace.SpanContextFromContext(ctx)
	if !spanCtx.IsValid() {
		return logger
	}
	return logger.With(
		slog.String("trace_id", spanCtx.TraceID().String()),
		slog.String("span_id", spanCtx.SpanID().String()),
	)
}
