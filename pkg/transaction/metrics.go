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
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metric instruments for transaction operations.
var (
	beginTotal          metric.Int64Counter
	commitTotal         metric.Int64Counter
	rollbackTotal       metric.Int64Counter
	operationsTotal     metric.Int64Counter
	revertedTotal       metric.Int64Counter
	rollbackFailures    metric.Int64Counter
	activeGauge         metric.Int64UpDownCounter
	transactionDuration metric.Float64Histogram

	metricsOnce sync.Once
	metricsErr  error
)

// metricsEnabled gates every record* call. On by default.
var metricsEnabled atomic.Bool

func init() {
	metricsEnabled.Store(true)
}

// SetMetricsEnabled turns transaction metrics on or off for the whole
// process. Safe for concurrent use.
func SetMetricsEnabled(enabled bool) {
	metricsEnabled.Store(enabled)
}

// initMetrics initializes all metric instruments.
// Safe to call multiple times; uses sync.Once internally.
//
// Instruments are created from the global MeterProvider at first use, so
// telemetry.Init must run before the first transaction for them to be
// exported.
func initMetrics() error {
	metricsOnce.Do(func() {
		meter := otel.Meter(instrumentationName)
		var err error

		beginTotal, err = meter.Int64Counter(
			"transaction_begin_total",
			metric.WithDescription("Total number of transactions opened"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		commitTotal, err = meter.Int64Counter(
			"transaction_commit_total",
			metric.WithDescription("Total number of transactions committed"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		rollbackTotal, err = meter.Int64Counter(
			"transaction_rollback_total",
			metric.WithDescription("Total number of rollbacks by reason"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		operationsTotal, err = meter.Int64Counter(
			"transaction_operations_total",
			metric.WithDescription("Total number of mutating calls by kind and status"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		revertedTotal, err = meter.Int64Counter(
			"transaction_reverted_operations_total",
			metric.WithDescription("Total number of logged operations undone by rollback"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		rollbackFailures, err = meter.Int64Counter(
			"transaction_rollback_failures_total",
			metric.WithDescription("Total number of inverse actions that failed"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		activeGauge, err = meter.Int64UpDownCounter(
			"transaction_active",
			metric.WithDescription("Number of currently open transactions"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		transactionDuration, err = meter.Float64Histogram(
			"transaction_duration_seconds",
			metric.WithDescription("Time from Begin to Close in seconds"),
			metric.WithUnit("s"),
		)
		if err != nil {
			metricsErr = err
			return
		}
	})
	return metricsErr
}

// recording reports whether instruments are enabled and ready.
func recording() bool {
	return metricsEnabled.Load() && initMetrics() == nil
}

// statusAttr maps an outcome to the bounded "status" label.
func statusAttr(ok bool) attribute.KeyValue {
	if ok {
		return attribute.String("status", "success")
	}
	return attribute.String("status", "error")
}

// recordBegin records a transaction begin and bumps the active gauge.
func recordBegin(ctx context.Context, success bool) {
	if !recording() {
		return
	}

	beginTotal.Add(ctx, 1, metric.WithAttributes(statusAttr(success)))
	if success {
		activeGauge.Add(ctx, 1)
	}
}

// recordCommit records a commit.
func recordCommit(ctx context.Context) {
	if !recording() {
		return
	}

	commitTotal.Add(ctx, 1)
}

// recordOperation records one mutating call.
//
// # Inputs
//
//   - ctx: Context for metric recording.
//   - kind: The operation kind that was attempted.
//   - opErr: Error if the call failed (nil on success).
func recordOperation(ctx context.Context, kind Kind, opErr error) {
	if !recording() {
		return
	}

	operationsTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String("kind", string(kind)),
		statusAttr(opErr == nil),
	))
}

// recordRollback records a rollback run.
//
// # Inputs
//
//   - ctx: Context for metric recording.
//   - reason: "explicit" for RollbackTo calls, "abandoned" for Close on an
//     open transaction.
//   - reverted: Operations undone during this run, by kind.
//   - rollbackErr: The failure that stopped the run, if any.
func recordRollback(ctx context.Context, reason string, reverted []Kind, rollbackErr error) {
	if !recording() {
		return
	}

	rollbackTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("reason", normalizeRollbackReason(reason))))
	for _, kind := range reverted {
		revertedTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("kind", string(kind))))
	}
	if rollbackErr != nil {
		rollbackFailures.Add(ctx, 1)
	}
}

// normalizeRollbackReason keeps the "reason" label to two values.
func normalizeRollbackReason(reason string) string {
	switch reason {
	case reasonAbandoned:
		return reasonAbandoned
	default:
		return reasonExplicit
	}
}

// recordClose records the end of a transaction lifetime.
func recordClose(ctx context.Context, duration time.Duration, committed bool) {
	if !recording() {
		return
	}

	outcome := "rolled_back"
	if committed {
		outcome = "committed"
	}
	transactionDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(attribute.String("outcome", outcome)))
	activeGauge.Add(ctx, -1)
}
