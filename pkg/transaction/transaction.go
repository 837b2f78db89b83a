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
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"
)

// DefaultDirMode is the permission used for directories the transaction
// creates unless WithDirMode says otherwise.
const DefaultDirMode os.FileMode = 0o755

// Transaction is an in-memory undo log of filesystem mutations.
//
// # Description
//
// Every successful mutation appends one Operation to the log and bumps the
// version, so Version() always equals the number of logged operations.
// RollbackTo replays inverses newest first. A transaction starts Open and
// moves to Committed once Commit is called; that transition is never undone.
//
// Close is the destructor. On an Open transaction it rolls everything back
// before removing the backup store. Call it with defer right after Begin:
//
//	tx, err := transaction.Begin(ctx)
//	if err != nil {
//	    return err
//	}
//	defer tx.Close()
//
//	if err := tx.WriteFile(pubPath, pub, 0o644); err != nil {
//	    return err // Close restores the previous state
//	}
//	tx.Commit()
//
// # Thread Safety
//
// Not safe for concurrent use. A transaction belongs to one goroutine and
// calls are applied strictly in order.
type Transaction struct {
	id         string
	operations []Operation
	version    int
	committed  bool
	closed     bool

	store   *backupStore
	dirMode os.FileMode
	onFault func(error)

	logger    *slog.Logger
	tracer    *Tracer
	ctx       context.Context
	span      trace.Span
	startedAt time.Time
}

// Option configures a Transaction at Begin.
type Option func(*options)

type options struct {
	backupRoot string
	dirMode    os.FileMode
	logger     *slog.Logger
	onFault    func(error)
	tracing    bool
}

// WithBackupRoot sets the parent directory of the backup store. It must be
// on the same filesystem as the paths the transaction removes. Empty means
// os.TempDir().
func WithBackupRoot(dir string) Option {
	return func(o *options) { o.backupRoot = dir }
}

// WithDirMode sets the permission of directories created by CreateDir,
// CreateDirAll and the parent creation done by WriteFile.
func WithDirMode(mode os.FileMode) Option {
	return func(o *options) { o.dirMode = mode }
}

// WithLogger sets the logger. Nil keeps slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithFaultHandler sets the function Close calls with a *FaultError when
// the implicit rollback of an abandoned transaction fails. The default
// panics. If the handler returns, Close still removes the backup store.
func WithFaultHandler(fn func(error)) Option {
	return func(o *options) {
		if fn != nil {
			o.onFault = fn
		}
	}
}

// WithTracing enables or disables the transaction span.
func WithTracing(enabled bool) Option {
	return func(o *options) { o.tracing = enabled }
}

func defaultFaultHandler(err error) {
	panic(err)
}

// Begin opens a new transaction.
//
// # Description
//
// Creates the backup store eagerly so a transaction that cannot back up
// anything never starts.
//
// # Inputs
//
//   - ctx: Parent context for the transaction span and metrics. Must not be nil.
//   - opts: Functional options.
//
// # Outputs
//
//   - *Transaction: An Open transaction at version 0.
//   - error: ErrNilContext, or a wrapped filesystem error from creating the
//     backup store.
func Begin(ctx context.Context, opts ...Option) (*Transaction, error) {
	if ctx == nil {
		return nil, ErrNilContext
	}

	o := options{
		dirMode: DefaultDirMode,
		logger:  slog.Default(),
		onFault: defaultFaultHandler,
		tracing: true,
	}
	for _, opt := range opts {
		opt(&o)
	}

	store, err := newBackupStore(o.backupRoot)
	if err != nil {
		recordBegin(ctx, false)
		return nil, err
	}

	id := uuid.NewString()
	tracer := NewTracer(o.logger, o.tracing)
	ctx, span := tracer.StartTransaction(ctx, id, store.dir)

	tx := &Transaction{
		id:        id,
		store:     store,
		dirMode:   o.dirMode,
		onFault:   o.onFault,
		logger:    LoggerWithTrace(ctx, o.logger).With(slog.String("tx_id", id)),
		tracer:    tracer,
		ctx:       ctx,
		span:      span,
		startedAt: time.Now(),
	}

	recordBegin(ctx, true)
	tx.logger.Debug("transaction started", slog.String("backup_dir", store.dir))
	return tx, nil
}

// ID returns the transaction's unique identifier.
func (tx *Transaction) ID() string {
	return tx.id
}

// Version returns the number of operations currently in the log.
func (tx *Transaction) Version() int {
	return tx.version
}

// Committed reports whether Commit has been called.
func (tx *Transaction) Committed() bool {
	return tx.committed
}

// BackupDir returns the path of the backup store. The directory no longer
// exists once Close has returned.
func (tx *Transaction) BackupDir() string {
	return tx.store.dir
}

// Operations returns a copy of the log, oldest first.
func (tx *Transaction) Operations() []Operation {
	ops := make([]Operation, len(tx.operations))
	copy(ops, tx.operations)
	return ops
}

// Commit marks the transaction as committed. Close will then keep every
// change and only discard the backups. Calling it again has no effect.
func (tx *Transaction) Commit() {
	if tx.committed {
		return
	}
	tx.committed = true
	recordCommit(tx.ctx)
	tx.tracer.RecordCommit(tx.span, len(tx.operations))
	tx.logger.Debug("transaction committed", slog.Int("operations", len(tx.operations)))
}

// RollbackTo undoes logged operations, newest first, until Version() is at
// most target.
//
// # Description
//
// Does nothing on a committed transaction. Each record is popped only after
// its inverse succeeded. The first failing inverse stops the run; the
// failed record stays on top of the log, so a later call retries it.
//
// # Outputs
//
//   - error: ErrClosed after Close, otherwise nil or a *RollbackError.
func (tx *Transaction) RollbackTo(target int) error {
	if tx.closed {
		return ErrClosed
	}
	if tx.committed {
		return nil
	}
	return tx.rollbackTo(target, reasonExplicit)
}

// Rollback undoes every logged operation. Same as RollbackTo(0).
func (tx *Transaction) Rollback() error {
	return tx.RollbackTo(0)
}

func (tx *Transaction) rollbackTo(target int, reason string) error {
	if tx.version <= target || len(tx.operations) == 0 {
		return nil
	}

	logger := tx.logger.With(slog.String("reason", reason))
	logger.Debug("rolling back", slog.Int("from", tx.version), slog.Int("to", target))

	var (
		reverted []Kind
		err      error
	)
	for len(tx.operations) > 0 && tx.version > target {
		top := tx.operations[len(tx.operations)-1]
		if rerr := top.revert(); rerr != nil {
			err = &RollbackError{Operation: top, Version: tx.version, Err: rerr}
			logger.Warn("inverse failed", slog.String("op", top.String()), slog.String("error", rerr.Error()))
			break
		}
		tx.operations[len(tx.operations)-1] = nil
		tx.operations = tx.operations[:len(tx.operations)-1]
		tx.version--
		reverted = append(reverted, top.Kind())
		logger.Debug("operation reverted", slog.String("op", top.String()), slog.Int("version", tx.version))
	}

	recordRollback(tx.ctx, reason, reverted, err)
	tx.tracer.RecordRollback(tx.span, reason, target, tx.version, err)
	return err
}

// Close ends the transaction.
//
// # Description
//
// If the transaction was never committed every logged operation is rolled
// back. A failure there is not returned quietly: it is wrapped in a
// *FaultError and handed to the fault handler (default: panic) while the
// backup store still exists. The backup store is then removed, unless the
// fault handler does not return: a panicking or exiting handler leaves it in
// place so the displaced files can be recovered by hand.
//
// Close is idempotent. Every mutating call made afterwards returns ErrClosed.
//
// # Outputs
//
//   - error: The error from removing the backup store, joined with the
//     *FaultError when a fault handler returned.
func (tx *Transaction) Close() error {
	if tx.closed {
		return nil
	}
	tx.closed = true

	if !tx.committed {
		if err := tx.rollbackTo(0, reasonAbandoned); err != nil {
			fault := &FaultError{TxID: tx.id, BackupDir: tx.store.dir, Err: err}
			tx.logger.Error("implicit rollback failed",
				slog.String("backup_dir", tx.store.dir),
				slog.Int("version", tx.version),
				slog.String("error", err.Error()),
			)
			tx.finish(fault)
			tx.onFault(fault)
			return errors.Join(fault, tx.store.remove())
		}
	}

	err := tx.store.remove()
	tx.finish(err)
	return err
}

func (tx *Transaction) finish(err error) {
	recordClose(tx.ctx, time.Since(tx.startedAt), tx.committed)
	tx.tracer.EndTransaction(tx.span, tx.committed, err)
	tx.logger.Debug("transaction closed",
		slog.Bool("committed", tx.committed),
		slog.Int("version", tx.version),
	)
}

// change appends op to the log.
func (tx *Transaction) change(op Operation) {
	tx.operations = append(tx.operations, op)
	tx.version++
	tx.tracer.RecordOperation(tx.span, op, tx.version)
	tx.logger.Debug("operation logged", slog.String("op", op.String()), slog.Int("version", tx.version))
}
