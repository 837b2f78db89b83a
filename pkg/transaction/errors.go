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
	"errors"
	"fmt"
)

// Sentinel errors for transaction operations.
var (
	// ErrNotFileOrSymlink is returned by RemoveFile when the target is
	// neither a regular file nor a symbolic link.
	ErrNotFileOrSymlink = errors.New("not a file or symlink")

	// ErrNotDirectory is returned by RemoveDir when the target is not a
	// directory.
	ErrNotDirectory = errors.New("not a directory")

	// ErrClosed is returned by every mutating call made after Close.
	ErrClosed = errors.New("transaction closed")

	// ErrNoFileName is returned when a backup name cannot be derived
	// because the path has no final element (for example "/").
	ErrNoFileName = errors.New("path has no file name")

	// ErrNilContext is returned by Begin when called with a nil context.
	ErrNilContext = errors.New("nil context")
)

// PreconditionError reports that a path did not have the type an operation
// requires. It is returned before any filesystem change is attempted.
//
// Use errors.Is with ErrNotFileOrSymlink or ErrNotDirectory to tell the two
// kinds apart.
type PreconditionError struct {
	// Op is the operation that was refused ("remove_file", "remove_dir").
	Op string

	// Path is the offending path.
	Path string

	// Err is ErrNotFileOrSymlink or ErrNotDirectory.
	Err error
}

func (e *PreconditionError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
}

func (e *PreconditionError) Unwrap() error {
	return e.Err
}

// RollbackError reports an inverse action that failed while rolling back.
//
// After a RollbackError the transaction is only partially rolled back; the
// failed record stays on top of the log and Version still equals the log
// length.
type RollbackError struct {
	// Operation is the record whose inverse failed.
	Operation Operation

	// Version is the transaction version at the time of failure.
	Version int

	// Err is the underlying filesystem error.
	Err error
}

func (e *RollbackError) Error() string {
	return fmt.Sprintf("rollback of %s at version %d: %v", e.Operation, e.Version, e.Err)
}

func (e *RollbackError) Unwrap() error {
	return e.Err
}

// FaultError is handed to the fault handler when Close could not roll an
// abandoned transaction back. The filesystem is in a partially restored
// state and BackupDir still holds whatever was not moved back.
type FaultError struct {
	// TxID identifies the transaction.
	TxID string

	// BackupDir is the backup store, kept until the handler returns.
	BackupDir string

	// Err is the *RollbackError that stopped the rollback.
	Err error
}

func (e *FaultError) Error() string {
	return fmt.Sprintf("transaction %s: implicit rollback failed (backups in %s): %v", e.TxID, e.BackupDir, e.Err)
}

func (e *FaultError) Unwrap() error {
	return e.Err
}
