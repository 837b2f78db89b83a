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
	"fmt"
	"os"
)

// Kind identifies the variant of an Operation.
type Kind string

const (
	KindCreateDir  Kind = "create_dir"
	KindCreateFile Kind = "create_file"
	KindRemoveFile Kind = "remove_file"
	KindRemoveDir  Kind = "remove_dir"
)

// Operation is one logged, reversible filesystem mutation.
//
// # Description
//
// The set of implementations is closed: CreateDir, CreateFile, RemoveFile
// and RemoveDir. Each knows how to undo itself. Records hold path identities
// only; displaced content lives in the backup store on disk.
//
// Callers never build Operations. They are produced by Transaction and can
// be inspected through Transaction.Operations.
type Operation interface {
	// Kind returns the variant tag.
	Kind() Kind

	// String returns a short human-readable description.
	String() string

	// revert applies the inverse action.
	revert() error
}

// CreateDir records a directory created by the transaction.
// Its inverse removes the (now empty) directory.
type CreateDir struct {
	Path string
}

func (op CreateDir) Kind() Kind { return KindCreateDir }

func (op CreateDir) String() string {
	return fmt.Sprintf("create_dir(%s)", op.Path)
}

func (op CreateDir) revert() error {
	return os.Remove(op.Path)
}

// CreateFile records a file created by the transaction.
// Its inverse deletes the file.
type CreateFile struct {
	Path string
}

func (op CreateFile) Kind() Kind { return KindCreateFile }

func (op CreateFile) String() string {
	return fmt.Sprintf("create_file(%s)", op.Path)
}

func (op CreateFile) revert() error {
	return os.Remove(op.Path)
}

// RemoveFile records a file or symlink moved into the backup store.
// Its inverse renames the backup back to the removed path.
type RemoveFile struct {
	Removed string
	Backup  string
}

func (op RemoveFile) Kind() Kind { return KindRemoveFile }

func (op RemoveFile) String() string {
	return fmt.Sprintf("remove_file(%s -> %s)", op.Removed, op.Backup)
}

func (op RemoveFile) revert() error {
	return os.Rename(op.Backup, op.Removed)
}

// RemoveDir records a directory subtree moved into the backup store.
// Its inverse renames the backup back to the removed path.
type RemoveDir struct {
	Removed string
	Backup  string
}

func (op RemoveDir) Kind() Kind { return KindRemoveDir }

func (op RemoveDir) String() string {
	return fmt.Sprintf("remove_dir(%s -> %s)", op.Removed, op.Backup)
}

func (op RemoveDir) revert() error {
	return os.Rename(op.Backup, op.Removed)
}

// Compile-time interface checks
var (
	_ Operation = CreateDir{}
	_ Operation = CreateFile{}
	_ Operation = RemoveFile{}
	_ Operation = RemoveDir{}
)
