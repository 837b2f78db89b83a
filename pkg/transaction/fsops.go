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
	"io/fs"
	"os"
	"path/filepath"
	"syscall"
)

// CreateDir creates a single directory and logs CreateDir.
//
// The parent must exist and path must not. Nothing is logged on failure.
func (tx *Transaction) CreateDir(path string) error {
	if tx.closed {
		return ErrClosed
	}
	return tx.createDir(path)
}

// CreateDirAll creates path and every missing ancestor.
//
// # Description
//
// Walks up to the first existing ancestor, then creates the missing chain
// shallowest first. Each level is its own CreateDir record, so a failure
// half way leaves the levels already created in the log and a rollback
// removes them. Existing ancestors are never logged or touched.
//
// # Outputs
//
//   - error: nil if path already is a directory. A *fs.PathError wrapping
//     ENOTDIR if path or an ancestor exists but is not a directory.
func (tx *Transaction) CreateDirAll(path string) error {
	if tx.closed {
		return ErrClosed
	}
	return tx.createDirAll(path)
}

// CreateFile creates an empty file at path. See WriteFile.
func (tx *Transaction) CreateFile(path string) error {
	return tx.WriteFile(path, nil, 0o644)
}

// WriteFile creates path with contents and logs CreateFile.
//
// # Description
//
// Missing parents are created through CreateDirAll. An existing file or
// symlink at path is first moved to the backup store through RemoveFile,
// which logs its own record. The new file is opened with O_EXCL, written,
// synced and closed; if any of that fails the partial file is deleted, the
// RemoveFile record is reverted and no CreateFile record is logged. An
// overwrite therefore either logs both records or leaves path unchanged.
//
// # Inputs
//
//   - path: Target file.
//   - contents: Bytes to write. May be nil.
//   - perm: Permission bits for the new file (subject to umask).
func (tx *Transaction) WriteFile(path string, contents []byte, perm os.FileMode) error {
	if tx.closed {
		return ErrClosed
	}

	if parent := filepath.Dir(path); parent != "." {
		if err := tx.createDirAll(parent); err != nil {
			return err
		}
	}

	before := tx.version
	_, err := os.Lstat(path)
	switch {
	case err == nil:
		if err := tx.removeFile(path); err != nil {
			return err
		}
	case !errors.Is(err, fs.ErrNotExist):
		return fmt.Errorf("write file: %w", err)
	}

	err = writeNew(path, contents, perm)
	recordOperation(tx.ctx, KindCreateFile, err)
	if err != nil {
		// Put a displaced file back so the failed call leaves path as it was.
		if tx.version > before {
			return errors.Join(err, tx.rollbackTo(before, reasonExplicit))
		}
		return err
	}
	tx.change(CreateFile{Path: path})
	return nil
}

// RemoveFile moves a regular file or symlink into the backup store and
// logs RemoveFile.
//
// Any other file type is refused with a *PreconditionError wrapping
// ErrNotFileOrSymlink before anything is changed. Symlinks are moved
// themselves, not their targets.
func (tx *Transaction) RemoveFile(path string) error {
	if tx.closed {
		return ErrClosed
	}
	return tx.removeFile(path)
}

// RemoveDir moves a directory, with its whole subtree, into the backup
// store and logs RemoveDir.
//
// Anything that is not a directory is refused with a *PreconditionError
// wrapping ErrNotDirectory before anything is changed.
func (tx *Transaction) RemoveDir(path string) error {
	if tx.closed {
		return ErrClosed
	}
	err := tx.removeDir(path)
	recordOperation(tx.ctx, KindRemoveDir, err)
	return err
}

func (tx *Transaction) createDir(path string) error {
	err := os.Mkdir(path, tx.dirMode)
	recordOperation(tx.ctx, KindCreateDir, err)
	if err != nil {
		return fmt.Errorf("create dir: %w", err)
	}
	tx.change(CreateDir{Path: path})
	return nil
}

func (tx *Transaction) createDirAll(path string) error {
	var missing []string
	for p := filepath.Clean(path); ; {
		info, err := os.Stat(p)
		if err == nil {
			if !info.IsDir() {
				return fmt.Errorf("create dir: %w", &fs.PathError{Op: "mkdir", Path: p, Err: syscall.ENOTDIR})
			}
			break
		}
		if !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("create dir: %w", err)
		}
		missing = append(missing, p)

		parent := filepath.Dir(p)
		if parent == p {
			break
		}
		p = parent
	}

	for i := len(missing) - 1; i >= 0; i-- {
		if err := tx.createDir(missing[i]); err != nil {
			return err
		}
	}
	return nil
}

func (tx *Transaction) removeFile(path string) error {
	err := tx.moveToBackup(path, "remove_file", func(mode fs.FileMode) bool {
		return mode.IsRegular() || mode&fs.ModeSymlink != 0
	}, ErrNotFileOrSymlink)
	recordOperation(tx.ctx, KindRemoveFile, err)
	return err
}

func (tx *Transaction) removeDir(path string) error {
	return tx.moveToBackup(path, "remove_dir", fs.FileMode.IsDir, ErrNotDirectory)
}

// moveToBackup checks the type of path with Lstat, renames it into the
// backup store and logs the matching record.
func (tx *Transaction) moveToBackup(path, op string, accept func(fs.FileMode) bool, refused error) error {
	info, err := os.Lstat(path)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if !accept(info.Mode()) {
		return &PreconditionError{Op: op, Path: path, Err: refused}
	}

	backup, err := tx.backupPath(path)
	if err != nil {
		return err
	}
	if err := os.Rename(path, backup); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	if info.IsDir() {
		tx.change(RemoveDir{Removed: path, Backup: backup})
	} else {
		tx.change(RemoveFile{Removed: path, Backup: backup})
	}
	return nil
}

// backupPath returns where path goes in the backup store at the current
// version. Names cannot repeat: a removal logged at version v bumps the
// version, and a rollback that lowers it again first moves the entry out.
func (tx *Transaction) backupPath(path string) (string, error) {
	return tx.store.path(path, tx.version)
}

// writeNew creates path exclusively and fills it. The file is removed
// again if anything after the open fails.
func writeNew(path string, contents []byte, perm os.FileMode) (err error) {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, perm)
	if err != nil {
		return fmt.Errorf("create file: %w", err)
	}
	defer func() {
		if err != nil {
			_ = os.Remove(path)
		}
	}()

	if _, err = f.Write(contents); err != nil {
		_ = f.Close()
		return fmt.Errorf("write file: %w", err)
	}
	if err = f.Sync(); err != nil {
		_ = f.Close()
		return fmt.Errorf("sync file: %w", err)
	}
	if err = f.Close(); err != nil {
		return fmt.Errorf("close file: %w", err)
	}
	return nil
}
