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
	"path/filepath"
	"strconv"
)

const (
	// BackupDirPrefix is the fixed name prefix of every backup store.
	BackupDirPrefix = "bip39-keygen-"

	// backupSuffix is inserted between the original name and the version.
	backupSuffix = ".backup."
)

// backupStore is the private, uniquely named directory that holds files and
// directories renamed away by one transaction.
//
// # Description
//
// The store is created eagerly when the transaction begins and removed when
// it is closed, whatever the outcome. Entries are named
// "<original-name>.backup.<version>"; since the version counter only grows
// while a removal is being logged, two removals in one transaction never get
// the same name even when they share a base name.
//
// # Limitations
//
//   - Entries are moved with os.Rename, so the store must live on the same
//     filesystem as the paths being removed. Use WithBackupRoot when the
//     system temp directory is on a different device.
type backupStore struct {
	dir string
}

// newBackupStore creates a fresh store under root. An empty root means the
// system temp directory.
func newBackupStore(root string) (*backupStore, error) {
	dir, err := os.MkdirTemp(root, BackupDirPrefix)
	if err != nil {
		return nil, fmt.Errorf("creating backup store: %w", err)
	}
	return &backupStore{dir: dir}, nil
}

// path derives the backup location for original at the given version.
func (s *backupStore) path(original string, version int) (string, error) {
	base := filepath.Base(filepath.Clean(original))
	if base == "." || base == string(filepath.Separator) || base == ".." {
		return "", fmt.Errorf("backup path for %q: %w", original, ErrNoFileName)
	}
	return filepath.Join(s.dir, base+backupSuffix+strconv.Itoa(version)), nil
}

// remove deletes the store and everything still inside it.
func (s *backupStore) remove() error {
	if err := os.RemoveAll(s.dir); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("removing backup store %s: %w", s.dir, err)
	}
	return nil
}
