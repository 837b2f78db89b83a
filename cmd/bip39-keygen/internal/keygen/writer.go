// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package keygen

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/jinterlante1206/bip39-keygen/pkg/transaction"
)

// File and directory modes used for key material.
const (
	PublicKeyMode  os.FileMode = 0o644
	PrivateKeyMode os.FileMode = 0o600
	KeyDirMode     os.FileMode = 0o700
)

// Paths are the two destinations of a key pair.
type Paths struct {
	Public  string
	Private string
}

// PathsFor returns <dir>/<name> and <dir>/<name>.pub.
func PathsFor(dir, name string) Paths {
	private := filepath.Join(dir, name)
	return Paths{
		Public:  private + ".pub",
		Private: private,
	}
}

// Existing returns the paths that are already present on disk, public key
// first.
func (p Paths) Existing() ([]string, error) {
	var existing []string
	for _, path := range []string{p.Public, p.Private} {
		_, err := os.Lstat(path)
		switch {
		case err == nil:
			existing = append(existing, path)
		case errors.Is(err, fs.ErrNotExist):
		default:
			return nil, fmt.Errorf("failed to check %s: %w", path, err)
		}
	}
	return existing, nil
}

// Writer stores key pairs on disk with all-or-nothing semantics.
type Writer struct {
	// BackupRoot is where the transaction keeps displaced files. Empty means
	// os.TempDir(). It should live on the same filesystem as the keys.
	BackupRoot string

	// Logger receives transaction debug output. Nil means slog.Default().
	Logger *slog.Logger

	// FaultHandler is called if undoing a failed write also fails. Nil
	// means the transaction's default, which panics.
	FaultHandler func(error)

	// Tracing enables the transaction span.
	Tracing bool
}

// Write stores the public key and then the private key.
//
// Description:
//
//	Both files are written inside one transaction. Missing directories are
//	created with mode 0700 and existing key files are moved aside first. If
//	either write fails, every change is rolled back and any displaced file
//	is restored, so the caller never ends up with only one of the two keys.
//
// Inputs:
//
//	ctx - Context for logging and tracing.
//	pair - The key pair to store.
//	paths - Destinations for the two files.
//
// Outputs:
//
//	error - The first filesystem error, or nil once both files are committed.
func (w *Writer) Write(ctx context.Context, pair *KeyPair, paths Paths) (err error) {
	if pair == nil || pair.PrivateKey == nil {
		return errors.New("key pair is empty")
	}

	opts := []transaction.Option{
		transaction.WithDirMode(KeyDirMode),
		transaction.WithLogger(w.Logger),
		transaction.WithFaultHandler(w.FaultHandler),
		transaction.WithTracing(w.Tracing),
	}
	if w.BackupRoot != "" {
		opts = append(opts, transaction.WithBackupRoot(w.BackupRoot))
	}

	tx, err := transaction.Begin(ctx, opts...)
	if err != nil {
		return fmt.Errorf("failed to start transaction: %w", err)
	}
	defer func() {
		if closeErr := tx.Close(); closeErr != nil {
			err = errors.Join(err, closeErr)
		}
	}()

	if err := tx.WriteFile(paths.Public, pair.PublicKey, PublicKeyMode); err != nil {
		return fmt.Errorf("failed to write public key: %w", err)
	}
	if err := tx.WriteFile(paths.Private, pair.PrivateKey.Bytes(), PrivateKeyMode); err != nil {
		return fmt.Errorf("failed to write private key: %w", err)
	}

	tx.Commit()
	return nil
}
