// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

//go:build linux

package transaction

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"
)

// writeWithSizeLimit runs WriteFile while the process may not grow any file
// past limit bytes. The Go runtime ignores SIGXFSZ, so the write fails with
// EFBIG instead of killing the test binary.
func writeWithSizeLimit(t *testing.T, tx *Transaction, path string, contents []byte, limit uint64) error {
	t.Helper()

	var orig unix.Rlimit
	require.NoError(t, unix.Getrlimit(unix.RLIMIT_FSIZE, &orig))
	if orig.Cur < limit {
		t.Skipf("file size limit already below %d bytes", limit)
	}
	require.NoError(t, unix.Setrlimit(unix.RLIMIT_FSIZE, &unix.Rlimit{Cur: limit, Max: orig.Max}))
	defer func() {
		require.NoError(t, unix.Setrlimit(unix.RLIMIT_FSIZE, &orig))
	}()

	return tx.WriteFile(path, contents, 0o600)
}

func TestWriteFile_FailedOverwriteLeavesPathUnchanged(t *testing.T) {
	big := bytes.Repeat([]byte("k"), 1<<20)

	t.Run("open transaction", func(t *testing.T) {
		root := t.TempDir()
		path := filepath.Join(root, "key")
		writeFixture(t, path, "hi")

		tx := beginTx(t)
		defer tx.Close()

		err := writeWithSizeLimit(t, tx, path, big, 4096)
		require.Error(t, err)
		assert.ErrorIs(t, err, unix.EFBIG)
		assert.Equal(t, 1, strings.Count(err.Error(), path), "path repeated in %q", err.Error())

		assert.Equal(t, "hi", readFile(t, path))
		assert.Equal(t, 0, tx.Version())
		assert.Empty(t, tx.Operations())
	})

	t.Run("later checkpoints stay intact", func(t *testing.T) {
		root := t.TempDir()
		path := filepath.Join(root, "key")
		other := filepath.Join(root, "other")
		writeFixture(t, path, "hi")

		tx := beginTx(t)
		defer tx.Close()

		require.NoError(t, tx.WriteFile(other, []byte("1"), 0o600))
		checkpoint := tx.Version()

		require.Error(t, writeWithSizeLimit(t, tx, path, big, 4096))
		assert.Equal(t, checkpoint, tx.Version())
		assert.Equal(t, "hi", readFile(t, path))
		assert.Equal(t, "1", readFile(t, other))
	})

	t.Run("committed transaction", func(t *testing.T) {
		root := t.TempDir()
		path := filepath.Join(root, "key")
		writeFixture(t, path, "hi")

		tx := beginTx(t)
		tx.Commit()

		require.Error(t, writeWithSizeLimit(t, tx, path, big, 4096))
		assert.Equal(t, "hi", readFile(t, path))
		assert.Equal(t, 0, tx.Version())
		require.NoError(t, tx.Close())
		assert.Equal(t, "hi", readFile(t, path))
	})

	t.Run("new path logs nothing", func(t *testing.T) {
		root := t.TempDir()
		path := filepath.Join(root, "key")

		tx := beginTx(t)
		defer tx.Close()

		require.Error(t, writeWithSizeLimit(t, tx, path, big, 4096))
		assert.NoFileExists(t, path)
		assert.Equal(t, 0, tx.Version())
	})
}
