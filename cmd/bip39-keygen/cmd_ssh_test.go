// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/jinterlante1206/bip39-keygen/pkg/ux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testMnemonic = "abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon about"

// isolate points HOME and the config directory at empty temp dirs so a
// developer's own config never leaks into a test.
func isolate(t *testing.T) {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(home, ".config"))
}

// execute runs the CLI with machine output and returns stdout and stderr.
func execute(t *testing.T, a *app, args ...string) (string, string, error) {
	t.Helper()
	isolate(t)

	prev := ux.GetPersonality()
	t.Cleanup(func() { ux.SetPersonalityLevel(prev.Level) })

	var out, errOut bytes.Buffer
	restore := ux.SetOutput(&out, &errOut)
	defer restore()

	root := newRootCmd(a)
	root.SetOut(&out)
	root.SetErr(&errOut)
	root.SetArgs(append([]string{"--output", "machine"}, args...))
	err := root.Execute()
	return out.String(), errOut.String(), err
}

// noPrompts fails the test on any prompt.
func noPrompts(t *testing.T) *ux.MockPrompter {
	return &ux.MockPrompter{
		ConfirmFunc: func(_ context.Context, prompt string, _ bool) (bool, error) {
			t.Errorf("unexpected confirm: %q", prompt)
			return false, nil
		},
		PasswordFunc: func(_ context.Context, prompt string) (string, error) {
			t.Errorf("unexpected password prompt: %q", prompt)
			return "", nil
		},
	}
}

func readKey(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return string(data)
}

func TestSSH_WritesKeyPair(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "keys")
	a := &app{prompter: noPrompts(t)}

	out, _, err := execute(t, a, "ssh", "-t", "ed25519", "-N", "-m", testMnemonic, "-o", dir, "-C", "alice@laptop")
	require.NoError(t, err)

	pub := readKey(t, filepath.Join(dir, "id_ed25519.pub"))
	assert.True(t, strings.HasPrefix(pub, "ssh-ed25519 "))
	assert.True(t, strings.HasSuffix(pub, " alice@laptop\n"))

	priv := readKey(t, filepath.Join(dir, "id_ed25519"))
	assert.Contains(t, priv, "BEGIN OPENSSH PRIVATE KEY")

	info, err := os.Stat(filepath.Join(dir, "id_ed25519"))
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	assert.Contains(t, out, "public_key="+filepath.Join(dir, "id_ed25519.pub"))
	assert.Contains(t, out, "private_key="+filepath.Join(dir, "id_ed25519"))
	assert.Contains(t, out, "fingerprint=SHA256:")
	assert.NotContains(t, out, "abandon", "a given mnemonic is never echoed")
}

func TestSSH_SameMnemonicSameKey(t *testing.T) {
	a := &app{prompter: noPrompts(t)}
	dirA, dirB := t.TempDir(), t.TempDir()

	_, _, err := execute(t, a, "ssh", "-t", "ed25519", "-p", "secret", "-m", testMnemonic, "-o", dirA, "-C", "c")
	require.NoError(t, err)
	_, _, err = execute(t, a, "ssh", "-t", "ed25519", "-p", "secret", "-m", testMnemonic, "-o", dirB, "-C", "c")
	require.NoError(t, err)

	assert.Equal(t, readKey(t, filepath.Join(dirA, "id_ed25519.pub")), readKey(t, filepath.Join(dirB, "id_ed25519.pub")))
}

func TestSSH_OutputName(t *testing.T) {
	dir := t.TempDir()
	a := &app{prompter: noPrompts(t)}

	_, _, err := execute(t, a, "ssh", "-t", "ed25519", "-N", "-m", testMnemonic, "-o", dir, "-f", "deploy")
	require.NoError(t, err)

	assert.FileExists(t, filepath.Join(dir, "deploy"))
	assert.FileExists(t, filepath.Join(dir, "deploy.pub"))
}

func TestSSH_GeneratedMnemonic_Regenerate(t *testing.T) {
	dir := t.TempDir()
	regenerations := 0
	mock := &ux.MockPrompter{
		ConfirmFunc: func(_ context.Context, prompt string, defaultYes bool) (bool, error) {
			assert.Equal(t, promptRegenerate, prompt)
			assert.False(t, defaultYes)
			regenerations++
			return regenerations == 1, nil
		},
		PasswordFunc: func(context.Context, string) (string, error) {
			return "typed", nil
		},
	}

	out, _, err := execute(t, &app{prompter: mock}, "ssh", "-t", "ed25519", "-o", dir, "--words", "24")
	require.NoError(t, err)

	assert.Equal(t, 2, regenerations)
	assert.Equal(t, 2, strings.Count(out, "mnemonic="))
	for _, line := range strings.Split(out, "\n") {
		if words, ok := strings.CutPrefix(line, "mnemonic="); ok {
			assert.Len(t, strings.Fields(words), 24)
		}
	}

	require.Len(t, mock.Calls, 3)
	assert.Equal(t, "Password", mock.Calls[2].Method)
	assert.Equal(t, promptPassphrase, mock.Calls[2].Prompt)
}

func TestSSH_OverwriteDeclined(t *testing.T) {
	dir := t.TempDir()
	pubPath := filepath.Join(dir, "id_ed25519.pub")
	require.NoError(t, os.WriteFile(pubPath, []byte("hi"), 0o644))

	mock := &ux.MockPrompter{
		ConfirmFunc: func(_ context.Context, prompt string, defaultYes bool) (bool, error) {
			assert.Equal(t, pubPath+" already exists, overwrite?", prompt)
			assert.False(t, defaultYes)
			return false, nil
		},
	}

	_, _, err := execute(t, &app{prompter: mock}, "ssh", "-t", "ed25519", "-N", "-m", testMnemonic, "-o", dir)
	require.ErrorIs(t, err, ErrAborted)

	assert.Equal(t, "hi", readKey(t, pubPath))
	assert.NoFileExists(t, filepath.Join(dir, "id_ed25519"))
}

func TestSSH_OverwriteAccepted(t *testing.T) {
	dir := t.TempDir()
	pubPath := filepath.Join(dir, "id_ed25519.pub")
	privPath := filepath.Join(dir, "id_ed25519")
	require.NoError(t, os.WriteFile(pubPath, []byte("old pub"), 0o644))
	require.NoError(t, os.WriteFile(privPath, []byte("old priv"), 0o600))

	mock := &ux.MockPrompter{
		ConfirmFunc: func(context.Context, string, bool) (bool, error) { return true, nil },
	}

	_, _, err := execute(t, &app{prompter: mock}, "ssh", "-t", "ed25519", "-N", "-m", testMnemonic, "-o", dir)
	require.NoError(t, err)

	assert.Len(t, mock.Calls, 2, "one confirmation per existing file")
	assert.Contains(t, readKey(t, pubPath), "ssh-ed25519")
	assert.Contains(t, readKey(t, privPath), "OPENSSH PRIVATE KEY")

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 2, "backup directory must be cleaned up")
}

func TestSSH_NonInteractive(t *testing.T) {
	a := &app{prompter: ux.NonInteractivePrompter{}}

	t.Run("passphrase required", func(t *testing.T) {
		_, _, err := execute(t, a, "ssh", "-t", "ed25519", "-m", testMnemonic, "-o", t.TempDir())
		assert.ErrorIs(t, err, ErrPassphraseRequired)
	})

	t.Run("existing file needs yes", func(t *testing.T) {
		dir := t.TempDir()
		require.NoError(t, os.WriteFile(filepath.Join(dir, "id_ed25519"), []byte("x"), 0o600))

		_, _, err := execute(t, a, "ssh", "-t", "ed25519", "-N", "-m", testMnemonic, "-o", dir)
		assert.ErrorIs(t, err, ErrKeyExists)
		assert.Equal(t, "x", readKey(t, filepath.Join(dir, "id_ed25519")))
	})

	t.Run("yes overwrites", func(t *testing.T) {
		dir := t.TempDir()
		require.NoError(t, os.WriteFile(filepath.Join(dir, "id_ed25519"), []byte("x"), 0o600))

		_, errOut, err := execute(t, a, "ssh", "-t", "ed25519", "-N", "-y", "-m", testMnemonic, "-o", dir)
		require.NoError(t, err)
		assert.Contains(t, errOut, "Overwriting")
		assert.Contains(t, readKey(t, filepath.Join(dir, "id_ed25519")), "OPENSSH PRIVATE KEY")
	})

	t.Run("generated mnemonic shown once", func(t *testing.T) {
		out, _, err := execute(t, a, "ssh", "-t", "ed25519", "-N", "-o", t.TempDir())
		require.NoError(t, err)
		assert.Equal(t, 1, strings.Count(out, "mnemonic="))
	})
}

func TestSSH_InvalidInput(t *testing.T) {
	a := &app{prompter: noPrompts(t)}

	tests := []struct {
		name string
		args []string
	}{
		{"missing key type", []string{"ssh", "-N", "-m", testMnemonic}},
		{"unknown key type", []string{"ssh", "-t", "rsa", "-N", "-m", testMnemonic}},
		{"bad mnemonic", []string{"ssh", "-t", "ed25519", "-N", "-m", "abandon abandon"}},
		{"bad word count", []string{"ssh", "-t", "ed25519", "-N", "--words", "18"}},
		{"passphrase with no-passphrase", []string{"ssh", "-t", "ed25519", "-N", "-p", "x", "-m", testMnemonic}},
		{"positional argument", []string{"ssh", "-t", "ed25519", "extra"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			_, _, err := execute(t, a, append(tt.args, "-o", dir)...)
			assert.Error(t, err)

			entries, rerr := os.ReadDir(dir)
			require.NoError(t, rerr)
			assert.Empty(t, entries)
		})
	}
}

func TestSSH_KeyTypeFromEnv(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("BIP39_KEYGEN_KEY_TYPE", "ed25519")
	t.Setenv("BIP39_KEYGEN_NO_PASSPHRASE", "true")

	_, _, err := execute(t, &app{prompter: noPrompts(t)}, "ssh", "-m", testMnemonic, "-o", dir)
	require.NoError(t, err)
	assert.FileExists(t, filepath.Join(dir, "id_ed25519"))
}

func TestSSH_ConfigFile(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(t.TempDir(), "config.yaml")
	body := "key_type: ed25519\nno_passphrase: true\noutput_name: from_file\noutput_dir: " + dir + "\n"
	require.NoError(t, os.WriteFile(cfgPath, []byte(body), 0o644))

	_, _, err := execute(t, &app{prompter: noPrompts(t)}, "--config", cfgPath, "ssh", "-m", testMnemonic)
	require.NoError(t, err)
	assert.FileExists(t, filepath.Join(dir, "from_file.pub"))

	// A flag beats the file.
	_, _, err = execute(t, &app{prompter: noPrompts(t)}, "--config", cfgPath, "ssh", "-m", testMnemonic, "-f", "from_flag")
	require.NoError(t, err)
	assert.FileExists(t, filepath.Join(dir, "from_flag.pub"))
}

func TestSSH_FailedWriteLeavesNoKey(t *testing.T) {
	dir := t.TempDir()
	// A directory in place of the private key makes the second write fail.
	require.NoError(t, os.Mkdir(filepath.Join(dir, "id_ed25519"), 0o755))

	faulted := false
	a := &app{
		prompter:     &ux.MockPrompter{ConfirmFunc: func(context.Context, string, bool) (bool, error) { return true, nil }},
		faultHandler: func(error) { faulted = true },
	}

	_, _, err := execute(t, a, "ssh", "-t", "ed25519", "-N", "-m", testMnemonic, "-o", dir)
	require.Error(t, err)
	assert.False(t, faulted)
	assert.NoFileExists(t, filepath.Join(dir, "id_ed25519.pub"))
}

func TestSSH_PromptError(t *testing.T) {
	cancelled := errors.New("cancelled by test")
	mock := &ux.MockPrompter{
		PasswordFunc: func(context.Context, string) (string, error) { return "", cancelled },
	}

	_, _, err := execute(t, &app{prompter: mock}, "ssh", "-t", "ed25519", "-m", testMnemonic, "-o", t.TempDir())
	assert.ErrorIs(t, err, cancelled)
}

func TestBackupRoot(t *testing.T) {
	dir := t.TempDir()
	assert.Equal(t, dir, backupRoot(dir))
	assert.Equal(t, "", backupRoot(filepath.Join(dir, "missing")))
}
