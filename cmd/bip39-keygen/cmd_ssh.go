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
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/jinterlante1206/bip39-keygen/cmd/bip39-keygen/config"
	"github.com/jinterlante1206/bip39-keygen/cmd/bip39-keygen/internal/keygen"
	"github.com/jinterlante1206/bip39-keygen/pkg/ux"
	"github.com/spf13/cobra"
)

var (
	// ErrAborted is returned when the user declines to overwrite a key.
	ErrAborted = errors.New("aborted")

	// ErrPassphraseRequired is returned when no passphrase was given and
	// the session cannot prompt for one.
	ErrPassphraseRequired = errors.New("no passphrase given: use --passphrase or --no-passphrase")

	// ErrKeyExists is returned when a key file exists, the session cannot
	// prompt and --yes was not given.
	ErrKeyExists = errors.New("key file already exists: use --yes to overwrite")
)

// Prompt texts.
const (
	promptRegenerate = "Do you want to regenerate a new mnemonic?"
	promptPassphrase = "Enter passphrase (empty for no passphrase):"
)

// sshFlags holds the ssh subcommand flags. Only flags the user set override
// the config file and environment.
type sshFlags struct {
	keyType      string
	noPassphrase bool
	passphrase   string
	outputDir    string
	outputName   string
	mnemonic     string
	comment      string
	yes          bool
	words        int
}

func newSSHCmd(a *app, g *globalFlags) *cobra.Command {
	var f sshFlags

	cmd := &cobra.Command{
		Use:   "ssh",
		Short: "Generate an SSH key pair",
		Long: `Generate an SSH key pair from a BIP39 mnemonic.

Without --mnemonic a new 12 word mnemonic is generated and shown. Write it
down: together with the passphrase it is the only way to recreate the key.

Both key files are written in one transaction. If anything fails, existing
keys are restored and no half-written pair is left behind.`,
		Example: `  bip39-keygen ssh -t ed25519
  bip39-keygen ssh -t ed25519 -N -o ~/.ssh -f id_backup -m "word1 word2 ..."`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd, g, f.apply(cmd))
			if err != nil {
				return err
			}
			return a.runSSH(cmd.Context(), cfg)
		},
	}

	fl := cmd.Flags()
	fl.StringVarP(&f.keyType, "key-type", "t", "", "type of key to generate (ed25519)")
	fl.BoolVarP(&f.noPassphrase, "no-passphrase", "N", false, "use an empty passphrase")
	fl.StringVarP(&f.passphrase, "passphrase", "p", "", "passphrase; prompted for if empty")
	fl.StringVarP(&f.outputDir, "output-dir", "o", "~/.ssh", "directory in which to save the key")
	fl.StringVarP(&f.outputName, "output-name", "f", "", "file name of the key (default id_<key-type>)")
	fl.StringVarP(&f.mnemonic, "mnemonic", "m", "", "mnemonic words split by spaces; generated if empty")
	fl.StringVarP(&f.comment, "comment", "C", "", "key comment (default user@host)")
	fl.BoolVarP(&f.yes, "yes", "y", false, "overwrite existing key files without asking")
	fl.IntVar(&f.words, "words", keygen.DefaultWords, "length of a generated mnemonic (12 or 24)")

	return cmd
}

// apply returns a function copying the explicitly set flags into cfg.
func (f *sshFlags) apply(cmd *cobra.Command) func(*config.Config) {
	return func(cfg *config.Config) {
		flags := cmd.Flags()
		if flags.Changed("key-type") {
			cfg.KeyType = f.keyType
		}
		if flags.Changed("no-passphrase") {
			cfg.NoPassphrase = f.noPassphrase
		}
		if flags.Changed("passphrase") {
			cfg.Passphrase = f.passphrase
		}
		if flags.Changed("output-dir") {
			cfg.OutputDir = f.outputDir
		}
		if flags.Changed("output-name") {
			cfg.OutputName = f.outputName
		}
		if flags.Changed("mnemonic") {
			cfg.Mnemonic = f.mnemonic
		}
		if flags.Changed("comment") {
			cfg.Comment = f.comment
		}
		if flags.Changed("yes") {
			cfg.Yes = f.yes
		}
		if flags.Changed("words") {
			cfg.Words = f.words
		}
	}
}

// runSSH derives the key pair and writes it.
//
// Description:
//
//	Resolves the mnemonic and passphrase, derives the seed and key pair,
//	asks before replacing existing key files and then writes both files in
//	one transaction. Secrets stay in locked memory and are never logged.
func (a *app) runSSH(ctx context.Context, cfg *config.Config) (err error) {
	s, err := a.startSession(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := s.close(ctx); cerr != nil {
			err = errors.Join(err, cerr)
		}
	}()

	keyType, err := keygen.ParseKeyType(cfg.KeyType)
	if err != nil {
		return err
	}
	ux.Title(fmt.Sprintf("%s %s key from mnemonic", ux.IconKey, keyType))

	mnemonic, err := resolveMnemonic(ctx, s.prompter, cfg)
	if err != nil {
		return err
	}
	passphrase, err := resolvePassphrase(ctx, s.prompter, cfg)
	if err != nil {
		return err
	}
	s.logger.Debug("secrets resolved",
		"mnemonic_given", cfg.Mnemonic != "",
		"passphrase_set", passphrase != "",
	)

	seed, err := keygen.DeriveSeed(mnemonic, passphrase)
	if err != nil {
		return err
	}
	defer seed.Destroy()

	pair, err := keygen.DeriveKeyPair(seed, keyType, cfg.Comment)
	if err != nil {
		return err
	}
	defer pair.Destroy()

	paths := keygen.PathsFor(cfg.OutputDir, cfg.KeyName())
	if err := confirmOverwrite(ctx, s.prompter, paths, cfg.Yes); err != nil {
		return err
	}

	w := &keygen.Writer{
		BackupRoot:   backupRoot(cfg.OutputDir),
		Logger:       s.logger.Slog(),
		FaultHandler: a.onFault(s.logger),
		Tracing:      s.tracing,
	}
	if err := w.Write(ctx, pair, paths); err != nil {
		s.logger.Error("key pair not written", "error", err)
		return fmt.Errorf("failed to write key pair: %w", err)
	}

	s.logger.Info("key pair written",
		"public_key_path", paths.Public,
		"private_key_path", paths.Private,
		"fingerprint", pair.Fingerprint,
	)

	ux.Success("Key pair written")
	ux.Field("public_key", "Public key", paths.Public)
	ux.Field("private_key", "Private key", paths.Private)
	ux.Field("fingerprint", "Fingerprint", pair.Fingerprint)
	return nil
}

// resolveMnemonic parses the configured mnemonic or generates one. In an
// interactive session the user may regenerate until satisfied.
func resolveMnemonic(ctx context.Context, p ux.Prompter, cfg *config.Config) (string, error) {
	if cfg.Mnemonic != "" {
		return keygen.ParseMnemonic(cfg.Mnemonic)
	}

	if ux.GetPersonality().Level != ux.PersonalityMachine {
		ux.Info("No mnemonic provided, generating one for you")
	}
	for {
		mnemonic, err := keygen.GenerateMnemonic(cfg.Words)
		if err != nil {
			return "", err
		}

		ux.MnemonicBox(fmt.Sprintf("Your %d words mnemonic", cfg.Words), keygen.Words(mnemonic))
		ux.WarningBox("Keep it safe", "Please write it down and store it in a safe place")

		if !p.IsInteractive() {
			return mnemonic, nil
		}
		again, err := p.Confirm(ctx, promptRegenerate, false)
		if err != nil {
			return "", err
		}
		if !again {
			return mnemonic, nil
		}
	}
}

// resolvePassphrase returns the passphrase from the flags or the environment,
// or asks for it.
func resolvePassphrase(ctx context.Context, p ux.Prompter, cfg *config.Config) (string, error) {
	switch {
	case cfg.NoPassphrase:
		return "", nil
	case cfg.Passphrase != "":
		return cfg.Passphrase, nil
	case !p.IsInteractive():
		return "", ErrPassphraseRequired
	default:
		return p.Password(ctx, promptPassphrase)
	}
}

// confirmOverwrite asks once per existing key file. Declining aborts the run
// before anything is written.
func confirmOverwrite(ctx context.Context, p ux.Prompter, paths keygen.Paths, yes bool) error {
	existing, err := paths.Existing()
	if err != nil {
		return err
	}

	for _, path := range existing {
		if yes {
			ux.Warning(fmt.Sprintf("Overwriting %s", path))
			continue
		}
		if !p.IsInteractive() {
			return fmt.Errorf("%s: %w", path, ErrKeyExists)
		}
		ok, err := p.Confirm(ctx, fmt.Sprintf("%s already exists, overwrite?", path), false)
		if err != nil {
			return err
		}
		if !ok {
			return ErrAborted
		}
	}
	return nil
}

// backupRoot keeps displaced keys on the same filesystem as the new ones so
// they can be renamed back. A missing output directory has nothing to back
// up, and the default temporary directory is used.
func backupRoot(outputDir string) string {
	if info, err := os.Stat(outputDir); err == nil && info.IsDir() {
		return outputDir
	}
	return ""
}
