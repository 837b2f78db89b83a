// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package config

import (
	"os"
	"os/user"
)

// EnvPrefix is the prefix shared by every environment override,
// e.g. BIP39_KEYGEN_OUTPUT_DIR.
const EnvPrefix = "BIP39_KEYGEN"

// Config is the merged configuration of one bip39-keygen run.
//
// Secrets (Mnemonic, Passphrase) are never read from or written to the
// YAML file; they can only come from flags, the environment or a prompt.
type Config struct {
	// Key generation
	KeyType      string `yaml:"key_type" split_words:"true" validate:"required,oneof=ed25519"`
	OutputDir    string `yaml:"output_dir" split_words:"true" validate:"required"`
	OutputName   string `yaml:"output_name,omitempty" split_words:"true" validate:"omitempty,excludesall=/\\"`
	Comment      string `yaml:"comment,omitempty" split_words:"true"`
	Words        int    `yaml:"words" split_words:"true" validate:"oneof=12 24"`
	NoPassphrase bool   `yaml:"no_passphrase" split_words:"true"`
	Yes          bool   `yaml:"yes" split_words:"true"`

	// Secrets
	Mnemonic   string `yaml:"-" split_words:"true"`
	Passphrase string `yaml:"-" split_words:"true" validate:"excluded_if=NoPassphrase true"`

	// Output and logging
	Output   string `yaml:"output,omitempty" split_words:"true" validate:"omitempty,oneof=standard minimal machine"`
	LogLevel string `yaml:"log_level" split_words:"true" validate:"oneof=debug info warn warning error"`
	LogDir   string `yaml:"log_dir,omitempty" split_words:"true"`

	// Telemetry
	TraceExporter  string `yaml:"trace_exporter" split_words:"true" validate:"oneof=none stdout otlp"`
	MetricExporter string `yaml:"metric_exporter" split_words:"true" validate:"oneof=none stdout prometheus"`
	OTLPEndpoint   string `yaml:"otlp_endpoint" split_words:"true" validate:"required_if=TraceExporter otlp"`
	MetricsFile    string `yaml:"metrics_file,omitempty" split_words:"true" validate:"required_if=MetricExporter prometheus"`
}

// DefaultConfig returns the built-in defaults, the lowest configuration layer.
// KeyType has no default: it must come from the file, the environment or -t.
func DefaultConfig() Config {
	return Config{
		OutputDir:      "~/.ssh",
		Comment:        DefaultComment(),
		Words:          12,
		LogLevel:       "warn",
		TraceExporter:  "none",
		MetricExporter: "none",
		OTLPEndpoint:   "localhost:4317",
	}
}

// KeyName returns the base file name of the private key.
func (c Config) KeyName() string {
	if c.OutputName != "" {
		return c.OutputName
	}
	return "id_" + c.KeyType
}

// DefaultComment returns "user@host" for the current session. The host part
// falls back to "localhost" when the hostname cannot be read.
func DefaultComment() string {
	name := "user"
	if u, err := user.Current(); err == nil && u.Username != "" {
		name = u.Username
	}
	host, err := os.Hostname()
	if err != nil || host == "" {
		host = "localhost"
	}
	return name + "@" + host
}
