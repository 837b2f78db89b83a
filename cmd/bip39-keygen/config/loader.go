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
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

// configValidate is shared by every Validate call.
var configValidate = validator.New()

// DefaultPath returns $XDG_CONFIG_HOME/bip39-keygen/config.yaml, or the
// platform equivalent from os.UserConfigDir.
func DefaultPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("could not find the user's config directory: %w", err)
	}
	return filepath.Join(dir, "bip39-keygen", "config.yaml"), nil
}

// Load builds a Config from the defaults, the YAML file at path and the
// environment, in that order.
//
// Description:
//
//	A missing file is not an error. An empty path means DefaultPath().
//	Command-line flags are applied by the caller afterwards, followed by
//	Finalize.
//
// Inputs:
//
//	path - YAML file to read, or "" for the default location.
//
// Outputs:
//
//	*Config - The merged configuration (not yet validated).
//	error - Non-nil if the file cannot be read or parsed, or an environment
//	        variable has an invalid value.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path == "" {
		var err error
		if path, err = DefaultPath(); err != nil {
			return nil, err
		}
	}

	if err := loadFile(path, &cfg); err != nil {
		return nil, err
	}

	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("failed to read the environment overrides: %w", err)
	}

	return &cfg, nil
}

func loadFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read the config file: %w", err)
	}

	// Secrets are tagged yaml:"-", so a file cannot set them.
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("failed to parse the config file %s: %w", path, err)
	}
	return nil
}

// WriteDefault writes the default configuration to path, creating the
// parent directory. An existing file is left untouched.
func WriteDefault(path string) (bool, error) {
	if _, err := os.Stat(path); err == nil {
		return false, nil
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return false, fmt.Errorf("failed to create the config directory: %w", err)
	}

	cfg := DefaultConfig()
	cfg.KeyType = "ed25519"
	// The comment depends on the machine that runs the tool.
	cfg.Comment = ""
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return false, fmt.Errorf("failed to encode the default config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return false, fmt.Errorf("failed to write the config file: %w", err)
	}
	return true, nil
}

// Finalize expands "~" in path fields, fills the comment default and
// validates the result.
func (c *Config) Finalize() error {
	var err error
	if c.OutputDir, err = ExpandPath(c.OutputDir); err != nil {
		return err
	}
	if c.LogDir, err = ExpandPath(c.LogDir); err != nil {
		return err
	}
	if c.MetricsFile, err = ExpandPath(c.MetricsFile); err != nil {
		return err
	}
	if c.Comment == "" {
		c.Comment = DefaultComment()
	}
	return c.Validate()
}

// Validate checks the field constraints.
func (c *Config) Validate() error {
	if err := configValidate.Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}

// ExpandPath replaces a leading "~" with the user's home directory.
func ExpandPath(path string) (string, error) {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("could not find the user's home directory: %w", err)
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~")), nil
}
