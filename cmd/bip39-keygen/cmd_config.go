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
	"fmt"

	"github.com/jinterlante1206/bip39-keygen/cmd/bip39-keygen/config"
	"github.com/jinterlante1206/bip39-keygen/pkg/ux"
	"github.com/spf13/cobra"
)

func newConfigCmd(g *globalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect or create the config file",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "path",
		Short: "Print the config file location",
		Args:  cobra.NoArgs,
		RunE: func(*cobra.Command, []string) error {
			path, err := configPath(g)
			if err != nil {
				return err
			}
			ux.Field("config", "Config file", path)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "init",
		Short: "Write a config file with the default settings",
		Args:  cobra.NoArgs,
		RunE: func(*cobra.Command, []string) error {
			path, err := configPath(g)
			if err != nil {
				return err
			}
			created, err := config.WriteDefault(path)
			if err != nil {
				return err
			}
			if !created {
				ux.Warning(fmt.Sprintf("%s already exists, left unchanged", path))
				return nil
			}
			ux.Success(fmt.Sprintf("Config written to %s", path))
			return nil
		},
	})

	return cmd
}

func configPath(g *globalFlags) (string, error) {
	if g.configPath != "" {
		return config.ExpandPath(g.configPath)
	}
	return config.DefaultPath()
}
