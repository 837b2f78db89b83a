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

	"github.com/awnumar/memguard"
	"github.com/jinterlante1206/bip39-keygen/cmd/bip39-keygen/config"
	"github.com/jinterlante1206/bip39-keygen/pkg/logging"
	"github.com/jinterlante1206/bip39-keygen/pkg/telemetry"
	"github.com/jinterlante1206/bip39-keygen/pkg/transaction"
	"github.com/jinterlante1206/bip39-keygen/pkg/ux"
	"github.com/spf13/cobra"
)

// Exit codes.
const (
	exitOK    = 0
	exitError = 1
	exitFault = 2
)

// app carries the collaborators a command run needs. Tests replace them.
type app struct {
	// prompter overrides the TTY-based choice when set.
	prompter ux.Prompter

	// faultHandler overrides the exit-on-fault handler when set.
	faultHandler func(error)
}

func newApp() *app {
	return &app{}
}

// run executes the command line and returns the process exit code.
func run(a *app, args []string) int {
	root := newRootCmd(a)
	root.SetArgs(args)

	if err := root.Execute(); err != nil {
		ux.Error(err.Error())
		return exitError
	}
	return exitOK
}

// globalFlags are shared by every subcommand.
type globalFlags struct {
	configPath     string
	verbose        bool
	output         string
	logDir         string
	traceExporter  string
	metricExporter string
	otlpEndpoint   string
	metricsFile    string
}

func newRootCmd(a *app) *cobra.Command {
	var g globalFlags

	root := &cobra.Command{
		Use:   "bip39-keygen",
		Short: "Derive SSH keys from a BIP39 mnemonic",
		Long: `bip39-keygen derives key pairs deterministically from a BIP39 mnemonic
and passphrase, so a lost key can be recreated from the words alone.`,
		Version:       versionString(),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	pf := root.PersistentFlags()
	pf.StringVar(&g.configPath, "config", "", "config file (default $XDG_CONFIG_HOME/bip39-keygen/config.yaml)")
	pf.BoolVarP(&g.verbose, "verbose", "v", false, "enable debug logging")
	pf.StringVar(&g.output, "output", "", "output style: standard, minimal or machine")
	pf.StringVar(&g.logDir, "log-dir", "", "also write JSON logs to this directory")
	pf.StringVar(&g.traceExporter, "trace-exporter", "none", "trace exporter: none, stdout or otlp")
	pf.StringVar(&g.metricExporter, "metric-exporter", "none", "metric exporter: none, stdout or prometheus")
	pf.StringVar(&g.otlpEndpoint, "otlp-endpoint", "localhost:4317", "OTLP/gRPC endpoint for traces")
	pf.StringVar(&g.metricsFile, "metrics-file", "", "prometheus textfile written on exit")

	root.AddCommand(newSSHCmd(a, &g))
	root.AddCommand(newConfigCmd(&g))
	return root
}

// loadConfig merges the config file, the environment and the flags that
// were set explicitly on cmd.
func loadConfig(cmd *cobra.Command, g *globalFlags, apply func(*config.Config)) (*config.Config, error) {
	cfg, err := config.Load(g.configPath)
	if err != nil {
		return nil, err
	}

	flags := cmd.Flags()
	if g.verbose {
		cfg.LogLevel = "debug"
	}
	if flags.Changed("output") {
		cfg.Output = g.output
	}
	if flags.Changed("log-dir") {
		cfg.LogDir = g.logDir
	}
	if flags.Changed("trace-exporter") {
		cfg.TraceExporter = g.traceExporter
	}
	if flags.Changed("metric-exporter") {
		cfg.MetricExporter = g.metricExporter
	}
	if flags.Changed("otlp-endpoint") {
		cfg.OTLPEndpoint = g.otlpEndpoint
	}
	if flags.Changed("metrics-file") {
		cfg.MetricsFile = g.metricsFile
	}
	if apply != nil {
		apply(cfg)
	}

	if err := cfg.Finalize(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// session is everything a command needs once the configuration is known.
type session struct {
	cfg      *config.Config
	logger   *logging.Logger
	prompter ux.Prompter
	tracing  bool
	shutdown func(context.Context) error
}

// startSession sets up output, logging and telemetry for cfg.
func (a *app) startSession(ctx context.Context, cfg *config.Config) (*session, error) {
	ux.InitPersonality(cfg.Output)

	level, err := logging.ParseLevel(cfg.LogLevel)
	if err != nil {
		return nil, err
	}
	logger := logging.New(logging.Config{
		Level:   level,
		LogDir:  cfg.LogDir,
		Service: "bip39-keygen",
	})

	tcfg := telemetry.DefaultConfig()
	tcfg.ServiceVersion = versionString()
	tcfg.TraceExporter = cfg.TraceExporter
	tcfg.MetricExporter = cfg.MetricExporter
	tcfg.OTLPEndpoint = cfg.OTLPEndpoint
	tcfg.MetricsFile = cfg.MetricsFile

	shutdown, err := telemetry.Init(ctx, tcfg)
	if err != nil {
		_ = logger.Close()
		return nil, fmt.Errorf("failed to start telemetry: %w", err)
	}
	transaction.SetMetricsEnabled(cfg.MetricExporter != telemetry.ExporterNone)

	prompter := a.prompter
	if prompter == nil {
		if ux.IsInteractive() {
			prompter = ux.NewInteractivePrompter()
		} else {
			prompter = ux.NonInteractivePrompter{}
		}
	}

	logger.Debug("session started",
		"version", versionString(),
		"interactive", prompter.IsInteractive(),
		"trace_exporter", cfg.TraceExporter,
		"metric_exporter", cfg.MetricExporter,
	)

	return &session{
		cfg:      cfg,
		logger:   logger,
		prompter: prompter,
		tracing:  cfg.TraceExporter != telemetry.ExporterNone,
		shutdown: shutdown,
	}, nil
}

// close flushes telemetry and closes the log file.
func (s *session) close(ctx context.Context) error {
	var errs []error
	if err := s.shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("failed to flush telemetry: %w", err))
	}
	if err := s.logger.Close(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// onFault returns the handler for a rollback that could not be completed.
// The displaced files are still in the backup directory, so it is named
// before the process exits.
func (a *app) onFault(logger *logging.Logger) func(error) {
	if a.faultHandler != nil {
		return a.faultHandler
	}
	return func(err error) {
		logger.Error("rollback failed", "error", err)

		var fault *transaction.FaultError
		if errors.As(err, &fault) {
			ux.Error(fmt.Sprintf("Could not undo the changes. Your previous files are in %s", fault.BackupDir))
		} else {
			ux.Error(err.Error())
		}
		_ = logger.Close()
		memguard.SafeExit(exitFault)
	}
}
