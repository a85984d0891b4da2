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
	"io"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/searchbench/internal/config"
	"github.com/AleutianAI/searchbench/internal/search"
	"github.com/AleutianAI/searchbench/pkg/logging"
)

// app is the state shared by every subcommand. PersistentPreRunE fills
// cfg and logger before any RunE executes.
type app struct {
	stdout io.Writer
	stderr io.Writer

	// Persistent flags.
	configPath string
	logLevel   string
	logJSON    bool
	logDir     string
	quiet      bool

	cfg        *config.Config
	configFile string
	logger     *logging.Logger
	registry   *search.Registry
}

// newRootCmd builds the command tree writing to the given streams.
func newRootCmd(stdout, stderr io.Writer) *cobra.Command {
	a := &app{
		stdout:   stdout,
		stderr:   stderr,
		registry: search.DefaultRegistry(),
	}

	root := &cobra.Command{
		Use:   "searchbench",
		Short: "Benchmark linear, binary and tree search strategies",
		Long: `searchbench builds datasets of increasing size, runs random-key and
worst-case lookups against each search strategy, and reports comparison
counts, lookup time and memory per size.`,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: a.setup,
	}
	root.SetOut(stdout)
	root.SetErr(stderr)

	pf := root.PersistentFlags()
	pf.StringVarP(&a.configPath, "config", "c", "", "config file (default ./"+config.DefaultFileName+" if present)")
	pf.StringVar(&a.logLevel, "log-level", "", "log level: debug, info, warn, error")
	pf.BoolVar(&a.logJSON, "log-json", false, "log JSON to stderr")
	pf.StringVar(&a.logDir, "log-dir", "", "also write JSON logs to this directory")
	pf.BoolVarP(&a.quiet, "quiet", "q", false, "disable stderr logging")

	root.AddCommand(
		newRunCmd(a),
		newStrategiesCmd(a),
		newHistoryCmd(a),
		newConfigCmd(a),
	)
	return root
}

// setup loads configuration and builds the logger.
func (a *app) setup(cmd *cobra.Command, _ []string) error {
	cfg, used, err := config.Discover(a.configPath)
	if err != nil {
		return err
	}

	flags := cmd.Flags()
	if flags.Changed("log-level") {
		cfg.Logging.Level = a.logLevel
	}
	if flags.Changed("log-json") {
		cfg.Logging.JSON = a.logJSON
	}
	if flags.Changed("log-dir") {
		cfg.Logging.Dir = a.logDir
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	lc := cfg.LoggerConfig("searchbench")
	lc.Quiet = a.quiet
	a.cfg = cfg
	a.configFile = used
	a.logger = logging.New(lc)

	if used != "" {
		a.logger.Debug("configuration loaded", "path", used)
	}
	return nil
}

// action wraps a RunE so the logger is closed whether or not fn fails.
func (a *app) action(fn func(cmd *cobra.Command, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		defer a.teardown()
		return fn(cmd, args)
	}
}

func (a *app) teardown() {
	if a.logger != nil {
		_ = a.logger.Close()
		a.logger = nil
	}
}
