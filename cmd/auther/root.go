// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package main

import (
	"context"
	"log/slog"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/holomush/auther/internal/auth"
	"github.com/holomush/auther/internal/config"
	"github.com/holomush/auther/internal/logging"
)

// app carries state shared by every subcommand of one invocation.
type app struct {
	deps       *Deps
	configFile string
	cfg        *config.Config
	logger     *slog.Logger
}

// NewRootCmd creates the root command. A nil deps uses the defaults.
func NewRootCmd(deps *Deps) *cobra.Command {
	a := &app{deps: deps.withDefaults()}

	cmd := &cobra.Command{
		Use:   "auther",
		Short: "Manage auther accounts and tokens",
		Long: `auther manages email/password accounts, confirmation secrets and
session tokens against a memory, SQLite or PostgreSQL store.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.setup(cmd)
		},
	}

	flags := cmd.PersistentFlags()
	flags.StringVar(&a.configFile, "config", "", "config file path (default: $XDG_CONFIG_HOME/auther/auther.yaml if present)")
	flags.String("log-format", "json", "log format (json or text)")
	flags.String("log-level", "info", "log level (debug, info, warn, error)")
	flags.String("store-driver", config.DriverSQLite, "credential store (memory, sqlite or postgres)")
	flags.String("dsn", "", "store DSN: SQLite path or postgres:// URL")
	flags.String("hasher", auth.HasherSHA256, "credential hasher (sha256 or argon2id)")

	cmd.AddCommand(
		newMigrateCmd(a),
		newUserCmd(a),
		newTokenCmd(a),
		newLoginCmd(a),
		newPasswordCmd(a),
		newDemoCmd(a),
		newServeMetricsCmd(a),
		newConfigCmd(a),
	)

	return cmd
}

// setup loads the configuration and the logger once flags are parsed.
func (a *app) setup(cmd *cobra.Command) error {
	if !a.deps.SkipDotEnv {
		config.LoadDotEnv()
	}

	file := a.configFile
	if file == "" {
		file = a.deps.DefaultConfigFile()
	}

	cfg, err := config.Load(config.Options{
		File:    file,
		Flags:   cmd.Flags(),
		Environ: a.deps.Environ,
	})
	if err != nil {
		return oops.With("operation", "load configuration").Wrap(err)
	}

	logger, err := logging.Setup(version, logging.Options{
		Format: cfg.Log.Format,
		Level:  cfg.Log.Level,
		Output: cmd.ErrOrStderr(),
	})
	if err != nil {
		return oops.With("operation", "set up logging").Wrap(err)
	}

	a.cfg = cfg
	a.logger = logger
	return nil
}

// withAuthenticator opens the configured store, runs fn against an
// Authenticator on it and closes the store.
func (a *app) withAuthenticator(ctx context.Context, fn func(*auth.Authenticator) error, opts ...auth.Option) error {
	st, closeStore, err := a.deps.OpenStore(ctx, a.cfg, a.logger)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := closeStore(); closeErr != nil {
			a.logger.Warn("failed to close store", "error", closeErr)
		}
	}()

	opts = append([]auth.Option{auth.WithLogger(a.logger)}, opts...)
	if a.deps.Clock != nil {
		opts = append(opts, auth.WithClock(a.deps.Clock))
	}

	authenticator, err := auth.NewAuthenticator(st, a.cfg.Auth, opts...)
	if err != nil {
		return oops.With("operation", "create authenticator").Wrap(err)
	}
	return fn(authenticator)
}
