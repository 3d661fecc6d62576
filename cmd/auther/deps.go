// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/holomush/auther/internal/auth"
	"github.com/holomush/auther/internal/config"
	"github.com/holomush/auther/internal/observability"
	"github.com/holomush/auther/internal/store"
	"github.com/holomush/auther/internal/xdg"
)

// Deps contains injectable dependencies for the CLI.
// Nil fields use their default implementations.
type Deps struct {
	// OpenStore opens the configured credential store and returns a close
	// function. Default: openStore
	OpenStore func(ctx context.Context, cfg *config.Config, logger *slog.Logger) (auth.Store, func() error, error)

	// MigratorFactory creates a schema migrator for a postgres DSN.
	// Default: store.NewMigrator
	MigratorFactory func(dsn string) (Migrator, error)

	// ObservabilityServerFactory creates the metrics and health server.
	// Default: observability.NewServer
	ObservabilityServerFactory func(addr string, readiness observability.ReadinessChecker, logger *slog.Logger) ObservabilityServer

	// Environ lists the environment as KEY=value pairs. Default: os.Environ
	Environ func() []string

	// DefaultConfigFile returns the config path used when --config is not
	// given, or "". Default: xdg.ConfigFile
	DefaultConfigFile func() string

	// Clock overrides the authenticator clock when set.
	Clock auth.Clock

	// SkipDotEnv disables loading .env from the working directory.
	SkipDotEnv bool
}

// Migrator is the subset of store.Migrator the migrate command uses.
type Migrator interface {
	Up() error
	Down() error
	Version() (version uint, dirty bool, err error)
	Force(version int) error
	PendingMigrations() ([]uint, error)
	Close() error
}

// ObservabilityServer is the subset of observability.Server serve-metrics uses.
type ObservabilityServer interface {
	Start() (<-chan error, error)
	Stop(ctx context.Context) error
	Addr() string
	Metrics() *observability.Metrics
}

func (d *Deps) withDefaults() *Deps {
	out := Deps{}
	if d != nil {
		out = *d
	}
	if out.OpenStore == nil {
		out.OpenStore = openStore
	}
	if out.MigratorFactory == nil {
		out.MigratorFactory = func(dsn string) (Migrator, error) {
			return store.NewMigrator(dsn)
		}
	}
	if out.ObservabilityServerFactory == nil {
		out.ObservabilityServerFactory = func(addr string, readiness observability.ReadinessChecker, logger *slog.Logger) ObservabilityServer {
			return observability.NewServer(addr, readiness, logger)
		}
	}
	if out.DefaultConfigFile == nil {
		out.DefaultConfigFile = xdg.ConfigFile
	}
	if out.Environ == nil {
		out.Environ = os.Environ
	}
	return &out
}
