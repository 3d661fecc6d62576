// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package main

import (
	"context"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/samber/oops"

	"github.com/holomush/auther/internal/auth"
	"github.com/holomush/auther/internal/auth/memory"
	"github.com/holomush/auther/internal/auth/postgres"
	"github.com/holomush/auther/internal/auth/sqlite"
	"github.com/holomush/auther/internal/config"
	"github.com/holomush/auther/internal/store"
	"github.com/holomush/auther/internal/xdg"
)

func noClose() error { return nil }

// sqliteDir returns the directory holding a file-path DSN. In-memory and
// file: URI DSNs have none.
func sqliteDir(dsn string) (string, bool) {
	if dsn == ":memory:" || strings.HasPrefix(dsn, "file:") {
		return "", false
	}
	dir := filepath.Dir(dsn)
	return dir, dir != "."
}

// openStore opens the store selected by cfg.Store.Driver. The postgres driver
// retries the connection with backoff and expects the schema to be migrated.
func openStore(ctx context.Context, cfg *config.Config, logger *slog.Logger) (auth.Store, func() error, error) {
	switch cfg.Store.Driver {
	case config.DriverMemory:
		return memory.New(), noClose, nil

	case config.DriverSQLite:
		if dir, ok := sqliteDir(cfg.Store.DSN); ok {
			if err := xdg.EnsureDir(dir); err != nil {
				return nil, nil, err
			}
		}
		st, err := sqlite.Open(ctx, cfg.Store.DSN)
		if err != nil {
			return nil, nil, oops.With("driver", cfg.Store.Driver).Wrap(err)
		}
		return st, st.Close, nil

	case config.DriverPostgres:
		opts := cfg.ConnectOptions()
		opts.Logger = logger
		pool, err := store.Connect(ctx, cfg.Store.DSN, opts)
		if err != nil {
			return nil, nil, oops.With("driver", cfg.Store.Driver).Wrap(err)
		}
		return postgres.New(pool), func() error {
			pool.Close()
			return nil
		}, nil

	default:
		return nil, nil, oops.Code("CONFIG_INVALID").
			With("field", "store.driver").
			Errorf("unknown store driver %q", cfg.Store.Driver)
	}
}
