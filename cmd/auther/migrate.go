// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package main

import (
	"fmt"
	"strings"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/holomush/auther/internal/config"
	"github.com/holomush/auther/internal/store"
)

func newMigrateCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the PostgreSQL schema",
		Long: `Apply, roll back or inspect the auth schema migrations.
Only the postgres store driver uses migrations; SQLite creates its schema on open.`,
	}

	var yes bool
	down := &cobra.Command{
		Use:   "down",
		Short: "Roll back every migration, dropping all accounts and tokens",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !yes {
				return oops.Code("CONFIRMATION_REQUIRED").Errorf("migrate down drops all data; pass --yes to proceed")
			}
			return a.withMigrator(func(m Migrator) error {
				if err := m.Down(); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "all migrations rolled back")
				return nil
			})
		},
	}
	down.Flags().BoolVar(&yes, "yes", false, "confirm dropping all data")

	cmd.AddCommand(
		&cobra.Command{
			Use:   "up",
			Short: "Apply pending migrations",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return a.withMigrator(func(m Migrator) error {
					pending, err := m.PendingMigrations()
					if err != nil {
						return err
					}
					if len(pending) == 0 {
						fmt.Fprintln(cmd.OutOrStdout(), "schema is up to date")
						return nil
					}
					if err := m.Up(); err != nil {
						return err
					}
					for _, v := range pending {
						fmt.Fprintf(cmd.OutOrStdout(), "applied %s\n", migrationLabel(v))
					}
					return nil
				})
			},
		},
		down,
		&cobra.Command{
			Use:   "version",
			Short: "Show the applied schema version",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return a.withMigrator(func(m Migrator) error {
					v, dirty, err := m.Version()
					if err != nil {
						return err
					}
					out := fmt.Sprintf("version %d", v)
					if v > 0 {
						out = "version " + migrationLabel(v)
					}
					if dirty {
						out += " (dirty: run migrate force)"
					}
					fmt.Fprintln(cmd.OutOrStdout(), out)
					return nil
				})
			},
		},
		&cobra.Command{
			Use:   "force VERSION",
			Short: "Mark VERSION as applied without running it",
			Long:  `Record VERSION as the applied schema version. Use it to clear a dirty state after fixing a failed migration by hand.`,
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				version, err := parseForceVersion(args[0])
				if err != nil {
					return err
				}
				return a.withMigrator(func(m Migrator) error {
					if err := m.Force(version); err != nil {
						return err
					}
					fmt.Fprintf(cmd.OutOrStdout(), "forced version %d\n", version)
					return nil
				})
			},
		},
		&cobra.Command{
			Use:   "pending",
			Short: "List migrations not yet applied",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return a.withMigrator(func(m Migrator) error {
					pending, err := m.PendingMigrations()
					if err != nil {
						return err
					}
					for _, v := range pending {
						fmt.Fprintln(cmd.OutOrStdout(), migrationLabel(v))
					}
					return nil
				})
			},
		},
	)
	return cmd
}

func (a *app) withMigrator(fn func(Migrator) error) error {
	if a.cfg.Store.Driver != config.DriverPostgres {
		return oops.Code("MIGRATION_UNSUPPORTED").
			With("driver", a.cfg.Store.Driver).
			Errorf("migrations apply to the postgres driver only")
	}

	m, err := a.deps.MigratorFactory(a.cfg.Store.DSN)
	if err != nil {
		return oops.With("operation", "create migrator").Wrap(err)
	}
	defer func() {
		if closeErr := m.Close(); closeErr != nil {
			a.logger.Warn("failed to close migrator", "error", closeErr)
		}
	}()
	return fn(m)
}

// parseForceVersion reads a migration version argument. Parsing stops at the
// first non-digit.
func parseForceVersion(s string) (int, error) {
	var v int
	if _, err := fmt.Sscanf(strings.TrimSpace(s), "%d", &v); err != nil {
		return 0, oops.Code("INVALID_VERSION").With("input", s).Errorf("version must be an integer, got %q", s)
	}
	return v, nil
}

// migrationLabel renders a version with its migration name when known.
func migrationLabel(v uint) string {
	name, err := store.MigrationName(v)
	if err != nil || name == "" {
		return fmt.Sprintf("%d", v)
	}
	return name
}
