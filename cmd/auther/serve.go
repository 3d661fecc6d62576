// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/holomush/auther/internal/auth"
	"github.com/holomush/auther/internal/observability"
)

const shutdownTimeout = 10 * time.Second

func newServeMetricsCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve-metrics",
		Short: "Serve metrics and health checks until interrupted",
		Long: `Serve /metrics, /healthz/liveness and /healthz/readiness. Readiness pings
the configured store. Expired tokens are swept every auth.gc_interval.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return a.serveMetrics(ctx, cmd)
		},
	}
	cmd.Flags().String("metrics-addr", "127.0.0.1:9100", "metrics/health HTTP address")
	return cmd
}

func (a *app) serveMetrics(ctx context.Context, cmd *cobra.Command) error {
	st, closeStore, err := a.deps.OpenStore(ctx, a.cfg, a.logger)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := closeStore(); closeErr != nil {
			a.logger.Warn("failed to close store", "error", closeErr)
		}
	}()

	server := a.deps.ObservabilityServerFactory(a.cfg.Metrics.Addr, observability.StoreReadiness(st), a.logger)

	opts := []auth.Option{auth.WithLogger(a.logger), auth.WithMetrics(server.Metrics())}
	if a.deps.Clock != nil {
		opts = append(opts, auth.WithClock(a.deps.Clock))
	}
	au, err := auth.NewAuthenticator(st, a.cfg.Auth, opts...)
	if err != nil {
		return oops.With("operation", "create authenticator").Wrap(err)
	}

	errCh, err := server.Start()
	if err != nil {
		return oops.With("operation", "start observability server").Wrap(err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "serving metrics on %s\n", server.Addr())

	ticker := time.NewTicker(a.cfg.Auth.GCInterval)
	defer ticker.Stop()
	au.CollectGarbage(ctx)

	var serveErr error
loop:
	for {
		select {
		case <-ctx.Done():
			break loop
		case err, ok := <-errCh:
			if ok && err != nil {
				serveErr = oops.Code("OBSERVABILITY_FAILED").Wrap(err)
			}
			break loop
		case <-ticker.C:
			au.CollectGarbage(ctx)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Stop(shutdownCtx); err != nil {
		a.logger.Warn("failed to stop observability server", "error", err)
	}
	return serveErr
}
