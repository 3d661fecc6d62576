// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package main

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/holomush/auther/internal/auth"
	"github.com/holomush/auther/internal/auth/memory"
)

func newDemoCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "demo",
		Short: "Walk through the account lifecycle against an in-memory store",
		Long: `Create an account, confirm it twice, log in, check the session token,
revoke it and check it again. The configured store is not touched.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			opts := []auth.Option{auth.WithLogger(a.logger)}
			if a.deps.Clock != nil {
				opts = append(opts, auth.WithClock(a.deps.Clock))
			}
			au, err := auth.NewAuthenticator(memory.New(), a.cfg.Auth, opts...)
			if err != nil {
				return oops.With("operation", "create authenticator").Wrap(err)
			}
			return runDemo(cmd.Context(), au, cmd.OutOrStdout())
		},
	}
}

// runDemo prints one line per step and fails on the first unexpected result.
func runDemo(ctx context.Context, au *auth.Authenticator, out io.Writer) error {
	const (
		email    = "a@x.com"
		password = "longenoughpw"
	)
	step := func(format string, args ...any) {
		fmt.Fprintf(out, format+"\n", args...)
	}

	confirmation, err := au.CreateUser(ctx, email, password)
	if err != nil {
		return err
	}
	step("create user %s: ok", email)

	for _, want := range []bool{false, true} {
		already, err := au.ConfirmEmail(ctx, confirmation, email)
		if err != nil {
			return err
		}
		if already != want {
			return oops.Code("DEMO_FAILED").Errorf("confirm email: already confirmed = %t, want %t", already, want)
		}
		step("confirm email: ok (already confirmed: %t)", already)
	}

	session, err := au.AuthenticatePassword(ctx, email, password)
	if err != nil {
		return err
	}
	step("authenticate password: ok")

	if err := au.AuthenticateToken(ctx, session); err != nil {
		return err
	}
	step("authenticate token: ok")

	if err := au.InvalidateToken(ctx, session); err != nil {
		return err
	}
	step("invalidate token: ok")

	err = au.AuthenticateToken(ctx, session)
	if !errors.Is(err, auth.ErrInvalidToken) {
		return oops.Code("DEMO_FAILED").Errorf("authenticate revoked token: got %v, want invalid token", err)
	}
	step("authenticate revoked token: rejected as invalid token")
	return nil
}
