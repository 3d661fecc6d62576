// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/holomush/auther/internal/auth"
)

func newTokenCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue, check and revoke tokens",
	}

	var lifetime time.Duration
	issue := &cobra.Command{
		Use:   "issue EMAIL",
		Short: "Issue a token for an existing account",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withAuthenticator(cmd.Context(), func(au *auth.Authenticator) error {
				secret, err := au.GenerateToken(cmd.Context(), args[0], auth.WithLifetime(lifetime))
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), secret)
				return nil
			})
		},
	}
	issue.Flags().DurationVar(&lifetime, "lifetime", 0, "token lifetime (default: auth.token_lifetime)")

	cmd.AddCommand(
		issue,
		&cobra.Command{
			Use:   "check SECRET",
			Short: "Check a token and print its owner",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return a.withAuthenticator(cmd.Context(), func(au *auth.Authenticator) error {
					email, err := au.TokenOwner(cmd.Context(), args[0])
					if err != nil {
						return err
					}
					fmt.Fprintf(cmd.OutOrStdout(), "valid for %s\n", email)
					return nil
				})
			},
		},
		&cobra.Command{
			Use:   "revoke SECRET",
			Short: "Invalidate a token",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return a.withAuthenticator(cmd.Context(), func(au *auth.Authenticator) error {
					if err := au.InvalidateToken(cmd.Context(), args[0]); err != nil {
						return err
					}
					fmt.Fprintln(cmd.OutOrStdout(), "revoked")
					return nil
				})
			},
		},
	)
	return cmd
}

func newLoginCmd(a *app) *cobra.Command {
	var lifetime time.Duration
	cmd := &cobra.Command{
		Use:   "login EMAIL PASSWORD",
		Short: "Authenticate with a password and print a session token",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withAuthenticator(cmd.Context(), func(au *auth.Authenticator) error {
				secret, err := au.AuthenticatePassword(cmd.Context(), args[0], args[1], auth.WithLifetime(lifetime))
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), secret)
				return nil
			})
		},
	}
	cmd.Flags().DurationVar(&lifetime, "lifetime", 0, "session lifetime (default: auth.session_lifetime)")
	return cmd
}

func newPasswordCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "password",
		Short: "Change passwords",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "set SECRET NEWPASSWORD",
		Short: "Set a new password using a session or reset token",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withAuthenticator(cmd.Context(), func(au *auth.Authenticator) error {
				if err := au.UpdatePassword(cmd.Context(), args[0], args[1]); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "password updated")
				return nil
			})
		},
	})
	return cmd
}
