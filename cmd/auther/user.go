// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/holomush/auther/internal/auth"
)

func newUserCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "user",
		Short: "Manage accounts",
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "create EMAIL PASSWORD",
			Short: "Create an account and print its confirmation secret",
			Args:  cobra.ExactArgs(2),
			RunE: func(cmd *cobra.Command, args []string) error {
				return a.withAuthenticator(cmd.Context(), func(au *auth.Authenticator) error {
					secret, err := au.CreateUser(cmd.Context(), args[0], args[1])
					if err != nil {
						return err
					}
					fmt.Fprintln(cmd.OutOrStdout(), secret)
					return nil
				})
			},
		},
		&cobra.Command{
			Use:   "confirm EMAIL SECRET",
			Short: "Confirm an account with its confirmation secret",
			Args:  cobra.ExactArgs(2),
			RunE: func(cmd *cobra.Command, args []string) error {
				return a.withAuthenticator(cmd.Context(), func(au *auth.Authenticator) error {
					already, err := au.ConfirmEmail(cmd.Context(), args[1], args[0])
					if err != nil {
						return err
					}
					if already {
						fmt.Fprintln(cmd.OutOrStdout(), "already confirmed")
					} else {
						fmt.Fprintln(cmd.OutOrStdout(), "confirmed")
					}
					return nil
				})
			},
		},
		&cobra.Command{
			Use:   "show EMAIL",
			Short: "Show whether an account exists and is confirmed",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return a.withAuthenticator(cmd.Context(), func(au *auth.Authenticator) error {
					exists, confirmed, err := au.IsUser(cmd.Context(), args[0])
					if err != nil {
						return err
					}
					fmt.Fprintf(cmd.OutOrStdout(), "exists: %t\nconfirmed: %t\n", exists, confirmed)
					return nil
				})
			},
		},
		&cobra.Command{
			Use:   "delete EMAIL",
			Short: "Delete an account and its tokens",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return a.withAuthenticator(cmd.Context(), func(au *auth.Authenticator) error {
					existed, err := au.DeleteUser(cmd.Context(), args[0])
					if err != nil {
						return err
					}
					if existed {
						fmt.Fprintln(cmd.OutOrStdout(), "deleted")
					} else {
						fmt.Fprintln(cmd.OutOrStdout(), "no such user")
					}
					return nil
				})
			},
		},
		&cobra.Command{
			Use:   "reset EMAIL",
			Short: "Issue a password reset token",
			Long: `Issue a password reset token for EMAIL and print it. Nothing is printed
when no account has that email.`,
			Args: cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return a.withAuthenticator(cmd.Context(), func(au *auth.Authenticator) error {
					secret, err := au.RequestPasswordReset(cmd.Context(), args[0])
					if err != nil {
						return err
					}
					if secret == "" {
						a.logger.Info("password reset requested for unknown email")
						return nil
					}
					fmt.Fprintln(cmd.OutOrStdout(), secret)
					return nil
				})
			},
		},
	)
	return cmd
}
