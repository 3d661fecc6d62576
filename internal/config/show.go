// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package config

import (
	"github.com/samber/oops"
	"gopkg.in/yaml.v3"
)

// YAML renders the effective configuration with durations as strings and the
// DSN password redacted. The output is valid input for Load.
func (c *Config) YAML() ([]byte, error) {
	view := map[string]any{
		"auth": map[string]any{
			"min_password_length":   c.Auth.MinPasswordLength,
			"denylist":              c.Auth.Denylist,
			"token_lifetime":        c.Auth.TokenLifetime.String(),
			"session_lifetime":      c.Auth.SessionLifetime.String(),
			"reset_lifetime":        c.Auth.ResetLifetime.String(),
			"confirmation_lifetime": c.Auth.ConfirmationLifetime.String(),
			"gc_interval":           c.Auth.GCInterval.String(),
			"max_token_attempts":    c.Auth.MaxTokenAttempts,
			"hasher":                c.Auth.Hasher,
		},
		"store": map[string]any{
			"driver":          c.Store.Driver,
			"dsn":             RedactDSN(c.Store.DSN),
			"connect_retries": c.Store.ConnectRetries,
			"connect_backoff": c.Store.ConnectBackoff.String(),
		},
		"log": map[string]any{
			"format": c.Log.Format,
			"level":  c.Log.Level,
		},
		"metrics": map[string]any{
			"addr": c.Metrics.Addr,
		},
	}

	out, err := yaml.Marshal(view)
	if err != nil {
		return nil, oops.Code("CONFIG_RENDER_FAILED").Wrap(err)
	}
	return out, nil
}
