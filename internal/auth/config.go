// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package auth

import (
	"time"

	"github.com/samber/oops"
)

// Policy defaults.
const (
	DefaultMinPasswordLength    = 6
	DefaultTokenLifetime        = 60 * time.Minute
	DefaultSessionLifetime      = 30 * time.Minute
	DefaultResetLifetime        = 60 * time.Minute
	DefaultConfirmationLifetime = 7 * 24 * time.Hour
	DefaultGCInterval           = 30 * time.Minute
	DefaultMaxTokenAttempts     = 10
)

// DefaultDenylist returns the passwords rejected by the default policy.
func DefaultDenylist() []string {
	return []string{"password", "123456789"}
}

// Config is the per-Authenticator policy. It is copied at construction and
// never mutated afterwards.
type Config struct {
	// MinPasswordLength is the minimum password length in characters.
	MinPasswordLength int `koanf:"min_password_length" yaml:"min_password_length" jsonschema:"minimum=1"`

	// Denylist holds forbidden passwords (exact, case-sensitive).
	Denylist []string `koanf:"denylist" yaml:"denylist"`

	// TokenLifetime is the GenerateToken default lifetime.
	TokenLifetime time.Duration `koanf:"token_lifetime" yaml:"token_lifetime"`

	// SessionLifetime is the AuthenticatePassword default lifetime.
	SessionLifetime time.Duration `koanf:"session_lifetime" yaml:"session_lifetime"`

	// ResetLifetime is the lifetime of tokens from RequestPasswordReset.
	ResetLifetime time.Duration `koanf:"reset_lifetime" yaml:"reset_lifetime"`

	// ConfirmationLifetime bounds how long after account creation the
	// confirmation secret is accepted.
	ConfirmationLifetime time.Duration `koanf:"confirmation_lifetime" yaml:"confirmation_lifetime"`

	// GCInterval is the minimum time between two expired-token sweeps.
	GCInterval time.Duration `koanf:"gc_interval" yaml:"gc_interval"`

	// MaxTokenAttempts bounds the retries when a fresh token collides.
	MaxTokenAttempts int `koanf:"max_token_attempts" yaml:"max_token_attempts" jsonschema:"minimum=1"`

	// Hasher names the credential hasher: "sha256" or "argon2id".
	Hasher string `koanf:"hasher" yaml:"hasher" jsonschema:"enum=sha256,enum=argon2id"`
}

// DefaultConfig returns the default policy.
func DefaultConfig() Config {
	return Config{
		MinPasswordLength:    DefaultMinPasswordLength,
		Denylist:             DefaultDenylist(),
		TokenLifetime:        DefaultTokenLifetime,
		SessionLifetime:      DefaultSessionLifetime,
		ResetLifetime:        DefaultResetLifetime,
		ConfirmationLifetime: DefaultConfirmationLifetime,
		GCInterval:           DefaultGCInterval,
		MaxTokenAttempts:     DefaultMaxTokenAttempts,
		Hasher:               HasherSHA256,
	}
}

// Validate rejects configurations that would weaken or disable a check.
// A zero value is never treated as "use the default".
func (c Config) Validate() error {
	positiveDurations := []struct {
		name  string
		value time.Duration
	}{
		{"token_lifetime", c.TokenLifetime},
		{"session_lifetime", c.SessionLifetime},
		{"reset_lifetime", c.ResetLifetime},
		{"confirmation_lifetime", c.ConfirmationLifetime},
		{"gc_interval", c.GCInterval},
	}
	for _, d := range positiveDurations {
		if d.value <= 0 {
			return oops.Code("CONFIG_INVALID").
				With("field", d.name).
				With("value", d.value.String()).
				Errorf("%s must be positive", d.name)
		}
	}

	if c.MinPasswordLength < 1 {
		return oops.Code("CONFIG_INVALID").
			With("field", "min_password_length").
			Errorf("min_password_length must be at least 1, got %d", c.MinPasswordLength)
	}
	if c.MaxTokenAttempts < 1 {
		return oops.Code("CONFIG_INVALID").
			With("field", "max_token_attempts").
			Errorf("max_token_attempts must be at least 1, got %d", c.MaxTokenAttempts)
	}
	if c.Denylist == nil {
		return oops.Code("CONFIG_INVALID").
			With("field", "denylist").
			Errorf("denylist must be set; use an empty list to allow every password")
	}
	if _, err := HasherByName(c.Hasher); err != nil {
		return err
	}
	return nil
}

// policy returns the password policy view of the config.
func (c Config) policy() PasswordPolicy {
	return PasswordPolicy{
		MinLength: c.MinPasswordLength,
		Denylist:  c.Denylist,
	}
}

// clone returns a deep copy so later mutation of the caller's slice cannot
// leak into a running Authenticator.
func (c Config) clone() Config {
	c.Denylist = append([]string{}, c.Denylist...)
	return c
}
