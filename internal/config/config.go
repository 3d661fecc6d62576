// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package config loads the auther process configuration.
//
// Sources are layered, later ones winning: built-in defaults, the YAML config
// file, AUTHER_* environment variables, then command-line flags. A key such as
// auth.token_lifetime is read from AUTHER_AUTH_TOKEN_LIFETIME. The file is
// checked against Schema first, so unknown keys are rejected.
package config

import (
	"net/url"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env/v2"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/samber/oops"
	"github.com/spf13/pflag"

	"github.com/holomush/auther/internal/auth"
	"github.com/holomush/auther/internal/logging"
	"github.com/holomush/auther/internal/store"
	"github.com/holomush/auther/internal/xdg"
)

// EnvPrefix prefixes every environment variable the loader reads.
const EnvPrefix = "AUTHER_"

// Store drivers.
const (
	DriverMemory   = "memory"
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// Config is the full process configuration.
type Config struct {
	Auth    auth.Config   `koanf:"auth"`
	Store   StoreConfig   `koanf:"store"`
	Log     LogConfig     `koanf:"log"`
	Metrics MetricsConfig `koanf:"metrics"`
}

// StoreConfig selects and reaches the credential store.
type StoreConfig struct {
	Driver string `koanf:"driver" jsonschema:"enum=memory,enum=postgres,enum=sqlite"`
	// DSN is a postgres:// URL or a SQLite file path. Unused by the memory driver.
	DSN            string        `koanf:"dsn"`
	ConnectRetries uint64        `koanf:"connect_retries"`
	ConnectBackoff time.Duration `koanf:"connect_backoff"`
}

// LogConfig configures logging.Setup.
type LogConfig struct {
	Format string `koanf:"format" jsonschema:"enum=json,enum=text"`
	Level  string `koanf:"level" jsonschema:"enum=debug,enum=info,enum=warn,enum=warning,enum=error"`
}

// MetricsConfig configures the observability server.
type MetricsConfig struct {
	Addr string `koanf:"addr"`
}

// defaults lists every known key. Keys missing here cannot be set from the
// environment.
func defaults() map[string]any {
	a := auth.DefaultConfig()
	c := store.DefaultConnectOptions()
	return map[string]any{
		"auth.min_password_length":   a.MinPasswordLength,
		"auth.denylist":              a.Denylist,
		"auth.token_lifetime":        a.TokenLifetime,
		"auth.session_lifetime":      a.SessionLifetime,
		"auth.reset_lifetime":        a.ResetLifetime,
		"auth.confirmation_lifetime": a.ConfirmationLifetime,
		"auth.gc_interval":           a.GCInterval,
		"auth.max_token_attempts":    a.MaxTokenAttempts,
		"auth.hasher":                a.Hasher,
		"store.driver":               DriverSQLite,
		"store.dsn":                  xdg.DatabasePath(),
		"store.connect_retries":      c.MaxRetries,
		"store.connect_backoff":      c.BaseDelay,
		"log.format":                 "json",
		"log.level":                  "info",
		"metrics.addr":               "127.0.0.1:9100",
	}
}

// flagKeys maps command-line flag names to config keys. Flags not listed are
// not configuration.
var flagKeys = map[string]string{
	"log-format":   "log.format",
	"log-level":    "log.level",
	"store-driver": "store.driver",
	"dsn":          "store.dsn",
	"metrics-addr": "metrics.addr",
	"hasher":       "auth.hasher",
}

// Options tells Load where to look.
type Options struct {
	// File is the YAML config path. Empty skips the file layer.
	File string
	// Flags is the parsed flag set, or nil.
	Flags *pflag.FlagSet
	// Environ lists KEY=value pairs. Defaults to os.Environ.
	Environ func() []string
}

// LoadDotEnv loads .env files into the process environment. Missing files are
// ignored; variables already set are kept.
func LoadDotEnv(paths ...string) {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		_ = godotenv.Load(p) //nolint:errcheck // a missing .env is normal
	}
}

// Load layers the configuration sources and validates the result.
func Load(opts Options) (*Config, error) {
	k := koanf.New(".")
	for key, value := range defaults() {
		if err := k.Set(key, value); err != nil {
			return nil, oops.Code("CONFIG_LOAD_FAILED").With("key", key).Wrap(err)
		}
	}

	if opts.File != "" {
		provider := file.Provider(opts.File)
		data, err := provider.ReadBytes()
		if err != nil {
			return nil, oops.Code("CONFIG_LOAD_FAILED").With("file", opts.File).Wrap(err)
		}
		if err := ValidateYAML(data); err != nil {
			return nil, oops.With("file", opts.File).Wrap(err)
		}
		if err := k.Load(provider, yaml.Parser()); err != nil {
			return nil, oops.Code("CONFIG_LOAD_FAILED").With("file", opts.File).Wrap(err)
		}
	}

	if err := k.Load(envProvider(k.Keys(), opts.Environ), nil); err != nil {
		return nil, oops.Code("CONFIG_LOAD_FAILED").With("source", "env").Wrap(err)
	}

	if opts.Flags != nil {
		provider := posflag.ProviderWithFlag(opts.Flags, ".", k, func(f *pflag.Flag) (string, any) {
			key, ok := flagKeys[f.Name]
			if !ok {
				return "", nil
			}
			return key, posflag.FlagVal(opts.Flags, f)
		})
		if err := k.Load(provider, nil); err != nil {
			return nil, oops.Code("CONFIG_LOAD_FAILED").With("source", "flags").Wrap(err)
		}
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, oops.Code("CONFIG_INVALID").With("operation", "decode config").Wrap(err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// envProvider reads AUTHER_* variables for the known keys. Underscores are
// ambiguous (token_lifetime vs token.lifetime), so names are matched against
// keys rather than split.
func envProvider(keys []string, environ func() []string) *env.Env {
	names := make(map[string]string, len(keys))
	for _, key := range keys {
		names[EnvName(key)] = key
	}
	return env.Provider(".", env.Opt{
		Prefix:      EnvPrefix,
		EnvironFunc: environ,
		TransformFunc: func(name, value string) (string, any) {
			key, ok := names[name]
			if !ok {
				return "", nil
			}
			if key == "auth.denylist" {
				return key, splitList(value)
			}
			return key, value
		},
	})
}

// EnvName returns the environment variable read for key.
func EnvName(key string) string {
	return EnvPrefix + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
}

// splitList parses a comma-separated list. An empty string is an empty,
// non-nil list.
func splitList(s string) []string {
	out := []string{}
	for _, item := range strings.Split(s, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

// Validate checks every section.
func (c *Config) Validate() error {
	if err := c.Auth.Validate(); err != nil {
		return err
	}

	switch c.Store.Driver {
	case DriverMemory:
	case DriverPostgres, DriverSQLite:
		if c.Store.DSN == "" {
			return oops.Code("CONFIG_INVALID").
				With("field", "store.dsn").
				Errorf("store.dsn is required for the %s driver", c.Store.Driver)
		}
	default:
		return oops.Code("CONFIG_INVALID").
			With("field", "store.driver").
			Errorf("store.driver must be memory, postgres or sqlite, got %q", c.Store.Driver)
	}

	if c.Log.Format != "json" && c.Log.Format != "text" {
		return oops.Code("CONFIG_INVALID").
			With("field", "log.format").
			Errorf("log.format must be 'json' or 'text', got %q", c.Log.Format)
	}
	if _, err := logging.ParseLevel(c.Log.Level); err != nil {
		return oops.Code("CONFIG_INVALID").
			With("field", "log.level").
			Errorf("log.level must be debug, info, warn or error, got %q", c.Log.Level)
	}
	return nil
}

// ConnectOptions returns the retry policy for store.Connect.
func (c *Config) ConnectOptions() store.ConnectOptions {
	opts := store.DefaultConnectOptions()
	opts.MaxRetries = c.Store.ConnectRetries
	if c.Store.ConnectBackoff > 0 {
		opts.BaseDelay = c.Store.ConnectBackoff
	}
	return opts
}

// RedactDSN hides the password of a URL-style DSN. Other DSNs are returned
// unchanged.
func RedactDSN(dsn string) string {
	u, err := url.Parse(dsn)
	if err != nil || u.Scheme == "" || u.User == nil {
		return dsn
	}
	return u.Redacted()
}
