// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package xdg resolves the XDG Base Directory locations auther uses for its
// config file and SQLite database.
package xdg

import (
	"os"
	"path/filepath"

	"github.com/samber/oops"
)

const appName = "auther"

// ConfigFileName is the config file looked up in ConfigDir.
const ConfigFileName = "auther.yaml"

// DatabaseFileName is the default SQLite database in DataDir.
const DatabaseFileName = "auther.db"

func baseDir(envVar string, homeRel ...string) (string, error) {
	if base := os.Getenv(envVar); base != "" {
		return filepath.Join(base, appName), nil
	}
	home := os.Getenv("HOME")
	if home == "" {
		return "", oops.Code("XDG_NO_HOME").
			With("env", envVar).
			Errorf("neither %s nor HOME is set", envVar)
	}
	return filepath.Join(append(append([]string{home}, homeRel...), appName)...), nil
}

// ConfigDir returns $XDG_CONFIG_HOME/auther, falling back to ~/.config/auther.
func ConfigDir() (string, error) {
	return baseDir("XDG_CONFIG_HOME", ".config")
}

// DataDir returns $XDG_DATA_HOME/auther, falling back to ~/.local/share/auther.
func DataDir() (string, error) {
	return baseDir("XDG_DATA_HOME", ".local", "share")
}

// ConfigFile returns the default config path when that file exists, and ""
// otherwise.
func ConfigFile() string {
	dir, err := ConfigDir()
	if err != nil {
		return ""
	}
	path := filepath.Join(dir, ConfigFileName)
	if info, err := os.Stat(path); err != nil || info.IsDir() {
		return ""
	}
	return path
}

// DatabasePath returns the default SQLite path. Without a usable home it
// falls back to the working directory.
func DatabasePath() string {
	dir, err := DataDir()
	if err != nil {
		return DatabaseFileName
	}
	return filepath.Join(dir, DatabaseFileName)
}

// EnsureDir creates path and its parents with 0700 permissions.
func EnsureDir(path string) error {
	if err := os.MkdirAll(path, 0o700); err != nil {
		return oops.Code("XDG_MKDIR_FAILED").With("path", path).Wrap(err)
	}
	return nil
}
