package config

import (
	"os"
	"path/filepath"
)

// appDirName is the per-application directory under the XDG base dirs.
const appDirName = "syncherd"

// DefaultConfigPath returns the platform default config file location,
// honoring XDG_CONFIG_HOME.
func DefaultConfigPath() string {
	return filepath.Join(userConfigDir(), appDirName, "config.toml")
}

// DBPath resolves the sync prefs database path: the configured value, or
// the platform default under the user state directory.
func (c *Config) DBPath() string {
	if c.Storage.DBPath != "" {
		return c.Storage.DBPath
	}

	return filepath.Join(userStateDir(), appDirName, "prefs.db")
}

// TokenPath resolves the cached credentials path: the configured value,
// or the platform default under the user config directory.
func (c *Config) TokenPath() string {
	if c.Storage.TokenPath != "" {
		return c.Storage.TokenPath
	}

	return filepath.Join(userConfigDir(), appDirName, "token.json")
}

// userConfigDir returns XDG_CONFIG_HOME or ~/.config.
func userConfigDir() string {
	if dir, err := os.UserConfigDir(); err == nil {
		return dir
	}

	home, _ := os.UserHomeDir()

	return filepath.Join(home, ".config")
}

// userStateDir returns XDG_STATE_HOME or ~/.local/state.
func userStateDir() string {
	if dir := os.Getenv("XDG_STATE_HOME"); dir != "" {
		return dir
	}

	home, _ := os.UserHomeDir()

	return filepath.Join(home, ".local", "state")
}
