// Package config implements TOML configuration loading, validation, and
// path resolution for syncherd. Defaults are safe for a zero-config first
// run; a config file overrides them section by section.
package config

import "time"

// Config is the top-level structure parsed from a TOML file.
type Config struct {
	Sync     SyncConfig     `toml:"sync"`
	Triggers TriggersConfig `toml:"triggers"`
	Storage  StorageConfig  `toml:"storage"`
	Logging  LoggingConfig  `toml:"logging"`
}

// SyncConfig controls what syncs and how often.
type SyncConfig struct {
	// Stores lists the data store names to sync.
	Stores []string `toml:"stores"`
	// Interval is the periodic sync interval as a Go duration string.
	// The scheduler clamps it to the substrate's 15 minute floor.
	Interval string `toml:"interval"`

	// interval holds the parsed Interval, set by Validate.
	interval time.Duration
}

// ParsedInterval returns the periodic interval. Only valid after Validate.
func (s SyncConfig) ParsedInterval() time.Duration { return s.interval }

// TriggersConfig enables optional sync trigger sources. An empty value
// disables that source.
type TriggersConfig struct {
	// WatchDir is a local directory whose changes trigger a debounced sync.
	WatchDir string `toml:"watch_dir"`
	// WakeupURL is a websocket endpoint whose messages trigger a
	// debounced sync.
	WakeupURL string `toml:"wakeup_url"`
}

// StorageConfig locates persisted state.
type StorageConfig struct {
	// DBPath is the sync prefs SQLite database. Empty uses the platform
	// default under the user state directory.
	DBPath string `toml:"db_path"`
	// TokenPath is the cached credentials file. Empty uses the platform
	// default under the user config directory.
	TokenPath string `toml:"token_path"`
}

// LoggingConfig controls log output.
type LoggingConfig struct {
	// Level is one of debug, info, warn, error.
	Level string `toml:"level"`
	// Format is one of auto, text, json. Auto picks text on a terminal.
	Format string `toml:"format"`
}
