package config

import (
	"fmt"
	"time"
)

// validLogLevels and validLogFormats bound the logging options.
var (
	validLogLevels  = map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	validLogFormats = map[string]bool{"auto": true, "text": true, "json": true}
)

// Validate checks cross-field constraints and parses duration strings.
// Must be called before ParsedInterval is used.
func Validate(cfg *Config) error {
	if len(cfg.Sync.Stores) == 0 {
		return fmt.Errorf("sync.stores must list at least one store")
	}

	seen := make(map[string]bool, len(cfg.Sync.Stores))

	for _, s := range cfg.Sync.Stores {
		if s == "" {
			return fmt.Errorf("sync.stores contains an empty name")
		}

		if seen[s] {
			return fmt.Errorf("sync.stores lists %q twice", s)
		}

		seen[s] = true
	}

	interval, err := time.ParseDuration(cfg.Sync.Interval)
	if err != nil {
		return fmt.Errorf("sync.interval %q: %w", cfg.Sync.Interval, err)
	}

	if interval <= 0 {
		return fmt.Errorf("sync.interval must be positive, got %q", cfg.Sync.Interval)
	}

	cfg.Sync.interval = interval

	if !validLogLevels[cfg.Logging.Level] {
		return fmt.Errorf("logging.level %q: must be debug, info, warn, or error", cfg.Logging.Level)
	}

	if !validLogFormats[cfg.Logging.Format] {
		return fmt.Errorf("logging.format %q: must be auto, text, or json", cfg.Logging.Format)
	}

	return nil
}
