package config

// Default values for configuration options. Chosen to work for most users
// without any config file.
const (
	defaultInterval  = "4h"
	defaultLogLevel  = "info"
	defaultLogFormat = "auto"
)

// defaultStores are synced when the config file does not say otherwise.
var defaultStores = []string{"history", "bookmarks", "logins"}

// DefaultConfig returns a Config populated with all default values.
func DefaultConfig() *Config {
	return &Config{
		Sync: SyncConfig{
			Stores:   append([]string(nil), defaultStores...),
			Interval: defaultInterval,
		},
		Logging: LoggingConfig{
			Level:  defaultLogLevel,
			Format: defaultLogFormat,
		},
	}
}
