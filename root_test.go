package main

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tonimelisma/syncherd/internal/config"
)

func TestNewRootCmd(t *testing.T) {
	cmd := newRootCmd()

	assert.Equal(t, "syncherd", cmd.Use)
	assert.True(t, cmd.SilenceErrors)
	assert.True(t, cmd.SilenceUsage)

	var names []string
	for _, sub := range cmd.Commands() {
		names = append(names, sub.Name())
	}

	assert.Contains(t, names, "run")
	assert.Contains(t, names, "now")
	assert.Contains(t, names, "status")

	for _, flag := range []string{"config", "json", "verbose", "quiet"} {
		assert.NotNil(t, cmd.PersistentFlags().Lookup(flag), "missing persistent flag %q", flag)
	}
}

func TestBuildLoggerLevels(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name        string
		level       string
		verbose     bool
		quiet       bool
		wantEnabled slog.Level
		wantMuted   slog.Level
	}{
		{"default info", "info", false, false, slog.LevelInfo, slog.LevelDebug},
		{"config debug", "debug", false, false, slog.LevelDebug, slog.LevelDebug - 4},
		{"config warn", "warn", false, false, slog.LevelWarn, slog.LevelInfo},
		{"config error", "error", false, false, slog.LevelError, slog.LevelWarn},
		{"verbose overrides config", "error", true, false, slog.LevelDebug, slog.LevelDebug - 4},
		{"quiet overrides config", "debug", false, true, slog.LevelError, slog.LevelWarn},
		{"quiet wins over verbose", "info", true, true, slog.LevelError, slog.LevelWarn},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			origVerbose, origQuiet := flagVerbose, flagQuiet
			defer func() { flagVerbose, flagQuiet = origVerbose, origQuiet }()

			flagVerbose = tt.verbose
			flagQuiet = tt.quiet

			cfg := config.DefaultConfig()
			cfg.Logging.Level = tt.level
			cfg.Logging.Format = "json"

			logger := buildLogger(cfg)

			assert.True(t, logger.Enabled(ctx, tt.wantEnabled))
			assert.False(t, logger.Enabled(ctx, tt.wantMuted))
		})
	}
}

func TestLoadConfigFromFlag(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")

	content := `[sync]
stores = ["history", "tabs"]
interval = "30m"
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	origPath := flagConfigPath
	defer func() { flagConfigPath = origPath }()
	flagConfigPath = path

	cfg, err := loadConfig()
	require.NoError(t, err)

	assert.Equal(t, []string{"history", "tabs"}, cfg.Sync.Stores)
	assert.Equal(t, "30m", cfg.Sync.Interval)
}

func TestLoadConfigMissingFileUsesDefaults(t *testing.T) {
	origPath := flagConfigPath
	defer func() { flagConfigPath = origPath }()
	flagConfigPath = filepath.Join(t.TempDir(), "nonexistent.toml")

	cfg, err := loadConfig()
	require.NoError(t, err)

	assert.NotEmpty(t, cfg.Sync.Stores)
	assert.Positive(t, cfg.Sync.ParsedInterval())
}

func TestReadyHandles(t *testing.T) {
	provider := readyHandles([]string{"history", "bookmarks"})

	handles, err := provider.Handles(context.Background(), []string{"history", "bookmarks", "tabs"})
	require.NoError(t, err)

	var names []string
	for _, h := range handles {
		names = append(names, h.Name)
	}

	assert.ElementsMatch(t, []string{"history", "bookmarks"}, names)
}
