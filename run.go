package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/tonimelisma/syncherd/internal/engine"
	"github.com/tonimelisma/syncherd/internal/scheduler"
	"github.com/tonimelisma/syncherd/internal/store"
	"github.com/tonimelisma/syncherd/internal/tokenfile"
	"github.com/tonimelisma/syncherd/internal/trigger"
)

func newRunCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run the sync scheduling daemon",
		Long: `Run the daemon: periodic syncing at the configured interval, plus any
configured trigger sources (local directory watch, remote wakeup socket).

A startup sync fires shortly after launch. The daemon runs until SIGINT or
SIGTERM; a second signal forces exit.`,
		Args: cobra.NoArgs,
		RunE: runDaemon,
	}
}

func runDaemon(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	logger := buildLogger(cfg)

	dbPath := cfg.DBPath()
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o700); err != nil {
		return fmt.Errorf("creating state directory: %w", err)
	}

	st, err := store.Open(dbPath, logger)
	if err != nil {
		return err
	}
	defer st.Close()

	manager := scheduler.NewManager(
		scheduler.Config{
			Stores:           cfg.Sync.Stores,
			PeriodicInterval: cfg.Sync.ParsedInterval(),
		},
		scheduler.Deps{
			Store:   st,
			Engine:  engine.NoopEngine{},
			Handles: readyHandles(cfg.Sync.Stores),
			Creds:   tokenfile.NewProvider(cfg.TokenPath()),
			Logger:  logger,
		},
	)
	defer manager.Close()

	ctx := shutdownContext(cmd.Context(), logger)

	if err := manager.Start(); err != nil {
		return fmt.Errorf("starting sync manager: %w", err)
	}

	requestSync := func() {
		if err := manager.SyncNow(false, true); err != nil {
			logger.Warn("trigger sync request failed", "error", err)
		}
	}

	g, gctx := errgroup.WithContext(ctx)

	if cfg.Triggers.WatchDir != "" {
		watcher := trigger.NewDirWatcher(cfg.Triggers.WatchDir, requestSync, logger)
		g.Go(func() error { return watcher.Run(gctx) })
	}

	if cfg.Triggers.WakeupURL != "" {
		wakeup := trigger.NewWakeupListener(cfg.Triggers.WakeupURL, requestSync, logger)
		g.Go(func() error { return wakeup.Run(gctx) })
	}

	// Block until shutdown or a trigger source fails fatally.
	g.Go(func() error {
		<-gctx.Done()
		return nil
	})

	if err := g.Wait(); err != nil {
		return fmt.Errorf("daemon: %w", err)
	}

	logger.Info("daemon stopped")

	return nil
}

// readyHandles treats every configured store as ready. Real store
// integrations would register live handles here.
func readyHandles(stores []string) engine.StaticProvider {
	ready := make(map[string]any, len(stores))
	for _, name := range stores {
		ready[name] = struct{}{}
	}

	return engine.StaticProvider{Ready: ready}
}
