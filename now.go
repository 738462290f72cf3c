package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/tonimelisma/syncherd/internal/engine"
	"github.com/tonimelisma/syncherd/internal/scheduler"
	"github.com/tonimelisma/syncherd/internal/store"
	"github.com/tonimelisma/syncherd/internal/tokenfile"
)

// nowTimeout bounds how long a one-shot sync may take before the command
// gives up waiting.
const nowTimeout = 10 * time.Minute

func newNowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "now",
		Short: "Run a one-shot sync immediately",
		Long: `Request an immediate sync and wait for it to finish.

With --debounce, the attempt is skipped if a sync succeeded within the
last ten minutes.`,
		Args: cobra.NoArgs,
		RunE: runNow,
	}

	cmd.Flags().Bool("debounce", false, "skip if a recent sync already succeeded")

	return cmd
}

// idleObserver signals on the started→idle transition so the command can
// wait for the attempt it requested.
type idleObserver struct {
	idle chan struct{}
}

func (o *idleObserver) OnStarted() {}

func (o *idleObserver) OnIdle() {
	select {
	case o.idle <- struct{}{}:
	default:
	}
}

func (o *idleObserver) OnAuthError(kind string) {
	fmt.Printf("Authentication failed (%s), re-login required\n", kind)
}

func (o *idleObserver) OnDeclinedEnginesChanged([]engine.ID, bool) {}

func runNow(cmd *cobra.Command, _ []string) error {
	debounce, _ := cmd.Flags().GetBool("debounce")

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	logger := buildLogger(cfg)

	st, err := store.Open(cfg.DBPath(), logger)
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

	obs := &idleObserver{idle: make(chan struct{}, 1)}
	unregister := manager.Register(obs)
	defer unregister()

	if err := manager.SyncNow(false, debounce); err != nil {
		return fmt.Errorf("requesting sync: %w", err)
	}

	select {
	case <-obs.idle:
		statusf("Sync finished\n")
	case <-time.After(nowTimeout):
		return fmt.Errorf("sync did not finish within %s", nowTimeout)
	case <-cmd.Context().Done():
		return cmd.Context().Err()
	}

	return nil
}
