package main

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/tonimelisma/syncherd/internal/store"
)

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show sync progress",
		Long:  "Show the last successful sync time and whether continuation state is saved.",
		Args:  cobra.NoArgs,
		RunE:  runStatus,
	}
}

// statusReport is the --json output shape.
type statusReport struct {
	LastSynced   *time.Time `json:"last_synced"`
	HasSavedSync bool       `json:"has_continuation_state"`
}

func runStatus(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	logger := buildLogger(cfg)
	ctx := cmd.Context()

	st, err := store.Open(cfg.DBPath(), logger)
	if err != nil {
		return err
	}
	defer st.Close()

	lastSynced, synced, err := st.LastSynced(ctx)
	if err != nil {
		return err
	}

	_, hasState, err := st.PersistedState(ctx)
	if err != nil {
		return err
	}

	if flagJSON {
		report := statusReport{HasSavedSync: hasState}
		if synced {
			report.LastSynced = &lastSynced
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")

		return enc.Encode(report)
	}

	if synced {
		fmt.Printf("Last synced: %s (%s ago)\n",
			lastSynced.Format(time.RFC3339),
			time.Since(lastSynced).Round(time.Second),
		)
	} else {
		fmt.Println("Last synced: never")
	}

	if hasState {
		fmt.Println("Continuation state: saved")
	} else {
		fmt.Println("Continuation state: none")
	}

	return nil
}
