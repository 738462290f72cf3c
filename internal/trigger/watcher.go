// Package trigger turns external events into sync requests. Each source
// issues debounced sync requests through a callback; the scheduler's keep
// policy and stagger buffer absorb bursts, so sources fire freely.
package trigger

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Watch loop error backoff. Sustained watcher errors (e.g. kernel buffer
// overflow) back off exponentially instead of spinning.
const (
	watchErrInitBackoff = time.Second
	watchErrBackoffMult = 2
	watchErrMaxBackoff  = time.Minute
)

// DirWatcher issues a sync request whenever files under a directory
// change. Used to sync promptly after local data mutations instead of
// waiting for the next periodic tick.
type DirWatcher struct {
	dir         string
	requestSync func()
	logger      *slog.Logger
}

// NewDirWatcher creates a watcher over dir. requestSync is invoked on
// every relevant filesystem event and must be cheap; the scheduler
// deduplicates.
func NewDirWatcher(dir string, requestSync func(), logger *slog.Logger) *DirWatcher {
	return &DirWatcher{dir: dir, requestSync: requestSync, logger: logger}
}

// Run watches until ctx is cancelled. Returns on cancellation or when the
// underlying watcher cannot be created.
func (w *DirWatcher) Run(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("trigger: creating filesystem watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(w.dir); err != nil {
		return fmt.Errorf("trigger: watching %s: %w", w.dir, err)
	}

	w.logger.Info("watching for local changes", slog.String("dir", w.dir))

	errBackoff := watchErrInitBackoff

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}

			w.handleEvent(event)

			// Successful event resets error backoff.
			errBackoff = watchErrInitBackoff

		case watchErr, ok := <-watcher.Errors:
			if !ok {
				return nil
			}

			w.logger.Warn("filesystem watcher error",
				slog.String("error", watchErr.Error()),
				slog.Duration("backoff", errBackoff),
			)

			if !sleepCtx(ctx, errBackoff) {
				return nil
			}

			errBackoff *= watchErrBackoffMult
			if errBackoff > watchErrMaxBackoff {
				errBackoff = watchErrMaxBackoff
			}
		}
	}
}

// handleEvent filters events and issues a sync request. Chmod-only events
// are ignored; mode changes do not affect synced data.
func (w *DirWatcher) handleEvent(event fsnotify.Event) {
	if event.Has(fsnotify.Chmod) &&
		!event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) &&
		!event.Has(fsnotify.Remove) && !event.Has(fsnotify.Rename) {
		return
	}

	w.logger.Debug("local change detected",
		slog.String("path", event.Name),
		slog.String("op", event.Op.String()),
	)

	w.requestSync()
}

// sleepCtx sleeps for d or until ctx is cancelled. Returns false on
// cancellation.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
