// Package scheduler decides when background sync jobs run and supervises
// each attempt. The Dispatcher translates external requests into jobs on
// the substrate with the right dedup policy, tags, and delays; the
// Executor runs one attempt through its state machine and persists
// progress; the Manager is the entry point consumers use.
package scheduler

import (
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/tonimelisma/syncherd/internal/jobqueue"
)

// Fixed unique job names. The substrate's unique-name guarantee is the
// sole deduplication mechanism: at most one immediate and one periodic
// job are ever queued or running.
const (
	immediateJobName = "syncherd.sync.immediate"
	periodicJobName  = "syncherd.sync.periodic"
)

// Scheduling policy constants.
const (
	// StartupDelay postpones startup-triggered syncs so they do not
	// contend with startup-time resource initialization.
	StartupDelay = 5 * time.Second

	// StaggerBuffer is the debounce window: a debounced attempt within
	// this interval of the last success is skipped entirely.
	StaggerBuffer = 10 * time.Minute

	// MinPeriodicInterval is the floor for periodic scheduling, matching
	// the substrate's platform minimum.
	MinPeriodicInterval = jobqueue.MinPeriodicInterval
)

// Substrate is the slice of the job queue the dispatcher depends on.
type Substrate interface {
	Submit(spec jobqueue.JobSpec) error
	Cancel(name string) error
}

// Dispatcher owns scheduling policy. It submits jobs to the substrate and
// tracks coarse-grained running state observed from the substrate's live
// job set, emitting started/idle transitions through the ObserverHub.
type Dispatcher struct {
	substrate Substrate
	hub       *ObserverHub
	stores    []string
	logger    *slog.Logger

	// active is the last-observed aggregate running state. Mutated only
	// by WorkersStateChanged, read by IsSyncActive.
	active atomic.Bool
}

// NewDispatcher creates a dispatcher over the given substrate. Any
// previously scheduled periodic job is cancelled so an orphaned schedule
// from a prior configuration cannot survive silently; callers must call
// StartPeriodicSync to (re)enable periodic syncing.
func NewDispatcher(substrate Substrate, hub *ObserverHub, stores []string, logger *slog.Logger) *Dispatcher {
	if err := substrate.Cancel(periodicJobName); err != nil {
		logger.Warn("cancelling stale periodic job", slog.String("error", err.Error()))
	}

	return &Dispatcher{
		substrate: substrate,
		hub:       hub,
		stores:    stores,
		logger:    logger,
	}
}

// StartPeriodicSync schedules periodic syncing at the given interval,
// clamped to the substrate's floor. Uses replace semantics under a fixed
// unique name: a new submission always supersedes the previous schedule,
// which is how interval changes propagate. Idempotent. The first tick
// fires one interval out; the startup sync covers the launch case.
func (d *Dispatcher) StartPeriodicSync(interval time.Duration) error {
	if interval < MinPeriodicInterval {
		interval = MinPeriodicInterval
	}

	d.logger.Info("scheduling periodic sync", slog.Duration("interval", interval))

	return d.substrate.Submit(jobqueue.JobSpec{
		Name:            periodicJobName,
		Policy:          jobqueue.Replace,
		Tags:            []jobqueue.Tag{jobqueue.TagCommon, jobqueue.TagDebounce},
		InitialDelay:    interval,
		Every:           interval,
		RequiresNetwork: true,
		StoreNames:      d.stores,
	})
}

// StopPeriodicSync cancels the periodic schedule. Safe to call when none
// is scheduled. An attempt already running is not interrupted.
func (d *Dispatcher) StopPeriodicSync() error {
	d.logger.Info("stopping periodic sync")

	return d.substrate.Cancel(periodicJobName)
}

// SyncNow requests a one-time sync under keep semantics: if the immediate
// job is already queued or running, this request is dropped, collapsing
// bursts of triggers into a single execution. startup applies the startup
// delay; debounce marks the attempt skippable within the stagger buffer.
func (d *Dispatcher) SyncNow(startup, debounce bool) error {
	tags := []jobqueue.Tag{jobqueue.TagCommon}
	if debounce {
		tags = append(tags, jobqueue.TagDebounce)
	} else {
		tags = append(tags, jobqueue.TagImmediate)
	}

	var delay time.Duration
	if startup {
		delay = StartupDelay
	}

	d.logger.Debug("requesting immediate sync",
		slog.Bool("startup", startup),
		slog.Bool("debounce", debounce),
	)

	return d.substrate.Submit(jobqueue.JobSpec{
		Name:            immediateJobName,
		Policy:          jobqueue.Keep,
		Tags:            tags,
		InitialDelay:    delay,
		RequiresNetwork: true,
		StoreNames:      d.stores,
	})
}

// IsSyncActive returns the last-observed aggregate running state.
func (d *Dispatcher) IsSyncActive() bool {
	return d.active.Load()
}

// WorkersStateChanged is invoked by the substrate observation path when
// the set of common-tagged jobs transitions between running and idle.
// Only an actual edge emits a notification; repeated identical reports
// are ignored.
func (d *Dispatcher) WorkersStateChanged(isRunning bool) {
	if !d.active.CompareAndSwap(!isRunning, isRunning) {
		return
	}

	if isRunning {
		d.logger.Debug("sync became active")
		d.hub.NotifyStarted()
	} else {
		d.logger.Debug("sync became idle")
		d.hub.NotifyIdle()
	}
}

// Close cancels periodic syncing. In-flight immediate jobs are left alone.
func (d *Dispatcher) Close() error {
	return d.StopPeriodicSync()
}
