package scheduler

import (
	"log/slog"
	"time"

	"github.com/tonimelisma/syncherd/internal/engine"
	"github.com/tonimelisma/syncherd/internal/jobqueue"
	"github.com/tonimelisma/syncherd/internal/store"
)

// Config is the manager's scheduling configuration.
type Config struct {
	// Stores are the data store names this installation syncs.
	Stores []string
	// PeriodicInterval is the requested periodic sync interval, clamped
	// to the substrate floor at submission time.
	PeriodicInterval time.Duration
}

// Deps are the external collaborators the manager wires together.
type Deps struct {
	Store      store.Store
	Engine     engine.Engine
	Handles    engine.HandleProvider
	Creds      CredentialsProvider
	Enablement engine.EnablementSource
	Logger     *slog.Logger

	// QueueOptions tune the in-process substrate.
	QueueOptions jobqueue.Options
}

// Manager is the sole entry point consumers use. It owns the configuration,
// builds the executor and substrate, and delegates scheduling to its
// dispatcher.
type Manager struct {
	cfg         Config
	hub         *ObserverHub
	queue       *jobqueue.Queue
	dispatcher  *Dispatcher
	coordinator *Coordinator
	logger      *slog.Logger
}

// NewManager assembles a manager: executor over the deps, in-process queue
// around the executor, coordinator subscribed to the queue's running set,
// and a dispatcher registered with the coordinator. Periodic syncing is
// not started; call StartPeriodicSync or Start.
func NewManager(cfg Config, deps Deps) *Manager {
	hub := NewObserverHub(deps.Logger)
	exec := NewExecutor(deps.Store, deps.Engine, deps.Handles, deps.Creds, deps.Enablement, hub, deps.Logger)
	queue := jobqueue.New(exec, deps.QueueOptions, deps.Logger)
	coordinator := NewCoordinator(deps.Logger)
	queue.SetRunningObserver(coordinator.WorkersStateChanged)

	dispatcher := NewDispatcher(queue, hub, cfg.Stores, deps.Logger)
	coordinator.SetDispatcher(dispatcher)

	return &Manager{
		cfg:         cfg,
		hub:         hub,
		queue:       queue,
		dispatcher:  dispatcher,
		coordinator: coordinator,
		logger:      deps.Logger,
	}
}

// Start enables periodic syncing at the configured interval and requests
// a startup sync (debounced, delayed past startup contention).
func (m *Manager) Start() error {
	if err := m.dispatcher.StartPeriodicSync(m.cfg.PeriodicInterval); err != nil {
		return err
	}

	return m.dispatcher.SyncNow(true, true)
}

// SyncNow requests an immediate sync. See Dispatcher.SyncNow.
func (m *Manager) SyncNow(startup, debounce bool) error {
	return m.dispatcher.SyncNow(startup, debounce)
}

// StartPeriodicSync (re)schedules periodic syncing at the given interval.
func (m *Manager) StartPeriodicSync(interval time.Duration) error {
	return m.dispatcher.StartPeriodicSync(interval)
}

// StopPeriodicSync cancels the periodic schedule.
func (m *Manager) StopPeriodicSync() error {
	return m.dispatcher.StopPeriodicSync()
}

// IsSyncActive reports whether any sync job is currently running.
func (m *Manager) IsSyncActive() bool {
	return m.dispatcher.IsSyncActive()
}

// Register adds a sync observer and returns its unregister function.
func (m *Manager) Register(o Observer) (unregister func()) {
	return m.hub.Register(o)
}

// Close stops periodic syncing, detaches routing, and shuts down the
// queue, waiting for in-flight attempts to finish.
func (m *Manager) Close() error {
	err := m.dispatcher.Close()

	m.coordinator.SetDispatcher(nil)
	m.queue.Stop()

	return err
}
