package scheduler

import (
	"log/slog"
	stdsync "sync"
)

// Coordinator routes substrate-level running-state reports to the
// currently registered dispatcher. It exists because the subscription to
// the substrate's state stream is process-wide and outlives any single
// dispatcher: when a dispatcher is rebuilt (configuration change, manager
// restart), SetDispatcher swaps the target without resubscribing. Routing
// is its only responsibility; all policy lives in the Dispatcher.
type Coordinator struct {
	mu         stdsync.Mutex
	dispatcher *Dispatcher
	logger     *slog.Logger
}

// NewCoordinator creates a coordinator with no dispatcher attached.
func NewCoordinator(logger *slog.Logger) *Coordinator {
	return &Coordinator{logger: logger}
}

// SetDispatcher installs the dispatcher that receives subsequent state
// reports. Passing nil detaches routing.
func (c *Coordinator) SetDispatcher(d *Dispatcher) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.dispatcher = d
}

// WorkersStateChanged forwards a running-state report to the current
// dispatcher. Reports arriving while no dispatcher is attached are
// dropped with a debug log; they are informational, not work items.
func (c *Coordinator) WorkersStateChanged(isRunning bool) {
	c.mu.Lock()
	d := c.dispatcher
	c.mu.Unlock()

	if d == nil {
		c.logger.Debug("dropping state report, no dispatcher attached",
			slog.Bool("running", isRunning),
		)

		return
	}

	d.WorkersStateChanged(isRunning)
}
