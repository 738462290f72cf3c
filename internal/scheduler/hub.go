package scheduler

import (
	"log/slog"
	stdsync "sync"

	"github.com/tonimelisma/syncherd/internal/engine"
)

// Observer receives informational sync lifecycle callbacks. Callbacks are
// fire-and-forget: implementations should return quickly and must not call
// back into the dispatcher from within a callback.
type Observer interface {
	// OnStarted fires when the running job set becomes non-empty.
	OnStarted()

	// OnIdle fires when the running job set becomes empty.
	OnIdle()

	// OnAuthError fires when an attempt fails with an auth error, so an
	// upstream re-authentication flow can be triggered. kind names the
	// failing credential class.
	OnAuthError(kind string)

	// OnDeclinedEnginesChanged fires when the engine reports a declined-
	// engine set. isLocalChange is false for sets learned from the server.
	OnDeclinedEnginesChanged(declined []engine.ID, isLocalChange bool)
}

// ObserverHub is a registry of Observers. Notification is synchronous and
// sequential in registration order. A panicking observer does not prevent
// delivery to observers registered after it. Registration and notification
// may happen concurrently.
type ObserverHub struct {
	mu        stdsync.RWMutex
	observers []Observer
	logger    *slog.Logger
}

// NewObserverHub creates an empty hub.
func NewObserverHub(logger *slog.Logger) *ObserverHub {
	return &ObserverHub{logger: logger}
}

// Register adds an observer and returns a function that removes it.
func (h *ObserverHub) Register(o Observer) (unregister func()) {
	h.mu.Lock()
	h.observers = append(h.observers, o)
	h.mu.Unlock()

	return func() {
		h.mu.Lock()
		defer h.mu.Unlock()

		for i, existing := range h.observers {
			if existing == o {
				h.observers = append(h.observers[:i:i], h.observers[i+1:]...)
				return
			}
		}
	}
}

// snapshot copies the observer list so notification happens without holding
// the lock. Observers registered mid-notification see only later events.
func (h *ObserverHub) snapshot() []Observer {
	h.mu.RLock()
	defer h.mu.RUnlock()

	out := make([]Observer, len(h.observers))
	copy(out, h.observers)

	return out
}

// each invokes fn for every registered observer, recovering per-observer
// panics so one failing listener cannot starve the rest.
func (h *ObserverHub) each(event string, fn func(Observer)) {
	for _, o := range h.snapshot() {
		func() {
			defer func() {
				if r := recover(); r != nil {
					h.logger.Error("observer panicked",
						slog.String("event", event),
						slog.Any("panic", r),
					)
				}
			}()

			fn(o)
		}()
	}
}

// NotifyStarted delivers OnStarted to all observers.
func (h *ObserverHub) NotifyStarted() {
	h.each("started", func(o Observer) { o.OnStarted() })
}

// NotifyIdle delivers OnIdle to all observers.
func (h *ObserverHub) NotifyIdle() {
	h.each("idle", func(o Observer) { o.OnIdle() })
}

// NotifyAuthError delivers OnAuthError to all observers.
func (h *ObserverHub) NotifyAuthError(kind string) {
	h.each("auth_error", func(o Observer) { o.OnAuthError(kind) })
}

// NotifyDeclinedEnginesChanged delivers the new declined set to all observers.
func (h *ObserverHub) NotifyDeclinedEnginesChanged(declined []engine.ID, isLocalChange bool) {
	h.each("declined_changed", func(o Observer) { o.OnDeclinedEnginesChanged(declined, isLocalChange) })
}
