package scheduler

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/tonimelisma/syncherd/internal/engine"
	"github.com/tonimelisma/syncherd/internal/jobqueue"
	"github.com/tonimelisma/syncherd/internal/store"
)

// authErrorKind is the credential class reported through OnAuthError.
const authErrorKind = "sync"

// CredentialsProvider yields the cached auth credentials for an attempt.
// A nil result with a nil error means no credentials are cached, which is
// a normal terminal outcome of the state machine, not an error path.
type CredentialsProvider interface {
	Credentials(ctx context.Context) (*engine.AuthInfo, error)
}

// Executor runs exactly one sync attempt per Run call: debounce check,
// store gathering, authentication, engine invocation, result
// classification, state persistence, and observer notification. It is the
// Runner the job substrate invokes.
type Executor struct {
	store      store.Store
	engine     engine.Engine
	handles    engine.HandleProvider
	creds      CredentialsProvider
	enablement engine.EnablementSource
	hub        *ObserverHub
	logger     *slog.Logger

	staggerBuffer time.Duration
	nowFunc       func() time.Time // injectable for testing
}

// NewExecutor assembles an executor. enablement may be nil when no local
// toggle tracking exists; the engine then receives an empty change map.
func NewExecutor(
	st store.Store,
	eng engine.Engine,
	handles engine.HandleProvider,
	creds CredentialsProvider,
	enablement engine.EnablementSource,
	hub *ObserverHub,
	logger *slog.Logger,
) *Executor {
	return &Executor{
		store:         st,
		engine:        eng,
		handles:       handles,
		creds:         creds,
		enablement:    enablement,
		hub:           hub,
		logger:        logger,
		staggerBuffer: StaggerBuffer,
		nowFunc:       time.Now,
	}
}

// Run executes one attempt and classifies it for the substrate. Every
// attempt reaches a classification; there is no mid-attempt cancellation
// beyond the engine invocation honoring ctx.
func (e *Executor) Run(ctx context.Context, job jobqueue.Job) jobqueue.Outcome {
	attemptID := uuid.NewString()
	logger := e.logger.With(
		slog.String("attempt_id", attemptID),
		slog.String("job", job.Name),
		slog.Int("attempt", job.Attempt),
	)

	// CheckDebounce: a debounced attempt inside the stagger buffer skips
	// with no side effects at all; no state write, no engine invocation.
	if job.HasTag(jobqueue.TagDebounce) && e.withinStaggerBuffer(ctx, logger) {
		logger.Info("sync debounced, skipping attempt")
		return jobqueue.OutcomeSuccess
	}

	// GatherStores: resolve configured names to live handles. An empty
	// set means nothing to sync; the timestamp must not advance.
	stores, err := e.handles.Handles(ctx, job.StoreNames)
	if err != nil {
		logger.Error("resolving store handles", slog.String("error", err.Error()))
		return jobqueue.OutcomeFailure
	}

	if len(stores) == 0 {
		logger.Info("no stores ready, skipping attempt")
		return jobqueue.OutcomeSuccess
	}

	// Authenticate: absent cached credentials is a terminal failure, not
	// an exception path.
	auth, err := e.creds.Credentials(ctx)
	if err != nil {
		logger.Error("reading cached credentials", slog.String("error", err.Error()))
		return jobqueue.OutcomeFailure
	}

	if auth == nil {
		logger.Warn("no cached credentials, sync cannot proceed")
		return jobqueue.OutcomeFailure
	}

	// Invoke: the engine call is the only suspending step of an attempt.
	result, err := e.engine.Sync(ctx, e.buildRequest(ctx, job, stores, *auth))
	if err != nil {
		logger.Error("engine invocation failed", slog.String("error", err.Error()))
		return jobqueue.OutcomeFailure
	}

	outcome := e.classify(ctx, result, len(stores), logger)

	// PersistState: the new token may encode partial progress, so it is
	// overwritten after every attempt that reached the engine, regardless
	// of status.
	if err := e.store.SetPersistedState(ctx, result.PersistedState); err != nil {
		logger.Error("persisting continuation token", slog.String("error", err.Error()))
	}

	e.notifyDeclined(result, logger)

	return outcome
}

// withinStaggerBuffer reports whether the last successful sync is recent
// enough that a debounced attempt should skip. Store read errors fail open
// so persistence trouble never wedges syncing.
func (e *Executor) withinStaggerBuffer(ctx context.Context, logger *slog.Logger) bool {
	last, ok, err := e.store.LastSynced(ctx)
	if err != nil {
		logger.Warn("reading last-synced time", slog.String("error", err.Error()))
		return false
	}

	if !ok {
		return false
	}

	since := e.nowFunc().Sub(last)
	if since < e.staggerBuffer {
		logger.Debug("within stagger buffer",
			slog.Duration("since_last_sync", since),
			slog.Duration("buffer", e.staggerBuffer),
		)

		return true
	}

	return false
}

// buildRequest assembles the engine request for one attempt. Engines is
// nil, meaning "all configured with a handle", intersected server-side
// with the enabled set. The prior continuation token is read fresh from
// the store; never cached across attempts.
func (e *Executor) buildRequest(
	ctx context.Context, job jobqueue.Job, stores []engine.StoreHandle, auth engine.AuthInfo,
) engine.Request {
	reason := engine.ReasonScheduled
	if job.HasTag(jobqueue.TagImmediate) {
		reason = engine.ReasonUser
	}

	var changes map[string]bool
	if e.enablement != nil {
		changes = e.enablement.EnabledChanges()
	}

	prior, _, err := e.store.PersistedState(ctx)
	if err != nil {
		e.logger.Warn("reading continuation token", slog.String("error", err.Error()))
	}

	return engine.Request{
		Reason:         reason,
		Stores:         stores,
		Engines:        nil,
		AuthInfo:       auth,
		EnabledChanges: changes,
		PersistedState: prior,
	}
}

// classify maps the engine status to an outcome and applies its side
// effects: the timestamp advance on success, the auth notification on
// auth failure.
func (e *Executor) classify(
	ctx context.Context, result engine.Result, storeCount int, logger *slog.Logger,
) jobqueue.Outcome {
	switch result.Status {
	case engine.StatusOK:
		logger.Info("sync succeeded",
			slog.Int("stores", storeCount),
			slog.Int("successful", len(result.Successful)),
			slog.Int("failures", len(result.Failures)),
		)

		if err := e.store.SetLastSynced(ctx, e.nowFunc()); err != nil {
			logger.Error("recording last-synced time", slog.String("error", err.Error()))
		}

		return jobqueue.OutcomeSuccess

	case engine.StatusNetworkError:
		logger.Warn("sync hit a network error, will retry")
		return jobqueue.OutcomeRetry

	case engine.StatusBackedOff:
		// The engine enforces its own earliest-retry time server-side.
		logger.Warn("server requested backoff, will retry")
		return jobqueue.OutcomeRetry

	case engine.StatusAuthError:
		logger.Warn("sync failed with an auth error")
		e.hub.NotifyAuthError(authErrorKind)

		return jobqueue.OutcomeFailure

	case engine.StatusServiceError:
		logger.Error("sync failed with a service error", slog.Any("failures", result.Failures))
		return jobqueue.OutcomeFailure

	default:
		logger.Error("sync failed", slog.String("status", result.Status.String()))
		return jobqueue.OutcomeFailure
	}
}

// notifyDeclined forwards a declined-engine set to observers, translating
// store-name strings to recognized engine IDs. Unrecognized names are
// dropped rather than failing the attempt. A nil declined set means the
// engine reported nothing and no notification fires.
func (e *Executor) notifyDeclined(result engine.Result, logger *slog.Logger) {
	if result.Declined == nil {
		return
	}

	declined := make([]engine.ID, 0, len(result.Declined))

	for _, name := range result.Declined {
		id, ok := engine.FromStoreName(name)
		if !ok {
			logger.Debug("dropping unrecognized declined engine", slog.String("name", name))
			continue
		}

		declined = append(declined, id)
	}

	e.hub.NotifyDeclinedEnginesChanged(declined, false)
}
