package scheduler

import (
	"context"
	"errors"
	"log/slog"
	"os"
	stdsync "sync"
	"testing"
	"time"

	"github.com/tonimelisma/syncherd/internal/engine"
	"github.com/tonimelisma/syncherd/internal/jobqueue"
	"github.com/tonimelisma/syncherd/internal/store"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

// fakeEngine records invocations and returns a canned result.
type fakeEngine struct {
	mu     stdsync.Mutex
	calls  []engine.Request
	result engine.Result
	err    error
}

func (f *fakeEngine) Sync(_ context.Context, req engine.Request) (engine.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.calls = append(f.calls, req)

	return f.result, f.err
}

func (f *fakeEngine) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()

	return len(f.calls)
}

// fakeCreds returns fixed credentials, or none when auth is nil.
type fakeCreds struct {
	auth *engine.AuthInfo
	err  error
}

func (f fakeCreds) Credentials(context.Context) (*engine.AuthInfo, error) {
	return f.auth, f.err
}

// recordingObserver counts every callback it receives.
type recordingObserver struct {
	mu       stdsync.Mutex
	started  int
	idle     int
	auth     []string
	declined [][]engine.ID
}

func (r *recordingObserver) OnStarted() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.started++
}

func (r *recordingObserver) OnIdle() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.idle++
}

func (r *recordingObserver) OnAuthError(kind string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.auth = append(r.auth, kind)
}

func (r *recordingObserver) OnDeclinedEnginesChanged(declined []engine.ID, _ bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.declined = append(r.declined, declined)
}

func (r *recordingObserver) counts() (started, idle, auth, declined int) {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.started, r.idle, len(r.auth), len(r.declined)
}

// executorFixture wires an executor over in-memory fakes.
type executorFixture struct {
	exec   *Executor
	store  *store.MemoryStore
	engine *fakeEngine
	hub    *ObserverHub
	obs    *recordingObserver
}

func newExecutorFixture(t *testing.T, stores []string) *executorFixture {
	t.Helper()

	logger := testLogger()
	hub := NewObserverHub(logger)
	obs := &recordingObserver{}
	hub.Register(obs)

	ready := make(map[string]any, len(stores))
	for _, s := range stores {
		ready[s] = struct{}{}
	}

	eng := &fakeEngine{result: engine.Result{Status: engine.StatusOK, PersistedState: "tok-1"}}
	st := store.NewMemoryStore()

	exec := NewExecutor(
		st,
		eng,
		engine.StaticProvider{Ready: ready},
		fakeCreds{auth: &engine.AuthInfo{AccessToken: "at"}},
		nil,
		hub,
		logger,
	)

	return &executorFixture{exec: exec, store: st, engine: eng, hub: hub, obs: obs}
}

func debouncedJob(stores ...string) jobqueue.Job {
	return jobqueue.Job{
		ID:         "job-1",
		Attempt:    1,
		Name:       "test",
		Tags:       []jobqueue.Tag{jobqueue.TagCommon, jobqueue.TagDebounce},
		StoreNames: stores,
	}
}

func immediateJob(stores ...string) jobqueue.Job {
	return jobqueue.Job{
		ID:         "job-1",
		Attempt:    1,
		Name:       "test",
		Tags:       []jobqueue.Tag{jobqueue.TagCommon, jobqueue.TagImmediate},
		StoreNames: stores,
	}
}

func TestExecutor_DebounceWithinBufferSkips(t *testing.T) {
	t.Parallel()

	fx := newExecutorFixture(t, []string{"history"})
	ctx := context.Background()

	lastSync := time.Now().Add(-time.Minute)
	if err := fx.store.SetLastSynced(ctx, lastSync); err != nil {
		t.Fatalf("SetLastSynced: %v", err)
	}

	outcome := fx.exec.Run(ctx, debouncedJob("history"))

	if outcome != jobqueue.OutcomeSuccess {
		t.Fatalf("outcome = %v, want success", outcome)
	}

	if fx.engine.callCount() != 0 {
		t.Fatal("debounced attempt must not invoke the engine")
	}

	// No side effects at all: timestamp unchanged, no token written.
	got, _, _ := fx.store.LastSynced(ctx)
	if !got.Equal(lastSync) {
		t.Fatalf("lastSynced changed: %v, want %v", got, lastSync)
	}

	if _, ok, _ := fx.store.PersistedState(ctx); ok {
		t.Fatal("debounced attempt must not write continuation state")
	}
}

func TestExecutor_DebounceAfterBufferProceeds(t *testing.T) {
	t.Parallel()

	fx := newExecutorFixture(t, []string{"history"})
	ctx := context.Background()

	if err := fx.store.SetLastSynced(ctx, time.Now().Add(-StaggerBuffer-time.Minute)); err != nil {
		t.Fatalf("SetLastSynced: %v", err)
	}

	outcome := fx.exec.Run(ctx, debouncedJob("history"))

	if outcome != jobqueue.OutcomeSuccess {
		t.Fatalf("outcome = %v, want success", outcome)
	}

	if fx.engine.callCount() != 1 {
		t.Fatalf("engine calls = %d, want 1", fx.engine.callCount())
	}
}

func TestExecutor_DebounceWithNoPriorSyncProceeds(t *testing.T) {
	t.Parallel()

	fx := newExecutorFixture(t, []string{"history"})

	fx.exec.Run(context.Background(), debouncedJob("history"))

	if fx.engine.callCount() != 1 {
		t.Fatal("first-ever debounced sync must invoke the engine")
	}
}

func TestExecutor_OKAdvancesLastSynced(t *testing.T) {
	t.Parallel()

	fx := newExecutorFixture(t, []string{"history", "bookmarks"})
	ctx := context.Background()

	now := time.Now().Add(time.Hour) // distinguishable from wall clock
	fx.exec.nowFunc = func() time.Time { return now }

	outcome := fx.exec.Run(ctx, immediateJob("history", "bookmarks"))

	if outcome != jobqueue.OutcomeSuccess {
		t.Fatalf("outcome = %v, want success", outcome)
	}

	got, ok, _ := fx.store.LastSynced(ctx)
	if !ok || !got.Equal(now) {
		t.Fatalf("lastSynced = %v ok=%v, want %v", got, ok, now)
	}

	tok, ok, _ := fx.store.PersistedState(ctx)
	if !ok || tok != "tok-1" {
		t.Fatalf("persisted state = %q ok=%v, want tok-1", tok, ok)
	}
}

func TestExecutor_EmptyStoreSetSkipsWithoutTimestamp(t *testing.T) {
	t.Parallel()

	// No stores resolve: configured names are not in the ready set.
	fx := newExecutorFixture(t, nil)
	ctx := context.Background()

	outcome := fx.exec.Run(ctx, immediateJob("history"))

	if outcome != jobqueue.OutcomeSuccess {
		t.Fatalf("outcome = %v, want success", outcome)
	}

	if fx.engine.callCount() != 0 {
		t.Fatal("empty store set must not invoke the engine")
	}

	if _, ok, _ := fx.store.LastSynced(ctx); ok {
		t.Fatal("lastSynced must not advance when nothing was synced")
	}
}

func TestExecutor_NoCredentialsFails(t *testing.T) {
	t.Parallel()

	fx := newExecutorFixture(t, []string{"history"})
	fx.exec.creds = fakeCreds{auth: nil}

	outcome := fx.exec.Run(context.Background(), immediateJob("history"))

	if outcome != jobqueue.OutcomeFailure {
		t.Fatalf("outcome = %v, want failure", outcome)
	}

	if fx.engine.callCount() != 0 {
		t.Fatal("missing credentials must not invoke the engine")
	}

	// Missing credentials triggers no auth-error notification; only a
	// rejected credential does.
	if _, _, auth, _ := fx.obs.counts(); auth != 0 {
		t.Fatalf("auth notifications = %d, want 0", auth)
	}
}

func TestExecutor_StatusClassification(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name       string
		status     engine.Status
		want       jobqueue.Outcome
		wantAuth   int
		wantSynced bool
	}{
		{"ok", engine.StatusOK, jobqueue.OutcomeSuccess, 0, true},
		{"network_error", engine.StatusNetworkError, jobqueue.OutcomeRetry, 0, false},
		{"backed_off", engine.StatusBackedOff, jobqueue.OutcomeRetry, 0, false},
		{"auth_error", engine.StatusAuthError, jobqueue.OutcomeFailure, 1, false},
		{"service_error", engine.StatusServiceError, jobqueue.OutcomeFailure, 0, false},
		{"other_error", engine.StatusOtherError, jobqueue.OutcomeFailure, 0, false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			fx := newExecutorFixture(t, []string{"history"})
			fx.engine.result = engine.Result{Status: tc.status, PersistedState: "tok-next"}
			ctx := context.Background()

			outcome := fx.exec.Run(ctx, immediateJob("history"))

			if outcome != tc.want {
				t.Fatalf("outcome = %v, want %v", outcome, tc.want)
			}

			// The token is overwritten for every attempt that reached the
			// engine, regardless of status.
			tok, ok, _ := fx.store.PersistedState(ctx)
			if !ok || tok != "tok-next" {
				t.Fatalf("persisted state = %q ok=%v, want tok-next", tok, ok)
			}

			_, _, auth, _ := fx.obs.counts()
			if auth != tc.wantAuth {
				t.Fatalf("auth notifications = %d, want %d", auth, tc.wantAuth)
			}

			_, synced, _ := fx.store.LastSynced(ctx)
			if synced != tc.wantSynced {
				t.Fatalf("lastSynced present = %v, want %v", synced, tc.wantSynced)
			}
		})
	}
}

func TestExecutor_EngineErrorFailsWithoutStateWrite(t *testing.T) {
	t.Parallel()

	fx := newExecutorFixture(t, []string{"history"})
	fx.engine.err = errors.New("transport exploded")
	ctx := context.Background()

	outcome := fx.exec.Run(ctx, immediateJob("history"))

	if outcome != jobqueue.OutcomeFailure {
		t.Fatalf("outcome = %v, want failure", outcome)
	}

	if _, ok, _ := fx.store.PersistedState(ctx); ok {
		t.Fatal("no result means no token to persist")
	}
}

func TestExecutor_DeclinedTranslationDropsUnknown(t *testing.T) {
	t.Parallel()

	fx := newExecutorFixture(t, []string{"history"})
	fx.engine.result = engine.Result{
		Status:         engine.StatusOK,
		Declined:       []string{"Bookmarks", "passwords", "holograms"},
		PersistedState: "tok",
	}

	fx.exec.Run(context.Background(), immediateJob("history"))

	fx.obs.mu.Lock()
	defer fx.obs.mu.Unlock()

	if len(fx.obs.declined) != 1 {
		t.Fatalf("declined notifications = %d, want 1", len(fx.obs.declined))
	}

	got := fx.obs.declined[0]
	want := []engine.ID{engine.Bookmarks, engine.Logins}

	if len(got) != len(want) {
		t.Fatalf("declined = %v, want %v", got, want)
	}

	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("declined = %v, want %v", got, want)
		}
	}
}

func TestExecutor_NilDeclinedMeansNoNotification(t *testing.T) {
	t.Parallel()

	fx := newExecutorFixture(t, []string{"history"})

	fx.exec.Run(context.Background(), immediateJob("history"))

	if _, _, _, declined := fx.obs.counts(); declined != 0 {
		t.Fatalf("declined notifications = %d, want 0", declined)
	}
}

func TestExecutor_RequestCarriesPriorToken(t *testing.T) {
	t.Parallel()

	fx := newExecutorFixture(t, []string{"history"})
	ctx := context.Background()

	if err := fx.store.SetPersistedState(ctx, "prior-token"); err != nil {
		t.Fatalf("SetPersistedState: %v", err)
	}

	fx.exec.Run(ctx, immediateJob("history"))

	fx.engine.mu.Lock()
	defer fx.engine.mu.Unlock()

	if len(fx.engine.calls) != 1 {
		t.Fatalf("engine calls = %d, want 1", len(fx.engine.calls))
	}

	req := fx.engine.calls[0]

	if req.PersistedState != "prior-token" {
		t.Fatalf("request token = %q, want prior-token", req.PersistedState)
	}

	if req.Engines != nil {
		t.Fatal("engines must be nil meaning \"all configured with a handle\"")
	}

	if req.Reason != engine.ReasonUser {
		t.Fatalf("reason = %q, want %q for an immediate job", req.Reason, engine.ReasonUser)
	}
}

func TestExecutor_ScheduledReasonForDebouncedJob(t *testing.T) {
	t.Parallel()

	fx := newExecutorFixture(t, []string{"history"})

	fx.exec.Run(context.Background(), debouncedJob("history"))

	fx.engine.mu.Lock()
	defer fx.engine.mu.Unlock()

	if req := fx.engine.calls[0]; req.Reason != engine.ReasonScheduled {
		t.Fatalf("reason = %q, want %q", req.Reason, engine.ReasonScheduled)
	}
}
