// Package jobqueue is an in-process job-scheduling substrate: named jobs
// with keep/replace deduplication, initial delays, periodic re-execution,
// a network-connectivity constraint, and exponential backoff for attempts
// that ask to be retried. The scheduler core submits work here and relies
// on the unique-name guarantee for concurrency safety; at most one job
// per name is ever queued or running.
package jobqueue

import (
	"context"
	"errors"
	"log/slog"
	stdsync "sync"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/google/uuid"
)

// Tag labels a job for aggregate observation and executor policy.
type Tag string

// Job tags. Every sync job carries TagCommon; exactly one of TagImmediate
// or TagDebounce marks how the executor should treat the attempt.
const (
	TagCommon    Tag = "common"
	TagImmediate Tag = "immediate"
	TagDebounce  Tag = "debounce"
)

// DedupPolicy controls what happens when a job is submitted under a name
// that is already queued or running.
type DedupPolicy int

const (
	// Keep drops the new submission, collapsing bursts of triggers into a
	// single execution.
	Keep DedupPolicy = iota
	// Replace supersedes the existing schedule with the new definition.
	// An attempt already executing runs to completion before the
	// replacement starts.
	Replace
)

// Outcome is the runner's classification of one attempt.
type Outcome int

const (
	// OutcomeSuccess completes the attempt; periodic jobs wait for their
	// next tick, one-shot jobs are done.
	OutcomeSuccess Outcome = iota
	// OutcomeRetry re-runs the attempt under the queue's exponential
	// backoff policy.
	OutcomeRetry
	// OutcomeFailure completes the attempt without retry. A subsequent
	// periodic tick retries naturally.
	OutcomeFailure
)

// String returns the outcome name for logging.
func (o Outcome) String() string {
	switch o {
	case OutcomeSuccess:
		return "success"
	case OutcomeRetry:
		return "retry"
	case OutcomeFailure:
		return "failure"
	default:
		return "unknown"
	}
}

// JobSpec describes a job submission. Immutable once submitted.
type JobSpec struct {
	// Name is the unique dedup key.
	Name string
	// Policy resolves name collisions.
	Policy DedupPolicy
	// Tags label the job for observation and executor policy.
	Tags []Tag
	// InitialDelay postpones the first attempt.
	InitialDelay time.Duration
	// Every re-runs the job at this interval when non-zero. Clamped to
	// the queue's minimum periodic interval.
	Every time.Duration
	// RequiresNetwork gates attempts on connectivity.
	RequiresNetwork bool
	// StoreNames is the input data carried to the runner.
	StoreNames []string
}

// Job is one attempt's view of its submission, handed to the Runner.
type Job struct {
	// ID uniquely identifies the job instance across its attempts.
	ID string
	// Attempt counts executions of this instance, starting at 1.
	Attempt int

	Name       string
	Tags       []Tag
	StoreNames []string
}

// HasTag reports whether the job carries the given tag.
func (j Job) HasTag(tag Tag) bool {
	for _, t := range j.Tags {
		if t == tag {
			return true
		}
	}

	return false
}

// Runner executes one attempt. The queue calls Run from its own goroutine
// and acts on the returned Outcome.
type Runner interface {
	Run(ctx context.Context, job Job) Outcome
}

// Connectivity reports whether the network is usable. Attempts requiring
// network poll it until it reports online.
type Connectivity interface {
	Online() bool
}

// AlwaysOnline is the default Connectivity: never blocks.
type AlwaysOnline struct{}

// Online always reports true.
func (AlwaysOnline) Online() bool { return true }

// ErrStopped is returned by Submit after the queue has been stopped.
var ErrStopped = errors.New("jobqueue: queue stopped")

// Queue scheduling defaults. MinPeriodicInterval mirrors the platform
// floor the production substrate enforces.
const (
	MinPeriodicInterval = 15 * time.Minute

	defaultRetryInitial = 30 * time.Second
	defaultRetryMax     = 10 * time.Minute
	connectivityPollGap = time.Second
)

// Options tune queue behavior. The zero value is production-ready.
type Options struct {
	// Connectivity gates network-constrained jobs. Nil means AlwaysOnline.
	Connectivity Connectivity
	// MinPeriodicInterval overrides the periodic floor. Zero keeps the
	// default; tests shrink it to keep runtimes sane.
	MinPeriodicInterval time.Duration
	// RetryInitialInterval and RetryMaxInterval shape the exponential
	// retry backoff. Zero keeps the defaults.
	RetryInitialInterval time.Duration
	RetryMaxInterval     time.Duration
}

// Queue is the in-process substrate. Create with New, Submit jobs, Stop
// when done. Each job runs on its own goroutine; the unique-name map is
// the sole dedup point.
type Queue struct {
	runner  Runner
	conn    Connectivity
	logger  *slog.Logger
	opts    Options
	onState func(running bool)

	mu      stdsync.Mutex
	jobs    map[string]*jobHandle
	common  int // running jobs tagged common
	stopped bool

	// edgeMu serializes running-count updates with observer delivery so
	// callbacks arrive in edge order.
	edgeMu stdsync.Mutex

	ctx    context.Context
	cancel context.CancelFunc
	wg     stdsync.WaitGroup
}

// jobHandle tracks one live job instance. The stop channel tears down the
// schedule between attempts only; an in-flight attempt keeps the queue
// context and runs to completion.
type jobHandle struct {
	spec JobSpec
	id   string

	stop     chan struct{}
	stopOnce stdsync.Once

	// done closes when the job's goroutine exits. A Replace successor
	// waits on it so the unique name never has two live attempts.
	done chan struct{}
}

// signalStop requests the schedule stop after any in-flight attempt.
func (h *jobHandle) signalStop() {
	h.stopOnce.Do(func() { close(h.stop) })
}

// New creates a queue that executes attempts through runner.
func New(runner Runner, opts Options, logger *slog.Logger) *Queue {
	if opts.Connectivity == nil {
		opts.Connectivity = AlwaysOnline{}
	}

	if opts.MinPeriodicInterval <= 0 {
		opts.MinPeriodicInterval = MinPeriodicInterval
	}

	if opts.RetryInitialInterval <= 0 {
		opts.RetryInitialInterval = defaultRetryInitial
	}

	if opts.RetryMaxInterval <= 0 {
		opts.RetryMaxInterval = defaultRetryMax
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Queue{
		runner: runner,
		conn:   opts.Connectivity,
		logger: logger,
		opts:   opts,
		jobs:   make(map[string]*jobHandle),
		ctx:    ctx,
		cancel: cancel,
	}
}

// SetRunningObserver registers the callback invoked whenever the set of
// running jobs tagged common transitions between empty and non-empty.
// Must be called before the first Submit. The callback runs on the job's
// goroutine and must not block.
func (q *Queue) SetRunningObserver(fn func(running bool)) {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.onState = fn
}

// Submit schedules a job. A name collision is resolved by Policy: Keep
// drops the submission, Replace cancels the existing schedule and installs
// the new one.
func (q *Queue) Submit(spec JobSpec) error {
	q.mu.Lock()

	if q.stopped {
		q.mu.Unlock()
		return ErrStopped
	}

	var prev *jobHandle

	if existing, ok := q.jobs[spec.Name]; ok {
		if spec.Policy == Keep {
			q.mu.Unlock()
			q.logger.Debug("job already scheduled, dropping submission",
				slog.String("name", spec.Name),
			)

			return nil
		}

		// Replace: stop the existing schedule. A running attempt finishes
		// undisturbed; the successor waits for its goroutine to exit.
		existing.signalStop()
		prev = existing
		delete(q.jobs, spec.Name)
	}

	if spec.Every > 0 && spec.Every < q.opts.MinPeriodicInterval {
		q.logger.Warn("periodic interval below floor, clamping",
			slog.String("name", spec.Name),
			slog.Duration("requested", spec.Every),
			slog.Duration("floor", q.opts.MinPeriodicInterval),
		)
		spec.Every = q.opts.MinPeriodicInterval
	}

	h := &jobHandle{
		spec: spec,
		id:   uuid.NewString(),
		stop: make(chan struct{}),
		done: make(chan struct{}),
	}
	q.jobs[spec.Name] = h

	q.wg.Add(1)
	q.mu.Unlock()

	q.logger.Info("job submitted",
		slog.String("name", spec.Name),
		slog.String("id", h.id),
		slog.Duration("initial_delay", spec.InitialDelay),
		slog.Duration("every", spec.Every),
	)

	go q.runJob(h, prev)

	return nil
}

// Cancel removes the job scheduled under name. A running attempt is not
// interrupted. Cancelling an unknown name is a no-op.
func (q *Queue) Cancel(name string) error {
	q.mu.Lock()
	h, ok := q.jobs[name]
	if ok {
		delete(q.jobs, name)
	}
	q.mu.Unlock()

	if !ok {
		return nil
	}

	h.signalStop()
	q.logger.Info("job cancelled", slog.String("name", name), slog.String("id", h.id))

	return nil
}

// Stop cancels all jobs and waits for their goroutines to exit. In-flight
// attempts observe context cancellation through the engine invocation.
func (q *Queue) Stop() {
	q.mu.Lock()
	q.stopped = true
	q.mu.Unlock()

	q.cancel()
	q.wg.Wait()
}

// runJob is the per-job scheduling loop: initial delay, connectivity gate,
// attempt, then retry/periodic rescheduling until done or stopped. Stop
// signals take effect between attempts; the attempt itself runs under the
// queue context, so only a full queue shutdown reaches a running attempt.
func (q *Queue) runJob(h *jobHandle, prev *jobHandle) {
	defer q.wg.Done()
	defer close(h.done)
	defer q.forget(h)

	if prev != nil {
		// Wait out the superseded instance so the unique name never has
		// two live attempts.
		<-prev.done
	}

	spec := h.spec

	if !q.waitFor(h, spec.InitialDelay) {
		return
	}

	retry := backoff.NewExponentialBackOff()
	retry.InitialInterval = q.opts.RetryInitialInterval
	retry.MaxInterval = q.opts.RetryMaxInterval
	retry.Reset()

	attempt := 0

	for {
		if spec.RequiresNetwork && !q.awaitConnectivity(h) {
			return
		}

		attempt++
		job := Job{
			ID:         h.id,
			Attempt:    attempt,
			Name:       spec.Name,
			Tags:       spec.Tags,
			StoreNames: spec.StoreNames,
		}

		q.markRunning(job, true)
		outcome := q.safeRun(q.ctx, job)
		q.markRunning(job, false)

		q.logger.Info("attempt finished",
			slog.String("name", job.Name),
			slog.String("id", job.ID),
			slog.Int("attempt", attempt),
			slog.String("outcome", outcome.String()),
		)

		var wait time.Duration

		switch outcome {
		case OutcomeRetry:
			wait = retry.NextBackOff()
		case OutcomeSuccess, OutcomeFailure:
			if spec.Every == 0 {
				return
			}

			retry.Reset()
			attempt = 0
			wait = spec.Every
		}

		if !q.waitFor(h, wait) {
			return
		}
	}
}

// safeRun wraps the runner with panic recovery so one bad attempt cannot
// kill the scheduling loop.
func (q *Queue) safeRun(ctx context.Context, job Job) (outcome Outcome) {
	defer func() {
		if r := recover(); r != nil {
			q.logger.Error("runner panicked",
				slog.String("name", job.Name),
				slog.Any("panic", r),
			)
			outcome = OutcomeFailure
		}
	}()

	return q.runner.Run(ctx, job)
}

// awaitConnectivity polls the connectivity checker until it reports online.
// Returns false when the job is stopped or the queue shuts down first.
func (q *Queue) awaitConnectivity(h *jobHandle) bool {
	for !q.conn.Online() {
		q.logger.Debug("waiting for network connectivity")

		if !q.waitFor(h, connectivityPollGap) {
			return false
		}
	}

	return true
}

// markRunning updates the running count of common-tagged jobs and fires
// the state observer on empty/non-empty edges. Holding edgeMu across the
// count update and the delivery keeps callback order consistent with
// count order when jobs start and finish concurrently.
func (q *Queue) markRunning(job Job, running bool) {
	if !job.HasTag(TagCommon) {
		return
	}

	q.edgeMu.Lock()
	defer q.edgeMu.Unlock()

	q.mu.Lock()

	var edge bool

	if running {
		q.common++
		edge = q.common == 1
	} else {
		q.common--
		edge = q.common == 0
	}

	fn := q.onState
	q.mu.Unlock()

	if edge && fn != nil {
		fn(running)
	}
}

// forget removes the handle from the name map if it is still the owner.
// A Replace or Cancel may already have installed a different handle.
func (q *Queue) forget(h *jobHandle) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if current, ok := q.jobs[h.spec.Name]; ok && current == h {
		delete(q.jobs, h.spec.Name)
	}
}

// waitFor sleeps for d or until the job is stopped or the queue shuts
// down. Returns false when the job should not run again.
func (q *Queue) waitFor(h *jobHandle, d time.Duration) bool {
	if d <= 0 {
		select {
		case <-h.stop:
			return false
		case <-q.ctx.Done():
			return false
		default:
			return true
		}
	}

	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-h.stop:
		return false
	case <-q.ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
