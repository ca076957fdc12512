package jobs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"

	"github.com/MrWong99/wavscribe/internal/observe"
	"github.com/MrWong99/wavscribe/internal/transcribe"
)

// storeTimeout bounds store writes made after a job's context is gone.
const storeTimeout = 5 * time.Second

// subscriberBuffer is the channel capacity of a live segment subscription.
const subscriberBuffer = 64

// Runner executes one transcription. [*transcribe.Runner] implements it.
type Runner interface {
	Execute(ctx context.Context, p transcribe.Params, tok *transcribe.Token, listener transcribe.SegmentListener) (string, error)
}

// Option configures a Manager.
type Option func(*Manager)

// WithMaxConcurrent sets how many jobs may run at once. Defaults to 1.
func WithMaxConcurrent(n int) Option {
	return func(m *Manager) {
		if n > 0 {
			m.maxConcurrent = n
		}
	}
}

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(m *Manager) { m.log = l }
}

// WithMetrics sets the metrics sink. Defaults to observe.DefaultMetrics().
func WithMetrics(met *observe.Metrics) Option {
	return func(m *Manager) { m.metrics = met }
}

// activeJob is the in-process state of a queued or running job.
type activeJob struct {
	cancel context.CancelFunc
	done   chan struct{}

	mu       sync.Mutex
	subs     map[int]chan transcribe.Segment
	nextSub  int
	segments int
}

// OnSegment fans a segment out to all subscribers. Slow subscribers miss
// segments rather than stalling the engine.
func (a *activeJob) OnSegment(s transcribe.Segment) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.segments++
	for _, ch := range a.subs {
		select {
		case ch <- s:
		default:
		}
	}
}

func (a *activeJob) closeSubs() {
	a.mu.Lock()
	defer a.mu.Unlock()
	for id, ch := range a.subs {
		close(ch)
		delete(a.subs, id)
	}
	a.subs = nil
}

// Manager runs jobs in the background with bounded concurrency.
type Manager struct {
	store         Store
	runner        Runner
	maxConcurrent int
	sem           *semaphore.Weighted
	log           *slog.Logger
	metrics       *observe.Metrics

	baseCtx    context.Context
	cancelBase context.CancelFunc
	wg         sync.WaitGroup

	mu     sync.Mutex
	active map[string]*activeJob
	closed bool
}

// NewManager returns a Manager that persists jobs in store and executes them
// with runner.
func NewManager(store Store, runner Runner, opts ...Option) *Manager {
	m := &Manager{
		store:         store,
		runner:        runner,
		maxConcurrent: 1,
		log:           slog.Default(),
		active:        make(map[string]*activeJob),
	}
	for _, o := range opts {
		o(m)
	}
	if m.metrics == nil {
		m.metrics = observe.DefaultMetrics()
	}
	m.log = m.log.With("component", "jobs")
	m.sem = semaphore.NewWeighted(int64(m.maxConcurrent))
	m.baseCtx, m.cancelBase = context.WithCancel(context.Background())
	return m
}

// Submit persists a queued job for p and starts it in the background. The
// returned job is a snapshot; use Get or Wait for updates.
func (m *Manager) Submit(ctx context.Context, p transcribe.Params) (*Job, error) {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil, ErrShuttingDown
	}
	m.mu.Unlock()

	job := &Job{
		ID:     uuid.NewString(),
		Status: StatusQueued,
		Params: p,
	}
	if err := m.store.Create(ctx, job); err != nil {
		return nil, err
	}

	jctx, cancel := context.WithCancel(m.baseCtx)
	a := &activeJob{
		cancel: cancel,
		done:   make(chan struct{}),
		subs:   make(map[int]chan transcribe.Segment),
	}

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		cancel()
		job.Status = StatusCancelled
		job.Error = ErrShuttingDown.Error()
		m.persist(job)
		return nil, ErrShuttingDown
	}
	m.active[job.ID] = a
	m.wg.Add(1)
	m.mu.Unlock()

	m.log.Info("job submitted", "job_id", job.ID, "inputs", len(p.Inputs))
	go m.execute(jctx, job.clone(), a)
	return job.clone(), nil
}

// execute waits for a slot, runs the job and records its outcome.
func (m *Manager) execute(ctx context.Context, job *Job, a *activeJob) {
	defer m.wg.Done()
	defer func() {
		m.mu.Lock()
		delete(m.active, job.ID)
		m.mu.Unlock()
		a.closeSubs()
		a.cancel()
		close(a.done)
	}()

	log := m.log.With("job_id", job.ID)

	m.metrics.QueuedJobs.Add(ctx, 1)
	err := m.sem.Acquire(ctx, 1)
	m.metrics.QueuedJobs.Add(ctx, -1)
	if err != nil {
		m.finish(log, job, "", fmt.Errorf("%w: %w", transcribe.ErrAborted, err), 0)
		return
	}
	defer m.sem.Release(1)

	job.Status = StatusRunning
	m.persist(job)
	log.Info("job started")

	text, err := m.runner.Execute(ctx, job.Params, transcribe.NewToken(ctx), a)

	a.mu.Lock()
	n := a.segments
	a.mu.Unlock()
	m.finish(log, job, text, err, n)
}

// finish stores the terminal state of job.
func (m *Manager) finish(log *slog.Logger, job *Job, text string, err error, segments int) {
	job.Segments = segments
	switch {
	case err == nil:
		job.Status = StatusSucceeded
		job.Text = text
	case errors.Is(err, transcribe.ErrAborted):
		job.Status = StatusCancelled
		job.Error = err.Error()
	default:
		job.Status = StatusFailed
		job.Error = err.Error()
	}
	m.persist(job)
	m.metrics.RecordJob(context.Background(), string(job.Status))

	if err != nil {
		log.Warn("job ended without transcript", "status", job.Status, "err", err)
		return
	}
	log.Info("job succeeded", "segments", segments, "chars", len(text))
}

// persist writes job to the store. Failures are logged; the in-memory outcome
// still reaches waiters through Get once the store recovers.
func (m *Manager) persist(job *Job) {
	ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
	defer cancel()
	if err := m.store.Update(ctx, job); err != nil {
		m.log.Error("failed to persist job", "job_id", job.ID, "status", job.Status, "err", err)
	}
}

// Get returns the current state of job id.
func (m *Manager) Get(ctx context.Context, id string) (*Job, error) {
	return m.store.Get(ctx, id)
}

// List returns up to limit jobs, newest first.
func (m *Manager) List(ctx context.Context, limit int) ([]Job, error) {
	return m.store.List(ctx, limit)
}

// Cancel requests job id to stop. Queued jobs never start; running jobs stop
// before the engine's next processing stage.
func (m *Manager) Cancel(ctx context.Context, id string) error {
	m.mu.Lock()
	a, ok := m.active[id]
	m.mu.Unlock()
	if ok {
		a.cancel()
		m.log.Info("job cancellation requested", "job_id", id)
		return nil
	}
	if _, err := m.store.Get(ctx, id); err != nil {
		return err
	}
	return ErrFinished
}

// Subscribe returns a channel of the live segments of job id. The channel is
// closed when the job ends or unsubscribe is called. Segments emitted before
// subscribing are not replayed.
func (m *Manager) Subscribe(id string) (<-chan transcribe.Segment, func(), error) {
	m.mu.Lock()
	a, ok := m.active[id]
	m.mu.Unlock()
	if !ok {
		return nil, nil, ErrNotRunning
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if a.subs == nil {
		return nil, nil, ErrNotRunning
	}
	ch := make(chan transcribe.Segment, subscriberBuffer)
	sid := a.nextSub
	a.nextSub++
	a.subs[sid] = ch

	var once sync.Once
	unsubscribe := func() {
		once.Do(func() {
			a.mu.Lock()
			defer a.mu.Unlock()
			if c, ok := a.subs[sid]; ok {
				close(c)
				delete(a.subs, sid)
			}
		})
	}
	return ch, unsubscribe, nil
}

// Wait blocks until job id reaches a terminal status or ctx is done, then
// returns its latest state.
func (m *Manager) Wait(ctx context.Context, id string) (*Job, error) {
	m.mu.Lock()
	a, ok := m.active[id]
	m.mu.Unlock()
	if ok {
		select {
		case <-a.done:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return m.store.Get(ctx, id)
}

// Shutdown stops accepting jobs, cancels all queued and running jobs and
// waits for them to record their outcome or for ctx to expire.
func (m *Manager) Shutdown(ctx context.Context) error {
	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()
	m.cancelBase()

	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("jobs: shutdown: %w", ctx.Err())
	}
}
