// Package resilience guards calls to external dependencies, such as the job
// database, with a circuit breaker. While the dependency keeps failing,
// callers get [ErrOpen] immediately instead of waiting on timeouts.
package resilience

import (
	"errors"
	"log/slog"
	"sync"
	"time"
)

// ErrOpen is returned by [Breaker.Do] while the breaker rejects calls.
var ErrOpen = errors.New("resilience: circuit open")

// State is the operating mode of a [Breaker].
type State int

const (
	// StateClosed forwards every call.
	StateClosed State = iota

	// StateOpen rejects calls until the reset timeout has passed.
	StateOpen

	// StateHalfOpen lets a limited number of trial calls through. One
	// failed trial reopens the breaker; enough successes close it.
	StateHalfOpen
)

// String returns the state name used in logs.
func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// Config tunes a [Breaker]. Zero fields take the documented defaults.
type Config struct {
	// Name labels log messages.
	Name string

	// MaxFailures is the number of consecutive failures that opens the
	// breaker. Default: 5.
	MaxFailures int

	// ResetTimeout is how long the breaker stays open. Default: 30s.
	ResetTimeout time.Duration

	// HalfOpenMax is the number of successful trials needed to close the
	// breaker again. Default: 3.
	HalfOpenMax int

	// IsFailure classifies errors returned by guarded calls. Errors it
	// rejects count as successes. Default: every non-nil error is a failure.
	IsFailure func(error) bool

	// Logger receives state transitions. Default: slog.Default().
	Logger *slog.Logger
}

// Breaker is a three-state circuit breaker, safe for concurrent use.
type Breaker struct {
	name         string
	maxFailures  int
	resetTimeout time.Duration
	halfOpenMax  int
	isFailure    func(error) bool
	log          *slog.Logger
	now          func() time.Time

	mu             sync.Mutex
	state          State
	failures       int
	openedAt       time.Time
	trials         int
	trialSuccesses int
}

// New returns a closed Breaker.
func New(cfg Config) *Breaker {
	if cfg.MaxFailures <= 0 {
		cfg.MaxFailures = 5
	}
	if cfg.ResetTimeout <= 0 {
		cfg.ResetTimeout = 30 * time.Second
	}
	if cfg.HalfOpenMax <= 0 {
		cfg.HalfOpenMax = 3
	}
	if cfg.IsFailure == nil {
		cfg.IsFailure = func(err error) bool { return err != nil }
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Breaker{
		name:         cfg.Name,
		maxFailures:  cfg.MaxFailures,
		resetTimeout: cfg.ResetTimeout,
		halfOpenMax:  cfg.HalfOpenMax,
		isFailure:    cfg.IsFailure,
		log:          cfg.Logger,
		now:          time.Now,
	}
}

// Do calls fn unless the breaker is open, and returns fn's error unchanged.
func (b *Breaker) Do(fn func() error) error {
	trial, err := b.admit()
	if err != nil {
		return err
	}
	err = fn()
	b.record(trial, b.isFailure(err))
	return err
}

// admit decides whether a call may proceed and whether it is a trial.
func (b *Breaker) admit() (trial bool, err error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state == StateOpen {
		if b.now().Sub(b.openedAt) < b.resetTimeout {
			return false, ErrOpen
		}
		b.state = StateHalfOpen
		b.trials = 0
		b.trialSuccesses = 0
		b.log.Info("circuit breaker half-open", "name", b.name)
	}
	if b.state == StateHalfOpen {
		if b.trials >= b.halfOpenMax {
			return false, ErrOpen
		}
		b.trials++
		return true, nil
	}
	return false, nil
}

func (b *Breaker) record(trial, failed bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch {
	case failed && trial:
		b.trip()
		b.log.Warn("circuit breaker reopened by failed trial", "name", b.name)
	case failed:
		b.failures++
		if b.state == StateClosed && b.failures >= b.maxFailures {
			b.trip()
			b.log.Warn("circuit breaker opened", "name", b.name, "consecutive_failures", b.failures)
		}
	case trial:
		b.trialSuccesses++
		if b.state == StateHalfOpen && b.trialSuccesses >= b.halfOpenMax {
			b.state = StateClosed
			b.failures = 0
			b.log.Info("circuit breaker closed", "name", b.name)
		}
	default:
		b.failures = 0
	}
}

// trip opens the breaker. Must be called with b.mu held.
func (b *Breaker) trip() {
	b.state = StateOpen
	b.openedAt = b.now()
	b.failures = 0
}

// State returns the current state. An open breaker whose timeout has passed
// reports StateHalfOpen; the transition itself happens on the next call.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.state == StateOpen && b.now().Sub(b.openedAt) >= b.resetTimeout {
		return StateHalfOpen
	}
	return b.state
}

// Reset closes the breaker and clears all counters.
func (b *Breaker) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.state = StateClosed
	b.failures = 0
	b.trials = 0
	b.trialSuccesses = 0
	b.log.Info("circuit breaker reset", "name", b.name)
}
