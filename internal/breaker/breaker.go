// Package breaker isolates repeated failures of a class of operations.
//
// A Breaker starts Closed. FailureThreshold consecutive failures open it, and
// while Open every call fails fast with a CircuitOpenError without running the
// operation. Once ResetTimeout has elapsed the next call moves it to HalfOpen,
// where at most HalfOpenMaxCalls trial calls may be in flight. SuccessThreshold
// consecutive trial successes close it again; any trial failure reopens it.
package breaker

import (
	"context"
	"errors"
	"sync"
	"time"

	apperrors "photovault/internal/errors"
)

// State is the breaker state.
type State int

const (
	Closed State = iota
	Open
	HalfOpen
)

func (s State) String() string {
	switch s {
	case Closed:
		return "closed"
	case Open:
		return "open"
	case HalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// Config holds the breaker thresholds.
type Config struct {
	FailureThreshold int
	SuccessThreshold int
	ResetTimeout     time.Duration
	HalfOpenMaxCalls int
}

// DefaultConfig returns the thresholds used for import work.
func DefaultConfig() Config {
	return Config{
		FailureThreshold: 5,
		SuccessThreshold: 2,
		ResetTimeout:     30 * time.Second,
		HalfOpenMaxCalls: 1,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.FailureThreshold <= 0 {
		c.FailureThreshold = d.FailureThreshold
	}
	if c.SuccessThreshold <= 0 {
		c.SuccessThreshold = d.SuccessThreshold
	}
	if c.ResetTimeout <= 0 {
		c.ResetTimeout = d.ResetTimeout
	}
	if c.HalfOpenMaxCalls <= 0 {
		c.HalfOpenMaxCalls = d.HalfOpenMaxCalls
	}
	return c
}

// Snapshot is a point-in-time view of a breaker.
type Snapshot struct {
	Name                string
	State               State
	ConsecutiveFailures int
	HalfOpenSuccesses   int
	TotalFailures       int
	LastFailure         time.Time
}

// Breaker is safe for concurrent use.
type Breaker struct {
	name string
	cfg  Config
	now  func() time.Time

	mu                  sync.Mutex
	state               State
	consecutiveFailures int
	halfOpenSuccesses   int
	halfOpenInFlight    int
	totalFailures       int
	lastFailure         time.Time
	openedAt            time.Time
}

// Option customizes a Breaker.
type Option func(*Breaker)

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(b *Breaker) { b.now = now }
}

// New creates a closed breaker.
func New(name string, cfg Config, opts ...Option) *Breaker {
	b := &Breaker{
		name: name,
		cfg:  cfg.withDefaults(),
		now:  time.Now,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Name returns the operation class this breaker guards.
func (b *Breaker) Name() string { return b.name }

// State returns the current state, applying the Open→HalfOpen transition
// if the reset timeout has elapsed.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.advanceLocked()
	return b.state
}

// Snapshot returns the breaker counters.
func (b *Breaker) Snapshot() Snapshot {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.advanceLocked()
	return Snapshot{
		Name:                b.name,
		State:               b.state,
		ConsecutiveFailures: b.consecutiveFailures,
		HalfOpenSuccesses:   b.halfOpenSuccesses,
		TotalFailures:       b.totalFailures,
		LastFailure:         b.lastFailure,
	}
}

// Execute runs fn unless the circuit is open.
func (b *Breaker) Execute(ctx context.Context, fn func(context.Context) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	trial, err := b.admit()
	if err != nil {
		return err
	}
	err = fn(ctx)
	b.record(trial, err)
	return err
}

// Do runs fn through the breaker and returns its value.
func Do[T any](ctx context.Context, b *Breaker, fn func(context.Context) (T, error)) (T, error) {
	var out T
	err := b.Execute(ctx, func(ctx context.Context) error {
		v, err := fn(ctx)
		if err != nil {
			return err
		}
		out = v
		return nil
	})
	return out, err
}

// Reset forces the breaker closed and clears its counters.
func (b *Breaker) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.state = Closed
	b.consecutiveFailures = 0
	b.halfOpenSuccesses = 0
	b.halfOpenInFlight = 0
}

// admit decides whether a call may proceed. trial is true for half-open calls.
func (b *Breaker) admit() (trial bool, err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.advanceLocked()

	switch b.state {
	case Open:
		return false, &apperrors.CircuitOpenError{
			Name:       b.name,
			RetryAfter: b.cfg.ResetTimeout - b.now().Sub(b.openedAt),
		}
	case HalfOpen:
		if b.halfOpenInFlight >= b.cfg.HalfOpenMaxCalls {
			return false, &apperrors.CircuitOpenError{Name: b.name}
		}
		b.halfOpenInFlight++
		return true, nil
	default:
		return false, nil
	}
}

func (b *Breaker) record(trial bool, err error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if trial {
		b.halfOpenInFlight--
	}

	// Cancellation says nothing about the health of the operation.
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return
	}

	if err != nil {
		b.totalFailures++
		b.lastFailure = b.now()
		switch b.state {
		case HalfOpen:
			b.tripLocked()
		case Closed:
			b.consecutiveFailures++
			if b.consecutiveFailures >= b.cfg.FailureThreshold {
				b.tripLocked()
			}
		}
		return
	}

	switch b.state {
	case HalfOpen:
		b.halfOpenSuccesses++
		if b.halfOpenSuccesses >= b.cfg.SuccessThreshold {
			b.state = Closed
			b.consecutiveFailures = 0
			b.halfOpenSuccesses = 0
		}
	case Closed:
		b.consecutiveFailures = 0
	}
}

func (b *Breaker) tripLocked() {
	b.state = Open
	b.openedAt = b.now()
	b.halfOpenSuccesses = 0
}

func (b *Breaker) advanceLocked() {
	if b.state == Open && b.now().Sub(b.openedAt) >= b.cfg.ResetTimeout {
		b.state = HalfOpen
		b.halfOpenSuccesses = 0
		b.halfOpenInFlight = 0
	}
}
