// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package resilience protects the backend gateway from repeated failing calls.
package resilience

import (
	"errors"
	"sync"
	"time"

	"github.com/ManuGH/xmlembed/internal/log"
	"github.com/ManuGH/xmlembed/internal/metrics"
)

// State represents the circuit breaker state.
type State string

const (
	StateClosed   State = "closed"
	StateOpen     State = "open"
	StateHalfOpen State = "half-open"
)

var (
	ErrCircuitOpen = errors.New("circuit breaker is open")
)

// Clock abstracts time operations for testability.
type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

// CircuitBreaker trips after threshold consecutive counted failures and
// admits a single probe once resetTimeout has elapsed.
type CircuitBreaker struct {
	mu           sync.Mutex
	name         string // Component name for metrics
	state        State
	failures     int
	threshold    int
	resetTimeout time.Duration
	openedAt     time.Time
	probing      bool
	clock        Clock
	counts       func(error) bool

	recoverPanic bool
}

// Option configuration pattern
type Option func(*CircuitBreaker)

// WithClock replaces the wall clock.
func WithClock(c Clock) Option {
	return func(cb *CircuitBreaker) { cb.clock = c }
}

// WithPanicRecovery records panics in the executed function as failures before re-panicking.
func WithPanicRecovery(enabled bool) Option {
	return func(cb *CircuitBreaker) { cb.recoverPanic = enabled }
}

// WithFailureFilter limits which errors count toward tripping the breaker.
// Errors for which fn returns false are passed through without being recorded.
func WithFailureFilter(fn func(error) bool) Option {
	return func(cb *CircuitBreaker) { cb.counts = fn }
}

// NewCircuitBreaker creates a new circuit breaker.
func NewCircuitBreaker(name string, threshold int, resetTimeout time.Duration, opts ...Option) *CircuitBreaker {
	if threshold <= 0 {
		threshold = 3
	}
	if resetTimeout <= 0 {
		resetTimeout = 30 * time.Second
	}

	cb := &CircuitBreaker{
		name:         name,
		state:        StateClosed,
		threshold:    threshold,
		resetTimeout: resetTimeout,
		clock:        realClock{},
		counts:       func(error) bool { return true },
	}
	for _, opt := range opts {
		opt(cb)
	}

	metrics.SetCircuitBreakerState(cb.name, string(cb.state))
	return cb
}

// Execute runs fn unless the breaker is open. A nil error closes the breaker,
// a counted error moves it toward open, other errors leave it unchanged.
func (cb *CircuitBreaker) Execute(fn func() error) (err error) {
	if !cb.allowRequest() {
		metrics.RecordCircuitBreakerRejection(cb.name)
		return ErrCircuitOpen
	}
	if cb.recoverPanic {
		defer func() {
			if r := recover(); r != nil {
				cb.settle(outcomeFailure)
				panic(r)
			}
		}()
	}

	err = fn()
	switch {
	case err == nil:
		cb.settle(outcomeSuccess)
	case cb.counts(err):
		cb.settle(outcomeFailure)
	default:
		cb.settle(outcomeIgnored)
	}
	return err
}

func (cb *CircuitBreaker) allowRequest() bool {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case StateClosed:
		return true
	case StateOpen:
		if cb.clock.Now().Sub(cb.openedAt) < cb.resetTimeout {
			return false
		}
		cb.transitionTo(StateHalfOpen)
	}
	// half-open admits one probe at a time
	if cb.probing {
		return false
	}
	cb.probing = true
	return true
}

type outcome int

const (
	outcomeSuccess outcome = iota
	outcomeFailure
	outcomeIgnored
)

func (cb *CircuitBreaker) settle(o outcome) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.probing = false
	switch o {
	case outcomeSuccess:
		cb.failures = 0
		cb.transitionTo(StateClosed)
	case outcomeFailure:
		cb.failures++
		switch {
		case cb.state == StateHalfOpen:
			metrics.RecordCircuitBreakerTrip(cb.name, "probe_failed")
			cb.transitionTo(StateOpen)
		case cb.state == StateClosed && cb.failures >= cb.threshold:
			metrics.RecordCircuitBreakerTrip(cb.name, "threshold")
			cb.transitionTo(StateOpen)
		}
	}
}

// transitionTo handles state transitions and updates metrics.
// Caller must hold lock.
func (cb *CircuitBreaker) transitionTo(newState State) {
	if cb.state == newState {
		return
	}
	old := cb.state
	cb.state = newState
	if newState == StateOpen {
		cb.openedAt = cb.clock.Now()
	}
	metrics.SetCircuitBreakerState(cb.name, string(newState))
	logger := log.WithComponent("resilience")
	logger.Info().
		Str(log.FieldEvent, "breaker.transition").
		Str("breaker", cb.name).
		Str(log.FieldOldState, string(old)).
		Str(log.FieldNewState, string(newState)).
		Int("failures", cb.failures).
		Msg("circuit breaker state changed")
}

// Snapshot is a consistent view of the breaker.
type Snapshot struct {
	State    State
	Failures int
	// RetryAt is when an open breaker admits its next probe; zero otherwise.
	RetryAt time.Time
}

// Snapshot returns the current state, failure count and retry time together.
func (cb *CircuitBreaker) Snapshot() Snapshot {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	snap := Snapshot{State: cb.state, Failures: cb.failures}
	if cb.state == StateOpen {
		snap.RetryAt = cb.openedAt.Add(cb.resetTimeout)
	}
	return snap
}

// State returns the current state.
func (cb *CircuitBreaker) State() State {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

// Name returns the component name.
func (cb *CircuitBreaker) Name() string { return cb.name }

// Failures returns the consecutive counted failure count.
func (cb *CircuitBreaker) Failures() int {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.failures
}
