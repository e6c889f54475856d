// Copyright (c) 2026 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package resilience guards calls to external collaborators.
package resilience

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/ManuGH/hlsgate/internal/log"
	"github.com/ManuGH/hlsgate/internal/metrics"
)

// State is the breaker position as exported to metrics and health.
type State string

const (
	StateClosed   State = "closed"
	StateOpen     State = "open"
	StateHalfOpen State = "half-open"
)

const (
	defaultThreshold    = 5
	defaultResetTimeout = 30 * time.Second
)

// ErrCircuitOpen is returned without calling fn while the breaker is open.
var ErrCircuitOpen = errors.New("circuit breaker is open")

// Clock is swapped out in tests.
type Clock interface {
	Now() time.Time
}

type wallClock struct{}

func (wallClock) Now() time.Time { return time.Now() }

// CircuitBreaker opens after threshold consecutive failures. Once
// resetTimeout has passed it admits exactly one probe; the probe's outcome
// closes or reopens it.
type CircuitBreaker struct {
	name         string
	threshold    int
	resetTimeout time.Duration
	clock        Clock
	counts       func(error) bool

	mu       sync.Mutex
	state    State
	failures int
	openedAt time.Time
	probing  bool
}

type Option func(*CircuitBreaker)

func WithClock(c Clock) Option {
	return func(cb *CircuitBreaker) { cb.clock = c }
}

// WithFailureClassifier replaces the rule deciding which errors count as
// failures. Errors it rejects are returned to the caller and reset the
// failure streak like a success.
func WithFailureClassifier(fn func(error) bool) Option {
	return func(cb *CircuitBreaker) { cb.counts = fn }
}

// NewCircuitBreaker returns a closed breaker. Non-positive threshold and
// resetTimeout take the defaults of 5 and 30s.
func NewCircuitBreaker(name string, threshold int, resetTimeout time.Duration, opts ...Option) *CircuitBreaker {
	cb := &CircuitBreaker{
		name:         name,
		threshold:    threshold,
		resetTimeout: resetTimeout,
		clock:        wallClock{},
		counts:       notCanceled,
		state:        StateClosed,
	}
	if cb.threshold <= 0 {
		cb.threshold = defaultThreshold
	}
	if cb.resetTimeout <= 0 {
		cb.resetTimeout = defaultResetTimeout
	}
	for _, opt := range opts {
		opt(cb)
	}
	metrics.SetCircuitBreakerState(name, string(StateClosed))
	return cb
}

func notCanceled(err error) bool {
	return !errors.Is(err, context.Canceled)
}

// Execute calls fn unless the breaker rejects it.
func (cb *CircuitBreaker) Execute(fn func() error) error {
	if !cb.admit() {
		return ErrCircuitOpen
	}
	err := fn()
	cb.settle(err != nil && cb.counts(err))
	return err
}

func (cb *CircuitBreaker) admit() bool {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if cb.state == StateOpen && cb.clock.Now().Sub(cb.openedAt) >= cb.resetTimeout {
		cb.moveTo(StateHalfOpen)
	}
	switch {
	case cb.state == StateClosed:
		return true
	case cb.state == StateHalfOpen && !cb.probing:
		cb.probing = true
		return true
	}
	return false
}

func (cb *CircuitBreaker) settle(failed bool) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if !failed {
		cb.failures = 0
		cb.moveTo(StateClosed)
		return
	}
	cb.failures++
	if cb.state == StateHalfOpen {
		metrics.RecordCircuitBreakerTrip(cb.name, "half_open_failure")
		cb.moveTo(StateOpen)
	} else if cb.state == StateClosed && cb.failures >= cb.threshold {
		metrics.RecordCircuitBreakerTrip(cb.name, "threshold_exceeded")
		cb.moveTo(StateOpen)
	}
}

// moveTo requires cb.mu.
func (cb *CircuitBreaker) moveTo(next State) {
	if cb.state == next {
		return
	}
	logger := log.WithComponent("resilience")
	logger.Info().
		Str("breaker", cb.name).
		Str("from", string(cb.state)).
		Str("to", string(next)).
		Msg("circuit breaker state change")

	cb.state, cb.probing = next, false
	if next == StateOpen {
		cb.openedAt = cb.clock.Now()
	}
	metrics.SetCircuitBreakerState(cb.name, string(next))
}

func (cb *CircuitBreaker) State() State {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}
