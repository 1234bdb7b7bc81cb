// Package circuitbreaker stops hammering a command endpoint that keeps failing.
// Breakers are keyed by target URL, so a target that restarts on a new port
// starts with a closed breaker.
package circuitbreaker

import (
	"errors"
	"sync"
	"time"
)

var ErrCircuitOpen = errors.New("circuit breaker is open")

type State string

const (
	StateClosed   State = "closed"
	StateOpen     State = "open"
	StateHalfOpen State = "half_open"
)

type targetState struct {
	state               State
	consecutiveFailures int
	openedAt            time.Time
}

type CircuitBreaker struct {
	mu        sync.Mutex
	targets   map[string]*targetState
	threshold int
	cooldown  time.Duration
	now       func() time.Time
}

// New returns a breaker that opens after threshold consecutive failures and
// lets one probe through after cooldown.
func New(threshold int, cooldown time.Duration) *CircuitBreaker {
	return &CircuitBreaker{
		targets:   make(map[string]*targetState),
		threshold: threshold,
		cooldown:  cooldown,
		now:       time.Now,
	}
}

// WithClock replaces the time source. Used by tests.
func (cb *CircuitBreaker) WithClock(now func() time.Time) *CircuitBreaker {
	cb.now = now
	return cb
}

func (cb *CircuitBreaker) Allow(target string) error {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	s, ok := cb.targets[target]
	if !ok {
		return nil
	}

	switch s.state {
	case StateOpen:
		if cb.now().Sub(s.openedAt) >= cb.cooldown {
			s.state = StateHalfOpen
			return nil
		}
		return ErrCircuitOpen
	case StateHalfOpen:
		// one probe at a time
		return ErrCircuitOpen
	default:
		return nil
	}
}

func (cb *CircuitBreaker) RecordSuccess(target string) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	delete(cb.targets, target)
}

func (cb *CircuitBreaker) RecordFailure(target string) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	s, ok := cb.targets[target]
	if !ok {
		s = &targetState{state: StateClosed}
		cb.targets[target] = s
	}

	s.consecutiveFailures++
	if s.state == StateHalfOpen || s.consecutiveFailures >= cb.threshold {
		s.state = StateOpen
		s.openedAt = cb.now()
	}
}

func (cb *CircuitBreaker) State(target string) State {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if s, ok := cb.targets[target]; ok {
		return s.state
	}
	return StateClosed
}
