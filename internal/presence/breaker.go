package presence

import (
	"errors"
	"sync"
	"time"

	"github.com/stwalsh4118/evercast/internal/clock"
)

// BreakerState represents the state of a circuit breaker
type BreakerState int

const (
	// BreakerClosed lets every attempt through
	BreakerClosed BreakerState = iota
	// BreakerOpen rejects attempts until the reset timeout has passed
	BreakerOpen
	// BreakerHalfOpen lets one probe through after the reset timeout
	BreakerHalfOpen
)

// String returns the string representation of BreakerState
func (s BreakerState) String() string {
	switch s {
	case BreakerClosed:
		return "closed"
	case BreakerOpen:
		return "open"
	case BreakerHalfOpen:
		return "half_open"
	default:
		return "unknown"
	}
}

// ErrCircuitOpen indicates the breaker is open and the attempt was not made
var ErrCircuitOpen = errors.New("circuit breaker is open")

// Breaker stops the guard from retrying a lock provider that keeps failing
type Breaker struct {
	mu               sync.Mutex
	clock            clock.Clock
	failureThreshold int
	resetTimeout     time.Duration
	state            BreakerState
	failures         int
	openedAt         time.Time
}

// NewBreaker creates a breaker that opens after failureThreshold consecutive failures.
// A nil clock uses wall time.
func NewBreaker(failureThreshold int, resetTimeout time.Duration, c clock.Clock) *Breaker {
	if failureThreshold < 1 {
		failureThreshold = 1
	}
	if c == nil {
		c = clock.Real()
	}
	return &Breaker{
		clock:            c,
		failureThreshold: failureThreshold,
		resetTimeout:     resetTimeout,
		state:            BreakerClosed,
	}
}

// Call runs fn unless the breaker is open
func (b *Breaker) Call(fn func() error) error {
	b.mu.Lock()
	if b.stateLocked() == BreakerOpen {
		b.mu.Unlock()
		return ErrCircuitOpen
	}
	b.mu.Unlock()

	err := fn()

	b.mu.Lock()
	defer b.mu.Unlock()

	if err != nil {
		b.failures++
		if b.state == BreakerHalfOpen || b.failures >= b.failureThreshold {
			b.state = BreakerOpen
			b.openedAt = b.clock.Now()
		}
		return err
	}

	b.failures = 0
	b.state = BreakerClosed
	return nil
}

// State returns the current breaker state
func (b *Breaker) State() BreakerState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.stateLocked()
}

// Failures returns the consecutive failure count
func (b *Breaker) Failures() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.failures
}

// Reset closes the breaker and clears the failure count
func (b *Breaker) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.state = BreakerClosed
	b.failures = 0
	b.openedAt = time.Time{}
}

// stateLocked moves an expired open breaker to half-open (must hold lock)
func (b *Breaker) stateLocked() BreakerState {
	if b.state == BreakerOpen && b.clock.Now().Sub(b.openedAt) >= b.resetTimeout {
		b.state = BreakerHalfOpen
		b.failures = 0
	}
	return b.state
}
