package ingest

import (
	"sync"
	"time"
)

// DefaultBreakerThreshold is the consecutive-failure count that opens a breaker.
const DefaultBreakerThreshold = 3

// CircuitBreaker gates one source's outbound traffic after repeated failures.
//
// State machine: Closed -> (threshold failures recorded) -> Open -> (Reset) -> Closed.
// There is no success-based decrement and no timed half-open probe; recovery
// requires an explicit Reset by an operator or a scheduled job. Same ownership
// discipline as RateLimiter: one ingestor, one breaker, one in-flight Run.
type CircuitBreaker struct {
	mu           sync.Mutex
	threshold    int
	failureCount int
	lastFailure  *time.Time
	open         bool
	timeNow      func() time.Time // Injectable for testing
}

// NewCircuitBreaker creates a breaker that opens after threshold consecutive
// failures. A threshold below 1 falls back to DefaultBreakerThreshold.
func NewCircuitBreaker(threshold int) *CircuitBreaker {
	return NewCircuitBreakerWithClock(threshold, time.Now)
}

// NewCircuitBreakerWithClock creates a breaker with an injectable clock (for testing).
func NewCircuitBreakerWithClock(threshold int, timeNow func() time.Time) *CircuitBreaker {
	if threshold < 1 {
		threshold = DefaultBreakerThreshold
	}
	return &CircuitBreaker{
		threshold: threshold,
		timeNow:   timeNow,
	}
}

// IsOpen reports whether the breaker is open (failing fast).
func (cb *CircuitBreaker) IsOpen() bool {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.open
}

// RecordFailure increments the failure count and opens the breaker once the
// threshold is reached.
func (cb *CircuitBreaker) RecordFailure() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.failureCount++
	now := cb.timeNow()
	cb.lastFailure = &now

	if cb.failureCount >= cb.threshold {
		cb.open = true
	}
}

// Reset clears all breaker state unconditionally.
func (cb *CircuitBreaker) Reset() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.failureCount = 0
	cb.lastFailure = nil
	cb.open = false
}

// FailureCount returns the current consecutive-failure count.
func (cb *CircuitBreaker) FailureCount() int {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.failureCount
}

// Threshold returns the configured failure threshold.
func (cb *CircuitBreaker) Threshold() int {
	return cb.threshold
}

// LastFailureAt returns the time of the most recent recorded failure,
// or nil if none has been recorded since the last Reset.
func (cb *CircuitBreaker) LastFailureAt() *time.Time {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if cb.lastFailure == nil {
		return nil
	}
	t := *cb.lastFailure
	return &t
}
