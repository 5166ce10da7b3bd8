package ingest

import (
	"context"
	"sync"
	"time"

	"github.com/helica-bio/helica/errors"
)

// waitPollInterval is how often WaitForToken re-checks the bucket.
// Coarse on purpose: the request rates against curated biomedical APIs are
// low enough that a polling wait is indistinguishable from a timer wake.
const waitPollInterval = 100 * time.Millisecond

// RateLimiter is a token-bucket throttle for one source's outbound calls.
//
// Each SourceIngestor owns exactly one limiter and only the task executing
// that ingestor's Run touches it. The mutex still guards the bucket so that
// accidental concurrent use cannot corrupt state.
type RateLimiter struct {
	mu         sync.Mutex
	capacity   float64
	tokens     float64
	refillRate float64 // tokens per second
	lastRefill time.Time
	timeNow    func() time.Time // Injectable for testing
}

// NewRateLimiter creates a limiter allowing requestsPerPeriod calls per period.
func NewRateLimiter(requestsPerPeriod int, period time.Duration) (*RateLimiter, error) {
	return NewRateLimiterWithClock(requestsPerPeriod, period, time.Now)
}

// NewRateLimiterWithClock creates a limiter with an injectable clock (for testing).
func NewRateLimiterWithClock(requestsPerPeriod int, period time.Duration, timeNow func() time.Time) (*RateLimiter, error) {
	if requestsPerPeriod < 1 {
		return nil, errors.Newf("requests per period must be >= 1, got %d", requestsPerPeriod)
	}
	if period <= 0 {
		return nil, errors.Newf("period must be positive, got %s", period)
	}

	capacity := float64(requestsPerPeriod)
	return &RateLimiter{
		capacity:   capacity,
		tokens:     capacity, // Start full: a fresh source may burst up to capacity
		refillRate: capacity / period.Seconds(),
		lastRefill: timeNow(),
		timeNow:    timeNow,
	}, nil
}

// Acquire consumes one token if available. Non-blocking.
func (rl *RateLimiter) Acquire() bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	rl.refill()

	if rl.tokens >= 1 {
		rl.tokens--
		return true
	}
	return false
}

// WaitForToken blocks until a token is available or the context is cancelled.
// Polls Acquire on a fixed interval.
func (rl *RateLimiter) WaitForToken(ctx context.Context) error {
	for {
		if rl.Acquire() {
			return nil
		}

		select {
		case <-ctx.Done():
			return errors.Wrap(ctx.Err(), "waiting for rate limit token")
		case <-time.After(waitPollInterval):
		}
	}
}

// Tokens returns the current token count after refill.
func (rl *RateLimiter) Tokens() float64 {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	rl.refill()
	return rl.tokens
}

// Capacity returns the bucket capacity.
func (rl *RateLimiter) Capacity() float64 {
	return rl.capacity
}

// refill tops up the bucket for elapsed time, capped at capacity.
// Must be called with the lock held.
func (rl *RateLimiter) refill() {
	now := rl.timeNow()
	elapsed := now.Sub(rl.lastRefill).Seconds()
	if elapsed <= 0 {
		return
	}

	rl.tokens = minFloat(rl.capacity, rl.tokens+elapsed*rl.refillRate)
	rl.lastRefill = now
}

func minFloat(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}
