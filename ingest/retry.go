package ingest

import (
	"context"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/helica-bio/helica/errors"
)

// DefaultMaxRetries is the attempt budget per outbound call.
const DefaultMaxRetries = 3

// CallFunc performs one outbound HTTP call and reports the status code and
// response body. Transport-level failures are returned as err with status 0.
type CallFunc func(ctx context.Context) (status int, body []byte, err error)

// SleepFunc suspends for d or until the context is cancelled. Injectable so
// tests can observe backoff without waiting.
type SleepFunc func(ctx context.Context, d time.Duration) error

func defaultSleep(ctx context.Context, d time.Duration) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d):
		return nil
	}
}

// RetryPolicy wraps a single outbound call with rate limiting and
// exponential-backoff retries.
//
// Classification per attempt:
//   - 2xx: success, body returned.
//   - 429: sleep 2^attempt seconds and retry; surfaces as ErrRateLimited
//     only when the attempt budget is exhausted.
//   - 5xx: same backoff, retried up to maxRetries-1 times, then ErrServer.
//   - other 4xx: ErrClient immediately, no retry.
//   - transport failure: retried with backoff, exhaustion gives ErrTransient.
//
// Circuit-breaker accounting: every failed transport or 5xx attempt records
// one breaker failure, as does a non-retryable 4xx. A 429 backoff does not
// count by itself; only an unrecovered 429 exhaustion records a failure.
type RetryPolicy struct {
	source     Source
	maxRetries int
	limiter    *RateLimiter
	breaker    *CircuitBreaker
	sleep      SleepFunc
	log        *zap.SugaredLogger
}

// NewRetryPolicy creates a retry policy for one source. A maxRetries below 1
// falls back to DefaultMaxRetries. The breaker may be nil for standalone use.
func NewRetryPolicy(source Source, maxRetries int, limiter *RateLimiter, breaker *CircuitBreaker, log *zap.SugaredLogger) *RetryPolicy {
	if maxRetries < 1 {
		maxRetries = DefaultMaxRetries
	}
	return &RetryPolicy{
		source:     source,
		maxRetries: maxRetries,
		limiter:    limiter,
		breaker:    breaker,
		sleep:      defaultSleep,
		log:        log,
	}
}

// recordFailure notes one breaker failure if a breaker is attached.
func (p *RetryPolicy) recordFailure() {
	if p.breaker != nil {
		p.breaker.RecordFailure()
	}
}

// withSleep replaces the backoff sleeper. Test hook.
func (p *RetryPolicy) withSleep(sleep SleepFunc) *RetryPolicy {
	p.sleep = sleep
	return p
}

// MaxRetries returns the attempt budget.
func (p *RetryPolicy) MaxRetries() int {
	return p.maxRetries
}

// Execute runs the call under the retry policy. Every attempt first waits
// for a rate-limit token. On success the response body is returned; on
// exhaustion or a non-retryable status a *SourceError is returned.
func (p *RetryPolicy) Execute(ctx context.Context, call CallFunc) ([]byte, error) {
	var lastStatus int
	var lastErr error

	for attempt := 0; attempt < p.maxRetries; attempt++ {
		if err := p.limiter.WaitForToken(ctx); err != nil {
			return nil, newSourceError(p.source, errors.ErrTransient, 0, attempt, err)
		}

		status, body, err := call(ctx)
		lastStatus, lastErr = status, err

		switch {
		case err != nil:
			// Transport-level failure
			if ctx.Err() != nil {
				// Cancellation is not a source fault; leave the breaker alone.
				return nil, newSourceError(p.source, errors.ErrTransient, 0, attempt+1, ctx.Err())
			}
			p.recordFailure()
			p.log.Warnw("Transport failure, backing off",
				"source", p.source,
				"attempt", attempt,
				"error", err,
			)
			if backoffErr := p.backoff(ctx, attempt); backoffErr != nil {
				return nil, newSourceError(p.source, errors.ErrTransient, 0, attempt+1, backoffErr)
			}

		case status >= 200 && status < 300:
			return body, nil

		case status == http.StatusTooManyRequests:
			p.log.Warnw("Upstream rate limit hit, backing off",
				"source", p.source,
				"attempt", attempt,
				"backoff_seconds", 1<<attempt,
			)
			if backoffErr := p.backoff(ctx, attempt); backoffErr != nil {
				return nil, newSourceError(p.source, errors.ErrRateLimited, status, attempt+1, backoffErr)
			}

		case status >= 500:
			p.recordFailure()
			// Retried up to maxRetries-1 times, then surfaced
			if attempt >= p.maxRetries-1 {
				return nil, newSourceError(p.source, errors.ErrServer, status, attempt+1, nil)
			}
			p.log.Warnw("Server error, backing off",
				"source", p.source,
				"attempt", attempt,
				"status", status,
			)
			if backoffErr := p.backoff(ctx, attempt); backoffErr != nil {
				return nil, newSourceError(p.source, errors.ErrServer, status, attempt+1, backoffErr)
			}

		default:
			// Remaining 4xx: not retryable
			p.recordFailure()
			return nil, newSourceError(p.source, errors.ErrClient, status, attempt+1, nil)
		}
	}

	// Attempt budget exhausted
	switch {
	case lastStatus == http.StatusTooManyRequests:
		// The per-attempt 429s were free; the unrecovered exhaustion is not.
		p.recordFailure()
		return nil, newSourceError(p.source, errors.ErrRateLimited, lastStatus, p.maxRetries, nil)
	case lastStatus >= 500:
		return nil, newSourceError(p.source, errors.ErrServer, lastStatus, p.maxRetries, nil)
	default:
		return nil, newSourceError(p.source, errors.ErrTransient, lastStatus, p.maxRetries, lastErr)
	}
}

// backoff sleeps 2^attempt seconds.
func (p *RetryPolicy) backoff(ctx context.Context, attempt int) error {
	return p.sleep(ctx, time.Duration(1<<uint(attempt))*time.Second)
}
