package ingest

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBreakerOpensExactlyAtThreshold(t *testing.T) {
	cb := NewCircuitBreaker(3)

	cb.RecordFailure()
	assert.False(t, cb.IsOpen(), "1 failure must not open a threshold-3 breaker")
	cb.RecordFailure()
	assert.False(t, cb.IsOpen(), "2 failures must not open a threshold-3 breaker")
	cb.RecordFailure()
	assert.True(t, cb.IsOpen(), "3rd failure must open the breaker")
	assert.Equal(t, 3, cb.FailureCount())
}

func TestBreakerStaysOpenWithoutReset(t *testing.T) {
	clock := newMockClock()
	cb := NewCircuitBreakerWithClock(2, clock.Now)

	cb.RecordFailure()
	cb.RecordFailure()
	require.True(t, cb.IsOpen())

	// No timed half-open probe: hours later it is still open.
	clock.Advance(48 * 3600e9)
	assert.True(t, cb.IsOpen())
}

func TestBreakerReset(t *testing.T) {
	cb := NewCircuitBreaker(2)
	cb.RecordFailure()
	cb.RecordFailure()
	require.True(t, cb.IsOpen())
	require.NotNil(t, cb.LastFailureAt())

	cb.Reset()
	assert.False(t, cb.IsOpen())
	assert.Equal(t, 0, cb.FailureCount())
	assert.Nil(t, cb.LastFailureAt())
}

func TestBreakerDefaultThreshold(t *testing.T) {
	cb := NewCircuitBreaker(0)
	assert.Equal(t, DefaultBreakerThreshold, cb.Threshold())

	cb = NewCircuitBreaker(-5)
	assert.Equal(t, DefaultBreakerThreshold, cb.Threshold())
}

func TestBreakerLastFailureTime(t *testing.T) {
	clock := newMockClock()
	cb := NewCircuitBreakerWithClock(3, clock.Now)

	assert.Nil(t, cb.LastFailureAt())

	cb.RecordFailure()
	first := cb.LastFailureAt()
	require.NotNil(t, first)
	assert.Equal(t, clock.Now(), *first)

	clock.Advance(10e9)
	cb.RecordFailure()
	second := cb.LastFailureAt()
	require.NotNil(t, second)
	assert.True(t, second.After(*first))

	// Returned pointer is a copy; mutating it does not touch breaker state.
	*second = second.Add(1e9)
	assert.NotEqual(t, *second, *cb.LastFailureAt())
}
