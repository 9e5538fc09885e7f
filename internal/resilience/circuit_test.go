package resilience

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCircuitBreaker_TripsAfterThreshold(t *testing.T) {
	b := NewCircuitBreaker("test", 3, time.Minute)
	transient := NewTransientError(errors.New("down"), 503)

	for i := 0; i < 2; i++ {
		b.RecordFailure(transient)
		assert.Equal(t, CircuitClosed, b.State())
	}

	b.RecordFailure(transient)
	assert.Equal(t, CircuitOpen, b.State())
	assert.ErrorIs(t, b.Allow(), ErrCircuitOpen)
}

func TestCircuitBreaker_IgnoresPermanentFailures(t *testing.T) {
	b := NewCircuitBreaker("test", 1, time.Minute)

	b.RecordFailure(&ModelError{Model: "m", Err: errors.New("invalid model")})
	assert.Equal(t, CircuitClosed, b.State())
	assert.NoError(t, b.Allow())
}

func TestCircuitBreaker_HalfOpenProbe(t *testing.T) {
	b := NewCircuitBreaker("test", 1, 10*time.Millisecond)
	transient := NewTransientError(errors.New("down"), 503)

	b.RecordFailure(transient)
	require.Equal(t, CircuitOpen, b.State())

	time.Sleep(20 * time.Millisecond)

	// First caller after cooldown gets the probe, second is rejected.
	assert.NoError(t, b.Allow())
	assert.ErrorIs(t, b.Allow(), ErrCircuitOpen)

	b.RecordSuccess()
	assert.Equal(t, CircuitClosed, b.State())
	assert.NoError(t, b.Allow())
}

func TestCircuitBreaker_ReopensOnFailedProbe(t *testing.T) {
	b := NewCircuitBreaker("test", 1, 10*time.Millisecond)
	transient := NewTransientError(errors.New("down"), 503)

	b.RecordFailure(transient)
	time.Sleep(20 * time.Millisecond)
	require.NoError(t, b.Allow())

	b.RecordFailure(transient)
	assert.Equal(t, CircuitOpen, b.State())
	assert.ErrorIs(t, b.Allow(), ErrCircuitOpen)
}
