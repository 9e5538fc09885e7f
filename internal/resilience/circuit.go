package resilience

import (
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// CircuitState is the current state of a CircuitBreaker.
type CircuitState int

const (
	// CircuitClosed means calls flow normally.
	CircuitClosed CircuitState = iota
	// CircuitOpen means calls fail fast until the cooldown elapses.
	CircuitOpen
	// CircuitHalfOpen means one probe call is allowed through.
	CircuitHalfOpen
)

func (s CircuitState) String() string {
	switch s {
	case CircuitClosed:
		return "closed"
	case CircuitOpen:
		return "open"
	case CircuitHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// ErrCircuitOpen is returned by Allow when the breaker is rejecting calls.
var ErrCircuitOpen = eris.New("resilience: circuit breaker open")

// CircuitBreaker trips after a run of consecutive failures and fails fast
// until a cooldown passes, then admits a single probe. Used in front of the
// completion service so a hard outage does not burn the retry budget of every
// queued trial.
type CircuitBreaker struct {
	name             string
	failureThreshold int
	cooldown         time.Duration

	mu            sync.Mutex
	state         CircuitState
	failures      int
	openedAt      time.Time
	probeInFlight bool
}

// NewCircuitBreaker builds a breaker that opens after failureThreshold
// consecutive failures and stays open for cooldown.
func NewCircuitBreaker(name string, failureThreshold int, cooldown time.Duration) *CircuitBreaker {
	if failureThreshold <= 0 {
		failureThreshold = 5
	}
	if cooldown <= 0 {
		cooldown = 30 * time.Second
	}
	return &CircuitBreaker{
		name:             name,
		failureThreshold: failureThreshold,
		cooldown:         cooldown,
		state:            CircuitClosed,
	}
}

// Allow reports whether a call may proceed. Returns ErrCircuitOpen when the
// breaker is rejecting.
func (b *CircuitBreaker) Allow() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case CircuitClosed:
		return nil
	case CircuitOpen:
		if time.Since(b.openedAt) < b.cooldown {
			return eris.Wrapf(ErrCircuitOpen, "%s", b.name)
		}
		b.state = CircuitHalfOpen
		b.probeInFlight = true
		zap.L().Info("circuit breaker half-open, admitting probe",
			zap.String("breaker", b.name))
		return nil
	case CircuitHalfOpen:
		if b.probeInFlight {
			return eris.Wrapf(ErrCircuitOpen, "%s", b.name)
		}
		b.probeInFlight = true
		return nil
	}
	return nil
}

// RecordSuccess resets the breaker after a successful call.
func (b *CircuitBreaker) RecordSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state != CircuitClosed {
		zap.L().Info("circuit breaker closed",
			zap.String("breaker", b.name))
	}
	b.state = CircuitClosed
	b.failures = 0
	b.probeInFlight = false
}

// RecordFailure counts a failed call, tripping the breaker at the threshold.
// Only transient failures count: a ModelError says the service is healthy and
// rejecting the request, not down.
func (b *CircuitBreaker) RecordFailure(err error) {
	if !IsTransient(err) {
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	b.probeInFlight = false
	if b.state == CircuitHalfOpen {
		b.trip()
		return
	}

	b.failures++
	if b.failures >= b.failureThreshold {
		b.trip()
	}
}

// State returns the current breaker state.
func (b *CircuitBreaker) State() CircuitState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

func (b *CircuitBreaker) trip() {
	b.state = CircuitOpen
	b.openedAt = time.Now()
	b.failures = 0
	zap.L().Warn("circuit breaker opened",
		zap.String("breaker", b.name),
		zap.Duration("cooldown", b.cooldown))
}
