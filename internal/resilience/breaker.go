package resilience

import (
	"sync"
	"time"

	"github.com/worklens/worklens/internal/faults"
)

// BreakerState is the circuit breaker's current disposition.
type BreakerState string

const (
	StateClosed   BreakerState = "closed"
	StateOpen     BreakerState = "open"
	StateHalfOpen BreakerState = "half_open"
)

// breaker guards one logical operation name. Independent downstreams get
// independent breakers so one degrading host cannot starve the others.
type breaker struct {
	mu               sync.Mutex
	config           CircuitBreakerConfig
	state            BreakerState
	failureCount     int
	halfOpenAttempts int
	lastFailureTime  time.Time
}

func newBreaker(config CircuitBreakerConfig) *breaker {
	return &breaker{config: config, state: StateClosed}
}

// allow decides whether a call may proceed. When the breaker is open and the
// recovery timeout has elapsed it transitions to half-open and admits a bounded
// number of trial calls. Returns a fault when the call must be short-circuited.
func (b *breaker) allow(now time.Time, operation string) *faults.Fault {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case StateOpen:
		if now.Sub(b.lastFailureTime) > b.config.RecoveryTimeout {
			b.state = StateHalfOpen
			b.halfOpenAttempts = 0
		} else {
			return faults.Newf(faults.KindNetwork, "circuit breaker open for %s", operation).
				WithRetryable(false).
				With("operation", operation).
				With("state", string(StateOpen))
		}
	}

	if b.state == StateHalfOpen {
		if b.halfOpenAttempts >= b.config.HalfOpenMaxAttempts {
			return faults.Newf(faults.KindNetwork, "circuit breaker half-open budget exhausted for %s", operation).
				WithRetryable(false).
				With("operation", operation).
				With("state", string(StateHalfOpen))
		}
		b.halfOpenAttempts++
	}

	return nil
}

// onSuccess resets the breaker to closed.
func (b *breaker) onSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failureCount = 0
	b.halfOpenAttempts = 0
	b.state = StateClosed
}

// onFailure records a failure and opens the breaker once the threshold is
// crossed. A failure during half-open re-opens immediately.
func (b *breaker) onFailure(now time.Time) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.failureCount++
	b.lastFailureTime = now

	if b.state == StateHalfOpen || b.failureCount >= b.config.FailureThreshold {
		b.state = StateOpen
	}
}

func (b *breaker) currentState() BreakerState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// BreakerRegistry lazily creates one breaker per operation name. A registry is
// owned by a single Executor; it is never shared globally, so tests can build
// independent executors with independent breaker state. Get-or-create is safe
// under concurrent preload calls.
type BreakerRegistry struct {
	mu       sync.Mutex
	breakers map[string]*breaker
}

// NewBreakerRegistry constructs an empty registry.
func NewBreakerRegistry() *BreakerRegistry {
	return &BreakerRegistry{breakers: make(map[string]*breaker)}
}

func (r *BreakerRegistry) getOrCreate(operation string, config CircuitBreakerConfig) *breaker {
	r.mu.Lock()
	defer r.mu.Unlock()

	if b, ok := r.breakers[operation]; ok {
		return b
	}
	b := newBreaker(config)
	r.breakers[operation] = b
	return b
}

// State reports the breaker state for an operation name, or closed when no
// breaker exists yet.
func (r *BreakerRegistry) State(operation string) BreakerState {
	r.mu.Lock()
	b, ok := r.breakers[operation]
	r.mu.Unlock()

	if !ok {
		return StateClosed
	}
	return b.currentState()
}
