// Package resilience provides the retry executor and per-operation circuit
// breaker shared by every source adapter. Operations run under a retry policy;
// retryability is decided by the faults classifier, never by the caller.
package resilience

import "time"

// RetryPolicy defines how a single fallible operation is retried. MaxAttempts
// counts total invocations, so MaxAttempts=1 disables retries. Timeout, when
// set, bounds each individual invocation wall-clock and surfaces as a retryable
// timeout fault.
type RetryPolicy struct {
	MaxAttempts       int
	BaseDelay         time.Duration
	MaxDelay          time.Duration
	BackoffMultiplier float64
	Timeout           time.Duration
}

// FastPolicy is for cheap, latency-sensitive calls.
func FastPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts:       2,
		BaseDelay:         100 * time.Millisecond,
		MaxDelay:          1 * time.Second,
		BackoffMultiplier: 2.0,
	}
}

// StandardPolicy suits most remote API calls.
func StandardPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts:       3,
		BaseDelay:         1 * time.Second,
		MaxDelay:          30 * time.Second,
		BackoffMultiplier: 2.0,
	}
}

// ConservativePolicy backs off harder for fragile or heavily rate-limited
// sources.
func ConservativePolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts:       5,
		BaseDelay:         2 * time.Second,
		MaxDelay:          2 * time.Minute,
		BackoffMultiplier: 3.0,
	}
}

// AggressivePolicy retries quickly and often, for idempotent bulk reads.
func AggressivePolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts:       5,
		BaseDelay:         250 * time.Millisecond,
		MaxDelay:          5 * time.Second,
		BackoffMultiplier: 1.5,
	}
}

// CircuitBreakerConfig tunes the per-operation breaker. After
// FailureThreshold consecutive failures the breaker opens and short-circuits
// calls without invoking the operation. Once RecoveryTimeout elapses the
// breaker moves to half-open and lets HalfOpenMaxAttempts trial calls through
// before deciding to close or re-open.
type CircuitBreakerConfig struct {
	FailureThreshold    int
	RecoveryTimeout     time.Duration
	HalfOpenMaxAttempts int
}

// DefaultBreakerConfig returns sensible defaults for remote API calls.
func DefaultBreakerConfig() CircuitBreakerConfig {
	return CircuitBreakerConfig{
		FailureThreshold:    5,
		RecoveryTimeout:     30 * time.Second,
		HalfOpenMaxAttempts: 1,
	}
}
