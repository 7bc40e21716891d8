package resilience

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"math/rand"
	"time"

	"github.com/worklens/worklens/internal/faults"
)

// Observer receives executor events for metrics collection. Implementations
// must be safe for concurrent use.
type Observer interface {
	ObserveAttempt(operation string, attempt int, err error)
	ObserveBreakerState(operation string, state BreakerState)
}

// Executor runs fallible operations under a retry policy, consulting the
// faults classifier and an optional per-operation circuit breaker. Each
// executor owns its breaker registry for its whole lifetime; breakers are
// reset only by success transitions.
type Executor struct {
	breakers *BreakerRegistry
	logger   *slog.Logger
	observer Observer

	// Injectable for deterministic tests.
	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
	rand  func() float64
}

// Option configures an Executor.
type Option func(*Executor)

// WithObserver attaches a metrics observer.
func WithObserver(o Observer) Option {
	return func(e *Executor) { e.observer = o }
}

// WithClock overrides the executor's time source and sleeper.
func WithClock(now func() time.Time, sleep func(ctx context.Context, d time.Duration) error) Option {
	return func(e *Executor) {
		e.now = now
		e.sleep = sleep
	}
}

// WithJitterSource overrides the jitter random source.
func WithJitterSource(fn func() float64) Option {
	return func(e *Executor) { e.rand = fn }
}

// NewExecutor constructs an executor with a fresh breaker registry.
func NewExecutor(logger *slog.Logger, opts ...Option) *Executor {
	e := &Executor{
		breakers: NewBreakerRegistry(),
		logger:   logger,
		now:      time.Now,
		sleep:    sleepContext,
		rand:     rand.Float64,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Do executes fn under the retry policy, without a circuit breaker. The last
// classified fault is returned once the retry budget is exhausted or a
// non-retryable failure occurs.
func (e *Executor) Do(ctx context.Context, operation string, policy RetryPolicy, fn func(context.Context) error) error {
	return e.run(ctx, operation, policy, nil, fn)
}

// DoWithBreaker executes fn like Do, additionally guarded by the circuit
// breaker registered under the operation name. An open breaker short-circuits
// without invoking fn.
func (e *Executor) DoWithBreaker(ctx context.Context, operation string, policy RetryPolicy, breakerCfg CircuitBreakerConfig, fn func(context.Context) error) error {
	return e.run(ctx, operation, policy, &breakerCfg, fn)
}

// BreakerState reports the current breaker state for an operation name.
func (e *Executor) BreakerState(operation string) BreakerState {
	return e.breakers.State(operation)
}

func (e *Executor) run(ctx context.Context, operation string, policy RetryPolicy, breakerCfg *CircuitBreakerConfig, fn func(context.Context) error) error {
	if policy.MaxAttempts < 1 {
		policy.MaxAttempts = 1
	}

	var brk *breaker
	if breakerCfg != nil {
		brk = e.breakers.getOrCreate(operation, *breakerCfg)
	}

	for attempt := 1; ; attempt++ {
		if brk != nil {
			if denied := brk.allow(e.now(), operation); denied != nil {
				e.logger.Warn("short-circuiting call",
					"operation", operation,
					"error", denied,
				)
				e.notifyBreaker(operation, brk)
				return denied
			}
		}

		err := e.invoke(ctx, policy, fn)
		if e.observer != nil {
			e.observer.ObserveAttempt(operation, attempt, err)
		}

		if err == nil {
			if brk != nil {
				brk.onSuccess()
				e.notifyBreaker(operation, brk)
			}
			return nil
		}

		if brk != nil {
			brk.onFailure(e.now())
			e.notifyBreaker(operation, brk)
		}

		fault := faults.Classify(err)
		e.logger.Log(ctx, faults.Severity(fault.Kind), "operation attempt failed",
			"operation", operation,
			"attempt", attempt,
			"kind", string(fault.Kind),
			"retryable", fault.Retryable,
			"error", err,
		)

		if !fault.Retryable {
			return fault
		}
		if attempt >= policy.MaxAttempts {
			e.logger.Warn("retry budget exhausted",
				"operation", operation,
				"attempts", attempt,
			)
			return fault
		}

		delay := e.backoff(policy, attempt)
		if fault.RetryAfter > 0 {
			delay = fault.RetryAfter
		}

		e.logger.Debug("backing off before retry",
			"operation", operation,
			"attempt", attempt,
			"delay", delay,
		)

		if err := e.sleep(ctx, delay); err != nil {
			return fmt.Errorf("retry cancelled: %w", err)
		}
	}
}

// invoke runs fn once, enforcing the policy's per-call wall-clock timeout when
// set. A timed-out call surfaces as a retryable timeout fault, distinct from
// retry-budget exhaustion.
func (e *Executor) invoke(ctx context.Context, policy RetryPolicy, fn func(context.Context) error) error {
	if policy.Timeout <= 0 {
		return fn(ctx)
	}

	callCtx, cancel := context.WithTimeout(ctx, policy.Timeout)
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- fn(callCtx) }()

	select {
	case err := <-done:
		return err
	case <-callCtx.Done():
		if errors.Is(callCtx.Err(), context.DeadlineExceeded) {
			return faults.Wrap(callCtx.Err(), faults.KindTimeout,
				fmt.Sprintf("call exceeded %v", policy.Timeout))
		}
		return callCtx.Err()
	}
}

// backoff computes the exponential delay before the next attempt, capped at
// MaxDelay, with up to 10% additive jitter.
func (e *Executor) backoff(policy RetryPolicy, attempt int) time.Duration {
	delay := float64(policy.BaseDelay) * math.Pow(policy.BackoffMultiplier, float64(attempt-1))
	if delay > float64(policy.MaxDelay) {
		delay = float64(policy.MaxDelay)
	}
	delay += e.rand() * 0.1 * delay
	return time.Duration(delay)
}

func (e *Executor) notifyBreaker(operation string, brk *breaker) {
	if e.observer != nil {
		e.observer.ObserveBreakerState(operation, brk.currentState())
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
