package resilience

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/worklens/worklens/internal/faults"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// noSleep records requested delays instead of sleeping.
func noSleep(delays *[]time.Duration) func(ctx context.Context, d time.Duration) error {
	return func(_ context.Context, d time.Duration) error {
		*delays = append(*delays, d)
		return nil
	}
}

func TestDoSucceedsFirstAttempt(t *testing.T) {
	var delays []time.Duration
	exec := NewExecutor(testLogger(), WithClock(time.Now, noSleep(&delays)))

	calls := 0
	err := exec.Do(context.Background(), "test.op", StandardPolicy(), func(context.Context) error {
		calls++
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
	if len(delays) != 0 {
		t.Errorf("expected no backoff sleeps, got %d", len(delays))
	}
}

func TestDoExhaustsRetryBudget(t *testing.T) {
	var delays []time.Duration
	exec := NewExecutor(testLogger(), WithClock(time.Now, noSleep(&delays)))

	policy := RetryPolicy{MaxAttempts: 3, BaseDelay: 10 * time.Millisecond, MaxDelay: time.Second, BackoffMultiplier: 2}

	calls := 0
	err := exec.Do(context.Background(), "test.op", policy, func(context.Context) error {
		calls++
		return faults.New(faults.KindNetwork, "connection refused")
	})
	if err == nil {
		t.Fatal("expected error after exhausting retries")
	}
	// MaxAttempts is the total invocation count, not the retry count.
	if calls != 3 {
		t.Errorf("calls = %d, want 3", calls)
	}
	if len(delays) != 2 {
		t.Errorf("sleeps = %d, want 2", len(delays))
	}
	if faults.KindOf(err) != faults.KindNetwork {
		t.Errorf("kind = %s, want network", faults.KindOf(err))
	}
}

func TestDoFailsImmediatelyOnNonRetryable(t *testing.T) {
	exec := NewExecutor(testLogger())

	calls := 0
	err := exec.Do(context.Background(), "test.op", StandardPolicy(), func(context.Context) error {
		calls++
		return faults.New(faults.KindValidation, "bad date range")
	})
	if err == nil {
		t.Fatal("expected error")
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1 for a non-retryable failure", calls)
	}
}

func TestDoRetriesUntypedErrors(t *testing.T) {
	var delays []time.Duration
	exec := NewExecutor(testLogger(), WithClock(time.Now, noSleep(&delays)))

	policy := RetryPolicy{MaxAttempts: 2, BaseDelay: time.Millisecond, MaxDelay: time.Second, BackoffMultiplier: 2}

	calls := 0
	err := exec.Do(context.Background(), "test.op", policy, func(context.Context) error {
		calls++
		return errors.New("boom")
	})
	if err == nil {
		t.Fatal("expected error")
	}
	// Unclassifiable errors default to retryable.
	if calls != 2 {
		t.Errorf("calls = %d, want 2", calls)
	}
}

func TestDoRecoversMidway(t *testing.T) {
	var delays []time.Duration
	exec := NewExecutor(testLogger(), WithClock(time.Now, noSleep(&delays)))

	policy := RetryPolicy{MaxAttempts: 5, BaseDelay: time.Millisecond, MaxDelay: time.Second, BackoffMultiplier: 2}

	calls := 0
	err := exec.Do(context.Background(), "test.op", policy, func(context.Context) error {
		calls++
		if calls < 3 {
			return faults.New(faults.KindTimeout, "slow upstream")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls != 3 {
		t.Errorf("calls = %d, want 3", calls)
	}
}

func TestBackoffBoundsAndCap(t *testing.T) {
	var delays []time.Duration
	exec := NewExecutor(testLogger(),
		WithClock(time.Now, noSleep(&delays)),
		WithJitterSource(func() float64 { return 1.0 }), // force maximum jitter
	)

	policy := RetryPolicy{
		MaxAttempts:       5,
		BaseDelay:         100 * time.Millisecond,
		MaxDelay:          400 * time.Millisecond,
		BackoffMultiplier: 2,
	}

	err := exec.Do(context.Background(), "test.op", policy, func(context.Context) error {
		return faults.New(faults.KindNetwork, "down")
	})
	if err == nil {
		t.Fatal("expected error")
	}

	// Pre-jitter delays: 100ms, 200ms, 400ms, then capped at 400ms.
	// With full jitter each grows by exactly 10%.
	want := []time.Duration{
		110 * time.Millisecond,
		220 * time.Millisecond,
		440 * time.Millisecond,
		440 * time.Millisecond,
	}
	if len(delays) != len(want) {
		t.Fatalf("sleeps = %d, want %d", len(delays), len(want))
	}
	for i, d := range delays {
		if d != want[i] {
			t.Errorf("delay[%d] = %v, want %v", i, d, want[i])
		}
	}
}

func TestBackoffWithoutJitter(t *testing.T) {
	var delays []time.Duration
	exec := NewExecutor(testLogger(),
		WithClock(time.Now, noSleep(&delays)),
		WithJitterSource(func() float64 { return 0 }),
	)

	policy := RetryPolicy{MaxAttempts: 3, BaseDelay: 50 * time.Millisecond, MaxDelay: time.Second, BackoffMultiplier: 3}

	_ = exec.Do(context.Background(), "test.op", policy, func(context.Context) error {
		return faults.New(faults.KindNetwork, "down")
	})

	want := []time.Duration{50 * time.Millisecond, 150 * time.Millisecond}
	for i, d := range delays {
		if d != want[i] {
			t.Errorf("delay[%d] = %v, want %v", i, d, want[i])
		}
	}
}

func TestRetryAfterHintOverridesBackoff(t *testing.T) {
	var delays []time.Duration
	exec := NewExecutor(testLogger(), WithClock(time.Now, noSleep(&delays)))

	policy := RetryPolicy{MaxAttempts: 2, BaseDelay: time.Millisecond, MaxDelay: time.Second, BackoffMultiplier: 2}

	_ = exec.Do(context.Background(), "test.op", policy, func(context.Context) error {
		return faults.New(faults.KindRateLimit, "throttled").WithRetryAfter(7 * time.Second)
	})

	if len(delays) != 1 {
		t.Fatalf("sleeps = %d, want 1", len(delays))
	}
	if delays[0] != 7*time.Second {
		t.Errorf("delay = %v, want the server's 7s hint", delays[0])
	}
}

func TestDoStopsWhenContextCancelledDuringBackoff(t *testing.T) {
	exec := NewExecutor(testLogger(), WithClock(time.Now, func(ctx context.Context, d time.Duration) error {
		return context.Canceled
	}))

	policy := RetryPolicy{MaxAttempts: 3, BaseDelay: time.Millisecond, MaxDelay: time.Second, BackoffMultiplier: 2}

	calls := 0
	err := exec.Do(context.Background(), "test.op", policy, func(context.Context) error {
		calls++
		return faults.New(faults.KindNetwork, "down")
	})
	if err == nil || !strings.Contains(err.Error(), "retry cancelled") {
		t.Fatalf("expected cancellation error, got %v", err)
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
}

func TestPerCallTimeout(t *testing.T) {
	exec := NewExecutor(testLogger())

	policy := RetryPolicy{MaxAttempts: 1, BaseDelay: time.Millisecond, MaxDelay: time.Second, BackoffMultiplier: 2, Timeout: 20 * time.Millisecond}

	err := exec.Do(context.Background(), "test.op", policy, func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})
	if err == nil {
		t.Fatal("expected timeout error")
	}
	fault := faults.Classify(err)
	if fault.Kind != faults.KindTimeout {
		t.Errorf("kind = %s, want timeout", fault.Kind)
	}
	if !fault.Retryable {
		t.Error("a per-call timeout must be retryable")
	}
}

func TestBreakerOpensAfterThreshold(t *testing.T) {
	current := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	var delays []time.Duration
	exec := NewExecutor(testLogger(), WithClock(func() time.Time { return current }, noSleep(&delays)))

	policy := RetryPolicy{MaxAttempts: 1, BaseDelay: time.Millisecond, MaxDelay: time.Second, BackoffMultiplier: 2}
	breakerCfg := CircuitBreakerConfig{FailureThreshold: 2, RecoveryTimeout: time.Minute, HalfOpenMaxAttempts: 1}

	calls := 0
	fail := func(context.Context) error {
		calls++
		return faults.New(faults.KindNetwork, "down")
	}

	for i := 0; i < 2; i++ {
		if err := exec.DoWithBreaker(context.Background(), "gitlab.fetch", policy, breakerCfg, fail); err == nil {
			t.Fatal("expected failure")
		}
	}
	if got := exec.BreakerState("gitlab.fetch"); got != StateOpen {
		t.Fatalf("state = %s, want open", got)
	}

	// Open breaker short-circuits without invoking the operation.
	err := exec.DoWithBreaker(context.Background(), "gitlab.fetch", policy, breakerCfg, fail)
	if err == nil {
		t.Fatal("expected short-circuit error")
	}
	if calls != 2 {
		t.Errorf("calls = %d, want 2 (short-circuit must not invoke)", calls)
	}
	if faults.IsRetryable(err) {
		t.Error("short-circuit fault must be non-retryable so callers fail fast")
	}
}

func TestBreakerHalfOpenRecovery(t *testing.T) {
	current := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	var delays []time.Duration
	exec := NewExecutor(testLogger(), WithClock(func() time.Time { return current }, noSleep(&delays)))

	policy := RetryPolicy{MaxAttempts: 1, BaseDelay: time.Millisecond, MaxDelay: time.Second, BackoffMultiplier: 2}
	breakerCfg := CircuitBreakerConfig{FailureThreshold: 1, RecoveryTimeout: 30 * time.Second, HalfOpenMaxAttempts: 1}

	fail := func(context.Context) error { return faults.New(faults.KindNetwork, "down") }
	ok := func(context.Context) error { return nil }

	_ = exec.DoWithBreaker(context.Background(), "slack.fetch", policy, breakerCfg, fail)
	if got := exec.BreakerState("slack.fetch"); got != StateOpen {
		t.Fatalf("state = %s, want open", got)
	}

	// Still inside the recovery window.
	calls := 0
	_ = exec.DoWithBreaker(context.Background(), "slack.fetch", policy, breakerCfg, func(context.Context) error {
		calls++
		return nil
	})
	if calls != 0 {
		t.Error("breaker admitted a call before the recovery timeout elapsed")
	}

	// After the recovery timeout a trial call is admitted; success closes.
	current = current.Add(31 * time.Second)
	if err := exec.DoWithBreaker(context.Background(), "slack.fetch", policy, breakerCfg, ok); err != nil {
		t.Fatalf("trial call failed: %v", err)
	}
	if got := exec.BreakerState("slack.fetch"); got != StateClosed {
		t.Errorf("state = %s, want closed after successful trial", got)
	}
}

func TestBreakerReopensOnHalfOpenFailure(t *testing.T) {
	current := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	var delays []time.Duration
	exec := NewExecutor(testLogger(), WithClock(func() time.Time { return current }, noSleep(&delays)))

	policy := RetryPolicy{MaxAttempts: 1, BaseDelay: time.Millisecond, MaxDelay: time.Second, BackoffMultiplier: 2}
	breakerCfg := CircuitBreakerConfig{FailureThreshold: 1, RecoveryTimeout: 30 * time.Second, HalfOpenMaxAttempts: 1}

	fail := func(context.Context) error { return faults.New(faults.KindNetwork, "down") }

	_ = exec.DoWithBreaker(context.Background(), "cal.fetch", policy, breakerCfg, fail)
	current = current.Add(31 * time.Second)

	// Trial call fails; the breaker re-opens immediately.
	_ = exec.DoWithBreaker(context.Background(), "cal.fetch", policy, breakerCfg, fail)
	if got := exec.BreakerState("cal.fetch"); got != StateOpen {
		t.Errorf("state = %s, want open after failed trial", got)
	}

	calls := 0
	_ = exec.DoWithBreaker(context.Background(), "cal.fetch", policy, breakerCfg, func(context.Context) error {
		calls++
		return nil
	})
	if calls != 0 {
		t.Error("re-opened breaker admitted a call")
	}
}

func TestBreakersAreIndependentPerOperation(t *testing.T) {
	current := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	var delays []time.Duration
	exec := NewExecutor(testLogger(), WithClock(func() time.Time { return current }, noSleep(&delays)))

	policy := RetryPolicy{MaxAttempts: 1, BaseDelay: time.Millisecond, MaxDelay: time.Second, BackoffMultiplier: 2}
	breakerCfg := CircuitBreakerConfig{FailureThreshold: 1, RecoveryTimeout: time.Minute, HalfOpenMaxAttempts: 1}

	_ = exec.DoWithBreaker(context.Background(), "gitlab.fetch", policy, breakerCfg, func(context.Context) error {
		return faults.New(faults.KindNetwork, "down")
	})
	if got := exec.BreakerState("gitlab.fetch"); got != StateOpen {
		t.Fatalf("state = %s, want open", got)
	}

	// A different operation name is unaffected.
	if err := exec.DoWithBreaker(context.Background(), "slack.fetch", policy, breakerCfg, func(context.Context) error {
		return nil
	}); err != nil {
		t.Errorf("unrelated operation was short-circuited: %v", err)
	}
}

func TestBreakerStateUnknownOperation(t *testing.T) {
	exec := NewExecutor(testLogger())
	if got := exec.BreakerState("never.seen"); got != StateClosed {
		t.Errorf("state = %s, want closed for unknown operation", got)
	}
}

type recordingObserver struct {
	attempts int
	states   []BreakerState
}

func (r *recordingObserver) ObserveAttempt(string, int, error) { r.attempts++ }

func (r *recordingObserver) ObserveBreakerState(_ string, s BreakerState) {
	r.states = append(r.states, s)
}

func TestObserverSeesAttempts(t *testing.T) {
	obs := &recordingObserver{}
	var delays []time.Duration
	exec := NewExecutor(testLogger(), WithClock(time.Now, noSleep(&delays)), WithObserver(obs))

	policy := RetryPolicy{MaxAttempts: 3, BaseDelay: time.Millisecond, MaxDelay: time.Second, BackoffMultiplier: 2}
	_ = exec.Do(context.Background(), "test.op", policy, func(context.Context) error {
		return faults.New(faults.KindNetwork, "down")
	})

	if obs.attempts != 3 {
		t.Errorf("observed attempts = %d, want 3", obs.attempts)
	}
}
