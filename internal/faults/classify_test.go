package faults

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"testing"
	"time"
)

func TestClassifyUntypedErrors(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		kind      Kind
		retryable bool
	}{
		{"rate limit with status", errors.New("429 rate limit exceeded"), KindRateLimit, true},
		{"unauthorized with status", errors.New("401 unauthorized"), KindAuth, false},
		{"forbidden", errors.New("server said: forbidden"), KindAuth, false},
		{"invalid token", errors.New("invalid token supplied"), KindAuth, false},
		{"quota", errors.New("monthly quota exceeded"), KindRateLimit, true},
		{"too many requests", errors.New("too many requests, slow down"), KindRateLimit, true},
		{"connection reset", errors.New("read tcp: connection reset by peer"), KindNetwork, true},
		{"econnrefused", errors.New("dial tcp: ECONNREFUSED"), KindNetwork, true},
		{"dns", errors.New("lookup api.example.com: no such host"), KindNetwork, true},
		{"server error", errors.New("502 bad gateway"), KindNetwork, true},
		{"timeout text", errors.New("request timed out"), KindTimeout, true},
		{"etimedout", errors.New("ETIMEDOUT"), KindTimeout, true},
		{"bad request", errors.New("400 bad request"), KindValidation, false},
		{"not found", errors.New("404 not found"), KindAPI, false},
		{"unknown defaults to retryable network", errors.New("something odd happened"), KindNetwork, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fault := Classify(tt.err)
			if fault.Kind != tt.kind {
				t.Errorf("Classify(%q).Kind = %s, want %s", tt.err, fault.Kind, tt.kind)
			}
			if fault.Retryable != tt.retryable {
				t.Errorf("Classify(%q).Retryable = %t, want %t", tt.err, fault.Retryable, tt.retryable)
			}
		})
	}
}

func TestClassifyAuthBeforeRateLimit(t *testing.T) {
	// Auth signatures win over later categories when both appear.
	fault := Classify(errors.New("403 forbidden: rate limit plan"))
	if fault.Kind != KindAuth {
		t.Errorf("expected auth classification, got %s", fault.Kind)
	}
}

func TestClassifyTypedFaultPassthrough(t *testing.T) {
	typed := New(KindRateLimit, "slow down").WithRetryAfter(2 * time.Second)

	fault := Classify(fmt.Errorf("fetch failed: %w", typed))
	if fault != typed {
		t.Fatal("expected the typed fault to be returned verbatim")
	}
	if fault.RetryAfter != 2*time.Second {
		t.Errorf("RetryAfter = %v, want 2s", fault.RetryAfter)
	}
}

func TestClassifyRetryableOverrideRespected(t *testing.T) {
	typed := New(KindNetwork, "breaker open").WithRetryable(false)

	fault := Classify(typed)
	if fault.Retryable {
		t.Error("declared retryability must be used verbatim")
	}
}

func TestClassifyContextDeadline(t *testing.T) {
	fault := Classify(fmt.Errorf("call: %w", context.DeadlineExceeded))
	if fault.Kind != KindTimeout {
		t.Errorf("expected timeout, got %s", fault.Kind)
	}
	if !fault.Retryable {
		t.Error("timeouts must be retryable")
	}
}

func TestClassifyNil(t *testing.T) {
	if Classify(nil) != nil {
		t.Error("Classify(nil) should be nil")
	}
	if IsRetryable(nil) {
		t.Error("nil is not retryable")
	}
}

func TestFromHTTPStatus(t *testing.T) {
	tests := []struct {
		status    int
		kind      Kind
		retryable bool
	}{
		{401, KindAuth, false},
		{403, KindAuth, false},
		{429, KindRateLimit, true},
		{408, KindTimeout, true},
		{500, KindAPI, true},
		{503, KindAPI, true},
		{400, KindValidation, false},
		{404, KindAPI, false},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("%d", tt.status), func(t *testing.T) {
			fault := FromHTTPStatus(tt.status, "https://example.com", 0)
			if fault.Kind != tt.kind {
				t.Errorf("status %d: kind = %s, want %s", tt.status, fault.Kind, tt.kind)
			}
			if fault.Retryable != tt.retryable {
				t.Errorf("status %d: retryable = %t, want %t", tt.status, fault.Retryable, tt.retryable)
			}
		})
	}
}

func TestFromHTTPStatusRetryAfter(t *testing.T) {
	fault := FromHTTPStatus(429, "https://example.com", 30*time.Second)
	if fault.RetryAfter != 30*time.Second {
		t.Errorf("RetryAfter = %v, want 30s", fault.RetryAfter)
	}
}

func TestSeverity(t *testing.T) {
	tests := []struct {
		kind  Kind
		level slog.Level
	}{
		{KindNetwork, slog.LevelWarn},
		{KindRateLimit, slog.LevelWarn},
		{KindTimeout, slog.LevelWarn},
		{KindProvider, slog.LevelWarn},
		{KindValidation, slog.LevelWarn},
		{KindConfiguration, slog.LevelWarn},
		{KindAuth, slog.LevelError},
		{KindAPI, slog.LevelError},
		{KindFileSystem, slog.LevelError},
		{KindDataProcessing, slog.LevelError},
	}

	for _, tt := range tests {
		if got := Severity(tt.kind); got != tt.level {
			t.Errorf("Severity(%s) = %v, want %v", tt.kind, got, tt.level)
		}
	}
}

func TestRecoverySuggestionsOrdered(t *testing.T) {
	suggestions := RecoverySuggestions(KindAuth)
	if len(suggestions) == 0 {
		t.Fatal("expected suggestions for auth failures")
	}
	// Most likely fix first.
	if suggestions[0] != "Verify the access token or credentials for this source" {
		t.Errorf("unexpected first suggestion: %s", suggestions[0])
	}
}

func TestFaultErrorAndUnwrap(t *testing.T) {
	cause := errors.New("underlying")
	fault := Wrap(cause, KindNetwork, "request failed")

	if !errors.Is(fault, cause) {
		t.Error("fault should unwrap to its cause")
	}
	if fault.Error() == "" {
		t.Error("expected non-empty error string")
	}

	if msg := UserMessage(fault); msg == "" {
		t.Error("expected non-empty user message")
	}
}
