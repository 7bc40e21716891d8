// Package faults defines the error taxonomy shared by every source adapter and
// the retry executor. A Fault carries an error kind, a retryability flag, and
// enough context to present a useful message to the operator. Classification of
// untyped errors is heuristic and fails open toward retrying unknown transient
// conditions.
package faults

import (
	"fmt"
	"time"
)

// Kind identifies the failure category. The retry executor only ever consults
// the retryable flag; everything else is presentation.
type Kind string

const (
	KindAPI            Kind = "api"
	KindAuth           Kind = "auth"
	KindConfiguration  Kind = "configuration"
	KindValidation     Kind = "validation"
	KindFileSystem     Kind = "filesystem"
	KindNetwork        Kind = "network"
	KindRateLimit      Kind = "rate_limit"
	KindTimeout        Kind = "timeout"
	KindProvider       Kind = "provider"
	KindDataProcessing Kind = "data_processing"
)

// retryableByDefault holds the per-kind default for newly constructed faults.
var retryableByDefault = map[Kind]bool{
	KindAPI:            false,
	KindAuth:           false,
	KindConfiguration:  false,
	KindValidation:     false,
	KindFileSystem:     false,
	KindNetwork:        true,
	KindRateLimit:      true,
	KindTimeout:        true,
	KindProvider:       true,
	KindDataProcessing: false,
}

// Fault is the typed error every component of the resilience core exchanges.
type Fault struct {
	Kind       Kind
	Message    string
	Context    map[string]any
	Retryable  bool
	RetryAfter time.Duration // optional hint, only meaningful for rate limits
	Err        error         // wrapped cause, may be nil
}

// New constructs a fault with the kind's default retryability.
func New(kind Kind, message string) *Fault {
	return &Fault{
		Kind:      kind,
		Message:   message,
		Retryable: retryableByDefault[kind],
	}
}

// Newf constructs a fault with a formatted message.
func Newf(kind Kind, format string, args ...any) *Fault {
	return New(kind, fmt.Sprintf(format, args...))
}

// Wrap constructs a fault around an underlying cause.
func Wrap(err error, kind Kind, message string) *Fault {
	f := New(kind, message)
	f.Err = err
	return f
}

func (f *Fault) Error() string {
	if f.Err != nil {
		return fmt.Sprintf("%s: %s: %v", f.Kind, f.Message, f.Err)
	}
	return fmt.Sprintf("%s: %s", f.Kind, f.Message)
}

func (f *Fault) Unwrap() error {
	return f.Err
}

// With attaches a context key/value and returns the fault for chaining.
func (f *Fault) With(key string, value any) *Fault {
	if f.Context == nil {
		f.Context = make(map[string]any)
	}
	f.Context[key] = value
	return f
}

// WithRetryable overrides the kind's default retryability.
func (f *Fault) WithRetryable(retryable bool) *Fault {
	f.Retryable = retryable
	return f
}

// WithRetryAfter records a server-provided backoff hint.
func (f *Fault) WithRetryAfter(d time.Duration) *Fault {
	f.RetryAfter = d
	return f
}
