// Package source defines the capability contract every remote integration
// implements, plus the shared HTTP plumbing adapters build on. The aggregation
// orchestrator consumes adapters through this contract and never sees a wire
// format.
package source

import (
	"context"
	"time"

	"github.com/worklens/worklens/internal/models"
	"github.com/worklens/worklens/internal/resilience"
)

// Adapter is the capability surface of one remote system integration.
type Adapter interface {
	// Name returns the unique identifier for this adapter, used for logging
	// and as the circuit-breaker operation key.
	Name() string

	// SourceType returns the canonical type of activities this adapter yields.
	SourceType() models.SourceType

	// IsConfigured reports whether the adapter has enough configuration to
	// run. It is pure and performs no I/O; unconfigured adapters are skipped
	// entirely by the orchestrator.
	IsConfigured() bool

	// PreloadRange is an optional bulk warm-up over the whole date range,
	// called once before day-by-day iteration. Failures are logged by the
	// caller and never abort the run.
	PreloadRange(ctx context.Context, start, end time.Time) error

	// FetchForDate returns all canonical activities whose source-side
	// timestamp falls within the calendar day, boundaries inclusive, in the
	// fixed reference timezone. "No data" is an empty slice, not an error.
	FetchForDate(ctx context.Context, date time.Time) ([]models.Activity, error)
}

// NopPreloader provides the default no-op PreloadRange for adapters whose
// source is no cheaper to query in bulk than per day.
type NopPreloader struct{}

// PreloadRange does nothing.
func (NopPreloader) PreloadRange(ctx context.Context, start, end time.Time) error {
	return nil
}

// Config holds the per-adapter knobs the configuration provider supplies.
type Config struct {
	Enabled bool
	BaseURL string
	Token   string

	// MinRequestInterval separates consecutive requests to the same source,
	// honoring its requests-per-second ceiling.
	MinRequestInterval time.Duration

	Retry   resilience.RetryPolicy
	Breaker resilience.CircuitBreakerConfig
}
