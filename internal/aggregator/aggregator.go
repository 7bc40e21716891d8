// Package aggregator drives source adapters through a two-phase sweep over a
// date range and assembles one daily summary per calendar day. Failure
// isolation is the central invariant: no single adapter's failure can abort the
// run or suppress another adapter's contribution for any day.
package aggregator

import (
	"context"
	"time"

	"log/slog"

	"github.com/worklens/worklens/internal/dates"
	"github.com/worklens/worklens/internal/faults"
	"github.com/worklens/worklens/internal/models"
	"github.com/worklens/worklens/internal/resilience"
	"github.com/worklens/worklens/internal/source"
)

// Registration couples an adapter with the resilience knobs its remote
// warrants. The breaker is keyed per adapter and phase so one degrading source
// fails independently of the others.
type Registration struct {
	Adapter source.Adapter
	Retry   resilience.RetryPolicy
	Breaker resilience.CircuitBreakerConfig
}

// Metrics receives per-fetch observations. Implementations must be safe for
// concurrent use.
type Metrics interface {
	ObserveFetch(adapter string, duration time.Duration, activities int, err error)
}

// Aggregator orchestrates registered adapters for batch runs.
type Aggregator struct {
	registrations []Registration
	executor      *resilience.Executor
	logger        *slog.Logger
	metrics       Metrics
}

// New constructs an aggregator. metrics may be nil.
func New(executor *resilience.Executor, logger *slog.Logger, metrics Metrics, registrations ...Registration) *Aggregator {
	return &Aggregator{
		registrations: registrations,
		executor:      executor,
		logger:        logger,
		metrics:       metrics,
	}
}

// Run sweeps the inclusive date range and returns one summary per calendar
// day, ascending. Phase 1 preloads every enabled adapter concurrently; Phase 2
// fetches day by day, adapters in registration order, so request issuance
// stays deterministic and rate-limited remotes are never hit in parallel for
// the same day. The only error Run can return is an invalid range.
func (a *Aggregator) Run(ctx context.Context, start, end time.Time) ([]models.DailySummary, error) {
	r, err := dates.NewRange(start, end)
	if err != nil {
		return nil, faults.Wrap(err, faults.KindValidation, "invalid aggregation range")
	}

	enabled := a.enabled()
	a.logger.Info("starting aggregation run",
		"start", dates.FormatDay(r.Start),
		"end", dates.FormatDay(r.End),
		"days", r.Len(),
		"adapters", len(enabled),
	)

	a.preload(ctx, enabled, r)

	summaries := make([]models.DailySummary, 0, r.Len())
	for _, day := range r.Days() {
		summaries = append(summaries, a.collectDay(ctx, enabled, day))
	}

	a.logger.Info("aggregation run complete", "summaries", len(summaries))
	return summaries, nil
}

// enabled filters out adapters that report themselves unconfigured. Skipped
// adapters get no preload, no fetch, and no error.
func (a *Aggregator) enabled() []Registration {
	enabled := make([]Registration, 0, len(a.registrations))
	for _, reg := range a.registrations {
		if !reg.Adapter.IsConfigured() {
			a.logger.Debug("skipping unconfigured adapter", "adapter", reg.Adapter.Name())
			continue
		}
		enabled = append(enabled, reg)
	}
	return enabled
}

// preload is Phase 1: every enabled adapter warms up concurrently. Failures
// are logged and isolated; they never affect siblings or Phase 2.
func (a *Aggregator) preload(ctx context.Context, enabled []Registration, r dates.Range) {
	done := make(chan struct{})
	for _, reg := range enabled {
		go func(reg Registration) {
			defer func() { done <- struct{}{} }()

			operation := reg.Adapter.Name() + ".preload"
			err := a.executor.DoWithBreaker(ctx, operation, reg.Retry, reg.Breaker, func(ctx context.Context) error {
				return reg.Adapter.PreloadRange(ctx, r.Start, r.End)
			})
			if err != nil {
				a.logger.Warn("preload failed, continuing without warm-up",
					"adapter", reg.Adapter.Name(),
					"error", err,
				)
			}
		}(reg)
	}
	for range enabled {
		<-done
	}
}

// collectDay is one Phase-2 step: fetch the day from each adapter in order,
// treating any failure as zero activities for that (adapter, day) pair.
func (a *Aggregator) collectDay(ctx context.Context, enabled []Registration, day time.Time) models.DailySummary {
	var bucket []models.Activity

	for _, reg := range enabled {
		start := time.Now()

		var activities []models.Activity
		operation := reg.Adapter.Name() + ".fetch"
		err := a.executor.DoWithBreaker(ctx, operation, reg.Retry, reg.Breaker, func(ctx context.Context) error {
			fetched, err := reg.Adapter.FetchForDate(ctx, day)
			if err != nil {
				return err
			}
			activities = fetched
			return nil
		})

		if a.metrics != nil {
			a.metrics.ObserveFetch(reg.Adapter.Name(), time.Since(start), len(activities), err)
		}

		if err != nil {
			fault := faults.Classify(err)
			a.logger.Log(ctx, faults.Severity(fault.Kind), "fetch failed, treating day as empty",
				"adapter", reg.Adapter.Name(),
				"date", dates.FormatDay(day),
				"kind", string(fault.Kind),
				"error", err,
			)
			continue
		}

		a.logger.Debug("fetched activities",
			"adapter", reg.Adapter.Name(),
			"date", dates.FormatDay(day),
			"count", len(activities),
		)
		bucket = append(bucket, activities...)
	}

	return models.NewDailySummary(day, bucket)
}
