// Package scheduler triggers one aggregation run per day at a configured time,
// covering the previous calendar day. Each trigger is an ordinary batch run;
// the scheduler adds no delivery guarantees across restarts.
package scheduler

import (
	"context"
	"time"

	"log/slog"

	"github.com/worklens/worklens/internal/dates"
	"github.com/worklens/worklens/internal/models"
	"github.com/worklens/worklens/internal/storage"
)

// Runner matches the aggregator's batch entry point.
type Runner interface {
	Run(ctx context.Context, start, end time.Time) ([]models.DailySummary, error)
}

// RunScheduler fires a run for yesterday at the configured time of day.
type RunScheduler struct {
	runner        Runner
	repo          *storage.RunRepository
	logger        *slog.Logger
	timeOfDay     string
	checkInterval time.Duration
	lastRunDay    string
	stopChan      chan struct{}
}

// NewRunScheduler constructs a scheduler. repo may be nil, in which case run
// results are logged but not persisted. timeOfDay is "HH:MM" in the reference
// timezone.
func NewRunScheduler(runner Runner, repo *storage.RunRepository, timeOfDay string, logger *slog.Logger) *RunScheduler {
	return &RunScheduler{
		runner:        runner,
		repo:          repo,
		logger:        logger,
		timeOfDay:     timeOfDay,
		checkInterval: 1 * time.Minute,
		stopChan:      make(chan struct{}),
	}
}

// Start begins the scheduler loop.
func (s *RunScheduler) Start(ctx context.Context) {
	s.logger.Info("starting run scheduler", "time_of_day", s.timeOfDay)
	ticker := time.NewTicker(s.checkInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.maybeRun(ctx)
		case <-s.stopChan:
			s.logger.Info("run scheduler stopped")
			return
		case <-ctx.Done():
			s.logger.Info("run scheduler stopping due to context cancellation")
			return
		}
	}
}

// Stop stops the scheduler.
func (s *RunScheduler) Stop() {
	close(s.stopChan)
}

func (s *RunScheduler) maybeRun(ctx context.Context) {
	now := time.Now().In(dates.ReferenceLocation)
	if now.Format("15:04") != s.timeOfDay {
		return
	}

	today := dates.FormatDay(now)
	if s.lastRunDay == today {
		return
	}
	s.lastRunDay = today

	yesterday := dates.DayOf(now).AddDate(0, 0, -1)
	s.logger.Info("executing scheduled run", "date", dates.FormatDay(yesterday))

	summaries, err := s.runner.Run(ctx, yesterday, yesterday)
	if err != nil {
		s.logger.Error("scheduled run failed", "error", err)
		return
	}

	if s.repo != nil {
		run, err := s.repo.Store(ctx, yesterday, yesterday, summaries)
		if err != nil {
			s.logger.Error("failed to store scheduled run", "error", err)
			return
		}
		s.logger.Info("scheduled run stored", "run_id", run.ID, "activities", run.TotalActivities)
		return
	}

	total := 0
	for _, summary := range summaries {
		total += summary.Rollup.Total
	}
	s.logger.Info("scheduled run complete", "activities", total)
}
