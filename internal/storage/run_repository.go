package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/worklens/worklens/internal/dates"
	"github.com/worklens/worklens/internal/models"
)

// Run records one aggregation invocation.
type Run struct {
	ID              string    `json:"id"`
	StartDate       time.Time `json:"start_date"`
	EndDate         time.Time `json:"end_date"`
	TotalActivities int       `json:"total_activities"`
	CreatedAt       time.Time `json:"created_at"`
}

// RunRepository stores runs and their daily summaries.
type RunRepository struct {
	db *sql.DB
}

// NewRunRepository constructs a repository over an open connection pool.
func NewRunRepository(db *sql.DB) *RunRepository {
	return &RunRepository{db: db}
}

// Store persists a run and all its summaries in one transaction and returns
// the assigned run ID.
func (r *RunRepository) Store(ctx context.Context, start, end time.Time, summaries []models.DailySummary) (Run, error) {
	run := Run{
		ID:        uuid.NewString(),
		StartDate: dates.DayOf(start),
		EndDate:   dates.DayOf(end),
	}
	for _, s := range summaries {
		run.TotalActivities += s.Rollup.Total
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return Run{}, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	err = tx.QueryRowContext(ctx, `
		INSERT INTO runs (id, start_date, end_date, total_activities)
		VALUES ($1, $2, $3, $4)
		RETURNING created_at
	`, run.ID, run.StartDate, run.EndDate, run.TotalActivities).Scan(&run.CreatedAt)
	if err != nil {
		return Run{}, fmt.Errorf("failed to insert run: %w", err)
	}

	for _, summary := range summaries {
		byType, err := json.Marshal(summary.Rollup.ByType)
		if err != nil {
			return Run{}, fmt.Errorf("failed to marshal by_type: %w", err)
		}
		byAuthor, err := json.Marshal(summary.Rollup.ByAuthor)
		if err != nil {
			return Run{}, fmt.Errorf("failed to marshal by_author: %w", err)
		}
		activities, err := json.Marshal(summary.Activities)
		if err != nil {
			return Run{}, fmt.Errorf("failed to marshal activities: %w", err)
		}

		_, err = tx.ExecContext(ctx, `
			INSERT INTO daily_summaries (run_id, date, total, by_type, by_author, activities)
			VALUES ($1, $2, $3, $4, $5, $6)
		`, run.ID, summary.Date, summary.Rollup.Total, byType, byAuthor, activities)
		if err != nil {
			return Run{}, fmt.Errorf("failed to insert daily summary: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return Run{}, fmt.Errorf("failed to commit run: %w", err)
	}
	return run, nil
}

// List returns the most recent runs, newest first.
func (r *RunRepository) List(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT id, start_date, end_date, total_activities, created_at
		FROM runs
		ORDER BY created_at DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var run Run
		if err := rows.Scan(&run.ID, &run.StartDate, &run.EndDate, &run.TotalActivities, &run.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// SummariesForDate returns every stored summary for a calendar day, newest run
// first.
func (r *RunRepository) SummariesForDate(ctx context.Context, date time.Time) ([]models.DailySummary, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT ds.date, ds.total, ds.by_type, ds.by_author, ds.activities
		FROM daily_summaries ds
		JOIN runs ON runs.id = ds.run_id
		WHERE ds.date = $1
		ORDER BY runs.created_at DESC
	`, dates.DayOf(date))
	if err != nil {
		return nil, fmt.Errorf("failed to query summaries: %w", err)
	}
	defer rows.Close()

	var summaries []models.DailySummary
	for rows.Next() {
		var (
			summary    models.DailySummary
			byType     []byte
			byAuthor   []byte
			activities []byte
		)
		if err := rows.Scan(&summary.Date, &summary.Rollup.Total, &byType, &byAuthor, &activities); err != nil {
			return nil, fmt.Errorf("failed to scan summary: %w", err)
		}
		if err := json.Unmarshal(byType, &summary.Rollup.ByType); err != nil {
			return nil, fmt.Errorf("failed to unmarshal by_type: %w", err)
		}
		if err := json.Unmarshal(byAuthor, &summary.Rollup.ByAuthor); err != nil {
			return nil, fmt.Errorf("failed to unmarshal by_author: %w", err)
		}
		if err := json.Unmarshal(activities, &summary.Activities); err != nil {
			return nil, fmt.Errorf("failed to unmarshal activities: %w", err)
		}
		summaries = append(summaries, summary)
	}
	return summaries, rows.Err()
}
