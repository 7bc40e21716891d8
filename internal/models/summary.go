package models

import "time"

// DailySummary holds every activity collected for one calendar day across all
// adapters, together with the computed rollup. Summaries are built once per run
// and never mutated afterwards.
type DailySummary struct {
	Date       time.Time  `json:"date"`
	Activities []Activity `json:"activities"`
	Rollup     Rollup     `json:"rollup"`
}

// Rollup aggregates per-day counts. Invariants: Total == len(Activities),
// sum(ByType) == Total, sum(ByAuthor) == count of activities with a non-empty
// author.
type Rollup struct {
	Total    int                `json:"total"`
	ByType   map[SourceType]int `json:"by_type"`
	ByAuthor map[string]int     `json:"by_author"`
}

// NewDailySummary buckets the given activities under one calendar day and
// computes the rollup counts.
func NewDailySummary(date time.Time, activities []Activity) DailySummary {
	rollup := Rollup{
		Total:    len(activities),
		ByType:   make(map[SourceType]int),
		ByAuthor: make(map[string]int),
	}

	for _, activity := range activities {
		rollup.ByType[activity.Type]++
		if activity.Author != "" {
			rollup.ByAuthor[activity.Author]++
		}
	}

	return DailySummary{
		Date:       date,
		Activities: activities,
		Rollup:     rollup,
	}
}

// IsEmpty reports whether the day produced no activity at all.
func (s DailySummary) IsEmpty() bool {
	return s.Rollup.Total == 0
}
