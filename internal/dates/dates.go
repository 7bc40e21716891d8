// Package dates provides calendar-day helpers for aggregation runs. All day
// boundaries are computed in a single fixed reference timezone (UTC) so that
// bucketing is deterministic regardless of where the process runs.
package dates

import (
	"fmt"
	"time"
)

// ReferenceLocation is the fixed timezone all day boundaries are computed in.
var ReferenceLocation = time.UTC

// DayOf truncates an instant to the calendar day that contains it.
func DayOf(t time.Time) time.Time {
	t = t.In(ReferenceLocation)
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, ReferenceLocation)
}

// StartOfDay returns 00:00:00.000 of the day containing t.
func StartOfDay(t time.Time) time.Time {
	return DayOf(t)
}

// EndOfDay returns 23:59:59.999 of the day containing t.
func EndOfDay(t time.Time) time.Time {
	return DayOf(t).Add(24*time.Hour - time.Millisecond)
}

// Range is an inclusive range of calendar days.
type Range struct {
	Start time.Time
	End   time.Time
}

// NewRange normalizes both endpoints to day precision and validates ordering.
func NewRange(start, end time.Time) (Range, error) {
	r := Range{Start: DayOf(start), End: DayOf(end)}
	if r.End.Before(r.Start) {
		return Range{}, fmt.Errorf("invalid date range: end %s before start %s",
			r.End.Format("2006-01-02"), r.Start.Format("2006-01-02"))
	}
	return r, nil
}

// Days returns every calendar day in the range, ascending, both endpoints
// included. The slice is finite and freshly allocated on every call.
func (r Range) Days() []time.Time {
	days := make([]time.Time, 0, r.Len())
	for d := r.Start; !d.After(r.End); d = d.AddDate(0, 0, 1) {
		days = append(days, d)
	}
	return days
}

// Len returns the number of calendar days in the range.
func (r Range) Len() int {
	return int(r.End.Sub(r.Start)/(24*time.Hour)) + 1
}

// Contains reports whether the instant falls within the range's day boundaries.
func (r Range) Contains(t time.Time) bool {
	d := DayOf(t)
	return !d.Before(r.Start) && !d.After(r.End)
}

// ParseDay parses a YYYY-MM-DD string into a day in the reference timezone.
func ParseDay(s string) (time.Time, error) {
	t, err := time.ParseInLocation("2006-01-02", s, ReferenceLocation)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q: expected YYYY-MM-DD", s)
	}
	return t, nil
}

// FormatDay renders a day as YYYY-MM-DD.
func FormatDay(t time.Time) string {
	return t.In(ReferenceLocation).Format("2006-01-02")
}
