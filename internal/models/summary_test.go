package models

import (
	"testing"
	"time"
)

func TestNewDailySummaryRollup(t *testing.T) {
	day := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	activities := []Activity{
		NewActivity(SourceTypeGitLab, "gitlab-issue-1", day, "Fix login bug").WithDetails("", "john", "", nil),
		NewActivity(SourceTypeGitLab, "gitlab-mr-2", day, "Add caching").WithDetails("", "john", "", nil),
		NewActivity(SourceTypeSlack, "slack-msg-3", day, "standup notes").WithDetails("", "jane", "", nil),
		NewActivity(SourceTypeCalendar, "calendar-event-4", day, "Planning"), // no author
	}

	s := NewDailySummary(day, activities)

	if s.Rollup.Total != 4 {
		t.Errorf("Total = %d, want 4", s.Rollup.Total)
	}
	if s.Rollup.ByType[SourceTypeGitLab] != 2 {
		t.Errorf("ByType[gitlab] = %d, want 2", s.Rollup.ByType[SourceTypeGitLab])
	}
	if s.Rollup.ByType[SourceTypeSlack] != 1 {
		t.Errorf("ByType[slack] = %d, want 1", s.Rollup.ByType[SourceTypeSlack])
	}
	if s.Rollup.ByAuthor["john"] != 2 {
		t.Errorf("ByAuthor[john] = %d, want 2", s.Rollup.ByAuthor["john"])
	}

	// Activities without an author never appear in ByAuthor.
	total := 0
	for _, n := range s.Rollup.ByAuthor {
		total += n
	}
	if total != 3 {
		t.Errorf("sum(ByAuthor) = %d, want 3", total)
	}
	if s.IsEmpty() {
		t.Error("IsEmpty() = true for a populated day")
	}
}

func TestNewDailySummaryEmpty(t *testing.T) {
	day := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	s := NewDailySummary(day, nil)

	if !s.IsEmpty() {
		t.Error("IsEmpty() = false for an empty day")
	}
	if s.Rollup.Total != 0 || len(s.Rollup.ByType) != 0 || len(s.Rollup.ByAuthor) != 0 {
		t.Errorf("empty day rollup = %+v", s.Rollup)
	}
}

func TestActivityID(t *testing.T) {
	got := ActivityID(SourceTypeGitLab, "issue", "42")
	if got != "gitlab-issue-42" {
		t.Errorf("ActivityID = %s, want gitlab-issue-42", got)
	}
}

func TestGetDisplayName(t *testing.T) {
	day := time.Now()

	titled := NewActivity(SourceTypeSlack, "id", day, "hello world")
	if titled.GetDisplayName() != "hello world" {
		t.Errorf("display name = %s", titled.GetDisplayName())
	}

	authored := NewActivity(SourceTypeSlack, "id", day, "").WithDetails("", "jane", "", nil)
	if authored.GetDisplayName() != "jane (slack)" {
		t.Errorf("display name = %s", authored.GetDisplayName())
	}

	bare := NewActivity(SourceTypeSlack, "id", day, "")
	if bare.GetDisplayName() != "slack activity" {
		t.Errorf("display name = %s", bare.GetDisplayName())
	}
}
