package models

import (
	"fmt"
	"time"
)

// Activity is the canonical record every source adapter produces, regardless of
// which remote system it came from. Activities are immutable once constructed.
type Activity struct {
	ID          string     `json:"id"`
	Type        SourceType `json:"type"`
	Timestamp   time.Time  `json:"timestamp"`
	Title       string     `json:"title"`
	Description string     `json:"description,omitempty"`
	Author      string     `json:"author,omitempty"`
	URL         string     `json:"url,omitempty"`
	Metadata    Metadata   `json:"metadata,omitempty"`
}

// SourceType categorizes the remote system an activity originated from.
type SourceType string

const (
	SourceTypeGitLab   SourceType = "gitlab"
	SourceTypeSlack    SourceType = "slack"
	SourceTypeCalendar SourceType = "calendar"
	SourceTypeJira     SourceType = "jira"
	SourceTypeOther    SourceType = "other"
)

// Metadata holds per-source scalar attributes for attribution and traceability.
// Adapters document which keys they populate; the core never inspects it.
type Metadata map[string]any

// NewActivity constructs a canonical activity from per-source raw fields. It is
// a pure constructor with no ID generation, timestamp coercion, or
// deduplication; the adapter owns the composite ID and the resolved instant.
func NewActivity(sourceType SourceType, id string, timestamp time.Time, title string) Activity {
	return Activity{
		ID:        id,
		Type:      sourceType,
		Timestamp: timestamp,
		Title:     title,
	}
}

// WithDetails returns a copy of the activity with the optional fields set.
func (a Activity) WithDetails(description, author, url string, metadata Metadata) Activity {
	a.Description = description
	a.Author = author
	a.URL = url
	a.Metadata = metadata
	return a
}

// ActivityID builds the conventional composite key "{sourceType}-{kind}-{sourceId}".
func ActivityID(sourceType SourceType, kind, sourceID string) string {
	return fmt.Sprintf("%s-%s-%s", sourceType, kind, sourceID)
}

// GetDisplayName returns a human-readable identifier for the activity.
func (a Activity) GetDisplayName() string {
	if a.Title != "" {
		return a.Title
	}
	if a.Author != "" {
		return a.Author + " (" + string(a.Type) + ")"
	}
	return string(a.Type) + " activity"
}
