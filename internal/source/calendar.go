package source

import (
	"context"
	"fmt"
	"net/url"
	"sync"
	"time"

	"log/slog"

	"github.com/worklens/worklens/internal/dates"
	"github.com/worklens/worklens/internal/models"
	"github.com/worklens/worklens/internal/tokens"
)

// CalendarAdapter yields meetings and events from a calendar service. The
// events API accepts an arbitrary time window, so the whole range is preloaded
// in one ranged query and served per day from the cache. Calendar OAuth tokens
// are JWTs with an expiry, so the adapter uses the expiry-aware provider.
type CalendarAdapter struct {
	cfg        Config
	calendarID string
	client     *Client
	logger     *slog.Logger

	mu     sync.Mutex
	cache  map[string][]models.Activity
	cached *dates.Range
}

// NewCalendar constructs the adapter for one calendar.
func NewCalendar(cfg Config, calendarID string, logger *slog.Logger) *CalendarAdapter {
	return &CalendarAdapter{
		cfg:        cfg,
		calendarID: calendarID,
		client:     NewClient(tokens.NewBearer(cfg.Token), cfg.MinRequestInterval, logger),
		logger:     logger,
		cache:      make(map[string][]models.Activity),
	}
}

func (c *CalendarAdapter) Name() string                  { return "calendar" }
func (c *CalendarAdapter) SourceType() models.SourceType { return models.SourceTypeCalendar }

func (c *CalendarAdapter) IsConfigured() bool {
	return c.cfg.Enabled && c.cfg.BaseURL != "" && c.cfg.Token != "" && c.calendarID != ""
}

type calendarEvents struct {
	Items []struct {
		ID          string `json:"id"`
		Summary     string `json:"summary"`
		Description string `json:"description"`
		HTMLLink    string `json:"htmlLink"`
		Status      string `json:"status"`
		Start       struct {
			DateTime time.Time `json:"dateTime"`
		} `json:"start"`
		Organizer struct {
			Email string `json:"email"`
		} `json:"organizer"`
	} `json:"items"`
}

// PreloadRange fetches every event in the range with a single query.
func (c *CalendarAdapter) PreloadRange(ctx context.Context, start, end time.Time) error {
	r, err := dates.NewRange(start, end)
	if err != nil {
		return err
	}

	events, err := c.fetchWindow(ctx, dates.StartOfDay(start), dates.EndOfDay(end))
	if err != nil {
		return err
	}

	buckets := make(map[string][]models.Activity)
	for _, event := range events {
		key := dates.FormatDay(event.Timestamp)
		buckets[key] = append(buckets[key], event)
	}

	c.mu.Lock()
	c.cache = buckets
	c.cached = &r
	c.mu.Unlock()

	c.logger.Info("calendar preload complete", "events", len(events), "days", len(buckets))
	return nil
}

// FetchForDate serves preloaded days from the cache, otherwise queries the
// single day directly.
func (c *CalendarAdapter) FetchForDate(ctx context.Context, date time.Time) ([]models.Activity, error) {
	day := dates.DayOf(date)

	c.mu.Lock()
	if c.cached != nil && c.cached.Contains(day) {
		cached := c.cache[dates.FormatDay(day)]
		out := make([]models.Activity, len(cached))
		copy(out, cached)
		c.mu.Unlock()
		return out, nil
	}
	c.mu.Unlock()

	return c.fetchWindow(ctx, dates.StartOfDay(day), dates.EndOfDay(day))
}

func (c *CalendarAdapter) fetchWindow(ctx context.Context, from, to time.Time) ([]models.Activity, error) {
	query := url.Values{}
	query.Set("timeMin", from.Format(time.RFC3339))
	query.Set("timeMax", to.Format(time.RFC3339))
	query.Set("singleEvents", "true")
	query.Set("orderBy", "startTime")

	var events calendarEvents
	endpoint := fmt.Sprintf("%s/calendars/%s/events", c.cfg.BaseURL, url.PathEscape(c.calendarID))
	if err := c.client.GetJSON(ctx, endpoint, query, &events); err != nil {
		return nil, err
	}

	activities := make([]models.Activity, 0, len(events.Items))
	for _, item := range events.Items {
		if item.Status == "cancelled" {
			continue
		}
		activity := models.NewActivity(models.SourceTypeCalendar,
			models.ActivityID(models.SourceTypeCalendar, "event", item.ID),
			item.Start.DateTime, item.Summary).
			WithDetails(item.Description, item.Organizer.Email, item.HTMLLink, models.Metadata{
				"kind":     "event",
				"calendar": c.calendarID,
			})
		activities = append(activities, activity)
	}

	return activities, nil
}
