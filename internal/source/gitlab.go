package source

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"sync"
	"time"

	"log/slog"

	"github.com/worklens/worklens/internal/dates"
	"github.com/worklens/worklens/internal/models"
	"github.com/worklens/worklens/internal/tokens"
)

// GitLabAdapter yields issue and merge-request updates from a GitLab instance.
// Bulk queries over a date range are much cheaper than one query per day, so it
// implements PreloadRange and serves FetchForDate from the preloaded cache.
type GitLabAdapter struct {
	cfg    Config
	client *Client
	logger *slog.Logger

	mu     sync.Mutex
	cache  map[string][]models.Activity
	cached *dates.Range
}

// NewGitLab constructs the adapter. BaseURL points at the instance root, e.g.
// https://gitlab.example.com.
func NewGitLab(cfg Config, logger *slog.Logger) *GitLabAdapter {
	return &GitLabAdapter{
		cfg:    cfg,
		client: NewClient(tokens.NewStatic(cfg.Token), cfg.MinRequestInterval, logger),
		logger: logger,
		cache:  make(map[string][]models.Activity),
	}
}

func (g *GitLabAdapter) Name() string                  { return "gitlab" }
func (g *GitLabAdapter) SourceType() models.SourceType { return models.SourceTypeGitLab }

func (g *GitLabAdapter) IsConfigured() bool {
	return g.cfg.Enabled && g.cfg.BaseURL != "" && g.cfg.Token != ""
}

// PreloadRange fetches every issue and merge request updated within the range
// and buckets them by calendar day.
func (g *GitLabAdapter) PreloadRange(ctx context.Context, start, end time.Time) error {
	r, err := dates.NewRange(start, end)
	if err != nil {
		return err
	}

	issues, err := g.fetchUpdated(ctx, "issues", "issue", dates.StartOfDay(start), dates.EndOfDay(end))
	if err != nil {
		return err
	}
	merges, err := g.fetchUpdated(ctx, "merge_requests", "mr", dates.StartOfDay(start), dates.EndOfDay(end))
	if err != nil {
		return err
	}

	buckets := make(map[string][]models.Activity)
	for _, activity := range append(issues, merges...) {
		key := dates.FormatDay(activity.Timestamp)
		buckets[key] = append(buckets[key], activity)
	}

	g.mu.Lock()
	g.cache = buckets
	g.cached = &r
	g.mu.Unlock()

	g.logger.Info("gitlab preload complete",
		"issues", len(issues),
		"merge_requests", len(merges),
		"days", len(buckets),
	)
	return nil
}

// FetchForDate serves from the preloaded cache when the day is covered and
// falls back to a direct single-day query otherwise.
func (g *GitLabAdapter) FetchForDate(ctx context.Context, date time.Time) ([]models.Activity, error) {
	day := dates.DayOf(date)

	g.mu.Lock()
	if g.cached != nil && g.cached.Contains(day) {
		cached := g.cache[dates.FormatDay(day)]
		out := make([]models.Activity, len(cached))
		copy(out, cached)
		g.mu.Unlock()
		return out, nil
	}
	g.mu.Unlock()

	issues, err := g.fetchUpdated(ctx, "issues", "issue", dates.StartOfDay(day), dates.EndOfDay(day))
	if err != nil {
		return nil, err
	}
	merges, err := g.fetchUpdated(ctx, "merge_requests", "mr", dates.StartOfDay(day), dates.EndOfDay(day))
	if err != nil {
		return nil, err
	}
	return append(issues, merges...), nil
}

type gitlabItem struct {
	IID         int       `json:"iid"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	WebURL      string    `json:"web_url"`
	State       string    `json:"state"`
	UpdatedAt   time.Time `json:"updated_at"`
	Author      struct {
		Username string `json:"username"`
	} `json:"author"`
	References struct {
		Full string `json:"full"`
	} `json:"references"`
}

// fetchUpdated pages through one resource collection. Pages are requested
// strictly sequentially; the client spaces them by the configured minimum
// interval.
func (g *GitLabAdapter) fetchUpdated(ctx context.Context, resource, kind string, after, before time.Time) ([]models.Activity, error) {
	var activities []models.Activity

	page := 1
	for {
		query := url.Values{}
		query.Set("scope", "all")
		query.Set("updated_after", after.Format(time.RFC3339))
		query.Set("updated_before", before.Format(time.RFC3339))
		query.Set("per_page", "100")
		query.Set("page", strconv.Itoa(page))

		var items []gitlabItem
		next, err := g.client.GetJSONPaged(ctx,
			fmt.Sprintf("%s/api/v4/%s", g.cfg.BaseURL, resource), query, "X-Next-Page", &items)
		if err != nil {
			return nil, err
		}

		for _, item := range items {
			sourceID := item.References.Full
			if sourceID == "" {
				sourceID = strconv.Itoa(item.IID)
			}
			activity := models.NewActivity(models.SourceTypeGitLab,
				models.ActivityID(models.SourceTypeGitLab, kind, sourceID),
				item.UpdatedAt, item.Title).
				WithDetails(item.Description, item.Author.Username, item.WebURL, models.Metadata{
					"kind":  kind,
					"state": item.State,
					"iid":   item.IID,
				})
			activities = append(activities, activity)
		}

		if next == "" || len(items) == 0 {
			break
		}
		page, err = strconv.Atoi(next)
		if err != nil {
			break
		}
	}

	return activities, nil
}
