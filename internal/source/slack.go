package source

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"log/slog"

	"github.com/worklens/worklens/internal/dates"
	"github.com/worklens/worklens/internal/faults"
	"github.com/worklens/worklens/internal/models"
	"github.com/worklens/worklens/internal/tokens"
)

// SlackAdapter yields channel messages from the Slack Web API. Slack history
// queries are already day-scoped (oldest/latest), so there is nothing to gain
// from a bulk warm-up and the adapter keeps the default no-op preload.
type SlackAdapter struct {
	NopPreloader

	cfg      Config
	channels []string
	client   *Client
	logger   *slog.Logger
}

// NewSlack constructs the adapter for the given channel IDs.
func NewSlack(cfg Config, channels []string, logger *slog.Logger) *SlackAdapter {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://slack.com/api"
	}
	return &SlackAdapter{
		cfg:      cfg,
		channels: channels,
		client:   NewClient(tokens.NewStatic(cfg.Token), cfg.MinRequestInterval, logger),
		logger:   logger,
	}
}

func (s *SlackAdapter) Name() string                  { return "slack" }
func (s *SlackAdapter) SourceType() models.SourceType { return models.SourceTypeSlack }

func (s *SlackAdapter) IsConfigured() bool {
	return s.cfg.Enabled && s.cfg.Token != "" && len(s.channels) > 0
}

type slackHistory struct {
	OK       bool   `json:"ok"`
	Error    string `json:"error"`
	Messages []struct {
		TS   string `json:"ts"`
		Text string `json:"text"`
		User string `json:"user"`
	} `json:"messages"`
	ResponseMetadata struct {
		NextCursor string `json:"next_cursor"`
	} `json:"response_metadata"`
}

// FetchForDate collects every message posted to the configured channels within
// the calendar day. Channels are visited sequentially and pagination within a
// channel is cursor-driven, one page at a time.
func (s *SlackAdapter) FetchForDate(ctx context.Context, date time.Time) ([]models.Activity, error) {
	oldest := dates.StartOfDay(date)
	latest := dates.EndOfDay(date)

	var activities []models.Activity
	for _, channel := range s.channels {
		messages, err := s.fetchChannel(ctx, channel, oldest, latest)
		if err != nil {
			return nil, err
		}
		activities = append(activities, messages...)
	}
	return activities, nil
}

func (s *SlackAdapter) fetchChannel(ctx context.Context, channel string, oldest, latest time.Time) ([]models.Activity, error) {
	var activities []models.Activity

	cursor := ""
	for {
		query := url.Values{}
		query.Set("channel", channel)
		query.Set("oldest", fmt.Sprintf("%d.000000", oldest.Unix()))
		query.Set("latest", fmt.Sprintf("%d.999999", latest.Unix()))
		query.Set("inclusive", "true")
		query.Set("limit", "200")
		if cursor != "" {
			query.Set("cursor", cursor)
		}

		var history slackHistory
		if err := s.client.GetJSON(ctx, s.cfg.BaseURL+"/conversations.history", query, &history); err != nil {
			return nil, err
		}
		if !history.OK {
			return nil, slackError(history.Error, channel)
		}

		for _, message := range history.Messages {
			ts := parseSlackTS(message.TS)
			activity := models.NewActivity(models.SourceTypeSlack,
				models.ActivityID(models.SourceTypeSlack, "message", channel+"-"+message.TS),
				ts, firstLine(message.Text)).
				WithDetails(message.Text, message.User, "", models.Metadata{
					"kind":    "message",
					"channel": channel,
				})
			activities = append(activities, activity)
		}

		cursor = history.ResponseMetadata.NextCursor
		if cursor == "" {
			break
		}
	}

	return activities, nil
}

// slackError maps Slack's in-body error codes onto the fault taxonomy. Slack
// reports most failures with HTTP 200 and an error string.
func slackError(code, channel string) error {
	f := func() *faults.Fault {
		switch code {
		case "invalid_auth", "token_revoked", "token_expired", "not_authed":
			return faults.Newf(faults.KindAuth, "slack rejected the token: %s", code)
		case "ratelimited":
			return faults.Newf(faults.KindRateLimit, "slack rate limit: %s", code)
		case "channel_not_found", "not_in_channel":
			return faults.Newf(faults.KindValidation, "slack channel unavailable: %s", code)
		default:
			return faults.Newf(faults.KindProvider, "slack api error: %s", code)
		}
	}()
	return f.With("channel", channel)
}

// parseSlackTS converts Slack's "seconds.fraction" message timestamp.
func parseSlackTS(ts string) time.Time {
	parts := strings.SplitN(ts, ".", 2)
	seconds, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil {
		return time.Time{}
	}
	var nanos int64
	if len(parts) == 2 {
		if frac, err := strconv.ParseInt(parts[1], 10, 64); err == nil {
			// Slack fractions are microseconds.
			nanos = frac * int64(time.Microsecond)
		}
	}
	return time.Unix(seconds, nanos).In(dates.ReferenceLocation)
}

func firstLine(text string) string {
	if idx := strings.IndexByte(text, '\n'); idx >= 0 {
		text = text[:idx]
	}
	if len(text) > 120 {
		text = text[:120]
	}
	return strings.TrimSpace(text)
}
