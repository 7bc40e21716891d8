// Package summarizer turns a daily summary into a short human-readable
// narrative using an LLM provider. It is an optional decoration of the
// aggregation output; the orchestrator never depends on it.
package summarizer

import (
	"context"
	"fmt"
	"strings"

	"log/slog"

	openai "github.com/sashabaranov/go-openai"

	"github.com/worklens/worklens/internal/config"
	"github.com/worklens/worklens/internal/dates"
	"github.com/worklens/worklens/internal/faults"
	"github.com/worklens/worklens/internal/models"
)

// Narrator produces a prose narrative for one day's activity.
type Narrator interface {
	Narrate(ctx context.Context, summary models.DailySummary) (string, error)
}

// OpenAINarrator implements Narrator on the OpenAI chat completion API.
type OpenAINarrator struct {
	client *openai.Client
	cfg    config.SummarizerConfig
	logger *slog.Logger
}

// NewOpenAINarrator constructs the narrator, failing when no API key is set.
func NewOpenAINarrator(cfg config.SummarizerConfig, logger *slog.Logger) (*OpenAINarrator, error) {
	if cfg.APIKey == "" {
		return nil, faults.New(faults.KindConfiguration, "OPENAI_API_KEY not set")
	}
	return &OpenAINarrator{
		client: openai.NewClient(cfg.APIKey),
		cfg:    cfg,
		logger: logger,
	}, nil
}

const systemPrompt = "You summarize a developer's day from structured activity " +
	"records. Write 2-4 factual sentences. Mention counts per source and the " +
	"most significant items. Never invent activity that is not listed."

// Narrate builds a compact prompt from the day's activities and returns the
// model's narrative. Failures surface as retryable provider faults.
func (n *OpenAINarrator) Narrate(ctx context.Context, summary models.DailySummary) (string, error) {
	resp, err := n.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       n.cfg.Model,
		Temperature: n.cfg.Temperature,
		MaxTokens:   n.cfg.MaxTokens,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: buildPrompt(summary)},
		},
	})
	if err != nil {
		return "", faults.Wrap(err, faults.KindProvider, "chat completion failed").
			With("model", n.cfg.Model)
	}
	if len(resp.Choices) == 0 {
		return "", faults.New(faults.KindDataProcessing, "completion returned no choices")
	}

	narrative := strings.TrimSpace(resp.Choices[0].Message.Content)
	n.logger.Debug("narrative generated",
		"date", dates.FormatDay(summary.Date),
		"tokens", resp.Usage.TotalTokens,
	)
	return narrative, nil
}

func buildPrompt(summary models.DailySummary) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Date: %s\nTotal activities: %d\n", dates.FormatDay(summary.Date), summary.Rollup.Total)

	for sourceType, count := range summary.Rollup.ByType {
		fmt.Fprintf(&b, "- %s: %d\n", sourceType, count)
	}

	b.WriteString("Activities:\n")
	for i, activity := range summary.Activities {
		if i >= 40 {
			fmt.Fprintf(&b, "... and %d more\n", len(summary.Activities)-i)
			break
		}
		fmt.Fprintf(&b, "[%s] %s", activity.Type, activity.Title)
		if activity.Author != "" {
			fmt.Fprintf(&b, " (by %s)", activity.Author)
		}
		b.WriteByte('\n')
	}
	return b.String()
}

// MockNarrator returns a deterministic narrative without calling any provider.
type MockNarrator struct{}

// NewMockNarrator constructs the mock.
func NewMockNarrator() *MockNarrator {
	return &MockNarrator{}
}

func (m *MockNarrator) Narrate(ctx context.Context, summary models.DailySummary) (string, error) {
	if summary.IsEmpty() {
		return fmt.Sprintf("No recorded activity on %s.", dates.FormatDay(summary.Date)), nil
	}
	return fmt.Sprintf("%d activities recorded on %s across %d sources.",
		summary.Rollup.Total, dates.FormatDay(summary.Date), len(summary.Rollup.ByType)), nil
}
