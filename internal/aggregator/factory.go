package aggregator

import (
	"log/slog"

	"github.com/worklens/worklens/internal/config"
	"github.com/worklens/worklens/internal/logging"
	"github.com/worklens/worklens/internal/resilience"
	"github.com/worklens/worklens/internal/source"
)

// FromConfig wires the built-in adapters and their resilience knobs from
// runtime configuration. Disabled adapters are still registered; the
// orchestrator skips them through IsConfigured.
func FromConfig(cfg config.Config, executor *resilience.Executor, logger *slog.Logger, metrics Metrics) *Aggregator {
	gitlab := source.NewGitLab(adapterConfig(cfg.GitLab), logging.ForComponent(logger, "gitlab"))
	slack := source.NewSlack(adapterConfig(cfg.Slack), cfg.Slack.Channels, logging.ForComponent(logger, "slack"))
	calendar := source.NewCalendar(adapterConfig(cfg.Calendar), cfg.Calendar.CalendarID, logging.ForComponent(logger, "calendar"))

	return New(executor, logger, metrics,
		Registration{Adapter: gitlab, Retry: cfg.GitLab.Retry, Breaker: cfg.GitLab.Breaker},
		Registration{Adapter: slack, Retry: cfg.Slack.Retry, Breaker: cfg.Slack.Breaker},
		Registration{Adapter: calendar, Retry: cfg.Calendar.Retry, Breaker: cfg.Calendar.Breaker},
	)
}

func adapterConfig(cfg config.AdapterConfig) source.Config {
	return source.Config{
		Enabled:            cfg.Enabled,
		BaseURL:            cfg.BaseURL,
		Token:              cfg.Token,
		MinRequestInterval: cfg.MinRequestInterval,
		Retry:              cfg.Retry,
		Breaker:            cfg.Breaker,
	}
}
