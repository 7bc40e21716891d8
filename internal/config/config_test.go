package config

import (
	"log/slog"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Server.Port != "8080" {
		t.Errorf("Port = %s, want 8080", cfg.Server.Port)
	}
	if cfg.Logging.Level != slog.LevelInfo {
		t.Errorf("Level = %v, want info", cfg.Logging.Level)
	}
	if cfg.Logging.Format != "json" {
		t.Errorf("Format = %s, want json", cfg.Logging.Format)
	}
	if cfg.GitLab.Enabled {
		t.Error("adapters must default to disabled")
	}
	if cfg.GitLab.Retry.MaxAttempts != 3 {
		t.Errorf("GitLab MaxAttempts = %d, want the standard preset's 3", cfg.GitLab.Retry.MaxAttempts)
	}
	if cfg.Slack.Retry.MaxAttempts != 5 {
		t.Errorf("Slack MaxAttempts = %d, want the conservative preset's 5", cfg.Slack.Retry.MaxAttempts)
	}
	if cfg.GitLab.MinRequestInterval != 200*time.Millisecond {
		t.Errorf("MinRequestInterval = %v, want 200ms", cfg.GitLab.MinRequestInterval)
	}
	if cfg.GitLab.Breaker.FailureThreshold != 5 {
		t.Errorf("FailureThreshold = %d, want 5", cfg.GitLab.Breaker.FailureThreshold)
	}
	if cfg.Scheduler.Enabled {
		t.Error("scheduler must default to disabled")
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("SERVER_PORT", "9090")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("LOG_FORMAT", "text")
	t.Setenv("GITLAB_ENABLED", "true")
	t.Setenv("GITLAB_BASE_URL", "https://gitlab.example.com/")
	t.Setenv("GITLAB_TOKEN", "glpat-abc")
	t.Setenv("GITLAB_MAX_ATTEMPTS", "7")
	t.Setenv("GITLAB_BASE_DELAY_MS", "250")
	t.Setenv("GITLAB_TIMEOUT_SECONDS", "20")
	t.Setenv("GITLAB_FAILURE_THRESHOLD", "2")
	t.Setenv("SLACK_CHANNELS", "C1, C2 ,C3")
	t.Setenv("CALENDAR_ID", "team@example.com")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Server.Port != "9090" {
		t.Errorf("Port = %s", cfg.Server.Port)
	}
	if cfg.Logging.Level != slog.LevelDebug {
		t.Errorf("Level = %v", cfg.Logging.Level)
	}
	if !cfg.GitLab.Enabled {
		t.Error("GITLAB_ENABLED not applied")
	}
	if cfg.GitLab.BaseURL != "https://gitlab.example.com" {
		t.Errorf("BaseURL = %s, want trailing slash trimmed", cfg.GitLab.BaseURL)
	}
	if cfg.GitLab.Retry.MaxAttempts != 7 {
		t.Errorf("MaxAttempts = %d", cfg.GitLab.Retry.MaxAttempts)
	}
	if cfg.GitLab.Retry.BaseDelay != 250*time.Millisecond {
		t.Errorf("BaseDelay = %v", cfg.GitLab.Retry.BaseDelay)
	}
	if cfg.GitLab.Retry.Timeout != 20*time.Second {
		t.Errorf("Timeout = %v", cfg.GitLab.Retry.Timeout)
	}
	if cfg.GitLab.Breaker.FailureThreshold != 2 {
		t.Errorf("FailureThreshold = %d", cfg.GitLab.Breaker.FailureThreshold)
	}

	want := []string{"C1", "C2", "C3"}
	if len(cfg.Slack.Channels) != len(want) {
		t.Fatalf("Channels = %v", cfg.Slack.Channels)
	}
	for i, c := range want {
		if cfg.Slack.Channels[i] != c {
			t.Errorf("Channels[%d] = %s, want %s", i, cfg.Slack.Channels[i], c)
		}
	}
	if cfg.Calendar.CalendarID != "team@example.com" {
		t.Errorf("CalendarID = %s", cfg.Calendar.CalendarID)
	}
}

func TestLoadInvalidValues(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value string
	}{
		{"bad log level", "LOG_LEVEL", "verbose"},
		{"bad log format", "LOG_FORMAT", "xml"},
		{"negative timeout", "SERVER_READ_TIMEOUT_SECONDS", "-1"},
		{"non-numeric attempts", "GITLAB_MAX_ATTEMPTS", "many"},
		{"zero attempts", "GITLAB_MAX_ATTEMPTS", "0"},
		{"multiplier below one", "GITLAB_BACKOFF_MULTIPLIER", "0.5"},
		{"bad schedule", "SCHEDULE_TIME_OF_DAY", "25:99"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.key, tt.value)
			if _, err := Load(); err == nil {
				t.Errorf("Load() succeeded with %s=%s", tt.key, tt.value)
			}
		})
	}
}

func TestLoadScheduler(t *testing.T) {
	t.Setenv("SCHEDULE_TIME_OF_DAY", "06:30")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !cfg.Scheduler.Enabled {
		t.Error("scheduler should be enabled when a time is set")
	}
	if cfg.Scheduler.TimeOfDay != "06:30" {
		t.Errorf("TimeOfDay = %s", cfg.Scheduler.TimeOfDay)
	}
}
