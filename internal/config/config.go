package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/worklens/worklens/internal/resilience"
)

// Config represents runtime configuration derived from environment variables.
type Config struct {
	Server     ServerConfig
	Logging    LoggingConfig
	Database   DatabaseConfig
	Auth       AuthConfig
	Scheduler  SchedulerConfig
	Summarizer SummarizerConfig

	GitLab   AdapterConfig
	Slack    AdapterConfig
	Calendar AdapterConfig
}

// ServerConfig holds HTTP server runtime parameters.
type ServerConfig struct {
	Port            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
}

// LoggingConfig represents structured logging configuration.
type LoggingConfig struct {
	Level  slog.Level
	Format string
}

// DatabaseConfig holds the Postgres connection settings. URL may be empty, in
// which case runs are not persisted.
type DatabaseConfig struct {
	URL                string
	MaxConnections     int
	MaxIdleConnections int
	ConnMaxLifetime    time.Duration
	ConnectTimeout     time.Duration
}

// AuthConfig holds API authentication settings.
type AuthConfig struct {
	JWTSecret     string
	AdminPassword string
	TokenDuration time.Duration
}

// SchedulerConfig controls the optional daily run trigger.
type SchedulerConfig struct {
	Enabled   bool
	TimeOfDay string // "HH:MM" in the reference timezone
}

// SummarizerConfig controls the optional LLM narrative generator.
type SummarizerConfig struct {
	APIKey      string
	Model       string
	Temperature float32
	MaxTokens   int
}

// AdapterConfig supplies, per adapter, the enabled flag, credentials, and the
// numeric knobs for its retry policy and circuit breaker.
type AdapterConfig struct {
	Enabled            bool
	BaseURL            string
	Token              string
	Channels           []string // slack only
	CalendarID         string   // calendar only
	MinRequestInterval time.Duration

	Retry   resilience.RetryPolicy
	Breaker resilience.CircuitBreakerConfig
}

const (
	defaultPort            = "8080"
	defaultReadTimeout     = 10 * time.Second
	defaultWriteTimeout    = 30 * time.Second
	defaultShutdownTimeout = 5 * time.Second

	defaultLogFormat = "json"

	defaultMinRequestInterval = 200 * time.Millisecond
)

// Load reads configuration from environment variables, applying defaults when
// values are not provided and failing on values that are present but invalid.
func Load() (Config, error) {
	cfg := Config{
		Server: ServerConfig{
			Port:            getEnv("SERVER_PORT", defaultPort),
			ReadTimeout:     defaultReadTimeout,
			WriteTimeout:    defaultWriteTimeout,
			ShutdownTimeout: defaultShutdownTimeout,
		},
		Logging: LoggingConfig{
			Level:  slog.LevelInfo,
			Format: defaultLogFormat,
		},
		Database: DatabaseConfig{
			URL:                os.Getenv("DATABASE_URL"),
			MaxConnections:     25,
			MaxIdleConnections: 5,
			ConnMaxLifetime:    5 * time.Minute,
			ConnectTimeout:     10 * time.Second,
		},
		Auth: AuthConfig{
			JWTSecret:     getEnv("API_JWT_SECRET", "change-this-secret"),
			AdminPassword: getEnv("ADMIN_PASSWORD", "admin"),
			TokenDuration: 24 * time.Hour,
		},
		Scheduler: SchedulerConfig{
			Enabled:   os.Getenv("SCHEDULE_TIME_OF_DAY") != "",
			TimeOfDay: os.Getenv("SCHEDULE_TIME_OF_DAY"),
		},
		Summarizer: SummarizerConfig{
			APIKey:      os.Getenv("OPENAI_API_KEY"),
			Model:       getEnv("OPENAI_MODEL", "gpt-4o-mini"),
			Temperature: 0.3,
			MaxTokens:   800,
		},
	}

	if v := os.Getenv("SERVER_READ_TIMEOUT_SECONDS"); v != "" {
		d, err := parseSeconds(v)
		if err != nil {
			return Config{}, fmt.Errorf("invalid SERVER_READ_TIMEOUT_SECONDS: %w", err)
		}
		cfg.Server.ReadTimeout = d
	}

	if v := os.Getenv("SERVER_WRITE_TIMEOUT_SECONDS"); v != "" {
		d, err := parseSeconds(v)
		if err != nil {
			return Config{}, fmt.Errorf("invalid SERVER_WRITE_TIMEOUT_SECONDS: %w", err)
		}
		cfg.Server.WriteTimeout = d
	}

	if v := os.Getenv("LOG_LEVEL"); v != "" {
		level, err := parseLogLevel(v)
		if err != nil {
			return Config{}, fmt.Errorf("invalid LOG_LEVEL: %w", err)
		}
		cfg.Logging.Level = level
	}

	if v := os.Getenv("LOG_FORMAT"); v != "" {
		switch v {
		case "json", "text":
			cfg.Logging.Format = v
		default:
			return Config{}, fmt.Errorf("invalid LOG_FORMAT: must be 'json' or 'text'")
		}
	}

	if cfg.Scheduler.Enabled {
		if _, err := time.Parse("15:04", cfg.Scheduler.TimeOfDay); err != nil {
			return Config{}, fmt.Errorf("invalid SCHEDULE_TIME_OF_DAY: expected HH:MM")
		}
	}

	var err error
	if cfg.GitLab, err = loadAdapter("GITLAB", resilience.StandardPolicy()); err != nil {
		return Config{}, err
	}
	if cfg.Slack, err = loadAdapter("SLACK", resilience.ConservativePolicy()); err != nil {
		return Config{}, err
	}
	if cfg.Calendar, err = loadAdapter("CALENDAR", resilience.StandardPolicy()); err != nil {
		return Config{}, err
	}

	cfg.Slack.Channels = splitList(os.Getenv("SLACK_CHANNELS"))
	cfg.Calendar.CalendarID = os.Getenv("CALENDAR_ID")

	return cfg, nil
}

// loadAdapter reads one adapter's knobs under the given env prefix, starting
// from the named preset for anything not overridden.
func loadAdapter(prefix string, preset resilience.RetryPolicy) (AdapterConfig, error) {
	cfg := AdapterConfig{
		Enabled:            os.Getenv(prefix+"_ENABLED") == "true",
		BaseURL:            strings.TrimSuffix(os.Getenv(prefix+"_BASE_URL"), "/"),
		Token:              os.Getenv(prefix + "_TOKEN"),
		MinRequestInterval: defaultMinRequestInterval,
		Retry:              preset,
		Breaker:            resilience.DefaultBreakerConfig(),
	}

	if v := os.Getenv(prefix + "_MIN_REQUEST_INTERVAL_MS"); v != "" {
		d, err := parseMillis(v)
		if err != nil {
			return AdapterConfig{}, fmt.Errorf("invalid %s_MIN_REQUEST_INTERVAL_MS: %w", prefix, err)
		}
		cfg.MinRequestInterval = d
	}

	if v := os.Getenv(prefix + "_MAX_ATTEMPTS"); v != "" {
		n, err := parsePositiveInt(v)
		if err != nil {
			return AdapterConfig{}, fmt.Errorf("invalid %s_MAX_ATTEMPTS: %w", prefix, err)
		}
		cfg.Retry.MaxAttempts = n
	}

	if v := os.Getenv(prefix + "_BASE_DELAY_MS"); v != "" {
		d, err := parseMillis(v)
		if err != nil {
			return AdapterConfig{}, fmt.Errorf("invalid %s_BASE_DELAY_MS: %w", prefix, err)
		}
		cfg.Retry.BaseDelay = d
	}

	if v := os.Getenv(prefix + "_MAX_DELAY_MS"); v != "" {
		d, err := parseMillis(v)
		if err != nil {
			return AdapterConfig{}, fmt.Errorf("invalid %s_MAX_DELAY_MS: %w", prefix, err)
		}
		cfg.Retry.MaxDelay = d
	}

	if v := os.Getenv(prefix + "_BACKOFF_MULTIPLIER"); v != "" {
		m, err := strconv.ParseFloat(v, 64)
		if err != nil || m < 1 {
			return AdapterConfig{}, fmt.Errorf("invalid %s_BACKOFF_MULTIPLIER: must be a number >= 1", prefix)
		}
		cfg.Retry.BackoffMultiplier = m
	}

	if v := os.Getenv(prefix + "_TIMEOUT_SECONDS"); v != "" {
		d, err := parseSeconds(v)
		if err != nil {
			return AdapterConfig{}, fmt.Errorf("invalid %s_TIMEOUT_SECONDS: %w", prefix, err)
		}
		cfg.Retry.Timeout = d
	}

	if v := os.Getenv(prefix + "_FAILURE_THRESHOLD"); v != "" {
		n, err := parsePositiveInt(v)
		if err != nil {
			return AdapterConfig{}, fmt.Errorf("invalid %s_FAILURE_THRESHOLD: %w", prefix, err)
		}
		cfg.Breaker.FailureThreshold = n
	}

	if v := os.Getenv(prefix + "_RECOVERY_TIMEOUT_SECONDS"); v != "" {
		d, err := parseSeconds(v)
		if err != nil {
			return AdapterConfig{}, fmt.Errorf("invalid %s_RECOVERY_TIMEOUT_SECONDS: %w", prefix, err)
		}
		cfg.Breaker.RecoveryTimeout = d
	}

	return cfg, nil
}

func parseSeconds(raw string) (time.Duration, error) {
	seconds, err := strconv.Atoi(raw)
	if err != nil || seconds < 0 {
		return 0, fmt.Errorf("must be a non-negative integer")
	}
	return time.Duration(seconds) * time.Second, nil
}

func parseMillis(raw string) (time.Duration, error) {
	millis, err := strconv.Atoi(raw)
	if err != nil || millis < 0 {
		return 0, fmt.Errorf("must be a non-negative integer")
	}
	return time.Duration(millis) * time.Millisecond, nil
}

func parsePositiveInt(raw string) (int, error) {
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		return 0, fmt.Errorf("must be a positive integer")
	}
	return n, nil
}

func splitList(raw string) []string {
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func parseLogLevel(raw string) (slog.Level, error) {
	switch raw {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return 0, fmt.Errorf("must be one of debug, info, warn, error")
	}
}
