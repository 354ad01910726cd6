package worker

import (
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"vaxslot-notifier/internal/pkg/config"
)

// WorkerConfig holds the operational settings of the poll worker.
//
// Configuration sources:
//   - Environment variables (loaded via LoadConfigFromEnv)
//   - Default values (provided by DefaultConfig)
//
// Every field has a default and a validation rule, so the worker always
// starts with a usable configuration even when the environment is wrong.
type WorkerConfig struct {
	// CronSchedule is the cron expression for poll cycles.
	// Default: "*/2 * * * *" (every two minutes)
	CronSchedule string

	// Timezone is the IANA timezone used by the scheduler and for the
	// date sent to the availability API.
	// Default: "Asia/Kolkata"
	Timezone string

	// PollTimeout bounds the wall-clock time of one cycle.
	// Range: 10s-30m
	// Default: 90 seconds
	PollTimeout time.Duration

	// RegionParallelism is the number of regions fetched at once.
	// Range: 1-32
	RegionParallelism int

	// ItemParallelism is the number of sessions processed at once per region.
	// Range: 1-64
	ItemParallelism int

	// NotifyMaxConcurrent is the size of the notification worker pool.
	// Range: 1-100
	NotifyMaxConcurrent int

	// Port is the port of the ops HTTP server (liveness, readiness, metrics).
	// Range: 1-65535
	// Default: 5000
	Port int

	// Production enables production-only behavior such as the keepalive ping.
	// Set when APP_ENV=production.
	Production bool

	// KeepaliveURL is pinged on KeepaliveSchedule in production so that
	// hosting platforms which idle inactive apps keep the worker running.
	KeepaliveURL      string
	KeepaliveSchedule string
}

// DefaultConfig returns a WorkerConfig with the default values.
func DefaultConfig() WorkerConfig {
	return WorkerConfig{
		CronSchedule:        "*/2 * * * *",
		Timezone:            "Asia/Kolkata",
		PollTimeout:         90 * time.Second,
		RegionParallelism:   4,
		ItemParallelism:     8,
		NotifyMaxConcurrent: 10,
		Port:                5000,
		KeepaliveSchedule:   "*/5 * * * *",
	}
}

// Location returns the configured timezone, or UTC if it cannot be loaded.
func (c *WorkerConfig) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// KeepaliveEnabled reports whether the keepalive job should be scheduled.
func (c *WorkerConfig) KeepaliveEnabled() bool {
	return c.Production && c.KeepaliveURL != ""
}

// Addr returns the listen address of the ops HTTP server.
func (c *WorkerConfig) Addr() string {
	return fmt.Sprintf(":%d", c.Port)
}

// Validate checks every field and returns all failures together.
func (c *WorkerConfig) Validate() error {
	var errs []error

	if err := config.ValidateCronSchedule(c.CronSchedule); err != nil {
		errs = append(errs, fmt.Errorf("cron schedule: %w", err))
	}
	if err := config.ValidateTimezone(c.Timezone); err != nil {
		errs = append(errs, fmt.Errorf("timezone: %w", err))
	}
	if err := config.ValidateDuration(c.PollTimeout, 10*time.Second, 30*time.Minute); err != nil {
		errs = append(errs, fmt.Errorf("poll timeout: %w", err))
	}
	if err := config.ValidateIntRange(c.RegionParallelism, 1, 32); err != nil {
		errs = append(errs, fmt.Errorf("region parallelism: %w", err))
	}
	if err := config.ValidateIntRange(c.ItemParallelism, 1, 64); err != nil {
		errs = append(errs, fmt.Errorf("item parallelism: %w", err))
	}
	if err := config.ValidateIntRange(c.NotifyMaxConcurrent, 1, 100); err != nil {
		errs = append(errs, fmt.Errorf("notify max concurrent: %w", err))
	}
	if err := config.ValidateIntRange(c.Port, 1, 65535); err != nil {
		errs = append(errs, fmt.Errorf("port: %w", err))
	}
	if err := config.ValidateCronSchedule(c.KeepaliveSchedule); err != nil {
		errs = append(errs, fmt.Errorf("keepalive schedule: %w", err))
	}
	if c.KeepaliveURL != "" {
		if err := validateKeepaliveURL(c.KeepaliveURL); err != nil {
			errs = append(errs, fmt.Errorf("keepalive url: %w", err))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("validation failed: %v", errs)
	}
	return nil
}

func validateKeepaliveURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return err
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("scheme must be http or https, got %q", u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("host is required")
	}
	return nil
}

// LoadConfigFromEnv loads the worker configuration from environment
// variables. It is fail-open: an invalid value is replaced by its default,
// logged and counted in metrics. The returned error is always nil.
//
// Environment variables:
//   - CRON_SCHEDULE (default "*/2 * * * *")
//   - WORKER_TIMEZONE (default "Asia/Kolkata")
//   - POLL_TIMEOUT (default 90s, 10s-30m)
//   - POLL_REGION_PARALLELISM (default 4, 1-32)
//   - POLL_ITEM_PARALLELISM (default 8, 1-64)
//   - NOTIFY_MAX_CONCURRENT (default 10, 1-100)
//   - PORT (default 5000)
//   - APP_ENV ("production" enables the keepalive job)
//   - KEEPALIVE_URL, KEEPALIVE_SCHEDULE (default "*/5 * * * *")
func LoadConfigFromEnv(logger *slog.Logger, metrics *WorkerMetrics) (*WorkerConfig, error) {
	cfg := DefaultConfig()
	l := &envLoader{logger: logger, metrics: metrics}

	cfg.CronSchedule = loadField(l, "cron_schedule",
		config.LoadEnvWithFallback("CRON_SCHEDULE", cfg.CronSchedule, config.ValidateCronSchedule))

	cfg.Timezone = loadField(l, "timezone",
		config.LoadEnvWithFallback("WORKER_TIMEZONE", cfg.Timezone, config.ValidateTimezone))

	cfg.PollTimeout = loadField(l, "poll_timeout",
		config.LoadEnvDuration("POLL_TIMEOUT", cfg.PollTimeout, func(d time.Duration) error {
			return config.ValidateDuration(d, 10*time.Second, 30*time.Minute)
		}))

	cfg.RegionParallelism = loadField(l, "region_parallelism",
		config.LoadEnvInt("POLL_REGION_PARALLELISM", cfg.RegionParallelism, intRange(1, 32)))

	cfg.ItemParallelism = loadField(l, "item_parallelism",
		config.LoadEnvInt("POLL_ITEM_PARALLELISM", cfg.ItemParallelism, intRange(1, 64)))

	cfg.NotifyMaxConcurrent = loadField(l, "notify_max_concurrent",
		config.LoadEnvInt("NOTIFY_MAX_CONCURRENT", cfg.NotifyMaxConcurrent, intRange(1, 100)))

	cfg.Port = loadField(l, "port",
		config.LoadEnvInt("PORT", cfg.Port, intRange(1, 65535)))

	cfg.Production = config.LoadEnvString("APP_ENV", "") == "production"

	cfg.KeepaliveURL = loadField(l, "keepalive_url",
		config.LoadEnvWithFallback("KEEPALIVE_URL", "", func(v string) error {
			if v == "" {
				return nil
			}
			return validateKeepaliveURL(v)
		}))

	cfg.KeepaliveSchedule = loadField(l, "keepalive_schedule",
		config.LoadEnvWithFallback("KEEPALIVE_SCHEDULE", cfg.KeepaliveSchedule, config.ValidateCronSchedule))

	metrics.RecordLoad(l.fallbackApplied)

	return &cfg, nil
}

// envLoader records fallbacks while LoadConfigFromEnv walks the fields.
type envLoader struct {
	logger          *slog.Logger
	metrics         *WorkerMetrics
	fallbackApplied bool
}

func loadField[T any](l *envLoader, field string, result config.Result[T]) T {
	if result.FallbackApplied() {
		l.fallbackApplied = true
		l.metrics.RecordFallback(field)
		l.logger.Warn("Configuration fallback applied",
			slog.String("field", field),
			slog.String("warning", result.Fallback.String()))
	}
	return result.Value
}

func intRange(min, max int) func(int) error {
	return func(v int) error {
		return config.ValidateIntRange(v, min, max)
	}
}
