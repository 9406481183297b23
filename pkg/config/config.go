package config

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"

	"github.com/ccollicutt/restplot/pkg/series"
)

// Time range layouts accepted for time_range.from and time_range.to.
// Values without a zone are read as UTC.
var timeRangeLayouts = []string{
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
}

// Load reads and validates a configuration file.
func Load(ctx context.Context, path string) (*Config, error) {
	cfg, err := Parse(ctx, path)
	if err != nil {
		return nil, err
	}

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// Parse reads a configuration file over the defaults and applies
// environment overrides without validating. Callers that layer flags on
// top must call Validate themselves.
func Parse(_ context.Context, path string) (*Config, error) {
	data, err := os.ReadFile(path) // #nosec G304 -- user-provided config path is expected
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	cfg.ApplyEnvironmentOverrides()
	return cfg, nil
}

// Validate checks a configuration for errors, fills defaults for optional
// fields, and compiles the record filter.
func Validate(cfg *Config) error {
	if len(cfg.LogSources) == 0 {
		return errors.New("log_sources: at least one log source is required")
	}

	if err := validatePositions(cfg); err != nil {
		return fmt.Errorf("positions: %w", err)
	}

	if cfg.Window < 1 {
		return fmt.Errorf("window: must be >= 1, got %d", cfg.Window)
	}

	pred, err := series.CompilePredicate(cfg.RecordFilter)
	if err != nil {
		return fmt.Errorf("record_filter: %w", err)
	}
	cfg.predicate = pred

	if err := validateTimeRange(&cfg.TimeRange); err != nil {
		return fmt.Errorf("time_range: %w", err)
	}

	if err := validateChart(&cfg.Chart); err != nil {
		return fmt.Errorf("chart: %w", err)
	}

	if cfg.SlowThreshold < 0 {
		return fmt.Errorf("slow_threshold: must not be negative, got %s", cfg.SlowThreshold)
	}

	if err := validateLogging(&cfg.Logging); err != nil {
		return fmt.Errorf("logging: %w", err)
	}

	if err := validateMetrics(&cfg.Metrics); err != nil {
		return fmt.Errorf("metrics: %w", err)
	}

	// Webhooks are optional, but validate if present
	for i := range cfg.Webhooks {
		if err := validateWebhook(&cfg.Webhooks[i]); err != nil {
			name := cfg.Webhooks[i].Name
			if name == "" {
				name = cfg.Webhooks[i].URL
			}
			return fmt.Errorf("webhooks[%d] (%s): %w", i, name, err)
		}
	}

	return nil
}

// Predicate returns the compiled record filter. It is nil until Validate
// succeeds, and a nil predicate keeps every record.
func (c *Config) Predicate() *series.Predicate {
	return c.predicate
}

func validatePositions(cfg *Config) error {
	p := cfg.Positions
	switch {
	case p.Date < 0:
		return fmt.Errorf("date must be >= 0, got %d", p.Date)
	case p.Time < 0:
		return fmt.Errorf("time must be >= 0, got %d", p.Time)
	case p.Duration < 0:
		return fmt.Errorf("duration must be >= 0, got %d", p.Duration)
	}
	return nil
}

func validateTimeRange(tr *TimeRangeConfig) error {
	var err error
	if tr.from, err = parseRangeTime(tr.From); err != nil {
		return fmt.Errorf("from: %w", err)
	}
	if tr.to, err = parseRangeTime(tr.To); err != nil {
		return fmt.Errorf("to: %w", err)
	}
	if !tr.from.IsZero() && !tr.to.IsZero() && tr.to.Before(tr.from) {
		return fmt.Errorf("to (%s) is before from (%s)", tr.To, tr.From)
	}
	return nil
}

// ParseRangeTime parses a time range bound. An empty string is unbounded.
func ParseRangeTime(s string) (time.Time, error) {
	return parseRangeTime(s)
}

func parseRangeTime(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, nil
	}
	for _, layout := range timeRangeLayouts {
		if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("cannot parse %q (use RFC3339 or \"2006-01-02 15:04:05\")", s)
}

func validateChart(c *ChartConfig) error {
	if c.Dir == "" {
		c.Dir = DefaultChartDir
	}
	if c.Width <= 0 {
		return fmt.Errorf("width must be > 0, got %d", c.Width)
	}
	if c.Height <= 0 {
		return fmt.Errorf("height must be > 0, got %d", c.Height)
	}
	return nil
}

func validateLogging(l *LoggingConfig) error {
	if l.Level == "" {
		l.Level = DefaultLogLevel
	}
	if _, err := zapcore.ParseLevel(l.Level); err != nil {
		return fmt.Errorf("level: %w", err)
	}
	if l.MaxSize < 0 || l.MaxBackups < 0 || l.MaxAge < 0 {
		return errors.New("max_size, max_backups and max_age must not be negative")
	}
	return nil
}

func validateMetrics(m *MetricsConfig) error {
	if m.Pushgateway != "" {
		if err := validateHTTPURL(m.Pushgateway); err != nil {
			return fmt.Errorf("pushgateway: %w", err)
		}
	}
	if m.Job == "" {
		m.Job = DefaultMetricsJob
	}
	return nil
}

func validateWebhook(wh *WebhookConfig) error {
	if wh.URL == "" {
		return errors.New("url is required")
	}

	if err := validateHTTPURL(wh.URL); err != nil {
		return err
	}

	// Expand environment variables in token
	wh.Token = expandEnvVar(wh.Token)

	if wh.Trigger != "" {
		switch wh.Trigger {
		case WebhookTriggerOnSlow, WebhookTriggerAlways, WebhookTriggerNever:
		default:
			return fmt.Errorf("invalid trigger %q (must be on_slow, always, or never)", wh.Trigger)
		}
	} else {
		wh.Trigger = WebhookTriggerOnSlow
	}

	if wh.Timeout <= 0 {
		wh.Timeout = DefaultWebhookTimeout
	}

	return nil
}

func validateHTTPURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("invalid url: %w", err)
	}

	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("url scheme must be http or https, got %q", u.Scheme)
	}

	if u.Host == "" {
		return errors.New("url must have a host")
	}
	return nil
}

// expandEnvVar expands environment variables in the format ${VAR} or $VAR.
func expandEnvVar(s string) string {
	if s == "" {
		return s
	}

	if strings.HasPrefix(s, "${") && strings.HasSuffix(s, "}") {
		return os.Getenv(s[2 : len(s)-1])
	}

	if strings.HasPrefix(s, "$") && !strings.HasPrefix(s, "${") {
		return os.Getenv(s[1:])
	}

	return s
}
