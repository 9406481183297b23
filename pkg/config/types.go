// Package config provides loading and validation of restplot profiles.
package config

import (
	"time"

	"github.com/ccollicutt/restplot/pkg/parser"
	"github.com/ccollicutt/restplot/pkg/series"
)

// Config is the root profile structure loaded from YAML.
type Config struct {
	LogSources []string `yaml:"log_sources"`

	// Filters are substrings every considered line must contain.
	Filters []string `yaml:"filters,omitempty"`

	// Label names the series in charts and reports.
	// Defaults to the last filter term.
	Label string `yaml:"label,omitempty"`

	Positions parser.Positions `yaml:"positions"`

	// Window is the number of records spanned per plotted point.
	Window int `yaml:"window"`

	// RecordFilter is an optional boolean expression over extracted records.
	RecordFilter string `yaml:"record_filter,omitempty"`

	TimeRange TimeRangeConfig `yaml:"time_range,omitempty"`

	Chart ChartConfig `yaml:"chart"`

	// SlowThreshold marks a series as slow when any point reaches it.
	SlowThreshold time.Duration `yaml:"slow_threshold,omitempty"`

	Logging  LoggingConfig   `yaml:"logging"`
	Metrics  MetricsConfig   `yaml:"metrics,omitempty"`
	Webhooks []WebhookConfig `yaml:"webhooks,omitempty"`

	predicate *series.Predicate
}

// SeriesLabel returns the configured label, falling back to the last filter.
func (c *Config) SeriesLabel() string {
	if c.Label != "" {
		return c.Label
	}
	if len(c.Filters) > 0 && c.Filters[len(c.Filters)-1] != "" {
		return c.Filters[len(c.Filters)-1]
	}
	return DefaultLabel
}

// TimeRangeConfig limits records to [From, To]. Either end may be empty.
type TimeRangeConfig struct {
	From string `yaml:"from,omitempty"`
	To   string `yaml:"to,omitempty"`

	from, to time.Time
}

// Bounds returns the parsed range ends. Zero values mean unbounded.
func (t *TimeRangeConfig) Bounds() (time.Time, time.Time) {
	return t.from, t.to
}

// IsSet reports whether either end of the range was given.
func (t *TimeRangeConfig) IsSet() bool {
	return t.From != "" || t.To != ""
}

// ChartConfig controls PNG rendering.
type ChartConfig struct {
	Dir    string `yaml:"dir"`
	Width  int    `yaml:"width"`
	Height int    `yaml:"height"`
}

// LoggingConfig controls diagnostic logging.
type LoggingConfig struct {
	Level string `yaml:"level"`

	// Path, when set, writes logs to a rotating file instead of stderr.
	Path       string `yaml:"path,omitempty"`
	MaxSize    int    `yaml:"max_size,omitempty"` // megabytes
	MaxBackups int    `yaml:"max_backups,omitempty"`
	MaxAge     int    `yaml:"max_age,omitempty"` // days
	Compress   bool   `yaml:"compress,omitempty"`
}

// MetricsConfig controls where run metrics are exported.
type MetricsConfig struct {
	// Textfile is a path for the node_exporter textfile collector.
	Textfile string `yaml:"textfile,omitempty"`

	// Pushgateway is the URL of a Prometheus Pushgateway.
	Pushgateway string `yaml:"pushgateway,omitempty"`

	// Job is the Pushgateway job label.
	Job string `yaml:"job,omitempty"`
}

// WebhookTrigger determines when a webhook fires.
type WebhookTrigger string

const (
	// WebhookTriggerOnSlow fires only when the series reaches the slow threshold (default).
	WebhookTriggerOnSlow WebhookTrigger = "on_slow"
	// WebhookTriggerAlways fires after every run.
	WebhookTriggerAlways WebhookTrigger = "always"
	// WebhookTriggerNever disables the webhook.
	WebhookTriggerNever WebhookTrigger = "never"
)

// WebhookConfig defines a webhook endpoint for sending series reports.
type WebhookConfig struct {
	// Name is an optional identifier for the webhook.
	Name string `yaml:"name,omitempty"`

	// URL is the webhook endpoint (required).
	URL string `yaml:"url"`

	// Token is an optional bearer token for authentication.
	Token string `yaml:"token,omitempty"`

	// Trigger determines when the webhook fires.
	// Defaults to "on_slow" if not specified.
	Trigger WebhookTrigger `yaml:"trigger,omitempty"`

	// Timeout is the HTTP request timeout.
	// Defaults to 10s if not specified.
	Timeout time.Duration `yaml:"timeout,omitempty"`
}
