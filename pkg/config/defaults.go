package config

import (
	"os"
	"strings"
	"time"

	"github.com/ccollicutt/restplot/pkg/parser"
)

// Default values for configuration.
const (
	DefaultDatePos        = 1
	DefaultTimePos        = 2
	DefaultDurationPos    = 15
	DefaultWindow         = 5
	DefaultLabel          = "all"
	DefaultChartDir       = "charts"
	DefaultChartWidth     = 1024
	DefaultChartHeight    = 640
	DefaultLogLevel       = "info"
	DefaultMetricsJob     = "restplot"
	DefaultWebhookTimeout = 10 * time.Second
)

// Environment variable names.
const (
	EnvLogSources = "RESTPLOT_LOG_SOURCES"
	EnvChartDir   = "RESTPLOT_CHART_DIR"
	EnvLogLevel   = "RESTPLOT_LOG_LEVEL"
)

// DefaultConfig returns a configuration with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		LogSources: []string{},
		Positions: parser.Positions{
			Date:     DefaultDatePos,
			Time:     DefaultTimePos,
			Duration: DefaultDurationPos,
		},
		Window: DefaultWindow,
		Chart: ChartConfig{
			Dir:    DefaultChartDir,
			Width:  DefaultChartWidth,
			Height: DefaultChartHeight,
		},
		Logging: LoggingConfig{
			Level: DefaultLogLevel,
		},
		Metrics: MetricsConfig{
			Job: DefaultMetricsJob,
		},
	}
}

// ApplyEnvironmentOverrides applies environment variable overrides to the config.
func (c *Config) ApplyEnvironmentOverrides() {
	if sources := os.Getenv(EnvLogSources); sources != "" {
		c.LogSources = nil
		for _, s := range strings.Split(sources, ",") {
			if s = strings.TrimSpace(s); s != "" {
				c.LogSources = append(c.LogSources, s)
			}
		}
	}

	if dir := os.Getenv(EnvChartDir); dir != "" {
		c.Chart.Dir = dir
	}

	if level := os.Getenv(EnvLogLevel); level != "" {
		c.Logging.Level = level
	}
}
