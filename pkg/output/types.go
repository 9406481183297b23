// Package output provides formatting and output generation for series reports.
package output

import (
	"time"

	"github.com/ccollicutt/restplot/pkg/parser"
	"github.com/ccollicutt/restplot/pkg/pipeline"
)

// Report is the complete output of a run.
type Report struct {
	// Label names the series.
	Label string `json:"label"`

	// Summary provides aggregate statistics.
	Summary Summary `json:"summary"`

	// Points is the plotted series, sorted by time.
	Points []parser.Record `json:"points"`

	// Metadata provides context about the run.
	Metadata Metadata `json:"metadata"`
}

// Summary provides aggregate statistics.
type Summary struct {
	// Points is the number of plotted points.
	Points int `json:"points"`

	// Records is the number of records behind the points.
	Records int `json:"records"`

	MinMillis  int64 `json:"min_ms"`
	MaxMillis  int64 `json:"max_ms"`
	MeanMillis int64 `json:"mean_ms"`

	First time.Time `json:"first,omitzero"`
	Last  time.Time `json:"last,omitzero"`

	// Slow is set when a point reached SlowThresholdMillis.
	Slow                bool  `json:"slow"`
	SlowThresholdMillis int64 `json:"slow_threshold_ms,omitempty"`

	LinesRead         int `json:"lines_read"`
	LinesMatched      int `json:"lines_matched"`
	TimestampFailures int `json:"timestamp_failures"`
	DurationAnomalies int `json:"duration_anomalies"`
}

// Metadata provides context about the run.
type Metadata struct {
	// RunID identifies the run.
	RunID string `json:"run_id"`

	// ConfigFile is the profile used, if any.
	ConfigFile string `json:"config_file,omitempty"`

	// Sources lists the log files that were read.
	Sources []string `json:"sources"`

	// Window is the aggregation window, or 0 for raw records.
	Window int `json:"window"`

	// TimeRange is the time filter that was applied, if any.
	TimeRange *TimeRange `json:"time_range,omitempty"`

	// RecordFilter is the record predicate, if any.
	RecordFilter string `json:"record_filter,omitempty"`

	// GeneratedAt is when the run completed.
	GeneratedAt time.Time `json:"generated_at"`

	// Duration is how long the run took.
	Duration time.Duration `json:"duration_ns"`
}

// TimeRange represents a time window for filtering.
type TimeRange struct {
	Start time.Time `json:"start,omitzero"`
	End   time.Time `json:"end,omitzero"`
}

// NewReport creates a Report from a pipeline result. A positive
// slowThreshold marks the report slow when any point reaches it.
func NewReport(result *pipeline.Result, configFile string, slowThreshold time.Duration) *Report {
	sum := result.Summary
	report := &Report{
		Label:  result.Metadata.Label,
		Points: result.Series,
		Summary: Summary{
			Points:            sum.Count,
			Records:           len(result.Records),
			MinMillis:         sum.MinMillis,
			MaxMillis:         sum.MaxMillis,
			MeanMillis:        sum.MeanMillis,
			First:             sum.First,
			Last:              sum.Last,
			Slow:              sum.Exceeds(slowThreshold),
			LinesRead:         result.Stats.LinesRead,
			LinesMatched:      result.Stats.LinesMatched,
			TimestampFailures: result.Stats.TimestampFailures,
			DurationAnomalies: result.Stats.DurationAnomalies,
		},
		Metadata: Metadata{
			RunID:        result.Metadata.RunID,
			ConfigFile:   configFile,
			Sources:      result.Metadata.Sources,
			Window:       result.Metadata.Window,
			RecordFilter: result.Metadata.RecordFilter,
			GeneratedAt:  result.Metadata.EndTime,
			Duration:     result.Metadata.EndTime.Sub(result.Metadata.StartTime),
		},
	}
	if slowThreshold > 0 {
		report.Summary.SlowThresholdMillis = slowThreshold.Milliseconds()
	}

	if tr := result.Metadata.TimeRange; tr != nil {
		report.Metadata.TimeRange = &TimeRange{Start: tr.Start, End: tr.End}
	}

	return report
}

// IsSlow returns true if the series reached the slow threshold.
func (r *Report) IsSlow() bool {
	return r.Summary.Slow
}
