// Package parser turns proxy log lines into timing records.
package parser

import "time"

// Record is one (timestamp, duration) observation. Aggregated series points
// share the same shape: their timestamp fields come from a real source record.
type Record struct {
	// Text is the human-readable rendering of Instant.
	Text string `json:"timestamp"`

	// Epoch is Instant in whole seconds since the Unix epoch.
	Epoch int64 `json:"epoch"`

	// DurationMillis is the request execution time, 0 when unparseable.
	DurationMillis int64 `json:"duration_ms"`

	// Instant is the parsed timestamp with a fixed zero UTC offset.
	Instant time.Time `json:"instant"`
}

// NewRecord builds a Record from a parsed instant and a duration.
func NewRecord(instant time.Time, durationMillis int64) Record {
	return Record{
		Text:           FormatInstant(instant),
		Epoch:          instant.Unix(),
		DurationMillis: durationMillis,
		Instant:        instant,
	}
}

// LogLine is a raw log line before any parsing.
type LogLine struct {
	// Content is the raw line text.
	Content string

	// Source is the file path (or stream name) this line came from.
	Source string

	// LineNum is the 1-based line number in the source.
	LineNum int
}

// Positions holds the 0-based token indices of the fields to extract.
type Positions struct {
	Date     int `yaml:"date"`
	Time     int `yaml:"time"`
	Duration int `yaml:"duration"`
}

// Max returns the largest configured index.
func (p Positions) Max() int {
	return max(p.Date, p.Time, p.Duration)
}

// Stats counts what happened during one extraction run.
type Stats struct {
	LinesRead         int `json:"lines_read"`
	LinesMatched      int `json:"lines_matched"`
	Records           int `json:"records"`
	TimestampFailures int `json:"timestamp_failures"`
	DurationAnomalies int `json:"duration_anomalies"`
}
