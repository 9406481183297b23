// Package pipeline runs extraction end to end: sources, filters and the
// optional window aggregation.
package pipeline

import (
	"time"

	"github.com/ccollicutt/restplot/pkg/parser"
	"github.com/ccollicutt/restplot/pkg/series"
)

// TimeRange defines an inclusive window on record instants.
// A zero Start or End leaves that side unbounded.
type TimeRange struct {
	Start time.Time
	End   time.Time
}

// Contains reports whether t falls inside the range.
func (r *TimeRange) Contains(t time.Time) bool {
	if r == nil {
		return true
	}
	if !r.Start.IsZero() && t.Before(r.Start) {
		return false
	}
	if !r.End.IsZero() && t.After(r.End) {
		return false
	}
	return true
}

// Result contains the complete output of one run.
type Result struct {
	// Records are the extracted records that survived every filter, sorted.
	Records []parser.Record

	// Series is what gets plotted: the aggregated records, or Records
	// itself when aggregation is off.
	Series []parser.Record

	// Summary describes Series.
	Summary series.Summary

	// Stats are the extraction counters.
	Stats parser.Stats

	Metadata Metadata
}

// Metadata provides context about the run.
type Metadata struct {
	// RunID uniquely identifies the run in reports and webhooks.
	RunID string

	// Label names the series.
	Label string

	// Sources lists the expanded paths that were read, in order.
	Sources []string

	// Window is the aggregation window size, or 0 when not aggregated.
	Window int

	// TimeRange is the time filter applied, if any.
	TimeRange *TimeRange

	// RecordFilter is the record predicate source, if any.
	RecordFilter string

	// Filtered is the number of extracted records dropped by the time
	// range or the record filter.
	Filtered int

	StartTime time.Time
	EndTime   time.Time
}

// Aggregated reports whether Series holds window means.
func (r *Result) Aggregated() bool {
	return r.Metadata.Window > 0
}
