package series

import (
	"time"

	"github.com/ccollicutt/restplot/pkg/parser"
)

// Summary gives aggregate statistics for a series.
type Summary struct {
	Count      int       `json:"count"`
	MinMillis  int64     `json:"min_ms"`
	MaxMillis  int64     `json:"max_ms"`
	MeanMillis int64     `json:"mean_ms"`
	First      time.Time `json:"first"`
	Last       time.Time `json:"last"`
}

// Summarize computes a Summary. An empty series yields the zero Summary.
func Summarize(records []parser.Record) Summary {
	if len(records) == 0 {
		return Summary{}
	}

	s := Summary{
		Count:     len(records),
		MinMillis: records[0].DurationMillis,
		MaxMillis: records[0].DurationMillis,
		First:     records[0].Instant,
		Last:      records[len(records)-1].Instant,
	}
	for _, r := range records[1:] {
		s.MinMillis = min(s.MinMillis, r.DurationMillis)
		s.MaxMillis = max(s.MaxMillis, r.DurationMillis)
	}
	s.MeanMillis = mean(records)
	return s
}

// Span returns the time covered by the series.
func (s Summary) Span() time.Duration {
	return s.Last.Sub(s.First)
}

// Exceeds reports whether the slowest point reaches threshold.
// A zero threshold never triggers.
func (s Summary) Exceeds(threshold time.Duration) bool {
	return threshold > 0 && s.Count > 0 && s.MaxMillis >= threshold.Milliseconds()
}
