package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/ccollicutt/restplot/pkg/config"
	"github.com/ccollicutt/restplot/pkg/logger"
	"github.com/ccollicutt/restplot/pkg/metrics"
	"github.com/ccollicutt/restplot/pkg/parser"
	"github.com/ccollicutt/restplot/pkg/series"
)

// ErrNoRecords means no record survived extraction and filtering.
// Nothing downstream runs on an empty set.
var ErrNoRecords = errors.New("no records")

// Pipeline turns a profile into a Result.
type Pipeline struct {
	cfg       *config.Config
	predicate *series.Predicate

	// Options
	timeRange *TimeRange
	sink      parser.Sink
	metrics   *metrics.Metrics
	aggregate bool
}

// Option configures pipeline behavior.
type Option func(*Pipeline)

// WithTimeRange keeps only records whose instant lies in [start, end].
// A zero start or end leaves that side open.
func WithTimeRange(start, end time.Time) Option {
	return func(p *Pipeline) {
		if start.IsZero() && end.IsZero() {
			p.timeRange = nil
			return
		}
		p.timeRange = &TimeRange{Start: start, End: end}
	}
}

// WithSink sends parse diagnostics to s. By default they are logged.
func WithSink(s parser.Sink) Option {
	return func(p *Pipeline) {
		p.sink = s
	}
}

// WithMetrics records run counters and series gauges into m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(p *Pipeline) {
		p.metrics = m
	}
}

// WithAggregation controls whether records are averaged over windows of
// cfg.Window. It is on by default.
func WithAggregation(on bool) Option {
	return func(p *Pipeline) {
		p.aggregate = on
	}
}

// New creates a pipeline for cfg. The profile's time range applies unless
// overridden with WithTimeRange.
func New(cfg *config.Config, opts ...Option) (*Pipeline, error) {
	if cfg == nil {
		return nil, errors.New("pipeline: nil config")
	}

	pred := cfg.Predicate()
	if pred == nil {
		var err error
		if pred, err = series.CompilePredicate(cfg.RecordFilter); err != nil {
			return nil, fmt.Errorf("compiling record filter: %w", err)
		}
	}

	p := &Pipeline{
		cfg:       cfg,
		predicate: pred,
		aggregate: true,
	}
	if from, to := cfg.TimeRange.Bounds(); !from.IsZero() || !to.IsZero() {
		p.timeRange = &TimeRange{Start: from, End: to}
	}

	for _, opt := range opts {
		opt(p)
	}

	if p.aggregate && cfg.Window < 1 {
		return nil, fmt.Errorf("window %d: %w", cfg.Window, series.ErrInvalidWindow)
	}

	return p, nil
}

// Run reads every configured source and returns the result.
//
// Fatal extraction errors are returned wrapped; ErrNoRecords is returned
// when nothing is left after the time range and record filter.
func (p *Pipeline) Run(ctx context.Context) (*Result, error) {
	log := logger.Get(ctx)
	result := &Result{
		Metadata: Metadata{
			RunID:        uuid.NewString(),
			Label:        p.cfg.SeriesLabel(),
			TimeRange:    p.timeRange,
			RecordFilter: p.predicate.String(),
			StartTime:    time.Now(),
		},
	}

	paths, err := parser.ExpandGlobs(p.cfg.LogSources)
	if err != nil {
		return nil, fmt.Errorf("expanding log sources: %w", err)
	}
	result.Metadata.Sources = paths

	sink := p.sink
	if sink == nil {
		sink = parser.LogSink(log)
	}

	ext := parser.NewExtractor(p.cfg.Positions,
		parser.WithFilterTerms(p.cfg.Filters),
		parser.WithSink(sink),
	)
	log.Debugw("extracting", "run_id", result.Metadata.RunID, "sources", len(paths), "positions", p.cfg.Positions)

	records, err := ext.ExtractFiles(ctx, paths)
	result.Stats = ext.Stats()
	if p.metrics != nil {
		p.metrics.ObserveStats(result.Stats)
	}
	if err != nil {
		return nil, fmt.Errorf("extracting records: %w", err)
	}

	kept, err := p.filter(records)
	if err != nil {
		return nil, err
	}
	result.Metadata.Filtered = len(records) - len(kept)
	result.Records = kept

	log.Debugw("extracted",
		"lines_read", result.Stats.LinesRead,
		"lines_matched", result.Stats.LinesMatched,
		"records", len(kept),
		"filtered", result.Metadata.Filtered,
	)

	if len(kept) == 0 {
		return nil, fmt.Errorf("%w: read %d lines, %d matched the filter",
			ErrNoRecords, result.Stats.LinesRead, result.Stats.LinesMatched)
	}

	result.Series = kept
	if p.aggregate {
		result.Series, err = series.Aggregate(kept, p.cfg.Window)
		if err != nil {
			return nil, fmt.Errorf("aggregating records: %w", err)
		}
		result.Metadata.Window = p.cfg.Window
	}
	result.Summary = series.Summarize(result.Series)

	if p.metrics != nil {
		p.metrics.ObserveRecords(kept)
		p.metrics.ObserveSeries(result.Metadata.Label, result.Summary)
		p.metrics.MarkRun()
	}

	result.Metadata.EndTime = time.Now()
	return result, nil
}

// filter applies the time range and then the record predicate.
func (p *Pipeline) filter(records []parser.Record) ([]parser.Record, error) {
	if p.timeRange != nil {
		inRange := make([]parser.Record, 0, len(records))
		for _, r := range records {
			if p.timeRange.Contains(r.Instant) {
				inRange = append(inRange, r)
			}
		}
		records = inRange
	}

	kept, err := series.Where(records, p.predicate)
	if err != nil {
		return nil, fmt.Errorf("applying record filter: %w", err)
	}
	return kept, nil
}
