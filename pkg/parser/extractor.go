package parser

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"io"
	"slices"
	"strings"
)

var (
	// ErrTokenIndexOutOfRange means a configured position does not exist on a
	// matching line. It aborts the run.
	ErrTokenIndexOutOfRange = errors.New("token index out of range")

	// ErrSourceRead means a source could not be opened or read. It aborts the run.
	ErrSourceRead = errors.New("source read failure")
)

// TokenIndexError names the line whose token count is too small for the
// configured positions.
type TokenIndexError struct {
	Source   string
	LineNum  int
	Position int
	Tokens   int
}

func (e *TokenIndexError) Error() string {
	return fmt.Sprintf("%s:%d: position %d requested but line has %d tokens",
		e.Source, e.LineNum, e.Position, e.Tokens)
}

func (e *TokenIndexError) Unwrap() error { return ErrTokenIndexOutOfRange }

// SourceError wraps a failure to open or read a source.
type SourceError struct {
	Source string
	Err    error
}

func (e *SourceError) Error() string {
	return fmt.Sprintf("%s: %v", e.Source, e.Err)
}

func (e *SourceError) Unwrap() []error {
	return []error{ErrSourceRead, e.Err}
}

// outcome tags what happened to a single line.
type outcome int

const (
	outcomeIgnored outcome = iota // filtered out, no diagnostic
	outcomeSkipped                // timestamp failed, diagnostic emitted
	outcomeKept                   // record produced
)

// Extractor reads log lines and turns matching ones into Records.
type Extractor struct {
	positions Positions
	filter    LineFilter
	sink      Sink
	stats     Stats
}

// ExtractorOption configures an Extractor.
type ExtractorOption func(*Extractor)

// WithFilterTerms only considers lines containing every term.
func WithFilterTerms(terms []string) ExtractorOption {
	return func(e *Extractor) {
		e.filter = NewLineFilter(terms)
	}
}

// WithSink sends diagnostics to s instead of discarding them.
func WithSink(s Sink) ExtractorOption {
	return func(e *Extractor) {
		if s != nil {
			e.sink = s
		}
	}
}

// NewExtractor creates an Extractor reading the given token positions.
func NewExtractor(positions Positions, opts ...ExtractorOption) *Extractor {
	e := &Extractor{
		positions: positions,
		sink:      DiscardSink,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Stats returns the counters of the most recent Extract call.
func (e *Extractor) Stats() Stats {
	return e.stats
}

// ExtractFiles reads the files in order and returns their sorted records.
func (e *Extractor) ExtractFiles(ctx context.Context, paths []string) ([]Record, error) {
	return e.Extract(ctx, OpenSources(paths)...)
}

// Extract reads every source in order and returns all records, stably sorted
// by epoch seconds. Records with equal timestamps keep source-then-line order.
//
// Unparseable timestamps and durations are reported to the sink and never
// stop the run; an out-of-range token position or a read failure does.
// All sources are closed before Extract returns.
func (e *Extractor) Extract(ctx context.Context, sources ...LineSource) ([]Record, error) {
	e.stats = Stats{}
	defer func() {
		for _, src := range sources {
			_ = src.Close()
		}
	}()

	var records []Record
	for _, src := range sources {
		var err error
		records, err = e.extractSource(ctx, src, records)
		if err != nil {
			return nil, err
		}
	}

	slices.SortStableFunc(records, func(a, b Record) int {
		return cmp.Compare(a.Epoch, b.Epoch)
	})
	e.stats.Records = len(records)
	return records, nil
}

func (e *Extractor) extractSource(ctx context.Context, src LineSource, records []Record) ([]Record, error) {
	for {
		line, err := src.Next(ctx)
		if err == io.EOF {
			return records, nil
		}
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil && errors.Is(err, ctxErr) {
				return nil, err
			}
			return nil, &SourceError{Source: src.Name(), Err: err}
		}
		e.stats.LinesRead++

		rec, out, err := e.processLine(line)
		if err != nil {
			return nil, err
		}
		if out == outcomeKept {
			records = append(records, rec)
		}
	}
}

// processLine parses a single line. A non-nil error is fatal for the run.
func (e *Extractor) processLine(line *LogLine) (Record, outcome, error) {
	if !e.filter.Matches(line.Content) {
		return Record{}, outcomeIgnored, nil
	}
	e.stats.LinesMatched++

	tokens := strings.Fields(line.Content)
	if hi := e.positions.Max(); hi >= len(tokens) {
		return Record{}, outcomeIgnored, &TokenIndexError{
			Source:   line.Source,
			LineNum:  line.LineNum,
			Position: hi,
			Tokens:   len(tokens),
		}
	}

	dateTok := tokens[e.positions.Date]
	timeTok := tokens[e.positions.Time]
	instant, err := ParseDateTime(dateTok, timeTok)
	if err != nil {
		e.stats.TimestampFailures++
		e.sink.Report(Diagnostic{
			Kind:    KindTimestampFailure,
			Source:  line.Source,
			LineNum: line.LineNum,
			Tokens:  []string{dateTok, timeTok},
			Err:     err,
		})
		return Record{}, outcomeSkipped, nil
	}

	durTok := tokens[e.positions.Duration]
	millis, err := ParseDuration(durTok)
	if err != nil {
		e.stats.DurationAnomalies++
		e.sink.Report(Diagnostic{
			Kind:    KindDurationAnomaly,
			Source:  line.Source,
			LineNum: line.LineNum,
			Tokens:  []string{durTok},
			Err:     err,
		})
	}

	return NewRecord(instant, millis), outcomeKept, nil
}
