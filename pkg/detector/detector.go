// Package detector suggests token positions for the date, time and duration
// fields of a proxy log.
package detector

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"io"
	"slices"
	"strings"

	"github.com/ccollicutt/restplot/pkg/parser"
)

// ErrNoPositions means at least one field was never recognised.
var ErrNoPositions = errors.New("could not detect all token positions")

// DetectionResult holds the result of analyzing a log file.
type DetectionResult struct {
	// Candidates maps each field to the positions it was seen at,
	// sorted by confidence descending.
	Candidates map[FieldKind][]Candidate

	SampledLines int // Number of lines sampled
	SampleLine   string
}

// Candidate is one token position that matched a field.
type Candidate struct {
	Position   int
	Confidence float64 // 0.0 to 1.0 (share of sampled lines)
	MatchCount int
	Example    string
}

// Detector samples log lines and scores token positions.
type Detector struct {
	fields     []*Field
	sampleSize int
	filter     parser.LineFilter
}

// Option configures the Detector.
type Option func(*Detector)

// WithSampleSize sets the number of lines to sample (default 100).
func WithSampleSize(n int) Option {
	return func(d *Detector) {
		if n > 0 {
			d.sampleSize = n
		}
	}
}

// WithFilterTerms only samples lines containing every term.
func WithFilterTerms(terms []string) Option {
	return func(d *Detector) {
		d.filter = parser.NewLineFilter(terms)
	}
}

// New creates a new Detector.
func New(opts ...Option) *Detector {
	d := &Detector{
		fields:     DefaultFields(),
		sampleSize: 100,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// DetectFromFile samples a log file, compressed or not, and scores it.
func (d *Detector) DetectFromFile(ctx context.Context, path string) (*DetectionResult, error) {
	src := parser.NewFileSource(path)
	defer src.Close()

	lines, err := d.sample(ctx, src)
	if err != nil {
		return nil, err
	}
	return d.DetectFromLines(lines), nil
}

// DetectFromLines scores every token position of lines against each field.
func (d *Detector) DetectFromLines(lines []string) *DetectionResult {
	result := &DetectionResult{
		Candidates:   make(map[FieldKind][]Candidate, len(d.fields)),
		SampledLines: len(lines),
	}
	if len(lines) == 0 {
		return result
	}
	result.SampleLine = lines[0]

	type hit struct {
		count   int
		example string
	}
	hits := make(map[FieldKind]map[int]*hit, len(d.fields))
	for _, f := range d.fields {
		hits[f.Kind] = make(map[int]*hit)
	}

	for _, line := range lines {
		for i, tok := range strings.Fields(line) {
			for _, f := range d.fields {
				if !f.Probe(tok) {
					continue
				}
				h := hits[f.Kind][i]
				if h == nil {
					h = &hit{example: tok}
					hits[f.Kind][i] = h
				}
				h.count++
			}
		}
	}

	for kind, byPos := range hits {
		cands := make([]Candidate, 0, len(byPos))
		for pos, h := range byPos {
			cands = append(cands, Candidate{
				Position:   pos,
				Confidence: float64(h.count) / float64(len(lines)),
				MatchCount: h.count,
				Example:    h.example,
			})
		}
		// Highest confidence first; lower positions win ties.
		slices.SortFunc(cands, func(a, b Candidate) int {
			if c := cmp.Compare(b.MatchCount, a.MatchCount); c != 0 {
				return c
			}
			return cmp.Compare(a.Position, b.Position)
		})
		result.Candidates[kind] = cands
	}

	return result
}

// Best returns the top candidate for kind.
func (r *DetectionResult) Best(kind FieldKind) (Candidate, bool) {
	cands := r.Candidates[kind]
	if len(cands) == 0 {
		return Candidate{}, false
	}
	return cands[0], true
}

// Positions returns the best position of every field.
// Date and time must be distinct tokens.
func (r *DetectionResult) Positions() (parser.Positions, error) {
	date, okDate := r.Best(FieldDate)
	if !okDate {
		return parser.Positions{}, fmt.Errorf("%w: no date token", ErrNoPositions)
	}

	var clock Candidate
	okTime := false
	for _, c := range r.Candidates[FieldTime] {
		if c.Position != date.Position {
			clock, okTime = c, true
			break
		}
	}
	if !okTime {
		return parser.Positions{}, fmt.Errorf("%w: no time token", ErrNoPositions)
	}

	dur, okDur := r.Best(FieldDuration)
	if !okDur {
		return parser.Positions{}, fmt.Errorf("%w: no duration token", ErrNoPositions)
	}

	return parser.Positions{Date: date.Position, Time: clock.Position, Duration: dur.Position}, nil
}

// Confidence returns the lowest confidence among the chosen positions.
func (r *DetectionResult) Confidence() float64 {
	pos, err := r.Positions()
	if err != nil {
		return 0
	}
	lowest := 1.0
	for kind, p := range map[FieldKind]int{FieldDate: pos.Date, FieldTime: pos.Time, FieldDuration: pos.Duration} {
		for _, c := range r.Candidates[kind] {
			if c.Position == p {
				lowest = min(lowest, c.Confidence)
				break
			}
		}
	}
	return lowest
}

// sample reads up to sampleSize matching, non-empty lines.
func (d *Detector) sample(ctx context.Context, src parser.LineSource) ([]string, error) {
	var lines []string
	for len(lines) < d.sampleSize {
		line, err := src.Next(ctx)
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}

		if strings.TrimSpace(line.Content) == "" || !d.filter.Matches(line.Content) {
			continue
		}
		lines = append(lines, line.Content)
	}
	return lines, nil
}
