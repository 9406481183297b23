package parser

import (
	"fmt"
	"strings"
	"sync"

	"go.uber.org/zap"
)

// DiagnosticKind classifies a non-fatal parse problem.
type DiagnosticKind string

const (
	// KindDurationAnomaly means a duration token degraded to 0; the record is kept.
	KindDurationAnomaly DiagnosticKind = "duration_anomaly"
	// KindTimestampFailure means the date/time tokens did not parse; the line is skipped.
	KindTimestampFailure DiagnosticKind = "timestamp_failure"
)

// Diagnostic is one recoverable problem found while extracting records.
type Diagnostic struct {
	Kind    DiagnosticKind `json:"kind"`
	Source  string         `json:"source"`
	LineNum int            `json:"line"`
	Tokens  []string       `json:"tokens"`
	Err     error          `json:"-"`
}

// Message renders the diagnostic for humans.
func (d Diagnostic) Message() string {
	switch d.Kind {
	case KindTimestampFailure:
		return fmt.Sprintf("DateTime can't be parsed: %s", bracket(d.Tokens))
	case KindDurationAnomaly:
		return fmt.Sprintf("This time can't be parsed: %s", bracket(d.Tokens))
	default:
		return fmt.Sprintf("%s: %s", d.Kind, bracket(d.Tokens))
	}
}

func bracket(tokens []string) string {
	parts := make([]string, len(tokens))
	for i, t := range tokens {
		parts[i] = "[" + t + "]"
	}
	return strings.Join(parts, " ")
}

// Sink receives diagnostics as a side effect of extraction.
type Sink interface {
	Report(d Diagnostic)
}

// SinkFunc adapts a function to the Sink interface.
type SinkFunc func(d Diagnostic)

// Report calls f(d).
func (f SinkFunc) Report(d Diagnostic) { f(d) }

// DiscardSink drops every diagnostic.
var DiscardSink Sink = SinkFunc(func(Diagnostic) {})

// Collector is a Sink that keeps every diagnostic in memory.
type Collector struct {
	mu          sync.Mutex
	diagnostics []Diagnostic
}

// NewCollector creates an empty Collector.
func NewCollector() *Collector {
	return &Collector{}
}

// Report stores d.
func (c *Collector) Report(d Diagnostic) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.diagnostics = append(c.diagnostics, d)
}

// Diagnostics returns a copy of everything collected so far.
func (c *Collector) Diagnostics() []Diagnostic {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Diagnostic(nil), c.diagnostics...)
}

// Count returns how many diagnostics of the given kind were collected.
func (c *Collector) Count(kind DiagnosticKind) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, d := range c.diagnostics {
		if d.Kind == kind {
			n++
		}
	}
	return n
}

// LogSink writes each diagnostic to a zap logger at warn level.
func LogSink(log *zap.SugaredLogger) Sink {
	return SinkFunc(func(d Diagnostic) {
		log.Warnw(d.Message(),
			"kind", string(d.Kind),
			"source", d.Source,
			"line", d.LineNum,
			"error", d.Err,
		)
	})
}

// MultiSink fans a diagnostic out to several sinks.
func MultiSink(sinks ...Sink) Sink {
	return SinkFunc(func(d Diagnostic) {
		for _, s := range sinks {
			s.Report(d)
		}
	})
}
