package series

import (
	"fmt"
	"strings"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"

	"github.com/ccollicutt/restplot/pkg/parser"
)

// Env is the environment a record predicate is evaluated against.
type Env struct {
	DurationMs int64  `expr:"duration_ms"`
	Epoch      int64  `expr:"epoch"`
	Hour       int    `expr:"hour"`
	Minute     int    `expr:"minute"`
	Weekday    string `expr:"weekday"`
	Date       string `expr:"date"`
	Text       string `expr:"text"`
}

func envFor(r parser.Record) Env {
	t := r.Instant
	return Env{
		DurationMs: r.DurationMillis,
		Epoch:      r.Epoch,
		Hour:       t.Hour(),
		Minute:     t.Minute(),
		Weekday:    t.Weekday().String(),
		Date:       t.Format("2006-01-02"),
		Text:       r.Text,
	}
}

// Predicate selects records with a boolean expression such as
// `duration_ms >= 500 && hour < 9`.
type Predicate struct {
	source  string
	program *vm.Program
}

// CompilePredicate compiles src. An empty (or blank) src matches every record.
func CompilePredicate(src string) (*Predicate, error) {
	src = strings.TrimSpace(src)
	if src == "" {
		return &Predicate{}, nil
	}

	program, err := expr.Compile(src, expr.Env(Env{}), expr.AsBool())
	if err != nil {
		return nil, fmt.Errorf("compiling record filter %q: %w", src, err)
	}
	return &Predicate{source: src, program: program}, nil
}

// String returns the expression source.
func (p *Predicate) String() string {
	if p == nil {
		return ""
	}
	return p.source
}

// Match evaluates the predicate for one record.
func (p *Predicate) Match(r parser.Record) (bool, error) {
	if p == nil || p.program == nil {
		return true, nil
	}
	out, err := expr.Run(p.program, envFor(r))
	if err != nil {
		return false, fmt.Errorf("evaluating record filter %q: %w", p.source, err)
	}
	matched, _ := out.(bool)
	return matched, nil
}

// Where returns the records matching p, preserving order.
func Where(records []parser.Record, p *Predicate) ([]parser.Record, error) {
	if p == nil || p.program == nil {
		return records, nil
	}
	out := make([]parser.Record, 0, len(records))
	for _, r := range records {
		ok, err := p.Match(r)
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, r)
		}
	}
	return out, nil
}
