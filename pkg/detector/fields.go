package detector

import (
	"time"

	"github.com/ccollicutt/restplot/pkg/parser"
)

// FieldKind names a token the extractor needs a position for.
type FieldKind string

const (
	FieldDate     FieldKind = "date"
	FieldTime     FieldKind = "time"
	FieldDuration FieldKind = "duration"
)

// Field describes how a token of one kind is recognised.
type Field struct {
	Kind     FieldKind
	Examples []string

	// Probe reports whether a token looks like this field.
	Probe func(token string) bool
}

// DefaultFields returns the fields detected in proxy logs, in the order
// positions are reported.
func DefaultFields() []*Field {
	return []*Field{
		{
			Kind:     FieldDate,
			Examples: []string{"34m2023-08-28", "2023-08-28"},
			Probe:    isDate,
		},
		{
			Kind:     FieldTime,
			Examples: []string{"07:01:12.872", "07:01:12"},
			Probe:    isTime,
		},
		{
			Kind:     FieldDuration,
			Examples: []string{"2.924797516s", "12.5ms"},
			Probe:    isDuration,
		},
	}
}

func isDate(token string) bool {
	date, _ := parser.ExtractDate(token)
	_, err := time.Parse(time.DateOnly, date)
	return err == nil
}

func isTime(token string) bool {
	clock, _ := parser.ExtractTime(token)
	_, err := time.Parse(time.TimeOnly, clock)
	return err == nil
}

func isDuration(token string) bool {
	_, err := parser.ParseDuration(token)
	return err == nil
}
