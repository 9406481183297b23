package parser

import "strings"

// LineFilter selects the log lines worth parsing.
// A line matches when it contains every term; no terms matches everything.
type LineFilter struct {
	terms []string
}

// NewLineFilter creates a filter over the given substrings.
func NewLineFilter(terms []string) LineFilter {
	return LineFilter{terms: append([]string(nil), terms...)}
}

// Matches reports whether line contains all of the filter's terms.
func (f LineFilter) Matches(line string) bool {
	return Matches(line, f.terms)
}

// Terms returns a copy of the filter terms.
func (f LineFilter) Terms() []string {
	return append([]string(nil), f.terms...)
}

// Matches reports whether line contains every term as a raw substring.
func Matches(line string, terms []string) bool {
	for _, term := range terms {
		if !strings.Contains(line, term) {
			return false
		}
	}
	return true
}
