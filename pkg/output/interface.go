package output

import (
	"context"
	"io"
)

// Formatter renders a series report in a specific format.
type Formatter interface {
	// Format renders the report to the given writer.
	Format(ctx context.Context, report *Report, w io.Writer) error

	// Name returns the format name (text, json, png).
	Name() string
}

// FormatOptions controls formatter behavior.
type FormatOptions struct {
	// DataOnly prints one "<timestamp> <epoch> <duration_ms>" line per point
	// and nothing else.
	DataOnly bool

	// Verbose adds extraction counters and run details.
	Verbose bool

	// Quiet enables minimal summary-only output.
	Quiet bool
}
