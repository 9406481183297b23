package output

import (
	"context"
	"fmt"
	"io"
)

// TextFormatter formats reports as human-readable text.
type TextFormatter struct {
	opts FormatOptions
}

// NewTextFormatter creates a new text formatter with the given options.
func NewTextFormatter(opts FormatOptions) *TextFormatter {
	return &TextFormatter{opts: opts}
}

// Name returns the format name.
func (f *TextFormatter) Name() string {
	return "text"
}

// Format renders the report as text.
func (f *TextFormatter) Format(_ context.Context, report *Report, w io.Writer) error {
	switch {
	case f.opts.DataOnly:
		return f.formatData(report, w)
	case f.opts.Quiet:
		return f.formatQuiet(report, w)
	default:
		return f.formatFull(report, w)
	}
}

// formatData writes one line per point: timestamp text, epoch seconds and
// duration in milliseconds.
func (f *TextFormatter) formatData(report *Report, w io.Writer) error {
	for _, p := range report.Points {
		if _, err := fmt.Fprintf(w, "%s %d %d\n", p.Text, p.Epoch, p.DurationMillis); err != nil {
			return err
		}
	}
	return nil
}

func (f *TextFormatter) formatQuiet(report *Report, w io.Writer) error {
	s := report.Summary
	_, err := fmt.Fprintf(w, "restplot: %s: %d points, min %dms, mean %dms, max %dms%s\n",
		report.Label, s.Points, s.MinMillis, s.MeanMillis, s.MaxMillis, slowSuffix(s))
	return err
}

func (f *TextFormatter) formatFull(report *Report, w io.Writer) error {
	s := report.Summary

	fmt.Fprintln(w, "=== restplot Series Report ===")
	fmt.Fprintln(w)
	fmt.Fprintf(w, "Series: %s\n", report.Label)
	if report.Metadata.Window > 0 {
		fmt.Fprintf(w, "Window: %d records per point\n", report.Metadata.Window)
	} else {
		fmt.Fprintln(w, "Window: raw records")
	}
	if !s.First.IsZero() {
		fmt.Fprintf(w, "From:   %s\n", s.First.Format("2006-01-02 15:04:05"))
		fmt.Fprintf(w, "To:     %s\n", s.Last.Format("2006-01-02 15:04:05"))
	}
	fmt.Fprintln(w)

	for _, p := range report.Points {
		fmt.Fprintf(w, "  %s  %8d ms\n", p.Instant.Format("15:04:05"), p.DurationMillis)
	}
	if len(report.Points) > 0 {
		fmt.Fprintln(w)
	}

	fmt.Fprintln(w, "---")
	_, err := fmt.Fprintf(w, "Summary: %d points from %d records, min %dms, mean %dms, max %dms%s\n",
		s.Points, s.Records, s.MinMillis, s.MeanMillis, s.MaxMillis, slowSuffix(s))
	if err != nil {
		return err
	}

	if f.opts.Verbose {
		fmt.Fprintf(w, "Lines read: %d, matched: %d\n", s.LinesRead, s.LinesMatched)
		fmt.Fprintf(w, "Timestamp failures: %d, duration anomalies: %d\n", s.TimestampFailures, s.DurationAnomalies)
		for _, src := range report.Metadata.Sources {
			fmt.Fprintf(w, "Source: %s\n", src)
		}
		if report.Metadata.RecordFilter != "" {
			fmt.Fprintf(w, "Record filter: %s\n", report.Metadata.RecordFilter)
		}
		fmt.Fprintf(w, "Run: %s (%s)\n", report.Metadata.RunID, report.Metadata.Duration.Round(1e6))
	}

	return nil
}

func slowSuffix(s Summary) string {
	if !s.Slow {
		return ""
	}
	return fmt.Sprintf(" (SLOW: threshold %dms)", s.SlowThresholdMillis)
}
