package output

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	chart "github.com/wcharczuk/go-chart/v2"
)

// ErrEmptySeries means there is nothing to plot.
var ErrEmptySeries = errors.New("empty series")

const (
	// tickLayout formats x axis labels.
	tickLayout = "15:04"

	// yHeadroom is added above the slowest point.
	yHeadroom = 10
)

// ChartOptions controls PNG rendering.
type ChartOptions struct {
	Dir    string
	Width  int
	Height int
}

// ChartRenderer draws the series as a PNG line chart.
type ChartRenderer struct {
	opts ChartOptions
}

// NewChartRenderer creates a new chart renderer with the given options.
func NewChartRenderer(opts ChartOptions) *ChartRenderer {
	return &ChartRenderer{opts: opts}
}

// Name returns the format name.
func (r *ChartRenderer) Name() string {
	return "png"
}

// Path returns where WriteFile stores the chart for report:
// <dir>/<date of first point>_<label>.png.
func (r *ChartRenderer) Path(report *Report) (string, error) {
	if len(report.Points) == 0 {
		return "", ErrEmptySeries
	}
	date := report.Points[0].Instant.UTC().Format("2006-01-02")
	return filepath.Join(r.opts.Dir, date+"_"+SafeLabel(report.Label)+".png"), nil
}

// WriteFile renders the chart into the configured directory and returns
// the file path.
func (r *ChartRenderer) WriteFile(ctx context.Context, report *Report) (string, error) {
	path, err := r.Path(report)
	if err != nil {
		return "", err
	}

	var buf bytes.Buffer
	if err := r.Format(ctx, report, &buf); err != nil {
		return "", err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", fmt.Errorf("creating chart directory: %w", err)
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil { // #nosec G306 -- charts are meant to be shared
		return "", fmt.Errorf("writing chart: %w", err)
	}
	return path, nil
}

// Format renders the report as PNG to w.
func (r *ChartRenderer) Format(_ context.Context, report *Report, w io.Writer) error {
	if len(report.Points) == 0 {
		return ErrEmptySeries
	}

	xs := make([]time.Time, len(report.Points))
	ys := make([]float64, len(report.Points))
	var maxY float64
	for i, p := range report.Points {
		xs[i] = p.Instant
		ys[i] = float64(p.DurationMillis)
		maxY = max(maxY, ys[i])
	}

	// A line needs two points.
	if len(xs) == 1 {
		xs = append(xs, xs[0].Add(time.Second))
		ys = append(ys, ys[0])
	}

	minX := chart.TimeToFloat64(xs[0])
	maxX := chart.TimeToFloat64(xs[len(xs)-1])
	if maxX <= minX {
		maxX = minX + float64(time.Minute)
	}

	ch := chart.Chart{
		Title:      report.Label,
		Width:      r.opts.Width,
		Height:     r.opts.Height,
		Background: chart.Style{Padding: chart.Box{Top: 40, Left: 16, Right: 16, Bottom: 16}},
		XAxis: chart.XAxis{
			Name:           "time (UTC)",
			ValueFormatter: clockFormatter,
			Range:          &chart.ContinuousRange{Min: minX, Max: maxX},
		},
		YAxis: chart.YAxis{
			Name:  "duration (ms)",
			Range: &chart.ContinuousRange{Min: 0, Max: maxY + yHeadroom},
		},
		Series: []chart.Series{
			chart.TimeSeries{
				Name:    report.Label,
				XValues: xs,
				YValues: ys,
				Style: chart.Style{
					StrokeColor: chart.ColorBlue,
					StrokeWidth: 1.5,
				},
			},
		},
	}
	ch.Elements = []chart.Renderable{chart.Legend(&ch)}

	if err := ch.Render(chart.PNG, w); err != nil {
		return fmt.Errorf("rendering chart: %w", err)
	}
	return nil
}

// clockFormatter renders x values as UTC wall clock time.
func clockFormatter(v any) string {
	switch t := v.(type) {
	case time.Time:
		return t.UTC().Format(tickLayout)
	case float64:
		return time.Unix(0, int64(t)).UTC().Format(tickLayout)
	default:
		return ""
	}
}

// SafeLabel turns a series label into a file name component. Characters
// other than letters, digits, '.', '-' and '_' become '_'.
func SafeLabel(label string) string {
	s := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		case r == '.', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, label)
	s = strings.Trim(s, "_.")
	if s == "" {
		return "all"
	}
	return s
}
