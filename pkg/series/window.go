// Package series reduces sorted timing records into plottable series.
package series

import (
	"errors"
	"fmt"
	"iter"

	"github.com/ccollicutt/restplot/pkg/parser"
)

// ErrInvalidWindow is returned for window sizes below 1.
var ErrInvalidWindow = errors.New("window size must be at least 1")

// Window describes one averaged output point over sorted records.
// Members are the half-open range [Start, End); Mid is the index of the
// record whose timestamp represents the window.
type Window struct {
	Start int
	End   int
	Mid   int
}

// Len returns the number of records averaged by the window.
func (w Window) Len() int {
	return w.End - w.Start
}

// Windows yields the windows for n records and window size size:
//
//	end = min(start+size-1, n-1); stop if start >= end
//	mid = min(start+size/2, n-1)
//	start += size; stop if start >= n
//
// Each window therefore spans size-1 records, and a size of 1 yields
// nothing. Non-positive sizes yield nothing as well.
func Windows(n, size int) iter.Seq[Window] {
	return func(yield func(Window) bool) {
		if size < 1 {
			return
		}
		for start := 0; ; {
			end := min(start+size-1, n-1)
			if start >= end {
				return
			}
			w := Window{
				Start: start,
				End:   end,
				Mid:   min(start+size/2, n-1),
			}
			if !yield(w) {
				return
			}
			start += size
			if start >= n {
				return
			}
		}
	}
}

// Aggregate downsamples sorted records into one point per window. Each point
// copies the timestamp of the record at the window's midpoint and carries the
// truncated mean duration of the window's members.
func Aggregate(records []parser.Record, size int) ([]parser.Record, error) {
	if size < 1 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidWindow, size)
	}

	out := []parser.Record{}
	for w := range Windows(len(records), size) {
		rep := records[w.Mid]
		out = append(out, parser.Record{
			Text:           rep.Text,
			Epoch:          rep.Epoch,
			DurationMillis: mean(records[w.Start:w.End]),
			Instant:        rep.Instant,
		})
	}
	return out, nil
}

// mean returns the truncated integer mean duration. Callers never pass an
// empty slice.
func mean(records []parser.Record) int64 {
	var sum int64
	for _, r := range records {
		sum += r.DurationMillis
	}
	return sum / int64(len(records))
}
