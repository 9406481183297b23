package parser

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// ErrInvalidDuration marks a duration token that could not be read.
var ErrInvalidDuration = errors.New("invalid duration")

// DurationError describes why a duration token degraded to 0.
type DurationError struct {
	Token  string
	Reason string
	Err    error
}

func (e *DurationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("duration %q: %s: %v", e.Token, e.Reason, e.Err)
	}
	return fmt.Sprintf("duration %q: %s", e.Token, e.Reason)
}

func (e *DurationError) Unwrap() []error {
	if e.Err != nil {
		return []error{ErrInvalidDuration, e.Err}
	}
	return []error{ErrInvalidDuration}
}

// ParseDuration converts a token such as "12345.99ms" or "1.123s" into whole
// milliseconds, truncating any fraction.
//
// It never fails outright: on any anomaly it returns 0 together with a
// *DurationError so the caller can report it and keep the record.
//
//	"12345.99ms"     -> 12345
//	"1.123456789s"   -> 1123
//	"1.123456789"    -> 0 (no unit)
//	"s"              -> 0 (no numeric prefix)
//	"1.A123456789ms" -> 0 (bad number)
//	"1.A123456789s"  -> 0 (bad number)
func ParseDuration(token string) (int64, error) {
	if i := strings.Index(token, "ms"); i >= 0 {
		return toMillis(token, token[:i], 1)
	}

	// A missing "s" and an "s" with nothing before it are the same anomaly.
	i := strings.Index(token, "s")
	if i <= 0 {
		return 0, &DurationError{Token: token, Reason: "no numeric value before unit"}
	}
	return toMillis(token, token[:i], 1000)
}

func toMillis(token, number string, scale float64) (int64, error) {
	v, err := strconv.ParseFloat(number, 64)
	if err != nil {
		return 0, &DurationError{Token: token, Reason: "cannot parse number", Err: err}
	}

	v = math.Trunc(v * scale)
	switch {
	case math.IsNaN(v) || math.IsInf(v, 0):
		return 0, &DurationError{Token: token, Reason: "not a finite number"}
	case v < 0:
		return 0, &DurationError{Token: token, Reason: "negative duration"}
	case v >= math.MaxInt64:
		return 0, &DurationError{Token: token, Reason: "duration out of range"}
	}
	return int64(v), nil
}
