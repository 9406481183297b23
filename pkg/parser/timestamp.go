package parser

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// DateMarker precedes the year in colorized proxy date tokens ("34m2023-08-28").
// Only years starting with "20" are recognised.
const DateMarker = "m20"

// TimestampLayout is the layout of the composed "<date> <time> +00:00" string.
// It is also the rendering used for Record.Text.
const TimestampLayout = "2006-01-02 15:04:05 -07:00"

// ErrInvalidTimestamp marks date/time tokens that do not form a valid timestamp.
var ErrInvalidTimestamp = errors.New("invalid timestamp format")

// TimestampError reports the raw tokens of a failed timestamp parse.
type TimestampError struct {
	Date string
	Time string
	Err  error
}

func (e *TimestampError) Error() string {
	return fmt.Sprintf("timestamp [%s] [%s]: %v", e.Date, e.Time, e.Err)
}

func (e *TimestampError) Unwrap() []error {
	return []error{ErrInvalidTimestamp, e.Err}
}

// ExtractDate strips everything up to and including the "m" of the date
// marker, returning the bare "YYYY-MM-DD" and true. Tokens without the marker
// are returned unchanged with false.
//
//	"34m2023-08-28" -> "2023-08-28", true
//	"2023-08-28"    -> "2023-08-28", false
func ExtractDate(token string) (string, bool) {
	i := strings.Index(token, DateMarker)
	if i < 0 {
		return token, false
	}
	return token[i+1:], true
}

// ExtractTime drops a fractional-seconds suffix, returning "HH:MM:SS" and
// whether anything was removed.
//
//	"07:02:54.235" -> "07:02:54", true
//	"07:02:54"     -> "07:02:54", false
func ExtractTime(token string) (string, bool) {
	i := strings.Index(token, ".")
	if i < 0 {
		return token, false
	}
	return token[:i], true
}

// ParseDateTime normalizes the raw date and time tokens and parses them as a
// UTC instant. A failure is a *TimestampError matching ErrInvalidTimestamp;
// callers skip the line rather than abort.
func ParseDateTime(dateToken, timeToken string) (time.Time, error) {
	date, _ := ExtractDate(dateToken)
	clock, _ := ExtractTime(timeToken)

	composed := date + " " + clock + " +00:00"
	t, err := time.ParseInLocation(TimestampLayout, composed, time.UTC)
	if err != nil {
		return time.Time{}, &TimestampError{Date: dateToken, Time: timeToken, Err: err}
	}
	return t.UTC(), nil
}

// FormatInstant renders an instant the way Record.Text carries it.
func FormatInstant(t time.Time) string {
	return t.Format(TimestampLayout)
}
