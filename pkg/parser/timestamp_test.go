package parser

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractDate(t *testing.T) {
	tests := []struct {
		token     string
		want      string
		wantFound bool
	}{
		{"34m2023-08-28", "2023-08-28", true},
		{"2023-08-28", "2023-08-28", false},
		{"\x1b[34m2023-08-28", "2023-08-28", true},
		{"m2023-08-28", "2023-08-28", true},
		{"", "", false},
	}

	for _, tt := range tests {
		got, found := ExtractDate(tt.token)
		assert.Equal(t, tt.want, got, "ExtractDate(%q)", tt.token)
		assert.Equal(t, tt.wantFound, found, "ExtractDate(%q) found", tt.token)
	}
}

func TestExtractTime(t *testing.T) {
	tests := []struct {
		token       string
		want        string
		wantTrimmed bool
	}{
		{"07:02:54.235", "07:02:54", true},
		{"07:02:54", "07:02:54", false},
		{"07:02:54.", "07:02:54", true},
		{"", "", false},
	}

	for _, tt := range tests {
		got, trimmed := ExtractTime(tt.token)
		assert.Equal(t, tt.want, got, "ExtractTime(%q)", tt.token)
		assert.Equal(t, tt.wantTrimmed, trimmed, "ExtractTime(%q) trimmed", tt.token)
	}
}

func TestParseDateTime(t *testing.T) {
	got, err := ParseDateTime("34m2023-08-28", "07:02:54.235")
	require.NoError(t, err)

	want := time.Date(2023, 8, 28, 7, 2, 54, 0, time.UTC)
	assert.True(t, got.Equal(want), "got %v, want %v", got, want)
	assert.Equal(t, int64(1693206174), got.Unix())

	_, offset := got.Zone()
	assert.Equal(t, 0, offset)
}

func TestParseDateTime_InvalidFormat(t *testing.T) {
	tests := []struct {
		name string
		date string
		time string
	}{
		{"letter before time", "34m2023-08-28", "A07:02:54.235"},
		{"garbage date", "yesterday", "07:02:54"},
		{"missing seconds", "2023-08-28", "07:02"},
		{"month out of range", "2023-13-28", "07:02:54"},
		{"empty tokens", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseDateTime(tt.date, tt.time)
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrInvalidTimestamp)

			var terr *TimestampError
			require.True(t, errors.As(err, &terr))
			assert.Equal(t, tt.date, terr.Date)
			assert.Equal(t, tt.time, terr.Time)
		})
	}
}

func TestFormatInstant(t *testing.T) {
	ts := time.Date(2023, 8, 28, 7, 2, 54, 0, time.UTC)
	assert.Equal(t, "2023-08-28 07:02:54 +00:00", FormatInstant(ts))
}

func TestNewRecord_EpochMatchesInstant(t *testing.T) {
	ts := time.Date(2023, 8, 28, 7, 2, 54, 0, time.UTC)
	rec := NewRecord(ts, 42)

	assert.Equal(t, ts.Unix(), rec.Epoch)
	assert.Equal(t, "2023-08-28 07:02:54 +00:00", rec.Text)
	assert.Equal(t, int64(42), rec.DurationMillis)
	assert.True(t, rec.Instant.Equal(ts))
}
