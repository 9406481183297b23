package parser

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDuration(t *testing.T) {
	tests := []struct {
		name    string
		token   string
		want    int64
		wantErr bool
	}{
		{name: "milliseconds", token: "12345.99ms", want: 12345},
		{name: "seconds", token: "1.123456789s", want: 1123},
		{name: "short seconds", token: "1.123s", want: 1123},
		{name: "whole seconds", token: "2s", want: 2000},
		{name: "integer milliseconds", token: "87ms", want: 87},
		{name: "sub millisecond truncates", token: "0.9ms", want: 0},
		{name: "no unit", token: "1.123456789", want: 0, wantErr: true},
		{name: "bad number before ms", token: "1.A123456789ms", want: 0, wantErr: true},
		{name: "bad number before s", token: "1.A123456789s", want: 0, wantErr: true},
		{name: "unit only", token: "s", want: 0, wantErr: true},
		{name: "ms only", token: "ms", want: 0, wantErr: true},
		{name: "empty", token: "", want: 0, wantErr: true},
		{name: "letters then s", token: "1.As", want: 0, wantErr: true},
		{name: "negative", token: "-5ms", want: 0, wantErr: true},
		{name: "not a number", token: "NaNms", want: 0, wantErr: true},
		{name: "infinite", token: "Infs", want: 0, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseDuration(tt.token)
			assert.Equal(t, tt.want, got)
			if tt.wantErr {
				require.Error(t, err)
				assert.ErrorIs(t, err, ErrInvalidDuration)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestParseDuration_ErrorNamesToken(t *testing.T) {
	_, err := ParseDuration("1.A123456789ms")
	require.Error(t, err)

	var derr *DurationError
	require.True(t, errors.As(err, &derr))
	assert.Equal(t, "1.A123456789ms", derr.Token)
	assert.Contains(t, err.Error(), "1.A123456789ms")
}

func TestParseDuration_MillisecondsBeforeSeconds(t *testing.T) {
	// "ms" wins even though the token also contains "s".
	got, err := ParseDuration("1500ms")
	require.NoError(t, err)
	assert.Equal(t, int64(1500), got)
}
