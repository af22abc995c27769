package output

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFormatClock(t *testing.T) {
	assert.Equal(t, "00:00:00", FormatClock(0))
	assert.Equal(t, "00:30:00", FormatClock(1800))
	assert.Equal(t, "01:01:01", FormatClock(3661))
	assert.Equal(t, "00:00:00", FormatClock(-5))
}

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		in   int64
		want string
	}{
		{-1, "0s"},
		{0, "0s"},
		{45, "45s"},
		{60, "1m"},
		{125, "2m 5s"},
		{3600, "1h"},
		{3723, "1h 2m 3s"},
		{7203, "2h 3s"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, FormatDuration(tt.in), "FormatDuration(%d)", tt.in)
	}
}

func TestFormatCountdown(t *testing.T) {
	assert.Equal(t, "25:00", FormatCountdown(25*time.Minute))
	assert.Equal(t, "01:30", FormatCountdown(90*time.Second))
	assert.Equal(t, "00:01", FormatCountdown(200*time.Millisecond))
	assert.Equal(t, "00:00", FormatCountdown(0))
	assert.Equal(t, "00:00", FormatCountdown(-time.Second))
}
