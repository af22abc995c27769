package output

import (
	"fmt"
	"strings"
	"time"
)

// FormatClock renders seconds as the HH:MM:SS overlay timer.
func FormatClock(totalSeconds int64) string {
	if totalSeconds < 0 {
		totalSeconds = 0
	}
	return fmt.Sprintf("%02d:%02d:%02d", totalSeconds/3600, (totalSeconds%3600)/60, totalSeconds%60)
}

// FormatDuration renders seconds compactly, e.g. "45s", "2m", "1h 2m 3s".
// Zero components are dropped; negatives render as "0s".
func FormatDuration(totalSeconds int64) string {
	if totalSeconds <= 0 {
		return "0s"
	}
	if totalSeconds < 60 {
		return fmt.Sprintf("%ds", totalSeconds)
	}
	h := totalSeconds / 3600
	m := (totalSeconds % 3600) / 60
	s := totalSeconds % 60

	var parts []string
	if h > 0 {
		parts = append(parts, fmt.Sprintf("%dh", h))
	}
	if m > 0 {
		parts = append(parts, fmt.Sprintf("%dm", m))
	}
	if s > 0 || len(parts) == 0 {
		parts = append(parts, fmt.Sprintf("%ds", s))
	}
	return strings.Join(parts, " ")
}

// FormatCountdown renders a remaining duration as MM:SS, rounding partial
// seconds up so a running countdown never shows 00:00 early.
func FormatCountdown(d time.Duration) string {
	if d <= 0 {
		return "00:00"
	}
	secs := int64((d + time.Second - 1) / time.Second)
	return fmt.Sprintf("%02d:%02d", secs/60, secs%60)
}
