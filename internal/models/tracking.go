package models

import "time"

// WarningLevel classifies elapsed time on a tracked site.
type WarningLevel string

const (
	WarningNormal  WarningLevel = "normal"
	WarningWarning WarningLevel = "warning"
	WarningDanger  WarningLevel = "danger"
)

// Rank orders levels so crossings can be compared.
func (l WarningLevel) Rank() int {
	switch l {
	case WarningWarning:
		return 1
	case WarningDanger:
		return 2
	default:
		return 0
	}
}

// LevelFor returns the level for elapsed seconds given the two thresholds.
func LevelFor(elapsedSeconds int64, warn, danger time.Duration) WarningLevel {
	elapsed := time.Duration(elapsedSeconds) * time.Second
	switch {
	case danger > 0 && elapsed >= danger:
		return WarningDanger
	case warn > 0 && elapsed >= warn:
		return WarningWarning
	default:
		return WarningNormal
	}
}

// TrackingStatus answers GET_CURRENT_STATUS.
type TrackingStatus struct {
	IsTracking     bool         `json:"isTracking"`
	Host           string       `json:"host,omitempty"`
	ElapsedSeconds int64        `json:"elapsedSeconds"`
	WarningLevel   WarningLevel `json:"warningLevel"`
	WarningShown   bool         `json:"warningShown"`
}
