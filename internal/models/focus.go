package models

import (
	"encoding/json"
	"time"
)

// FocusState is the persisted focus-session record. Timestamps travel as
// epoch milliseconds on the wire, 0 when unset.
type FocusState struct {
	IsActive  bool
	Mission   string
	StartTime time.Time
	EndTime   time.Time
}

// IdleFocusState returns the inactive state.
func IdleFocusState() FocusState {
	return FocusState{}
}

// Remaining returns the time left before EndTime, never negative.
func (f FocusState) Remaining(now time.Time) time.Duration {
	if !f.IsActive || f.EndTime.IsZero() {
		return 0
	}
	if d := f.EndTime.Sub(now); d > 0 {
		return d
	}
	return 0
}

// Expired reports whether an active session has reached its end time.
func (f FocusState) Expired(now time.Time) bool {
	return f.IsActive && !now.Before(f.EndTime)
}

type focusStateJSON struct {
	IsActive  bool   `json:"isActive"`
	EndTime   int64  `json:"endTime"`
	Mission   string `json:"mission"`
	StartTime int64  `json:"startTime,omitempty"`
}

func toMillis(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixMilli()
}

func fromMillis(ms int64) time.Time {
	if ms <= 0 {
		return time.Time{}
	}
	return time.UnixMilli(ms)
}

func (f FocusState) MarshalJSON() ([]byte, error) {
	return json.Marshal(focusStateJSON{
		IsActive:  f.IsActive,
		EndTime:   toMillis(f.EndTime),
		Mission:   f.Mission,
		StartTime: toMillis(f.StartTime),
	})
}

func (f *FocusState) UnmarshalJSON(data []byte) error {
	var raw focusStateJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*f = FocusState{
		IsActive:  raw.IsActive,
		Mission:   raw.Mission,
		StartTime: fromMillis(raw.StartTime),
		EndTime:   fromMillis(raw.EndTime),
	}
	return nil
}

// StreakData tracks consecutive days with a completed focus session.
type StreakData struct {
	Current       int    `json:"current"`
	Longest       int    `json:"longest"`
	LastFocusDate string `json:"lastFocusDate"`
}
