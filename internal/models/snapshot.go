package models

import "github.com/joescharf/shamescroll/internal/clock"

// SnapshotSlot names one of the two rolling day snapshots.
type SnapshotSlot string

const (
	SlotToday     SnapshotSlot = "today"
	SlotYesterday SnapshotSlot = "yesterday"
)

// NoDate marks a yesterday snapshot archived before any day was recorded.
const NoDate = "none"

// DaySnapshot holds per-site seconds for one calendar day.
type DaySnapshot struct {
	Date  string           `json:"date"`
	Sites map[string]int64 `json:"sites"`
}

// NewDaySnapshot returns an empty snapshot for date.
func NewDaySnapshot(date string) *DaySnapshot {
	return &DaySnapshot{Date: date, Sites: map[string]int64{}}
}

// Valid reports whether the snapshot has a real day key and a site map
// without negative counters.
func (d *DaySnapshot) Valid() bool {
	if d == nil || d.Sites == nil || !clock.ValidDayKey(d.Date) {
		return false
	}
	for _, v := range d.Sites {
		if v < 0 {
			return false
		}
	}
	return true
}

// Total returns the sum of all site counters.
func (d *DaySnapshot) Total() int64 {
	if d == nil {
		return 0
	}
	var n int64
	for _, v := range d.Sites {
		n += v
	}
	return n
}
