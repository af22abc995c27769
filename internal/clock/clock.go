package clock

import (
	"sync"
	"time"
)

// DayKeyLayout is the calendar-day bucket format.
const DayKeyLayout = "2006-01-02"

// DayKey returns the "YYYY-MM-DD" key for t in t's location.
func DayKey(t time.Time) string {
	return t.Format(DayKeyLayout)
}

// ValidDayKey reports whether key parses as a calendar day.
func ValidDayKey(key string) bool {
	if len(key) != len(DayKeyLayout) {
		return false
	}
	_, err := time.Parse(DayKeyLayout, key)
	return err == nil
}

// PreviousDayKey returns the day before key. Invalid keys yield "".
func PreviousDayKey(key string) string {
	d, err := time.Parse(DayKeyLayout, key)
	if err != nil {
		return ""
	}
	return d.AddDate(0, 0, -1).Format(DayKeyLayout)
}

// Clock supplies wall-clock time.
type Clock interface {
	Now() time.Time
}

// System is the process wall clock.
type System struct{}

func (System) Now() time.Time { return time.Now() }

// Scheduler arms recurring and one-shot callbacks. Callbacks run on their
// own goroutine; the returned func cancels further invocations and never
// blocks waiting for a running callback.
type Scheduler interface {
	Every(d time.Duration, fn func()) (stop func())
	After(d time.Duration, fn func()) (cancel func())
}

// RealScheduler is a Scheduler backed by time.Ticker and time.AfterFunc.
type RealScheduler struct{}

func (RealScheduler) Every(d time.Duration, fn func()) func() {
	ticker := time.NewTicker(d)
	done := make(chan struct{})
	go func() {
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				fn()
			}
		}
	}()
	var once sync.Once
	return func() {
		once.Do(func() {
			ticker.Stop()
			close(done)
		})
	}
}

func (RealScheduler) After(d time.Duration, fn func()) func() {
	t := time.AfterFunc(d, fn)
	return func() { t.Stop() }
}
