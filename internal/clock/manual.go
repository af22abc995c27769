package clock

import (
	"sort"
	"sync"
	"time"
)

// ManualClock is a Clock that only moves when told to.
type ManualClock struct {
	mu  sync.Mutex
	now time.Time
}

// NewManualClock returns a ManualClock set to t.
func NewManualClock(t time.Time) *ManualClock {
	return &ManualClock{now: t}
}

func (m *ManualClock) Now() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.now
}

// Advance moves the clock forward by d.
func (m *ManualClock) Advance(d time.Duration) {
	m.mu.Lock()
	m.now = m.now.Add(d)
	m.mu.Unlock()
}

// Set moves the clock to t.
func (m *ManualClock) Set(t time.Time) {
	m.mu.Lock()
	m.now = t
	m.mu.Unlock()
}

// ManualScheduler records armed callbacks and runs them only when fired.
type ManualScheduler struct {
	mu      sync.Mutex
	nextID  int
	entries map[int]manualEntry
}

type manualEntry struct {
	every time.Duration
	after time.Duration
	fn    func()
}

// NewManualScheduler returns an empty ManualScheduler.
func NewManualScheduler() *ManualScheduler {
	return &ManualScheduler{entries: make(map[int]manualEntry)}
}

func (m *ManualScheduler) add(e manualEntry) func() {
	m.mu.Lock()
	id := m.nextID
	m.nextID++
	m.entries[id] = e
	m.mu.Unlock()
	return func() {
		m.mu.Lock()
		delete(m.entries, id)
		m.mu.Unlock()
	}
}

func (m *ManualScheduler) Every(d time.Duration, fn func()) func() {
	return m.add(manualEntry{every: d, fn: fn})
}

func (m *ManualScheduler) After(d time.Duration, fn func()) func() {
	return m.add(manualEntry{after: d, fn: fn})
}

// Recurring returns how many recurring callbacks are armed.
func (m *ManualScheduler) Recurring() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, e := range m.entries {
		if e.every > 0 {
			n++
		}
	}
	return n
}

// Pending returns the delays of armed one-shot callbacks.
func (m *ManualScheduler) Pending() []time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []time.Duration
	for _, e := range m.entries {
		if e.every == 0 {
			out = append(out, e.after)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Tick runs every armed recurring callback once.
func (m *ManualScheduler) Tick() {
	for _, fn := range m.take(true) {
		fn()
	}
}

// FireAfter runs and disarms every armed one-shot callback.
func (m *ManualScheduler) FireAfter() {
	for _, fn := range m.take(false) {
		fn()
	}
}

func (m *ManualScheduler) take(recurring bool) []func() {
	m.mu.Lock()
	defer m.mu.Unlock()
	ids := make([]int, 0, len(m.entries))
	for id, e := range m.entries {
		if (e.every > 0) == recurring {
			ids = append(ids, id)
		}
	}
	sort.Ints(ids)
	fns := make([]func(), 0, len(ids))
	for _, id := range ids {
		fns = append(fns, m.entries[id].fn)
		if !recurring {
			delete(m.entries, id)
		}
	}
	return fns
}
