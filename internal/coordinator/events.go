package coordinator

import (
	"context"

	"github.com/joescharf/shamescroll/internal/sites"
)

// EventKind keys the dispatch table.
type EventKind string

const (
	EventTabActivated       EventKind = "tab_activated"
	EventTabUpdated         EventKind = "tab_updated"
	EventWindowFocusChanged EventKind = "window_focus_changed"
	EventTick               EventKind = "tick"
	EventFocusAlarm         EventKind = "focus_alarm"
	EventStartFocus         EventKind = "start_focus"
	EventStopFocus          EventKind = "stop_focus"
	EventDismissWarning     EventKind = "dismiss_warning"
)

// Event is one input to the coordinator. URL is set for tab events,
// Mission for start_focus, Generation for timer events.
type Event struct {
	Kind       EventKind
	URL        string
	Mission    string
	Generation uint64
}

// IsTabEvent reports whether k is one of the tab-lifecycle kinds.
func (k EventKind) IsTabEvent() bool {
	return k == EventTabActivated || k == EventTabUpdated || k == EventWindowFocusChanged
}

// handleTab resolves the active tab's URL into a tracking decision. Focus
// mode suppresses tracking regardless of URL.
func (c *Coordinator) handleTab(ctx context.Context, ev Event) error {
	if c.st.focus.IsActive || ev.URL == "" {
		c.stopTracking(ctx)
		return nil
	}
	site, ok := sites.MatchURL(ev.URL)
	if !ok {
		c.stopTracking(ctx)
		return nil
	}
	c.startTracking(ctx, site)
	return nil
}

func (c *Coordinator) handleStartFocus(ctx context.Context, ev Event) error {
	return c.startFocus(ctx, ev.Mission)
}

func (c *Coordinator) handleStopFocus(ctx context.Context, _ Event) error {
	return c.stopFocus(ctx, false)
}

// handleFocusAlarm completes the session the alarm was armed for. Alarms
// from an earlier session are ignored.
func (c *Coordinator) handleFocusAlarm(ctx context.Context, ev Event) error {
	if ev.Generation != c.st.alarmGen || !c.st.focus.IsActive {
		return nil
	}
	c.st.cancelAlarm = nil
	return c.stopFocus(ctx, true)
}

func (c *Coordinator) handleDismissWarning(ctx context.Context, _ Event) error {
	if !c.st.warnings.Shown {
		return nil
	}
	c.st.warnings.Shown = false
	c.saveWarnings(ctx)
	return nil
}
