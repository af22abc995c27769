package coordinator

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/joescharf/shamescroll/internal/broadcast"
	"github.com/joescharf/shamescroll/internal/clock"
	"github.com/joescharf/shamescroll/internal/models"
	"github.com/joescharf/shamescroll/internal/notify"
	"github.com/joescharf/shamescroll/internal/output"
	"github.com/joescharf/shamescroll/internal/store"
)

// startTracking begins timing host. It is a no-op when host is already
// being timed; any other session is stopped first, so at most one tick
// timer is ever armed.
func (c *Coordinator) startTracking(ctx context.Context, host string) {
	if c.st.activeHost == host && c.st.stopTick != nil {
		return
	}
	c.stopTracking(ctx)

	if err := c.store.SetActiveHost(ctx, host); err != nil {
		c.logger.Error("persist active host", "host", host, "error", err)
		return
	}
	c.st.activeHost = host
	c.st.tickGen++
	gen := c.st.tickGen
	c.st.stopTick = c.sched.Every(c.cfg.TickInterval, func() {
		c.dispatchAsync(Event{Kind: EventTick, Generation: gen})
	})
	c.logger.Debug("tracking started", "host", host)
}

// stopTracking cancels the tick and clears the active host. Safe to call
// when nothing is tracked.
func (c *Coordinator) stopTracking(ctx context.Context) {
	if c.st.stopTick != nil {
		c.st.stopTick()
		c.st.stopTick = nil
	}
	// Invalidate ticks already queued behind the lock.
	c.st.tickGen++

	if c.st.activeHost == "" {
		return
	}
	host := c.st.activeHost
	c.st.activeHost = ""
	if err := c.store.SetActiveHost(ctx, ""); err != nil {
		c.logger.Error("clear active host", "error", err)
	}
	c.publishShame(host, 0, false, models.WarningNormal)
	c.logger.Debug("tracking stopped", "host", host)
}

// handleTick adds one second to the active host. A store failure stops
// tracking instead of continuing on inconsistent state.
func (c *Coordinator) handleTick(ctx context.Context, ev Event) error {
	if ev.Generation != c.st.tickGen || c.st.activeHost == "" {
		return nil
	}
	host := c.st.activeHost
	today := clock.DayKey(c.clock.Now())

	elapsed, err := c.recordTick(ctx, today, host)
	if err != nil {
		c.logger.Error("tracking tick failed, stopping", "host", host, "error", err)
		c.stopTracking(ctx)
		return nil
	}

	level := models.LevelFor(elapsed, c.cfg.WarningThreshold, c.cfg.DangerThreshold)
	c.publishShame(host, elapsed, true, level)
	c.checkWarning(ctx, today, host, level)
	return nil
}

// recordTick re-reads today from the store, starting a fresh snapshot when
// the stored one is stale or malformed, and persists the increment together
// with the day's scroll time.
func (c *Coordinator) recordTick(ctx context.Context, today, host string) (int64, error) {
	if err := c.rolloverCheck(ctx, today); err != nil {
		return 0, fmt.Errorf("rollover: %w", err)
	}
	snap, err := c.store.GetDaySnapshot(ctx, models.SlotToday)
	if err != nil {
		return 0, fmt.Errorf("read today: %w", err)
	}
	if snap == nil || snap.Date != today {
		snap = models.NewDaySnapshot(today)
	}
	snap.Sites[host]++
	if err := c.store.SaveTick(ctx, snap); err != nil {
		return 0, fmt.Errorf("save tick: %w", err)
	}
	return snap.Sites[host], nil
}

// checkWarning raises a one-shot notification when host newly crosses a
// threshold. While a warning is shown and not dismissed further
// notifications are held back; a new day resets everything.
func (c *Coordinator) checkWarning(ctx context.Context, today, host string, level models.WarningLevel) {
	w := c.warningsFor(today)
	if level.Rank() <= w.Notified[host].Rank() || w.Shown {
		return
	}
	w.Notified[host] = level
	w.Shown = true
	c.saveWarnings(ctx)

	n := notify.Notification{Kind: notify.KindWarning, Title: "Time check"}
	n.Message = fmt.Sprintf("You've spent %s on %s today.", formatThreshold(c.cfg.WarningThreshold), host)
	if level == models.WarningDanger {
		n.Kind = notify.KindDanger
		n.Title = "Doomscroll alert"
		n.Message = fmt.Sprintf("Over %s on %s today. Close the tab?", formatThreshold(c.cfg.DangerThreshold), host)
	}
	c.notifier.Notify(ctx, n)
}

// warningsFor returns the warning state for today, resetting it when it
// belongs to an earlier day.
func (c *Coordinator) warningsFor(today string) *warningState {
	w := &c.st.warnings
	if w.Day != today || w.Notified == nil {
		*w = warningState{Day: today, Notified: map[string]models.WarningLevel{}}
	}
	return w
}

func (c *Coordinator) loadWarnings(ctx context.Context, today string) {
	raw, err := c.store.GetSetting(ctx, store.SettingWarnings)
	if err != nil {
		c.logger.Warn("load warning state", "error", err)
		return
	}
	var w warningState
	if raw == "" || json.Unmarshal([]byte(raw), &w) != nil || w.Day != today {
		return
	}
	if w.Notified == nil {
		w.Notified = map[string]models.WarningLevel{}
	}
	c.st.warnings = w
}

func (c *Coordinator) saveWarnings(ctx context.Context) {
	data, err := json.Marshal(c.st.warnings)
	if err == nil {
		err = c.store.SetSetting(ctx, store.SettingWarnings, string(data))
	}
	if err != nil {
		c.logger.Warn("persist warning state", "error", err)
	}
}

// formatThreshold renders a threshold as "30m" or "1h 30m".
func formatThreshold(d time.Duration) string {
	return output.FormatDuration(int64(d / time.Second))
}

func (c *Coordinator) publishShame(host string, elapsed int64, tracking bool, level models.WarningLevel) {
	c.pub.Publish(broadcast.Message{
		Type: broadcast.TypeShameUpdate,
		Payload: map[string]any{
			"host":         host,
			"time":         elapsed,
			"isTracking":   tracking,
			"warningLevel": string(level),
		},
	})
}
