package coordinator

import (
	"context"
	"fmt"
	"time"

	"github.com/joescharf/shamescroll/internal/blocking"
	"github.com/joescharf/shamescroll/internal/clock"
	"github.com/joescharf/shamescroll/internal/models"
	"github.com/joescharf/shamescroll/internal/notify"
	"github.com/joescharf/shamescroll/internal/sites"
)

// startFocus begins a focus session. Starting while a session is active
// does nothing.
func (c *Coordinator) startFocus(ctx context.Context, mission string) error {
	if c.st.focus.IsActive {
		return nil
	}
	now := c.clock.Now()
	next := models.FocusState{
		IsActive:  true,
		Mission:   mission,
		StartTime: now,
		EndTime:   now.Add(c.cfg.FocusDuration),
	}
	if err := c.store.SaveFocusState(ctx, next); err != nil {
		return fmt.Errorf("save focus state: %w", err)
	}
	c.st.focus = next

	c.stopTracking(ctx)
	if err := c.installRules(ctx); err != nil {
		c.logger.Error("install blocking rules", "error", err)
	}
	c.armAlarm(c.cfg.FocusDuration)
	c.publishFocus()

	minutes := int(c.cfg.FocusDuration.Round(time.Minute) / time.Minute)
	c.notifier.Notify(ctx, notify.Notification{
		Kind:    notify.KindFocusStarted,
		Title:   "Focus mode on",
		Message: fmt.Sprintf("%d minutes on: %s", minutes, mission),
	})
	c.logger.Info("focus started", "mission", mission, "end", next.EndTime)
	return nil
}

// stopFocus ends the active session. completed is true when the session
// ran its full duration; only then is a mission recorded and the streak
// advanced. Stopping while idle does nothing.
func (c *Coordinator) stopFocus(ctx context.Context, completed bool) error {
	if !c.st.focus.IsActive {
		return nil
	}
	prev := c.st.focus
	if err := c.store.SaveFocusState(ctx, models.IdleFocusState()); err != nil {
		return fmt.Errorf("save focus state: %w", err)
	}
	c.st.focus = models.IdleFocusState()

	if err := c.clearRules(ctx); err != nil {
		c.logger.Error("clear blocking rules", "error", err)
	}
	c.disarmAlarm()

	if completed {
		if err := c.recordCompletion(ctx, prev); err != nil {
			c.logger.Error("record completed mission", "mission", prev.Mission, "error", err)
		}
		c.notifier.Notify(ctx, notify.Notification{
			Kind:    notify.KindMissionComplete,
			Title:   "Mission Complete!",
			Message: fmt.Sprintf("Great work on: %s", prev.Mission),
		})
	} else {
		c.notifier.Notify(ctx, notify.Notification{
			Kind:    notify.KindEndedEarly,
			Title:   "Focus session ended",
			Message: "Session ended early. Try again when you're ready.",
		})
	}
	c.publishFocus()
	c.logger.Info("focus stopped", "mission", prev.Mission, "completed", completed)
	return nil
}

// recordCompletion appends the mission to the day it finished on and
// advances the streak. A session finalized after a restart is dated at its
// end time, not at the restart.
func (c *Coordinator) recordCompletion(ctx context.Context, f models.FocusState) error {
	end := c.clock.Now()
	if !f.EndTime.IsZero() && f.EndTime.Before(end) {
		end = f.EndTime.In(end.Location())
	}
	day := clock.DayKey(end)
	m := &models.CompletedMission{
		Text:      f.Mission,
		Duration:  end.Sub(f.StartTime).Milliseconds(),
		Timestamp: end,
	}
	if m.Duration < 0 {
		m.Duration = 0
	}
	if _, err := c.store.AddCompletedMission(ctx, day, m); err != nil {
		return err
	}

	// Re-read so the update applies to the latest persisted value.
	prev, err := c.store.GetStreak(ctx)
	if err != nil {
		return fmt.Errorf("load streak: %w", err)
	}
	next, changed := NextStreak(prev, day)
	c.st.streak = next
	if !changed {
		return nil
	}
	if err := c.store.SaveStreak(ctx, next); err != nil {
		return fmt.Errorf("save streak: %w", err)
	}
	return nil
}

// installRules replaces whatever the engine holds with one rule per
// tracked site.
func (c *Coordinator) installRules(ctx context.Context) error {
	existing, err := c.rules.Rules(ctx)
	if err != nil {
		return err
	}
	return c.rules.Update(ctx, blocking.IDs(existing), blocking.RulesFor(sites.Tracked(), c.cfg.Policy))
}

// clearRules removes every rule id the engine currently reports, not just
// the ids this process installed.
func (c *Coordinator) clearRules(ctx context.Context) error {
	existing, err := c.rules.Rules(ctx)
	if err != nil {
		return err
	}
	if len(existing) == 0 {
		return nil
	}
	return c.rules.Update(ctx, blocking.IDs(existing), nil)
}

func (c *Coordinator) armAlarm(d time.Duration) {
	c.disarmAlarm()
	gen := c.st.alarmGen
	c.st.cancelAlarm = c.sched.After(d, func() {
		c.dispatchAsync(Event{Kind: EventFocusAlarm, Generation: gen})
	})
}

func (c *Coordinator) disarmAlarm() {
	if c.st.cancelAlarm != nil {
		c.st.cancelAlarm()
		c.st.cancelAlarm = nil
	}
	c.st.alarmGen++
}
