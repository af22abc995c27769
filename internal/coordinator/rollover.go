package coordinator

import (
	"context"

	"github.com/joescharf/shamescroll/internal/clock"
	"github.com/joescharf/shamescroll/internal/models"
)

// rolloverCheck archives the stored today as yesterday when its date key is
// not today. Running it again on the same day changes nothing.
func (c *Coordinator) rolloverCheck(ctx context.Context, today string) error {
	snap, err := c.store.GetDaySnapshot(ctx, models.SlotToday)
	if err != nil {
		return err
	}
	if snap != nil && snap.Date == today {
		return nil
	}
	c.logger.Info("day rollover", "today", today)
	return c.store.RotateDaySnapshots(ctx, models.NewDaySnapshot(today))
}

// NextStreak applies one focus completion on day today to prev. It reports
// false, leaving prev unchanged, when today was already counted.
func NextStreak(prev models.StreakData, today string) (models.StreakData, bool) {
	if prev.LastFocusDate == today {
		return prev, false
	}
	next := prev
	if prev.Current == 0 || prev.LastFocusDate == clock.PreviousDayKey(today) {
		next.Current = prev.Current + 1
	} else {
		next.Current = 1
	}
	if next.Current > next.Longest {
		next.Longest = next.Current
	}
	next.LastFocusDate = today
	return next, true
}
