// Package coordinator owns the cross-component state of shamescroll: which
// site is being timed, the focus-session lifecycle, streak bookkeeping and
// the blocking rule set. Every input (tab change, timer tick, alarm, UI
// message) is an Event handled to completion under one lock, so state is
// mutated by a single logical thread even though events arrive on many
// goroutines.
package coordinator

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/joescharf/shamescroll/internal/blocking"
	"github.com/joescharf/shamescroll/internal/broadcast"
	"github.com/joescharf/shamescroll/internal/clock"
	"github.com/joescharf/shamescroll/internal/models"
	"github.com/joescharf/shamescroll/internal/notify"
	"github.com/joescharf/shamescroll/internal/store"
)

// Config holds the tunable durations and the blocking policy.
type Config struct {
	FocusDuration    time.Duration
	TickInterval     time.Duration
	WarningThreshold time.Duration
	DangerThreshold  time.Duration
	Policy           blocking.Policy
}

// DefaultConfig returns the standard 25 minute focus, 1 s tick and 30/60
// minute thresholds.
func DefaultConfig() Config {
	return Config{
		FocusDuration:    25 * time.Minute,
		TickInterval:     time.Second,
		WarningThreshold: 30 * time.Minute,
		DangerThreshold:  60 * time.Minute,
		Policy:           blocking.DefaultPolicy(),
	}
}

// Deps are the collaborators a Coordinator drives. Nil optional fields get
// defaults: system clock, real scheduler, discard publisher, slog.Default.
type Deps struct {
	Store     store.Store
	Rules     blocking.Engine
	Publisher broadcast.Publisher
	Notifier  notify.Notifier
	Clock     clock.Clock
	Scheduler clock.Scheduler
	Logger    *slog.Logger
}

// InitReason says why Init ran.
type InitReason string

const (
	InitInstall InitReason = "install"
	InitUpdate  InitReason = "update"
	InitStartup InitReason = "startup"
)

// state is everything the coordinator keeps in memory between store reads.
type state struct {
	focus      models.FocusState
	streak     models.StreakData
	activeHost string

	tickGen     uint64
	stopTick    func()
	alarmGen    uint64
	cancelAlarm func()

	warnings warningState
}

// warningState is persisted under store.SettingWarnings so a restart on
// the same day does not repeat a notification.
type warningState struct {
	Day      string                         `json:"day"`
	Notified map[string]models.WarningLevel `json:"notified"`
	Shown    bool                           `json:"shown"`
}

type handlerFunc func(c *Coordinator, ctx context.Context, ev Event) error

// Coordinator is the background coordinator. Create it with New and call
// Init before dispatching events.
type Coordinator struct {
	mu sync.Mutex

	cfg      Config
	store    store.Store
	rules    blocking.Engine
	pub      broadcast.Publisher
	notifier notify.Notifier
	clock    clock.Clock
	sched    clock.Scheduler
	logger   *slog.Logger

	handlers map[EventKind]handlerFunc
	st       state
}

// New creates a Coordinator. Store and Rules are required.
func New(cfg Config, deps Deps) (*Coordinator, error) {
	if deps.Store == nil {
		return nil, fmt.Errorf("coordinator: store is required")
	}
	if deps.Rules == nil {
		return nil, fmt.Errorf("coordinator: rules engine is required")
	}
	if deps.Publisher == nil {
		deps.Publisher = broadcast.Discard{}
	}
	if deps.Clock == nil {
		deps.Clock = clock.System{}
	}
	if deps.Scheduler == nil {
		deps.Scheduler = clock.RealScheduler{}
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.Notifier == nil {
		deps.Notifier = notify.NewHubNotifier(deps.Publisher, deps.Logger)
	}
	if cfg.TickInterval <= 0 {
		cfg.TickInterval = time.Second
	}

	c := &Coordinator{
		cfg:      cfg,
		store:    deps.Store,
		rules:    deps.Rules,
		pub:      deps.Publisher,
		notifier: deps.Notifier,
		clock:    deps.Clock,
		sched:    deps.Scheduler,
		logger:   deps.Logger,
	}
	c.handlers = map[EventKind]handlerFunc{
		EventTabActivated:       (*Coordinator).handleTab,
		EventTabUpdated:         (*Coordinator).handleTab,
		EventWindowFocusChanged: (*Coordinator).handleTab,
		EventTick:               (*Coordinator).handleTick,
		EventFocusAlarm:         (*Coordinator).handleFocusAlarm,
		EventStartFocus:         (*Coordinator).handleStartFocus,
		EventStopFocus:          (*Coordinator).handleStopFocus,
		EventDismissWarning:     (*Coordinator).handleDismissWarning,
	}
	return c, nil
}

// Dispatch runs the handler for ev to completion.
func (c *Coordinator) Dispatch(ctx context.Context, ev Event) error {
	h, ok := c.handlers[ev.Kind]
	if !ok {
		return fmt.Errorf("unknown event kind: %q", ev.Kind)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.expireFocus(ctx)
	return h(c, ctx, ev)
}

// expireFocus completes a session whose end time has passed while its
// alarm has not fired. Timers stall while the machine sleeps, so every
// entry point checks the wall clock.
func (c *Coordinator) expireFocus(ctx context.Context) {
	if !c.st.focus.Expired(c.clock.Now()) {
		return
	}
	c.logger.Info("focus session passed its end time, completing", "mission", c.st.focus.Mission, "end", c.st.focus.EndTime)
	if err := c.stopFocus(ctx, true); err != nil {
		c.logger.Error("complete expired focus session", "error", err)
	}
}

// dispatchAsync is the entry point for timer callbacks.
func (c *Coordinator) dispatchAsync(ev Event) {
	if err := c.Dispatch(context.Background(), ev); err != nil {
		c.logger.Error("event failed", "kind", ev.Kind, "error", err)
	}
}

// Init rehydrates state from the store: day rollover, focus and streak
// load, finalization of a focus session whose end time passed while the
// process was down, and a rule set matching the loaded focus state.
func (c *Coordinator) Init(ctx context.Context, reason InitReason) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.clock.Now()
	if err := c.rolloverCheck(ctx, clock.DayKey(now)); err != nil {
		c.logger.Error("daily rollover failed", "error", err)
	}

	focus, err := c.store.GetFocusState(ctx)
	if err != nil {
		return fmt.Errorf("load focus state: %w", err)
	}
	streak, err := c.store.GetStreak(ctx)
	if err != nil {
		return fmt.Errorf("load streak: %w", err)
	}
	c.st.focus = focus
	c.st.streak = streak

	c.loadWarnings(ctx, clock.DayKey(now))

	// No tick survives a restart, so a persisted host is stale.
	if host, err := c.store.GetActiveHost(ctx); err == nil && host != "" {
		if err := c.store.SetActiveHost(ctx, ""); err != nil {
			c.logger.Warn("clear stale active host", "error", err)
		}
	}

	switch {
	case focus.IsActive && focus.Expired(now):
		c.logger.Info("finalizing focus session that ended while stopped", "mission", focus.Mission, "end", focus.EndTime)
		if err := c.stopFocus(ctx, true); err != nil {
			return err
		}
	case focus.IsActive:
		if err := c.installRules(ctx); err != nil {
			c.logger.Error("install blocking rules", "error", err)
		}
		c.armAlarm(focus.Remaining(now))
	default:
		if err := c.clearRules(ctx); err != nil {
			c.logger.Error("clear blocking rules", "error", err)
		}
	}

	if reason == InitInstall {
		if v, _ := c.store.GetSetting(ctx, store.SettingInstalledAt); v == "" {
			_ = c.store.SetSetting(ctx, store.SettingInstalledAt, now.UTC().Format(time.RFC3339))
		}
	}
	_ = c.store.SetSetting(ctx, store.SettingLastInitCause, string(reason))

	c.logger.Info("coordinator initialized", "reason", reason, "focus_active", c.st.focus.IsActive, "streak", c.st.streak.Current)
	return nil
}

// Close stops the tick and the alarm. Focus state stays persisted so the
// next Init re-arms or finalizes it.
func (c *Coordinator) Close(ctx context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stopTracking(ctx)
	c.disarmAlarm()
}

// SetThresholds updates the warning and danger thresholds.
func (c *Coordinator) SetThresholds(warn, danger time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cfg.WarningThreshold = warn
	c.cfg.DangerThreshold = danger
}

// FocusState returns a snapshot of the focus state.
func (c *Coordinator) FocusState() models.FocusState {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.expireFocus(context.Background())
	return c.st.focus
}

// StreakData returns a snapshot of the streak.
func (c *Coordinator) StreakData() models.StreakData {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.expireFocus(context.Background())
	return c.st.streak
}

// DismissWarning acknowledges the on-page warning so the next threshold
// crossing can notify again.
func (c *Coordinator) DismissWarning(ctx context.Context) error {
	return c.Dispatch(ctx, Event{Kind: EventDismissWarning})
}

// CurrentStatus reports what is being tracked and for how long today.
func (c *Coordinator) CurrentStatus(ctx context.Context) (models.TrackingStatus, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.expireFocus(ctx)

	today := clock.DayKey(c.clock.Now())
	status := models.TrackingStatus{WarningLevel: models.WarningNormal, WarningShown: c.warningsFor(today).Shown}
	if c.st.activeHost == "" {
		return status, nil
	}
	status.IsTracking = true
	status.Host = c.st.activeHost

	snap, err := c.store.GetDaySnapshot(ctx, models.SlotToday)
	if err != nil {
		return status, fmt.Errorf("read today: %w", err)
	}
	if snap != nil && snap.Date == today {
		status.ElapsedSeconds = snap.Sites[c.st.activeHost]
	}
	status.WarningLevel = models.LevelFor(status.ElapsedSeconds, c.cfg.WarningThreshold, c.cfg.DangerThreshold)
	return status, nil
}

func (c *Coordinator) publishFocus() {
	c.pub.Publish(broadcast.Message{
		Type:    broadcast.TypeFocusStateUpdate,
		Payload: map[string]any{"focusState": c.st.focus},
	})
}
