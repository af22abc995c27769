package store

import (
	"context"
	"errors"

	"github.com/joescharf/shamescroll/internal/models"
)

// ErrNotFound is returned when a keyed record does not exist.
var ErrNotFound = errors.New("not found")

// Setting keys stored in the settings table.
const (
	SettingActiveHost    = "activeHost"
	SettingTimerHidden   = "isTimerHidden"
	SettingInstalledAt   = "installedAt"
	SettingLastInitCause = "lastInitReason"
	SettingVersion       = "version"
	SettingWarnings      = "warningState"
)

// Store defines the persistence interface for shamescroll.
type Store interface {
	// Day snapshots. GetDaySnapshot returns nil for a missing or malformed
	// snapshot so callers can treat it as absent.
	GetDaySnapshot(ctx context.Context, slot models.SnapshotSlot) (*models.DaySnapshot, error)
	SaveDaySnapshot(ctx context.Context, slot models.SnapshotSlot, snap *models.DaySnapshot) error
	RotateDaySnapshots(ctx context.Context, today *models.DaySnapshot) error

	// Daily records
	GetDailyRecord(ctx context.Context, date string) (*models.DailyRecord, error)
	ListDailyRecords(ctx context.Context, since string) ([]*models.DailyRecord, error)
	SaveTick(ctx context.Context, today *models.DaySnapshot) error
	AddCompletedMission(ctx context.Context, date string, m *models.CompletedMission) (*models.DailyRecord, error)

	// Focus and streak
	GetFocusState(ctx context.Context) (models.FocusState, error)
	SaveFocusState(ctx context.Context, f models.FocusState) error
	GetStreak(ctx context.Context) (models.StreakData, error)
	SaveStreak(ctx context.Context, s models.StreakData) error

	// Settings
	GetActiveHost(ctx context.Context) (string, error)
	SetActiveHost(ctx context.Context, host string) error
	GetSetting(ctx context.Context, key string) (string, error)
	SetSetting(ctx context.Context, key, value string) error

	// Blocking rules
	ListBlockRules(ctx context.Context) ([]models.BlockRule, error)
	UpdateBlockRules(ctx context.Context, removeIDs []int, add []models.BlockRule) error

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}
