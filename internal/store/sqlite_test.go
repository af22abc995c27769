package store

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joescharf/shamescroll/internal/models"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "test.db")

	s, err := NewSQLiteStore(dbPath)
	require.NoError(t, err)

	err = s.Migrate(context.Background())
	require.NoError(t, err)

	t.Cleanup(func() { s.Close() })
	return s
}

func TestNewSQLiteStore_CreatesDirectory(t *testing.T) {
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "subdir", "test.db")

	s, err := NewSQLiteStore(dbPath)
	require.NoError(t, err)
	defer s.Close()

	_, err = os.Stat(filepath.Join(dir, "subdir"))
	assert.NoError(t, err, "should create parent directory")
}

func TestMigrate_Idempotent(t *testing.T) {
	s := newTestStore(t)
	assert.NoError(t, s.Migrate(context.Background()))
}

// --- Day snapshots ---

func TestDaySnapshot_MissingIsNil(t *testing.T) {
	s := newTestStore(t)
	snap, err := s.GetDaySnapshot(context.Background(), models.SlotToday)
	require.NoError(t, err)
	assert.Nil(t, snap)
}

func TestDaySnapshot_SaveAndGet(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	snap := &models.DaySnapshot{Date: "2026-04-02", Sites: map[string]int64{"reddit.com": 42}}
	require.NoError(t, s.SaveDaySnapshot(ctx, models.SlotToday, snap))

	got, err := s.GetDaySnapshot(ctx, models.SlotToday)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "2026-04-02", got.Date)
	assert.Equal(t, int64(42), got.Sites["reddit.com"])
}

func TestDaySnapshot_MalformedIsRepairedAsAbsent(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO day_snapshots (slot, date, sites_json, updated_at) VALUES ('today', 'not-a-date', '{}', ?)`, time.Now())
	require.NoError(t, err)
	got, err := s.GetDaySnapshot(ctx, models.SlotToday)
	require.NoError(t, err)
	assert.Nil(t, got)

	_, err = s.db.ExecContext(ctx, `UPDATE day_snapshots SET date = '2026-04-02', sites_json = '[1,2'`)
	require.NoError(t, err)
	got, err = s.GetDaySnapshot(ctx, models.SlotToday)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestRotateDaySnapshots(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	// First rotation archives a "none" placeholder.
	require.NoError(t, s.RotateDaySnapshots(ctx, models.NewDaySnapshot("2026-04-01")))
	y, err := s.GetDaySnapshot(ctx, models.SlotYesterday)
	require.NoError(t, err)
	require.NotNil(t, y)
	assert.Equal(t, models.NoDate, y.Date)

	require.NoError(t, s.SaveTick(ctx, &models.DaySnapshot{Date: "2026-04-01", Sites: map[string]int64{"x.com": 5}}))
	require.NoError(t, s.RotateDaySnapshots(ctx, models.NewDaySnapshot("2026-04-02")))

	y, err = s.GetDaySnapshot(ctx, models.SlotYesterday)
	require.NoError(t, err)
	assert.Equal(t, "2026-04-01", y.Date)
	assert.Equal(t, int64(5), y.Sites["x.com"])

	today, err := s.GetDaySnapshot(ctx, models.SlotToday)
	require.NoError(t, err)
	assert.Equal(t, "2026-04-02", today.Date)
	assert.Empty(t, today.Sites)
}

// --- Daily records ---

func TestSaveTick_IncrementsScrollTime(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	snap := models.NewDaySnapshot("2026-04-02")
	for i := 1; i <= 3; i++ {
		snap.Sites["reddit.com"] = int64(i)
		require.NoError(t, s.SaveTick(ctx, snap))
	}

	rec, err := s.GetDailyRecord(ctx, "2026-04-02")
	require.NoError(t, err)
	assert.Equal(t, int64(3), rec.ScrollTime)
	assert.Equal(t, 0, rec.FocusSessions)
	assert.Empty(t, rec.CompletedMissions)
}

func TestGetDailyRecord_NotFound(t *testing.T) {
	s := newTestStore(t)
	_, err := s.GetDailyRecord(context.Background(), "2020-01-01")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestAddCompletedMission(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	m := &models.CompletedMission{Text: "write report", Duration: 25 * 60 * 1000, Timestamp: time.Now()}
	rec, err := s.AddCompletedMission(ctx, "2026-04-02", m)
	require.NoError(t, err)
	assert.NotEmpty(t, m.ID)
	assert.Equal(t, 1, rec.FocusSessions)
	assert.Equal(t, int64(25*60*1000), rec.TotalFocusTime)
	require.Len(t, rec.CompletedMissions, 1)
	assert.Equal(t, "write report", rec.CompletedMissions[0].Text)

	_, err = s.AddCompletedMission(ctx, "2026-04-02", &models.CompletedMission{Text: "second", Duration: 1000})
	require.NoError(t, err)
	rec, err = s.GetDailyRecord(ctx, "2026-04-02")
	require.NoError(t, err)
	assert.Equal(t, 2, rec.FocusSessions)
	assert.Len(t, rec.CompletedMissions, 2)
}

func TestListDailyRecords(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.SaveTick(ctx, &models.DaySnapshot{Date: "2026-03-30", Sites: map[string]int64{"x.com": 1}}))
	require.NoError(t, s.SaveTick(ctx, &models.DaySnapshot{Date: "2026-04-01", Sites: map[string]int64{"x.com": 1}}))
	_, err := s.AddCompletedMission(ctx, "2026-04-02", &models.CompletedMission{Text: "ship it", Duration: 1000})
	require.NoError(t, err)

	records, err := s.ListDailyRecords(ctx, "2026-04-01")
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "2026-04-01", records[0].Date)
	assert.Equal(t, "2026-04-02", records[1].Date)
	require.Len(t, records[1].CompletedMissions, 1)
	assert.Equal(t, "ship it", records[1].CompletedMissions[0].Text)
}

// --- Focus & streak ---

func TestFocusState_DefaultsIdle(t *testing.T) {
	s := newTestStore(t)
	f, err := s.GetFocusState(context.Background())
	require.NoError(t, err)
	assert.False(t, f.IsActive)
	assert.True(t, f.EndTime.IsZero())
}

func TestFocusState_RoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	start := time.UnixMilli(time.Now().UnixMilli())
	f := models.FocusState{IsActive: true, Mission: "deep work", StartTime: start, EndTime: start.Add(25 * time.Minute)}
	require.NoError(t, s.SaveFocusState(ctx, f))

	got, err := s.GetFocusState(ctx)
	require.NoError(t, err)
	assert.True(t, got.IsActive)
	assert.Equal(t, "deep work", got.Mission)
	assert.True(t, got.EndTime.Equal(f.EndTime))
	assert.True(t, got.StartTime.Equal(start))

	// Saving an inactive state clears mission and end time.
	require.NoError(t, s.SaveFocusState(ctx, models.FocusState{IsActive: false, Mission: "stale"}))
	got, err = s.GetFocusState(ctx)
	require.NoError(t, err)
	assert.Equal(t, models.IdleFocusState(), got)
}

func TestStreak_RoundTripAndRepair(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	sd, err := s.GetStreak(ctx)
	require.NoError(t, err)
	assert.Equal(t, models.StreakData{}, sd)

	require.NoError(t, s.SaveStreak(ctx, models.StreakData{Current: 3, Longest: 5, LastFocusDate: "2026-04-01"}))
	sd, err = s.GetStreak(ctx)
	require.NoError(t, err)
	assert.Equal(t, models.StreakData{Current: 3, Longest: 5, LastFocusDate: "2026-04-01"}, sd)

	require.NoError(t, s.SaveStreak(ctx, models.StreakData{Current: 4, Longest: 2}))
	sd, err = s.GetStreak(ctx)
	require.NoError(t, err)
	assert.Equal(t, 4, sd.Longest)
}

// --- Settings ---

func TestActiveHost(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	host, err := s.GetActiveHost(ctx)
	require.NoError(t, err)
	assert.Empty(t, host)

	require.NoError(t, s.SetActiveHost(ctx, "reddit.com"))
	host, err = s.GetActiveHost(ctx)
	require.NoError(t, err)
	assert.Equal(t, "reddit.com", host)

	require.NoError(t, s.SetActiveHost(ctx, ""))
	host, err = s.GetActiveHost(ctx)
	require.NoError(t, err)
	assert.Empty(t, host)
}

// --- Blocking rules ---

func TestBlockRules(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	rules, err := s.ListBlockRules(ctx)
	require.NoError(t, err)
	assert.Empty(t, rules)

	add := []models.BlockRule{
		{ID: 1, Priority: 1, Site: "reddit.com", Action: models.BlockActionBlock, URLFilter: "||reddit.com^", ResourceTypes: []string{"main_frame"}},
		{ID: 2, Priority: 1, Site: "x.com", Action: models.BlockActionRedirect, RedirectURL: "focus.html", URLFilter: "||x.com^", ResourceTypes: []string{"main_frame"}},
	}
	require.NoError(t, s.UpdateBlockRules(ctx, nil, add))

	rules, err = s.ListBlockRules(ctx)
	require.NoError(t, err)
	require.Len(t, rules, 2)
	assert.Equal(t, "focus.html", rules[1].RedirectURL)
	assert.Equal(t, []string{"main_frame"}, rules[0].ResourceTypes)

	require.NoError(t, s.UpdateBlockRules(ctx, []int{1, 2, 99}, nil))
	rules, err = s.ListBlockRules(ctx)
	require.NoError(t, err)
	assert.Empty(t, rules)
}
