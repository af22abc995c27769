package store

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/joescharf/shamescroll/internal/models"

	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// SQLiteStore implements Store using modernc.org/sqlite (pure Go, no CGO).
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (or creates) a SQLite database at the given path.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// One connection serializes the daemon's tick writes with API reads and
	// avoids "database is locked" between them.
	db.SetMaxOpenConns(1)

	// Enable WAL mode so the CLI can read while the daemon writes
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("enable WAL mode: %w", err)
	}

	if _, err := db.Exec("PRAGMA busy_timeout=5000"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("set busy timeout: %w", err)
	}

	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// Migrate runs all embedded SQL migration files in order.
func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS schema_migrations (
		filename TEXT PRIMARY KEY,
		applied_at DATETIME NOT NULL DEFAULT (datetime('now'))
	)`)
	if err != nil {
		return fmt.Errorf("create migrations table: %w", err)
	}

	entries, err := migrationsFS.ReadDir("migrations")
	if err != nil {
		return fmt.Errorf("read migrations dir: %w", err)
	}

	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Name() < entries[j].Name()
	})

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}

		name := entry.Name()

		var count int
		err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM schema_migrations WHERE filename = ?", name).Scan(&count)
		if err != nil {
			return fmt.Errorf("check migration %s: %w", name, err)
		}
		if count > 0 {
			continue
		}

		data, err := migrationsFS.ReadFile("migrations/" + name)
		if err != nil {
			return fmt.Errorf("read migration %s: %w", name, err)
		}

		if _, err := s.db.ExecContext(ctx, string(data)); err != nil {
			return fmt.Errorf("apply migration %s: %w", name, err)
		}

		if _, err := s.db.ExecContext(ctx, "INSERT INTO schema_migrations (filename) VALUES (?)", name); err != nil {
			return fmt.Errorf("record migration %s: %w", name, err)
		}
	}

	return nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// withTx runs fn in a transaction, rolling back on error.
func (s *SQLiteStore) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// execer is satisfied by both *sql.DB and *sql.Tx.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// --- Day snapshots ---

func (s *SQLiteStore) GetDaySnapshot(ctx context.Context, slot models.SnapshotSlot) (*models.DaySnapshot, error) {
	var date, sitesJSON string
	err := s.db.QueryRowContext(ctx,
		`SELECT date, sites_json FROM day_snapshots WHERE slot = ?`, string(slot),
	).Scan(&date, &sitesJSON)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get %s snapshot: %w", slot, err)
	}

	snap := &models.DaySnapshot{Date: date}
	if err := json.Unmarshal([]byte(sitesJSON), &snap.Sites); err != nil {
		return nil, nil
	}
	// Yesterday may legitimately carry the "none" placeholder date.
	if slot == models.SlotYesterday && date == models.NoDate && snap.Sites != nil {
		return snap, nil
	}
	if !snap.Valid() {
		return nil, nil
	}
	return snap, nil
}

func saveSnapshot(ctx context.Context, e execer, slot models.SnapshotSlot, snap *models.DaySnapshot) error {
	sites := snap.Sites
	if sites == nil {
		sites = map[string]int64{}
	}
	data, err := json.Marshal(sites)
	if err != nil {
		return fmt.Errorf("marshal %s sites: %w", slot, err)
	}
	_, err = e.ExecContext(ctx,
		`INSERT INTO day_snapshots (slot, date, sites_json, updated_at) VALUES (?, ?, ?, ?)
		ON CONFLICT(slot) DO UPDATE SET date = excluded.date, sites_json = excluded.sites_json, updated_at = excluded.updated_at`,
		string(slot), snap.Date, string(data), time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("save %s snapshot: %w", slot, err)
	}
	return nil
}

func (s *SQLiteStore) SaveDaySnapshot(ctx context.Context, slot models.SnapshotSlot, snap *models.DaySnapshot) error {
	return saveSnapshot(ctx, s.db, slot, snap)
}

// RotateDaySnapshots archives the stored today as yesterday and installs
// today in a single transaction. A missing or malformed stored today
// archives as an empty "none" snapshot.
func (s *SQLiteStore) RotateDaySnapshots(ctx context.Context, today *models.DaySnapshot) error {
	old, err := s.GetDaySnapshot(ctx, models.SlotToday)
	if err != nil {
		return err
	}
	if old == nil {
		old = models.NewDaySnapshot(models.NoDate)
	}
	return s.withTx(ctx, func(tx *sql.Tx) error {
		if err := saveSnapshot(ctx, tx, models.SlotYesterday, old); err != nil {
			return err
		}
		return saveSnapshot(ctx, tx, models.SlotToday, today)
	})
}

// --- Daily records ---

func (s *SQLiteStore) GetDailyRecord(ctx context.Context, date string) (*models.DailyRecord, error) {
	r := models.NewDailyRecord(date)
	err := s.db.QueryRowContext(ctx,
		`SELECT scroll_time, focus_sessions, total_focus_ms FROM daily_records WHERE date = ?`, date,
	).Scan(&r.ScrollTime, &r.FocusSessions, &r.TotalFocusTime)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("daily record %s: %w", date, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get daily record: %w", err)
	}

	missions, err := s.listMissions(ctx, "date = ?", date)
	if err != nil {
		return nil, err
	}
	r.CompletedMissions = append(r.CompletedMissions, missions[date]...)
	return r, nil
}

func (s *SQLiteStore) ListDailyRecords(ctx context.Context, since string) ([]*models.DailyRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT date, scroll_time, focus_sessions, total_focus_ms FROM daily_records WHERE date >= ? ORDER BY date`, since)
	if err != nil {
		return nil, fmt.Errorf("list daily records: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var records []*models.DailyRecord
	for rows.Next() {
		r := &models.DailyRecord{CompletedMissions: []models.CompletedMission{}}
		if err := rows.Scan(&r.Date, &r.ScrollTime, &r.FocusSessions, &r.TotalFocusTime); err != nil {
			return nil, fmt.Errorf("scan daily record: %w", err)
		}
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	missions, err := s.listMissions(ctx, "date >= ?", since)
	if err != nil {
		return nil, err
	}
	for _, r := range records {
		r.CompletedMissions = append(r.CompletedMissions, missions[r.Date]...)
	}
	return records, nil
}

func (s *SQLiteStore) listMissions(ctx context.Context, where string, arg any) (map[string][]models.CompletedMission, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, date, text, duration_ms, completed_at FROM completed_missions WHERE `+where+` ORDER BY completed_at, id`, arg)
	if err != nil {
		return nil, fmt.Errorf("list missions: %w", err)
	}
	defer func() { _ = rows.Close() }()

	out := make(map[string][]models.CompletedMission)
	for rows.Next() {
		var m models.CompletedMission
		var date string
		if err := rows.Scan(&m.ID, &date, &m.Text, &m.Duration, &m.Timestamp); err != nil {
			return nil, fmt.Errorf("scan mission: %w", err)
		}
		out[date] = append(out[date], m)
	}
	return out, rows.Err()
}

func ensureDailyRecord(ctx context.Context, e execer, date string) error {
	if _, err := e.ExecContext(ctx, `INSERT OR IGNORE INTO daily_records (date) VALUES (?)`, date); err != nil {
		return fmt.Errorf("create daily record: %w", err)
	}
	return nil
}

// SaveTick writes the today snapshot and adds one second to that day's
// scroll time in a single transaction.
func (s *SQLiteStore) SaveTick(ctx context.Context, today *models.DaySnapshot) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		if err := saveSnapshot(ctx, tx, models.SlotToday, today); err != nil {
			return err
		}
		if err := ensureDailyRecord(ctx, tx, today.Date); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx,
			`UPDATE daily_records SET scroll_time = scroll_time + 1 WHERE date = ?`, today.Date); err != nil {
			return fmt.Errorf("increment scroll time: %w", err)
		}
		return nil
	})
}

// AddCompletedMission records m under date and bumps the day's focus
// counters, returning the updated record.
func (s *SQLiteStore) AddCompletedMission(ctx context.Context, date string, m *models.CompletedMission) (*models.DailyRecord, error) {
	if m.ID == "" {
		m.ID = newULID()
	}
	if m.Timestamp.IsZero() {
		m.Timestamp = time.Now()
	}
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		if err := ensureDailyRecord(ctx, tx, date); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO completed_missions (id, date, text, duration_ms, completed_at) VALUES (?, ?, ?, ?, ?)`,
			m.ID, date, m.Text, m.Duration, m.Timestamp.UTC()); err != nil {
			return fmt.Errorf("insert mission: %w", err)
		}
		if _, err := tx.ExecContext(ctx,
			`UPDATE daily_records SET focus_sessions = focus_sessions + 1, total_focus_ms = total_focus_ms + ? WHERE date = ?`,
			m.Duration, date); err != nil {
			return fmt.Errorf("update focus counters: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s.GetDailyRecord(ctx, date)
}

// --- Focus state ---

func (s *SQLiteStore) GetFocusState(ctx context.Context) (models.FocusState, error) {
	var active int
	var mission string
	var startMs, endMs int64
	err := s.db.QueryRowContext(ctx,
		`SELECT is_active, mission, start_ms, end_ms FROM focus_state WHERE id = 1`,
	).Scan(&active, &mission, &startMs, &endMs)
	if err == sql.ErrNoRows {
		return models.IdleFocusState(), nil
	}
	if err != nil {
		return models.FocusState{}, fmt.Errorf("get focus state: %w", err)
	}
	if active == 0 || endMs <= 0 {
		return models.IdleFocusState(), nil
	}
	f := models.FocusState{IsActive: true, Mission: mission, EndTime: time.UnixMilli(endMs)}
	if startMs > 0 {
		f.StartTime = time.UnixMilli(startMs)
	}
	return f, nil
}

func (s *SQLiteStore) SaveFocusState(ctx context.Context, f models.FocusState) error {
	var startMs, endMs int64
	if f.IsActive {
		if !f.StartTime.IsZero() {
			startMs = f.StartTime.UnixMilli()
		}
		endMs = f.EndTime.UnixMilli()
	} else {
		f = models.IdleFocusState()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO focus_state (id, is_active, mission, start_ms, end_ms) VALUES (1, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET is_active = excluded.is_active, mission = excluded.mission, start_ms = excluded.start_ms, end_ms = excluded.end_ms`,
		boolToInt(f.IsActive), f.Mission, startMs, endMs,
	)
	if err != nil {
		return fmt.Errorf("save focus state: %w", err)
	}
	return nil
}

// --- Streak ---

func (s *SQLiteStore) GetStreak(ctx context.Context) (models.StreakData, error) {
	var sd models.StreakData
	err := s.db.QueryRowContext(ctx,
		`SELECT current, longest, last_focus_date FROM streak WHERE id = 1`,
	).Scan(&sd.Current, &sd.Longest, &sd.LastFocusDate)
	if err == sql.ErrNoRows {
		return models.StreakData{}, nil
	}
	if err != nil {
		return models.StreakData{}, fmt.Errorf("get streak: %w", err)
	}
	// Repair a record where longest fell behind current.
	if sd.Current < 0 {
		sd.Current = 0
	}
	if sd.Longest < sd.Current {
		sd.Longest = sd.Current
	}
	return sd, nil
}

func (s *SQLiteStore) SaveStreak(ctx context.Context, sd models.StreakData) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO streak (id, current, longest, last_focus_date) VALUES (1, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET current = excluded.current, longest = excluded.longest, last_focus_date = excluded.last_focus_date`,
		sd.Current, sd.Longest, sd.LastFocusDate,
	)
	if err != nil {
		return fmt.Errorf("save streak: %w", err)
	}
	return nil
}

// --- Settings ---

func (s *SQLiteStore) GetSetting(ctx context.Context, key string) (string, error) {
	var value string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM settings WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("get setting %s: %w", key, err)
	}
	return value, nil
}

func (s *SQLiteStore) SetSetting(ctx context.Context, key, value string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO settings (key, value) VALUES (?, ?) ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
		key, value)
	if err != nil {
		return fmt.Errorf("set setting %s: %w", key, err)
	}
	return nil
}

func (s *SQLiteStore) GetActiveHost(ctx context.Context) (string, error) {
	return s.GetSetting(ctx, SettingActiveHost)
}

// SetActiveHost persists host; "" means nothing is tracked.
func (s *SQLiteStore) SetActiveHost(ctx context.Context, host string) error {
	return s.SetSetting(ctx, SettingActiveHost, host)
}

// --- Blocking rules ---

func (s *SQLiteStore) ListBlockRules(ctx context.Context) ([]models.BlockRule, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, priority, site, action, redirect_url, url_filter, resource_types FROM block_rules ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list block rules: %w", err)
	}
	defer func() { _ = rows.Close() }()

	rules := []models.BlockRule{}
	for rows.Next() {
		var r models.BlockRule
		var action, types string
		if err := rows.Scan(&r.ID, &r.Priority, &r.Site, &action, &r.RedirectURL, &r.URLFilter, &types); err != nil {
			return nil, fmt.Errorf("scan block rule: %w", err)
		}
		r.Action = models.BlockAction(action)
		if err := json.Unmarshal([]byte(types), &r.ResourceTypes); err != nil {
			r.ResourceTypes = []string{"main_frame"}
		}
		rules = append(rules, r)
	}
	return rules, rows.Err()
}

// UpdateBlockRules removes removeIDs and upserts add in one transaction.
func (s *SQLiteStore) UpdateBlockRules(ctx context.Context, removeIDs []int, add []models.BlockRule) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		for _, id := range removeIDs {
			if _, err := tx.ExecContext(ctx, `DELETE FROM block_rules WHERE id = ?`, id); err != nil {
				return fmt.Errorf("remove block rule %d: %w", id, err)
			}
		}
		for _, r := range add {
			types, err := json.Marshal(r.ResourceTypes)
			if err != nil {
				return fmt.Errorf("marshal resource types: %w", err)
			}
			_, err = tx.ExecContext(ctx,
				`INSERT OR REPLACE INTO block_rules (id, priority, site, action, redirect_url, url_filter, resource_types)
				VALUES (?, ?, ?, ?, ?, ?, ?)`,
				r.ID, r.Priority, r.Site, string(r.Action), r.RedirectURL, r.URLFilter, string(types))
			if err != nil {
				return fmt.Errorf("add block rule %d: %w", r.ID, err)
			}
		}
		return nil
	})
}
