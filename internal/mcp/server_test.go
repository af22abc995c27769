package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	mcpgo "github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joescharf/shamescroll/internal/models"
	"github.com/joescharf/shamescroll/internal/report"
)

// ---------------------------------------------------------------------------
// Mock daemon
// ---------------------------------------------------------------------------

type mockDaemon struct {
	status models.TrackingStatus
	focus  models.FocusState
	streak models.StreakData

	startedMission string
	stopped        bool
	reportDays     int

	err error
}

func (m *mockDaemon) Status(_ context.Context) (models.TrackingStatus, error) {
	return m.status, m.err
}
func (m *mockDaemon) FocusState(_ context.Context) (models.FocusState, error) {
	return m.focus, m.err
}
func (m *mockDaemon) StartFocus(_ context.Context, mission string) (models.FocusState, error) {
	if m.err != nil {
		return models.FocusState{}, m.err
	}
	m.startedMission = mission
	m.focus = models.FocusState{IsActive: true, Mission: mission}
	return m.focus, nil
}
func (m *mockDaemon) StopFocus(_ context.Context) (models.FocusState, error) {
	if m.err != nil {
		return models.FocusState{}, m.err
	}
	m.stopped = true
	m.focus = models.IdleFocusState()
	return m.focus, nil
}
func (m *mockDaemon) Streak(_ context.Context) (models.StreakData, error) {
	return m.streak, m.err
}
func (m *mockDaemon) Report(_ context.Context, days int) (report.Report, error) {
	if m.err != nil {
		return report.Report{}, m.err
	}
	m.reportDays = days
	return report.Build(nil, "2026-03-10", days), nil
}

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

func callToolReq(name string, args map[string]any) mcpgo.CallToolRequest {
	return mcpgo.CallToolRequest{
		Params: mcpgo.CallToolParams{
			Name:      name,
			Arguments: args,
		},
	}
}

func resultText(t *testing.T, result *mcpgo.CallToolResult) string {
	t.Helper()
	var b strings.Builder
	for _, c := range result.Content {
		tc, ok := c.(mcpgo.TextContent)
		if ok {
			b.WriteString(tc.Text)
		}
	}
	return b.String()
}

func resultJSON(t *testing.T, result *mcpgo.CallToolResult, target any) {
	t.Helper()
	text := resultText(t, result)
	err := json.Unmarshal([]byte(text), target)
	require.NoError(t, err, "failed to parse result JSON: %s", text)
}

// ---------------------------------------------------------------------------
// Tests
// ---------------------------------------------------------------------------

func TestNewServer(t *testing.T) {
	srv := NewServer(&mockDaemon{}, "")
	assert.Equal(t, "dev", srv.version)
	assert.NotNil(t, srv.MCPServer())
}

func TestHandleStatus(t *testing.T) {
	now := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	timeNow = func() time.Time { return now }
	t.Cleanup(func() { timeNow = time.Now })

	md := &mockDaemon{
		status: models.TrackingStatus{IsTracking: true, Host: "reddit.com", ElapsedSeconds: 95, WarningLevel: models.WarningNormal},
		focus:  models.FocusState{IsActive: true, Mission: "essay", EndTime: now.Add(90 * time.Second)},
	}
	srv := NewServer(md, "test")

	result, err := srv.handleStatus(context.Background(), callToolReq("shamescroll_status", nil))
	require.NoError(t, err)
	require.False(t, result.IsError)

	var out struct {
		Tracking models.TrackingStatus `json:"tracking"`
		Focus    struct {
			IsActive  bool   `json:"isActive"`
			Mission   string `json:"mission"`
			Remaining string `json:"remaining"`
		} `json:"focus"`
	}
	resultJSON(t, result, &out)
	assert.Equal(t, "reddit.com", out.Tracking.Host)
	assert.Equal(t, int64(95), out.Tracking.ElapsedSeconds)
	assert.True(t, out.Focus.IsActive)
	assert.Equal(t, "01:30", out.Focus.Remaining)
}

func TestHandleStatus_DaemonDown(t *testing.T) {
	srv := NewServer(&mockDaemon{err: errors.New("connection refused")}, "test")
	result, err := srv.handleStatus(context.Background(), callToolReq("shamescroll_status", nil))
	require.NoError(t, err)
	assert.True(t, result.IsError)
	assert.Contains(t, resultText(t, result), "connection refused")
}

func TestHandleStartFocus(t *testing.T) {
	md := &mockDaemon{}
	srv := NewServer(md, "test")

	result, err := srv.handleStartFocus(context.Background(), callToolReq("shamescroll_start_focus", map[string]any{"mission": "  refactor parser "}))
	require.NoError(t, err)
	require.False(t, result.IsError)
	assert.Equal(t, "refactor parser", md.startedMission)

	var f models.FocusState
	resultJSON(t, result, &f)
	assert.True(t, f.IsActive)
}

func TestHandleStartFocus_MissingMission(t *testing.T) {
	md := &mockDaemon{}
	srv := NewServer(md, "test")

	for _, args := range []map[string]any{nil, {"mission": "   "}} {
		result, err := srv.handleStartFocus(context.Background(), callToolReq("shamescroll_start_focus", args))
		require.NoError(t, err)
		assert.True(t, result.IsError)
	}
	assert.Empty(t, md.startedMission)
}

func TestHandleStopFocus(t *testing.T) {
	md := &mockDaemon{focus: models.FocusState{IsActive: true, Mission: "x"}}
	srv := NewServer(md, "test")

	result, err := srv.handleStopFocus(context.Background(), callToolReq("shamescroll_stop_focus", nil))
	require.NoError(t, err)
	require.False(t, result.IsError)
	assert.True(t, md.stopped)
}

func TestHandleStreak(t *testing.T) {
	md := &mockDaemon{streak: models.StreakData{Current: 4, Longest: 9, LastFocusDate: "2026-03-10"}}
	srv := NewServer(md, "test")

	result, err := srv.handleStreak(context.Background(), callToolReq("shamescroll_streak", nil))
	require.NoError(t, err)

	var sd models.StreakData
	resultJSON(t, result, &sd)
	assert.Equal(t, md.streak, sd)
}

func TestHandleReport(t *testing.T) {
	md := &mockDaemon{}
	srv := NewServer(md, "test")

	result, err := srv.handleReport(context.Background(), callToolReq("shamescroll_report", nil))
	require.NoError(t, err)
	require.False(t, result.IsError)
	assert.Equal(t, report.DefaultDays, md.reportDays)

	result, err = srv.handleReport(context.Background(), callToolReq("shamescroll_report", map[string]any{"days": float64(3)}))
	require.NoError(t, err)
	var rep report.Report
	resultJSON(t, result, &rep)
	assert.Len(t, rep.Days, 3)

	result, err = srv.handleReport(context.Background(), callToolReq("shamescroll_report", map[string]any{"days": float64(0)}))
	require.NoError(t, err)
	assert.True(t, result.IsError)
}
