package cmd

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joescharf/shamescroll/internal/models"
)

func TestFocusStartStop(t *testing.T) {
	dir := testEnv(t)
	startTestDaemon(t, dir)
	buf := captureOutput(t)
	ctx := context.Background()

	require.NoError(t, focusStartRun("  ship the release  "))
	assert.Contains(t, buf.String(), "Focus mode on: ship the release")

	f, err := daemonClient().FocusState(ctx)
	require.NoError(t, err)
	assert.True(t, f.IsActive)
	assert.Equal(t, "ship the release", f.Mission)

	buf.Reset()
	require.NoError(t, focusStartRun("another"))
	assert.Contains(t, buf.String(), "already running")

	buf.Reset()
	require.NoError(t, focusStopRun())
	assert.Contains(t, buf.String(), "ended early")

	f, err = daemonClient().FocusState(ctx)
	require.NoError(t, err)
	assert.False(t, f.IsActive)

	buf.Reset()
	require.NoError(t, focusStopRun())
	assert.Contains(t, buf.String(), "No focus session running")
}

func TestFocusStart_EmptyMission(t *testing.T) {
	testEnv(t)

	err := focusStartRun("   ")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "mission is required")
}

func TestFocusStart_DryRun(t *testing.T) {
	dir := testEnv(t)
	startTestDaemon(t, dir)
	dryRun = true
	ui.DryRun = true
	defer func() { dryRun = false }()

	require.NoError(t, focusStartRun("nothing"))

	f, err := daemonClient().FocusState(context.Background())
	require.NoError(t, err)
	assert.False(t, f.IsActive)
}

func TestFocus_NoDaemon(t *testing.T) {
	testEnv(t)
	noDaemon()

	err := focusStatusRun()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "daemon is not running")
}

func TestRenderFocus(t *testing.T) {
	testEnv(t)
	buf := captureOutput(t)
	now := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)

	renderFocus(models.FocusState{
		IsActive: true,
		Mission:  "deep work",
		EndTime:  now.Add(25 * time.Minute),
	}, models.StreakData{Current: 1, Longest: 4}, now)

	out := buf.String()
	assert.Contains(t, out, "deep work")
	assert.Contains(t, out, "25:00")
	assert.Contains(t, out, "1 day (longest 4 days)")
}

func TestTabRun(t *testing.T) {
	dir := testEnv(t)
	startTestDaemon(t, dir)
	buf := captureOutput(t)

	tabEvent = "tab_activated"
	require.NoError(t, tabRun("https://old.reddit.com/"))
	assert.Contains(t, buf.String(), "Tracking reddit.com")

	buf.Reset()
	require.NoError(t, tabRun("https://go.dev/"))
	assert.Contains(t, buf.String(), "Not tracking")

	tabEvent = "bogus"
	t.Cleanup(func() { tabEvent = "tab_activated" })
	assert.Error(t, tabRun("https://x.com/"))
}

func TestPrefsTimerHidden(t *testing.T) {
	dir := testEnv(t)
	startTestDaemon(t, dir)
	buf := captureOutput(t)

	require.NoError(t, prefsTimerHiddenSet(true))
	buf.Reset()
	require.NoError(t, prefsTimerHiddenShow())
	assert.Contains(t, buf.String(), "timer-hidden: true")
}
