package cmd

import (
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joescharf/shamescroll/internal/clock"
	"github.com/joescharf/shamescroll/internal/models"
	"github.com/joescharf/shamescroll/internal/report"
)

func sampleReport() report.Report {
	recs := []*models.DailyRecord{
		{Date: "2026-03-09", ScrollTime: 600, FocusSessions: 1, TotalFocusTime: 25 * 60 * 1000,
			CompletedMissions: []models.CompletedMission{{ID: "m1", Text: "taxes", Duration: 25 * 60 * 1000, Timestamp: time.Date(2026, 3, 9, 10, 0, 0, 0, time.UTC)}}},
		{Date: "2026-03-10", ScrollTime: 1800},
	}
	return report.Build(recs, "2026-03-10", 3)
}

func TestRenderReport(t *testing.T) {
	testEnv(t)
	buf := captureOutput(t)

	renderReport(sampleReport(), models.StreakData{Current: 2, Longest: 2})

	out := buf.String()
	assert.Contains(t, out, "2026-03-08 to 2026-03-10")
	assert.Contains(t, out, "2026-03-09 *")
	assert.Contains(t, out, "1 sessions, 25 min")
	assert.Contains(t, out, "taxes")
	assert.Contains(t, out, "2 days (longest 2 days)")
}

func TestWriteReportCSV(t *testing.T) {
	testEnv(t)
	buf := captureOutput(t)

	require.NoError(t, writeReportCSV(sampleReport()))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 4)
	assert.Equal(t, "Date,ScrollSeconds,FocusSessions,FocusMillis,Missions", lines[0])
	assert.Equal(t, "2026-03-08,0,0,0,0", lines[1])
	assert.Equal(t, "2026-03-09,600,1,1500000,1", lines[2])
}

func TestReportRun_JSONFromStore(t *testing.T) {
	testEnv(t)
	noDaemon()
	buf := captureOutput(t)
	ctx := context.Background()

	s, err := getStore()
	require.NoError(t, err)
	today := clock.DayKey(time.Now())
	_, err = s.AddCompletedMission(ctx, today, &models.CompletedMission{Text: "inbox zero", Duration: 1000, Timestamp: time.Now()})
	require.NoError(t, err)

	reportDays, reportFormat, reportReflect = 7, "json", false
	t.Cleanup(func() { reportDays, reportFormat = report.DefaultDays, "table" })

	require.NoError(t, reportRun(ctx))

	var rep report.Report
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rep))
	assert.Equal(t, today, rep.To)
	assert.Len(t, rep.Days, 7)
	assert.Equal(t, 1, rep.TotalFocusSessions)
	require.Len(t, rep.Missions, 1)
	assert.Equal(t, "inbox zero", rep.Missions[0].Text)
}

func TestReportRun_Validation(t *testing.T) {
	testEnv(t)
	t.Cleanup(func() { reportDays, reportFormat = report.DefaultDays, "table" })

	reportDays, reportFormat = 0, "table"
	assert.Error(t, reportRun(context.Background()))

	reportDays, reportFormat = 7, "xml"
	err := reportRun(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown format")
}

func TestReflectRun_NoKey(t *testing.T) {
	testEnv(t)
	t.Setenv("ANTHROPIC_API_KEY", "")

	err := reflectRun(context.Background(), sampleReport(), models.StreakData{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no Anthropic API key")
}
