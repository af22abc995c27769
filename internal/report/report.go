// Package report aggregates daily records into the dashboard view.
package report

import (
	"time"

	"github.com/joescharf/shamescroll/internal/clock"
	"github.com/joescharf/shamescroll/internal/models"
)

// DefaultDays is the dashboard window.
const DefaultDays = 7

// Day is one row of the report. Missing days are zero-filled.
type Day struct {
	Date          string `json:"date"`
	ScrollTime    int64  `json:"scrollTime"`
	FocusSessions int    `json:"focusSessions"`
	FocusTime     int64  `json:"focusTime"`
	Missions      int    `json:"missions"`
}

// Report summarizes a window of days ending today.
type Report struct {
	From               string                    `json:"from"`
	To                 string                    `json:"to"`
	Days               []Day                     `json:"days"`
	TotalScrollTime    int64                     `json:"totalScrollTime"`
	AverageScrollTime  int64                     `json:"averageScrollTime"`
	BestDay            string                    `json:"bestDay,omitempty"`
	TotalFocusSessions int                       `json:"totalFocusSessions"`
	TotalFocusTime     int64                     `json:"totalFocusTime"`
	Missions           []models.CompletedMission `json:"missions"`
}

// Since returns the first day key of a days-long window ending on today.
func Since(today string, days int) string {
	if days < 1 {
		days = 1
	}
	t, err := time.Parse(clock.DayKeyLayout, today)
	if err != nil {
		return today
	}
	return t.AddDate(0, 0, -(days - 1)).Format(clock.DayKeyLayout)
}

// Build aggregates records over the days-long window ending on today.
// Records outside the window are ignored. BestDay is the day with the
// least scroll time, earliest on ties, and is empty when every day is zero
// and nothing was recorded.
func Build(records []*models.DailyRecord, today string, days int) Report {
	if days < 1 {
		days = 1
	}
	byDate := make(map[string]*models.DailyRecord, len(records))
	for _, r := range records {
		if r != nil {
			byDate[r.Date] = r
		}
	}

	from := Since(today, days)
	rep := Report{From: from, To: today, Missions: []models.CompletedMission{}}
	start, err := time.Parse(clock.DayKeyLayout, from)
	if err != nil {
		return rep
	}

	bestScroll := int64(-1)
	for i := 0; i < days; i++ {
		date := start.AddDate(0, 0, i).Format(clock.DayKeyLayout)
		day := Day{Date: date}
		if r, ok := byDate[date]; ok {
			day.ScrollTime = r.ScrollTime
			day.FocusSessions = r.FocusSessions
			day.FocusTime = r.TotalFocusTime
			day.Missions = len(r.CompletedMissions)
			rep.Missions = append(rep.Missions, r.CompletedMissions...)

			if bestScroll < 0 || r.ScrollTime < bestScroll {
				bestScroll = r.ScrollTime
				rep.BestDay = date
			}
		}
		rep.Days = append(rep.Days, day)
		rep.TotalScrollTime += day.ScrollTime
		rep.TotalFocusSessions += day.FocusSessions
		rep.TotalFocusTime += day.FocusTime
	}
	rep.AverageScrollTime = rep.TotalScrollTime / int64(days)
	return rep
}

// FocusMinutes returns the total focus time in whole minutes.
func (r Report) FocusMinutes() int64 {
	return r.TotalFocusTime / int64(time.Minute/time.Millisecond)
}
