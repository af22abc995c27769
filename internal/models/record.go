package models

import "time"

// CompletedMission is one focus session that ran to completion.
type CompletedMission struct {
	ID        string    `json:"id"`
	Text      string    `json:"text"`
	Duration  int64     `json:"duration"` // milliseconds
	Timestamp time.Time `json:"timestamp"`
}

// DailyRecord aggregates one calendar day of activity.
type DailyRecord struct {
	Date              string             `json:"date"`
	ScrollTime        int64              `json:"scrollTime"` // seconds
	FocusSessions     int                `json:"focusSessions"`
	CompletedMissions []CompletedMission `json:"completedMissions"`
	TotalFocusTime    int64              `json:"totalFocusTime"` // milliseconds
}

// NewDailyRecord returns an empty record for date.
func NewDailyRecord(date string) *DailyRecord {
	return &DailyRecord{Date: date, CompletedMissions: []CompletedMission{}}
}
