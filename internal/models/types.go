package models

import (
	"time"
)

// RoomStats is a full statistics snapshot computed over a room's
// currently materialized history window. It is recomputed from scratch
// after every pagination step.
type RoomStats struct {
	TotalMessages      int             `json:"total_messages"`
	TotalWords         int             `json:"total_words"`
	AvgWordsPerMessage int             `json:"avg_words_per_message"`
	UniqueSenders      int             `json:"unique_senders"`
	TopSenders         []SenderStats   `json:"top_senders"`
	DailyActivity      []DayActivity   `json:"daily_activity"`
	HourlyActivity     []int           `json:"hourly_activity"`
	PeakHour           int             `json:"peak_hour"`
	LongestMessage     *LongestMessage `json:"longest_message,omitempty"`
}

// SenderStats accumulates one sender's activity across the window.
type SenderStats struct {
	UserID      string `json:"user_id"`
	DisplayName string `json:"display_name"`
	Messages    int    `json:"messages"`
	Words       int    `json:"words"`
	AvgWords    int    `json:"avg_words"`
}

// DayActivity is one bucket of the 14-day activity window.
type DayActivity struct {
	Date     string `json:"date"` // YYYY-MM-DD in local time
	Label    string `json:"label"`
	Messages int    `json:"messages"`
}

// LongestMessage records the single wordiest message of the window.
type LongestMessage struct {
	Sender      string `json:"sender"`
	DisplayName string `json:"display_name"`
	Words       int    `json:"words"`
	Preview     string `json:"preview"`
}

// Profile is a cached user profile entry.
type Profile struct {
	UserID      string    `json:"user_id"`
	DisplayName string    `json:"display_name"`
	AvatarURI   string    `json:"avatar_uri"`
	UpdatedAt   time.Time `json:"updated_at"`
}
