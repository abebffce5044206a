package utils

import "time"

// DayRange returns the inclusive [start, end] calendar-day window ending today,
// formatted as YYYY-MM-DD. Days are computed in UTC so every caller (sync,
// data queries, chat context) sees the same window boundaries.
func DayRange(days int) (start, end string) {
	if days <= 0 {
		days = 30
	}
	now := time.Now().UTC()
	end = now.Format("2006-01-02")
	start = now.AddDate(0, 0, -days).Format("2006-01-02")
	return start, end
}
