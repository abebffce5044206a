package models

import "time"

// The three daily summary tables share the same replace-by-(user, day)
// semantics: a re-sync for an existing day overwrites every mutable column and
// keeps no history. OuraID is the vendor record id and is informational only;
// the logical key is the (user_id, day) unique index.

// DailySleep holds one day of Oura sleep summary for a user.
type DailySleep struct {
	ID           uint      `gorm:"primaryKey" json:"-"`
	OuraID       string    `gorm:"size:64" json:"oura_id"`
	UserID       uint      `gorm:"not null;uniqueIndex:idx_sleep_user_day,priority:1" json:"user_id"`
	Day          string    `gorm:"size:10;not null;uniqueIndex:idx_sleep_user_day,priority:2" json:"day"`
	Score        *int      `json:"score"`
	Timestamp    string    `gorm:"size:64" json:"timestamp"`
	Contributors JSONMap   `gorm:"type:jsonb" json:"contributors"`
	RawData      JSONMap   `gorm:"type:jsonb" json:"raw_data"`
	CreatedAt    time.Time `json:"created_at"`
}

// DailyActivity holds one day of Oura activity summary for a user.
type DailyActivity struct {
	ID             uint      `gorm:"primaryKey" json:"-"`
	OuraID         string    `gorm:"size:64" json:"oura_id"`
	UserID         uint      `gorm:"not null;uniqueIndex:idx_activity_user_day,priority:1" json:"user_id"`
	Day            string    `gorm:"size:10;not null;uniqueIndex:idx_activity_user_day,priority:2" json:"day"`
	Score          *int      `json:"score"`
	ActiveCalories int       `json:"active_calories"`
	Steps          int       `json:"steps"`
	Timestamp      string    `gorm:"size:64" json:"timestamp"`
	Contributors   JSONMap   `gorm:"type:jsonb" json:"contributors"`
	RawData        JSONMap   `gorm:"type:jsonb" json:"raw_data"`
	CreatedAt      time.Time `json:"created_at"`
}

// DailyReadiness holds one day of Oura readiness summary for a user.
type DailyReadiness struct {
	ID                   uint      `gorm:"primaryKey" json:"-"`
	OuraID               string    `gorm:"size:64" json:"oura_id"`
	UserID               uint      `gorm:"not null;uniqueIndex:idx_readiness_user_day,priority:1" json:"user_id"`
	Day                  string    `gorm:"size:10;not null;uniqueIndex:idx_readiness_user_day,priority:2" json:"day"`
	Score                *int      `json:"score"`
	TemperatureDeviation *float64  `json:"temperature_deviation"`
	Timestamp            string    `gorm:"size:64" json:"timestamp"`
	Contributors         JSONMap   `gorm:"type:jsonb" json:"contributors"`
	RawData              JSONMap   `gorm:"type:jsonb" json:"raw_data"`
	CreatedAt            time.Time `json:"created_at"`
}

func (DailySleep) TableName() string { return "daily_sleep" }

func (DailyActivity) TableName() string { return "daily_activity" }

func (DailyReadiness) TableName() string { return "daily_readiness" }
