package models

import "time"

// AttendanceRecord is written once per account and reward-calendar day.
type AttendanceRecord struct {
	AccountID       string    `gorm:"primaryKey;size:32" json:"-"`
	Date            string    `gorm:"primaryKey;size:10" json:"date"`
	RewardAmount    int64     `gorm:"not null" json:"reward_amount"`
	DayOfWeek       int       `gorm:"not null" json:"day_of_week"`
	ConsecutiveDays int       `gorm:"not null" json:"consecutive_days"`
	IsWeekend       bool      `gorm:"not null" json:"is_weekend"`
	CreatedAt       time.Time `json:"created_at"`
}

// AttendanceSummary caches streak state per account. LastDate is empty until the first claim.
type AttendanceSummary struct {
	AccountID     string    `gorm:"primaryKey;size:32" json:"-"`
	CurrentStreak int       `gorm:"not null;default:0" json:"current_streak"`
	MaxStreak     int       `gorm:"not null;default:0" json:"max_streak"`
	TotalDays     int       `gorm:"not null;default:0" json:"total_days"`
	LastDate      string    `gorm:"size:10" json:"last_date"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// DefaultAttendanceSummary is the summary of an account that never claimed a reward.
func DefaultAttendanceSummary(accountID string) AttendanceSummary {
	return AttendanceSummary{AccountID: accountID}
}
