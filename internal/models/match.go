package models

import "time"

const (
	MatchOpen   = "OPEN"
	MatchClosed = "CLOSED"
	MatchDone   = "DONE"
)

// MatchSchedule is one scheduled match, keyed by a human-readable
// match id like "SA-20260901-4821".
type MatchSchedule struct {
	ID          int    `gorm:"primaryKey"`
	ChatID      int64  `gorm:"not null;index"`
	MatchID     string `gorm:"size:32;uniqueIndex;not null"`
	TeamA       string `gorm:"size:64;not null"`
	TeamB       string `gorm:"size:64;not null"`
	BestOf      int    `gorm:"default:5"`
	ScheduledAt *time.Time
	Status      string `gorm:"size:16;default:OPEN"`
	CreatedAt   time.Time
}

// MatchResult references MatchSchedule.MatchID.
type MatchResult struct {
	ID         int    `gorm:"primaryKey"`
	ChatID     int64  `gorm:"not null;index"`
	MatchID    string `gorm:"size:32;not null"`
	TeamAScore int    `gorm:"not null"`
	TeamBScore int    `gorm:"not null"`
	MVPA       *int64
	MVPB       *int64
	PostedBy   int64 `gorm:"not null"`
	CreatedAt  time.Time
}
