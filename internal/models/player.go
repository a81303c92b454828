package models

import "time"

// Player is one league member. Exactly one row per (chat, user); the
// row is created lazily the first time the member shows up in a
// transaction. TeamID nil means free agent.
type Player struct {
	ID        int    `gorm:"primaryKey"`
	ChatID    int64  `gorm:"not null;uniqueIndex:uq_player_chat_user"`
	UserID    int64  `gorm:"not null;uniqueIndex:uq_player_chat_user"`
	Username  string `gorm:"size:128;not null"`
	TeamID    *int   `gorm:"index"`
	Team      *Team  `gorm:"constraint:OnUpdate:CASCADE,OnDelete:SET NULL;"`
	CreatedAt time.Time
	UpdatedAt time.Time
}
