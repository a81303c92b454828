package models

import "time"

// Team is a league team. RoleTag is the opaque tag on the community
// platform that marks a member as part of this team; the role-sync
// worker is the only consumer.
type Team struct {
	ID        int     `gorm:"primaryKey"`
	Name      string  `gorm:"size:64;uniqueIndex;not null"`
	RoleTag   string  `gorm:"size:64;not null"`
	CaptainID *int64  `gorm:"index"`
	Players   []Player `gorm:"foreignKey:TeamID"`
	CreatedAt time.Time
	UpdatedAt time.Time
}
