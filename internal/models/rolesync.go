package models

import "time"

const (
	SyncOpAdd    = "ADD"
	SyncOpRemove = "REMOVE"
)

const (
	SyncPending = "PENDING"
	SyncApplied = "APPLIED"
	SyncFailed  = "FAILED"
)

// RoleSyncOp is one durable outbox entry: a tag to add to or remove
// from a member on the community platform. Ops are enqueued in the
// same transaction that resolves the request and applied later,
// best-effort, by the role-sync worker in (request, seq) order.
type RoleSyncOp struct {
	ID        string `gorm:"primaryKey;size:36"`
	RequestID int    `gorm:"not null;index"`
	UserID    int64  `gorm:"not null"`
	Tag       string `gorm:"size:64;not null"`
	Op        string `gorm:"size:8;not null"`
	Seq       int    `gorm:"not null"`
	Status    string `gorm:"size:16;default:PENDING;index"`
	Attempts  int    `gorm:"default:0"`
	LastError string `gorm:"type:text"`
	CreatedAt time.Time
	AppliedAt *time.Time
}
