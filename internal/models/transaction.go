package models

import "time"

type TxAction string

const (
	ActionAdd      TxAction = "ADD"
	ActionRemove   TxAction = "REMOVE"
	ActionTransfer TxAction = "TRANSFER"
)

type TxStatus string

const (
	StatusPending  TxStatus = "PENDING"
	StatusApproved TxStatus = "APPROVED"
	StatusRejected TxStatus = "REJECTED"
)

// TxStage is the derived stage of a request. It is computed from the
// stored fields rather than stored itself, so an illegal
// stage/status combination cannot exist.
type TxStage int

const (
	StageAwaitingPlayer TxStage = iota
	StageAwaitingStaff
	StageApproved
	StageRejected
)

func (s TxStage) String() string {
	switch s {
	case StageAwaitingPlayer:
		return "awaiting player"
	case StageAwaitingStaff:
		return "awaiting staff"
	case StageApproved:
		return "approved"
	default:
		return "rejected"
	}
}

// TransactionRequest is a roster-change request: add a player to the
// requester's team, remove one from it, or transfer one into it.
// Rows are never deleted; resolved requests stay as history.
type TransactionRequest struct {
	ID     int   `gorm:"primaryKey"`
	ChatID int64 `gorm:"not null;index"`

	RequestedBy int64 `gorm:"not null"`

	TargetUserID   int64  `gorm:"not null"`
	TargetUsername string `gorm:"size:128;not null"`

	Action TxAction `gorm:"size:16;not null"`

	FromTeamID *int
	ToTeamID   *int

	// Position role asked for on ADD ("Vice Captain" / "Court Captain" /
	// "Player"); empty otherwise.
	RequestedRole string `gorm:"size:24"`

	Status TxStatus `gorm:"size:16;default:PENDING"`

	// Populated only on a staff rejection.
	Reason string `gorm:"type:text"`

	CreatedAt  time.Time
	ReviewedBy *int64
	ReviewedAt *time.Time

	// Transfer two-step state: the target player must confirm before
	// staff can finalize. Set at most once, only while PENDING.
	PlayerConfirmed   bool `gorm:"default:false"`
	PlayerConfirmedBy *int64
	PlayerConfirmedAt *time.Time
}

// Stage derives the current stage from the stored fields.
func (t *TransactionRequest) Stage() TxStage {
	switch t.Status {
	case StatusApproved:
		return StageApproved
	case StatusRejected:
		return StageRejected
	}
	if t.Action == ActionTransfer && !t.PlayerConfirmed {
		return StageAwaitingPlayer
	}
	return StageAwaitingStaff
}
