// Package rolesync keeps the community platform's role tags in step
// with the roster. Approving a transaction enqueues a deterministic
// plan of tag operations into a durable outbox; a background worker
// applies them best-effort. Approval is authoritative: a tag that
// fails to sync is logged and retried, never rolled back into the
// roster.
package rolesync

import (
	"cvr-league/internal/authz"
	"cvr-league/internal/models"

	"github.com/google/uuid"
)

// PlanForApproval computes the tag operations for an approved
// request. Every position tag is removed first as a clean slate;
// then, for a REMOVE, the previous team tag goes too, while ADD and
// TRANSFER gain the destination team tag plus the requested position
// tag (ADD) or the default player tag (TRANSFER).
func PlanForApproval(req *models.TransactionRequest, fromTeamTag, toTeamTag string, pol authz.Policy) []models.RoleSyncOp {
	var ops []models.RoleSyncOp
	add := func(op, tag string) {
		if tag == "" {
			return
		}
		ops = append(ops, models.RoleSyncOp{
			ID:        uuid.NewString(),
			RequestID: req.ID,
			UserID:    req.TargetUserID,
			Tag:       tag,
			Op:        op,
			Seq:       len(ops),
			Status:    models.SyncPending,
		})
	}

	for _, tag := range pol.PositionTags() {
		add(models.SyncOpRemove, tag)
	}

	if req.Action == models.ActionRemove {
		add(models.SyncOpRemove, fromTeamTag)
		return ops
	}

	add(models.SyncOpAdd, toTeamTag)
	switch req.Action {
	case models.ActionAdd:
		if req.RequestedRole != "" {
			add(models.SyncOpAdd, pol.RoleTagFor(req.RequestedRole))
		}
	case models.ActionTransfer:
		add(models.SyncOpAdd, pol.PlayerTag)
	}
	return ops
}

// PlanForNewTeam grants a freshly registered team's captain the team
// tag and the global captain tag.
func PlanForNewTeam(team *models.Team, captainID int64, pol authz.Policy) []models.RoleSyncOp {
	var ops []models.RoleSyncOp
	for seq, tag := range []string{team.RoleTag, pol.CaptainTag} {
		if tag == "" {
			continue
		}
		ops = append(ops, models.RoleSyncOp{
			ID:     uuid.NewString(),
			UserID: captainID,
			Tag:    tag,
			Op:     models.SyncOpAdd,
			Seq:    seq,
			Status: models.SyncPending,
		})
	}
	return ops
}
