// Package engine owns the transaction approval workflow: the state
// machine that takes a roster-change request from creation through
// confirmation to its terminal state, the roster mutation that must
// follow approval exactly once, and the role-sync plan that approval
// leaves behind in the outbox.
package engine

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"cvr-league/internal/authz"
	"cvr-league/internal/models"
	"cvr-league/internal/render"
	"cvr-league/internal/rolesync"
	"cvr-league/internal/roster"

	"go.uber.org/zap"
)

const maxReasonLen = 120

// PlayerDeniedReason is recorded when a transfer target self-denies.
const PlayerDeniedReason = "Player denied the transfer."

type Engine struct {
	store  roster.Store
	policy authz.Policy
	log    *zap.SugaredLogger
	notify func()
}

func New(store roster.Store, policy authz.Policy, log *zap.SugaredLogger) *Engine {
	return &Engine{store: store, policy: policy, log: log, notify: func() {}}
}

// OnApproved registers a hook fired after every committed approval,
// outside the transaction. The role-sync worker hangs its Nudge here.
func (e *Engine) OnApproved(fn func()) {
	e.notify = fn
}

// OpenParams carries one creation attempt. RequesterTags and the
// names come from the front-end, which is the only layer that talks
// to the chat platform.
type OpenParams struct {
	ChatID         int64
	Requester      int64
	RequesterName  string
	RequesterTags  []string
	TargetUserID   int64
	TargetUsername string
	Action         models.TxAction
	RequestedRole  string
}

// Open validates and persists a new PENDING request. The requester's
// own team is always the destination for ADD/TRANSFER; a requester
// whose team cannot be resolved cannot open anything.
func (e *Engine) Open(ctx context.Context, p OpenParams) (*models.TransactionRequest, *render.Directive, error) {
	if !e.policy.CanOpenTransactions(p.Requester, p.RequesterTags) {
		return nil, nil, fmt.Errorf("open transaction: %w", ErrUnauthorized)
	}

	var req *models.TransactionRequest
	err := e.store.Transact(ctx, func(s roster.Store) error {
		requester, err := s.EnsurePlayer(ctx, p.ChatID, p.Requester, p.RequesterName)
		if err != nil {
			return err
		}

		team, err := e.resolveTeam(ctx, s, requester, p.RequesterTags)
		if err != nil {
			return err
		}

		target, err := s.EnsurePlayer(ctx, p.ChatID, p.TargetUserID, p.TargetUsername)
		if err != nil {
			return err
		}

		// REMOVE is the only action gated at creation; ADD/TRANSFER
		// conflicts are left for reviewers to deny with a reason.
		if p.Action == models.ActionRemove {
			if target.TeamID == nil || *target.TeamID != team.ID {
				return ErrNotYourPlayer
			}
		}

		var fromTeamID *int
		if p.Action == models.ActionTransfer {
			fromTeamID = target.TeamID
		}
		var toTeamID *int
		if p.Action != models.ActionRemove {
			toTeamID = &team.ID
		}

		req = &models.TransactionRequest{
			ChatID:         p.ChatID,
			RequestedBy:    p.Requester,
			TargetUserID:   p.TargetUserID,
			TargetUsername: p.TargetUsername,
			Action:         p.Action,
			FromTeamID:     fromTeamID,
			ToTeamID:       toTeamID,
			RequestedRole:  p.RequestedRole,
			Status:         models.StatusPending,
		}
		return s.CreateRequest(ctx, req)
	})
	if err != nil {
		return nil, nil, err
	}

	e.log.Infow("transaction opened",
		"id", req.ID, "action", req.Action, "requester", p.Requester, "target", p.TargetUserID)

	dir, err := e.directive(ctx, req, "")
	return req, dir, err
}

// resolveTeam finds the requester's team from the stored row, falling
// back to tag inference; an inferred team is persisted so the next
// lookup hits the row.
func (e *Engine) resolveTeam(ctx context.Context, s roster.Store, requester *models.Player, tags []string) (*models.Team, error) {
	if requester.TeamID != nil {
		team, err := s.GetTeam(ctx, *requester.TeamID)
		if err != nil {
			return nil, err
		}
		if team != nil {
			return team, nil
		}
	}
	team, err := s.InferTeamByRoleTags(ctx, tags)
	if err != nil {
		return nil, err
	}
	if team == nil {
		return nil, ErrTeamNotResolved
	}
	if err := s.SetPlayerTeam(ctx, requester, &team.ID); err != nil {
		return nil, err
	}
	return team, nil
}

// Accept advances a PENDING request. ADD/REMOVE go straight to
// approval by any reviewer. TRANSFER is a two-step: first only the
// target player may confirm, then only a reviewer may finalize.
func (e *Engine) Accept(ctx context.Context, requestID int, actor int64, actorName string, actorTags []string) (*models.TransactionRequest, *render.Directive, error) {
	var req *models.TransactionRequest
	approved := false

	err := e.store.Transact(ctx, func(s roster.Store) error {
		var err error
		req, err = s.GetRequestForUpdate(ctx, requestID)
		if err != nil {
			return err
		}
		if req == nil || req.Status != models.StatusPending {
			return ErrInvalidState
		}

		if req.Action == models.ActionTransfer && !req.PlayerConfirmed {
			if actor != req.TargetUserID {
				return ErrAwaitingPlayer
			}
			now := time.Now().UTC()
			req.PlayerConfirmed = true
			req.PlayerConfirmedBy = &actor
			req.PlayerConfirmedAt = &now
			return s.SaveRequest(ctx, req)
		}

		if req.Action == models.ActionTransfer {
			if !e.policy.CanReviewTransactions(actor, actorTags) {
				return ErrAwaitingStaff
			}
		} else if !e.policy.CanReviewTransactions(actor, actorTags) {
			return ErrUnauthorized
		}

		approved = true
		return e.finalizeApprove(ctx, s, req, actor)
	})
	if err != nil {
		return nil, nil, err
	}

	if approved {
		e.log.Infow("transaction approved", "id", req.ID, "action", req.Action, "reviewer", actor)
		e.notify()
	} else {
		e.log.Infow("transfer confirmed by player", "id", req.ID, "player", actor)
	}

	dir, err := e.directive(ctx, req, actorName)
	return req, dir, err
}

// finalizeApprove is the shared terminal step: the APPROVED write,
// the roster mutation and the outbox enqueue commit as one unit.
func (e *Engine) finalizeApprove(ctx context.Context, s roster.Store, req *models.TransactionRequest, actor int64) error {
	now := time.Now().UTC()
	req.Status = models.StatusApproved
	req.ReviewedBy = &actor
	req.ReviewedAt = &now
	if err := s.SaveRequest(ctx, req); err != nil {
		return err
	}

	target, err := s.EnsurePlayer(ctx, req.ChatID, req.TargetUserID, req.TargetUsername)
	if err != nil {
		return err
	}
	prevTeamID := target.TeamID
	if err := s.SetPlayerTeam(ctx, target, req.ToTeamID); err != nil {
		return err
	}

	fromTag, err := e.teamTag(ctx, s, prevTeamID)
	if err != nil {
		return err
	}
	toTag, err := e.teamTag(ctx, s, req.ToTeamID)
	if err != nil {
		return err
	}

	ops := rolesync.PlanForApproval(req, fromTag, toTag, e.policy)
	return s.EnqueueRoleSync(ctx, ops)
}

func (e *Engine) teamTag(ctx context.Context, s roster.Store, teamID *int) (string, error) {
	if teamID == nil {
		return "", nil
	}
	team, err := s.GetTeam(ctx, *teamID)
	if err != nil || team == nil {
		return "", err
	}
	return team.RoleTag, nil
}

// Deny rejects a PENDING request. A transfer target may self-deny
// before confirming, with a fixed reason and no staff involved;
// otherwise denial is a reviewer action and requires a reason. Deny
// never touches the roster.
func (e *Engine) Deny(ctx context.Context, requestID int, actor int64, actorName string, actorTags []string, reason string) (*models.TransactionRequest, *render.Directive, error) {
	reason = strings.TrimSpace(reason)

	var req *models.TransactionRequest
	err := e.store.Transact(ctx, func(s roster.Store) error {
		var err error
		req, err = s.GetRequestForUpdate(ctx, requestID)
		if err != nil {
			return err
		}
		if req == nil || req.Status != models.StatusPending {
			return ErrInvalidState
		}

		now := time.Now().UTC()

		if req.Action == models.ActionTransfer && actor == req.TargetUserID && !req.PlayerConfirmed {
			req.Status = models.StatusRejected
			req.Reason = PlayerDeniedReason
			req.ReviewedBy = &actor
			req.ReviewedAt = &now
			return s.SaveRequest(ctx, req)
		}

		if !e.policy.CanReviewTransactions(actor, actorTags) {
			return ErrUnauthorized
		}
		if reason == "" || utf8.RuneCountInString(reason) > maxReasonLen {
			return ErrInvalidReason
		}

		req.Status = models.StatusRejected
		req.Reason = reason
		req.ReviewedBy = &actor
		req.ReviewedAt = &now
		return s.SaveRequest(ctx, req)
	})
	if err != nil {
		return nil, nil, err
	}

	e.log.Infow("transaction rejected", "id", req.ID, "action", req.Action, "reviewer", actor)

	dir, err := e.directive(ctx, req, actorName)
	return req, dir, err
}

// RegisterTeam is the administrative team creation: the team row, the
// captain's roster assignment and the captain's tag grants land
// together.
func (e *Engine) RegisterTeam(ctx context.Context, chatID, actor int64, name, roleTag string, captainID int64, captainName string) (*models.Team, error) {
	if !e.policy.IsAdmin(actor) {
		return nil, fmt.Errorf("register team: %w", ErrUnauthorized)
	}

	team := &models.Team{Name: name, RoleTag: roleTag, CaptainID: &captainID}
	err := e.store.Transact(ctx, func(s roster.Store) error {
		if err := s.CreateTeam(ctx, team); err != nil {
			return err
		}
		captain, err := s.EnsurePlayer(ctx, chatID, captainID, captainName)
		if err != nil {
			return err
		}
		if err := s.SetPlayerTeam(ctx, captain, &team.ID); err != nil {
			return err
		}
		return s.EnqueueRoleSync(ctx, rolesync.PlanForNewTeam(team, captainID, e.policy))
	})
	if err != nil {
		return nil, err
	}

	e.log.Infow("team registered", "team", team.Name, "captain", captainID)
	e.notify()
	return team, nil
}

// directive resolves display names and builds the render payload for
// the request's current state.
func (e *Engine) directive(ctx context.Context, req *models.TransactionRequest, actorName string) (*render.Directive, error) {
	names := render.Names{
		Target:   req.TargetUsername,
		FromTeam: "Free Agent",
		ToTeam:   "Free Agent",
		Actor:    actorName,
	}

	requester, err := e.store.FindPlayer(ctx, req.ChatID, req.RequestedBy)
	if err != nil {
		return nil, err
	}
	if requester != nil {
		names.Requester = requester.Username
	} else {
		names.Requester = fmt.Sprintf("user %d", req.RequestedBy)
	}

	if req.FromTeamID != nil {
		if team, err := e.store.GetTeam(ctx, *req.FromTeamID); err == nil && team != nil {
			names.FromTeam = team.Name
		}
	}
	if req.ToTeamID != nil {
		if team, err := e.store.GetTeam(ctx, *req.ToTeamID); err == nil && team != nil {
			names.ToTeam = team.Name
		}
	}

	return render.ForRequest(req, names), nil
}
