package engine

import (
	"errors"
	"fmt"

	"cvr-league/internal/roster"
)

// Engine failures are typed so the front-end can pick the user-visible
// message; the engine never retries any of them on its own.
var (
	// ErrUnauthorized: the principal lacks the role the action needs.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrInvalidState: the request is no longer pending.
	ErrInvalidState = errors.New("transaction is not pending")
	// ErrNotYourTurn: right state, wrong principal for this stage.
	ErrNotYourTurn = errors.New("not your turn")
	// ErrTeamNotResolved: the requester's own team cannot be determined.
	ErrTeamNotResolved = errors.New("requester team not resolved")
	// ErrNotYourPlayer: REMOVE aimed at a player outside the requester's team.
	ErrNotYourPlayer = errors.New("player is not on your team")
	// ErrInvalidReason: a staff denial needs a reason of 1-120 characters.
	ErrInvalidReason = errors.New("reason must be 1 to 120 characters")

	// ErrDuplicateTeam: team registration collision.
	ErrDuplicateTeam = roster.ErrDuplicateTeam
)

// Stage-specific NotYourTurn variants, so the front-end can tell the
// caller which approval is still missing.
var (
	ErrAwaitingPlayer = fmt.Errorf("waiting for the player to accept first (0/2): %w", ErrNotYourTurn)
	ErrAwaitingStaff  = fmt.Errorf("only the Transaction Team can finalize the transfer (1/2): %w", ErrNotYourTurn)
)
