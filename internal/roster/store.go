package roster

import (
	"context"
	"errors"

	"cvr-league/internal/models"
)

// ErrDuplicateTeam is returned by CreateTeam on a name collision.
var ErrDuplicateTeam = errors.New("team already exists")

// Store is the roster persistence contract the engine works against.
// Lookup methods return (nil, nil) when a record is absent.
type Store interface {
	// Transact runs fn against a store bound to one database
	// transaction; everything fn writes commits or rolls back as a
	// unit.
	Transact(ctx context.Context, fn func(Store) error) error

	FindTeamByName(ctx context.Context, name string) (*models.Team, error)
	GetTeam(ctx context.Context, id int) (*models.Team, error)
	CreateTeam(ctx context.Context, team *models.Team) error
	ListTeams(ctx context.Context) ([]models.Team, error)
	ListRoster(ctx context.Context, teamID int) ([]models.Player, error)

	FindPlayer(ctx context.Context, chatID, userID int64) (*models.Player, error)
	// EnsurePlayer creates the row if absent and refreshes the
	// username if present. Idempotent.
	EnsurePlayer(ctx context.Context, chatID, userID int64, username string) (*models.Player, error)
	// InferTeamByRoleTags matches the member's platform tags against
	// team role tags; on ambiguity the first team in creation order
	// wins (a known approximation).
	InferTeamByRoleTags(ctx context.Context, tags []string) (*models.Team, error)
	// SetPlayerTeam is the only legal way to change roster
	// membership. nil teamID makes the player a free agent.
	SetPlayerTeam(ctx context.Context, player *models.Player, teamID *int) error

	CreateRequest(ctx context.Context, req *models.TransactionRequest) error
	GetRequest(ctx context.Context, id int) (*models.TransactionRequest, error)
	// GetRequestForUpdate locks the request row for the rest of the
	// surrounding Transact, serializing concurrent reviews.
	GetRequestForUpdate(ctx context.Context, id int) (*models.TransactionRequest, error)
	SaveRequest(ctx context.Context, req *models.TransactionRequest) error

	EnqueueRoleSync(ctx context.Context, ops []models.RoleSyncOp) error
}
