package roster

import (
	"context"
	"testing"

	"cvr-league/internal/models"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func newMockStore(t *testing.T) (*GormStore, sqlmock.Sqlmock) {
	t.Helper()
	conn, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	db, err := gorm.Open(postgres.New(postgres.Config{
		Conn:                 conn,
		PreferSimpleProtocol: true,
	}), &gorm.Config{})
	require.NoError(t, err)

	return NewGormStore(db), mock
}

func teamRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{"id", "name", "role_tag", "captain_id"})
}

func TestFindTeamByName(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery(`SELECT \* FROM "teams" WHERE LOWER\(name\) = LOWER\(\$1\)`).
		WillReturnRows(teamRows().AddRow(1, "Hawks", "Hawks", 100))

	team, err := store.FindTeamByName(context.Background(), "hawks")

	require.NoError(t, err)
	require.NotNil(t, team)
	assert.Equal(t, "Hawks", team.Name)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFindTeamByNameMissing(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery(`SELECT \* FROM "teams"`).WillReturnRows(teamRows())

	team, err := store.FindTeamByName(context.Background(), "nobody")

	require.NoError(t, err)
	assert.Nil(t, team)
}

func TestCreateTeamDuplicate(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery(`SELECT \* FROM "teams"`).
		WillReturnRows(teamRows().AddRow(1, "Hawks", "Hawks", 100))

	err := store.CreateTeam(context.Background(), &models.Team{Name: "HAWKS", RoleTag: "H2"})

	assert.ErrorIs(t, err, ErrDuplicateTeam)
}

func TestFindPlayerMissing(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery(`SELECT \* FROM "players" WHERE chat_id = \$1 AND user_id = \$2`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "chat_id", "user_id", "username", "team_id"}))

	player, err := store.FindPlayer(context.Background(), 10, 42)

	require.NoError(t, err)
	assert.Nil(t, player)
}

func TestInferTeamByRoleTags(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery(`SELECT \* FROM "teams" WHERE role_tag IN .+ ORDER BY id ASC`).
		WillReturnRows(teamRows().AddRow(2, "Wolves", "Wolves", 200))

	team, err := store.InferTeamByRoleTags(context.Background(), []string{"Captain", "Wolves"})

	require.NoError(t, err)
	require.NotNil(t, team)
	assert.Equal(t, 2, team.ID)
}

func TestInferTeamByRoleTagsNoTags(t *testing.T) {
	store, _ := newMockStore(t)

	team, err := store.InferTeamByRoleTags(context.Background(), nil)

	require.NoError(t, err)
	assert.Nil(t, team)
}

func TestGetRequestForUpdateLocksRow(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery(`SELECT \* FROM "transaction_requests" WHERE .+ FOR UPDATE`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "chat_id", "status", "action"}).
			AddRow(5, 10, "PENDING", "ADD"))

	req, err := store.GetRequestForUpdate(context.Background(), 5)

	require.NoError(t, err)
	require.NotNil(t, req)
	assert.Equal(t, 5, req.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEnqueueRoleSyncEmptyIsNoop(t *testing.T) {
	store, mock := newMockStore(t)

	require.NoError(t, store.EnqueueRoleSync(context.Background(), nil))
	assert.NoError(t, mock.ExpectationsWereMet())
}
