package engine

import (
	"context"
	"strings"
	"sync"
	"testing"

	"cvr-league/internal/authz"
	"cvr-league/internal/models"
	"cvr-league/internal/roster"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type playerKey struct {
	chatID int64
	userID int64
}

// fakeStore is an in-memory roster.Store. Transact serializes whole
// transactions, standing in for the row lock the real store takes.
type fakeStore struct {
	txMu sync.Mutex
	mu   sync.Mutex

	teams    map[int]*models.Team
	players  map[playerKey]*models.Player
	requests map[int]*models.TransactionRequest
	ops      []models.RoleSyncOp

	nextTeamID   int
	nextPlayerID int
	nextReqID    int
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		teams:    make(map[int]*models.Team),
		players:  make(map[playerKey]*models.Player),
		requests: make(map[int]*models.TransactionRequest),
	}
}

func (f *fakeStore) Transact(ctx context.Context, fn func(roster.Store) error) error {
	f.txMu.Lock()
	defer f.txMu.Unlock()
	return fn(f)
}

func (f *fakeStore) FindTeamByName(ctx context.Context, name string) (*models.Team, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, t := range f.teams {
		if strings.EqualFold(t.Name, name) {
			cp := *t
			return &cp, nil
		}
	}
	return nil, nil
}

func (f *fakeStore) GetTeam(ctx context.Context, id int) (*models.Team, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	t, ok := f.teams[id]
	if !ok {
		return nil, nil
	}
	cp := *t
	return &cp, nil
}

func (f *fakeStore) CreateTeam(ctx context.Context, team *models.Team) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, t := range f.teams {
		if strings.EqualFold(t.Name, team.Name) {
			return roster.ErrDuplicateTeam
		}
	}
	f.nextTeamID++
	team.ID = f.nextTeamID
	cp := *team
	f.teams[team.ID] = &cp
	return nil
}

func (f *fakeStore) ListTeams(ctx context.Context) ([]models.Team, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]models.Team, 0, len(f.teams))
	for _, t := range f.teams {
		out = append(out, *t)
	}
	return out, nil
}

func (f *fakeStore) ListRoster(ctx context.Context, teamID int) ([]models.Player, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.Player
	for _, p := range f.players {
		if p.TeamID != nil && *p.TeamID == teamID {
			out = append(out, *p)
		}
	}
	return out, nil
}

func (f *fakeStore) FindPlayer(ctx context.Context, chatID, userID int64) (*models.Player, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.players[playerKey{chatID, userID}]
	if !ok {
		return nil, nil
	}
	cp := *p
	return &cp, nil
}

func (f *fakeStore) EnsurePlayer(ctx context.Context, chatID, userID int64, username string) (*models.Player, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := playerKey{chatID, userID}
	if p, ok := f.players[key]; ok {
		if username != "" {
			p.Username = username
		}
		cp := *p
		return &cp, nil
	}
	f.nextPlayerID++
	p := &models.Player{ID: f.nextPlayerID, ChatID: chatID, UserID: userID, Username: username}
	f.players[key] = p
	cp := *p
	return &cp, nil
}

func (f *fakeStore) InferTeamByRoleTags(ctx context.Context, tags []string) (*models.Team, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var best *models.Team
	for _, t := range f.teams {
		for _, tag := range tags {
			if t.RoleTag == tag && (best == nil || t.ID < best.ID) {
				best = t
			}
		}
	}
	if best == nil {
		return nil, nil
	}
	cp := *best
	return &cp, nil
}

func (f *fakeStore) SetPlayerTeam(ctx context.Context, player *models.Player, teamID *int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	stored, ok := f.players[playerKey{player.ChatID, player.UserID}]
	if !ok {
		return nil
	}
	if teamID == nil {
		stored.TeamID = nil
		player.TeamID = nil
		return nil
	}
	id := *teamID
	stored.TeamID = &id
	player.TeamID = &id
	return nil
}

func (f *fakeStore) CreateRequest(ctx context.Context, req *models.TransactionRequest) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextReqID++
	req.ID = f.nextReqID
	cp := *req
	f.requests[req.ID] = &cp
	return nil
}

func (f *fakeStore) GetRequest(ctx context.Context, id int) (*models.TransactionRequest, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.requests[id]
	if !ok {
		return nil, nil
	}
	cp := *r
	return &cp, nil
}

func (f *fakeStore) GetRequestForUpdate(ctx context.Context, id int) (*models.TransactionRequest, error) {
	return f.GetRequest(ctx, id)
}

func (f *fakeStore) SaveRequest(ctx context.Context, req *models.TransactionRequest) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *req
	f.requests[req.ID] = &cp
	return nil
}

func (f *fakeStore) EnqueueRoleSync(ctx context.Context, ops []models.RoleSyncOp) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ops = append(f.ops, ops...)
	return nil
}

const testChat int64 = 10

type fixture struct {
	store  *fakeStore
	engine *Engine

	hawks  *models.Team
	wolves *models.Team
}

// newFixture seeds two teams: Hawks captained by 100 and Wolves
// captained by 200 with player 201 on the roster. 300 is unattached.
func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := newFakeStore()
	policy := authz.Policy{
		Admins:     []int64{1},
		CaptainTag: "Captain",
		ViceTag:    "Vice Captain",
		CourtTag:   "Court Captain",
		PlayerTag:  "Player",
		RefereeTag: "Referee",
		MediaTag:   "Media",
	}
	eng := New(store, policy, zap.NewNop().Sugar())

	f := &fixture{store: store, engine: eng}
	ctx := context.Background()

	cap100 := int64(100)
	f.hawks = &models.Team{Name: "Hawks", RoleTag: "Hawks", CaptainID: &cap100}
	require.NoError(t, store.CreateTeam(ctx, f.hawks))
	cap200 := int64(200)
	f.wolves = &models.Team{Name: "Wolves", RoleTag: "Wolves", CaptainID: &cap200}
	require.NoError(t, store.CreateTeam(ctx, f.wolves))

	f.seedPlayer(t, 100, "hawks_cap", &f.hawks.ID)
	f.seedPlayer(t, 200, "wolves_cap", &f.wolves.ID)
	f.seedPlayer(t, 201, "wolves_guard", &f.wolves.ID)
	f.seedPlayer(t, 300, "free_agent", nil)
	return f
}

func (f *fixture) seedPlayer(t *testing.T, userID int64, username string, teamID *int) {
	t.Helper()
	ctx := context.Background()
	p, err := f.store.EnsurePlayer(ctx, testChat, userID, username)
	require.NoError(t, err)
	require.NoError(t, f.store.SetPlayerTeam(ctx, p, teamID))
}

func (f *fixture) playerTeam(t *testing.T, userID int64) *int {
	t.Helper()
	p, err := f.store.FindPlayer(context.Background(), testChat, userID)
	require.NoError(t, err)
	require.NotNil(t, p)
	return p.TeamID
}

func captainTags() []string { return []string{"Captain"} }

func (f *fixture) openAdd(t *testing.T, target int64, targetName string) *models.TransactionRequest {
	t.Helper()
	req, _, err := f.engine.Open(context.Background(), OpenParams{
		ChatID:         testChat,
		Requester:      100,
		RequesterName:  "hawks_cap",
		RequesterTags:  captainTags(),
		TargetUserID:   target,
		TargetUsername: targetName,
		Action:         models.ActionAdd,
		RequestedRole:  authz.RolePlayer,
	})
	require.NoError(t, err)
	return req
}

func TestOpenAdd(t *testing.T) {
	f := newFixture(t)

	req, dir, err := f.engine.Open(context.Background(), OpenParams{
		ChatID:         testChat,
		Requester:      100,
		RequesterName:  "hawks_cap",
		RequesterTags:  captainTags(),
		TargetUserID:   300,
		TargetUsername: "free_agent",
		Action:         models.ActionAdd,
		RequestedRole:  authz.RoleViceCaptain,
	})

	require.NoError(t, err)
	assert.Equal(t, models.StatusPending, req.Status)
	require.NotNil(t, req.ToTeamID)
	assert.Equal(t, f.hawks.ID, *req.ToTeamID)
	assert.Nil(t, req.FromTeamID)
	assert.Equal(t, models.StageAwaitingStaff, req.Stage())

	require.NotNil(t, dir)
	assert.Equal(t, "Pending Transaction", dir.Title)
	assert.Equal(t, "free_agent → Hawks as Vice Captain", dir.Body)
	assert.Equal(t, "hawks_cap", dir.RequestedBy)
}

func TestOpenUnauthorized(t *testing.T) {
	f := newFixture(t)

	_, _, err := f.engine.Open(context.Background(), OpenParams{
		ChatID:        testChat,
		Requester:     300,
		RequesterTags: []string{"Player"},
		TargetUserID:  201,
		Action:        models.ActionAdd,
	})

	assert.ErrorIs(t, err, ErrUnauthorized)
}

func TestOpenTeamNotResolved(t *testing.T) {
	f := newFixture(t)

	// captain tag grants authority but matches no registered team
	f.seedPlayer(t, 400, "lost_cap", nil)
	_, _, err := f.engine.Open(context.Background(), OpenParams{
		ChatID:        testChat,
		Requester:     400,
		RequesterTags: captainTags(),
		TargetUserID:  300,
		Action:        models.ActionAdd,
	})

	assert.ErrorIs(t, err, ErrTeamNotResolved)
}

func TestOpenInfersTeamFromTags(t *testing.T) {
	f := newFixture(t)
	f.seedPlayer(t, 400, "new_cap", nil)

	req, _, err := f.engine.Open(context.Background(), OpenParams{
		ChatID:         testChat,
		Requester:      400,
		RequesterName:  "new_cap",
		RequesterTags:  []string{"Captain", "Hawks"},
		TargetUserID:   300,
		TargetUsername: "free_agent",
		Action:         models.ActionAdd,
		RequestedRole:  authz.RolePlayer,
	})

	require.NoError(t, err)
	require.NotNil(t, req.ToTeamID)
	assert.Equal(t, f.hawks.ID, *req.ToTeamID)

	// the inference is persisted on the requester's row
	teamID := f.playerTeam(t, 400)
	require.NotNil(t, teamID)
	assert.Equal(t, f.hawks.ID, *teamID)
}

func TestOpenRemoveRequiresOwnPlayer(t *testing.T) {
	f := newFixture(t)

	_, _, err := f.engine.Open(context.Background(), OpenParams{
		ChatID:        testChat,
		Requester:     100,
		RequesterTags: captainTags(),
		TargetUserID:  201, // plays for Wolves
		Action:        models.ActionRemove,
	})

	assert.ErrorIs(t, err, ErrNotYourPlayer)
}

func TestAcceptAddMutatesRosterOnce(t *testing.T) {
	f := newFixture(t)
	req := f.openAdd(t, 300, "free_agent")

	got, dir, err := f.engine.Accept(context.Background(), req.ID, 1, "admin", nil)

	require.NoError(t, err)
	assert.Equal(t, models.StatusApproved, got.Status)
	require.NotNil(t, got.ReviewedBy)
	assert.Equal(t, int64(1), *got.ReviewedBy)
	assert.Equal(t, "Successful Transfer", dir.Title)
	assert.Equal(t, "admin", dir.ActorName)

	teamID := f.playerTeam(t, 300)
	require.NotNil(t, teamID)
	assert.Equal(t, f.hawks.ID, *teamID)
	assert.NotEmpty(t, f.store.ops)
}

func TestAcceptAddUnauthorizedReviewer(t *testing.T) {
	f := newFixture(t)
	req := f.openAdd(t, 300, "free_agent")

	_, _, err := f.engine.Accept(context.Background(), req.ID, 300, "free_agent", []string{"Player"})

	assert.ErrorIs(t, err, ErrUnauthorized)
	assert.Nil(t, f.playerTeam(t, 300))
}

func TestAcceptUnknownRequest(t *testing.T) {
	f := newFixture(t)

	_, _, err := f.engine.Accept(context.Background(), 999, 1, "admin", nil)

	assert.ErrorIs(t, err, ErrInvalidState)
}

func TestRemoveApprovalFreesPlayer(t *testing.T) {
	f := newFixture(t)

	req, _, err := f.engine.Open(context.Background(), OpenParams{
		ChatID:         testChat,
		Requester:      200,
		RequesterName:  "wolves_cap",
		RequesterTags:  captainTags(),
		TargetUserID:   201,
		TargetUsername: "wolves_guard",
		Action:         models.ActionRemove,
	})
	require.NoError(t, err)
	assert.Nil(t, req.ToTeamID)

	_, dir, err := f.engine.Accept(context.Background(), req.ID, 1, "admin", nil)
	require.NoError(t, err)

	assert.Nil(t, f.playerTeam(t, 201))
	assert.Contains(t, dir.Body, "Free Agent")

	// the plan ends by stripping the old team tag
	last := f.store.ops[len(f.store.ops)-1]
	assert.Equal(t, models.SyncOpRemove, last.Op)
	assert.Equal(t, "Wolves", last.Tag)
}

func openTransfer(t *testing.T, f *fixture) *models.TransactionRequest {
	t.Helper()
	req, dir, err := f.engine.Open(context.Background(), OpenParams{
		ChatID:         testChat,
		Requester:      100,
		RequesterName:  "hawks_cap",
		RequesterTags:  captainTags(),
		TargetUserID:   201,
		TargetUsername: "wolves_guard",
		Action:         models.ActionTransfer,
	})
	require.NoError(t, err)
	require.Contains(t, dir.Body, "(0/2)")
	return req
}

func TestTransferLifecycle(t *testing.T) {
	f := newFixture(t)
	notified := 0
	f.engine.OnApproved(func() { notified++ })

	req := openTransfer(t, f)
	require.NotNil(t, req.FromTeamID)
	assert.Equal(t, f.wolves.ID, *req.FromTeamID)
	assert.Equal(t, models.StageAwaitingPlayer, req.Stage())

	// nobody but the target may confirm stage one, reviewers included
	_, _, err := f.engine.Accept(context.Background(), req.ID, 1, "admin", nil)
	assert.ErrorIs(t, err, ErrAwaitingPlayer)
	assert.ErrorIs(t, err, ErrNotYourTurn)

	got, dir, err := f.engine.Accept(context.Background(), req.ID, 201, "wolves_guard", nil)
	require.NoError(t, err)
	assert.True(t, got.PlayerConfirmed)
	assert.Equal(t, models.StatusPending, got.Status)
	assert.Equal(t, models.StageAwaitingStaff, got.Stage())
	require.NotEmpty(t, dir.Affordances)
	assert.Equal(t, "Accept (1/2)", dir.Affordances[0].Label)
	assert.Zero(t, notified)

	// the player cannot push it through a second time
	_, _, err = f.engine.Accept(context.Background(), req.ID, 201, "wolves_guard", nil)
	assert.ErrorIs(t, err, ErrAwaitingStaff)

	got, dir, err = f.engine.Accept(context.Background(), req.ID, 1, "admin", nil)
	require.NoError(t, err)
	assert.Equal(t, models.StatusApproved, got.Status)
	assert.Equal(t, "Successful Transfer", dir.Title)
	assert.Equal(t, 1, notified)

	teamID := f.playerTeam(t, 201)
	require.NotNil(t, teamID)
	assert.Equal(t, f.hawks.ID, *teamID)
	assert.NotEmpty(t, f.store.ops)
}

func TestTransferSelfDeny(t *testing.T) {
	f := newFixture(t)
	req := openTransfer(t, f)

	got, dir, err := f.engine.Deny(context.Background(), req.ID, 201, "wolves_guard", nil, "")

	require.NoError(t, err)
	assert.Equal(t, models.StatusRejected, got.Status)
	assert.Equal(t, PlayerDeniedReason, got.Reason)
	assert.Equal(t, PlayerDeniedReason, dir.Reason)

	// roster untouched
	teamID := f.playerTeam(t, 201)
	require.NotNil(t, teamID)
	assert.Equal(t, f.wolves.ID, *teamID)
	assert.Empty(t, f.store.ops)
}

func TestTransferSelfDenyOnlyBeforeConfirm(t *testing.T) {
	f := newFixture(t)
	req := openTransfer(t, f)

	_, _, err := f.engine.Accept(context.Background(), req.ID, 201, "wolves_guard", nil)
	require.NoError(t, err)

	// after confirming, the player is an ordinary (unauthorized) actor
	_, _, err = f.engine.Deny(context.Background(), req.ID, 201, "wolves_guard", nil, "changed my mind")
	assert.ErrorIs(t, err, ErrUnauthorized)
}

func TestDenyRequiresReason(t *testing.T) {
	f := newFixture(t)
	req := f.openAdd(t, 300, "free_agent")

	_, _, err := f.engine.Deny(context.Background(), req.ID, 1, "admin", nil, "   ")
	assert.ErrorIs(t, err, ErrInvalidReason)

	_, _, err = f.engine.Deny(context.Background(), req.ID, 1, "admin", nil, strings.Repeat("x", 121))
	assert.ErrorIs(t, err, ErrInvalidReason)

	stored, err := f.store.GetRequest(context.Background(), req.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusPending, stored.Status)
}

func TestDenyWithReason(t *testing.T) {
	f := newFixture(t)
	req := f.openAdd(t, 300, "free_agent")

	got, dir, err := f.engine.Deny(context.Background(), req.ID, 1, "admin", nil, "roster is full")

	require.NoError(t, err)
	assert.Equal(t, models.StatusRejected, got.Status)
	assert.Equal(t, "roster is full", got.Reason)
	assert.Equal(t, "Unsuccessful Transfer", dir.Title)
	assert.Equal(t, "admin", dir.ActorName)
	assert.Nil(t, f.playerTeam(t, 300))
}

func TestTerminalRequestsStayTerminal(t *testing.T) {
	f := newFixture(t)
	req := f.openAdd(t, 300, "free_agent")

	_, _, err := f.engine.Accept(context.Background(), req.ID, 1, "admin", nil)
	require.NoError(t, err)

	_, _, err = f.engine.Accept(context.Background(), req.ID, 1, "admin", nil)
	assert.ErrorIs(t, err, ErrInvalidState)

	_, _, err = f.engine.Deny(context.Background(), req.ID, 1, "admin", nil, "too late")
	assert.ErrorIs(t, err, ErrInvalidState)
}

func TestConcurrentAcceptApprovesOnce(t *testing.T) {
	f := newFixture(t)
	notified := 0
	var notifyMu sync.Mutex
	f.engine.OnApproved(func() {
		notifyMu.Lock()
		notified++
		notifyMu.Unlock()
	})
	req := f.openAdd(t, 300, "free_agent")

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, _, errs[i] = f.engine.Accept(context.Background(), req.ID, 1, "admin", nil)
		}(i)
	}
	wg.Wait()

	var okCount, staleCount int
	for _, err := range errs {
		switch {
		case err == nil:
			okCount++
		case assert.ErrorIs(t, err, ErrInvalidState):
			staleCount++
		}
	}
	assert.Equal(t, 1, okCount)
	assert.Equal(t, 1, staleCount)
	assert.Equal(t, 1, notified)

	// one plan, not two
	var removes int
	for _, op := range f.store.ops {
		if op.Op == models.SyncOpRemove {
			removes++
		}
	}
	assert.Equal(t, 3, removes)
}

func TestRegisterTeam(t *testing.T) {
	f := newFixture(t)

	team, err := f.engine.RegisterTeam(context.Background(), testChat, 1, "Eagles", "Eagles", 500, "eagles_cap")

	require.NoError(t, err)
	require.NotNil(t, team.CaptainID)
	assert.Equal(t, int64(500), *team.CaptainID)

	teamID := f.playerTeam(t, 500)
	require.NotNil(t, teamID)
	assert.Equal(t, team.ID, *teamID)

	// captain gets the team tag and the captain tag
	require.Len(t, f.store.ops, 2)
	assert.Equal(t, "Eagles", f.store.ops[0].Tag)
	assert.Equal(t, "Captain", f.store.ops[1].Tag)
}

func TestRegisterTeamRequiresAdmin(t *testing.T) {
	f := newFixture(t)

	_, err := f.engine.RegisterTeam(context.Background(), testChat, 100, "Eagles", "Eagles", 500, "eagles_cap")

	assert.ErrorIs(t, err, ErrUnauthorized)
}

func TestRegisterTeamDuplicateName(t *testing.T) {
	f := newFixture(t)

	_, err := f.engine.RegisterTeam(context.Background(), testChat, 1, "hawks", "Hawks2", 500, "cap")

	assert.ErrorIs(t, err, ErrDuplicateTeam)
}
