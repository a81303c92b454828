package roster

import (
	"context"
	"errors"

	"cvr-league/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type GormStore struct {
	db *gorm.DB
}

func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

func (s *GormStore) Transact(ctx context.Context, fn func(Store) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&GormStore{db: tx})
	})
}

func (s *GormStore) FindTeamByName(ctx context.Context, name string) (*models.Team, error) {
	var team models.Team
	err := s.db.WithContext(ctx).Where("LOWER(name) = LOWER(?)", name).First(&team).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &team, nil
}

func (s *GormStore) GetTeam(ctx context.Context, id int) (*models.Team, error) {
	var team models.Team
	err := s.db.WithContext(ctx).First(&team, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &team, nil
}

func (s *GormStore) CreateTeam(ctx context.Context, team *models.Team) error {
	existing, err := s.FindTeamByName(ctx, team.Name)
	if err != nil {
		return err
	}
	if existing != nil {
		return ErrDuplicateTeam
	}
	return s.db.WithContext(ctx).Create(team).Error
}

func (s *GormStore) ListTeams(ctx context.Context) ([]models.Team, error) {
	var teams []models.Team
	err := s.db.WithContext(ctx).Order("name ASC").Find(&teams).Error
	return teams, err
}

func (s *GormStore) ListRoster(ctx context.Context, teamID int) ([]models.Player, error) {
	var players []models.Player
	err := s.db.WithContext(ctx).
		Where("team_id = ?", teamID).
		Order("username ASC").
		Find(&players).Error
	return players, err
}

func (s *GormStore) FindPlayer(ctx context.Context, chatID, userID int64) (*models.Player, error) {
	var player models.Player
	err := s.db.WithContext(ctx).
		Where("chat_id = ? AND user_id = ?", chatID, userID).
		First(&player).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &player, nil
}

func (s *GormStore) EnsurePlayer(ctx context.Context, chatID, userID int64, username string) (*models.Player, error) {
	player, err := s.FindPlayer(ctx, chatID, userID)
	if err != nil {
		return nil, err
	}
	if player == nil {
		player = &models.Player{ChatID: chatID, UserID: userID, Username: username}
		if err := s.db.WithContext(ctx).Create(player).Error; err != nil {
			return nil, err
		}
		return player, nil
	}
	if username != "" && player.Username != username {
		player.Username = username
		if err := s.db.WithContext(ctx).Model(player).Update("username", username).Error; err != nil {
			return nil, err
		}
	}
	return player, nil
}

func (s *GormStore) InferTeamByRoleTags(ctx context.Context, tags []string) (*models.Team, error) {
	if len(tags) == 0 {
		return nil, nil
	}
	var team models.Team
	err := s.db.WithContext(ctx).
		Where("role_tag IN ?", tags).
		Order("id ASC").
		First(&team).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &team, nil
}

func (s *GormStore) SetPlayerTeam(ctx context.Context, player *models.Player, teamID *int) error {
	if err := s.db.WithContext(ctx).Model(player).Update("team_id", teamID).Error; err != nil {
		return err
	}
	player.TeamID = teamID
	return nil
}

func (s *GormStore) CreateRequest(ctx context.Context, req *models.TransactionRequest) error {
	return s.db.WithContext(ctx).Create(req).Error
}

func (s *GormStore) GetRequest(ctx context.Context, id int) (*models.TransactionRequest, error) {
	var req models.TransactionRequest
	err := s.db.WithContext(ctx).First(&req, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &req, nil
}

func (s *GormStore) GetRequestForUpdate(ctx context.Context, id int) (*models.TransactionRequest, error) {
	var req models.TransactionRequest
	err := s.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&req, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &req, nil
}

func (s *GormStore) SaveRequest(ctx context.Context, req *models.TransactionRequest) error {
	return s.db.WithContext(ctx).Save(req).Error
}

func (s *GormStore) EnqueueRoleSync(ctx context.Context, ops []models.RoleSyncOp) error {
	if len(ops) == 0 {
		return nil
	}
	return s.db.WithContext(ctx).Create(&ops).Error
}
