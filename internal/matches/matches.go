// Package matches keeps the match schedule and posted results. These
// are plain CRUD records with no multi-step workflow; only the
// authorization gates differ per operation.
package matches

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"cvr-league/internal/authz"
	"cvr-league/internal/engine"
	"cvr-league/internal/models"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

var ErrMatchNotFound = errors.New("match not found")

type Service struct {
	db     *gorm.DB
	policy authz.Policy
	log    *zap.SugaredLogger
}

func NewService(db *gorm.DB, policy authz.Policy, log *zap.SugaredLogger) *Service {
	return &Service{db: db, policy: policy, log: log}
}

// GenMatchID builds a schedule id like "SA-20260901-4821".
func GenMatchID() string {
	return fmt.Sprintf("SA-%s-%d", time.Now().UTC().Format("20060102"), 1000+rand.Intn(9000))
}

// CreateMatch schedules a match. Admin only.
func (s *Service) CreateMatch(ctx context.Context, chatID, actor int64, teamA, teamB string, bestOf int, scheduledAt *time.Time) (*models.MatchSchedule, error) {
	if !s.policy.IsAdmin(actor) {
		return nil, fmt.Errorf("create match: %w", engine.ErrUnauthorized)
	}
	if bestOf == 0 {
		bestOf = 5
	}

	match := &models.MatchSchedule{
		ChatID:      chatID,
		MatchID:     GenMatchID(),
		TeamA:       teamA,
		TeamB:       teamB,
		BestOf:      bestOf,
		ScheduledAt: scheduledAt,
		Status:      models.MatchOpen,
	}
	if err := s.db.WithContext(ctx).Create(match).Error; err != nil {
		return nil, err
	}
	s.log.Infow("match created", "match_id", match.MatchID, "teams", teamA+" vs "+teamB)
	return match, nil
}

// CloseMatch marks a scheduled match CLOSED. Admin only.
func (s *Service) CloseMatch(ctx context.Context, chatID, actor int64, matchID string) error {
	if !s.policy.IsAdmin(actor) {
		return fmt.Errorf("close match: %w", engine.ErrUnauthorized)
	}
	res := s.db.WithContext(ctx).
		Model(&models.MatchSchedule{}).
		Where("chat_id = ? AND match_id = ?", chatID, matchID).
		Update("status", models.MatchClosed)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrMatchNotFound
	}
	return nil
}

// PostResult records a result and marks the schedule DONE. Gated on
// the results authority (admin, referee or media).
func (s *Service) PostResult(ctx context.Context, chatID, actor int64, actorTags []string, matchID string, aScore, bScore int, mvpA, mvpB *int64) (*models.MatchResult, error) {
	if !s.policy.CanPostResults(actor, actorTags) {
		return nil, fmt.Errorf("post result: %w", engine.ErrUnauthorized)
	}

	result := &models.MatchResult{
		ChatID:     chatID,
		MatchID:    matchID,
		TeamAScore: aScore,
		TeamBScore: bScore,
		MVPA:       mvpA,
		MVPB:       mvpB,
		PostedBy:   actor,
	}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var schedule models.MatchSchedule
		err := tx.Where("chat_id = ? AND match_id = ?", chatID, matchID).First(&schedule).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrMatchNotFound
		}
		if err != nil {
			return err
		}
		if err := tx.Create(result).Error; err != nil {
			return err
		}
		return tx.Model(&schedule).Update("status", models.MatchDone).Error
	})
	if err != nil {
		return nil, err
	}
	s.log.Infow("result posted", "match_id", matchID, "score", fmt.Sprintf("%d x %d", aScore, bScore), "by", actor)
	return result, nil
}

// ListMatches returns the latest 10 schedules in the chat.
func (s *Service) ListMatches(ctx context.Context, chatID int64) ([]models.MatchSchedule, error) {
	var rows []models.MatchSchedule
	err := s.db.WithContext(ctx).
		Where("chat_id = ?", chatID).
		Order("created_at DESC").
		Limit(10).
		Find(&rows).Error
	return rows, err
}

// RecentMatches returns the latest schedules across all chats, newest
// first, for the read-only API.
func (s *Service) RecentMatches(ctx context.Context, limit int) ([]models.MatchSchedule, error) {
	if limit <= 0 || limit > 100 {
		limit = 25
	}
	var rows []models.MatchSchedule
	err := s.db.WithContext(ctx).
		Order("created_at DESC").
		Limit(limit).
		Find(&rows).Error
	return rows, err
}
