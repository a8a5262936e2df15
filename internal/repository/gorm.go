package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
)

// GormGatherRoundRepository implements GatherRoundRepository using GORM.
type GormGatherRoundRepository struct {
	db *gorm.DB
}

// NewGormGatherRoundRepository creates a new GormGatherRoundRepository.
func NewGormGatherRoundRepository(db *gorm.DB) *GormGatherRoundRepository {
	return &GormGatherRoundRepository{db: db}
}

// Create records the start of a new gather round.
func (r *GormGatherRoundRepository) Create(ctx context.Context, round *GatherRound) error {
	if round.StartedAt.IsZero() {
		return fmt.Errorf("gather round must have a StartedAt timestamp")
	}
	if err := r.db.WithContext(ctx).Create(round).Error; err != nil {
		return fmt.Errorf("failed to create gather round: %w", err)
	}
	return nil
}

// Finish updates a round with its terminal status and output details.
func (r *GormGatherRoundRepository) Finish(ctx context.Context, id int64, update GatherRoundUpdate) error {
	now := time.Now()
	res := r.db.WithContext(ctx).
		Model(&GatherRound{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"finished_at":      now,
			"responding_count": update.RespondingCount,
			"width_words":      update.WidthWords,
			"output_path":      update.OutputPath,
			"status":           update.Status,
		})
	if res.Error != nil {
		return fmt.Errorf("failed to finish gather round: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("gather round not found: %d", id)
	}
	return nil
}

// GetByID retrieves a single round by ID.
func (r *GormGatherRoundRepository) GetByID(ctx context.Context, id int64) (*GatherRound, error) {
	var round GatherRound
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&round).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("gather round not found: %d", id)
		}
		return nil, fmt.Errorf("failed to get gather round: %w", err)
	}
	return &round, nil
}

// ListRecent retrieves the most recent rounds, newest first.
func (r *GormGatherRoundRepository) ListRecent(ctx context.Context, limit int) ([]*GatherRound, error) {
	var rounds []*GatherRound
	err := r.db.WithContext(ctx).Order("id DESC").Limit(limit).Find(&rounds).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list gather rounds: %w", err)
	}
	return rounds, nil
}
