package repository

import (
	"errors"
	"fmt"

	"gorm.io/gorm"

	"aidesk/internal/model"
)

type ContextRepository struct {
	db *gorm.DB
}

func NewContextRepository(db *gorm.DB) *ContextRepository {
	return &ContextRepository{db: db}
}

func (r *ContextRepository) Create(ctx *model.Context) error {
	if err := r.db.Create(ctx).Error; err != nil {
		return fmt.Errorf("create context failed: %w", err)
	}
	return nil
}

// ListByUserID returns every context row for the user, most recently updated
// first. An empty result is a valid "no context" outcome, not an error.
func (r *ContextRepository) ListByUserID(userID uint) ([]model.Context, error) {
	var contexts []model.Context
	if err := r.db.Where("user_id = ?", userID).Order("updated_at DESC").Find(&contexts).Error; err != nil {
		return nil, fmt.Errorf("list contexts failed: %w", err)
	}
	return contexts, nil
}

func (r *ContextRepository) LatestByUserID(userID uint) (*model.Context, error) {
	var ctx model.Context
	err := r.db.Where("user_id = ?", userID).Order("updated_at DESC").First(&ctx).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("get latest context failed: %w", err)
	}
	return &ctx, nil
}

func (r *ContextRepository) GetByIDAndUserID(id, userID uint) (*model.Context, error) {
	var ctx model.Context
	if err := r.db.Where("id = ? AND user_id = ?", id, userID).First(&ctx).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("get context failed: %w", err)
	}
	return &ctx, nil
}

func (r *ContextRepository) DeleteByIDAndUserID(id, userID uint) error {
	if err := r.db.Where("id = ? AND user_id = ?", id, userID).Delete(&model.Context{}).Error; err != nil {
		return fmt.Errorf("delete context failed: %w", err)
	}
	return nil
}
