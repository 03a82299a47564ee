package repository

import (
	"fmt"

	"gorm.io/gorm"

	"aidesk/internal/model"
)

type PromptLogRepository struct {
	db *gorm.DB
}

func NewPromptLogRepository(db *gorm.DB) *PromptLogRepository {
	return &PromptLogRepository{db: db}
}

func (r *PromptLogRepository) Create(entry *model.PromptLog) error {
	if err := r.db.Create(entry).Error; err != nil {
		return fmt.Errorf("create prompt log failed: %w", err)
	}
	return nil
}

func (r *PromptLogRepository) ListByUserID(userID uint, limit int) ([]model.PromptLog, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	var logs []model.PromptLog
	if err := r.db.Where("user_id = ?", userID).Order("created_at DESC").Limit(limit).Find(&logs).Error; err != nil {
		return nil, fmt.Errorf("list prompt logs failed: %w", err)
	}
	return logs, nil
}
