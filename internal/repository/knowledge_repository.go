package repository

import (
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"

	"aidesk/internal/model"
)

type KnowledgeRepository struct {
	db *gorm.DB
}

func NewKnowledgeRepository(db *gorm.DB) *KnowledgeRepository {
	return &KnowledgeRepository{db: db}
}

func (r *KnowledgeRepository) Create(item *model.KnowledgeItem) error {
	if err := r.db.Create(item).Error; err != nil {
		return fmt.Errorf("create knowledge item failed: %w", err)
	}
	return nil
}

func (r *KnowledgeRepository) ListAll() ([]model.KnowledgeItem, error) {
	var items []model.KnowledgeItem
	if err := r.db.Order("id ASC").Find(&items).Error; err != nil {
		return nil, fmt.Errorf("list knowledge items failed: %w", err)
	}
	return items, nil
}

func (r *KnowledgeRepository) GetByID(id uint) (*model.KnowledgeItem, error) {
	var item model.KnowledgeItem
	if err := r.db.First(&item, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("get knowledge item failed: %w", err)
	}
	return &item, nil
}

// Search matches query as a case-insensitive substring of question or answer.
// No relevance ordering beyond the store's natural order.
func (r *KnowledgeRepository) Search(query string) ([]model.KnowledgeItem, error) {
	pattern := "%" + strings.ToLower(query) + "%"
	var items []model.KnowledgeItem
	err := r.db.
		Where("LOWER(question) LIKE ? OR LOWER(answer) LIKE ?", pattern, pattern).
		Find(&items).Error
	if err != nil {
		return nil, fmt.Errorf("search knowledge items failed: %w", err)
	}
	return items, nil
}

func (r *KnowledgeRepository) Update(item *model.KnowledgeItem) error {
	if err := r.db.Save(item).Error; err != nil {
		return fmt.Errorf("update knowledge item failed: %w", err)
	}
	return nil
}

func (r *KnowledgeRepository) DeleteByID(id uint) error {
	if err := r.db.Delete(&model.KnowledgeItem{}, id).Error; err != nil {
		return fmt.Errorf("delete knowledge item failed: %w", err)
	}
	return nil
}
