package repository

import (
	"fmt"

	"gorm.io/gorm"

	"aidesk/internal/model"
)

type ChatFileRepository struct {
	db *gorm.DB
}

func NewChatFileRepository(db *gorm.DB) *ChatFileRepository {
	return &ChatFileRepository{db: db}
}

func (r *ChatFileRepository) Create(file *model.ChatFile) error {
	if err := r.db.Create(file).Error; err != nil {
		return fmt.Errorf("create chat file failed: %w", err)
	}
	return nil
}

func (r *ChatFileRepository) DeleteByChatID(chatID uint) error {
	if err := r.db.Where("chat_id = ?", chatID).Delete(&model.ChatFile{}).Error; err != nil {
		return fmt.Errorf("delete chat files failed: %w", err)
	}
	return nil
}
