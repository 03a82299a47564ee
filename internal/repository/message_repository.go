package repository

import (
	"errors"
	"fmt"
	"path"

	"gorm.io/gorm"

	"aidesk/internal/model"
)

type MessageRepository struct {
	db *gorm.DB
}

// MessageWithFile is a message row with its referenced file denormalized for
// history responses. FileURL is derived under the public /uploads/ prefix.
type MessageWithFile struct {
	model.Message
	FileName string `json:"file_name,omitempty"`
	FilePath string `json:"file_path,omitempty"`
	FileURL  string `json:"file_url,omitempty"`
}

func NewMessageRepository(db *gorm.DB) *MessageRepository {
	return &MessageRepository{db: db}
}

func (r *MessageRepository) Create(message *model.Message) error {
	if err := r.db.Create(message).Error; err != nil {
		return fmt.Errorf("create message failed: %w", err)
	}
	return nil
}

// ListByChatID returns every message of a chat oldest-first. Ties on
// created_at are broken by the insertion id so the order is total.
func (r *MessageRepository) ListByChatID(chatID uint) ([]model.Message, error) {
	var messages []model.Message
	if err := r.db.Where("chat_id = ?", chatID).Order("created_at ASC, id ASC").Find(&messages).Error; err != nil {
		return nil, fmt.Errorf("list messages failed: %w", err)
	}
	return messages, nil
}

func (r *MessageRepository) ListByChatIDWithFiles(chatID uint) ([]MessageWithFile, error) {
	messages, err := r.ListByChatID(chatID)
	if err != nil {
		return nil, err
	}

	out := make([]MessageWithFile, 0, len(messages))
	for _, msg := range messages {
		item := MessageWithFile{Message: msg}
		if msg.FileID != nil {
			var file model.ChatFile
			if err := r.db.First(&file, *msg.FileID).Error; err == nil {
				item.FileName = file.FileName
				item.FilePath = file.FilePath
				item.FileURL = "/uploads/" + path.Base(file.FilePath)
			}
		}
		out = append(out, item)
	}
	return out, nil
}

func (r *MessageRepository) LastByChatID(chatID uint) (*model.Message, error) {
	var message model.Message
	err := r.db.Where("chat_id = ?", chatID).Order("created_at DESC, id DESC").First(&message).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("get last message failed: %w", err)
	}
	return &message, nil
}

func (r *MessageRepository) CountByChatID(chatID uint) (int64, error) {
	var count int64
	if err := r.db.Model(&model.Message{}).Where("chat_id = ?", chatID).Count(&count).Error; err != nil {
		return 0, fmt.Errorf("count messages failed: %w", err)
	}
	return count, nil
}

func (r *MessageRepository) DeleteByChatID(chatID uint) error {
	if err := r.db.Where("chat_id = ?", chatID).Delete(&model.Message{}).Error; err != nil {
		return fmt.Errorf("delete messages failed: %w", err)
	}
	return nil
}
