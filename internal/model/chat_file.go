package model

import "time"

type ChatFile struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	ChatID     uint      `gorm:"not null;index" json:"chat_id"`
	FileName   string    `gorm:"size:256;not null" json:"file_name"`
	FilePath   string    `gorm:"size:512;not null" json:"file_path"`
	UploadedAt time.Time `gorm:"autoCreateTime" json:"uploaded_at"`
}
