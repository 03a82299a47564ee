package model

import "time"

// Message is one turn half inside a chat. IsUser marks the role: true for the
// user, false for the assistant. FileID is set when the message records an
// uploaded file.
type Message struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	ChatID    uint      `gorm:"not null;index" json:"chat_id"`
	Content   string    `gorm:"type:text;not null" json:"content"`
	IsUser    bool      `gorm:"not null" json:"is_user"`
	FileID    *uint     `gorm:"index" json:"file_id,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}
