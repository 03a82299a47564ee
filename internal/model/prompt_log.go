package model

import "time"

// PromptLog is a best-effort transcript of one LLM call, persisted
// asynchronously. Messages holds the sequenced message list as JSON.
type PromptLog struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	UserID       uint      `gorm:"not null;index" json:"user_id"`
	ChatID       uint      `gorm:"not null;index" json:"chat_id"`
	SystemPrompt string    `gorm:"type:text" json:"system_prompt"`
	Messages     string    `gorm:"type:text" json:"messages"`
	CreatedAt    time.Time `json:"created_at"`
}
