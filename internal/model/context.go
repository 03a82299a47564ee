package model

import "time"

const (
	ContextTypeText = "text"
	ContextTypeFile = "file"
)

// Context is per-user background injected into every subsequent prompt.
// ContentType discriminates literal text from file-derived entries; for the
// latter Content holds the original file name and ContentRaw the extracted
// text.
type Context struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	UserID      uint      `gorm:"not null;index" json:"user_id"`
	Content     string    `gorm:"type:text;not null" json:"content"`
	ContentType string    `gorm:"size:16;not null" json:"content_type"`
	ContentRaw  string    `gorm:"type:text" json:"content_raw,omitempty"`
	FilePath    string    `gorm:"size:512" json:"file_path,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}
