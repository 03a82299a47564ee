package model

import "time"

// KnowledgeItem is a single FAQ record. ImagePath is optional and points at a
// stored upload shown alongside the answer.
type KnowledgeItem struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Question  string    `gorm:"type:text;not null" json:"question"`
	Answer    string    `gorm:"type:text;not null" json:"answer"`
	ImagePath string    `gorm:"size:512" json:"image_path,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
