package models

import (
	"time"

	"gorm.io/gorm"
)

// PostComment is a comment on a post.
type PostComment struct {
	ID        uint           `gorm:"primaryKey" json:"id"`
	PostID    uint           `gorm:"not null;index" json:"postId"`
	AuthorID  uint           `gorm:"not null;index" json:"authorId"`
	Content   string         `gorm:"type:text;not null" json:"content"`
	Author    *User          `gorm:"-" json:"author"`
	CreatedAt time.Time      `gorm:"index" json:"createdAt"`
	UpdatedAt time.Time      `json:"updatedAt"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}
