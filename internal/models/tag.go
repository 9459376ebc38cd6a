package models

import (
	"strings"
	"time"
)

// Tag is a taxonomy entry identified by its slug.
type Tag struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Name      string    `gorm:"size:120;not null" json:"name"`
	Slug      string    `gorm:"size:140;not null;uniqueIndex" json:"slug"`
	CreatedAt time.Time `json:"-"`
	UpdatedAt time.Time `json:"-"`
}

// PostTag links a post to a tag.
type PostTag struct {
	PostID    uint      `gorm:"primaryKey;autoIncrement:false" json:"postId"`
	TagID     uint      `gorm:"primaryKey;autoIncrement:false;index" json:"tagId"`
	CreatedAt time.Time `json:"-"`
}

// Slugify lowercases name and collapses every run of characters outside
// [a-z0-9] into one hyphen, trimming hyphens at both ends.
func Slugify(name string) string {
	var b strings.Builder
	b.Grow(len(name))
	pendingHyphen := false
	for _, r := range strings.ToLower(name) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			if pendingHyphen && b.Len() > 0 {
				b.WriteByte('-')
			}
			pendingHyphen = false
			b.WriteRune(r)
			continue
		}
		pendingHyphen = true
	}
	return b.String()
}
