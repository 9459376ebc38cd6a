// Package models contains data structures for the application's domain models.
package models

import (
	"strings"
	"time"
)

// PostType enumerates the kinds of feed content.
type PostType string

const (
	PostTypeAnnouncement PostType = "ANNOUNCEMENT"
	PostTypeJob          PostType = "JOB"
	PostTypeEvent        PostType = "EVENT"
	PostTypeEventRecap   PostType = "EVENT_RECAP"
	PostTypeAchievement  PostType = "ACHIEVEMENT"
	PostTypeCollab       PostType = "COLLAB"
)

// PostTypes lists every known post type.
var PostTypes = []PostType{
	PostTypeAnnouncement,
	PostTypeJob,
	PostTypeEvent,
	PostTypeEventRecap,
	PostTypeAchievement,
	PostTypeCollab,
}

// ParsePostType accepts any casing; ok is false for unknown types.
func ParsePostType(raw string) (PostType, bool) {
	t := PostType(strings.ToUpper(strings.TrimSpace(raw)))
	for _, known := range PostTypes {
		if t == known {
			return t, true
		}
	}
	return "", false
}

// PostStatus is the publication lifecycle of a post.
type PostStatus string

const (
	PostStatusDraft     PostStatus = "draft"
	PostStatusPublished PostStatus = "published"
	PostStatusArchived  PostStatus = "archived"
)

// ParsePostStatus accepts any casing; ok is false for unknown statuses.
func ParsePostStatus(raw string) (PostStatus, bool) {
	switch s := PostStatus(strings.ToLower(strings.TrimSpace(raw))); s {
	case PostStatusDraft, PostStatusPublished, PostStatusArchived:
		return s, true
	default:
		return "", false
	}
}

// Post is a feed item. Posts are never hard-deleted; they end in archived.
type Post struct {
	ID        uint       `gorm:"primaryKey" json:"id"`
	Type      PostType   `gorm:"size:32;not null;index" json:"type"`
	Title     *string    `gorm:"size:300" json:"title"`
	Summary   string     `gorm:"type:text;not null;default:''" json:"summary"`
	AuthorID  *uint      `gorm:"index" json:"authorId"`
	Status    PostStatus `gorm:"size:16;not null;default:'draft';index" json:"status"`
	Pinned    bool       `gorm:"not null;default:false;index" json:"pinned"`
	ExpiresAt *time.Time `gorm:"index" json:"expiresAt"`
	CreatedAt time.Time  `gorm:"index" json:"createdAt"`
	UpdatedAt time.Time  `json:"updatedAt"`

	// Enrichment, filled per request and never persisted.
	Tags         []Tag       `gorm:"-" json:"tags"`
	Ref          *PostRef    `gorm:"-" json:"ref"`
	Author       *User       `gorm:"-" json:"author"`
	Votes        VoteSummary `gorm:"-" json:"votes"`
	CommentCount int64       `gorm:"-" json:"commentCount"`
}

// IsArchived reports whether the post reached its terminal status.
func (p *Post) IsArchived() bool {
	return p.Status == PostStatusArchived
}

// IsExpired reports whether the post's expiry lies before now.
func (p *Post) IsExpired(now time.Time) bool {
	return p.ExpiresAt != nil && p.ExpiresAt.Before(now)
}
