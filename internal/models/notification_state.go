package models

import (
	"fmt"
	"strings"
	"time"
)

// UserNotificationState holds a user's read watermark.
type UserNotificationState struct {
	UserID     uint      `gorm:"primaryKey;autoIncrement:false" json:"userId"`
	LastSeenAt time.Time `gorm:"not null" json:"lastSeenAt"`
	UpdatedAt  time.Time `json:"-"`
}

// UserNotificationRead marks one notification key as read by a user.
type UserNotificationRead struct {
	ID              uint      `gorm:"primaryKey" json:"-"`
	UserID          uint      `gorm:"not null;uniqueIndex:idx_notification_reads_user_key" json:"userId"`
	NotificationKey string    `gorm:"size:191;not null;uniqueIndex:idx_notification_reads_user_key" json:"notificationKey"`
	ReadAt          time.Time `gorm:"not null" json:"readAt"`
}

// NotificationState is the caller-facing read state.
type NotificationState struct {
	LastSeenAt *time.Time `json:"lastSeenAt"`
	ReadKeys   []string   `json:"readKeys"`
}

// IsRead reports whether an item with key, created at createdAt, counts as
// read: explicitly marked, or not newer than the watermark.
func (s NotificationState) IsRead(key string, createdAt time.Time) bool {
	for _, k := range s.ReadKeys {
		if k == key {
			return true
		}
	}
	return s.LastSeenAt != nil && !createdAt.After(*s.LastSeenAt)
}

// PostNotificationKey is the read-state key of a feed post.
func PostNotificationKey(postID uint) string {
	return fmt.Sprintf("post:%d", postID)
}

// VerificationNotificationKey is the read-state key of a verification application.
func VerificationNotificationKey(applicationID uint) string {
	return fmt.Sprintf("alumni-verification:%d", applicationID)
}

func lower(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
