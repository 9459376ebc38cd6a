package repository

import (
	"context"
	"errors"
	"time"

	"campusboard/internal/models"
	"campusboard/internal/observability"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// NotificationStateRepository stores per-user read watermarks and read keys.
type NotificationStateRepository interface {
	GetLastSeen(ctx context.Context, userID uint) (*time.Time, error)
	ListReadKeys(ctx context.Context, userID uint) ([]string, error)
	MergeLastSeen(ctx context.Context, userID uint, seenAt time.Time) error
	MarkKeyRead(ctx context.Context, userID uint, key string, readAt time.Time) error
}

type notificationStateRepository struct {
	db  *gorm.DB
	log *observability.RepoLogger
}

// NewNotificationStateRepository creates a new NotificationStateRepository
func NewNotificationStateRepository(db *gorm.DB) NotificationStateRepository {
	return &notificationStateRepository{db: db, log: observability.NewRepoLogger("user_notification_states")}
}

func (r *notificationStateRepository) GetLastSeen(ctx context.Context, userID uint) (*time.Time, error) {
	var state models.UserNotificationState
	err := r.db.WithContext(ctx).Where("user_id = ?", userID).First(&state).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, translate(err)
	}
	seen := state.LastSeenAt.UTC()
	return &seen, nil
}

func (r *notificationStateRepository) ListReadKeys(ctx context.Context, userID uint) ([]string, error) {
	keys := []string{}
	err := r.db.WithContext(ctx).Model(&models.UserNotificationRead{}).
		Where("user_id = ?", userID).
		Order("notification_key ASC").
		Pluck("notification_key", &keys).Error
	if err != nil {
		return nil, translate(err)
	}
	return keys, nil
}

// MergeLastSeen moves the watermark forward only; an older timestamp is a no-op.
func (r *notificationStateRepository) MergeLastSeen(ctx context.Context, userID uint, seenAt time.Time) error {
	now := time.Now().UTC()
	state := models.UserNotificationState{UserID: userID, LastSeenAt: seenAt.UTC(), UpdatedAt: now}
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "user_id"}},
		DoUpdates: clause.Set{
			{
				Column: clause.Column{Name: "last_seen_at"},
				Value: gorm.Expr("CASE WHEN excluded.last_seen_at > user_notification_states.last_seen_at " +
					"THEN excluded.last_seen_at ELSE user_notification_states.last_seen_at END"),
			},
			{Column: clause.Column{Name: "updated_at"}, Value: gorm.Expr("excluded.updated_at")},
		},
	}).Create(&state).Error
	if err != nil {
		r.log.LogError(ctx, err, "merge_last_seen")
		return translate(err)
	}
	return nil
}

func (r *notificationStateRepository) MarkKeyRead(ctx context.Context, userID uint, key string, readAt time.Time) error {
	row := models.UserNotificationRead{UserID: userID, NotificationKey: key, ReadAt: readAt.UTC()}
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}, {Name: "notification_key"}},
		DoUpdates: clause.AssignmentColumns([]string{"read_at"}),
	}).Create(&row).Error
	if err != nil {
		r.log.LogError(ctx, err, "mark_read")
		return translate(err)
	}
	return nil
}
