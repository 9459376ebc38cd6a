package service

import (
	"context"
	"strings"
	"time"

	"campusboard/internal/models"
	"campusboard/internal/repository"
	"campusboard/internal/validation"
)

const maxNotificationKeyLength = 191

// NotificationService tracks what each user has already seen.
type NotificationService struct {
	states        repository.NotificationStateRepository
	posts         *PostService
	verifications *VerificationService
	now           func() time.Time
}

// NewNotificationService creates a notification service.
func NewNotificationService(
	states repository.NotificationStateRepository,
	posts *PostService,
	verifications *VerificationService,
) *NotificationService {
	return &NotificationService{states: states, posts: posts, verifications: verifications, now: time.Now}
}

// MarkReadInput advances the watermark, marks one key, or both.
type MarkReadInput struct {
	LastSeenAt      *string `json:"lastSeenAt"`
	NotificationKey *string `json:"notificationKey"`
}

// PostNotification is a feed post with its read flag.
type PostNotification struct {
	Key       string       `json:"key"`
	Read      bool         `json:"read"`
	CreatedAt time.Time    `json:"createdAt"`
	Post      *models.Post `json:"post"`
}

// VerificationNotification is a queued application with its read flag.
type VerificationNotification struct {
	Key         string                                `json:"key"`
	Read        bool                                  `json:"read"`
	CreatedAt   time.Time                             `json:"createdAt"`
	Application *models.AlumniVerificationApplication `json:"application"`
}

// GetState returns the caller's watermark and explicitly read keys.
func (s *NotificationService) GetState(ctx context.Context, caller models.Caller) (*models.NotificationState, error) {
	if !caller.Authenticated() {
		return nil, models.NewUnauthorizedError("Authentication required")
	}
	lastSeen, err := s.states.GetLastSeen(ctx, caller.UserID)
	if err != nil {
		return nil, err
	}
	keys, err := s.states.ListReadKeys(ctx, caller.UserID)
	if err != nil {
		return nil, err
	}
	return &models.NotificationState{LastSeenAt: lastSeen, ReadKeys: keys}, nil
}

// MarkRead merges a watermark (never moving it backwards) and/or records a
// read key, then returns the resulting state.
func (s *NotificationService) MarkRead(ctx context.Context, caller models.Caller, in MarkReadInput) (*models.NotificationState, error) {
	if !caller.Authenticated() {
		return nil, models.NewUnauthorizedError("Authentication required")
	}

	var errs fieldErrors
	var seenAt *time.Time
	if in.LastSeenAt != nil && strings.TrimSpace(*in.LastSeenAt) != "" {
		t, ok := parseTimestamp(*in.LastSeenAt)
		if !ok {
			errs.addMessage("lastSeenAt", "lastSeenAt must be an RFC 3339 timestamp")
		}
		seenAt = &t
	}
	key := ""
	if in.NotificationKey != nil {
		key = strings.TrimSpace(*in.NotificationKey)
		errs.add("notificationKey", validation.ValidateLength("notificationKey", key, 0, maxNotificationKeyLength))
	}
	if err := errs.err(); err != nil {
		return nil, err
	}
	if seenAt == nil && key == "" {
		return nil, models.NewFieldValidationError("lastSeenAt", "lastSeenAt or notificationKey is required")
	}

	if seenAt != nil {
		if err := s.states.MergeLastSeen(ctx, caller.UserID, *seenAt); err != nil {
			return nil, err
		}
	}
	if key != "" {
		if err := s.states.MarkKeyRead(ctx, caller.UserID, key, s.now().UTC()); err != nil {
			return nil, err
		}
	}
	return s.GetState(ctx, caller)
}

// PostFeed returns the latest published posts with read flags and the number
// of unread items among them.
func (s *NotificationService) PostFeed(ctx context.Context, caller models.Caller, limit int) ([]PostNotification, int, error) {
	state, err := s.GetState(ctx, caller)
	if err != nil {
		return nil, 0, err
	}
	page, err := s.posts.Feed(ctx, FeedFilter{Limit: limit}, caller)
	if err != nil {
		return nil, 0, err
	}

	items := make([]PostNotification, 0, len(page.Posts))
	unread := 0
	for _, p := range page.Posts {
		key := models.PostNotificationKey(p.ID)
		read := state.IsRead(key, p.CreatedAt)
		if !read {
			unread++
		}
		items = append(items, PostNotification{Key: key, Read: read, CreatedAt: p.CreatedAt, Post: p})
	}
	return items, unread, nil
}

// VerificationInbox returns the moderator queue with read flags.
func (s *NotificationService) VerificationInbox(ctx context.Context, caller models.Caller, status string, limit, offset int) ([]VerificationNotification, *VerificationQueue, int, error) {
	queue, err := s.verifications.Queue(ctx, caller, status, limit, offset)
	if err != nil {
		return nil, nil, 0, err
	}
	state, err := s.GetState(ctx, caller)
	if err != nil {
		return nil, nil, 0, err
	}

	items := make([]VerificationNotification, 0, len(queue.Applications))
	unread := 0
	for i := range queue.Applications {
		app := &queue.Applications[i]
		key := models.VerificationNotificationKey(app.ID)
		read := state.IsRead(key, app.CreatedAt)
		if !read {
			unread++
		}
		items = append(items, VerificationNotification{Key: key, Read: read, CreatedAt: app.CreatedAt, Application: app})
	}
	return items, queue, unread, nil
}
