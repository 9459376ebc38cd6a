package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"campusboard/internal/database"
	"campusboard/internal/models"
	"campusboard/internal/notifications"
	"campusboard/internal/policy"
	"campusboard/internal/repository"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type recordingSink struct {
	mu     sync.Mutex
	events []notifications.Event
}

func (s *recordingSink) Name() string { return "test" }

func (s *recordingSink) Publish(_ context.Context, evt notifications.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, evt)
	return nil
}

func (s *recordingSink) types() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.events))
	for _, e := range s.events {
		out = append(out, e.Type)
	}
	return out
}

type harness struct {
	db            *gorm.DB
	sink          *recordingSink
	events        *notifications.Dispatcher
	tags          *TagService
	votes         *VoteService
	comments      *CommentService
	verifications *VerificationService
	posts         *PostService
	notifications *NotificationService
	sweeper       *Sweeper
}

// newHarness wires every service over one in-memory sqlite database.
func newHarness(t *testing.T) *harness {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{Logger: logger.Discard})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, db.AutoMigrate(database.PersistentModels()...))

	postRepo := repository.NewPostRepository(db)
	users := repository.NewUserRepository(db)
	commentRepo := repository.NewCommentRepository(db)

	sink := &recordingSink{}
	events := notifications.NewDispatcher(sink)
	t.Cleanup(events.Wait)

	h := &harness{db: db, sink: sink, events: events}
	h.tags = NewTagService(repository.NewTagRepository(db))
	h.votes = NewVoteService(postRepo, repository.NewVoteRepository(db), events)
	h.comments = NewCommentService(postRepo, commentRepo, users, events)
	h.verifications = NewVerificationService(repository.NewVerificationRepository(db), users, nil, events)
	h.sweeper = NewSweeper(postRepo, events)
	h.posts = NewPostService(PostServiceDeps{
		Posts:    postRepo,
		Refs:     repository.NewPostRefRepository(db),
		Comments: commentRepo,
		Users:    users,
		Tags:     h.tags,
		Votes:    h.votes,
		Policy:   policy.NewAuthoringPolicy(h.verifications),
		Sweeper:  h.sweeper,
		Events:   events,
	})
	h.notifications = NewNotificationService(repository.NewNotificationStateRepository(db), h.posts, h.verifications)
	return h
}

// user stores a directory entry and returns the matching caller.
func (h *harness) user(t *testing.T, id uint, role models.Role) models.Caller {
	t.Helper()
	require.NoError(t, h.db.Create(&models.User{
		ID:       id,
		FullName: fmt.Sprintf("User %d", id),
		Email:    fmt.Sprintf("user%d@campus.example", id),
		Role:     role,
	}).Error)
	return models.Caller{UserID: id, Role: role}
}

// publishedPost creates a published post of postType authored by caller.
func (h *harness) publishedPost(t *testing.T, caller models.Caller, postType models.PostType, summary string) *models.Post {
	t.Helper()
	post, err := h.posts.Create(context.Background(), CreatePostInput{
		Type:    string(postType),
		Summary: summary,
		Status:  string(models.PostStatusPublished),
	}, caller)
	require.NoError(t, err)
	return post
}

// expire moves a post's expiry into the past without sweeping it.
func (h *harness) expire(t *testing.T, postID uint) {
	t.Helper()
	past := time.Now().Add(-time.Hour).UTC()
	require.NoError(t, h.db.Model(&models.Post{}).Where("id = ?", postID).Update("expires_at", past).Error)
}

func requireCode(t *testing.T, err error, code string) *models.AppError {
	t.Helper()
	require.Error(t, err)
	var appErr *models.AppError
	require.True(t, errors.As(err, &appErr), "expected AppError, got %T: %v", err, err)
	require.Equal(t, code, appErr.Code, appErr.Message)
	return appErr
}

func strPtr(s string) *string { return &s }

func uintPtr(v uint) *uint { return &v }
