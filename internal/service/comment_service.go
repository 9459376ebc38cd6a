package service

import (
	"context"
	"log/slog"
	"time"

	"campusboard/internal/middleware"
	"campusboard/internal/models"
	"campusboard/internal/notifications"
	"campusboard/internal/repository"
	"campusboard/internal/validation"
)

const (
	defaultCommentLimit = 20
	maxCommentLimit     = 100
)

// CommentService manages comment threads on posts.
type CommentService struct {
	posts    repository.PostRepository
	comments repository.CommentRepository
	users    repository.UserRepository
	events   *notifications.Dispatcher
}

// NewCommentService creates a comment service. events may be nil.
func NewCommentService(
	posts repository.PostRepository,
	comments repository.CommentRepository,
	users repository.UserRepository,
	events *notifications.Dispatcher,
) *CommentService {
	return &CommentService{posts: posts, comments: comments, users: users, events: events}
}

// CommentPage is one page of a post's thread.
type CommentPage struct {
	Comments []*models.PostComment
	Total    int64
	Limit    int
	Offset   int
}

func cleanComment(content string) (string, error) {
	content = validation.SanitizeText(content)
	if err := validation.ValidateLength("content", content, 1, validation.MaxCommentLength); err != nil {
		return "", models.NewFieldValidationError("content", err.Error())
	}
	return content, nil
}

// Add appends a comment by caller to a post that is neither archived nor expired.
func (s *CommentService) Add(ctx context.Context, postID uint, caller models.Caller, content string) (*models.PostComment, error) {
	if !caller.Authenticated() {
		return nil, models.NewUnauthorizedError("Authentication required to comment")
	}
	content, err := cleanComment(content)
	if err != nil {
		return nil, err
	}

	post, err := s.posts.GetByID(ctx, postID)
	if err != nil {
		return nil, err
	}
	if post.IsArchived() || post.IsExpired(time.Now()) {
		return nil, models.NewFieldValidationError("postId", "Archived posts cannot receive comments")
	}

	comment := &models.PostComment{PostID: postID, AuthorID: caller.UserID, Content: content}
	if err := s.comments.Create(ctx, comment); err != nil {
		return nil, err
	}
	s.attachAuthors(ctx, []*models.PostComment{comment})

	s.publish(ctx, notifications.EventCommentCreated, comment)
	return comment, nil
}

// List returns a page of comments, newest first, with authors resolved in
// one lookup.
func (s *CommentService) List(ctx context.Context, postID uint, limit, offset int) (*CommentPage, error) {
	limit, offset = clampPage(limit, offset, defaultCommentLimit, maxCommentLimit)
	if _, err := s.posts.GetByID(ctx, postID); err != nil {
		return nil, err
	}
	comments, total, err := s.comments.ListByPost(ctx, postID, limit, offset)
	if err != nil {
		return nil, err
	}
	s.attachAuthors(ctx, comments)
	return &CommentPage{Comments: comments, Total: total, Limit: limit, Offset: offset}, nil
}

// Edit overwrites a comment's content. Only its author or a moderator may edit.
func (s *CommentService) Edit(ctx context.Context, postID, commentID uint, caller models.Caller, content string) (*models.PostComment, error) {
	comment, err := s.authorize(ctx, postID, commentID, caller)
	if err != nil {
		return nil, err
	}
	content, err = cleanComment(content)
	if err != nil {
		return nil, err
	}
	comment.Content = content
	if err := s.comments.Update(ctx, comment); err != nil {
		return nil, err
	}
	s.attachAuthors(ctx, []*models.PostComment{comment})

	s.publish(ctx, notifications.EventCommentUpdated, comment)
	return comment, nil
}

// Delete soft-deletes a comment. Only its author or a moderator may delete.
func (s *CommentService) Delete(ctx context.Context, postID, commentID uint, caller models.Caller) error {
	comment, err := s.authorize(ctx, postID, commentID, caller)
	if err != nil {
		return err
	}
	if err := s.comments.Delete(ctx, comment.ID); err != nil {
		return err
	}
	s.publish(ctx, notifications.EventCommentDeleted, map[string]uint{
		"id":     comment.ID,
		"postId": comment.PostID,
	})
	return nil
}

func (s *CommentService) authorize(ctx context.Context, postID, commentID uint, caller models.Caller) (*models.PostComment, error) {
	if !caller.Authenticated() {
		return nil, models.NewUnauthorizedError("Authentication required")
	}
	comment, err := s.comments.GetByID(ctx, commentID)
	if err != nil {
		return nil, err
	}
	if comment.PostID != postID {
		return nil, models.NewNotFoundError("Comment", commentID)
	}
	if comment.AuthorID != caller.UserID && !caller.IsModerator() {
		return nil, models.NewForbiddenError("Only the comment author or a moderator can change this comment")
	}
	return comment, nil
}

// attachAuthors fills Author on each comment. A failed directory lookup
// leaves authors null rather than failing the request.
func (s *CommentService) attachAuthors(ctx context.Context, comments []*models.PostComment) {
	if len(comments) == 0 {
		return
	}
	ids := make([]uint, 0, len(comments))
	for _, c := range comments {
		ids = append(ids, c.AuthorID)
	}
	users, err := s.users.GetByIDs(ctx, dedupeIDs(ids))
	if err != nil {
		middleware.Logger.WarnContext(ctx, "comment author lookup failed", slog.String("error", err.Error()))
		return
	}
	for _, c := range comments {
		c.Author = users[c.AuthorID]
	}
}

func (s *CommentService) publish(ctx context.Context, eventType string, payload any) {
	s.events.Publish(ctx, notifications.NewEvent(eventType, payload, notifications.Audience{Broadcast: true}))
}

func clampPage(limit, offset, def, maxLimit int) (int, int) {
	if limit <= 0 {
		limit = def
	}
	if limit > maxLimit {
		limit = maxLimit
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}
