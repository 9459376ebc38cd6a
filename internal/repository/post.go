// Package repository provides data access layer implementations for the application.
package repository

import (
	"context"
	"errors"
	"strings"
	"time"

	"campusboard/internal/models"
	"campusboard/internal/observability"

	"gorm.io/gorm"
)

// FeedQuery is a fully resolved feed filter. Empty Statuses means any status.
// A non-nil PostIDs restricts the result to those ids.
type FeedQuery struct {
	Type       *models.PostType
	Statuses   []models.PostStatus
	AuthorID   *uint
	PostIDs    []uint
	PinnedOnly bool
	Search     string
	Limit      int
	Offset     int
}

// PostRepository defines the interface for post data operations
type PostRepository interface {
	Create(ctx context.Context, post *models.Post) error
	GetByID(ctx context.Context, id uint) (*models.Post, error)
	List(ctx context.Context, q FeedQuery) ([]*models.Post, int64, error)
	UpdateFields(ctx context.Context, id uint, fields map[string]any) error
	ArchiveExpired(ctx context.Context, now time.Time) (int64, error)
}

// postRepository implements PostRepository
type postRepository struct {
	db  *gorm.DB
	log *observability.RepoLogger
}

// NewPostRepository creates a new post repository
func NewPostRepository(db *gorm.DB) PostRepository {
	return &postRepository{db: db, log: observability.NewRepoLogger("posts")}
}

func (r *postRepository) Create(ctx context.Context, post *models.Post) error {
	defer observability.TrackQuery("create", "posts")()
	if err := r.db.WithContext(ctx).Create(post).Error; err != nil {
		r.log.LogError(ctx, err, "create")
		return translate(err)
	}
	r.log.LogCreate(ctx, map[string]any{"post_id": post.ID, "type": post.Type})
	return nil
}

func (r *postRepository) GetByID(ctx context.Context, id uint) (*models.Post, error) {
	defer observability.TrackQuery("get", "posts")()
	var post models.Post
	if err := r.db.WithContext(ctx).First(&post, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, models.NewNotFoundError("Post", id)
		}
		return nil, translate(err)
	}
	return &post, nil
}

func (r *postRepository) List(ctx context.Context, q FeedQuery) ([]*models.Post, int64, error) {
	defer observability.TrackQuery("list", "posts")()
	if q.PostIDs != nil && len(q.PostIDs) == 0 {
		return []*models.Post{}, 0, nil
	}

	base := r.applyFilters(r.db.WithContext(ctx).Model(&models.Post{}), q)

	var total int64
	if err := base.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return nil, 0, translate(err)
	}

	posts := make([]*models.Post, 0, q.Limit)
	err := base.Session(&gorm.Session{}).
		Order("pinned DESC").
		Order("created_at DESC").
		Order("id DESC").
		Limit(q.Limit).
		Offset(q.Offset).
		Find(&posts).Error
	if err != nil {
		return nil, 0, translate(err)
	}
	return posts, total, nil
}

func (r *postRepository) applyFilters(db *gorm.DB, q FeedQuery) *gorm.DB {
	if q.Type != nil {
		db = db.Where("type = ?", *q.Type)
	}
	if len(q.Statuses) == 1 {
		db = db.Where("status = ?", q.Statuses[0])
	} else if len(q.Statuses) > 1 {
		db = db.Where("status IN ?", q.Statuses)
	}
	if q.AuthorID != nil {
		db = db.Where("author_id = ?", *q.AuthorID)
	}
	if q.PostIDs != nil {
		db = db.Where("id IN ?", q.PostIDs)
	}
	if q.PinnedOnly {
		db = db.Where("pinned = ?", true)
	}
	if search := strings.TrimSpace(q.Search); search != "" {
		pattern := "%" + escapeLike(strings.ToLower(search)) + "%"
		db = db.Where("(LOWER(COALESCE(title, '')) LIKE ? ESCAPE '\\' OR LOWER(summary) LIKE ? ESCAPE '\\')", pattern, pattern)
	}
	return db
}

func (r *postRepository) UpdateFields(ctx context.Context, id uint, fields map[string]any) error {
	defer observability.TrackQuery("update", "posts")()
	res := r.db.WithContext(ctx).Model(&models.Post{}).Where("id = ?", id).Updates(fields)
	if res.Error != nil {
		r.log.LogError(ctx, res.Error, "update")
		return translate(res.Error)
	}
	if res.RowsAffected == 0 {
		return models.NewNotFoundError("Post", id)
	}
	r.log.LogUpdate(ctx, map[string]any{"post_id": id, "fields": len(fields)})
	return nil
}

// ArchiveExpired moves every expired, non-archived post to archived in one
// statement and reports how many rows changed.
func (r *postRepository) ArchiveExpired(ctx context.Context, now time.Time) (int64, error) {
	defer observability.TrackQuery("archive_expired", "posts")()
	res := r.db.WithContext(ctx).Model(&models.Post{}).
		Where("expires_at IS NOT NULL AND expires_at < ? AND status <> ?", now, models.PostStatusArchived).
		Updates(map[string]any{
			"status":     models.PostStatusArchived,
			"updated_at": now,
		})
	if res.Error != nil {
		r.log.LogError(ctx, res.Error, "archive_expired")
		return 0, translate(res.Error)
	}
	return res.RowsAffected, nil
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}
