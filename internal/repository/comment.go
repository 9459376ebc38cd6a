package repository

import (
	"context"
	"errors"

	"campusboard/internal/models"
	"campusboard/internal/observability"

	"gorm.io/gorm"
)

// CommentRepository defines interface for comment operations
type CommentRepository interface {
	Create(ctx context.Context, comment *models.PostComment) error
	GetByID(ctx context.Context, id uint) (*models.PostComment, error)
	ListByPost(ctx context.Context, postID uint, limit, offset int) ([]*models.PostComment, int64, error)
	Update(ctx context.Context, comment *models.PostComment) error
	Delete(ctx context.Context, id uint) error
	CountByPostIDs(ctx context.Context, postIDs []uint) (map[uint]int64, error)
}

type commentRepository struct {
	db  *gorm.DB
	log *observability.RepoLogger
}

// NewCommentRepository creates a new CommentRepository
func NewCommentRepository(db *gorm.DB) CommentRepository {
	return &commentRepository{db: db, log: observability.NewRepoLogger("post_comments")}
}

func (r *commentRepository) Create(ctx context.Context, comment *models.PostComment) error {
	if err := r.db.WithContext(ctx).Create(comment).Error; err != nil {
		r.log.LogError(ctx, err, "create")
		return translate(err)
	}
	r.log.LogCreate(ctx, map[string]any{"comment_id": comment.ID, "post_id": comment.PostID})
	return nil
}

func (r *commentRepository) GetByID(ctx context.Context, id uint) (*models.PostComment, error) {
	var comment models.PostComment
	if err := r.db.WithContext(ctx).First(&comment, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, models.NewNotFoundError("Comment", id)
		}
		return nil, translate(err)
	}
	return &comment, nil
}

// ListByPost returns one page of the post's comments, newest first, and the
// total number of comments on the post.
func (r *commentRepository) ListByPost(ctx context.Context, postID uint, limit, offset int) ([]*models.PostComment, int64, error) {
	base := r.db.WithContext(ctx).Model(&models.PostComment{}).Where("post_id = ?", postID)

	var total int64
	if err := base.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return nil, 0, translate(err)
	}

	comments := make([]*models.PostComment, 0, limit)
	err := base.Session(&gorm.Session{}).
		Order("created_at DESC").
		Order("id DESC").
		Limit(limit).
		Offset(offset).
		Find(&comments).Error
	if err != nil {
		return nil, 0, translate(err)
	}
	return comments, total, nil
}

func (r *commentRepository) Update(ctx context.Context, comment *models.PostComment) error {
	err := r.db.WithContext(ctx).Model(comment).
		Select("content", "updated_at").
		Updates(comment).Error
	if err != nil {
		r.log.LogError(ctx, err, "update")
		return translate(err)
	}
	r.log.LogUpdate(ctx, map[string]any{"comment_id": comment.ID})
	return nil
}

func (r *commentRepository) Delete(ctx context.Context, id uint) error {
	if err := r.db.WithContext(ctx).Delete(&models.PostComment{}, id).Error; err != nil {
		r.log.LogError(ctx, err, "delete")
		return translate(err)
	}
	r.log.LogDelete(ctx, map[string]any{"comment_id": id})
	return nil
}

type commentCountRow struct {
	PostID uint
	Count  int64
}

func (r *commentRepository) CountByPostIDs(ctx context.Context, postIDs []uint) (map[uint]int64, error) {
	out := make(map[uint]int64, len(postIDs))
	if len(postIDs) == 0 {
		return out, nil
	}
	var rows []commentCountRow
	err := r.db.WithContext(ctx).Model(&models.PostComment{}).
		Select("post_id, COUNT(*) AS count").
		Where("post_id IN ?", postIDs).
		Group("post_id").
		Scan(&rows).Error
	if err != nil {
		return nil, translate(err)
	}
	for _, row := range rows {
		out[row.PostID] = row.Count
	}
	return out, nil
}
