package repository

import (
	"context"
	"time"

	"campusboard/internal/models"
	"campusboard/internal/observability"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// VoteRepository is the per-user vote ledger.
type VoteRepository interface {
	Upsert(ctx context.Context, postID, userID uint, value int) error
	Delete(ctx context.Context, postID, userID uint) error
	ListByPostIDs(ctx context.Context, postIDs []uint) ([]models.PostVote, error)
}

type voteRepository struct {
	db  *gorm.DB
	log *observability.RepoLogger
}

// NewVoteRepository creates a new VoteRepository
func NewVoteRepository(db *gorm.DB) VoteRepository {
	return &voteRepository{db: db, log: observability.NewRepoLogger("post_votes")}
}

// Upsert records value as the user's only vote on the post.
func (r *voteRepository) Upsert(ctx context.Context, postID, userID uint, value int) error {
	now := time.Now().UTC()
	vote := models.PostVote{PostID: postID, UserID: userID, Value: value, CreatedAt: now, UpdatedAt: now}
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "post_id"}, {Name: "user_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
	}).Create(&vote).Error
	if err != nil {
		r.log.LogError(ctx, err, "upsert")
		return translate(err)
	}
	r.log.LogUpdate(ctx, map[string]any{"post_id": postID, "user_id": userID, "value": value})
	return nil
}

func (r *voteRepository) Delete(ctx context.Context, postID, userID uint) error {
	err := r.db.WithContext(ctx).
		Where("post_id = ? AND user_id = ?", postID, userID).
		Delete(&models.PostVote{}).Error
	if err != nil {
		r.log.LogError(ctx, err, "delete")
		return translate(err)
	}
	r.log.LogDelete(ctx, map[string]any{"post_id": postID, "user_id": userID})
	return nil
}

func (r *voteRepository) ListByPostIDs(ctx context.Context, postIDs []uint) ([]models.PostVote, error) {
	votes := []models.PostVote{}
	if len(postIDs) == 0 {
		return votes, nil
	}
	err := r.db.WithContext(ctx).
		Select("post_id", "user_id", "value").
		Where("post_id IN ?", postIDs).
		Find(&votes).Error
	if err != nil {
		return nil, translate(err)
	}
	return votes, nil
}
