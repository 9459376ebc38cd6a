package repository

import (
	"context"

	"campusboard/internal/models"
	"campusboard/internal/observability"

	"gorm.io/gorm"
)

// PostRefRepository stores the single external reference of a post.
type PostRefRepository interface {
	Replace(ctx context.Context, postID uint, ref *models.PostRef) error
	ListByPostIDs(ctx context.Context, postIDs []uint) (map[uint]*models.PostRef, error)
}

type postRefRepository struct {
	db  *gorm.DB
	log *observability.RepoLogger
}

// NewPostRefRepository creates a new PostRefRepository
func NewPostRefRepository(db *gorm.DB) PostRefRepository {
	return &postRefRepository{db: db, log: observability.NewRepoLogger("post_refs")}
}

// Replace deletes the post's reference and inserts ref. A nil ref only clears.
func (r *postRefRepository) Replace(ctx context.Context, postID uint, ref *models.PostRef) error {
	db := r.db.WithContext(ctx)
	if err := db.Where("post_id = ?", postID).Delete(&models.PostRef{}).Error; err != nil {
		r.log.LogError(ctx, err, "replace")
		return translate(err)
	}
	if ref == nil {
		r.log.LogDelete(ctx, map[string]any{"post_id": postID})
		return nil
	}

	row := models.PostRef{
		PostID:   postID,
		Service:  ref.Service,
		EntityID: ref.EntityID,
		Metadata: ref.Metadata,
	}
	if err := db.Create(&row).Error; err != nil {
		r.log.LogError(ctx, err, "replace")
		return translate(err)
	}
	r.log.LogCreate(ctx, map[string]any{"post_id": postID, "service": ref.Service})
	return nil
}

func (r *postRefRepository) ListByPostIDs(ctx context.Context, postIDs []uint) (map[uint]*models.PostRef, error) {
	out := make(map[uint]*models.PostRef, len(postIDs))
	if len(postIDs) == 0 {
		return out, nil
	}
	var refs []models.PostRef
	if err := r.db.WithContext(ctx).Where("post_id IN ?", postIDs).Find(&refs).Error; err != nil {
		return nil, translate(err)
	}
	for i := range refs {
		out[refs[i].PostID] = &refs[i]
	}
	return out, nil
}
