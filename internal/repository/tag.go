package repository

import (
	"context"
	"strconv"
	"strings"
	"time"

	"campusboard/internal/models"
	"campusboard/internal/observability"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// TagRepository persists the tag taxonomy and post-tag links.
type TagRepository interface {
	UpsertBySlug(ctx context.Context, name, slug string) (*models.Tag, error)
	FindByIDs(ctx context.Context, ids []uint) ([]models.Tag, error)
	Resolve(ctx context.Context, token string) ([]uint, error)
	List(ctx context.Context, query string, limit int) ([]models.Tag, error)
	ReplaceForPost(ctx context.Context, postID uint, tagIDs []uint) error
	ListByPostIDs(ctx context.Context, postIDs []uint) (map[uint][]models.Tag, error)
	PostIDsByTagIDs(ctx context.Context, tagIDs []uint) ([]uint, error)
}

type tagRepository struct {
	db  *gorm.DB
	log *observability.RepoLogger
}

// NewTagRepository creates a new TagRepository
func NewTagRepository(db *gorm.DB) TagRepository {
	return &tagRepository{db: db, log: observability.NewRepoLogger("tags")}
}

// UpsertBySlug inserts a tag or, when the slug exists, overwrites its name.
func (r *tagRepository) UpsertBySlug(ctx context.Context, name, slug string) (*models.Tag, error) {
	tag := models.Tag{Name: name, Slug: slug}
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "slug"}},
		DoUpdates: clause.AssignmentColumns([]string{"name", "updated_at"}),
	}).Create(&tag).Error
	if err != nil {
		r.log.LogError(ctx, err, "upsert")
		return nil, translate(err)
	}

	var stored models.Tag
	if err := r.db.WithContext(ctx).Where("slug = ?", slug).First(&stored).Error; err != nil {
		return nil, translate(err)
	}
	r.log.LogUpdate(ctx, map[string]any{"tag_id": stored.ID, "slug": slug})
	return &stored, nil
}

func (r *tagRepository) FindByIDs(ctx context.Context, ids []uint) ([]models.Tag, error) {
	tags := []models.Tag{}
	if len(ids) == 0 {
		return tags, nil
	}
	if err := r.db.WithContext(ctx).Where("id IN ?", ids).Order("id ASC").Find(&tags).Error; err != nil {
		return nil, translate(err)
	}
	return tags, nil
}

// Resolve maps a filter token to tag ids: a numeric id, the token or its
// slugified form as a slug, or a case-insensitive name substring.
func (r *tagRepository) Resolve(ctx context.Context, token string) ([]uint, error) {
	token = strings.TrimSpace(token)
	ids := []uint{}
	if token == "" {
		return ids, nil
	}

	lower := strings.ToLower(token)
	slugs := []string{lower}
	if slug := models.Slugify(token); slug != "" && slug != lower {
		slugs = append(slugs, slug)
	}
	pattern := "%" + escapeLike(lower) + "%"
	q := r.db.WithContext(ctx).Model(&models.Tag{})
	if n, err := strconv.ParseUint(token, 10, 32); err == nil {
		q = q.Where("id = ? OR slug IN ? OR LOWER(name) LIKE ? ESCAPE '\\'", uint(n), slugs, pattern)
	} else {
		q = q.Where("slug IN ? OR LOWER(name) LIKE ? ESCAPE '\\'", slugs, pattern)
	}
	if err := q.Pluck("id", &ids).Error; err != nil {
		return nil, translate(err)
	}
	return ids, nil
}

func (r *tagRepository) List(ctx context.Context, query string, limit int) ([]models.Tag, error) {
	tags := []models.Tag{}
	q := readDB(r.db).WithContext(ctx).Order("name ASC").Limit(limit)
	if query = strings.TrimSpace(query); query != "" {
		pattern := "%" + escapeLike(strings.ToLower(query)) + "%"
		q = q.Where("LOWER(name) LIKE ? ESCAPE '\\' OR slug LIKE ? ESCAPE '\\'", pattern, pattern)
	}
	if err := q.Find(&tags).Error; err != nil {
		return nil, translate(err)
	}
	return tags, nil
}

// ReplaceForPost drops every link of the post, then links tagIDs. The two
// statements are not atomic.
func (r *tagRepository) ReplaceForPost(ctx context.Context, postID uint, tagIDs []uint) error {
	db := r.db.WithContext(ctx)
	if err := db.Where("post_id = ?", postID).Delete(&models.PostTag{}).Error; err != nil {
		r.log.LogError(ctx, err, "replace")
		return translate(err)
	}
	if len(tagIDs) == 0 {
		return nil
	}

	now := time.Now().UTC()
	links := make([]models.PostTag, 0, len(tagIDs))
	seen := make(map[uint]struct{}, len(tagIDs))
	for _, id := range tagIDs {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		links = append(links, models.PostTag{PostID: postID, TagID: id, CreatedAt: now})
	}
	if err := db.Clauses(clause.OnConflict{DoNothing: true}).Create(&links).Error; err != nil {
		r.log.LogError(ctx, err, "replace")
		return translate(err)
	}
	r.log.LogUpdate(ctx, map[string]any{"post_id": postID, "tags": len(links)})
	return nil
}

type postTagRow struct {
	PostID uint
	ID     uint
	Name   string
	Slug   string
}

// ListByPostIDs loads the tags of every post in one query, ordered by name.
func (r *tagRepository) ListByPostIDs(ctx context.Context, postIDs []uint) (map[uint][]models.Tag, error) {
	out := make(map[uint][]models.Tag, len(postIDs))
	if len(postIDs) == 0 {
		return out, nil
	}

	var rows []postTagRow
	err := r.db.WithContext(ctx).
		Table("post_tags").
		Select("post_tags.post_id AS post_id, tags.id AS id, tags.name AS name, tags.slug AS slug").
		Joins("JOIN tags ON tags.id = post_tags.tag_id").
		Where("post_tags.post_id IN ?", postIDs).
		Order("tags.name ASC").
		Scan(&rows).Error
	if err != nil {
		return nil, translate(err)
	}
	for _, row := range rows {
		out[row.PostID] = append(out[row.PostID], models.Tag{ID: row.ID, Name: row.Name, Slug: row.Slug})
	}
	return out, nil
}

func (r *tagRepository) PostIDsByTagIDs(ctx context.Context, tagIDs []uint) ([]uint, error) {
	ids := []uint{}
	if len(tagIDs) == 0 {
		return ids, nil
	}
	err := r.db.WithContext(ctx).Model(&models.PostTag{}).
		Distinct("post_id").
		Where("tag_id IN ?", tagIDs).
		Pluck("post_id", &ids).Error
	if err != nil {
		return nil, translate(err)
	}
	return ids, nil
}
