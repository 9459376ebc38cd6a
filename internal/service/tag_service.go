package service

import (
	"context"
	"fmt"
	"strings"

	"campusboard/internal/cache"
	"campusboard/internal/models"
	"campusboard/internal/repository"
	"campusboard/internal/validation"
)

const (
	defaultTagListLimit = 50
	maxTagListLimit     = 200
)

// TagService owns the slug-keyed tag taxonomy.
type TagService struct {
	repo repository.TagRepository
}

// NewTagService creates a tag service.
func NewTagService(repo repository.TagRepository) *TagService {
	return &TagService{repo: repo}
}

type namedSlug struct {
	name string
	slug string
}

// normalizeNames sanitizes and slugs names, collapsing duplicate slugs to the
// last name given. It performs no writes.
func normalizeNames(names []string) ([]namedSlug, error) {
	out := make([]namedSlug, 0, len(names))
	index := make(map[string]int, len(names))
	for _, raw := range names {
		name := validation.SanitizeText(raw)
		if err := validation.ValidateLength("tags", name, 1, validation.MaxTagNameLength); err != nil {
			return nil, models.NewFieldValidationError("tags", err.Error())
		}
		slug := models.Slugify(name)
		if slug == "" {
			return nil, models.NewFieldValidationError("tags", fmt.Sprintf("tag %q has no letters or digits", name))
		}
		if i, ok := index[slug]; ok {
			out[i].name = name
			continue
		}
		index[slug] = len(out)
		out = append(out, namedSlug{name: name, slug: slug})
	}
	return out, nil
}

// UpsertByName creates or renames one tag per distinct slug. Colliding slugs
// merge into one row whose name is the last one written.
func (s *TagService) UpsertByName(ctx context.Context, names []string) ([]models.Tag, error) {
	if len(names) == 0 {
		return nil, models.NewFieldValidationError("names", "at least one tag name is required")
	}
	normalized, err := normalizeNames(names)
	if err != nil {
		return nil, err
	}
	return s.upsert(ctx, normalized)
}

func (s *TagService) upsert(ctx context.Context, normalized []namedSlug) ([]models.Tag, error) {
	tags := make([]models.Tag, 0, len(normalized))
	for _, n := range normalized {
		tag, err := s.repo.UpsertBySlug(ctx, n.name, n.slug)
		if err != nil {
			return nil, err
		}
		tags = append(tags, *tag)
	}
	if len(tags) > 0 {
		cache.InvalidateTags(ctx)
	}
	return tags, nil
}

// Resolve maps a filter token to tag ids: a numeric id, an exact slug, or a
// case-insensitive substring of the name.
func (s *TagService) Resolve(ctx context.Context, token string) ([]uint, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, nil
	}
	return s.repo.Resolve(ctx, token)
}

// List returns tags ordered by name, optionally filtered by query. The
// unfiltered listing is served from Redis when available.
func (s *TagService) List(ctx context.Context, query string, limit int) ([]models.Tag, error) {
	if limit <= 0 {
		limit = defaultTagListLimit
	}
	if limit > maxTagListLimit {
		limit = maxTagListLimit
	}
	query = strings.TrimSpace(query)
	if query != "" {
		return s.repo.List(ctx, query, limit)
	}

	var tags []models.Tag
	key := fmt.Sprintf("%s:%d", cache.TagListKey, limit)
	err := cache.Aside(ctx, key, &tags, cache.TagListTTL, func() error {
		var err error
		tags, err = s.repo.List(ctx, "", limit)
		return err
	})
	return tags, err
}

// tagPlan is a validated replacement set, prepared before any write.
type tagPlan struct {
	names []namedSlug
	ids   []uint
}

// prepare validates names and checks that every id exists.
func (s *TagService) prepare(ctx context.Context, names []string, ids []uint) (*tagPlan, error) {
	normalized, err := normalizeNames(names)
	if err != nil {
		return nil, err
	}
	ids = dedupeIDs(ids)
	if len(ids) > 0 {
		found, err := s.repo.FindByIDs(ctx, ids)
		if err != nil {
			return nil, err
		}
		known := make(map[uint]struct{}, len(found))
		for _, t := range found {
			known[t.ID] = struct{}{}
		}
		for _, id := range ids {
			if _, ok := known[id]; !ok {
				return nil, models.NewFieldValidationError("tagIds", fmt.Sprintf("unknown tag id %d", id))
			}
		}
	}
	return &tagPlan{names: normalized, ids: ids}, nil
}

// apply upserts the named tags and replaces the post's links with the union.
func (s *TagService) apply(ctx context.Context, postID uint, plan *tagPlan) error {
	tags, err := s.upsert(ctx, plan.names)
	if err != nil {
		return err
	}
	ids := append([]uint(nil), plan.ids...)
	for _, t := range tags {
		ids = append(ids, t.ID)
	}
	return s.repo.ReplaceForPost(ctx, postID, dedupeIDs(ids))
}

func dedupeIDs(ids []uint) []uint {
	if len(ids) == 0 {
		return nil
	}
	seen := make(map[uint]struct{}, len(ids))
	out := make([]uint, 0, len(ids))
	for _, id := range ids {
		if id == 0 {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
