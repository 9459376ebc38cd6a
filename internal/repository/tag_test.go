package repository

import (
	"context"
	"testing"

	"campusboard/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTagRepository_UpsertBySlug_MergesCollisions(t *testing.T) {
	db := setupSQLiteDB(t)
	repo := NewTagRepository(db)
	ctx := context.Background()

	first, err := repo.UpsertBySlug(ctx, "Machine Learning", "machine-learning")
	require.NoError(t, err)
	second, err := repo.UpsertBySlug(ctx, "machine  learning!", "machine-learning")
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, "machine  learning!", second.Name, "last write wins")

	var count int64
	require.NoError(t, db.Model(&models.Tag{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestTagRepository_Resolve(t *testing.T) {
	db := setupSQLiteDB(t)
	repo := NewTagRepository(db)
	ctx := context.Background()

	careers, err := repo.UpsertBySlug(ctx, "Careers", "careers")
	require.NoError(t, err)
	ai, err := repo.UpsertBySlug(ctx, "AI Research", "ai-research")
	require.NoError(t, err)
	node, err := repo.UpsertBySlug(ctx, "Node JS", "node-js")
	require.NoError(t, err)

	tests := []struct {
		token string
		want  []uint
	}{
		{"careers", []uint{careers.ID}},
		{"AI-RESEARCH", []uint{ai.ID}},
		{"research", []uint{ai.ID}},
		{"areer", []uint{careers.ID}},
		{"Node.js", []uint{node.ID}},
		{"AI Research!", []uint{ai.ID}},
		{"nothing-here", []uint{}},
		{"", []uint{}},
	}
	for _, tt := range tests {
		t.Run(tt.token, func(t *testing.T) {
			got, err := repo.Resolve(ctx, tt.token)
			require.NoError(t, err)
			assert.ElementsMatch(t, tt.want, got)
		})
	}

	got, err := repo.Resolve(ctx, "1")
	require.NoError(t, err)
	assert.Contains(t, got, careers.ID)
}

func TestTagRepository_ReplaceForPost(t *testing.T) {
	db := setupSQLiteDB(t)
	repo := NewTagRepository(db)
	posts := NewPostRepository(db)
	ctx := context.Background()

	p := &models.Post{Type: models.PostTypeEvent, Summary: "s"}
	require.NoError(t, posts.Create(ctx, p))
	other := &models.Post{Type: models.PostTypeEvent, Summary: "o"}
	require.NoError(t, posts.Create(ctx, other))

	a, _ := repo.UpsertBySlug(ctx, "Alpha", "alpha")
	b, _ := repo.UpsertBySlug(ctx, "Beta", "beta")
	c, _ := repo.UpsertBySlug(ctx, "Gamma", "gamma")

	require.NoError(t, repo.ReplaceForPost(ctx, p.ID, []uint{b.ID, a.ID, a.ID}))
	require.NoError(t, repo.ReplaceForPost(ctx, other.ID, []uint{c.ID}))

	byPost, err := repo.ListByPostIDs(ctx, []uint{p.ID, other.ID})
	require.NoError(t, err)
	require.Len(t, byPost[p.ID], 2)
	assert.Equal(t, "alpha", byPost[p.ID][0].Slug)
	assert.Equal(t, "beta", byPost[p.ID][1].Slug)
	assert.Len(t, byPost[other.ID], 1)

	require.NoError(t, repo.ReplaceForPost(ctx, p.ID, []uint{c.ID}))
	byPost, err = repo.ListByPostIDs(ctx, []uint{p.ID})
	require.NoError(t, err)
	require.Len(t, byPost[p.ID], 1)
	assert.Equal(t, "gamma", byPost[p.ID][0].Slug)

	ids, err := repo.PostIDsByTagIDs(ctx, []uint{c.ID})
	require.NoError(t, err)
	assert.ElementsMatch(t, []uint{p.ID, other.ID}, ids)

	require.NoError(t, repo.ReplaceForPost(ctx, p.ID, nil))
	byPost, err = repo.ListByPostIDs(ctx, []uint{p.ID})
	require.NoError(t, err)
	assert.Empty(t, byPost[p.ID])
}

func TestTagRepository_List(t *testing.T) {
	db := setupSQLiteDB(t)
	repo := NewTagRepository(db)
	ctx := context.Background()

	for _, name := range []string{"Zeta", "alpha", "Mentoring"} {
		_, err := repo.UpsertBySlug(ctx, name, models.Slugify(name))
		require.NoError(t, err)
	}

	all, err := repo.List(ctx, "", 10)
	require.NoError(t, err)
	assert.Len(t, all, 3)

	got, err := repo.List(ctx, "MENTOR", 10)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "mentoring", got[0].Slug)

	limited, err := repo.List(ctx, "", 2)
	require.NoError(t, err)
	assert.Len(t, limited, 2)
}
