package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	"campusboard/internal/models"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func strPtr(s string) *string { return &s }

func TestPostRepository_ArchiveExpired_SingleStatement(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewPostRepository(db)
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`UPDATE "posts" SET "status"=$1,"updated_at"=$2 WHERE expires_at IS NOT NULL AND expires_at < $3 AND status <> $4`)).
		WithArgs(models.PostStatusArchived, now, now, models.PostStatusArchived).
		WillReturnResult(sqlmock.NewResult(0, 3))
	mock.ExpectCommit()

	n, err := repo.ArchiveExpired(context.Background(), now)
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostRepository_GetByID_NotFound(t *testing.T) {
	db := setupSQLiteDB(t)
	repo := NewPostRepository(db)

	_, err := repo.GetByID(context.Background(), 42)
	require.Error(t, err)
	assert.True(t, models.IsCode(err, models.CodeNotFound))
}

func TestPostRepository_MissingSchema(t *testing.T) {
	db := openSQLite(t)
	repo := NewPostRepository(db)

	_, _, err := repo.List(context.Background(), FeedQuery{Limit: 10})
	require.Error(t, err)
	assert.True(t, models.IsCode(err, models.CodeSchemaUnavailable))
}

func TestPostRepository_ArchiveExpired_Monotonic(t *testing.T) {
	db := setupSQLiteDB(t)
	repo := NewPostRepository(db)
	ctx := context.Background()
	now := time.Now().UTC()
	past := now.Add(-time.Hour)
	future := now.Add(time.Hour)

	expired := &models.Post{Type: models.PostTypeJob, Summary: "expired", Status: models.PostStatusPublished, ExpiresAt: &past}
	draft := &models.Post{Type: models.PostTypeEvent, Summary: "expired draft", Status: models.PostStatusDraft, ExpiresAt: &past}
	live := &models.Post{Type: models.PostTypeJob, Summary: "live", Status: models.PostStatusPublished, ExpiresAt: &future}
	forever := &models.Post{Type: models.PostTypeCollab, Summary: "forever", Status: models.PostStatusPublished}
	for _, p := range []*models.Post{expired, draft, live, forever} {
		require.NoError(t, repo.Create(ctx, p))
	}

	n, err := repo.ArchiveExpired(ctx, now)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	n, err = repo.ArchiveExpired(ctx, now)
	require.NoError(t, err)
	assert.Equal(t, int64(0), n, "sweep is idempotent")

	for _, tc := range []struct {
		post *models.Post
		want models.PostStatus
	}{
		{expired, models.PostStatusArchived},
		{draft, models.PostStatusArchived},
		{live, models.PostStatusPublished},
		{forever, models.PostStatusPublished},
	} {
		got, err := repo.GetByID(ctx, tc.post.ID)
		require.NoError(t, err)
		assert.Equal(t, tc.want, got.Status, got.Summary)
	}
}

func TestPostRepository_List_FiltersAndOrder(t *testing.T) {
	db := setupSQLiteDB(t)
	repo := NewPostRepository(db)
	ctx := context.Background()
	base := time.Now().UTC().Add(-time.Hour)
	author := uint(7)

	posts := []*models.Post{
		{Type: models.PostTypeJob, Title: strPtr("Backend Engineer"), Summary: "Go role", Status: models.PostStatusPublished, AuthorID: &author, CreatedAt: base},
		{Type: models.PostTypeEvent, Title: strPtr("Reunion"), Summary: "Class of 2010", Status: models.PostStatusPublished, CreatedAt: base.Add(time.Minute)},
		{Type: models.PostTypeAnnouncement, Summary: "Campus closed", Status: models.PostStatusPublished, Pinned: true, CreatedAt: base},
		{Type: models.PostTypeJob, Summary: "draft job", Status: models.PostStatusDraft, CreatedAt: base.Add(2 * time.Minute)},
		{Type: models.PostTypeCollab, Summary: "50% off", Status: models.PostStatusPublished, CreatedAt: base.Add(3 * time.Minute)},
	}
	for _, p := range posts {
		require.NoError(t, repo.Create(ctx, p))
	}
	published := []models.PostStatus{models.PostStatusPublished}

	got, total, err := repo.List(ctx, FeedQuery{Statuses: published, Limit: 10})
	require.NoError(t, err)
	assert.Equal(t, int64(4), total)
	require.Len(t, got, 4)
	assert.True(t, got[0].Pinned, "pinned first")
	assert.Equal(t, posts[4].ID, got[1].ID)
	assert.Equal(t, posts[1].ID, got[2].ID)
	assert.Equal(t, posts[0].ID, got[3].ID)

	jobType := models.PostTypeJob
	got, total, err = repo.List(ctx, FeedQuery{Type: &jobType, Limit: 10})
	require.NoError(t, err)
	assert.Equal(t, int64(2), total, "no status filter means any status")
	assert.Len(t, got, 2)

	got, _, err = repo.List(ctx, FeedQuery{Statuses: published, AuthorID: &author, Limit: 10})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, posts[0].ID, got[0].ID)

	got, _, err = repo.List(ctx, FeedQuery{Statuses: published, Search: "REUNION", Limit: 10})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, posts[1].ID, got[0].ID)

	got, _, err = repo.List(ctx, FeedQuery{Statuses: published, Search: "%", Limit: 10})
	require.NoError(t, err)
	require.Len(t, got, 1, "wildcards are matched literally")
	assert.Equal(t, posts[4].ID, got[0].ID)

	got, _, err = repo.List(ctx, FeedQuery{Statuses: published, PinnedOnly: true, Limit: 10})
	require.NoError(t, err)
	assert.Len(t, got, 1)

	got, total, err = repo.List(ctx, FeedQuery{PostIDs: []uint{}, Limit: 10})
	require.NoError(t, err)
	assert.Empty(t, got)
	assert.Zero(t, total)

	got, total, err = repo.List(ctx, FeedQuery{Statuses: published, Limit: 2, Offset: 2})
	require.NoError(t, err)
	assert.Equal(t, int64(4), total)
	assert.Len(t, got, 2)
}

func TestPostRepository_UpdateFields(t *testing.T) {
	db := setupSQLiteDB(t)
	repo := NewPostRepository(db)
	ctx := context.Background()

	p := &models.Post{Type: models.PostTypeEvent, Title: strPtr("Old"), Summary: "s", Status: models.PostStatusDraft}
	require.NoError(t, repo.Create(ctx, p))

	require.NoError(t, repo.UpdateFields(ctx, p.ID, map[string]any{"title": nil, "status": models.PostStatusPublished}))
	got, err := repo.GetByID(ctx, p.ID)
	require.NoError(t, err)
	assert.Nil(t, got.Title)
	assert.Equal(t, models.PostStatusPublished, got.Status)

	err = repo.UpdateFields(ctx, 999, map[string]any{"pinned": true})
	assert.True(t, models.IsCode(err, models.CodeNotFound))
}
