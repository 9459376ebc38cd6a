package server

import (
	"fmt"
	"net/http"
	"testing"
	"time"

	"campusboard/internal/models"
	"campusboard/internal/service"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAPI_TagFeedArchiveScenario(t *testing.T) {
	env := newTestEnv(t, "")
	faculty := env.user(1, models.RoleFaculty)

	var tagResp struct {
		Data []models.Tag `json:"data"`
	}
	status := env.do(http.MethodPost, "/api/tags", faculty, map[string]any{"name": "Career Fair"}, &tagResp)
	require.Equal(t, http.StatusCreated, status)
	require.Len(t, tagResp.Data, 1)
	assert.Equal(t, "career-fair", tagResp.Data[0].Slug)

	future := time.Now().Add(24 * time.Hour).UTC().Format(time.RFC3339)
	var post models.Post
	status = env.do(http.MethodPost, "/api/posts", faculty, map[string]any{
		"type":      "EVENT",
		"title":     "Spring career fair",
		"summary":   "Meet recruiters in the main hall.",
		"status":    "published",
		"expiresAt": future,
		"tagIds":    []uint{tagResp.Data[0].ID},
		"ref":       map[string]any{"service": "events", "entityId": "evt-42", "metadata": map[string]any{"room": "Hall A"}},
	}, &post)
	require.Equal(t, http.StatusCreated, status)
	require.Len(t, post.Tags, 1)
	require.NotNil(t, post.Ref)
	assert.Equal(t, "evt-42", post.Ref.EntityID)

	for _, token := range []string{"career-fair", "Career Fair", fmt.Sprint(tagResp.Data[0].ID)} {
		var feed feedBody
		require.Equal(t, http.StatusOK, env.do(http.MethodGet, "/api/feed?tag="+urlQuery(token), "", nil, &feed))
		assert.Equal(t, []uint{post.ID}, postIDs(feed.Data), token)
	}

	past := time.Now().Add(-time.Hour).UTC().Format(time.RFC3339)
	status = env.do(http.MethodPatch, fmt.Sprintf("/api/posts/%d", post.ID), faculty, map[string]any{"expiresAt": past}, nil)
	require.Equal(t, http.StatusOK, status)

	var feed feedBody
	require.Equal(t, http.StatusOK, env.do(http.MethodGet, "/api/feed", "", nil, &feed))
	assert.Empty(t, feed.Data)
	assert.Equal(t, int64(1), feed.Meta.ArchivedDuringRequest)
	assert.Equal(t, 20, feed.Pagination.Limit)

	require.Equal(t, http.StatusOK, env.do(http.MethodGet, "/api/feed?status=all&tag=career-fair", "", nil, &feed))
	require.Len(t, feed.Data, 1)
	assert.Equal(t, models.PostStatusArchived, feed.Data[0].Status)
	assert.Equal(t, "career-fair", feed.Data[0].Tags[0].Slug)
	assert.Equal(t, int64(1), feed.Pagination.Total)
	assert.Zero(t, feed.Meta.ArchivedDuringRequest)

	var errBody models.ErrorResponse
	status = env.do(http.MethodPost, fmt.Sprintf("/api/posts/%d/vote", post.ID), faculty, map[string]any{"vote": "up"}, &errBody)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, models.CodeValidation, errBody.Code)
}

func TestAPI_AuthoringGateAndVerificationReview(t *testing.T) {
	env := newTestEnv(t, "")
	faculty := env.user(1, models.RoleFaculty)
	alumni := env.user(2, models.RoleAlumni)
	student := env.user(3, models.RoleStudent)

	job := map[string]any{"type": "JOB", "summary": "Hiring interns", "status": "published", "authorId": 99}

	var errBody models.ErrorResponse
	assert.Equal(t, http.StatusUnauthorized, env.do(http.MethodPost, "/api/posts", "", job, &errBody))
	assert.Equal(t, http.StatusForbidden, env.do(http.MethodPost, "/api/posts", student, job, &errBody))
	assert.Equal(t, models.CodeForbidden, errBody.Code)

	var app models.AlumniVerificationApplication
	require.Equal(t, http.StatusCreated, env.do(http.MethodPost, "/api/alumni-verification/apply", alumni,
		service.ApplyInput{StudentID: "2018-117", IDCardImage: "cards/2.png", CurrentJobInfo: "Analyst"}, &app))
	assert.Equal(t, models.VerificationPending, app.Status)

	assert.Equal(t, http.StatusForbidden, env.do(http.MethodPost, "/api/posts", alumni, job, &errBody))

	var inbox struct {
		Data       []service.VerificationNotification `json:"data"`
		Pagination pagination                         `json:"pagination"`
	}
	assert.Equal(t, http.StatusForbidden, env.do(http.MethodGet, "/api/notifications/alumni-verifications", alumni, nil, nil))
	require.Equal(t, http.StatusOK, env.do(http.MethodGet, "/api/notifications/alumni-verifications?status=pending", faculty, nil, &inbox))
	require.Len(t, inbox.Data, 1)
	assert.Equal(t, int64(1), inbox.Pagination.Total)

	require.Equal(t, http.StatusOK, env.do(http.MethodPatch,
		fmt.Sprintf("/api/notifications/alumni-verifications/%d", app.ID), faculty,
		map[string]any{"action": "approve", "note": "matches registry"}, &app))
	assert.Equal(t, models.VerificationApproved, app.Status)

	var overview service.VerificationOverview
	require.Equal(t, http.StatusOK, env.do(http.MethodGet, "/api/alumni-verification/me", alumni, nil, &overview))
	assert.Equal(t, models.VerificationApproved, overview.Status)

	var post models.Post
	require.Equal(t, http.StatusCreated, env.do(http.MethodPost, "/api/posts", alumni, job, &post))
	require.NotNil(t, post.AuthorID)
	assert.Equal(t, uint(2), *post.AuthorID)
}

func TestAPI_ValidationErrorsCarryFields(t *testing.T) {
	env := newTestEnv(t, "")
	faculty := env.user(1, models.RoleFaculty)

	var errBody models.ErrorResponse
	status := env.do(http.MethodPost, "/api/posts", faculty, map[string]any{"type": "MEMO"}, &errBody)
	require.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, models.CodeValidation, errBody.Code)
	fields := make([]string, 0, len(errBody.Fields))
	for _, f := range errBody.Fields {
		fields = append(fields, f.Field)
	}
	assert.Contains(t, fields, "type")
	assert.Contains(t, fields, "summary")

	var bodyErr models.ErrorResponse
	status = env.do(http.MethodPost, "/api/posts", faculty, "not an object", &bodyErr)
	require.Equal(t, http.StatusBadRequest, status)
	require.Len(t, bodyErr.Fields, 1)
	assert.Equal(t, "body", bodyErr.Fields[0].Field)

	assert.Equal(t, http.StatusBadRequest, env.do(http.MethodGet, "/api/feed?limit=abc", "", nil, &errBody))
	assert.Equal(t, http.StatusBadRequest, env.do(http.MethodGet, "/api/feed?status=lost", "", nil, &errBody))
	assert.Equal(t, http.StatusBadRequest, env.do(http.MethodGet, "/api/posts/abc", "", nil, &errBody))
	assert.Equal(t, "Invalid ID", errBody.Error)
	assert.Equal(t, http.StatusNotFound, env.do(http.MethodGet, "/api/posts/404", "", nil, &errBody))
	assert.Equal(t, models.CodeNotFound, errBody.Code)
}

func TestAPI_CommentsAndVotes(t *testing.T) {
	env := newTestEnv(t, "")
	author := env.user(1, models.RoleStudent)
	other := env.user(2, models.RoleStudent)

	var post models.Post
	require.Equal(t, http.StatusCreated, env.do(http.MethodPost, "/api/posts", author,
		map[string]any{"type": "COLLAB", "summary": "Looking for a co-founder", "status": "published"}, &post))

	var votes models.VoteSummary
	require.Equal(t, http.StatusOK, env.do(http.MethodPost, fmt.Sprintf("/api/posts/%d/vote", post.ID), other,
		map[string]any{"vote": "down"}, &votes))
	assert.Equal(t, -1, votes.Score)
	require.Equal(t, http.StatusOK, env.do(http.MethodPost, fmt.Sprintf("/api/posts/%d/vote", post.ID), other,
		map[string]any{"vote": "up"}, &votes))
	assert.Equal(t, 1, votes.Score)
	assert.Equal(t, models.VoteUp, votes.UserVote)

	var comment models.PostComment
	path := fmt.Sprintf("/api/posts/%d/comments", post.ID)
	require.Equal(t, http.StatusCreated, env.do(http.MethodPost, path, other,
		map[string]any{"content": "<b>Count me in</b>"}, &comment))
	assert.Equal(t, "Count me in", comment.Content)

	commentPath := fmt.Sprintf("%s/%d", path, comment.ID)
	assert.Equal(t, http.StatusForbidden, env.do(http.MethodPatch, commentPath, author, map[string]any{"content": "edited"}, nil))
	require.Equal(t, http.StatusOK, env.do(http.MethodPatch, commentPath, other, map[string]any{"content": "edited"}, &comment))
	assert.Equal(t, "edited", comment.Content)

	var list struct {
		Data       []models.PostComment `json:"data"`
		Pagination pagination           `json:"pagination"`
	}
	require.Equal(t, http.StatusOK, env.do(http.MethodGet, path, "", nil, &list))
	assert.Len(t, list.Data, 1)

	var got models.Post
	require.Equal(t, http.StatusOK, env.do(http.MethodGet, fmt.Sprintf("/api/posts/%d", post.ID), other, nil, &got))
	assert.Equal(t, int64(1), got.CommentCount)
	assert.Equal(t, models.VoteUp, got.Votes.UserVote)
	require.NotNil(t, got.Author)
	assert.Equal(t, "User 1", got.Author.FullName)

	assert.Equal(t, http.StatusNoContent, env.do(http.MethodDelete, commentPath, other, nil, nil))
	require.Equal(t, http.StatusOK, env.do(http.MethodGet, path, "", nil, &list))
	assert.Empty(t, list.Data)
}

func TestAPI_NotificationState(t *testing.T) {
	env := newTestEnv(t, "")
	student := env.user(1, models.RoleStudent)

	var errBody models.ErrorResponse
	assert.Equal(t, http.StatusBadRequest, env.do(http.MethodPost, "/api/notifications/state/mark-read", student, map[string]any{}, &errBody))

	var state models.NotificationState
	require.Equal(t, http.StatusOK, env.do(http.MethodPost, "/api/notifications/state/mark-read", student,
		map[string]any{"notificationKey": "post:1"}, &state))
	assert.Equal(t, []string{"post:1"}, state.ReadKeys)

	require.Equal(t, http.StatusOK, env.do(http.MethodGet, "/api/notifications/state", student, nil, &state))
	assert.Equal(t, []string{"post:1"}, state.ReadKeys)

	var feed struct {
		Data []service.PostNotification `json:"data"`
		Meta struct {
			Unread int `json:"unread"`
		} `json:"meta"`
	}
	require.Equal(t, http.StatusOK, env.do(http.MethodGet, "/api/notifications/feed", student, nil, &feed))
	assert.Empty(t, feed.Data)
	assert.Zero(t, feed.Meta.Unread)
	assert.Equal(t, http.StatusUnauthorized, env.do(http.MethodGet, "/api/notifications/state", "", nil, nil))
}

func TestAPI_FeatureFlagsAndRealtimeGate(t *testing.T) {
	env := newTestEnv(t, "realtime_feed=roles:faculty,beta=on")
	faculty := env.user(1, models.RoleFaculty)
	student := env.user(2, models.RoleStudent)
	admin := env.user(3, models.RoleAdmin)

	assert.Equal(t, http.StatusForbidden, env.do(http.MethodGet, "/api/ws", student, nil, nil))
	// Enabled, but a plain GET is not an upgrade request.
	assert.Equal(t, http.StatusUpgradeRequired, env.do(http.MethodGet, "/api/ws", faculty, nil, nil))

	assert.Equal(t, http.StatusForbidden, env.do(http.MethodGet, "/api/admin/feature-flags", faculty, nil, nil))
	var flags struct {
		Raw       map[string]string `json:"raw"`
		Evaluated map[string]bool   `json:"evaluated"`
	}
	require.Equal(t, http.StatusOK, env.do(http.MethodGet, "/api/admin/feature-flags", admin, nil, &flags))
	assert.Equal(t, "roles:faculty", flags.Raw["realtime_feed"])
	assert.False(t, flags.Evaluated["realtime_feed"])
	assert.True(t, flags.Evaluated["beta"])
}

func TestAPI_Health(t *testing.T) {
	env := newTestEnv(t, "")

	var body map[string]any
	require.Equal(t, http.StatusOK, env.do(http.MethodGet, "/health/ready", "", nil, &body))
	assert.Equal(t, "degraded", body["status"])
	assert.Equal(t, http.StatusOK, env.do(http.MethodGet, "/health/live", "", nil, nil))
}

func TestAPI_AdminSchemaStatus(t *testing.T) {
	env := newTestEnv(t, "")
	admin := env.user(1, models.RoleAdmin)

	var status struct {
		Mode          string   `json:"mode"`
		AutoMigrate   bool     `json:"willRunAutoMigrate"`
		MissingTables []string `json:"missingTables"`
		Pending       []string `json:"pendingMigrations"`
	}
	require.Equal(t, http.StatusOK, env.do(http.MethodGet, "/api/admin/schema", admin, nil, &status))
	assert.Equal(t, "auto", status.Mode)
	assert.True(t, status.AutoMigrate)
	assert.Empty(t, status.MissingTables)
	assert.Contains(t, status.Pending, "000001_init")
}
