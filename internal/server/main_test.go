package server

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/url"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"campusboard/internal/config"
	"campusboard/internal/database"
	"campusboard/internal/middleware"
	"campusboard/internal/models"
	"campusboard/internal/notifications"
	"campusboard/internal/policy"
	"campusboard/internal/repository"
	"campusboard/internal/service"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const testSecret = "test-secret-key-12345678901234567890123456789012"

type testEnv struct {
	t      *testing.T
	cfg    *config.Config
	db     *gorm.DB
	server *Server
	app    *fiber.App
}

// newTestEnv wires the full API over an in-memory sqlite database. Redis,
// Kafka and object storage are absent.
func newTestEnv(t *testing.T, flags string) *testEnv {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{Logger: logger.Discard})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, db.AutoMigrate(database.PersistentModels()...))

	cfg := &config.Config{
		Env:            "test",
		JWTSecret:      testSecret,
		JWTIssuer:      "campusboard-api",
		JWTAudience:    "campusboard-client",
		AllowedOrigins: "http://localhost:5173",
		FeatureFlags:   flags,
		DBSchemaMode:   database.SchemaModeAuto,
	}

	events := notifications.NewDispatcher()
	postRepo := repository.NewPostRepository(db)
	users := repository.NewUserRepository(db)
	comments := repository.NewCommentRepository(db)

	tags := service.NewTagService(repository.NewTagRepository(db))
	votes := service.NewVoteService(postRepo, repository.NewVoteRepository(db), events)
	verifications := service.NewVerificationService(repository.NewVerificationRepository(db), users, nil, events)
	posts := service.NewPostService(service.PostServiceDeps{
		Posts:    postRepo,
		Refs:     repository.NewPostRefRepository(db),
		Comments: comments,
		Users:    users,
		Tags:     tags,
		Votes:    votes,
		Policy:   policy.NewAuthoringPolicy(verifications),
		Sweeper:  service.NewSweeper(postRepo, events),
		Events:   events,
	})

	srv := NewServer(cfg, db, nil, nil, Services{
		Posts:         posts,
		Comments:      service.NewCommentService(postRepo, comments, users, events),
		Tags:          tags,
		Votes:         votes,
		Verifications: verifications,
		Notifications: service.NewNotificationService(repository.NewNotificationStateRepository(db), posts, verifications),
	})
	return &testEnv{t: t, cfg: cfg, db: db, server: srv, app: srv.App()}
}

// user stores a directory entry and returns a signed bearer token for it.
func (e *testEnv) user(id uint, role models.Role) string {
	e.t.Helper()
	require.NoError(e.t, e.db.Create(&models.User{
		ID:       id,
		FullName: fmt.Sprintf("User %d", id),
		Email:    fmt.Sprintf("user%d@campus.example", id),
		Role:     role,
	}).Error)
	return e.token(id, role)
}

func (e *testEnv) token(id uint, role models.Role) string {
	e.t.Helper()
	claims := middleware.Claims{
		Role: string(role),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatUint(uint64(id), 10),
			Issuer:    e.cfg.JWTIssuer,
			Audience:  jwt.ClaimStrings{e.cfg.JWTAudience},
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
	require.NoError(e.t, err)
	return signed
}

// do sends a request and decodes a JSON response body into out when non-nil.
func (e *testEnv) do(method, path, token string, body any, out any) int {
	e.t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(e.t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := e.app.Test(req, -1)
	require.NoError(e.t, err)
	defer func() { _ = resp.Body.Close() }()

	if out != nil {
		raw, err := io.ReadAll(resp.Body)
		require.NoError(e.t, err)
		require.NoError(e.t, json.Unmarshal(raw, out), "body: %s", raw)
	}
	return resp.StatusCode
}

type feedBody struct {
	Data       []models.Post `json:"data"`
	Pagination pagination    `json:"pagination"`
	Meta       feedMeta      `json:"meta"`
}

func postIDs(posts []models.Post) []uint {
	out := make([]uint, 0, len(posts))
	for _, p := range posts {
		out = append(out, p.ID)
	}
	return out
}


func urlQuery(s string) string {
	return url.QueryEscape(s)
}
