// Package server contains HTTP and WebSocket handlers for the application's API endpoints.
package server

import (
	"context"
	"log/slog"
	"time"

	_ "campusboard/docs" // swagger docs
	"campusboard/internal/config"
	"campusboard/internal/featureflags"
	"campusboard/internal/middleware"
	"campusboard/internal/models"
	"campusboard/internal/notifications"
	"campusboard/internal/service"

	"github.com/ansrivas/fiberprometheus/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/helmet"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/monitor"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/gofiber/swagger"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// Services bundles the domain services the handlers call.
type Services struct {
	Posts         *service.PostService
	Comments      *service.CommentService
	Tags          *service.TagService
	Votes         *service.VoteService
	Verifications *service.VerificationService
	Notifications *service.NotificationService
}

// Server holds all dependencies and provides handlers
type Server struct {
	config         *config.Config
	db             *gorm.DB
	redis          *redis.Client
	app            *fiber.App
	promMiddleware *fiberprometheus.FiberPrometheus
	auth           *middleware.Authenticator
	hub            *notifications.Hub
	featureFlags   *featureflags.Manager

	posts         *service.PostService
	comments      *service.CommentService
	tags          *service.TagService
	votes         *service.VoteService
	verifications *service.VerificationService
	notifications *service.NotificationService
}

// NewServer creates a server over already-initialized dependencies. hub and
// redisClient may be nil; the websocket endpoint then reports unavailable.
func NewServer(cfg *config.Config, db *gorm.DB, redisClient *redis.Client, hub *notifications.Hub, svc Services) *Server {
	return &Server{
		config:         cfg,
		db:             db,
		redis:          redisClient,
		promMiddleware: middleware.InitMetrics("campusboard-api"),
		auth:           middleware.NewAuthenticator(cfg),
		hub:            hub,
		featureFlags:   featureflags.NewManager(cfg.FeatureFlags),
		posts:          svc.Posts,
		comments:       svc.Comments,
		tags:           svc.Tags,
		votes:          svc.Votes,
		verifications:  svc.Verifications,
		notifications:  svc.Notifications,
	}
}

// App builds the fiber application with middleware and routes installed.
func (s *Server) App() *fiber.App {
	if s.app != nil {
		return s.app
	}
	app := fiber.New(fiber.Config{
		AppName:   "Campusboard API",
		BodyLimit: 1 * 1024 * 1024,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			if fe, ok := err.(*fiber.Error); ok {
				return c.Status(fe.Code).JSON(models.ErrorResponse{Error: fe.Message})
			}
			middleware.Logger.ErrorContext(c.UserContext(), "unhandled error", slog.String("error", err.Error()))
			return models.RespondWithError(c, fiber.StatusInternalServerError, models.NewInternalError(err))
		},
	})
	s.SetupMiddleware(app)
	s.SetupRoutes(app)
	s.app = app
	return app
}

// SetupMiddleware configures middleware for the Fiber app
func (s *Server) SetupMiddleware(app *fiber.App) {
	app.Use(recover.New())
	app.Use(requestid.New())
	app.Use(middleware.TracingMiddleware())

	// Propagate request, correlation and trace ids into the user context.
	app.Use(middleware.ContextMiddleware())

	if s.promMiddleware != nil {
		app.Use(middleware.MetricsMiddleware(s.promMiddleware))
	}

	app.Use(helmet.New())
	app.Use(middleware.StructuredLogger())

	// CORS runs before the limiter so throttled responses still carry CORS headers.
	origins := s.config.AllowedOrigins
	if origins == "" {
		origins = "http://localhost:5173,http://localhost:3000,http://127.0.0.1:5173"
	}
	app.Use(cors.New(cors.Config{
		AllowOrigins:     origins,
		AllowMethods:     "GET,POST,PATCH,DELETE,OPTIONS",
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization, X-Correlation-ID, Upgrade, Connection, Sec-WebSocket-Key, Sec-WebSocket-Version",
		AllowCredentials: true,
		MaxAge:           86400,
	}))

	// Global rate limiting (100 requests per minute per IP)
	app.Use(limiter.New(limiter.Config{
		Max:        100,
		Expiration: 1 * time.Minute,
		Next: func(c *fiber.Ctx) bool {
			return c.Method() == fiber.MethodOptions
		},
		KeyGenerator: func(c *fiber.Ctx) string {
			return c.IP()
		},
		LimitReached: func(c *fiber.Ctx) error {
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
				"error": "Too many requests, please try again later.",
			})
		},
	}))
}

// SetupRoutes configures all routes for the application
func (s *Server) SetupRoutes(app *fiber.App) {
	app.Get("/health/live", s.LivenessCheck)
	app.Get("/health/ready", s.ReadinessCheck)
	app.Get("/health", s.ReadinessCheck)

	if s.promMiddleware != nil {
		s.promMiddleware.RegisterAt(app, "/metrics")
	}

	api := app.Group("/api")
	api.Get("/", s.ReadinessCheck)
	api.Get("/metrics/dashboard", monitor.New(monitor.Config{
		Title: "Campusboard Metrics Dashboard",
	}))
	api.Get("/swagger/*", swagger.HandlerDefault)

	optional := s.auth.OptionalCaller()
	required := s.auth.RequireCaller()

	api.Get("/feed", optional, s.GetFeed)

	posts := api.Group("/posts")
	// Specific /:id/:resource routes before the generic /:id route.
	posts.Get("/:id/comments", optional, s.GetComments)
	posts.Post("/:id/comments", required, middleware.RateLimit(
		s.redis, 10, time.Minute, "create_comment"), s.CreateComment)
	posts.Patch("/:id/comments/:commentId", required, s.UpdateComment)
	posts.Delete("/:id/comments/:commentId", required, s.DeleteComment)
	posts.Post("/:id/vote", required, middleware.RateLimit(
		s.redis, 60, time.Minute, "vote"), s.VotePost)
	posts.Get("/:id", optional, s.GetPost)
	posts.Patch("/:id", required, s.UpdatePost)
	posts.Post("/", required, middleware.RateLimit(
		s.redis, 10, 5*time.Minute, "create_post"), s.CreatePost)

	tags := api.Group("/tags")
	tags.Get("/", s.GetTags)
	tags.Post("/", required, middleware.RateLimit(
		s.redis, 30, time.Minute, "create_tag"), s.CreateTags)

	verification := api.Group("/alumni-verification", required)
	verification.Get("/me", s.GetMyVerification)
	verification.Post("/apply", middleware.RateLimit(
		s.redis, 5, 10*time.Minute, "verification_apply"), s.ApplyForVerification)

	inbox := api.Group("/notifications", required)
	inbox.Get("/state", s.GetNotificationState)
	inbox.Post("/state/mark-read", s.MarkNotificationsRead)
	inbox.Get("/feed", s.GetNotificationFeed)
	inbox.Get("/alumni-verifications", middleware.RequireModerator(), s.GetVerificationInbox)
	inbox.Patch("/alumni-verifications/:id", middleware.RequireModerator(), s.ReviewVerification)

	api.Get("/ws", required, s.RealtimeGate(), s.WebsocketHandler())

	admin := api.Group("/admin", required, s.AdminRequired())
	admin.Get("/feature-flags", s.GetFeatureFlags)
	admin.Get("/schema", s.GetSchemaStatus)
}

// AdminRequired rejects callers without the admin role.
// Must be placed after RequireCaller.
func (s *Server) AdminRequired() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if middleware.CallerFrom(c).Role != models.RoleAdmin {
			return models.RespondWithError(c, fiber.StatusForbidden,
				models.NewForbiddenError("Admin access required"))
		}
		return c.Next()
	}
}

// Start serves the application on the configured port. It blocks until the
// listener stops.
func (s *Server) Start() error {
	app := s.App()
	middleware.Logger.Info("Server starting", slog.String("port", s.config.Port))
	return app.Listen(":" + s.config.Port)
}

// Shutdown stops accepting requests and closes realtime connections.
// Database, Redis and event sinks belong to the runtime that created them.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.app != nil {
		if err := s.app.ShutdownWithContext(ctx); err != nil {
			middleware.Logger.Error("error shutting down HTTP server", slog.String("error", err.Error()))
		}
	}
	if s.hub != nil {
		if err := s.hub.Shutdown(ctx); err != nil {
			middleware.Logger.Error("error shutting down hub",
				slog.String("hub", s.hub.Name()), slog.String("error", err.Error()))
		}
	}
	middleware.Logger.Info("Server shutdown complete")
	return nil
}
