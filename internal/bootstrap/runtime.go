// Package bootstrap assembles the process runtime shared by the commands.
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"campusboard/internal/cache"
	"campusboard/internal/config"
	"campusboard/internal/database"
	"campusboard/internal/middleware"
	"campusboard/internal/notifications"
	"campusboard/internal/observability"
	"campusboard/internal/policy"
	"campusboard/internal/repository"
	"campusboard/internal/server"
	"campusboard/internal/service"
	"campusboard/internal/storage"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// Options control runtime initialization behavior.
type Options struct {
	// SkipSchema leaves the schema untouched on connect.
	SkipSchema bool
	// Realtime creates the websocket hub; only the API server needs it.
	Realtime bool
}

// Runtime owns every long-lived dependency of a process.
type Runtime struct {
	Config   *config.Config
	DB       *gorm.DB
	Redis    *redis.Client
	Hub      *notifications.Hub
	Notifier *notifications.Notifier
	Kafka    *notifications.KafkaPublisher
	Events   *notifications.Dispatcher
	Store    *storage.ObjectStore
	Sweeper  *service.Sweeper
	Services server.Services

	shutdownTracing func(context.Context) error
}

// InitRuntime connects to the database, Redis, Kafka and object storage and
// builds the domain services. Redis, Kafka and storage are optional.
func InitRuntime(ctx context.Context, cfg *config.Config, opts Options) (*Runtime, error) {
	middleware.InitLogger(cfg.Env, cfg.LogLevel)

	shutdownTracing, err := observability.InitTracing(ctx, observability.TracingConfig{
		ServiceName:    "campusboard-api",
		ServiceVersion: "1.0.0",
		Environment:    cfg.Env,
		Enabled:        cfg.TracingEnabled,
		Exporter:       cfg.TracingExporter,
		OTLPEndpoint:   cfg.OTLPEndpoint,
		SamplerRatio:   cfg.TracingSampleRatio,
	})
	if err != nil {
		return nil, fmt.Errorf("tracing init failed: %w", err)
	}

	db, err := database.ConnectWithOptions(cfg, database.ConnectOptions{SkipSchema: opts.SkipSchema})
	if err != nil {
		return nil, fmt.Errorf("database connection failed: %w", err)
	}

	// Redis may be unreachable; the cache, rate limits and realtime fan-out
	// are then disabled.
	cache.InitRedis(cfg.RedisURL)

	rt := &Runtime{
		Config:          cfg,
		DB:              db,
		Redis:           cache.GetClient(),
		Kafka:           notifications.NewKafkaPublisher(cfg.KafkaBrokerList(), cfg.KafkaTopic),
		shutdownTracing: shutdownTracing,
	}

	var sinks []notifications.Sink
	if rt.Redis != nil {
		rt.Notifier = notifications.NewNotifier(rt.Redis)
		sinks = append(sinks, rt.Notifier)
		if opts.Realtime {
			rt.Hub = notifications.NewHub()
		}
	}
	if rt.Kafka != nil {
		sinks = append(sinks, rt.Kafka)
		middleware.Logger.Info("kafka event sink enabled", slog.String("topic", cfg.KafkaTopic))
	}
	rt.Events = notifications.NewDispatcher(sinks...)

	var signer service.ObjectSigner
	store, err := storage.NewObjectStore(cfg)
	if err != nil {
		middleware.Logger.Warn("object storage unavailable, id card links disabled", slog.String("error", err.Error()))
	} else if store != nil {
		if err := store.EnsureBucket(ctx); err != nil {
			middleware.Logger.Warn("object storage bucket check failed", slog.String("error", err.Error()))
		}
		rt.Store = store
		signer = store
	}

	rt.buildServices(signer)
	return rt, nil
}

func (rt *Runtime) buildServices(signer service.ObjectSigner) {
	db := rt.DB
	postRepo := repository.NewPostRepository(db)
	users := repository.NewUserRepository(db)
	comments := repository.NewCommentRepository(db)

	tags := service.NewTagService(repository.NewTagRepository(db))
	votes := service.NewVoteService(postRepo, repository.NewVoteRepository(db), rt.Events)
	verifications := service.NewVerificationService(repository.NewVerificationRepository(db), users, signer, rt.Events)
	rt.Sweeper = service.NewSweeper(postRepo, rt.Events)

	posts := service.NewPostService(service.PostServiceDeps{
		Posts:    postRepo,
		Refs:     repository.NewPostRefRepository(db),
		Comments: comments,
		Users:    users,
		Tags:     tags,
		Votes:    votes,
		Policy:   policy.NewAuthoringPolicy(verifications),
		Sweeper:  rt.Sweeper,
		Events:   rt.Events,
	})

	rt.Services = server.Services{
		Posts:         posts,
		Comments:      service.NewCommentService(postRepo, comments, users, rt.Events),
		Tags:          tags,
		Votes:         votes,
		Verifications: verifications,
		Notifications: service.NewNotificationService(repository.NewNotificationStateRepository(db), posts, verifications),
	}
}

// StartBackground launches the Redis to websocket wiring and the expiry
// sweep ticker. Both stop when ctx is cancelled.
func (rt *Runtime) StartBackground(ctx context.Context) {
	if rt.Hub != nil && rt.Notifier != nil {
		go func() {
			if err := rt.Hub.StartWiring(ctx, rt.Notifier); err != nil && !errors.Is(err, context.Canceled) {
				middleware.Logger.Error("hub wiring stopped",
					slog.String("hub", rt.Hub.Name()), slog.String("error", err.Error()))
			}
		}()
	}
	go rt.Sweeper.Run(ctx, rt.Config.SweepInterval)
}

// NewServer builds the HTTP server over this runtime.
func (rt *Runtime) NewServer() *server.Server {
	return server.NewServer(rt.Config, rt.DB, rt.Redis, rt.Hub, rt.Services)
}

// Close drains pending events and releases every connection.
func (rt *Runtime) Close(ctx context.Context) {
	done := make(chan struct{})
	go func() {
		rt.Events.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		middleware.Logger.Warn("timed out waiting for event delivery")
	}

	if err := rt.Kafka.Close(); err != nil {
		middleware.Logger.Error("error closing kafka writer", slog.String("error", err.Error()))
	}
	if rt.Redis != nil {
		if err := rt.Redis.Close(); err != nil {
			middleware.Logger.Error("error closing redis", slog.String("error", err.Error()))
		}
	}
	if sqlDB, err := rt.DB.DB(); err == nil {
		if err := sqlDB.Close(); err != nil {
			middleware.Logger.Error("error closing sql DB", slog.String("error", err.Error()))
		}
	}
	if rt.shutdownTracing != nil {
		if err := rt.shutdownTracing(ctx); err != nil {
			middleware.Logger.Error("error shutting down tracing", slog.String("error", err.Error()))
		}
	}
}
