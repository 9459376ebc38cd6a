package service

import (
	"context"
	"log/slog"
	"time"

	"campusboard/internal/middleware"
	"campusboard/internal/notifications"
	"campusboard/internal/observability"
	"campusboard/internal/repository"
)

// Sweep triggers, used as metric labels.
const (
	sweepTriggerRead     = "read"
	sweepTriggerInterval = "interval"
	sweepTriggerCLI      = "cli"
)

// Sweeper archives posts whose expiry has passed.
type Sweeper struct {
	posts  repository.PostRepository
	events *notifications.Dispatcher
	now    func() time.Time
}

// NewSweeper creates a sweeper over posts. events may be nil.
func NewSweeper(posts repository.PostRepository, events *notifications.Dispatcher) *Sweeper {
	return &Sweeper{posts: posts, events: events, now: time.Now}
}

// ArchivedBatch is the payload of a posts_archived event.
type ArchivedBatch struct {
	Count   int64     `json:"count"`
	Trigger string    `json:"trigger"`
	SweptAt time.Time `json:"sweptAt"`
}

// Sweep runs the archival update from the read path and returns the number
// of posts it archived.
func (s *Sweeper) Sweep(ctx context.Context) (int64, error) {
	return s.sweep(ctx, sweepTriggerRead)
}

// SweepOnce runs a single sweep for the one-shot command.
func (s *Sweeper) SweepOnce(ctx context.Context) (int64, error) {
	return s.sweep(ctx, sweepTriggerCLI)
}

func (s *Sweeper) sweep(ctx context.Context, trigger string) (int64, error) {
	now := s.now().UTC()
	archived, err := s.posts.ArchiveExpired(ctx, now)
	if err != nil {
		return 0, err
	}
	if archived > 0 {
		observability.PostsArchived.WithLabelValues(trigger).Add(float64(archived))
		middleware.Logger.InfoContext(ctx, "archived expired posts",
			slog.Int64("count", archived), slog.String("trigger", trigger))
		s.events.Publish(ctx, notifications.NewEvent(notifications.EventPostsArchived,
			ArchivedBatch{Count: archived, Trigger: trigger, SweptAt: now},
			notifications.Audience{Broadcast: true}))
	}
	return archived, nil
}

// Run sweeps every interval until ctx is cancelled. A non-positive interval
// returns immediately.
func (s *Sweeper) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}
	observability.LogAsyncOperationStart(ctx, "expiry_sweep", map[string]any{"interval": interval.String()})
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			observability.LogAsyncOperationEnd(ctx, "expiry_sweep", nil)
			return
		case <-ticker.C:
			if _, err := s.sweep(ctx, sweepTriggerInterval); err != nil {
				observability.LogAsyncOperationError(ctx, "expiry_sweep", err, nil)
			}
		}
	}
}
