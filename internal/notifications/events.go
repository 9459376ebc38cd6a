package notifications

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"campusboard/internal/middleware"
	"campusboard/internal/observability"
)

// Domain event types.
const (
	EventPostCreated           = "post_created"
	EventPostUpdated           = "post_updated"
	EventPostVoteUpdated       = "post_vote_updated"
	EventCommentCreated        = "comment_created"
	EventCommentUpdated        = "comment_updated"
	EventCommentDeleted        = "comment_deleted"
	EventVerificationSubmitted = "verification_submitted"
	EventVerificationReviewed  = "verification_reviewed"
	EventPostsArchived         = "posts_archived"
)

// Audience selects the realtime recipients of an event.
type Audience struct {
	Broadcast  bool
	Moderators bool
	UserIDs    []uint
}

// Event is a best-effort domain notification.
type Event struct {
	Type       string    `json:"type"`
	Payload    any       `json:"payload"`
	OccurredAt time.Time `json:"occurredAt"`
	Audience   Audience  `json:"-"`
}

// NewEvent stamps an event with the current time.
func NewEvent(eventType string, payload any, audience Audience) Event {
	return Event{Type: eventType, Payload: payload, OccurredAt: time.Now().UTC(), Audience: audience}
}

// Encode renders the wire form shared by websocket clients and Kafka consumers.
func (e Event) Encode() ([]byte, error) {
	return json.Marshal(e)
}

// Sink delivers events to one destination.
type Sink interface {
	Name() string
	Publish(ctx context.Context, evt Event) error
}

// Dispatcher fans events out to every sink in the background. Failures are
// logged and counted, never returned to the caller.
type Dispatcher struct {
	sinks   []Sink
	timeout time.Duration
	wg      sync.WaitGroup
}

// NewDispatcher returns a dispatcher over sinks. Nil sinks are skipped.
func NewDispatcher(sinks ...Sink) *Dispatcher {
	d := &Dispatcher{timeout: 5 * time.Second}
	for _, s := range sinks {
		if s != nil {
			d.sinks = append(d.sinks, s)
		}
	}
	return d
}

// Publish sends evt to every sink without blocking the caller.
func (d *Dispatcher) Publish(ctx context.Context, evt Event) {
	if d == nil || len(d.sinks) == 0 {
		return
	}
	base := context.WithoutCancel(ctx)
	for _, sink := range d.sinks {
		d.wg.Add(1)
		go func(sink Sink) {
			defer d.wg.Done()
			sendCtx, cancel := context.WithTimeout(base, d.timeout)
			defer cancel()

			sendCtx, span := observability.StartProducerSpan(sendCtx, sink.Name(), evt.Type)
			err := sink.Publish(sendCtx, evt)
			observability.EndSpan(span, err)
			if err != nil {
				observability.EventsPublished.WithLabelValues(sink.Name(), "error").Inc()
				middleware.Logger.WarnContext(sendCtx, "event publish failed",
					slog.String("sink", sink.Name()),
					slog.String("event", evt.Type),
					slog.String("error", err.Error()))
				return
			}
			observability.EventsPublished.WithLabelValues(sink.Name(), "ok").Inc()
		}(sink)
	}
}

// Wait blocks until every in-flight publish finished.
func (d *Dispatcher) Wait() {
	if d != nil {
		d.wg.Wait()
	}
}
