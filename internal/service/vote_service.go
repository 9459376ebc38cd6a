package service

import (
	"context"
	"time"

	"campusboard/internal/models"
	"campusboard/internal/notifications"
	"campusboard/internal/observability"
	"campusboard/internal/repository"
)

// VoteService maintains the per-post vote ledger and its aggregates.
type VoteService struct {
	posts  repository.PostRepository
	votes  repository.VoteRepository
	events *notifications.Dispatcher
}

// NewVoteService creates a vote service. events may be nil.
func NewVoteService(posts repository.PostRepository, votes repository.VoteRepository, events *notifications.Dispatcher) *VoteService {
	return &VoteService{posts: posts, votes: votes, events: events}
}

// SetVote records the caller's vote on a post. "none" removes it; "up" and
// "down" overwrite any previous vote. Archived or expired posts reject votes.
func (s *VoteService) SetVote(ctx context.Context, postID uint, caller models.Caller, rawDirection string) (models.VoteSummary, error) {
	if !caller.Authenticated() {
		return models.VoteSummary{}, models.NewUnauthorizedError("Authentication required to vote")
	}
	direction, ok := models.ParseVoteDirection(rawDirection)
	if !ok {
		return models.VoteSummary{}, models.NewFieldValidationError("vote", "vote must be one of up, down, none")
	}

	post, err := s.posts.GetByID(ctx, postID)
	if err != nil {
		return models.VoteSummary{}, err
	}
	if post.IsArchived() || post.IsExpired(time.Now()) {
		return models.VoteSummary{}, models.NewFieldValidationError("postId", "Archived posts cannot be voted on")
	}

	if direction == models.VoteNone {
		err = s.votes.Delete(ctx, postID, caller.UserID)
	} else {
		err = s.votes.Upsert(ctx, postID, caller.UserID, direction.Value())
	}
	if err != nil {
		return models.VoteSummary{}, err
	}
	observability.VotesCast.WithLabelValues(string(direction)).Inc()

	summary, err := s.Aggregate(ctx, postID, caller.UserID)
	if err != nil {
		return models.VoteSummary{}, err
	}

	s.events.Publish(ctx, notifications.NewEvent(notifications.EventPostVoteUpdated, map[string]any{
		"postId":        postID,
		"score":         summary.Score,
		"upvoteCount":   summary.UpvoteCount,
		"downvoteCount": summary.DownvoteCount,
	}, notifications.Audience{Broadcast: true}))

	return summary, nil
}

// Aggregate recomputes one post's vote summary from its rows.
func (s *VoteService) Aggregate(ctx context.Context, postID, callerID uint) (models.VoteSummary, error) {
	summaries, err := s.AggregateMany(ctx, []uint{postID}, callerID)
	if err != nil {
		return models.VoteSummary{}, err
	}
	return summaries[postID], nil
}

// AggregateMany computes summaries for every post id with one query. Posts
// without votes get an empty summary.
func (s *VoteService) AggregateMany(ctx context.Context, postIDs []uint, callerID uint) (map[uint]models.VoteSummary, error) {
	rows, err := s.votes.ListByPostIDs(ctx, postIDs)
	if err != nil {
		return nil, err
	}
	summaries := models.SummarizeVotes(rows, callerID)
	for _, id := range postIDs {
		if _, ok := summaries[id]; !ok {
			summaries[id] = models.EmptyVoteSummary()
		}
	}
	return summaries, nil
}
