package models

import (
	"strings"
	"time"
)

// VoteDirection is the caller-facing form of a vote.
type VoteDirection string

const (
	VoteUp   VoteDirection = "up"
	VoteDown VoteDirection = "down"
	VoteNone VoteDirection = "none"
)

// ParseVoteDirection accepts up, down and none in any casing.
func ParseVoteDirection(raw string) (VoteDirection, bool) {
	switch d := VoteDirection(strings.ToLower(strings.TrimSpace(raw))); d {
	case VoteUp, VoteDown, VoteNone:
		return d, true
	default:
		return "", false
	}
}

// Value is the stored ledger value, 0 meaning no row.
func (d VoteDirection) Value() int {
	switch d {
	case VoteUp:
		return 1
	case VoteDown:
		return -1
	default:
		return 0
	}
}

// PostVote is one user's vote on one post.
type PostVote struct {
	ID        uint      `gorm:"primaryKey" json:"-"`
	PostID    uint      `gorm:"not null;uniqueIndex:idx_post_votes_post_user" json:"postId"`
	UserID    uint      `gorm:"not null;uniqueIndex:idx_post_votes_post_user;index" json:"userId"`
	Value     int       `gorm:"not null" json:"value"`
	CreatedAt time.Time `json:"-"`
	UpdatedAt time.Time `json:"-"`
}

// VoteSummary is the aggregate a caller sees for one post.
type VoteSummary struct {
	Score         int           `json:"score"`
	UpvoteCount   int           `json:"upvoteCount"`
	DownvoteCount int           `json:"downvoteCount"`
	UserVote      VoteDirection `json:"userVote"`
}

// SummarizeVotes folds vote rows into per-post summaries from callerID's
// point of view. Posts without rows are absent from the result.
func SummarizeVotes(votes []PostVote, callerID uint) map[uint]VoteSummary {
	out := make(map[uint]VoteSummary)
	for _, v := range votes {
		s, ok := out[v.PostID]
		if !ok {
			s.UserVote = VoteNone
		}
		switch {
		case v.Value > 0:
			s.UpvoteCount++
		case v.Value < 0:
			s.DownvoteCount++
		}
		s.Score += v.Value
		if callerID != 0 && v.UserID == callerID {
			if v.Value > 0 {
				s.UserVote = VoteUp
			} else if v.Value < 0 {
				s.UserVote = VoteDown
			}
		}
		out[v.PostID] = s
	}
	return out
}

// EmptyVoteSummary is the aggregate for a post nobody voted on.
func EmptyVoteSummary() VoteSummary {
	return VoteSummary{UserVote: VoteNone}
}
