// Package policy decides who may author and edit which kinds of posts.
package policy

import (
	"context"
	"fmt"

	"campusboard/internal/models"
)

// Rule is the outcome of the capability table for one role and post type.
type Rule int

const (
	Denied Rule = iota
	Allowed
	RequiresVerifiedAlumni
)

func (r Rule) String() string {
	switch r {
	case Allowed:
		return "allowed"
	case RequiresVerifiedAlumni:
		return "requires_verified_alumni"
	default:
		return "denied"
	}
}

// restricted lists the post types that are not open to every caller.
// Types missing here are allowed for any authenticated caller.
var restricted = map[models.PostType]map[models.Role]Rule{
	models.PostTypeAnnouncement: {
		models.RoleAdmin:   Allowed,
		models.RoleFaculty: Allowed,
	},
	models.PostTypeJob: {
		models.RoleAdmin:   Allowed,
		models.RoleFaculty: Allowed,
		models.RoleAlumni:  RequiresVerifiedAlumni,
	},
}

// RuleFor looks up the capability table.
func RuleFor(role models.Role, postType models.PostType) Rule {
	rules, ok := restricted[postType]
	if !ok {
		return Allowed
	}
	return rules[role]
}

// ForcesAuthor reports whether posts of postType always store the caller as
// author.
func ForcesAuthor(postType models.PostType) bool {
	_, ok := restricted[postType]
	return ok
}

// VerificationLookup reports a user's effective alumni verification status.
type VerificationLookup interface {
	EffectiveStatus(ctx context.Context, userID uint) (models.VerificationStatus, error)
}

// AuthoringPolicy gates post creation and sensitive edits.
type AuthoringPolicy struct {
	verifications VerificationLookup
}

// NewAuthoringPolicy returns a policy backed by lookup for alumni checks.
func NewAuthoringPolicy(lookup VerificationLookup) *AuthoringPolicy {
	return &AuthoringPolicy{verifications: lookup}
}

// AuthorizeCreate checks that caller may create a post of postType and
// returns the author id to store. Restricted types always store the caller;
// other types keep a client-asserted author, defaulting to the caller.
func (p *AuthoringPolicy) AuthorizeCreate(ctx context.Context, caller models.Caller, postType models.PostType, requestedAuthorID *uint) (*uint, error) {
	if !caller.Authenticated() {
		return nil, models.NewUnauthorizedError("Authentication required to create posts")
	}

	switch RuleFor(caller.Role, postType) {
	case Allowed:
	case RequiresVerifiedAlumni:
		status, err := p.verifications.EffectiveStatus(ctx, caller.UserID)
		if err != nil {
			return nil, err
		}
		if status != models.VerificationApproved {
			return nil, models.NewForbiddenError(fmt.Sprintf(
				"%s posts require an approved alumni verification (current status: %s)", postType, status))
		}
	default:
		return nil, models.NewForbiddenError(fmt.Sprintf("role %q may not create %s posts", roleLabel(caller.Role), postType))
	}

	authorID := caller.UserID
	if !ForcesAuthor(postType) && requestedAuthorID != nil && *requestedAuthorID != 0 {
		authorID = *requestedAuthorID
	}
	return &authorID, nil
}

// AuthorizeExpiryChange allows moderators and the post's own author to move
// or clear its expiry.
func (p *AuthoringPolicy) AuthorizeExpiryChange(caller models.Caller, post *models.Post) error {
	if !caller.Authenticated() {
		return models.NewUnauthorizedError("Authentication required")
	}
	if caller.IsModerator() {
		return nil
	}
	if post.AuthorID != nil && *post.AuthorID == caller.UserID {
		return nil
	}
	return models.NewForbiddenError("Only moderators or the post author can change expiresAt")
}

// AuthorizeUnarchive allows only moderators to move a post out of archived.
func (p *AuthoringPolicy) AuthorizeUnarchive(caller models.Caller) error {
	if caller.IsModerator() {
		return nil
	}
	return models.NewForbiddenError("Archived posts can only be restored by a moderator")
}

func roleLabel(r models.Role) string {
	if r == "" {
		return "unknown"
	}
	return string(r)
}
