package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"campusboard/internal/middleware"
	"campusboard/internal/models"
	"campusboard/internal/notifications"
	"campusboard/internal/observability"
	"campusboard/internal/policy"
	"campusboard/internal/repository"
	"campusboard/internal/validation"
)

const (
	defaultFeedLimit = 20
	maxFeedLimit     = 100
)

// PostService reads and writes feed posts. Every read sweeps expired posts
// first, and every returned post is enriched in one batch per concern.
type PostService struct {
	posts    repository.PostRepository
	refs     repository.PostRefRepository
	comments repository.CommentRepository
	users    repository.UserRepository
	tags     *TagService
	votes    *VoteService
	policy   *policy.AuthoringPolicy
	sweeper  *Sweeper
	events   *notifications.Dispatcher
	now      func() time.Time
}

// PostServiceDeps wires a PostService.
type PostServiceDeps struct {
	Posts    repository.PostRepository
	Refs     repository.PostRefRepository
	Comments repository.CommentRepository
	Users    repository.UserRepository
	Tags     *TagService
	Votes    *VoteService
	Policy   *policy.AuthoringPolicy
	Sweeper  *Sweeper
	Events   *notifications.Dispatcher
}

// NewPostService creates a post service.
func NewPostService(d PostServiceDeps) *PostService {
	return &PostService{
		posts:    d.Posts,
		refs:     d.Refs,
		comments: d.Comments,
		users:    d.Users,
		tags:     d.Tags,
		votes:    d.Votes,
		policy:   d.Policy,
		sweeper:  d.Sweeper,
		events:   d.Events,
		now:      time.Now,
	}
}

// RefInput is the caller-facing form of a post reference.
type RefInput struct {
	Service  string         `json:"service"`
	EntityID string         `json:"entityId"`
	Metadata map[string]any `json:"metadata"`
}

// CreatePostInput is the body of a post creation request.
type CreatePostInput struct {
	Type      string    `json:"type"`
	Title     *string   `json:"title"`
	Summary   string    `json:"summary"`
	AuthorID  *uint     `json:"authorId"`
	Status    string    `json:"status"`
	Pinned    bool      `json:"pinned"`
	ExpiresAt *string   `json:"expiresAt"`
	Tags      []string  `json:"tags"`
	TagIDs    []uint    `json:"tagIds"`
	Ref       *RefInput `json:"ref"`
}

// UpdatePostInput is a partial update. Only fields present in the payload
// are applied; tags, tagIds and ref replace the stored set wholesale.
type UpdatePostInput struct {
	Type      Optional[string]   `json:"type"`
	Title     Optional[string]   `json:"title"`
	Summary   Optional[string]   `json:"summary"`
	AuthorID  Optional[uint]     `json:"authorId"`
	Status    Optional[string]   `json:"status"`
	Pinned    Optional[bool]     `json:"pinned"`
	ExpiresAt Optional[string]   `json:"expiresAt"`
	Archive   Optional[bool]     `json:"archive"`
	Tags      Optional[[]string] `json:"tags"`
	TagIDs    Optional[[]uint]   `json:"tagIds"`
	Ref       Optional[RefInput] `json:"ref"`
}

func (in UpdatePostInput) empty() bool {
	return !in.Type.Set && !in.Title.Set && !in.Summary.Set && !in.AuthorID.Set &&
		!in.Status.Set && !in.Pinned.Set && !in.ExpiresAt.Set && !in.Archive.Set &&
		!in.Tags.Set && !in.TagIDs.Set && !in.Ref.Set
}

// FeedFilter holds the raw feed query parameters.
type FeedFilter struct {
	Type            string
	Status          string
	AuthorID        *uint
	Tag             string
	PinnedOnly      bool
	Search          string
	IncludeArchived bool
	Limit           int
	Offset          int
}

// FeedPage is one page of the feed plus the number of posts the sweep
// archived while serving it.
type FeedPage struct {
	Posts                 []*models.Post
	Total                 int64
	Limit                 int
	Offset                int
	ArchivedDuringRequest int64
}

// Create validates and stores a post, then its tags and reference, and
// returns it enriched.
func (s *PostService) Create(ctx context.Context, in CreatePostInput, caller models.Caller) (*models.Post, error) {
	ctx, span := observability.StartServiceSpan(ctx, "PostService", "Create")
	post, err := s.create(ctx, in, caller)
	observability.EndSpan(span, err)
	return post, err
}

func (s *PostService) create(ctx context.Context, in CreatePostInput, caller models.Caller) (*models.Post, error) {
	var errs fieldErrors

	postType, ok := models.ParsePostType(in.Type)
	switch {
	case strings.TrimSpace(in.Type) == "":
		errs.addMessage("type", "type is required")
	case !ok:
		errs.addMessage("type", fmt.Sprintf("unknown post type %q", in.Type))
	}

	status := models.PostStatusDraft
	if strings.TrimSpace(in.Status) != "" {
		parsed, ok := models.ParsePostStatus(in.Status)
		if !ok {
			errs.addMessage("status", "status must be draft, published or archived")
		}
		status = parsed
	}

	title, err := cleanTitle(in.Title)
	errs.add("title", err)

	summary := validation.SanitizeText(in.Summary)
	errs.add("summary", validation.ValidateLength("summary", summary, 1, validation.MaxSummaryLength))

	var expiresAt *time.Time
	if in.ExpiresAt != nil && strings.TrimSpace(*in.ExpiresAt) != "" {
		t, ok := parseTimestamp(*in.ExpiresAt)
		if !ok {
			errs.addMessage("expiresAt", "expiresAt must be an RFC 3339 timestamp")
		} else {
			expiresAt = &t
		}
	}

	ref, refErrs := buildRef(in.Ref)
	errs = append(errs, refErrs...)

	if err := errs.err(); err != nil {
		return nil, err
	}

	authorID, err := s.policy.AuthorizeCreate(ctx, caller, postType, in.AuthorID)
	if err != nil {
		return nil, err
	}

	var plan *tagPlan
	if len(in.Tags) > 0 || len(in.TagIDs) > 0 {
		if plan, err = s.tags.prepare(ctx, in.Tags, in.TagIDs); err != nil {
			return nil, err
		}
	}

	now := s.now().UTC()
	post := &models.Post{
		Type:      postType,
		Title:     title,
		Summary:   summary,
		AuthorID:  authorID,
		Status:    status,
		Pinned:    in.Pinned,
		ExpiresAt: expiresAt,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.posts.Create(ctx, post); err != nil {
		return nil, err
	}

	if plan != nil {
		if err := s.tags.apply(ctx, post.ID, plan); err != nil {
			return nil, err
		}
	}
	if ref != nil {
		if err := s.refs.Replace(ctx, post.ID, ref); err != nil {
			return nil, err
		}
	}

	created, err := s.load(ctx, post.ID, caller)
	if err != nil {
		return nil, err
	}
	s.publish(ctx, notifications.EventPostCreated, created)
	return created, nil
}

// Feed sweeps expired posts, then returns one filtered page of enriched posts.
func (s *PostService) Feed(ctx context.Context, f FeedFilter, caller models.Caller) (*FeedPage, error) {
	ctx, span := observability.StartServiceSpan(ctx, "PostService", "Feed")
	page, err := s.feed(ctx, f, caller)
	observability.EndSpan(span, err)

	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	observability.FeedQueries.WithLabelValues(outcome).Inc()
	return page, err
}

func (s *PostService) feed(ctx context.Context, f FeedFilter, caller models.Caller) (*FeedPage, error) {
	limit, offset := clampPage(f.Limit, f.Offset, defaultFeedLimit, maxFeedLimit)
	q := repository.FeedQuery{
		AuthorID:   f.AuthorID,
		PinnedOnly: f.PinnedOnly,
		Search:     strings.TrimSpace(f.Search),
		Limit:      limit,
		Offset:     offset,
	}

	if raw := strings.TrimSpace(f.Type); raw != "" {
		t, ok := models.ParsePostType(raw)
		if !ok {
			return nil, models.NewFieldValidationError("type", fmt.Sprintf("unknown post type %q", raw))
		}
		q.Type = &t
	}

	statuses, err := feedStatuses(f.Status, f.IncludeArchived)
	if err != nil {
		return nil, err
	}
	q.Statuses = statuses

	archived, err := s.sweeper.Sweep(ctx)
	if err != nil {
		return nil, err
	}
	page := &FeedPage{Posts: []*models.Post{}, Limit: limit, Offset: offset, ArchivedDuringRequest: archived}

	if token := strings.TrimSpace(f.Tag); token != "" {
		tagIDs, err := s.tags.Resolve(ctx, token)
		if err != nil {
			return nil, err
		}
		if len(tagIDs) == 0 {
			return page, nil
		}
		postIDs, err := s.tags.repo.PostIDsByTagIDs(ctx, tagIDs)
		if err != nil {
			return nil, err
		}
		if len(postIDs) == 0 {
			return page, nil
		}
		q.PostIDs = postIDs
	}

	posts, total, err := s.posts.List(ctx, q)
	if err != nil {
		return nil, err
	}
	if err := s.Enrich(ctx, posts, caller); err != nil {
		return nil, err
	}
	page.Posts = posts
	page.Total = total
	return page, nil
}

// feedStatuses resolves the status filter. No status means published unless
// archived posts are requested, in which case every status matches.
func feedStatuses(raw string, includeArchived bool) ([]models.PostStatus, error) {
	raw = strings.TrimSpace(raw)
	switch {
	case strings.EqualFold(raw, "all"):
		return nil, nil
	case raw == "" && includeArchived:
		return nil, nil
	case raw == "":
		return []models.PostStatus{models.PostStatusPublished}, nil
	}
	status, ok := models.ParsePostStatus(raw)
	if !ok {
		return nil, models.NewFieldValidationError("status", "status must be draft, published, archived or all")
	}
	if includeArchived && status != models.PostStatusArchived {
		return []models.PostStatus{status, models.PostStatusArchived}, nil
	}
	return []models.PostStatus{status}, nil
}

// Get sweeps expired posts, then returns one enriched post.
func (s *PostService) Get(ctx context.Context, id uint, caller models.Caller) (*models.Post, error) {
	if _, err := s.sweeper.Sweep(ctx); err != nil {
		return nil, err
	}
	return s.load(ctx, id, caller)
}

func (s *PostService) load(ctx context.Context, id uint, caller models.Caller) (*models.Post, error) {
	post, err := s.posts.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.Enrich(ctx, []*models.Post{post}, caller); err != nil {
		return nil, err
	}
	return post, nil
}

// Enrich attaches tags, references, authors, vote summaries and comment
// counts to posts with one lookup per concern for the whole batch.
func (s *PostService) Enrich(ctx context.Context, posts []*models.Post, caller models.Caller) error {
	if len(posts) == 0 {
		return nil
	}
	ids := make([]uint, 0, len(posts))
	authorIDs := make([]uint, 0, len(posts))
	for _, p := range posts {
		ids = append(ids, p.ID)
		if p.AuthorID != nil {
			authorIDs = append(authorIDs, *p.AuthorID)
		}
	}

	tags, err := s.tags.repo.ListByPostIDs(ctx, ids)
	if err != nil {
		return err
	}
	refs, err := s.refs.ListByPostIDs(ctx, ids)
	if err != nil {
		return err
	}
	var authors map[uint]*models.User
	if len(authorIDs) > 0 {
		authors, err = s.users.GetByIDs(ctx, dedupeIDs(authorIDs))
		if err != nil {
			// A directory outage degrades to null authors.
			middleware.Logger.WarnContext(ctx, "author lookup failed", slog.String("error", err.Error()))
			authors = nil
		}
	}
	votes, err := s.votes.AggregateMany(ctx, ids, caller.UserID)
	if err != nil {
		return err
	}
	counts, err := s.comments.CountByPostIDs(ctx, ids)
	if err != nil {
		return err
	}

	for _, p := range posts {
		p.Tags = tags[p.ID]
		if p.Tags == nil {
			p.Tags = []models.Tag{}
		}
		p.Ref = refs[p.ID]
		p.Author = nil
		if p.AuthorID != nil {
			p.Author = authors[*p.AuthorID]
		}
		p.Votes = votes[p.ID]
		p.CommentCount = counts[p.ID]
	}
	return nil
}

// Update applies a partial update and returns the enriched post. Policy
// checks run before any write.
func (s *PostService) Update(ctx context.Context, id uint, in UpdatePostInput, caller models.Caller) (*models.Post, error) {
	ctx, span := observability.StartServiceSpan(ctx, "PostService", "Update")
	post, err := s.update(ctx, id, in, caller)
	observability.EndSpan(span, err)
	return post, err
}

func (s *PostService) update(ctx context.Context, id uint, in UpdatePostInput, caller models.Caller) (*models.Post, error) {
	if !caller.Authenticated() {
		return nil, models.NewUnauthorizedError("Authentication required to update posts")
	}
	if in.empty() {
		return nil, models.NewFieldValidationError("body", "nothing to update")
	}

	post, err := s.posts.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	fields := map[string]any{}
	var errs fieldErrors

	postType := post.Type
	if in.Type.Set {
		if in.Type.IsNull() {
			errs.addMessage("type", "type cannot be null")
		} else if t, ok := models.ParsePostType(*in.Type.Value); !ok {
			errs.addMessage("type", fmt.Sprintf("unknown post type %q", *in.Type.Value))
		} else {
			postType = t
			fields["type"] = t
		}
	}

	if in.Title.Set {
		title, err := cleanTitle(in.Title.Value)
		errs.add("title", err)
		fields["title"] = title
	}

	if in.Summary.Set {
		summary := ""
		if in.Summary.Value != nil {
			summary = validation.SanitizeText(*in.Summary.Value)
		}
		errs.add("summary", validation.ValidateLength("summary", summary, 1, validation.MaxSummaryLength))
		fields["summary"] = summary
	}

	if in.Pinned.Set {
		if in.Pinned.IsNull() {
			errs.addMessage("pinned", "pinned cannot be null")
		} else {
			fields["pinned"] = *in.Pinned.Value
		}
	}

	status := post.Status
	statusChanged := false
	if in.Status.Set {
		if in.Status.IsNull() {
			errs.addMessage("status", "status cannot be null")
		} else if parsed, ok := models.ParsePostStatus(*in.Status.Value); !ok {
			errs.addMessage("status", "status must be draft, published or archived")
		} else {
			status, statusChanged = parsed, true
		}
	}
	if in.Archive.Set && in.Archive.Value != nil && *in.Archive.Value {
		status, statusChanged = models.PostStatusArchived, true
	}

	expiresAt := post.ExpiresAt
	if in.ExpiresAt.Set {
		expiresAt = nil
		if in.ExpiresAt.Value != nil && strings.TrimSpace(*in.ExpiresAt.Value) != "" {
			t, ok := parseTimestamp(*in.ExpiresAt.Value)
			if !ok {
				errs.addMessage("expiresAt", "expiresAt must be an RFC 3339 timestamp")
			} else {
				expiresAt = &t
			}
		}
	}

	var ref *models.PostRef
	if in.Ref.Set && in.Ref.Value != nil {
		var refErrs fieldErrors
		ref, refErrs = buildRef(in.Ref.Value)
		errs = append(errs, refErrs...)
	}

	if err := errs.err(); err != nil {
		return nil, err
	}

	// Authorization, before any write.
	if in.ExpiresAt.Set {
		if err := s.policy.AuthorizeExpiryChange(caller, post); err != nil {
			return nil, err
		}
		fields["expires_at"] = expiresAt
	}

	if in.Type.Set && postType != post.Type {
		authorID, err := s.policy.AuthorizeCreate(ctx, caller, postType, post.AuthorID)
		if err != nil {
			return nil, err
		}
		if authorID != nil && (post.AuthorID == nil || *authorID != *post.AuthorID) {
			fields["author_id"] = *authorID
		}
	}

	if in.AuthorID.Set {
		if policy.ForcesAuthor(postType) && !caller.IsModerator() {
			return nil, models.NewForbiddenError(fmt.Sprintf("authorId cannot be reassigned on %s posts", postType))
		}
		fields["author_id"] = in.AuthorID.Value
	}

	if statusChanged {
		if post.IsArchived() && status != models.PostStatusArchived {
			if err := s.policy.AuthorizeUnarchive(caller); err != nil {
				return nil, err
			}
			if expiresAt != nil && !expiresAt.After(s.now()) {
				return nil, models.NewFieldValidationError("expiresAt",
					"expiresAt must be cleared or moved into the future to restore an archived post")
			}
		}
		fields["status"] = status
	}

	var plan *tagPlan
	if in.Tags.Set || in.TagIDs.Set {
		var names []string
		var tagIDs []uint
		if in.Tags.Value != nil {
			names = *in.Tags.Value
		}
		if in.TagIDs.Value != nil {
			tagIDs = *in.TagIDs.Value
		}
		if plan, err = s.tags.prepare(ctx, names, tagIDs); err != nil {
			return nil, err
		}
	}

	fields["updated_at"] = s.now().UTC()
	if err := s.posts.UpdateFields(ctx, id, fields); err != nil {
		return nil, err
	}
	if plan != nil {
		if err := s.tags.apply(ctx, id, plan); err != nil {
			return nil, err
		}
	}
	if in.Ref.Set {
		if err := s.refs.Replace(ctx, id, ref); err != nil {
			return nil, err
		}
	}

	updated, err := s.load(ctx, id, caller)
	if err != nil {
		return nil, err
	}
	s.publish(ctx, notifications.EventPostUpdated, updated)
	return updated, nil
}

// publish announces published posts to everyone and other posts to their
// author only.
func (s *PostService) publish(ctx context.Context, eventType string, post *models.Post) {
	audience := notifications.Audience{}
	switch {
	case post.Status == models.PostStatusPublished || (eventType == notifications.EventPostUpdated && post.IsArchived()):
		audience.Broadcast = true
	case post.AuthorID != nil:
		audience.UserIDs = []uint{*post.AuthorID}
	default:
		return
	}
	s.events.Publish(ctx, notifications.NewEvent(eventType, post, audience))
}

func cleanTitle(raw *string) (*string, error) {
	if raw == nil {
		return nil, nil
	}
	title := validation.SanitizeText(*raw)
	if title == "" {
		return nil, nil
	}
	if err := validation.ValidateLength("title", title, 1, validation.MaxTitleLength); err != nil {
		return nil, err
	}
	return &title, nil
}

func buildRef(in *RefInput) (*models.PostRef, fieldErrors) {
	if in == nil {
		return nil, nil
	}
	var errs fieldErrors
	service := strings.TrimSpace(in.Service)
	entityID := strings.TrimSpace(in.EntityID)
	errs.add("ref.service", validation.ValidateRefService(service))
	errs.add("ref.entityId", validation.ValidateLength("ref.entityId", entityID, 1, validation.MaxEntityIDLength))
	if len(errs) > 0 {
		return nil, errs
	}
	return &models.PostRef{Service: service, EntityID: entityID, Metadata: in.Metadata}, nil
}
