package server

import (
	"campusboard/internal/middleware"
	"campusboard/internal/models"
	"campusboard/internal/service"

	"github.com/gofiber/fiber/v2"
)

// feedResponse is the envelope of GET /api/feed.
type feedResponse struct {
	Data       []*models.Post `json:"data"`
	Pagination pagination     `json:"pagination"`
	Meta       feedMeta       `json:"meta"`
}

type feedMeta struct {
	ArchivedDuringRequest int64 `json:"archivedDuringRequest"`
}

// GetFeed handles GET /api/feed
// @Summary List the feed
// @Description Filtered, enriched posts. Expired posts are archived before the query runs.
// @Tags feed
// @Produce json
// @Param type query string false "Post type"
// @Param status query string false "draft, published, archived or all"
// @Param authorId query int false "Author id"
// @Param tag query string false "Tag id, slug or name"
// @Param pinnedOnly query bool false "Only pinned posts"
// @Param search query string false "Case-insensitive match on title or summary"
// @Param includeArchived query bool false "Also return archived posts"
// @Param limit query int false "Page size (default 20, max 100)"
// @Param offset query int false "Page offset"
// @Success 200 {object} feedResponse
// @Failure 400 {object} models.ErrorResponse
// @Failure 503 {object} models.ErrorResponse
// @Router /feed [get]
func (s *Server) GetFeed(c *fiber.Ctx) error {
	filter, err := feedFilterFrom(c)
	if err != nil {
		return respondError(c, err)
	}

	page, err := s.posts.Feed(c.UserContext(), filter, middleware.CallerFrom(c))
	if err != nil {
		return respondError(c, err)
	}

	return c.JSON(feedResponse{
		Data:       page.Posts,
		Pagination: pagination{Limit: page.Limit, Offset: page.Offset, Total: page.Total},
		Meta:       feedMeta{ArchivedDuringRequest: page.ArchivedDuringRequest},
	})
}

func feedFilterFrom(c *fiber.Ctx) (service.FeedFilter, error) {
	f := service.FeedFilter{
		Type:   c.Query("type"),
		Status: c.Query("status"),
		Tag:    c.Query("tag"),
		Search: c.Query("search"),
	}
	var err error
	if f.AuthorID, err = queryUint(c, "authorId"); err != nil {
		return f, err
	}
	if f.PinnedOnly, err = queryBool(c, "pinnedOnly"); err != nil {
		return f, err
	}
	if f.IncludeArchived, err = queryBool(c, "includeArchived"); err != nil {
		return f, err
	}
	if f.Limit, err = queryInt(c, "limit"); err != nil {
		return f, err
	}
	if f.Offset, err = queryInt(c, "offset"); err != nil {
		return f, err
	}
	return f, nil
}

// GetPost handles GET /api/posts/:id
// @Summary Get a post
// @Tags posts
// @Produce json
// @Param id path int true "Post id"
// @Success 200 {object} models.Post
// @Failure 404 {object} models.ErrorResponse
// @Router /posts/{id} [get]
func (s *Server) GetPost(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return nil
	}

	post, err := s.posts.Get(c.UserContext(), id, middleware.CallerFrom(c))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(post)
}

// CreatePost handles POST /api/posts
// @Summary Create a post
// @Description Role and verification rules decide which types a caller may author.
// @Tags posts
// @Accept json
// @Produce json
// @Param request body service.CreatePostInput true "Post"
// @Success 201 {object} models.Post
// @Failure 400 {object} models.ErrorResponse
// @Failure 401 {object} models.ErrorResponse
// @Failure 403 {object} models.ErrorResponse
// @Security BearerAuth
// @Router /posts [post]
func (s *Server) CreatePost(c *fiber.Ctx) error {
	var in service.CreatePostInput
	if err := parseBody(c, &in); err != nil {
		return respondError(c, err)
	}

	post, err := s.posts.Create(c.UserContext(), in, middleware.CallerFrom(c))
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(post)
}

// UpdatePost handles PATCH /api/posts/:id
// @Summary Update a post
// @Description Absent fields are untouched; null clears nullable fields.
// @Tags posts
// @Accept json
// @Produce json
// @Param id path int true "Post id"
// @Param request body service.UpdatePostInput true "Changes"
// @Success 200 {object} models.Post
// @Failure 400 {object} models.ErrorResponse
// @Failure 403 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Security BearerAuth
// @Router /posts/{id} [patch]
func (s *Server) UpdatePost(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return nil
	}

	var in service.UpdatePostInput
	if err := parseBody(c, &in); err != nil {
		return respondError(c, err)
	}

	post, err := s.posts.Update(c.UserContext(), id, in, middleware.CallerFrom(c))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(post)
}

// VotePost handles POST /api/posts/:id/vote
// @Summary Vote on a post
// @Tags posts
// @Accept json
// @Produce json
// @Param id path int true "Post id"
// @Param request body object{vote=string} true "up, down or none"
// @Success 200 {object} models.VoteSummary
// @Failure 400 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Security BearerAuth
// @Router /posts/{id}/vote [post]
func (s *Server) VotePost(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return nil
	}

	var req struct {
		Vote string `json:"vote"`
	}
	if err := parseBody(c, &req); err != nil {
		return respondError(c, err)
	}

	summary, err := s.votes.SetVote(c.UserContext(), id, middleware.CallerFrom(c), req.Vote)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(summary)
}
