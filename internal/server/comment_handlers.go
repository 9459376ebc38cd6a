package server

import (
	"campusboard/internal/middleware"

	"github.com/gofiber/fiber/v2"
)

type commentBody struct {
	Content string `json:"content"`
}

// GetComments handles GET /api/posts/:id/comments
// @Summary List comments
// @Tags comments
// @Produce json
// @Param id path int true "Post id"
// @Param limit query int false "Page size (default 20, max 100)"
// @Param offset query int false "Page offset"
// @Success 200 {object} object{data=[]models.PostComment,pagination=pagination}
// @Failure 404 {object} models.ErrorResponse
// @Router /posts/{id}/comments [get]
func (s *Server) GetComments(c *fiber.Ctx) error {
	postID, err := parseID(c, "id")
	if err != nil {
		return nil
	}
	limit, err := queryInt(c, "limit")
	if err != nil {
		return respondError(c, err)
	}
	offset, err := queryInt(c, "offset")
	if err != nil {
		return respondError(c, err)
	}

	page, err := s.comments.List(c.UserContext(), postID, limit, offset)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{
		"data":       page.Comments,
		"pagination": pagination{Limit: page.Limit, Offset: page.Offset, Total: page.Total},
	})
}

// CreateComment handles POST /api/posts/:id/comments
// @Summary Comment on a post
// @Tags comments
// @Accept json
// @Produce json
// @Param id path int true "Post id"
// @Param request body commentBody true "Comment"
// @Success 201 {object} models.PostComment
// @Failure 400 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Security BearerAuth
// @Router /posts/{id}/comments [post]
func (s *Server) CreateComment(c *fiber.Ctx) error {
	postID, err := parseID(c, "id")
	if err != nil {
		return nil
	}
	var req commentBody
	if err := parseBody(c, &req); err != nil {
		return respondError(c, err)
	}

	comment, err := s.comments.Add(c.UserContext(), postID, middleware.CallerFrom(c), req.Content)
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(comment)
}

// UpdateComment handles PATCH /api/posts/:id/comments/:commentId
func (s *Server) UpdateComment(c *fiber.Ctx) error {
	postID, err := parseID(c, "id")
	if err != nil {
		return nil
	}
	commentID, err := parseID(c, "commentId")
	if err != nil {
		return nil
	}
	var req commentBody
	if err := parseBody(c, &req); err != nil {
		return respondError(c, err)
	}

	comment, err := s.comments.Edit(c.UserContext(), postID, commentID, middleware.CallerFrom(c), req.Content)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(comment)
}

// DeleteComment handles DELETE /api/posts/:id/comments/:commentId
func (s *Server) DeleteComment(c *fiber.Ctx) error {
	postID, err := parseID(c, "id")
	if err != nil {
		return nil
	}
	commentID, err := parseID(c, "commentId")
	if err != nil {
		return nil
	}

	if err := s.comments.Delete(c.UserContext(), postID, commentID, middleware.CallerFrom(c)); err != nil {
		return respondError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

