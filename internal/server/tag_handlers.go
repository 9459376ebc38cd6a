package server

import (
	"strings"

	"campusboard/internal/models"

	"github.com/gofiber/fiber/v2"
)

// GetTags handles GET /api/tags
// @Summary List tags
// @Tags tags
// @Produce json
// @Param q query string false "Name or slug fragment"
// @Param limit query int false "Maximum results (default 50, max 200)"
// @Success 200 {object} object{data=[]models.Tag}
// @Router /tags [get]
func (s *Server) GetTags(c *fiber.Ctx) error {
	limit, err := queryInt(c, "limit")
	if err != nil {
		return respondError(c, err)
	}
	tags, err := s.tags.List(c.UserContext(), c.Query("q"), limit)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"data": tags})
}

// CreateTags handles POST /api/tags
// @Summary Upsert tags by name
// @Description Accepts a single name or a list; existing slugs are renamed, not duplicated.
// @Tags tags
// @Accept json
// @Produce json
// @Param request body object{name=string,names=[]string} true "Tag names"
// @Success 201 {object} object{data=[]models.Tag}
// @Failure 400 {object} models.ErrorResponse
// @Security BearerAuth
// @Router /tags [post]
func (s *Server) CreateTags(c *fiber.Ctx) error {
	var req struct {
		Name  string   `json:"name"`
		Names []string `json:"names"`
	}
	if err := parseBody(c, &req); err != nil {
		return respondError(c, err)
	}

	names := req.Names
	if strings.TrimSpace(req.Name) != "" {
		names = append([]string{req.Name}, names...)
	}
	if len(names) == 0 {
		return respondError(c, models.NewFieldValidationError("names", "name or names is required"))
	}

	tags, err := s.tags.UpsertByName(c.UserContext(), names)
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"data": tags})
}
