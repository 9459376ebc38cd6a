package server

import (
	"campusboard/internal/middleware"
	"campusboard/internal/service"

	"github.com/gofiber/fiber/v2"
)

// GetMyVerification handles GET /api/alumni-verification/me
// @Summary Own verification status
// @Tags verification
// @Produce json
// @Success 200 {object} service.VerificationOverview
// @Security BearerAuth
// @Router /alumni-verification/me [get]
func (s *Server) GetMyVerification(c *fiber.Ctx) error {
	overview, err := s.verifications.Me(c.UserContext(), middleware.CallerFrom(c))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(overview)
}

// ApplyForVerification handles POST /api/alumni-verification/apply
// @Summary Apply for alumni verification
// @Tags verification
// @Accept json
// @Produce json
// @Param request body service.ApplyInput true "Application"
// @Success 201 {object} models.AlumniVerificationApplication
// @Failure 400 {object} models.ErrorResponse
// @Failure 403 {object} models.ErrorResponse
// @Security BearerAuth
// @Router /alumni-verification/apply [post]
func (s *Server) ApplyForVerification(c *fiber.Ctx) error {
	var in service.ApplyInput
	if err := parseBody(c, &in); err != nil {
		return respondError(c, err)
	}
	app, err := s.verifications.Apply(c.UserContext(), middleware.CallerFrom(c), in)
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(app)
}

// ReviewVerification handles PATCH /api/notifications/alumni-verifications/:id
// @Summary Review an application
// @Description Approving also rejects the applicant's other pending applications.
// @Tags verification
// @Accept json
// @Produce json
// @Param id path int true "Application id"
// @Param request body object{action=string,note=string} true "approve or reject"
// @Success 200 {object} models.AlumniVerificationApplication
// @Failure 400 {object} models.ErrorResponse
// @Failure 403 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Security BearerAuth
// @Router /notifications/alumni-verifications/{id} [patch]
func (s *Server) ReviewVerification(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return nil
	}
	var req struct {
		Action string `json:"action"`
		Note   string `json:"note"`
	}
	if err := parseBody(c, &req); err != nil {
		return respondError(c, err)
	}

	app, err := s.verifications.Review(c.UserContext(), id, req.Action, req.Note, middleware.CallerFrom(c))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(app)
}
