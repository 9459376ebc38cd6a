package server

import (
	"campusboard/internal/middleware"
	"campusboard/internal/service"

	"github.com/gofiber/fiber/v2"
)

// GetNotificationState handles GET /api/notifications/state
func (s *Server) GetNotificationState(c *fiber.Ctx) error {
	state, err := s.notifications.GetState(c.UserContext(), middleware.CallerFrom(c))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(state)
}

// MarkNotificationsRead handles POST /api/notifications/state/mark-read
// @Summary Mark notifications read
// @Description Advances the last-seen watermark (never backwards) and/or marks one key read.
// @Tags notifications
// @Accept json
// @Produce json
// @Param request body service.MarkReadInput true "Watermark and/or key"
// @Success 200 {object} models.NotificationState
// @Failure 400 {object} models.ErrorResponse
// @Security BearerAuth
// @Router /notifications/state/mark-read [post]
func (s *Server) MarkNotificationsRead(c *fiber.Ctx) error {
	var in service.MarkReadInput
	if err := parseBody(c, &in); err != nil {
		return respondError(c, err)
	}
	state, err := s.notifications.MarkRead(c.UserContext(), middleware.CallerFrom(c), in)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(state)
}

// GetNotificationFeed handles GET /api/notifications/feed
func (s *Server) GetNotificationFeed(c *fiber.Ctx) error {
	limit, err := queryInt(c, "limit")
	if err != nil {
		return respondError(c, err)
	}
	items, unread, err := s.notifications.PostFeed(c.UserContext(), middleware.CallerFrom(c), limit)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{
		"data": items,
		"meta": fiber.Map{"unread": unread},
	})
}

// GetVerificationInbox handles GET /api/notifications/alumni-verifications
// @Summary Moderator verification queue
// @Tags notifications
// @Produce json
// @Param status query string false "pending, approved, rejected or all"
// @Param limit query int false "Page size"
// @Param offset query int false "Page offset"
// @Success 200 {object} object{data=[]service.VerificationNotification,pagination=pagination}
// @Failure 403 {object} models.ErrorResponse
// @Security BearerAuth
// @Router /notifications/alumni-verifications [get]
func (s *Server) GetVerificationInbox(c *fiber.Ctx) error {
	limit, err := queryInt(c, "limit")
	if err != nil {
		return respondError(c, err)
	}
	offset, err := queryInt(c, "offset")
	if err != nil {
		return respondError(c, err)
	}

	items, queue, unread, err := s.notifications.VerificationInbox(c.UserContext(),
		middleware.CallerFrom(c), c.Query("status"), limit, offset)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{
		"data":       items,
		"pagination": pagination{Limit: queue.Limit, Offset: queue.Offset, Total: queue.Total},
		"meta":       fiber.Map{"unread": unread},
	})
}
