package server

import (
	"campusboard/internal/featureflags"
	"campusboard/internal/middleware"
	"campusboard/internal/models"

	"github.com/gofiber/fiber/v2"
)

// GetFeatureFlags returns configured feature flags and their state for the caller.
func (s *Server) GetFeatureFlags(c *fiber.Ctx) error {
	caller := middleware.CallerFrom(c)
	return c.JSON(fiber.Map{
		"raw":       s.featureFlags.Raw(),
		"evaluated": s.featureFlags.Snapshot(caller),
	})
}

// RealtimeGate rejects websocket upgrades while the realtime feed is switched
// off for the caller.
func (s *Server) RealtimeGate() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if !s.featureFlags.Enabled(featureflags.RealtimeFeed, middleware.CallerFrom(c)) {
			return models.RespondWithError(c, fiber.StatusForbidden,
				models.NewForbiddenError("Realtime feed is not enabled"))
		}
		return c.Next()
	}
}
