package server

import (
	"context"
	"time"

	"campusboard/internal/database"

	"github.com/gofiber/fiber/v2"
)

// LivenessCheck handles liveness probe requests
func (s *Server) LivenessCheck(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status": "up",
		"time":   time.Now().UTC(),
	})
}

// ReadinessCheck reports database and Redis reachability.
func (s *Server) ReadinessCheck(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), 5*time.Second)
	defer cancel()

	dbStatus := "healthy"
	if s.db == nil {
		dbStatus = "unavailable"
	} else if sqlDB, err := s.db.DB(); err != nil {
		dbStatus = "unhealthy"
	} else if err := sqlDB.PingContext(ctx); err != nil {
		dbStatus = "unhealthy"
	}

	// Redis backs caching, rate limits and realtime delivery, none of which
	// are required to serve reads.
	redisStatus := "unavailable"
	if s.redis != nil {
		redisStatus = "healthy"
		if err := s.redis.Ping(ctx).Err(); err != nil {
			redisStatus = "unhealthy"
		}
	}

	status := fiber.StatusOK
	overall := "healthy"
	if dbStatus != "healthy" {
		status = fiber.StatusServiceUnavailable
		overall = "unhealthy"
	} else if redisStatus != "healthy" {
		overall = "degraded"
	}

	return c.Status(status).JSON(fiber.Map{
		"status": overall,
		"checks": fiber.Map{
			"database": dbStatus,
			"redis":    redisStatus,
		},
		"time": time.Now().UTC(),
	})
}

// GetSchemaStatus handles GET /api/admin/schema
// @Summary Schema status
// @Description Schema mode, applied and pending migrations, and missing tables.
// @Tags admin
// @Produce json
// @Success 200 {object} database.SchemaStatus
// @Security BearerAuth
// @Router /admin/schema [get]
func (s *Server) GetSchemaStatus(c *fiber.Ctx) error {
	status, err := database.GetSchemaStatus(c.UserContext(), s.db, s.config)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(status)
}
