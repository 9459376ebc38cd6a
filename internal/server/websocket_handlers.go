package server

import (
	"encoding/json"
	"log/slog"

	"campusboard/internal/middleware"
	"campusboard/internal/models"
	"campusboard/internal/notifications"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
)

// WebsocketHandler streams domain events to the caller. Moderators also
// receive verification queue events.
func (s *Server) WebsocketHandler() fiber.Handler {
	return websocket.New(func(conn *websocket.Conn) {
		caller, ok := conn.Locals(middleware.CallerLocalsKey).(models.Caller)
		if !ok || !caller.Authenticated() {
			_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"error":"unauthorized"}`))
			_ = conn.Close()
			return
		}

		if s.hub == nil {
			_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"error":"realtime unavailable"}`))
			_ = conn.Close()
			return
		}

		client, err := s.hub.Register(caller.UserID, caller.IsModerator(), conn)
		if err != nil {
			middleware.Logger.Warn("websocket register failed",
				slog.Any("user_id", caller.UserID), slog.String("error", err.Error()))
			msg, _ := json.Marshal(fiber.Map{"error": err.Error()})
			_ = conn.WriteMessage(websocket.TextMessage, msg)
			_ = conn.Close()
			return
		}
		client.Serve(handleClientMessage)
	})
}

// handleClientMessage answers keepalive pings; the stream is otherwise
// server to client only.
func handleClientMessage(c *notifications.Client, message []byte) {
	var in struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(message, &in); err != nil {
		return
	}
	if in.Type == "ping" {
		c.Deliver([]byte(`{"type":"pong"}`))
	}
}
