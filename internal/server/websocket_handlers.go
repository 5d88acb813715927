package server

import (
	"log/slog"

	"quill/internal/middleware"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
)

// WebSocketUpgrade rejects plain HTTP requests to the push stream.
func (s *Server) WebSocketUpgrade(c *fiber.Ctx) error {
	if websocket.IsWebSocketUpgrade(c) {
		return c.Next()
	}
	return fiber.ErrUpgradeRequired
}

// WebSocketNotificationsHandler streams the authenticated user's
// notifications. Pushes arrive through the hub; inbound frames are ignored.
// @Summary Notification push stream
// @Tags notifications
// @Param token query string false "JWT when the Authorization header cannot be set"
// @Success 101
// @Failure 401 {object} models.ErrorResponse
// @Failure 426 {object} models.ErrorResponse
// @Security BearerAuth
// @Router /ws [get]
func (s *Server) WebSocketNotificationsHandler() fiber.Handler {
	return websocket.New(func(conn *websocket.Conn) {
		userID, ok := conn.Locals("userID").(uint)
		if !ok || userID == 0 {
			_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"error":"unauthorized"}`))
			_ = conn.Close()
			return
		}

		client, err := s.hub.Register(userID, conn)
		if err != nil {
			middleware.Logger.Warn("websocket register refused",
				slog.Uint64("user_id", uint64(userID)), slog.String("error", err.Error()))
			_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"error":"`+err.Error()+`"}`))
			_ = conn.Close()
			return
		}

		middleware.Logger.Info("websocket connected", slog.Uint64("user_id", uint64(userID)))

		go client.WritePump()
		client.ReadPump()

		middleware.Logger.Info("websocket disconnected", slog.Uint64("user_id", uint64(userID)))
	})
}
