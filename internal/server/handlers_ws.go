package server

import (
	"log/slog"
	"net/http"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	apperrors "github.com/ginger-society/ginger-ws/internal/errors"
	"github.com/ginger-society/ginger-ws/internal/ws"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // Clients connect from arbitrary origins
	},
}

func (s *Server) handleWebSocket(c echo.Context) error {
	channelName := c.Param("channel")

	token := c.QueryParam("token")
	if token == "" {
		return apperrors.UnauthorizedError("missing token")
	}
	claims, err := s.validator.ValidateUser(token)
	if err != nil {
		return apperrors.UnauthorizedError("invalid token")
	}

	if !s.limiter.Acquire() {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "connection limit reached")
	}
	defer s.limiter.Release()

	// Subscribers create the channel if it does not exist yet. The queue
	// bridge never does, it only routes to channels someone listens on.
	group := s.registry.GetOrCreate(channelName)

	conn, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		// Upgrader already wrote the handshake error response
		return nil
	}

	slog.Info("WebSocket client connected",
		"channel", channelName,
		"user_id", claims.UserID,
	)

	ws.NewSession(conn, group, s.clock).Run()

	slog.Info("WebSocket client disconnected",
		"channel", channelName,
		"user_id", claims.UserID,
	)

	return nil
}
