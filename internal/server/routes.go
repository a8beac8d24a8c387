package server

import (
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/time/rate"
)

func (s *Server) registerRoutes() {
	// Observability endpoints (no auth required)
	s.echo.GET("/health/live", s.handleLiveness)
	s.echo.GET("/health/ready", s.handleReadiness)
	s.echo.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	publishLimiter := middleware.RateLimiterWithConfig(middleware.RateLimiterConfig{
		Store: middleware.NewRateLimiterMemoryStoreWithConfig(middleware.RateLimiterMemoryStoreConfig{
			Rate:      rate.Limit(s.config.PublishRateLimit),
			Burst:     s.config.PublishRateBurst,
			ExpiresIn: 3 * time.Minute,
		}),
	})

	n := s.echo.Group("/notification")

	// WebSocket subscriptions authenticate via token query param because
	// browsers cannot set headers on a WebSocket handshake.
	n.GET("/ws/:channel", s.handleWebSocket)

	n.POST("/channels/:channel/publish", s.handleChannelPublish, s.requireUser, publishLimiter)
	n.POST("/groups/:group/publish", s.handleGroupPublish, s.requireAPI, publishLimiter)
	n.POST("/send-email", s.handleSendEmail, s.requireService)
}
