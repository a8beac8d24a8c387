// Package server wires the HTTP surface: publish gateway, WebSocket
// subscriptions, email delivery, and observability endpoints.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/ginger-society/ginger-ws/internal/auth"
	"github.com/ginger-society/ginger-ws/internal/channel"
	"github.com/ginger-society/ginger-ws/internal/config"
	apperrors "github.com/ginger-society/ginger-ws/internal/errors"
	"github.com/ginger-society/ginger-ws/internal/mailer"
	"github.com/ginger-society/ginger-ws/internal/membership"
	"github.com/ginger-society/ginger-ws/internal/queue"
)

// messagePublisher is the broker-facing side of the publish gateway.
// Publishes round-trip through the broker, they never touch the registry
// directly.
type messagePublisher interface {
	Publish(ctx context.Context, env queue.Envelope) error
	Ping(ctx context.Context) error
}

type Server struct {
	echo      *echo.Echo
	config    *config.Config
	registry  *channel.Registry
	publisher messagePublisher
	resolver  membership.Resolver
	mailer    mailer.Sender
	validator *auth.Validator
	limiter   *ConnectionLimiter
	clock     clockwork.Clock
	startTime time.Time
}

func NewServer(
	cfg *config.Config,
	registry *channel.Registry,
	publisher messagePublisher,
	resolver membership.Resolver,
	sender mailer.Sender,
	clock clockwork.Clock,
) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Recover())
	e.Use(correlationMiddleware())
	e.Use(apperrors.Middleware())

	srv := &Server{
		echo:      e,
		config:    cfg,
		registry:  registry,
		publisher: publisher,
		resolver:  resolver,
		mailer:    sender,
		validator: auth.NewValidator(cfg.JWTSecret),
		limiter:   NewConnectionLimiter(int64(cfg.MaxWSConnections)),
		clock:     clock,
		startTime: clock.Now(),
	}

	srv.registerRoutes()

	return srv
}

func (s *Server) Start() error {
	slog.Info("Starting server", "port", s.config.Port)
	return s.echo.Start(fmt.Sprintf(":%s", s.config.Port))
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}
