package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/ginger-society/ginger-ws/internal/channel"
	"github.com/ginger-society/ginger-ws/internal/config"
	"github.com/ginger-society/ginger-ws/internal/logging"
	"github.com/ginger-society/ginger-ws/internal/mailer"
	"github.com/ginger-society/ginger-ws/internal/membership"
	"github.com/ginger-society/ginger-ws/internal/queue"
	"github.com/ginger-society/ginger-ws/internal/server"
)

func setupConfig() *config.Config {
	cfg, err := config.Load()
	if err != nil {
		// Use log before slog is initialized
		log.Fatalf("Failed to load config: %v", err)
	}
	return cfg
}

func setupMailer(cfg *config.Config) *mailer.SESMailer {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	sender, err := mailer.NewSESMailer(ctx, cfg.AWSRegion, cfg.EmailSource)
	if err != nil {
		slog.Error("Failed to initialize SES mailer", "error", err)
		os.Exit(1)
	}
	return sender
}

func runGracefulShutdown(srv *server.Server, publisher *queue.Publisher, stopBridge context.CancelFunc, bridgeDone <-chan struct{}) <-chan struct{} {
	done := make(chan struct{})
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-sigChan
		slog.Info("Shutdown signal received, cleaning up...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Error("Server shutdown error", "error", err)
		}

		stopBridge()
		select {
		case <-bridgeDone:
		case <-shutdownCtx.Done():
			slog.Warn("Queue bridge did not stop in time")
		}

		publisher.Close()

		close(done)
	}()

	return done
}

func main() {
	clock := clockwork.NewRealClock()

	cfg := setupConfig()

	logging.InitLogger(cfg.LogLevel, cfg.LogFormat)
	slog.Info("Application starting", "env", cfg.AppEnv, "port", cfg.Port)

	registry := channel.NewRegistry()
	publisher := queue.NewPublisher(cfg.AmqpURI)
	resolver := membership.NewClient(cfg.IAMBaseURL)
	sender := setupMailer(cfg)

	// The bridge reconnects forever on its own; the context only exists so
	// shutdown can stop it.
	bridgeCtx, stopBridge := context.WithCancel(context.Background())
	defer stopBridge()

	bridge := queue.NewBridge(cfg.AmqpURI, cfg.AmqpReconnectDelay, registry, clock)
	bridgeDone := make(chan struct{})
	go func() {
		defer close(bridgeDone)
		bridge.Run(bridgeCtx)
	}()

	srv := server.NewServer(cfg, registry, publisher, resolver, sender, clock)

	done := runGracefulShutdown(srv, publisher, stopBridge, bridgeDone)

	if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("Server error", "error", err)
		os.Exit(1)
	}

	<-done
	slog.Info("Shutdown complete")
}
