package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/we-are-mortensen/meet-artist-vote-app/internal/config"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("vote-app: config", "error", err)
		os.Exit(1)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.LogLevel}))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app, err := build(ctx, cfg, logger)
	if err != nil {
		logger.Error("vote-app: startup", "error", err)
		os.Exit(1)
	}
	defer app.close()

	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           app.handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("vote-app listening", "port", cfg.Port, "database", cfg.DatabaseType, "redis", cfg.RedisURL != "")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("vote-app: serve", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("vote-app shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownGrace)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("vote-app: shutdown", "error", err)
	}
}
