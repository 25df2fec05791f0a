// hrauth - reference identity service and interaction log sink
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

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"

	"github.com/ashureev/hrchat/internal/authsvc"
	"github.com/ashureev/hrchat/internal/config"
	"github.com/ashureev/hrchat/internal/logsink"
	"github.com/ashureev/hrchat/internal/middleware"
	"github.com/ashureev/hrchat/internal/store"
)

const limiterSweepInterval = time.Minute

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	if err := godotenv.Load(); err != nil {
		slog.Info("No .env file found, using environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	slog.Info("Starting hrauth", "port", cfg.Auth.Port)

	users, err := store.NewSQLite(cfg.Auth.DBPath)
	if err != nil {
		slog.Error("Failed to initialize database", "error", err)
		os.Exit(1)
	}
	defer func() {
		if closeErr := users.Close(); closeErr != nil {
			slog.Error("Failed to close database", "error", closeErr)
		}
	}()

	logs, err := logsink.OpenFile(cfg.Auth.LogPath)
	if err != nil {
		slog.Error("Failed to open interaction log", "error", err)
		os.Exit(1)
	}
	defer func() {
		if closeErr := logs.Close(); closeErr != nil {
			slog.Error("Failed to close interaction log", "error", closeErr)
		}
	}()

	limiter := middleware.NewRateLimiter(cfg.Auth.RatePerSec, cfg.Auth.RateBurst, 10*time.Minute)
	server := authsvc.NewServer(users, logs, logger, authsvc.WithRateLimiter(limiter))

	r := chi.NewRouter()
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Logger)
	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.Heartbeat("/health"))
	r.Use(middleware.CORS(cfg.AllowOrigin))

	server.RegisterRoutes(r)

	srv := &http.Server{
		Addr:         ":" + cfg.Auth.Port,
		Handler:      r,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		ticker := time.NewTicker(limiterSweepInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if n := limiter.Sweep(); n > 0 {
					slog.Debug("Rate limiter swept idle clients", "removed", n)
				}
			}
		}
	}()

	go func() {
		slog.Info("Server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Server failed", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	stop()

	slog.Info("Shutting down gracefully...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("Server forced to shutdown", "error", err)
	}

	slog.Info("Server stopped successfully")
}
