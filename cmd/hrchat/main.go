// hrchat - HR assistant chat client daemon
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

	"github.com/ashureev/hrchat/internal/answer"
	"github.com/ashureev/hrchat/internal/api"
	"github.com/ashureev/hrchat/internal/app"
	"github.com/ashureev/hrchat/internal/chat"
	"github.com/ashureev/hrchat/internal/config"
	"github.com/ashureev/hrchat/internal/identity"
	"github.com/ashureev/hrchat/internal/logsink"
	"github.com/ashureev/hrchat/internal/middleware"
	"github.com/ashureev/hrchat/internal/store"
)

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

	slog.Info("Starting hrchat", "port", cfg.Port, "answer_transport", cfg.Answer.Transport)

	kv, err := store.NewSQLite(cfg.DBPath)
	if err != nil {
		slog.Error("Failed to initialize database", "error", err)
		os.Exit(1)
	}
	defer func() {
		if closeErr := kv.Close(); closeErr != nil {
			slog.Error("Failed to close database", "error", closeErr)
		}
	}()

	if err := kv.Ping(context.Background()); err != nil {
		slog.Error("Database health check failed", "error", err)
		os.Exit(1)
	}
	slog.Info("Database connected")

	answers, closeAnswers, err := newAnswerer(cfg, logger)
	if err != nil {
		slog.Error("Failed to initialize answer client", "error", err)
		os.Exit(1)
	}
	defer closeAnswers()

	var sink logsink.Sink = logsink.Nop{}
	if cfg.LogSink.Enabled {
		sink = logsink.NewClient(cfg.LogSink.URL, cfg.LogSink.QueueSize, cfg.LogSink.Timeout, logger)
	}
	defer func() {
		if closeErr := sink.Close(); closeErr != nil {
			slog.Error("Failed to close log sink", "error", closeErr)
		}
	}()

	application := app.New(app.Deps{
		KV:       kv,
		Identity: identity.NewHTTPService(cfg.Identity.URL, cfg.Identity.Timeout, logger),
		Answers:  answers,
		Sink:     sink,
		Logger:   logger,
	})
	defer func() {
		if closeErr := application.Close(); closeErr != nil {
			slog.Error("Failed to flush sessions", "error", closeErr)
		}
	}()

	if err := application.Start(context.Background()); err != nil {
		slog.Warn("Failed to restore remembered user", "error", err)
	}

	handler := api.NewHandler(application, cfg.AllowOrigin, logger)

	r := chi.NewRouter()
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Logger)
	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.Heartbeat("/health"))
	r.Use(middleware.CORS(cfg.AllowOrigin))

	handler.RegisterRoutes(r)

	// Websocket streams are long lived, so no WriteTimeout.
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 0,
		IdleTimeout:  120 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

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

func newAnswerer(cfg *config.Config, logger *slog.Logger) (chat.Answerer, func(), error) {
	if cfg.Answer.Transport == config.TransportGRPC {
		gcfg := answer.DefaultGRPCConfig(cfg.Answer.GRPCAddr)
		gcfg.RequestTimeout = cfg.Answer.Timeout
		client, err := answer.NewGRPCClient(gcfg, logger)
		if err != nil {
			return nil, nil, err
		}
		return client, client.Close, nil
	}

	client := answer.NewHTTPClient(cfg.Answer.URL, cfg.Answer.Timeout, logger)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Health(ctx); err != nil {
		slog.Warn("Answer service health check failed, answers will fall back until it recovers", "error", err)
	}
	return client, func() {}, nil
}
