package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/wakti/whoopsync/internal/migrations/postgres"
	"github.com/wakti/whoopsync/internal/oauth"
	xredis "github.com/wakti/whoopsync/internal/redis"
	"github.com/wakti/whoopsync/internal/repository"
	"github.com/wakti/whoopsync/internal/server"
	"github.com/wakti/whoopsync/internal/server/handler"
	servermw "github.com/wakti/whoopsync/internal/server/middleware"
	"github.com/wakti/whoopsync/internal/storage"
	"github.com/wakti/whoopsync/internal/version"
	"github.com/wakti/whoopsync/internal/xhttp/middleware"
	"github.com/wakti/whoopsync/internal/xslog"
	"github.com/wakti/whoopsync/internal/xsync"
)

func main() {
	_ = godotenv.Load()

	logger := xslog.NewLoggerFromEnv(os.Stdout)
	slog.SetDefault(logger)

	ctx := context.Background()
	if err := run(ctx, logger); err != nil {
		logger.ErrorContext(ctx, "fatal error", xslog.Error(err))
		os.Exit(1)
	}
}

func run(ctx context.Context, logger *slog.Logger) error {
	cfg, err := server.ReadConfig()
	if err != nil {
		return fmt.Errorf("reading config: %w", err)
	}

	pool, err := initPostgres(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("initializing postgres: %w", err)
	}
	defer pool.Close()

	backend, err := initBackend(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("initializing rate limit backend: %w", err)
	}
	defer func() {
		if err := backend.Close(); err != nil {
			logger.ErrorContext(ctx, "failed to close backend", xslog.Error(err))
		}
	}()

	repo := repository.NewPostgres(pool)

	refresher := oauth.NewRefresher(
		oauth.NewConfig(oauth.Endpoint{
			ClientID:     cfg.Whoop.ClientID,
			ClientSecret: cfg.Whoop.ClientSecret,
			RedirectURL:  cfg.Whoop.RedirectURL,
			TokenURL:     cfg.Whoop.TokenURL,
		}),
		repo.Credentials,
		logger,
	)

	syncService := xsync.NewService(repo, refresher, cfg.Whoop.APIBaseURL, logger,
		xsync.WithDefaultWindow(cfg.Sync.WindowDays))

	syncHandler := handler.NewSync(syncService, repo.Credentials, cfg.OperatorKey)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", handler.HandleHealth)
	mux.Handle("GET /metrics", promhttp.Handler())

	syncMux := http.NewServeMux()
	syncMux.HandleFunc("POST /sync", syncHandler.HandleSync)
	mux.Handle("/sync", middleware.Chain(syncMux,
		servermw.RateLimitWithBackend(backend),
	))

	wrapped := middleware.Chain(mux,
		middleware.Recovery,
		middleware.Logging,
		middleware.Logger(logger),
		middleware.RequestID(),
		middleware.SecurityHeaders,
	)

	httpServer := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           wrapped,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		// Syncs over long windows can legitimately take minutes.
		WriteTimeout: 10 * time.Minute,
		IdleTimeout:  60 * time.Second,
	}

	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGTERM)

	go func() {
		logger.InfoContext(ctx, "starting server",
			slog.String("version", version.Get()),
			slog.String("port", cfg.Port))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.ErrorContext(ctx, "server error", xslog.Error(err))
		}
	}()

	<-done
	logger.InfoContext(ctx, "shutdown signal received, initiating graceful shutdown")

	shutdownCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	logger.InfoContext(ctx, "server stopped")
	return nil
}

func initPostgres(ctx context.Context, cfg server.Config, logger *slog.Logger) (*pgxpool.Pool, error) {
	logger.InfoContext(ctx, "initializing PostgreSQL")

	pool, err := pgxpool.New(ctx, cfg.Database.URL)
	if err != nil {
		return nil, fmt.Errorf("connect: %w", err)
	}

	if err := postgres.Apply(ctx, pool); err != nil {
		pool.Close()
		return nil, fmt.Errorf("migrations: %w", err)
	}

	return pool, nil
}

func initBackend(ctx context.Context, cfg server.Config, logger *slog.Logger) (storage.Backend, error) {
	if cfg.Redis.URL == "" {
		logger.InfoContext(ctx, "initializing in-memory rate limit backend")
		return storage.NewMemoryBackend(cfg.RateLimit.Limit, cfg.RateLimit.Burst), nil
	}

	logger.InfoContext(ctx, "initializing Redis rate limit backend")
	client, err := xredis.New(ctx, xredis.Config{URL: cfg.Redis.URL})
	if err != nil {
		return nil, err
	}
	return storage.NewRedisBackend(storage.RedisConfig{Client: client}, int(cfg.RateLimit.Limit))
}
