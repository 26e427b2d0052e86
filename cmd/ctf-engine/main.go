package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/hackrange/ctf-engine/internal/api"
	"github.com/hackrange/ctf-engine/internal/catalog"
	"github.com/hackrange/ctf-engine/internal/config"
	"github.com/hackrange/ctf-engine/internal/leaderboard"
	"github.com/hackrange/ctf-engine/internal/models"
	"github.com/hackrange/ctf-engine/internal/progress"
	"github.com/hackrange/ctf-engine/internal/storage"
	"github.com/hackrange/ctf-engine/internal/targets"
)

func main() {
	// Setup structured logging
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	slog.Info("starting ctf-engine",
		"host", cfg.Server.Host,
		"port", cfg.Server.Port,
	)

	// Create context for initialization
	initCtx, initCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer initCancel()

	// Run database migrations
	slog.Info("running database migrations", "dir", cfg.Database.MigrationsDir)
	if err := storage.MigrateFromDSN(initCtx, cfg.Database.DSN, cfg.Database.MigrationsDir); err != nil {
		slog.Error("failed to run migrations", "error", err)
		os.Exit(1)
	}

	// Initialize database repository
	repo, err := storage.NewPostgresRepository(initCtx, storage.PostgresConfig{
		DSN:          cfg.Database.DSN,
		MaxOpenConns: int32(cfg.Database.MaxOpenConns),
		MaxIdleConns: int32(cfg.Database.MaxIdleConns),
	})
	if err != nil {
		slog.Error("failed to create database repository", "error", err)
		os.Exit(1)
	}
	slog.Info("database connected successfully")

	// Redis client for the leaderboard cache. A failed ping degrades the
	// leaderboard to compute-per-request rather than aborting startup.
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Address,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err := rdb.Ping(initCtx).Err(); err != nil {
		slog.Warn("redis unavailable, leaderboard caching disabled", "error", err)
		rdb = nil
	}

	// Initialize target provider registry
	registry := targets.NewRegistry()

	postgresProvider, err := targets.NewPostgresProvider(cfg.Database.DSN)
	if err != nil {
		slog.Error("failed to create postgres target provider", "error", err)
		os.Exit(1)
	}
	registry.Register("postgres", postgresProvider)

	if rdb != nil {
		redisProvider, err := targets.NewRedisProvider(cfg.Redis.Address, cfg.Redis.Password)
		if err != nil {
			slog.Error("failed to create redis target provider", "error", err)
			os.Exit(1)
		}
		registry.Register("redis", redisProvider)
	} else {
		slog.Warn("redis unavailable, redis target provider not registered")
	}

	// Load challenge catalog
	loader := catalog.NewLoader()
	if err := loader.LoadFromDir(cfg.Challenges.Dir); err != nil {
		slog.Error("failed to load challenges", "dir", cfg.Challenges.Dir, "error", err)
		os.Exit(1)
	}
	slog.Info("challenge catalog loaded", "count", loader.Len())

	// Provision targets for challenges that declare one
	if err := registry.ProvisionAll(initCtx, loader.List()); err != nil {
		slog.Warn("failed to provision some challenge targets", "error", err)
	}

	// Initialize services
	progressService := progress.NewService(loader, repo)
	leaderboardService := leaderboard.NewService(repo, loader, rdb, cfg.Leaderboard.CacheTTL)

	// Solve hooks: invalidate the leaderboard cache and push to the live feed
	feed := api.NewFeedHub()
	progressService.OnSolve(func(ctx context.Context, ev models.SolveEvent) {
		leaderboardService.Invalidate(ctx)
		feed.Broadcast(ctx, ev)
	})

	// Create context with cancellation for background workers
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Start leaderboard refresher
	refresher := leaderboard.NewRefresher(leaderboardService, cfg.Leaderboard.RefreshInterval)
	refresher.Start(ctx)

	// Setup HTTP server
	server := api.NewServer(*cfg, loader, progressService, leaderboardService, registry, repo, feed)
	httpServer := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      server.Router(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		slog.Info("HTTP server starting", "addr", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("HTTP server error", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("shutting down gracefully...")

	// Cancel context to stop background workers
	cancel()

	// Shutdown HTTP server with timeout
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("HTTP server shutdown error", "error", err)
	}

	repo.Close()
	if rdb != nil {
		rdb.Close()
	}

	slog.Info("ctf-engine stopped")
}
