package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"

	"github.com/odyssey-erp/odyssey-tenancy/internal/app"
	"github.com/odyssey-erp/odyssey-tenancy/internal/auth"
	"github.com/odyssey-erp/odyssey-tenancy/internal/observability"
	"github.com/odyssey-erp/odyssey-tenancy/internal/platform/cache"
	"github.com/odyssey-erp/odyssey-tenancy/internal/platform/db"
	"github.com/odyssey-erp/odyssey-tenancy/internal/tenancy"
	"github.com/odyssey-erp/odyssey-tenancy/internal/users"
	"github.com/odyssey-erp/odyssey-tenancy/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	dbpool, err := db.New(ctx, cfg.PGDSN, db.PoolOptions{MaxConns: cfg.PGMaxConns})
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer dbpool.Close()

	// Redis is optional for the memory backend: without it peers are not
	// notified and revocations stay local to this process.
	var redisClient *redis.Client
	if client, err := cache.New(ctx, cfg.RedisAddr); err != nil {
		if cfg.CacheBackend == app.CacheBackendRedis {
			logger.Error("connect redis", slog.Any("error", err))
			os.Exit(1)
		}
		logger.Warn("redis unavailable, running without invalidation bus", slog.Any("error", err))
	} else {
		redisClient = client
		defer func() {
			if err := redisClient.Close(); err != nil {
				logger.Warn("redis close", slog.Any("error", err))
			}
		}()
	}

	principals, err := app.NewPrincipalCache(cfg, redisClient, logger)
	if err != nil {
		logger.Error("init principal cache", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() { _ = principals.Close() }()

	authRepo := auth.NewRepository(dbpool)
	stores := app.Stores{
		Users:     authRepo,
		Sessions:  authRepo,
		Companies: tenancy.NewRepository(dbpool),
		Members:   users.NewRepository(dbpool),
	}
	var jobHandler *jobs.Handler
	if redisClient != nil {
		stores.Revocations = auth.NewRedisRevocationList(redisClient)

		inspector := asynq.NewInspector(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
		defer func() {
			if err := inspector.Close(); err != nil {
				logger.Warn("inspector close", slog.Any("error", err))
			}
		}()
		jobHandler = jobs.NewHandler(inspector, logger)
	}

	server := app.NewServer(app.ServerDeps{
		Config:     cfg,
		Logger:     logger,
		Metrics:    observability.NewMetrics(),
		Principals: principals.Store,
		JobHandler: jobHandler,
	}, stores)
	if err := principals.Start(ctx, server.Resolver); err != nil {
		logger.Error("start principal cache", slog.Any("error", err))
		os.Exit(1)
	}

	httpServer := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      server.Handler,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr), slog.String("cache_backend", cfg.CacheBackend))
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown", slog.Any("error", err))
	}
}
