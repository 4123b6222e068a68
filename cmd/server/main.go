package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/MrMohammed1/miran-search/app/cache"
	"github.com/MrMohammed1/miran-search/app/config"
	"github.com/MrMohammed1/miran-search/app/logging"
	"github.com/MrMohammed1/miran-search/app/metrics"
	"github.com/MrMohammed1/miran-search/app/server"
	"github.com/MrMohammed1/miran-search/models"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(os.Getenv("CONFIG_FILE"))
	if err != nil {
		log.Fatalf("Failed to load configuration: %s", err)
	}

	logger, err := logging.New(cfg.Env, cfg.Log.Level)
	if err != nil {
		log.Fatalf("Failed to build logger: %s", err)
	}
	defer logger.Sync()

	db, err := models.Open(cfg.Database.Driver, cfg.Database.DSN, logging.GormLevel(cfg.Log.Level))
	if err != nil {
		logger.Fatal("failed to open database", zap.Error(err))
	}
	if err := models.Migrate(db); err != nil {
		logger.Fatal("failed to migrate database", zap.Error(err))
	}

	backend, closeCache := cacheBackend(ctx, cfg, logger)
	defer closeCache()

	collector := metrics.NewCollector("miran")
	srv := &http.Server{
		Addr:    cfg.HTTP.Addr,
		Handler: server.New(cfg, db, backend, logger, collector),
	}

	go func() {
		logger.Info("starting server", zap.String("addr", cfg.HTTP.Addr), zap.String("env", cfg.Env))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", zap.Error(err))
	}
	if sqlDB, err := db.DB(); err == nil {
		sqlDB.Close()
	}
}

// cacheBackend returns the Redis backend when one is configured and the
// in-process cache otherwise. An unreachable Redis is not fatal: the breaker
// keeps requests on the database until it recovers.
func cacheBackend(ctx context.Context, cfg *config.Config, logger *zap.Logger) (cache.Backend, func()) {
	if cfg.Redis.Addr == "" {
		logger.Info("using in-memory cache")
		return cache.NewMemoryBackend(), func() {}
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		logger.Warn("redis is unreachable, continuing without a warm cache",
			zap.String("addr", cfg.Redis.Addr), zap.Error(err))
	}
	backend := cache.NewRedisBackend(client, cache.DefaultBreakerSettings(), logger.Named("redis"))
	return backend, func() { client.Close() }
}
