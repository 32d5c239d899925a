package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	httpadapter "github.com/couchcryptid/open-data-elt/internal/adapter/http"
	"github.com/couchcryptid/open-data-elt/internal/adapter/memory"
	redisstore "github.com/couchcryptid/open-data-elt/internal/adapter/redis"
	"github.com/couchcryptid/open-data-elt/internal/config"
	"github.com/couchcryptid/open-data-elt/internal/observability"
	"github.com/couchcryptid/open-data-elt/internal/words"
)

func main() {
	if err := config.LoadDotEnv(); err != nil {
		slog.Error("failed to load .env", "error", err)
		os.Exit(1)
	}
	cfg, err := config.LoadWords()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg.LogLevel, cfg.LogFormat)
	metrics := observability.NewMetrics()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var store words.Store
	closeStore := func() error { return nil }
	switch cfg.Backend {
	case config.DriverRedis:
		rs := redisstore.NewWordStore(redisstore.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
			Key:      cfg.RedisKey,
		})
		if err := rs.Ping(ctx); err != nil {
			logger.Error("redis unreachable", "addr", cfg.RedisAddr, "error", err)
			os.Exit(1)
		}
		store, closeStore = rs, rs.Close
	default:
		store = memory.NewWordStore()
	}
	logger.Info("word store ready", "backend", cfg.Backend)

	svc := words.NewService(store, logger, metrics)
	srv := httpadapter.NewServer(cfg.HTTPAddr, httpadapter.ReadinessFunc(svc.Ping), logger,
		httpadapter.NewWordRoutes(svc, logger))

	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}
	if err := closeStore(); err != nil {
		logger.Error("word store close error", "error", err)
	}

	logger.Info("shutdown complete")
}
