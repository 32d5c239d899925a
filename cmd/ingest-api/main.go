package main

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/couchcryptid/open-data-elt/internal/adapter/fetch"
	"github.com/couchcryptid/open-data-elt/internal/adapter/file"
	httpadapter "github.com/couchcryptid/open-data-elt/internal/adapter/http"
	kafkaadapter "github.com/couchcryptid/open-data-elt/internal/adapter/kafka"
	"github.com/couchcryptid/open-data-elt/internal/adapter/memory"
	"github.com/couchcryptid/open-data-elt/internal/adapter/sqlstore"
	"github.com/couchcryptid/open-data-elt/internal/adapter/weatherapi"
	"github.com/couchcryptid/open-data-elt/internal/config"
	"github.com/couchcryptid/open-data-elt/internal/ingest"
	"github.com/couchcryptid/open-data-elt/internal/observability"
)

func main() {
	if err := config.LoadDotEnv(); err != nil {
		slog.Error("failed to load .env", "error", err)
		os.Exit(1)
	}
	cfg, err := config.LoadIngest()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg.LogLevel, cfg.LogFormat)
	metrics := observability.NewMetrics()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	weather, err := weatherapi.NewClient(fetch.NewClient(cfg.FetchTimeout, logger, metrics), cfg.APIURL, cfg.APIKey)
	if err != nil {
		logger.Error("failed to create weather client", "error", err)
		os.Exit(1)
	}

	sinks, ready, closers, err := openSinks(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to open raw stores", "error", err)
		os.Exit(1)
	}

	svc := ingest.NewService(weather, file.NewStore(cfg.DataDir), sinks, ingest.Options{
		Source:          weatherapi.Source,
		DefaultLocation: cfg.Location,
		DefaultDate:     cfg.Date,
	}, logger, metrics)
	logger.Info("raw stores configured", "driver", cfg.DatabaseDriver, "sinks", svc.Sinks())

	srv := httpadapter.NewServer(cfg.HTTPAddr, ready, logger,
		httpadapter.NewIngestRoutes(svc, cfg.APIKey != "", logger))

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
	for _, c := range closers {
		if err := c.Close(); err != nil {
			logger.Error("raw store close error", "error", err)
		}
	}

	logger.Info("shutdown complete")
}

// openSinks builds the raw stores in write order: the full-payload table,
// the hourly table, then the optional Kafka mirror.
func openSinks(ctx context.Context, cfg *config.Ingest, logger *slog.Logger) ([]ingest.RawSink, httpadapter.ReadinessChecker, []io.Closer, error) {
	var (
		sinks   []ingest.RawSink
		ready   httpadapter.ReadinessChecker
		closers []io.Closer
	)

	switch cfg.DatabaseDriver {
	case config.DriverMemory:
		logger.Warn("using in-memory raw stores; nothing survives a restart")
		sinks = append(sinks, memory.NewRawSink(sqlstore.FullSinkName), memory.NewRawSink(sqlstore.HourlySinkName))
		ready = httpadapter.ReadinessFunc(func(context.Context) error { return nil })
	default:
		dialect, dsn := sqlstore.Postgres, cfg.DatabaseURL
		if cfg.DatabaseDriver == config.DriverSQLite {
			dialect, dsn = sqlstore.SQLite, cfg.SQLitePath
		}
		db, err := sqlstore.Open(ctx, dialect, dsn)
		if err != nil {
			return nil, nil, nil, err
		}
		if err := db.MigrateWeather(ctx); err != nil {
			db.Close() //nolint:errcheck
			return nil, nil, nil, err
		}
		sinks = append(sinks, sqlstore.NewFullSink(db), sqlstore.NewHourlySink(db))
		ready = db
		closers = append(closers, db)
	}

	if len(cfg.KafkaBrokers) > 0 {
		w := kafkaadapter.NewWriter(cfg.KafkaBrokers, cfg.RawTopic, logger)
		sinks = append(sinks, w)
		closers = append(closers, w)
		logger.Info("kafka raw mirror enabled", "brokers", cfg.KafkaBrokers, "topic", cfg.RawTopic)
	}
	return sinks, ready, closers, nil
}
