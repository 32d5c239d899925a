// Command etl lands the schools dataset in the warehouse, rebuilds the
// structured table and recreates the analytics views.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/push"

	"github.com/couchcryptid/open-data-elt/internal/adapter/clickhouse"
	"github.com/couchcryptid/open-data-elt/internal/adapter/fetch"
	"github.com/couchcryptid/open-data-elt/internal/adapter/memory"
	"github.com/couchcryptid/open-data-elt/internal/adapter/opendata"
	"github.com/couchcryptid/open-data-elt/internal/adapter/sqlstore"
	"github.com/couchcryptid/open-data-elt/internal/config"
	"github.com/couchcryptid/open-data-elt/internal/domain"
	"github.com/couchcryptid/open-data-elt/internal/observability"
	"github.com/couchcryptid/open-data-elt/internal/pipeline"
)

// Stages selectable with -stage.
const (
	stageAll       = "all"
	stageExtract   = "extract"
	stageTransform = "transform"
	stageViews     = "views"
)

type options struct {
	stage  string
	day    time.Time
	report bool
}

func main() {
	stage := flag.String("stage", stageAll, "stage to run: all, extract, transform or views")
	date := flag.String("date", "", "UTC day to transform, YYYY-MM-DD (default: the day the dataset is landed)")
	report := flag.Bool("report", false, "print the analytics views as JSON after the run")
	flag.Parse()

	opts := options{stage: *stage, report: *report}
	if *date != "" {
		day, err := time.Parse(time.DateOnly, *date)
		if err != nil {
			fmt.Fprintf(os.Stderr, "etl: invalid -date %q: must be YYYY-MM-DD\n", *date)
			os.Exit(2)
		}
		opts.day = day
	}

	if err := run(opts, os.Stdout); err != nil {
		fmt.Fprintln(os.Stderr, "etl:", err)
		os.Exit(1)
	}
}

func run(opts options, out io.Writer) error {
	if err := config.LoadDotEnv(); err != nil {
		return err
	}
	cfg, err := config.LoadELT()
	if err != nil {
		return err
	}

	logger := observability.NewLogger(cfg.LogLevel, cfg.LogFormat)
	metrics := observability.NewMetrics()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	wh, closeWarehouse, err := openWarehouse(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := closeWarehouse(); err != nil {
			logger.Error("warehouse close error", "error", err)
		}
	}()

	source := opendata.NewClient(fetch.NewClient(cfg.FetchTimeout, logger, metrics), cfg.SchoolsURL, logger)
	p := pipeline.New(source, wh, pipeline.Config{
		RawTable:        domain.TableRef{Dataset: cfg.RawDataset, Table: cfg.RawTable},
		StructuredTable: domain.TableRef{Dataset: cfg.TargetDataset, Table: cfg.TargetTable},
	}, logger, metrics)

	runErr := runStage(ctx, p, opts, out)

	if cfg.PushgatewayURL != "" {
		pusher := push.New(cfg.PushgatewayURL, "open_data_elt").Grouping("stage", opts.stage)
		for _, c := range metrics.Collectors() {
			pusher = pusher.Collector(c)
		}
		if err := pusher.Push(); err != nil {
			logger.Warn("pushgateway push failed", "url", cfg.PushgatewayURL, "error", err)
		}
	}
	return runErr
}

func runStage(ctx context.Context, p *pipeline.Pipeline, opts options, out io.Writer) error {
	day := opts.day
	if day.IsZero() && opts.stage == stageTransform {
		day = domain.Now()
	}

	switch opts.stage {
	case stageAll:
		rep, err := p.Run(ctx, day)
		if err != nil {
			return err
		}
		if !opts.report {
			return writeJSON(out, rep)
		}
	case stageExtract:
		if _, err := p.ExtractLoad(ctx); err != nil {
			return err
		}
	case stageTransform:
		if _, err := p.Transform(ctx, day); err != nil {
			return err
		}
	case stageViews:
		if _, err := p.CreateViews(ctx); err != nil {
			return err
		}
	default:
		return fmt.Errorf("unknown stage %q", opts.stage)
	}

	if opts.report {
		views, err := p.Views(ctx)
		if err != nil {
			return err
		}
		return writeJSON(out, views)
	}
	return nil
}

func openWarehouse(ctx context.Context, cfg *config.ELT, logger *slog.Logger) (pipeline.Warehouse, func() error, error) {
	switch cfg.WarehouseDriver {
	case config.DriverClickHouse:
		wh, err := clickhouse.Open(ctx, clickhouse.Options{
			Addr:     cfg.ClickHouse.Addr,
			Database: cfg.ClickHouse.Database,
			Username: cfg.ClickHouse.User,
			Password: cfg.ClickHouse.Password,
		}, logger)
		if err != nil {
			return nil, nil, err
		}
		return wh, wh.Close, nil
	case config.DriverPostgres, config.DriverSQLite:
		dialect, dsn := sqlstore.Postgres, cfg.DatabaseURL
		if cfg.WarehouseDriver == config.DriverSQLite {
			dialect, dsn = sqlstore.SQLite, cfg.SQLitePath
		}
		db, err := sqlstore.Open(ctx, dialect, dsn)
		if err != nil {
			return nil, nil, err
		}
		return sqlstore.NewWarehouse(db), db.Close, nil
	default:
		logger.Warn("using in-memory warehouse; nothing survives the run")
		return memory.NewWarehouse(), func() error { return nil }, nil
	}
}

func writeJSON(out io.Writer, v any) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
