// Command weather-fetch fetches one day of weather history and writes the
// response verbatim to a JSON file.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/couchcryptid/open-data-elt/internal/adapter/fetch"
	"github.com/couchcryptid/open-data-elt/internal/adapter/file"
	"github.com/couchcryptid/open-data-elt/internal/adapter/weatherapi"
	"github.com/couchcryptid/open-data-elt/internal/config"
	"github.com/couchcryptid/open-data-elt/internal/ingest"
	"github.com/couchcryptid/open-data-elt/internal/observability"
)

func main() {
	filename := flag.String("o", file.DefaultFilename, "output file name inside DATA_DIR")
	location := flag.String("location", "", "location query (default LOCATION)")
	date := flag.String("date", "", "day to fetch, YYYY-MM-DD (default DATE, then today)")
	flag.Parse()

	if err := run(*filename, ingest.Query{Location: *location, Date: *date}); err != nil {
		fmt.Fprintln(os.Stderr, "weather-fetch:", err)
		os.Exit(1)
	}
}

func run(filename string, q ingest.Query) error {
	if err := config.LoadDotEnv(); err != nil {
		return err
	}
	cfg, err := config.LoadWeather()
	if err != nil {
		return err
	}

	logger := observability.NewLogger(cfg.LogLevel, cfg.LogFormat)
	metrics := observability.NewMetrics()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	weather, err := weatherapi.NewClient(fetch.NewClient(cfg.FetchTimeout, logger, metrics), cfg.APIURL, cfg.APIKey)
	if err != nil {
		return err
	}
	svc := ingest.NewService(weather, file.NewStore(cfg.DataDir), nil, ingest.Options{
		Source:          weatherapi.Source,
		DefaultLocation: cfg.Location,
		DefaultDate:     cfg.Date,
	}, logger, metrics)

	res, err := svc.FetchAndWrite(ctx, q, filename)
	if err != nil {
		return err
	}
	logger.Info("done", slog.String("file", res.File), slog.String("location", res.Location), slog.String("date", res.Date))
	return nil
}
