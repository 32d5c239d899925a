// Package ingest fetches weather history once and lands it in every
// configured raw store.
package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/couchcryptid/open-data-elt/internal/adapter/file"
	"github.com/couchcryptid/open-data-elt/internal/domain"
	"github.com/couchcryptid/open-data-elt/internal/observability"
)

// Fetcher retrieves one day of weather history for a location.
type Fetcher interface {
	History(ctx context.Context, location, date string) (json.RawMessage, error)
}

// RawSink is an append-only raw store.
type RawSink interface {
	Name() string
	Append(ctx context.Context, rec domain.RawRecord) error
}

// FileWriter writes a payload to a named file.
type FileWriter interface {
	Write(ctx context.Context, filename string, payload json.RawMessage) (string, error)
}

// ErrInvalidQuery wraps query validation failures.
var ErrInvalidQuery = errors.New("invalid query")

var validate = validator.New()

// Query selects what to fetch. Empty fields take the service defaults.
type Query struct {
	Location string `json:"location" validate:"required"`
	Date     string `json:"date" validate:"required,datetime=2006-01-02"`
}

// Options configures a Service.
type Options struct {
	// Source labels raw records, e.g. "weatherapi".
	Source          string
	DefaultLocation string
	// DefaultDate is YYYY-MM-DD; empty means the current UTC date.
	DefaultDate string
}

// Service orchestrates fetch and write. Each sink is written independently:
// one failing never prevents or undoes the others.
type Service struct {
	fetcher Fetcher
	files   FileWriter
	sinks   []RawSink
	opts    Options
	logger  *slog.Logger
	metrics *observability.Metrics
}

// NewService creates an ingest service. files may be nil when file output
// is not offered.
func NewService(fetcher Fetcher, files FileWriter, sinks []RawSink, opts Options, logger *slog.Logger, metrics *observability.Metrics) *Service {
	return &Service{
		fetcher: fetcher,
		files:   files,
		sinks:   sinks,
		opts:    opts,
		logger:  logger,
		metrics: metrics,
	}
}

// Defaults returns the query used when a caller sets nothing.
func (s *Service) Defaults() Query {
	q, _ := s.resolve(Query{})
	return q
}

// Sinks lists the configured sink names in write order.
func (s *Service) Sinks() []string {
	names := make([]string, len(s.sinks))
	for i, sink := range s.sinks {
		names[i] = sink.Name()
	}
	return names
}

func (s *Service) resolve(q Query) (Query, error) {
	q.Location = strings.TrimSpace(q.Location)
	q.Date = strings.TrimSpace(q.Date)
	if q.Location == "" {
		q.Location = s.opts.DefaultLocation
	}
	if q.Date == "" {
		q.Date = s.opts.DefaultDate
	}
	if q.Date == "" {
		start, _ := domain.Today()
		q.Date = start.Format(time.DateOnly)
	}
	if err := validate.Struct(q); err != nil {
		return q, fmt.Errorf("%w: %s", ErrInvalidQuery, describe(err))
	}
	return q, nil
}

// Fetch returns the upstream document for q verbatim, with defaults applied.
func (s *Service) Fetch(ctx context.Context, q Query) (json.RawMessage, Query, error) {
	q, err := s.resolve(q)
	if err != nil {
		return nil, q, err
	}
	payload, err := s.fetcher.History(ctx, q.Location, q.Date)
	if err != nil {
		return nil, q, err
	}
	return payload, q, nil
}

// WriteResult describes a payload written to a file.
type WriteResult struct {
	Message  string `json:"message"`
	File     string `json:"file"`
	Location string `json:"location"`
	Date     string `json:"date"`
}

// FetchAndWrite fetches q and writes the payload verbatim to filename. The
// filename is checked before any upstream call.
func (s *Service) FetchAndWrite(ctx context.Context, q Query, filename string) (WriteResult, error) {
	if s.files == nil {
		return WriteResult{}, &domain.ConfigError{Key: "DATA_DIR"}
	}
	if err := file.ValidateFilename(filename); err != nil {
		return WriteResult{}, err
	}
	payload, q, err := s.Fetch(ctx, q)
	if err != nil {
		return WriteResult{}, err
	}
	path, err := s.files.Write(ctx, filename, payload)
	s.metrics.SinkWrites.WithLabelValues("file", observability.Outcome(err)).Inc()
	if err != nil {
		return WriteResult{}, err
	}
	s.logger.Info("weather written", "file", path, "location", q.Location, "date", q.Date)
	return WriteResult{Message: "written", File: filename, Location: q.Location, Date: q.Date}, nil
}

// Report statuses.
const (
	StatusOK      = "ok"
	StatusPartial = "partial"
	StatusFailed  = "failed"
)

// SinkOutcome is the result of writing to one sink.
type SinkOutcome struct {
	Sink  string `json:"sink"`
	OK    bool   `json:"ok"`
	Error string `json:"error,omitempty"`
}

// Report summarizes one ingestion.
type Report struct {
	Status   string        `json:"status"`
	Stored   []string      `json:"stored"`
	Outcomes []SinkOutcome `json:"outcomes"`
}

// Ingest fetches q once and appends the raw record to every sink in order.
// A fetch failure returns before any sink is touched. Sink failures are
// reported in the Report, not as an error.
func (s *Service) Ingest(ctx context.Context, q Query) (Report, error) {
	payload, q, err := s.Fetch(ctx, q)
	if err != nil {
		return Report{}, err
	}

	rec := domain.NewRawRecord(s.opts.Source, map[string]string{
		"location": q.Location,
		"date":     q.Date,
	}, payload)

	report := Report{Stored: []string{}, Outcomes: make([]SinkOutcome, 0, len(s.sinks))}
	for _, sink := range s.sinks {
		outcome := s.write(ctx, sink, rec)
		report.Outcomes = append(report.Outcomes, outcome)
		if outcome.OK {
			report.Stored = append(report.Stored, outcome.Sink)
		}
	}

	switch {
	case len(report.Stored) == len(s.sinks):
		report.Status = StatusOK
	case len(report.Stored) == 0:
		report.Status = StatusFailed
	default:
		report.Status = StatusPartial
	}
	s.logger.Info("ingestion finished", "status", report.Status, "stored", report.Stored,
		"location", q.Location, "date", q.Date)
	return report, nil
}

func (s *Service) write(ctx context.Context, sink RawSink, rec domain.RawRecord) SinkOutcome {
	name := sink.Name()
	err := sink.Append(ctx, rec)
	s.metrics.SinkWrites.WithLabelValues(name, observability.Outcome(err)).Inc()
	if err != nil {
		s.logger.Warn("raw write failed", "sink", name, "error", err)
		return SinkOutcome{Sink: name, Error: err.Error()}
	}
	s.logger.Info("raw write stored", "sink", name)
	return SinkOutcome{Sink: name, OK: true}
}

func describe(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err.Error()
	}
	parts := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		field := strings.ToLower(fe.Field())
		switch fe.Tag() {
		case "required":
			parts = append(parts, field+" is required")
		case "datetime":
			parts = append(parts, field+" must be YYYY-MM-DD")
		default:
			parts = append(parts, field+" is invalid")
		}
	}
	return strings.Join(parts, "; ")
}
