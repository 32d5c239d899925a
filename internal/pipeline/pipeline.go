// Package pipeline runs the schools ELT: land the dataset raw, rebuild the
// structured table from the day's raw records, then recreate the views.
package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/couchcryptid/open-data-elt/internal/analytics"
	"github.com/couchcryptid/open-data-elt/internal/domain"
	"github.com/couchcryptid/open-data-elt/internal/observability"
)

// Source fetches the dataset document to land.
type Source interface {
	Dataset(ctx context.Context) (json.RawMessage, error)
	URL() string
}

// Warehouse stores raw records, the structured table and the views over it.
type Warehouse interface {
	AppendRaw(ctx context.Context, table domain.TableRef, rec domain.RawRecord) error
	RawRecords(ctx context.Context, table domain.TableRef, from, to time.Time) ([]domain.RawRecord, error)
	ReplaceSchools(ctx context.Context, table domain.TableRef, rows []domain.SchoolRow) error
	Schools(ctx context.Context, table domain.TableRef) ([]domain.SchoolRow, error)
	ReplaceView(ctx context.Context, view string, source domain.TableRef) error
}

// Config names the tables the pipeline reads and writes.
type Config struct {
	RawTable        domain.TableRef
	StructuredTable domain.TableRef
}

// Stage names, used as metric labels and in logs.
const (
	StageExtractLoad = "extract_load"
	StageTransform   = "transform"
	StageViews       = "views"
)

// Pipeline orchestrates the ELT stages. Stages run strictly in order and
// share no state beyond the warehouse.
type Pipeline struct {
	source    Source
	warehouse Warehouse
	cfg       Config
	logger    *slog.Logger
	metrics   *observability.Metrics
}

// New creates a Pipeline with the given stages and observability.
func New(source Source, warehouse Warehouse, cfg Config, logger *slog.Logger, metrics *observability.Metrics) *Pipeline {
	return &Pipeline{
		source:    source,
		warehouse: warehouse,
		cfg:       cfg,
		logger:    logger,
		metrics:   metrics,
	}
}

// ExtractLoad fetches the dataset and appends it verbatim to the raw table.
func (p *Pipeline) ExtractLoad(ctx context.Context) (domain.RawRecord, error) {
	defer p.timeStage(StageExtractLoad)()

	payload, err := p.source.Dataset(ctx)
	if err != nil {
		return domain.RawRecord{}, fmt.Errorf("extract: %w", err)
	}
	rec := domain.NewRawRecord(p.source.URL(), nil, payload)
	if err := p.warehouse.AppendRaw(ctx, p.cfg.RawTable, rec); err != nil {
		return domain.RawRecord{}, fmt.Errorf("load raw: %w", err)
	}
	p.logger.Info("raw dataset loaded", "table", p.cfg.RawTable.String(),
		"bytes", len(payload), "fetched_at", rec.IngestedAt)
	return rec, nil
}

// Transform rebuilds the structured table from every raw record ingested on
// the UTC calendar day containing day. The table is replaced wholesale, so
// an empty day yields an empty table. A casting failure aborts the run and
// leaves the previous table in place.
func (p *Pipeline) Transform(ctx context.Context, day time.Time) (int, error) {
	defer p.timeStage(StageTransform)()

	from, to := domain.DayWindow(day)
	records, err := p.warehouse.RawRecords(ctx, p.cfg.RawTable, from, to)
	if err != nil {
		return 0, fmt.Errorf("read raw: %w", err)
	}

	rows, err := p.extractRows(records, domain.Now())
	if err != nil {
		p.metrics.TransformErrors.Inc()
		return 0, err
	}

	if err := p.warehouse.ReplaceSchools(ctx, p.cfg.StructuredTable, rows); err != nil {
		return 0, fmt.Errorf("replace structured table: %w", err)
	}
	p.metrics.TransformRows.Add(float64(len(rows)))
	p.logger.Info("structured table rebuilt", "table", p.cfg.StructuredTable.String(),
		"raw_records", len(records), "rows", len(rows), "day", from.Format(time.DateOnly))
	return len(rows), nil
}

// CreateViews recreates every analytics view over the structured table.
func (p *Pipeline) CreateViews(ctx context.Context) ([]string, error) {
	defer p.timeStage(StageViews)()

	created := make([]string, 0, len(analytics.ViewNames))
	for _, view := range analytics.ViewNames {
		if err := p.warehouse.ReplaceView(ctx, view, p.cfg.StructuredTable); err != nil {
			return created, fmt.Errorf("create view %s: %w", view, err)
		}
		created = append(created, p.cfg.StructuredTable.In(view).String())
	}
	p.logger.Info("views created", "views", created)
	return created, nil
}

// Report summarizes one full run.
type Report struct {
	RunID           uuid.UUID     `json:"run_id"`
	RawTable        string        `json:"raw_table"`
	StructuredTable string        `json:"structured_table"`
	Rows            int           `json:"rows"`
	Views           []string      `json:"views"`
	Duration        time.Duration `json:"duration"`
}

// Run executes extract-load, transform and views in order. The first failing
// stage aborts the run; later stages are not attempted. A zero day transforms
// the day the dataset was landed.
func (p *Pipeline) Run(ctx context.Context, day time.Time) (Report, error) {
	start := time.Now()
	report := Report{
		RunID:           uuid.New(),
		RawTable:        p.cfg.RawTable.String(),
		StructuredTable: p.cfg.StructuredTable.String(),
	}
	logger := p.logger.With("run_id", report.RunID.String())
	logger.Info("pipeline started")

	err := p.run(ctx, day, &report)
	report.Duration = time.Since(start)
	p.metrics.Runs.WithLabelValues(observability.Outcome(err)).Inc()
	if err != nil {
		logger.Error("pipeline failed", "error", err, "duration", report.Duration)
		return report, err
	}
	logger.Info("pipeline finished", "rows", report.Rows, "duration", report.Duration)
	return report, nil
}

func (p *Pipeline) run(ctx context.Context, day time.Time, report *Report) error {
	rec, err := p.ExtractLoad(ctx)
	if err != nil {
		return err
	}
	if day.IsZero() {
		day = rec.IngestedAt
	}
	if report.Rows, err = p.Transform(ctx, day); err != nil {
		return err
	}
	report.Views, err = p.CreateViews(ctx)
	return err
}

// Views reads the structured table and computes the analytics views.
func (p *Pipeline) Views(ctx context.Context) (analytics.Views, error) {
	rows, err := p.warehouse.Schools(ctx, p.cfg.StructuredTable)
	if err != nil {
		return analytics.Views{}, fmt.Errorf("read structured table: %w", err)
	}
	return analytics.Compute(rows), nil
}

func (p *Pipeline) timeStage(stage string) func() {
	start := time.Now()
	return func() {
		p.metrics.StageDuration.WithLabelValues(stage).Observe(time.Since(start).Seconds())
	}
}
