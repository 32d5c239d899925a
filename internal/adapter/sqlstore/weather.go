package sqlstore

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/couchcryptid/open-data-elt/internal/domain"
)

// Weather raw tables.
const (
	FullTable   = "raw__weatherapp_full"
	HourlyTable = "raw__weatherapp"
)

// Sink names reported by the ingest service.
const (
	FullSinkName   = "full"
	HourlySinkName = "hourly"
)

// MigrateWeather creates the weather raw tables if they do not exist.
func (d *DB) MigrateWeather(ctx context.Context) error {
	stmts := []string{
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
	ingestion_timestamp %s NOT NULL,
	params %s NOT NULL,
	data %s NOT NULL,
	%s
)`, FullTable, d.timestampType(), d.jsonType(), d.jsonType(), d.createdAtColumn()),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
	ingestion_timestamp %s NOT NULL,
	modified_timestamp TIMESTAMP NOT NULL,
	id BIGINT NOT NULL,
	data %s NOT NULL,
	%s
)`, HourlyTable, d.timestampType(), d.jsonType(), d.createdAtColumn()),
	}
	for _, stmt := range stmts {
		if _, err := d.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate weather tables: %w", err)
		}
	}
	return nil
}

// FullSink stores one row per fetched response: the whole payload plus the
// request parameters.
type FullSink struct {
	db *DB
}

// NewFullSink creates the "true raw" sink.
func NewFullSink(db *DB) *FullSink {
	return &FullSink{db: db}
}

// Name implements ingest.RawSink.
func (s *FullSink) Name() string { return FullSinkName }

// Append implements ingest.RawSink.
func (s *FullSink) Append(ctx context.Context, rec domain.RawRecord) error {
	params, err := json.Marshal(rec.Params)
	if err != nil {
		return &domain.PersistenceError{Sink: FullSinkName, Err: err}
	}
	q := s.db.rebind("INSERT INTO " + FullTable + " (ingestion_timestamp, params, data) VALUES (?, ?, ?)")
	if _, err := s.db.db.ExecContext(ctx, q, rec.IngestedAt, string(params), string(rec.Payload)); err != nil {
		return &domain.PersistenceError{Sink: FullSinkName, Err: err}
	}
	return nil
}

// FullRecords returns up to limit stored responses, oldest first.
func (s *FullSink) FullRecords(ctx context.Context, limit int) ([]domain.RawRecord, error) {
	q := s.db.rebind("SELECT ingestion_timestamp, params, data FROM " + FullTable + " ORDER BY created_at, ingestion_timestamp LIMIT ?")
	rows, err := s.db.db.QueryContext(ctx, q, limit)
	if err != nil {
		return nil, &domain.PersistenceError{Sink: FullSinkName, Err: err}
	}
	defer rows.Close()

	var out []domain.RawRecord
	for rows.Next() {
		var (
			ingested time.Time
			params   string
			data     string
		)
		if err := rows.Scan(&ingested, &params, &data); err != nil {
			return nil, &domain.PersistenceError{Sink: FullSinkName, Err: err}
		}
		rec := domain.RawRecord{IngestedAt: ingested.UTC(), Payload: json.RawMessage(data)}
		if err := json.Unmarshal([]byte(params), &rec.Params); err != nil {
			return nil, &domain.PersistenceError{Sink: FullSinkName, Err: fmt.Errorf("decode params: %w", err)}
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, &domain.PersistenceError{Sink: FullSinkName, Err: err}
	}
	return out, nil
}

// HourlySink explodes a weather history payload and stores one row per hour,
// keyed by the hour's epoch time. All hours of a payload commit together.
type HourlySink struct {
	db *DB
}

// NewHourlySink creates the "pragmatic raw" sink.
func NewHourlySink(db *DB) *HourlySink {
	return &HourlySink{db: db}
}

// Name implements ingest.RawSink.
func (s *HourlySink) Name() string { return HourlySinkName }

// Append implements ingest.RawSink.
func (s *HourlySink) Append(ctx context.Context, rec domain.RawRecord) error {
	batch, err := domain.ExplodeHours(rec.Payload)
	if err != nil {
		return &domain.PersistenceError{Sink: HourlySinkName, Err: err}
	}
	if err := s.insert(ctx, rec.IngestedAt, batch); err != nil {
		return &domain.PersistenceError{Sink: HourlySinkName, Err: err}
	}
	return nil
}

func (s *HourlySink) insert(ctx context.Context, ingested time.Time, batch domain.HourlyBatch) error {
	tx, err := s.db.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback() //nolint:errcheck

	stmt, err := tx.PrepareContext(ctx, s.db.rebind(
		"INSERT INTO "+HourlyTable+" (ingestion_timestamp, modified_timestamp, id, data) VALUES (?, ?, ?, ?)"))
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, h := range batch.Hours {
		if _, err := stmt.ExecContext(ctx, ingested, batch.ModifiedAt, h.ID, string(h.Data)); err != nil {
			return fmt.Errorf("insert hour %d: %w", h.ID, err)
		}
	}
	return tx.Commit()
}

// HourCount returns the number of stored hourly rows.
func (s *HourlySink) HourCount(ctx context.Context) (int, error) {
	var n int
	if err := s.db.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+HourlyTable).Scan(&n); err != nil {
		return 0, &domain.PersistenceError{Sink: HourlySinkName, Err: err}
	}
	return n, nil
}
