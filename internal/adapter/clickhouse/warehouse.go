// Package clickhouse implements the schools warehouse on ClickHouse.
package clickhouse

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"

	"github.com/couchcryptid/open-data-elt/internal/domain"
)

const sinkName = "clickhouse"

// conn is the subset of driver.Conn the warehouse uses.
type conn interface {
	Exec(ctx context.Context, query string, args ...any) error
	Query(ctx context.Context, query string, args ...any) (driver.Rows, error)
	PrepareBatch(ctx context.Context, query string, opts ...driver.PrepareBatchOption) (driver.Batch, error)
	Ping(ctx context.Context) error
	Close() error
}

// Options configures the connection.
type Options struct {
	Addr     []string
	Database string
	Username string
	Password string
}

// Warehouse implements pipeline.Warehouse. Datasets map to databases.
type Warehouse struct {
	conn   conn
	logger *slog.Logger
}

// Open connects to ClickHouse and verifies the connection.
func Open(ctx context.Context, opts Options, logger *slog.Logger) (*Warehouse, error) {
	c, err := clickhouse.Open(&clickhouse.Options{
		Addr: opts.Addr,
		Auth: clickhouse.Auth{
			Database: opts.Database,
			Username: opts.Username,
			Password: opts.Password,
		},
		DialTimeout: 10 * time.Second,
	})
	if err != nil {
		return nil, fmt.Errorf("open clickhouse: %w", err)
	}
	if err := c.Ping(ctx); err != nil {
		c.Close() //nolint:errcheck
		return nil, fmt.Errorf("ping clickhouse: %w", err)
	}
	return &Warehouse{conn: c, logger: logger}, nil
}

// CheckReadiness pings the server.
func (w *Warehouse) CheckReadiness(ctx context.Context) error {
	return w.conn.Ping(ctx)
}

func (w *Warehouse) Close() error {
	return w.conn.Close()
}

func (w *Warehouse) ensureDatabase(ctx context.Context, dataset string) error {
	return w.conn.Exec(ctx, "CREATE DATABASE IF NOT EXISTS "+quote(dataset))
}

func (w *Warehouse) ensureRaw(ctx context.Context, table domain.TableRef) error {
	if err := w.ensureDatabase(ctx, table.Dataset); err != nil {
		return err
	}
	return w.conn.Exec(ctx, rawDDL(table))
}

// AppendRaw lands one raw record, creating the raw table if needed.
func (w *Warehouse) AppendRaw(ctx context.Context, table domain.TableRef, rec domain.RawRecord) error {
	if err := w.ensureRaw(ctx, table); err != nil {
		return &domain.PersistenceError{Sink: sinkName, Err: fmt.Errorf("create %s: %w", table, err)}
	}
	err := w.conn.Exec(ctx, "INSERT INTO "+tableName(table)+" (fetched_at, source_url, raw_json) VALUES (?, ?, ?)",
		rec.IngestedAt, rec.Source, string(rec.Payload))
	if err != nil {
		return &domain.PersistenceError{Sink: sinkName, Err: fmt.Errorf("insert %s: %w", table, err)}
	}
	return nil
}

// RawRecords returns raw records fetched in [from, to), oldest first.
func (w *Warehouse) RawRecords(ctx context.Context, table domain.TableRef, from, to time.Time) ([]domain.RawRecord, error) {
	if err := w.ensureRaw(ctx, table); err != nil {
		return nil, &domain.PersistenceError{Sink: sinkName, Err: fmt.Errorf("create %s: %w", table, err)}
	}
	rows, err := w.conn.Query(ctx, "SELECT fetched_at, source_url, raw_json FROM "+tableName(table)+
		" WHERE fetched_at >= ? AND fetched_at < ? ORDER BY fetched_at", from.UTC(), to.UTC())
	if err != nil {
		return nil, &domain.PersistenceError{Sink: sinkName, Err: fmt.Errorf("select %s: %w", table, err)}
	}
	defer rows.Close()

	var out []domain.RawRecord
	for rows.Next() {
		var (
			fetched time.Time
			source  string
			raw     string
		)
		if err := rows.Scan(&fetched, &source, &raw); err != nil {
			return nil, &domain.PersistenceError{Sink: sinkName, Err: err}
		}
		out = append(out, domain.RawRecord{IngestedAt: fetched.UTC(), Source: source, Payload: json.RawMessage(raw)})
	}
	if err := rows.Err(); err != nil {
		return nil, &domain.PersistenceError{Sink: sinkName, Err: err}
	}
	return out, nil
}

// ReplaceSchools loads rows into a staging table and swaps it with the
// structured table atomically, so readers never see a partial load.
func (w *Warehouse) ReplaceSchools(ctx context.Context, table domain.TableRef, rows []domain.SchoolRow) error {
	if err := w.replaceSchools(ctx, table, rows); err != nil {
		return &domain.PersistenceError{Sink: sinkName, Err: fmt.Errorf("replace %s: %w", table, err)}
	}
	return nil
}

func (w *Warehouse) replaceSchools(ctx context.Context, table domain.TableRef, rows []domain.SchoolRow) error {
	staging := table.In(table.Table + "__staging")

	if err := w.ensureDatabase(ctx, table.Dataset); err != nil {
		return err
	}
	if err := w.conn.Exec(ctx, "DROP TABLE IF EXISTS "+tableName(staging)); err != nil {
		return err
	}
	if err := w.conn.Exec(ctx, schoolsDDL(staging)); err != nil {
		return err
	}

	if len(rows) > 0 {
		batch, err := w.conn.PrepareBatch(ctx, "INSERT INTO "+tableName(staging)+" ("+schoolColumns+")")
		if err != nil {
			return err
		}
		for i := range rows {
			r := &rows[i]
			err := batch.Append(
				r.FetchedAt, r.SourceURL, r.SchoolID, r.SchoolName, r.Street, r.PostalCode, r.Locality,
				r.StudentCount, r.SchoolType, r.OperationType, r.Latitude, r.Longitude,
				r.WebsiteURL, r.SourceCode, r.SchoolTypeName, r.OperationTypeName, r.SizeCategory, r.TransformedAt,
			)
			if err != nil {
				batch.Abort() //nolint:errcheck
				return fmt.Errorf("append row %d: %w", i, err)
			}
		}
		if err := batch.Send(); err != nil {
			return err
		}
	}

	if err := w.conn.Exec(ctx, "CREATE TABLE IF NOT EXISTS "+tableName(table)+" AS "+tableName(staging)); err != nil {
		return err
	}
	if err := w.conn.Exec(ctx, "EXCHANGE TABLES "+tableName(staging)+" AND "+tableName(table)); err != nil {
		return err
	}
	if err := w.conn.Exec(ctx, "DROP TABLE IF EXISTS "+tableName(staging)); err != nil {
		w.logger.Warn("drop staging table failed", "table", staging.String(), "error", err)
	}
	return nil
}

// Schools reads the structured table.
func (w *Warehouse) Schools(ctx context.Context, table domain.TableRef) ([]domain.SchoolRow, error) {
	rows, err := w.conn.Query(ctx, "SELECT "+schoolColumns+" FROM "+tableName(table)+" ORDER BY school_name, school_id")
	if err != nil {
		return nil, &domain.PersistenceError{Sink: sinkName, Err: fmt.Errorf("select %s: %w", table, err)}
	}
	defer rows.Close()

	var out []domain.SchoolRow
	for rows.Next() {
		var r domain.SchoolRow
		err := rows.Scan(&r.FetchedAt, &r.SourceURL, &r.SchoolID, &r.SchoolName, &r.Street, &r.PostalCode, &r.Locality,
			&r.StudentCount, &r.SchoolType, &r.OperationType, &r.Latitude, &r.Longitude,
			&r.WebsiteURL, &r.SourceCode, &r.SchoolTypeName, &r.OperationTypeName, &r.SizeCategory, &r.TransformedAt)
		if err != nil {
			return nil, &domain.PersistenceError{Sink: sinkName, Err: err}
		}
		r.FetchedAt, r.TransformedAt = r.FetchedAt.UTC(), r.TransformedAt.UTC()
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, &domain.PersistenceError{Sink: sinkName, Err: err}
	}
	return out, nil
}

// ReplaceView recreates the named analytics view over source.
func (w *Warehouse) ReplaceView(ctx context.Context, view string, source domain.TableRef) error {
	body, err := viewSQL(view, tableName(source))
	if err != nil {
		return err
	}
	if err := w.conn.Exec(ctx, "CREATE OR REPLACE VIEW "+tableName(source.In(view))+" AS "+body); err != nil {
		return &domain.PersistenceError{Sink: sinkName, Err: fmt.Errorf("create view %s: %w", view, err)}
	}
	return nil
}

const schoolColumns = `fetched_at, source_url, school_id, school_name, street, postal_code, locality,
	student_count, school_type, operation_type, latitude, longitude, website_url, source_code,
	school_type_name, operation_type_name, size_category, transformed_at`

func rawDDL(table domain.TableRef) string {
	return `CREATE TABLE IF NOT EXISTS ` + tableName(table) + ` (
	fetched_at DateTime64(6, 'UTC'),
	source_url String,
	raw_json String
) ENGINE = MergeTree ORDER BY fetched_at`
}

func schoolsDDL(table domain.TableRef) string {
	return `CREATE TABLE ` + tableName(table) + ` (
	fetched_at DateTime64(6, 'UTC'),
	source_url String,
	school_id String,
	school_name String,
	street String,
	postal_code String,
	locality String,
	student_count Nullable(Int64),
	school_type String,
	operation_type String,
	latitude Nullable(Float64),
	longitude Nullable(Float64),
	website_url String,
	source_code String,
	school_type_name LowCardinality(String),
	operation_type_name LowCardinality(String),
	size_category LowCardinality(String),
	transformed_at DateTime64(6, 'UTC')
) ENGINE = MergeTree ORDER BY tuple()`
}

func tableName(ref domain.TableRef) string {
	return quote(ref.Dataset) + "." + quote(ref.Table)
}

func quote(ident string) string {
	return "`" + strings.ReplaceAll(ident, "`", "``") + "`"
}
