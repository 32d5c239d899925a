package sqlstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/couchcryptid/open-data-elt/internal/domain"
)

const warehouseSink = "warehouse"

// Warehouse implements pipeline.Warehouse on a SQL database.
type Warehouse struct {
	db *DB
}

// NewWarehouse creates a warehouse over db.
func NewWarehouse(db *DB) *Warehouse {
	return &Warehouse{db: db}
}

// CheckReadiness pings the database.
func (w *Warehouse) CheckReadiness(ctx context.Context) error {
	return w.db.CheckReadiness(ctx)
}

func (w *Warehouse) ensureRaw(ctx context.Context, table domain.TableRef) error {
	if err := w.db.ensureDataset(ctx, w.db.db, table.Dataset); err != nil {
		return err
	}
	_, err := w.db.db.ExecContext(ctx, fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
	fetched_at %s NOT NULL,
	source_url TEXT NOT NULL,
	raw_json %s NOT NULL
)`, w.db.table(table), w.db.timestampType(), w.db.jsonType()))
	return err
}

// AppendRaw lands one raw record in the raw table, creating it if needed.
func (w *Warehouse) AppendRaw(ctx context.Context, table domain.TableRef, rec domain.RawRecord) error {
	if err := w.ensureRaw(ctx, table); err != nil {
		return &domain.PersistenceError{Sink: warehouseSink, Err: fmt.Errorf("create %s: %w", table, err)}
	}
	q := w.db.rebind("INSERT INTO " + w.db.table(table) + " (fetched_at, source_url, raw_json) VALUES (?, ?, ?)")
	if _, err := w.db.db.ExecContext(ctx, q, rec.IngestedAt, rec.Source, string(rec.Payload)); err != nil {
		return &domain.PersistenceError{Sink: warehouseSink, Err: fmt.Errorf("insert %s: %w", table, err)}
	}
	return nil
}

// RawRecords returns raw records fetched in [from, to), oldest first.
func (w *Warehouse) RawRecords(ctx context.Context, table domain.TableRef, from, to time.Time) ([]domain.RawRecord, error) {
	if err := w.ensureRaw(ctx, table); err != nil {
		return nil, &domain.PersistenceError{Sink: warehouseSink, Err: fmt.Errorf("create %s: %w", table, err)}
	}
	q := w.db.rebind("SELECT fetched_at, source_url, raw_json FROM " + w.db.table(table) +
		" WHERE fetched_at >= ? AND fetched_at < ? ORDER BY fetched_at")
	rows, err := w.db.db.QueryContext(ctx, q, from.UTC(), to.UTC())
	if err != nil {
		return nil, &domain.PersistenceError{Sink: warehouseSink, Err: fmt.Errorf("select %s: %w", table, err)}
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
			return nil, &domain.PersistenceError{Sink: warehouseSink, Err: err}
		}
		out = append(out, domain.RawRecord{IngestedAt: fetched.UTC(), Source: source, Payload: json.RawMessage(raw)})
	}
	if err := rows.Err(); err != nil {
		return nil, &domain.PersistenceError{Sink: warehouseSink, Err: err}
	}
	return out, nil
}

const schoolColumns = `fetched_at, source_url, school_id, school_name, street, postal_code, locality,
	student_count, school_type, operation_type, latitude, longitude, website_url, source_code,
	school_type_name, operation_type_name, size_category, transformed_at`

func (w *Warehouse) schoolsDDL(table domain.TableRef) string {
	ts, f := w.db.timestampType(), w.db.floatType()
	return fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
	fetched_at %s NOT NULL,
	source_url TEXT NOT NULL,
	school_id TEXT,
	school_name TEXT,
	street TEXT,
	postal_code TEXT,
	locality TEXT,
	student_count BIGINT,
	school_type TEXT,
	operation_type TEXT,
	latitude %s,
	longitude %s,
	website_url TEXT,
	source_code TEXT,
	school_type_name TEXT NOT NULL,
	operation_type_name TEXT NOT NULL,
	size_category TEXT NOT NULL,
	transformed_at %s NOT NULL
)`, w.db.table(table), ts, f, f, ts)
}

// ReplaceSchools overwrites the structured table with rows in one
// transaction. The table is emptied rather than dropped so dependent views
// stay valid.
func (w *Warehouse) ReplaceSchools(ctx context.Context, table domain.TableRef, rows []domain.SchoolRow) error {
	if err := w.replaceSchools(ctx, table, rows); err != nil {
		return &domain.PersistenceError{Sink: warehouseSink, Err: fmt.Errorf("replace %s: %w", table, err)}
	}
	return nil
}

func (w *Warehouse) replaceSchools(ctx context.Context, table domain.TableRef, rows []domain.SchoolRow) error {
	tx, err := w.db.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback() //nolint:errcheck

	if err := w.db.ensureDataset(ctx, tx, table.Dataset); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, w.schoolsDDL(table)); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM "+w.db.table(table)); err != nil {
		return err
	}

	stmt, err := tx.PrepareContext(ctx, w.db.rebind("INSERT INTO "+w.db.table(table)+" ("+schoolColumns+
		") VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)"))
	if err != nil {
		return err
	}
	defer stmt.Close()

	for i := range rows {
		r := &rows[i]
		_, err := stmt.ExecContext(ctx,
			r.FetchedAt, r.SourceURL, r.SchoolID, r.SchoolName, r.Street, r.PostalCode, r.Locality,
			nullInt(r.StudentCount), r.SchoolType, r.OperationType, nullFloat(r.Latitude), nullFloat(r.Longitude),
			r.WebsiteURL, r.SourceCode, r.SchoolTypeName, r.OperationTypeName, r.SizeCategory, r.TransformedAt,
		)
		if err != nil {
			return fmt.Errorf("insert row %d: %w", i, err)
		}
	}
	return tx.Commit()
}

// Schools reads the structured table.
func (w *Warehouse) Schools(ctx context.Context, table domain.TableRef) ([]domain.SchoolRow, error) {
	rows, err := w.db.db.QueryContext(ctx, "SELECT "+schoolColumns+" FROM "+w.db.table(table)+" ORDER BY school_name, school_id")
	if err != nil {
		return nil, &domain.PersistenceError{Sink: warehouseSink, Err: fmt.Errorf("select %s: %w", table, err)}
	}
	defer rows.Close()

	var out []domain.SchoolRow
	for rows.Next() {
		var (
			r                        domain.SchoolRow
			id, name, street, postal sql.NullString
			locality, typ, op        sql.NullString
			website, code            sql.NullString
			students                 sql.NullInt64
			lat, lon                 sql.NullFloat64
		)
		err := rows.Scan(&r.FetchedAt, &r.SourceURL, &id, &name, &street, &postal, &locality,
			&students, &typ, &op, &lat, &lon, &website, &code,
			&r.SchoolTypeName, &r.OperationTypeName, &r.SizeCategory, &r.TransformedAt)
		if err != nil {
			return nil, &domain.PersistenceError{Sink: warehouseSink, Err: err}
		}
		r.FetchedAt, r.TransformedAt = r.FetchedAt.UTC(), r.TransformedAt.UTC()
		r.SchoolID, r.SchoolName, r.Street, r.PostalCode = id.String, name.String, street.String, postal.String
		r.Locality, r.SchoolType, r.OperationType = locality.String, typ.String, op.String
		r.WebsiteURL, r.SourceCode = website.String, code.String
		r.StudentCount, r.Latitude, r.Longitude = intPtr(students), floatPtr(lat), floatPtr(lon)
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, &domain.PersistenceError{Sink: warehouseSink, Err: err}
	}
	return out, nil
}

// ReplaceView recreates the named analytics view over source in source's
// dataset. Drop and create run in one transaction, so readers see either
// the old definition or the new one.
func (w *Warehouse) ReplaceView(ctx context.Context, view string, source domain.TableRef) error {
	body, err := viewSQL(w.db.dialect, view, w.db.table(source))
	if err != nil {
		return err
	}
	target := w.db.table(source.In(view))

	tx, err := w.db.db.BeginTx(ctx, nil)
	if err != nil {
		return &domain.PersistenceError{Sink: warehouseSink, Err: err}
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.ExecContext(ctx, "DROP VIEW IF EXISTS "+target); err != nil {
		return &domain.PersistenceError{Sink: warehouseSink, Err: fmt.Errorf("drop view %s: %w", view, err)}
	}
	if _, err := tx.ExecContext(ctx, "CREATE VIEW "+target+" AS "+body); err != nil {
		return &domain.PersistenceError{Sink: warehouseSink, Err: fmt.Errorf("create view %s: %w", view, err)}
	}
	if err := tx.Commit(); err != nil {
		return &domain.PersistenceError{Sink: warehouseSink, Err: err}
	}
	return nil
}
