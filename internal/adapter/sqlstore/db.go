// Package sqlstore persists raw records, structured rows and analytics views
// in PostgreSQL (through the pgx stdlib driver) or SQLite.
package sqlstore

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"

	_ "github.com/jackc/pgx/v5/stdlib" // registers the "pgx" driver
	_ "github.com/mattn/go-sqlite3"    // registers the "sqlite3" driver

	"github.com/couchcryptid/open-data-elt/internal/domain"
)

// Dialect selects the SQL flavour and driver.
type Dialect string

const (
	Postgres Dialect = "postgres"
	SQLite   Dialect = "sqlite"
)

// DB wraps a database handle with its dialect.
type DB struct {
	db      *sql.DB
	dialect Dialect
}

// Open connects to dsn and verifies the connection.
func Open(ctx context.Context, dialect Dialect, dsn string) (*DB, error) {
	var driver string
	switch dialect {
	case Postgres:
		driver = "pgx"
	case SQLite:
		driver = "sqlite3"
	default:
		return nil, &domain.ConfigError{Key: "DATABASE_DRIVER", Reason: fmt.Sprintf("unsupported dialect %q", dialect)}
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", dialect, err)
	}
	if dialect == SQLite {
		// One connection: writers serialize and :memory: databases stay alive.
		db.SetMaxOpenConns(1)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close() //nolint:errcheck
		return nil, fmt.Errorf("ping %s: %w", dialect, err)
	}
	return &DB{db: db, dialect: dialect}, nil
}

// Dialect reports the SQL flavour in use.
func (d *DB) Dialect() Dialect { return d.dialect }

// CheckReadiness pings the database.
func (d *DB) CheckReadiness(ctx context.Context) error {
	return d.db.PingContext(ctx)
}

func (d *DB) Close() error {
	return d.db.Close()
}

// rebind rewrites ? placeholders to $n for PostgreSQL.
func (d *DB) rebind(query string) string {
	if d.dialect != Postgres {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// table returns the quoted name of ref. PostgreSQL maps datasets to schemas;
// SQLite has no schemas, so the dataset becomes a name prefix.
func (d *DB) table(ref domain.TableRef) string {
	if d.dialect == Postgres {
		return quote(ref.Dataset) + "." + quote(ref.Table)
	}
	return quote(ref.Dataset + "__" + ref.Table)
}

func (d *DB) ensureDataset(ctx context.Context, ex execer, dataset string) error {
	if d.dialect != Postgres {
		return nil
	}
	_, err := ex.ExecContext(ctx, "CREATE SCHEMA IF NOT EXISTS "+quote(dataset))
	return err
}

// column types per dialect
func (d *DB) timestampType() string {
	if d.dialect == Postgres {
		return "TIMESTAMPTZ"
	}
	return "TIMESTAMP"
}

func (d *DB) jsonType() string {
	if d.dialect == Postgres {
		// JSON, not JSONB: the input text is stored as sent.
		return "JSON"
	}
	return "TEXT"
}

func (d *DB) floatType() string {
	if d.dialect == Postgres {
		return "DOUBLE PRECISION"
	}
	return "REAL"
}

func (d *DB) createdAtColumn() string {
	if d.dialect == Postgres {
		return "created_at TIMESTAMPTZ NOT NULL DEFAULT now()"
	}
	return "created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP"
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func quote(ident string) string {
	return `"` + strings.ReplaceAll(ident, `"`, `""`) + `"`
}

func nullInt(p *int64) sql.NullInt64 {
	if p == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *p, Valid: true}
}

func nullFloat(p *float64) sql.NullFloat64 {
	if p == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *p, Valid: true}
}

func intPtr(n sql.NullInt64) *int64 {
	if !n.Valid {
		return nil
	}
	return &n.Int64
}

func floatPtr(n sql.NullFloat64) *float64 {
	if !n.Valid {
		return nil
	}
	return &n.Float64
}
