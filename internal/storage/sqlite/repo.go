// Package sqlite implements a SQLite-backed storage.Repository using
// database/sql and the pure-Go modernc.org/sqlite driver. SQLite has no
// dedicated bulk-load API like Postgres COPY, so batches are written as
// multi-row INSERTs inside a single transaction.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"sqlsink/internal/schema"
	"sqlsink/internal/storage"
	"sqlsink/internal/storage/sqlstore"

	_ "modernc.org/sqlite"
)

// Config holds SQLite repository configuration.
type Config struct {
	DSN string // file path, file: URI or ":memory:"
}

// Repository is a SQLite-backed implementation of storage.Repository.
type Repository struct {
	*sqlstore.Store
	cfg Config
}

// Open opens a SQLite database for dsn with a single connection. SQLite
// serializes writers anyway, and a single connection keeps ":memory:"
// databases shared across calls.
func Open(dsn string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("sqlite: open: %w", err)
	}
	db.SetMaxOpenConns(1)
	return db, nil
}

// NewRepository opens a SQLite connection using the provided DSN and returns
// a Repository plus a Close function for cleanup.
//
// DSN is passed directly to database/sql; for example:
//
//	"file:sink.db?cache=shared"
//	"sink.db"
//	":memory:"
func NewRepository(ctx context.Context, cfg Config) (*Repository, func(), error) {
	if strings.TrimSpace(cfg.DSN) == "" {
		return nil, nil, fmt.Errorf("sqlite: DSN must not be empty")
	}

	db, err := Open(cfg.DSN)
	if err != nil {
		return nil, nil, err
	}

	// Apply a basic ping with context to fail fast on invalid DSNs.
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, nil, fmt.Errorf("sqlite: ping: %w", err)
	}

	// Enable foreign keys by default; ignore error if driver doesn't support it.
	_, _ = db.ExecContext(ctx, "PRAGMA foreign_keys = ON;")

	closeFn := func() { db.Close() }
	return &Repository{Store: sqlstore.New(db, storage.SQLite), cfg: cfg}, closeFn, nil
}

// New wraps an already open database. Tests use it with Open(":memory:").
func New(db *sql.DB) *Repository {
	return &Repository{Store: sqlstore.New(db, storage.SQLite)}
}

// Reflect reads the column list of table through pragma_table_info. A
// column is a primary key when its pk index is non-zero.
func (r *Repository) Reflect(ctx context.Context, table string) (*schema.Destination, error) {
	schemaName, name := storage.SplitTable(table, "main")
	rows, err := r.DB.QueryContext(ctx,
		`SELECT name, "notnull", pk FROM pragma_table_info(?, ?) ORDER BY cid`, name, schemaName)
	if err != nil {
		return nil, fmt.Errorf("sqlite: reflect %s: %w", table, err)
	}
	defer rows.Close()

	var cols []storage.ReflectedColumn
	for rows.Next() {
		var (
			col     string
			notNull int
			pk      int
		)
		if err := rows.Scan(&col, &notNull, &pk); err != nil {
			return nil, fmt.Errorf("sqlite: reflect %s: scan: %w", table, err)
		}
		cols = append(cols, storage.ReflectedColumn{Name: col, NotNull: notNull != 0, PrimaryKey: pk > 0})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: reflect %s: %w", table, err)
	}
	return storage.DestinationFromColumns(table, cols)
}
