// Package mssql implements a Microsoft SQL Server repository. Batches are
// written with the go-mssqldb bulk copy API inside a transaction, so a
// failing row rolls back the whole batch.
package mssql

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	mssql "github.com/microsoft/go-mssqldb"
	"github.com/microsoft/go-mssqldb/msdsn"

	"sqlsink/internal/schema"
	"sqlsink/internal/storage"
	"sqlsink/internal/storage/sqlstore"
)

// Config holds MSSQL repository configuration.
type Config struct {
	DSN string
}

// Repository is an MSSQL-backed implementation of storage.Repository.
// Single-row inserts, lookups and DDL go through the shared sqlstore.Store.
type Repository struct {
	*sqlstore.Store
	cfg Config
}

// NewRepository constructs a Repository and returns a Close function for cleanup.
func NewRepository(ctx context.Context, cfg Config) (*Repository, func(), error) {
	// Validate DSN early to fail fast on obvious mistakes.
	if _, err := msdsn.Parse(cfg.DSN); err != nil {
		return nil, nil, fmt.Errorf("mssql dsn: %w", err)
	}
	db, err := sql.Open("sqlserver", cfg.DSN)
	if err != nil {
		return nil, nil, fmt.Errorf("sql.Open: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, nil, fmt.Errorf("ping: %w", err)
	}
	close := func() { _ = db.Close() }
	return &Repository{Store: sqlstore.New(db, storage.MSSQL), cfg: cfg}, close, nil
}

// InsertMany bulk-copies rows into the destination table.
func (r *Repository) InsertMany(ctx context.Context, dest *schema.Destination, rows []map[string]any) error {
	if len(rows) == 0 {
		return nil
	}
	cols := storage.Columns(dest, rows)
	if len(cols) == 0 {
		return fmt.Errorf("mssql: bulk into %s: rows carry no destination fields", dest.Table())
	}
	n, err := r.copyIn(ctx, dest.Table(), cols, storage.RowValues(cols, rows))
	if err != nil {
		return fmt.Errorf("mssql: bulk into %s: %w", dest.Table(), err)
	}
	if n != int64(len(rows)) {
		return fmt.Errorf("mssql: bulk into %s: copied %d of %d rows", dest.Table(), n, len(rows))
	}
	return nil
}

func (r *Repository) copyIn(ctx context.Context, table string, columns []string, rows [][]any) (int64, error) {
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin tx: %w", err)
	}
	rollback := func() { _ = tx.Rollback() }

	stmt, err := tx.PrepareContext(ctx, mssql.CopyIn(table, mssql.BulkOptions{CheckConstraints: true}, columns...))
	if err != nil {
		rollback()
		return 0, fmt.Errorf("prepare bulk: %w", err)
	}
	for i := range rows {
		if _, err := stmt.ExecContext(ctx, rows[i]...); err != nil {
			_ = stmt.Close()
			rollback()
			return 0, fmt.Errorf("bulk row %d: %w", i, err)
		}
	}
	res, err := stmt.ExecContext(ctx)
	if cerr := stmt.Close(); cerr != nil && err == nil {
		err = cerr
	}
	if err != nil {
		rollback()
		return 0, fmt.Errorf("bulk finalize: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		rollback()
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}
	return n, nil
}

// Reflect reads table's columns from INFORMATION_SCHEMA. Unqualified names
// resolve to the "dbo" schema.
func (r *Repository) Reflect(ctx context.Context, table string) (*schema.Destination, error) {
	schemaName, name := storage.SplitTable(strings.NewReplacer("[", "", "]", "").Replace(table), "dbo")
	return r.ReflectInformationSchema(ctx, schemaName, name, table)
}
