// Package sqlstore implements the parts of storage.Repository that every
// database/sql backend shares: chunked multi-row INSERTs inside one
// transaction, single-row INSERTs, primary-key lookups and catalog
// reflection through INFORMATION_SCHEMA. Backends embed *Store and override
// what their driver does better (SQL Server bulk copy, SQLite PRAGMAs).
package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"sqlsink/internal/schema"
	"sqlsink/internal/storage"
)

// Store is a database/sql backed implementation of the write/lookup half of
// storage.Repository.
type Store struct {
	DB *sql.DB
	D  storage.Dialect
}

// New wraps db for dialect d.
func New(db *sql.DB, d storage.Dialect) *Store {
	return &Store{DB: db, D: d}
}

// Dialect implements storage.Repository.Dialect.
func (s *Store) Dialect() storage.Dialect { return s.D }

// InsertMany inserts rows in a single transaction. Rows are split into
// statements that stay under the dialect's bind-parameter limit; any
// failure rolls the whole batch back.
func (s *Store) InsertMany(ctx context.Context, dest *schema.Destination, rows []map[string]any) error {
	if len(rows) == 0 {
		return nil
	}
	cols := storage.Columns(dest, rows)
	if len(cols) == 0 {
		return fmt.Errorf("%s: insert into %s: rows carry no destination fields", s.D.Name, dest.Table())
	}
	vals := storage.RowValues(cols, rows)
	per := s.D.RowsPerStatement(len(cols))

	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%s: begin tx: %w", s.D.Name, err)
	}
	rollback := func() { _ = tx.Rollback() }

	for start := 0; start < len(vals); start += per {
		end := start + per
		if end > len(vals) {
			end = len(vals)
		}
		q, err := s.D.InsertSQL(dest.Table(), cols, end-start)
		if err != nil {
			rollback()
			return err
		}
		args := make([]any, 0, (end-start)*len(cols))
		for _, r := range vals[start:end] {
			args = append(args, r...)
		}
		if _, err := tx.ExecContext(ctx, q, args...); err != nil {
			rollback()
			return fmt.Errorf("%s: insert rows %d..%d into %s: %w", s.D.Name, start, end-1, dest.Table(), err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%s: commit: %w", s.D.Name, err)
	}
	return nil
}

// InsertOne inserts a single row in its own implicit transaction.
func (s *Store) InsertOne(ctx context.Context, dest *schema.Destination, row map[string]any) error {
	rows := []map[string]any{row}
	cols := storage.Columns(dest, rows)
	q, err := s.D.InsertSQL(dest.Table(), cols, 1)
	if err != nil {
		return err
	}
	if _, err := s.DB.ExecContext(ctx, q, storage.RowValues(cols, rows)[0]...); err != nil {
		return fmt.Errorf("%s: insert into %s: %w", s.D.Name, dest.Table(), err)
	}
	return nil
}

// FindByKey selects the destination's fields for the row matching key.
func (s *Store) FindByKey(ctx context.Context, dest *schema.Destination, key map[string]any) (schema.Row, bool, error) {
	fields := dest.Fields()
	keys := dest.PrimaryKeys()
	q, err := s.D.SelectByKeySQL(dest.Table(), fields, keys)
	if err != nil {
		return nil, false, err
	}

	vals := make([]any, len(fields))
	ptrs := make([]any, len(fields))
	for i := range vals {
		ptrs[i] = &vals[i]
	}
	err = s.DB.QueryRowContext(ctx, q, storage.KeyArgs(keys, key)...).Scan(ptrs...)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("%s: select from %s: %w", s.D.Name, dest.Table(), err)
	}
	return storage.ScanRow(fields, vals), true, nil
}

// Exec executes an arbitrary statement (typically DDL).
func (s *Store) Exec(ctx context.Context, stmt string) error {
	if strings.TrimSpace(stmt) == "" {
		return nil
	}
	if _, err := s.DB.ExecContext(ctx, stmt); err != nil {
		return fmt.Errorf("%s: exec: %w", s.D.Name, err)
	}
	return nil
}

// ReflectInformationSchema reads the column list and primary key of
// schemaName.table from INFORMATION_SCHEMA.
func (s *Store) ReflectInformationSchema(ctx context.Context, schemaName, table, name string) (*schema.Destination, error) {
	rows, err := s.DB.QueryContext(ctx, storage.InformationSchemaQuery(s.D), schemaName, table)
	if err != nil {
		return nil, fmt.Errorf("%s: reflect %s: %w", s.D.Name, name, err)
	}
	defer rows.Close()

	var cols []storage.ReflectedColumn
	for rows.Next() {
		var (
			col      string
			nullable string
			pk       int
		)
		if err := rows.Scan(&col, &nullable, &pk); err != nil {
			return nil, fmt.Errorf("%s: reflect %s: scan: %w", s.D.Name, name, err)
		}
		cols = append(cols, storage.ReflectedColumn{
			Name:       col,
			NotNull:    strings.EqualFold(nullable, "NO"),
			PrimaryKey: pk == 1,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: reflect %s: %w", s.D.Name, name, err)
	}
	return storage.DestinationFromColumns(name, cols)
}

// Close closes the underlying pool.
func (s *Store) Close() { _ = s.DB.Close() }
