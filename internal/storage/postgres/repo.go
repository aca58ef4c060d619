// Package postgres implements a Postgres repository using pgx v5. Batches
// are written with COPY FROM, which Postgres applies atomically: either
// every row of the batch lands or none does.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"sqlsink/internal/schema"
	"sqlsink/internal/storage"
)

// Config holds Postgres repository configuration.
type Config struct {
	DSN string // connection string for pgxpool
}

// pgPool is the subset of *pgxpool.Pool the repository uses. It exists so
// tests can substitute a fake without a live server.
type pgPool interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	CopyFrom(ctx context.Context, tableName pgx.Identifier, columnNames []string, rowSrc pgx.CopyFromSource) (int64, error)
	Close()
}

// Repository is a Postgres-backed implementation of storage.Repository.
type Repository struct {
	pool pgPool
	cfg  Config
}

// NewRepository constructs a Repository and returns a Close function for cleanup.
func NewRepository(ctx context.Context, cfg Config) (*Repository, func(), error) {
	pool, err := pgxpool.New(ctx, cfg.DSN)
	if err != nil {
		return nil, nil, fmt.Errorf("pgxpool: %w", err)
	}
	close := func() { pool.Close() }
	return &Repository{pool: pool, cfg: cfg}, close, nil
}

// Dialect implements storage.Repository.Dialect.
func (r *Repository) Dialect() storage.Dialect { return storage.Postgres }

// Close releases the pool.
func (r *Repository) Close() {
	if r.pool != nil {
		r.pool.Close()
	}
}

// InsertMany copies rows into the destination table with a single COPY.
func (r *Repository) InsertMany(ctx context.Context, dest *schema.Destination, rows []map[string]any) error {
	if len(rows) == 0 {
		return nil
	}
	cols := storage.Columns(dest, rows)
	if len(cols) == 0 {
		return fmt.Errorf("postgres: copy into %s: rows carry no destination fields", dest.Table())
	}
	n, err := r.pool.CopyFrom(ctx, splitFQN(dest.Table()), cols, pgx.CopyFromRows(storage.RowValues(cols, rows)))
	if err != nil {
		return pgError("copy into "+dest.Table(), err)
	}
	if n != int64(len(rows)) {
		return fmt.Errorf("postgres: copy into %s: copied %d of %d rows", dest.Table(), n, len(rows))
	}
	return nil
}

// InsertOne inserts a single row.
func (r *Repository) InsertOne(ctx context.Context, dest *schema.Destination, row map[string]any) error {
	rows := []map[string]any{row}
	cols := storage.Columns(dest, rows)
	q, err := storage.Postgres.InsertSQL(dest.Table(), cols, 1)
	if err != nil {
		return err
	}
	if _, err := r.pool.Exec(ctx, q, storage.RowValues(cols, rows)[0]...); err != nil {
		return pgError("insert into "+dest.Table(), err)
	}
	return nil
}

// FindByKey selects the destination's fields for the row matching key.
func (r *Repository) FindByKey(ctx context.Context, dest *schema.Destination, key map[string]any) (schema.Row, bool, error) {
	fields := dest.Fields()
	keys := dest.PrimaryKeys()
	q, err := storage.Postgres.SelectByKeySQL(dest.Table(), fields, keys)
	if err != nil {
		return nil, false, err
	}

	vals := make([]any, len(fields))
	ptrs := make([]any, len(fields))
	for i := range vals {
		ptrs[i] = &vals[i]
	}
	err = r.pool.QueryRow(ctx, q, storage.KeyArgs(keys, key)...).Scan(ptrs...)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, pgError("select from "+dest.Table(), err)
	}
	return storage.ScanRow(fields, vals), true, nil
}

// Reflect reads the column list and primary key of table from
// INFORMATION_SCHEMA. Unqualified names resolve to the "public" schema.
func (r *Repository) Reflect(ctx context.Context, table string) (*schema.Destination, error) {
	schemaName, name := storage.SplitTable(table, "public")
	rows, err := r.pool.Query(ctx, storage.InformationSchemaQuery(storage.Postgres), schemaName, name)
	if err != nil {
		return nil, pgError("reflect "+table, err)
	}
	defer rows.Close()

	var cols []storage.ReflectedColumn
	for rows.Next() {
		var (
			col      string
			nullable string
			pk       int32
		)
		if err := rows.Scan(&col, &nullable, &pk); err != nil {
			return nil, fmt.Errorf("postgres: reflect %s: scan: %w", table, err)
		}
		cols = append(cols, storage.ReflectedColumn{
			Name:       col,
			NotNull:    strings.EqualFold(nullable, "NO"),
			PrimaryKey: pk == 1,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, pgError("reflect "+table, err)
	}
	return storage.DestinationFromColumns(table, cols)
}

// Exec implements storage.Repository.Exec for Postgres.
func (r *Repository) Exec(ctx context.Context, sql string) error {
	if strings.TrimSpace(sql) == "" {
		return nil
	}
	if _, err := r.pool.Exec(ctx, sql); err != nil {
		return pgError("exec", err)
	}
	return nil
}

// pgError wraps err and surfaces the server's detail and SQLSTATE when the
// error came from Postgres.
func pgError(op string, err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Detail != "" {
		return fmt.Errorf("postgres: %s: %s (%s): %w", op, pgErr.Detail, pgErr.SQLState(), err)
	}
	return fmt.Errorf("postgres: %s: %w", op, err)
}

// splitFQN converts "schema.table" into a pgx.Identifier {"schema","table"}.
// If no dot is present, returns {"table"}.
func splitFQN(fqn string) pgx.Identifier {
	parts := strings.Split(fqn, ".")
	id := make(pgx.Identifier, 0, len(parts))
	for _, p := range parts {
		if p != "" {
			id = append(id, p)
		}
	}
	return id
}
