// Package mysql implements a MySQL repository on top of go-sql-driver/mysql
// and the shared database/sql store.
package mysql

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/go-sql-driver/mysql"

	"sqlsink/internal/schema"
	"sqlsink/internal/storage"
	"sqlsink/internal/storage/sqlstore"
)

// Config holds MySQL repository configuration.
type Config struct {
	DSN string
}

// Repository is a MySQL-backed implementation of storage.Repository.
type Repository struct {
	*sqlstore.Store
	cfg Config
}

// NewRepository constructs a Repository and returns a Close function for cleanup.
func NewRepository(ctx context.Context, cfg Config) (*Repository, func(), error) {
	mc, err := parseDSN(cfg.DSN)
	if err != nil {
		return nil, nil, err
	}
	conn, err := mysql.NewConnector(mc)
	if err != nil {
		return nil, nil, fmt.Errorf("mysql connector: %w", err)
	}
	db := sql.OpenDB(conn)
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, nil, fmt.Errorf("ping: %w", err)
	}
	close := func() { _ = db.Close() }
	return &Repository{Store: sqlstore.New(db, storage.MySQL), cfg: cfg}, close, nil
}

// parseDSN validates dsn and forces the options the sink relies on: native
// time values and a database selected up front.
func parseDSN(dsn string) (*mysql.Config, error) {
	mc, err := mysql.ParseDSN(dsn)
	if err != nil {
		return nil, fmt.Errorf("mysql dsn: %w", err)
	}
	if mc.DBName == "" {
		return nil, fmt.Errorf("mysql dsn: no database selected")
	}
	mc.ParseTime = true
	return mc, nil
}

// Reflect reads table's columns from INFORMATION_SCHEMA. Unqualified names
// resolve to the connection's current database.
func (r *Repository) Reflect(ctx context.Context, table string) (*schema.Destination, error) {
	schemaName, name := storage.SplitTable(strings.ReplaceAll(table, "`", ""), "")
	if schemaName == "" {
		if err := r.DB.QueryRowContext(ctx, "SELECT DATABASE()").Scan(&schemaName); err != nil {
			return nil, fmt.Errorf("mysql: reflect %s: current database: %w", table, err)
		}
	}
	return r.ReflectInformationSchema(ctx, schemaName, name, table)
}
