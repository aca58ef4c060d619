package mysql

import (
	"context"

	"sqlsink/internal/storage"
)

// MySQL is registered as "mysql"; the DSN is a go-sql-driver/mysql DSN that
// must name a database.

// newRepository is swapped out by tests that must not dial a server.
var newRepository = NewRepository

func init() {
	storage.RegisterOpener("mysql", func(ctx context.Context, dsn string) (storage.Repository, func(), error) {
		r, release, err := newRepository(ctx, Config{DSN: dsn})
		if err != nil {
			return nil, nil, err
		}
		return r, release, nil
	})
}
