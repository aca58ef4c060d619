package postgres

import (
	"context"

	"sqlsink/internal/storage"
)

// Postgres is registered as "postgres"; the DSN is any connection string
// pgxpool accepts.

// newRepository is swapped out by tests that must not dial a server.
var newRepository = NewRepository

func init() {
	storage.RegisterOpener("postgres", func(ctx context.Context, dsn string) (storage.Repository, func(), error) {
		r, release, err := newRepository(ctx, Config{DSN: dsn})
		if err != nil {
			return nil, nil, err
		}
		return r, release, nil
	})
}
