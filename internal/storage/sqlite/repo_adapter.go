package sqlite

import (
	"context"

	"sqlsink/internal/storage"
)

// SQLite is registered as "sqlite". The DSN is handed to modernc.org/sqlite
// unchanged, so both file paths and file: URIs work.

// newRepository is swapped out by tests that must not dial a server.
var newRepository = NewRepository

func init() {
	storage.RegisterOpener("sqlite", func(ctx context.Context, dsn string) (storage.Repository, func(), error) {
		r, release, err := newRepository(ctx, Config{DSN: dsn})
		if err != nil {
			return nil, nil, err
		}
		return r, release, nil
	})
}
