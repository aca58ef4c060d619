package mssql

import (
	"context"

	"sqlsink/internal/storage"
)

// SQL Server is registered as "mssql"; the DSN is parsed with msdsn before
// dialing so malformed strings fail without a network round trip.

// newRepository is swapped out by tests that must not dial a server.
var newRepository = NewRepository

func init() {
	storage.RegisterOpener("mssql", func(ctx context.Context, dsn string) (storage.Repository, func(), error) {
		r, release, err := newRepository(ctx, Config{DSN: dsn})
		if err != nil {
			return nil, nil, err
		}
		return r, release, nil
	})
}
