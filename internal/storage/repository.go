// Package storage contains the storage-agnostic contract the write buffer
// persists through, plus the factory registry concrete backends plug into.
//
// Backends (postgres, mssql, mysql, sqlite) register a Factory for their
// kind from init(); callers import storage/all for its side effects and then
// open a Repository with New without branching on the backend.
package storage

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"sqlsink/internal/schema"
)

// Repository is the backing-store contract.
//
// InsertMany writes all rows in one atomic operation: either every row is
// stored or none is. InsertOne writes a single row. FindByKey returns the row
// whose primary-key fields equal key (found=false when there is none).
type Repository interface {
	InsertMany(ctx context.Context, dest *schema.Destination, rows []map[string]any) error
	InsertOne(ctx context.Context, dest *schema.Destination, row map[string]any) error
	FindByKey(ctx context.Context, dest *schema.Destination, key map[string]any) (schema.Row, bool, error)

	// Reflect builds a destination descriptor from an existing table.
	Reflect(ctx context.Context, table string) (*schema.Destination, error)

	// Exec runs a statement, typically DDL.
	Exec(ctx context.Context, sql string) error

	// Dialect describes the SQL flavour of the backend.
	Dialect() Dialect

	Close()
}

// Config selects and configures a backend.
type Config struct {
	// Kind is the registered backend name, e.g. "postgres" or "sqlite".
	Kind string

	// DSN is passed to the backend's driver unchanged.
	DSN string
}

// Factory opens a Repository for cfg.
type Factory func(ctx context.Context, cfg Config) (Repository, error)

var (
	mu        sync.RWMutex
	factories = map[string]Factory{}
)

// Register registers (or replaces) the factory for kind.
func Register(kind string, f Factory) {
	mu.Lock()
	defer mu.Unlock()
	factories[kind] = f
}

// New opens a Repository using the factory registered for cfg.Kind.
func New(ctx context.Context, cfg Config) (Repository, error) {
	mu.RLock()
	f, ok := factories[cfg.Kind]
	mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unsupported storage.kind=%s", cfg.Kind)
	}
	if strings.TrimSpace(cfg.DSN) == "" {
		return nil, fmt.Errorf("storage %s: DSN must not be empty", cfg.Kind)
	}
	return f(ctx, cfg)
}

// Opener is the constructor shape backends expose: an open repository plus
// the function that releases its connections.
type Opener func(ctx context.Context, dsn string) (Repository, func(), error)

// RegisterOpener registers open for kind. Repositories it returns call the
// release function on the first Close only.
func RegisterOpener(kind string, open Opener) {
	Register(kind, func(ctx context.Context, cfg Config) (Repository, error) {
		r, release, err := open(ctx, cfg.DSN)
		if err != nil {
			return nil, err
		}
		return &ownedRepo{Repository: r, release: release}, nil
	})
}

// ownedRepo pairs a backend repository with its release function.
type ownedRepo struct {
	Repository
	once    sync.Once
	release func()
}

func (o *ownedRepo) Close() {
	o.once.Do(func() {
		if o.release != nil {
			o.release()
		}
	})
}

// Backend returns the repository a factory registered with RegisterOpener
// produced, or r itself.
func Backend(r Repository) Repository {
	if o, ok := r.(*ownedRepo); ok {
		return o.Repository
	}
	return r
}

// ListKinds returns the registered backend kinds, sorted.
func ListKinds() []string {
	mu.RLock()
	defer mu.RUnlock()
	out := make([]string, 0, len(factories))
	for k := range factories {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
