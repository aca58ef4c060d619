package sqlite

import (
	"context"
	"path/filepath"
	"testing"

	"sqlsink/internal/storage"
)

func TestRegistrationUsesHook(t *testing.T) {
	orig := newRepository
	defer func() { newRepository = orig }()

	var (
		gotCfg   Config
		releases int
		fakeRepo = &Repository{}
	)
	newRepository = func(ctx context.Context, cfg Config) (*Repository, func(), error) {
		gotCfg = cfg
		return fakeRepo, func() { releases++ }, nil
	}

	cfg := storage.Config{Kind: "sqlite", DSN: "file:test.db?mode=memory&cache=shared"}
	repo, err := storage.New(context.Background(), cfg)
	if err != nil {
		t.Fatalf("storage.New: %v", err)
	}
	if gotCfg.DSN != cfg.DSN {
		t.Errorf("hook DSN = %q, want %q", gotCfg.DSN, cfg.DSN)
	}
	if storage.Backend(repo) != storage.Repository(fakeRepo) {
		t.Fatalf("Backend = %T, want the hook's repository", storage.Backend(repo))
	}

	repo.Close()
	repo.Close()
	if releases != 1 {
		t.Fatalf("release calls = %d, want 1", releases)
	}
}

func TestNewRepository_File(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	dsn := filepath.Join(t.TempDir(), "sink.db")
	repo, release, err := NewRepository(ctx, Config{DSN: dsn})
	if err != nil {
		t.Fatalf("NewRepository: %v", err)
	}
	defer release()

	if err := repo.Exec(ctx, `CREATE TABLE t (id INTEGER PRIMARY KEY)`); err != nil {
		t.Fatalf("Exec: %v", err)
	}
	if repo.Dialect().Name != "sqlite" {
		t.Fatalf("Dialect = %q", repo.Dialect().Name)
	}
}
