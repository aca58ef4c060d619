package sqlstore_test

import (
	"context"
	"database/sql"
	"testing"

	_ "modernc.org/sqlite"

	"sqlsink/internal/schema"
	"sqlsink/internal/storage"
	"sqlsink/internal/storage/sqlstore"
)

var kv = schema.MustDestination(schema.Spec{
	Name:        "kv",
	Fields:      []string{"k", "v"},
	PrimaryKeys: []string{"k"},
})

// newStore opens an in-memory database with a dialect that fits two rows of
// kv per statement.
func newStore(t *testing.T) *sqlstore.Store {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = db.Close() })

	d := storage.SQLite
	d.MaxParams = 4
	s := sqlstore.New(db, d)
	if err := s.Exec(context.Background(), `CREATE TABLE kv (k INTEGER PRIMARY KEY, v TEXT)`); err != nil {
		t.Fatalf("create: %v", err)
	}
	return s
}

func rows(keys ...int) []map[string]any {
	out := make([]map[string]any, len(keys))
	for i, k := range keys {
		out[i] = map[string]any{"k": k, "v": "x"}
	}
	return out
}

func count(t *testing.T, s *sqlstore.Store) int {
	t.Helper()
	var n int
	if err := s.DB.QueryRow(`SELECT count(*) FROM kv`).Scan(&n); err != nil {
		t.Fatalf("count: %v", err)
	}
	return n
}

func TestInsertMany_Chunks(t *testing.T) {
	t.Parallel()

	s := newStore(t)
	if err := s.InsertMany(context.Background(), kv, rows(1, 2, 3, 4, 5)); err != nil {
		t.Fatalf("InsertMany: %v", err)
	}
	if got := count(t, s); got != 5 {
		t.Fatalf("rows = %d, want 5", got)
	}
}

func TestInsertMany_RollsBackOnFailure(t *testing.T) {
	t.Parallel()

	s := newStore(t)
	// The duplicate lands in the third statement; the first two must not stick.
	if err := s.InsertMany(context.Background(), kv, rows(1, 2, 3, 4, 1)); err == nil {
		t.Fatal("expected duplicate key error")
	}
	if got := count(t, s); got != 0 {
		t.Fatalf("rows = %d, want 0 after rollback", got)
	}
}

func TestInsertOneAndFindByKey(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := newStore(t)
	if err := s.InsertOne(ctx, kv, map[string]any{"k": 7, "v": "seven"}); err != nil {
		t.Fatalf("InsertOne: %v", err)
	}
	if err := s.InsertOne(ctx, kv, map[string]any{"k": 7, "v": "again"}); err == nil {
		t.Fatal("expected duplicate key error")
	}

	row, found, err := s.FindByKey(ctx, kv, map[string]any{"k": 7})
	if err != nil || !found || row["v"] != "seven" {
		t.Fatalf("FindByKey = %v, %v, %v", row, found, err)
	}
	if _, found, err := s.FindByKey(ctx, kv, map[string]any{"k": 8}); err != nil || found {
		t.Fatalf("FindByKey(missing) found=%v err=%v", found, err)
	}
}

func TestExec_BlankIsNoop(t *testing.T) {
	t.Parallel()

	if err := newStore(t).Exec(context.Background(), "  "); err != nil {
		t.Fatalf("Exec: %v", err)
	}
}
