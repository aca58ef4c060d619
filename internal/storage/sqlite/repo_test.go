package sqlite

import (
	"context"
	"reflect"
	"testing"

	"sqlsink/internal/schema"
)

/*
Package-level test helpers (TB-aware)
*/

func newRepo(tb testing.TB) *Repository {
	tb.Helper()
	db, err := Open(":memory:")
	if err != nil {
		tb.Fatalf("open sqlite :memory:: %v", err)
	}
	tb.Cleanup(func() { _ = db.Close() })
	return New(db)
}

func mustExec(tb testing.TB, r *Repository, sqlStmt string) {
	tb.Helper()
	if err := r.Exec(context.Background(), sqlStmt); err != nil {
		tb.Fatalf("exec %q: %v", sqlStmt, err)
	}
}

func count(tb testing.TB, r *Repository, table string) int {
	tb.Helper()
	var n int
	if err := r.DB.QueryRow("SELECT count(*) FROM " + table).Scan(&n); err != nil {
		tb.Fatalf("count %s: %v", table, err)
	}
	return n
}

var user2 = schema.MustDestination(schema.Spec{
	Name:        "user2",
	Fields:      []string{"id", "name", "full_name"},
	PrimaryKeys: []string{"id"},
	Mandatory:   []string{"id"},
})

const createUser2 = `CREATE TABLE user2 (id INTEGER PRIMARY KEY, name VARCHAR, full_name VARCHAR)`

/*
Unit tests
*/

func TestInsertMany_AllRows(t *testing.T) {
	t.Parallel()

	r := newRepo(t)
	mustExec(t, r, createUser2)

	rows := []map[string]any{
		{"id": 1, "name": "ryan", "full_name": "ryan the rhino"},
		{"id": 2, "name": "joe"},
		{"id": 3},
	}
	if err := r.InsertMany(context.Background(), user2, rows); err != nil {
		t.Fatalf("InsertMany: %v", err)
	}
	if got := count(t, r, "user2"); got != 3 {
		t.Fatalf("rows = %d, want 3", got)
	}
}

// TestInsertMany_IsAtomic verifies a duplicate key anywhere in the batch
// leaves the table untouched.
func TestInsertMany_IsAtomic(t *testing.T) {
	t.Parallel()

	r := newRepo(t)
	mustExec(t, r, createUser2)

	rows := []map[string]any{{"id": 1}, {"id": 2}, {"id": 1}}
	if err := r.InsertMany(context.Background(), user2, rows); err == nil {
		t.Fatalf("InsertMany with duplicate key should fail")
	}
	if got := count(t, r, "user2"); got != 0 {
		t.Fatalf("rows = %d after failed batch, want 0", got)
	}
}

// TestInsertMany_ChunksUnderParamLimit forces several statements per batch
// and checks they commit together.
func TestInsertMany_ChunksUnderParamLimit(t *testing.T) {
	t.Parallel()

	r := newRepo(t)
	r.Store.D.MaxParams = 4
	mustExec(t, r, createUser2)

	var rows []map[string]any
	for i := 0; i < 9; i++ {
		rows = append(rows, map[string]any{"id": i, "name": "n"})
	}
	if err := r.InsertMany(context.Background(), user2, rows); err != nil {
		t.Fatalf("InsertMany: %v", err)
	}
	if got := count(t, r, "user2"); got != 9 {
		t.Fatalf("rows = %d, want 9", got)
	}

	// A failure in a later chunk rolls back the earlier ones too.
	bad := []map[string]any{{"id": 100}, {"id": 101}, {"id": 102}, {"id": 0}}
	if err := r.InsertMany(context.Background(), user2, bad); err == nil {
		t.Fatalf("expected duplicate key error")
	}
	if got := count(t, r, "user2"); got != 9 {
		t.Fatalf("rows = %d after failed chunked batch, want 9", got)
	}
}

func TestInsertOneAndFindByKey(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	r := newRepo(t)
	mustExec(t, r, createUser2)

	if err := r.InsertOne(ctx, user2, map[string]any{"id": 3, "name": "bob", "full_name": "bob the bat"}); err != nil {
		t.Fatalf("InsertOne: %v", err)
	}

	row, found, err := r.FindByKey(ctx, user2, map[string]any{"id": 3})
	if err != nil || !found {
		t.Fatalf("FindByKey = %v, %v, %v", row, found, err)
	}
	want := schema.Row{"id": int64(3), "name": "bob", "full_name": "bob the bat"}
	if !reflect.DeepEqual(row, want) {
		t.Fatalf("row = %#v, want %#v", row, want)
	}

	_, found, err = r.FindByKey(ctx, user2, map[string]any{"id": 42})
	if err != nil || found {
		t.Fatalf("FindByKey(missing) found=%v err=%v", found, err)
	}
}

func TestReflect(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	r := newRepo(t)
	mustExec(t, r, `CREATE TABLE address (
		id INTEGER,
		email_address VARCHAR NOT NULL,
		time VARCHAR NOT NULL,
		link_text VARCHAR,
		PRIMARY KEY (id, email_address)
	)`)

	d, err := r.Reflect(ctx, "address")
	if err != nil {
		t.Fatalf("Reflect: %v", err)
	}
	if got, want := d.Fields(), []string{"id", "email_address", "time", "link_text"}; !reflect.DeepEqual(got, want) {
		t.Fatalf("Fields = %v, want %v", got, want)
	}
	if got, want := d.PrimaryKeys(), []string{"id", "email_address"}; !reflect.DeepEqual(got, want) {
		t.Fatalf("PrimaryKeys = %v, want %v", got, want)
	}
	if got, want := d.Mandatory(), []string{"id", "email_address", "time"}; !reflect.DeepEqual(got, want) {
		t.Fatalf("Mandatory = %v, want %v", got, want)
	}

	if _, err := r.Reflect(ctx, "missing_table"); err == nil {
		t.Fatalf("Reflect of a missing table should fail")
	}
}
