package storage

import (
	"reflect"
	"testing"

	"sqlsink/internal/schema"
)

var users = schema.MustDestination(schema.Spec{
	Name:        "users",
	Table:       "public.users",
	Fields:      []string{"id", "name", "full_name"},
	PrimaryKeys: []string{"id"},
})

func TestColumnsAndRowValues(t *testing.T) {
	t.Parallel()

	rows := []map[string]any{
		{"id": 1, "extra": "ignored"},
		{"full_name": "bob the bat", "id": 2},
	}
	cols := Columns(users, rows)
	if want := []string{"id", "full_name"}; !reflect.DeepEqual(cols, want) {
		t.Fatalf("Columns = %v, want %v", cols, want)
	}
	vals := RowValues(cols, rows)
	want := [][]any{{1, nil}, {2, "bob the bat"}}
	if !reflect.DeepEqual(vals, want) {
		t.Fatalf("RowValues = %v, want %v", vals, want)
	}
}

func TestInsertSQL(t *testing.T) {
	t.Parallel()

	tests := []struct {
		d    Dialect
		want string
	}{
		{SQLite, `INSERT INTO "public"."users" ("id", "name") VALUES (?, ?), (?, ?)`},
		{Postgres, `INSERT INTO "public"."users" ("id", "name") VALUES ($1, $2), ($3, $4)`},
		{MSSQL, `INSERT INTO [public].[users] ([id], [name]) VALUES (@p1, @p2), (@p3, @p4)`},
		{MySQL, "INSERT INTO `public`.`users` (`id`, `name`) VALUES (?, ?), (?, ?)"},
	}
	for _, tt := range tests {
		got, err := tt.d.InsertSQL("public.users", []string{"id", "name"}, 2)
		if err != nil {
			t.Fatalf("%s: InsertSQL: %v", tt.d.Name, err)
		}
		if got != tt.want {
			t.Fatalf("%s: InsertSQL =\n%s\nwant\n%s", tt.d.Name, got, tt.want)
		}
	}

	if _, err := SQLite.InsertSQL("t", nil, 1); err == nil {
		t.Fatalf("expected error for empty column list")
	}
}

func TestSelectByKeySQL(t *testing.T) {
	t.Parallel()

	got, err := Postgres.SelectByKeySQL("address", []string{"id", "email_address", "time"}, []string{"id", "email_address"})
	if err != nil {
		t.Fatalf("SelectByKeySQL: %v", err)
	}
	want := `SELECT "id", "email_address", "time" FROM "address" WHERE "id" = $1 AND "email_address" = $2`
	if got != want {
		t.Fatalf("SelectByKeySQL =\n%s\nwant\n%s", got, want)
	}
	if _, err := SQLite.SelectByKeySQL("t", []string{"a"}, nil); err == nil {
		t.Fatalf("expected error without keys")
	}
}

func TestRowsPerStatement(t *testing.T) {
	t.Parallel()

	if got := MSSQL.RowsPerStatement(3); got != 700 {
		t.Fatalf("RowsPerStatement(3) = %d, want 700", got)
	}
	if got := MSSQL.RowsPerStatement(5000); got != 1 {
		t.Fatalf("RowsPerStatement(5000) = %d, want 1", got)
	}
}

func TestScanRow_BytesBecomeStrings(t *testing.T) {
	t.Parallel()

	row := ScanRow([]string{"id", "name"}, []any{int64(2), []byte("joe")})
	if row["name"] != "joe" || row["id"] != int64(2) {
		t.Fatalf("ScanRow = %v", row)
	}
	if got := KeyArgs([]string{"b", "a"}, map[string]any{"a": 1, "b": 2}); !reflect.DeepEqual(got, []any{2, 1}) {
		t.Fatalf("KeyArgs = %v", got)
	}
}
