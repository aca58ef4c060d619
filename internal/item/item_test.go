package item

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"testing"

	"sqlsink/internal/schema"
)

var (
	userDest = schema.MustDestination(schema.Spec{
		Name:        "user2",
		Fields:      []string{"id", "name", "full_name"},
		PrimaryKeys: []string{"id"},
		Mandatory:   []string{"id"},
	})
	addressDest = schema.MustDestination(schema.Spec{
		Name:        "address",
		Fields:      []string{"id", "email_address", "time", "link_text"},
		PrimaryKeys: []string{"id", "email_address"},
		Mandatory:   []string{"id", "email_address", "time"},
	})
)

func TestValidate_TracksNullFields(t *testing.T) {
	t.Parallel()

	a := New(addressDest, nil)
	m := Validate(a)
	if got, want := m.PrimaryKeys, []string{"id", "email_address"}; !reflect.DeepEqual(got, want) {
		t.Fatalf("PrimaryKeys = %v, want %v", got, want)
	}
	if got, want := m.Mandatory, []string{"id", "email_address", "time"}; !reflect.DeepEqual(got, want) {
		t.Fatalf("Mandatory = %v, want %v", got, want)
	}

	a.Set("id", 100)
	a.Set("email_address", "bigtime@thebigtime.com")
	if got := a.NullPrimaryKeys(); len(got) != 0 {
		t.Fatalf("NullPrimaryKeys = %v, want none", got)
	}
	if got, want := a.NullMandatory(), []string{"time"}; !reflect.DeepEqual(got, want) {
		t.Fatalf("NullMandatory = %v, want %v", got, want)
	}

	a.Set("time", "one o clock")
	if !Validate(a).Complete() {
		t.Fatalf("record should be complete: %+v", Validate(a))
	}
}

func TestValidate_TypedNilIsNull(t *testing.T) {
	t.Parallel()

	var s *string
	u := New(userDest, map[string]any{"id": s})
	if got := u.NullPrimaryKeys(); !reflect.DeepEqual(got, []string{"id"}) {
		t.Fatalf("typed nil pointer should be null, got %v", got)
	}
	u.Set("id", 0)
	if got := u.NullPrimaryKeys(); len(got) != 0 {
		t.Fatalf("zero value is not null, got %v", got)
	}
}

func TestCheckCommit_Error(t *testing.T) {
	t.Parallel()

	err := CheckCommit(New(addressDest, map[string]any{"id": 1}))
	if !errors.Is(err, ErrValidation) {
		t.Fatalf("err = %v, want ErrValidation", err)
	}
	var ve *ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("err is not *ValidationError: %T", err)
	}
	if ve.Destination != "address" {
		t.Fatalf("Destination = %q", ve.Destination)
	}
	for _, want := range []string{"email_address", "time"} {
		if !strings.Contains(err.Error(), want) {
			t.Fatalf("error %q should mention %q", err, want)
		}
	}
}

func TestArgs_DropsNonDestinationFields(t *testing.T) {
	t.Parallel()

	u := New(userDest, map[string]any{"id": 3, "name": "bob", "first_joined": "2014"})
	got := u.Args()
	want := map[string]any{"id": 3, "name": "bob"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("Args = %v, want %v", got, want)
	}
	got["id"] = 99
	if v, _ := u.Get("id"); v != 3 {
		t.Fatalf("Args must return a copy; record now has id=%v", v)
	}
	if u.Len() != 3 {
		t.Fatalf("Len = %d, want 3", u.Len())
	}
}

// fakeFinder serves rows from an in-memory table keyed by "id".
type fakeFinder struct {
	rows  map[any]schema.Row
	calls int
}

func (f *fakeFinder) FindByKey(_ context.Context, _ *schema.Destination, key map[string]any) (schema.Row, bool, error) {
	f.calls++
	row, ok := f.rows[key["id"]]
	return row, ok, nil
}

func TestMatchingRow_NotBound(t *testing.T) {
	t.Parallel()

	u := New(userDest, map[string]any{"id": 2})
	_, _, err := u.MatchingRow(context.Background(), nil, true)
	if !errors.Is(err, ErrNotBound) {
		t.Fatalf("err = %v, want ErrNotBound", err)
	}
}

func TestMatchingRow_NoDestination(t *testing.T) {
	t.Parallel()

	f := &fakeFinder{}
	_, _, err := New(nil, map[string]any{"id": 2}).MatchingRow(context.Background(), f, true)
	if !errors.Is(err, ErrNotBound) {
		t.Fatalf("err = %v, want ErrNotBound", err)
	}
	if f.calls != 0 {
		t.Fatalf("finder called %d times, want 0", f.calls)
	}
}

func TestMatchingRow_IncompleteKey(t *testing.T) {
	t.Parallel()

	a := New(addressDest, map[string]any{"id": 1})
	_, _, err := a.MatchingRow(context.Background(), &fakeFinder{}, true)
	if !errors.Is(err, ErrIncompleteKey) {
		t.Fatalf("err = %v, want ErrIncompleteKey", err)
	}
	var ke *KeyError
	if !errors.As(err, &ke) || !reflect.DeepEqual(ke.Fields, []string{"email_address"}) {
		t.Fatalf("KeyError fields = %+v", ke)
	}
}

func TestMatchingRow_CacheAndRefresh(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	f := &fakeFinder{rows: map[any]schema.Row{2: {"id": 2, "name": "joe", "full_name": nil}}}
	u := New(userDest, map[string]any{"id": 2})

	row, found, err := u.MatchingRow(ctx, f, true)
	if err != nil || !found || row["name"] != "joe" {
		t.Fatalf("first lookup = %v, %v, %v", row, found, err)
	}

	// The store changes underneath; the cached row is still served.
	delete(f.rows, 2)
	row, found, err = u.MatchingRow(ctx, f, true)
	if err != nil || !found || row["name"] != "joe" {
		t.Fatalf("cached lookup = %v, %v, %v", row, found, err)
	}
	if f.calls != 1 {
		t.Fatalf("finder calls = %d, want 1", f.calls)
	}

	// cache=false reflects the current store state and refreshes the cache.
	_, found, err = u.MatchingRow(ctx, f, false)
	if err != nil || found {
		t.Fatalf("fresh lookup found=%v err=%v, want absent", found, err)
	}
	_, found, _ = u.MatchingRow(ctx, f, true)
	if found || f.calls != 2 {
		t.Fatalf("cached absence not served: found=%v calls=%d", found, f.calls)
	}
}

func TestMatchingRow_KeyChangeMissesCache(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	f := &fakeFinder{rows: map[any]schema.Row{
		1: {"id": 1, "name": "ryan"},
		2: {"id": 2, "name": "joe"},
	}}
	u := New(userDest, map[string]any{"id": 1})
	if row, _, _ := u.MatchingRow(ctx, f, true); row["name"] != "ryan" {
		t.Fatalf("row = %v", row)
	}

	u.Set("id", 2)
	row, _, _ := u.MatchingRow(ctx, f, true)
	if row["name"] != "joe" || f.calls != 2 {
		t.Fatalf("row = %v calls = %d, want joe after key change", row, f.calls)
	}

	u.ForgetMatch()
	_, _, _ = u.MatchingRow(ctx, f, true)
	if f.calls != 3 {
		t.Fatalf("ForgetMatch should force a query, calls = %d", f.calls)
	}
}
