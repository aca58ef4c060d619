// Package schema describes where records go. A Destination is the immutable
// descriptor of one relational sink (usually a table): its ordered fields,
// which of them form the primary key, which must never be null at write
// time, and an optional batch-size override used by the write buffer.
//
// Destinations are built once at startup, either from static configuration
// or by reflecting an existing table (see storage.Repository.Reflect), and
// are then shared read-only by every record that targets them.
package schema

import (
	"fmt"
	"strings"
)

// Row is a stored row returned by a key lookup, keyed by field name.
type Row map[string]any

// Spec is the mutable input used to construct a Destination.
type Spec struct {
	// Name is the logical destination name records are tagged with.
	Name string

	// Table is the backing table, optionally schema-qualified
	// ("public.users"). Empty means Name.
	Table string

	// Fields is the ordered list of writable fields (columns).
	Fields []string

	// PrimaryKeys uniquely identify a row. Every entry must be in Fields.
	PrimaryKeys []string

	// Mandatory fields must be non-null at write time. Every entry must be
	// in Fields; the set may overlap PrimaryKeys.
	Mandatory []string

	// BatchSize overrides the buffer's default batch size when > 0.
	BatchSize int
}

// Destination is an immutable, validated destination descriptor.
type Destination struct {
	name      string
	table     string
	fields    []string
	fieldSet  map[string]struct{}
	pks       []string
	mandatory []string
	batchSize int
}

// NewDestination validates spec and returns the corresponding Destination.
// Slices are copied so later changes to spec do not leak into the result.
func NewDestination(spec Spec) (*Destination, error) {
	name := strings.TrimSpace(spec.Name)
	if name == "" {
		return nil, fmt.Errorf("schema: destination name must not be empty")
	}
	if len(spec.Fields) == 0 {
		return nil, fmt.Errorf("schema: destination %s: at least one field is required", name)
	}
	if spec.BatchSize < 0 {
		return nil, fmt.Errorf("schema: destination %s: batch size must not be negative, got %d", name, spec.BatchSize)
	}

	d := &Destination{
		name:      name,
		table:     strings.TrimSpace(spec.Table),
		fields:    make([]string, 0, len(spec.Fields)),
		fieldSet:  make(map[string]struct{}, len(spec.Fields)),
		batchSize: spec.BatchSize,
	}
	if d.table == "" {
		d.table = name
	}

	for _, f := range spec.Fields {
		f = strings.TrimSpace(f)
		if f == "" {
			return nil, fmt.Errorf("schema: destination %s: empty field name", name)
		}
		if _, dup := d.fieldSet[f]; dup {
			return nil, fmt.Errorf("schema: destination %s: duplicate field %q", name, f)
		}
		d.fieldSet[f] = struct{}{}
		d.fields = append(d.fields, f)
	}

	var err error
	if d.pks, err = d.subset("primary key", spec.PrimaryKeys); err != nil {
		return nil, err
	}
	if d.mandatory, err = d.subset("mandatory", spec.Mandatory); err != nil {
		return nil, err
	}
	return d, nil
}

// MustDestination is like NewDestination but panics on error. It is meant
// for package-level fixtures and tests.
func MustDestination(spec Spec) *Destination {
	d, err := NewDestination(spec)
	if err != nil {
		panic(err)
	}
	return d
}

// subset checks that every name is a declared field and returns the names
// reordered to follow field order, without duplicates.
func (d *Destination) subset(kind string, names []string) ([]string, error) {
	want := make(map[string]struct{}, len(names))
	for _, n := range names {
		n = strings.TrimSpace(n)
		if _, ok := d.fieldSet[n]; !ok {
			return nil, fmt.Errorf("schema: destination %s: %s field %q is not a declared field", d.name, kind, n)
		}
		want[n] = struct{}{}
	}
	out := make([]string, 0, len(want))
	for _, f := range d.fields {
		if _, ok := want[f]; ok {
			out = append(out, f)
		}
	}
	return out, nil
}

// Name returns the logical destination name.
func (d *Destination) Name() string { return d.name }

// Table returns the backing table name.
func (d *Destination) Table() string { return d.table }

// BatchSize returns the per-destination override, or 0 when unset.
func (d *Destination) BatchSize() int { return d.batchSize }

// Fields returns a copy of the ordered field list.
func (d *Destination) Fields() []string { return append([]string(nil), d.fields...) }

// PrimaryKeys returns a copy of the primary-key fields, in field order.
func (d *Destination) PrimaryKeys() []string { return append([]string(nil), d.pks...) }

// Mandatory returns a copy of the mandatory fields, in field order.
func (d *Destination) Mandatory() []string { return append([]string(nil), d.mandatory...) }

// HasField reports whether name is one of the destination's fields.
func (d *Destination) HasField(name string) bool {
	_, ok := d.fieldSet[name]
	return ok
}

// EachField calls fn for every field in order without allocating.
func (d *Destination) EachField(fn func(field string)) {
	for _, f := range d.fields {
		fn(f)
	}
}

// String implements fmt.Stringer.
func (d *Destination) String() string {
	return fmt.Sprintf("%s(table=%s fields=%d pk=%s)", d.name, d.table, len(d.fields), strings.Join(d.pks, ","))
}
