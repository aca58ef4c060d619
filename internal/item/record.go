// Package item holds the unit of work handed to the sink: a Record bound to
// a schema.Destination. It also implements record validation (which
// primary-key and mandatory fields are still null) and the matching-row
// lookup with its per-record cache.
//
// A Record is owned by one producer goroutine at a time; it is not safe for
// concurrent use.
package item

import (
	"sqlsink/internal/schema"
)

// Record is one unit to be persisted, tagged with its destination.
type Record struct {
	dest   *schema.Destination
	values map[string]any

	// match caches the last matching-row lookup for this instance.
	match *matchEntry
}

// New returns a record for dest seeded with values. The map is copied.
func New(dest *schema.Destination, values map[string]any) *Record {
	r := &Record{dest: dest, values: make(map[string]any, len(values))}
	for k, v := range values {
		r.values[k] = v
	}
	return r
}

// Destination returns the record's destination.
func (r *Record) Destination() *schema.Destination { return r.dest }

// Get returns the value stored under field.
func (r *Record) Get(field string) (any, bool) {
	v, ok := r.values[field]
	return v, ok
}

// Set stores v under field. Fields that are not part of the destination are
// kept on the record but never written.
func (r *Record) Set(field string, v any) {
	if r.values == nil {
		r.values = make(map[string]any)
	}
	r.values[field] = v
}

// Len returns the number of values set on the record, including values for
// non-destination fields.
func (r *Record) Len() int { return len(r.values) }

// Args returns a fresh map holding only the values of destination fields
// that are set on the record. It is the shape handed to the backing store.
func (r *Record) Args() map[string]any {
	out := make(map[string]any, len(r.values))
	if r.dest == nil {
		return out
	}
	r.dest.EachField(func(f string) {
		if v, ok := r.values[f]; ok {
			out[f] = v
		}
	})
	return out
}

// NullPrimaryKeys returns the primary-key fields that are currently null.
func (r *Record) NullPrimaryKeys() []string { return Validate(r).PrimaryKeys }

// NullMandatory returns the mandatory fields that are currently null.
func (r *Record) NullMandatory() []string { return Validate(r).Mandatory }
