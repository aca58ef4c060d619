package item

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
)

var (
	// ErrValidation is matched by every *ValidationError.
	ErrValidation = errors.New("record validation failed")

	// ErrIncompleteKey is matched by every *KeyError.
	ErrIncompleteKey = errors.New("record primary key is incomplete")

	// ErrNotBound is returned by a lookup when no backing store is bound to
	// the record's destination.
	ErrNotBound = errors.New("destination is not bound to a backing store")
)

// Missing lists the primary-key and mandatory fields a record leaves null.
// Both slices follow destination field order.
type Missing struct {
	PrimaryKeys []string
	Mandatory   []string
}

// Complete reports whether nothing is missing.
func (m Missing) Complete() bool { return len(m.PrimaryKeys) == 0 && len(m.Mandatory) == 0 }

// ValidationError reports a record that cannot be committed.
type ValidationError struct {
	Destination string
	Missing     Missing
}

func (e *ValidationError) Error() string {
	var parts []string
	if len(e.Missing.PrimaryKeys) > 0 {
		parts = append(parts, "null primary key fields: "+strings.Join(e.Missing.PrimaryKeys, ", "))
	}
	if len(e.Missing.Mandatory) > 0 {
		parts = append(parts, "null mandatory fields: "+strings.Join(e.Missing.Mandatory, ", "))
	}
	return fmt.Sprintf("%s: destination %s: %s", ErrValidation, e.Destination, strings.Join(parts, "; "))
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// KeyError reports a lookup attempted with null primary-key fields.
type KeyError struct {
	Destination string
	Fields      []string
}

func (e *KeyError) Error() string {
	return fmt.Sprintf("%s: destination %s: null primary key fields: %s",
		ErrIncompleteKey, e.Destination, strings.Join(e.Fields, ", "))
}

func (e *KeyError) Unwrap() error { return ErrIncompleteKey }

// Validate computes which primary-key and mandatory fields of rec are null
// or absent. It has no side effects.
func Validate(rec *Record) Missing {
	var m Missing
	if rec == nil || rec.dest == nil {
		return m
	}
	for _, f := range rec.dest.PrimaryKeys() {
		if isNull(rec.values, f) {
			m.PrimaryKeys = append(m.PrimaryKeys, f)
		}
	}
	for _, f := range rec.dest.Mandatory() {
		if isNull(rec.values, f) {
			m.Mandatory = append(m.Mandatory, f)
		}
	}
	return m
}

// Err returns a *ValidationError for rec when m is not complete.
func (m Missing) Err(dest string) error {
	if m.Complete() {
		return nil
	}
	return &ValidationError{Destination: dest, Missing: m}
}

// CheckCommit returns an error when rec may not be committed as is.
func CheckCommit(rec *Record) error {
	return Validate(rec).Err(destName(rec))
}

// CheckKey returns a *KeyError when any primary-key field of rec is null.
// Null mandatory fields do not block a lookup.
func CheckKey(rec *Record) error {
	m := Validate(rec)
	if len(m.PrimaryKeys) == 0 {
		return nil
	}
	return &KeyError{Destination: destName(rec), Fields: m.PrimaryKeys}
}

func destName(rec *Record) string {
	if rec == nil || rec.dest == nil {
		return ""
	}
	return rec.dest.Name()
}

// isNull treats absent keys, untyped nil and typed nil pointers as null.
func isNull(values map[string]any, field string) bool {
	v, ok := values[field]
	if !ok || v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Interface, reflect.Map, reflect.Slice:
		return rv.IsNil()
	}
	return false
}
