package ddl

import (
	"fmt"
	"strings"

	"sqlsink/internal/schema"
)

// ColumnDef describes a single column in a table definition.
//
// Fields:
//   - Name: logical column name (unquoted; quoting happens at render time)
//   - SQLType: target SQL type (e.g., TEXT, BIGINT, TIMESTAMPTZ)
//   - Nullable: whether NULL is allowed
//   - PrimaryKey: whether the column is part of the primary key
//   - Default: raw default expression (e.g., 'anon', CURRENT_TIMESTAMP)
type ColumnDef struct {
	Name       string
	SQLType    string
	Nullable   bool
	PrimaryKey bool
	Default    string
}

// TableDef holds the fully-qualified table name (FQN) and an ordered list of
// columns. The FQN is expected in dotted form (e.g., "schema.table").
type TableDef struct {
	FQN     string
	Columns []ColumnDef
}

// DefaultType is used for fields without an explicit type hint.
const DefaultType = "TEXT"

// FromDestination derives a TableDef from a destination descriptor.
// Primary-key and mandatory fields become NOT NULL; types maps field names
// to SQL types and falls back to DefaultType.
func FromDestination(dest *schema.Destination, types map[string]string) (TableDef, error) {
	if dest == nil {
		return TableDef{}, fmt.Errorf("ddl: nil destination")
	}
	notNull := map[string]bool{}
	pk := map[string]bool{}
	for _, f := range dest.PrimaryKeys() {
		pk[f] = true
		notNull[f] = true
	}
	for _, f := range dest.Mandatory() {
		notNull[f] = true
	}

	def := TableDef{FQN: dest.Table()}
	for _, f := range dest.Fields() {
		typ := strings.TrimSpace(types[f])
		if typ == "" {
			typ = DefaultType
		}
		def.Columns = append(def.Columns, ColumnDef{
			Name:       f,
			SQLType:    typ,
			Nullable:   !notNull[f],
			PrimaryKey: pk[f],
		})
	}
	return def, nil
}
