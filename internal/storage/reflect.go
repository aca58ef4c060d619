package storage

import (
	"fmt"
	"strings"

	"sqlsink/internal/schema"
)

// ReflectedColumn is one column as reported by a backend's catalog.
type ReflectedColumn struct {
	Name       string
	NotNull    bool
	PrimaryKey bool
}

// InformationSchemaQuery returns a catalog query for the ANSI
// INFORMATION_SCHEMA views (Postgres, SQL Server, MySQL). It takes the
// table schema and table name as its two parameters and yields
// (column_name, is_nullable, is_pk) in ordinal order.
func InformationSchemaQuery(d Dialect) string {
	return fmt.Sprintf(`SELECT c.COLUMN_NAME, c.IS_NULLABLE,
  CASE WHEN EXISTS (
    SELECT 1 FROM INFORMATION_SCHEMA.TABLE_CONSTRAINTS tc
    JOIN INFORMATION_SCHEMA.KEY_COLUMN_USAGE k
      ON k.CONSTRAINT_NAME = tc.CONSTRAINT_NAME
     AND k.TABLE_SCHEMA = tc.TABLE_SCHEMA
     AND k.TABLE_NAME = tc.TABLE_NAME
    WHERE tc.CONSTRAINT_TYPE = 'PRIMARY KEY'
      AND tc.TABLE_SCHEMA = c.TABLE_SCHEMA
      AND tc.TABLE_NAME = c.TABLE_NAME
      AND k.COLUMN_NAME = c.COLUMN_NAME
  ) THEN 1 ELSE 0 END AS IS_PK
FROM INFORMATION_SCHEMA.COLUMNS c
WHERE c.TABLE_SCHEMA = %s AND c.TABLE_NAME = %s
ORDER BY c.ORDINAL_POSITION`, d.Placeholder(1), d.Placeholder(2))
}

// SplitTable splits "schema.table" into its parts, using def when the name
// is not qualified.
func SplitTable(name, def string) (schemaName, table string) {
	name = strings.TrimSpace(name)
	if i := strings.LastIndex(name, "."); i >= 0 {
		return name[:i], name[i+1:]
	}
	return def, name
}

// DestinationFromColumns builds a destination for table from catalog rows.
// Primary-key columns and NOT NULL columns become mandatory.
func DestinationFromColumns(table string, cols []ReflectedColumn) (*schema.Destination, error) {
	if len(cols) == 0 {
		return nil, fmt.Errorf("storage: reflect %s: table not found or has no columns", table)
	}
	spec := schema.Spec{Name: table, Table: table}
	for _, c := range cols {
		spec.Fields = append(spec.Fields, c.Name)
		if c.PrimaryKey {
			spec.PrimaryKeys = append(spec.PrimaryKeys, c.Name)
		}
		if c.NotNull || c.PrimaryKey {
			spec.Mandatory = append(spec.Mandatory, c.Name)
		}
	}
	return schema.NewDestination(spec)
}
