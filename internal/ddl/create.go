// Package ddl defines a small model for SQL DDL and renders CREATE TABLE
// statements for destinations that should be bootstrapped before ingest.
//
// Rendering is dialect-aware only where it has to be: identifier quoting
// comes from storage.Dialect, and "create if missing" is spelled
// differently on SQL Server, which lacks CREATE TABLE IF NOT EXISTS.
package ddl

import (
	"context"
	"fmt"
	"strings"

	"sqlsink/internal/storage"
)

// BuildCreateTableSQL renders a CREATE TABLE statement that is a no-op when
// the table already exists.
//
// Rules:
//
//   - t.FQN must be non-empty; each dotted segment is quoted.
//
//   - Each column must have a non-empty Name and SQLType and is rendered as
//
//     <Name> <SQLType> [NOT NULL] [DEFAULT <Default>]
//
//   - Columns with PrimaryKey == true are collected into a trailing
//     PRIMARY KEY (...) clause.
func BuildCreateTableSQL(d storage.Dialect, t TableDef) (string, error) {
	fqn := strings.TrimSpace(t.FQN)
	if fqn == "" {
		return "", fmt.Errorf("ddl: table FQN must not be empty")
	}
	if len(t.Columns) == 0 {
		return "", fmt.Errorf("ddl: at least one column is required")
	}

	cols := make([]string, 0, len(t.Columns)+1)
	pks := make([]string, 0, len(t.Columns))

	for _, c := range t.Columns {
		name := strings.TrimSpace(c.Name)
		if name == "" {
			return "", fmt.Errorf("ddl: column with empty name in table %s", fqn)
		}
		typ := strings.TrimSpace(c.SQLType)
		if typ == "" {
			return "", fmt.Errorf("ddl: column %s missing SQLType", name)
		}

		var sb strings.Builder
		sb.WriteString(d.Quote(name))
		sb.WriteByte(' ')
		sb.WriteString(typ)

		if !c.Nullable {
			sb.WriteString(" NOT NULL")
		}

		if def := strings.TrimSpace(c.Default); def != "" {
			// Default is emitted as raw SQL expression.
			sb.WriteString(" DEFAULT ")
			sb.WriteString(def)
		}

		cols = append(cols, sb.String())

		if c.PrimaryKey {
			pks = append(pks, d.Quote(name))
		}
	}

	if len(pks) > 0 {
		cols = append(cols, fmt.Sprintf("PRIMARY KEY (%s)", strings.Join(pks, ", ")))
	}

	body := fmt.Sprintf("(\n  %s\n)", strings.Join(cols, ",\n  "))
	quoted := d.QuoteFQN(fqn)

	if d.Name == storage.MSSQL.Name {
		return fmt.Sprintf(
			"IF OBJECT_ID(N'%s', N'U') IS NULL\nCREATE TABLE %s %s;",
			strings.ReplaceAll(fqn, "'", "''"), quoted, body,
		), nil
	}
	return fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s %s;", quoted, body), nil
}

// EnsureTable renders t for the repository's dialect and executes it.
func EnsureTable(ctx context.Context, repo storage.Repository, t TableDef) error {
	stmt, err := BuildCreateTableSQL(repo.Dialect(), t)
	if err != nil {
		return err
	}
	if err := repo.Exec(ctx, stmt); err != nil {
		return fmt.Errorf("ddl: create %s: %w", t.FQN, err)
	}
	return nil
}
