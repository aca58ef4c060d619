package storage

import (
	"fmt"
	"strconv"
	"strings"

	"sqlsink/internal/schema"
)

// Dialect captures the SQL differences between backends that matter to the
// sink: placeholder syntax, identifier quoting and the bind-parameter limit
// of a single statement.
type Dialect struct {
	Name string

	// Placeholder renders the n-th (1-based) bind parameter.
	Placeholder func(n int) string

	// Quote quotes a single identifier segment.
	Quote func(id string) string

	// MaxParams bounds the bind parameters of one statement; multi-row
	// inserts are chunked to stay below it.
	MaxParams int
}

var (
	// SQLite uses ?-placeholders; modernc.org/sqlite allows 32766 parameters.
	SQLite = Dialect{Name: "sqlite", Placeholder: questionMark, Quote: quoteDouble, MaxParams: 32766}

	// Postgres uses $n placeholders.
	Postgres = Dialect{Name: "postgres", Placeholder: dollar, Quote: quoteDouble, MaxParams: 65535}

	// MSSQL uses @pN placeholders and caps a request at 2100 parameters.
	MSSQL = Dialect{Name: "mssql", Placeholder: atP, Quote: quoteBracket, MaxParams: 2100}

	// MySQL uses ?-placeholders and backtick identifiers.
	MySQL = Dialect{Name: "mysql", Placeholder: questionMark, Quote: quoteBacktick, MaxParams: 65535}
)

func questionMark(int) string { return "?" }
func dollar(n int) string     { return "$" + strconv.Itoa(n) }
func atP(n int) string        { return "@p" + strconv.Itoa(n) }

func quoteDouble(id string) string   { return `"` + strings.ReplaceAll(id, `"`, `""`) + `"` }
func quoteBracket(id string) string  { return "[" + strings.ReplaceAll(id, "]", "]]") + "]" }
func quoteBacktick(id string) string { return "`" + strings.ReplaceAll(id, "`", "``") + "`" }

// QuoteFQN quotes a possibly schema-qualified name segment by segment:
// public.users → "public"."users".
func (d Dialect) QuoteFQN(name string) string {
	parts := strings.Split(name, ".")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		out = append(out, d.Quote(p))
	}
	return strings.Join(out, ".")
}

func (d Dialect) quoteAll(cols []string) []string {
	out := make([]string, len(cols))
	for i, c := range cols {
		out[i] = d.Quote(c)
	}
	return out
}

// Columns returns the destination fields present in at least one row, in
// destination field order. Unknown keys are ignored.
func Columns(dest *schema.Destination, rows []map[string]any) []string {
	var cols []string
	dest.EachField(func(f string) {
		for _, r := range rows {
			if _, ok := r[f]; ok {
				cols = append(cols, f)
				return
			}
		}
	})
	return cols
}

// RowValues aligns rows to cols. Fields a row does not carry become nil.
func RowValues(cols []string, rows []map[string]any) [][]any {
	out := make([][]any, len(rows))
	for i, r := range rows {
		vals := make([]any, len(cols))
		for j, c := range cols {
			vals[j] = r[c]
		}
		out[i] = vals
	}
	return out
}

// InsertSQL renders a multi-row INSERT of nrows rows over cols.
func (d Dialect) InsertSQL(table string, cols []string, nrows int) (string, error) {
	if len(cols) == 0 {
		return "", fmt.Errorf("%s: insert into %s: no columns to insert", d.Name, table)
	}
	if nrows <= 0 {
		return "", fmt.Errorf("%s: insert into %s: no rows to insert", d.Name, table)
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "INSERT INTO %s (%s) VALUES ", d.QuoteFQN(table), strings.Join(d.quoteAll(cols), ", "))
	n := 1
	for i := 0; i < nrows; i++ {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteByte('(')
		for j := range cols {
			if j > 0 {
				sb.WriteString(", ")
			}
			sb.WriteString(d.Placeholder(n))
			n++
		}
		sb.WriteByte(')')
	}
	return sb.String(), nil
}

// RowsPerStatement returns how many rows of ncols columns fit in one
// statement under MaxParams (at least 1).
func (d Dialect) RowsPerStatement(ncols int) int {
	if ncols <= 0 || d.MaxParams <= 0 {
		return 1
	}
	n := d.MaxParams / ncols
	if n < 1 {
		n = 1
	}
	return n
}

// SelectByKeySQL renders a SELECT of fields constrained by equality on every
// key column, with placeholders numbered in key order.
func (d Dialect) SelectByKeySQL(table string, fields, keys []string) (string, error) {
	if len(keys) == 0 {
		return "", fmt.Errorf("%s: select from %s: destination has no primary key", d.Name, table)
	}
	conds := make([]string, len(keys))
	for i, k := range keys {
		conds[i] = fmt.Sprintf("%s = %s", d.Quote(k), d.Placeholder(i+1))
	}
	return fmt.Sprintf("SELECT %s FROM %s WHERE %s",
		strings.Join(d.quoteAll(fields), ", "),
		d.QuoteFQN(table),
		strings.Join(conds, " AND "),
	), nil
}

// KeyArgs returns the key values in the order of keys.
func KeyArgs(keys []string, key map[string]any) []any {
	out := make([]any, len(keys))
	for i, k := range keys {
		out[i] = key[k]
	}
	return out
}

// ScanRow builds a Row from scanned values. []byte values are converted to
// string so rows compare equal across drivers that return text as bytes.
func ScanRow(fields []string, vals []any) schema.Row {
	row := make(schema.Row, len(fields))
	for i, f := range fields {
		v := vals[i]
		if b, ok := v.([]byte); ok {
			v = string(b)
		}
		row[f] = v
	}
	return row
}
