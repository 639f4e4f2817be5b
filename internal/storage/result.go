package storage

import (
	"database/sql"
	"fmt"
	"strconv"
)

// Row is one result row keyed by column name.
type Row map[string]any

// Result is the outcome of a statement. Reads populate Rows (never nil,
// possibly empty) and Columns in select order; every other kind reports
// AffectedRows and, for inserts and upserts, InsertID.
type Result struct {
	Kind         Kind
	Columns      []string
	Rows         []Row
	AffectedRows int64
	InsertID     int64
}

// First returns the first row, or nil when there are none.
func (r *Result) First() Row {
	if r == nil || len(r.Rows) == 0 {
		return nil
	}
	return r.Rows[0]
}

// String returns the column as text. NULL and missing columns yield "".
func (r Row) String(col string) string {
	switch v := r[col].(type) {
	case nil:
		return ""
	case string:
		return v
	case []byte:
		return string(v)
	case int64:
		return strconv.FormatInt(v, 10)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(v)
	default:
		return fmt.Sprint(v)
	}
}

// Int64 returns the column as an integer. Non-numeric values yield 0.
func (r Row) Int64(col string) int64 {
	switch v := r[col].(type) {
	case int64:
		return v
	case float64:
		return int64(v)
	case bool:
		if v {
			return 1
		}
		return 0
	case string:
		n, _ := strconv.ParseInt(v, 10, 64)
		return n
	case []byte:
		n, _ := strconv.ParseInt(string(v), 10, 64)
		return n
	default:
		return 0
	}
}

// Bool returns the column as a boolean (non-zero integers are true).
func (r Row) Bool(col string) bool {
	return r.Int64(col) != 0
}

// IsNull reports whether the column is NULL or absent.
func (r Row) IsNull(col string) bool {
	return r[col] == nil
}

func scanRows(rows *sql.Rows) ([]string, []Row, error) {
	cols, err := rows.Columns()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read columns: %w", err)
	}

	out := make([]Row, 0)
	for rows.Next() {
		values := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, nil, fmt.Errorf("failed to scan row: %w", err)
		}

		row := make(Row, len(cols))
		for i, col := range cols {
			if b, ok := values[i].([]byte); ok {
				// The driver may reuse the buffer on the next Scan.
				values[i] = append([]byte(nil), b...)
			}
			row[col] = values[i]
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, fmt.Errorf("failed to iterate rows: %w", err)
	}
	return cols, out, nil
}
