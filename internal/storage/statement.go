package storage

import (
	"errors"
	"fmt"
	"regexp"
	"slices"
	"strings"
)

// Kind is the category of a statement. It decides how the statement is
// executed and which result shape is returned.
type Kind int

const (
	// KindRead returns rows (SELECT, PRAGMA, WITH).
	KindRead Kind = iota
	// KindInsert returns the inserted row id and affected row count.
	KindInsert
	// KindWrite returns the affected row count (UPDATE, DELETE).
	KindWrite
	// KindSchema runs DDL without parameter binding.
	KindSchema
	// KindUpsert is an insert-or-update, emulated on the engine.
	KindUpsert
	// KindOther is anything unrecognized, attempted as a parameterized write.
	KindOther
)

// String returns the metric label for the kind.
func (k Kind) String() string {
	switch k {
	case KindRead:
		return "read"
	case KindInsert:
		return "insert"
	case KindWrite:
		return "write"
	case KindSchema:
		return "schema"
	case KindUpsert:
		return "upsert"
	default:
		return "other"
	}
}

// Statement is a typed statement ready for Exec.
type Statement struct {
	Kind Kind
	SQL  string
	Args []any

	// table is set for upserts so a fallback can be attributed.
	table string
}

// Select builds a row-returning statement.
func Select(query string, args ...any) Statement {
	return Statement{Kind: KindRead, SQL: query, Args: args}
}

// Insert builds an insert statement.
func Insert(query string, args ...any) Statement {
	return Statement{Kind: KindInsert, SQL: query, Args: args}
}

// Update builds an update statement.
func Update(query string, args ...any) Statement {
	return Statement{Kind: KindWrite, SQL: query, Args: args}
}

// Delete builds a delete statement.
func Delete(query string, args ...any) Statement {
	return Statement{Kind: KindWrite, SQL: query, Args: args}
}

// Schema builds a DDL statement. Schema statements never bind parameters.
func Schema(query string) Statement {
	return Statement{Kind: KindSchema, SQL: query}
}

var identifierPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// ErrInvalidUpsert is returned when an Upsert description cannot produce a statement.
var ErrInvalidUpsert = errors.New("invalid upsert")

// Upsert describes an insert-or-update with an explicit conflict target.
type Upsert struct {
	Table   string
	Columns []string
	Values  []any
	// ConflictKey names the unique column(s) that identify an existing row.
	ConflictKey []string
	// UpdateColumns are overwritten on conflict. Empty means every column
	// outside ConflictKey.
	UpdateColumns []string
	// DoNothing keeps an existing row untouched on conflict.
	DoNothing bool
}

// Statement renders the upsert as an ON CONFLICT statement.
func (u Upsert) Statement() (Statement, error) {
	if !identifierPattern.MatchString(u.Table) {
		return Statement{}, fmt.Errorf("%w: table %q", ErrInvalidUpsert, u.Table)
	}
	if len(u.Columns) == 0 {
		return Statement{}, fmt.Errorf("%w: no columns", ErrInvalidUpsert)
	}
	if len(u.Columns) != len(u.Values) {
		return Statement{}, fmt.Errorf("%w: %d columns but %d values", ErrInvalidUpsert, len(u.Columns), len(u.Values))
	}
	if len(u.ConflictKey) == 0 {
		return Statement{}, fmt.Errorf("%w: no conflict key", ErrInvalidUpsert)
	}
	for _, col := range u.Columns {
		if !identifierPattern.MatchString(col) {
			return Statement{}, fmt.Errorf("%w: column %q", ErrInvalidUpsert, col)
		}
	}
	for _, col := range u.ConflictKey {
		if !slices.Contains(u.Columns, col) {
			return Statement{}, fmt.Errorf("%w: conflict key %q is not an inserted column", ErrInvalidUpsert, col)
		}
	}

	updates := u.UpdateColumns
	if len(updates) == 0 && !u.DoNothing {
		for _, col := range u.Columns {
			if !slices.Contains(u.ConflictKey, col) {
				updates = append(updates, col)
			}
		}
	}
	for _, col := range updates {
		if !slices.Contains(u.Columns, col) {
			return Statement{}, fmt.Errorf("%w: update column %q is not an inserted column", ErrInvalidUpsert, col)
		}
	}

	var b strings.Builder
	fmt.Fprintf(&b, "INSERT INTO %s (%s) VALUES (%s) ON CONFLICT(%s) ",
		u.Table,
		strings.Join(u.Columns, ", "),
		placeholders(len(u.Columns)),
		strings.Join(u.ConflictKey, ", "),
	)
	if u.DoNothing || len(updates) == 0 {
		b.WriteString("DO NOTHING")
	} else {
		assignments := make([]string, len(updates))
		for i, col := range updates {
			assignments[i] = col + " = excluded." + col
		}
		b.WriteString("DO UPDATE SET " + strings.Join(assignments, ", "))
	}

	return Statement{Kind: KindUpsert, SQL: b.String(), Args: u.Values, table: u.Table}, nil
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}
