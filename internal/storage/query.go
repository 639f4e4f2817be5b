package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"reflect"
	"regexp"
	"strings"
	"time"
)

// executor is satisfied by both *sql.DB and *sql.Conn.
type executor interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// Querier is the statement surface shared by DB and Conn. Model stores
// accept it so the same code runs inside or outside a transaction.
type Querier interface {
	Query(ctx context.Context, query string, params ...any) (*Result, error)
	Exec(ctx context.Context, stmt Statement) (*Result, error)
}

var (
	_ Querier = (*DB)(nil)
	_ Querier = (*Conn)(nil)
)

var (
	duplicateKeyPattern = regexp.MustCompile(`(?i)\bON\s+DUPLICATE\s+KEY\s+UPDATE\b`)
	leadingWordPattern  = regexp.MustCompile(`^\s*([A-Za-z]+)`)
)

// Classify returns the kind a dialect statement is executed as. The
// duplicate-key check runs first because such statements also start with INSERT.
func Classify(query string) Kind {
	if duplicateKeyPattern.MatchString(query) {
		return KindUpsert
	}

	m := leadingWordPattern.FindStringSubmatch(stripLeadingComments(query))
	if m == nil {
		return KindOther
	}
	switch strings.ToUpper(m[1]) {
	case "SELECT", "PRAGMA", "WITH":
		return KindRead
	case "INSERT":
		return KindInsert
	case "UPDATE", "DELETE":
		return KindWrite
	case "CREATE", "DROP", "ALTER":
		return KindSchema
	default:
		return KindOther
	}
}

func stripLeadingComments(query string) string {
	s := strings.TrimSpace(query)
	for {
		switch {
		case strings.HasPrefix(s, "--"):
			idx := strings.IndexByte(s, '\n')
			if idx < 0 {
				return ""
			}
			s = strings.TrimSpace(s[idx+1:])
		case strings.HasPrefix(s, "/*"):
			idx := strings.Index(s, "*/")
			if idx < 0 {
				return ""
			}
			s = strings.TrimSpace(s[idx+2:])
		default:
			return s
		}
	}
}

// normalizeParams maps absent values (nil, typed nil pointers, slices, maps)
// to SQL NULL. The engine rejects typed nils.
func normalizeParams(params []any) []any {
	if len(params) == 0 {
		return nil
	}
	out := make([]any, len(params))
	for i, p := range params {
		out[i] = normalizeParam(p)
	}
	return out
}

func normalizeParam(p any) any {
	if p == nil {
		return nil
	}
	v := reflect.ValueOf(p)
	switch v.Kind() {
	case reflect.Pointer, reflect.Interface:
		if v.IsNil() {
			return nil
		}
		return normalizeParam(v.Elem().Interface())
	case reflect.Map, reflect.Slice:
		if v.IsNil() {
			return nil
		}
	}
	return p
}

func (db *DB) runText(ctx context.Context, ex executor, query string, params []any) (*Result, error) {
	kind := Classify(query)
	if kind == KindUpsert {
		return db.runDuplicateKeyUpsert(ctx, ex, query, params)
	}
	return db.run(ctx, ex, Statement{Kind: kind, SQL: query, Args: params})
}

func (db *DB) run(ctx context.Context, ex executor, stmt Statement) (*Result, error) {
	start := time.Now()
	res, err := db.execute(ctx, ex, stmt)
	db.observe(ctx, stmt, start, err)
	if err != nil {
		slog.ErrorContext(ctx, "failed to execute statement",
			"kind", stmt.Kind.String(),
			"table", stmt.table,
			"query", abbreviate(stmt.SQL),
			"error", err)
		return nil, fmt.Errorf("failed to execute %s statement: %w", stmt.Kind, err)
	}
	return res, nil
}

func (db *DB) execute(ctx context.Context, ex executor, stmt Statement) (*Result, error) {
	switch stmt.Kind {
	case KindRead:
		rows, err := ex.QueryContext(ctx, stmt.SQL, normalizeParams(stmt.Args)...)
		if err != nil {
			return nil, err
		}
		defer func() { _ = rows.Close() }()
		cols, out, err := scanRows(rows)
		if err != nil {
			return nil, err
		}
		return &Result{Kind: KindRead, Columns: cols, Rows: out}, nil

	case KindSchema:
		if _, err := ex.ExecContext(ctx, stmt.SQL); err != nil {
			return nil, err
		}
		return &Result{Kind: KindSchema}, nil

	default:
		r, err := ex.ExecContext(ctx, stmt.SQL, normalizeParams(stmt.Args)...)
		if err != nil {
			return nil, err
		}
		res := &Result{Kind: stmt.Kind}
		res.AffectedRows, _ = r.RowsAffected()
		if stmt.Kind != KindWrite {
			res.InsertID, _ = r.LastInsertId()
		}
		return res, nil
	}
}

func (db *DB) observe(ctx context.Context, stmt Statement, start time.Time, err error) {
	duration := time.Since(start)
	if db.metrics != nil {
		status := "success"
		if err != nil {
			status = "error"
		}
		db.metrics.RecordQuery(stmt.Kind.String(), status, duration.Seconds())
	}
	if duration > db.slowThreshold {
		slog.WarnContext(ctx, "slow database query",
			"kind", stmt.Kind.String(),
			"query", abbreviate(stmt.SQL),
			"duration_ms", duration.Milliseconds())
	}
}

// abbreviate collapses whitespace and truncates a statement for log output.
func abbreviate(query string) string {
	s := strings.Join(strings.Fields(query), " ")
	if len(s) > 200 {
		return s[:200] + "..."
	}
	return s
}
