package storage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"
)

var (
	// insertClausePattern captures table, column list and value list of an INSERT.
	insertClausePattern = regexp.MustCompile(`(?is)^\s*INSERT\s+INTO\s+([A-Za-z_][A-Za-z0-9_]*)\s*\(([^)]*)\)\s*VALUES\s*\((.*?)\)\s*ON\s+DUPLICATE\s+KEY\s+UPDATE\s+(.*?)\s*;?\s*$`)
	valuesReferencePattern = regexp.MustCompile(`(?i)\bVALUES\s*\(\s*([A-Za-z_][A-Za-z0-9_]*)\s*\)`)
	residualValuesPattern  = regexp.MustCompile(`(?i)\bVALUES\s*\(`)
)

var errMalformedUpsert = errors.New("malformed duplicate-key upsert")

// duplicateKeyUpsert is a parsed INSERT ... ON DUPLICATE KEY UPDATE statement.
type duplicateKeyUpsert struct {
	table        string
	columns      []string
	values       string
	updateClause string
}

func parseDuplicateKeyUpsert(query string) (*duplicateKeyUpsert, error) {
	m := insertClausePattern.FindStringSubmatch(query)
	if m == nil {
		return nil, fmt.Errorf("%w: unrecognized insert clause", errMalformedUpsert)
	}

	var columns []string
	for col := range strings.SplitSeq(m[2], ",") {
		col = strings.Trim(strings.TrimSpace(col), "`\"")
		if !identifierPattern.MatchString(col) {
			return nil, fmt.Errorf("%w: bad column %q", errMalformedUpsert, col)
		}
		columns = append(columns, col)
	}

	return &duplicateKeyUpsert{
		table:        m[1],
		columns:      columns,
		values:       strings.TrimSpace(m[3]),
		updateClause: strings.TrimSpace(m[4]),
	}, nil
}

// onConflict rewrites the statement for the engine. The first inserted
// column is taken as the conflict target.
func (u *duplicateKeyUpsert) onConflict() (string, error) {
	clause := valuesReferencePattern.ReplaceAllString(u.updateClause, "excluded.$1")
	if residualValuesPattern.MatchString(clause) {
		return "", fmt.Errorf("%w: unresolved VALUES() reference", errMalformedUpsert)
	}
	if !balancedParens(clause) || !balancedParens(u.values) {
		return "", fmt.Errorf("%w: unbalanced parentheses", errMalformedUpsert)
	}
	return fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s) ON CONFLICT(%s) DO UPDATE SET %s",
		u.table, strings.Join(u.columns, ", "), u.values, u.columns[0], clause), nil
}

// replace is the degraded form: the whole row is replaced, so columns
// outside the insert list are reset to their defaults.
func (u *duplicateKeyUpsert) replace() string {
	return fmt.Sprintf("INSERT OR REPLACE INTO %s (%s) VALUES (%s)",
		u.table, strings.Join(u.columns, ", "), u.values)
}

// insertParams drops parameters that belonged to the update clause.
func (u *duplicateKeyUpsert) insertParams(params []any) []any {
	n := strings.Count(u.values, "?")
	if n < len(params) {
		return params[:n]
	}
	return params
}

func balancedParens(s string) bool {
	depth := 0
	for _, r := range s {
		switch r {
		case '(':
			depth++
		case ')':
			depth--
			if depth < 0 {
				return false
			}
		}
	}
	return depth == 0
}

func (db *DB) runDuplicateKeyUpsert(ctx context.Context, ex executor, query string, params []any) (*Result, error) {
	parsed, err := parseDuplicateKeyUpsert(query)
	if err != nil {
		slog.ErrorContext(ctx, "failed to parse upsert", "query", abbreviate(query), "error", err)
		return nil, err
	}
	args := parsed.insertParams(params)

	rewritten, rewriteErr := parsed.onConflict()
	if rewriteErr == nil {
		start := time.Now()
		stmt := Statement{Kind: KindUpsert, SQL: rewritten, Args: args, table: parsed.table}
		res, execErr := db.execute(ctx, ex, stmt)
		db.observe(ctx, stmt, start, execErr)
		if execErr == nil {
			return res, nil
		}
		rewriteErr = execErr
	}

	slog.WarnContext(ctx, "upsert degraded to full-row replace",
		"table", parsed.table,
		"reason", rewriteErr.Error())
	if db.metrics != nil {
		db.metrics.RecordUpsertFallback(parsed.table)
	}

	res, err := db.run(ctx, ex, Statement{Kind: KindUpsert, SQL: parsed.replace(), Args: args, table: parsed.table})
	if err != nil {
		return nil, errors.Join(rewriteErr, err)
	}
	return res, nil
}
