package storage

import (
	"context"
	"errors"
	"testing"
)

func TestParseDuplicateKeyUpsert(t *testing.T) {
	t.Parallel()
	q := "INSERT INTO comp_exam_settings (id, location, notes) VALUES (?, ?, ?) ON DUPLICATE KEY UPDATE location = VALUES(location), notes = VALUES( notes );"

	u, err := parseDuplicateKeyUpsert(q)
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if u.table != "comp_exam_settings" {
		t.Errorf("table = %q", u.table)
	}
	if len(u.columns) != 3 || u.columns[0] != "id" || u.columns[2] != "notes" {
		t.Errorf("columns = %v", u.columns)
	}

	got, err := u.onConflict()
	if err != nil {
		t.Fatalf("rewrite failed: %v", err)
	}
	want := "INSERT INTO comp_exam_settings (id, location, notes) VALUES (?, ?, ?) ON CONFLICT(id) DO UPDATE SET location = excluded.location, notes = excluded.notes"
	if got != want {
		t.Errorf("rewrite =\n%s\nwant\n%s", got, want)
	}

	if r := u.replace(); r != "INSERT OR REPLACE INTO comp_exam_settings (id, location, notes) VALUES (?, ?, ?)" {
		t.Errorf("replace = %q", r)
	}
}

func TestParseDuplicateKeyUpsert_ValuesWithFunctions(t *testing.T) {
	t.Parallel()
	q := "INSERT INTO kv (id, name, note) VALUES (?, ?, lower('X')) ON DUPLICATE KEY UPDATE name = VALUES(name)"
	u, err := parseDuplicateKeyUpsert(q)
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if u.values != "?, ?, lower('X')" {
		t.Errorf("values = %q", u.values)
	}
	if got := u.insertParams([]any{1, "a", "extra"}); len(got) != 2 {
		t.Errorf("insertParams kept %d params, want 2", len(got))
	}
}

func TestParseDuplicateKeyUpsert_Rejects(t *testing.T) {
	t.Parallel()
	if _, err := parseDuplicateKeyUpsert("UPDATE kv SET x = 1 ON DUPLICATE KEY UPDATE x = 2"); !errors.Is(err, errMalformedUpsert) {
		t.Errorf("expected errMalformedUpsert, got %v", err)
	}

	u, err := parseDuplicateKeyUpsert("INSERT INTO kv (id, name) VALUES (?, ?) ON DUPLICATE KEY UPDATE name = VALUES(name")
	if err != nil {
		t.Fatalf("insert clause should parse: %v", err)
	}
	if _, err := u.onConflict(); !errors.Is(err, errMalformedUpsert) {
		t.Errorf("expected rewrite failure, got %v", err)
	}
}

func TestUpsert_Idempotent(t *testing.T) {
	t.Parallel()
	db := setupTestDB(t)
	ctx := context.Background()
	createKV(t, db)

	q := "INSERT INTO kv (id, name, hits) VALUES (?, ?, ?) ON DUPLICATE KEY UPDATE name = VALUES(name), hits = VALUES(hits)"
	for range 2 {
		if _, err := db.Query(ctx, q, 1, "alpha", 3); err != nil {
			t.Fatalf("upsert failed: %v", err)
		}
	}

	res, err := db.Query(ctx, "SELECT id, name, hits FROM kv")
	if err != nil {
		t.Fatalf("select failed: %v", err)
	}
	if len(res.Rows) != 1 {
		t.Fatalf("rows = %d, want exactly 1", len(res.Rows))
	}
	row := res.First()
	if row.String("name") != "alpha" || row.Int64("hits") != 3 {
		t.Errorf("row = %v", row)
	}
}

func TestUpsert_UpdatesOnlyNamedColumns(t *testing.T) {
	t.Parallel()
	db := setupTestDB(t)
	ctx := context.Background()
	createKV(t, db)

	if _, err := db.Query(ctx, "INSERT INTO kv (id, name, note, hits) VALUES (1, 'old', 'custom', 9)"); err != nil {
		t.Fatalf("seed failed: %v", err)
	}
	if _, err := db.Query(ctx, "INSERT INTO kv (id, name) VALUES (?, ?) ON DUPLICATE KEY UPDATE name = VALUES(name)", 1, "new"); err != nil {
		t.Fatalf("upsert failed: %v", err)
	}

	row := mustFirst(t, db, "SELECT name, note, hits FROM kv WHERE id = 1")
	if row.String("name") != "new" || row.String("note") != "custom" || row.Int64("hits") != 9 {
		t.Errorf("row = %v, want untouched note/hits", row)
	}
}

func TestUpsert_MalformedClauseFallsBackToReplace(t *testing.T) {
	t.Parallel()
	db := setupTestDB(t)
	ctx := context.Background()
	createKV(t, db)
	rec := newFakeRecorder()
	db.SetMetrics(rec)

	q := "INSERT INTO kv (id, name) VALUES (?, ?) ON DUPLICATE KEY UPDATE name = VALUES(name"

	// Fresh key: behaves as a plain insert.
	if _, err := db.Query(ctx, q, 1, "fresh"); err != nil {
		t.Fatalf("fallback insert failed: %v", err)
	}
	row := mustFirst(t, db, "SELECT name, note, hits FROM kv WHERE id = 1")
	if row.String("name") != "fresh" || row.String("note") != "dflt" {
		t.Errorf("fresh row = %v", row)
	}

	// Existing key: the whole row is replaced, so columns outside the
	// insert list revert to their defaults.
	if _, err := db.Query(ctx, "UPDATE kv SET note = 'custom', hits = 5 WHERE id = 1"); err != nil {
		t.Fatalf("update failed: %v", err)
	}
	if _, err := db.Query(ctx, q, 1, "replaced"); err != nil {
		t.Fatalf("fallback replace failed: %v", err)
	}
	row = mustFirst(t, db, "SELECT name, note, hits FROM kv WHERE id = 1")
	if row.String("name") != "replaced" {
		t.Errorf("name = %q, want replaced", row.String("name"))
	}
	if row.String("note") != "dflt" || row.Int64("hits") != 0 {
		t.Errorf("untouched columns = note %q hits %d, want defaults", row.String("note"), row.Int64("hits"))
	}

	if rec.fallbacks["kv"] != 2 {
		t.Errorf("fallbacks = %v, want 2 for kv", rec.fallbacks)
	}
}

func TestUpsert_ConflictTargetMismatchFallsBack(t *testing.T) {
	t.Parallel()
	db := setupTestDB(t)
	ctx := context.Background()
	if _, err := db.Query(ctx, "CREATE TABLE people (id INTEGER PRIMARY KEY AUTOINCREMENT, name TEXT, email TEXT UNIQUE)"); err != nil {
		t.Fatalf("create failed: %v", err)
	}
	rec := newFakeRecorder()
	db.SetMetrics(rec)

	// name is listed first but carries no unique constraint.
	q := "INSERT INTO people (name, email) VALUES (?, ?) ON DUPLICATE KEY UPDATE name = VALUES(name)"
	if _, err := db.Query(ctx, q, "Ada", "ada@example.edu"); err != nil {
		t.Fatalf("first upsert failed: %v", err)
	}
	if _, err := db.Query(ctx, q, "Ada L.", "ada@example.edu"); err != nil {
		t.Fatalf("second upsert failed: %v", err)
	}

	res, err := db.Query(ctx, "SELECT name FROM people")
	if err != nil {
		t.Fatalf("select failed: %v", err)
	}
	if len(res.Rows) != 1 || res.First().String("name") != "Ada L." {
		t.Errorf("rows = %v", res.Rows)
	}
	if rec.fallbacks["people"] != 2 {
		t.Errorf("fallbacks = %v", rec.fallbacks)
	}
}

func TestUpsert_FallbackFailurePropagates(t *testing.T) {
	t.Parallel()
	db := setupTestDB(t)
	ctx := context.Background()

	_, err := db.Query(ctx, "INSERT INTO missing (id) VALUES (?) ON DUPLICATE KEY UPDATE id = VALUES(id)", 1)
	if err == nil {
		t.Fatal("expected error when both paths fail")
	}
}

func TestUpsert_UnparseableInsertPropagates(t *testing.T) {
	t.Parallel()
	db := setupTestDB(t)

	_, err := db.Query(context.Background(), "INSERT INTO kv SELECT * FROM kv ON DUPLICATE KEY UPDATE id = 1")
	if !errors.Is(err, errMalformedUpsert) {
		t.Errorf("expected errMalformedUpsert, got %v", err)
	}
}

func mustFirst(t *testing.T, db *DB, query string) Row {
	t.Helper()
	res, err := db.Query(context.Background(), query)
	if err != nil {
		t.Fatalf("query %q failed: %v", query, err)
	}
	if len(res.Rows) == 0 {
		t.Fatalf("query %q returned no rows", query)
	}
	return res.First()
}
