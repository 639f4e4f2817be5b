package storage

import (
	"context"
	"errors"
	"testing"
)

func TestIsUniqueViolation(t *testing.T) {
	t.Parallel()
	db := setupTestDB(t)
	ctx := context.Background()

	q := "INSERT INTO courses (code, name, section, slug) VALUES (?, ?, ?, ?)"
	if _, err := db.Query(ctx, q, "CPS 310", "DS", "01", "cps310-01"); err != nil {
		t.Fatalf("insert failed: %v", err)
	}
	_, err := db.Query(ctx, q, "CPS 310", "DS", "01", "cps310-01")
	if !IsUniqueViolation(err) {
		t.Errorf("IsUniqueViolation(%v) = false, want true", err)
	}
	if IsUniqueViolation(nil) || IsUniqueViolation(errors.New("other")) {
		t.Error("unexpected true for unrelated errors")
	}
}

func TestIsForeignKeyViolation(t *testing.T) {
	t.Parallel()
	db := setupTestDB(t)

	_, err := db.Query(context.Background(), "INSERT INTO course_resources (course_id, name, url) VALUES (?, ?, ?)", 999, "x", "y")
	if !IsForeignKeyViolation(err) {
		t.Errorf("IsForeignKeyViolation(%v) = false, want true", err)
	}
	if IsForeignKeyViolation(nil) {
		t.Error("nil must not be a violation")
	}
}
