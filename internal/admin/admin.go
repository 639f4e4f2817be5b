// Package admin manages who may use the write routes.
package admin

import (
	"context"
	"fmt"
	"log/slog"
	"net/mail"
	"strings"

	domerrors "github.com/csdept/csweb/internal/errors"
	"github.com/csdept/csweb/internal/sliceutil"
	"github.com/csdept/csweb/internal/storage"
)

// Admin is a named administrator.
type Admin struct {
	Email   string `json:"email"`
	Name    string `json:"name"`
	AddedAt string `json:"addedAt"`
}

// WhitelistEntry is an email granted admin access.
type WhitelistEntry struct {
	Email   string `json:"email"`
	AddedBy string `json:"addedBy"`
	AddedAt string `json:"addedAt"`
}

// Store is the admin model.
type Store struct {
	db *storage.DB
}

// NewStore creates an admin store.
func NewStore(db *storage.DB) *Store {
	return &Store{db: db}
}

// NormalizeEmail lower-cases and trims an address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// IsAdmin reports whether email is in admins or admin_whitelist.
func (s *Store) IsAdmin(ctx context.Context, email string) (bool, error) {
	email = NormalizeEmail(email)
	if email == "" {
		return false, nil
	}
	res, err := s.db.Exec(ctx, storage.Select(`SELECT
		EXISTS (SELECT 1 FROM admins WHERE lower(email) = ?) OR
		EXISTS (SELECT 1 FROM admin_whitelist WHERE lower(email) = ?) AS ok`, email, email))
	if err != nil {
		return false, fmt.Errorf("failed to check admin: %w", err)
	}
	return res.First().Bool("ok"), nil
}

// Admins lists named administrators.
func (s *Store) Admins(ctx context.Context) ([]Admin, error) {
	res, err := s.db.Exec(ctx, storage.Select("SELECT email, name, added_at FROM admins ORDER BY email"))
	if err != nil {
		return nil, fmt.Errorf("failed to list admins: %w", err)
	}
	out := make([]Admin, 0, len(res.Rows))
	for _, row := range res.Rows {
		out = append(out, Admin{Email: row.String("email"), Name: row.String("name"), AddedAt: row.String("added_at")})
	}
	return out, nil
}

// Whitelist lists whitelisted emails.
func (s *Store) Whitelist(ctx context.Context) ([]WhitelistEntry, error) {
	res, err := s.db.Exec(ctx, storage.Select("SELECT email, added_by, added_at FROM admin_whitelist ORDER BY email"))
	if err != nil {
		return nil, fmt.Errorf("failed to list whitelist: %w", err)
	}
	out := make([]WhitelistEntry, 0, len(res.Rows))
	for _, row := range res.Rows {
		out = append(out, WhitelistEntry{
			Email:   row.String("email"),
			AddedBy: row.String("added_by"),
			AddedAt: row.String("added_at"),
		})
	}
	return out, nil
}

// AddToWhitelist grants email admin access. Adding an existing entry is a no-op.
func (s *Store) AddToWhitelist(ctx context.Context, email, addedBy string) (*WhitelistEntry, error) {
	email = NormalizeEmail(email)
	if _, err := mail.ParseAddress(email); err != nil || !strings.Contains(email, "@") {
		return nil, domerrors.NewValidationError("email", "must be a valid email address")
	}

	stmt, err := storage.Upsert{
		Table:       "admin_whitelist",
		Columns:     []string{"email", "added_by"},
		Values:      []any{email, nullable(NormalizeEmail(addedBy))},
		ConflictKey: []string{"email"},
		DoNothing:   true, // keep the original grantor
	}.Statement()
	if err != nil {
		return nil, err
	}
	if _, err := s.db.Exec(ctx, stmt); err != nil {
		slog.ErrorContext(ctx, "failed to whitelist admin", "email", email, "error", err)
		return nil, fmt.Errorf("failed to whitelist admin: %w", err)
	}
	slog.InfoContext(ctx, "admin whitelisted", "email", email, "added_by", addedBy)

	res, err := s.db.Exec(ctx, storage.Select(
		"SELECT email, added_by, added_at FROM admin_whitelist WHERE email = ?", email))
	if err != nil {
		return nil, fmt.Errorf("failed to load whitelist entry: %w", err)
	}
	row := res.First()
	if row == nil {
		return nil, domerrors.ErrNotFound
	}
	return &WhitelistEntry{Email: row.String("email"), AddedBy: row.String("added_by"), AddedAt: row.String("added_at")}, nil
}

// RemoveFromWhitelist revokes a whitelist entry. Named admins are unaffected.
func (s *Store) RemoveFromWhitelist(ctx context.Context, email string) error {
	email = NormalizeEmail(email)
	res, err := s.db.Exec(ctx, storage.Delete("DELETE FROM admin_whitelist WHERE email = ?", email))
	if err != nil {
		return fmt.Errorf("failed to remove whitelist entry: %w", err)
	}
	if res.AffectedRows == 0 {
		return domerrors.ErrNotFound
	}
	slog.InfoContext(ctx, "admin removed from whitelist", "email", email)
	return nil
}

// Bootstrap whitelists each email, typically from configuration at startup.
func (s *Store) Bootstrap(ctx context.Context, emails []string) error {
	for _, email := range sliceutil.Deduplicate(emails, NormalizeEmail) {
		if _, err := s.AddToWhitelist(ctx, email, "bootstrap"); err != nil {
			return fmt.Errorf("failed to bootstrap admin %q: %w", email, err)
		}
	}
	return nil
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
