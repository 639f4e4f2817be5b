// Package faculty stores the per-semester faculty directory.
package faculty

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	domerrors "github.com/csdept/csweb/internal/errors"
	"github.com/csdept/csweb/internal/storage"
)

// Member is one faculty directory entry.
type Member struct {
	ID       int64  `json:"id"`
	Semester string `json:"semester"`
	Name     string `json:"name"`
	Email    string `json:"email"`
	Office   string `json:"office"`
	Phone    string `json:"phone"`
	Title    string `json:"title"`
	Courses  string `json:"courses"`
}

// Input carries the writable fields of a Member.
type Input struct {
	Semester string `json:"semester" binding:"required,max=40"`
	Name     string `json:"name" binding:"required,max=200"`
	Email    string `json:"email" binding:"omitempty,email"`
	Office   string `json:"office" binding:"max=80"`
	Phone    string `json:"phone" binding:"max=40"`
	Title    string `json:"title" binding:"max=120"`
	Courses  string `json:"courses" binding:"max=500"`
}

// Semester is a directory's publication state.
type Semester struct {
	Semester  string `json:"semester"`
	Published bool   `json:"published"`
	UpdatedAt string `json:"updatedAt"`
}

// Store is the faculty model.
type Store struct {
	db *storage.DB
}

// NewStore creates a faculty store.
func NewStore(db *storage.DB) *Store {
	return &Store{db: db}
}

const memberColumns = "id, semester, name, email, office, phone, title, courses"

func memberFromRow(r storage.Row) Member {
	return Member{
		ID:       r.Int64("id"),
		Semester: r.String("semester"),
		Name:     r.String("name"),
		Email:    r.String("email"),
		Office:   r.String("office"),
		Phone:    r.String("phone"),
		Title:    r.String("title"),
		Courses:  r.String("courses"),
	}
}

// List returns a semester's members ordered by name.
func (s *Store) List(ctx context.Context, semester string) ([]Member, error) {
	res, err := s.db.Exec(ctx, storage.Select(
		"SELECT "+memberColumns+" FROM faculty WHERE semester = ? ORDER BY name COLLATE NOCASE, id",
		strings.TrimSpace(semester)))
	if err != nil {
		return nil, fmt.Errorf("failed to list faculty: %w", err)
	}
	out := make([]Member, 0, len(res.Rows))
	for _, row := range res.Rows {
		out = append(out, memberFromRow(row))
	}
	return out, nil
}

// ListPublished is List restricted to published semesters. An unpublished
// semester yields an empty list.
func (s *Store) ListPublished(ctx context.Context, semester string) ([]Member, error) {
	sem, err := s.Semester(ctx, semester)
	if err != nil {
		return nil, err
	}
	if sem == nil || !sem.Published {
		return []Member{}, nil
	}
	return s.List(ctx, semester)
}

// Get returns the member with id, or nil.
func (s *Store) Get(ctx context.Context, id int64) (*Member, error) {
	res, err := s.db.Exec(ctx, storage.Select("SELECT "+memberColumns+" FROM faculty WHERE id = ?", id))
	if err != nil {
		return nil, fmt.Errorf("failed to load faculty member: %w", err)
	}
	row := res.First()
	if row == nil {
		return nil, nil
	}
	m := memberFromRow(row)
	return &m, nil
}

// Create adds a member. The semester row is created unpublished if missing.
func (s *Store) Create(ctx context.Context, in Input) (*Member, error) {
	if err := in.normalize(); err != nil {
		return nil, err
	}

	var id int64
	err := s.db.WithTransaction(ctx, func(conn *storage.Conn) error {
		// Adding a member must not change an existing semester's state.
		stmt, err := storage.Upsert{
			Table:       "faculty_semesters",
			Columns:     []string{"semester"},
			Values:      []any{in.Semester},
			ConflictKey: []string{"semester"},
		}.Statement()
		if err != nil {
			return err
		}
		if _, err := conn.Exec(ctx, stmt); err != nil {
			return err
		}

		res, err := conn.Exec(ctx, storage.Insert(
			"INSERT INTO faculty (semester, name, email, office, phone, title, courses) VALUES (?, ?, ?, ?, ?, ?, ?)",
			in.Semester, in.Name, nullable(in.Email), nullable(in.Office), nullable(in.Phone),
			nullable(in.Title), nullable(in.Courses)))
		if err != nil {
			return err
		}
		id = res.InsertID
		return nil
	})
	if err != nil {
		slog.ErrorContext(ctx, "failed to create faculty member", "semester", in.Semester, "error", err)
		return nil, fmt.Errorf("failed to create faculty member: %w", err)
	}
	return s.Get(ctx, id)
}

// Update overwrites a member. Returns ErrNotFound when id does not exist.
func (s *Store) Update(ctx context.Context, id int64, in Input) (*Member, error) {
	if err := in.normalize(); err != nil {
		return nil, err
	}
	res, err := s.db.Exec(ctx, storage.Update(
		`UPDATE faculty SET semester = ?, name = ?, email = ?, office = ?, phone = ?, title = ?, courses = ?
		WHERE id = ?`,
		in.Semester, in.Name, nullable(in.Email), nullable(in.Office), nullable(in.Phone),
		nullable(in.Title), nullable(in.Courses), id))
	if err != nil {
		return nil, fmt.Errorf("failed to update faculty member: %w", err)
	}
	if res.AffectedRows == 0 {
		return nil, domerrors.ErrNotFound
	}
	return s.Get(ctx, id)
}

// Delete removes a member. Returns ErrNotFound when id does not exist.
func (s *Store) Delete(ctx context.Context, id int64) error {
	res, err := s.db.Exec(ctx, storage.Delete("DELETE FROM faculty WHERE id = ?", id))
	if err != nil {
		return fmt.Errorf("failed to delete faculty member: %w", err)
	}
	if res.AffectedRows == 0 {
		return domerrors.ErrNotFound
	}
	return nil
}

// Semesters lists every semester with a directory, newest first by update time.
func (s *Store) Semesters(ctx context.Context) ([]Semester, error) {
	res, err := s.db.Exec(ctx, storage.Select(
		"SELECT semester, published, updated_at FROM faculty_semesters ORDER BY updated_at DESC, semester"))
	if err != nil {
		return nil, fmt.Errorf("failed to list faculty semesters: %w", err)
	}
	out := make([]Semester, 0, len(res.Rows))
	for _, row := range res.Rows {
		out = append(out, semesterFromRow(row))
	}
	return out, nil
}

// Semester returns one semester's state, or nil.
func (s *Store) Semester(ctx context.Context, semester string) (*Semester, error) {
	res, err := s.db.Exec(ctx, storage.Select(
		"SELECT semester, published, updated_at FROM faculty_semesters WHERE semester = ?",
		strings.TrimSpace(semester)))
	if err != nil {
		return nil, fmt.Errorf("failed to load faculty semester: %w", err)
	}
	row := res.First()
	if row == nil {
		return nil, nil
	}
	sem := semesterFromRow(row)
	return &sem, nil
}

// SetPublished publishes or hides a semester's directory.
func (s *Store) SetPublished(ctx context.Context, semester string, published bool) (*Semester, error) {
	semester = strings.TrimSpace(semester)
	if semester == "" {
		return nil, domerrors.NewValidationError("semester", "is required")
	}
	stmt, err := storage.Upsert{
		Table:       "faculty_semesters",
		Columns:     []string{"semester", "published", "updated_at"},
		Values:      []any{semester, published, time.Now().UTC().Format(time.DateTime)},
		ConflictKey: []string{"semester"},
	}.Statement()
	if err != nil {
		return nil, err
	}
	if _, err := s.db.Exec(ctx, stmt); err != nil {
		slog.ErrorContext(ctx, "failed to publish faculty semester", "semester", semester, "error", err)
		return nil, fmt.Errorf("failed to publish faculty semester: %w", err)
	}
	slog.InfoContext(ctx, "faculty semester updated", "semester", semester, "published", published)
	return s.Semester(ctx, semester)
}

func semesterFromRow(r storage.Row) Semester {
	return Semester{
		Semester:  r.String("semester"),
		Published: r.Bool("published"),
		UpdatedAt: r.String("updated_at"),
	}
}

func (in *Input) normalize() error {
	for _, f := range []*string{&in.Semester, &in.Name, &in.Email, &in.Office, &in.Phone, &in.Title, &in.Courses} {
		*f = strings.TrimSpace(*f)
	}
	if in.Semester == "" {
		return domerrors.NewValidationError("semester", "is required")
	}
	if in.Name == "" {
		return domerrors.NewValidationError("name", "is required")
	}
	return nil
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
