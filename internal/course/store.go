package course

import (
	"context"
	"fmt"
	"log/slog"

	domerrors "github.com/csdept/csweb/internal/errors"
	"github.com/csdept/csweb/internal/storage"
)

// MetricsRecorder receives course resolution outcomes.
type MetricsRecorder interface {
	RecordCourseResolution(strategy string)
	RecordGroupResolution(outcome string)
}

// Store is the course model over the storage shim.
type Store struct {
	db       *storage.DB
	resolver *Resolver
	metrics  MetricsRecorder
}

// NewStore creates a course store using DefaultStrategies.
func NewStore(db *storage.DB) *Store {
	return &Store{db: db, resolver: NewResolver()}
}

// SetMetrics sets the recorder for resolution outcomes.
func (s *Store) SetMetrics(m MetricsRecorder) {
	s.metrics = m
}

// SetResolver replaces the identifier resolution chain.
func (s *Store) SetResolver(r *Resolver) {
	s.resolver = r
}

func (s *Store) recordResolution(strategy string) {
	if s.metrics != nil {
		s.metrics.RecordCourseResolution(strategy)
	}
}

func (s *Store) recordGroup(outcome string) {
	if s.metrics != nil {
		s.metrics.RecordGroupResolution(outcome)
	}
}

// CourseByID returns the course with id, or nil when absent. Resources are not loaded.
func (s *Store) CourseByID(ctx context.Context, id int64) (*Course, error) {
	return s.one(ctx, "SELECT "+courseColumns+" FROM courses WHERE id = ?", id)
}

// CourseBySlug returns the course with the exact stored slug, or nil. Resources are not loaded.
func (s *Store) CourseBySlug(ctx context.Context, slug string) (*Course, error) {
	return s.one(ctx, "SELECT "+courseColumns+" FROM courses WHERE slug = ?", slug)
}

func (s *Store) one(ctx context.Context, query string, args ...any) (*Course, error) {
	res, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to load course: %w", err)
	}
	row := res.First()
	if row == nil {
		return nil, nil
	}
	c := courseFromRow(row)
	return &c, nil
}

// AllCourses returns every course ordered by code and section. Resources are not loaded.
func (s *Store) AllCourses(ctx context.Context) ([]Course, error) {
	res, err := s.db.Query(ctx, "SELECT "+courseColumns+" FROM courses ORDER BY code, section, id")
	if err != nil {
		return nil, fmt.Errorf("failed to list courses: %w", err)
	}
	out := make([]Course, 0, len(res.Rows))
	for _, row := range res.Rows {
		out = append(out, courseFromRow(row))
	}
	return out, nil
}

// ListCourses is AllCourses for the admin table.
func (s *Store) ListCourses(ctx context.Context) ([]Course, error) {
	return s.AllCourses(ctx)
}

// Resources returns the course's resources in insertion order; never nil.
func (s *Store) Resources(ctx context.Context, courseID int64) ([]Resource, error) {
	return resourcesFor(ctx, s.db, courseID)
}

func resourcesFor(ctx context.Context, q storage.Querier, courseID int64) ([]Resource, error) {
	res, err := q.Query(ctx,
		"SELECT id, course_id, name, url, description FROM course_resources WHERE course_id = ? ORDER BY position, id",
		courseID)
	if err != nil {
		return nil, fmt.Errorf("failed to load resources for course %d: %w", courseID, err)
	}
	out := make([]Resource, 0, len(res.Rows))
	for _, row := range res.Rows {
		out = append(out, resourceFromRow(row))
	}
	return out, nil
}

// GetCourse resolves identifier (row id or slug, see DefaultStrategies) and
// loads its resources. It returns nil when nothing matches.
func (s *Store) GetCourse(ctx context.Context, identifier string) (*Resolution, error) {
	r, err := s.resolver.Resolve(ctx, s, identifier)
	if err != nil {
		slog.ErrorContext(ctx, "failed to resolve course", "identifier", identifier, "error", err)
		return nil, err
	}
	if r == nil {
		s.recordResolution("none")
		return nil, nil
	}
	s.recordResolution(r.Strategy)

	resources, err := s.Resources(ctx, r.Course.ID)
	if err != nil {
		return nil, err
	}
	r.Course.Resources = resources
	return r, nil
}

// Create inserts a course and its resources in one transaction.
// A slug collision returns ErrConflict.
func (s *Store) Create(ctx context.Context, in Input) (*Course, error) {
	in.Normalize()
	slug := Slug(in.Code, in.Section)
	if slug == "" {
		return nil, domerrors.NewValidationError("code", "must contain letters or digits")
	}

	var id int64
	err := s.db.WithTransaction(ctx, func(conn *storage.Conn) error {
		res, err := conn.Query(ctx, `INSERT INTO courses (code, name, section, professor, semester, description,
			syllabus_file, category, color, crn, credits, days, class_time, location, slug)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			in.Code, in.Name, in.Section, nullable(in.Professor), nullable(in.Semester), nullable(in.Description),
			nullable(in.SyllabusFile), nullable(in.Category), nullable(in.Color), nullable(in.CRN),
			nullable(in.Credits), nullable(in.Days), nullable(in.Time), nullable(in.Location), slug)
		if err != nil {
			return err
		}
		id = res.InsertID
		return replaceResources(ctx, conn, id, in.Resources)
	})
	if err != nil {
		return nil, s.writeError(ctx, "create", slug, err)
	}

	slog.InfoContext(ctx, "course created", "course_id", id, "slug", slug)
	return s.withResources(ctx, id)
}

// Update overwrites a course and replaces all of its resources.
// Returns ErrNotFound when id does not exist.
func (s *Store) Update(ctx context.Context, id int64, in Input) (*Course, error) {
	in.Normalize()
	slug := Slug(in.Code, in.Section)
	if slug == "" {
		return nil, domerrors.NewValidationError("code", "must contain letters or digits")
	}

	err := s.db.WithTransaction(ctx, func(conn *storage.Conn) error {
		res, err := conn.Query(ctx, `UPDATE courses SET code = ?, name = ?, section = ?, professor = ?, semester = ?,
			description = ?, syllabus_file = ?, category = ?, color = ?, crn = ?, credits = ?, days = ?,
			class_time = ?, location = ?, slug = ?, updated_at = datetime('now')
			WHERE id = ?`,
			in.Code, in.Name, in.Section, nullable(in.Professor), nullable(in.Semester), nullable(in.Description),
			nullable(in.SyllabusFile), nullable(in.Category), nullable(in.Color), nullable(in.CRN),
			nullable(in.Credits), nullable(in.Days), nullable(in.Time), nullable(in.Location), slug, id)
		if err != nil {
			return err
		}
		if res.AffectedRows == 0 {
			return domerrors.ErrNotFound
		}
		return replaceResources(ctx, conn, id, in.Resources)
	})
	if err != nil {
		return nil, s.writeError(ctx, "update", slug, err)
	}

	slog.InfoContext(ctx, "course updated", "course_id", id, "slug", slug)
	return s.withResources(ctx, id)
}

// Delete removes a course; its resources cascade. The deleted row is
// returned so callers can clean up the syllabus file.
func (s *Store) Delete(ctx context.Context, id int64) (*Course, error) {
	c, err := s.CourseByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if c == nil {
		return nil, domerrors.ErrNotFound
	}

	if _, err := s.db.Query(ctx, "DELETE FROM courses WHERE id = ?", id); err != nil {
		slog.ErrorContext(ctx, "failed to delete course", "course_id", id, "error", err)
		return nil, fmt.Errorf("failed to delete course: %w", err)
	}
	slog.InfoContext(ctx, "course deleted", "course_id", id, "slug", c.Slug)
	return c, nil
}

// replaceResources deletes every resource of the course and inserts the given list.
func replaceResources(ctx context.Context, conn *storage.Conn, courseID int64, resources []ResourceInput) error {
	if _, err := conn.Query(ctx, "DELETE FROM course_resources WHERE course_id = ?", courseID); err != nil {
		return err
	}
	for i, r := range resources {
		if _, err := conn.Query(ctx,
			"INSERT INTO course_resources (course_id, name, url, description, position) VALUES (?, ?, ?, ?, ?)",
			courseID, r.Name, r.URL, nullable(r.Description), i); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) withResources(ctx context.Context, id int64) (*Course, error) {
	c, err := s.CourseByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if c == nil {
		return nil, domerrors.ErrNotFound
	}
	if c.Resources, err = s.Resources(ctx, id); err != nil {
		return nil, err
	}
	return c, nil
}

func (s *Store) writeError(ctx context.Context, op, slug string, err error) error {
	switch {
	case domerrors.IsNotFound(err):
		return err
	case storage.IsUniqueViolation(err):
		slog.WarnContext(ctx, "course slug already taken", "operation", op, "slug", slug)
		return fmt.Errorf("%w: slug %q", domerrors.ErrConflict, slug)
	default:
		slog.ErrorContext(ctx, "failed to write course", "operation", op, "slug", slug, "error", err)
		return fmt.Errorf("failed to %s course: %w", op, err)
	}
}
