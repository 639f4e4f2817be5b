// Package calendar stores per-semester academic dates and no-school days.
package calendar

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	domerrors "github.com/csdept/csweb/internal/errors"
	"github.com/csdept/csweb/internal/storage"
)

const dateLayout = "2006-01-02"

// Calendar is one semester's key dates.
type Calendar struct {
	Semester     string        `json:"semester"`
	FirstDay     string        `json:"firstDay"`
	LastDay      string        `json:"lastDay"`
	FinalsStart  string        `json:"finalsStart"`
	FinalsEnd    string        `json:"finalsEnd"`
	UpdatedAt    string        `json:"updatedAt"`
	NoSchoolDays []NoSchoolDay `json:"noSchoolDays"`
}

// NoSchoolDay is a holiday or break day within a semester.
type NoSchoolDay struct {
	ID       int64  `json:"id"`
	Semester string `json:"semester"`
	Date     string `json:"date"`
	Reason   string `json:"reason"`
}

// Input carries a semester's dates.
type Input struct {
	FirstDay    string `json:"firstDay" binding:"omitempty,datetime=2006-01-02"`
	LastDay     string `json:"lastDay" binding:"omitempty,datetime=2006-01-02"`
	FinalsStart string `json:"finalsStart" binding:"omitempty,datetime=2006-01-02"`
	FinalsEnd   string `json:"finalsEnd" binding:"omitempty,datetime=2006-01-02"`
}

// DayInput adds a no-school day.
type DayInput struct {
	Date   string `json:"date" binding:"required,datetime=2006-01-02"`
	Reason string `json:"reason" binding:"max=200"`
}

// Store is the calendar model.
type Store struct {
	db *storage.DB
}

// NewStore creates a calendar store.
func NewStore(db *storage.DB) *Store {
	return &Store{db: db}
}

// Get returns the semester with its no-school days, or nil when neither
// dates nor days have been saved.
func (s *Store) Get(ctx context.Context, semester string) (*Calendar, error) {
	semester = strings.TrimSpace(semester)
	res, err := s.db.Query(ctx, `SELECT semester, first_day, last_day, finals_start, finals_end, updated_at
		FROM school_calendar WHERE semester = ?`, semester)
	if err != nil {
		return nil, fmt.Errorf("failed to load calendar: %w", err)
	}
	days, err := s.Days(ctx, semester)
	if err != nil {
		return nil, err
	}

	row := res.First()
	if row == nil && len(days) == 0 {
		return nil, nil
	}
	cal := &Calendar{Semester: semester, NoSchoolDays: days}
	if row != nil {
		cal.FirstDay = row.String("first_day")
		cal.LastDay = row.String("last_day")
		cal.FinalsStart = row.String("finals_start")
		cal.FinalsEnd = row.String("finals_end")
		cal.UpdatedAt = row.String("updated_at")
	}
	return cal, nil
}

// Save upserts the semester's dates.
func (s *Store) Save(ctx context.Context, semester string, in Input) (*Calendar, error) {
	semester = strings.TrimSpace(semester)
	if semester == "" {
		return nil, domerrors.NewValidationError("semester", "is required")
	}
	if err := in.validate(); err != nil {
		return nil, err
	}

	_, err := s.db.Query(ctx, `INSERT INTO school_calendar (semester, first_day, last_day, finals_start, finals_end, updated_at)
		VALUES (?, ?, ?, ?, ?, datetime('now'))
		ON DUPLICATE KEY UPDATE first_day = VALUES(first_day), last_day = VALUES(last_day),
			finals_start = VALUES(finals_start), finals_end = VALUES(finals_end), updated_at = VALUES(updated_at)`,
		semester, nullable(in.FirstDay), nullable(in.LastDay), nullable(in.FinalsStart), nullable(in.FinalsEnd))
	if err != nil {
		slog.ErrorContext(ctx, "failed to save calendar", "semester", semester, "error", err)
		return nil, fmt.Errorf("failed to save calendar: %w", err)
	}
	slog.InfoContext(ctx, "calendar saved", "semester", semester)
	return s.Get(ctx, semester)
}

// Days lists a semester's no-school days by date; never nil.
func (s *Store) Days(ctx context.Context, semester string) ([]NoSchoolDay, error) {
	res, err := s.db.Query(ctx,
		"SELECT id, semester, date, reason FROM no_school_days WHERE semester = ? ORDER BY date", semester)
	if err != nil {
		return nil, fmt.Errorf("failed to list no-school days: %w", err)
	}
	out := make([]NoSchoolDay, 0, len(res.Rows))
	for _, row := range res.Rows {
		out = append(out, NoSchoolDay{
			ID:       row.Int64("id"),
			Semester: row.String("semester"),
			Date:     row.String("date"),
			Reason:   row.String("reason"),
		})
	}
	return out, nil
}

// AddDay records a no-school day. A second entry for the same date returns ErrConflict.
func (s *Store) AddDay(ctx context.Context, semester string, in DayInput) (*NoSchoolDay, error) {
	semester = strings.TrimSpace(semester)
	in.Date = strings.TrimSpace(in.Date)
	in.Reason = strings.TrimSpace(in.Reason)
	if semester == "" {
		return nil, domerrors.NewValidationError("semester", "is required")
	}
	if _, err := time.Parse(dateLayout, in.Date); err != nil {
		return nil, domerrors.NewValidationError("date", "must be YYYY-MM-DD")
	}

	res, err := s.db.Query(ctx, "INSERT INTO no_school_days (semester, date, reason) VALUES (?, ?, ?)",
		semester, in.Date, nullable(in.Reason))
	if err != nil {
		if storage.IsUniqueViolation(err) {
			return nil, fmt.Errorf("%w: %s already marked", domerrors.ErrConflict, in.Date)
		}
		return nil, fmt.Errorf("failed to add no-school day: %w", err)
	}
	return &NoSchoolDay{ID: res.InsertID, Semester: semester, Date: in.Date, Reason: in.Reason}, nil
}

// DeleteDay removes a no-school day by id.
func (s *Store) DeleteDay(ctx context.Context, id int64) error {
	res, err := s.db.Query(ctx, "DELETE FROM no_school_days WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete no-school day: %w", err)
	}
	if res.AffectedRows == 0 {
		return domerrors.ErrNotFound
	}
	return nil
}

func (in *Input) validate() error {
	fields := []struct {
		name  string
		value *string
	}{
		{"firstDay", &in.FirstDay},
		{"lastDay", &in.LastDay},
		{"finalsStart", &in.FinalsStart},
		{"finalsEnd", &in.FinalsEnd},
	}
	for _, f := range fields {
		*f.value = strings.TrimSpace(*f.value)
		if *f.value == "" {
			continue
		}
		if _, err := time.Parse(dateLayout, *f.value); err != nil {
			return domerrors.NewValidationError(f.name, "must be YYYY-MM-DD")
		}
	}
	// ISO dates compare correctly as strings.
	if in.FirstDay != "" && in.LastDay != "" && in.LastDay < in.FirstDay {
		return domerrors.NewValidationError("lastDay", "must not be before firstDay")
	}
	if in.FinalsStart != "" && in.FinalsEnd != "" && in.FinalsEnd < in.FinalsStart {
		return domerrors.NewValidationError("finalsEnd", "must not be before finalsStart")
	}
	return nil
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
