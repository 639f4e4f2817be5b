// Package event implements the department events calendar.
package event

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	domerrors "github.com/csdept/csweb/internal/errors"
	"github.com/csdept/csweb/internal/richtext"
	"github.com/csdept/csweb/internal/storage"
)

// summaryRunes bounds Event.Summary.
const summaryRunes = 160

// Accepted date layouts for start and end dates.
var dateLayouts = []string{"2006-01-02", "2006-01-02T15:04", "2006-01-02T15:04:05", time.RFC3339}

// Event is one calendar entry. Dates are stored as given, in one of dateLayouts.
type Event struct {
	ID          int64  `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Summary     string `json:"summary"`
	Location    string `json:"location"`
	StartDate   string `json:"startDate"`
	EndDate     string `json:"endDate"`
	Category    string `json:"category"`
	Color       string `json:"color"`
	Link        string `json:"link"`
}

// Input carries the writable fields of an event.
type Input struct {
	Title       string `json:"title" binding:"required,max=200"`
	Description string `json:"description"`
	Location    string `json:"location" binding:"max=200"`
	StartDate   string `json:"startDate" binding:"required"`
	EndDate     string `json:"endDate"`
	Category    string `json:"category" binding:"max=80"`
	Color       string `json:"color" binding:"omitempty,hexcolor"`
	Link        string `json:"link" binding:"omitempty,url"`
}

const eventColumns = "id, title, description, location, start_date, end_date, category, color, link"

func fromRow(r storage.Row) Event {
	e := Event{
		ID:          r.Int64("id"),
		Title:       r.String("title"),
		Description: r.String("description"),
		Location:    r.String("location"),
		StartDate:   r.String("start_date"),
		EndDate:     r.String("end_date"),
		Category:    r.String("category"),
		Color:       r.String("color"),
		Link:        r.String("link"),
	}
	e.Summary = richtext.Summary(e.Description, summaryRunes)
	return e
}

// Store is the events model.
type Store struct {
	db  *storage.DB
	now func() time.Time
}

// NewStore creates an events store.
func NewStore(db *storage.DB) *Store {
	return &Store{db: db, now: time.Now}
}

// List returns every event ordered by start date.
func (s *Store) List(ctx context.Context) ([]Event, error) {
	return s.list(ctx, "SELECT "+eventColumns+" FROM events ORDER BY start_date, id")
}

// Upcoming returns events that have not ended yet. An event without an end
// date ends on its start date.
func (s *Store) Upcoming(ctx context.Context) ([]Event, error) {
	today := s.now().Format("2006-01-02")
	return s.list(ctx, "SELECT "+eventColumns+` FROM events
		WHERE substr(COALESCE(NULLIF(end_date, ''), start_date), 1, 10) >= ?
		ORDER BY start_date, id`, today)
}

func (s *Store) list(ctx context.Context, query string, args ...any) ([]Event, error) {
	res, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list events: %w", err)
	}
	out := make([]Event, 0, len(res.Rows))
	for _, row := range res.Rows {
		out = append(out, fromRow(row))
	}
	return out, nil
}

// Get returns the event with id, or nil.
func (s *Store) Get(ctx context.Context, id int64) (*Event, error) {
	res, err := s.db.Query(ctx, "SELECT "+eventColumns+" FROM events WHERE id = ?", id)
	if err != nil {
		return nil, fmt.Errorf("failed to load event: %w", err)
	}
	row := res.First()
	if row == nil {
		return nil, nil
	}
	e := fromRow(row)
	return &e, nil
}

// Create inserts an event.
func (s *Store) Create(ctx context.Context, in Input) (*Event, error) {
	if err := in.normalize(); err != nil {
		return nil, err
	}
	res, err := s.db.Query(ctx, `INSERT INTO events (title, description, location, start_date, end_date, category, color, link)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		in.Title, nullable(in.Description), nullable(in.Location), in.StartDate,
		nullable(in.EndDate), nullable(in.Category), nullable(in.Color), nullable(in.Link))
	if err != nil {
		slog.ErrorContext(ctx, "failed to create event", "title", in.Title, "error", err)
		return nil, fmt.Errorf("failed to create event: %w", err)
	}
	slog.InfoContext(ctx, "event created", "event_id", res.InsertID)
	return s.Get(ctx, res.InsertID)
}

// Update overwrites an event. Returns ErrNotFound when id does not exist.
func (s *Store) Update(ctx context.Context, id int64, in Input) (*Event, error) {
	if err := in.normalize(); err != nil {
		return nil, err
	}
	res, err := s.db.Query(ctx, `UPDATE events SET title = ?, description = ?, location = ?, start_date = ?,
		end_date = ?, category = ?, color = ?, link = ?, updated_at = datetime('now') WHERE id = ?`,
		in.Title, nullable(in.Description), nullable(in.Location), in.StartDate,
		nullable(in.EndDate), nullable(in.Category), nullable(in.Color), nullable(in.Link), id)
	if err != nil {
		slog.ErrorContext(ctx, "failed to update event", "event_id", id, "error", err)
		return nil, fmt.Errorf("failed to update event: %w", err)
	}
	if res.AffectedRows == 0 {
		return nil, domerrors.ErrNotFound
	}
	return s.Get(ctx, id)
}

// Delete removes an event. Returns ErrNotFound when id does not exist.
func (s *Store) Delete(ctx context.Context, id int64) error {
	res, err := s.db.Query(ctx, "DELETE FROM events WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete event: %w", err)
	}
	if res.AffectedRows == 0 {
		return domerrors.ErrNotFound
	}
	slog.InfoContext(ctx, "event deleted", "event_id", id)
	return nil
}

func (in *Input) normalize() error {
	in.Title = strings.TrimSpace(in.Title)
	in.StartDate = strings.TrimSpace(in.StartDate)
	in.EndDate = strings.TrimSpace(in.EndDate)
	in.Location = strings.TrimSpace(in.Location)
	in.Category = strings.TrimSpace(in.Category)
	in.Color = strings.TrimSpace(in.Color)
	in.Link = strings.TrimSpace(in.Link)

	if in.Title == "" {
		return domerrors.NewValidationError("title", "is required")
	}
	start, ok := parseDate(in.StartDate)
	if !ok {
		return domerrors.NewValidationError("startDate", "must be a date (YYYY-MM-DD) or date-time")
	}
	if in.EndDate == "" {
		return nil
	}
	end, ok := parseDate(in.EndDate)
	if !ok {
		return domerrors.NewValidationError("endDate", "must be a date (YYYY-MM-DD) or date-time")
	}
	if end.Before(start) {
		return domerrors.NewValidationError("endDate", "must not be before startDate")
	}
	return nil
}

func parseDate(s string) (time.Time, bool) {
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
