// Package compexam stores the single comprehensive-exam settings record.
package compexam

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/csdept/csweb/internal/storage"
)

// Settings is the comprehensive exam announcement.
type Settings struct {
	ExamDate             string `json:"examDate"`
	RegistrationDeadline string `json:"registrationDeadline"`
	Location             string `json:"location"`
	SyllabusURL          string `json:"syllabusUrl"`
	Notes                string `json:"notes"`
	UpdatedBy            string `json:"updatedBy"`
	UpdatedAt            string `json:"updatedAt"`
}

// Input carries the writable settings.
type Input struct {
	ExamDate             string `json:"examDate" binding:"omitempty,datetime=2006-01-02"`
	RegistrationDeadline string `json:"registrationDeadline" binding:"omitempty,datetime=2006-01-02"`
	Location             string `json:"location" binding:"max=200"`
	SyllabusURL          string `json:"syllabusUrl" binding:"omitempty,url"`
	Notes                string `json:"notes"`
}

// Store reads and writes the settings row.
type Store struct {
	db storage.Querier
}

// NewStore creates a settings store.
func NewStore(db storage.Querier) *Store {
	return &Store{db: db}
}

// Get returns the settings, or nil before the first save.
func (s *Store) Get(ctx context.Context) (*Settings, error) {
	res, err := s.db.Query(ctx, `SELECT exam_date, registration_deadline, location, syllabus_url, notes,
		updated_by, updated_at FROM comp_exam_settings WHERE id = 1`)
	if err != nil {
		return nil, fmt.Errorf("failed to load comp exam settings: %w", err)
	}
	row := res.First()
	if row == nil {
		return nil, nil
	}
	return &Settings{
		ExamDate:             row.String("exam_date"),
		RegistrationDeadline: row.String("registration_deadline"),
		Location:             row.String("location"),
		SyllabusURL:          row.String("syllabus_url"),
		Notes:                row.String("notes"),
		UpdatedBy:            row.String("updated_by"),
		UpdatedAt:            row.String("updated_at"),
	}, nil
}

// Save writes the settings, creating the row on first use.
func (s *Store) Save(ctx context.Context, in Input, updatedBy string) (*Settings, error) {
	_, err := s.db.Query(ctx, `INSERT INTO comp_exam_settings
		(id, exam_date, registration_deadline, location, syllabus_url, notes, updated_by, updated_at)
		VALUES (1, ?, ?, ?, ?, ?, ?, datetime('now'))
		ON DUPLICATE KEY UPDATE
			exam_date = VALUES(exam_date),
			registration_deadline = VALUES(registration_deadline),
			location = VALUES(location),
			syllabus_url = VALUES(syllabus_url),
			notes = VALUES(notes),
			updated_by = VALUES(updated_by),
			updated_at = VALUES(updated_at)`,
		nullable(in.ExamDate), nullable(in.RegistrationDeadline), nullable(in.Location),
		nullable(in.SyllabusURL), nullable(in.Notes), nullable(updatedBy))
	if err != nil {
		slog.ErrorContext(ctx, "failed to save comp exam settings", "error", err)
		return nil, fmt.Errorf("failed to save comp exam settings: %w", err)
	}
	slog.InfoContext(ctx, "comp exam settings saved", "updated_by", updatedBy)
	return s.Get(ctx)
}

func nullable(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}
