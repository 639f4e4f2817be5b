package main

import (
	"context"
	"fmt"
	"io"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/csdept/csweb/internal/calendar"
	"github.com/csdept/csweb/internal/compexam"
	"github.com/csdept/csweb/internal/course"
	domerrors "github.com/csdept/csweb/internal/errors"
	"github.com/csdept/csweb/internal/event"
	"github.com/csdept/csweb/internal/faculty"
	"github.com/csdept/csweb/internal/logger"
	"github.com/csdept/csweb/internal/storage"
)

// Catalog is the seed file layout.
type Catalog struct {
	Courses  []courseEntry   `yaml:"courses"`
	Events   []eventEntry    `yaml:"events"`
	Faculty  []facultyEntry  `yaml:"faculty"`
	Calendar []calendarEntry `yaml:"calendar"`
	CompExam *compExamEntry  `yaml:"compExam"`
}

type courseEntry struct {
	Code         string          `yaml:"code"`
	Name         string          `yaml:"name"`
	Section      string          `yaml:"section"`
	Professor    string          `yaml:"professor"`
	Semester     string          `yaml:"semester"`
	Description  string          `yaml:"description"`
	SyllabusFile string          `yaml:"syllabusFile"`
	Category     string          `yaml:"category"`
	Color        string          `yaml:"color"`
	CRN          string          `yaml:"crn"`
	Credits      string          `yaml:"credits"`
	Days         string          `yaml:"days"`
	Time         string          `yaml:"time"`
	Location     string          `yaml:"location"`
	Resources    []resourceEntry `yaml:"resources"`
}

type resourceEntry struct {
	Name        string `yaml:"name"`
	URL         string `yaml:"url"`
	Description string `yaml:"description"`
}

type eventEntry struct {
	Title       string `yaml:"title"`
	Description string `yaml:"description"`
	Location    string `yaml:"location"`
	StartDate   string `yaml:"startDate"`
	EndDate     string `yaml:"endDate"`
	Category    string `yaml:"category"`
	Color       string `yaml:"color"`
	Link        string `yaml:"link"`
}

type facultyEntry struct {
	Semester  string        `yaml:"semester"`
	Published bool          `yaml:"published"`
	Members   []memberEntry `yaml:"members"`
}

type memberEntry struct {
	Name    string `yaml:"name"`
	Email   string `yaml:"email"`
	Office  string `yaml:"office"`
	Phone   string `yaml:"phone"`
	Title   string `yaml:"title"`
	Courses string `yaml:"courses"`
}

type calendarEntry struct {
	Semester     string     `yaml:"semester"`
	FirstDay     string     `yaml:"firstDay"`
	LastDay      string     `yaml:"lastDay"`
	FinalsStart  string     `yaml:"finalsStart"`
	FinalsEnd    string     `yaml:"finalsEnd"`
	NoSchoolDays []dayEntry `yaml:"noSchoolDays"`
}

type dayEntry struct {
	Date   string `yaml:"date"`
	Reason string `yaml:"reason"`
}

type compExamEntry struct {
	ExamDate             string `yaml:"examDate"`
	RegistrationDeadline string `yaml:"registrationDeadline"`
	Location             string `yaml:"location"`
	SyllabusURL          string `yaml:"syllabusUrl"`
	Notes                string `yaml:"notes"`
}

// parseCatalog decodes a catalog, rejecting unknown keys.
func parseCatalog(r io.Reader) (*Catalog, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	var c Catalog
	if err := dec.Decode(&c); err != nil && err != io.EOF {
		return nil, fmt.Errorf("failed to parse catalog: %w", err)
	}
	return &c, nil
}

// seedStats counts rows written and entries skipped because they already exist.
type seedStats struct {
	created map[string]int
	skipped map[string]int
}

func newSeedStats() *seedStats {
	return &seedStats{created: map[string]int{}, skipped: map[string]int{}}
}

// seeder writes a catalog through the model stores, so seeded rows get the
// same slugs and validation as rows written through the API.
type seeder struct {
	log      *logger.Logger
	courses  *course.Store
	events   *event.Store
	faculty  *faculty.Store
	calendar *calendar.Store
	compExam *compexam.Store
	stats    *seedStats
}

func newSeeder(db *storage.DB, log *logger.Logger) *seeder {
	return &seeder{
		log:      log,
		courses:  course.NewStore(db),
		events:   event.NewStore(db),
		faculty:  faculty.NewStore(db),
		calendar: calendar.NewStore(db),
		compExam: compexam.NewStore(db),
		stats:    newSeedStats(),
	}
}

// apply seeds the named sections of c. Existing rows are left untouched.
func (s *seeder) apply(ctx context.Context, c *Catalog, sections []string) error {
	for _, section := range sections {
		var err error
		switch section {
		case "courses":
			err = s.seedCourses(ctx, c.Courses)
		case "events":
			err = s.seedEvents(ctx, c.Events)
		case "faculty":
			err = s.seedFaculty(ctx, c.Faculty)
		case "calendar":
			err = s.seedCalendar(ctx, c.Calendar)
		case "compexam":
			err = s.seedCompExam(ctx, c.CompExam)
		default:
			s.log.WithField("section", section).Warn("Unknown section, skipping")
			continue
		}
		if err != nil {
			return fmt.Errorf("%s: %w", section, err)
		}
	}
	return nil
}

func (s *seeder) seedCourses(ctx context.Context, entries []courseEntry) error {
	for _, e := range entries {
		in := course.Input{
			Code: e.Code, Name: e.Name, Section: e.Section, Professor: e.Professor,
			Semester: e.Semester, Description: e.Description, SyllabusFile: e.SyllabusFile,
			Category: e.Category, Color: e.Color, CRN: e.CRN, Credits: e.Credits,
			Days: e.Days, Time: e.Time, Location: e.Location,
		}
		for _, r := range e.Resources {
			in.Resources = append(in.Resources, course.ResourceInput{Name: r.Name, URL: r.URL, Description: r.Description})
		}
		if !course.ValidCode(in.Code) {
			return domerrors.NewValidationError("code", fmt.Sprintf("%q is not a course code", e.Code))
		}

		_, err := s.courses.Create(ctx, in)
		switch {
		case domerrors.IsConflict(err):
			s.stats.skipped["courses"]++
		case err != nil:
			return err
		default:
			s.stats.created["courses"]++
		}
	}
	return nil
}

func (s *seeder) seedEvents(ctx context.Context, entries []eventEntry) error {
	existing, err := s.events.List(ctx)
	if err != nil {
		return err
	}
	seen := make(map[string]bool, len(existing))
	for _, ev := range existing {
		seen[eventKey(ev.Title, ev.StartDate)] = true
	}

	for _, e := range entries {
		if seen[eventKey(e.Title, e.StartDate)] {
			s.stats.skipped["events"]++
			continue
		}
		if _, err := s.events.Create(ctx, event.Input{
			Title: e.Title, Description: e.Description, Location: e.Location,
			StartDate: e.StartDate, EndDate: e.EndDate, Category: e.Category,
			Color: e.Color, Link: e.Link,
		}); err != nil {
			return err
		}
		seen[eventKey(e.Title, e.StartDate)] = true
		s.stats.created["events"]++
	}
	return nil
}

func eventKey(title, start string) string {
	return strings.ToLower(strings.TrimSpace(title)) + "|" + strings.TrimSpace(start)
}

func (s *seeder) seedFaculty(ctx context.Context, entries []facultyEntry) error {
	for _, e := range entries {
		existing, err := s.faculty.List(ctx, e.Semester)
		if err != nil {
			return err
		}
		names := make(map[string]bool, len(existing))
		for _, m := range existing {
			names[strings.ToLower(m.Name)] = true
		}

		for _, m := range e.Members {
			if names[strings.ToLower(strings.TrimSpace(m.Name))] {
				s.stats.skipped["faculty"]++
				continue
			}
			if _, err := s.faculty.Create(ctx, faculty.Input{
				Semester: e.Semester, Name: m.Name, Email: m.Email, Office: m.Office,
				Phone: m.Phone, Title: m.Title, Courses: m.Courses,
			}); err != nil {
				return err
			}
			s.stats.created["faculty"]++
		}

		if _, err := s.faculty.SetPublished(ctx, e.Semester, e.Published); err != nil {
			return err
		}
	}
	return nil
}

func (s *seeder) seedCalendar(ctx context.Context, entries []calendarEntry) error {
	for _, e := range entries {
		if _, err := s.calendar.Save(ctx, e.Semester, calendar.Input{
			FirstDay: e.FirstDay, LastDay: e.LastDay, FinalsStart: e.FinalsStart, FinalsEnd: e.FinalsEnd,
		}); err != nil {
			return err
		}
		s.stats.created["calendar"]++

		for _, d := range e.NoSchoolDays {
			_, err := s.calendar.AddDay(ctx, e.Semester, calendar.DayInput{Date: d.Date, Reason: d.Reason})
			switch {
			case domerrors.IsConflict(err):
				s.stats.skipped["no_school_days"]++
			case err != nil:
				return err
			default:
				s.stats.created["no_school_days"]++
			}
		}
	}
	return nil
}

func (s *seeder) seedCompExam(ctx context.Context, e *compExamEntry) error {
	if e == nil {
		return nil
	}
	_, err := s.compExam.Save(ctx, compexam.Input{
		ExamDate: e.ExamDate, RegistrationDeadline: e.RegistrationDeadline,
		Location: e.Location, SyllabusURL: e.SyllabusURL, Notes: e.Notes,
	}, "seed")
	if err != nil {
		return err
	}
	s.stats.created["comp_exam"]++
	return nil
}

// resetTables empties the content tables, children first. Admin tables are kept.
var resetTables = []string{
	"course_resources",
	"courses",
	"events",
	"no_school_days",
	"school_calendar",
	"faculty",
	"faculty_semesters",
	"comp_exam_settings",
}

func resetContent(ctx context.Context, db *storage.DB) error {
	return db.WithTransaction(ctx, func(conn *storage.Conn) error {
		for _, table := range resetTables {
			if _, err := conn.Exec(ctx, storage.Delete("DELETE FROM "+table)); err != nil {
				return fmt.Errorf("failed to clear %s: %w", table, err)
			}
		}
		return nil
	})
}
