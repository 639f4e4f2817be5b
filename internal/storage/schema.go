package storage

import (
	"context"
	"fmt"
)

// InitSchema creates all tables and indexes. It is idempotent.
func InitSchema(ctx context.Context, db *DB) error {
	creators := []struct {
		name string
		ddl  string
	}{
		{"courses", coursesTable},
		{"course_resources", courseResourcesTable},
		{"events", eventsTable},
		{"admins", adminsTable},
		{"comp_exam_settings", compExamSettingsTable},
		{"school_calendar", schoolCalendarTable},
		{"faculty", facultyTable},
	}

	for _, c := range creators {
		if _, err := db.Exec(ctx, Schema(c.ddl)); err != nil {
			return fmt.Errorf("failed to create %s table: %w", c.name, err)
		}
	}
	return nil
}

// Tables lists every table created by InitSchema.
var Tables = []string{
	"courses",
	"course_resources",
	"events",
	"admins",
	"admin_whitelist",
	"comp_exam_settings",
	"school_calendar",
	"no_school_days",
	"faculty_semesters",
	"faculty",
}

const coursesTable = `
CREATE TABLE IF NOT EXISTS courses (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	code TEXT NOT NULL,
	name TEXT NOT NULL,
	section TEXT NOT NULL DEFAULT '',
	professor TEXT,
	semester TEXT,
	description TEXT,
	syllabus_file TEXT,
	category TEXT,
	color TEXT,
	crn TEXT,
	credits TEXT,
	days TEXT,
	class_time TEXT,
	location TEXT,
	slug TEXT NOT NULL UNIQUE,
	created_at TEXT NOT NULL DEFAULT (datetime('now')),
	updated_at TEXT NOT NULL DEFAULT (datetime('now'))
);
CREATE INDEX IF NOT EXISTS idx_courses_code ON courses(code);
CREATE INDEX IF NOT EXISTS idx_courses_name ON courses(name);
`

const courseResourcesTable = `
CREATE TABLE IF NOT EXISTS course_resources (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	course_id INTEGER NOT NULL REFERENCES courses(id) ON DELETE CASCADE,
	name TEXT NOT NULL,
	url TEXT NOT NULL,
	description TEXT,
	position INTEGER NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS idx_course_resources_course ON course_resources(course_id, position);
`

const eventsTable = `
CREATE TABLE IF NOT EXISTS events (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	title TEXT NOT NULL,
	description TEXT,
	location TEXT,
	start_date TEXT NOT NULL,
	end_date TEXT,
	category TEXT,
	color TEXT,
	link TEXT,
	created_at TEXT NOT NULL DEFAULT (datetime('now')),
	updated_at TEXT NOT NULL DEFAULT (datetime('now'))
);
CREATE INDEX IF NOT EXISTS idx_events_start ON events(start_date);
`

const adminsTable = `
CREATE TABLE IF NOT EXISTS admins (
	email TEXT PRIMARY KEY,
	name TEXT,
	added_at TEXT NOT NULL DEFAULT (datetime('now'))
);
CREATE TABLE IF NOT EXISTS admin_whitelist (
	email TEXT PRIMARY KEY,
	added_by TEXT,
	added_at TEXT NOT NULL DEFAULT (datetime('now'))
);
`

const compExamSettingsTable = `
CREATE TABLE IF NOT EXISTS comp_exam_settings (
	id INTEGER PRIMARY KEY CHECK (id = 1),
	exam_date TEXT,
	registration_deadline TEXT,
	location TEXT,
	syllabus_url TEXT,
	notes TEXT,
	updated_by TEXT,
	updated_at TEXT NOT NULL DEFAULT (datetime('now'))
);
`

const schoolCalendarTable = `
CREATE TABLE IF NOT EXISTS school_calendar (
	semester TEXT PRIMARY KEY,
	first_day TEXT,
	last_day TEXT,
	finals_start TEXT,
	finals_end TEXT,
	updated_at TEXT NOT NULL DEFAULT (datetime('now'))
);
CREATE TABLE IF NOT EXISTS no_school_days (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	semester TEXT NOT NULL,
	date TEXT NOT NULL,
	reason TEXT,
	UNIQUE (semester, date)
);
`

const facultyTable = `
CREATE TABLE IF NOT EXISTS faculty_semesters (
	semester TEXT PRIMARY KEY,
	published INTEGER NOT NULL DEFAULT 0,
	updated_at TEXT NOT NULL DEFAULT (datetime('now'))
);
CREATE TABLE IF NOT EXISTS faculty (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	semester TEXT NOT NULL,
	name TEXT NOT NULL,
	email TEXT,
	office TEXT,
	phone TEXT,
	title TEXT,
	courses TEXT
);
CREATE INDEX IF NOT EXISTS idx_faculty_semester ON faculty(semester, name);
`
