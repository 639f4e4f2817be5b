// Package course implements the course catalog: CRUD over the storage
// shim, identifier resolution, and multi-section group aggregation.
package course

import (
	"strings"

	"github.com/csdept/csweb/internal/storage"
)

// Course is one offering (one section) of a course.
type Course struct {
	ID           int64      `json:"id"`
	Code         string     `json:"code"`
	Name         string     `json:"name"`
	Section      string     `json:"section"`
	Professor    string     `json:"professor"`
	Semester     string     `json:"semester"`
	Description  string     `json:"description"`
	SyllabusFile string     `json:"syllabusFile"`
	Category     string     `json:"category"`
	Color        string     `json:"color"`
	CRN          string     `json:"crn"`
	Credits      string     `json:"credits"`
	Days         string     `json:"days"`
	Time         string     `json:"time"`
	Location     string     `json:"location"`
	Slug         string     `json:"slug"`
	Resources    []Resource `json:"resources"`
}

// Resource is a link attached to a course.
type Resource struct {
	ID          int64  `json:"id"`
	CourseID    int64  `json:"courseId"`
	Name        string `json:"name"`
	URL         string `json:"url"`
	Description string `json:"description"`
}

// Input carries the writable fields of a course.
type Input struct {
	Code         string          `json:"code" form:"code" binding:"required,coursecode,max=40"`
	Name         string          `json:"name" form:"name" binding:"required,max=200"`
	Section      string          `json:"section" form:"section" binding:"max=20"`
	Professor    string          `json:"professor" form:"professor" binding:"max=200"`
	Semester     string          `json:"semester" form:"semester" binding:"max=40"`
	Description  string          `json:"description" form:"description"`
	SyllabusFile string          `json:"syllabusFile" form:"syllabusFile"`
	Category     string          `json:"category" form:"category" binding:"max=80"`
	Color        string          `json:"color" form:"color" binding:"omitempty,hexcolor"`
	CRN          string          `json:"crn" form:"crn" binding:"max=20"`
	Credits      string          `json:"credits" form:"credits" binding:"max=20"`
	Days         string          `json:"days" form:"days" binding:"max=40"`
	Time         string          `json:"time" form:"time" binding:"max=40"`
	Location     string          `json:"location" form:"location" binding:"max=120"`
	Resources    []ResourceInput `json:"resources" form:"-" binding:"dive"`
}

// ResourceInput is a resource supplied on create/update.
type ResourceInput struct {
	Name        string `json:"name" binding:"required,max=200"`
	URL         string `json:"url" binding:"required,url"`
	Description string `json:"description" binding:"max=500"`
}

// Summary is one course family in the catalog listing.
type Summary struct {
	Code         string `json:"code"`
	Name         string `json:"name"`
	Category     string `json:"category"`
	Credits      string `json:"credits"`
	Color        string `json:"color"`
	Semester     string `json:"semester"`
	Description  string `json:"description"`
	Slug         string `json:"slug"`
	SectionCount int    `json:"sectionCount"`
}

const courseColumns = `id, code, name, section, professor, semester, description, syllabus_file,
	category, color, crn, credits, days, class_time, location, slug`

func courseFromRow(r storage.Row) Course {
	return Course{
		ID:           r.Int64("id"),
		Code:         r.String("code"),
		Name:         r.String("name"),
		Section:      r.String("section"),
		Professor:    r.String("professor"),
		Semester:     r.String("semester"),
		Description:  r.String("description"),
		SyllabusFile: r.String("syllabus_file"),
		Category:     r.String("category"),
		Color:        r.String("color"),
		CRN:          r.String("crn"),
		Credits:      r.String("credits"),
		Days:         r.String("days"),
		Time:         r.String("class_time"),
		Location:     r.String("location"),
		Slug:         r.String("slug"),
		Resources:    []Resource{},
	}
}

func resourceFromRow(r storage.Row) Resource {
	return Resource{
		ID:          r.Int64("id"),
		CourseID:    r.Int64("course_id"),
		Name:        r.String("name"),
		URL:         r.String("url"),
		Description: r.String("description"),
	}
}

// Normalize trims every text field of the input.
func (in *Input) Normalize() {
	for _, f := range []*string{
		&in.Code, &in.Name, &in.Section, &in.Professor, &in.Semester, &in.SyllabusFile,
		&in.Category, &in.Color, &in.CRN, &in.Credits, &in.Days, &in.Time, &in.Location,
	} {
		*f = strings.TrimSpace(*f)
	}
	in.Description = strings.TrimSpace(in.Description)
	for i := range in.Resources {
		in.Resources[i].Name = strings.TrimSpace(in.Resources[i].Name)
		in.Resources[i].URL = strings.TrimSpace(in.Resources[i].URL)
		in.Resources[i].Description = strings.TrimSpace(in.Resources[i].Description)
	}
}

// nullable maps "" to nil so optional columns store NULL.
func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
