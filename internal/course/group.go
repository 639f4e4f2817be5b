package course

import (
	"cmp"
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strconv"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/csdept/csweb/internal/storage"
)

// maxResourceLookups bounds concurrent per-section resource reads.
const maxResourceLookups = 4

// Group is the presentation aggregate of a course family. Shared fields
// come from the requested row, not from a merge of the siblings.
type Group struct {
	Code                string    `json:"code"`
	Name                string    `json:"name"`
	Category            string    `json:"category"`
	Description         string    `json:"description"`
	Credits             string    `json:"credits"`
	Semester            string    `json:"semester"`
	Color               string    `json:"color"`
	Sections            []Section `json:"sections"`
	InitialSectionIndex int       `json:"initialSectionIndex"`
}

// Section is the per-offering part of a Group.
type Section struct {
	ID           int64      `json:"id"`
	Slug         string     `json:"slug"`
	Section      string     `json:"section"`
	Professor    string     `json:"professor"`
	Days         string     `json:"days"`
	Time         string     `json:"time"`
	Location     string     `json:"location"`
	CRN          string     `json:"crn"`
	SyllabusFile string     `json:"syllabusFile"`
	Resources    []Resource `json:"resources"`
}

// GetGroupBySlug builds the group for an exact stored slug. It returns
// nil when the slug does not exist. Reads are not isolated from
// concurrent writes.
func (s *Store) GetGroupBySlug(ctx context.Context, slug string) (*Group, error) {
	target, err := s.CourseBySlug(ctx, slug)
	if err != nil {
		s.recordGroup("error")
		return nil, err
	}
	if target == nil {
		s.recordGroup("not_found")
		return nil, nil
	}

	siblings, err := s.siblings(ctx, target)
	if err != nil {
		s.recordGroup("error")
		return nil, err
	}
	sortSections(siblings)

	sections := make([]Section, len(siblings))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxResourceLookups)
	for i := range siblings {
		sections[i] = sectionOf(siblings[i])
		g.Go(func() error {
			resources, err := s.Resources(gctx, siblings[i].ID)
			if err != nil {
				return err
			}
			sections[i].Resources = resources
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		s.recordGroup("error")
		slog.ErrorContext(ctx, "failed to load section resources", "slug", slug, "error", err)
		return nil, err
	}

	initial := slices.IndexFunc(sections, func(sec Section) bool { return sec.Slug == target.Slug })
	if initial < 0 {
		// The target was edited between the two reads.
		initial = 0
	}

	s.recordGroup("found")
	return &Group{
		Code:                BaseCode(target.Code),
		Name:                target.Name,
		Category:            target.Category,
		Description:         target.Description,
		Credits:             target.Credits,
		Semester:            target.Semester,
		Color:               target.Color,
		Sections:            sections,
		InitialSectionIndex: initial,
	}, nil
}

// siblings returns every row in the target's family, the target included.
func (s *Store) siblings(ctx context.Context, target *Course) ([]Course, error) {
	base := BaseCode(target.Code)

	var res *storage.Result
	var err error
	if IsTopics(base) {
		res, err = s.db.Query(ctx,
			"SELECT "+courseColumns+` FROM courses WHERE name = ? AND code LIKE ? ESCAPE '\'`,
			target.Name, storage.PrefixPattern(base))
	} else {
		res, err = s.db.Query(ctx,
			"SELECT "+courseColumns+` FROM courses WHERE code LIKE ? ESCAPE '\'`,
			storage.PrefixPattern(base))
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load sibling sections: %w", err)
	}

	out := make([]Course, 0, len(res.Rows))
	for _, row := range res.Rows {
		c := courseFromRow(row)
		if sameFamily(base, c.Code) {
			out = append(out, c)
		}
	}
	if !slices.ContainsFunc(out, func(c Course) bool { return c.ID == target.ID }) {
		out = append(out, *target)
	}
	return out, nil
}

// sameFamily rejects prefix matches where the code continues with another
// digit, so base "CPS 31" never captures "CPS 310".
func sameFamily(base, code string) bool {
	if len(code) < len(base) {
		return false
	}
	if len(code) == len(base) {
		return true
	}
	next := code[len(base)]
	return next < '0' || next > '9'
}

// inFamily mirrors the siblings query: a case-insensitive prefix match (as
// LIKE does) filtered by sameFamily.
func inFamily(base, code string) bool {
	return len(code) >= len(base) && strings.EqualFold(code[:len(base)], base) && sameFamily(base, code)
}

// sortSections orders by section, numerically when both parse as integers,
// then by id.
func sortSections(courses []Course) {
	slices.SortStableFunc(courses, func(a, b Course) int {
		if c := compareSection(a.Section, b.Section); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
}

func compareSection(a, b string) int {
	na, errA := strconv.Atoi(a)
	nb, errB := strconv.Atoi(b)
	if errA == nil && errB == nil {
		if c := cmp.Compare(na, nb); c != 0 {
			return c
		}
	}
	return cmp.Compare(a, b)
}

func sectionOf(c Course) Section {
	return Section{
		ID:           c.ID,
		Slug:         c.Slug,
		Section:      c.Section,
		Professor:    c.Professor,
		Days:         c.Days,
		Time:         c.Time,
		Location:     c.Location,
		CRN:          c.CRN,
		SyllabusFile: c.SyllabusFile,
		Resources:    []Resource{},
	}
}

// ListGroups returns one summary per course family for the catalog page.
// Rows are visited in code order and join the first family whose base is a
// prefix of their code under the same rule the group view uses, so "CPS 310L"
// is counted with "CPS 310".
func (s *Store) ListGroups(ctx context.Context) ([]Summary, error) {
	courses, err := s.AllCourses(ctx)
	if err != nil {
		return nil, err
	}
	slices.SortStableFunc(courses, func(a, b Course) int {
		if c := cmp.Compare(a.Code, b.Code); c != 0 {
			return c
		}
		if c := compareSection(a.Section, b.Section); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})

	type family struct {
		base   string
		name   string
		topics bool
	}
	var families []family
	out := make([]Summary, 0)
	for _, c := range courses {
		i := slices.IndexFunc(families, func(f family) bool {
			return inFamily(f.base, c.Code) && (!f.topics || f.name == c.Name)
		})
		if i >= 0 {
			out[i].SectionCount++
			continue
		}
		base := BaseCode(c.Code)
		families = append(families, family{base: base, name: c.Name, topics: IsTopics(base)})
		out = append(out, Summary{
			Code:         base,
			Name:         c.Name,
			Category:     c.Category,
			Credits:      c.Credits,
			Color:        c.Color,
			Semester:     c.Semester,
			Description:  c.Description,
			Slug:         c.Slug,
			SectionCount: 1,
		})
	}

	slices.SortStableFunc(out, func(a, b Summary) int {
		if c := cmp.Compare(a.Code, b.Code); c != 0 {
			return c
		}
		return cmp.Compare(a.Name, b.Name)
	})
	return out, nil
}
