package course

import (
	"context"
	"regexp"
	"strconv"
	"strings"

	"github.com/csdept/csweb/internal/stringutil"
)

// Strategy names, in the order DefaultStrategies applies them.
const (
	StrategyNumericID    = "numeric-id"
	StrategyExactSlug    = "exact-slug"
	StrategyCodePrefix   = "code-prefix"
	StrategyFriendlyName = "friendly-name"
)

// Source is the lookup surface a Strategy may use.
type Source interface {
	CourseByID(ctx context.Context, id int64) (*Course, error)
	CourseBySlug(ctx context.Context, slug string) (*Course, error)
	AllCourses(ctx context.Context) ([]Course, error)
}

// Strategy maps an identifier to a course.
//
// Resolve returns done=true to end the chain, with or without a course.
// A strategy that does not apply returns (nil, false, nil).
type Strategy interface {
	Name() string
	Resolve(ctx context.Context, src Source, identifier string) (c *Course, done bool, err error)
}

// Resolution is a matched course and the strategy that found it.
type Resolution struct {
	Course   *Course
	Strategy string
}

// Resolver applies strategies in order; the first match wins.
type Resolver struct {
	strategies []Strategy
}

// DefaultStrategies is the documented resolution contract:
//  1. numeric-id: all-digit identifiers are row ids and never fall through
//  2. exact-slug: stored slug equality
//  3. code-prefix: "cps310" picks a section slug starting with "cps310-"
//  4. friendly-name: "cps310-data-structures" matches code and title words
func DefaultStrategies() []Strategy {
	return []Strategy{NumericID{}, ExactSlug{}, CodePrefix{}, FriendlyName{}}
}

// NewResolver creates a resolver. With no strategies it uses DefaultStrategies.
func NewResolver(strategies ...Strategy) *Resolver {
	if len(strategies) == 0 {
		strategies = DefaultStrategies()
	}
	return &Resolver{strategies: strategies}
}

// Resolve returns nil (and no error) when no strategy matches.
func (r *Resolver) Resolve(ctx context.Context, src Source, identifier string) (*Resolution, error) {
	identifier = strings.TrimSpace(identifier)
	if identifier == "" {
		return nil, nil
	}

	// Heuristic strategies share one table scan.
	src = &scanOnce{Source: src}
	for _, s := range r.strategies {
		c, done, err := s.Resolve(ctx, src, identifier)
		if err != nil {
			return nil, err
		}
		if c != nil {
			return &Resolution{Course: c, Strategy: s.Name()}, nil
		}
		if done {
			return nil, nil
		}
	}
	return nil, nil
}

type scanOnce struct {
	Source
	rows    []Course
	scanned bool
}

func (s *scanOnce) AllCourses(ctx context.Context) ([]Course, error) {
	if s.scanned {
		return s.rows, nil
	}
	rows, err := s.Source.AllCourses(ctx)
	if err != nil {
		return nil, err
	}
	s.rows, s.scanned = rows, true
	return rows, nil
}

// NumericID treats an all-digit identifier as a row id.
type NumericID struct{}

// Name implements Strategy.
func (NumericID) Name() string { return StrategyNumericID }

// Resolve implements Strategy.
func (NumericID) Resolve(ctx context.Context, src Source, identifier string) (*Course, bool, error) {
	if !stringutil.IsNumeric(identifier) {
		return nil, false, nil
	}
	id, err := strconv.ParseInt(identifier, 10, 64)
	if err != nil {
		// Too large to be a row id.
		return nil, true, nil
	}
	c, err := src.CourseByID(ctx, id)
	return c, true, err
}

// ExactSlug matches a stored slug.
type ExactSlug struct{}

// Name implements Strategy.
func (ExactSlug) Name() string { return StrategyExactSlug }

// Resolve implements Strategy.
func (ExactSlug) Resolve(ctx context.Context, src Source, identifier string) (*Course, bool, error) {
	c, err := src.CourseBySlug(ctx, strings.ToLower(identifier))
	return c, false, err
}

var codePrefixPattern = regexp.MustCompile(`^[a-z]+\d+$`)

// CodePrefix matches a bare code such as "cps310" to one of its sections.
type CodePrefix struct{}

// Name implements Strategy.
func (CodePrefix) Name() string { return StrategyCodePrefix }

// Resolve implements Strategy.
func (CodePrefix) Resolve(ctx context.Context, src Source, identifier string) (*Course, bool, error) {
	id := strings.ToLower(identifier)
	if !codePrefixPattern.MatchString(id) {
		return nil, false, nil
	}
	rows, err := src.AllCourses(ctx)
	if err != nil {
		return nil, false, err
	}
	return matchCodePrefix(id, rows), false, nil
}

func matchCodePrefix(identifier string, rows []Course) *Course {
	prefix := stringutil.AlphaNumeric(identifier) + "-"
	for i := range rows {
		if strings.HasPrefix(rows[i].Slug, prefix) {
			return &rows[i]
		}
	}
	return nil
}

// FriendlyName matches "code-title-words" identifiers such as
// "cps310-data-structures".
type FriendlyName struct{}

// Name implements Strategy.
func (FriendlyName) Name() string { return StrategyFriendlyName }

// Resolve implements Strategy.
func (FriendlyName) Resolve(ctx context.Context, src Source, identifier string) (*Course, bool, error) {
	if !strings.Contains(identifier, "-") {
		return nil, false, nil
	}
	rows, err := src.AllCourses(ctx)
	if err != nil {
		return nil, false, err
	}
	return matchFriendlyName(strings.ToLower(identifier), rows), false, nil
}

func matchFriendlyName(identifier string, rows []Course) *Course {
	codePrefix, namePart, _ := strings.Cut(identifier, "-")
	spaced := stringutil.Words(strings.ReplaceAll(namePart, "-", " "))
	compact := stringutil.AlphaNumeric(namePart)
	if codePrefix == "" || compact == "" {
		return nil
	}

	for i := range rows {
		if strings.ToLower(stringutil.StripWhitespace(rows[i].Code)) != codePrefix {
			continue
		}
		if strings.Contains(stringutil.Words(rows[i].Name), spaced) ||
			strings.Contains(stringutil.AlphaNumeric(rows[i].Name), compact) {
			return &rows[i]
		}
	}
	return nil
}
