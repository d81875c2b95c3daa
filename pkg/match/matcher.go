package match

import (
	"errors"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/3leaps/nimbusfs/pkg/provider"
)

// ErrInvalidPattern is returned when a glob cannot be compiled.
var ErrInvalidPattern = errors.New("invalid glob pattern")

// PatternError wraps pattern-related errors with context.
type PatternError struct {
	Pattern string
	Err     error
}

func (e *PatternError) Error() string {
	return "pattern " + e.Pattern + ": " + e.Err.Error()
}

func (e *PatternError) Unwrap() error {
	return e.Err
}

// Config configures a Matcher.
type Config struct {
	// Includes are globs a record must match (at least one). Empty
	// includes everything.
	Includes []string

	// Excludes are globs a record must not match.
	Excludes []string

	// IncludeHidden keeps records with a dot-prefixed path segment.
	IncludeHidden bool

	// Filter adds size and modification time bounds.
	Filter *FilterConfig
}

// Matcher selects listing records. It is safe for concurrent use.
type Matcher struct {
	includes      []string
	excludes      []string
	includeHidden bool
	filter        *Filter
}

// New compiles cfg.
func New(cfg Config) (*Matcher, error) {
	includes, err := compile(cfg.Includes)
	if err != nil {
		return nil, err
	}
	excludes, err := compile(cfg.Excludes)
	if err != nil {
		return nil, err
	}
	filter, err := NewFilter(cfg.Filter)
	if err != nil {
		return nil, err
	}

	return &Matcher{
		includes:      includes,
		excludes:      excludes,
		includeHidden: cfg.IncludeHidden,
		filter:        filter,
	}, nil
}

func compile(raw []string) ([]string, error) {
	out := make([]string, 0, len(raw))
	for _, p := range raw {
		normalized := NormalizePattern(p)
		if !doublestar.ValidatePattern(normalized) {
			return nil, &PatternError{Pattern: p, Err: ErrInvalidPattern}
		}
		out = append(out, normalized)
	}
	return out, nil
}

// Match reports whether rec passes every configured rule. Directories are
// matched on their path without the trailing slash and skip size and
// time bounds.
func (m *Matcher) Match(rec *provider.ObjectRecord) bool {
	if !m.includeHidden && IsHidden(rec.Path) {
		return false
	}

	if len(m.includes) > 0 && !anyMatch(m.includes, rec.Path) {
		return false
	}
	if anyMatch(m.excludes, rec.Path) {
		return false
	}

	if rec.IsDir() {
		return true
	}
	return m.filter.Match(rec)
}

// ListPrefix is the directory prefix a listing can be narrowed to without
// missing any included record.
func (m *Matcher) ListPrefix() string {
	return CommonPrefix(m.includes)
}

// Filtering reports whether Match can reject anything besides hidden paths.
func (m *Matcher) Filtering() bool {
	return len(m.includes) > 0 || len(m.excludes) > 0 || !m.filter.Empty()
}

func anyMatch(patterns []string, key string) bool {
	for _, p := range patterns {
		// Patterns are validated at construction time.
		if ok, _ := doublestar.Match(p, key); ok {
			return true
		}
	}
	return false
}
