package match

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/3leaps/nimbusfs/pkg/provider"
)

// FilterConfig holds size and date bounds from CLI flags or query params.
type FilterConfig struct {
	// MinSize and MaxSize are inclusive. Human-readable: "1KB", "100MiB".
	MinSize string `json:"min_size,omitempty" yaml:"min_size,omitempty"`
	MaxSize string `json:"max_size,omitempty" yaml:"max_size,omitempty"`

	// After is inclusive, Before exclusive. "2024-01-15" or RFC 3339.
	After  string `json:"after,omitempty" yaml:"after,omitempty"`
	Before string `json:"before,omitempty" yaml:"before,omitempty"`
}

// Filter errors.
var (
	ErrInvalidSize = errors.New("invalid size value")
	ErrInvalidDate = errors.New("invalid date value")
)

// Filter applies size and time bounds to file records. A nil Filter
// passes everything.
type Filter struct {
	minSize int64 // -1 means no minimum
	maxSize int64 // -1 means no maximum
	after   time.Time
	before  time.Time
}

// NewFilter parses cfg. A nil or empty cfg yields a nil Filter.
func NewFilter(cfg *FilterConfig) (*Filter, error) {
	if cfg == nil || *cfg == (FilterConfig{}) {
		return nil, nil
	}

	f := &Filter{minSize: -1, maxSize: -1}
	var err error

	if cfg.MinSize != "" {
		if f.minSize, err = ParseSize(cfg.MinSize); err != nil {
			return nil, fmt.Errorf("min size: %w", err)
		}
	}
	if cfg.MaxSize != "" {
		if f.maxSize, err = ParseSize(cfg.MaxSize); err != nil {
			return nil, fmt.Errorf("max size: %w", err)
		}
	}
	if f.minSize >= 0 && f.maxSize >= 0 && f.minSize > f.maxSize {
		return nil, fmt.Errorf("%w: min (%d) > max (%d)", ErrInvalidSize, f.minSize, f.maxSize)
	}

	if cfg.After != "" {
		if f.after, err = ParseDate(cfg.After); err != nil {
			return nil, fmt.Errorf("after: %w", err)
		}
	}
	if cfg.Before != "" {
		if f.before, err = ParseDate(cfg.Before); err != nil {
			return nil, fmt.Errorf("before: %w", err)
		}
	}
	if !f.after.IsZero() && !f.before.IsZero() && !f.after.Before(f.before) {
		return nil, fmt.Errorf("%w: after must be earlier than before", ErrInvalidDate)
	}

	return f, nil
}

// Empty reports whether the filter has no bounds.
func (f *Filter) Empty() bool {
	return f == nil
}

// Match reports whether rec is within bounds. A bound on a field the
// provider did not report rejects the record.
func (f *Filter) Match(rec *provider.ObjectRecord) bool {
	if f == nil {
		return true
	}

	if f.minSize >= 0 || f.maxSize >= 0 {
		if rec.Size == nil {
			return false
		}
		if f.minSize >= 0 && *rec.Size < f.minSize {
			return false
		}
		if f.maxSize >= 0 && *rec.Size > f.maxSize {
			return false
		}
	}

	if !f.after.IsZero() || !f.before.IsZero() {
		if rec.Timestamp == nil {
			return false
		}
		ts := time.Unix(*rec.Timestamp, 0)
		if !f.after.IsZero() && ts.Before(f.after) {
			return false
		}
		if !f.before.IsZero() && !ts.Before(f.before) {
			return false
		}
	}
	return true
}

// Size units.
const (
	Byte int64 = 1

	// Base-10 (SI) units
	KB int64 = 1000
	MB int64 = 1000 * KB
	GB int64 = 1000 * MB
	TB int64 = 1000 * GB

	// Base-2 (IEC) units
	KiB int64 = 1024
	MiB int64 = 1024 * KiB
	GiB int64 = 1024 * MiB
	TiB int64 = 1024 * GiB
)

var sizeUnits = map[string]int64{
	"": Byte, "B": Byte,
	"K": KB, "KB": KB, "M": MB, "MB": MB, "G": GB, "GB": GB, "T": TB, "TB": TB,
	"KI": KiB, "KIB": KiB, "MI": MiB, "MIB": MiB, "GI": GiB, "GIB": GiB, "TI": TiB, "TIB": TiB,
}

// ParseSize parses "1024", "1.5MB" or "100MiB". KB/MB/GB are base-10,
// KiB/MiB/GiB base-2. Units are case insensitive.
func ParseSize(s string) (int64, error) {
	s = strings.TrimSpace(s)

	end := strings.IndexFunc(s, func(r rune) bool { return (r < '0' || r > '9') && r != '.' })
	if end < 0 {
		end = len(s)
	}
	if end == 0 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidSize, s)
	}

	unit := strings.ToUpper(strings.TrimSpace(s[end:]))
	mult, ok := sizeUnits[unit]
	if !ok {
		return 0, fmt.Errorf("%w: unknown unit %q", ErrInvalidSize, unit)
	}

	num, err := strconv.ParseFloat(s[:end], 64)
	if err != nil || math.IsInf(num, 0) {
		return 0, fmt.Errorf("%w: %q", ErrInvalidSize, s)
	}
	bytes := num * float64(mult)
	if bytes >= math.MaxInt64 {
		return 0, fmt.Errorf("%w: size overflows int64", ErrInvalidSize)
	}
	return int64(bytes), nil
}

// ParseDate parses "2024-01-15" (start of day UTC) or an RFC 3339 time.
func ParseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidDate, s)
}
