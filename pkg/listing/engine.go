// Package listing drives provider list calls across pages into one logical
// directory listing.
//
// Providers expose prefix + delimiter + marker + max-keys listing. The Engine
// loops pages until the provider reports no more, and for recursive listings
// either omits the delimiter (Flat) or walks common prefixes with an explicit
// work queue (Descend). Both strategies yield the same record set.
package listing

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/time/rate"

	"github.com/3leaps/nimbusfs/pkg/provider"
)

const (
	// Delimiter is the directory separator used for non-recursive listings.
	Delimiter = "/"

	// DefaultPageSize is the number of keys requested per page.
	DefaultPageSize = 1000

	// MaxPageSize is the largest page any supported provider accepts.
	MaxPageSize = 1000

	// DefaultMaxDepth caps how many directory levels Descend will walk.
	DefaultMaxDepth = 64
)

var (
	// ErrMaxDepth is returned when recursive descent exceeds the depth cap.
	ErrMaxDepth = errors.New("listing exceeds maximum directory depth")

	// ErrStalled is returned when a truncated page does not advance the marker.
	ErrStalled = errors.New("listing marker did not advance")
)

// Request is one page request.
type Request struct {
	Prefix    string
	Delimiter string
	Marker    string
	MaxKeys   int
}

// Page is one page of provider results.
type Page struct {
	// Entries are the objects on this page.
	Entries []provider.RawEntry

	// CommonPrefixes are the rolled-up directory prefixes, each ending in
	// the delimiter. Only populated when a delimiter was requested.
	CommonPrefixes []string

	// NextMarker resumes the listing. Adapters fill it from whatever their
	// provider returns (continuation token, marker, last key).
	NextMarker string

	// Truncated is true when more pages follow.
	Truncated bool
}

// PageLister fetches a single page. Adapters implement it over their SDK.
type PageLister interface {
	ListPage(ctx context.Context, req Request) (*Page, error)
}

// PageListerFunc adapts a function to PageLister.
type PageListerFunc func(ctx context.Context, req Request) (*Page, error)

// ListPage implements PageLister.
func (f PageListerFunc) ListPage(ctx context.Context, req Request) (*Page, error) {
	return f(ctx, req)
}

// Strategy selects how recursive listings are enumerated.
type Strategy int

const (
	// Flat omits the delimiter and enumerates every key under the prefix.
	Flat Strategy = iota

	// Descend lists each level with the delimiter and queues every common
	// prefix for its own listing.
	Descend
)

// String returns the strategy name.
func (s Strategy) String() string {
	switch s {
	case Flat:
		return "flat"
	case Descend:
		return "descend"
	}
	return fmt.Sprintf("Strategy(%d)", int(s))
}

// Options configures an Engine.
type Options struct {
	// Strategy for recursive listings. Default: Flat.
	Strategy Strategy

	// PageSize is the max keys per request, clamped to MaxPageSize.
	// Default: 1000
	PageSize int

	// MaxDepth caps Descend. Default: 64
	MaxDepth int

	// RateLimit is the maximum page requests per second.
	// Zero means unlimited.
	RateLimit float64

	// Strip maps a provider key to the logical path reported in records.
	// Nil reports keys unchanged.
	Strip func(key string) string
}

// Engine materializes directory listings. It is safe for concurrent use.
type Engine struct {
	lister  PageLister
	opts    Options
	limiter *rate.Limiter
}

// New creates an Engine over l.
func New(l PageLister, opts Options) *Engine {
	opts.PageSize = clampPageSize(opts.PageSize)
	if opts.MaxDepth <= 0 {
		opts.MaxDepth = DefaultMaxDepth
	}
	if opts.Strip == nil {
		opts.Strip = func(key string) string { return key }
	}

	e := &Engine{lister: l, opts: opts}
	if opts.RateLimit > 0 {
		e.limiter = rate.NewLimiter(rate.Limit(opts.RateLimit), 1)
	}
	return e
}

// PageSize returns the effective page size.
func (e *Engine) PageSize() int {
	return e.opts.PageSize
}

// List returns every record under prefix. prefix is a provider key prefix:
// empty for the bucket root, otherwise ending in "/". Records come back in
// provider key order; the prefix's own placeholder object is never included.
func (e *Engine) List(ctx context.Context, prefix string, recursive bool) ([]provider.ObjectRecord, error) {
	entries, prefixes, err := e.collect(ctx, prefix, recursive)
	if err != nil {
		return nil, err
	}

	b := newBuilder(e.opts.Strip)
	for _, p := range prefixes {
		b.addDir(p)
	}
	for _, entry := range entries {
		if entry.Key == prefix {
			continue
		}
		if recursive && e.opts.Strategy == Flat {
			b.addAncestors(prefix, entry.Key)
		}
		b.addEntry(entry)
	}
	return b.records, nil
}

// Keys returns every object key under prefix, including directory
// placeholders and the prefix's own placeholder. It is the enumeration used
// for recursive deletes.
func (e *Engine) Keys(ctx context.Context, prefix string) ([]string, error) {
	entries, _, err := e.collect(ctx, prefix, true)
	if err != nil {
		return nil, err
	}

	keys := make([]string, 0, len(entries))
	seen := make(map[string]struct{}, len(entries))
	for _, entry := range entries {
		if _, dup := seen[entry.Key]; dup {
			continue
		}
		seen[entry.Key] = struct{}{}
		keys = append(keys, entry.Key)
	}
	return keys, nil
}

func (e *Engine) collect(ctx context.Context, prefix string, recursive bool) ([]provider.RawEntry, []string, error) {
	if !recursive {
		return e.listAll(ctx, prefix, Delimiter)
	}
	if e.opts.Strategy == Flat {
		return e.listAll(ctx, prefix, "")
	}
	return e.descend(ctx, prefix)
}

type queued struct {
	prefix string
	depth  int
}

// descend walks the prefix tree breadth-first with an explicit queue.
func (e *Engine) descend(ctx context.Context, root string) ([]provider.RawEntry, []string, error) {
	var (
		entries  []provider.RawEntry
		prefixes []string
		queue    = []queued{{prefix: root}}
		visited  = map[string]struct{}{root: {}}
	)

	for len(queue) > 0 {
		next := queue[0]
		queue = queue[1:]

		pageEntries, pagePrefixes, err := e.listAll(ctx, next.prefix, Delimiter)
		if err != nil {
			return nil, nil, err
		}
		entries = append(entries, pageEntries...)

		for _, p := range pagePrefixes {
			if _, dup := visited[p]; dup {
				continue
			}
			visited[p] = struct{}{}
			prefixes = append(prefixes, p)

			if next.depth+1 > e.opts.MaxDepth {
				return nil, nil, fmt.Errorf("%w: %q deeper than %d levels", ErrMaxDepth, p, e.opts.MaxDepth)
			}
			queue = append(queue, queued{prefix: p, depth: next.depth + 1})
		}
	}
	return entries, prefixes, nil
}

// listAll loops pages for one prefix until the provider reports no more.
func (e *Engine) listAll(ctx context.Context, prefix, delimiter string) ([]provider.RawEntry, []string, error) {
	var (
		entries  []provider.RawEntry
		prefixes []string
		marker   string
	)

	for {
		if err := ctx.Err(); err != nil {
			return nil, nil, err
		}
		if err := e.waitForRateLimit(ctx); err != nil {
			return nil, nil, err
		}

		page, err := e.lister.ListPage(ctx, Request{
			Prefix:    prefix,
			Delimiter: delimiter,
			Marker:    marker,
			MaxKeys:   e.opts.PageSize,
		})
		if err != nil {
			return nil, nil, err
		}

		entries = append(entries, page.Entries...)
		prefixes = append(prefixes, page.CommonPrefixes...)

		if !page.Truncated {
			return entries, prefixes, nil
		}
		if page.NextMarker == "" || page.NextMarker == marker {
			return nil, nil, fmt.Errorf("%w: prefix %q at marker %q", ErrStalled, prefix, marker)
		}
		marker = page.NextMarker
	}
}

// waitForRateLimit blocks until the rate limiter allows a request.
// Returns immediately if rate limiting is disabled.
func (e *Engine) waitForRateLimit(ctx context.Context) error {
	if e.limiter == nil {
		return nil
	}
	return e.limiter.Wait(ctx)
}

func clampPageSize(n int) int {
	if n <= 0 {
		return DefaultPageSize
	}
	if n > MaxPageSize {
		return MaxPageSize
	}
	return n
}

// builder accumulates normalized records, dropping duplicates.
type builder struct {
	strip   func(string) string
	records []provider.ObjectRecord
	seen    map[string]struct{}
}

func newBuilder(strip func(string) string) *builder {
	return &builder{strip: strip, seen: make(map[string]struct{})}
}

func (b *builder) add(rec *provider.ObjectRecord) {
	id := string(rec.Type) + ":" + rec.Path
	if _, dup := b.seen[id]; dup {
		return
	}
	b.seen[id] = struct{}{}
	b.records = append(b.records, *rec)
}

func (b *builder) addDir(key string) {
	if p := b.strip(key); strings.Trim(p, "/") != "" {
		b.add(provider.DirRecord(p))
	}
}

func (b *builder) addEntry(entry provider.RawEntry) {
	entry.Key = b.strip(entry.Key)
	if rec, ok := provider.Normalize(entry); ok {
		b.add(rec)
	}
}

// addAncestors records every directory between prefix and key's parent.
func (b *builder) addAncestors(prefix, key string) {
	rest := strings.TrimPrefix(key, prefix)
	for i := strings.Index(rest, "/"); i >= 0 && i < len(rest)-1; {
		b.addDir(prefix + rest[:i+1])
		next := strings.Index(rest[i+1:], "/")
		if next < 0 {
			break
		}
		i += next + 1
	}
}
