// Package pathcodec resolves logical paths to provider object keys and
// builds public URLs, optionally through a CDN domain.
//
// Object keys are UTF-8, slash separated and never start with a slash. A key
// ending in "/" is a directory placeholder.
package pathcodec

import (
	"fmt"
	"net/url"
	"strings"
)

// DefaultScheme is used for a domain configured without a scheme.
const DefaultScheme = "http"

// Options configures a Codec.
type Options struct {
	// Prefix is prepended to every key. It scopes an adapter to a
	// sub-tree of the bucket.
	Prefix string

	// Domain is the CDN or public host, with or without a scheme.
	Domain string

	// Scheme is applied when Domain has none. Default: http.
	Scheme string
}

// Codec maps paths to keys and keys to URLs. A Codec is immutable and safe
// for concurrent use.
type Codec struct {
	prefix string
	domain *url.URL
}

// New builds a Codec. It fails when Domain cannot be parsed into a host.
func New(opts Options) (*Codec, error) {
	c := &Codec{prefix: NormalizeKey(strings.TrimRight(opts.Prefix, "/"))}
	if c.prefix != "" {
		c.prefix += "/"
	}

	if opts.Domain == "" {
		return c, nil
	}

	u, err := ParseDomain(opts.Domain, opts.Scheme)
	if err != nil {
		return nil, err
	}
	c.domain = u
	return c, nil
}

// ParseDomain parses a domain that may lack a scheme, applying scheme (or
// DefaultScheme) in that case.
func ParseDomain(domain, scheme string) (*url.URL, error) {
	domain = strings.TrimSpace(domain)
	if scheme == "" {
		scheme = DefaultScheme
	}
	if !strings.Contains(domain, "://") {
		domain = scheme + "://" + domain
	}

	u, err := url.Parse(domain)
	if err != nil {
		return nil, fmt.Errorf("parse domain %q: %w", domain, err)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("domain %q has no host", domain)
	}
	u.Path = strings.TrimRight(u.Path, "/")
	u.RawPath = ""
	u.RawQuery = ""
	u.Fragment = ""
	return u, nil
}

// HasDomain reports whether a CDN or public domain is configured.
func (c *Codec) HasDomain() bool {
	return c.domain != nil
}

// Host returns the configured domain host, or empty.
func (c *Codec) Host() string {
	if c.domain == nil {
		return ""
	}
	return c.domain.Host
}

// Prefix returns the key prefix, including its trailing slash, or empty.
func (c *Codec) Prefix() string {
	return c.prefix
}

// ApplyPrefix resolves a logical path to the provider object key.
func (c *Codec) ApplyPrefix(p string) string {
	return c.prefix + NormalizeKey(p)
}

// StripPrefix is the inverse of ApplyPrefix for keys returned by a listing.
func (c *Codec) StripPrefix(key string) string {
	return strings.TrimPrefix(NormalizeKey(key), c.prefix)
}

// DirKey resolves a directory path to its placeholder key ("prefix/").
func (c *Codec) DirKey(p string) string {
	return DirKey(c.ApplyPrefix(p))
}

// ListPrefix resolves a directory path to the key prefix used to list its
// contents. The bucket root (with no configured prefix) lists with "".
func (c *Codec) ListPrefix(dir string) string {
	key := c.ApplyPrefix(strings.TrimRight(dir, "/"))
	if key == "" || strings.HasSuffix(key, "/") {
		return key
	}
	return key + "/"
}

// Origin returns the domain as scheme://host plus any base path, or empty.
func (c *Codec) Origin() string {
	if c.domain == nil {
		return ""
	}
	return c.domain.Scheme + "://" + c.domain.Host + c.domain.Path
}

// PublicURL returns the URL for the object key: the domain URL when a
// domain is configured, otherwise native(key). Domain URLs carry the key
// unescaped so they stay readable.
func (c *Codec) PublicURL(key string, native func(string) string) string {
	if c.domain == nil {
		return native(key)
	}
	return c.Origin() + "/" + key
}

// Rewrite replaces the scheme and host of a provider URL with the domain,
// emitting the percent-decoded path unescaped and the raw query (and with it
// any signature) untouched. When bucketSegment is not empty and the provider URL is
// path-style, the leading "/bucketSegment" is dropped. Without a domain the
// native URL is returned unchanged.
func (c *Codec) Rewrite(native, bucketSegment string) (string, error) {
	if c.domain == nil {
		return native, nil
	}

	u, err := url.Parse(native)
	if err != nil {
		return "", fmt.Errorf("parse provider url: %w", err)
	}

	p := u.Path
	if bucketSegment != "" {
		if rest, ok := strings.CutPrefix(p, "/"+bucketSegment+"/"); ok {
			p = "/" + rest
		}
	}
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}

	out := c.Origin() + p
	if u.RawQuery != "" {
		out += "?" + u.RawQuery
	}
	return out, nil
}

// NormalizeKey strips leading slashes from a path.
func NormalizeKey(p string) string {
	return strings.TrimLeft(p, "/")
}

// DirKey returns key with exactly one trailing slash. The empty key stays
// empty.
func DirKey(key string) string {
	key = strings.TrimRight(key, "/")
	if key == "" {
		return ""
	}
	return key + "/"
}

// IsDirKey reports whether key is a directory placeholder.
func IsDirKey(key string) bool {
	return strings.HasSuffix(key, "/")
}
