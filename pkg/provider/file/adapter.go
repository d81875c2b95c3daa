package file

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/3leaps/nimbusfs/pkg/listing"
	"github.com/3leaps/nimbusfs/pkg/pathcodec"
	"github.com/3leaps/nimbusfs/pkg/provider"
)

// File modes standing in for object ACLs.
const (
	modePrivate os.FileMode = 0o600
	modePublic  os.FileMode = 0o644
	modeDir     os.FileMode = 0o755
)

// tempPattern names in-flight writes; listings skip them.
const tempPattern = ".nimbusfs-put-*"

// Adapter implements provider.Adapter for a local directory.
type Adapter struct {
	root   string
	codec  *pathcodec.Codec
	lister *listing.Engine
	log    *zap.Logger
}

var _ provider.Adapter = (*Adapter)(nil)

// Option customizes adapter construction.
type Option func(*Adapter)

// WithLogger sets the logger that receives swallowed errors.
func WithLogger(log *zap.Logger) Option {
	return func(a *Adapter) { a.log = log }
}

// New creates a local directory adapter.
func New(cfg Config, opts ...Option) (*Adapter, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	codec, err := pathcodec.New(pathcodec.Options{Domain: cfg.Domain, Scheme: cfg.Scheme})
	if err != nil {
		return nil, &provider.ConfigError{Provider: provider.ProviderFile, Field: "Domain", Message: err.Error()}
	}
	root, err := filepath.Abs(filepath.Clean(cfg.Root))
	if err != nil {
		return nil, &provider.ConfigError{Provider: provider.ProviderFile, Field: "Root", Message: err.Error()}
	}

	a := &Adapter{root: root, codec: codec, log: zap.NewNop()}
	for _, opt := range opts {
		opt(a)
	}
	a.lister = listing.New(a, listing.Options{Strategy: listing.Descend, PageSize: cfg.PageSize})
	return a, nil
}

// Root returns the absolute root directory.
func (a *Adapter) Root() string { return a.root }

// Close releases any resources held by the adapter.
func (a *Adapter) Close() error { return nil }

// Write stores content at path.
func (a *Adapter) Write(ctx context.Context, path string, content []byte, opts provider.UploadOptions) (*provider.ObjectRecord, bool) {
	return a.put(ctx, "Write", path, bytes.NewReader(content), opts)
}

// WriteStream stores the contents of r at path.
func (a *Adapter) WriteStream(ctx context.Context, path string, r io.Reader, opts provider.UploadOptions) (*provider.ObjectRecord, bool) {
	return a.put(ctx, "WriteStream", path, r, opts)
}

// Update overwrites path.
func (a *Adapter) Update(ctx context.Context, path string, content []byte, opts provider.UploadOptions) (*provider.ObjectRecord, bool) {
	return a.put(ctx, "Update", path, bytes.NewReader(content), opts)
}

// UpdateStream overwrites path with the contents of r.
func (a *Adapter) UpdateStream(ctx context.Context, path string, r io.Reader, opts provider.UploadOptions) (*provider.ObjectRecord, bool) {
	return a.put(ctx, "UpdateStream", path, r, opts)
}

// put writes through a temp file in the target directory and renames it
// into place, so readers never see a partial file. New files are private
// unless opts asks for public.
func (a *Adapter) put(ctx context.Context, op, path string, body io.Reader, opts provider.UploadOptions) (*provider.ObjectRecord, bool) {
	key := pathcodec.NormalizeKey(path)
	full, err := a.fullPath(key)
	if err != nil {
		a.fail(op, key, err)
		return nil, false
	}
	if err := os.MkdirAll(filepath.Dir(full), modeDir); err != nil {
		a.fail(op, key, err)
		return nil, false
	}

	tmp, err := os.CreateTemp(filepath.Dir(full), tempPattern)
	if err != nil {
		a.fail(op, key, err)
		return nil, false
	}
	tmpName := tmp.Name()
	defer func() {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
	}()

	if _, err := io.Copy(tmp, body); err != nil {
		a.fail(op, key, err)
		return nil, false
	}
	if err := tmp.Chmod(modeFor(opts.Visibility)); err != nil {
		a.fail(op, key, err)
		return nil, false
	}
	if err := tmp.Close(); err != nil {
		a.fail(op, key, err)
		return nil, false
	}
	if err := os.Rename(tmpName, full); err != nil {
		a.fail(op, key, err)
		return nil, false
	}
	return a.Metadata(ctx, key)
}

func modeFor(v provider.Visibility) os.FileMode {
	if v == provider.VisibilityPublic {
		return modePublic
	}
	return modePrivate
}

// CreateDirectory creates the directory for prefix.
func (a *Adapter) CreateDirectory(_ context.Context, prefix string, _ provider.UploadOptions) (*provider.ObjectRecord, bool) {
	key := strings.Trim(pathcodec.NormalizeKey(prefix), "/")
	if key == "" {
		return nil, false
	}
	full, err := a.fullPath(key)
	if err != nil {
		a.fail("CreateDirectory", key, err)
		return nil, false
	}
	if err := os.MkdirAll(full, modeDir); err != nil {
		a.fail("CreateDirectory", key, err)
		return nil, false
	}
	return provider.DirRecord(key), true
}

// Rename moves path to newPath with os.Rename, which is atomic within one
// filesystem.
func (a *Adapter) Rename(_ context.Context, path, newPath string) bool {
	src, dst, err := a.pair(path, newPath)
	if err != nil {
		a.fail("Rename", path, err)
		return false
	}
	if err := regularFile(src); err != nil {
		a.fail("Rename", path, err)
		return false
	}
	if err := os.MkdirAll(filepath.Dir(dst), modeDir); err != nil {
		a.fail("Rename", newPath, err)
		return false
	}
	if err := os.Rename(src, dst); err != nil {
		a.fail("Rename", path, err)
		return false
	}
	return true
}

// Copy duplicates path to newPath, keeping its mode.
func (a *Adapter) Copy(ctx context.Context, path, newPath string) bool {
	src, _, err := a.pair(path, newPath)
	if err != nil {
		a.fail("Copy", path, err)
		return false
	}
	if err := regularFile(src); err != nil {
		a.fail("Copy", path, err)
		return false
	}
	f, err := os.Open(src)
	if err != nil {
		a.fail("Copy", path, err)
		return false
	}
	defer func() { _ = f.Close() }()

	st, err := f.Stat()
	if err != nil {
		a.fail("Copy", path, err)
		return false
	}
	v := provider.VisibilityPrivate
	if st.Mode().Perm()&0o004 != 0 {
		v = provider.VisibilityPublic
	}
	_, ok := a.put(ctx, "Copy", newPath, f, provider.UploadOptions{Visibility: v})
	return ok
}

// Delete removes a single file. A missing file is not an error.
func (a *Adapter) Delete(_ context.Context, path string) bool {
	key := pathcodec.NormalizeKey(path)
	full, err := a.fullPath(key)
	if err != nil {
		a.fail("Delete", key, err)
		return false
	}
	if err := os.Remove(full); err != nil && !os.IsNotExist(err) {
		a.fail("Delete", key, err)
		return false
	}
	return true
}

// DeleteDirectory removes prefix and everything below it. The root cannot
// be deleted.
func (a *Adapter) DeleteDirectory(_ context.Context, prefix string) bool {
	key := strings.Trim(pathcodec.NormalizeKey(prefix), "/")
	if key == "" {
		a.log.Warn("Refusing to delete root directory", zap.String("root", a.root))
		return false
	}
	full, err := a.fullPath(key)
	if err != nil {
		a.fail("DeleteDirectory", key, err)
		return false
	}
	if err := os.RemoveAll(full); err != nil {
		a.fail("DeleteDirectory", key, err)
		return false
	}
	return true
}

// Exists reports whether path is a regular file.
func (a *Adapter) Exists(_ context.Context, path string) bool {
	_, ok := a.stat("Exists", path)
	return ok
}

// Read returns the full content of path.
func (a *Adapter) Read(ctx context.Context, path string) ([]byte, bool) {
	rc, ok := a.ReadStream(ctx, path)
	if !ok {
		return nil, false
	}
	defer func() { _ = rc.Close() }()

	data, err := io.ReadAll(rc)
	if err != nil {
		a.fail("Read", path, err)
		return nil, false
	}
	return data, true
}

// ReadStream opens path for reading.
func (a *Adapter) ReadStream(_ context.Context, path string) (io.ReadCloser, bool) {
	key := pathcodec.NormalizeKey(path)
	full, err := a.fullPath(key)
	if err != nil {
		a.fail("ReadStream", key, err)
		return nil, false
	}
	if err := regularFile(full); err != nil {
		a.fail("ReadStream", key, err)
		return nil, false
	}
	f, err := os.Open(full)
	if err != nil {
		a.fail("ReadStream", key, err)
		return nil, false
	}
	return f, true
}

func (a *Adapter) stat(op, path string) (os.FileInfo, bool) {
	key := pathcodec.NormalizeKey(path)
	full, err := a.fullPath(key)
	if err != nil {
		a.fail(op, key, err)
		return nil, false
	}
	st, err := os.Stat(full)
	if err == nil && !st.Mode().IsRegular() {
		err = fmt.Errorf("%s is not a regular file: %w", key, provider.ErrNotFound)
	}
	if err != nil {
		a.fail(op, key, err)
		return nil, false
	}
	return st, true
}

// Metadata stats path. The content type comes from the extension.
func (a *Adapter) Metadata(_ context.Context, path string) (*provider.ObjectRecord, bool) {
	st, ok := a.stat("Metadata", path)
	if !ok {
		return nil, false
	}
	key := pathcodec.NormalizeKey(path)
	return provider.Normalize(provider.RawEntry{
		Key:          key,
		Size:         provider.Int64(st.Size()),
		LastModified: st.ModTime(),
		ContentType:  provider.ResolveContentType(key, ""),
	})
}

// Size returns the file size.
func (a *Adapter) Size(_ context.Context, path string) (int64, bool) {
	st, ok := a.stat("Size", path)
	if !ok {
		return 0, false
	}
	return st.Size(), true
}

// MimeType derives the content type from the extension of an existing file.
func (a *Adapter) MimeType(_ context.Context, path string) (string, bool) {
	if _, ok := a.stat("MimeType", path); !ok {
		return "", false
	}
	return provider.ResolveContentType(pathcodec.NormalizeKey(path), ""), true
}

// Timestamp returns the modification time in epoch seconds.
func (a *Adapter) Timestamp(_ context.Context, path string) (int64, bool) {
	st, ok := a.stat("Timestamp", path)
	if !ok {
		return 0, false
	}
	return st.ModTime().Unix(), true
}

// SetVisibility maps public to mode 0644 and private to 0600.
func (a *Adapter) SetVisibility(_ context.Context, path string, v provider.Visibility) bool {
	key := pathcodec.NormalizeKey(path)
	if _, ok := a.stat("SetVisibility", key); !ok {
		return false
	}
	full, _ := a.fullPath(key)
	if err := os.Chmod(full, modeFor(v)); err != nil {
		a.fail("SetVisibility", key, err)
		return false
	}
	return true
}

// Visibility is public when the file is world-readable.
func (a *Adapter) Visibility(_ context.Context, path string) (provider.Visibility, bool) {
	st, ok := a.stat("Visibility", path)
	if !ok {
		return "", false
	}
	if st.Mode().Perm()&0o004 != 0 {
		return provider.VisibilityPublic, true
	}
	return provider.VisibilityPrivate, true
}

// URL returns the domain URL for path, or a file:// URL without a domain.
func (a *Adapter) URL(path string) string {
	return a.codec.PublicURL(pathcodec.NormalizeKey(path), func(key string) string {
		full, err := a.fullPath(key)
		if err != nil {
			return ""
		}
		return (&url.URL{Scheme: "file", Path: filepath.ToSlash(full)}).String()
	})
}

// TemporaryURL is not supported for local files.
func (a *Adapter) TemporaryURL(_ context.Context, path string, _ time.Time, _ provider.URLOptions) (string, bool) {
	a.fail("TemporaryURL", pathcodec.NormalizeKey(path), provider.ErrUnsupported)
	return "", false
}

// ListDirectory returns every entry under prefix.
func (a *Adapter) ListDirectory(ctx context.Context, prefix string, recursive bool) ([]provider.ObjectRecord, error) {
	dir := a.codec.ListPrefix(prefix)
	recs, err := a.lister.List(ctx, dir, recursive)
	if err != nil {
		return nil, a.wrapError("ListDirectory", dir, err)
	}
	return recs, nil
}

type dirItem struct {
	key   string
	entry *provider.RawEntry
}

// ListPage lists one directory level. Subdirectories become common
// prefixes; items are ordered by key so the marker resumes correctly.
func (a *Adapter) ListPage(ctx context.Context, req listing.Request) (*listing.Page, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if req.Delimiter != listing.Delimiter {
		return nil, fmt.Errorf("file listing requires the %q delimiter", listing.Delimiter)
	}

	full, err := a.fullPath(req.Prefix)
	if err != nil {
		return nil, err
	}
	dirents, err := os.ReadDir(full)
	if err != nil {
		if os.IsNotExist(err) {
			return &listing.Page{}, nil
		}
		return nil, err
	}

	items := make([]dirItem, 0, len(dirents))
	for _, d := range dirents {
		name := d.Name()
		if ok, _ := filepath.Match(tempPattern, name); ok {
			continue
		}
		key := req.Prefix + name
		if d.IsDir() {
			items = append(items, dirItem{key: key + "/"})
			continue
		}
		info, err := d.Info()
		if err != nil || !info.Mode().IsRegular() {
			continue
		}
		items = append(items, dirItem{key: key, entry: &provider.RawEntry{
			Key:          key,
			Size:         provider.Int64(info.Size()),
			LastModified: info.ModTime(),
			ContentType:  provider.ResolveContentType(name, ""),
		}})
	}
	sort.Slice(items, func(i, j int) bool { return items[i].key < items[j].key })

	page := &listing.Page{}
	maxKeys := req.MaxKeys
	if maxKeys <= 0 {
		maxKeys = listing.DefaultPageSize
	}
	for _, it := range items {
		if it.key <= req.Marker {
			continue
		}
		if len(page.Entries)+len(page.CommonPrefixes) == maxKeys {
			page.Truncated = true
			break
		}
		page.NextMarker = it.key
		if it.entry == nil {
			page.CommonPrefixes = append(page.CommonPrefixes, it.key)
			continue
		}
		page.Entries = append(page.Entries, *it.entry)
	}
	if !page.Truncated {
		page.NextMarker = ""
	}
	return page, nil
}

func (a *Adapter) pair(path, newPath string) (string, string, error) {
	src, err := a.fullPath(pathcodec.NormalizeKey(path))
	if err != nil {
		return "", "", err
	}
	dst, err := a.fullPath(pathcodec.NormalizeKey(newPath))
	if err != nil {
		return "", "", err
	}
	return src, dst, nil
}

func regularFile(full string) error {
	st, err := os.Stat(full)
	if err != nil {
		return err
	}
	if !st.Mode().IsRegular() {
		return fmt.Errorf("not a regular file: %w", provider.ErrNotFound)
	}
	return nil
}

var errTraversal = errors.New("invalid key path")

// fullPath maps a key below the root, rejecting traversal.
func (a *Adapter) fullPath(key string) (string, error) {
	key = strings.TrimPrefix(strings.TrimSpace(key), "/")
	clean := strings.TrimPrefix(filepath.Clean("/"+key), "/")
	if clean == ".." || strings.HasPrefix(clean, "../") {
		return "", errTraversal
	}
	return filepath.Join(a.root, filepath.FromSlash(clean)), nil
}

func (a *Adapter) fail(op, key string, err error) {
	provider.LogFailure(a.log, a.wrapError(op, key, err))
}

// wrapError normalizes filesystem errors to provider sentinels.
func (a *Adapter) wrapError(op, key string, err error) error {
	wrapped := &provider.ProviderError{Op: op, Provider: provider.ProviderFile, Bucket: a.root, Key: key, Err: err}
	switch {
	case errors.Is(err, os.ErrNotExist):
		wrapped.Err = provider.ErrNotFound
	case errors.Is(err, os.ErrPermission), errors.Is(err, errTraversal):
		wrapped.Err = provider.ErrAccessDenied
	}
	return wrapped
}
