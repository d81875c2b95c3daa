// Package contract runs the provider-independent behavior checks every
// storage adapter must pass.
//
// Adapter packages call Run from their own tests with a Suite whose New
// function builds the adapter over an in-memory fake of the provider SDK.
package contract

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/url"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/3leaps/nimbusfs/pkg/provider"
	"github.com/3leaps/nimbusfs/test/memstore"
)

// CDNDomain is the domain passed in Options.Domain by CDN checks.
const CDNDomain = "cdn.example.com"

// Options are the per-case adapter settings.
type Options struct {
	// PageSize is the listing page size.
	PageSize int

	// Domain is the CDN domain, or empty.
	Domain string
}

// Harness is one adapter under test.
type Harness struct {
	Adapter provider.Adapter

	// Store backs the fake SDK client. Nil when the adapter has no fake
	// (failure-injection checks are skipped).
	Store *memstore.Store
}

// Suite describes an adapter to Run.
type Suite struct {
	New func(t *testing.T, opts Options) Harness

	// SupportsVisibility is false for providers without per-object ACLs.
	SupportsVisibility bool

	// SupportsTemporaryURL is false for providers that cannot sign URLs.
	SupportsTemporaryURL bool

	// ProviderHost is the host of native URLs when no domain is set. Empty
	// means the provider requires a domain.
	ProviderHost string

	// DerivesContentType is true when the backend cannot store a content
	// type and always derives it from the key extension.
	DerivesContentType bool
}

// Run executes every contract check as a subtest.
func Run(t *testing.T, s Suite) {
	t.Run("RoundTrip", func(t *testing.T) { testRoundTrip(t, s) })
	t.Run("Update", func(t *testing.T) { testUpdate(t, s) })
	t.Run("Metadata", func(t *testing.T) { testMetadata(t, s) })
	t.Run("Missing", func(t *testing.T) { testMissing(t, s) })
	t.Run("ListNonRecursive", func(t *testing.T) { testListNonRecursive(t, s) })
	t.Run("ListRecursivePageSize", func(t *testing.T) { testListRecursivePageSize(t, s) })
	t.Run("CreateDirectory", func(t *testing.T) { testCreateDirectory(t, s) })
	t.Run("DeleteDirectory", func(t *testing.T) { testDeleteDirectory(t, s) })
	t.Run("CopyDeleteIsRename", func(t *testing.T) { testCopyDeleteIsRename(t, s) })
	t.Run("RenameNotAtomic", func(t *testing.T) { testRenameNotAtomic(t, s) })
	t.Run("Visibility", func(t *testing.T) { testVisibility(t, s) })
	t.Run("PublicURL", func(t *testing.T) { testPublicURL(t, s) })
	t.Run("TemporaryURL", func(t *testing.T) { testTemporaryURL(t, s) })
}

func harness(t *testing.T, s Suite, opts Options) Harness {
	t.Helper()
	h := s.New(t, opts)
	t.Cleanup(func() { _ = h.Adapter.Close() })
	return h
}

func write(t *testing.T, a provider.Adapter, path, content string) {
	t.Helper()
	_, ok := a.Write(context.Background(), path, []byte(content), provider.UploadOptions{})
	require.True(t, ok, "write %s", path)
}

func ids(recs []provider.ObjectRecord) []string {
	out := make([]string, 0, len(recs))
	for _, r := range recs {
		out = append(out, string(r.Type)+":"+r.Path)
	}
	sort.Strings(out)
	return out
}

func testRoundTrip(t *testing.T, s Suite) {
	ctx := context.Background()
	a := harness(t, s, Options{}).Adapter
	content := []byte("hello, \x00 binary \xff world")

	rec, ok := a.Write(ctx, "dir/hello.bin", content, provider.UploadOptions{})
	require.True(t, ok)
	assert.Equal(t, provider.TypeFile, rec.Type)
	assert.Equal(t, "dir/hello.bin", rec.Path)

	got, ok := a.Read(ctx, "dir/hello.bin")
	require.True(t, ok)
	assert.Equal(t, content, got)

	_, ok = a.WriteStream(ctx, "dir/stream.bin", bytes.NewReader(content), provider.UploadOptions{})
	require.True(t, ok)

	rc, ok := a.ReadStream(ctx, "dir/stream.bin")
	require.True(t, ok)
	streamed, err := io.ReadAll(rc)
	require.NoError(t, err)
	require.NoError(t, rc.Close())
	assert.Equal(t, content, streamed)

	assert.True(t, a.Exists(ctx, "dir/hello.bin"))
	assert.True(t, a.Exists(ctx, "/dir/hello.bin"), "leading slash is normalized")
}

func testUpdate(t *testing.T, s Suite) {
	ctx := context.Background()
	a := harness(t, s, Options{}).Adapter

	write(t, a, "u.txt", "first")
	_, ok := a.Update(ctx, "u.txt", []byte("second"), provider.UploadOptions{})
	require.True(t, ok)

	_, ok = a.UpdateStream(ctx, "u.txt", strings.NewReader("third!"), provider.UploadOptions{})
	require.True(t, ok)

	got, ok := a.Read(ctx, "u.txt")
	require.True(t, ok)
	assert.Equal(t, "third!", string(got))

	size, ok := a.Size(ctx, "u.txt")
	require.True(t, ok)
	assert.Equal(t, int64(6), size)
}

func testMetadata(t *testing.T, s Suite) {
	ctx := context.Background()
	a := harness(t, s, Options{}).Adapter

	before := time.Now().Add(-time.Minute).Unix()
	write(t, a, "docs/report.final.html", "0123456789")
	_, ok := a.Write(ctx, "docs/data.json", []byte("{}"), provider.UploadOptions{ContentType: "application/x-custom"})
	require.True(t, ok)

	rec, ok := a.Metadata(ctx, "docs/report.final.html")
	require.True(t, ok)
	assert.Equal(t, provider.TypeFile, rec.Type)
	assert.Equal(t, "docs/report.final.html", rec.Path)
	assert.Equal(t, "docs", rec.Dirname)
	assert.Equal(t, "report.final.html", rec.Basename)
	assert.Equal(t, "report.final", rec.Filename)
	assert.Equal(t, "html", rec.Extension)
	require.NotNil(t, rec.Size)
	assert.Equal(t, int64(10), *rec.Size, "size is content length")

	size, ok := a.Size(ctx, "docs/report.final.html")
	require.True(t, ok)
	assert.Equal(t, int64(10), size)

	ts, ok := a.Timestamp(ctx, "docs/report.final.html")
	require.True(t, ok)
	assert.GreaterOrEqual(t, ts, before)

	mt, ok := a.MimeType(ctx, "docs/report.final.html")
	require.True(t, ok)
	assert.True(t, strings.HasPrefix(mt, "text/html"), "got %q", mt)

	mt, ok = a.MimeType(ctx, "docs/data.json")
	require.True(t, ok)
	if s.DerivesContentType {
		assert.Equal(t, "application/json", mt)
	} else {
		assert.Equal(t, "application/x-custom", mt)
	}
}

func testMissing(t *testing.T, s Suite) {
	ctx := context.Background()
	a := harness(t, s, Options{}).Adapter

	assert.False(t, a.Exists(ctx, "nope.txt"))

	_, ok := a.Read(ctx, "nope.txt")
	assert.False(t, ok)
	_, ok = a.ReadStream(ctx, "nope.txt")
	assert.False(t, ok)
	_, ok = a.Metadata(ctx, "nope.txt")
	assert.False(t, ok)
	_, ok = a.Size(ctx, "nope.txt")
	assert.False(t, ok)
	_, ok = a.MimeType(ctx, "nope.txt")
	assert.False(t, ok)
	_, ok = a.Timestamp(ctx, "nope.txt")
	assert.False(t, ok)
	assert.False(t, a.Copy(ctx, "nope.txt", "other.txt"))
	assert.False(t, a.Rename(ctx, "nope.txt", "other.txt"))
}

var tree = []string{
	"media/a.txt",
	"media/b.txt",
	"media/c.txt",
	"media/img/1.png",
	"media/img/2.png",
	"media/img/raw/3.raw",
	"media/vid/4.mp4",
	"mediaextra.txt",
	"zz.txt",
}

func seedTree(t *testing.T, a provider.Adapter) {
	t.Helper()
	for _, k := range tree {
		write(t, a, k, "x")
	}
}

func testListNonRecursive(t *testing.T, s Suite) {
	ctx := context.Background()
	a := harness(t, s, Options{PageSize: 2}).Adapter
	seedTree(t, a)

	recs, err := a.ListDirectory(ctx, "media", false)
	require.NoError(t, err)
	assert.Equal(t, []string{
		"dir:media/img",
		"dir:media/vid",
		"file:media/a.txt",
		"file:media/b.txt",
		"file:media/c.txt",
	}, ids(recs))
	for _, r := range recs {
		assert.True(t, strings.HasPrefix(r.Path, "media/"), r.Path)
		if r.IsDir() {
			assert.Nil(t, r.Size)
			assert.Empty(t, r.ETag)
		}
	}

	recs, err = a.ListDirectory(ctx, "", false)
	require.NoError(t, err)
	assert.Equal(t, []string{"dir:media", "file:mediaextra.txt", "file:zz.txt"}, ids(recs))

	recs, err = a.ListDirectory(ctx, "empty", false)
	require.NoError(t, err)
	assert.Empty(t, recs)
}

func testListRecursivePageSize(t *testing.T, s Suite) {
	ctx := context.Background()
	want := []string{
		"dir:media/img",
		"dir:media/img/raw",
		"dir:media/vid",
		"file:media/a.txt",
		"file:media/b.txt",
		"file:media/c.txt",
		"file:media/img/1.png",
		"file:media/img/2.png",
		"file:media/img/raw/3.raw",
		"file:media/vid/4.mp4",
	}

	for _, pageSize := range []int{2, 1000} {
		a := harness(t, s, Options{PageSize: pageSize}).Adapter
		seedTree(t, a)

		recs, err := a.ListDirectory(ctx, "media/", true)
		require.NoError(t, err)
		assert.Equal(t, want, ids(recs), "page size %d", pageSize)
	}
}

func testCreateDirectory(t *testing.T, s Suite) {
	ctx := context.Background()
	a := harness(t, s, Options{}).Adapter

	rec, ok := a.CreateDirectory(ctx, "new/folder", provider.UploadOptions{})
	require.True(t, ok)
	assert.Equal(t, provider.TypeDir, rec.Type)
	assert.Equal(t, "new/folder", rec.Path)

	recs, err := a.ListDirectory(ctx, "new", false)
	require.NoError(t, err)
	assert.Equal(t, []string{"dir:new/folder"}, ids(recs))

	recs, err = a.ListDirectory(ctx, "new/folder", true)
	require.NoError(t, err)
	assert.Empty(t, recs, "placeholder is not its own child")
}

func testDeleteDirectory(t *testing.T, s Suite) {
	ctx := context.Background()
	a := harness(t, s, Options{PageSize: 2}).Adapter
	seedTree(t, a)
	_, ok := a.CreateDirectory(ctx, "media/empty", provider.UploadOptions{})
	require.True(t, ok)

	require.True(t, a.DeleteDirectory(ctx, "media"))

	recs, err := a.ListDirectory(ctx, "media", true)
	require.NoError(t, err)
	assert.Empty(t, recs)

	recs, err = a.ListDirectory(ctx, "", true)
	require.NoError(t, err)
	assert.Equal(t, []string{"file:mediaextra.txt", "file:zz.txt"}, ids(recs), "sibling with shared prefix survives")

	assert.True(t, a.DeleteDirectory(ctx, "does/not/exist"))
	assert.False(t, a.DeleteDirectory(ctx, ""), "root is refused")
}

func testCopyDeleteIsRename(t *testing.T, s Suite) {
	ctx := context.Background()

	viaCopy := harness(t, s, Options{}).Adapter
	write(t, viaCopy, "a.txt", "payload")
	require.True(t, viaCopy.Copy(ctx, "a.txt", "b.txt"))
	require.True(t, viaCopy.Delete(ctx, "a.txt"))

	viaRename := harness(t, s, Options{}).Adapter
	write(t, viaRename, "a.txt", "payload")
	require.True(t, viaRename.Rename(ctx, "a.txt", "b.txt"))

	for _, a := range []provider.Adapter{viaCopy, viaRename} {
		assert.False(t, a.Exists(ctx, "a.txt"))
		got, ok := a.Read(ctx, "b.txt")
		require.True(t, ok)
		assert.Equal(t, "payload", string(got))
	}
}

func testRenameNotAtomic(t *testing.T, s Suite) {
	ctx := context.Background()
	h := harness(t, s, Options{})
	if h.Store == nil {
		t.Skip("adapter has no injectable store")
	}

	write(t, h.Adapter, "a.txt", "payload")
	h.Store.FailNext(memstore.OpDelete, errors.New("injected delete failure"))

	assert.False(t, h.Adapter.Rename(ctx, "a.txt", "b.txt"))
	assert.True(t, h.Adapter.Exists(ctx, "a.txt"), "source survives failed delete")
	assert.True(t, h.Adapter.Exists(ctx, "b.txt"), "copy is not rolled back")
}

func testVisibility(t *testing.T, s Suite) {
	ctx := context.Background()
	a := harness(t, s, Options{}).Adapter
	write(t, a, "v.txt", "x")

	if !s.SupportsVisibility {
		assert.False(t, a.SetVisibility(ctx, "v.txt", provider.VisibilityPublic))
		_, ok := a.Visibility(ctx, "v.txt")
		assert.False(t, ok)
		return
	}

	v, ok := a.Visibility(ctx, "v.txt")
	require.True(t, ok)
	assert.Equal(t, provider.VisibilityPrivate, v, "no all-users grant reads as private")

	for _, want := range []provider.Visibility{provider.VisibilityPublic, provider.VisibilityPrivate} {
		require.True(t, a.SetVisibility(ctx, "v.txt", want))
		v, ok = a.Visibility(ctx, "v.txt")
		require.True(t, ok)
		assert.Equal(t, want, v)
	}

	_, ok = a.Write(ctx, "pub.txt", []byte("x"), provider.UploadOptions{Visibility: provider.VisibilityPublic})
	require.True(t, ok)
	v, ok = a.Visibility(ctx, "pub.txt")
	require.True(t, ok)
	assert.Equal(t, provider.VisibilityPublic, v)

	assert.False(t, a.SetVisibility(ctx, "missing.txt", provider.VisibilityPublic))
}

func testPublicURL(t *testing.T, s Suite) {
	a := harness(t, s, Options{Domain: CDNDomain}).Adapter

	u, err := url.Parse(a.URL("dir/photo 1.jpg"))
	require.NoError(t, err)
	assert.Equal(t, CDNDomain, u.Host)
	assert.Equal(t, "/dir/photo 1.jpg", u.Path)

	if s.ProviderHost == "" {
		return
	}
	a = harness(t, s, Options{}).Adapter
	u, err = url.Parse(a.URL("dir/photo 1.jpg"))
	require.NoError(t, err)
	assert.Equal(t, s.ProviderHost, u.Host)
	assert.True(t, strings.HasSuffix(u.Path, "/dir/photo 1.jpg"), u.Path)
}

func testTemporaryURL(t *testing.T, s Suite) {
	ctx := context.Background()
	expiry := time.Now().Add(10 * time.Minute)
	key := "dir/report 2024.pdf"

	h := harness(t, s, Options{Domain: CDNDomain})
	write(t, h.Adapter, key, "x")

	raw, ok := h.Adapter.TemporaryURL(ctx, key, expiry, provider.URLOptions{})
	if !s.SupportsTemporaryURL {
		assert.False(t, ok)
		return
	}
	require.True(t, ok)

	u, err := url.Parse(raw)
	require.NoError(t, err)
	assert.Equal(t, CDNDomain, u.Host)
	assert.Equal(t, "/"+key, u.Path, "path is the percent-decoded key")
	assert.NotEmpty(t, u.RawQuery, "signature query survives the rewrite")

	if s.ProviderHost == "" {
		return
	}
	h = harness(t, s, Options{})
	write(t, h.Adapter, key, "x")

	raw, ok = h.Adapter.TemporaryURL(ctx, key, expiry, provider.URLOptions{})
	require.True(t, ok)
	u, err = url.Parse(raw)
	require.NoError(t, err)
	assert.Equal(t, s.ProviderHost, u.Host)
	assert.True(t, strings.HasSuffix(u.Path, "/"+key), u.Path)

	_, ok = h.Adapter.TemporaryURL(ctx, key, time.Now().Add(-time.Minute), provider.URLOptions{})
	assert.False(t, ok, "expiry in the past is rejected")
}
