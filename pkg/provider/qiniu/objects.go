package qiniu

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/qiniu/go-sdk/v7/storage"
	"go.uber.org/zap"

	"github.com/3leaps/nimbusfs/pkg/pathcodec"
	"github.com/3leaps/nimbusfs/pkg/provider"
)

// maxBatchOps is the most operations one Kodo batch call accepts.
const maxBatchOps = 1000

// Write uploads content to path.
func (a *Adapter) Write(ctx context.Context, path string, content []byte, opts provider.UploadOptions) (*provider.ObjectRecord, bool) {
	return a.put(ctx, "Write", a.codec.ApplyPrefix(path), content, opts)
}

// WriteStream uploads r to path. Form uploads need the size up front, so
// the stream is buffered.
func (a *Adapter) WriteStream(ctx context.Context, path string, r io.Reader, opts provider.UploadOptions) (*provider.ObjectRecord, bool) {
	return a.putStream(ctx, "WriteStream", path, r, opts)
}

// Update overwrites path.
func (a *Adapter) Update(ctx context.Context, path string, content []byte, opts provider.UploadOptions) (*provider.ObjectRecord, bool) {
	return a.put(ctx, "Update", a.codec.ApplyPrefix(path), content, opts)
}

// UpdateStream overwrites path with the contents of r.
func (a *Adapter) UpdateStream(ctx context.Context, path string, r io.Reader, opts provider.UploadOptions) (*provider.ObjectRecord, bool) {
	return a.putStream(ctx, "UpdateStream", path, r, opts)
}

func (a *Adapter) putStream(ctx context.Context, op, path string, r io.Reader, opts provider.UploadOptions) (*provider.ObjectRecord, bool) {
	key := a.codec.ApplyPrefix(path)
	content, err := io.ReadAll(r)
	if err != nil {
		a.fail(op, key, err)
		return nil, false
	}
	return a.put(ctx, op, key, content, opts)
}

// CreateDirectory writes the "prefix/" placeholder object.
func (a *Adapter) CreateDirectory(ctx context.Context, prefix string, opts provider.UploadOptions) (*provider.ObjectRecord, bool) {
	key := a.codec.DirKey(prefix)
	if key == "" {
		return nil, false
	}
	return a.put(ctx, "CreateDirectory", key, nil, opts)
}

// put uploads content. Visibility and encryption options have no per-object
// equivalent in Kodo and are ignored.
func (a *Adapter) put(ctx context.Context, op, key string, content []byte, opts provider.UploadOptions) (*provider.ObjectRecord, bool) {
	if opts.Visibility != "" {
		a.log.Debug("Ignoring per-object visibility", zap.String("key", key), zap.String("visibility", string(opts.Visibility)))
	}

	extra := &storage.PutExtra{MimeType: provider.ResolveContentType(key, opts.ContentType)}
	if len(opts.Params) > 0 {
		extra.Params = make(map[string]string, len(opts.Params))
		for k, v := range opts.Params {
			// Custom variables must carry the x: prefix.
			if !strings.HasPrefix(k, "x:") {
				k = "x:" + k
			}
			extra.Params[k] = v
		}
	}

	ret, err := a.api.Put(ctx, a.cfg.Bucket, key, bytes.NewReader(content), int64(len(content)), extra)
	if err != nil {
		a.fail(op, key, err)
		return nil, false
	}
	return provider.Normalize(provider.RawEntry{
		Key:          a.codec.StripPrefix(key),
		Size:         provider.Int64(int64(len(content))),
		LastModified: a.now(),
		ContentType:  extra.MimeType,
		ETag:         ret.Hash,
	})
}

// Rename copies path to newPath and deletes path. It is not atomic.
func (a *Adapter) Rename(ctx context.Context, path, newPath string) bool {
	if !a.Copy(ctx, path, newPath) {
		return false
	}
	return a.Delete(ctx, path)
}

// Copy performs a server-side copy, overwriting newPath.
func (a *Adapter) Copy(ctx context.Context, path, newPath string) bool {
	src := a.codec.ApplyPrefix(path)
	if err := a.api.Copy(ctx, a.cfg.Bucket, src, a.codec.ApplyPrefix(newPath)); err != nil {
		a.fail("Copy", src, err)
		return false
	}
	return true
}

// Delete removes a single object.
func (a *Adapter) Delete(ctx context.Context, path string) bool {
	key := a.codec.ApplyPrefix(path)
	if err := a.api.Delete(ctx, a.cfg.Bucket, key); err != nil {
		a.fail("Delete", key, err)
		return false
	}
	return true
}

// DeleteDirectory removes every object under prefix in batches. Kodo
// reports 612 for keys already gone, which counts as deleted.
func (a *Adapter) DeleteDirectory(ctx context.Context, prefix string) bool {
	dir := a.codec.DirKey(prefix)
	if dir == "" {
		a.log.Warn("Refusing to delete bucket root", zap.String("bucket", a.cfg.Bucket))
		return false
	}

	keys, err := a.lister.Keys(ctx, dir)
	if err != nil {
		a.fail("DeleteDirectory", dir, err)
		return false
	}

	for start := 0; start < len(keys); start += maxBatchOps {
		end := min(start+maxBatchOps, len(keys))
		codes, err := a.api.BatchDelete(ctx, a.cfg.Bucket, keys[start:end])
		if err != nil {
			a.fail("DeleteDirectory", dir, err)
			return false
		}

		var bad *batchError
		for i, code := range codes {
			if code == http.StatusOK || code == codeNoSuchEntry {
				continue
			}
			if bad == nil {
				bad = &batchError{code: code}
				a.fail("DeleteDirectory", keys[start+i], bad)
			}
			bad.failed++
		}
		if bad != nil {
			return false
		}
	}
	return true
}

// Exists reports whether a stat of path succeeds.
func (a *Adapter) Exists(ctx context.Context, path string) bool {
	_, ok := a.stat(ctx, "Exists", path)
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
		a.fail("Read", a.codec.ApplyPrefix(path), err)
		return nil, false
	}
	return data, true
}

// ReadStream fetches path from the bound domain through a short-lived
// signed URL, which works for public and private buckets alike.
func (a *Adapter) ReadStream(ctx context.Context, path string) (io.ReadCloser, bool) {
	key := a.codec.ApplyPrefix(path)
	signed := a.api.PrivateURL(a.codec.Origin(), key, a.now().Add(readURLTTL).Unix())
	rc, err := a.api.Get(ctx, signed)
	if err != nil {
		a.fail("ReadStream", key, err)
		return nil, false
	}
	return rc, true
}

func (a *Adapter) stat(ctx context.Context, op, path string) (storage.FileInfo, bool) {
	key := a.codec.ApplyPrefix(path)
	info, err := a.api.Stat(ctx, a.cfg.Bucket, key)
	if err != nil {
		a.fail(op, key, err)
		return storage.FileInfo{}, false
	}
	return info, true
}

// Metadata fetches and normalizes the object's metadata.
func (a *Adapter) Metadata(ctx context.Context, path string) (*provider.ObjectRecord, bool) {
	info, ok := a.stat(ctx, "Metadata", path)
	if !ok {
		return nil, false
	}
	return provider.Normalize(provider.RawEntry{
		Key:          pathcodec.NormalizeKey(path),
		Size:         provider.Int64(info.Fsize),
		LastModified: putTime(info.PutTime),
		ContentType:  info.MimeType,
		ETag:         info.Hash,
	})
}

// Size returns the content length of path.
func (a *Adapter) Size(ctx context.Context, path string) (int64, bool) {
	info, ok := a.stat(ctx, "Size", path)
	if !ok {
		return 0, false
	}
	return info.Fsize, true
}

// MimeType returns the content type of path.
func (a *Adapter) MimeType(ctx context.Context, path string) (string, bool) {
	info, ok := a.stat(ctx, "MimeType", path)
	if !ok {
		return "", false
	}
	if info.MimeType == "" {
		return provider.DefaultContentType, true
	}
	return info.MimeType, true
}

// Timestamp returns the upload time of path in epoch seconds.
func (a *Adapter) Timestamp(ctx context.Context, path string) (int64, bool) {
	info, ok := a.stat(ctx, "Timestamp", path)
	if !ok {
		return 0, false
	}
	ts := provider.HundredNanosToEpoch(info.PutTime)
	if ts == nil {
		a.fail("Timestamp", a.codec.ApplyPrefix(path), provider.ErrUnavailable)
		return 0, false
	}
	return *ts, true
}

// SetVisibility always fails: Kodo access control is per bucket.
func (a *Adapter) SetVisibility(_ context.Context, path string, _ provider.Visibility) bool {
	a.fail("SetVisibility", a.codec.ApplyPrefix(path), provider.ErrUnsupported)
	return false
}

// Visibility always fails: Kodo access control is per bucket.
func (a *Adapter) Visibility(_ context.Context, path string) (provider.Visibility, bool) {
	a.fail("Visibility", a.codec.ApplyPrefix(path), provider.ErrUnsupported)
	return "", false
}

// URL returns the object URL on the bound domain.
func (a *Adapter) URL(path string) string {
	return a.codec.PublicURL(a.codec.ApplyPrefix(path), nil)
}

// TemporaryURL signs the domain URL with a download deadline. Response
// header overrides are not supported by Kodo download tokens and are
// ignored.
func (a *Adapter) TemporaryURL(_ context.Context, path string, expiry time.Time, _ provider.URLOptions) (string, bool) {
	if !expiry.After(a.now()) {
		a.fail("TemporaryURL", a.codec.ApplyPrefix(path), errors.New("expiry is in the past"))
		return "", false
	}
	return a.api.PrivateURL(a.codec.Origin(), a.codec.ApplyPrefix(path), expiry.Unix()), true
}
