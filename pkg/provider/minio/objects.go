package minio

import (
	"bytes"
	"context"
	"fmt"
	"io"

	miniogo "github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/encrypt"
	"go.uber.org/zap"

	"github.com/3leaps/nimbusfs/pkg/provider"
)

// amzACL is the canned ACL header; minio-go sends x-amz-* metadata keys
// verbatim.
const amzACL = "x-amz-acl"

// Write uploads content to path.
func (a *Adapter) Write(ctx context.Context, path string, content []byte, opts provider.UploadOptions) (*provider.ObjectRecord, bool) {
	return a.put(ctx, "Write", a.codec.ApplyPrefix(path), bytes.NewReader(content), int64(len(content)), opts)
}

// WriteStream uploads r to path. The size is unknown, so minio-go streams
// it as a multipart upload when large.
func (a *Adapter) WriteStream(ctx context.Context, path string, r io.Reader, opts provider.UploadOptions) (*provider.ObjectRecord, bool) {
	return a.put(ctx, "WriteStream", a.codec.ApplyPrefix(path), r, -1, opts)
}

// Update overwrites path.
func (a *Adapter) Update(ctx context.Context, path string, content []byte, opts provider.UploadOptions) (*provider.ObjectRecord, bool) {
	return a.put(ctx, "Update", a.codec.ApplyPrefix(path), bytes.NewReader(content), int64(len(content)), opts)
}

// UpdateStream overwrites path with the contents of r.
func (a *Adapter) UpdateStream(ctx context.Context, path string, r io.Reader, opts provider.UploadOptions) (*provider.ObjectRecord, bool) {
	return a.put(ctx, "UpdateStream", a.codec.ApplyPrefix(path), r, -1, opts)
}

// CreateDirectory writes the "prefix/" placeholder object.
func (a *Adapter) CreateDirectory(ctx context.Context, prefix string, opts provider.UploadOptions) (*provider.ObjectRecord, bool) {
	key := a.codec.DirKey(prefix)
	if key == "" {
		return nil, false
	}
	if opts.ContentType == "" {
		opts.ContentType = provider.DefaultContentType
	}
	return a.put(ctx, "CreateDirectory", key, bytes.NewReader(nil), 0, opts)
}

func (a *Adapter) put(ctx context.Context, op, key string, r io.Reader, size int64, opts provider.UploadOptions) (*provider.ObjectRecord, bool) {
	putOpts := miniogo.PutObjectOptions{
		ContentType: provider.ResolveContentType(key, opts.ContentType),
	}
	if len(opts.Params) > 0 || opts.Visibility != "" {
		putOpts.UserMetadata = make(map[string]string, len(opts.Params)+1)
		for k, v := range opts.Params {
			putOpts.UserMetadata[k] = v
		}
		if opts.Visibility != "" {
			putOpts.UserMetadata[amzACL] = cannedACL(opts.Visibility)
		}
	}
	if a.cfg.Encrypt || opts.Encrypt {
		putOpts.ServerSideEncryption = encrypt.NewSSE()
	}

	info, err := a.api.PutObject(ctx, a.cfg.Bucket, key, r, size, putOpts)
	if err != nil {
		a.fail(op, key, err)
		return nil, false
	}
	return provider.Normalize(provider.RawEntry{
		Key:          a.codec.StripPrefix(key),
		Size:         provider.Int64(info.Size),
		LastModified: info.LastModified,
		ContentType:  putOpts.ContentType,
		ETag:         info.ETag,
	})
}

// Rename copies path to newPath and deletes path. It is not atomic: when
// the delete fails both objects remain.
func (a *Adapter) Rename(ctx context.Context, path, newPath string) bool {
	if !a.Copy(ctx, path, newPath) {
		return false
	}
	return a.Delete(ctx, path)
}

// Copy performs a server-side copy.
func (a *Adapter) Copy(ctx context.Context, path, newPath string) bool {
	src := a.codec.ApplyPrefix(path)
	_, err := a.api.CopyObject(ctx,
		miniogo.CopyDestOptions{Bucket: a.cfg.Bucket, Object: a.codec.ApplyPrefix(newPath)},
		miniogo.CopySrcOptions{Bucket: a.cfg.Bucket, Object: src},
	)
	if err != nil {
		a.fail("Copy", src, err)
		return false
	}
	return true
}

// Delete removes a single object.
func (a *Adapter) Delete(ctx context.Context, path string) bool {
	key := a.codec.ApplyPrefix(path)
	if err := a.api.RemoveObject(ctx, a.cfg.Bucket, key); err != nil {
		a.fail("Delete", key, err)
		return false
	}
	return true
}

// DeleteDirectory removes every object under prefix through the batched
// multi-object delete. The bucket root cannot be deleted this way.
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
	if len(keys) == 0 {
		return true
	}

	if failed := a.api.RemoveObjects(ctx, a.cfg.Bucket, keys); len(failed) > 0 {
		a.fail("DeleteDirectory", failed[0].ObjectName, fmt.Errorf("%d keys not deleted: %w", len(failed), failed[0].Err))
		return false
	}
	return true
}

// Exists reports whether a stat of path succeeds.
func (a *Adapter) Exists(ctx context.Context, path string) bool {
	key := a.codec.ApplyPrefix(path)
	if _, err := a.api.StatObject(ctx, a.cfg.Bucket, key); err != nil {
		a.fail("Exists", key, err)
		return false
	}
	return true
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

// ReadStream opens path for streaming.
func (a *Adapter) ReadStream(ctx context.Context, path string) (io.ReadCloser, bool) {
	key := a.codec.ApplyPrefix(path)
	rc, err := a.api.GetObject(ctx, a.cfg.Bucket, key)
	if err != nil {
		a.fail("ReadStream", key, err)
		return nil, false
	}
	return rc, true
}

// Metadata fetches and normalizes the object's metadata.
func (a *Adapter) Metadata(ctx context.Context, path string) (*provider.ObjectRecord, bool) {
	key := a.codec.ApplyPrefix(path)
	info, err := a.api.StatObject(ctx, a.cfg.Bucket, key)
	if err != nil {
		a.fail("Metadata", key, err)
		return nil, false
	}
	return provider.Normalize(provider.RawEntry{
		Key:          a.codec.StripPrefix(key),
		Size:         provider.Int64(info.Size),
		LastModified: info.LastModified,
		ContentType:  info.ContentType,
		ETag:         info.ETag,
	})
}

// Size returns the content length of path.
func (a *Adapter) Size(ctx context.Context, path string) (int64, bool) {
	rec, ok := a.Metadata(ctx, path)
	if !ok || rec.Size == nil {
		return 0, false
	}
	return *rec.Size, true
}

// MimeType returns the content type of path.
func (a *Adapter) MimeType(ctx context.Context, path string) (string, bool) {
	rec, ok := a.Metadata(ctx, path)
	if !ok || rec.MimeType == "" {
		return "", false
	}
	return rec.MimeType, true
}

// Timestamp returns the last-modified time of path in epoch seconds.
func (a *Adapter) Timestamp(ctx context.Context, path string) (int64, bool) {
	rec, ok := a.Metadata(ctx, path)
	if !ok || rec.Timestamp == nil {
		return 0, false
	}
	return *rec.Timestamp, true
}
