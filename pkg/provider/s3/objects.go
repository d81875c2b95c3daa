package s3

import (
	"bytes"
	"context"
	"io"
	"net/url"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"go.uber.org/zap"

	"github.com/3leaps/nimbusfs/pkg/provider"
)

// maxDeleteBatch is the DeleteObjects key limit.
const maxDeleteBatch = 1000

// Write uploads content to path.
func (a *Adapter) Write(ctx context.Context, path string, content []byte, opts provider.UploadOptions) (*provider.ObjectRecord, bool) {
	return a.put(ctx, "Write", a.codec.ApplyPrefix(path), content, opts)
}

// WriteStream uploads r to path through the SDK upload manager, which
// switches to multipart for large bodies.
func (a *Adapter) WriteStream(ctx context.Context, path string, r io.Reader, opts provider.UploadOptions) (*provider.ObjectRecord, bool) {
	key := a.codec.ApplyPrefix(path)
	body := &countingReader{r: r}

	input := a.putInput(key, opts)
	input.Body = body

	out, err := a.uploader.Upload(ctx, input)
	if err != nil {
		a.fail("WriteStream", key, err)
		return nil, false
	}
	return a.written(key, body.n, aws.ToString(input.ContentType), aws.ToString(out.ETag))
}

// Update overwrites path. S3 PUT always replaces.
func (a *Adapter) Update(ctx context.Context, path string, content []byte, opts provider.UploadOptions) (*provider.ObjectRecord, bool) {
	return a.put(ctx, "Update", a.codec.ApplyPrefix(path), content, opts)
}

// UpdateStream overwrites path with the contents of r.
func (a *Adapter) UpdateStream(ctx context.Context, path string, r io.Reader, opts provider.UploadOptions) (*provider.ObjectRecord, bool) {
	return a.WriteStream(ctx, path, r, opts)
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
	return a.put(ctx, "CreateDirectory", key, nil, opts)
}

func (a *Adapter) put(ctx context.Context, op, key string, content []byte, opts provider.UploadOptions) (*provider.ObjectRecord, bool) {
	input := a.putInput(key, opts)
	input.Body = bytes.NewReader(content)
	input.ContentLength = aws.Int64(int64(len(content)))

	out, err := a.api.PutObject(ctx, input)
	if err != nil {
		a.fail(op, key, err)
		return nil, false
	}
	return a.written(key, int64(len(content)), aws.ToString(input.ContentType), aws.ToString(out.ETag))
}

func (a *Adapter) putInput(key string, opts provider.UploadOptions) *s3.PutObjectInput {
	input := &s3.PutObjectInput{
		Bucket:      aws.String(a.bucket),
		Key:         aws.String(key),
		ContentType: aws.String(provider.ResolveContentType(key, opts.ContentType)),
	}
	if opts.Visibility != "" {
		input.ACL = cannedACL(opts.Visibility)
	}
	if a.cfg.Encrypt || opts.Encrypt {
		input.ServerSideEncryption = types.ServerSideEncryptionAes256
	}
	if len(opts.Params) > 0 {
		input.Metadata = opts.Params
	}
	return input
}

func (a *Adapter) written(key string, size int64, contentType, etag string) (*provider.ObjectRecord, bool) {
	return provider.Normalize(provider.RawEntry{
		Key:         a.codec.StripPrefix(key),
		Size:        provider.Int64(size),
		ContentType: contentType,
		ETag:        etag,
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
	dst := a.codec.ApplyPrefix(newPath)

	_, err := a.api.CopyObject(ctx, &s3.CopyObjectInput{
		Bucket:     aws.String(a.bucket),
		Key:        aws.String(dst),
		CopySource: aws.String(copySource(a.bucket, src)),
	})
	if err != nil {
		a.fail("Copy", src, err)
		return false
	}
	return true
}

// copySource builds the URL-encoded "bucket/key" CopySource value.
func copySource(bucket, key string) string {
	segments := strings.Split(key, "/")
	for i, s := range segments {
		segments[i] = url.PathEscape(s)
	}
	return bucket + "/" + strings.Join(segments, "/")
}

// Delete removes a single object.
func (a *Adapter) Delete(ctx context.Context, path string) bool {
	key := a.codec.ApplyPrefix(path)
	_, err := a.api.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(a.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		a.fail("Delete", key, err)
		return false
	}
	return true
}

// DeleteDirectory removes every object under prefix, batched through
// DeleteObjects. The bucket root cannot be deleted this way.
func (a *Adapter) DeleteDirectory(ctx context.Context, prefix string) bool {
	dir := a.codec.DirKey(prefix)
	if dir == "" {
		a.log.Warn("Refusing to delete bucket root", zap.String("bucket", a.bucket))
		return false
	}

	keys, err := a.lister.Keys(ctx, dir)
	if err != nil {
		a.fail("DeleteDirectory", dir, err)
		return false
	}

	for start := 0; start < len(keys); start += maxDeleteBatch {
		end := min(start+maxDeleteBatch, len(keys))

		ids := make([]types.ObjectIdentifier, 0, end-start)
		for _, k := range keys[start:end] {
			ids = append(ids, types.ObjectIdentifier{Key: aws.String(k)})
		}

		out, err := a.api.DeleteObjects(ctx, &s3.DeleteObjectsInput{
			Bucket: aws.String(a.bucket),
			Delete: &types.Delete{Objects: ids, Quiet: aws.Bool(true)},
		})
		if err != nil {
			a.fail("DeleteDirectory", dir, err)
			return false
		}
		if len(out.Errors) > 0 {
			first := out.Errors[0]
			a.fail("DeleteDirectory", aws.ToString(first.Key), &batchError{code: aws.ToString(first.Code), message: aws.ToString(first.Message), failed: len(out.Errors)})
			return false
		}
	}
	return true
}

// Exists reports whether a HEAD of path succeeds.
func (a *Adapter) Exists(ctx context.Context, path string) bool {
	key := a.codec.ApplyPrefix(path)
	if _, err := a.head(ctx, key); err != nil {
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
	if a.cfg.ReadFromCDN {
		return a.readFromCDN(ctx, path)
	}

	out, err := a.api.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(a.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		a.fail("ReadStream", key, err)
		return nil, false
	}
	return out.Body, true
}

// Metadata fetches and normalizes the object's metadata.
func (a *Adapter) Metadata(ctx context.Context, path string) (*provider.ObjectRecord, bool) {
	key := a.codec.ApplyPrefix(path)
	out, err := a.head(ctx, key)
	if err != nil {
		a.fail("Metadata", key, err)
		return nil, false
	}

	return provider.Normalize(provider.RawEntry{
		Key:          a.codec.StripPrefix(key),
		Size:         out.ContentLength,
		LastModified: aws.ToTime(out.LastModified),
		ContentType:  aws.ToString(out.ContentType),
		ETag:         aws.ToString(out.ETag),
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

func (a *Adapter) head(ctx context.Context, key string) (*s3.HeadObjectOutput, error) {
	return a.api.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(a.bucket),
		Key:    aws.String(key),
	})
}

// countingReader counts bytes consumed by the upload manager.
type countingReader struct {
	r io.Reader
	n int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += int64(n)
	return n, err
}
