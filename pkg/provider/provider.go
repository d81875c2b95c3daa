// Package provider defines the backend-agnostic filesystem contract implemented
// by every object storage adapter.
//
// Adapters translate the abstract operations (write, read, list, copy, delete,
// stat, visibility, URL generation) onto one provider's API. Point operations
// never return provider errors to the caller: failures collapse to a false or
// unavailable result and the underlying error is logged. Directory listings are
// the exception and propagate errors, since a silently truncated listing is
// worse than a failed one.
package provider

import (
	"context"
	"io"
	"time"
)

// Adapter is the common storage contract.
//
// Implementations must:
//   - Construct their SDK clients eagerly and reuse them for their lifetime
//   - Be safe for concurrent use
//   - Never cache metadata between calls
type Adapter interface {
	// Write uploads content to path. The returned record reflects what was
	// written. ok is false when the provider rejected the upload.
	Write(ctx context.Context, path string, content []byte, opts UploadOptions) (rec *ObjectRecord, ok bool)

	// WriteStream uploads the contents of r to path.
	WriteStream(ctx context.Context, path string, r io.Reader, opts UploadOptions) (rec *ObjectRecord, ok bool)

	// Update overwrites path with content.
	Update(ctx context.Context, path string, content []byte, opts UploadOptions) (rec *ObjectRecord, ok bool)

	// UpdateStream overwrites path with the contents of r.
	UpdateStream(ctx context.Context, path string, r io.Reader, opts UploadOptions) (rec *ObjectRecord, ok bool)

	// Rename copies path to newPath and then deletes path.
	//
	// Rename is NOT atomic. Object stores have no native cross-provider
	// rename, so when the copy succeeds and the delete fails both objects
	// remain and Rename reports false.
	Rename(ctx context.Context, path, newPath string) bool

	// Copy performs a server-side copy. Success is what the provider reports;
	// no verification read is issued.
	Copy(ctx context.Context, path, newPath string) bool

	// Delete removes a single object.
	Delete(ctx context.Context, path string) bool

	// DeleteDirectory removes every object under prefix. A prefix with no
	// objects is a success. The root (empty prefix) is refused.
	DeleteDirectory(ctx context.Context, prefix string) bool

	// CreateDirectory writes the zero-byte "prefix/" placeholder object.
	CreateDirectory(ctx context.Context, prefix string, opts UploadOptions) (rec *ObjectRecord, ok bool)

	// Exists reports whether a stat of path succeeds. Any stat failure,
	// transient or not, reads as non-existence.
	Exists(ctx context.Context, path string) bool

	// URL returns the public URL for path: the CDN domain when configured,
	// otherwise the provider's native object URL.
	URL(path string) string

	// TemporaryURL returns a provider-signed URL valid until expiry,
	// rewritten through the CDN domain when one is configured.
	TemporaryURL(ctx context.Context, path string, expiry time.Time, opts URLOptions) (string, bool)

	// SetVisibility applies v to path through the provider ACL API.
	SetVisibility(ctx context.Context, path string, v Visibility) bool

	// Visibility derives public/private from the object's ACL grants.
	Visibility(ctx context.Context, path string) (Visibility, bool)

	// Read returns the full content of path.
	Read(ctx context.Context, path string) ([]byte, bool)

	// ReadStream opens path for streaming. The caller must close the reader.
	ReadStream(ctx context.Context, path string) (io.ReadCloser, bool)

	// ListDirectory returns every entry under prefix, fully materialized.
	// Errors propagate.
	ListDirectory(ctx context.Context, prefix string, recursive bool) ([]ObjectRecord, error)

	// Metadata fetches and normalizes the object's metadata.
	Metadata(ctx context.Context, path string) (*ObjectRecord, bool)

	// Size returns the content length in bytes.
	Size(ctx context.Context, path string) (int64, bool)

	// MimeType returns the object's content type.
	MimeType(ctx context.Context, path string) (string, bool)

	// Timestamp returns the last-modified time in Unix epoch seconds.
	Timestamp(ctx context.Context, path string) (int64, bool)

	// Close releases any resources held by the adapter.
	Close() error
}

// DefaultTimeout bounds connecting to a provider and waiting for its
// response headers. It is fixed when an adapter is constructed.
const DefaultTimeout = 60 * time.Second

// Visibility is the provider-neutral access level of an object.
type Visibility string

const (
	// VisibilityPublic grants read access to all users.
	VisibilityPublic Visibility = "public"

	// VisibilityPrivate restricts access to the owner.
	VisibilityPrivate Visibility = "private"
)

// ParseVisibility converts a user-supplied string to a Visibility.
func ParseVisibility(s string) (Visibility, error) {
	switch Visibility(s) {
	case VisibilityPublic:
		return VisibilityPublic, nil
	case VisibilityPrivate:
		return VisibilityPrivate, nil
	}
	return "", &ConfigError{Field: "visibility", Message: "expected public or private, got " + s}
}

// UploadOptions tunes a single write.
type UploadOptions struct {
	// ContentType overrides the detected MIME type.
	ContentType string

	// Visibility sets the object ACL at upload time. Empty leaves the
	// provider default in place.
	Visibility Visibility

	// Params carries provider-specific extras (user metadata for S3 and
	// MinIO, custom variables for Qiniu).
	Params map[string]string

	// Encrypt requests server-side encryption for this object even when the
	// adapter is not configured to encrypt everything.
	Encrypt bool
}

// URLOptions tunes a temporary URL.
type URLOptions struct {
	// ResponseContentType overrides Content-Type on download.
	ResponseContentType string

	// ResponseContentDisposition overrides Content-Disposition on download.
	ResponseContentDisposition string
}

// ProviderType identifies a cloud storage provider.
type ProviderType string

const (
	// ProviderS3 represents AWS S3 or S3-compatible storage.
	ProviderS3 ProviderType = "s3"

	// ProviderMinio represents MinIO and other stores driven through minio-go.
	ProviderMinio ProviderType = "minio"

	// ProviderQiniu represents Qiniu Kodo.
	ProviderQiniu ProviderType = "qiniu"

	// ProviderFile represents a local directory.
	ProviderFile ProviderType = "file"
)

// String returns the string representation of the provider type.
func (p ProviderType) String() string {
	return string(p)
}
