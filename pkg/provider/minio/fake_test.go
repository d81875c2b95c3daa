package minio

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	miniogo "github.com/minio/minio-go/v7"

	"github.com/3leaps/nimbusfs/pkg/provider"
	"github.com/3leaps/nimbusfs/test/memstore"
)

const allUsersURI = "http://acs.amazonaws.com/groups/global/AllUsers"

// fakeAPI implements API over a memstore.Store. Like MinIO it only reports
// NextMarker for delimited listings.
type fakeAPI struct {
	store    *memstore.Store
	bucket   string
	endpoint string
	// virtualHost presigns bucket.host/key instead of host/bucket/key.
	virtualHost bool

	mu       sync.Mutex
	removed  [][]string
	presigns []time.Duration
}

var _ API = (*fakeAPI)(nil)

func newFakeAPI(store *memstore.Store, bucket string) *fakeAPI {
	return &fakeAPI{store: store, bucket: bucket, endpoint: "http://localhost:9000"}
}

func noSuchKey(key string) error {
	return miniogo.ErrorResponse{
		StatusCode: http.StatusNotFound,
		Code:       "NoSuchKey",
		Message:    "The specified key does not exist.",
		Key:        key,
	}
}

func (f *fakeAPI) check(bucket string) error {
	if bucket != f.bucket {
		return miniogo.ErrorResponse{
			StatusCode: http.StatusNotFound,
			Code:       "NoSuchBucket",
			Message:    "The specified bucket does not exist",
			BucketName: bucket,
		}
	}
	return nil
}

func (f *fakeAPI) translate(key string, err error) error {
	if errors.Is(err, provider.ErrNotFound) {
		return noSuchKey(key)
	}
	return err
}

func (f *fakeAPI) info(obj memstore.Object) miniogo.ObjectInfo {
	info := miniogo.ObjectInfo{
		Key:          obj.Key,
		Size:         obj.Size(),
		ETag:         provider.CleanETag(obj.ETag),
		LastModified: obj.Modified,
		ContentType:  obj.ContentType,
		UserMetadata: obj.Metadata,
		Owner:        miniogo.Owner{ID: "owner"},
		Grant: []miniogo.Grant{{
			Grantee:    miniogo.Grantee{ID: "owner"},
			Permission: "FULL_CONTROL",
		}},
	}
	if obj.Public {
		info.Grant = append(info.Grant, miniogo.Grant{
			Grantee:    miniogo.Grantee{URI: allUsersURI},
			Permission: "READ",
		})
	}
	return info
}

func (f *fakeAPI) ListObjects(ctx context.Context, bucket, prefix, marker, delimiter string, maxKeys int) (miniogo.ListBucketResult, error) {
	if err := ctx.Err(); err != nil {
		return miniogo.ListBucketResult{}, err
	}
	if err := f.check(bucket); err != nil {
		return miniogo.ListBucketResult{}, err
	}
	res, err := f.store.List(prefix, delimiter, marker, maxKeys)
	if err != nil {
		return miniogo.ListBucketResult{}, err
	}

	out := miniogo.ListBucketResult{
		Name:        bucket,
		Prefix:      prefix,
		Marker:      marker,
		Delimiter:   delimiter,
		MaxKeys:     int64(maxKeys),
		IsTruncated: res.Truncated,
	}
	if res.Truncated && delimiter != "" {
		out.NextMarker = res.NextMarker
	}
	for _, obj := range res.Objects {
		out.Contents = append(out.Contents, f.info(obj))
	}
	for _, p := range res.CommonPrefixes {
		out.CommonPrefixes = append(out.CommonPrefixes, miniogo.CommonPrefix{Prefix: p})
	}
	return out, nil
}

func (f *fakeAPI) PutObject(_ context.Context, bucket, key string, r io.Reader, _ int64, opts miniogo.PutObjectOptions) (miniogo.UploadInfo, error) {
	if err := f.check(bucket); err != nil {
		return miniogo.UploadInfo{}, err
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return miniogo.UploadInfo{}, err
	}

	meta := make(map[string]string, len(opts.UserMetadata))
	public := false
	for k, v := range opts.UserMetadata {
		if k == amzACL {
			public = v == aclPublicRead
			continue
		}
		meta[k] = v
	}
	obj, err := f.store.Put(memstore.Object{
		Key:         key,
		Data:        data,
		ContentType: opts.ContentType,
		Metadata:    meta,
		Public:      public,
		Encrypted:   opts.ServerSideEncryption != nil,
	})
	if err != nil {
		return miniogo.UploadInfo{}, err
	}
	return miniogo.UploadInfo{
		Bucket:       bucket,
		Key:          key,
		ETag:         provider.CleanETag(obj.ETag),
		Size:         obj.Size(),
		LastModified: obj.Modified,
	}, nil
}

func (f *fakeAPI) GetObject(_ context.Context, bucket, key string) (io.ReadCloser, error) {
	if err := f.check(bucket); err != nil {
		return nil, err
	}
	obj, err := f.store.Get(key)
	if err != nil {
		return nil, f.translate(key, err)
	}
	return io.NopCloser(bytes.NewReader(obj.Data)), nil
}

func (f *fakeAPI) StatObject(_ context.Context, bucket, key string) (miniogo.ObjectInfo, error) {
	if err := f.check(bucket); err != nil {
		return miniogo.ObjectInfo{}, err
	}
	obj, err := f.store.Head(key)
	if err != nil {
		return miniogo.ObjectInfo{}, f.translate(key, err)
	}
	return f.info(obj), nil
}

// CopyObject copies src to dst. A copy onto itself with ReplaceMetadata is
// how the adapter changes the ACL, so x-amz-acl is applied here.
func (f *fakeAPI) CopyObject(_ context.Context, dst miniogo.CopyDestOptions, src miniogo.CopySrcOptions) (miniogo.UploadInfo, error) {
	if err := f.check(src.Bucket); err != nil {
		return miniogo.UploadInfo{}, err
	}
	if err := f.check(dst.Bucket); err != nil {
		return miniogo.UploadInfo{}, err
	}

	obj, err := f.store.Copy(src.Object, dst.Object)
	if err != nil {
		return miniogo.UploadInfo{}, f.translate(src.Object, err)
	}
	if dst.ReplaceMetadata {
		if acl, ok := dst.UserMetadata[amzACL]; ok {
			if err := f.store.SetACL(dst.Object, acl == aclPublicRead); err != nil {
				return miniogo.UploadInfo{}, f.translate(dst.Object, err)
			}
		}
	}
	return miniogo.UploadInfo{Bucket: dst.Bucket, Key: dst.Object, ETag: provider.CleanETag(obj.ETag), Size: obj.Size()}, nil
}

func (f *fakeAPI) RemoveObject(_ context.Context, bucket, key string) error {
	if err := f.check(bucket); err != nil {
		return err
	}
	return f.store.Delete(key)
}

func (f *fakeAPI) RemoveObjects(_ context.Context, bucket string, keys []string) []miniogo.RemoveObjectError {
	f.mu.Lock()
	f.removed = append(f.removed, append([]string(nil), keys...))
	f.mu.Unlock()

	var failed []miniogo.RemoveObjectError
	for _, k := range keys {
		err := f.check(bucket)
		if err == nil {
			err = f.store.Delete(k)
		}
		if err != nil {
			failed = append(failed, miniogo.RemoveObjectError{ObjectName: k, Err: err})
		}
	}
	return failed
}

func (f *fakeAPI) GetObjectACL(_ context.Context, bucket, key string) (*miniogo.ObjectInfo, error) {
	if err := f.check(bucket); err != nil {
		return nil, err
	}
	if _, err := f.store.ACL(key); err != nil {
		return nil, f.translate(key, err)
	}
	obj, err := f.store.Head(key)
	if err != nil {
		return nil, f.translate(key, err)
	}
	info := f.info(obj)
	return &info, nil
}

// PresignedGetObject builds a URL shaped like a V4 presign.
func (f *fakeAPI) PresignedGetObject(_ context.Context, bucket, key string, expires time.Duration, params url.Values) (*url.URL, error) {
	if err := f.check(bucket); err != nil {
		return nil, err
	}
	f.mu.Lock()
	f.presigns = append(f.presigns, expires)
	f.mu.Unlock()

	u, err := url.Parse(f.endpoint)
	if err != nil {
		return nil, err
	}
	q := url.Values{}
	for k, v := range params {
		q[k] = v
	}
	q.Set("X-Amz-Expires", strconv.Itoa(int(expires.Seconds())))
	q.Set("X-Amz-Signature", "fakesignature")
	u.Path = "/" + bucket + "/" + key
	if f.virtualHost {
		u.Host = bucket + "." + u.Host
		u.Path = "/" + key
	}
	u.RawQuery = q.Encode()
	return u, nil
}
