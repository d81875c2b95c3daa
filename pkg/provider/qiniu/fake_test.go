package qiniu

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"

	"github.com/qiniu/go-sdk/v7/client"
	"github.com/qiniu/go-sdk/v7/storage"

	"github.com/3leaps/nimbusfs/pkg/provider"
	"github.com/3leaps/nimbusfs/test/memstore"
)

// fakeAPI implements API over a memstore.Store. Content reads resolve the
// object key from the URL path, as the bound domain would.
type fakeAPI struct {
	store  *memstore.Store
	bucket string

	mu      sync.Mutex
	batches []int
	gets    []string
}

var _ API = (*fakeAPI)(nil)

func newFakeAPI(store *memstore.Store, bucket string) *fakeAPI {
	return &fakeAPI{store: store, bucket: bucket}
}

func (f *fakeAPI) check(bucket string) error {
	if bucket != f.bucket {
		return &client.ErrorInfo{Code: codeNoSuchBucket, Err: "no such bucket"}
	}
	return nil
}

func translate(err error) error {
	if errors.Is(err, provider.ErrNotFound) {
		return &client.ErrorInfo{Code: codeNoSuchEntry, Err: "no such file or directory"}
	}
	return err
}

func hundredNanos(obj memstore.Object) int64 {
	return obj.Modified.UnixNano() / 100
}

func (f *fakeAPI) ListFiles(ctx context.Context, bucket, prefix, delimiter, marker string, limit int) (ListResult, error) {
	if err := ctx.Err(); err != nil {
		return ListResult{}, err
	}
	if err := f.check(bucket); err != nil {
		return ListResult{}, err
	}
	res, err := f.store.List(prefix, delimiter, marker, limit)
	if err != nil {
		return ListResult{}, err
	}

	out := ListResult{CommonPrefixes: res.CommonPrefixes, HasNext: res.Truncated}
	if res.Truncated {
		out.NextMarker = res.NextMarker
	}
	for _, obj := range res.Objects {
		out.Items = append(out.Items, storage.ListItem{
			Key:      obj.Key,
			Hash:     provider.CleanETag(obj.ETag),
			Fsize:    obj.Size(),
			PutTime:  hundredNanos(obj),
			MimeType: obj.ContentType,
		})
	}
	return out, nil
}

func (f *fakeAPI) Stat(_ context.Context, bucket, key string) (storage.FileInfo, error) {
	if err := f.check(bucket); err != nil {
		return storage.FileInfo{}, err
	}
	obj, err := f.store.Head(key)
	if err != nil {
		return storage.FileInfo{}, translate(err)
	}
	return storage.FileInfo{
		Hash:     provider.CleanETag(obj.ETag),
		Fsize:    obj.Size(),
		PutTime:  hundredNanos(obj),
		MimeType: obj.ContentType,
	}, nil
}

func (f *fakeAPI) Put(_ context.Context, bucket, key string, r io.Reader, size int64, extra *storage.PutExtra) (storage.PutRet, error) {
	if err := f.check(bucket); err != nil {
		return storage.PutRet{}, err
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return storage.PutRet{}, err
	}
	if int64(len(data)) != size {
		return storage.PutRet{}, &client.ErrorInfo{Code: http.StatusBadRequest, Err: "size mismatch"}
	}
	obj, err := f.store.Put(memstore.Object{Key: key, Data: data, ContentType: extra.MimeType, Metadata: extra.Params})
	if err != nil {
		return storage.PutRet{}, err
	}
	return storage.PutRet{Key: key, Hash: provider.CleanETag(obj.ETag)}, nil
}

func (f *fakeAPI) Copy(_ context.Context, bucket, src, dst string) error {
	if err := f.check(bucket); err != nil {
		return err
	}
	_, err := f.store.Copy(src, dst)
	return translate(err)
}

func (f *fakeAPI) Delete(_ context.Context, bucket, key string) error {
	if err := f.check(bucket); err != nil {
		return err
	}
	return f.store.Delete(key)
}

func (f *fakeAPI) BatchDelete(_ context.Context, bucket string, keys []string) ([]int, error) {
	if err := f.check(bucket); err != nil {
		return nil, err
	}
	f.mu.Lock()
	f.batches = append(f.batches, len(keys))
	f.mu.Unlock()

	codes := make([]int, 0, len(keys))
	for _, k := range keys {
		if err := f.store.Delete(k); err != nil {
			codes = append(codes, codeServerError)
			continue
		}
		codes = append(codes, http.StatusOK)
	}
	return codes, nil
}

func (f *fakeAPI) PrivateURL(domain, key string, deadline int64) string {
	u := url.URL{Path: "/" + key}
	return strings.TrimRight(domain, "/") + u.EscapedPath() + "?e=" + strconv.FormatInt(deadline, 10) + "&token=ak:fakesig"
}

func (f *fakeAPI) Get(ctx context.Context, rawURL string) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, err
	}
	if u.Query().Get("token") == "" {
		return nil, &client.ErrorInfo{Code: http.StatusUnauthorized, Err: "missing token"}
	}
	f.mu.Lock()
	f.gets = append(f.gets, rawURL)
	f.mu.Unlock()

	obj, err := f.store.Get(strings.TrimPrefix(u.Path, "/"))
	if err != nil {
		if errors.Is(err, provider.ErrNotFound) {
			return nil, &client.ErrorInfo{Code: http.StatusNotFound, Err: "404 Not Found"}
		}
		return nil, err
	}
	return io.NopCloser(bytes.NewReader(obj.Data)), nil
}
