package qiniu

import (
	"context"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/qiniu/go-sdk/v7/auth"
	"github.com/qiniu/go-sdk/v7/client"
	"github.com/qiniu/go-sdk/v7/storage"
)

// ListResult is one page of BucketManager.ListFiles.
type ListResult struct {
	Items          []storage.ListItem
	CommonPrefixes []string
	NextMarker     string
	HasNext        bool
}

// API is the slice of the Qiniu SDK the adapter calls, plus the plain HTTP
// GET used to read object content from the bound domain.
type API interface {
	ListFiles(ctx context.Context, bucket, prefix, delimiter, marker string, limit int) (ListResult, error)
	Stat(ctx context.Context, bucket, key string) (storage.FileInfo, error)
	Put(ctx context.Context, bucket, key string, r io.Reader, size int64, extra *storage.PutExtra) (storage.PutRet, error)
	Copy(ctx context.Context, bucket, src, dst string) error
	Delete(ctx context.Context, bucket, key string) error

	// BatchDelete deletes keys in one batch call and returns the per-key
	// result codes in order (200 on success).
	BatchDelete(ctx context.Context, bucket string, keys []string) ([]int, error)

	// PrivateURL returns the signed download URL for key on domain, valid
	// until deadline (unix seconds).
	PrivateURL(domain, key string, deadline int64) string

	// Get fetches rawURL. Non-2xx responses are returned as *client.ErrorInfo.
	Get(ctx context.Context, rawURL string) (io.ReadCloser, error)
}

type sdkClient struct {
	mac      *auth.Credentials
	buckets  *storage.BucketManager
	uploader *storage.FormUploader
	http     *http.Client
}

func newSDKClient(cfg Config) *sdkClient {
	timeout := cfg.timeout()
	tr := http.DefaultTransport.(*http.Transport).Clone()
	tr.DialContext = (&net.Dialer{Timeout: timeout, KeepAlive: 30 * time.Second}).DialContext
	tr.ResponseHeaderTimeout = timeout
	httpClient := &http.Client{Transport: tr}
	clt := &client.Client{Client: httpClient}

	mac := auth.New(cfg.AccessKey, cfg.SecretKey)
	storageCfg := &storage.Config{UseHTTPS: cfg.UseHTTPS}
	return &sdkClient{
		mac:      mac,
		buckets:  storage.NewBucketManagerEx(mac, storageCfg, clt),
		uploader: storage.NewFormUploaderEx(storageCfg, clt),
		http:     httpClient,
	}
}

// The BucketManager calls take no context; cancellation is checked first.

func (c *sdkClient) ListFiles(ctx context.Context, bucket, prefix, delimiter, marker string, limit int) (ListResult, error) {
	if err := ctx.Err(); err != nil {
		return ListResult{}, err
	}
	items, prefixes, next, hasNext, err := c.buckets.ListFiles(bucket, prefix, delimiter, marker, limit)
	if err != nil {
		return ListResult{}, err
	}
	return ListResult{Items: items, CommonPrefixes: prefixes, NextMarker: next, HasNext: hasNext}, nil
}

func (c *sdkClient) Stat(ctx context.Context, bucket, key string) (storage.FileInfo, error) {
	if err := ctx.Err(); err != nil {
		return storage.FileInfo{}, err
	}
	return c.buckets.Stat(bucket, key)
}

// Put form-uploads with a token scoped to bucket:key, which allows
// overwriting an existing object.
func (c *sdkClient) Put(ctx context.Context, bucket, key string, r io.Reader, size int64, extra *storage.PutExtra) (storage.PutRet, error) {
	policy := storage.PutPolicy{Scope: bucket + ":" + key}
	var ret storage.PutRet
	err := c.uploader.Put(ctx, &ret, policy.UploadToken(c.mac), key, r, size, extra)
	return ret, err
}

func (c *sdkClient) Copy(ctx context.Context, bucket, src, dst string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return c.buckets.Copy(bucket, src, bucket, dst, true)
}

func (c *sdkClient) Delete(ctx context.Context, bucket, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return c.buckets.Delete(bucket, key)
}

func (c *sdkClient) BatchDelete(ctx context.Context, bucket string, keys []string) ([]int, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	ops := make([]string, 0, len(keys))
	for _, k := range keys {
		ops = append(ops, storage.URIDelete(bucket, k))
	}
	rets, err := c.buckets.Batch(ops)
	if err != nil {
		return nil, err
	}
	codes := make([]int, 0, len(rets))
	for _, r := range rets {
		codes = append(codes, r.Code)
	}
	return codes, nil
}

func (c *sdkClient) PrivateURL(domain, key string, deadline int64) string {
	return storage.MakePrivateURLv2(c.mac, domain, key, deadline)
}

func (c *sdkClient) Get(ctx context.Context, rawURL string) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_ = resp.Body.Close()
		return nil, &client.ErrorInfo{Code: resp.StatusCode, Err: resp.Status}
	}
	return resp.Body, nil
}
