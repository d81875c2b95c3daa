package minio

import (
	"context"
	"io"
	"net"
	"net/http"
	"net/url"
	"time"

	miniogo "github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// API is the slice of minio-go the adapter calls. Methods that the SDK
// spreads over Client and Core, or exposes through channels, are flattened
// into plain calls.
type API interface {
	ListObjects(ctx context.Context, bucket, prefix, marker, delimiter string, maxKeys int) (miniogo.ListBucketResult, error)
	PutObject(ctx context.Context, bucket, key string, r io.Reader, size int64, opts miniogo.PutObjectOptions) (miniogo.UploadInfo, error)
	GetObject(ctx context.Context, bucket, key string) (io.ReadCloser, error)
	StatObject(ctx context.Context, bucket, key string) (miniogo.ObjectInfo, error)
	CopyObject(ctx context.Context, dst miniogo.CopyDestOptions, src miniogo.CopySrcOptions) (miniogo.UploadInfo, error)
	RemoveObject(ctx context.Context, bucket, key string) error
	RemoveObjects(ctx context.Context, bucket string, keys []string) []miniogo.RemoveObjectError
	GetObjectACL(ctx context.Context, bucket, key string) (*miniogo.ObjectInfo, error)
	PresignedGetObject(ctx context.Context, bucket, key string, expires time.Duration, params url.Values) (*url.URL, error)
}

// sdkClient implements API over a minio-go client.
type sdkClient struct {
	client *miniogo.Client
	core   miniogo.Core
}

func newSDKClient(cfg Config) (*sdkClient, error) {
	timeout := cfg.timeout()
	tr := http.DefaultTransport.(*http.Transport).Clone()
	tr.DialContext = (&net.Dialer{Timeout: timeout, KeepAlive: 30 * time.Second}).DialContext
	tr.ResponseHeaderTimeout = timeout

	client, err := miniogo.New(cfg.Endpoint, &miniogo.Options{
		Creds:     credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, cfg.SessionToken),
		Secure:    cfg.UseSSL,
		Region:    cfg.Region,
		Transport: tr,
	})
	if err != nil {
		return nil, err
	}
	return &sdkClient{client: client, core: miniogo.Core{Client: client}}, nil
}

// ListObjects issues one V1 list call. Core.ListObjects takes no context;
// cancellation is checked before the call.
func (c *sdkClient) ListObjects(ctx context.Context, bucket, prefix, marker, delimiter string, maxKeys int) (miniogo.ListBucketResult, error) {
	if err := ctx.Err(); err != nil {
		return miniogo.ListBucketResult{}, err
	}
	return c.core.ListObjects(bucket, prefix, marker, delimiter, maxKeys)
}

func (c *sdkClient) PutObject(ctx context.Context, bucket, key string, r io.Reader, size int64, opts miniogo.PutObjectOptions) (miniogo.UploadInfo, error) {
	return c.client.PutObject(ctx, bucket, key, r, size, opts)
}

// GetObject opens the object and stats it so a missing key fails here
// rather than on first read.
func (c *sdkClient) GetObject(ctx context.Context, bucket, key string) (io.ReadCloser, error) {
	obj, err := c.client.GetObject(ctx, bucket, key, miniogo.GetObjectOptions{})
	if err != nil {
		return nil, err
	}
	if _, err := obj.Stat(); err != nil {
		_ = obj.Close()
		return nil, err
	}
	return obj, nil
}

func (c *sdkClient) StatObject(ctx context.Context, bucket, key string) (miniogo.ObjectInfo, error) {
	return c.client.StatObject(ctx, bucket, key, miniogo.StatObjectOptions{})
}

func (c *sdkClient) CopyObject(ctx context.Context, dst miniogo.CopyDestOptions, src miniogo.CopySrcOptions) (miniogo.UploadInfo, error) {
	return c.client.CopyObject(ctx, dst, src)
}

func (c *sdkClient) RemoveObject(ctx context.Context, bucket, key string) error {
	return c.client.RemoveObject(ctx, bucket, key, miniogo.RemoveObjectOptions{})
}

// RemoveObjects feeds keys to the SDK's batching remover and collects the
// per-key failures.
func (c *sdkClient) RemoveObjects(ctx context.Context, bucket string, keys []string) []miniogo.RemoveObjectError {
	objects := make(chan miniogo.ObjectInfo, len(keys))
	for _, k := range keys {
		objects <- miniogo.ObjectInfo{Key: k}
	}
	close(objects)

	var failed []miniogo.RemoveObjectError
	for rerr := range c.client.RemoveObjects(ctx, bucket, objects, miniogo.RemoveObjectsOptions{}) {
		failed = append(failed, rerr)
	}
	return failed
}

func (c *sdkClient) GetObjectACL(ctx context.Context, bucket, key string) (*miniogo.ObjectInfo, error) {
	return c.client.GetObjectACL(ctx, bucket, key)
}

func (c *sdkClient) PresignedGetObject(ctx context.Context, bucket, key string, expires time.Duration, params url.Values) (*url.URL, error) {
	return c.client.PresignedGetObject(ctx, bucket, key, expires, params)
}
