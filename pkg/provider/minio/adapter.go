package minio

import (
	"context"
	"net/url"

	"go.uber.org/zap"

	"github.com/3leaps/nimbusfs/pkg/listing"
	"github.com/3leaps/nimbusfs/pkg/pathcodec"
	"github.com/3leaps/nimbusfs/pkg/provider"
)

// Adapter implements provider.Adapter over minio-go.
type Adapter struct {
	api      API
	cfg      Config
	endpoint *url.URL
	codec    *pathcodec.Codec
	lister   *listing.Engine
	log      *zap.Logger
}

var _ provider.Adapter = (*Adapter)(nil)

// Option customizes adapter construction.
type Option func(*options)

type options struct {
	api API
	log *zap.Logger
}

// WithLogger sets the logger that receives swallowed provider errors.
func WithLogger(log *zap.Logger) Option {
	return func(o *options) { o.log = log }
}

// WithAPI replaces the minio-go client.
func WithAPI(api API) Option {
	return func(o *options) { o.api = api }
}

// New creates a MinIO adapter. The client is built eagerly; no request is
// sent until the first operation.
func New(_ context.Context, cfg Config, opts ...Option) (*Adapter, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	o := options{log: zap.NewNop()}
	for _, opt := range opts {
		opt(&o)
	}

	codec, err := pathcodec.New(pathcodec.Options{Prefix: cfg.Prefix, Domain: cfg.Domain, Scheme: cfg.Scheme})
	if err != nil {
		return nil, configError("Domain", err.Error())
	}

	a := &Adapter{
		api:      o.api,
		cfg:      cfg,
		endpoint: &url.URL{Scheme: cfg.scheme(), Host: cfg.Endpoint},
		codec:    codec,
		log:      o.log,
	}
	if a.api == nil {
		client, err := newSDKClient(cfg)
		if err != nil {
			return nil, &provider.ProviderError{
				Op:       "New",
				Provider: provider.ProviderMinio,
				Bucket:   cfg.Bucket,
				Err:      err,
			}
		}
		a.api = client
	}

	a.lister = listing.New(a, listing.Options{
		Strategy:  listing.Descend,
		PageSize:  cfg.PageSize,
		MaxDepth:  cfg.MaxDepth,
		RateLimit: cfg.RateLimit,
		Strip:     codec.StripPrefix,
	})
	return a, nil
}

// Close releases any resources held by the adapter.
func (a *Adapter) Close() error {
	return nil
}

// ListDirectory returns every entry under prefix, descending level by level
// when recursive.
func (a *Adapter) ListDirectory(ctx context.Context, prefix string, recursive bool) ([]provider.ObjectRecord, error) {
	dir := a.codec.ListPrefix(prefix)
	recs, err := a.lister.List(ctx, dir, recursive)
	if err != nil {
		return nil, a.wrapError("ListDirectory", dir, err)
	}
	return recs, nil
}

// ListPage fetches one V1 listing page. Servers only return NextMarker for
// delimited listings; otherwise the last key on the page resumes.
func (a *Adapter) ListPage(ctx context.Context, req listing.Request) (*listing.Page, error) {
	res, err := a.api.ListObjects(ctx, a.cfg.Bucket, req.Prefix, req.Marker, req.Delimiter, req.MaxKeys)
	if err != nil {
		return nil, err
	}

	page := &listing.Page{
		Entries:        make([]provider.RawEntry, 0, len(res.Contents)),
		CommonPrefixes: make([]string, 0, len(res.CommonPrefixes)),
		NextMarker:     res.NextMarker,
		Truncated:      res.IsTruncated,
	}
	last := ""
	for _, obj := range res.Contents {
		page.Entries = append(page.Entries, provider.RawEntry{
			Key:          obj.Key,
			Size:         provider.Int64(obj.Size),
			LastModified: obj.LastModified,
			ContentType:  obj.ContentType,
			ETag:         obj.ETag,
		})
		last = max(last, obj.Key)
	}
	for _, cp := range res.CommonPrefixes {
		page.CommonPrefixes = append(page.CommonPrefixes, cp.Prefix)
		last = max(last, cp.Prefix)
	}
	if page.Truncated && page.NextMarker == "" {
		page.NextMarker = last
	}
	return page, nil
}

// fail logs a swallowed error.
func (a *Adapter) fail(op, key string, err error) {
	provider.LogFailure(a.log, a.wrapError(op, key, err))
}
