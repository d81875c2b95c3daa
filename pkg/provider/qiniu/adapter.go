package qiniu

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/3leaps/nimbusfs/pkg/listing"
	"github.com/3leaps/nimbusfs/pkg/pathcodec"
	"github.com/3leaps/nimbusfs/pkg/provider"
)

// readURLTTL is the lifetime of the signed URL used by reads.
const readURLTTL = 5 * time.Minute

// Adapter implements provider.Adapter over the Qiniu Kodo SDK.
type Adapter struct {
	api    API
	cfg    Config
	codec  *pathcodec.Codec
	lister *listing.Engine
	log    *zap.Logger
	now    func() time.Time
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

// WithAPI replaces the SDK client.
func WithAPI(api API) Option {
	return func(o *options) { o.api = api }
}

// New creates a Qiniu adapter.
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

	a := &Adapter{api: o.api, cfg: cfg, codec: codec, log: o.log, now: time.Now}
	if a.api == nil {
		a.api = newSDKClient(cfg)
	}
	a.lister = listing.New(a, listing.Options{
		Strategy:  listing.Flat,
		PageSize:  cfg.PageSize,
		RateLimit: cfg.RateLimit,
		Strip:     codec.StripPrefix,
	})
	return a, nil
}

// Close releases any resources held by the adapter.
func (a *Adapter) Close() error {
	return nil
}

// ListDirectory returns every entry under prefix.
func (a *Adapter) ListDirectory(ctx context.Context, prefix string, recursive bool) ([]provider.ObjectRecord, error) {
	dir := a.codec.ListPrefix(prefix)
	recs, err := a.lister.List(ctx, dir, recursive)
	if err != nil {
		return nil, a.wrapError("ListDirectory", dir, err)
	}
	return recs, nil
}

// ListPage fetches one ListFiles page. The marker is opaque.
func (a *Adapter) ListPage(ctx context.Context, req listing.Request) (*listing.Page, error) {
	res, err := a.api.ListFiles(ctx, a.cfg.Bucket, req.Prefix, req.Delimiter, req.Marker, req.MaxKeys)
	if err != nil {
		return nil, err
	}

	page := &listing.Page{
		Entries:        make([]provider.RawEntry, 0, len(res.Items)),
		CommonPrefixes: res.CommonPrefixes,
		NextMarker:     res.NextMarker,
		Truncated:      res.HasNext,
	}
	for _, item := range res.Items {
		page.Entries = append(page.Entries, provider.RawEntry{
			Key:          item.Key,
			Size:         provider.Int64(item.Fsize),
			LastModified: putTime(item.PutTime),
			ContentType:  item.MimeType,
			ETag:         item.Hash,
		})
	}
	return page, nil
}

// putTime converts Kodo's 100ns PutTime to a time truncated to seconds.
func putTime(v int64) time.Time {
	sec := provider.HundredNanosToEpoch(v)
	if sec == nil {
		return time.Time{}
	}
	return time.Unix(*sec, 0).UTC()
}

func (a *Adapter) fail(op, key string, err error) {
	provider.LogFailure(a.log, a.wrapError(op, key, err))
}
