package s3

import (
	"context"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	awshttp "github.com/aws/aws-sdk-go-v2/aws/transport/http"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/ec2/imds"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"go.uber.org/zap"

	"github.com/3leaps/nimbusfs/pkg/listing"
	"github.com/3leaps/nimbusfs/pkg/pathcodec"
	"github.com/3leaps/nimbusfs/pkg/provider"
)

// API is the subset of the S3 client the adapter calls. *s3.Client
// satisfies it; tests substitute a fake.
type API interface {
	manager.UploadAPIClient

	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	HeadObject(ctx context.Context, params *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
	CopyObject(ctx context.Context, params *s3.CopyObjectInput, optFns ...func(*s3.Options)) (*s3.CopyObjectOutput, error)
	DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
	DeleteObjects(ctx context.Context, params *s3.DeleteObjectsInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectsOutput, error)
	ListObjectsV2(ctx context.Context, params *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
	GetObjectAcl(ctx context.Context, params *s3.GetObjectAclInput, optFns ...func(*s3.Options)) (*s3.GetObjectAclOutput, error)
	PutObjectAcl(ctx context.Context, params *s3.PutObjectAclInput, optFns ...func(*s3.Options)) (*s3.PutObjectAclOutput, error)
}

// Presigner signs GET requests. *s3.PresignClient satisfies it.
type Presigner interface {
	PresignGetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error)
}

// Adapter implements provider.Adapter for S3 and S3-compatible storage.
type Adapter struct {
	api        API
	presigner  Presigner
	uploader   *manager.Uploader
	httpClient *http.Client

	cfg      Config
	bucket   string
	endpoint *url.URL
	codec    *pathcodec.Codec
	lister   *listing.Engine
	log      *zap.Logger
}

var _ provider.Adapter = (*Adapter)(nil)

// Option customizes adapter construction.
type Option func(*options)

type options struct {
	api        API
	presigner  Presigner
	httpClient *http.Client
	log        *zap.Logger
}

// WithLogger sets the logger that receives swallowed provider errors.
func WithLogger(log *zap.Logger) Option {
	return func(o *options) { o.log = log }
}

// WithAPI replaces the SDK client and presigner.
func WithAPI(api API, presigner Presigner) Option {
	return func(o *options) {
		o.api = api
		o.presigner = presigner
	}
}

// WithHTTPClient sets the client used for read-through-CDN fetches.
func WithHTTPClient(c *http.Client) Option {
	return func(o *options) { o.httpClient = c }
}

// New creates an S3 adapter. The SDK client is built here and reused for the
// adapter's lifetime.
//
// The adapter uses AWS SDK v2's default credential chain unless explicit
// credentials are provided in the config.
func New(ctx context.Context, cfg Config, opts ...Option) (*Adapter, error) {
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
		api:        o.api,
		presigner:  o.presigner,
		httpClient: o.httpClient,
		cfg:        cfg,
		bucket:     cfg.EffectiveBucket(),
		codec:      codec,
		log:        o.log,
	}

	region := resolveRegion(cfg.Endpoint, cfg.Region)
	if a.api == nil {
		awsCfg, err := loadAWSConfig(ctx, cfg)
		if err != nil {
			return nil, &provider.ProviderError{
				Op:       "New",
				Provider: provider.ProviderS3,
				Bucket:   a.bucket,
				Err:      err,
			}
		}
		region = awsCfg.Region

		client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
			o.UsePathStyle = cfg.ForcePathStyle
			if cfg.Endpoint != "" {
				o.BaseEndpoint = aws.String(cfg.Endpoint)
			}
		})
		a.api = client
		a.presigner = s3.NewPresignClient(client)
	}

	if a.endpoint, err = nativeEndpoint(cfg.Endpoint, region); err != nil {
		return nil, configError("Endpoint", err.Error())
	}
	if a.httpClient == nil {
		a.httpClient = &http.Client{Transport: newTransport(cfg.timeout())}
	}

	a.uploader = manager.NewUploader(a.api)
	a.lister = listing.New(a, listing.Options{
		Strategy:  listing.Flat,
		PageSize:  cfg.PageSize,
		RateLimit: cfg.RateLimit,
		Strip:     codec.StripPrefix,
	})
	return a, nil
}

// loadAWSConfig builds the AWS configuration with appropriate credentials.
func loadAWSConfig(ctx context.Context, cfg Config) (aws.Config, error) {
	timeout := cfg.timeout()
	httpClient := awshttp.NewBuildableClient().
		WithDialerOptions(func(d *net.Dialer) { d.Timeout = timeout }).
		WithTransportOptions(func(tr *http.Transport) { tr.ResponseHeaderTimeout = timeout })

	opts := []func(*config.LoadOptions) error{
		config.WithHTTPClient(httpClient),
	}

	// Only apply explicit region if user set one in config.
	// Let SDK resolve from env/profile first.
	if cfg.Region != "" {
		opts = append(opts, config.WithRegion(cfg.Region))
	}
	if cfg.Profile != "" {
		opts = append(opts, config.WithSharedConfigProfile(cfg.Profile))
	}
	if cfg.IMDSRegion && cfg.Region == "" && cfg.Endpoint == "" {
		opts = append(opts, config.WithEC2IMDSRegion(func(o *config.UseEC2IMDSRegion) {
			o.Client = imds.New(imds.Options{HTTPClient: httpClient})
		}))
	}
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		staticCreds := credentials.NewStaticCredentialsProvider(
			cfg.AccessKeyID,
			cfg.SecretAccessKey,
			cfg.SessionToken,
		)
		opts = append(opts, config.WithCredentialsProvider(staticCreds))
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return aws.Config{}, err
	}
	awsCfg.Region = resolveRegion(cfg.Endpoint, awsCfg.Region)
	return awsCfg, nil
}

func newTransport(timeout time.Duration) *http.Transport {
	tr := http.DefaultTransport.(*http.Transport).Clone()
	tr.DialContext = (&net.Dialer{Timeout: timeout, KeepAlive: 30 * time.Second}).DialContext
	tr.ResponseHeaderTimeout = timeout
	return tr
}

// nativeEndpoint returns the scheme and host objects are addressed under.
func nativeEndpoint(endpoint, region string) (*url.URL, error) {
	if endpoint == "" {
		if region == "" {
			region = DefaultAWSRegion
		}
		return &url.URL{Scheme: "https", Host: "s3." + region + ".amazonaws.com"}, nil
	}
	u, err := url.Parse(endpoint)
	if err != nil {
		return nil, err
	}
	return &url.URL{Scheme: u.Scheme, Host: u.Host, Path: strings.TrimRight(u.Path, "/")}, nil
}

// Bucket returns the effective bucket name.
func (a *Adapter) Bucket() string {
	return a.bucket
}

// Close releases any resources held by the adapter.
// The S3 client doesn't require explicit cleanup.
func (a *Adapter) Close() error {
	a.httpClient.CloseIdleConnections()
	return nil
}

// fail logs a swallowed error.
func (a *Adapter) fail(op, key string, err error) {
	provider.LogFailure(a.log, a.wrapError(op, key, err))
}
