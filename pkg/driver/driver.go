// Package driver builds storage adapters from a provider-neutral
// configuration block, as loaded from nimbusfs.yaml or the environment.
package driver

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/3leaps/nimbusfs/pkg/provider"
	"github.com/3leaps/nimbusfs/pkg/provider/file"
	"github.com/3leaps/nimbusfs/pkg/provider/minio"
	"github.com/3leaps/nimbusfs/pkg/provider/qiniu"
	"github.com/3leaps/nimbusfs/pkg/provider/s3"
)

// Config is one named disk. Fields a driver does not use are ignored.
type Config struct {
	// Driver selects the adapter: s3, minio, qiniu or file.
	Driver string `mapstructure:"driver" json:"driver" yaml:"driver"`

	Bucket string `mapstructure:"bucket" json:"bucket,omitempty" yaml:"bucket,omitempty"`

	// AppID is the Tencent COS account suffix of the bucket name (s3).
	AppID    string `mapstructure:"app_id" json:"app_id,omitempty" yaml:"app_id,omitempty"`
	Region   string `mapstructure:"region" json:"region,omitempty" yaml:"region,omitempty"`
	Endpoint string `mapstructure:"endpoint" json:"endpoint,omitempty" yaml:"endpoint,omitempty"`
	Profile  string `mapstructure:"profile" json:"profile,omitempty" yaml:"profile,omitempty"`

	// IMDSRegion resolves an unset s3 region from EC2 instance metadata.
	IMDSRegion bool `mapstructure:"imds_region" json:"imds_region,omitempty" yaml:"imds_region,omitempty"`

	AccessKey    string `mapstructure:"access_key" json:"-" yaml:"-"`
	SecretKey    string `mapstructure:"secret_key" json:"-" yaml:"-"`
	SessionToken string `mapstructure:"session_token" json:"-" yaml:"-"`

	ForcePathStyle bool `mapstructure:"force_path_style" json:"force_path_style,omitempty" yaml:"force_path_style,omitempty"`

	// UseSSL selects https for minio and qiniu API hosts.
	UseSSL bool `mapstructure:"use_ssl" json:"use_ssl,omitempty" yaml:"use_ssl,omitempty"`

	Domain string `mapstructure:"domain" json:"domain,omitempty" yaml:"domain,omitempty"`
	Scheme string `mapstructure:"scheme" json:"scheme,omitempty" yaml:"scheme,omitempty"`
	Prefix string `mapstructure:"prefix" json:"prefix,omitempty" yaml:"prefix,omitempty"`

	// Root is the directory of the file driver.
	Root string `mapstructure:"root" json:"root,omitempty" yaml:"root,omitempty"`

	Encrypt     bool `mapstructure:"encrypt" json:"encrypt,omitempty" yaml:"encrypt,omitempty"`
	ReadFromCDN bool `mapstructure:"read_from_cdn" json:"read_from_cdn,omitempty" yaml:"read_from_cdn,omitempty"`

	PageSize  int           `mapstructure:"page_size" json:"page_size,omitempty" yaml:"page_size,omitempty"`
	RateLimit float64       `mapstructure:"rate_limit" json:"rate_limit,omitempty" yaml:"rate_limit,omitempty"`
	MaxDepth  int           `mapstructure:"max_depth" json:"max_depth,omitempty" yaml:"max_depth,omitempty"`
	Timeout   time.Duration `mapstructure:"timeout" json:"timeout,omitempty" yaml:"timeout,omitempty"`
}

// Drivers lists the supported driver names.
func Drivers() []string {
	names := []string{
		provider.ProviderS3.String(),
		provider.ProviderMinio.String(),
		provider.ProviderQiniu.String(),
		provider.ProviderFile.String(),
	}
	sort.Strings(names)
	return names
}

func (c Config) providerType() provider.ProviderType {
	return provider.ProviderType(strings.ToLower(strings.TrimSpace(c.Driver)))
}

// Validate checks the block without constructing SDK clients.
func (c Config) Validate() error {
	switch c.providerType() {
	case provider.ProviderS3:
		cfg := c.S3()
		return cfg.Validate()
	case provider.ProviderMinio:
		cfg := c.Minio()
		return cfg.Validate()
	case provider.ProviderQiniu:
		cfg := c.Qiniu()
		return cfg.Validate()
	case provider.ProviderFile:
		return c.File().Validate()
	case "":
		return &provider.ConfigError{Field: "driver", Message: "driver is required"}
	}
	return &provider.ConfigError{
		Field:   "driver",
		Message: fmt.Sprintf("unknown driver %q (expected one of %s)", c.Driver, strings.Join(Drivers(), ", ")),
	}
}

// S3 maps the block onto the s3 adapter config.
func (c Config) S3() s3.Config {
	return s3.Config{
		Bucket:          c.Bucket,
		AppID:           c.AppID,
		Region:          c.Region,
		Endpoint:        c.Endpoint,
		Profile:         c.Profile,
		IMDSRegion:      c.IMDSRegion,
		AccessKeyID:     c.AccessKey,
		SecretAccessKey: c.SecretKey,
		SessionToken:    c.SessionToken,
		ForcePathStyle:  c.ForcePathStyle,
		Domain:          c.Domain,
		Scheme:          c.Scheme,
		Prefix:          c.Prefix,
		Encrypt:         c.Encrypt,
		ReadFromCDN:     c.ReadFromCDN,
		PageSize:        c.PageSize,
		RateLimit:       c.RateLimit,
		Timeout:         c.Timeout,
	}
}

// Minio maps the block onto the minio adapter config.
func (c Config) Minio() minio.Config {
	return minio.Config{
		Endpoint:     c.Endpoint,
		AccessKey:    c.AccessKey,
		SecretKey:    c.SecretKey,
		SessionToken: c.SessionToken,
		UseSSL:       c.UseSSL,
		Region:       c.Region,
		Bucket:       c.Bucket,
		Domain:       c.Domain,
		Scheme:       c.Scheme,
		Prefix:       c.Prefix,
		Encrypt:      c.Encrypt,
		PageSize:     c.PageSize,
		RateLimit:    c.RateLimit,
		MaxDepth:     c.MaxDepth,
		Timeout:      c.Timeout,
	}
}

// Qiniu maps the block onto the qiniu adapter config.
func (c Config) Qiniu() qiniu.Config {
	return qiniu.Config{
		AccessKey: c.AccessKey,
		SecretKey: c.SecretKey,
		Bucket:    c.Bucket,
		Domain:    c.Domain,
		Scheme:    c.Scheme,
		UseHTTPS:  c.UseSSL,
		Prefix:    c.Prefix,
		PageSize:  c.PageSize,
		RateLimit: c.RateLimit,
		Timeout:   c.Timeout,
	}
}

// File maps the block onto the file adapter config.
func (c Config) File() file.Config {
	return file.Config{Root: c.Root, Domain: c.Domain, Scheme: c.Scheme, PageSize: c.PageSize}
}

// Open validates cfg and builds its adapter. The returned adapter must be
// closed by the caller.
func Open(ctx context.Context, cfg Config, log *zap.Logger) (provider.Adapter, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if log == nil {
		log = zap.NewNop()
	}
	log = log.With(zap.String("driver", cfg.providerType().String()))

	var (
		a   provider.Adapter
		err error
	)
	switch cfg.providerType() {
	case provider.ProviderS3:
		a, err = unwrap(s3.New(ctx, cfg.S3(), s3.WithLogger(log)))
	case provider.ProviderMinio:
		a, err = unwrap(minio.New(ctx, cfg.Minio(), minio.WithLogger(log)))
	case provider.ProviderQiniu:
		a, err = unwrap(qiniu.New(ctx, cfg.Qiniu(), qiniu.WithLogger(log)))
	default:
		a, err = unwrap(file.New(cfg.File(), file.WithLogger(log)))
	}
	if err != nil {
		return nil, err
	}
	return a, nil
}

// unwrap keeps a typed nil adapter from becoming a non-nil interface.
func unwrap[A provider.Adapter](a A, err error) (provider.Adapter, error) {
	if err != nil {
		return nil, err
	}
	return a, nil
}
