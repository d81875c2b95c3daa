// Package minio implements the storage adapter for MinIO and other stores
// reached through minio-go.
//
// Listings use V1 marker pagination with the "/" delimiter on every level and
// descend into common prefixes explicitly, which also suits S3-compatible
// services whose flat listings are unreliable (Huawei OBS).
package minio

import (
	"strings"
	"time"

	"github.com/3leaps/nimbusfs/pkg/provider"
)

// Config configures a MinIO adapter.
type Config struct {
	// Endpoint is host[:port] without a scheme (required).
	Endpoint string

	// AccessKey and SecretKey are static V4 credentials.
	AccessKey string
	SecretKey string

	// SessionToken is an optional STS token.
	SessionToken string

	// UseSSL selects https.
	UseSSL bool

	// Region is sent with signed requests. Optional for MinIO.
	Region string

	// Bucket is the bucket name (required).
	Bucket string

	// Domain is the CDN or public domain for URLs.
	Domain string

	// Scheme is applied to a Domain without one. Default: http.
	Scheme string

	// Prefix scopes the adapter to a sub-tree of the bucket.
	Prefix string

	// Encrypt requests SSE-S3 on every write.
	Encrypt bool

	// PageSize is the listing page size. Default: 1000
	PageSize int

	// RateLimit caps listing requests per second. Zero is unlimited.
	RateLimit float64

	// MaxDepth caps recursive descent. Default: 64
	MaxDepth int

	// Timeout bounds connecting and waiting for response headers.
	// Default: 60s
	Timeout time.Duration
}

// MaxPresignExpiry is the longest lifetime a V4 presigned URL may have.
const MaxPresignExpiry = 7 * 24 * time.Hour

// Validate checks that required configuration is present.
func (c *Config) Validate() error {
	if c.Endpoint == "" {
		return configError("Endpoint", "endpoint is required")
	}
	if strings.Contains(c.Endpoint, "://") || strings.Contains(c.Endpoint, "/") {
		return configError("Endpoint", "endpoint must be host[:port] without scheme or path")
	}
	if c.Bucket == "" {
		return configError("Bucket", "bucket name is required")
	}
	if (c.AccessKey != "") != (c.SecretKey != "") {
		return configError("AccessKey/SecretKey", "both access key and secret key must be provided together")
	}
	if c.Timeout < 0 {
		return configError("Timeout", "timeout must not be negative")
	}
	return nil
}

func (c *Config) scheme() string {
	if c.UseSSL {
		return "https"
	}
	return "http"
}

func (c *Config) timeout() time.Duration {
	if c.Timeout == 0 {
		return provider.DefaultTimeout
	}
	return c.Timeout
}

func configError(field, message string) error {
	return &provider.ConfigError{Provider: provider.ProviderMinio, Field: field, Message: message}
}
