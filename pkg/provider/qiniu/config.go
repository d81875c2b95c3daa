// Package qiniu implements the storage adapter for Qiniu Kodo.
//
// Kodo serves objects only through a bound domain, so Domain is required.
// Visibility is a bucket-level setting in Kodo and per-object visibility
// calls always report failure.
package qiniu

import (
	"time"

	"github.com/3leaps/nimbusfs/pkg/provider"
)

// Config configures a Qiniu adapter.
type Config struct {
	// AccessKey and SecretKey are the account credentials (required).
	AccessKey string
	SecretKey string

	// Bucket is the bucket name (required).
	Bucket string

	// Domain is the bound domain objects are served from (required).
	Domain string

	// Scheme is applied to a Domain without one. Default: http.
	Scheme string

	// UseHTTPS selects https for API and upload hosts.
	UseHTTPS bool

	// Prefix scopes the adapter to a sub-tree of the bucket.
	Prefix string

	// PageSize is the listing page size. Default: 1000
	PageSize int

	// RateLimit caps listing requests per second. Zero is unlimited.
	RateLimit float64

	// Timeout bounds connecting and waiting for response headers.
	// Default: 60s
	Timeout time.Duration
}

// Validate checks that required configuration is present.
func (c *Config) Validate() error {
	if c.AccessKey == "" || c.SecretKey == "" {
		return configError("AccessKey/SecretKey", "access key and secret key are required")
	}
	if c.Bucket == "" {
		return configError("Bucket", "bucket name is required")
	}
	if c.Domain == "" {
		return configError("Domain", "domain is required")
	}
	if c.Timeout < 0 {
		return configError("Timeout", "timeout must not be negative")
	}
	return nil
}

func (c *Config) timeout() time.Duration {
	if c.Timeout == 0 {
		return provider.DefaultTimeout
	}
	return c.Timeout
}

func configError(field, message string) error {
	return &provider.ConfigError{Provider: provider.ProviderQiniu, Field: field, Message: message}
}
