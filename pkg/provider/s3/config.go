// Package s3 implements the storage adapter for AWS S3 and S3-compatible
// stores (Tencent COS, Huawei OBS, Wasabi, DigitalOcean Spaces, ...).
package s3

import (
	"net/url"
	"strings"
	"time"

	"github.com/3leaps/nimbusfs/pkg/provider"
)

// Config configures an S3 adapter.
//
// Authentication priority (AWS SDK v2 default chain):
//  1. Explicit AccessKeyID/SecretAccessKey (if provided)
//  2. Environment variables (AWS_ACCESS_KEY_ID, AWS_SECRET_ACCESS_KEY)
//  3. Shared credentials file (~/.aws/credentials)
//  4. Shared config file (~/.aws/config) with profile
//  5. EC2 instance metadata / ECS task role / EKS IRSA
//
// Region handling:
//   - For AWS S3: If Region is empty and not set via environment/profile,
//     defaults to us-east-1 (standard AWS convention).
//   - For S3-compatible stores: When Endpoint is set, no default region
//     is applied.
type Config struct {
	// Bucket is the bucket name (required).
	Bucket string

	// AppID is the account id some providers append to bucket names. When
	// set, the effective bucket is "Bucket-AppID" (Tencent COS convention).
	AppID string

	// Region is the provider region.
	Region string

	// Endpoint is a custom endpoint URL for S3-compatible stores.
	// Examples:
	//   - COS: https://cos.ap-guangzhou.myqcloud.com
	//   - OBS: https://obs.cn-north-4.myhuaweicloud.com
	//   - MinIO: http://localhost:9000
	Endpoint string

	// Profile is the AWS profile name to use from shared config.
	Profile string

	// IMDSRegion asks the EC2 instance metadata service for the region when
	// neither Region, the environment nor the profile set one. Ignored with
	// a custom Endpoint.
	IMDSRegion bool

	// AccessKeyID is an explicit access key. If set, SecretAccessKey must also be set.
	AccessKeyID string

	// SecretAccessKey is an explicit secret key. Required if AccessKeyID is set.
	SecretAccessKey string

	// SessionToken is an optional STS token for temporary credentials.
	SessionToken string

	// ForcePathStyle puts the bucket in the URL path instead of the host.
	ForcePathStyle bool

	// Domain is the CDN or public domain for URLs.
	Domain string

	// Scheme is applied to a Domain without one. Default: http.
	Scheme string

	// Prefix scopes the adapter to a sub-tree of the bucket.
	Prefix string

	// Encrypt requests SSE (AES256) on every write.
	Encrypt bool

	// ReadFromCDN makes reads fetch a short-lived signed URL through the
	// Domain instead of calling GetObject.
	ReadFromCDN bool

	// PageSize is the listing page size. Zero uses 1000; values over 1000
	// are clamped.
	PageSize int

	// RateLimit caps listing requests per second. Zero is unlimited.
	RateLimit float64

	// Timeout bounds connecting and waiting for response headers.
	// Default: 60s
	Timeout time.Duration
}

// DefaultAWSRegion is the fallback region for AWS S3 when not specified.
const DefaultAWSRegion = "us-east-1"

// Validate checks that required configuration is present.
func (c *Config) Validate() error {
	if c.Bucket == "" {
		return configError("Bucket", "bucket name is required")
	}

	// If one explicit credential is set, both must be set
	if (c.AccessKeyID != "") != (c.SecretAccessKey != "") {
		return configError("AccessKeyID/SecretAccessKey", "both access key ID and secret access key must be provided together")
	}

	if c.Endpoint != "" {
		u, err := url.Parse(c.Endpoint)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return configError("Endpoint", "endpoint must be an absolute URL")
		}
	}

	if c.ReadFromCDN && c.Domain == "" {
		return configError("ReadFromCDN", "read from CDN requires a domain")
	}

	if c.Timeout < 0 {
		return configError("Timeout", "timeout must not be negative")
	}

	return nil
}

// EffectiveBucket returns the bucket name sent to the provider.
func (c *Config) EffectiveBucket() string {
	if c.AppID == "" || strings.HasSuffix(c.Bucket, "-"+c.AppID) {
		return c.Bucket
	}
	return c.Bucket + "-" + c.AppID
}

func (c *Config) timeout() time.Duration {
	if c.Timeout == 0 {
		return provider.DefaultTimeout
	}
	return c.Timeout
}

func configError(field, message string) error {
	return &provider.ConfigError{Provider: provider.ProviderS3, Field: field, Message: message}
}

// resolveRegion determines the final region to use after SDK config loading.
//
// The sdkRegion parameter is the region after SDK loading, which already
// incorporates explicit cfgRegion (if set) or env/profile resolution.
// This function only applies the fallback default:
//   - If sdkRegion is still empty AND no custom endpoint, default to us-east-1
//   - For S3-compatible stores (endpoint set), no defaulting occurs
func resolveRegion(endpoint, sdkRegion string) string {
	if sdkRegion != "" {
		return sdkRegion
	}
	if endpoint == "" {
		return DefaultAWSRegion
	}
	return ""
}
