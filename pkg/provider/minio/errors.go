package minio

import (
	"context"
	"errors"
	"net/http"

	miniogo "github.com/minio/minio-go/v7"

	"github.com/3leaps/nimbusfs/pkg/provider"
)

// wrapError converts minio-go errors to provider errors with sentinel causes.
func (a *Adapter) wrapError(op, key string, err error) error {
	wrapped := &provider.ProviderError{
		Op:       op,
		Provider: provider.ProviderMinio,
		Bucket:   a.cfg.Bucket,
		Key:      key,
		Err:      err,
	}

	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return wrapped
	}

	var resp miniogo.ErrorResponse
	if !errors.As(err, &resp) {
		return wrapped
	}

	switch resp.Code {
	case "NoSuchKey", "NoSuchUpload":
		wrapped.Err = provider.ErrNotFound
		return wrapped
	case "NoSuchBucket":
		wrapped.Err = provider.ErrBucketNotFound
		return wrapped
	case "AccessDenied":
		wrapped.Err = provider.ErrAccessDenied
		return wrapped
	case "InvalidAccessKeyId", "SignatureDoesNotMatch":
		wrapped.Err = provider.ErrInvalidCredentials
		return wrapped
	case "SlowDown", "SlowDownRead", "SlowDownWrite":
		wrapped.Err = provider.ErrThrottled
		return wrapped
	}

	switch resp.StatusCode {
	case http.StatusNotFound:
		wrapped.Err = provider.ErrNotFound
	case http.StatusForbidden, http.StatusUnauthorized:
		wrapped.Err = provider.ErrAccessDenied
	case http.StatusTooManyRequests:
		wrapped.Err = provider.ErrThrottled
	case http.StatusInternalServerError, http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		wrapped.Err = provider.ErrProviderUnavailable
	}
	return wrapped
}
