package qiniu

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/qiniu/go-sdk/v7/client"

	"github.com/3leaps/nimbusfs/pkg/provider"
)

// Kodo-specific response codes.
const (
	codeNoSuchEntry  = 612
	codeNoSuchBucket = 631
	codeOutOfLimit   = 573
	codeServerError  = 599
)

// wrapError converts Qiniu errors to provider errors with sentinel causes.
func (a *Adapter) wrapError(op, key string, err error) error {
	wrapped := &provider.ProviderError{
		Op:       op,
		Provider: provider.ProviderQiniu,
		Bucket:   a.cfg.Bucket,
		Key:      key,
		Err:      err,
	}

	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return wrapped
	}

	var info *client.ErrorInfo
	if !errors.As(err, &info) {
		return wrapped
	}
	if sentinel := sentinelForCode(info.Code); sentinel != nil {
		wrapped.Err = sentinel
	}
	return wrapped
}

func sentinelForCode(code int) error {
	switch code {
	case codeNoSuchEntry, http.StatusNotFound:
		return provider.ErrNotFound
	case codeNoSuchBucket:
		return provider.ErrBucketNotFound
	case http.StatusUnauthorized:
		return provider.ErrInvalidCredentials
	case http.StatusForbidden:
		return provider.ErrAccessDenied
	case codeOutOfLimit, http.StatusTooManyRequests:
		return provider.ErrThrottled
	case codeServerError, http.StatusInternalServerError, http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return provider.ErrProviderUnavailable
	}
	return nil
}

// batchError reports keys a batch delete could not remove.
type batchError struct {
	code   int
	failed int
}

func (e *batchError) Error() string {
	return "batch delete failed for " + strconv.Itoa(e.failed) + " keys (first code " + strconv.Itoa(e.code) + ")"
}

// Unwrap lets the first failing code map to a sentinel.
func (e *batchError) Unwrap() error {
	return &client.ErrorInfo{Code: e.code}
}
