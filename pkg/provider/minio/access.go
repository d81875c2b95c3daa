package minio

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	miniogo "github.com/minio/minio-go/v7"

	"github.com/3leaps/nimbusfs/pkg/provider"
)

const (
	aclPublicRead = "public-read"
	aclPrivate    = "private"

	allUsersGroup = "global/AllUsers"
	permRead      = "READ"
)

func cannedACL(v provider.Visibility) string {
	if v == provider.VisibilityPublic {
		return aclPublicRead
	}
	return aclPrivate
}

// Visibility is public when the object ACL grants READ to all users.
func (a *Adapter) Visibility(ctx context.Context, path string) (provider.Visibility, bool) {
	key := a.codec.ApplyPrefix(path)
	info, err := a.api.GetObjectACL(ctx, a.cfg.Bucket, key)
	if err != nil {
		a.fail("Visibility", key, err)
		return "", false
	}
	for _, g := range info.Grant {
		if g.Permission == permRead && strings.Contains(g.Grantee.URI, allUsersGroup) {
			return provider.VisibilityPublic, true
		}
	}
	return provider.VisibilityPrivate, true
}

// SetVisibility rewrites the object onto itself with the canned ACL, since
// minio-go has no object ACL setter. Content type and user metadata are
// carried over.
func (a *Adapter) SetVisibility(ctx context.Context, path string, v provider.Visibility) bool {
	key := a.codec.ApplyPrefix(path)
	info, err := a.api.StatObject(ctx, a.cfg.Bucket, key)
	if err != nil {
		a.fail("SetVisibility", key, err)
		return false
	}

	meta := make(map[string]string, len(info.UserMetadata)+2)
	for k, val := range info.UserMetadata {
		meta[k] = val
	}
	meta["Content-Type"] = info.ContentType
	meta[amzACL] = cannedACL(v)

	_, err = a.api.CopyObject(ctx,
		miniogo.CopyDestOptions{Bucket: a.cfg.Bucket, Object: key, ReplaceMetadata: true, UserMetadata: meta},
		miniogo.CopySrcOptions{Bucket: a.cfg.Bucket, Object: key},
	)
	if err != nil {
		a.fail("SetVisibility", key, err)
		return false
	}
	return true
}

// URL returns the CDN URL when a domain is configured, otherwise the
// path-style endpoint URL.
func (a *Adapter) URL(path string) string {
	return a.codec.PublicURL(a.codec.ApplyPrefix(path), a.nativeURL)
}

func (a *Adapter) nativeURL(key string) string {
	u := *a.endpoint
	u.Path = "/" + a.cfg.Bucket + "/" + key
	return u.String()
}

// TemporaryURL presigns a GET valid until expiry (at most seven days) and
// rewrites it through the CDN domain when one is configured.
func (a *Adapter) TemporaryURL(ctx context.Context, path string, expiry time.Time, opts provider.URLOptions) (string, bool) {
	key := a.codec.ApplyPrefix(path)
	ttl := time.Until(expiry).Truncate(time.Second)
	if ttl < time.Second || ttl > MaxPresignExpiry {
		a.fail("TemporaryURL", key, fmt.Errorf("expiry %s outside (now, now+7d]", expiry.Format(time.RFC3339)))
		return "", false
	}

	params := url.Values{}
	if opts.ResponseContentType != "" {
		params.Set("response-content-type", opts.ResponseContentType)
	}
	if opts.ResponseContentDisposition != "" {
		params.Set("response-content-disposition", opts.ResponseContentDisposition)
	}

	u, err := a.api.PresignedGetObject(ctx, a.cfg.Bucket, key, ttl, params)
	if err != nil {
		a.fail("TemporaryURL", key, err)
		return "", false
	}
	// Virtual-hosted URLs carry the bucket in the host, so any leading
	// path segment belongs to the key.
	segment := a.cfg.Bucket
	if strings.HasPrefix(u.Host, a.cfg.Bucket+".") {
		segment = ""
	}
	signed, err := a.codec.Rewrite(u.String(), segment)
	if err != nil {
		a.fail("TemporaryURL", key, err)
		return "", false
	}
	return signed, true
}
