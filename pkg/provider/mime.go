package provider

import (
	"mime"
	"path"
)

// DefaultContentType is used when neither the caller nor the key extension
// determines a content type.
const DefaultContentType = "application/octet-stream"

// ResolveContentType returns override when set, otherwise the type registered
// for the key extension, otherwise DefaultContentType.
func ResolveContentType(key, override string) string {
	if override != "" {
		return override
	}
	if ct := mime.TypeByExtension(path.Ext(key)); ct != "" {
		return ct
	}
	return DefaultContentType
}
