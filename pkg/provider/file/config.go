// Package file implements the storage adapter over a local directory.
//
// Keys are slash-separated paths below Root and directories are real
// directories, so a directory "placeholder" is simply an empty directory.
// Content types are derived from the key extension on every read.
package file

import (
	"strings"

	"github.com/3leaps/nimbusfs/pkg/provider"
)

// Config configures a local directory adapter.
type Config struct {
	// Root is the directory that holds the objects (required).
	Root string

	// Domain serves public URLs. Without it URLs are file:// URLs.
	Domain string

	// Scheme is applied to a Domain without one. Default: http.
	Scheme string

	// PageSize is the listing page size. Default: 1000
	PageSize int
}

// Validate checks that required configuration is present.
func (c Config) Validate() error {
	if strings.TrimSpace(c.Root) == "" {
		return &provider.ConfigError{Provider: provider.ProviderFile, Field: "Root", Message: "root dir is required"}
	}
	return nil
}
