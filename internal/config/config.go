// Package config loads nimbusfs settings from defaults, an optional YAML
// file, NIMBUSFS_* environment variables and runtime overrides, in
// increasing order of precedence.
package config

import (
	"fmt"
	"sort"
	"time"

	"github.com/3leaps/nimbusfs/pkg/driver"
	"github.com/3leaps/nimbusfs/pkg/provider"
)

// Config is the full application configuration.
type Config struct {
	Logging  LoggingConfig `mapstructure:"logging" yaml:"logging"`
	Server   ServerConfig  `mapstructure:"server" yaml:"server"`
	Storage  StorageConfig `mapstructure:"storage" yaml:"storage"`
	ReadOnly bool          `mapstructure:"readonly" yaml:"readonly"`
}

// LoggingConfig selects the log level and encoder.
type LoggingConfig struct {
	Level  string `mapstructure:"level" yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"`
}

// ServerConfig configures `nimbusfs serve`.
type ServerConfig struct {
	Host            string        `mapstructure:"host" yaml:"host"`
	Port            int           `mapstructure:"port" yaml:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout" yaml:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout" yaml:"write_timeout"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout" yaml:"idle_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout"`
}

// StorageConfig holds the named disks.
type StorageConfig struct {
	// Default names the disk used when none is requested.
	Default string `mapstructure:"default" yaml:"default"`

	// Disks maps a disk name to its driver block.
	Disks map[string]driver.Config `mapstructure:"disks" yaml:"disks"`
}

// DiskNames returns the configured disk names in order.
func (s StorageConfig) DiskNames() []string {
	names := make([]string, 0, len(s.Disks))
	for name := range s.Disks {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Disk resolves name, falling back to the default disk and then to the
// only configured disk.
func (s StorageConfig) Disk(name string) (string, driver.Config, error) {
	if name == "" {
		name = s.Default
	}
	if name == "" && len(s.Disks) == 1 {
		name = s.DiskNames()[0]
	}
	if name == "" {
		return "", driver.Config{}, &provider.ConfigError{Field: "storage.default", Message: "no disk selected and no default configured"}
	}

	cfg, ok := s.Disks[name]
	if !ok {
		return "", driver.Config{}, &provider.ConfigError{Field: "storage.disks", Message: fmt.Sprintf("disk %q is not configured", name)}
	}
	return name, cfg, nil
}

// Validate checks every disk block and the default reference.
func (s StorageConfig) Validate() error {
	for _, name := range s.DiskNames() {
		if err := s.Disks[name].Validate(); err != nil {
			return fmt.Errorf("disk %q: %w", name, err)
		}
	}
	if s.Default != "" {
		if _, ok := s.Disks[s.Default]; !ok {
			return &provider.ConfigError{Field: "storage.default", Message: fmt.Sprintf("disk %q is not configured", s.Default)}
		}
	}
	return nil
}
