package config

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment variable nimbusfs reads.
const EnvPrefix = "NIMBUSFS"

// ConfigName is the config file base name (nimbusfs.yaml).
const ConfigName = "nimbusfs"

var (
	configMu   sync.RWMutex
	appConfig  *Config
	configFile string
)

// EnvSpec maps one environment variable to a config path.
type EnvSpec struct {
	Name string
	Path string
}

// SetConfigFile pins the config file Load reads. Empty restores the search
// of the working directory and $HOME/.config/nimbusfs.
func SetConfigFile(path string) {
	configMu.Lock()
	defer configMu.Unlock()
	configFile = path
}

// SetDefaults registers every default on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "localhost")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "30s")
	v.SetDefault("server.idle_timeout", "120s")
	v.SetDefault("server.shutdown_timeout", "10s")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "console")

	v.SetDefault("storage.default", "")
	v.SetDefault("readonly", false)
}

// Load builds the configuration and makes it the one GetConfig returns.
// Each overrides map is nested like the YAML file and wins over everything.
func Load(ctx context.Context, overrides ...map[string]any) (*Config, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	v := viper.New()
	SetDefaults(v)

	if err := readConfigFile(v); err != nil {
		return nil, err
	}

	for _, spec := range getEnvSpecs() {
		if err := v.BindEnv(spec.Path, spec.Name); err != nil {
			return nil, fmt.Errorf("bind %s: %w", spec.Name, err)
		}
	}

	for _, o := range overrides {
		for key, value := range flatten("", o) {
			v.Set(key, value)
		}
	}

	var cfg Config
	hook := viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
	))
	if err := v.Unmarshal(&cfg, hook); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	expandSecrets(&cfg)

	if err := cfg.Storage.Validate(); err != nil {
		return nil, err
	}

	configMu.Lock()
	appConfig = &cfg
	configMu.Unlock()

	return &cfg, nil
}

// GetConfig returns the most recently loaded configuration, or nil.
func GetConfig() *Config {
	configMu.RLock()
	defer configMu.RUnlock()
	return appConfig
}

func readConfigFile(v *viper.Viper) error {
	configMu.RLock()
	explicit := configFile
	configMu.RUnlock()

	v.SetConfigType("yaml")
	if explicit != "" {
		v.SetConfigFile(explicit)
		if err := v.ReadInConfig(); err != nil {
			return fmt.Errorf("read config %s: %w", explicit, err)
		}
		return validateUsedFile(v)
	}

	v.SetConfigName(ConfigName)
	for _, dir := range getUserConfigPaths() {
		v.AddConfigPath(dir)
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return nil
		}
		return fmt.Errorf("read config: %w", err)
	}
	return validateUsedFile(v)
}

func validateUsedFile(v *viper.Viper) error {
	path := v.ConfigFileUsed()
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config %s: %w", path, err)
	}
	if err := ValidateFile(data); err != nil {
		return fmt.Errorf("config %s: %w", path, err)
	}
	return nil
}

func getUserConfigPaths() []string {
	paths := []string{"."}
	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".config", ConfigName))
	}
	return paths
}

func getEnvSpecs() []EnvSpec {
	mapping := []struct{ suffix, path string }{
		{"HOST", "server.host"},
		{"PORT", "server.port"},
		{"READ_TIMEOUT", "server.read_timeout"},
		{"WRITE_TIMEOUT", "server.write_timeout"},
		{"IDLE_TIMEOUT", "server.idle_timeout"},
		{"SHUTDOWN_TIMEOUT", "server.shutdown_timeout"},
		{"LOG_LEVEL", "logging.level"},
		{"LOG_FORMAT", "logging.format"},
		{"DISK", "storage.default"},
		{"READONLY", "readonly"},
	}

	specs := make([]EnvSpec, 0, len(mapping))
	for _, m := range mapping {
		specs = append(specs, EnvSpec{Name: EnvPrefix + "_" + m.suffix, Path: m.path})
	}
	return specs
}

// flatten turns {"server": {"port": 1}} into {"server.port": 1}. Disk
// blocks are kept whole below storage.disks.<name>.
func flatten(prefix string, m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		key := strings.ToLower(k)
		if prefix != "" {
			key = prefix + "." + key
		}
		nested, ok := v.(map[string]any)
		if !ok || strings.Count(key, ".") >= 2 && strings.HasPrefix(key, "storage.disks.") {
			out[key] = v
			continue
		}
		for fk, fv := range flatten(key, nested) {
			out[fk] = fv
		}
	}
	return out
}

// expandSecrets resolves ${VAR} references in credential fields so the
// YAML file never has to carry secrets.
func expandSecrets(cfg *Config) {
	for name, disk := range cfg.Storage.Disks {
		disk.AccessKey = os.ExpandEnv(disk.AccessKey)
		disk.SecretKey = os.ExpandEnv(disk.SecretKey)
		disk.SessionToken = os.ExpandEnv(disk.SessionToken)
		cfg.Storage.Disks[name] = disk
	}
}
