// Package cmd implements the nimbusfs command line.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/fulmenhq/gofulmen/foundry"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/3leaps/nimbusfs/internal/config"
	"github.com/3leaps/nimbusfs/internal/observability"
	"github.com/3leaps/nimbusfs/pkg/driver"
	"github.com/3leaps/nimbusfs/pkg/provider"
)

var versionInfo = struct {
	Version   string
	Commit    string
	BuildDate string
}{
	Version:   "dev",
	Commit:    "HEAD",
	BuildDate: "unknown",
}

// SetVersionInfo records build metadata for `version` and GET /version.
func SetVersionInfo(version, commit, buildDate string) {
	versionInfo.Version = version
	versionInfo.Commit = commit
	versionInfo.BuildDate = buildDate
}

var (
	cfgFile   string
	diskName  string
	logLevel  string
	logFormat string
	verbose   bool
	readOnly  bool

	appConfig *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "nimbusfs",
	Short: "One filesystem interface over S3, MinIO, Qiniu and local disks",
	Long: `nimbusfs reads and writes objects through named disks defined in
nimbusfs.yaml. Every command works the same on every driver.

Examples:
  nimbusfs ls docs/ --recursive --include '**/*.pdf'
  nimbusfs put reports/q3.pdf --file ./q3.pdf --visibility private
  nimbusfs url reports/q3.pdf --expires 15m
  nimbusfs --disk archive cp 2024/a.bin 2024/b.bin`,
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: initialize,
}

func init() {
	setDefaults()

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&cfgFile, "config", "", "Config file (default ./nimbusfs.yaml or ~/.config/nimbusfs/nimbusfs.yaml)")
	flags.StringVarP(&diskName, "disk", "d", "", "Disk to use (default storage.default)")
	flags.StringVar(&logLevel, "log-level", "", "Log level (debug|info|warn|error)")
	flags.StringVar(&logFormat, "log-format", "", "Log format (console|json)")
	flags.BoolVarP(&verbose, "verbose", "v", false, "Shorthand for --log-level debug")
	flags.BoolVar(&readOnly, "readonly", false, "Refuse every command that modifies storage")
}

// setDefaults registers config defaults on the global viper instance.
func setDefaults() {
	config.SetDefaults(viper.GetViper())
}

// initialize loads configuration and the CLI logger before any command.
func initialize(cmd *cobra.Command, _ []string) error {
	config.SetConfigFile(cfgFile)

	overrides := map[string]any{}
	logging := map[string]any{}
	if logLevel != "" {
		logging["level"] = logLevel
	}
	if verbose {
		logging["level"] = "debug"
	}
	if logFormat != "" {
		logging["format"] = logFormat
	}
	if len(logging) > 0 {
		overrides["logging"] = logging
	}

	cfg, err := config.Load(cmd.Context(), overrides)
	if err != nil {
		return exitError(foundry.ExitInvalidArgument, "Invalid configuration", err)
	}
	appConfig = cfg
	readOnly = readOnly || cfg.ReadOnly

	if err := observability.InitCLILogger(cfg.Logging.Level, cfg.Logging.Format == observability.FormatJSON); err != nil {
		return exitError(foundry.ExitInvalidArgument, "Invalid logging configuration", err)
	}
	return nil
}

// openDisk resolves the requested disk and builds its adapter.
func openDisk(ctx context.Context) (string, provider.Adapter, error) {
	if appConfig == nil {
		return "", nil, exitError(foundry.ExitInvalidArgument, "Configuration not loaded", errors.New("run through the root command"))
	}

	name, cfg, err := appConfig.Storage.Disk(diskName)
	if err != nil {
		return "", nil, exitError(foundry.ExitInvalidArgument, "Unknown disk", err)
	}

	observability.CLILogger.Debug("Opening disk", zap.String("disk", name), zap.String("driver", cfg.Driver))

	a, err := driver.Open(ctx, cfg, observability.CLILogger.With(zap.String("disk", name)))
	if err != nil {
		if provider.IsConfigError(err) {
			return "", nil, exitError(foundry.ExitInvalidArgument, "Invalid disk configuration", err)
		}
		return "", nil, exitError(foundry.ExitExternalServiceUnavailable, "Failed to connect to storage provider", err)
	}
	return name, a, nil
}

// withDisk opens the disk, runs fn, and closes the adapter.
func withDisk(cmd *cobra.Command, fn func(ctx context.Context, disk string, a provider.Adapter) error) error {
	ctx := cmd.Context()
	name, a, err := openDisk(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()
	return fn(ctx, name, a)
}

// requireWritable blocks mutating commands in readonly mode.
func requireWritable(op string) error {
	if readOnly {
		return exitError(foundry.ExitInvalidArgument, "readonly mode enabled: refusing "+op,
			errors.New("disable --readonly or unset NIMBUSFS_READONLY"))
	}
	return nil
}

// ExitError carries the process exit code for a failed command.
type ExitError struct {
	Code    int
	Message string
	Err     error
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("%s: %v (exit code %d)", e.Message, e.Err, e.Code)
}

func (e *ExitError) Unwrap() error {
	return e.Err
}

// exitError creates an error that will cause the CLI to exit with the given code.
func exitError(code int, message string, err error) error {
	return &ExitError{Code: code, Message: message, Err: err}
}

// Execute runs the root command and returns the process exit code.
func Execute() int {
	ctx := context.Background()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)

		var exitErr *ExitError
		if errors.As(err, &exitErr) {
			return exitErr.Code
		}
		return foundry.ExitInvalidArgument
	}
	return 0
}
