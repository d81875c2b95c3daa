// Package observability owns the process loggers.
package observability

import (
	"fmt"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// CLILogger is the logger commands write to. It discards everything until
// InitCLILogger runs.
var CLILogger = zap.NewNop()

// Log formats.
const (
	FormatConsole = "console"
	FormatJSON    = "json"
)

// InitCLILogger replaces CLILogger with a stderr logger at level.
func InitCLILogger(level string, jsonOutput bool) error {
	format := FormatConsole
	if jsonOutput {
		format = FormatJSON
	}
	log, err := NewLogger(level, format)
	if err != nil {
		return err
	}
	CLILogger = log
	return nil
}

// NewLogger builds a stderr logger. format is console or json.
func NewLogger(level, format string) (*zap.Logger, error) {
	lvl, err := zapcore.ParseLevel(strings.TrimSpace(level))
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", level, err)
	}

	var cfg zap.Config
	switch strings.ToLower(format) {
	case FormatJSON, "structured":
		cfg = zap.NewProductionConfig()
		cfg.EncoderConfig.TimeKey = "ts"
		cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	case FormatConsole, "":
		cfg = zap.NewDevelopmentConfig()
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		cfg.DisableStacktrace = true
	default:
		return nil, fmt.Errorf("invalid log format %q (expected console or json)", format)
	}
	cfg.Level = zap.NewAtomicLevelAt(lvl)
	cfg.OutputPaths = []string{"stderr"}
	cfg.ErrorOutputPaths = []string{"stderr"}

	return cfg.Build()
}

// Sync flushes CLILogger, ignoring the EINVAL some terminals return.
func Sync() {
	_ = CLILogger.Sync()
}
