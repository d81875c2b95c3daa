package provider

import (
	"errors"

	"go.uber.org/zap"
)

// LogFailure records an error that a point operation swallowed. The boolean
// result carries no diagnostics, so the log line is the only trace of why
// the operation failed.
func LogFailure(log *zap.Logger, err error) {
	if log == nil || err == nil {
		return
	}

	var pe *ProviderError
	if !errors.As(err, &pe) {
		log.Debug("Storage operation failed", zap.Error(err))
		return
	}
	log.Debug("Storage operation failed",
		zap.String("op", pe.Op),
		zap.String("provider", pe.Provider.String()),
		zap.String("bucket", pe.Bucket),
		zap.String("key", pe.Key),
		zap.Error(pe.Err),
	)
}
