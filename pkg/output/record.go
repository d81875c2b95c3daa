// Package output renders CLI results as JSONL envelopes, YAML documents or
// an aligned table.
//
// JSONL output is one self-contained envelope per line so results can be
// piped into jq or another process without buffering the whole listing.
package output

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/3leaps/nimbusfs/pkg/provider"
)

// Record type constants follow the pattern nimbusfs.<type>.v<version>.
const (
	// TypeObject identifies file and directory records.
	TypeObject = "nimbusfs.object.v1"

	// TypeError identifies error records.
	TypeError = "nimbusfs.error.v1"

	// TypeSummary identifies final summary records.
	TypeSummary = "nimbusfs.summary.v1"
)

// Record is the JSONL envelope.
type Record struct {
	// Type identifies the payload (e.g., "nimbusfs.object.v1").
	Type string `json:"type"`

	// TS is when the record was created.
	TS time.Time `json:"ts"`

	// JobID correlates every record of one command run.
	JobID string `json:"job_id"`

	// Disk is the configured disk name the records came from.
	Disk string `json:"disk"`

	// Data contains the type-specific payload as raw JSON.
	Data json.RawMessage `json:"data"`
}

// ErrorRecord is the data payload for errors.
type ErrorRecord struct {
	// Code is a machine-readable error code.
	Code string `json:"code" yaml:"code"`

	// Message is a human-readable error description.
	Message string `json:"message" yaml:"message"`

	// Path is the object path related to this error, if any.
	Path string `json:"path,omitempty" yaml:"path,omitempty"`
}

// Error codes for ErrorRecord.
const (
	ErrCodeAccessDenied = "ACCESS_DENIED"
	ErrCodeNotFound     = "NOT_FOUND"
	ErrCodeThrottled    = "THROTTLED"
	ErrCodeUnsupported  = "UNSUPPORTED"
	ErrCodeInternal     = "INTERNAL"
)

// ErrorCode maps a provider error onto an ErrorRecord code.
func ErrorCode(err error) string {
	switch {
	case provider.IsNotFound(err), provider.IsBucketNotFound(err):
		return ErrCodeNotFound
	case provider.IsAccessDenied(err), provider.IsInvalidCredentials(err):
		return ErrCodeAccessDenied
	case provider.IsThrottled(err):
		return ErrCodeThrottled
	case provider.IsUnsupported(err):
		return ErrCodeUnsupported
	}
	return ErrCodeInternal
}

// SummaryRecord is emitted once after a listing.
type SummaryRecord struct {
	// Files is the number of file records written.
	Files int64 `json:"files" yaml:"files"`

	// Dirs is the number of directory records written.
	Dirs int64 `json:"dirs" yaml:"dirs"`

	// Bytes is the total size of the files.
	Bytes int64 `json:"bytes" yaml:"bytes"`

	// Duration is how long the listing took.
	Duration time.Duration `json:"duration_ns" yaml:"-"`

	// DurationHuman is a human-readable duration string.
	DurationHuman string `json:"duration" yaml:"duration"`
}

// Add counts rec in the summary.
func (s *SummaryRecord) Add(rec *provider.ObjectRecord) {
	if rec.IsDir() {
		s.Dirs++
		return
	}
	s.Files++
	if rec.Size != nil {
		s.Bytes += *rec.Size
	}
}

// NewJobID returns a fresh correlation id.
func NewJobID() string {
	return uuid.NewString()
}

// ErrWriterClosed is returned when writing to a closed writer.
var ErrWriterClosed = errors.New("writer is closed")

// WriteError wraps errors that occur during write operations.
type WriteError struct {
	Op  string // Operation that failed (e.g., "marshal_data", "write")
	Err error
}

func (e *WriteError) Error() string {
	return "output: " + e.Op + ": " + e.Err.Error()
}

func (e *WriteError) Unwrap() error {
	return e.Err
}
