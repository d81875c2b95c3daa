package output

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"sync"
	"text/tabwriter"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/3leaps/nimbusfs/pkg/provider"
)

// Writer emits CLI results.
//
// Implementations must be safe for concurrent use from multiple goroutines.
type Writer interface {
	// WriteObject emits a file or directory record.
	WriteObject(ctx context.Context, obj *provider.ObjectRecord) error

	// WriteError emits an error record.
	WriteError(ctx context.Context, err *ErrorRecord) error

	// WriteSummary emits a summary record.
	WriteSummary(ctx context.Context, sum *SummaryRecord) error

	// Close flushes any buffered output. The underlying io.Writer is not
	// closed.
	Close() error
}

// Format names an output encoding.
type Format string

const (
	FormatJSONL Format = "jsonl"
	FormatYAML  Format = "yaml"
	FormatTable Format = "table"
)

// Formats lists the accepted --output values.
func Formats() []string {
	return []string{string(FormatJSONL), string(FormatYAML), string(FormatTable)}
}

// New returns the writer for format.
func New(format string, w io.Writer, jobID, disk string) (Writer, error) {
	switch Format(strings.ToLower(format)) {
	case FormatJSONL, "":
		return NewJSONLWriter(w, jobID, disk), nil
	case FormatYAML:
		return NewYAMLWriter(w), nil
	case FormatTable:
		return NewTableWriter(w), nil
	}
	return nil, fmt.Errorf("unknown output format %q (expected one of %s)", format, strings.Join(Formats(), ", "))
}

// JSONLWriter writes records as newline-delimited JSON to an io.Writer.
//
// Writes are serialized using a mutex so lines never interleave.
type JSONLWriter struct {
	w     io.Writer
	jobID string
	disk  string
	mu    sync.Mutex

	closed bool
}

// NewJSONLWriter creates a new JSONL writer.
//
// Parameters:
//   - w: The underlying writer (stdout, file, etc.)
//   - jobID: Correlation ID for this run
//   - disk: Configured disk name (e.g., "media")
func NewJSONLWriter(w io.Writer, jobID, disk string) *JSONLWriter {
	return &JSONLWriter{
		w:     w,
		jobID: jobID,
		disk:  disk,
	}
}

// WriteObject emits an object record.
func (jw *JSONLWriter) WriteObject(ctx context.Context, obj *provider.ObjectRecord) error {
	return jw.writeRecord(ctx, TypeObject, obj)
}

// WriteError emits an error record.
func (jw *JSONLWriter) WriteError(ctx context.Context, err *ErrorRecord) error {
	return jw.writeRecord(ctx, TypeError, err)
}

// WriteSummary emits a summary record.
func (jw *JSONLWriter) WriteSummary(ctx context.Context, sum *SummaryRecord) error {
	return jw.writeRecord(ctx, TypeSummary, sum)
}

// Close marks the writer as closed.
func (jw *JSONLWriter) Close() error {
	jw.mu.Lock()
	defer jw.mu.Unlock()

	jw.closed = true
	return nil
}

// writeRecord marshals data and writes a complete record line while holding
// the mutex.
func (jw *JSONLWriter) writeRecord(ctx context.Context, recordType string, data any) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	dataBytes, err := json.Marshal(data)
	if err != nil {
		return &WriteError{Op: "marshal_data", Err: err}
	}

	jw.mu.Lock()
	defer jw.mu.Unlock()

	if jw.closed {
		return ErrWriterClosed
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	record := Record{
		Type:  recordType,
		TS:    time.Now().UTC(),
		JobID: jw.jobID,
		Disk:  jw.disk,
		Data:  dataBytes,
	}

	recordBytes, err := json.Marshal(record)
	if err != nil {
		return &WriteError{Op: "marshal_record", Err: err}
	}

	recordBytes = append(recordBytes, '\n')
	if err := writeAll(jw.w, recordBytes); err != nil {
		return &WriteError{Op: "write", Err: err}
	}
	return nil
}

// writeAll writes all bytes to w, looping over short writes.
func writeAll(w io.Writer, p []byte) error {
	for len(p) > 0 {
		n, err := w.Write(p)
		if err != nil {
			return err
		}
		if n == 0 {
			return io.ErrShortWrite
		}
		p = p[n:]
	}
	return nil
}

// YAMLWriter writes one YAML document per record.
type YAMLWriter struct {
	enc    *yaml.Encoder
	mu     sync.Mutex
	closed bool
}

// NewYAMLWriter creates a YAML writer with two-space indentation.
func NewYAMLWriter(w io.Writer) *YAMLWriter {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	return &YAMLWriter{enc: enc}
}

// WriteObject emits the record as a document.
func (yw *YAMLWriter) WriteObject(ctx context.Context, obj *provider.ObjectRecord) error {
	return yw.encode(ctx, obj)
}

// WriteError emits the error under an "error" key.
func (yw *YAMLWriter) WriteError(ctx context.Context, err *ErrorRecord) error {
	return yw.encode(ctx, map[string]*ErrorRecord{"error": err})
}

// WriteSummary emits the summary under a "summary" key.
func (yw *YAMLWriter) WriteSummary(ctx context.Context, sum *SummaryRecord) error {
	return yw.encode(ctx, map[string]*SummaryRecord{"summary": sum})
}

// Close flushes the encoder.
func (yw *YAMLWriter) Close() error {
	yw.mu.Lock()
	defer yw.mu.Unlock()

	if yw.closed {
		return nil
	}
	yw.closed = true
	return yw.enc.Close()
}

func (yw *YAMLWriter) encode(ctx context.Context, v any) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	yw.mu.Lock()
	defer yw.mu.Unlock()

	if yw.closed {
		return ErrWriterClosed
	}
	if err := yw.enc.Encode(v); err != nil {
		return &WriteError{Op: "encode", Err: err}
	}
	return nil
}

// TableWriter renders aligned columns. Rows are buffered until Close.
type TableWriter struct {
	w      io.Writer
	tw     *tabwriter.Writer
	mu     sync.Mutex
	rows   int
	closed bool
}

// NewTableWriter creates a table writer.
func NewTableWriter(w io.Writer) *TableWriter {
	return &TableWriter{
		w:  w,
		tw: tabwriter.NewWriter(w, 0, 0, 2, ' ', 0),
	}
}

// WriteObject adds a row.
func (t *TableWriter) WriteObject(ctx context.Context, obj *provider.ObjectRecord) error {
	size, modified := "-", "-"
	if obj.Size != nil {
		size = FormatSize(*obj.Size)
	}
	if obj.Timestamp != nil {
		modified = time.Unix(*obj.Timestamp, 0).UTC().Format("2006-01-02 15:04:05")
	}
	name := obj.Path
	if obj.IsDir() {
		name += "/"
	}
	return t.row(ctx, string(obj.Type), size, modified, name)
}

// WriteError adds an error row.
func (t *TableWriter) WriteError(ctx context.Context, err *ErrorRecord) error {
	return t.row(ctx, "error", "-", err.Code, strings.TrimSpace(err.Path+" "+err.Message))
}

// WriteSummary flushes the rows and prints a totals line.
func (t *TableWriter) WriteSummary(ctx context.Context, sum *SummaryRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return ErrWriterClosed
	}
	if err := t.tw.Flush(); err != nil {
		return &WriteError{Op: "flush", Err: err}
	}
	if t.rows == 0 {
		_, err := fmt.Fprintln(t.w, "No objects found.")
		return err
	}
	_, err := fmt.Fprintf(t.w, "\n%d file(s), %d dir(s) (%s total)\n", sum.Files, sum.Dirs, FormatSize(sum.Bytes))
	return err
}

// Close flushes any buffered rows.
func (t *TableWriter) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return nil
	}
	t.closed = true
	return t.tw.Flush()
}

func (t *TableWriter) row(ctx context.Context, cols ...string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return ErrWriterClosed
	}
	if t.rows == 0 {
		if _, err := fmt.Fprintln(t.tw, "TYPE\tSIZE\tMODIFIED\tPATH"); err != nil {
			return &WriteError{Op: "write", Err: err}
		}
	}
	t.rows++
	if _, err := fmt.Fprintln(t.tw, strings.Join(cols, "\t")); err != nil {
		return &WriteError{Op: "write", Err: err}
	}
	return nil
}

// FormatSize formats bytes as human-readable size.
func FormatSize(bytes int64) string {
	const (
		KB = 1024
		MB = 1024 * KB
		GB = 1024 * MB
		TB = 1024 * GB
	)

	switch {
	case bytes >= TB:
		return fmt.Sprintf("%.1f TB", float64(bytes)/TB)
	case bytes >= GB:
		return fmt.Sprintf("%.1f GB", float64(bytes)/GB)
	case bytes >= MB:
		return fmt.Sprintf("%.1f MB", float64(bytes)/MB)
	case bytes >= KB:
		return fmt.Sprintf("%.1f KB", float64(bytes)/KB)
	default:
		return fmt.Sprintf("%d B", bytes)
	}
}

var (
	_ Writer = (*JSONLWriter)(nil)
	_ Writer = (*YAMLWriter)(nil)
	_ Writer = (*TableWriter)(nil)
)
