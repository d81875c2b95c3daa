package provider

import (
	"path"
	"strings"
	"time"
)

// ObjectType distinguishes files from simulated directories.
type ObjectType string

const (
	// TypeFile is a stored object.
	TypeFile ObjectType = "file"

	// TypeDir is a directory, either a placeholder object or a common prefix.
	TypeDir ObjectType = "dir"
)

// ObjectRecord is the normalized result of a listing or stat call.
//
// Optional fields are nil or empty when the provider does not supply them.
// Directory records never carry Size or ETag.
type ObjectRecord struct {
	// Type is file or dir.
	Type ObjectType `json:"type" yaml:"type"`

	// Path is the full key without a trailing slash.
	Path string `json:"path" yaml:"path"`

	// Dirname is the parent directory, empty at the bucket root.
	Dirname string `json:"dirname" yaml:"dirname"`

	// Basename is the last path segment.
	Basename string `json:"basename" yaml:"basename"`

	// Filename is Basename without its extension.
	Filename string `json:"filename" yaml:"filename"`

	// Extension is the text after the last dot of Basename, or empty.
	Extension string `json:"extension" yaml:"extension"`

	// Size is the content length in bytes.
	Size *int64 `json:"size,omitempty" yaml:"size,omitempty"`

	// Timestamp is the last-modified time in Unix epoch seconds.
	Timestamp *int64 `json:"timestamp,omitempty" yaml:"timestamp,omitempty"`

	// MimeType is the content type.
	MimeType string `json:"mimetype,omitempty" yaml:"mimetype,omitempty"`

	// ETag is the provider content hash (MD5 etag, qetag, ...).
	ETag string `json:"etag,omitempty" yaml:"etag,omitempty"`
}

// IsDir reports whether the record is a directory.
func (r *ObjectRecord) IsDir() bool {
	return r.Type == TypeDir
}

// RawEntry is the provider-neutral staging shape an adapter fills from one
// SDK listing entry or stat response before normalization.
type RawEntry struct {
	Key          string
	Size         *int64
	LastModified time.Time
	ContentType  string
	ETag         string
}

// Normalize converts a raw entry into an ObjectRecord.
//
// Keys ending in "/" become directory records. ok is false when the entry
// carries no usable key.
func Normalize(raw RawEntry) (rec *ObjectRecord, ok bool) {
	key := strings.TrimLeft(raw.Key, "/")
	if key == "" {
		return nil, false
	}
	if strings.HasSuffix(key, "/") {
		return DirRecord(key), true
	}

	rec = newRecord(TypeFile, key)
	if raw.Size != nil {
		rec.Size = Int64(*raw.Size)
	}
	rec.Timestamp = EpochSeconds(raw.LastModified)
	rec.MimeType = raw.ContentType
	rec.ETag = CleanETag(raw.ETag)
	return rec, true
}

// DirRecord builds the record for a directory prefix. The trailing slash is
// stripped from Path.
func DirRecord(prefix string) *ObjectRecord {
	return newRecord(TypeDir, strings.TrimRight(strings.TrimLeft(prefix, "/"), "/"))
}

func newRecord(typ ObjectType, key string) *ObjectRecord {
	dir, base := path.Split(key)
	ext := path.Ext(base)

	return &ObjectRecord{
		Type:      typ,
		Path:      key,
		Dirname:   strings.TrimSuffix(dir, "/"),
		Basename:  base,
		Filename:  strings.TrimSuffix(base, ext),
		Extension: strings.TrimPrefix(ext, "."),
	}
}

// EpochSeconds converts t to Unix seconds, or nil for the zero time.
func EpochSeconds(t time.Time) *int64 {
	if t.IsZero() {
		return nil
	}
	return Int64(t.Unix())
}

// HundredNanosToEpoch converts a timestamp expressed in 100ns units since the
// Unix epoch (Qiniu putTime) to epoch seconds. Non-positive input is absent.
func HundredNanosToEpoch(v int64) *int64 {
	if v <= 0 {
		return nil
	}
	return Int64(v / 10_000_000)
}

// CleanETag removes surrounding quotes from an ETag value.
// S3 returns ETags with quotes, e.g., "d41d8cd98f00b204e9800998ecf8427e".
func CleanETag(etag string) string {
	return strings.Trim(etag, "\"")
}

// Int64 returns a pointer to v.
func Int64(v int64) *int64 {
	return &v
}
