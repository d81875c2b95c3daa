package handlers

import (
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	apperrors "github.com/3leaps/nimbusfs/internal/errors"
	"github.com/3leaps/nimbusfs/pkg/match"
	"github.com/3leaps/nimbusfs/pkg/provider"
)

// maxURLExpiry caps ?expires on /v1/url.
const maxURLExpiry = 7 * 24 * time.Hour

// Objects serves the read-only object endpoints for one disk.
type Objects struct {
	adapter provider.Adapter
	disk    string
	log     *zap.Logger
	now     func() time.Time
}

// NewObjects creates the handlers for adapter.
func NewObjects(disk string, adapter provider.Adapter, log *zap.Logger) *Objects {
	if log == nil {
		log = zap.NewNop()
	}
	return &Objects{adapter: adapter, disk: disk, log: log, now: time.Now}
}

// ListResponse is the body of GET /v1/list.
type ListResponse struct {
	Disk      string                  `json:"disk"`
	Prefix    string                  `json:"prefix"`
	Recursive bool                    `json:"recursive"`
	Count     int                     `json:"count"`
	Items     []provider.ObjectRecord `json:"items"`
}

// MetaResponse is the body of GET /v1/meta/*.
type MetaResponse struct {
	*provider.ObjectRecord
	Visibility provider.Visibility `json:"visibility,omitempty"`
	URL        string              `json:"url"`
}

// URLResponse is the body of GET /v1/url/*.
type URLResponse struct {
	Path      string     `json:"path"`
	URL       string     `json:"url"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
}

// List answers GET /v1/list?prefix=&recursive=&include=&exclude=.
func (h *Objects) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	recursive := false
	if v := q.Get("recursive"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			apperrors.Respond(w, r, http.StatusBadRequest, apperrors.CodeBadRequest, "recursive must be a boolean", map[string]any{"recursive": v})
			return
		}
		recursive = b
	}

	m, err := match.New(match.Config{
		Includes:      q["include"],
		Excludes:      q["exclude"],
		IncludeHidden: true,
		Filter: &match.FilterConfig{
			MinSize: q.Get("min_size"),
			MaxSize: q.Get("max_size"),
			After:   q.Get("after"),
			Before:  q.Get("before"),
		},
	})
	if err != nil {
		apperrors.Respond(w, r, http.StatusBadRequest, apperrors.CodeBadRequest, err.Error(), nil)
		return
	}

	prefix := q.Get("prefix")
	records, err := h.adapter.ListDirectory(r.Context(), prefix, recursive)
	if err != nil {
		h.log.Warn("List failed", zap.String("prefix", prefix), zap.Error(err))
		respondWithError(w, r, err)
		return
	}

	items := make([]provider.ObjectRecord, 0, len(records))
	for i := range records {
		if m.Match(&records[i]) {
			items = append(items, records[i])
		}
	}

	apperrors.WriteJSON(w, http.StatusOK, ListResponse{
		Disk:      h.disk,
		Prefix:    prefix,
		Recursive: recursive,
		Count:     len(items),
		Items:     items,
	})
}

// Meta answers GET /v1/meta/{path}.
func (h *Objects) Meta(w http.ResponseWriter, r *http.Request) {
	path, ok := h.path(w, r)
	if !ok {
		return
	}

	rec, ok := h.adapter.Metadata(r.Context(), path)
	if !ok {
		h.notFound(w, r, path)
		return
	}

	resp := MetaResponse{ObjectRecord: rec, URL: h.adapter.URL(path)}
	if v, ok := h.adapter.Visibility(r.Context(), path); ok {
		resp.Visibility = v
	}
	apperrors.WriteJSON(w, http.StatusOK, resp)
}

// Content answers GET /v1/objects/{path} by streaming the object.
func (h *Objects) Content(w http.ResponseWriter, r *http.Request) {
	path, ok := h.path(w, r)
	if !ok {
		return
	}

	rec, ok := h.adapter.Metadata(r.Context(), path)
	if !ok {
		h.notFound(w, r, path)
		return
	}
	body, ok := h.adapter.ReadStream(r.Context(), path)
	if !ok {
		h.notFound(w, r, path)
		return
	}
	defer func() { _ = body.Close() }()

	contentType := rec.MimeType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	w.Header().Set("Content-Type", contentType)
	if rec.Size != nil {
		w.Header().Set("Content-Length", strconv.FormatInt(*rec.Size, 10))
	}
	if rec.ETag != "" {
		w.Header().Set("ETag", `"`+rec.ETag+`"`)
	}
	w.WriteHeader(http.StatusOK)

	if _, err := io.Copy(w, body); err != nil {
		h.log.Warn("Stream interrupted", zap.String("path", path), zap.Error(err))
	}
}

// URL answers GET /v1/url/{path}. Without ?expires the public URL is
// returned; with it a signed one.
func (h *Objects) URL(w http.ResponseWriter, r *http.Request) {
	path, ok := h.path(w, r)
	if !ok {
		return
	}

	raw := r.URL.Query().Get("expires")
	if raw == "" {
		apperrors.WriteJSON(w, http.StatusOK, URLResponse{Path: path, URL: h.adapter.URL(path)})
		return
	}

	ttl, err := time.ParseDuration(raw)
	if err != nil || ttl <= 0 || ttl > maxURLExpiry {
		apperrors.Respond(w, r, http.StatusBadRequest, apperrors.CodeBadRequest,
			"expires must be a positive duration up to "+maxURLExpiry.String(), map[string]any{"expires": raw})
		return
	}

	expiry := h.now().Add(ttl).UTC()
	u, ok := h.adapter.TemporaryURL(r.Context(), path, expiry, provider.URLOptions{
		ResponseContentType:        r.URL.Query().Get("response_content_type"),
		ResponseContentDisposition: r.URL.Query().Get("response_content_disposition"),
	})
	if !ok {
		apperrors.Respond(w, r, http.StatusBadGateway, apperrors.CodeBadGateway, "temporary URL unavailable for "+path, nil)
		return
	}
	apperrors.WriteJSON(w, http.StatusOK, URLResponse{Path: path, URL: u, ExpiresAt: &expiry})
}

func (h *Objects) path(w http.ResponseWriter, r *http.Request) (string, bool) {
	path := strings.TrimLeft(chi.URLParam(r, "*"), "/")
	if path == "" {
		apperrors.Respond(w, r, http.StatusBadRequest, apperrors.CodeBadRequest, "object path is required", nil)
		return "", false
	}
	return path, true
}

func (h *Objects) notFound(w http.ResponseWriter, r *http.Request, path string) {
	respondWithError(w, r, fmt.Errorf("%s: %w", path, provider.ErrNotFound))
}
