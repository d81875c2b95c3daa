package errors

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/3leaps/nimbusfs/pkg/provider"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"not found", provider.ErrNotFound, http.StatusNotFound, CodeNotFound},
		{"bucket missing", &provider.ProviderError{Op: "ListDirectory", Err: provider.ErrBucketNotFound}, http.StatusNotFound, CodeNotFound},
		{"denied", fmt.Errorf("list: %w", provider.ErrAccessDenied), http.StatusForbidden, CodeForbidden},
		{"credentials", provider.ErrInvalidCredentials, http.StatusForbidden, CodeForbidden},
		{"throttled", provider.ErrThrottled, http.StatusTooManyRequests, CodeThrottled},
		{"unsupported", provider.ErrUnsupported, http.StatusNotImplemented, CodeNotImplemented},
		{"unavailable", provider.ErrProviderUnavailable, http.StatusBadGateway, CodeBadGateway},
		{"config", &provider.ConfigError{Field: "prefix", Message: "bad"}, http.StatusBadRequest, CodeBadRequest},
		{"other", assert.AnError, http.StatusInternalServerError, CodeInternal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, code := Classify(tt.err)
			assert.Equal(t, tt.status, status)
			assert.Equal(t, tt.code, code)
		})
	}
}

func TestRespond_CarriesRequestID(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	req = req.WithContext(WithRequestID(req.Context(), "req-1"))
	rec := httptest.NewRecorder()

	Respond(rec, req, http.StatusBadRequest, CodeBadRequest, "bad input", map[string]any{"field": "expires"})

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var body HTTPErrorResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, CodeBadRequest, body.Error.Code)
	assert.Equal(t, "bad input", body.Error.Message)
	assert.Equal(t, "req-1", body.Error.RequestID)
	assert.Equal(t, "expires", body.Error.Details["field"])
}

func TestNotFoundAndMethodHandlers(t *testing.T) {
	rec := httptest.NewRecorder()
	NotFoundHandler(rec, httptest.NewRequest(http.MethodGet, "/nope", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), CodeNotFound)

	rec = httptest.NewRecorder()
	MethodNotAllowedHandler(rec, httptest.NewRequest(http.MethodPost, "/version", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	assert.Contains(t, rec.Body.String(), CodeMethodNotAllowed)
}

func TestRequestIDFromContext_Empty(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	assert.Equal(t, "", RequestIDFromContext(req.Context()))
}
