// Package errors renders failures as the JSON error envelope every HTTP
// response uses:
//
//	{"error":{"code":"NOT_FOUND","message":"...","request_id":"..."}}
package errors

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/3leaps/nimbusfs/pkg/provider"
)

// Error codes.
const (
	CodeBadRequest         = "BAD_REQUEST"
	CodeForbidden          = "FORBIDDEN"
	CodeNotFound           = "NOT_FOUND"
	CodeMethodNotAllowed   = "METHOD_NOT_ALLOWED"
	CodeThrottled          = "THROTTLED"
	CodeInternal           = "INTERNAL_ERROR"
	CodeNotImplemented     = "NOT_IMPLEMENTED"
	CodeBadGateway         = "BAD_GATEWAY"
	CodeServiceUnavailable = "SERVICE_UNAVAILABLE"
)

// HTTPErrorResponse is the response body for every error.
type HTTPErrorResponse struct {
	Error HTTPError `json:"error"`
}

// HTTPError is the body of the envelope.
type HTTPError struct {
	Code      string         `json:"code"`
	Message   string         `json:"message"`
	RequestID string         `json:"request_id,omitempty"`
	Details   map[string]any `json:"details,omitempty"`
}

type requestIDKey struct{}

// WithRequestID stores id on ctx.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, id)
}

// RequestIDFromContext returns the id stored by WithRequestID, or "".
func RequestIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

// Respond writes an error envelope with status.
func Respond(w http.ResponseWriter, r *http.Request, status int, code, message string, details map[string]any) {
	body := HTTPErrorResponse{Error: HTTPError{
		Code:    code,
		Message: message,
		Details: details,
	}}
	if r != nil {
		body.Error.RequestID = RequestIDFromContext(r.Context())
	}
	WriteJSON(w, status, body)
}

// RespondWithError maps err onto a status and code.
func RespondWithError(w http.ResponseWriter, r *http.Request, err error) {
	status, code := Classify(err)
	Respond(w, r, status, code, err.Error(), nil)
}

// Classify maps provider sentinels onto HTTP semantics.
func Classify(err error) (status int, code string) {
	switch {
	case provider.IsNotFound(err), provider.IsBucketNotFound(err):
		return http.StatusNotFound, CodeNotFound
	case provider.IsAccessDenied(err), provider.IsInvalidCredentials(err):
		return http.StatusForbidden, CodeForbidden
	case provider.IsThrottled(err):
		return http.StatusTooManyRequests, CodeThrottled
	case provider.IsUnsupported(err):
		return http.StatusNotImplemented, CodeNotImplemented
	case provider.IsProviderUnavailable(err):
		return http.StatusBadGateway, CodeBadGateway
	case provider.IsConfigError(err):
		return http.StatusBadRequest, CodeBadRequest
	}
	return http.StatusInternalServerError, CodeInternal
}

// NotFoundHandler answers unknown routes.
func NotFoundHandler(w http.ResponseWriter, r *http.Request) {
	Respond(w, r, http.StatusNotFound, CodeNotFound, "route "+r.URL.Path+" not found", nil)
}

// MethodNotAllowedHandler answers known routes with the wrong method.
func MethodNotAllowedHandler(w http.ResponseWriter, r *http.Request) {
	Respond(w, r, http.StatusMethodNotAllowed, CodeMethodNotAllowed, "method "+r.Method+" not allowed on "+r.URL.Path, nil)
}

// WriteJSON writes v with status and a JSON content type.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
