package errmap

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/aelexs/authgate/internal/domain"
)

// HTTPError represents an HTTP error response.
type HTTPError struct {
	StatusCode int    `json:"-"`
	Code       string `json:"code"`
	Message    string `json:"message"`
}

func (e HTTPError) Error() string {
	return e.Message
}

// httpMapping defines a domain error to HTTP status/code mapping.
// The public message is always the sentinel's own text so wrapped detail
// (verification reasons, upstream addresses) never reaches the client.
type httpMapping struct {
	err        error
	statusCode int
	code       string
}

// httpMappings maps domain errors to HTTP status codes and error codes.
// Order matters: first match wins (via errors.Is).
var httpMappings = []httpMapping{
	// Credential errors: missing is 401, present-but-bad is 400.
	{domain.ErrMissingCredential, http.StatusUnauthorized, "UNAUTHENTICATED"},
	{domain.ErrInvalidCredential, http.StatusBadRequest, "INVALID_TOKEN"},

	{domain.ErrUpstreamUnavailable, http.StatusBadGateway, "UPSTREAM_UNAVAILABLE"},
}

// retryAfterSeconds is advertised on responses for retryable errors.
const retryAfterSeconds = "1"

// ToHTTPError converts a domain error to an HTTP error.
func ToHTTPError(err error) HTTPError {
	if err == nil {
		return HTTPError{StatusCode: http.StatusOK}
	}
	for _, m := range httpMappings {
		if errors.Is(err, m.err) {
			return HTTPError{StatusCode: m.statusCode, Code: m.code, Message: m.err.Error()}
		}
	}
	// Never expose internal error details to clients
	return HTTPError{StatusCode: http.StatusInternalServerError, Code: "INTERNAL", Message: "internal error"}
}

// WriteHTTPError writes err as a JSON {"code","message"} body.
// 401 responses also carry a Bearer challenge, and retryable errors a
// Retry-After hint.
func WriteHTTPError(w http.ResponseWriter, err error) {
	he := ToHTTPError(err)
	if he.StatusCode == http.StatusUnauthorized {
		w.Header().Set("WWW-Authenticate", "Bearer")
	}
	if domain.IsRetryable(err) {
		w.Header().Set("Retry-After", retryAfterSeconds)
	}
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(he.StatusCode)
	_ = json.NewEncoder(w).Encode(he)
}
