package auth_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aelexs/authgate/internal/auth"
	"github.com/aelexs/authgate/internal/auth/authtest"
)

// echoSubject writes the principal of the attached claims, or 418 if none.
func echoSubject() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims, ok := auth.ClaimsFromContext(r.Context())
		if !ok {
			w.WriteHeader(http.StatusTeapot)
			return
		}
		_, _ = w.Write([]byte(claims.Principal()))
	})
}

func TestMiddleware(t *testing.T) {
	verifier := &authtest.Verifier{Claims: auth.Claims{"sub": "alice"}}
	g := newGate(t, verifier, nil)
	handler := auth.Middleware(g, []string{"/healthz", "/public/"})(echoSubject())

	tests := []struct {
		name          string
		path          string
		headers       []string
		wantStatus    int
		wantBody      string
		wantCode      string
		wantMessage   string
		wantChallenge bool
	}{
		{
			name:       "valid credential reaches handler with claims",
			path:       "/flows",
			headers:    []string{"Bearer abc.def.ghi"},
			wantStatus: http.StatusOK,
			wantBody:   "alice",
		},
		{
			name:          "no header is 401",
			path:          "/flows",
			wantStatus:    http.StatusUnauthorized,
			wantCode:      "UNAUTHENTICATED",
			wantMessage:   "no token provided",
			wantChallenge: true,
		},
		{
			name:        "scheme only is 400",
			path:        "/flows",
			headers:     []string{"Bearer"},
			wantStatus:  http.StatusBadRequest,
			wantCode:    "INVALID_TOKEN",
			wantMessage: "invalid token",
		},
		{
			name:        "duplicate headers are 400",
			path:        "/flows",
			headers:     []string{"Bearer a", "Bearer b"},
			wantStatus:  http.StatusBadRequest,
			wantCode:    "INVALID_TOKEN",
			wantMessage: "invalid token",
		},
		{
			name:       "exact bypass skips the gate",
			path:       "/healthz",
			wantStatus: http.StatusTeapot,
		},
		{
			name:       "prefix bypass skips the gate",
			path:       "/public/css/style.css",
			wantStatus: http.StatusTeapot,
		},
		{
			name:          "bypass is exact, not a prefix",
			path:          "/healthz/extra",
			wantStatus:    http.StatusUnauthorized,
			wantCode:      "UNAUTHENTICATED",
			wantMessage:   "no token provided",
			wantChallenge: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tt.path, nil)
			for _, h := range tt.headers {
				req.Header.Add("Authorization", h)
			}
			rec := httptest.NewRecorder()

			handler.ServeHTTP(rec, req)

			assert.Equal(t, tt.wantStatus, rec.Code)
			if tt.wantChallenge {
				assert.Equal(t, "Bearer", rec.Header().Get("WWW-Authenticate"))
			} else {
				assert.Empty(t, rec.Header().Get("WWW-Authenticate"))
			}
			if tt.wantCode == "" {
				assert.Equal(t, tt.wantBody, rec.Body.String())
				return
			}
			var body struct {
				Code    string `json:"code"`
				Message string `json:"message"`
			}
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.Equal(t, tt.wantCode, body.Code)
			assert.Equal(t, tt.wantMessage, body.Message)
		})
	}
}

func TestMiddleware_RejectedTokenHidesReason(t *testing.T) {
	verifier := &authtest.Verifier{Err: &auth.VerifyError{Reason: auth.ReasonSignature}}
	handler := auth.Middleware(newGate(t, verifier, nil), nil)(echoSubject())

	req := httptest.NewRequest(http.MethodGet, "/flows", nil)
	req.Header.Set("Authorization", "Bearer forged")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.NotContains(t, rec.Body.String(), "signature")
}
