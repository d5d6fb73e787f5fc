package httpmw

import (
	"errors"
	"net/http"
	"runtime/debug"

	"github.com/aelexs/authgate/internal/errmap"
	"github.com/aelexs/authgate/internal/observability"
)

// Recovery recovers from handler panics, logs them with a stack trace and
// responds 500. http.ErrAbortHandler is re-panicked so net/http can abort
// the connection as intended.
func Recovery() Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				rec := recover()
				if rec == nil {
					return
				}
				if err, ok := rec.(error); ok && errors.Is(err, http.ErrAbortHandler) {
					panic(rec)
				}
				observability.LoggerFromContext(r.Context()).ErrorContext(r.Context(), "panic recovered",
					"panic", rec,
					"stack", string(debug.Stack()),
					"path", r.URL.Path,
				)
				w.Header().Set("Connection", "close")
				errmap.WriteHTTPError(w, errors.New("panic"))
			}()
			next.ServeHTTP(w, r)
		})
	}
}
