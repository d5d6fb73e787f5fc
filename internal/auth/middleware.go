package auth

import (
	"net/http"
	"strings"

	"github.com/aelexs/authgate/internal/domain"
	"github.com/aelexs/authgate/internal/errmap"
)

// Middleware returns HTTP middleware that runs the gate on every request
// except those matching bypassPaths. An entry ending in "/" matches the
// whole subtree; any other entry matches the path exactly.
//
// Rejections are written as errmap JSON bodies and never reach next.
func Middleware(g *Gate, bypassPaths []string) func(http.Handler) http.Handler {
	bypass := newPathMatcher(bypassPaths)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if bypass.match(r.URL.Path) {
				next.ServeHTTP(w, r)
				return
			}

			res := g.CheckValues(r.Context(), r.Header.Values(domain.AuthorizationHeader))
			if !res.Authenticated() {
				errmap.WriteHTTPError(w, res.Err)
				return
			}

			next.ServeHTTP(w, r.WithContext(WithClaims(r.Context(), res.Claims)))
		})
	}
}

type pathMatcher struct {
	exact    map[string]bool
	prefixes []string
}

func newPathMatcher(paths []string) pathMatcher {
	m := pathMatcher{exact: make(map[string]bool, len(paths))}
	for _, p := range paths {
		switch {
		case p == "":
		case strings.HasSuffix(p, "/"):
			m.prefixes = append(m.prefixes, p)
		default:
			m.exact[p] = true
		}
	}
	return m
}

func (m pathMatcher) match(path string) bool {
	if m.exact[path] {
		return true
	}
	for _, p := range m.prefixes {
		if strings.HasPrefix(path, p) {
			return true
		}
	}
	return false
}
