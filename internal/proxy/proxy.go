// Package proxy forwards authenticated requests to the upstream application
// (per-user Node-RED) with the verified identity attached as headers.
package proxy

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httputil"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/aelexs/authgate/internal/auth"
	"github.com/aelexs/authgate/internal/domain"
	"github.com/aelexs/authgate/internal/errmap"
	"github.com/aelexs/authgate/internal/observability"
)

// Identity headers set on forwarded requests. Any client-supplied header
// with the X-Auth- prefix is removed first.
const (
	HeaderPrefix  = "X-Auth-"
	HeaderSubject = "X-Auth-Subject"
	HeaderClaims  = "X-Auth-Claims"
)

// Config holds configuration for creating a Proxy.
type Config struct {
	Upstream *url.URL
	// Timeout bounds the wait for upstream response headers. Bodies and
	// upgraded connections (Node-RED editor websockets) are not bounded.
	Timeout time.Duration
	// Transport overrides the base transport; it is still wrapped by otelhttp.
	Transport http.RoundTripper
}

// Proxy is an http.Handler that forwards to a single upstream.
type Proxy struct {
	rp *httputil.ReverseProxy
}

// New creates a Proxy for cfg.Upstream.
func New(cfg Config) (*Proxy, error) {
	if cfg.Upstream == nil || cfg.Upstream.Host == "" {
		return nil, fmt.Errorf("%w: upstream url", domain.ErrConfigRequired)
	}

	base := cfg.Transport
	if base == nil {
		t := http.DefaultTransport.(*http.Transport).Clone()
		t.ResponseHeaderTimeout = cfg.Timeout
		base = t
	}

	target := cfg.Upstream
	rp := &httputil.ReverseProxy{
		Rewrite: func(pr *httputil.ProxyRequest) {
			pr.SetURL(target)
			pr.SetXForwarded()
			setIdentity(pr.Out)
		},
		Transport:    otelhttp.NewTransport(base),
		ErrorHandler: handleError,
	}
	return &Proxy{rp: rp}, nil
}

func (p *Proxy) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	p.rp.ServeHTTP(w, r)
}

// setIdentity replaces any X-Auth-* headers with the gate's verified claims.
// Requests without claims (bypass paths) are forwarded anonymously.
func setIdentity(out *http.Request) {
	for name := range out.Header {
		if strings.HasPrefix(http.CanonicalHeaderKey(name), HeaderPrefix) {
			out.Header.Del(name)
		}
	}

	claims, ok := auth.ClaimsFromContext(out.Context())
	if !ok {
		return
	}
	if principal := claims.Principal(); principal != "" {
		out.Header.Set(HeaderSubject, principal)
	}
	if encoded, err := EncodeClaims(claims); err == nil {
		out.Header.Set(HeaderClaims, encoded)
	}
}

// EncodeClaims renders claims as unpadded base64url JSON for a header value.
func EncodeClaims(c auth.Claims) (string, error) {
	raw, err := json.Marshal(c)
	if err != nil {
		return "", fmt.Errorf("encode claims: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(raw), nil
}

func handleError(w http.ResponseWriter, r *http.Request, err error) {
	logger := observability.LoggerFromContext(r.Context())
	if errors.Is(err, context.Canceled) {
		logger.DebugContext(r.Context(), "client went away during proxying", "path", r.URL.Path)
	} else {
		logger.WarnContext(r.Context(), "upstream request failed", "path", r.URL.Path, "error", err)
	}
	errmap.WriteHTTPError(w, fmt.Errorf("%w: %w", domain.ErrUpstreamUnavailable, err))
}
