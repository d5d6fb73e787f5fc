package domain

import "time"

// Compiled defaults. Most can be overridden via configuration.
const (
	// AuthorizationHeader carries the "<scheme> <token>" credential.
	AuthorizationHeader = "Authorization"

	// AuthorizationMetadataKey is the gRPC metadata equivalent (lower-case per HTTP/2).
	AuthorizationMetadataKey = "authorization"

	// DefaultVerifyTimeout bounds a single token verification.
	DefaultVerifyTimeout = 2 * time.Second

	// Upstream proxying
	DefaultUpstreamURL     = "http://localhost:1880" // Node-RED default listener
	DefaultUpstreamTimeout = 30 * time.Second

	// HTTP server timeouts. There is no read/write timeout: proxied editor
	// websockets are long-lived and the upstream timeout bounds the rest.
	HTTPReadHeaderTimeout = 10 * time.Second
	HTTPIdleTimeout       = 120 * time.Second

	// Graceful shutdown. Drain + HTTP + cleanup + OTEL must fit in GracefulShutdownTimeout.
	GracefulShutdownTimeout = 30 * time.Second
	ShutdownDrainDelay      = 1 * time.Second
	ShutdownHTTPTimeout     = 20 * time.Second
	ShutdownCleanupTimeout  = 3 * time.Second
	ShutdownOTELTimeout     = 5 * time.Second

	// SecretsManagerTimeout bounds the one-time trust secret fetch at startup.
	SecretsManagerTimeout = 5 * time.Second
)

// LogFormat selects the slog handler.
type LogFormat string

const (
	LogFormatJSON LogFormat = "json"
	LogFormatText LogFormat = "text"
)

// IsValidLogFormat checks if a log format is supported.
func IsValidLogFormat(f LogFormat) bool {
	return f == LogFormatJSON || f == LogFormatText
}
