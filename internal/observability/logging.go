package observability

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
)

// LogConfig holds configuration for the structured logger.
type LogConfig struct {
	Level       string // "debug", "info", "warn", "error"
	Format      string // "json" or "text"
	ServiceName string
	Environment string
	Output      io.Writer // nil means os.Stdout
}

// Attribute keys are lowercased before matching. A key is redacted when it
// is in sensitiveKeys or ends with one of sensitiveSuffixes.
var (
	sensitiveKeys = map[string]bool{
		"authorization": true,
		"cookie":        true,
		"set-cookie":    true,
		"password":      true,
		"secret":        true,
		"token":         true,
		"apikey":        true,
	}
	sensitiveSuffixes = []string{"_key", "_secret", "_token", "_password", "_credential"}
)

// ParseLevel maps a config level name to slog.Level; unknown names are info.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// InitLogger creates a new structured logger with secret redaction.
// The returned logger is also set as the default via slog.SetDefault.
func InitLogger(cfg LogConfig) *slog.Logger {
	w := cfg.Output
	if w == nil {
		w = os.Stdout
	}

	handler := NewRedactingHandler(w, cfg.Format, &slog.HandlerOptions{
		Level: ParseLevel(cfg.Level),
	})

	logger := slog.New(handler).With(
		slog.String("service", cfg.ServiceName),
		slog.String("environment", cfg.Environment),
	)

	slog.SetDefault(logger)
	return logger
}

// NewRedactingHandler returns a text handler when format is "text" and a
// JSON handler otherwise. Sensitive attributes are redacted after any
// ReplaceAttr already set in opts. opts is not modified.
func NewRedactingHandler(w io.Writer, format string, opts *slog.HandlerOptions) slog.Handler {
	var o slog.HandlerOptions
	if opts != nil {
		o = *opts
	}
	opts = &o

	prevReplace := opts.ReplaceAttr
	opts.ReplaceAttr = func(groups []string, a slog.Attr) slog.Attr {
		if prevReplace != nil {
			a = prevReplace(groups, a)
		}
		return redactSecrets(groups, a)
	}

	if strings.EqualFold(format, "text") {
		return slog.NewTextHandler(w, opts)
	}
	return slog.NewJSONHandler(w, opts)
}

func redactSecrets(_ []string, a slog.Attr) slog.Attr {
	if a.Value.Kind() == slog.KindGroup || !isSensitiveKey(a.Key) {
		return a
	}
	return slog.String(a.Key, "[REDACTED]")
}

func isSensitiveKey(key string) bool {
	key = strings.ToLower(key)
	if sensitiveKeys[key] {
		return true
	}
	for _, suffix := range sensitiveSuffixes {
		if strings.HasSuffix(key, suffix) {
			return true
		}
	}
	return false
}

// LoggerFromContext returns the default logger enriched with the request ID
// and trace ID carried by ctx, when present.
func LoggerFromContext(ctx context.Context) *slog.Logger {
	return WithContext(ctx, slog.Default())
}

// WithContext adds the request ID and trace ID from ctx to logger.
func WithContext(ctx context.Context, logger *slog.Logger) *slog.Logger {
	if id := RequestIDFromContext(ctx); id != "" {
		logger = logger.With(slog.String("request_id", id))
	}
	if traceID := TraceIDFromContext(ctx); traceID != "" {
		logger = logger.With(slog.String("trace_id", traceID))
	}
	return logger
}
