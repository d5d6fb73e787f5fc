// Package config provides configuration loading using koanf.
// Precedence: process environment over compiled defaults.
package config

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/v2"

	"github.com/aelexs/authgate/internal/domain"
)

// Config holds all service configuration.
type Config struct {
	// Environment identifier: "local", "dev", "prod"
	Environment string `koanf:"environment"`

	// Logging configuration
	LogLevel  string `koanf:"log_level"`
	LogFormat string `koanf:"log_format"`

	HTTP     HTTPConfig     `koanf:"http"`
	GRPC     GRPCConfig     `koanf:"grpc"`
	Trust    TrustConfig    `koanf:"trust"`
	Auth     AuthConfig     `koanf:"auth"`
	Upstream UpstreamConfig `koanf:"upstream"`
	AWS      AWSConfig      `koanf:"aws"`

	// OpenTelemetry configuration
	OTEL OTELConfig `koanf:"otel"`
}

// HTTPConfig holds the listener configuration.
type HTTPConfig struct {
	Port int `koanf:"port"`
	// BypassPaths are served without a credential (exact path or "/prefix/").
	BypassPaths []string `koanf:"bypass_paths"`
}

// GRPCConfig holds the gRPC listener configuration.
type GRPCConfig struct {
	// Port 0 disables the gRPC listener.
	Port int `koanf:"port"`
}

// TrustConfig names where the verification key comes from.
// Exactly one field must be set.
type TrustConfig struct {
	SecretKey domain.SecretString `koanf:"secret_key"` // HMAC shared secret
	PublicKey string              `koanf:"public_key"` // PEM-encoded RSA public key
	SecretID  string              `koanf:"secret_id"`  // Secrets Manager secret holding either of the above
}

// Sources returns the config keys of the trust sources that are set.
func (t TrustConfig) Sources() []string {
	var set []string
	if !t.SecretKey.IsEmpty() {
		set = append(set, "trust.secret_key")
	}
	if strings.TrimSpace(t.PublicKey) != "" {
		set = append(set, "trust.public_key")
	}
	if t.SecretID != "" {
		set = append(set, "trust.secret_id")
	}
	return set
}

// AuthConfig holds token verification options.
type AuthConfig struct {
	// Scheme, when set, must match the credential scheme (case-insensitive).
	Scheme        string        `koanf:"scheme"`
	Issuer        string        `koanf:"issuer"`
	Audience      string        `koanf:"audience"`
	Leeway        time.Duration `koanf:"leeway"`
	VerifyTimeout time.Duration `koanf:"verify_timeout"`
}

// UpstreamConfig holds the reverse proxy target.
type UpstreamConfig struct {
	URL     string        `koanf:"url"`
	Timeout time.Duration `koanf:"timeout"`
}

// AWSConfig holds AWS SDK configuration.
type AWSConfig struct {
	Region   string `koanf:"region"`
	Endpoint string `koanf:"endpoint"` // LocalStack endpoint for development
}

// OTELConfig holds OpenTelemetry configuration.
type OTELConfig struct {
	Endpoint    string `koanf:"endpoint"` // Empty disables OTLP export
	ServiceName string `koanf:"service_name"`
}

// envKeys maps recognised environment variables to config keys.
// Anything not listed is ignored, so unrelated process env never leaks in.
var envKeys = map[string]string{
	"ENVIRONMENT":         "environment",
	"LOG_LEVEL":           "log_level",
	"LOG_FORMAT":          "log_format",
	"HTTP_PORT":           "http.port",
	"HTTP_BYPASS_PATHS":   "http.bypass_paths",
	"GRPC_PORT":           "grpc.port",
	"SECRET_KEY":          "trust.secret_key",
	"TRUST_PUBLIC_KEY":    "trust.public_key",
	"TRUST_SECRET_ID":     "trust.secret_id",
	"AUTH_SCHEME":         "auth.scheme",
	"AUTH_ISSUER":         "auth.issuer",
	"AUTH_AUDIENCE":       "auth.audience",
	"AUTH_LEEWAY":         "auth.leeway",
	"AUTH_VERIFY_TIMEOUT": "auth.verify_timeout",
	"UPSTREAM_URL":        "upstream.url",
	"UPSTREAM_TIMEOUT":    "upstream.timeout",
	"AWS_REGION":          "aws.region",
	"AWS_ENDPOINT":        "aws.endpoint",
	"OTEL_ENDPOINT":       "otel.endpoint",
	"OTEL_SERVICE_NAME":   "otel.service_name",
}

// listKeys are split on commas with surrounding whitespace and empties dropped.
var listKeys = map[string]bool{
	"http.bypass_paths": true,
}

// defaults returns a Config with compiled default values.
func defaults() *Config {
	return &Config{
		Environment: "local",
		LogLevel:    "info",

		HTTP: HTTPConfig{
			Port: 8080,
		},
		Auth: AuthConfig{
			VerifyTimeout: domain.DefaultVerifyTimeout,
		},
		Upstream: UpstreamConfig{
			URL:     domain.DefaultUpstreamURL,
			Timeout: domain.DefaultUpstreamTimeout,
		},
		AWS: AWSConfig{
			Region: "us-east-1",
		},
		OTEL: OTELConfig{
			ServiceName: "authgate",
		},
	}
}

// Load loads configuration from the environment over compiled defaults.
//
// A missing trust source is ErrConfigRequired; contradictory or unusable
// settings are ErrConfigInvalid. Both abort startup.
func Load(ctx context.Context) (*Config, error) {
	k := koanf.New(".")

	cfg := defaults()

	err := k.Load(env.ProviderWithValue("", ".", mapEnv), nil)
	if err != nil {
		return nil, fmt.Errorf("load env vars: %w", err)
	}

	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	// Without an explicit format, local runs log text and everything else JSON.
	if cfg.LogFormat == "" {
		cfg.LogFormat = string(domain.LogFormatJSON)
		if cfg.IsLocal() {
			cfg.LogFormat = string(domain.LogFormatText)
		}
	}

	if err := validate(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

func mapEnv(name, value string) (string, any) {
	key, ok := envKeys[name]
	if !ok {
		return "", nil
	}
	if listKeys[key] {
		return key, splitList(value)
	}
	return key, value
}

func splitList(s string) []string {
	out := []string{}
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// validate checks required and mutually exclusive configuration.
func validate(cfg *Config) error {
	switch sources := cfg.Trust.Sources(); len(sources) {
	case 0:
		return fmt.Errorf("%w: one of trust.secret_key, trust.public_key, trust.secret_id", domain.ErrConfigRequired)
	case 1:
	default:
		return fmt.Errorf("%w: only one trust source may be set, got %s",
			domain.ErrConfigInvalid, strings.Join(sources, ", "))
	}

	if !domain.IsValidLogFormat(domain.LogFormat(cfg.LogFormat)) {
		return fmt.Errorf("%w: log_format %q", domain.ErrConfigInvalid, cfg.LogFormat)
	}
	if cfg.HTTP.Port < 0 || cfg.HTTP.Port > 65535 {
		return fmt.Errorf("%w: http.port %d", domain.ErrConfigInvalid, cfg.HTTP.Port)
	}
	if cfg.GRPC.Port < 0 || cfg.GRPC.Port > 65535 {
		return fmt.Errorf("%w: grpc.port %d", domain.ErrConfigInvalid, cfg.GRPC.Port)
	}
	if cfg.GRPC.Port != 0 && cfg.GRPC.Port == cfg.HTTP.Port {
		return fmt.Errorf("%w: grpc.port must differ from http.port", domain.ErrConfigInvalid)
	}
	if cfg.Auth.VerifyTimeout <= 0 {
		return fmt.Errorf("%w: auth.verify_timeout must be positive", domain.ErrConfigInvalid)
	}
	if cfg.Auth.Leeway < 0 {
		return fmt.Errorf("%w: auth.leeway must not be negative", domain.ErrConfigInvalid)
	}
	if strings.ContainsAny(cfg.Auth.Scheme, " \t") {
		return fmt.Errorf("%w: auth.scheme must be a single word", domain.ErrConfigInvalid)
	}
	if cfg.Trust.SecretID != "" && cfg.AWS.Region == "" {
		return fmt.Errorf("%w: aws.region (needed for trust.secret_id)", domain.ErrConfigRequired)
	}

	if cfg.Upstream.URL == "" {
		return fmt.Errorf("%w: upstream.url", domain.ErrConfigRequired)
	}
	u, err := url.Parse(cfg.Upstream.URL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("%w: upstream.url %q", domain.ErrConfigInvalid, cfg.Upstream.URL)
	}
	if cfg.Upstream.Timeout <= 0 {
		return fmt.Errorf("%w: upstream.timeout must be positive", domain.ErrConfigInvalid)
	}

	return nil
}

// IsLocal returns true if running in local development environment.
func (c *Config) IsLocal() bool {
	return c.Environment == "local"
}
