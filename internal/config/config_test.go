package config_test

import (
	"context"
	"testing"
	"time"

	"github.com/aelexs/authgate/internal/config"
	"github.com/aelexs/authgate/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// clearTrust unsets every trust source so each test controls them explicitly.
func clearTrust(t *testing.T) {
	t.Helper()
	t.Setenv("SECRET_KEY", "")
	t.Setenv("TRUST_PUBLIC_KEY", "")
	t.Setenv("TRUST_SECRET_ID", "")
}

func TestDefaults(t *testing.T) {
	clearTrust(t)
	t.Setenv("SECRET_KEY", "s3cr3t")
	t.Setenv("LOG_FORMAT", "")

	cfg, err := config.Load(context.Background())

	require.NoError(t, err)
	assert.Equal(t, "local", cfg.Environment)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "text", cfg.LogFormat)

	assert.Equal(t, 8080, cfg.HTTP.Port)
	assert.Empty(t, cfg.HTTP.BypassPaths)
	assert.Zero(t, cfg.GRPC.Port)

	assert.Equal(t, "s3cr3t", cfg.Trust.SecretKey.Expose())
	assert.Empty(t, cfg.Auth.Scheme)
	assert.Empty(t, cfg.Auth.Issuer)
	assert.Empty(t, cfg.Auth.Audience)
	assert.Zero(t, cfg.Auth.Leeway)
	assert.Equal(t, domain.DefaultVerifyTimeout, cfg.Auth.VerifyTimeout)

	assert.Equal(t, "http://localhost:1880", cfg.Upstream.URL)
	assert.Equal(t, domain.DefaultUpstreamTimeout, cfg.Upstream.Timeout)
	assert.Equal(t, "us-east-1", cfg.AWS.Region)
	assert.Equal(t, "authgate", cfg.OTEL.ServiceName)
}

func TestLoadWithEnvOverride(t *testing.T) {
	clearTrust(t)
	t.Setenv("ENVIRONMENT", "prod")
	t.Setenv("TRUST_SECRET_ID", "authgate/jwt")
	t.Setenv("HTTP_PORT", "9000")
	t.Setenv("GRPC_PORT", "9443")
	t.Setenv("HTTP_BYPASS_PATHS", " /public/ , /favicon.ico,, ")
	t.Setenv("AUTH_SCHEME", "Bearer")
	t.Setenv("AUTH_ISSUER", "iot-platform")
	t.Setenv("AUTH_AUDIENCE", "node-red")
	t.Setenv("AUTH_LEEWAY", "30s")
	t.Setenv("AUTH_VERIFY_TIMEOUT", "500ms")
	t.Setenv("UPSTREAM_URL", "https://nodered.internal:1880")
	t.Setenv("UPSTREAM_TIMEOUT", "1m")
	t.Setenv("AWS_REGION", "eu-west-1")

	cfg, err := config.Load(context.Background())

	require.NoError(t, err)
	assert.False(t, cfg.IsLocal())
	assert.Equal(t, 9000, cfg.HTTP.Port)
	assert.Equal(t, 9443, cfg.GRPC.Port)
	assert.Equal(t, []string{"/public/", "/favicon.ico"}, cfg.HTTP.BypassPaths)
	assert.Equal(t, "authgate/jwt", cfg.Trust.SecretID)
	assert.Equal(t, "Bearer", cfg.Auth.Scheme)
	assert.Equal(t, "iot-platform", cfg.Auth.Issuer)
	assert.Equal(t, "node-red", cfg.Auth.Audience)
	assert.Equal(t, 30*time.Second, cfg.Auth.Leeway)
	assert.Equal(t, 500*time.Millisecond, cfg.Auth.VerifyTimeout)
	assert.Equal(t, "https://nodered.internal:1880", cfg.Upstream.URL)
	assert.Equal(t, time.Minute, cfg.Upstream.Timeout)
	assert.Equal(t, "eu-west-1", cfg.AWS.Region)
}

func TestUnrelatedEnvIgnored(t *testing.T) {
	clearTrust(t)
	t.Setenv("SECRET_KEY", "s3cr3t")
	t.Setenv("HTTP_PROXY", "http://corp-proxy:3128")
	t.Setenv("AUTH", "nonsense")

	cfg, err := config.Load(context.Background())

	require.NoError(t, err)
	assert.Equal(t, 8080, cfg.HTTP.Port)
}

func TestLoad_TrustSource(t *testing.T) {
	const pem = "-----BEGIN PUBLIC KEY-----\nMIIB\n-----END PUBLIC KEY-----"

	tests := []struct {
		name    string
		env     map[string]string
		wantErr error
		wantMsg string
	}{
		{
			name:    "none set is required error",
			env:     map[string]string{},
			wantErr: domain.ErrConfigRequired,
			wantMsg: "trust.secret_key",
		},
		{
			name:    "whitespace public key counts as unset",
			env:     map[string]string{"TRUST_PUBLIC_KEY": "  \n"},
			wantErr: domain.ErrConfigRequired,
		},
		{
			name: "secret key alone",
			env:  map[string]string{"SECRET_KEY": "k"},
		},
		{
			name: "public key alone",
			env:  map[string]string{"TRUST_PUBLIC_KEY": pem},
		},
		{
			name: "secret id alone",
			env:  map[string]string{"TRUST_SECRET_ID": "arn:aws:secretsmanager:us-east-1:123:secret:jwt"},
		},
		{
			name:    "secret key and public key conflict",
			env:     map[string]string{"SECRET_KEY": "k", "TRUST_PUBLIC_KEY": pem},
			wantErr: domain.ErrConfigInvalid,
			wantMsg: "trust.secret_key, trust.public_key",
		},
		{
			name:    "secret key and secret id conflict",
			env:     map[string]string{"SECRET_KEY": "k", "TRUST_SECRET_ID": "id"},
			wantErr: domain.ErrConfigInvalid,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearTrust(t)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}

			_, err := config.Load(context.Background())

			if tt.wantErr == nil {
				require.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.wantErr)
			if tt.wantMsg != "" {
				assert.Contains(t, err.Error(), tt.wantMsg)
			}
		})
	}
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		key     string
		value   string
		wantErr error
		wantMsg string
	}{
		{"bad log format", "LOG_FORMAT", "logfmt", domain.ErrConfigInvalid, "log_format"},
		{"port out of range", "HTTP_PORT", "70000", domain.ErrConfigInvalid, "http.port"},
		{"grpc port out of range", "GRPC_PORT", "-1", domain.ErrConfigInvalid, "grpc.port"},
		{"grpc port clashes with http", "GRPC_PORT", "8080", domain.ErrConfigInvalid, "grpc.port"},
		{"zero verify timeout", "AUTH_VERIFY_TIMEOUT", "0s", domain.ErrConfigInvalid, "auth.verify_timeout"},
		{"negative leeway", "AUTH_LEEWAY", "-1s", domain.ErrConfigInvalid, "auth.leeway"},
		{"multi-word scheme", "AUTH_SCHEME", "Bearer Token", domain.ErrConfigInvalid, "auth.scheme"},
		{"empty upstream", "UPSTREAM_URL", "", domain.ErrConfigRequired, "upstream.url"},
		{"non-http upstream", "UPSTREAM_URL", "ftp://files:21", domain.ErrConfigInvalid, "upstream.url"},
		{"upstream without host", "UPSTREAM_URL", "http://", domain.ErrConfigInvalid, "upstream.url"},
		{"zero upstream timeout", "UPSTREAM_TIMEOUT", "0s", domain.ErrConfigInvalid, "upstream.timeout"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearTrust(t)
			t.Setenv("SECRET_KEY", "k")
			t.Setenv(tt.key, tt.value)

			_, err := config.Load(context.Background())

			require.Error(t, err)
			assert.ErrorIs(t, err, tt.wantErr)
			assert.Contains(t, err.Error(), tt.wantMsg)
		})
	}
}

func TestLoad_MalformedDurationFails(t *testing.T) {
	clearTrust(t)
	t.Setenv("SECRET_KEY", "k")
	t.Setenv("AUTH_VERIFY_TIMEOUT", "soon")

	_, err := config.Load(context.Background())

	require.Error(t, err)
	assert.Contains(t, err.Error(), "unmarshal config")
}

func TestSecretKeyNotFormatted(t *testing.T) {
	clearTrust(t)
	t.Setenv("SECRET_KEY", "do-not-print-me")

	cfg, err := config.Load(context.Background())

	require.NoError(t, err)
	assert.NotContains(t, cfg.Trust.SecretKey.String(), "do-not-print-me")
}

func TestIsLocal(t *testing.T) {
	tests := []struct {
		name string
		env  string
		want bool
	}{
		{"local returns true", "local", true},
		{"prod returns false", "prod", false},
		{"dev returns false", "dev", false},
		{"empty returns false", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &config.Config{Environment: tt.env}

			assert.Equal(t, tt.want, cfg.IsLocal())
		})
	}
}

func TestLogFormatDefault(t *testing.T) {
	tests := []struct {
		name   string
		env    string
		format string
		want   string
	}{
		{"local defaults to text", "local", "", "text"},
		{"prod defaults to json", "prod", "", "json"},
		{"dev defaults to json", "dev", "", "json"},
		{"explicit format wins locally", "local", "json", "json"},
		{"explicit format wins in prod", "prod", "text", "text"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearTrust(t)
			t.Setenv("SECRET_KEY", "k")
			t.Setenv("ENVIRONMENT", tt.env)
			t.Setenv("LOG_FORMAT", tt.format)

			cfg, err := config.Load(context.Background())

			require.NoError(t, err)
			assert.Equal(t, tt.want, cfg.LogFormat)
		})
	}
}
