// Package trust resolves the process-wide verification key at startup.
// The key is loaded once and never refreshed.
package trust

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"

	"github.com/aelexs/authgate/internal/auth"
	"github.com/aelexs/authgate/internal/config"
	"github.com/aelexs/authgate/internal/domain"
	"github.com/aelexs/authgate/internal/observability"
)

// SecretFetcher is the narrow consumer-defined interface for Secrets Manager.
// *secretsmanager.Client satisfies it.
type SecretFetcher interface {
	GetSecretValue(ctx context.Context, params *secretsmanager.GetSecretValueInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.GetSecretValueOutput, error)
}

// Source names where a TrustKey came from, for logs.
type Source string

const (
	SourceSecretKey      Source = "secret_key"
	SourcePublicKey      Source = "public_key"
	SourceSecretsManager Source = "secrets_manager"
)

// Resolve builds the TrustKey named by cfg. sm is only used, and only
// required, when cfg.SecretID is set.
func Resolve(ctx context.Context, cfg config.TrustConfig, sm SecretFetcher) (auth.TrustKey, Source, error) {
	switch {
	case !cfg.SecretKey.IsEmpty():
		key, err := auth.NewHMACKey(cfg.SecretKey)
		return key, SourceSecretKey, err

	case strings.TrimSpace(cfg.PublicKey) != "":
		key, err := auth.NewRSAPublicKey([]byte(cfg.PublicKey))
		return key, SourcePublicKey, err

	case cfg.SecretID != "":
		if sm == nil {
			return auth.TrustKey{}, "", errors.New("trust: secret id set but no Secrets Manager client")
		}
		key, err := fetch(ctx, sm, cfg.SecretID)
		return key, SourceSecretsManager, err

	default:
		return auth.TrustKey{}, "", fmt.Errorf("%w: trust source", domain.ErrConfigRequired)
	}
}

func fetch(ctx context.Context, sm SecretFetcher, secretID string) (auth.TrustKey, error) {
	ctx, cancel := context.WithTimeout(ctx, domain.SecretsManagerTimeout)
	defer cancel()

	out, err := sm.GetSecretValue(ctx, &secretsmanager.GetSecretValueInput{
		SecretId: aws.String(secretID),
	})
	if err != nil {
		return auth.TrustKey{}, fmt.Errorf("fetching trust secret %q from Secrets Manager: %w", secretID, err)
	}

	var value domain.SecretString
	switch {
	case out.SecretString != nil:
		value = domain.SecretString(*out.SecretString)
	case len(out.SecretBinary) > 0:
		value = domain.SecretString(out.SecretBinary)
	}
	if value.IsEmpty() {
		return auth.TrustKey{}, fmt.Errorf("%w: trust secret %q is empty", domain.ErrConfigInvalid, secretID)
	}

	observability.LoggerFromContext(ctx).DebugContext(ctx, "trust secret fetched", "source", string(SourceSecretsManager))
	return keyFromSecret(value)
}

// keyFromSecret treats a PEM block as an RSA public key and anything else
// as an HMAC shared secret, used byte for byte.
func keyFromSecret(value domain.SecretString) (auth.TrustKey, error) {
	if strings.HasPrefix(strings.TrimSpace(value.Expose()), "-----BEGIN ") {
		return auth.NewRSAPublicKey([]byte(value.Expose()))
	}
	return auth.NewHMACKey(value)
}
