package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/aelexs/authgate/internal/domain"
)

// Verifier checks a bearer token and returns its claims.
// Implementations must honour ctx cancellation and be safe for concurrent use.
type Verifier interface {
	Verify(ctx context.Context, token string) (Claims, error)
}

// VerifierFunc adapts a function to Verifier.
type VerifierFunc func(ctx context.Context, token string) (Claims, error)

// Verify calls f.
func (f VerifierFunc) Verify(ctx context.Context, token string) (Claims, error) {
	return f(ctx, token)
}

// FailureReason classifies a verification failure for logs and metrics.
// It is never sent to the caller.
type FailureReason string

const (
	ReasonMalformed FailureReason = "malformed"
	ReasonExpired   FailureReason = "expired"
	ReasonSignature FailureReason = "signature"
	ReasonClaims    FailureReason = "claims"
	ReasonTimeout   FailureReason = "timeout"
	ReasonUnknown   FailureReason = "unknown"
)

// VerifyError is returned by JWTVerifier for every rejected token.
type VerifyError struct {
	Reason FailureReason
	Err    error
}

func (e *VerifyError) Error() string {
	if e.Err == nil {
		return "verify token: " + string(e.Reason)
	}
	return fmt.Sprintf("verify token: %s: %v", e.Reason, e.Err)
}

func (e *VerifyError) Unwrap() error {
	return e.Err
}

// ReasonOf extracts the FailureReason from err, defaulting to ReasonUnknown.
func ReasonOf(err error) FailureReason {
	var ve *VerifyError
	if errors.As(err, &ve) {
		return ve.Reason
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return ReasonTimeout
	}
	return ReasonUnknown
}

// VerifierConfig holds configuration for creating a JWTVerifier.
type VerifierConfig struct {
	Key TrustKey
	// Issuer and Audience are only enforced when non-empty.
	Issuer   string
	Audience string
	Leeway   time.Duration
	Clock    domain.Clock
}

// JWTVerifier verifies JWS compact tokens against a single TrustKey.
type JWTVerifier struct {
	key    TrustKey
	parser *jwt.Parser
}

// NewJWTVerifier creates a verifier. The key is fixed for the verifier's lifetime.
func NewJWTVerifier(cfg VerifierConfig) (*JWTVerifier, error) {
	if cfg.Key.IsZero() {
		return nil, fmt.Errorf("%w: trust key", domain.ErrConfigRequired)
	}
	clock := cfg.Clock
	if clock == nil {
		clock = domain.RealClock{}
	}

	opts := []jwt.ParserOption{
		jwt.WithValidMethods(cfg.Key.Methods()),
		jwt.WithTimeFunc(clock.Now),
	}
	if cfg.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(cfg.Issuer))
	}
	if cfg.Audience != "" {
		opts = append(opts, jwt.WithAudience(cfg.Audience))
	}
	if cfg.Leeway > 0 {
		opts = append(opts, jwt.WithLeeway(cfg.Leeway))
	}

	return &JWTVerifier{
		key:    cfg.Key,
		parser: jwt.NewParser(opts...),
	}, nil
}

// Verify parses and validates token. Every failure is a *VerifyError.
func (v *JWTVerifier) Verify(ctx context.Context, token string) (Claims, error) {
	if err := ctx.Err(); err != nil {
		return nil, &VerifyError{Reason: ReasonTimeout, Err: err}
	}

	mc := jwt.MapClaims{}
	_, err := v.parser.ParseWithClaims(token, mc, v.keyFunc)

	// Parsing is CPU-bound and not interruptible; a result that arrives
	// after the deadline is discarded.
	if ctxErr := ctx.Err(); ctxErr != nil {
		return nil, &VerifyError{Reason: ReasonTimeout, Err: ctxErr}
	}
	if err != nil {
		return nil, &VerifyError{Reason: classify(err), Err: err}
	}
	return claimsFromJWT(mc), nil
}

func (v *JWTVerifier) keyFunc(token *jwt.Token) (any, error) {
	return v.key.verificationKey(token.Method)
}

// classify maps jwt validation errors onto a FailureReason. A token can fail
// several checks at once; structural and signature problems take precedence
// over time and claim checks.
func classify(err error) FailureReason {
	switch {
	case errors.Is(err, jwt.ErrTokenMalformed):
		return ReasonMalformed
	case errors.Is(err, jwt.ErrTokenSignatureInvalid),
		errors.Is(err, jwt.ErrTokenUnverifiable):
		return ReasonSignature
	case errors.Is(err, jwt.ErrTokenExpired):
		return ReasonExpired
	case errors.Is(err, jwt.ErrTokenNotValidYet),
		errors.Is(err, jwt.ErrTokenUsedBeforeIssued),
		errors.Is(err, jwt.ErrTokenInvalidIssuer),
		errors.Is(err, jwt.ErrTokenInvalidAudience),
		errors.Is(err, jwt.ErrTokenRequiredClaimMissing),
		errors.Is(err, jwt.ErrTokenInvalidClaims):
		return ReasonClaims
	default:
		return ReasonUnknown
	}
}

var _ Verifier = (*JWTVerifier)(nil)
