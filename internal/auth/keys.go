package auth

import (
	"crypto/rsa"
	"fmt"
	"log/slog"

	"github.com/golang-jwt/jwt/v5"

	"github.com/aelexs/authgate/internal/domain"
)

// KeyKind identifies the verification algorithm family of a TrustKey.
type KeyKind int

const (
	KeyKindNone KeyKind = iota
	KeyKindHMAC
	KeyKindRSA
)

func (k KeyKind) String() string {
	switch k {
	case KeyKindHMAC:
		return "hmac"
	case KeyKindRSA:
		return "rsa"
	default:
		return "none"
	}
}

var (
	hmacMethods = []string{
		jwt.SigningMethodHS256.Alg(),
		jwt.SigningMethodHS384.Alg(),
		jwt.SigningMethodHS512.Alg(),
	}
	rsaMethods = []string{
		jwt.SigningMethodRS256.Alg(),
		jwt.SigningMethodRS384.Alg(),
		jwt.SigningMethodRS512.Alg(),
	}
)

// TrustKey is the process-wide verification key. It is immutable after
// construction and safe for concurrent use. It never formats its material.
type TrustKey struct {
	kind   KeyKind
	secret domain.SecretBytes
	public *rsa.PublicKey
}

// NewHMACKey builds a shared-secret key for HS256/384/512 tokens.
func NewHMACKey(secret domain.SecretString) (TrustKey, error) {
	if secret.IsEmpty() {
		return TrustKey{}, fmt.Errorf("%w: hmac secret", domain.ErrConfigRequired)
	}
	return TrustKey{kind: KeyKindHMAC, secret: domain.SecretBytes(secret.Expose())}, nil
}

// NewRSAPublicKey builds a key for RS256/384/512 tokens from a PEM-encoded
// PKIX public key, PKCS#1 public key or certificate.
func NewRSAPublicKey(pemData []byte) (TrustKey, error) {
	pub, err := jwt.ParseRSAPublicKeyFromPEM(pemData)
	if err != nil {
		return TrustKey{}, fmt.Errorf("%w: rsa public key: %w", domain.ErrConfigInvalid, err)
	}
	return TrustKey{kind: KeyKindRSA, public: pub}, nil
}

// Kind reports the key family.
func (k TrustKey) Kind() KeyKind {
	return k.kind
}

// IsZero reports whether k was never initialised.
func (k TrustKey) IsZero() bool {
	return k.kind == KeyKindNone
}

// Methods lists the JWT "alg" values this key accepts.
func (k TrustKey) Methods() []string {
	switch k.kind {
	case KeyKindHMAC:
		return hmacMethods
	case KeyKindRSA:
		return rsaMethods
	default:
		return nil
	}
}

// verificationKey returns the value jwt expects from a Keyfunc after
// checking that the token's method belongs to this key's family.
func (k TrustKey) verificationKey(method jwt.SigningMethod) (any, error) {
	switch k.kind {
	case KeyKindHMAC:
		if _, ok := method.(*jwt.SigningMethodHMAC); ok {
			return k.secret.Expose(), nil
		}
	case KeyKindRSA:
		if _, ok := method.(*jwt.SigningMethodRSA); ok {
			return k.public, nil
		}
	}
	return nil, fmt.Errorf("unexpected signing method: %v", method.Alg())
}

func (k TrustKey) String() string {
	return "TrustKey(" + k.kind.String() + ")"
}

// LogValue implements slog.LogValuer.
func (k TrustKey) LogValue() slog.Value {
	return slog.StringValue(k.kind.String())
}
