// Package authtest provides token signing helpers and verifier doubles
// for tests of code that sits behind the gate.
package authtest

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/aelexs/authgate/internal/auth"
	"github.com/aelexs/authgate/internal/domain"
)

// Signer creates signed tokens for tests.
type Signer struct {
	Method   jwt.SigningMethod
	Key      any // []byte for HMAC, *rsa.PrivateKey for RSA
	Issuer   string
	Audience string
	TTL      time.Duration // zero omits exp
	Clock    domain.Clock
}

// NewHMACSigner returns an HS256 signer for secret.
func NewHMACSigner(secret string, clock domain.Clock) *Signer {
	return &Signer{
		Method: jwt.SigningMethodHS256,
		Key:    []byte(secret),
		TTL:    time.Hour,
		Clock:  clock,
	}
}

// NewRSASigner returns an RS256 signer for key.
func NewRSASigner(key *rsa.PrivateKey, clock domain.Clock) *Signer {
	return &Signer{
		Method: jwt.SigningMethodRS256,
		Key:    key,
		TTL:    time.Hour,
		Clock:  clock,
	}
}

// Sign returns a token for subject with iat, exp (if TTL is set), jti and
// any extra claims. Extra claims override the defaults.
func (s *Signer) Sign(t *testing.T, subject string, extra map[string]any) string {
	t.Helper()

	clock := s.Clock
	if clock == nil {
		clock = domain.RealClock{}
	}
	now := clock.Now().UTC()

	claims := jwt.MapClaims{
		"sub": subject,
		"iat": now.Unix(),
		"jti": uuid.NewString(),
	}
	if s.TTL > 0 {
		claims["exp"] = now.Add(s.TTL).Unix()
	}
	if s.Issuer != "" {
		claims["iss"] = s.Issuer
	}
	if s.Audience != "" {
		claims["aud"] = s.Audience
	}
	for k, v := range extra {
		if v == nil {
			delete(claims, k)
			continue
		}
		claims[k] = v
	}

	signed, err := jwt.NewWithClaims(s.Method, claims).SignedString(s.Key)
	require.NoError(t, err)
	return signed
}

// GenerateRSAKey returns a fresh 2048-bit key.
func GenerateRSAKey(t *testing.T) *rsa.PrivateKey {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	return key
}

// PublicKeyPEM encodes the public half of key as a PKIX PEM block.
func PublicKeyPEM(t *testing.T, key *rsa.PrivateKey) []byte {
	t.Helper()
	der, err := x509.MarshalPKIXPublicKey(&key.PublicKey)
	require.NoError(t, err)
	return pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: der})
}

// Verifier is a scripted auth.Verifier that records the tokens it sees.
type Verifier struct {
	Claims auth.Claims
	Err    error
	// Delay blocks Verify until it elapses or ctx is done.
	Delay time.Duration

	mu     sync.Mutex
	tokens []string
}

func (v *Verifier) Verify(ctx context.Context, token string) (auth.Claims, error) {
	v.mu.Lock()
	v.tokens = append(v.tokens, token)
	v.mu.Unlock()

	if v.Delay > 0 {
		timer := time.NewTimer(v.Delay)
		defer timer.Stop()
		select {
		case <-timer.C:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if v.Err != nil {
		return nil, v.Err
	}
	return v.Claims, nil
}

// Calls returns how many times Verify ran.
func (v *Verifier) Calls() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return len(v.tokens)
}

// Tokens returns the tokens passed to Verify, in order.
func (v *Verifier) Tokens() []string {
	v.mu.Lock()
	defer v.mu.Unlock()
	return append([]string(nil), v.tokens...)
}

var _ auth.Verifier = (*Verifier)(nil)
