package auth

import (
	"maps"

	"github.com/golang-jwt/jwt/v5"
)

// Claims is the verified payload of a credential. It is produced only by a
// successful verification and lives on the request context for that request.
type Claims map[string]any

// Well-known claim names.
const (
	ClaimSubject  = "sub"
	ClaimUsername = "username"
	ClaimIssuer   = "iss"
)

func claimsFromJWT(mc jwt.MapClaims) Claims {
	c := make(Claims, len(mc))
	maps.Copy(c, mc)
	return c
}

// String returns the claim as a string, or "" if absent or not a string.
func (c Claims) String(key string) string {
	s, _ := c[key].(string)
	return s
}

// Subject returns the "sub" claim.
func (c Claims) Subject() string {
	return c.String(ClaimSubject)
}

// Principal identifies the caller: "sub" when present, else "username".
func (c Claims) Principal() string {
	if sub := c.Subject(); sub != "" {
		return sub
	}
	return c.String(ClaimUsername)
}

// Clone returns a shallow copy. Nested values are shared.
func (c Claims) Clone() Claims {
	if c == nil {
		return nil
	}
	return maps.Clone(c)
}
