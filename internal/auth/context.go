package auth

import "context"

type claimsKey struct{}

// WithClaims attaches a copy of verified claims to ctx. Later changes to c
// are not visible to handlers reading the context.
func WithClaims(ctx context.Context, c Claims) context.Context {
	return context.WithValue(ctx, claimsKey{}, c.Clone())
}

// ClaimsFromContext returns the claims attached by the gate, if any.
func ClaimsFromContext(ctx context.Context) (Claims, bool) {
	c, ok := ctx.Value(claimsKey{}).(Claims)
	return c, ok && c != nil
}
