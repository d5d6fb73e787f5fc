package auth

import (
	"context"
	"strings"

	"google.golang.org/grpc"
	"google.golang.org/grpc/metadata"

	"github.com/aelexs/authgate/internal/domain"
	"github.com/aelexs/authgate/internal/errmap"
)

// UnaryServerInterceptor runs the gate on unary RPCs. Methods whose full
// name starts with one of bypassPrefixes (e.g. "/grpc.health.v1.Health/")
// are not checked.
func UnaryServerInterceptor(g *Gate, bypassPrefixes ...string) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		if hasAnyPrefix(info.FullMethod, bypassPrefixes) {
			return handler(ctx, req)
		}
		ctx, err := authenticateRPC(ctx, g)
		if err != nil {
			return nil, err
		}
		return handler(ctx, req)
	}
}

// StreamServerInterceptor is the streaming counterpart of UnaryServerInterceptor.
func StreamServerInterceptor(g *Gate, bypassPrefixes ...string) grpc.StreamServerInterceptor {
	return func(srv any, ss grpc.ServerStream, info *grpc.StreamServerInfo, handler grpc.StreamHandler) error {
		if hasAnyPrefix(info.FullMethod, bypassPrefixes) {
			return handler(srv, ss)
		}
		ctx, err := authenticateRPC(ss.Context(), g)
		if err != nil {
			return err
		}
		return handler(srv, &authenticatedStream{ServerStream: ss, ctx: ctx})
	}
}

func authenticateRPC(ctx context.Context, g *Gate) (context.Context, error) {
	md, _ := metadata.FromIncomingContext(ctx)
	res := g.CheckValues(ctx, md.Get(domain.AuthorizationMetadataKey))
	if !res.Authenticated() {
		return ctx, errmap.ToGRPCError(res.Err)
	}
	return WithClaims(ctx, res.Claims), nil
}

// authenticatedStream overrides Context to carry the verified claims.
type authenticatedStream struct {
	grpc.ServerStream
	ctx context.Context
}

func (s *authenticatedStream) Context() context.Context {
	return s.ctx
}

func hasAnyPrefix(s string, prefixes []string) bool {
	for _, p := range prefixes {
		if p != "" && strings.HasPrefix(s, p) {
			return true
		}
	}
	return false
}
