package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"

	"google.golang.org/grpc"
	"google.golang.org/grpc/reflection"

	"github.com/aelexs/authgate/internal/auth"
	"github.com/aelexs/authgate/internal/config"
	"github.com/aelexs/authgate/internal/domain"
	"github.com/aelexs/authgate/internal/proxy"
	"github.com/aelexs/authgate/internal/server"
	"github.com/aelexs/authgate/internal/trust"
)

// setup is the authgate composition root. It resolves the trust key once,
// builds the gate, and mounts the gated reverse proxy on every path except
// the health check. When gRPC is enabled the gate also fronts a reflection
// service, so service discovery needs a valid token.
func setup(ctx context.Context, deps server.SetupDeps) (server.Services, error) {
	cfg := deps.Config
	logger := deps.Logger

	// 1. Trust key. Secrets Manager is only contacted when a secret id is set.
	var sm trust.SecretFetcher
	if cfg.Trust.SecretID != "" {
		client, err := trust.NewSecretsManagerClient(ctx, trust.AWSConfig{
			Region:   cfg.AWS.Region,
			Endpoint: cfg.AWS.Endpoint,
			Timeout:  domain.SecretsManagerTimeout,
		})
		if err != nil {
			return server.Services{}, fmt.Errorf("authgate setup: create secrets manager client: %w", err)
		}
		sm = client
	}

	key, source, err := trust.Resolve(ctx, cfg.Trust, sm)
	if err != nil {
		return server.Services{}, fmt.Errorf("authgate setup: resolve trust key: %w", err)
	}
	logger.InfoContext(ctx, "trust key loaded",
		slog.String("source", string(source)),
		slog.Any("key", key),
	)

	// 2. Gate.
	gate, err := newGate(cfg, key)
	if err != nil {
		return server.Services{}, fmt.Errorf("authgate setup: %w", err)
	}

	// 3. Upstream.
	upstream, err := url.Parse(cfg.Upstream.URL)
	if err != nil {
		return server.Services{}, fmt.Errorf("authgate setup: parse upstream url: %w", err)
	}
	p, err := proxy.New(proxy.Config{
		Upstream: upstream,
		Timeout:  cfg.Upstream.Timeout,
	})
	if err != nil {
		return server.Services{}, fmt.Errorf("authgate setup: create proxy: %w", err)
	}

	deps.HTTPMux.Handle("/", auth.Middleware(gate, cfg.HTTP.BypassPaths)(p))

	// 4. gRPC.
	var svc server.Services
	if deps.GRPCEnabled {
		svc.GRPCServer = newGRPCServer(gate)
	}

	logger.InfoContext(ctx, "authgate initialized",
		slog.String("upstream", upstream.Redacted()),
		slog.String("scheme", cfg.Auth.Scheme),
		slog.Int("bypass_paths", len(cfg.HTTP.BypassPaths)),
		slog.Bool("grpc", deps.GRPCEnabled),
	)

	return svc, nil
}

// newGRPCServer returns a server whose every RPC except health passes the gate.
func newGRPCServer(gate *auth.Gate) *grpc.Server {
	s := grpc.NewServer(
		grpc.ChainUnaryInterceptor(auth.UnaryServerInterceptor(gate, server.GRPCHealthPrefix)),
		grpc.ChainStreamInterceptor(auth.StreamServerInterceptor(gate, server.GRPCHealthPrefix)),
	)
	reflection.Register(s)
	return s
}

func newGate(cfg *config.Config, key auth.TrustKey) (*auth.Gate, error) {
	verifier, err := auth.NewJWTVerifier(auth.VerifierConfig{
		Key:      key,
		Issuer:   cfg.Auth.Issuer,
		Audience: cfg.Auth.Audience,
		Leeway:   cfg.Auth.Leeway,
	})
	if err != nil {
		return nil, fmt.Errorf("create verifier: %w", err)
	}

	gate, err := auth.NewGate(auth.GateConfig{
		Verifier:      verifier,
		Scheme:        cfg.Auth.Scheme,
		VerifyTimeout: cfg.Auth.VerifyTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("create gate: %w", err)
	}
	return gate, nil
}
