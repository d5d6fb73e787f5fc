// Package main is the entrypoint for the authgate service.
// authgate verifies bearer tokens and proxies authenticated requests to the
// per-user Node-RED instance. The same gate guards an optional gRPC listener.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/aelexs/authgate/internal/config"
	"github.com/aelexs/authgate/internal/server"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	ctx := context.Background()
	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	return server.Run(ctx, server.Params{
		Name:               "authgate",
		Version:            version,
		PortFromConfig:     func(cfg *config.Config) int { return cfg.HTTP.Port },
		GRPCPortFromConfig: func(cfg *config.Config) int { return cfg.GRPC.Port },
		Setup:              setup,
	}, server.Listeners{})
}
