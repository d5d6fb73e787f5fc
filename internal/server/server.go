// Package server provides the service lifecycle runner: signal handling,
// config loading, observability init, health checks and graceful shutdown.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/aelexs/authgate/internal/config"
	"github.com/aelexs/authgate/internal/domain"
	"github.com/aelexs/authgate/internal/httpmw"
	"github.com/aelexs/authgate/internal/observability"
)

// HealthPath is served by the runner itself and never authenticated.
const HealthPath = "/healthz"

// GRPCHealthPrefix is the full-method prefix of the gRPC health service the
// runner registers. Interceptors should let it through unauthenticated.
const GRPCHealthPrefix = "/grpc.health.v1.Health/"

// SetupDeps is what the runner hands to Setup once config and logging are ready.
type SetupDeps struct {
	Config *config.Config
	Logger *slog.Logger
	// HTTPMux already serves HealthPath; Setup registers everything else.
	HTTPMux *http.ServeMux
	// GRPCEnabled reports whether a gRPC listener will be served.
	GRPCEnabled bool
}

// Services is what Setup hands back to the runner.
type Services struct {
	// GRPCServer is served on the gRPC listener. The runner registers the
	// health service on it. Nil means a bare server with health only.
	GRPCServer *grpc.Server
	// Cleanup runs after both servers have drained.
	Cleanup func(context.Context) error
}

// SetupFunc is the service composition root.
type SetupFunc func(ctx context.Context, deps SetupDeps) (Services, error)

// Params configures a service's lifecycle runner.
type Params struct {
	// Name identifies the service in logs and telemetry.
	Name    string
	Version string

	// PortFromConfig extracts the HTTP port for this service from config.
	PortFromConfig func(cfg *config.Config) int
	// GRPCPortFromConfig extracts the gRPC port. Nil or 0 disables gRPC.
	GRPCPortFromConfig func(cfg *config.Config) int

	// Setup is the composition root. When nil only the health checks are served.
	Setup SetupFunc
}

// Listeners optionally injects pre-bound listeners (enables port-0 testing).
// A nil field falls back to the port from config. Run takes ownership of
// any listener it is given.
type Listeners struct {
	HTTP net.Listener
	GRPC net.Listener
}

// Run executes the full service lifecycle.
func Run(ctx context.Context, p Params, lns Listeners) error {
	// Signal-based cancellation: ctx.Done() closes on SIGTERM/SIGINT.
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	cfg, err := config.Load(ctx)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger := observability.InitLogger(observability.LogConfig{
		Level:       cfg.LogLevel,
		Format:      cfg.LogFormat,
		ServiceName: p.Name,
		Environment: cfg.Environment,
	})

	httpLn, grpcLn, err := listen(ctx, p, cfg, lns)
	if err != nil {
		return err
	}
	defer func() {
		// Already closed on a clean shutdown; this covers early returns.
		for _, ln := range []net.Listener{httpLn, grpcLn} {
			if ln != nil {
				_ = ln.Close()
			}
		}
	}()

	// --- Startup order: otel -> application -> servers ---

	providers, err := observability.InitProviders(ctx, observability.OTELConfig{
		ServiceName:    serviceName(cfg, p),
		ServiceVersion: p.Version,
		Environment:    cfg.Environment,
		OTLPEndpoint:   cfg.OTEL.Endpoint,
	})
	if err != nil {
		return fmt.Errorf("initialize telemetry: %w", err)
	}
	flushOTEL := func() {
		otelCtx, otelCancel := context.WithTimeout(context.Background(), domain.ShutdownOTELTimeout)
		defer otelCancel()
		if shutdownErr := providers.Shutdown(otelCtx); shutdownErr != nil {
			logger.Error("failed to shutdown telemetry", slog.String("error", shutdownErr.Error()))
		}
	}

	// Health check shutdown coordination via atomic flag.
	var shuttingDown atomic.Bool

	mux := http.NewServeMux()
	mux.HandleFunc("GET "+HealthPath, func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if shuttingDown.Load() {
			w.WriteHeader(http.StatusServiceUnavailable)
			fmt.Fprintf(w, `{"status":"shutting_down","service":%q}`, p.Name)
			return
		}
		w.WriteHeader(http.StatusOK)
		fmt.Fprintf(w, `{"status":"healthy","service":%q}`, p.Name)
	})

	var svc Services
	if p.Setup != nil {
		svc, err = p.Setup(ctx, SetupDeps{Config: cfg, Logger: logger, HTTPMux: mux, GRPCEnabled: grpcLn != nil})
		if err != nil {
			flushOTEL()
			return fmt.Errorf("setup %s: %w", p.Name, err)
		}
	}
	runCleanup := func() {
		if svc.Cleanup == nil {
			return
		}
		cleanupCtx, cleanupCancel := context.WithTimeout(context.Background(), domain.ShutdownCleanupTimeout)
		defer cleanupCancel()
		if cleanupErr := svc.Cleanup(cleanupCtx); cleanupErr != nil {
			logger.Error("cleanup failed", slog.String("error", cleanupErr.Error()))
		}
	}

	var (
		grpcServer *grpc.Server
		grpcHealth *health.Server
	)
	if grpcLn != nil {
		grpcServer = svc.GRPCServer
		if grpcServer == nil {
			grpcServer = grpc.NewServer()
		}
		grpcHealth = health.NewServer()
		healthpb.RegisterHealthServer(grpcServer, grpcHealth)
	} else if svc.GRPCServer != nil {
		svc.GRPCServer.Stop()
	}

	handler := httpmw.Chain(mux,
		httpmw.RequestID(),
		httpmw.Recovery(),
		func(next http.Handler) http.Handler {
			return otelhttp.NewHandler(next, p.Name,
				otelhttp.WithFilter(func(r *http.Request) bool { return r.URL.Path != HealthPath }),
			)
		},
	)

	server := &http.Server{
		Handler:           handler,
		ReadHeaderTimeout: domain.HTTPReadHeaderTimeout,
		IdleTimeout:       domain.HTTPIdleTimeout,
	}

	// --- Structured concurrency via errgroup ---
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("starting HTTP server",
			slog.String("addr", httpLn.Addr().String()),
			slog.String("environment", cfg.Environment),
		)
		if serveErr := server.Serve(httpLn); serveErr != nil && !errors.Is(serveErr, http.ErrServerClosed) {
			return serveErr
		}
		return nil
	})

	if grpcServer != nil {
		g.Go(func() error {
			logger.Info("starting gRPC server", slog.String("addr", grpcLn.Addr().String()))
			if serveErr := grpcServer.Serve(grpcLn); serveErr != nil && !errors.Is(serveErr, grpc.ErrServerStopped) {
				return serveErr
			}
			return nil
		})
	}

	// Shutdown is the reverse of startup: servers -> application -> otel.
	g.Go(func() error {
		<-ctx.Done()
		logger.Info("received shutdown signal, starting graceful shutdown")

		// Health checks report not-serving while the load balancer drops us.
		shuttingDown.Store(true)
		if grpcHealth != nil {
			grpcHealth.Shutdown()
		}
		time.Sleep(domain.ShutdownDrainDelay)

		// HTTP and gRPC share one drain deadline.
		drainCtx, drainCancel := context.WithTimeout(context.Background(), domain.ShutdownHTTPTimeout)
		defer drainCancel()
		if shutdownErr := server.Shutdown(drainCtx); shutdownErr != nil {
			logger.Error("HTTP server shutdown error", slog.String("error", shutdownErr.Error()))
		}
		if grpcServer != nil {
			stopGRPC(drainCtx, grpcServer, logger)
		}

		runCleanup()
		flushOTEL()

		logger.Info("shutdown complete")
		return nil
	})

	return g.Wait()
}

// listen resolves the HTTP and optional gRPC listeners.
func listen(ctx context.Context, p Params, cfg *config.Config, lns Listeners) (httpLn, grpcLn net.Listener, err error) {
	lc := &net.ListenConfig{}

	httpLn = lns.HTTP
	if httpLn == nil {
		httpLn, err = lc.Listen(ctx, "tcp", fmt.Sprintf(":%d", p.PortFromConfig(cfg)))
		if err != nil {
			return nil, nil, fmt.Errorf("listen http: %w", err)
		}
	}

	grpcLn = lns.GRPC
	if grpcLn == nil && p.GRPCPortFromConfig != nil {
		if port := p.GRPCPortFromConfig(cfg); port > 0 {
			grpcLn, err = lc.Listen(ctx, "tcp", fmt.Sprintf(":%d", port))
			if err != nil {
				_ = httpLn.Close()
				return nil, nil, fmt.Errorf("listen grpc: %w", err)
			}
		}
	}
	return httpLn, grpcLn, nil
}

// stopGRPC drains in-flight RPCs until ctx expires, then cuts the rest.
func stopGRPC(ctx context.Context, s *grpc.Server, logger *slog.Logger) {
	stopped := make(chan struct{})
	go func() {
		s.GracefulStop()
		close(stopped)
	}()
	select {
	case <-stopped:
	case <-ctx.Done():
		logger.Error("gRPC graceful stop timed out, forcing stop")
		s.Stop()
		<-stopped
	}
}

func serviceName(cfg *config.Config, p Params) string {
	if cfg.OTEL.ServiceName != "" {
		return cfg.OTEL.ServiceName
	}
	return p.Name
}
