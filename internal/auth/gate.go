package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/aelexs/authgate/internal/domain"
	"github.com/aelexs/authgate/internal/observability"
)

const instrumentationName = "github.com/aelexs/authgate/internal/auth"

// Outcome is the terminal state of a gate check.
type Outcome int

const (
	OutcomeAuthenticated Outcome = iota
	OutcomeMissing
	OutcomeInvalid
)

func (o Outcome) String() string {
	switch o {
	case OutcomeAuthenticated:
		return "authenticated"
	case OutcomeMissing:
		return "missing_credential"
	case OutcomeInvalid:
		return "invalid_credential"
	default:
		return fmt.Sprintf("Outcome(%d)", int(o))
	}
}

// Result is the classified outcome of a gate check. Claims is set only when
// Outcome is OutcomeAuthenticated; Err only when it is not. Err always
// matches domain.ErrMissingCredential or domain.ErrInvalidCredential.
type Result struct {
	Outcome Outcome
	Claims  Claims
	Err     error
	// Reason is the verification failure reason, for logs and metrics only.
	Reason FailureReason
}

// Authenticated reports whether the request may proceed.
func (r Result) Authenticated() bool {
	return r.Outcome == OutcomeAuthenticated
}

// GateConfig holds configuration for creating a Gate.
type GateConfig struct {
	Verifier Verifier
	// Scheme, when set, is the only accepted credential scheme.
	Scheme        string
	VerifyTimeout time.Duration

	// Optional; default to the otel globals.
	TracerProvider trace.TracerProvider
	MeterProvider  metric.MeterProvider
}

// Gate decides whether a request carrying an Authorization value may proceed.
// It holds no mutable state and is safe for concurrent use.
type Gate struct {
	verifier Verifier
	scheme   string
	timeout  time.Duration

	tracer    trace.Tracer
	decisions metric.Int64Counter
	duration  metric.Float64Histogram
}

// NewGate creates a gate over verifier.
func NewGate(cfg GateConfig) (*Gate, error) {
	if cfg.Verifier == nil {
		return nil, errors.New("auth: gate requires a verifier")
	}
	timeout := cfg.VerifyTimeout
	if timeout <= 0 {
		timeout = domain.DefaultVerifyTimeout
	}

	tp := cfg.TracerProvider
	if tp == nil {
		tp = otel.GetTracerProvider()
	}
	mp := cfg.MeterProvider
	if mp == nil {
		mp = otel.GetMeterProvider()
	}
	m := mp.Meter(instrumentationName)

	decisions, err := m.Int64Counter("authgate_decisions_total",
		metric.WithDescription("Total gate decisions by outcome"))
	if err != nil {
		return nil, fmt.Errorf("create decisions counter: %w", err)
	}
	duration, err := m.Float64Histogram("authgate_verify_duration_seconds",
		metric.WithDescription("Token verification latency"),
		metric.WithUnit("s"))
	if err != nil {
		return nil, fmt.Errorf("create verify duration histogram: %w", err)
	}

	return &Gate{
		verifier:  cfg.Verifier,
		scheme:    cfg.Scheme,
		timeout:   timeout,
		tracer:    tp.Tracer(instrumentationName),
		decisions: decisions,
		duration:  duration,
	}, nil
}

// Check runs the gate over a single Authorization value ("" when absent).
//
// Unchecked -> Authenticated | Rejected(Missing) | Rejected(Invalid).
// The verifier is consulted only for a well-formed credential.
func (g *Gate) Check(ctx context.Context, header string) Result {
	return g.decide(ctx, func(ctx context.Context) Result {
		return g.check(ctx, header)
	})
}

// CheckValues runs the gate over every Authorization value a request carried.
// More than one value is ambiguous and rejected without verification.
func (g *Gate) CheckValues(ctx context.Context, values []string) Result {
	if len(values) <= 1 {
		header := ""
		if len(values) == 1 {
			header = values[0]
		}
		return g.Check(ctx, header)
	}
	return g.decide(ctx, func(context.Context) Result {
		return invalid(ReasonMalformed, fmt.Errorf("%w: %d authorization values",
			domain.ErrInvalidCredential, len(values)))
	})
}

// decide wraps a check with its span, decision metric and log line.
func (g *Gate) decide(ctx context.Context, check func(context.Context) Result) Result {
	ctx, span := g.tracer.Start(ctx, "auth.Gate.Check")
	defer span.End()

	res := check(ctx)
	if !res.Authenticated() && !domain.IsCredentialError(res.Err) {
		res = invalid(ReasonUnknown, fmt.Errorf("%w: %w", domain.ErrInvalidCredential, res.Err))
	}

	span.SetAttributes(attribute.String("auth.outcome", res.Outcome.String()))
	if res.Reason != "" {
		span.SetAttributes(attribute.String("auth.failure_reason", string(res.Reason)))
	}
	g.decisions.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", res.Outcome.String())))

	logger := observability.LoggerFromContext(ctx)
	switch res.Outcome {
	case OutcomeAuthenticated:
		logger.DebugContext(ctx, "credential accepted", "subject", res.Claims.Principal())
	case OutcomeMissing:
		logger.DebugContext(ctx, "credential missing")
	default:
		logger.InfoContext(ctx, "credential rejected", "reason", string(res.Reason), "error", res.Err)
	}
	return res
}

func (g *Gate) check(ctx context.Context, header string) Result {
	cred, err := ParseCredential(header)
	if errors.Is(err, domain.ErrMissingCredential) {
		return Result{Outcome: OutcomeMissing, Err: err}
	}
	if err != nil {
		return invalid(ReasonMalformed, err)
	}
	if !cred.HasScheme(g.scheme) {
		return invalid(ReasonMalformed, fmt.Errorf("%w: unsupported scheme %q", domain.ErrInvalidCredential, cred.Scheme))
	}

	claims, err := g.verify(ctx, cred.Token)
	if err != nil {
		return invalid(ReasonOf(err), fmt.Errorf("%w: %w", domain.ErrInvalidCredential, err))
	}
	if claims == nil {
		claims = Claims{}
	}
	return Result{Outcome: OutcomeAuthenticated, Claims: claims}
}

type verifyResult struct {
	claims Claims
	err    error
}

// verify calls the verifier under the gate's timeout. The call runs on its
// own goroutine so a verifier that ignores ctx cannot hold the request past
// the deadline; its late result is discarded. A verifier panic is converted
// to an error so no failure escapes unclassified.
func (g *Gate) verify(ctx context.Context, token string) (Claims, error) {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	start := time.Now()
	done := make(chan verifyResult, 1)
	go func() {
		var res verifyResult
		defer func() {
			if r := recover(); r != nil {
				res = verifyResult{err: &VerifyError{Reason: ReasonUnknown, Err: fmt.Errorf("verifier panic: %v", r)}}
			}
			done <- res
		}()
		res.claims, res.err = g.verifier.Verify(ctx, token)
	}()

	var res verifyResult
	select {
	case res = <-done:
		if ctxErr := ctx.Err(); ctxErr != nil && (res.err == nil || ReasonOf(res.err) == ReasonUnknown) {
			// Finished, but past the deadline.
			err := res.err
			if err == nil {
				err = ctxErr
			}
			res = verifyResult{err: &VerifyError{Reason: ReasonTimeout, Err: err}}
		}
	case <-ctx.Done():
		res = verifyResult{err: &VerifyError{Reason: ReasonTimeout, Err: ctx.Err()}}
	}

	result := "ok"
	if res.err != nil {
		result = string(ReasonOf(res.err))
	}
	g.duration.Record(ctx, time.Since(start).Seconds(),
		metric.WithAttributes(attribute.String("result", result)))

	return res.claims, res.err
}

func invalid(reason FailureReason, err error) Result {
	return Result{Outcome: OutcomeInvalid, Err: err, Reason: reason}
}
