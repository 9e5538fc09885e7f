package anthropic

import (
	"context"
	"errors"

	sdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/ishankgp/clinical-trial/internal/resilience"
)

// Gateway is the single entry point for completion calls. It rate-limits,
// trips a circuit breaker on sustained outage, retries transient failures up
// to three times with exponential backoff, and logs token usage per call.
// Model rejections (invalid model, unsupported parameter) are surfaced as
// ModelError and never retried.
type Gateway struct {
	client  Client
	limiter *rate.Limiter
	breaker *resilience.CircuitBreaker
	retry   resilience.RetryConfig
}

// GatewayOption configures a Gateway.
type GatewayOption func(*Gateway)

// WithRateLimit sets the requests-per-second limit.
func WithRateLimit(rps float64, burst int) GatewayOption {
	return func(g *Gateway) {
		g.limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
}

// WithRetryConfig overrides the default retry configuration.
func WithRetryConfig(cfg resilience.RetryConfig) GatewayOption {
	return func(g *Gateway) {
		g.retry = cfg
	}
}

// NewGateway wraps client with resilience policies.
func NewGateway(client Client, opts ...GatewayOption) *Gateway {
	g := &Gateway{
		client:  client,
		limiter: rate.NewLimiter(rate.Limit(2), 4),
		breaker: resilience.NewCircuitBreaker("anthropic", 5, 0),
		retry:   resilience.DefaultRetryConfig(),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Complete sends one completion request. phase labels the call for cost
// attribution ("extract-drug", "query-structured").
func (g *Gateway) Complete(ctx context.Context, phase string, req MessageRequest) (*MessageResponse, error) {
	cfg := g.retry
	if cfg.OnRetry == nil {
		cfg.OnRetry = resilience.RetryLogger("anthropic", phase)
	}

	resp, err := resilience.DoVal(ctx, cfg, func(ctx context.Context) (*MessageResponse, error) {
		if err := g.breaker.Allow(); err != nil {
			return nil, err
		}
		if err := g.limiter.Wait(ctx); err != nil {
			return nil, eris.Wrap(err, "anthropic: rate limit wait")
		}

		resp, err := g.client.CreateMessage(ctx, req)
		if err != nil {
			err = classifyErr(req.Model, err)
			g.breaker.RecordFailure(err)
			return nil, err
		}
		g.breaker.RecordSuccess()
		return resp, nil
	})
	if err != nil {
		return nil, err
	}

	resp.Usage.LogCost(req.Model, phase)
	if resp.StopReason == "max_tokens" {
		zap.L().Warn("completion truncated at max tokens",
			zap.String("phase", phase),
			zap.String("model", req.Model))
	}
	return resp, nil
}

// classifyErr maps an SDK error onto the retry taxonomy: 408/429/5xx become
// TransientError, request-shape rejections become ModelError, everything else
// passes through.
func classifyErr(model string, err error) error {
	var apierr *sdk.Error
	if errors.As(err, &apierr) {
		if resilience.IsTransientHTTPStatus(apierr.StatusCode) {
			return resilience.NewTransientError(err, apierr.StatusCode)
		}
		switch apierr.StatusCode {
		case 400, 404, 422:
			return &resilience.ModelError{Model: model, Err: err}
		}
		return err
	}
	if resilience.IsTransient(err) {
		return resilience.NewTransientError(err, 0)
	}
	return err
}
