package llm

import (
	"context"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// RateLimitedProvider wraps a Provider with a client-side token bucket so a
// burst of concurrent runs cannot stampede the upstream API. Waiting counts
// against the call's deadline: expiry while queued surfaces as ErrTimeout.
type RateLimitedProvider struct {
	inner   Provider
	limiter *rate.Limiter
	logger  *zap.Logger
}

// NewRateLimitedProvider allows rps requests per second with the given
// burst. A nil logger disables logging.
func NewRateLimitedProvider(inner Provider, rps float64, burst int, logger *zap.Logger) *RateLimitedProvider {
	if logger == nil {
		logger = zap.NewNop()
	}
	if burst < 1 {
		burst = 1
	}
	return &RateLimitedProvider{
		inner:   inner,
		limiter: rate.NewLimiter(rate.Limit(rps), burst),
		logger:  logger.With(zap.String("component", "rate_limited_provider")),
	}
}

func (p *RateLimitedProvider) Name() string { return p.inner.Name() }

func (p *RateLimitedProvider) Generate(ctx context.Context, req *GenerateRequest) (string, error) {
	if err := p.limiter.Wait(ctx); err != nil {
		p.logger.Warn("rate limit wait aborted", zap.Error(err))
		if ctx.Err() == context.Canceled {
			return "", err
		}
		// Wait fails fast when the deadline cannot cover the queue time, so
		// the context may not have expired yet. Either way it is a timeout.
		return "", &Error{
			Code:      ErrTimeout,
			Message:   "deadline expired while waiting for rate limit",
			Provider:  p.inner.Name(),
			Retryable: true,
			Cause:     err,
		}
	}
	return p.inner.Generate(ctx, req)
}
