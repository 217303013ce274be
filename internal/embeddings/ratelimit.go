package embeddings

import (
	"context"
	"fmt"

	"golang.org/x/time/rate"
)

// RateLimitedProvider throttles calls to a remote model with a token bucket.
// Waiting honours ctx, so a per-word timeout also bounds time spent in the limiter.
type RateLimitedProvider struct {
	next    Provider
	limiter *rate.Limiter
}

// Ensure RateLimitedProvider implements Provider.
var _ Provider = (*RateLimitedProvider)(nil)

// NewRateLimitedProvider allows perSecond calls per second with a burst of one.
func NewRateLimitedProvider(next Provider, perSecond float64) *RateLimitedProvider {
	return &RateLimitedProvider{
		next:    next,
		limiter: rate.NewLimiter(rate.Limit(perSecond), 1),
	}
}

// Initialize waits for a token, then delegates. The probe embedding counts against the limit.
func (p *RateLimitedProvider) Initialize(ctx context.Context) error {
	if err := p.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit wait: %w", err)
	}

	return p.next.Initialize(ctx) //nolint:wrapcheck // decorator
}

// Embed waits for a token, then delegates.
func (p *RateLimitedProvider) Embed(ctx context.Context, text string) ([]float32, error) {
	if err := p.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit wait: %w", err)
	}

	return p.next.Embed(ctx, text) //nolint:wrapcheck // decorator
}

// Dimensions delegates to the wrapped provider.
func (p *RateLimitedProvider) Dimensions() int {
	return p.next.Dimensions()
}

// Name delegates to the wrapped provider.
func (p *RateLimitedProvider) Name() string {
	return p.next.Name()
}
