package embeddings

import (
	"context"
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/singleflight"
)

// CacheMetrics records embedding cache lookups. Pass nil when metrics are disabled.
type CacheMetrics interface {
	RecordCacheLookup(ctx context.Context, hit bool)
}

// CachingProvider memoizes embeddings by exact text in an LRU, so a repeated word skips the
// model call. The engine embeds one word at a time; concurrent misses for the same text only
// happen when a Provider is shared by several callers, and those are coalesced with singleflight.
type CachingProvider struct {
	next    Provider
	lru     *lru.Cache[string, []float32]
	group   singleflight.Group
	metrics CacheMetrics
}

// Ensure CachingProvider implements Provider.
var _ Provider = (*CachingProvider)(nil)

// NewCachingProvider wraps next with a cache of at most maxEntries vectors.
func NewCachingProvider(next Provider, maxEntries int, metrics CacheMetrics) (*CachingProvider, error) {
	cache, err := lru.New[string, []float32](maxEntries)
	if err != nil {
		return nil, fmt.Errorf("create embedding cache: %w", err)
	}

	return &CachingProvider{next: next, lru: cache, metrics: metrics}, nil
}

// Initialize delegates to the wrapped provider.
func (p *CachingProvider) Initialize(ctx context.Context) error {
	return p.next.Initialize(ctx) //nolint:wrapcheck // decorator, wrapped provider already adds context
}

// Embed returns the cached vector for text or loads it from the wrapped provider.
// Failed loads are not cached.
func (p *CachingProvider) Embed(ctx context.Context, text string) ([]float32, error) {
	if v, ok := p.lru.Get(text); ok {
		p.record(ctx, true)

		return v, nil
	}

	p.record(ctx, false)

	val, err, _ := p.group.Do(text, func() (any, error) {
		loaded, loadErr := p.next.Embed(ctx, text)
		if loadErr != nil {
			return nil, loadErr
		}

		p.lru.Add(text, loaded)

		return loaded, nil
	})
	if err != nil {
		return nil, err //nolint:wrapcheck // decorator, wrapped provider already adds context
	}

	vec, _ := val.([]float32)

	return vec, nil
}

// Dimensions delegates to the wrapped provider.
func (p *CachingProvider) Dimensions() int {
	return p.next.Dimensions()
}

// Name delegates to the wrapped provider.
func (p *CachingProvider) Name() string {
	return p.next.Name()
}

// Len returns the number of cached vectors.
func (p *CachingProvider) Len() int {
	return p.lru.Len()
}

func (p *CachingProvider) record(ctx context.Context, hit bool) {
	if p.metrics != nil {
		p.metrics.RecordCacheLookup(ctx, hit)
	}
}
