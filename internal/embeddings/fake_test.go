package embeddings

import (
	"context"
	"sync"
	"sync/atomic"
)

// countingProvider wraps HashProvider and counts Embed calls.
type countingProvider struct {
	*HashProvider

	calls atomic.Int32
	fail  map[string]error
	gate  chan struct{} // when non-nil, Embed waits for it to close
}

func newCountingProvider() *countingProvider {
	return &countingProvider{HashProvider: NewHashProvider(8), fail: map[string]error{}}
}

func (p *countingProvider) Embed(ctx context.Context, text string) ([]float32, error) {
	p.calls.Add(1)

	if p.gate != nil {
		<-p.gate
	}

	if err, ok := p.fail[text]; ok {
		return nil, err
	}

	return p.HashProvider.Embed(ctx, text)
}

type recordingCacheMetrics struct {
	mu     sync.Mutex
	hits   int
	misses int
}

func (m *recordingCacheMetrics) missCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.misses
}

func (m *recordingCacheMetrics) RecordCacheLookup(_ context.Context, hit bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if hit {
		m.hits++
	} else {
		m.misses++
	}
}
