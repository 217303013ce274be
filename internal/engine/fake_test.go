package engine

import (
	"context"
	"sync"
	"time"

	"github.com/formbricks/wordsim/internal/embeddings"
)

// fakeProvider wraps the hash provider with controllable init, per-word latency, failures and panics.
type fakeProvider struct {
	*embeddings.HashProvider

	initGate chan struct{} // when non-nil, Initialize waits for it to close
	initErr  error

	mu      sync.Mutex
	delays  map[string]time.Duration
	fails   map[string]error
	panics  map[string]string
	vectors map[string][]float32
	calls   []string
}

func newFakeProvider() *fakeProvider {
	return &fakeProvider{
		HashProvider: embeddings.NewHashProvider(16),
		delays:       map[string]time.Duration{},
		fails:        map[string]error{},
		panics:       map[string]string{},
		vectors:      map[string][]float32{},
	}
}

func (p *fakeProvider) Initialize(ctx context.Context) error {
	if p.initGate != nil {
		select {
		case <-p.initGate:
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	if p.initErr != nil {
		return p.initErr
	}

	return p.HashProvider.Initialize(ctx)
}

func (p *fakeProvider) Embed(ctx context.Context, text string) ([]float32, error) {
	p.mu.Lock()
	p.calls = append(p.calls, text)
	delay := p.delays[text]
	err := p.fails[text]
	panicMsg := p.panics[text]
	vector, fixed := p.vectors[text]
	p.mu.Unlock()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	if panicMsg != "" {
		panic(panicMsg)
	}

	if err != nil {
		return nil, err
	}

	if fixed {
		return vector, nil
	}

	return p.HashProvider.Embed(ctx, text)
}

func (p *fakeProvider) Name() string { return "fake" }

func (p *fakeProvider) embedCalls() []string {
	p.mu.Lock()
	defer p.mu.Unlock()

	return append([]string(nil), p.calls...)
}

