package embeddings

import (
	"context"
	"fmt"
	"strings"
	"sync/atomic"
)

// probeText is embedded once during Initialize to learn the model's vector length.
const probeText = "hello"

// ClientProvider adapts a model Client into a Provider. Initialize runs the client's
// warmup (when it has one) and a probe embedding that fixes the dimension D.
type ClientProvider struct {
	name       string
	client     Client
	dimensions atomic.Int64
}

// Ensure ClientProvider implements Provider.
var _ Provider = (*ClientProvider)(nil)

// NewClientProvider wraps client under the given provider name.
func NewClientProvider(name string, client Client) *ClientProvider {
	return &ClientProvider{name: name, client: client}
}

// Initialize prepares the model and probes its dimension.
func (p *ClientProvider) Initialize(ctx context.Context) error {
	if w, ok := p.client.(Warmer); ok {
		if err := w.Warmup(ctx); err != nil {
			return fmt.Errorf("%s warmup: %w", p.name, err)
		}
	}

	probe, err := p.client.CreateEmbedding(ctx, probeText)
	if err != nil {
		return fmt.Errorf("%s probe embedding: %w", p.name, err)
	}

	if len(probe) == 0 {
		return fmt.Errorf("%s probe embedding: %w", p.name, ErrEmptyEmbedding)
	}

	p.dimensions.Store(int64(len(probe)))

	return nil
}

// Embed returns the embedding for text.
func (p *ClientProvider) Embed(ctx context.Context, text string) ([]float32, error) {
	if p.dimensions.Load() == 0 {
		return nil, ErrNotInitialized
	}

	if strings.TrimSpace(text) == "" {
		return nil, ErrEmptyInput
	}

	emb, err := p.client.CreateEmbedding(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("%s embed: %w", p.name, err)
	}

	return emb, nil
}

// Dimensions returns the probed vector length, or 0 before Initialize.
func (p *ClientProvider) Dimensions() int {
	return int(p.dimensions.Load())
}

// Name returns the provider name.
func (p *ClientProvider) Name() string {
	return p.name
}
