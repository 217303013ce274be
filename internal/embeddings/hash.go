package embeddings

import (
	"context"
	"crypto/sha256"
	"strings"
)

// DefaultHashDimensions matches the Universal Sentence Encoder output size.
const DefaultHashDimensions = 512

// HashProvider generates deterministic embeddings from the SHA-256 of the input text.
// It needs no model and is used offline, in tests, and for demos. Identical texts map
// to identical vectors; different texts map to unrelated ones.
type HashProvider struct {
	dimensions int
}

// Ensure HashProvider implements Provider.
var _ Provider = (*HashProvider)(nil)

// NewHashProvider creates a hash provider. Non-positive dimensions use DefaultHashDimensions.
func NewHashProvider(dimensions int) *HashProvider {
	if dimensions <= 0 {
		dimensions = DefaultHashDimensions
	}

	return &HashProvider{dimensions: dimensions}
}

// Initialize is a no-op.
func (p *HashProvider) Initialize(_ context.Context) error {
	return nil
}

// Embed generates a deterministic embedding based on the text hash.
func (p *HashProvider) Embed(ctx context.Context, text string) ([]float32, error) {
	if strings.TrimSpace(text) == "" {
		return nil, ErrEmptyInput
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	return p.generate(text), nil
}

// Dimensions returns the configured vector length.
func (p *HashProvider) Dimensions() int {
	return p.dimensions
}

// Name returns "hash".
func (p *HashProvider) Name() string {
	return "hash"
}

func (p *HashProvider) generate(text string) []float32 {
	hash := sha256.Sum256([]byte(text))
	embedding := make([]float32, p.dimensions)

	for i := range embedding {
		// Cycle through the hash bytes, rehashing every pass so long vectors don't repeat.
		if i > 0 && i%len(hash) == 0 {
			hash = sha256.Sum256(hash[:])
		}

		// Map the byte to [-1, 1]
		embedding[i] = (float32(hash[i%len(hash)]) / 127.5) - 1.0
	}

	return embedding
}
