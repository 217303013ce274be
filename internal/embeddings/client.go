// Package embeddings provides the embedding providers used by the similarity engine.
package embeddings

import (
	"context"
	"errors"
)

var (
	// ErrEmptyInput is returned when Embed is called with empty input.
	ErrEmptyInput = errors.New("embeddings: input text is empty")
	// ErrNotInitialized is returned when Embed is called before Initialize succeeded.
	ErrNotInitialized = errors.New("embeddings: provider not initialized")
	// ErrEmptyEmbedding is returned when a model produces a zero-length vector.
	ErrEmptyEmbedding = errors.New("embeddings: model returned an empty vector")
)

// Provider turns text into embedding vectors.
//
// Initialize is called exactly once before any Embed call and may be slow (model
// download or load). A failed Initialize leaves the provider unusable. Embed failures
// affect only the call that returned them.
type Provider interface {
	Initialize(ctx context.Context) error
	Embed(ctx context.Context, text string) ([]float32, error)
	// Dimensions reports the vector length D. Valid after Initialize succeeds.
	Dimensions() int
	// Name identifies the provider in logs and metrics.
	Name() string
}

// Client generates embedding vectors for text.
// Implemented by the model-specific clients (OpenAI, Google Gemini, Ollama).
type Client interface {
	CreateEmbedding(ctx context.Context, input string) ([]float32, error)
}

// Warmer is implemented by clients that need a one-time preparation step before the
// first embedding, such as pulling a local model.
type Warmer interface {
	Warmup(ctx context.Context) error
}
