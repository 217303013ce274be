package embeddings

import (
	"context"
	"errors"
	"fmt"

	"github.com/formbricks/wordsim/internal/googleai"
	"github.com/formbricks/wordsim/internal/ollama"
	"github.com/formbricks/wordsim/internal/openai"
)

// Provider names accepted by New.
const (
	ProviderHash   = "hash"
	ProviderOllama = "ollama"
	ProviderOpenAI = "openai"
	ProviderGoogle = "google"
)

// ErrUnsupportedProvider is returned by New for an unknown provider name.
var ErrUnsupportedProvider = errors.New("unsupported embedding provider")

// SupportedProviders lists the names accepted by New.
var SupportedProviders = map[string]struct{}{
	ProviderHash:   {},
	ProviderOllama: {},
	ProviderOpenAI: {},
	ProviderGoogle: {},
}

// Options selects and tunes the embedding provider.
type Options struct {
	Provider   string
	Model      string
	APIKey     string
	Dimensions int
	OllamaURL  string
	// RateLimit in calls per second; 0 disables limiting.
	RateLimit float64
	// CacheSize in entries; 0 disables caching.
	CacheSize int
}

// New builds the configured provider, wrapped with rate limiting and caching when enabled.
// The provider is not initialized.
func New(ctx context.Context, opts Options, cacheMetrics CacheMetrics) (Provider, error) {
	var provider Provider

	switch opts.Provider {
	case ProviderHash:
		provider = NewHashProvider(opts.Dimensions)
	case ProviderOllama:
		provider = NewClientProvider(ProviderOllama, ollama.NewClient(ollama.Options{
			BaseURL: opts.OllamaURL,
			Model:   opts.Model,
		}))
	case ProviderOpenAI:
		provider = NewClientProvider(ProviderOpenAI, openai.NewClient(opts.APIKey,
			openai.WithModel(opts.Model),
			openai.WithDimensions(opts.Dimensions),
		))
	case ProviderGoogle:
		client, err := googleai.NewClient(ctx, opts.APIKey,
			googleai.WithModel(opts.Model),
			googleai.WithDimensions(opts.Dimensions),
		)
		if err != nil {
			return nil, fmt.Errorf("create google embedding client: %w", err)
		}

		provider = NewClientProvider(ProviderGoogle, client)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedProvider, opts.Provider)
	}

	if opts.RateLimit > 0 {
		provider = NewRateLimitedProvider(provider, opts.RateLimit)
	}

	if opts.CacheSize > 0 {
		cached, err := NewCachingProvider(provider, opts.CacheSize, cacheMetrics)
		if err != nil {
			return nil, err
		}

		provider = cached
	}

	return provider, nil
}
