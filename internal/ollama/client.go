// Package ollama calls a local Ollama server for embeddings from a pretrained model.
package ollama

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"
)

var (
	// ErrEmptyInput is returned when CreateEmbedding is called with empty input.
	ErrEmptyInput = errors.New("ollama: input text is empty")
	// ErrNoEmbeddingInResponse is returned when the server answers without a vector.
	ErrNoEmbeddingInResponse = errors.New("ollama: no embedding in response")
)

const (
	// DefaultBaseURL is the address of a locally running Ollama server.
	DefaultBaseURL = "http://localhost:11434"
	// DefaultModel is a small general-purpose embedding model.
	DefaultModel = "nomic-embed-text"
)

// Options configures the Ollama client.
type Options struct {
	// BaseURL of the server (default: DefaultBaseURL).
	BaseURL string
	// Model to embed with (default: DefaultModel).
	Model string
	// RetryMax is the maximum number of retries (default: 3).
	RetryMax int
	// Timeout bounds one HTTP call (default: 5 minutes, pulls can be slow).
	Timeout time.Duration
}

// Client talks to the Ollama HTTP API.
type Client struct {
	baseURL    string
	model      string
	httpClient *retryablehttp.Client
}

// NewClient creates an Ollama client.
func NewClient(opts Options) *Client {
	if opts.BaseURL == "" {
		opts.BaseURL = DefaultBaseURL
	}

	if opts.Model == "" {
		opts.Model = DefaultModel
	}

	if opts.Timeout == 0 {
		opts.Timeout = 5 * time.Minute
	}

	if opts.RetryMax == 0 {
		opts.RetryMax = 3
	}

	retryClient := retryablehttp.NewClient()
	retryClient.RetryMax = opts.RetryMax
	retryClient.HTTPClient.Timeout = opts.Timeout
	retryClient.Logger = nil // we log at the engine layer

	return &Client{
		baseURL:    strings.TrimSuffix(opts.BaseURL, "/"),
		model:      opts.Model,
		httpClient: retryClient,
	}
}

type pullRequest struct {
	Model  string `json:"model"`
	Stream bool   `json:"stream"`
}

type pullResponse struct {
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

type embedRequest struct {
	Model string `json:"model"`
	Input string `json:"input"`
}

type embedResponse struct {
	Model      string      `json:"model"`
	Embeddings [][]float64 `json:"embeddings"`
}

// Warmup pulls the model so the first embedding does not pay the download.
// It is a no-op on the server when the model is already present.
func (c *Client) Warmup(ctx context.Context) error {
	var resp pullResponse
	if err := c.post(ctx, "/api/pull", pullRequest{Model: c.model, Stream: false}, &resp); err != nil {
		return fmt.Errorf("pull model %s: %w", c.model, err)
	}

	if resp.Error != "" {
		return fmt.Errorf("pull model %s: %s", c.model, resp.Error)
	}

	slog.Info("ollama: model ready", "model", c.model, "status", resp.Status)

	return nil
}

// CreateEmbedding returns the embedding vector for the given text.
func (c *Client) CreateEmbedding(ctx context.Context, input string) ([]float32, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return nil, ErrEmptyInput
	}

	var resp embedResponse
	if err := c.post(ctx, "/api/embed", embedRequest{Model: c.model, Input: input}, &resp); err != nil {
		return nil, fmt.Errorf("ollama embedding: %w", err)
	}

	if len(resp.Embeddings) == 0 || len(resp.Embeddings[0]) == 0 {
		return nil, ErrNoEmbeddingInResponse
	}

	emb := resp.Embeddings[0]
	out := make([]float32, len(emb))

	for i := range emb {
		out[i] = float32(emb[i])
	}

	return out, nil
}

func (c *Client) post(ctx context.Context, path string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("execute request: %w", err)
	}
	defer func() {
		if closeErr := resp.Body.Close(); closeErr != nil {
			slog.Warn("ollama: failed to close response body", "error", closeErr)
		}
	}()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response body: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(data)))
	}

	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}

	return nil
}
