// Package config provides application configuration loaded from environment variables.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Embedding provider names accepted by EMBEDDING_PROVIDER.
const (
	ProviderHash   = "hash"
	ProviderOllama = "ollama"
	ProviderOpenAI = "openai"
	ProviderGoogle = "google"
)

var supportedProviders = []string{ProviderHash, ProviderOllama, ProviderOpenAI, ProviderGoogle}

// Config holds all application configuration.
type Config struct {
	Port     string
	APIKey   string
	LogLevel string

	// Embedding provider
	EmbeddingProvider       string
	EmbeddingModel          string
	EmbeddingProviderAPIKey string
	EmbeddingDimensions     int
	OllamaURL               string
	EmbeddingTimeout        time.Duration // per word; 0 = none
	EmbeddingRateLimit      float64       // requests per second; 0 = unlimited
	EmbeddingCacheSize      int           // LRU entries; 0 disables the cache

	EngineOutboxBuffer  int
	MaxRequestBodyBytes int64

	MetricsEnabled     bool
	OtelTracesExporter string // "", "stdout" or "otlp"

	// Optional outbound webhook for every engine message
	WebhookURL    string
	WebhookSecret string

	ShutdownTimeout time.Duration
}

// getEnv retrieves an environment variable or returns a default value.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt retrieves an environment variable as an integer or returns a default value.
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvAsFloat retrieves an environment variable as a float64 or returns a default value.
func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvAsBool retrieves an environment variable as a bool or returns a default value.
func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvAsDuration retrieves an environment variable as a time.Duration (e.g. "30s") or returns a default value.
func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := time.ParseDuration(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

// Load reads configuration from environment variables and returns a Config struct.
// It automatically loads .env file if it exists.
// Returns default values for any missing environment variables.
func Load() (*Config, error) {
	// Load .env file if it exists. Skip logging when absent (e.g. env from secrets/parameter store).
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		slog.Warn("Failed to load .env file", "error", err)
	}

	cfg := &Config{
		Port:     getEnv("PORT", "8080"),
		APIKey:   os.Getenv("API_KEY"),
		LogLevel: getEnv("LOG_LEVEL", "info"),

		EmbeddingProvider:       strings.ToLower(getEnv("EMBEDDING_PROVIDER", ProviderOllama)),
		EmbeddingModel:          os.Getenv("EMBEDDING_MODEL"),
		EmbeddingProviderAPIKey: os.Getenv("EMBEDDING_PROVIDER_API_KEY"),
		EmbeddingDimensions:     getEnvAsInt("EMBEDDING_DIMENSIONS", 0),
		OllamaURL:               getEnv("OLLAMA_URL", "http://localhost:11434"),
		EmbeddingTimeout:        getEnvAsDuration("EMBEDDING_TIMEOUT", 0),
		EmbeddingRateLimit:      getEnvAsFloat("EMBEDDING_RATE_LIMIT", 0),
		EmbeddingCacheSize:      getEnvAsInt("EMBEDDING_CACHE_SIZE", 1024),

		EngineOutboxBuffer:  getEnvAsInt("ENGINE_OUTBOX_BUFFER", 256),
		MaxRequestBodyBytes: int64(getEnvAsInt("MAX_REQUEST_BODY_BYTES", 64<<10)),

		MetricsEnabled:     getEnvAsBool("METRICS_ENABLED", true),
		OtelTracesExporter: strings.ToLower(os.Getenv("OTEL_TRACES_EXPORTER")),

		WebhookURL:    os.Getenv("WEBHOOK_URL"),
		WebhookSecret: os.Getenv("WEBHOOK_SECRET"),

		ShutdownTimeout: getEnvAsDuration("SHUTDOWN_TIMEOUT", 30*time.Second),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	if !slices.Contains(supportedProviders, c.EmbeddingProvider) {
		return fmt.Errorf("EMBEDDING_PROVIDER %q is not supported (use one of %s)",
			c.EmbeddingProvider, strings.Join(supportedProviders, ", "))
	}

	if (c.EmbeddingProvider == ProviderOpenAI || c.EmbeddingProvider == ProviderGoogle) && c.EmbeddingProviderAPIKey == "" {
		return fmt.Errorf("EMBEDDING_PROVIDER_API_KEY is required for provider %s", c.EmbeddingProvider)
	}

	if c.EmbeddingDimensions < 0 {
		return errors.New("EMBEDDING_DIMENSIONS must not be negative")
	}

	if c.EmbeddingTimeout < 0 {
		return errors.New("EMBEDDING_TIMEOUT must not be negative")
	}

	if c.EmbeddingRateLimit < 0 {
		return errors.New("EMBEDDING_RATE_LIMIT must not be negative")
	}

	if c.EmbeddingCacheSize < 0 {
		return errors.New("EMBEDDING_CACHE_SIZE must not be negative")
	}

	if c.EngineOutboxBuffer < 0 {
		return errors.New("ENGINE_OUTBOX_BUFFER must not be negative")
	}

	if c.MaxRequestBodyBytes <= 0 {
		return errors.New("MAX_REQUEST_BODY_BYTES must be a positive integer")
	}

	switch c.OtelTracesExporter {
	case "", "stdout", "otlp":
	default:
		return fmt.Errorf("OTEL_TRACES_EXPORTER %q is not supported (use stdout or otlp)", c.OtelTracesExporter)
	}

	if c.WebhookURL != "" && c.WebhookSecret == "" {
		return errors.New("WEBHOOK_SECRET is required when WEBHOOK_URL is set")
	}

	if c.ShutdownTimeout <= 0 {
		return errors.New("SHUTDOWN_TIMEOUT must be positive")
	}

	return nil
}
