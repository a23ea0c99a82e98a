// Package config provides configuration loading for brandflow.
//
// Configuration is read from an optional YAML file and overridden by
// BRANDFLOW_* environment variables. Sections owned by other packages
// (logging, telemetry, personas) are decoded through Source.Unmarshal.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"time"
)

// Validation errors.
var (
	ErrInvalidPort     = errors.New("invalid port")
	ErrInvalidProvider = errors.New("invalid retrieval provider")
	ErrMissingURL      = errors.New("url is required")
	ErrInvalidLimit    = errors.New("invalid rate limit")
)

// Retrieval providers.
const (
	ProviderChromem = "chromem"
	ProviderQdrant  = "qdrant"
)

// Config holds the brandflow application configuration.
type Config struct {
	Server    ServerConfig    `koanf:"server"`
	LLM       LLMConfig       `koanf:"llm"`
	Retrieval RetrievalConfig `koanf:"retrieval"`
	Search    SearchConfig    `koanf:"search"`
	Events    EventsConfig    `koanf:"events"`
	Workflow  WorkflowConfig  `koanf:"workflow"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Host            string   `koanf:"http_host"`
	Port            int      `koanf:"http_port"`
	ShutdownTimeout Duration `koanf:"shutdown_timeout"`
	// RequestTimeout bounds one workflow execution served over HTTP.
	RequestTimeout Duration `koanf:"request_timeout"`
}

// LLMConfig configures the OpenAI-compatible text-generation endpoint.
type LLMConfig struct {
	BaseURL   string   `koanf:"base_url"`
	APIKey    Secret   `koanf:"api_key"`
	Model     string   `koanf:"model"`
	Timeout   Duration `koanf:"timeout"`
	RateLimit float64  `koanf:"rate_limit"` // requests per second
	Burst     int      `koanf:"burst"`
	MaxTokens int      `koanf:"max_tokens"`
}

// RetrievalConfig selects and configures the corpus store.
type RetrievalConfig struct {
	Provider   string           `koanf:"provider"`
	TopK       int              `koanf:"top_k"`
	Chromem    ChromemConfig    `koanf:"chromem"`
	Qdrant     QdrantConfig     `koanf:"qdrant"`
	Embeddings EmbeddingsConfig `koanf:"embeddings"`
}

// ChromemConfig configures the embedded chromem-go store.
// An empty Path keeps the store in memory.
type ChromemConfig struct {
	Path     string `koanf:"path"`
	Compress bool   `koanf:"compress"`
}

// QdrantConfig configures the remote Qdrant store. URL addresses the REST
// API used for search; collection management goes over gRPC on GRPCPort of
// the same host.
type QdrantConfig struct {
	URL        string `koanf:"url"`
	APIKey     Secret `koanf:"api_key"`
	GRPCPort   int    `koanf:"grpc_port"`
	UseTLS     bool   `koanf:"use_tls"`
	VectorSize uint64 `koanf:"vector_size"`
	// EnsureCollections creates missing corpus collections on first write.
	EnsureCollections bool `koanf:"ensure_collections"`
}

// EmbeddingsConfig configures the embedding endpoint used for corpora.
type EmbeddingsConfig struct {
	BaseURL string `koanf:"base_url"`
	APIKey  Secret `koanf:"api_key"`
	Model   string `koanf:"model"`
}

// SearchConfig configures the web search augmentation.
type SearchConfig struct {
	Enabled    bool   `koanf:"enabled"`
	MaxResults int    `koanf:"max_results"`
	UserAgent  string `koanf:"user_agent"`
}

// EventsConfig configures execution lifecycle events on NATS.
type EventsConfig struct {
	Enabled       bool   `koanf:"enabled"`
	URL           string `koanf:"url"`
	SubjectPrefix string `koanf:"subject_prefix"`
}

// WorkflowConfig tunes the dispatch engine.
type WorkflowConfig struct {
	StageSpans    bool `koanf:"stage_spans"`
	MaxInputBytes int  `koanf:"max_input_bytes"`
}

// Default returns the configuration used when no file or env overrides exist.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            "localhost",
			Port:            9191,
			ShutdownTimeout: Duration(10 * time.Second),
			RequestTimeout:  Duration(10 * time.Minute),
		},
		LLM: LLMConfig{
			BaseURL:   "https://api.openai.com/v1",
			Model:     "gpt-5",
			Timeout:   Duration(5 * time.Minute),
			RateLimit: 2,
			Burst:     4,
			MaxTokens: 16384,
		},
		Retrieval: RetrievalConfig{
			Provider: ProviderChromem,
			TopK:     5,
			Qdrant: QdrantConfig{
				URL:               "http://localhost:6333",
				GRPCPort:          6334,
				VectorSize:        1536,
				EnsureCollections: true,
			},
			Embeddings: EmbeddingsConfig{
				BaseURL: "https://api.openai.com/v1",
				Model:   "text-embedding-3-small",
			},
		},
		Search: SearchConfig{
			Enabled:    false,
			MaxResults: 5,
			UserAgent:  "brandflow/1.0",
		},
		Events: EventsConfig{
			Enabled:       false,
			URL:           "nats://127.0.0.1:4222",
			SubjectPrefix: "brandflow.executions",
		},
		Workflow: WorkflowConfig{
			StageSpans:    true,
			MaxInputBytes: 64 * 1024,
		},
	}
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("%w: %d", ErrInvalidPort, c.Server.Port)
	}
	if c.Server.ShutdownTimeout.Duration() <= 0 {
		return fmt.Errorf("server.shutdown_timeout must be positive")
	}

	if c.LLM.BaseURL == "" {
		return fmt.Errorf("llm.base_url: %w", ErrMissingURL)
	}
	if _, err := url.Parse(c.LLM.BaseURL); err != nil {
		return fmt.Errorf("llm.base_url: %w", err)
	}
	if c.LLM.Model == "" {
		return fmt.Errorf("llm.model is required")
	}
	if c.LLM.RateLimit <= 0 || c.LLM.Burst <= 0 {
		return fmt.Errorf("%w: rate_limit=%v burst=%d", ErrInvalidLimit, c.LLM.RateLimit, c.LLM.Burst)
	}

	switch c.Retrieval.Provider {
	case ProviderChromem:
	case ProviderQdrant:
		if c.Retrieval.Qdrant.URL == "" {
			return fmt.Errorf("retrieval.qdrant.url: %w", ErrMissingURL)
		}
		if c.Retrieval.Qdrant.GRPCPort <= 0 || c.Retrieval.Qdrant.GRPCPort > 65535 {
			return fmt.Errorf("%w: retrieval.qdrant.grpc_port %d", ErrInvalidPort, c.Retrieval.Qdrant.GRPCPort)
		}
		if c.Retrieval.Qdrant.EnsureCollections && c.Retrieval.Qdrant.VectorSize == 0 {
			return fmt.Errorf("retrieval.qdrant.vector_size is required when ensure_collections is set")
		}
	default:
		return fmt.Errorf("%w: %q (want %q or %q)", ErrInvalidProvider, c.Retrieval.Provider, ProviderChromem, ProviderQdrant)
	}
	if c.Retrieval.TopK <= 0 {
		return fmt.Errorf("retrieval.top_k must be positive, got %d", c.Retrieval.TopK)
	}

	if c.Search.Enabled && c.Search.MaxResults <= 0 {
		return fmt.Errorf("search.max_results must be positive when search is enabled")
	}
	if c.Events.Enabled && c.Events.URL == "" {
		return fmt.Errorf("events.url: %w", ErrMissingURL)
	}
	if c.Workflow.MaxInputBytes <= 0 {
		return fmt.Errorf("workflow.max_input_bytes must be positive")
	}

	return nil
}
