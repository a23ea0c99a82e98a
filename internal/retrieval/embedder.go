package retrieval

import (
	"fmt"

	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms/openai"

	"github.com/fyrsmithlabs/brandflow/internal/config"
	"github.com/fyrsmithlabs/brandflow/internal/logging"
)

// NewEmbedder builds an embedder for an OpenAI-compatible endpoint.
func NewEmbedder(cfg config.EmbeddingsConfig) (embeddings.Embedder, error) {
	opts := []openai.Option{
		openai.WithBaseURL(cfg.BaseURL),
		openai.WithEmbeddingModel(cfg.Model),
	}
	if cfg.APIKey.IsSet() {
		opts = append(opts, openai.WithToken(cfg.APIKey.Value()))
	}
	client, err := openai.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("creating embeddings client: %w", err)
	}
	embedder, err := embeddings.NewEmbedder(client)
	if err != nil {
		return nil, fmt.Errorf("creating embedder: %w", err)
	}
	return embedder, nil
}

// NewStore builds the store selected by cfg.Provider.
func NewStore(cfg config.RetrievalConfig, embedder embeddings.Embedder, logger *logging.Logger) (Store, error) {
	switch cfg.Provider {
	case config.ProviderChromem, "":
		return NewChromemStore(cfg.Chromem, embedder, logger)
	case config.ProviderQdrant:
		store, err := NewQdrantStore(cfg.Qdrant, embedder, logger)
		if err != nil {
			return nil, err
		}
		if cfg.Qdrant.EnsureCollections {
			m, err := NewCollectionManager(cfg.Qdrant, logger)
			if err != nil {
				return nil, err
			}
			store.WithCollections(m)
		}
		return store, nil
	default:
		return nil, fmt.Errorf("%w: unknown provider %q", ErrInvalidConfig, cfg.Provider)
	}
}
