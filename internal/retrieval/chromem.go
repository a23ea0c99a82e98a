package retrieval

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	chromem "github.com/philippgille/chromem-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/brandflow/internal/config"
	"github.com/fyrsmithlabs/brandflow/internal/logging"
)

var chromemTracer = otel.Tracer("brandflow.retrieval.chromem")

// ChromemStore keeps corpora in an embedded chromem-go database.
type ChromemStore struct {
	db       *chromem.DB
	embedder Embedder
	logger   *logging.Logger
}

// NewChromemStore opens the database described by cfg. An empty cfg.Path
// keeps everything in memory.
func NewChromemStore(cfg config.ChromemConfig, embedder Embedder, logger *logging.Logger) (*ChromemStore, error) {
	if embedder == nil {
		return nil, fmt.Errorf("%w: embedder is required", ErrInvalidConfig)
	}
	if logger == nil {
		logger = logging.NewNop()
	}

	var db *chromem.DB
	if cfg.Path == "" {
		db = chromem.NewDB()
	} else {
		path, err := expandPath(cfg.Path)
		if err != nil {
			return nil, fmt.Errorf("expanding path: %w", err)
		}
		if err := os.MkdirAll(path, 0o700); err != nil {
			return nil, fmt.Errorf("creating directory %s: %w", path, err)
		}
		db, err = chromem.NewPersistentDB(path, cfg.Compress)
		if err != nil {
			return nil, fmt.Errorf("creating chromem DB: %w", err)
		}
	}

	return &ChromemStore{db: db, embedder: embedder, logger: logger.Named("retrieval")}, nil
}

func expandPath(path string) (string, error) {
	if rest, ok := strings.CutPrefix(path, "~/"); ok {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		return filepath.Join(home, rest), nil
	}
	return path, nil
}

// embeddingFunc must always be passed to chromem; otherwise it falls back
// to its own OpenAI default.
func (s *ChromemStore) embeddingFunc() chromem.EmbeddingFunc {
	return func(ctx context.Context, text string) ([]float32, error) {
		return s.embedder.EmbedQuery(ctx, text)
	}
}

// Add embeds docs and stores them in corpus, creating it when needed.
// Documents without an id get a random one.
func (s *ChromemStore) Add(ctx context.Context, corpus string, docs []Document) ([]string, error) {
	ctx, span := chromemTracer.Start(ctx, "ChromemStore.Add")
	defer span.End()
	span.SetAttributes(attribute.String("corpus", corpus), attribute.Int("document_count", len(docs)))

	if err := ValidateCorpus(corpus); err != nil {
		return nil, err
	}
	if len(docs) == 0 {
		return nil, ErrEmptyDocuments
	}

	collection, err := s.db.GetOrCreateCollection(corpus, nil, s.embeddingFunc())
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("getting/creating corpus %s: %w", corpus, err)
	}

	texts := make([]string, len(docs))
	for i, d := range docs {
		texts[i] = d.Content
	}
	vectors, err := s.embedder.EmbedDocuments(ctx, texts)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("embedding documents: %w", err)
	}
	if len(vectors) != len(docs) {
		return nil, fmt.Errorf("embedder returned %d vectors for %d documents", len(vectors), len(docs))
	}

	ids := make([]string, len(docs))
	chromemDocs := make([]chromem.Document, len(docs))
	for i, d := range docs {
		ids[i] = d.ID
		if ids[i] == "" {
			ids[i] = uuid.NewString()
		}
		chromemDocs[i] = chromem.Document{
			ID:        ids[i],
			Content:   d.Content,
			Metadata:  d.Metadata,
			Embedding: vectors[i],
		}
	}

	// Embeddings are precomputed, so one worker is enough.
	if err := collection.AddDocuments(ctx, chromemDocs, 1); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("adding documents: %w", err)
	}

	s.logger.Debug(ctx, "added documents", zap.String("corpus", corpus), zap.Int("count", len(docs)))
	return ids, nil
}

// Search returns up to k passages from corpus ordered by similarity.
func (s *ChromemStore) Search(ctx context.Context, corpus, query string, k int) ([]Passage, error) {
	ctx, span := chromemTracer.Start(ctx, "ChromemStore.Search")
	defer span.End()
	span.SetAttributes(attribute.String("corpus", corpus), attribute.Int("k", k))

	if err := validateSearch(corpus, query, k); err != nil {
		return nil, err
	}

	collection := s.db.GetCollection(corpus, s.embeddingFunc())
	if collection == nil {
		return nil, fmt.Errorf("%w: %s", ErrCorpusNotFound, corpus)
	}

	// chromem requires nResults <= document count.
	count := collection.Count()
	if count == 0 {
		return []Passage{}, nil
	}
	if k > count {
		k = count
	}

	results, err := collection.Query(ctx, query, k, nil, nil)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("querying corpus %s: %w", corpus, err)
	}

	passages := make([]Passage, len(results))
	for i, r := range results {
		passages[i] = Passage{ID: r.ID, Content: r.Content, Score: r.Similarity, Metadata: r.Metadata}
	}
	span.SetAttributes(attribute.Int("results_count", len(passages)))
	return passages, nil
}

// Count returns the number of documents in corpus, or 0.
func (s *ChromemStore) Count(corpus string) int {
	c := s.db.GetCollection(corpus, s.embeddingFunc())
	if c == nil {
		return 0
	}
	return c.Count()
}

// Close is a no-op; chromem persists on write.
func (s *ChromemStore) Close() error {
	return nil
}
