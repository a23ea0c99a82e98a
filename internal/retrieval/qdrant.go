package retrieval

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"

	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/schema"
	"github.com/tmc/langchaingo/vectorstores/qdrant"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/brandflow/internal/config"
	"github.com/fyrsmithlabs/brandflow/internal/logging"
)

var qdrantTracer = otel.Tracer("brandflow.retrieval.qdrant")

// metadataID is the payload key holding a caller-supplied document id.
const metadataID = "doc_id"

// QdrantStore searches corpora held in Qdrant collections, one collection
// per corpus id. langchaingo does not create collections; a CollectionManager
// provisions them on first write. Searching a corpus without a collection
// returns ErrCorpusNotFound.
type QdrantStore struct {
	url      url.URL
	apiKey   string
	embedder embeddings.Embedder
	logger   *logging.Logger
	// collections provisions missing corpora before writes; nil when
	// collections are managed out of band.
	collections *CollectionManager

	mu     sync.Mutex
	stores map[string]*qdrant.Store
}

// NewQdrantStore validates cfg and returns a store. No connection is made
// until the first Add or Search.
func NewQdrantStore(cfg config.QdrantConfig, embedder embeddings.Embedder, logger *logging.Logger) (*QdrantStore, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("%w: qdrant url is required", ErrInvalidConfig)
	}
	if embedder == nil {
		return nil, fmt.Errorf("%w: embedder is required", ErrInvalidConfig)
	}
	u, err := url.Parse(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("invalid qdrant url %q: %w", cfg.URL, err)
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	return &QdrantStore{
		url:      *u,
		apiKey:   cfg.APIKey.Value(),
		embedder: embedder,
		logger:   logger.Named("retrieval"),
		stores:   make(map[string]*qdrant.Store),
	}, nil
}

func (s *QdrantStore) collection(corpus string) (*qdrant.Store, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if st, ok := s.stores[corpus]; ok {
		return st, nil
	}
	opts := []qdrant.Option{
		qdrant.WithURL(s.url),
		qdrant.WithCollectionName(corpus),
		qdrant.WithEmbedder(s.embedder),
	}
	if s.apiKey != "" {
		opts = append(opts, qdrant.WithAPIKey(s.apiKey))
	}
	st, err := qdrant.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("creating qdrant store for %s: %w", corpus, err)
	}
	s.stores[corpus] = &st
	return &st, nil
}

// Add embeds and upserts docs into the corpus collection. Qdrant assigns
// point ids; a caller-supplied Document.ID is kept in the payload.
func (s *QdrantStore) Add(ctx context.Context, corpus string, docs []Document) ([]string, error) {
	ctx, span := qdrantTracer.Start(ctx, "QdrantStore.Add")
	defer span.End()
	span.SetAttributes(attribute.String("corpus", corpus), attribute.Int("document_count", len(docs)))

	if err := ValidateCorpus(corpus); err != nil {
		return nil, err
	}
	if len(docs) == 0 {
		return nil, ErrEmptyDocuments
	}
	if s.collections != nil {
		if err := s.collections.Ensure(ctx, corpus); err != nil {
			span.RecordError(err)
			return nil, err
		}
	}
	st, err := s.collection(corpus)
	if err != nil {
		return nil, err
	}

	ids, err := st.AddDocuments(ctx, toSchemaDocuments(docs))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("adding documents to %s: %w", corpus, err)
	}
	s.logger.Debug(ctx, "added documents", zap.String("corpus", corpus), zap.Int("count", len(ids)))
	return ids, nil
}

// Search returns up to k passages from the corpus collection.
func (s *QdrantStore) Search(ctx context.Context, corpus, query string, k int) ([]Passage, error) {
	ctx, span := qdrantTracer.Start(ctx, "QdrantStore.Search")
	defer span.End()
	span.SetAttributes(attribute.String("corpus", corpus), attribute.Int("k", k))

	if err := validateSearch(corpus, query, k); err != nil {
		return nil, err
	}
	exists, err := s.corpusExists(ctx, corpus)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	if !exists {
		return nil, fmt.Errorf("%w: %s", ErrCorpusNotFound, corpus)
	}
	st, err := s.collection(corpus)
	if err != nil {
		return nil, err
	}

	docs, err := st.SimilaritySearch(ctx, query, k)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("searching %s: %w", corpus, err)
	}
	passages := fromSchemaDocuments(docs)
	span.SetAttributes(attribute.Int("results_count", len(passages)))
	return passages, nil
}

// corpusExists asks the collection manager when one is set, otherwise the
// REST collection endpoint.
func (s *QdrantStore) corpusExists(ctx context.Context, corpus string) (bool, error) {
	if s.collections != nil {
		return s.collections.Exists(ctx, corpus)
	}

	body, status, err := qdrant.DoRequest(ctx, *s.url.JoinPath("collections", corpus), s.apiKey, http.MethodGet, nil)
	if err != nil {
		return false, fmt.Errorf("checking collection %s: %w", corpus, err)
	}
	defer body.Close()
	_, _ = io.Copy(io.Discard, body)

	switch status {
	case http.StatusOK:
		return true, nil
	case http.StatusNotFound:
		return false, nil
	default:
		return false, fmt.Errorf("checking collection %s: unexpected status %d", corpus, status)
	}
}

// WithCollections makes Add provision missing collections through m.
func (s *QdrantStore) WithCollections(m *CollectionManager) *QdrantStore {
	s.collections = m
	return s
}

// Health checks the Qdrant gRPC endpoint when a collection manager is set.
func (s *QdrantStore) Health(ctx context.Context) error {
	if s.collections == nil {
		return nil
	}
	return s.collections.Health(ctx)
}

// Close closes the collection manager. The langchaingo REST client holds no
// persistent connection.
func (s *QdrantStore) Close() error {
	if s.collections != nil {
		return s.collections.Close()
	}
	return nil
}

func toSchemaDocuments(docs []Document) []schema.Document {
	out := make([]schema.Document, len(docs))
	for i, d := range docs {
		meta := make(map[string]any, len(d.Metadata)+1)
		for k, v := range d.Metadata {
			meta[k] = v
		}
		if d.ID != "" {
			meta[metadataID] = d.ID
		}
		out[i] = schema.Document{PageContent: d.Content, Metadata: meta}
	}
	return out
}

func fromSchemaDocuments(docs []schema.Document) []Passage {
	out := make([]Passage, len(docs))
	for i, d := range docs {
		meta := make(map[string]string, len(d.Metadata))
		for k, v := range d.Metadata {
			if s, ok := v.(string); ok {
				meta[k] = s
			} else {
				meta[k] = fmt.Sprint(v)
			}
		}
		id := meta[metadataID]
		delete(meta, metadataID)
		out[i] = Passage{ID: id, Content: d.PageContent, Score: d.Score, Metadata: meta}
	}
	return out
}
