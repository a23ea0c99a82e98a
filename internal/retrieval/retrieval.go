// Package retrieval stores and searches the document corpora that
// generation stages are scoped to.
//
// Two stores are provided: ChromemStore keeps corpora in an embedded
// chromem-go database (in memory or persisted to disk), QdrantStore reads
// from a remote Qdrant instance through langchaingo. Each corpus id maps to
// one collection.
package retrieval

import (
	"context"
	"errors"
	"fmt"
	"regexp"
)

var (
	// ErrCorpusNotFound reports a search in a corpus that holds no documents.
	ErrCorpusNotFound = errors.New("corpus not found")
	// ErrInvalidCorpus reports a malformed corpus id.
	ErrInvalidCorpus = errors.New("invalid corpus id")
	// ErrEmptyDocuments reports an Add call without documents.
	ErrEmptyDocuments = errors.New("no documents")
	// ErrEmptyQuery reports a search without query text.
	ErrEmptyQuery = errors.New("empty query")
	// ErrInvalidConfig reports a store constructed without its dependencies.
	ErrInvalidConfig = errors.New("invalid retrieval configuration")
)

// Document is a unit of corpus content.
type Document struct {
	ID       string            `json:"id,omitempty"`
	Content  string            `json:"content"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// Passage is a search hit.
type Passage struct {
	ID       string            `json:"id"`
	Content  string            `json:"content"`
	Score    float32           `json:"score"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// Store adds documents to corpora and searches them.
type Store interface {
	Add(ctx context.Context, corpus string, docs []Document) ([]string, error)
	Search(ctx context.Context, corpus, query string, k int) ([]Passage, error)
	Close() error
}

// Embedder turns text into vectors. langchaingo's embeddings.Embedder
// satisfies it.
type Embedder interface {
	EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error)
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

var corpusPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{1,128}$`)

// ValidateCorpus checks that id is usable as a collection name.
func ValidateCorpus(id string) error {
	if !corpusPattern.MatchString(id) {
		return fmt.Errorf("%w: %q", ErrInvalidCorpus, id)
	}
	return nil
}

func validateSearch(corpus, query string, k int) error {
	if err := ValidateCorpus(corpus); err != nil {
		return err
	}
	if query == "" {
		return ErrEmptyQuery
	}
	if k <= 0 {
		return fmt.Errorf("k must be positive, got %d", k)
	}
	return nil
}
