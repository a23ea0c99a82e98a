package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/brandflow/internal/retrieval"
	"github.com/fyrsmithlabs/brandflow/internal/search"
	"github.com/fyrsmithlabs/brandflow/internal/stage"
	"github.com/fyrsmithlabs/brandflow/internal/transcript"
)

// systemPrompt renders the instructions, output contract and augmentation
// context for req.
func (g *Generator) systemPrompt(ctx context.Context, req stage.Request) (string, error) {
	var b strings.Builder
	b.WriteString(req.Instructions)

	if req.Schema != nil {
		doc, err := req.Schema.JSON()
		if err != nil {
			return "", fmt.Errorf("rendering schema %s: %w", req.Schema.Name(), err)
		}
		fmt.Fprintf(&b, "\n\nAntwoord uitsluitend met een JSON-object dat voldoet aan het schema %q:\n%s", req.Schema.Name(), doc)
	}

	query := requestText(req.Messages)
	for _, aug := range req.Augmentations {
		switch a := aug.(type) {
		case stage.Retrieval:
			section, err := g.retrieve(ctx, req.StageID, a, query)
			if err != nil {
				return "", err
			}
			b.WriteString(section)
		case stage.WebSearch:
			b.WriteString(g.webSearch(ctx, req.StageID, a, query))
		}
	}
	return b.String(), nil
}

// retrieve renders the top passages of the corpus. An unpopulated corpus
// contributes nothing; any other store failure aborts the call.
func (g *Generator) retrieve(ctx context.Context, stageID string, a stage.Retrieval, query string) (string, error) {
	if g.store == nil || query == "" {
		g.logger.Debug(ctx, "retrieval skipped", zap.String("stage", stageID), zap.String("corpus", a.CorpusID))
		return "", nil
	}
	passages, err := g.store.Search(ctx, a.CorpusID, query, g.topK)
	if errors.Is(err, retrieval.ErrCorpusNotFound) {
		g.logger.Warn(ctx, "corpus not populated", zap.String("stage", stageID), zap.String("corpus", a.CorpusID))
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("retrieving from %s: %w", a.CorpusID, err)
	}
	if len(passages) == 0 {
		return "", nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "\n\nRelevante documenten uit corpus %s:", a.CorpusID)
	for i, p := range passages {
		fmt.Fprintf(&b, "\n[%d] %s", i+1, strings.TrimSpace(p.Content))
	}
	return b.String(), nil
}

// webSearch renders search results. Search is best effort: a missing or
// failing searcher is logged and the stage runs on its own knowledge.
func (g *Generator) webSearch(ctx context.Context, stageID string, a stage.WebSearch, query string) string {
	var b strings.Builder
	if a.Country != "" {
		fmt.Fprintf(&b, "\n\nDe gebruiker bevindt zich in land %s.", a.Country)
	}
	if g.searcher == nil || query == "" {
		g.logger.Debug(ctx, "web search skipped", zap.String("stage", stageID))
		return b.String()
	}

	results, err := g.searcher.Search(ctx, search.Query{
		Text:           query,
		AllowedDomains: a.AllowedDomains,
		Country:        a.Country,
	})
	if err != nil {
		g.logger.Warn(ctx, "web search failed", zap.String("stage", stageID), zap.Error(err))
		return b.String()
	}
	if results = strings.TrimSpace(results); results != "" {
		fmt.Fprintf(&b, "\n\nZoekresultaten van het web:\n%s", results)
	}
	return b.String()
}

// requestText is the first user message, which holds the original request.
func requestText(msgs []transcript.Message) string {
	for _, m := range msgs {
		if m.Role() == transcript.RoleUser {
			return strings.TrimSpace(m.Text())
		}
	}
	return ""
}
