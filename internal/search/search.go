// Package search provides the web search augmentation used by generation
// stages that research their subject online.
package search

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/tmc/langchaingo/tools/duckduckgo"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/fyrsmithlabs/brandflow/internal/config"
)

// ErrEmptyQuery reports a search without query text.
var ErrEmptyQuery = errors.New("empty search query")

// maxQueryLen bounds the free text part of a query.
const maxQueryLen = 400

var tracer = otel.Tracer("brandflow.search")

// Query describes one web search.
type Query struct {
	Text string
	// AllowedDomains restricts results to these sites when non-empty.
	AllowedDomains []string
	// Country is an ISO 3166 hint for the user's location.
	Country string
}

// Searcher runs a web search and returns a textual digest of the results.
type Searcher interface {
	Search(ctx context.Context, q Query) (string, error)
}

// SearcherFunc adapts a function to Searcher.
type SearcherFunc func(ctx context.Context, q Query) (string, error)

// Search implements Searcher.
func (f SearcherFunc) Search(ctx context.Context, q Query) (string, error) {
	return f(ctx, q)
}

// Tool is the subset of a langchaingo tool used here.
type Tool interface {
	Call(ctx context.Context, input string) (string, error)
}

// ToolSearcher runs queries through a langchaingo tool.
type ToolSearcher struct {
	tool Tool
}

// NewToolSearcher wraps tool.
func NewToolSearcher(tool Tool) *ToolSearcher {
	return &ToolSearcher{tool: tool}
}

// NewDuckDuckGo returns a searcher backed by DuckDuckGo.
func NewDuckDuckGo(cfg config.SearchConfig) (*ToolSearcher, error) {
	tool, err := duckduckgo.New(cfg.MaxResults, cfg.UserAgent)
	if err != nil {
		return nil, fmt.Errorf("creating duckduckgo tool: %w", err)
	}
	return NewToolSearcher(tool), nil
}

// Search implements Searcher.
func (s *ToolSearcher) Search(ctx context.Context, q Query) (string, error) {
	ctx, span := tracer.Start(ctx, "search.web")
	defer span.End()

	input, err := BuildQuery(q)
	if err != nil {
		return "", err
	}
	span.SetAttributes(
		attribute.Int("search.allowed_domains", len(q.AllowedDomains)),
		attribute.String("search.country", q.Country),
	)

	out, err := s.tool.Call(ctx, input)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return "", fmt.Errorf("web search: %w", err)
	}
	return out, nil
}

// BuildQuery renders q as a search engine query, restricting it to the
// allowed domains with site: operators.
func BuildQuery(q Query) (string, error) {
	text := strings.Join(strings.Fields(q.Text), " ")
	if text == "" {
		return "", ErrEmptyQuery
	}
	if len(text) > maxQueryLen {
		cut := maxQueryLen
		for cut > 0 && !utf8.RuneStart(text[cut]) {
			cut--
		}
		text = strings.TrimSpace(text[:cut])
	}
	if len(q.AllowedDomains) == 0 {
		return text, nil
	}

	sites := make([]string, 0, len(q.AllowedDomains))
	for _, d := range q.AllowedDomains {
		d = strings.TrimSpace(d)
		if d == "" {
			continue
		}
		sites = append(sites, "site:"+d)
	}
	if len(sites) == 0 {
		return text, nil
	}
	return text + " (" + strings.Join(sites, " OR ") + ")", nil
}
