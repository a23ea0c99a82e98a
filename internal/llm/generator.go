// Package llm implements stage.Generator on top of an OpenAI-compatible
// chat model via langchaingo.
//
// Each call renders the stage instructions as the system prompt, replays
// the transcript, and resolves the stage's augmentations (corpus retrieval,
// web search) into extra system context before the model is invoked. Calls
// are paced by a token bucket shared across stages.
package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"
	"github.com/tmc/langchaingo/schema"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/fyrsmithlabs/brandflow/internal/config"
	"github.com/fyrsmithlabs/brandflow/internal/logging"
	"github.com/fyrsmithlabs/brandflow/internal/retrieval"
	"github.com/fyrsmithlabs/brandflow/internal/search"
	"github.com/fyrsmithlabs/brandflow/internal/stage"
	"github.com/fyrsmithlabs/brandflow/internal/transcript"
)

// ErrNoChoices reports a model response without any choice.
var ErrNoChoices = errors.New("model returned no choices")

var tracer = otel.Tracer("brandflow.llm")

// Generator calls a langchaingo model for every stage request.
type Generator struct {
	model     llms.Model
	modelName string
	maxTokens int
	topK      int
	limiter   *rate.Limiter
	store     retrieval.Store
	searcher  search.Searcher
	logger    *logging.Logger
}

// Option configures a Generator.
type Option func(*Generator)

// WithModelName sets the model passed on each call.
func WithModelName(name string) Option {
	return func(g *Generator) { g.modelName = name }
}

// WithMaxTokens caps the completion length.
func WithMaxTokens(n int) Option {
	return func(g *Generator) { g.maxTokens = n }
}

// WithRateLimit paces calls to rps requests per second with the given burst.
func WithRateLimit(rps float64, burst int) Option {
	return func(g *Generator) { g.limiter = rate.NewLimiter(rate.Limit(rps), burst) }
}

// WithRetrieval resolves Retrieval augmentations against store, returning
// topK passages per corpus.
func WithRetrieval(store retrieval.Store, topK int) Option {
	return func(g *Generator) {
		g.store = store
		g.topK = topK
	}
}

// WithSearcher resolves WebSearch augmentations through s.
func WithSearcher(s search.Searcher) Option {
	return func(g *Generator) { g.searcher = s }
}

// WithLogger sets the logger.
func WithLogger(l *logging.Logger) Option {
	return func(g *Generator) { g.logger = l }
}

// New returns a Generator for model.
func New(model llms.Model, opts ...Option) *Generator {
	g := &Generator{
		model:   model,
		topK:    5,
		limiter: rate.NewLimiter(rate.Inf, 1),
		logger:  logging.NewNop(),
	}
	for _, opt := range opts {
		opt(g)
	}
	g.logger = g.logger.Named("llm")
	return g
}

// NewOpenAIModel builds the chat model described by cfg.
func NewOpenAIModel(cfg config.LLMConfig) (llms.Model, error) {
	opts := []openai.Option{
		openai.WithBaseURL(cfg.BaseURL),
		openai.WithModel(cfg.Model),
		openai.WithHTTPClient(&http.Client{Timeout: cfg.Timeout.Duration()}),
	}
	if cfg.APIKey.IsSet() {
		opts = append(opts, openai.WithToken(cfg.APIKey.Value()))
	}
	model, err := openai.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("creating openai client: %w", err)
	}
	return model, nil
}

// FromConfig builds a Generator for cfg with the given augmentation backends.
// store and searcher may be nil.
func FromConfig(cfg *config.Config, store retrieval.Store, searcher search.Searcher, logger *logging.Logger) (*Generator, error) {
	model, err := NewOpenAIModel(cfg.LLM)
	if err != nil {
		return nil, err
	}
	opts := []Option{
		WithModelName(cfg.LLM.Model),
		WithMaxTokens(cfg.LLM.MaxTokens),
		WithRateLimit(cfg.LLM.RateLimit, cfg.LLM.Burst),
		WithLogger(logger),
	}
	if store != nil {
		opts = append(opts, WithRetrieval(store, cfg.Retrieval.TopK))
	}
	if searcher != nil {
		opts = append(opts, WithSearcher(searcher))
	}
	return New(model, opts...), nil
}

// Generate implements stage.Generator.
func (g *Generator) Generate(ctx context.Context, req stage.Request) (*stage.Response, error) {
	ctx, span := tracer.Start(ctx, "llm.generate")
	defer span.End()
	span.SetAttributes(
		attribute.String("stage.id", req.StageID),
		attribute.String("stage.effort", string(req.Effort)),
		attribute.Int("transcript.len", len(req.Messages)),
	)

	if err := g.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter: %w", err)
	}

	system, err := g.systemPrompt(ctx, req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	messages := append([]llms.MessageContent{llms.TextParts(schema.ChatMessageTypeSystem, system)}, toMessageContent(req.Messages)...)

	start := time.Now()
	resp, err := g.model.GenerateContent(ctx, messages, g.callOptions()...)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("generating content for %s: %w", req.StageID, err)
	}
	if resp == nil || len(resp.Choices) == 0 {
		span.SetStatus(codes.Error, ErrNoChoices.Error())
		return nil, fmt.Errorf("%s: %w", req.StageID, ErrNoChoices)
	}

	content := strings.TrimSpace(resp.Choices[0].Content)
	g.logger.Debug(ctx, "generation completed",
		zap.String("stage", req.StageID),
		zap.Duration("duration", time.Since(start)),
		zap.Int("output_len", len(content)),
	)
	g.logger.Trace(ctx, "generation output", zap.String("stage", req.StageID), zap.String("content", content))

	if content == "" {
		return &stage.Response{}, nil
	}
	return &stage.Response{
		Messages: []transcript.Message{transcript.AssistantText(content)},
		Output:   &stage.Output{Text: content},
	}, nil
}

// callOptions sets model and length only. Structured output is requested
// by the schema contract in the system prompt and decoded by the stage.
func (g *Generator) callOptions() []llms.CallOption {
	var opts []llms.CallOption
	if g.modelName != "" {
		opts = append(opts, llms.WithModel(g.modelName))
	}
	if g.maxTokens > 0 {
		opts = append(opts, llms.WithMaxTokens(g.maxTokens))
	}
	return opts
}

func toMessageContent(msgs []transcript.Message) []llms.MessageContent {
	out := make([]llms.MessageContent, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, llms.TextParts(chatRole(m.Role()), m.Text()))
	}
	return out
}

func chatRole(r transcript.Role) schema.ChatMessageType {
	switch r {
	case transcript.RoleAssistant:
		return schema.ChatMessageTypeAI
	case transcript.RoleSystem:
		return schema.ChatMessageTypeSystem
	default:
		return schema.ChatMessageTypeHuman
	}
}
