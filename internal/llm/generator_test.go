package llm

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/schema"
	"go.uber.org/zap/zapcore"

	"github.com/fyrsmithlabs/brandflow/internal/config"
	"github.com/fyrsmithlabs/brandflow/internal/logging"
	"github.com/fyrsmithlabs/brandflow/internal/retrieval"
	"github.com/fyrsmithlabs/brandflow/internal/search"
	"github.com/fyrsmithlabs/brandflow/internal/stage"
	"github.com/fyrsmithlabs/brandflow/internal/transcript"
)

// fakeModel records the last call and replies with content.
type fakeModel struct {
	content  string
	choices  int
	err      error
	messages []llms.MessageContent
	opts     llms.CallOptions
	calls    int
}

func newFakeModel(content string) *fakeModel {
	return &fakeModel{content: content, choices: 1}
}

func (m *fakeModel) GenerateContent(_ context.Context, messages []llms.MessageContent, options ...llms.CallOption) (*llms.ContentResponse, error) {
	m.calls++
	m.messages = messages
	m.opts = llms.CallOptions{}
	for _, o := range options {
		o(&m.opts)
	}
	if m.err != nil {
		return nil, m.err
	}
	resp := &llms.ContentResponse{}
	for i := 0; i < m.choices; i++ {
		resp.Choices = append(resp.Choices, &llms.ContentChoice{Content: m.content})
	}
	return resp, nil
}

func (m *fakeModel) Call(ctx context.Context, prompt string, options ...llms.CallOption) (string, error) {
	return llms.GenerateFromSinglePrompt(ctx, m, prompt, options...)
}

func (m *fakeModel) systemText() string {
	if len(m.messages) == 0 {
		return ""
	}
	return textOf(m.messages[0])
}

func textOf(mc llms.MessageContent) string {
	for _, p := range mc.Parts {
		if t, ok := p.(llms.TextContent); ok {
			return t.Text
		}
	}
	return ""
}

type fakeStore struct {
	passages []retrieval.Passage
	err      error
	corpus   string
	query    string
	k        int
}

func (s *fakeStore) Add(context.Context, string, []retrieval.Document) ([]string, error) {
	return nil, nil
}

func (s *fakeStore) Search(_ context.Context, corpus, query string, k int) ([]retrieval.Passage, error) {
	s.corpus, s.query, s.k = corpus, query, k
	return s.passages, s.err
}

func (s *fakeStore) Close() error { return nil }

func request(extra ...func(*stage.Request)) stage.Request {
	req := stage.Request{
		StageID:      "ebbinge.concept_analyzer",
		Name:         "Concept analyzer",
		Kind:         stage.KindGeneration,
		Instructions: "Analyseer de vraag.",
		Effort:       stage.EffortHigh,
		Messages: []transcript.Message{
			transcript.UserText("Bedenk een campagne voor Ebbinge"),
			transcript.AssistantText(`{"classification":"Ebbinge"}`),
		},
	}
	for _, f := range extra {
		f(&req)
	}
	return req
}

func TestGenerate_ReplaysTranscript(t *testing.T) {
	model := newFakeModel("  Een analyse.  ")
	g := New(model, WithModelName("gpt-5"), WithMaxTokens(2048))

	resp, err := g.Generate(context.Background(), request())
	require.NoError(t, err)
	require.NotNil(t, resp.Output)
	assert.Equal(t, "Een analyse.", resp.Output.Text)
	require.Len(t, resp.Messages, 1)
	assert.Equal(t, transcript.RoleAssistant, resp.Messages[0].Role())

	require.Len(t, model.messages, 3)
	assert.Equal(t, schema.ChatMessageTypeSystem, model.messages[0].Role)
	assert.Equal(t, "Analyseer de vraag.", model.systemText())
	assert.Equal(t, schema.ChatMessageTypeHuman, model.messages[1].Role)
	assert.Equal(t, schema.ChatMessageTypeAI, model.messages[2].Role)
	assert.Equal(t, "gpt-5", model.opts.Model)
	assert.Equal(t, 2048, model.opts.MaxTokens)
	assert.NotContains(t, model.systemText(), "JSON-object")
}

func TestGenerate_SchemaContractInSystemPrompt(t *testing.T) {
	model := newFakeModel(`{"classification":"HRC"}`)
	g := New(model)

	resp, err := g.Generate(context.Background(), request(func(r *stage.Request) {
		r.Schema = stage.ObjectSchema("hrc_plan")
	}))
	require.NoError(t, err)
	assert.Equal(t, `{"classification":"HRC"}`, resp.Output.Text)
	assert.Contains(t, model.systemText(), "Antwoord uitsluitend met een JSON-object")
	assert.Contains(t, model.systemText(), `"hrc_plan"`)
	assert.Contains(t, model.systemText(), `"object"`)
}

func TestGenerate_EmptyContentHasNoOutput(t *testing.T) {
	g := New(newFakeModel("   "))

	resp, err := g.Generate(context.Background(), request())
	require.NoError(t, err)
	assert.Nil(t, resp.Output)
	assert.Empty(t, resp.Messages)
}

func TestGenerate_Errors(t *testing.T) {
	model := newFakeModel("")
	model.err = errors.New("connection refused")
	_, err := New(model).Generate(context.Background(), request())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection refused")

	model = newFakeModel("x")
	model.choices = 0
	_, err = New(model).Generate(context.Background(), request())
	assert.ErrorIs(t, err, ErrNoChoices)
}

func TestGenerate_Retrieval(t *testing.T) {
	store := &fakeStore{passages: []retrieval.Passage{
		{Content: "Eerder concept: Leiderschap in beweging"},
		{Content: "Merkwaarden: betrokken, scherp"},
	}}
	model := newFakeModel("concept")
	g := New(model, WithRetrieval(store, 3))

	_, err := g.Generate(context.Background(), request(func(r *stage.Request) {
		r.Augmentations = []stage.Augmentation{stage.Retrieval{CorpusID: "vs_6911c045ad7c8191b0577294e4474116"}}
	}))
	require.NoError(t, err)

	assert.Equal(t, "vs_6911c045ad7c8191b0577294e4474116", store.corpus)
	assert.Equal(t, "Bedenk een campagne voor Ebbinge", store.query)
	assert.Equal(t, 3, store.k)
	sys := model.systemText()
	assert.Contains(t, sys, "[1] Eerder concept: Leiderschap in beweging")
	assert.Contains(t, sys, "[2] Merkwaarden: betrokken, scherp")
}

func TestGenerate_RetrievalMissingCorpusIsSkipped(t *testing.T) {
	store := &fakeStore{err: retrieval.ErrCorpusNotFound}
	logger := logging.NewTestLogger()
	model := newFakeModel("concept")
	g := New(model, WithRetrieval(store, 3), WithLogger(logger.Logger))

	_, err := g.Generate(context.Background(), request(func(r *stage.Request) {
		r.Augmentations = []stage.Augmentation{stage.Retrieval{CorpusID: "empty"}}
	}))
	require.NoError(t, err)
	assert.Equal(t, 1, model.calls)
	logger.AssertField(t, "corpus not populated", "corpus", "empty")
}

func TestGenerate_RetrievalFailureAborts(t *testing.T) {
	store := &fakeStore{err: errors.New("qdrant unavailable")}
	model := newFakeModel("concept")
	g := New(model, WithRetrieval(store, 3))

	_, err := g.Generate(context.Background(), request(func(r *stage.Request) {
		r.Augmentations = []stage.Augmentation{stage.Retrieval{CorpusID: "c"}}
	}))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "qdrant unavailable")
	assert.Zero(t, model.calls)
}

func TestGenerate_WebSearch(t *testing.T) {
	var got search.Query
	searcher := search.SearcherFunc(func(_ context.Context, q search.Query) (string, error) {
		got = q
		return "1. Hays: interim CFO", nil
	})
	model := newFakeModel("onderzoek")
	g := New(model, WithSearcher(searcher))

	_, err := g.Generate(context.Background(), request(func(r *stage.Request) {
		r.Augmentations = []stage.Augmentation{stage.WebSearch{AllowedDomains: []string{"hays.nl"}, Country: "NL"}}
	}))
	require.NoError(t, err)

	assert.Equal(t, []string{"hays.nl"}, got.AllowedDomains)
	assert.Equal(t, "NL", got.Country)
	sys := model.systemText()
	assert.Contains(t, sys, "land NL")
	assert.Contains(t, sys, "1. Hays: interim CFO")
}

func TestGenerate_WebSearchFailureIsBestEffort(t *testing.T) {
	searcher := search.SearcherFunc(func(context.Context, search.Query) (string, error) {
		return "", errors.New("blocked")
	})
	logger := logging.NewTestLogger()
	model := newFakeModel("onderzoek")
	g := New(model, WithSearcher(searcher), WithLogger(logger.Logger))

	resp, err := g.Generate(context.Background(), request(func(r *stage.Request) {
		r.Augmentations = []stage.Augmentation{stage.WebSearch{}}
	}))
	require.NoError(t, err)
	assert.Equal(t, "onderzoek", resp.Output.Text)
	logger.AssertLogged(t, zapcore.WarnLevel, "web search failed")
}

func TestGenerate_RateLimitHonoursContext(t *testing.T) {
	model := newFakeModel("x")
	g := New(model, WithRateLimit(0.001, 1))

	_, err := g.Generate(context.Background(), request())
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = g.Generate(ctx, request())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "rate limiter")
	assert.Equal(t, 1, model.calls)
}

func TestChatRole(t *testing.T) {
	assert.Equal(t, schema.ChatMessageTypeHuman, chatRole(transcript.RoleUser))
	assert.Equal(t, schema.ChatMessageTypeAI, chatRole(transcript.RoleAssistant))
	assert.Equal(t, schema.ChatMessageTypeSystem, chatRole(transcript.RoleSystem))
}

func TestNewOpenAIModel(t *testing.T) {
	cfg := config.Default().LLM
	cfg.APIKey = config.Secret("sk-test")

	model, err := NewOpenAIModel(cfg)
	require.NoError(t, err)
	assert.NotNil(t, model)
}

func TestGenerator_SatisfiesStageGenerator(t *testing.T) {
	var _ stage.Generator = New(newFakeModel("x"))
}
