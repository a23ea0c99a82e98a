package stage

import (
	"context"
	"encoding/json"

	"github.com/fyrsmithlabs/brandflow/internal/transcript"
)

// Kind distinguishes classifier calls from generation calls.
type Kind string

const (
	KindClassifier Kind = "classifier"
	KindGeneration Kind = "generation"
)

// Effort is the reasoning effort requested from the generator.
type Effort string

const (
	EffortLow    Effort = "low"
	EffortMedium Effort = "medium"
	EffortHigh   Effort = "high"
)

// Augmentation is a capability offered to a generation call.
type Augmentation interface {
	augmentation()
}

// Retrieval scopes document retrieval to a single corpus.
type Retrieval struct {
	CorpusID string
}

func (Retrieval) augmentation() {}

// WebSearch scopes web search to an allow-list of domains. Country is an
// optional ISO 3166-1 alpha-2 hint.
type WebSearch struct {
	AllowedDomains []string
	Country        string
}

func (WebSearch) augmentation() {}

// Request is one call to the generator.
type Request struct {
	StageID       string
	Name          string
	Kind          Kind
	Instructions  string
	Schema        *Schema
	Effort        Effort
	Augmentations []Augmentation
	// Messages is a snapshot of the transcript at call time.
	Messages []transcript.Message
}

// Response is what the generator returned. A nil Output means the
// generator produced no final output.
type Response struct {
	Messages []transcript.Message
	Output   *Output
}

// Output is a stage's final output. Value is set when the stage declared a
// schema and holds the decoded JSON.
type Output struct {
	Text  string `json:"text"`
	Value any    `json:"value,omitempty"`
}

// Structured reports whether the output carries a decoded JSON value.
func (o *Output) Structured() bool {
	return o != nil && o.Value != nil
}

// MarshalJSON renders structured outputs as their JSON value and free text
// as a string.
func (o *Output) MarshalJSON() ([]byte, error) {
	if o == nil {
		return []byte("null"), nil
	}
	if o.Value != nil {
		return json.Marshal(o.Value)
	}
	return json.Marshal(o.Text)
}

// Generator is the text-generation capability.
type Generator interface {
	Generate(ctx context.Context, req Request) (*Response, error)
}

// GeneratorFunc adapts a function to Generator.
type GeneratorFunc func(ctx context.Context, req Request) (*Response, error)

// Generate calls f.
func (f GeneratorFunc) Generate(ctx context.Context, req Request) (*Response, error) {
	return f(ctx, req)
}

// Result is what a stage contributed to an execution.
type Result struct {
	StageID  string               `json:"stage_id"`
	Name     string               `json:"name"`
	Kind     Kind                 `json:"kind"`
	Messages []transcript.Message `json:"messages"`
	Output   *Output              `json:"output,omitempty"`
}

// appendProduced appends the generator's messages. A response without
// messages still grows the transcript by one assistant message carrying the
// output text, so every call leaves a trace for later stages.
func appendProduced(tr *transcript.Transcript, resp *Response) []transcript.Message {
	produced := resp.Messages
	if len(produced) == 0 && resp.Output != nil && resp.Output.Text != "" {
		produced = []transcript.Message{transcript.AssistantText(resp.Output.Text)}
	}
	tr.Append(produced...)
	return append([]transcript.Message(nil), produced...)
}
