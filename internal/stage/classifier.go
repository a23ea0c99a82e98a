package stage

import (
	"context"
	"fmt"
	"slices"

	"github.com/fyrsmithlabs/brandflow/internal/transcript"
)

// ClassifierConfig declares a classifier and its closed value set.
type ClassifierConfig[T ~string] struct {
	ID           string
	Name         string
	Instructions string
	Values       []T
	Effort       Effort
}

// Classifier maps a transcript to one value of T.
type Classifier[T ~string] struct {
	cfg    ClassifierConfig[T]
	schema *Schema
	gen    Generator
}

// NewClassifier validates cfg and binds it to gen. Effort defaults to low.
func NewClassifier[T ~string](gen Generator, cfg ClassifierConfig[T]) (*Classifier[T], error) {
	if gen == nil {
		return nil, fmt.Errorf("%w: classifier %q has no generator", ErrInvalidStage, cfg.ID)
	}
	if cfg.ID == "" {
		return nil, fmt.Errorf("%w: classifier id is required", ErrInvalidStage)
	}
	if len(cfg.Values) == 0 {
		return nil, fmt.Errorf("%w: classifier %q declares no values", ErrInvalidStage, cfg.ID)
	}
	if cfg.Effort == "" {
		cfg.Effort = EffortLow
	}
	cfg.Values = slices.Clone(cfg.Values)

	values := make([]string, len(cfg.Values))
	for i, v := range cfg.Values {
		values[i] = string(v)
	}
	schema, err := classificationSchema(cfg.ID, values)
	if err != nil {
		return nil, err
	}
	return &Classifier[T]{cfg: cfg, schema: schema, gen: gen}, nil
}

// ID returns the stage id.
func (c *Classifier[T]) ID() string { return c.cfg.ID }

// Name returns the display name.
func (c *Classifier[T]) Name() string { return c.cfg.Name }

// Effort returns the requested reasoning effort.
func (c *Classifier[T]) Effort() Effort { return c.cfg.Effort }

// Values returns the declared value set.
func (c *Classifier[T]) Values() []T { return slices.Clone(c.cfg.Values) }

// Declares reports whether v is in the declared set.
func (c *Classifier[T]) Declares(v T) bool { return slices.Contains(c.cfg.Values, v) }

// Classify asks the generator for a classification of tr and appends the
// produced messages to tr. The returned value may lie outside the declared
// set; routing decides what that means.
func (c *Classifier[T]) Classify(ctx context.Context, tr *transcript.Transcript) (T, Result, error) {
	var zero T
	result := Result{StageID: c.cfg.ID, Name: c.cfg.Name, Kind: KindClassifier}

	resp, err := c.gen.Generate(ctx, Request{
		StageID:      c.cfg.ID,
		Name:         c.cfg.Name,
		Kind:         KindClassifier,
		Instructions: c.cfg.Instructions,
		Schema:       c.schema,
		Effort:       c.cfg.Effort,
		Messages:     tr.Messages(),
	})
	if err != nil {
		return zero, result, fmt.Errorf("classifier %s: %w", c.cfg.ID, err)
	}
	if resp == nil || resp.Output == nil {
		return zero, result, fmt.Errorf("%w: %s returned no output", ErrClassificationMissing, c.cfg.ID)
	}

	result.Messages = appendProduced(tr, resp)

	decoded, err := c.schema.Decode(resp.Output.Text)
	if err != nil {
		return zero, result, fmt.Errorf("%w: %s: %v", ErrClassificationMissing, c.cfg.ID, err)
	}
	obj, _ := decoded.(map[string]any)
	value, _ := obj["classification"].(string)
	if value == "" {
		return zero, result, fmt.Errorf("%w: %s returned an empty value", ErrClassificationMissing, c.cfg.ID)
	}

	result.Output = &Output{Text: resp.Output.Text, Value: decoded}
	return T(value), result, nil
}
