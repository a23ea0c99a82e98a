package stage

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/fyrsmithlabs/brandflow/internal/transcript"
)

// GenerationConfig declares a generation stage.
type GenerationConfig struct {
	ID            string
	Name          string
	Instructions  string
	Schema        *Schema
	Effort        Effort
	Augmentations []Augmentation
}

// GenerationStage produces an artifact from the transcript.
type GenerationStage struct {
	cfg GenerationConfig
	gen Generator
}

// NewGenerationStage validates cfg and binds it to gen. Effort defaults to
// high.
func NewGenerationStage(gen Generator, cfg GenerationConfig) (*GenerationStage, error) {
	if gen == nil {
		return nil, fmt.Errorf("%w: stage %q has no generator", ErrInvalidStage, cfg.ID)
	}
	if cfg.ID == "" {
		return nil, fmt.Errorf("%w: stage id is required", ErrInvalidStage)
	}
	for _, a := range cfg.Augmentations {
		switch aug := a.(type) {
		case Retrieval:
			if aug.CorpusID == "" {
				return nil, fmt.Errorf("%w: stage %q retrieval has no corpus", ErrInvalidStage, cfg.ID)
			}
		case WebSearch:
			if len(aug.AllowedDomains) == 0 {
				return nil, fmt.Errorf("%w: stage %q web search has no allowed domains", ErrInvalidStage, cfg.ID)
			}
		default:
			return nil, fmt.Errorf("%w: stage %q has unknown augmentation %T", ErrInvalidStage, cfg.ID, a)
		}
	}
	if cfg.Effort == "" {
		cfg.Effort = EffortHigh
	}
	cfg.Augmentations = slices.Clone(cfg.Augmentations)
	return &GenerationStage{cfg: cfg, gen: gen}, nil
}

// ID returns the stage id.
func (s *GenerationStage) ID() string { return s.cfg.ID }

// Name returns the display name.
func (s *GenerationStage) Name() string { return s.cfg.Name }

// Effort returns the requested reasoning effort.
func (s *GenerationStage) Effort() Effort { return s.cfg.Effort }

// Config returns a copy of the stage configuration.
func (s *GenerationStage) Config() GenerationConfig {
	cfg := s.cfg
	cfg.Augmentations = slices.Clone(s.cfg.Augmentations)
	return cfg
}

// Run calls the generator with the full transcript and appends what it
// produced.
func (s *GenerationStage) Run(ctx context.Context, tr *transcript.Transcript) (Result, error) {
	result := Result{StageID: s.cfg.ID, Name: s.cfg.Name, Kind: KindGeneration}

	resp, err := s.gen.Generate(ctx, Request{
		StageID:       s.cfg.ID,
		Name:          s.cfg.Name,
		Kind:          KindGeneration,
		Instructions:  s.cfg.Instructions,
		Schema:        s.cfg.Schema,
		Effort:        s.cfg.Effort,
		Augmentations: slices.Clone(s.cfg.Augmentations),
		Messages:      tr.Messages(),
	})
	if err != nil {
		return result, fmt.Errorf("stage %s: %w", s.cfg.ID, err)
	}
	if resp == nil || resp.Output == nil || strings.TrimSpace(resp.Output.Text) == "" {
		return result, fmt.Errorf("%w: %s returned no output", ErrGenerationMissing, s.cfg.ID)
	}

	result.Messages = appendProduced(tr, resp)

	out := &Output{Text: resp.Output.Text}
	if s.cfg.Schema != nil {
		v, err := s.cfg.Schema.Decode(resp.Output.Text)
		if err != nil {
			return result, fmt.Errorf("stage %s: %w", s.cfg.ID, err)
		}
		out.Value = v
	}
	result.Output = out
	return result, nil
}
