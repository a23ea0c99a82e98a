package workflow

import (
	"context"
	"fmt"
	"slices"

	"github.com/fyrsmithlabs/brandflow/internal/stage"
	"github.com/fyrsmithlabs/brandflow/internal/transcript"
)

const (
	minChainStages = 2
	maxChainStages = 3
)

// RunFunc runs one generation stage on tr.
type RunFunc func(ctx context.Context, s *stage.GenerationStage, tr *transcript.Transcript) (stage.Result, error)

// ChainCoordinator runs a fixed sequence of generation stages on one
// transcript, each after its predecessor has appended its messages.
type ChainCoordinator struct {
	id     string
	stages []*stage.GenerationStage
	// Next defaults to Done.
	Next Step
}

// NewChain builds a chain of two or three stages.
func NewChain(id string, stages ...*stage.GenerationStage) (*ChainCoordinator, error) {
	if len(stages) < minChainStages || len(stages) > maxChainStages {
		return nil, fmt.Errorf("%w: %s has %d", ErrInvalidChain, id, len(stages))
	}
	for i, s := range stages {
		if s == nil {
			return nil, fmt.Errorf("%w: %s stage %d is nil", ErrInvalidChain, id, i)
		}
	}
	return &ChainCoordinator{id: id, stages: slices.Clone(stages)}, nil
}

// State implements Step.
func (c *ChainCoordinator) State() State { return StateChain }

// ID returns the chain id.
func (c *ChainCoordinator) ID() string { return c.id }

// Stages returns the stages in run order.
func (c *ChainCoordinator) Stages() []*stage.GenerationStage {
	return slices.Clone(c.stages)
}

// Run executes the stages in order. run wraps each stage call and defaults
// to GenerationStage.Run. The first failure aborts the chain and no results
// are returned.
func (c *ChainCoordinator) Run(ctx context.Context, tr *transcript.Transcript, run RunFunc) ([]stage.Result, error) {
	if run == nil {
		run = func(ctx context.Context, s *stage.GenerationStage, tr *transcript.Transcript) (stage.Result, error) {
			return s.Run(ctx, tr)
		}
	}
	results := make([]stage.Result, 0, len(c.stages))
	for i, s := range c.stages {
		res, err := run(ctx, s, tr)
		if err != nil {
			return nil, fmt.Errorf("chain %s step %d/%d: %w", c.id, i+1, len(c.stages), err)
		}
		results = append(results, res)
	}
	return results, nil
}

func (c *ChainCoordinator) next() Step {
	if c.Next == nil {
		return Done
	}
	return c.Next
}
