package workflow

import (
	"context"
	"fmt"

	"github.com/fyrsmithlabs/brandflow/internal/stage"
	"github.com/fyrsmithlabs/brandflow/internal/transcript"
)

// Step is a node of the dispatch tree.
type Step interface {
	// State is the state the engine enters when it reaches the step.
	State() State
}

// Terminal ends an execution.
type Terminal struct {
	name      string
	unmatched bool
}

// State implements Step.
func (t *Terminal) State() State { return StateDone }

// Name returns the terminal name.
func (t *Terminal) Name() string { return t.name }

// Unmatched reports whether reaching t means no branch matched.
func (t *Terminal) Unmatched() bool { return t.unmatched }

var (
	// Done is the no-op terminal reached after a branch completes.
	Done = &Terminal{name: "done"}
	// Unmatched is reached when a classification has no mapped step.
	Unmatched = &Terminal{name: "unmatched", unmatched: true}
)

// Single runs one generation stage and continues with Next.
type Single struct {
	Stage *stage.GenerationStage
	// Next defaults to Done.
	Next Step
}

// NewSingle returns a Single that ends in Done.
func NewSingle(s *stage.GenerationStage) *Single {
	return &Single{Stage: s}
}

// State implements Step.
func (s *Single) State() State { return StateGenerate }

func (s *Single) next() Step {
	if s.Next == nil {
		return Done
	}
	return s.Next
}

// classifying is the non-generic view the engine has of a Branch.
type classifying interface {
	Step
	ClassifierID() string
	ClassifierName() string
	ClassifierEffort() stage.Effort
	classify(ctx context.Context, tr *transcript.Transcript) (string, Step, stage.Result, error)
	children() []Step
}

// Validate walks the tree below root and reports nil or unknown steps.
func Validate(root Step) error {
	return validate(root, 0)
}

const maxDepth = 16

func validate(s Step, depth int) error {
	if depth > maxDepth {
		return fmt.Errorf("%w: tree deeper than %d", ErrInvalidStep, maxDepth)
	}
	switch step := s.(type) {
	case nil:
		return fmt.Errorf("%w: nil step", ErrInvalidStep)
	case *Terminal:
		if step == nil {
			return fmt.Errorf("%w: nil terminal", ErrInvalidStep)
		}
		return nil
	case *Single:
		if step == nil || step.Stage == nil {
			return fmt.Errorf("%w: single without stage", ErrInvalidStep)
		}
		return validate(step.next(), depth+1)
	case *ChainCoordinator:
		if step == nil {
			return fmt.Errorf("%w: nil chain", ErrInvalidStep)
		}
		return validate(step.next(), depth+1)
	case *ApprovalGate:
		if step == nil {
			return fmt.Errorf("%w: nil gate", ErrInvalidStep)
		}
		if err := validate(step.onApprove, depth+1); err != nil {
			return err
		}
		return validate(step.onReject, depth+1)
	case classifying:
		for _, child := range step.children() {
			if err := validate(child, depth+1); err != nil {
				return fmt.Errorf("branch %s: %w", step.ClassifierID(), err)
			}
		}
		return nil
	default:
		return fmt.Errorf("%w: %T", ErrInvalidStep, s)
	}
}
