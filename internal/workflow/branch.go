package workflow

import (
	"context"
	"fmt"
	"maps"
	"slices"

	"github.com/fyrsmithlabs/brandflow/internal/stage"
	"github.com/fyrsmithlabs/brandflow/internal/transcript"
)

// Branch invokes a classifier and maps its value to the next step.
type Branch[T ~string] struct {
	state      State
	classifier *stage.Classifier[T]
	routes     map[T]Step
	unmatched  Step
}

// NewBranch builds a branch that enters state while classifying. Every
// route key must be declared by the classifier. Declared values without a
// route, and values outside the declared set, resolve to Unmatched.
func NewBranch[T ~string](state State, c *stage.Classifier[T], routes map[T]Step) (*Branch[T], error) {
	if c == nil {
		return nil, fmt.Errorf("%w: branch without classifier", ErrInvalidStep)
	}
	for v, next := range routes {
		if !c.Declares(v) {
			return nil, fmt.Errorf("%w: %s does not declare %q", ErrUndeclaredRoute, c.ID(), v)
		}
		if next == nil {
			return nil, fmt.Errorf("%w: %s route %q is nil", ErrInvalidStep, c.ID(), v)
		}
	}
	return &Branch[T]{
		state:      state,
		classifier: c,
		routes:     maps.Clone(routes),
		unmatched:  Unmatched,
	}, nil
}

// State implements Step.
func (b *Branch[T]) State() State { return b.state }

// ClassifierID returns the id of the branch classifier.
func (b *Branch[T]) ClassifierID() string { return b.classifier.ID() }

// ClassifierName returns the display name of the branch classifier.
func (b *Branch[T]) ClassifierName() string { return b.classifier.Name() }

// ClassifierEffort returns the reasoning effort of the branch classifier.
func (b *Branch[T]) ClassifierEffort() stage.Effort { return b.classifier.Effort() }

// Resolve returns the step for v. It depends only on the branch and v.
func (b *Branch[T]) Resolve(v T) Step {
	if !b.classifier.Declares(v) {
		return b.unmatched
	}
	if next, ok := b.routes[v]; ok {
		return next
	}
	return b.unmatched
}

// Matched reports whether v resolves to something other than the
// unmatched terminal.
func (b *Branch[T]) Matched(v T) bool {
	return b.Resolve(v) != b.unmatched
}

func (b *Branch[T]) classify(ctx context.Context, tr *transcript.Transcript) (string, Step, stage.Result, error) {
	v, res, err := b.classifier.Classify(ctx, tr)
	if err != nil {
		return "", nil, res, err
	}
	return string(v), b.Resolve(v), res, nil
}

func (b *Branch[T]) children() []Step {
	keys := slices.Sorted(maps.Keys(b.routes))
	out := make([]Step, 0, len(keys)+1)
	for _, k := range keys {
		out = append(out, b.routes[k])
	}
	return append(out, b.unmatched)
}
