package workflow

import (
	"context"

	"github.com/fyrsmithlabs/brandflow/internal/transcript"
)

// Predicate decides whether a produced artifact is approved.
type Predicate struct {
	Name   string
	Decide func(ctx context.Context, artifact transcript.Message) bool
}

// AlwaysApprove is a placeholder predicate. It approves unconditionally
// until a real approval policy exists.
var AlwaysApprove = Predicate{
	Name:   "always_approve",
	Decide: func(context.Context, transcript.Message) bool { return true },
}

// ApprovalGate chooses a follow-up step from a predicate's decision.
type ApprovalGate struct {
	id        string
	predicate Predicate
	onApprove Step
	onReject  Step
}

// NewApprovalGate builds a gate. Nil follow-ups default to Done.
func NewApprovalGate(id string, p Predicate, onApprove, onReject Step) *ApprovalGate {
	if onApprove == nil {
		onApprove = Done
	}
	if onReject == nil {
		onReject = Done
	}
	if p.Decide == nil {
		p = AlwaysApprove
	}
	return &ApprovalGate{id: id, predicate: p, onApprove: onApprove, onReject: onReject}
}

// State implements Step.
func (g *ApprovalGate) State() State { return StateApprove }

// ID returns the gate id.
func (g *ApprovalGate) ID() string { return g.id }

// GateDecision records what a gate decided.
type GateDecision struct {
	Gate      string `json:"gate"`
	Predicate string `json:"predicate"`
	Approved  bool   `json:"approved"`
}

// Evaluate applies the predicate to artifact.
func (g *ApprovalGate) Evaluate(ctx context.Context, artifact transcript.Message) (GateDecision, Step) {
	approved := g.predicate.Decide(ctx, artifact)
	d := GateDecision{Gate: g.id, Predicate: g.predicate.Name, Approved: approved}
	if approved {
		return d, g.onApprove
	}
	return d, g.onReject
}
