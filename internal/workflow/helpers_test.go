package workflow

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/fyrsmithlabs/brandflow/internal/events"
	"github.com/fyrsmithlabs/brandflow/internal/stage"
	"github.com/fyrsmithlabs/brandflow/internal/transcript"
	"github.com/stretchr/testify/require"
)

// scriptedGenerator answers per stage id and records every request.
type scriptedGenerator struct {
	mu      sync.Mutex
	replies map[string]func(stage.Request) (*stage.Response, error)
	calls   []stage.Request
}

func newScripted() *scriptedGenerator {
	return &scriptedGenerator{replies: map[string]func(stage.Request) (*stage.Response, error){}}
}

func (g *scriptedGenerator) classify(id, value string) *scriptedGenerator {
	g.replies[id] = func(stage.Request) (*stage.Response, error) {
		text := fmt.Sprintf(`{"classification":%q}`, value)
		return &stage.Response{
			Messages: []transcript.Message{transcript.AssistantText(text)},
			Output:   &stage.Output{Text: text},
		}, nil
	}
	return g
}

func (g *scriptedGenerator) write(id, text string) *scriptedGenerator {
	g.replies[id] = func(stage.Request) (*stage.Response, error) {
		return &stage.Response{
			Messages: []transcript.Message{transcript.AssistantText(text)},
			Output:   &stage.Output{Text: text},
		}, nil
	}
	return g
}

func (g *scriptedGenerator) reply(id string, resp *stage.Response, err error) *scriptedGenerator {
	g.replies[id] = func(stage.Request) (*stage.Response, error) { return resp, err }
	return g
}

func (g *scriptedGenerator) Generate(_ context.Context, req stage.Request) (*stage.Response, error) {
	g.mu.Lock()
	g.calls = append(g.calls, req)
	fn, ok := g.replies[req.StageID]
	g.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("unexpected stage %s", req.StageID)
	}
	return fn(req)
}

func (g *scriptedGenerator) called() []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	ids := make([]string, len(g.calls))
	for i, c := range g.calls {
		ids[i] = c.StageID
	}
	return ids
}

func (g *scriptedGenerator) request(id string) (stage.Request, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	for _, c := range g.calls {
		if c.StageID == id {
			return c, true
		}
	}
	return stage.Request{}, false
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []events.Event
	err    error
}

func (p *recordingPublisher) Publish(_ context.Context, e events.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
	return p.err
}

func (p *recordingPublisher) Close() error { return nil }

func (p *recordingPublisher) types() []events.Type {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]events.Type, len(p.events))
	for i, e := range p.events {
		out[i] = e.Type
	}
	return out
}

type fruit string

const (
	apple  fruit = "apple"
	pear   fruit = "pear"
	banana fruit = "banana"
)

type task string

const (
	taskSummary task = "summary"
	taskPlan    task = "plan"
	taskOther   task = "other"
)

func mustGeneration(t *testing.T, gen stage.Generator, id string) *stage.GenerationStage {
	t.Helper()
	s, err := stage.NewGenerationStage(gen, stage.GenerationConfig{ID: id, Name: id, Instructions: "write " + id})
	require.NoError(t, err)
	return s
}

// testTree builds:
//
//	fruit: apple -> task{summary: single, plan: chain(a,b) -> gate}
//	       pear  -> single
//	       banana (declared, unmapped)
func testTree(t *testing.T, gen stage.Generator) Step {
	t.Helper()

	taskClassifier, err := stage.NewClassifier(gen, stage.ClassifierConfig[task]{
		ID: "task", Name: "Task", Values: []task{taskSummary, taskPlan, taskOther},
	})
	require.NoError(t, err)

	chain, err := NewChain("plan_chain", mustGeneration(t, gen, "plan_a"), mustGeneration(t, gen, "plan_b"))
	require.NoError(t, err)
	chain.Next = NewApprovalGate("plan_gate", AlwaysApprove, Done, Done)

	taskBranch, err := NewBranch(StateClassifyTopic, taskClassifier, map[task]Step{
		taskSummary: NewSingle(mustGeneration(t, gen, "summary")),
		taskPlan:    chain,
	})
	require.NoError(t, err)

	fruitClassifier, err := stage.NewClassifier(gen, stage.ClassifierConfig[fruit]{
		ID: "fruit", Name: "Fruit", Values: []fruit{apple, pear, banana},
	})
	require.NoError(t, err)

	root, err := NewBranch(StateClassifyBrand, fruitClassifier, map[fruit]Step{
		apple: taskBranch,
		pear:  NewSingle(mustGeneration(t, gen, "pear_writer")),
	})
	require.NoError(t, err)
	return root
}
