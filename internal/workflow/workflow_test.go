package workflow

import (
	"context"
	"errors"
	"testing"

	"github.com/fyrsmithlabs/brandflow/internal/events"
	"github.com/fyrsmithlabs/brandflow/internal/logging"
	"github.com/fyrsmithlabs/brandflow/internal/stage"
	"github.com/fyrsmithlabs/brandflow/internal/telemetry"
	"github.com/fyrsmithlabs/brandflow/internal/transcript"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func newEngine(t *testing.T, gen stage.Generator, opts ...Option) *Engine {
	t.Helper()
	e, err := NewEngine(testTree(t, gen), opts...)
	require.NoError(t, err)
	return e
}

func TestBranch_ResolveIsPure(t *testing.T) {
	gen := newScripted()
	c, err := stage.NewClassifier(gen, stage.ClassifierConfig[fruit]{ID: "fruit", Values: []fruit{apple, pear}})
	require.NoError(t, err)

	single := NewSingle(mustGeneration(t, gen, "w"))
	b, err := NewBranch(StateClassifyBrand, c, map[fruit]Step{apple: single})
	require.NoError(t, err)

	for _, v := range []fruit{apple, pear, "kiwi", ""} {
		first := b.Resolve(v)
		second := b.Resolve(v)
		assert.Same(t, first, second, v)
	}
	assert.Same(t, single, b.Resolve(apple))
	assert.Same(t, Unmatched, b.Resolve(pear))
	assert.Same(t, Unmatched, b.Resolve("kiwi"))
	assert.True(t, b.Matched(apple))
	assert.False(t, b.Matched("kiwi"))
}

func TestNewBranch_RejectsUndeclaredRoute(t *testing.T) {
	gen := newScripted()
	c, err := stage.NewClassifier(gen, stage.ClassifierConfig[fruit]{ID: "fruit", Values: []fruit{apple}})
	require.NoError(t, err)

	_, err = NewBranch(StateClassifyBrand, c, map[fruit]Step{pear: Done})
	assert.ErrorIs(t, err, ErrUndeclaredRoute)

	_, err = NewBranch(StateClassifyBrand, c, map[fruit]Step{apple: nil})
	assert.ErrorIs(t, err, ErrInvalidStep)

	_, err = NewBranch[fruit](StateClassifyBrand, nil, nil)
	assert.ErrorIs(t, err, ErrInvalidStep)
}

func TestNewChain_Length(t *testing.T) {
	gen := newScripted()
	s := func(id string) *stage.GenerationStage { return mustGeneration(t, gen, id) }

	_, err := NewChain("one", s("a"))
	assert.ErrorIs(t, err, ErrInvalidChain)

	_, err = NewChain("four", s("a"), s("b"), s("c"), s("d"))
	assert.ErrorIs(t, err, ErrInvalidChain)

	_, err = NewChain("nil", s("a"), nil)
	assert.ErrorIs(t, err, ErrInvalidChain)

	c, err := NewChain("three", s("a"), s("b"), s("c"))
	require.NoError(t, err)
	assert.Len(t, c.Stages(), 3)
}

func TestChain_OrderAndVisibility(t *testing.T) {
	gen := newScripted().write("a", "analyse").write("b", "onderzoek").write("c", "concept")
	chain, err := NewChain("abc", mustGeneration(t, gen, "a"), mustGeneration(t, gen, "b"), mustGeneration(t, gen, "c"))
	require.NoError(t, err)

	tr := transcript.New(transcript.UserText("brief"))
	results, err := chain.Run(context.Background(), tr, nil)
	require.NoError(t, err)

	assert.Equal(t, []string{"a", "b", "c"}, gen.called())
	require.Len(t, results, 3)
	assert.Equal(t, 4, tr.Len())

	reqB, _ := gen.request("b")
	require.Len(t, reqB.Messages, 2)
	assert.Equal(t, "analyse", reqB.Messages[1].Text())

	reqC, _ := gen.request("c")
	require.Len(t, reqC.Messages, 3)
	assert.Equal(t, "onderzoek", reqC.Messages[2].Text())
}

func TestChain_FailureAborts(t *testing.T) {
	gen := newScripted().
		write("a", "analyse").
		reply("b", &stage.Response{}, nil).
		write("c", "concept")
	chain, err := NewChain("abc", mustGeneration(t, gen, "a"), mustGeneration(t, gen, "b"), mustGeneration(t, gen, "c"))
	require.NoError(t, err)

	results, err := chain.Run(context.Background(), transcript.New(transcript.UserText("brief")), nil)
	assert.ErrorIs(t, err, stage.ErrGenerationMissing)
	assert.Nil(t, results)
	assert.Equal(t, []string{"a", "b"}, gen.called())
}

func TestApprovalGate(t *testing.T) {
	reject := Predicate{Name: "reject", Decide: func(context.Context, transcript.Message) bool { return false }}
	follow := &Terminal{name: "follow"}

	g := NewApprovalGate("g", reject, nil, follow)
	d, next := g.Evaluate(context.Background(), transcript.AssistantText("concept"))
	assert.False(t, d.Approved)
	assert.Equal(t, "reject", d.Predicate)
	assert.Same(t, follow, next)

	g = NewApprovalGate("g", Predicate{}, nil, nil)
	d, next = g.Evaluate(context.Background(), transcript.AssistantText("concept"))
	assert.True(t, d.Approved)
	assert.Equal(t, AlwaysApprove.Name, d.Predicate)
	assert.Same(t, Done, next)
}

func TestEngine_SingleBranch(t *testing.T) {
	gen := newScripted().classify("fruit", "pear").write("pear_writer", "peren plan")
	e := newEngine(t, gen)

	exec, err := e.Run(context.Background(), Input{InputAsText: "iets over peren"})
	require.NoError(t, err)

	assert.Equal(t, OutcomeCompleted, exec.Outcome)
	assert.Equal(t, []string{"fruit", "pear_writer"}, gen.called())
	assert.Equal(t, []State{StateStart, StateClassifyBrand, StateGenerate, StateDone}, exec.States)
	assert.Equal(t, "peren plan", exec.Output.Text)
	assert.Equal(t, "pear", exec.Brand())
	assert.Len(t, exec.Generations(), 1)
	assert.NotEmpty(t, exec.ID)
	assert.Nil(t, exec.Gate)
	assert.Equal(t, 3, exec.Transcript().Len())
}

func TestEngine_ChainWithGate(t *testing.T) {
	gen := newScripted().
		classify("fruit", "apple").
		classify("task", "plan").
		write("plan_a", "analyse").
		write("plan_b", "plan")
	e := newEngine(t, gen)

	exec, err := e.Run(context.Background(), Input{InputAsText: "plan voor appels"})
	require.NoError(t, err)

	assert.Equal(t, []string{"fruit", "task", "plan_a", "plan_b"}, gen.called())
	assert.Equal(t, []State{StateStart, StateClassifyBrand, StateClassifyTopic, StateChain, StateApprove, StateDone}, exec.States)
	require.NotNil(t, exec.Gate)
	assert.True(t, exec.Gate.Approved)
	assert.Equal(t, "plan_gate", exec.Gate.Gate)
	assert.Equal(t, []PathEntry{
		{Classifier: "fruit", Value: "apple", Matched: true},
		{Classifier: "task", Value: "plan", Matched: true},
	}, exec.Path)
	assert.Equal(t, "plan", exec.Output.Text)

	reqB, _ := gen.request("plan_b")
	texts := make([]string, len(reqB.Messages))
	for i, m := range reqB.Messages {
		texts[i] = m.Text()
	}
	assert.Contains(t, texts, "analyse")
}

func TestEngine_Unmatched(t *testing.T) {
	tests := []struct {
		name  string
		gen   *scriptedGenerator
		calls []string
	}{
		{"declared but unmapped", newScripted().classify("fruit", "banana"), []string{"fruit"}},
		{"out of set", newScripted().classify("fruit", "kiwi"), []string{"fruit"}},
		{"unmapped topic", newScripted().classify("fruit", "apple").classify("task", "other"), []string{"fruit", "task"}},
		{"out of set topic", newScripted().classify("fruit", "apple").classify("task", "poem"), []string{"fruit", "task"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reg := prometheus.NewRegistry()
			metrics := NewMetrics(reg)
			e := newEngine(t, tt.gen, WithMetrics(metrics))

			exec, err := e.Run(context.Background(), Input{InputAsText: "iets"})
			require.NoError(t, err)
			assert.Equal(t, OutcomeUnmatched, exec.Outcome)
			assert.Equal(t, tt.calls, tt.gen.called())
			assert.Empty(t, exec.Generations())
			assert.Nil(t, exec.Output)
			assert.Equal(t, StateDone, exec.States[len(exec.States)-1])
			assert.False(t, exec.Path[len(exec.Path)-1].Matched)
			assert.Equal(t, 1.0, testutil.ToFloat64(metrics.ExecutionsTotal.WithLabelValues("unmatched")))
		})
	}
}

func TestEngine_ClassificationMissingAborts(t *testing.T) {
	gen := newScripted().
		classify("fruit", "apple").
		reply("task", &stage.Response{}, nil)
	pub := &recordingPublisher{}
	e := newEngine(t, gen, WithPublisher(pub))

	exec, err := e.Run(context.Background(), Input{InputAsText: "iets"})
	require.Error(t, err)
	assert.ErrorIs(t, err, stage.ErrClassificationMissing)
	assert.Equal(t, []string{"fruit", "task"}, gen.called())
	require.NotNil(t, exec)
	assert.Equal(t, OutcomeFailed, exec.Outcome)
	assert.NotEmpty(t, exec.Error)
	assert.Empty(t, exec.Generations())
	assert.Equal(t, []events.Type{events.TypeStarted, events.TypeStage, events.TypeFailed}, pub.types())
}

func TestEngine_GenerationMissingAborts(t *testing.T) {
	gen := newScripted().
		classify("fruit", "apple").
		classify("task", "plan").
		reply("plan_a", &stage.Response{Output: &stage.Output{}}, nil)
	e := newEngine(t, gen)

	exec, err := e.Run(context.Background(), Input{InputAsText: "iets"})
	assert.ErrorIs(t, err, stage.ErrGenerationMissing)
	assert.Equal(t, []string{"fruit", "task", "plan_a"}, gen.called())
	assert.Nil(t, exec.Gate)
	assert.Empty(t, exec.Generations())
}

func TestEngine_TransportError(t *testing.T) {
	boom := errors.New("upstream 503")
	gen := newScripted().reply("fruit", nil, boom)
	e := newEngine(t, gen)

	_, err := e.Run(context.Background(), Input{InputAsText: "iets"})
	assert.ErrorIs(t, err, boom)
	assert.False(t, stage.IsMissingOutput(err))
}

func TestEngine_InputValidation(t *testing.T) {
	gen := newScripted()
	e := newEngine(t, gen, WithMaxInputBytes(8))

	_, err := e.Run(context.Background(), Input{InputAsText: "   "})
	assert.ErrorIs(t, err, ErrEmptyInput)

	_, err = e.Run(context.Background(), Input{InputAsText: "veel te lange tekst"})
	assert.ErrorIs(t, err, ErrInputTooLarge)
	assert.Empty(t, gen.called())
}

func TestEngine_TraceScope(t *testing.T) {
	tel := telemetry.NewTestTelemetry()
	gen := newScripted().classify("fruit", "pear").write("pear_writer", "plan")
	e := newEngine(t, gen, WithTracerProvider(tel.TracerProvider()), WithStageSpans(true))

	exec, err := e.Run(context.Background(), Input{InputAsText: "peren"})
	require.NoError(t, err)

	tel.AssertSpanExists(t, SpanName)
	tel.AssertSpanAttribute(t, SpanName, "workflow_id", WorkflowID)
	tel.AssertSpanAttribute(t, SpanName, "trace_source", TraceSource)
	tel.AssertSpanAttribute(t, SpanName, "workflow.outcome", "completed")
	tel.AssertSpanAttribute(t, "stage: Fruit", "stage.classification", "pear")
	tel.AssertSpanAttribute(t, "stage: pear_writer", "stage.effort", "high")
	assert.Len(t, tel.SpansByPrefix("stage: "), 2)

	root := tel.SpanByName(SpanName)
	assert.Equal(t, exec.TraceID, root.SpanContext().TraceID().String())
	for _, s := range tel.SpansByPrefix("stage: ") {
		assert.Equal(t, root.SpanContext().SpanID(), s.Parent().SpanID())
	}
}

func TestEngine_NoStageSpans(t *testing.T) {
	tel := telemetry.NewTestTelemetry()
	gen := newScripted().classify("fruit", "kiwi")
	e := newEngine(t, gen, WithTracerProvider(tel.TracerProvider()), WithStageSpans(false))

	_, err := e.Run(context.Background(), Input{InputAsText: "kiwi"})
	require.NoError(t, err)
	assert.Len(t, tel.Spans(), 1)
}

func TestEngine_PublishFailureIsNotFatal(t *testing.T) {
	logger := logging.NewTestLogger()
	pub := &recordingPublisher{err: errors.New("nats down")}
	gen := newScripted().classify("fruit", "pear").write("pear_writer", "plan")
	e := newEngine(t, gen, WithPublisher(pub), WithLogger(logger.Logger))

	exec, err := e.Run(context.Background(), Input{InputAsText: "peren"})
	require.NoError(t, err)
	assert.Equal(t, OutcomeCompleted, exec.Outcome)
	assert.Equal(t, []events.Type{events.TypeStarted, events.TypeStage, events.TypeStage, events.TypeCompleted}, pub.types())
	logger.AssertLogged(t, zapcore.WarnLevel, "publish event failed")
	logger.AssertField(t, "workflow finished", "execution.id", exec.ID)
}

func TestEngine_StageMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := NewMetrics(reg)
	gen := newScripted().classify("fruit", "pear").write("pear_writer", "plan")
	e := newEngine(t, gen, WithMetrics(metrics))

	_, err := e.Run(context.Background(), Input{InputAsText: "peren"})
	require.NoError(t, err)

	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.StageCallsTotal.WithLabelValues("pear_writer", "generation", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.ExecutionsTotal.WithLabelValues("completed")))
	assert.Equal(t, 0.0, testutil.ToFloat64(metrics.InFlight))
}

func TestEngine_ConcurrentRunsAreIndependent(t *testing.T) {
	gen := newScripted().classify("fruit", "pear").write("pear_writer", "plan")
	e := newEngine(t, gen)

	const n = 8
	done := make(chan *Execution, n)
	for i := 0; i < n; i++ {
		go func() {
			exec, err := e.Run(context.Background(), Input{InputAsText: "peren"})
			assert.NoError(t, err)
			done <- exec
		}()
	}
	ids := map[string]bool{}
	for i := 0; i < n; i++ {
		exec := <-done
		require.NotNil(t, exec)
		assert.Equal(t, 3, exec.Transcript().Len())
		ids[exec.ID] = true
	}
	assert.Len(t, ids, n)
}

func TestValidate(t *testing.T) {
	assert.ErrorIs(t, Validate(nil), ErrInvalidStep)
	assert.ErrorIs(t, Validate(&Single{}), ErrInvalidStep)
	assert.NoError(t, Validate(Done))

	_, err := NewEngine(nil)
	assert.ErrorIs(t, err, ErrInvalidStep)
}
