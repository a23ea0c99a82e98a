package workflow

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/brandflow/internal/events"
	"github.com/fyrsmithlabs/brandflow/internal/logging"
	"github.com/fyrsmithlabs/brandflow/internal/stage"
	"github.com/fyrsmithlabs/brandflow/internal/transcript"
)

// Engine walks a dispatch tree for each request.
type Engine struct {
	root          Step
	scope         *TraceScope
	logger        *logging.Logger
	metrics       *Metrics
	publisher     events.Publisher
	stageSpans    bool
	maxInputBytes int
	newID         func() string
	now           func() time.Time
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the engine logger.
func WithLogger(l *logging.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// WithTracerProvider sets the provider for the execution span.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(e *Engine) { e.scope = NewTraceScope(tp) }
}

// WithMetrics sets the Prometheus metrics.
func WithMetrics(m *Metrics) Option {
	return func(e *Engine) { e.metrics = m }
}

// WithPublisher sets the lifecycle event publisher.
func WithPublisher(p events.Publisher) Option {
	return func(e *Engine) { e.publisher = p }
}

// WithStageSpans enables a child span per stage call.
func WithStageSpans(enabled bool) Option {
	return func(e *Engine) { e.stageSpans = enabled }
}

// WithMaxInputBytes bounds the size of input_as_text. Zero disables the
// check.
func WithMaxInputBytes(n int) Option {
	return func(e *Engine) { e.maxInputBytes = n }
}

// NewEngine validates the tree below root and returns an engine for it.
func NewEngine(root Step, opts ...Option) (*Engine, error) {
	if err := Validate(root); err != nil {
		return nil, fmt.Errorf("invalid workflow tree: %w", err)
	}
	e := &Engine{
		root:       root,
		logger:     logging.NewNop(),
		publisher:  events.Nop{},
		stageSpans: true,
		newID:      uuid.NewString,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.scope == nil {
		e.scope = NewTraceScope(otel.GetTracerProvider())
	}
	return e, nil
}

// Run executes the workflow for in and returns once a terminal state is
// reached. On failure the returned Execution records how far it got and the
// error wraps the stage failure.
func (e *Engine) Run(ctx context.Context, in Input) (*Execution, error) {
	if strings.TrimSpace(in.InputAsText) == "" {
		return nil, ErrEmptyInput
	}
	if e.maxInputBytes > 0 && len(in.InputAsText) > e.maxInputBytes {
		return nil, fmt.Errorf("%w: %d bytes (max %d)", ErrInputTooLarge, len(in.InputAsText), e.maxInputBytes)
	}

	exec := &Execution{
		ID:         e.newID(),
		StartedAt:  e.now(),
		transcript: transcript.New(),
	}
	exec.enter(StateStart)

	ctx, span := e.scope.Start(ctx, exec.ID)
	if sc := span.SpanContext(); sc.IsValid() {
		exec.TraceID = sc.TraceID().String()
	}
	ctx = logging.WithExecutionID(ctx, exec.ID)

	if e.metrics != nil {
		e.metrics.InFlight.Inc()
		defer e.metrics.InFlight.Dec()
	}

	exec.transcript.Append(transcript.UserText(in.InputAsText))
	e.logger.Info(ctx, "workflow started", zap.Int("input_bytes", len(in.InputAsText)))
	e.publish(ctx, exec, events.Event{Type: events.TypeStarted})

	err := e.walk(ctx, exec)

	exec.FinishedAt = e.now()
	if err != nil {
		exec.Outcome = OutcomeFailed
		exec.Error = err.Error()
		exec.enter(StateDone)
	}
	span.SetAttributes(
		attribute.String("workflow.outcome", string(exec.Outcome)),
		attribute.StringSlice("workflow.path", exec.pathStrings()),
	)
	endSpan(span, err)
	e.finish(ctx, exec, err)
	return exec, err
}

func (e *Engine) walk(ctx context.Context, exec *Execution) error {
	step := e.root
	for {
		exec.enter(step.State())

		switch s := step.(type) {
		case *Terminal:
			if s.Unmatched() {
				exec.Outcome = OutcomeUnmatched
			} else {
				exec.Outcome = OutcomeCompleted
			}
			return nil

		case classifying:
			value, next, res, err := e.classify(ctx, exec, s)
			if err != nil {
				return err
			}
			exec.Results = append(exec.Results, res)
			matched := !isUnmatched(next)
			exec.Path = append(exec.Path, PathEntry{Classifier: s.ClassifierID(), Value: value, Matched: matched})
			if len(exec.Path) == 1 {
				ctx = logging.WithBrand(ctx, value)
			}
			if !matched {
				e.logger.Info(ctx, "classification has no branch",
					zap.String("classifier", s.ClassifierID()),
					zap.String("value", value))
				if e.metrics != nil {
					e.metrics.UnmatchedTotal.WithLabelValues(s.ClassifierID()).Inc()
				}
			}
			step = next

		case *Single:
			res, err := e.runStage(ctx, exec, s.Stage, exec.transcript)
			if err != nil {
				return err
			}
			exec.Results = append(exec.Results, res)
			exec.Output = res.Output
			step = s.next()

		case *ChainCoordinator:
			results, err := s.Run(ctx, exec.transcript, func(ctx context.Context, gs *stage.GenerationStage, tr *transcript.Transcript) (stage.Result, error) {
				return e.runStage(ctx, exec, gs, tr)
			})
			if err != nil {
				return err
			}
			exec.Results = append(exec.Results, results...)
			exec.Output = results[len(results)-1].Output
			step = s.next()

		case *ApprovalGate:
			artifact, _ := exec.transcript.Last()
			decision, next := s.Evaluate(ctx, artifact)
			exec.Gate = &decision
			e.logger.Info(ctx, "approval gate decided",
				zap.String("gate", decision.Gate),
				zap.String("predicate", decision.Predicate),
				zap.Bool("approved", decision.Approved))
			step = next

		default:
			return fmt.Errorf("%w: %T", ErrInvalidStep, step)
		}
	}
}

func isUnmatched(s Step) bool {
	t, ok := s.(*Terminal)
	return ok && t.Unmatched()
}

func (e *Engine) classify(ctx context.Context, exec *Execution, b classifying) (string, Step, stage.Result, error) {
	var (
		value string
		next  Step
	)
	res, err := e.instrument(ctx, exec, b.ClassifierID(), b.ClassifierName(), stage.KindClassifier, b.ClassifierEffort(),
		func(ctx context.Context) (stage.Result, error) {
			var (
				res stage.Result
				err error
			)
			value, next, res, err = b.classify(ctx, exec.transcript)
			return res, err
		}, func() string { return value })
	return value, next, res, err
}

func (e *Engine) runStage(ctx context.Context, exec *Execution, s *stage.GenerationStage, tr *transcript.Transcript) (stage.Result, error) {
	return e.instrument(ctx, exec, s.ID(), s.Name(), stage.KindGeneration, s.Effort(),
		func(ctx context.Context) (stage.Result, error) {
			return s.Run(ctx, tr)
		}, nil)
}

// instrument wraps one stage call with a span, metrics, a log line and a
// stage event. value, when set, reports the classification after the call.
func (e *Engine) instrument(
	ctx context.Context,
	exec *Execution,
	id, name string,
	kind stage.Kind,
	effort stage.Effort,
	call func(context.Context) (stage.Result, error),
	value func() string,
) (stage.Result, error) {
	callCtx := ctx
	var span trace.Span
	if e.stageSpans {
		callCtx, span = e.scope.StartStage(ctx, id, name, string(kind), string(effort))
	}

	start := time.Now()
	res, err := call(callCtx)
	elapsed := time.Since(start)

	var v string
	if value != nil && err == nil {
		v = value()
	}

	if span != nil {
		span.SetAttributes(attribute.Int("stage.messages", len(res.Messages)))
		if v != "" {
			span.SetAttributes(attribute.String("stage.classification", v))
		}
		endSpan(span, err)
	}

	if e.metrics != nil {
		e.metrics.StageCallsTotal.WithLabelValues(id, string(kind), callResult(err)).Inc()
		e.metrics.StageDuration.WithLabelValues(id, string(kind)).Observe(elapsed.Seconds())
	}

	fields := []zap.Field{
		zap.String("stage", id),
		zap.String("kind", string(kind)),
		zap.Duration("duration", elapsed),
		zap.Int("messages", len(res.Messages)),
	}
	if err != nil {
		e.logger.Error(ctx, "stage failed", append(fields, zap.Error(err))...)
		return res, err
	}
	if v != "" {
		fields = append(fields, zap.String("classification", v))
	}
	e.logger.Debug(ctx, "stage completed", fields...)

	e.publish(ctx, exec, events.Event{
		Type:      events.TypeStage,
		StageID:   id,
		StageKind: string(kind),
		Value:     v,
	})
	return res, nil
}

func callResult(err error) string {
	switch {
	case err == nil:
		return "ok"
	case stage.IsMissingOutput(err), errors.Is(err, stage.ErrOutputSchema):
		return "missing"
	default:
		return "error"
	}
}

func (e *Engine) finish(ctx context.Context, exec *Execution, err error) {
	if e.metrics != nil {
		e.metrics.ExecutionsTotal.WithLabelValues(string(exec.Outcome)).Inc()
		e.metrics.ExecutionDuration.WithLabelValues(string(exec.Outcome)).Observe(exec.Duration().Seconds())
	}

	fields := []zap.Field{
		zap.String("outcome", string(exec.Outcome)),
		zap.Strings("path", exec.pathStrings()),
		zap.Int("stages", len(exec.Results)),
		zap.Duration("duration", exec.Duration()),
	}
	if err != nil {
		e.logger.Error(ctx, "workflow failed", append(fields, zap.Error(err))...)
		e.publish(ctx, exec, events.Event{Type: events.TypeFailed, Error: err.Error()})
		return
	}
	e.logger.Info(ctx, "workflow finished", fields...)
	e.publish(ctx, exec, events.Event{Type: events.TypeCompleted})
}

// publish fills in execution fields and sends ev. Failures are logged.
func (e *Engine) publish(ctx context.Context, exec *Execution, ev events.Event) {
	ev.ExecutionID = exec.ID
	ev.TraceID = exec.TraceID
	ev.Timestamp = e.now().UTC()
	ev.Outcome = string(exec.Outcome)
	ev.Path = exec.pathStrings()
	if n := len(exec.States); n > 0 {
		ev.State = string(exec.States[n-1])
	}
	if err := e.publisher.Publish(ctx, ev); err != nil {
		e.logger.Warn(ctx, "publish event failed",
			zap.String("event", string(ev.Type)),
			zap.Error(err))
	}
}
