package workflow

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Static trace metadata for every execution.
const (
	SpanName    = "Agent: concepten en marketingplannen"
	WorkflowID  = "wf_68f8e5d9c4e48190a16e42dc67b5ae4f00631113cc7603a2"
	TraceSource = "agent-builder"

	instrumentationName = "github.com/fyrsmithlabs/brandflow/internal/workflow"
)

// TraceScope wraps an execution in one span.
type TraceScope struct {
	tracer trace.Tracer
}

// NewTraceScope returns a scope using tp.
func NewTraceScope(tp trace.TracerProvider) *TraceScope {
	return &TraceScope{tracer: tp.Tracer(instrumentationName)}
}

// Start opens the execution span.
func (s *TraceScope) Start(ctx context.Context, executionID string) (context.Context, trace.Span) {
	return s.tracer.Start(ctx, SpanName,
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(
			attribute.String("workflow_id", WorkflowID),
			attribute.String("trace_source", TraceSource),
			attribute.String("execution.id", executionID),
		),
	)
}

// StartStage opens a child span for one stage call.
func (s *TraceScope) StartStage(ctx context.Context, id, name string, kind, effort string) (context.Context, trace.Span) {
	return s.tracer.Start(ctx, "stage: "+name,
		trace.WithAttributes(
			attribute.String("stage.id", id),
			attribute.String("stage.kind", kind),
			attribute.String("stage.effort", effort),
		),
	)
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}
