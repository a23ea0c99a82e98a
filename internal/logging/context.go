package logging

import (
	"context"
	"regexp"

	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// ContextFields extracts correlation data from context.
func ContextFields(ctx context.Context) []zap.Field {
	if ctx == nil {
		return nil
	}
	fields := make([]zap.Field, 0, 6)

	if span := trace.SpanFromContext(ctx); span.SpanContext().IsValid() {
		sc := span.SpanContext()
		fields = append(fields,
			zap.String("trace_id", sc.TraceID().String()),
			zap.String("span_id", sc.SpanID().String()),
		)
	}

	if id := ExecutionIDFromContext(ctx); id != "" {
		fields = append(fields, zap.String("execution.id", id))
	}
	if brand := BrandFromContext(ctx); brand != "" {
		fields = append(fields, zap.String("brand", brand))
	}
	if id := RequestIDFromContext(ctx); id != "" {
		fields = append(fields, zap.String("request.id", id))
	}

	return fields
}

type executionCtxKey struct{}
type brandCtxKey struct{}
type requestCtxKey struct{}
type loggerCtxKey struct{}

const maxIDLen = 128

var idPattern = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)

// validID rejects empty, oversized or non [A-Za-z0-9_-] identifiers.
func validID(id string) bool {
	return id != "" && len(id) <= maxIDLen && idPattern.MatchString(id)
}

// WithExecutionID tags ctx with a workflow execution id.
// Invalid ids are dropped so untrusted input never reaches log fields.
func WithExecutionID(ctx context.Context, id string) context.Context {
	if !validID(id) {
		return ctx
	}
	return context.WithValue(ctx, executionCtxKey{}, id)
}

// ExecutionIDFromContext returns the execution id, or "".
func ExecutionIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(executionCtxKey{}).(string)
	return id
}

// WithBrand tags ctx with the classified brand.
func WithBrand(ctx context.Context, brand string) context.Context {
	if !validID(brand) {
		return ctx
	}
	return context.WithValue(ctx, brandCtxKey{}, brand)
}

// BrandFromContext returns the brand, or "".
func BrandFromContext(ctx context.Context) string {
	b, _ := ctx.Value(brandCtxKey{}).(string)
	return b
}

// WithRequestID tags ctx with an inbound request id.
func WithRequestID(ctx context.Context, id string) context.Context {
	if !validID(id) {
		return ctx
	}
	return context.WithValue(ctx, requestCtxKey{}, id)
}

// RequestIDFromContext returns the request id, or "".
func RequestIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(requestCtxKey{}).(string)
	return id
}

// WithLogger stores logger in context.
func WithLogger(ctx context.Context, logger *Logger) context.Context {
	return context.WithValue(ctx, loggerCtxKey{}, logger)
}

// FromContext retrieves the logger from context, or a nop logger.
func FromContext(ctx context.Context) *Logger {
	if l, ok := ctx.Value(loggerCtxKey{}).(*Logger); ok && l != nil {
		return l
	}
	return NewNop()
}
