package observe

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
)

// CallMeta identifies one evaluated call for telemetry purposes.
type CallMeta struct {
	Service string // Fully qualified service name (required)
	Method  string // Method name (required)
}

// SpanName returns the deterministic span name for this call.
// Format: policy.eval.<service>.<method>
func (m CallMeta) SpanName() string {
	return "policy.eval." + m.Service + "." + m.Method
}

// FullMethod returns the service-qualified method identifier.
func (m CallMeta) FullMethod() string {
	return m.Service + "/" + m.Method
}

// Tracer wraps OpenTelemetry tracing with per-call span management.
//
// Contract:
// - Concurrency: implementations must be safe for concurrent use.
// - Errors: EndSpan must be best-effort and must not panic.
type Tracer interface {
	// StartSpan starts a new span for one policy evaluation.
	StartSpan(ctx context.Context, meta CallMeta) (context.Context, trace.Span)

	// EndSpan ends the span, recording any error and the stage that
	// rejected the call (empty for accepted calls).
	EndSpan(span trace.Span, stage string, err error)
}

// tracerImpl is the concrete implementation of Tracer.
type tracerImpl struct {
	tracer trace.Tracer
}

// NewTracer creates a Tracer wrapping the given OpenTelemetry tracer.
func NewTracer(t trace.Tracer) Tracer {
	return &tracerImpl{tracer: t}
}

// StartSpan starts a new span with call metadata as attributes.
func (t *tracerImpl) StartSpan(ctx context.Context, meta CallMeta) (context.Context, trace.Span) {
	attrs := []attribute.KeyValue{
		attribute.String("rpc.service", meta.Service),
		attribute.String("rpc.method", meta.Method),
	}

	return t.tracer.Start(ctx, meta.SpanName(),
		trace.WithAttributes(attrs...),
		trace.WithSpanKind(trace.SpanKindInternal),
	)
}

// EndSpan ends the span and records the rejection stage and error status.
func (t *tracerImpl) EndSpan(span trace.Span, stage string, err error) {
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		if stage != "" {
			span.SetAttributes(attribute.String("policy.rejected_stage", stage))
		}
		span.RecordError(err)
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}

// noopTracer is a tracer that does nothing.
type noopTracer struct {
	noop trace.Tracer
}

// NewNoopTracer creates a no-op tracer.
func NewNoopTracer() Tracer {
	return &noopTracer{
		noop: tracenoop.NewTracerProvider().Tracer("noop"),
	}
}

func (t *noopTracer) StartSpan(ctx context.Context, meta CallMeta) (context.Context, trace.Span) {
	return t.noop.Start(ctx, meta.SpanName())
}

func (t *noopTracer) EndSpan(span trace.Span, stage string, err error) {
	span.End()
}
