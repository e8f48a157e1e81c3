package observability

import (
	"context"
	"io"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
	"go.opentelemetry.io/otel/trace"
)

// TracerName identifies the tracer used for Verify/Decide spans.
const TracerName = "policyforge-decisionengine"

// Provider wraps the OpenTelemetry TracerProvider used around the
// verifier and router's hot path. With no HTTP surface in this module, the
// only exporter that makes sense locally is a stdout writer -- a real
// deployment wires its own OTLP exporter around the same Provider.
type Provider struct {
	tp     *sdktrace.TracerProvider
	tracer trace.Tracer
}

// NewProvider builds a Provider writing spans to w (the CLI passes
// os.Stderr). serviceVersion becomes the service.version resource
// attribute; the CLI passes the compiled policy's content hash.
func NewProvider(w io.Writer, serviceVersion string) (*Provider, error) {
	exporter, err := stdouttrace.New(stdouttrace.WithWriter(w), stdouttrace.WithoutTimestamps())
	if err != nil {
		return nil, err
	}
	res := resource.NewWithAttributes(
		semconv.SchemaURL,
		semconv.ServiceName("policyforge-decisionengine"),
		semconv.ServiceVersion(serviceVersion),
	)
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(tp)
	return &Provider{tp: tp, tracer: tp.Tracer(TracerName)}, nil
}

// Tracer returns the tracer spans should be started from.
func (p *Provider) Tracer() trace.Tracer { return p.tracer }

// Shutdown flushes and stops the provider.
func (p *Provider) Shutdown(ctx context.Context) error { return p.tp.Shutdown(ctx) }

// StartDecideSpan starts the span wrapping one Decide call.
func (p *Provider) StartDecideSpan(ctx context.Context, mode, requestID string) (context.Context, trace.Span) {
	return p.tracer.Start(ctx, "decisionengine.decide",
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(
			attribute.String("policyforge.mode", mode),
			attribute.String("policyforge.request_id", requestID),
		),
	)
}

// StartCheckSpan starts the span wrapping one verifier Check call.
func (p *Provider) StartCheckSpan(ctx context.Context) (context.Context, trace.Span) {
	return p.tracer.Start(ctx, "decisionengine.check", trace.WithSpanKind(trace.SpanKindInternal))
}

// RecordOutcome annotates a span with the final decision and, on failure,
// records the error.
func RecordOutcome(span trace.Span, decision string, err error) {
	span.SetAttributes(attribute.String("policyforge.decision", decision))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return
	}
	span.SetStatus(codes.Ok, "")
}
