package observability

import (
	"context"
	"io"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutmetric"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

// MeterProvider mirrors the router's decision counter onto an OpenTelemetry
// metric stream, independent of the Prometheus registry Metrics exposes --
// for deployments that scrape via an OTel collector rather than /metrics.
// Optional: a nil *MeterProvider is never dereferenced by callers.
type MeterProvider struct {
	mp             *sdkmetric.MeterProvider
	decisionsTotal metric.Int64Counter
}

// NewMeterProvider builds a MeterProvider writing periodic exports to w
// (the CLI passes os.Stderr).
func NewMeterProvider(w io.Writer) (*MeterProvider, error) {
	exporter, err := stdoutmetric.New(stdoutmetric.WithWriter(w), stdoutmetric.WithoutTimestamps())
	if err != nil {
		return nil, err
	}
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exporter)))
	meter := mp.Meter(TracerName)
	counter, err := meter.Int64Counter("policyforge.decisions_total",
		metric.WithDescription("Total number of decisions returned by the router, by decision and mode"))
	if err != nil {
		return nil, err
	}
	return &MeterProvider{mp: mp, decisionsTotal: counter}, nil
}

// RecordDecision increments the mirrored decisions counter.
func (m *MeterProvider) RecordDecision(ctx context.Context, decision, mode string) {
	if m == nil {
		return
	}
	m.decisionsTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String("policyforge.decision", decision),
		attribute.String("policyforge.mode", mode),
	))
}

// Shutdown flushes and stops the provider.
func (m *MeterProvider) Shutdown(ctx context.Context) error {
	if m == nil {
		return nil
	}
	return m.mp.Shutdown(ctx)
}
