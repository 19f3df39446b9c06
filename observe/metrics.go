package observe

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metrics records policy evaluation metrics.
//
// Contract:
// - Concurrency: implementations must be safe for concurrent use.
// - Context: must return quickly; recording is best-effort.
// - Errors: implementations must not panic.
type Metrics interface {
	// RecordEvaluation records one pipeline run: its duration, the stage
	// that rejected it (empty when the call was accepted), and the error
	// outcome if any.
	RecordEvaluation(ctx context.Context, meta CallMeta, stage string, duration time.Duration, err error)
}

// metricsImpl is the concrete implementation of Metrics.
type metricsImpl struct {
	meter         metric.Meter
	totalCount    metric.Int64Counter
	rejectedCount metric.Int64Counter
	durationHist  metric.Float64Histogram
}

// NewMetrics creates a Metrics instance with the given meter.
func NewMetrics(meter metric.Meter) (Metrics, error) {
	totalCount, err := meter.Int64Counter(
		"policy.eval.total",
		metric.WithDescription("Total number of policy evaluations"),
		metric.WithUnit("{call}"),
	)
	if err != nil {
		return nil, err
	}

	rejectedCount, err := meter.Int64Counter(
		"policy.eval.rejected",
		metric.WithDescription("Number of calls rejected by a policy stage"),
		metric.WithUnit("{call}"),
	)
	if err != nil {
		return nil, err
	}

	durationHist, err := meter.Float64Histogram(
		"policy.eval.duration_ms",
		metric.WithDescription("Policy pipeline duration in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, err
	}

	return &metricsImpl{
		meter:         meter,
		totalCount:    totalCount,
		rejectedCount: rejectedCount,
		durationHist:  durationHist,
	}, nil
}

// RecordEvaluation records metrics for one pipeline run.
func (m *metricsImpl) RecordEvaluation(ctx context.Context, meta CallMeta, stage string, duration time.Duration, err error) {
	attrs := []attribute.KeyValue{
		attribute.String("rpc.service", meta.Service),
		attribute.String("rpc.method", meta.Method),
	}

	opt := metric.WithAttributes(attrs...)
	m.totalCount.Add(ctx, 1, opt)

	if err != nil && stage != "" {
		m.rejectedCount.Add(ctx, 1, metric.WithAttributes(append(attrs,
			attribute.String("policy.stage", stage))...))
	}

	m.durationHist.Record(ctx, float64(duration.Milliseconds()), opt)
}

// noopMetrics is a metrics implementation that does nothing.
type noopMetrics struct{}

// NewNoopMetrics returns a Metrics that discards everything.
func NewNoopMetrics() Metrics {
	return &noopMetrics{}
}

func (m *noopMetrics) RecordEvaluation(ctx context.Context, meta CallMeta, stage string, duration time.Duration, err error) {
}
