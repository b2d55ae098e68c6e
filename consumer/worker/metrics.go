package worker

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const instrumentationName = "github.com/tnqbao/gau-job-orchestrator/consumer/worker"

type executorMetrics struct {
	duration   metric.Float64Histogram
	executions metric.Int64Counter
	duplicates metric.Int64Counter
}

// newExecutorMetrics uses the global MeterProvider; instrument errors fall
// back to noop instruments.
func newExecutorMetrics(meter metric.Meter) *executorMetrics {
	if meter == nil {
		meter = otel.Meter(instrumentationName)
	}

	duration, _ := meter.Float64Histogram(
		"jobs.duration",
		metric.WithDescription("Duration of job execution in seconds"),
		metric.WithUnit("s"),
	)
	executions, _ := meter.Int64Counter(
		"jobs.executions",
		metric.WithDescription("Jobs that reached a terminal state"),
		metric.WithUnit("{execution}"),
	)
	duplicates, _ := meter.Int64Counter(
		"jobs.duplicate_deliveries",
		metric.WithDescription("Deliveries skipped because the job was already terminal"),
	)

	return &executorMetrics{
		duration:   duration,
		executions: executions,
		duplicates: duplicates,
	}
}

func (m *executorMetrics) recordExecution(ctx context.Context, action, state string, elapsed time.Duration) {
	attrs := metric.WithAttributes(
		attribute.String("job.action", action),
		attribute.String("job.state", state),
	)
	m.duration.Record(ctx, elapsed.Seconds(), attrs)
	m.executions.Add(ctx, 1, attrs)
}

func (m *executorMetrics) recordDuplicate(ctx context.Context, action string) {
	m.duplicates.Add(ctx, 1, metric.WithAttributes(attribute.String("job.action", action)))
}
