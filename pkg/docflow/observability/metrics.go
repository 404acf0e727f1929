package observability

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "docflow"

// MetricsRecorder records workflow metrics.
// Use NewMetricsRecorder() for OTel metrics or NoopMetrics{} when disabled.
type MetricsRecorder interface {
	// RecordNodeExecution records a node execution with its duration and outcome.
	RecordNodeExecution(ctx context.Context, nodeID string, duration time.Duration, failed bool)

	// RecordRun records a completed workflow run for a branch.
	RecordRun(ctx context.Context, branch string, success bool, duration time.Duration)

	// RecordRetry records one retry taken on a node.
	RecordRetry(ctx context.Context, nodeID string)

	// RecordSkip records a shared-chain skip with its reason.
	RecordSkip(ctx context.Context, reason string)

	// RecordCheckpoint records a checkpoint access. hit is meaningful for loads only.
	RecordCheckpoint(ctx context.Context, op string, hit bool, sizeBytes int64)

	// RecordValue records a free-form progress metric reported by a node.
	RecordValue(ctx context.Context, name string, value float64)
}

// otelMetrics implements MetricsRecorder using OpenTelemetry.
type otelMetrics struct {
	nodeExecutions metric.Int64Counter
	nodeLatency    metric.Float64Histogram
	nodeErrors     metric.Int64Counter
	runs           metric.Int64Counter
	runLatency     metric.Float64Histogram
	retries        metric.Int64Counter
	skips          metric.Int64Counter
	checkpointOps  metric.Int64Counter
	checkpointSize metric.Int64Histogram
	progressValues metric.Float64Histogram
}

var (
	defaultMetrics     *otelMetrics
	defaultMetricsOnce sync.Once
	defaultMetricsErr  error
)

func getDefaultMetrics() (*otelMetrics, error) {
	defaultMetricsOnce.Do(func() {
		defaultMetrics, defaultMetricsErr = newOtelMetrics(otel.Meter(meterName))
	})
	return defaultMetrics, defaultMetricsErr
}

func newOtelMetrics(meter metric.Meter) (*otelMetrics, error) {
	var (
		m   otelMetrics
		err error
	)
	if m.nodeExecutions, err = meter.Int64Counter("docflow.node.executions",
		metric.WithDescription("Number of node executions")); err != nil {
		return nil, err
	}
	if m.nodeLatency, err = meter.Float64Histogram("docflow.node.latency_ms",
		metric.WithDescription("Node execution latency in milliseconds"),
		metric.WithUnit("ms")); err != nil {
		return nil, err
	}
	if m.nodeErrors, err = meter.Int64Counter("docflow.node.errors",
		metric.WithDescription("Number of node failures recorded into state")); err != nil {
		return nil, err
	}
	if m.runs, err = meter.Int64Counter("docflow.run.count",
		metric.WithDescription("Number of workflow runs")); err != nil {
		return nil, err
	}
	if m.runLatency, err = meter.Float64Histogram("docflow.run.latency_ms",
		metric.WithDescription("Workflow run latency in milliseconds"),
		metric.WithUnit("ms")); err != nil {
		return nil, err
	}
	if m.retries, err = meter.Int64Counter("docflow.node.retries",
		metric.WithDescription("Number of retries taken")); err != nil {
		return nil, err
	}
	if m.skips, err = meter.Int64Counter("docflow.sources.skips",
		metric.WithDescription("Number of skipped source-processing chains")); err != nil {
		return nil, err
	}
	if m.checkpointOps, err = meter.Int64Counter("docflow.checkpoint.ops",
		metric.WithDescription("Number of checkpoint operations")); err != nil {
		return nil, err
	}
	if m.checkpointSize, err = meter.Int64Histogram("docflow.checkpoint.size_bytes",
		metric.WithDescription("Checkpoint size in bytes"),
		metric.WithUnit("By")); err != nil {
		return nil, err
	}
	if m.progressValues, err = meter.Float64Histogram("docflow.progress.value",
		metric.WithDescription("Values reported by nodes through the progress reporter")); err != nil {
		return nil, err
	}
	return &m, nil
}

// NewMetricsRecorder returns a MetricsRecorder that uses the global OpenTelemetry
// meter provider. If initialization fails, it returns a no-op recorder.
//
// Configure the provider before the first call:
//
//	otel.SetMeterProvider(yourProvider)
func NewMetricsRecorder() MetricsRecorder {
	m, err := getDefaultMetrics()
	if err != nil {
		slog.Warn("metrics initialization failed, using no-op recorder",
			slog.String("error", err.Error()))
		return NoopMetrics{}
	}
	return m
}

// NewMetricsRecorderFromMeter returns a MetricsRecorder bound to meter.
func NewMetricsRecorderFromMeter(meter metric.Meter) (MetricsRecorder, error) {
	m, err := newOtelMetrics(meter)
	if err != nil {
		return nil, err
	}
	return m, nil
}

func (m *otelMetrics) RecordNodeExecution(ctx context.Context, nodeID string, duration time.Duration, failed bool) {
	attrs := metric.WithAttributes(attribute.String("node_id", nodeID))
	m.nodeExecutions.Add(ctx, 1, attrs)
	m.nodeLatency.Record(ctx, float64(duration.Milliseconds()), attrs)
	if failed {
		m.nodeErrors.Add(ctx, 1, attrs)
	}
}

func (m *otelMetrics) RecordRun(ctx context.Context, branch string, success bool, duration time.Duration) {
	attrs := metric.WithAttributes(
		attribute.String("branch", branch),
		attribute.Bool("success", success),
	)
	m.runs.Add(ctx, 1, attrs)
	m.runLatency.Record(ctx, float64(duration.Milliseconds()), attrs)
}

func (m *otelMetrics) RecordRetry(ctx context.Context, nodeID string) {
	m.retries.Add(ctx, 1, metric.WithAttributes(attribute.String("node_id", nodeID)))
}

func (m *otelMetrics) RecordSkip(ctx context.Context, reason string) {
	m.skips.Add(ctx, 1, metric.WithAttributes(attribute.String("reason", reason)))
}

func (m *otelMetrics) RecordCheckpoint(ctx context.Context, op string, hit bool, sizeBytes int64) {
	attrs := metric.WithAttributes(
		attribute.String("op", op),
		attribute.Bool("hit", hit),
	)
	m.checkpointOps.Add(ctx, 1, attrs)
	if sizeBytes > 0 {
		m.checkpointSize.Record(ctx, sizeBytes, metric.WithAttributes(attribute.String("op", op)))
	}
}

func (m *otelMetrics) RecordValue(ctx context.Context, name string, value float64) {
	m.progressValues.Record(ctx, value, metric.WithAttributes(attribute.String("name", name)))
}
