package observability

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

// NoopMetrics is a MetricsRecorder that does nothing.
type NoopMetrics struct{}

var _ MetricsRecorder = NoopMetrics{}

func (NoopMetrics) RecordNodeExecution(context.Context, string, time.Duration, bool) {}
func (NoopMetrics) RecordRun(context.Context, string, bool, time.Duration)           {}
func (NoopMetrics) RecordRetry(context.Context, string)                              {}
func (NoopMetrics) RecordSkip(context.Context, string)                               {}
func (NoopMetrics) RecordCheckpoint(context.Context, string, bool, int64)            {}
func (NoopMetrics) RecordValue(context.Context, string, float64)                     {}

// NoopSpanManager is a SpanManager that does nothing.
type NoopSpanManager struct{}

var _ SpanManager = NoopSpanManager{}

var noopSpan = noop.Span{}

// StartRunSpan returns the context unchanged and a no-op span.
func (NoopSpanManager) StartRunSpan(ctx context.Context, _, _ string) (context.Context, trace.Span) {
	return ctx, noopSpan
}

// StartNodeSpan returns the context unchanged and a no-op span.
func (NoopSpanManager) StartNodeSpan(ctx context.Context, _ string) (context.Context, trace.Span) {
	return ctx, noopSpan
}

func (NoopSpanManager) EndSpan(trace.Span, string)                                {}
func (NoopSpanManager) AddSpanEvent(context.Context, string, ...attribute.KeyValue) {}

// NoopReporter is a Reporter that drops every event.
type NoopReporter struct{}

var _ Reporter = NoopReporter{}

func (NoopReporter) NodeStart(context.Context, string, int, int)   {}
func (NoopReporter) NodeEnd(context.Context, string, bool, string) {}
func (NoopReporter) Metric(context.Context, string, float64, string) {}
