package observability

import (
	"context"
	"log/slog"
)

// Reporter receives progress events from inside nodes.
//
// Events arrive in node execution order on the goroutine running the workflow.
// Implementations must not block for long; there is no backpressure.
type Reporter interface {
	// NodeStart reports that a node began work. step and total are 1-based
	// positions within the current chain; either may be zero when unknown.
	NodeStart(ctx context.Context, node string, step, total int)

	// NodeEnd reports that a node finished, with a short human-readable detail.
	NodeEnd(ctx context.Context, node string, success bool, details string)

	// Metric reports a named measurement, such as merged content length.
	Metric(ctx context.Context, name string, value float64, unit string)
}

// EventKind tags a progress Event.
type EventKind string

// Event kinds.
const (
	EventNodeStart EventKind = "node_start"
	EventNodeEnd   EventKind = "node_end"
	EventMetric    EventKind = "metric"
)

// Event is the flattened form of a progress report, delivered to a ProgressFunc.
type Event struct {
	Kind    EventKind `json:"kind"`
	Node    string    `json:"node,omitempty"`
	Step    int       `json:"step,omitempty"`
	Total   int       `json:"total,omitempty"`
	Success bool      `json:"success,omitempty"`
	Details string    `json:"details,omitempty"`
	Name    string    `json:"name,omitempty"`
	Value   float64   `json:"value,omitempty"`
	Unit    string    `json:"unit,omitempty"`
}

// ProgressFunc adapts a callback to the Reporter interface.
type ProgressFunc func(ctx context.Context, ev Event)

var _ Reporter = ProgressFunc(nil)

func (f ProgressFunc) NodeStart(ctx context.Context, node string, step, total int) {
	if f != nil {
		f(ctx, Event{Kind: EventNodeStart, Node: node, Step: step, Total: total})
	}
}

func (f ProgressFunc) NodeEnd(ctx context.Context, node string, success bool, details string) {
	if f != nil {
		f(ctx, Event{Kind: EventNodeEnd, Node: node, Success: success, Details: details})
	}
}

func (f ProgressFunc) Metric(ctx context.Context, name string, value float64, unit string) {
	if f != nil {
		f(ctx, Event{Kind: EventMetric, Name: name, Value: value, Unit: unit})
	}
}

// LogReporter writes progress events to a slog logger.
type LogReporter struct {
	Logger *slog.Logger
}

func (r LogReporter) NodeStart(ctx context.Context, node string, step, total int) {
	if r.Logger == nil {
		return
	}
	r.Logger.InfoContext(ctx, "step started",
		slog.String("node_id", node),
		slog.Int("step", step),
		slog.Int("total", total),
	)
}

func (r LogReporter) NodeEnd(ctx context.Context, node string, success bool, details string) {
	if r.Logger == nil {
		return
	}
	level := slog.LevelInfo
	if !success {
		level = slog.LevelWarn
	}
	r.Logger.Log(ctx, level, "step finished",
		slog.String("node_id", node),
		slog.Bool("success", success),
		slog.String("details", details),
	)
}

func (r LogReporter) Metric(ctx context.Context, name string, value float64, unit string) {
	if r.Logger == nil {
		return
	}
	r.Logger.DebugContext(ctx, "progress metric",
		slog.String("name", name),
		slog.Float64("value", value),
		slog.String("unit", unit),
	)
}

// MetricsReporter forwards progress metrics to a MetricsRecorder.
// Node start and end events are ignored; the engine records those itself.
type MetricsReporter struct {
	Recorder MetricsRecorder
}

func (MetricsReporter) NodeStart(context.Context, string, int, int)   {}
func (MetricsReporter) NodeEnd(context.Context, string, bool, string) {}

func (r MetricsReporter) Metric(ctx context.Context, name string, value float64, _ string) {
	if r.Recorder != nil {
		r.Recorder.RecordValue(ctx, name, value)
	}
}

// MultiReporter fans each event out to every reporter in order.
type MultiReporter []Reporter

func (m MultiReporter) NodeStart(ctx context.Context, node string, step, total int) {
	for _, r := range m {
		if r != nil {
			r.NodeStart(ctx, node, step, total)
		}
	}
}

func (m MultiReporter) NodeEnd(ctx context.Context, node string, success bool, details string) {
	for _, r := range m {
		if r != nil {
			r.NodeEnd(ctx, node, success, details)
		}
	}
}

func (m MultiReporter) Metric(ctx context.Context, name string, value float64, unit string) {
	for _, r := range m {
		if r != nil {
			r.Metric(ctx, name, value, unit)
		}
	}
}
