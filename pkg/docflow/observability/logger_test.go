package observability

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newCaptureLogger returns a JSON logger writing into buf at debug level.
func newCaptureLogger(buf *bytes.Buffer) *slog.Logger {
	return slog.New(slog.NewJSONHandler(buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

// records decodes every JSON line written to buf.
func records(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()
	var out []map[string]any
	for _, line := range bytes.Split(buf.Bytes(), []byte("\n")) {
		if len(line) == 0 {
			continue
		}
		var m map[string]any
		require.NoError(t, json.Unmarshal(line, &m))
		out = append(out, m)
	}
	return out
}

func lastRecord(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	all := records(t, buf)
	require.NotEmpty(t, all)
	return all[len(all)-1]
}

func TestEnrichLogger(t *testing.T) {
	t.Run("adds session_id, node_id, and attempt", func(t *testing.T) {
		var buf bytes.Buffer
		EnrichLogger(newCaptureLogger(&buf), "session_abc", "merge_sources", 2).Info("hello")

		rec := lastRecord(t, &buf)
		assert.Equal(t, "session_abc", rec["session_id"])
		assert.Equal(t, "merge_sources", rec["node_id"])
		assert.Equal(t, float64(2), rec["attempt"])
	})

	t.Run("nil logger returns nil", func(t *testing.T) {
		assert.Nil(t, EnrichLogger(nil, "s", "n", 1))
	})
}

func TestLogRunComplete_LevelFollowsErrors(t *testing.T) {
	var buf bytes.Buffer
	logger := newCaptureLogger(&buf)

	LogRunComplete(logger, "s1", 12.5, 4, 0)
	LogRunComplete(logger, "s1", 12.5, 4, 2)

	recs := records(t, &buf)
	require.Len(t, recs, 2)
	assert.Equal(t, "INFO", recs[0]["level"])
	assert.Equal(t, "WARN", recs[1]["level"])
	assert.Equal(t, float64(2), recs[1]["errors"])
	assert.Equal(t, float64(4), recs[1]["nodes_executed"])
}

func TestLogHelpers_Fields(t *testing.T) {
	var buf bytes.Buffer
	logger := newCaptureLogger(&buf)

	LogRunStart(logger, "s2", "mindmap")
	rec := lastRecord(t, &buf)
	assert.Equal(t, "workflow run starting", rec["msg"])
	assert.Equal(t, "mindmap", rec["output_type"])

	LogRunError(logger, "s2", errors.New("boom"), 3, "validate_output")
	rec = lastRecord(t, &buf)
	assert.Equal(t, "ERROR", rec["level"])
	assert.Equal(t, "boom", rec["error"])
	assert.Equal(t, "validate_output", rec["last_node"])

	LogNodeSkipped(logger, "extract_sources", "reused content")
	rec = lastRecord(t, &buf)
	assert.Equal(t, "node skipped", rec["msg"])
	assert.Equal(t, "reused content", rec["reason"])

	LogRetry(logger, "generate_output", 2, 3, "Generation failed: x")
	rec = lastRecord(t, &buf)
	assert.Equal(t, "WARN", rec["level"])
	assert.Equal(t, float64(2), rec["attempt"])

	LogCheckpoint(logger, "s2", "default", 128)
	rec = lastRecord(t, &buf)
	assert.Equal(t, "DEBUG", rec["level"])
	assert.Equal(t, float64(128), rec["size_bytes"])

	LogCheckpointError(logger, "s2", "put", errors.New("disk full"))
	rec = lastRecord(t, &buf)
	assert.Equal(t, "put", rec["operation"])
}

func TestLogHelpers_NilLogger(t *testing.T) {
	assert.NotPanics(t, func() {
		LogRunStart(nil, "s", "podcast")
		LogRunComplete(nil, "s", 1, 1, 0)
		LogRunError(nil, "s", errors.New("x"), 1, "n")
		LogNodeStart(nil, "n")
		LogNodeComplete(nil, "n", 1)
		LogNodeError(nil, "n", "x")
		LogNodeSkipped(nil, "n", "x")
		LogRetry(nil, "n", 1, 3, "x")
		LogCheckpoint(nil, "s", "ns", 1)
		LogCheckpointError(nil, "s", "get", errors.New("x"))
	})
}

func TestProgressFunc_DeliversEventsInOrder(t *testing.T) {
	var events []Event
	r := ProgressFunc(func(_ context.Context, ev Event) {
		events = append(events, ev)
	})
	ctx := context.Background()

	r.NodeStart(ctx, "merge_sources", 4, 9)
	r.Metric(ctx, "Content Length", 42, "chars")
	r.NodeEnd(ctx, "merge_sources", true, "42 chars")

	require.Len(t, events, 3)
	assert.Equal(t, Event{Kind: EventNodeStart, Node: "merge_sources", Step: 4, Total: 9}, events[0])
	assert.Equal(t, EventMetric, events[1].Kind)
	assert.Equal(t, 42.0, events[1].Value)
	assert.Equal(t, Event{Kind: EventNodeEnd, Node: "merge_sources", Success: true, Details: "42 chars"}, events[2])
}

func TestProgressFunc_NilIsSafe(t *testing.T) {
	var r ProgressFunc
	assert.NotPanics(t, func() {
		r.NodeStart(context.Background(), "n", 1, 1)
		r.NodeEnd(context.Background(), "n", false, "")
		r.Metric(context.Background(), "m", 1, "")
	})
}

func TestMultiReporter_FansOut(t *testing.T) {
	var a, b int
	count := func(n *int) ProgressFunc {
		return func(context.Context, Event) { *n++ }
	}
	var buf bytes.Buffer
	m := MultiReporter{count(&a), nil, count(&b), LogReporter{Logger: newCaptureLogger(&buf)}}

	m.NodeStart(context.Background(), "n", 1, 2)
	m.NodeEnd(context.Background(), "n", false, "failed")

	assert.Equal(t, 2, a)
	assert.Equal(t, 2, b)
	rec := lastRecord(t, &buf)
	assert.Equal(t, "step finished", rec["msg"])
	assert.Equal(t, "WARN", rec["level"])
}
