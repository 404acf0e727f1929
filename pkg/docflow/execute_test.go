package docflow

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestRun_RoutesEachBranch tests that every output type runs the shared chain
// followed by exactly its branch chain.
func TestRun_RoutesEachBranch(t *testing.T) {
	cases := map[OutputType]Branch{
		OutputArticlePDF:       BranchDocument,
		OutputPresentationPPTX: BranchDocument,
		OutputPodcast:          BranchPodcast,
		OutputMindMap:          BranchMindMap,
		OutputImageGenerate:    BranchImageGenerate,
		OutputImageEdit:        BranchImageEdit,
		OutputType("unknown"):  BranchDocument,
	}
	for ot, branch := range cases {
		t.Run(string(ot), func(t *testing.T) {
			tr := &tracker{}
			engine, err := NewEngine(fullRegistry(tr))
			require.NoError(t, err)

			result, err := engine.Run(testCtx(), NewState(ot, Request{}))
			require.NoError(t, err)
			assert.Empty(t, result.Errors)

			want := append(append([]NodeID{}, SharedChain...), BranchChains[branch]...)
			assert.Equal(t, want, tr.sequence())
		})
	}
}

// TestRun_NodeFailureIsRecorded tests that a failing node appends its message
// and the run continues along the normal edge.
func TestRun_NodeFailureIsRecorded(t *testing.T) {
	tr := &tracker{}
	reg := fullRegistry(tr)
	reg.Register(NodeGenerateScript, makeFailingNode(NodeGenerateScript, tr, Fail("No content for podcast script")))

	engine, err := NewEngine(reg)
	require.NoError(t, err)

	result, err := engine.Run(testCtx(), NewState(OutputPodcast, Request{}))
	require.NoError(t, err)
	assert.Equal(t, []string{"No content for podcast script"}, result.Errors)
	assert.Equal(t, 1, tr.count(NodeSynthesizeAudio), "later nodes still run")
}

// TestRun_PlainErrorUsesErrorString tests recording of non-Failure errors.
func TestRun_PlainErrorUsesErrorString(t *testing.T) {
	tr := &tracker{}
	reg := fullRegistry(tr)
	reg.Register(NodeGenerateMindMap, makeFailingNode(NodeGenerateMindMap, tr, errors.New("llm offline")))

	engine, err := NewEngine(reg)
	require.NoError(t, err)

	result, err := engine.Run(testCtx(), NewState(OutputMindMap, Request{}))
	require.NoError(t, err)
	assert.Equal(t, "llm offline", result.LastError())
}

// TestRun_PanicIsRecovered tests that a panicking node becomes a recorded error.
func TestRun_PanicIsRecovered(t *testing.T) {
	tr := &tracker{}
	reg := fullRegistry(tr)
	reg.Register(NodeGenerateImage, makePanicNode("nil map"))

	engine, err := NewEngine(reg)
	require.NoError(t, err)

	var result State
	require.NotPanics(t, func() {
		result, err = engine.Run(testCtx(), NewState(OutputImageGenerate, Request{}))
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"Unexpected error in generate_image: nil map"}, result.Errors)
}

// TestRun_SkipBypassesSharedNodes tests that a skip set by a shared node turns
// the remaining shared nodes into pass-throughs while the branch still runs.
func TestRun_SkipBypassesSharedNodes(t *testing.T) {
	tr := &tracker{}
	reg := fullRegistry(tr)
	reg.Register(NodeValidateSources, makeFailingNode(NodeValidateSources, tr,
		FailSkip(SkipNoSources, "No sources provided")))
	reg.Register(NodeExtractSources, func(ctx Context, s State) (State, error) {
		tr.record(NodeExtractSources)
		s.RawContent = "must not happen"
		s.ContentBlocks = append(s.ContentBlocks, ContentBlock{Title: "x"})
		return s, nil
	})

	engine, err := NewEngine(reg)
	require.NoError(t, err)

	initial := NewState(OutputMindMap, Request{})
	initial.RawContent = "original"
	result, err := engine.Run(testCtx(), initial)
	require.NoError(t, err)

	assert.True(t, result.Metadata.SkipSourceProcessing)
	assert.Equal(t, SkipNoSources, result.Metadata.SkipReason)
	assert.Equal(t, "original", result.RawContent)
	assert.Empty(t, result.ContentBlocks)
	assert.Equal(t, 0, tr.count(NodeResolveSources))
	assert.Equal(t, 0, tr.count(NodeExtractSources))
	assert.Equal(t, 0, tr.count(NodeMergeSources))
	assert.Equal(t, 1, tr.count(NodeGenerateMindMap))
}

// TestRun_SkipReasonIgnoredOutsideSharedChain tests that branch nodes cannot
// set the source skip flag through a Failure.
func TestRun_SkipReasonIgnoredOutsideSharedChain(t *testing.T) {
	tr := &tracker{}
	reg := fullRegistry(tr)
	reg.Register(NodeGenerateMindMap, makeFailingNode(NodeGenerateMindMap, tr,
		FailSkip(SkipNoSources, "No content for mind map")))

	engine, err := NewEngine(reg)
	require.NoError(t, err)

	result, err := engine.Run(testCtx(), NewState(OutputMindMap, Request{}))
	require.NoError(t, err)
	assert.False(t, result.Metadata.SkipSourceProcessing)
	assert.Equal(t, "No content for mind map", result.LastError())
}

// TestRun_RetryBound tests that an always-failing generate_output runs exactly
// max_retries + 1 times.
func TestRun_RetryBound(t *testing.T) {
	for _, maxRetries := range []int{0, 1, 3, 5, 60} {
		tr := &tracker{}
		reg := fullRegistry(tr)
		reg.Register(NodeGenerateOutput, makeFailingNode(NodeGenerateOutput, tr,
			Fail("Generation failed: renderer crashed")))

		engine, err := NewEngine(reg, WithMaxRetries(maxRetries))
		require.NoError(t, err)

		result, err := engine.Run(testCtx(), NewState(OutputArticlePDF, Request{}))
		require.NoError(t, err)
		assert.Equal(t, maxRetries+1, tr.count(NodeGenerateOutput), "max_retries=%d", maxRetries)
		assert.Equal(t, maxRetries+1, tr.count(NodeValidateOutput))
		assert.Equal(t, maxRetries, result.Metadata.RetryCount)
		assert.NotEmpty(t, result.Errors)
	}
}

// TestRun_NodeLogsCarryOneNodeID tests that engine node and retry records
// name the node and attempt once each.
func TestRun_NodeLogsCarryOneNodeID(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	tr := &tracker{}
	reg := fullRegistry(tr)
	reg.Register(NodeGenerateOutput, makeFailingNode(NodeGenerateOutput, tr,
		Fail("Generation failed: renderer crashed")))

	engine, err := NewEngine(reg, WithMaxRetries(1))
	require.NoError(t, err)

	ctx := NewContext(context.Background(), WithSessionID("session_test"), WithLogger(logger))
	_, err = engine.Run(ctx, NewState(OutputArticlePDF, Request{}))
	require.NoError(t, err)

	seen := map[string]bool{}
	for _, line := range bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n")) {
		for _, msg := range []string{"node starting", "node completed", "node failed", "retrying node"} {
			if !bytes.Contains(line, []byte(`"msg":"`+msg+`"`)) {
				continue
			}
			seen[msg] = true
			assert.Equal(t, 1, bytes.Count(line, []byte(`"node_id":`)), "record %s", line)
			assert.LessOrEqual(t, bytes.Count(line, []byte(`"attempt":`)), 1, "record %s", line)
		}
	}
	assert.True(t, seen["node failed"])
	assert.True(t, seen["retrying node"])
	assert.True(t, seen["node completed"])
}

// TestRun_NonRetryableErrorEndsImmediately tests that an unknown failure class
// does not loop.
func TestRun_NonRetryableErrorEndsImmediately(t *testing.T) {
	tr := &tracker{}
	reg := fullRegistry(tr)
	reg.Register(NodeGenerateOutput, makeFailingNode(NodeGenerateOutput, tr,
		Fail("Unexpected generation error: disk full")))

	engine, err := NewEngine(reg)
	require.NoError(t, err)

	result, err := engine.Run(testCtx(), NewState(OutputArticleMarkdown, Request{}))
	require.NoError(t, err)
	assert.Equal(t, 1, tr.count(NodeGenerateOutput))
	assert.Equal(t, 0, result.Metadata.RetryCount)
}

// TestRun_RetryStopsOnNonRetryableLastError tests that a transient generation failure
// is retried and the loop ends once a non-retryable error is last.
func TestRun_RetryStopsOnNonRetryableLastError(t *testing.T) {
	tr := &tracker{}
	reg := fullRegistry(tr)
	calls := 0
	reg.Register(NodeGenerateOutput, func(ctx Context, s State) (State, error) {
		tr.record(NodeGenerateOutput)
		calls++
		if calls == 1 {
			return s, Fail("Generation failed: timeout")
		}
		return s, Fail("Unexpected generation error: bad template")
	})

	engine, err := NewEngine(reg)
	require.NoError(t, err)

	result, err := engine.Run(testCtx(), NewState(OutputArticlePDF, Request{}))
	require.NoError(t, err)
	assert.Equal(t, 2, tr.count(NodeGenerateOutput))
	assert.Equal(t, 1, result.Metadata.RetryCount)
	assert.Equal(t, "Unexpected generation error: bad template", result.LastError())
}

// TestRun_AttemptNumberIncreasesOnRetry tests that the node context reports the attempt.
func TestRun_AttemptNumberIncreasesOnRetry(t *testing.T) {
	tr := &tracker{}
	reg := fullRegistry(tr)
	var attempts []int
	reg.Register(NodeGenerateOutput, func(ctx Context, s State) (State, error) {
		attempts = append(attempts, ctx.Attempt())
		assert.Equal(t, NodeGenerateOutput, ctx.NodeID())
		return s, Fail("Validation failed: empty")
	})

	engine, err := NewEngine(reg, WithMaxRetries(2))
	require.NoError(t, err)

	_, err = engine.Run(testCtx(), NewState(OutputArticlePDF, Request{}))
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2, 3}, attempts)
}

// TestRun_NilContext tests the nil context guard.
func TestRun_NilContext(t *testing.T) {
	engine, err := NewEngine(fullRegistry(&tracker{}))
	require.NoError(t, err)

	_, err = engine.Run(nil, NewState(OutputMindMap, Request{}))
	assert.ErrorIs(t, err, ErrNilContext)
}

// TestRun_MaxIterations tests the iteration guard.
func TestRun_MaxIterations(t *testing.T) {
	engine, err := NewEngine(fullRegistry(&tracker{}), WithMaxIterations(3))
	require.NoError(t, err)

	_, err = engine.Run(testCtx(), NewState(OutputArticlePDF, Request{}))
	var maxErr *MaxIterationsError
	require.ErrorAs(t, err, &maxErr)
	assert.Equal(t, 3, maxErr.Max)
	assert.ErrorIs(t, err, ErrMaxIterations)
}

// TestRun_ExplicitIterationLimitWins tests that a limit set by the caller is
// not raised to fit the retry budget.
func TestRun_ExplicitIterationLimitWins(t *testing.T) {
	tr := &tracker{}
	reg := fullRegistry(tr)
	reg.Register(NodeGenerateOutput, makeFailingNode(NodeGenerateOutput, tr,
		Fail("Generation failed: renderer crashed")))

	engine, err := NewEngine(reg, WithMaxRetries(60), WithMaxIterations(100))
	require.NoError(t, err)

	_, err = engine.Run(testCtx(), NewState(OutputArticlePDF, Request{}))
	require.ErrorIs(t, err, ErrMaxIterations)
	assert.Less(t, tr.count(NodeGenerateOutput), 61)
}

func TestMaxRunLength(t *testing.T) {
	assert.Equal(t, 4+9+1, maxRunLength(0))
	assert.Equal(t, 4+9+2*60+1, maxRunLength(60))
}

// TestRun_SetsSessionIDFromContext tests that the session id lands in metadata.
func TestRun_SetsSessionIDFromContext(t *testing.T) {
	engine, err := NewEngine(fullRegistry(&tracker{}))
	require.NoError(t, err)

	result, err := engine.Run(NewContext(context.Background(), WithSessionID("session_abc")), NewState(OutputMindMap, Request{}))
	require.NoError(t, err)
	assert.Equal(t, "session_abc", result.Metadata.SessionID)
}

// TestRun_ProgressReportsChainPosition tests step numbering seen by nodes.
func TestRun_ProgressReportsChainPosition(t *testing.T) {
	type step struct {
		node        string
		step, total int
	}
	var steps []step
	reporter := progressRecorder(func(node string, s, total int) {
		steps = append(steps, step{node, s, total})
	})

	reg := fullRegistry(&tracker{})
	for _, id := range append(append([]NodeID{}, SharedChain...), BranchChains[BranchPodcast]...) {
		reg.Register(id, func(ctx Context, s State) (State, error) {
			ReportStart(ctx, s)
			return s, nil
		})
	}
	engine, err := NewEngine(reg)
	require.NoError(t, err)

	ctx := NewContext(context.Background(), WithProgress(reporter))
	_, err = engine.Run(ctx, NewState(OutputPodcast, Request{}))
	require.NoError(t, err)

	require.Len(t, steps, 6)
	assert.Equal(t, step{"validate_sources", 1, 6}, steps[0])
	assert.Equal(t, step{"synthesize_audio", 6, 6}, steps[5])
}
