package sources_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/randalmurphal/docflow/pkg/docflow"
)

func testCtx() docflow.Context {
	return docflow.NewContext(context.Background(), docflow.WithSessionID("session_test"))
}

// requireFailure asserts err is a docflow.Failure and returns it.
func requireFailure(t *testing.T, err error) *docflow.Failure {
	t.Helper()
	var f *docflow.Failure
	require.True(t, errors.As(err, &f), "want *docflow.Failure, got %v", err)
	return f
}

type stubParser struct {
	content string
	meta    map[string]any
	err     error
	calls   []string
}

func (p *stubParser) Parse(_ context.Context, target, _ string) (string, map[string]any, error) {
	p.calls = append(p.calls, target)
	return p.content, p.meta, p.err
}

func (p *stubParser) Extract(ctx context.Context, path string) (string, map[string]any, error) {
	return p.Parse(ctx, path, "image")
}

type stubWeb struct{ stubParser }

func (w *stubWeb) Parse(ctx context.Context, url string) (string, map[string]any, error) {
	return w.stubParser.Parse(ctx, url, "")
}
