// Package mindmap implements the mind map branch: one LLM pass that returns a
// JSON tree, normalized into docflow.MindMapTree.
package mindmap

import (
	"context"
	"errors"
	"fmt"

	"github.com/randalmurphal/docflow/pkg/docflow"
	"github.com/randalmurphal/docflow/pkg/docflow/jsonx"
	"github.com/randalmurphal/docflow/pkg/docflow/llm"
)

// Modes.
const (
	ModeSummarize    = "summarize"
	ModeDetailed     = "detailed"
	ModeHierarchical = "hierarchical"
)

// ErrNoTree is returned when the model reply holds no JSON object.
var ErrNoTree = errors.New("no mind map object in model reply")

// Node is the generate_mindmap node.
type Node struct {
	LLM llm.Client
}

// Run implements docflow.NodeFunc.
func (n *Node) Run(ctx docflow.Context, s docflow.State) (docflow.State, error) {
	docflow.ReportStart(ctx, s)

	content := s.SummaryContent
	if content == "" {
		content = s.RawContent
	}
	if content == "" {
		docflow.ReportEnd(ctx, false, "No content")
		return s, docflow.Fail("No content for mind map")
	}
	if n.LLM == nil {
		docflow.ReportEnd(ctx, false, "LLM not configured")
		return s, docflow.Fail("Mind map generation failed: LLM not configured")
	}

	mode := NormalizeMode(s.Request.MindMap.Mode)
	sourceCount := max(s.Metadata.SourceCount, 1)
	ctx.Logger().Info("generating mind map", "mode", mode, "source_count", sourceCount)

	tree, err := Generate(ctx, n.LLM, s.Request.Model, content, mode, sourceCount)
	switch {
	case errors.Is(err, ErrNoTree):
		docflow.ReportEnd(ctx, false, "No tree")
		return s, docflow.Fail("Failed to build mind map")
	case err != nil:
		ctx.Logger().Error("mind map generation failed", "error", err)
		docflow.ReportEnd(ctx, false, err.Error())
		return s, docflow.Failf("Mind map generation failed: %w", err)
	}

	s.MindMap().Tree = tree
	s.Completed = true
	docflow.ReportEnd(ctx, true, tree.Title)
	return s, nil
}

// NormalizeMode maps an empty or unknown mode to ModeSummarize.
func NormalizeMode(mode string) string {
	switch mode {
	case ModeSummarize, ModeDetailed, ModeHierarchical:
		return mode
	}
	return ModeSummarize
}

// Generate asks client for a mind map of content and normalizes the reply.
// It returns ErrNoTree when the reply holds no JSON object.
func Generate(ctx context.Context, client llm.Client, model, content, mode string, sourceCount int) (*docflow.MindMapTree, error) {
	req := llm.Prompt("", Prompt(content, mode, sourceCount))
	req.Model = model
	resp, err := client.Complete(ctx, req)
	if err != nil {
		return nil, err
	}
	if resp == nil || resp.Content == "" {
		return nil, fmt.Errorf("%w: empty reply", ErrNoTree)
	}
	obj, ok := jsonx.ExtractObject(resp.Content)
	if !ok {
		return nil, ErrNoTree
	}
	tree := BuildTree(obj, mode, sourceCount)
	return &tree, nil
}
