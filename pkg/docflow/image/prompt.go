package image

import (
	"context"
	"strings"

	"github.com/randalmurphal/docflow/pkg/docflow"
	"github.com/randalmurphal/docflow/pkg/docflow/llm"
	"github.com/randalmurphal/docflow/pkg/docflow/mindmap"
)

// Prompt derivation limits.
const (
	MaxPromptRunes  = 3600
	MaxOutlineNodes = 30
	MaxOutlineDepth = 3
)

// Prompt sources recorded in Metadata.ImagePromptSource.
const (
	PromptFromUser    = "user_prompt"
	PromptFromMindMap = "mindmap"
	PromptFromSummary = "summary_fallback"
)

const (
	promptLead        = "Create an image that strictly reflects the source content."
	promptTreeClose   = "Use only these points. Do not add extra concepts or labels."
	promptSummaryTail = "Use only this summary. Do not add extra concepts or labels."
)

// DerivePrompt builds an image prompt from content. It first tries a
// summarizing mind map; if that fails the content itself is used as the
// summary. focus is an optional user emphasis.
func DerivePrompt(ctx context.Context, client llm.Client, model, content, focus string, sourceCount int) (prompt, source string, err error) {
	if client != nil {
		tree, genErr := mindmap.Generate(ctx, client, model, content, mindmap.ModeSummarize, sourceCount)
		if genErr == nil {
			return TreePrompt(*tree, focus), PromptFromMindMap, nil
		}
		if ctx.Err() != nil {
			return "", "", ctx.Err()
		}
	}
	return SummaryPrompt(content, focus), PromptFromSummary, nil
}

// TreePrompt renders a mind map as an image prompt.
func TreePrompt(tree docflow.MindMapTree, focus string) string {
	parts := []string{promptLead}
	if focus != "" {
		parts = append(parts, "User focus: "+focus)
	}
	if tree.Title != "" {
		parts = append(parts, "Title: "+tree.Title)
	}
	if tree.Summary != "" {
		parts = append(parts, "Summary: "+tree.Summary)
	}
	if tree.Nodes.Label != "" {
		parts = append(parts, "Central topic: "+tree.Nodes.Label)
	}
	if outline := Outline(tree.Nodes); len(outline) > 0 {
		parts = append(parts, "Key points:\n"+strings.Join(outline, "\n"))
	}
	parts = append(parts, promptTreeClose)
	return clamp(strings.Join(parts, "\n"), MaxPromptRunes)
}

// SummaryPrompt uses content directly as the summary.
func SummaryPrompt(content, focus string) string {
	parts := []string{promptLead}
	if focus != "" {
		parts = append(parts, "User focus: "+focus)
	}
	parts = append(parts, "Summary: "+clamp(content, MaxPromptRunes), promptSummaryTail)
	return clamp(strings.Join(parts, "\n"), MaxPromptRunes)
}

// Outline lists the mind map breadth first, starting at the root's children
// (or the root itself when it has none). Depth and node count are bounded.
func Outline(root docflow.MindMapNode) []string {
	type item struct {
		node  docflow.MindMapNode
		depth int
	}
	var queue []item
	if len(root.Children) > 0 {
		for _, c := range root.Children {
			queue = append(queue, item{c, 1})
		}
	} else if root.Label != "" {
		queue = append(queue, item{root, 1})
	}

	var lines []string
	for len(queue) > 0 && len(lines) < MaxOutlineNodes {
		it := queue[0]
		queue = queue[1:]
		if it.node.Label == "" {
			continue
		}
		lines = append(lines, strings.Repeat("  ", it.depth-1)+"- "+it.node.Label)
		if it.depth < MaxOutlineDepth {
			for _, c := range it.node.Children {
				queue = append(queue, item{c, it.depth + 1})
			}
		}
	}
	return lines
}

// clamp truncates s to n runes and trims trailing whitespace after a cut.
func clamp(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return strings.TrimRight(string(r[:n]), " \t\r\n")
}
