package mindmap

import (
	"fmt"
	"strings"
)

const outputFormat = `OUTPUT FORMAT (JSON):
{
  "title": "Main Topic",
  "summary": "Brief summary of the content",
  "central_node": {
    "label": "Central Topic",
    "children": [
      {"label": "Main Branch", "children": [{"label": "Sub-topic"}]}
    ]
  }
}`

var modeInstructions = map[string]string{
	ModeSummarize: `Create a mind map that captures the key concepts and their relationships.
Use one central topic with 3-7 main branches, each with relevant sub-branches.`,
	ModeDetailed: `Create a comprehensive mind map with:
- a clear central topic
- 5-10 main branches covering every major theme
- 2-4 sub-branches per main branch, with specific details, facts and concepts`,
	ModeHierarchical: `Create a hierarchical mind map that shows:
- clear parent-child relationships
- logical groupings of concepts
- several levels of depth where the content supports it`,
}

var modeClosings = map[string]string{
	ModeSummarize:    "create a comprehensive mind map.",
	ModeDetailed:     "be thorough and detailed.",
	ModeHierarchical: "focus on a clear hierarchy.",
}

// Prompt builds the generation prompt for mode.
func Prompt(content, mode string, sourceCount int) string {
	mode = NormalizeMode(mode)
	var b strings.Builder
	b.WriteString("Analyze the following content and create a mind map structure.\n\nCONTENT:\n")
	b.WriteString(content)
	b.WriteString("\n\n")
	b.WriteString(modeInstructions[mode])
	b.WriteString("\n\n")
	b.WriteString(outputFormat)
	fmt.Fprintf(&b, "\n\nBased on %d source document(s), %s\nReturn only the JSON object.", sourceCount, modeClosings[mode])
	return b.String()
}
