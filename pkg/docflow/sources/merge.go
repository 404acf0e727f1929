package sources

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/randalmurphal/docflow/pkg/docflow"
)

const sectionSeparator = "\n\n---\n\n"

// MergeMarkdown renders blocks as "## Source:" sections separated by rules.
// Non-text sources also name their origin below the header.
func MergeMarkdown(blocks []docflow.ContentBlock) string {
	sections := make([]string, 0, len(blocks))
	for _, b := range blocks {
		header := "## Source: " + b.Title
		if b.Source != "" && b.Source != string(docflow.SourceText) {
			header += "\n\nSource: " + b.Source
		}
		sections = append(sections, header+"\n\n"+b.Content)
	}
	return strings.Join(sections, sectionSeparator)
}

// joinContent joins the trimmed non-empty block contents.
func joinContent(blocks []docflow.ContentBlock) string {
	parts := make([]string, 0, len(blocks))
	for _, b := range blocks {
		if c := strings.TrimSpace(b.Content); c != "" {
			parts = append(parts, c)
		}
	}
	return strings.Join(parts, sectionSeparator)
}

func writeTempMarkdown(dir, content string) (string, error) {
	if dir == "" {
		dir = os.TempDir()
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	id := uuid.New()
	path := filepath.Join(dir, "temp_input_"+strings.ReplaceAll(id.String(), "-", "")+".md")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return "", err
	}
	return path, nil
}
