package document_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/randalmurphal/docflow/pkg/docflow"
	"github.com/randalmurphal/docflow/pkg/docflow/document"
)

func TestDocBody_ReplacesVisualMarkers(t *testing.T) {
	doc := document.Doc{
		Markdown: "Intro\n[VISUAL:arch]\nMiddle\n  [VISUAL:missing]  \nEnd",
		Images: []docflow.Image{
			{Marker: "arch", Path: "/out/images/arch.png", Description: "Architecture"},
		},
	}
	assert.Equal(t, "Intro\n![Architecture](/out/images/arch.png)\nMiddle\n\nEnd", doc.Body())

	doc.Summary = "Brief."
	assert.Equal(t, "## Executive Summary\n\nBrief.\n\nIntro\n![Architecture](/out/images/arch.png)\nMiddle\n\nEnd", doc.Body())
}

func TestMarkdownRenderer(t *testing.T) {
	dir := t.TempDir()
	path, err := document.MarkdownRenderer{}.Render(context.Background(), document.Doc{
		Title:    "Field Notes",
		Markdown: "Some text.",
		Filename: "field_notes",
	}, dir)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "field_notes.md"), path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "# Field Notes\n\nSome text.", string(data))
}

func TestRenderers_EmptyDocumentIsGenerationError(t *testing.T) {
	for format, r := range document.DefaultRenderers() {
		_, err := r.Render(context.Background(), document.Doc{Filename: "x"}, t.TempDir())
		var genErr *document.GenerationError
		require.True(t, errors.As(err, &genErr), format)
		assert.Equal(t, format, genErr.Format)
	}
}

func TestSlug(t *testing.T) {
	assert.Equal(t, "q3_planning_notes", document.Slug("Q3 Planning: Notes!"))
	assert.Equal(t, "document", document.Slug("!!!"))
	assert.Equal(t, "document", document.Slug(""))
}
