package sources_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/randalmurphal/docflow/pkg/docflow"
	"github.com/randalmurphal/docflow/pkg/docflow/sources"
)

func TestValidate(t *testing.T) {
	existing := filepath.Join(t.TempDir(), "merged.md")
	require.NoError(t, os.WriteFile(existing, []byte("x"), 0o644))

	textSource := []docflow.SourceItem{{Type: docflow.SourceText, Content: "hi"}}

	tests := []struct {
		name     string
		state    docflow.State
		wantSkip docflow.SkipReason
		wantFail string
	}{
		{
			name:     "image edit needs no extraction",
			state:    docflow.NewState(docflow.OutputImageEdit, docflow.Request{}),
			wantSkip: docflow.SkipNotRequired,
		},
		{
			name: "reused content for mindmap",
			state: docflow.State{
				OutputType: docflow.OutputMindMap,
				RawContent: "cached",
				Metadata:   docflow.Metadata{ReusedContent: true},
			},
			wantSkip: docflow.SkipReusedContent,
		},
		{
			name: "reused document with input file",
			state: docflow.State{
				OutputType: docflow.OutputArticleMarkdown,
				RawContent: "cached",
				InputPath:  existing,
				Metadata:   docflow.Metadata{ReusedContent: true},
			},
			wantSkip: docflow.SkipReusedContent,
		},
		{
			name: "reused document whose input file is gone",
			state: docflow.State{
				OutputType: docflow.OutputArticleMarkdown,
				Request:    docflow.Request{Sources: textSource},
				RawContent: "cached",
				InputPath:  filepath.Join(t.TempDir(), "gone.md"),
				Metadata:   docflow.Metadata{ReusedContent: true},
			},
		},
		{
			name:     "no sources for podcast",
			state:    docflow.NewState(docflow.OutputPodcast, docflow.Request{}),
			wantFail: "No sources provided",
			wantSkip: docflow.SkipNoSources,
		},
		{
			name:     "direct prompt for image generation",
			state:    docflow.NewState(docflow.OutputImageGenerate, docflow.Request{Prompt: "  a fox  "}),
			wantSkip: docflow.SkipDirectPrompt,
		},
		{
			name:     "blank prompt for image generation",
			state:    docflow.NewState(docflow.OutputImageGenerate, docflow.Request{Prompt: "   "}),
			wantFail: "No sources provided",
			wantSkip: docflow.SkipNoSources,
		},
		{
			name:  "sources present",
			state: docflow.NewState(docflow.OutputMindMap, docflow.Request{Sources: textSource}),
		},
	}

	p := &sources.Preparer{}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := p.Validate(testCtx(), tt.state)
			if tt.wantFail != "" {
				f := requireFailure(t, err)
				assert.Equal(t, tt.wantFail, f.Message)
				assert.Equal(t, tt.wantSkip, f.Skip)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantSkip != "", got.Metadata.SkipSourceProcessing)
			assert.Equal(t, tt.wantSkip, got.Metadata.SkipReason)
		})
	}
}

func TestResolve(t *testing.T) {
	dir := t.TempDir()
	uploads, err := sources.NewDirUploadStore(dir)
	require.NoError(t, err)

	indexed, err := uploads.Save("notes.md", []byte("# Notes"))
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "f_legacy.txt"), []byte("old"), 0o644))

	p := &sources.Preparer{Uploads: uploads}
	s := docflow.NewState(docflow.OutputArticleMarkdown, docflow.Request{Sources: []docflow.SourceItem{
		{Type: docflow.SourceFile},
		{Type: docflow.SourceFile, FileID: indexed},
		{Type: docflow.SourceFile, FileID: "f_legacy"},
		{Type: docflow.SourceFile, FileID: "f_missing"},
		{Type: docflow.SourceURL, URL: "https://example.com", Parser: "readability"},
		{Type: docflow.SourceURL},
		{Type: docflow.SourceText, Content: "  pasted  "},
		{Type: docflow.SourceText, Content: "   "},
	}})

	got, err := p.Resolve(testCtx(), s)
	require.NoError(t, err)

	require.Len(t, got.ResolvedSources, 4)
	assert.Equal(t, indexed, got.ResolvedSources[0].FileID)
	assert.Equal(t, filepath.Join(dir, indexed+".md"), got.ResolvedSources[0].Path)
	assert.Equal(t, filepath.Join(dir, "f_legacy.txt"), got.ResolvedSources[1].Path)
	assert.Equal(t, docflow.SourceDescriptor{Kind: docflow.SourceURL, URL: "https://example.com", Parser: "readability"}, got.ResolvedSources[2])
	assert.Equal(t, docflow.SourceDescriptor{Kind: docflow.SourceText, Text: "pasted"}, got.ResolvedSources[3])
	assert.Equal(t, indexed, got.Metadata.ResolvedFileID)
	for _, d := range got.ResolvedSources {
		assert.NoError(t, d.Validate())
	}
}

func TestResolve_Excel(t *testing.T) {
	dir := t.TempDir()
	uploads, err := sources.NewDirUploadStore(dir)
	require.NoError(t, err)
	id, err := uploads.Save("budget.xlsx", []byte("PK"))
	require.NoError(t, err)

	p := &sources.Preparer{Uploads: uploads}
	s := docflow.NewState(docflow.OutputArticlePDF, docflow.Request{Sources: []docflow.SourceItem{
		{Type: docflow.SourceFile, FileID: id},
	}})

	_, err = p.Resolve(testCtx(), s)
	f := requireFailure(t, err)
	assert.Equal(t, docflow.SkipUnsupportedFormat, f.Skip)
	assert.True(t, strings.HasPrefix(f.Message, "Excel files are not supported."))
}

func TestResolve_UnexpectedError(t *testing.T) {
	uploads, err := sources.NewDirUploadStore(t.TempDir())
	require.NoError(t, err)

	tests := []struct {
		name string
		p    *sources.Preparer
		id   string
	}{
		{name: "no upload store", p: &sources.Preparer{}, id: "f_1"},
		{name: "path traversal", p: &sources.Preparer{Uploads: uploads}, id: "../etc/passwd"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := docflow.NewState(docflow.OutputMindMap, docflow.Request{Sources: []docflow.SourceItem{
				{Type: docflow.SourceFile, FileID: tt.id},
			}})
			_, err := tt.p.Resolve(testCtx(), s)
			f := requireFailure(t, err)
			assert.Equal(t, docflow.SkipResolutionFailed, f.Skip)
			assert.True(t, strings.HasPrefix(f.Message, "Source resolution failed: "))
		})
	}
}

func TestExtract(t *testing.T) {
	dir := t.TempDir()
	md := filepath.Join(dir, "f_1.md")
	require.NoError(t, os.WriteFile(md, []byte("# Quarterly Report\n\nRevenue grew."), 0o644))
	txt := filepath.Join(dir, "f_2.txt")
	require.NoError(t, os.WriteFile(txt, []byte("plain notes"), 0o644))
	png := filepath.Join(dir, "f_3.png")

	images := &stubParser{content: "a bar chart", meta: map[string]any{}}
	web := &stubWeb{stubParser{content: "page text", meta: map[string]any{"title": "Example"}}}
	p := &sources.Preparer{Documents: sources.PlainTextParser{}, Web: web, Images: images}

	s := docflow.State{
		OutputType: docflow.OutputArticleMarkdown,
		ResolvedSources: []docflow.SourceDescriptor{
			{Kind: docflow.SourceFile, FileID: "f_1", Path: md},
			{Kind: docflow.SourceFile, FileID: "f_2", Path: txt},
			{Kind: docflow.SourceFile, FileID: "f_3", Path: png},
			{Kind: docflow.SourceURL, URL: "https://example.com/a"},
			{Kind: docflow.SourceText, Text: "Alpha Beta Gamma"},
		},
	}

	got, err := p.Extract(testCtx(), s)
	require.NoError(t, err)

	assert.Equal(t, []docflow.ContentBlock{
		{Title: "Quarterly Report", Source: md, Content: "# Quarterly Report\n\nRevenue grew."},
		{Title: "f_2.txt", Source: txt, Content: "plain notes"},
		{Title: "f_3.png", Source: png, Content: "a bar chart"},
		{Title: "Example", Source: "https://example.com/a", Content: "page text"},
		{Title: "Copied Text", Source: "text", Content: "Alpha Beta Gamma"},
	}, got.ContentBlocks)
	assert.Equal(t, 5, got.Metadata.SourceCount)
	assert.Equal(t, []string{png}, images.calls)
}

func TestExtract_NoValidSources(t *testing.T) {
	web := &stubWeb{stubParser{content: ""}}
	p := &sources.Preparer{Web: web}
	s := docflow.State{ResolvedSources: []docflow.SourceDescriptor{{Kind: docflow.SourceURL, URL: "https://example.com"}}}

	got, err := p.Extract(testCtx(), s)
	f := requireFailure(t, err)
	assert.Equal(t, "No valid sources provided", f.Message)
	assert.Equal(t, docflow.SkipNoValidSources, f.Skip)
	assert.Empty(t, got.ContentBlocks)
}

func TestExtract_ParserError(t *testing.T) {
	web := &stubWeb{stubParser{err: errors.New("connection refused")}}
	p := &sources.Preparer{Web: web}
	s := docflow.State{ResolvedSources: []docflow.SourceDescriptor{{Kind: docflow.SourceURL, URL: "https://example.com"}}}

	_, err := p.Extract(testCtx(), s)
	f := requireFailure(t, err)
	assert.Equal(t, "Content extraction failed: connection refused", f.Message)
	assert.Equal(t, docflow.SkipExtractionFailed, f.Skip)
}

func TestMerge_Document(t *testing.T) {
	tmp := t.TempDir()
	p := &sources.Preparer{TempDir: tmp}
	s := docflow.State{
		OutputType: docflow.OutputArticlePDF,
		ContentBlocks: []docflow.ContentBlock{
			{Title: "Report", Source: "/uploads/f_1.md", Content: "Body one"},
			{Title: "Copied Text", Source: "text", Content: "Body two"},
		},
		ResolvedSources: []docflow.SourceDescriptor{{Kind: docflow.SourceText, Text: "Body two"}},
		Metadata:        docflow.Metadata{ResolvedFileID: "f_1"},
	}

	got, err := p.Merge(testCtx(), s)
	require.NoError(t, err)

	want := "## Source: Report\n\nSource: /uploads/f_1.md\n\nBody one\n\n---\n\n## Source: Copied Text\n\nBody two"
	assert.Equal(t, want, got.RawContent)
	assert.Equal(t, "f_1", got.Metadata.FileID)
	assert.Empty(t, got.Metadata.ResolvedFileID)
	assert.Nil(t, got.ContentBlocks)
	assert.Nil(t, got.ResolvedSources)

	assert.Equal(t, tmp, filepath.Dir(got.InputPath))
	assert.Regexp(t, `^temp_input_[0-9a-f]{32}\.md$`, filepath.Base(got.InputPath))
	data, err := os.ReadFile(got.InputPath)
	require.NoError(t, err)
	assert.Equal(t, want, string(data))
}

func TestMerge_NonDocument(t *testing.T) {
	p := &sources.Preparer{TempDir: t.TempDir()}
	s := docflow.State{
		OutputType: docflow.OutputPodcast,
		ContentBlocks: []docflow.ContentBlock{
			{Title: "a", Content: "  first  "},
			{Title: "b", Content: "   "},
			{Title: "c", Content: "second"},
		},
	}

	got, err := p.Merge(testCtx(), s)
	require.NoError(t, err)
	assert.Equal(t, "first\n\n---\n\nsecond", got.RawContent)
	assert.Empty(t, got.InputPath)
}

func TestMerge_NoBlocks(t *testing.T) {
	p := &sources.Preparer{}
	s := docflow.State{OutputType: docflow.OutputMindMap, RawContent: "untouched"}

	got, err := p.Merge(testCtx(), s)
	require.NoError(t, err)
	assert.Equal(t, s, got)
}

func TestSourceChain_CopiedText(t *testing.T) {
	p := &sources.Preparer{}
	s := docflow.NewState(docflow.OutputMindMap, docflow.Request{Sources: []docflow.SourceItem{
		{Type: docflow.SourceText, Content: "  Alpha Beta Gamma  "},
	}})

	var err error
	ctx := testCtx()
	for _, step := range []docflow.NodeFunc{p.Validate, p.Resolve, p.Extract} {
		s, err = step(ctx, s)
		require.NoError(t, err)
	}
	require.Len(t, s.ContentBlocks, 1)
	assert.Equal(t, "Copied Text", s.ContentBlocks[0].Title)

	s, err = p.Merge(ctx, s)
	require.NoError(t, err)
	assert.Equal(t, "Alpha Beta Gamma", s.RawContent)
	assert.Equal(t, 1, s.Metadata.SourceCount)
}

func TestDirUploadStore_NotFound(t *testing.T) {
	uploads, err := sources.NewDirUploadStore(t.TempDir())
	require.NoError(t, err)

	_, err = uploads.Path(context.Background(), "f_nope")
	assert.ErrorIs(t, err, sources.ErrNotFound)
	assert.Empty(t, uploads.Glob("f_nope"))
}
