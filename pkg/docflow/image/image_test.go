package image_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/randalmurphal/docflow/pkg/docflow"
	"github.com/randalmurphal/docflow/pkg/docflow/image"
	"github.com/randalmurphal/docflow/pkg/docflow/llm"
)

func testCtx() docflow.Context {
	return docflow.NewContext(context.Background())
}

func TestOutline(t *testing.T) {
	root := docflow.MindMapNode{Label: "Root", Children: []docflow.MindMapNode{
		{Label: "A", Children: []docflow.MindMapNode{
			{Label: "A1", Children: []docflow.MindMapNode{
				{Label: "A1x", Children: []docflow.MindMapNode{{Label: "too deep"}}},
			}},
		}},
		{Label: "B"},
		{Label: ""},
	}}

	assert.Equal(t, []string{
		"- A",
		"- B",
		"  - A1",
		"    - A1x",
	}, image.Outline(root))

	assert.Equal(t, []string{"- Lonely"}, image.Outline(docflow.MindMapNode{Label: "Lonely"}))
}

func TestOutline_NodeLimit(t *testing.T) {
	root := docflow.MindMapNode{Label: "Root"}
	for i := 0; i < 50; i++ {
		root.Children = append(root.Children, docflow.MindMapNode{Label: "n"})
	}
	assert.Len(t, image.Outline(root), image.MaxOutlineNodes)
}

func TestTreePrompt(t *testing.T) {
	tree := docflow.MindMapTree{
		Title:   "Birds",
		Summary: "Common garden birds",
		Nodes: docflow.MindMapNode{Label: "Garden Birds", Children: []docflow.MindMapNode{
			{Label: "Robins"}, {Label: "Crows"},
		}},
	}

	want := strings.Join([]string{
		"Create an image that strictly reflects the source content.",
		"User focus: morning light",
		"Title: Birds",
		"Summary: Common garden birds",
		"Central topic: Garden Birds",
		"Key points:\n- Robins\n- Crows",
		"Use only these points. Do not add extra concepts or labels.",
	}, "\n")
	assert.Equal(t, want, image.TreePrompt(tree, "morning light"))
}

func TestSummaryPrompt_Clamped(t *testing.T) {
	long := strings.Repeat("é", 5000)
	p := image.SummaryPrompt(long, "")
	assert.Equal(t, image.MaxPromptRunes, utf8.RuneCountInString(p))
	assert.True(t, strings.HasPrefix(p, "Create an image that strictly reflects the source content.\nSummary: é"))

	short := image.SummaryPrompt("tiny", "")
	assert.True(t, strings.HasSuffix(short, "Use only this summary. Do not add extra concepts or labels."))
}

func TestDerivePrompt(t *testing.T) {
	client := llm.NewMockClient(`{"title": "T", "central_node": {"label": "Root", "children": [{"label": "Alpha"}]}}`)
	prompt, source, err := image.DerivePrompt(context.Background(), client, "", "Alpha content", "", 1)
	require.NoError(t, err)
	assert.Equal(t, image.PromptFromMindMap, source)
	assert.Contains(t, prompt, "Key points:\n- Alpha")

	failing := llm.NewMockClient("").WithError(errors.New("down"))
	prompt, source, err = image.DerivePrompt(context.Background(), failing, "", "Alpha content", "", 1)
	require.NoError(t, err)
	assert.Equal(t, image.PromptFromSummary, source)
	assert.Contains(t, prompt, "Summary: Alpha content")
}

func TestGenerateNode(t *testing.T) {
	raster := &llm.MockImages{Response: &llm.ImageResponse{Data: []byte("PNG"), Format: llm.FormatPNG}}
	node := &image.GenerateNode{Raster: raster}

	s := docflow.NewState(docflow.OutputImageGenerate, docflow.Request{
		Prompt:     "  a red fox  ",
		ImageModel: "gpt-image-1",
		Image:      docflow.ImageOptions{Style: "watercolor"},
	})
	got, err := node.Run(testCtx(), s)
	require.NoError(t, err)

	r, ok := got.Payload.(*docflow.ImageResult)
	require.True(t, ok)
	assert.Equal(t, []byte("PNG"), r.Data)
	assert.Equal(t, "png", r.Format)
	assert.Equal(t, "a red fox", r.PromptUsed)
	assert.Equal(t, "watercolor", r.Style)
	assert.False(t, r.Edit)
	assert.True(t, got.Completed)
	assert.Equal(t, image.PromptFromUser, got.Metadata.ImagePromptSource)

	require.Len(t, raster.Generated, 1)
	assert.Equal(t, "gpt-image-1", raster.Generated[0].Model)
	assert.Contains(t, raster.Generated[0].Style, "watercolor")
}

func TestGenerateNode_DerivesPromptFromContent(t *testing.T) {
	raster := &llm.MockImages{}
	client := llm.NewMockClient(`{"central_node": {"label": "Root", "children": [{"label": "Alpha"}]}}`)
	node := &image.GenerateNode{Raster: raster, LLM: client}

	s := docflow.NewState(docflow.OutputImageGenerate, docflow.Request{})
	s.RawContent = "Alpha Beta Gamma"

	got, err := node.Run(testCtx(), s)
	require.NoError(t, err)
	assert.Equal(t, image.PromptFromMindMap, got.Metadata.ImagePromptSource)
	assert.Contains(t, got.Image().PromptUsed, "- Alpha")
}

func TestGenerateNode_SVG(t *testing.T) {
	svgLLM := llm.NewMockClient("Here you go:\n<svg viewBox=\"0 0 10 10\"><circle r=\"4\"/></svg>\nEnjoy")
	node := &image.GenerateNode{Raster: &llm.MockImages{}, SVG: &image.SVGGenerator{LLM: svgLLM}}

	s := docflow.NewState(docflow.OutputImageGenerate, docflow.Request{
		Prompt: "a circle",
		Image:  docflow.ImageOptions{OutputFormat: image.OutputSVG, Style: "line_art"},
	})
	got, err := node.Run(testCtx(), s)
	require.NoError(t, err)
	assert.Equal(t, "svg", got.Image().Format)
	assert.Equal(t, `<svg viewBox="0 0 10 10"><circle r="4"/></svg>`, string(got.Image().Data))
}

func TestGenerateNode_Failures(t *testing.T) {
	svg := &image.SVGGenerator{LLM: llm.NewMockClient("<svg/>")}
	tests := []struct {
		name string
		node *image.GenerateNode
		req  docflow.Request
		want string
	}{
		{
			name: "not configured",
			node: &image.GenerateNode{},
			req:  docflow.Request{Prompt: "x"},
			want: "Image service not configured",
		},
		{
			name: "no prompt",
			node: &image.GenerateNode{Raster: &llm.MockImages{}},
			req:  docflow.Request{Prompt: "  "},
			want: "No prompt provided for image generation",
		},
		{
			name: "style without svg",
			node: &image.GenerateNode{Raster: &llm.MockImages{}, SVG: svg},
			req:  docflow.Request{Prompt: "x", Image: docflow.ImageOptions{OutputFormat: "svg", Style: "watercolor"}},
			want: "Style 'Watercolor' does not support SVG output",
		},
		{
			name: "provider error",
			node: &image.GenerateNode{Raster: &llm.MockImages{Err: errors.New("content policy")}},
			req:  docflow.Request{Prompt: "x"},
			want: "Image generation failed: content policy",
		},
		{
			name: "empty data",
			node: &image.GenerateNode{Raster: &llm.MockImages{Response: &llm.ImageResponse{}}},
			req:  docflow.Request{Prompt: "x"},
			want: "Image generation returned no data",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.node.Run(testCtx(), docflow.NewState(docflow.OutputImageGenerate, tt.req))
			assert.EqualError(t, err, tt.want)
			assert.False(t, got.Completed)
		})
	}
}

func TestEditNode(t *testing.T) {
	editor := &llm.MockImages{Response: &llm.ImageResponse{Data: []byte("EDITED")}}
	node := &image.EditNode{Editor: editor}

	s := docflow.NewState(docflow.OutputImageEdit, docflow.Request{
		Prompt: "remove the car",
		Image: docflow.ImageOptions{
			SourceImage: []byte("SRC"),
			EditMode:    llm.EditRegion,
			Region:      &docflow.Region{X: 0.25, Y: 0.25, Width: 0.5, Height: 0.5},
		},
	})
	got, err := node.Run(testCtx(), s)
	require.NoError(t, err)

	r := got.Image()
	assert.True(t, r.Edit)
	assert.Equal(t, []byte("EDITED"), r.Data)
	assert.Equal(t, "png", r.Format)
	assert.True(t, got.Completed)

	require.Len(t, editor.Edited, 1)
	assert.Equal(t, &llm.Region{X: 0.25, Y: 0.25, Width: 0.5, Height: 0.5}, editor.Edited[0].Region)
	assert.Empty(t, editor.Edited[0].Style)
}

func TestEditNode_Modes(t *testing.T) {
	tests := []struct {
		name      string
		opts      docflow.ImageOptions
		want      string
		wantStyle string
	}{
		{name: "basic default", opts: docflow.ImageOptions{Style: "sketch"}},
		{name: "style transfer", opts: docflow.ImageOptions{EditMode: "style_transfer", Style: "sketch"}, wantStyle: "sketch"},
		{name: "style transfer without style", opts: docflow.ImageOptions{EditMode: "style_transfer"}, want: "Style transfer requires a style"},
		{name: "region defaults to full image", opts: docflow.ImageOptions{EditMode: "region"}},
		{name: "region out of bounds", opts: docflow.ImageOptions{EditMode: "region", Region: &docflow.Region{X: 0.8, Width: 0.5, Height: 0.5}}, want: "Invalid region: x + width must not exceed 1"},
		{name: "unknown mode", opts: docflow.ImageOptions{EditMode: "outpaint"}, want: "Unsupported edit mode: outpaint"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.opts.SourceImage = []byte("SRC")
			s := docflow.NewState(docflow.OutputImageEdit, docflow.Request{Prompt: "x", Image: tt.opts})
			got, err := (&image.EditNode{Editor: &llm.MockImages{}}).Run(testCtx(), s)
			if tt.want != "" {
				assert.EqualError(t, err, tt.want)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantStyle, got.Image().Style)
		})
	}
}

func TestEditNode_Failures(t *testing.T) {
	tests := []struct {
		name   string
		editor *llm.MockImages
		req    docflow.Request
		want   string
	}{
		{name: "no image", editor: &llm.MockImages{}, req: docflow.Request{Prompt: "x"}, want: "No source image provided for editing"},
		{name: "no instructions", editor: &llm.MockImages{}, req: docflow.Request{Image: docflow.ImageOptions{SourceImage: []byte("a")}}, want: "No edit instructions provided"},
		{name: "provider error", editor: &llm.MockImages{Err: errors.New("boom")}, req: docflow.Request{Prompt: "x", Image: docflow.ImageOptions{SourceImage: []byte("a")}}, want: "Image editing failed: boom"},
		{name: "no data", editor: &llm.MockImages{Response: &llm.ImageResponse{}}, req: docflow.Request{Prompt: "x", Image: docflow.ImageOptions{SourceImage: []byte("a")}}, want: "Image editing returned no data"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := (&image.EditNode{Editor: tt.editor}).Run(testCtx(), docflow.NewState(docflow.OutputImageEdit, tt.req))
			assert.EqualError(t, err, tt.want)
		})
	}
}

func TestExtractSVG(t *testing.T) {
	svg, ok := image.ExtractSVG("```svg\n<svg><g/></svg>\n```")
	require.True(t, ok)
	assert.Equal(t, "<svg><g/></svg>", svg)

	_, ok = image.ExtractSVG("no markup")
	assert.False(t, ok)
}
