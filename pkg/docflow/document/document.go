// Package document implements the document branch: a nine-step pipeline that
// turns merged source content into a rendered file on disk.
//
// The steps are docflow.NodeFunc methods on Nodes. Every collaborator except
// the renderers is optional; a missing one makes its step a pass-through.
package document

import (
	"context"
	"os"
	"path/filepath"

	"github.com/randalmurphal/docflow/pkg/docflow"
	"github.com/randalmurphal/docflow/pkg/docflow/llm"
)

// Output formats.
const (
	FormatPDF         = "pdf"
	FormatMarkdown    = "markdown"
	FormatHTML        = "html"
	FormatPDFFromPPTX = "pdf_from_pptx"
	FormatPPTX        = "pptx"
)

var formatByOutput = map[docflow.OutputType]string{
	docflow.OutputArticlePDF:       FormatPDF,
	docflow.OutputArticleMarkdown:  FormatMarkdown,
	docflow.OutputArticleHTML:      FormatHTML,
	docflow.OutputSlideDeckPDF:     FormatPDFFromPPTX,
	docflow.OutputPresentationPPTX: FormatPPTX,
}

// FormatFor returns the render format of t. Unknown types render as pdf.
func FormatFor(t docflow.OutputType) string {
	if f, ok := formatByOutput[t]; ok {
		return f
	}
	return FormatPDF
}

// Content types passed to a Transformer.
const (
	ContentTranscript = "transcript"
	ContentSlides     = "slides"
	ContentDocument   = "document"
)

// TransformInput is what a Transformer restructures.
type TransformInput struct {
	Content     string
	ContentType string
	InputFormat string
	Format      string
	Audience    string
}

// Transformer restructures raw content. The result should carry at least
// "title" and "markdown", and may carry "visual_markers".
type Transformer interface {
	Transform(ctx context.Context, in TransformInput) (map[string]any, error)
}

// Enhancer writes an executive summary of a markdown document.
type Enhancer interface {
	Summarize(ctx context.Context, markdown string) (string, error)
}

// Describer captions a generated image.
type Describer interface {
	Describe(ctx context.Context, img docflow.Image) (string, error)
}

// Nodes holds the collaborators of the document branch.
type Nodes struct {
	// Parser reads InputPath when no content was merged or reused.
	Parser Parser

	Transformer Transformer
	Enhancer    Enhancer
	Describer   Describer

	// Images renders visual markers. Nil disables image generation.
	Images llm.ImageGenerator

	// Renderers maps formats to renderers. Nil means DefaultRenderers().
	Renderers Renderers

	// OutputDir is the root for rendered files. Empty means
	// <os.TempDir()>/docflow.
	OutputDir string
}

// Parser extracts text and metadata from a local file.
type Parser interface {
	Parse(ctx context.Context, path, format string) (string, map[string]any, error)
}

func (n *Nodes) renderers() Renderers {
	if n.Renderers != nil {
		return n.Renderers
	}
	return DefaultRenderers()
}

// outputDir returns the directory a run renders into. A path rendered by an
// earlier attempt pins the directory so retries overwrite the same file.
func (n *Nodes) outputDir(s docflow.State) string {
	if p := s.Document().OutputPath; p != "" {
		return filepath.Dir(p)
	}
	root := n.OutputDir
	if root == "" {
		root = filepath.Join(os.TempDir(), "docflow")
	}
	folder := "output"
	if s.InputPath != "" {
		if fi, err := os.Stat(s.InputPath); err == nil && !fi.IsDir() {
			folder = filepath.Base(filepath.Dir(s.InputPath))
		} else {
			folder = filepath.Base(s.InputPath)
		}
	}
	return filepath.Join(root, folder)
}
