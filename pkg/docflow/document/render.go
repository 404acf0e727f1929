package document

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"html"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"

	"github.com/randalmurphal/docflow/pkg/docflow"
)

// GenerationError is a renderer failure the branch may retry.
type GenerationError struct {
	Format string
	Err    error
}

// Error implements the error interface.
func (e *GenerationError) Error() string {
	return fmt.Sprintf("%s: %v", e.Format, e.Err)
}

// Unwrap returns the underlying error for errors.Is/As support.
func (e *GenerationError) Unwrap() error {
	return e.Err
}

// Doc is the input of a Renderer.
type Doc struct {
	Title    string
	Markdown string
	Summary  string
	Content  map[string]any
	Images   []docflow.Image
	Prefs    Preferences
	// Filename is the file stem to write, without extension.
	Filename string
}

// Renderer writes a Doc into dir and returns the written path.
type Renderer interface {
	Render(ctx context.Context, doc Doc, dir string) (string, error)
}

// Renderers maps a format to its renderer.
type Renderers map[string]Renderer

// DefaultRenderers returns the built-in markdown and html renderers.
func DefaultRenderers() Renderers {
	return Renderers{
		FormatMarkdown: MarkdownRenderer{},
		FormatHTML:     NewHTMLRenderer(),
	}
}

// visualMarker matches a [VISUAL:<id>] placeholder line.
var visualMarker = regexp.MustCompile(`(?m)^[ \t]*\[VISUAL:([^\]]+)\][ \t]*$`)

// Body returns the markdown to render. Visual placeholders are replaced by
// image links for persisted images and dropped otherwise. A non-empty summary
// is prepended under its own heading.
func (d Doc) Body() string {
	byMarker := make(map[string]docflow.Image, len(d.Images))
	for _, img := range d.Images {
		byMarker[img.Marker] = img
	}
	body := visualMarker.ReplaceAllStringFunc(d.Markdown, func(m string) string {
		id := strings.TrimSpace(visualMarker.FindStringSubmatch(m)[1])
		img, ok := byMarker[id]
		if !ok || img.Path == "" {
			return ""
		}
		alt := img.Description
		if alt == "" {
			alt = id
		}
		return fmt.Sprintf("![%s](%s)", alt, filepath.ToSlash(img.Path))
	})
	if d.Summary != "" {
		body = "## Executive Summary\n\n" + d.Summary + "\n\n" + body
	}
	return body
}

// MarkdownRenderer writes the document as a .md file.
type MarkdownRenderer struct{}

// Render implements Renderer.
func (MarkdownRenderer) Render(_ context.Context, doc Doc, dir string) (string, error) {
	body := doc.Body()
	if strings.TrimSpace(body) == "" {
		return "", &GenerationError{Format: FormatMarkdown, Err: errEmptyDocument}
	}
	if !strings.HasPrefix(strings.TrimSpace(body), "# ") && doc.Title != "" {
		body = "# " + doc.Title + "\n\n" + body
	}
	return writeFile(FormatMarkdown, dir, doc.Filename+".md", []byte(body))
}

// HTMLRenderer converts the document to HTML with goldmark.
type HTMLRenderer struct {
	md goldmark.Markdown
}

// NewHTMLRenderer returns an HTMLRenderer with GitHub-flavored extensions.
func NewHTMLRenderer() HTMLRenderer {
	return HTMLRenderer{md: goldmark.New(goldmark.WithExtensions(extension.GFM))}
}

// Render implements Renderer.
func (r HTMLRenderer) Render(_ context.Context, doc Doc, dir string) (string, error) {
	body := doc.Body()
	if strings.TrimSpace(body) == "" {
		return "", &GenerationError{Format: FormatHTML, Err: errEmptyDocument}
	}
	md := r.md
	if md == nil {
		md = goldmark.New()
	}
	var buf bytes.Buffer
	if err := md.Convert([]byte(body), &buf); err != nil {
		return "", &GenerationError{Format: FormatHTML, Err: err}
	}

	var page strings.Builder
	page.WriteString("<!DOCTYPE html>\n<html>\n<head>\n<meta charset=\"utf-8\">\n")
	fmt.Fprintf(&page, "<title>%s</title>\n", html.EscapeString(doc.Title))
	page.WriteString("</head>\n<body>\n")
	page.Write(buf.Bytes())
	page.WriteString("</body>\n</html>\n")
	return writeFile(FormatHTML, dir, doc.Filename+".html", []byte(page.String()))
}

var errEmptyDocument = errors.New("document has no content")

func writeFile(format, dir, name string, data []byte) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", &GenerationError{Format: format, Err: err}
	}
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", &GenerationError{Format: format, Err: err}
	}
	return path, nil
}

var nonSlug = regexp.MustCompile(`[^a-z0-9]+`)

// Slug turns a title into a file stem. An empty result becomes "document".
func Slug(title string) string {
	s := strings.Trim(nonSlug.ReplaceAllString(strings.ToLower(title), "_"), "_")
	if len(s) > 80 {
		s = strings.TrimRight(s[:80], "_")
	}
	if s == "" {
		return "document"
	}
	return s
}
