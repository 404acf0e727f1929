package sources

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/net/html"
)

// Content formats returned by DetectFormat.
const (
	FormatPDF      = "pdf"
	FormatMarkdown = "markdown"
	FormatText     = "text"
	FormatDOCX     = "docx"
	FormatPPTX     = "pptx"
	FormatHTML     = "html"
	FormatImage    = "image"
)

var formatByExt = map[string]string{
	".pdf":      FormatPDF,
	".md":       FormatMarkdown,
	".markdown": FormatMarkdown,
	".txt":      FormatText,
	".docx":     FormatDOCX,
	".pptx":     FormatPPTX,
	".html":     FormatHTML,
	".htm":      FormatHTML,
}

var imageExts = map[string]bool{
	".png": true, ".jpg": true, ".jpeg": true, ".gif": true,
	".webp": true, ".bmp": true, ".tif": true, ".tiff": true,
}

// DetectFormat maps a file extension to a content format. Unknown
// extensions are treated as text.
func DetectFormat(path string) string {
	ext := strings.ToLower(filepath.Ext(path))
	if imageExts[ext] {
		return FormatImage
	}
	if f, ok := formatByExt[ext]; ok {
		return f
	}
	return FormatText
}

// IsImage reports whether path has an image extension.
func IsImage(path string) bool {
	return imageExts[strings.ToLower(filepath.Ext(path))]
}

// PlainTextParser reads text, markdown and HTML files. Binary office and PDF
// formats are rejected.
type PlainTextParser struct{}

// Parse implements DocumentParser.
func (PlainTextParser) Parse(_ context.Context, path, format string) (string, map[string]any, error) {
	switch format {
	case FormatPDF, FormatDOCX, FormatPPTX, FormatImage:
		return "", nil, fmt.Errorf("unsupported format %q for %s", format, filepath.Base(path))
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return "", nil, err
	}
	if format == FormatHTML {
		title, text := htmlText(strings.NewReader(string(data)))
		return text, meta(title), nil
	}

	content := strings.TrimSpace(string(data))
	if format == FormatMarkdown {
		return content, meta(markdownTitle(content)), nil
	}
	return content, map[string]any{}, nil
}

func meta(title string) map[string]any {
	if title == "" {
		return map[string]any{}
	}
	return map[string]any{"title": title}
}

func markdownTitle(content string) string {
	for _, line := range strings.Split(content, "\n") {
		if t, ok := strings.CutPrefix(strings.TrimSpace(line), "# "); ok {
			return strings.TrimSpace(t)
		}
	}
	return ""
}

// HTTPWebParser fetches a page and extracts its visible text.
type HTTPWebParser struct {
	Client *http.Client
	// MaxBytes caps the body read. Zero means 5 MiB.
	MaxBytes int64
}

// Parse implements WebParser.
func (p HTTPWebParser) Parse(ctx context.Context, url string) (string, map[string]any, error) {
	client := p.Client
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	limit := p.MaxBytes
	if limit <= 0 {
		limit = 5 << 20
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", nil, err
	}
	resp, err := client.Do(req)
	if err != nil {
		return "", nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return "", nil, fmt.Errorf("fetch %s: HTTP %d", url, resp.StatusCode)
	}

	body := io.LimitReader(resp.Body, limit)
	if !strings.Contains(resp.Header.Get("Content-Type"), "html") {
		data, err := io.ReadAll(body)
		if err != nil {
			return "", nil, err
		}
		return strings.TrimSpace(string(data)), map[string]any{"url": url}, nil
	}

	title, text := htmlText(body)
	m := meta(title)
	m["url"] = url
	return text, m, nil
}

// htmlText returns the document title and the visible text, one block per line.
func htmlText(r io.Reader) (title, text string) {
	z := html.NewTokenizer(r)
	var (
		b       strings.Builder
		skip    int
		inTitle bool
	)
	for {
		switch z.Next() {
		case html.ErrorToken:
			return strings.TrimSpace(title), strings.TrimSpace(b.String())
		case html.StartTagToken:
			name, _ := z.TagName()
			switch string(name) {
			case "script", "style", "noscript", "template":
				skip++
			case "title":
				inTitle = true
			case "p", "div", "br", "li", "h1", "h2", "h3", "h4", "h5", "h6", "tr", "section", "article":
				b.WriteByte('\n')
			}
		case html.EndTagToken:
			name, _ := z.TagName()
			switch string(name) {
			case "script", "style", "noscript", "template":
				if skip > 0 {
					skip--
				}
			case "title":
				inTitle = false
			}
		case html.TextToken:
			if skip > 0 {
				continue
			}
			t := strings.Join(strings.Fields(string(z.Text())), " ")
			if t == "" {
				continue
			}
			if inTitle {
				title += t
				continue
			}
			if b.Len() > 0 && !strings.HasSuffix(b.String(), "\n") {
				b.WriteByte(' ')
			}
			b.WriteString(t)
		}
	}
}

var (
	_ DocumentParser = PlainTextParser{}
	_ WebParser      = HTTPWebParser{}
)
