package document

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/goccy/go-json"

	"github.com/randalmurphal/docflow/pkg/docflow/jsonx"
	"github.com/randalmurphal/docflow/pkg/docflow/llm"
	"github.com/randalmurphal/docflow/pkg/docflow/template"
)

// transcriptThreshold is the number of bare timestamp lines above which
// content is treated as a transcript.
const transcriptThreshold = 10

var timestampLine = regexp.MustCompile(`(?m)^\d{1,2}:\d{2}(:\d{2})?\s*$`)

// DetectContentType classifies raw content for the Transformer.
func DetectContentType(inputFormat, content string) string {
	if len(timestampLine.FindAllStringIndex(content, -1)) > transcriptThreshold {
		return ContentTranscript
	}
	switch inputFormat {
	case FormatPDF, FormatPPTX:
		return ContentSlides
	}
	return ContentDocument
}

// VisualMarker is a placeholder in the markdown where an image belongs.
type VisualMarker struct {
	ID          string `json:"marker_id"`
	Type        string `json:"type,omitempty"`
	Title       string `json:"title,omitempty"`
	Description string `json:"description,omitempty"`
	Position    string `json:"position,omitempty"`
}

// Markers returns the visual markers of structured content. Entries that
// do not decode, or have no id, are dropped.
func Markers(structured map[string]any) []VisualMarker {
	raw, ok := structured["visual_markers"]
	if !ok || raw == nil {
		return nil
	}
	data, err := json.Marshal(raw)
	if err != nil {
		return nil
	}
	var all []VisualMarker
	if err := json.Unmarshal(data, &all); err != nil {
		return nil
	}
	out := all[:0]
	for _, m := range all {
		if m.ID != "" {
			out = append(out, m)
		}
	}
	return out
}

// basicStructure is the transformer-less rendition of content: the first
// heading becomes the title.
func basicStructure(content, fallbackTitle string) map[string]any {
	title := fallbackTitle
	for _, line := range strings.Split(content, "\n") {
		if t, ok := strings.CutPrefix(strings.TrimSpace(line), "# "); ok && strings.TrimSpace(t) != "" {
			title = strings.TrimSpace(t)
			break
		}
	}
	return map[string]any{
		"title":          title,
		"markdown":       strings.TrimSpace(content),
		"visual_markers": []any{},
	}
}

func stringField(m map[string]any, key string) string {
	v, _ := m[key].(string)
	return v
}

// LLMTransformer restructures content into a blog-style article through an
// LLM that answers with a JSON object.
type LLMTransformer struct {
	LLM   llm.Client
	Model string
	// Template replaces DefaultTransformTemplate. It may reference
	// ${content_type}, ${audience}, ${format} and ${content}.
	Template string
}

// DefaultTransformTemplate is the user prompt of LLMTransformer.
const DefaultTransformTemplate = `Rewrite the following ${content_type} as a well-structured article for a ${audience} audience.
Where a diagram would help, put a line of the form [VISUAL:<marker_id>] on its own.
Respond with JSON only:
{"title": "...", "markdown": "...", "visual_markers": [{"marker_id": "...", "type": "diagram", "title": "...", "description": "..."}]}

Content:
${content}`

const transformSystem = "You turn raw material into clear, well-structured educational articles."

var prompts = template.NewExpander(template.WithMissingAction(template.MissingError))

// Transform implements Transformer.
func (t *LLMTransformer) Transform(ctx context.Context, in TransformInput) (map[string]any, error) {
	tmpl := t.Template
	if tmpl == "" {
		tmpl = DefaultTransformTemplate
	}
	prompt, err := prompts.Expand(tmpl, map[string]any{
		"content_type": in.ContentType,
		"audience":     in.Audience,
		"format":       in.Format,
		"content":      in.Content,
	})
	if err != nil {
		return nil, fmt.Errorf("transform prompt: %w", err)
	}

	req := llm.Prompt(transformSystem, prompt)
	req.Model = t.Model
	resp, err := t.LLM.Complete(ctx, req)
	if err != nil {
		return nil, err
	}
	obj, ok := jsonx.ExtractObject(resp.Content)
	if !ok {
		return nil, errors.New("no JSON object in transformer reply")
	}
	if stringField(obj, "markdown") == "" {
		return nil, errors.New("transformer reply has no markdown")
	}
	if stringField(obj, "title") == "" {
		obj["title"] = "Document"
	}
	return obj, nil
}

// LLMEnhancer writes executive summaries through an LLM.
type LLMEnhancer struct {
	LLM   llm.Client
	Model string
	// Template replaces DefaultSummaryTemplate. It may reference ${markdown}.
	Template string
}

// DefaultSummaryTemplate is the user prompt of LLMEnhancer.
const DefaultSummaryTemplate = "Write a three to five sentence executive summary of this document. Respond with the summary only.\n\n${markdown}"

// Summarize implements Enhancer.
func (e *LLMEnhancer) Summarize(ctx context.Context, markdown string) (string, error) {
	tmpl := e.Template
	if tmpl == "" {
		tmpl = DefaultSummaryTemplate
	}
	prompt, err := prompts.Expand(tmpl, map[string]any{"markdown": markdown})
	if err != nil {
		return "", fmt.Errorf("summary prompt: %w", err)
	}
	req := llm.Prompt("", prompt)
	req.Model = e.Model
	resp, err := e.LLM.Complete(ctx, req)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(resp.Content), nil
}

// markerPrompt is the image prompt of a visual marker.
func markerPrompt(m VisualMarker) string {
	var b strings.Builder
	b.WriteString("Create a clear illustration for a document")
	if m.Type != "" {
		fmt.Fprintf(&b, " (%s)", m.Type)
	}
	b.WriteString(".")
	if m.Title != "" {
		fmt.Fprintf(&b, "\nTitle: %s", m.Title)
	}
	if m.Description != "" {
		fmt.Fprintf(&b, "\nShows: %s", m.Description)
	}
	return b.String()
}
