package image

import (
	"context"
	"errors"
	"strings"

	"github.com/randalmurphal/docflow/pkg/docflow/llm"
)

// ErrNoSVG is returned when the model reply holds no <svg> element.
var ErrNoSVG = errors.New("no svg element in model reply")

const svgSystemPrompt = `You are an illustrator who writes standalone SVG 1.1 documents.
Reply with a single <svg> element using a viewBox, no external references, no scripts.`

// SVGGenerator implements llm.ImageGenerator by asking a text model for SVG markup.
type SVGGenerator struct {
	LLM   llm.Client
	Model string
}

// GenerateImage implements llm.ImageGenerator.
func (g *SVGGenerator) GenerateImage(ctx context.Context, req llm.ImageRequest) (*llm.ImageResponse, error) {
	user := req.Prompt
	if req.Style != "" {
		user += "\n\nStyle: " + req.Style
	}
	creq := llm.Prompt(svgSystemPrompt, user)
	creq.Model = req.Model
	if creq.Model == "" {
		creq.Model = g.Model
	}

	resp, err := g.LLM.Complete(ctx, creq)
	if err != nil {
		return nil, err
	}
	svg, ok := ExtractSVG(resp.Content)
	if !ok {
		return nil, ErrNoSVG
	}
	return &llm.ImageResponse{Data: []byte(svg), Format: llm.FormatSVG, RevisedPrompt: user}, nil
}

// ExtractSVG returns the first <svg ...>...</svg> element in text.
func ExtractSVG(text string) (string, bool) {
	start := strings.Index(text, "<svg")
	if start < 0 {
		return "", false
	}
	end := strings.LastIndex(text, "</svg>")
	if end < start {
		return "", false
	}
	return text[start : end+len("</svg>")], true
}

var _ llm.ImageGenerator = (*SVGGenerator)(nil)
