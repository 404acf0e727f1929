package image

import (
	"fmt"
	"strings"

	"github.com/randalmurphal/docflow/pkg/docflow"
	"github.com/randalmurphal/docflow/pkg/docflow/llm"
)

// Output formats requested through ImageOptions.OutputFormat.
const (
	OutputRaster = "raster"
	OutputSVG    = "svg"
)

// GenerateNode is the generate_image node.
type GenerateNode struct {
	// Raster produces PNG output.
	Raster llm.ImageGenerator
	// SVG produces SVG output. Nil disables SVG.
	SVG llm.ImageGenerator
	// LLM derives prompts from content. Nil falls back to the summary prompt.
	LLM llm.Client
}

// Run implements docflow.NodeFunc.
func (n *GenerateNode) Run(ctx docflow.Context, s docflow.State) (docflow.State, error) {
	docflow.ReportStart(ctx, s)
	req := s.Request

	format := req.Image.OutputFormat
	if format == "" {
		format = OutputRaster
	}
	gen := n.Raster
	if format == OutputSVG {
		gen = n.SVG
	}
	if gen == nil {
		docflow.ReportEnd(ctx, false, "Service not configured")
		return s, docflow.Fail("Image service not configured")
	}

	prompt := strings.TrimSpace(req.Prompt)
	source := PromptFromUser
	if prompt == "" && strings.TrimSpace(s.RawContent) != "" {
		content := strings.TrimSpace(s.SummaryContent)
		if content == "" {
			content = strings.TrimSpace(s.RawContent)
		}
		derived, src, err := DerivePrompt(ctx, n.LLM, req.Model, content, "", max(s.Metadata.SourceCount, 1))
		if err != nil {
			docflow.ReportEnd(ctx, false, err.Error())
			return s, docflow.Failf("Image generation failed: %w", err)
		}
		prompt, source = derived, src
	}
	if prompt == "" {
		docflow.ReportEnd(ctx, false, "Missing prompt")
		return s, docflow.Fail("No prompt provided for image generation")
	}
	s.Metadata.ImagePromptSource = source
	docflow.ReportMetric(ctx, "prompt_length", float64(len(prompt)), "chars")

	var style Style
	if req.Image.Style != "" {
		st, ok := StyleByID(req.Image.Style)
		if !ok {
			ctx.Logger().Warn("unknown image style, generating without one", "style", req.Image.Style)
		}
		style = st
	}
	if format == OutputSVG && style.ID != "" && !style.SupportsSVG {
		docflow.ReportEnd(ctx, false, "SVG not supported")
		return s, docflow.Fail(fmt.Sprintf("Style '%s' does not support SVG output", style.Name))
	}

	ctx.Logger().Info("generating image", "format", format, "style", style.ID, "prompt_source", source)
	llmFormat := llm.FormatPNG
	if format == OutputSVG {
		llmFormat = llm.FormatSVG
	}
	resp, err := gen.GenerateImage(ctx, llm.ImageRequest{
		Prompt: prompt,
		Model:  req.ImageModel,
		Style:  style.Prompt,
		Format: llmFormat,
	})
	if err != nil {
		ctx.Logger().Error("image generation failed", "error", err)
		docflow.ReportEnd(ctx, false, err.Error())
		return s, docflow.Failf("Image generation failed: %w", err)
	}
	if resp == nil || len(resp.Data) == 0 {
		docflow.ReportEnd(ctx, false, "No image data")
		return s, docflow.Fail("Image generation returned no data")
	}

	r := s.Image()
	r.Data = resp.Data
	r.Format = resp.Format
	if r.Format == "" {
		r.Format = llmFormat
	}
	r.PromptUsed = prompt
	r.Style = style.ID
	s.Completed = true

	docflow.ReportEnd(ctx, true, "Image ready")
	return s, nil
}
