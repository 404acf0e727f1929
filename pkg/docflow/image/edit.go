package image

import (
	"strings"

	"github.com/randalmurphal/docflow/pkg/docflow"
	"github.com/randalmurphal/docflow/pkg/docflow/llm"
)

// EditNode is the edit_image node.
type EditNode struct {
	Editor llm.ImageEditor
}

// Run implements docflow.NodeFunc.
func (n *EditNode) Run(ctx docflow.Context, s docflow.State) (docflow.State, error) {
	docflow.ReportStart(ctx, s)
	opts := s.Request.Image

	if n.Editor == nil {
		docflow.ReportEnd(ctx, false, "Service not configured")
		return s, docflow.Fail("Image service not configured")
	}
	if len(opts.SourceImage) == 0 {
		docflow.ReportEnd(ctx, false, "Missing source image")
		return s, docflow.Fail("No source image provided for editing")
	}
	prompt := strings.TrimSpace(s.Request.Prompt)
	if prompt == "" {
		docflow.ReportEnd(ctx, false, "Missing prompt")
		return s, docflow.Fail("No edit instructions provided")
	}

	mode := opts.EditMode
	if mode == "" {
		mode = llm.EditBasic
	}
	req := llm.ImageEditRequest{
		Image:  opts.SourceImage,
		Prompt: prompt,
		Model:  s.Request.ImageModel,
		Mode:   mode,
	}
	var styleID string

	switch mode {
	case llm.EditBasic:
	case llm.EditStyleTransfer:
		style, ok := StyleByID(opts.Style)
		if !ok {
			docflow.ReportEnd(ctx, false, "Missing style")
			if opts.Style == "" {
				return s, docflow.Fail("Style transfer requires a style")
			}
			return s, docflow.Fail("Unknown style: " + opts.Style)
		}
		req.Style = style.Prompt
		styleID = style.ID
	case llm.EditRegion:
		region := llm.Region{Width: 1, Height: 1}
		if r := opts.Region; r != nil {
			region = llm.Region{X: r.X, Y: r.Y, Width: r.Width, Height: r.Height}
		}
		if err := region.Validate(); err != nil {
			docflow.ReportEnd(ctx, false, "Invalid region")
			return s, docflow.Fail("Invalid region: " + err.Error())
		}
		req.Region = &region
	default:
		docflow.ReportEnd(ctx, false, "Unsupported mode")
		return s, docflow.Fail("Unsupported edit mode: " + mode)
	}

	ctx.Logger().Info("editing image", "mode", mode)
	docflow.ReportMetric(ctx, "source_image_bytes", float64(len(opts.SourceImage)), "bytes")

	resp, err := n.Editor.EditImage(ctx, req)
	if err != nil {
		ctx.Logger().Error("image editing failed", "error", err)
		docflow.ReportEnd(ctx, false, err.Error())
		return s, docflow.Failf("Image editing failed: %w", err)
	}
	if resp == nil || len(resp.Data) == 0 {
		docflow.ReportEnd(ctx, false, "No image data")
		return s, docflow.Fail("Image editing returned no data")
	}

	r := s.Image()
	r.Edit = true
	r.Data = resp.Data
	r.Format = llm.FormatPNG
	r.PromptUsed = prompt
	r.Style = styleID
	s.Completed = true

	docflow.ReportEnd(ctx, true, "Image ready")
	return s, nil
}
