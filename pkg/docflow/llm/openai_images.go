package llm

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"strings"

	// Source images may arrive as JPEG; DecodeConfig needs the decoder registered.
	_ "image/jpeg"

	"github.com/openai/openai-go"
)

// OpenAIImages implements ImageGenerator and ImageEditor with the images API.
// It produces raster output only.
type OpenAIImages struct {
	client openai.Client
	model  string
}

// NewOpenAIImages creates an image generator and editor.
func NewOpenAIImages(opts ...OpenAIOption) *OpenAIImages {
	cfg := newOpenAIConfig(DefaultImageModel, opts)
	return &OpenAIImages{client: cfg.client(), model: cfg.model}
}

// GenerateImage implements ImageGenerator.
func (c *OpenAIImages) GenerateImage(ctx context.Context, req ImageRequest) (*ImageResponse, error) {
	if req.Format != "" && req.Format != FormatPNG {
		return nil, NewError("generate_image", fmt.Errorf("unsupported format %q", req.Format), false)
	}
	model := c.pick(req.Model)
	params := openai.ImageGenerateParams{
		Prompt: withStyle(req.Prompt, req.Style),
		Model:  openai.ImageModel(model),
		N:      openai.Int(1),
	}
	// gpt-image models always return base64 and reject the parameter.
	if strings.HasPrefix(model, "dall-e") {
		params.ResponseFormat = openai.ImageGenerateParamsResponseFormatB64JSON
	}

	resp, err := c.client.Images.Generate(ctx, params)
	if err != nil {
		return nil, wrapOpenAIError("generate_image", ctx, err)
	}
	return decodeImages("generate_image", resp)
}

// EditImage implements ImageEditor. Region edits send a mask whose
// transparent area is the region.
func (c *OpenAIImages) EditImage(ctx context.Context, req ImageEditRequest) (*ImageResponse, error) {
	prompt := req.Prompt
	if req.Mode == EditStyleTransfer {
		prompt = withStyle(prompt, req.Style)
	}
	params := openai.ImageEditParams{
		Image: openai.ImageEditParamsImageUnion{
			OfFile: openai.File(bytes.NewReader(req.Image), "image.png", "image/png"),
		},
		Prompt: prompt,
		Model:  openai.ImageModel(c.pick(req.Model)),
		N:      openai.Int(1),
	}
	if req.Mode == EditRegion && req.Region != nil {
		mask, err := RegionMask(req.Image, *req.Region)
		if err != nil {
			return nil, NewError("edit_image", err, false)
		}
		params.Mask = openai.File(bytes.NewReader(mask), "mask.png", "image/png")
	}

	resp, err := c.client.Images.Edit(ctx, params)
	if err != nil {
		return nil, wrapOpenAIError("edit_image", ctx, err)
	}
	return decodeImages("edit_image", resp)
}

func (c *OpenAIImages) pick(model string) string {
	if model != "" {
		return model
	}
	return c.model
}

func decodeImages(op string, resp *openai.ImagesResponse) (*ImageResponse, error) {
	if len(resp.Data) == 0 || resp.Data[0].B64JSON == "" {
		return &ImageResponse{Format: FormatPNG}, nil
	}
	data, err := base64.StdEncoding.DecodeString(resp.Data[0].B64JSON)
	if err != nil {
		return nil, NewError(op, fmt.Errorf("decode image: %w", err), false)
	}
	return &ImageResponse{Data: data, Format: FormatPNG, RevisedPrompt: resp.Data[0].RevisedPrompt}, nil
}

func withStyle(prompt, style string) string {
	if style == "" {
		return prompt
	}
	return prompt + "\n\nStyle: " + style
}

// RegionMask builds a PNG mask the size of src: opaque everywhere except the
// normalized region, which is fully transparent.
func RegionMask(src []byte, r Region) ([]byte, error) {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(src))
	if err != nil {
		return nil, fmt.Errorf("read source image: %w", err)
	}
	if cfg.Width == 0 || cfg.Height == 0 {
		return nil, errors.New("source image has no pixels")
	}

	mask := image.NewNRGBA(image.Rect(0, 0, cfg.Width, cfg.Height))
	x0 := int(r.X * float64(cfg.Width))
	y0 := int(r.Y * float64(cfg.Height))
	x1 := int((r.X + r.Width) * float64(cfg.Width))
	y1 := int((r.Y + r.Height) * float64(cfg.Height))
	opaque := color.NRGBA{A: 0xff}
	for y := 0; y < cfg.Height; y++ {
		for x := 0; x < cfg.Width; x++ {
			if x >= x0 && x < x1 && y >= y0 && y < y1 {
				continue
			}
			mask.SetNRGBA(x, y, opaque)
		}
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, mask); err != nil {
		return nil, fmt.Errorf("encode mask: %w", err)
	}
	return buf.Bytes(), nil
}

var (
	_ ImageGenerator = (*OpenAIImages)(nil)
	_ ImageEditor    = (*OpenAIImages)(nil)
)
