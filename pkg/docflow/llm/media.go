package llm

import (
	"context"
	"fmt"
)

// Speaker maps a script speaker name to a voice.
type Speaker struct {
	Name  string
	Voice string
}

// SpeechSynthesizer turns a multi-speaker script into raw PCM audio
// (mono, 24 kHz, signed 16-bit little endian).
type SpeechSynthesizer interface {
	Synthesize(ctx context.Context, prompt string, speakers []Speaker) ([]byte, error)
}

// Image output formats.
const (
	FormatPNG = "png"
	FormatSVG = "svg"
)

// ImageRequest configures an image generation call.
type ImageRequest struct {
	Prompt string
	Model  string
	// Style is an optional style prompt appended by the provider.
	Style string
	// Format is FormatPNG or FormatSVG. Empty means FormatPNG.
	Format string
}

// ImageResponse is a generated or edited image.
type ImageResponse struct {
	Data          []byte
	Format        string
	RevisedPrompt string
}

// ImageGenerator creates images from prompts.
type ImageGenerator interface {
	GenerateImage(ctx context.Context, req ImageRequest) (*ImageResponse, error)
}

// Region is a normalized bounding box on the source image.
type Region struct {
	X, Y, Width, Height float64
}

// Validate checks that the region lies inside the unit square.
func (r Region) Validate() error {
	for _, v := range []struct {
		name string
		val  float64
	}{{"x", r.X}, {"y", r.Y}, {"width", r.Width}, {"height", r.Height}} {
		if v.val < 0 || v.val > 1 {
			return fmt.Errorf("%s must be between 0 and 1", v.name)
		}
	}
	if r.Width == 0 || r.Height == 0 {
		return fmt.Errorf("width and height must be positive")
	}
	if r.X+r.Width > 1 {
		return fmt.Errorf("x + width must not exceed 1")
	}
	if r.Y+r.Height > 1 {
		return fmt.Errorf("y + height must not exceed 1")
	}
	return nil
}

// Edit modes.
const (
	EditBasic         = "basic"
	EditStyleTransfer = "style_transfer"
	EditRegion        = "region"
)

// ImageEditRequest configures an image edit call.
type ImageEditRequest struct {
	Image  []byte
	Prompt string
	Model  string
	Mode   string
	Style  string
	// Region is set for EditRegion only.
	Region *Region
}

// ImageEditor modifies an existing image.
type ImageEditor interface {
	EditImage(ctx context.Context, req ImageEditRequest) (*ImageResponse, error)
}
