// Package image implements the image_generate and image_edit branches.
//
// Generation takes the request prompt, or derives one from the prepared
// content through a mind map summarization pass. Raster output goes to an
// llm.ImageGenerator; SVG output goes to an LLM that writes markup.
package image

// Style is a named visual style. Prompt is appended to generation and
// style-transfer requests.
type Style struct {
	ID          string
	Name        string
	Prompt      string
	SupportsSVG bool
}

// Styles is the built-in style catalog.
var Styles = []Style{
	{ID: "minimalist", Name: "Minimalist", Prompt: "clean minimalist composition, flat colors, generous whitespace", SupportsSVG: true},
	{ID: "infographic", Name: "Infographic", Prompt: "infographic layout with icons, clear hierarchy and labeled sections", SupportsSVG: true},
	{ID: "line_art", Name: "Line Art", Prompt: "monochrome line art with uniform stroke weight", SupportsSVG: true},
	{ID: "corporate", Name: "Corporate", Prompt: "professional corporate illustration, teal and orange palette", SupportsSVG: true},
	{ID: "watercolor", Name: "Watercolor", Prompt: "soft watercolor painting with visible paper texture"},
	{ID: "photorealistic", Name: "Photorealistic", Prompt: "photorealistic rendering, natural lighting, shallow depth of field"},
	{ID: "sketch", Name: "Sketch", Prompt: "hand-drawn pencil sketch with cross hatching"},
	{ID: "isometric", Name: "Isometric", Prompt: "isometric 3D illustration with soft shadows"},
}

// StyleByID looks up a style in the catalog.
func StyleByID(id string) (Style, bool) {
	for _, s := range Styles {
		if s.ID == id {
			return s, true
		}
	}
	return Style{}, false
}
