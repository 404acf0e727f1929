package document

import (
	"dario.cat/mergo"

	"github.com/randalmurphal/docflow/pkg/docflow"
)

// Preferences are the caller's rendering preferences.
type Preferences struct {
	Audience              string
	ImageStyle            string
	EnableImageGeneration bool
	MaxSlides             int
}

// DefaultPreferences fill whatever the request leaves unset.
var DefaultPreferences = Preferences{
	Audience:   "general",
	ImageStyle: "auto",
}

// PreferencesFrom reads req.Preferences and merges DefaultPreferences under it.
// Values of the wrong type are ignored.
func PreferencesFrom(req docflow.Request) Preferences {
	var p Preferences
	if v, ok := req.Preferences["audience"].(string); ok {
		p.Audience = v
	}
	if v, ok := req.Preferences["image_style"].(string); ok {
		p.ImageStyle = v
	}
	if v, ok := req.Preferences["enable_image_generation"].(bool); ok {
		p.EnableImageGeneration = v
	}
	switch v := req.Preferences["max_slides"].(type) {
	case int:
		p.MaxSlides = v
	case float64:
		p.MaxSlides = int(v)
	}
	// Only zero fields are filled, so the error path is unreachable for two
	// values of the same struct type.
	_ = mergo.Merge(&p, DefaultPreferences)
	return p
}

// Record writes the preferences into m together with the request's model
// selection. embed_in_pptx is set for the slide formats only.
func (p Preferences) Record(m *docflow.Metadata, s docflow.State) {
	m.Set("audience", p.Audience)
	m.Set("image_style", p.ImageStyle)
	m.Set("enable_image_generation", p.EnableImageGeneration)
	if p.MaxSlides > 0 {
		m.Set("max_slides", p.MaxSlides)
	}
	switch s.OutputType {
	case docflow.OutputSlideDeckPDF, docflow.OutputPresentationPPTX:
		m.Set("embed_in_pptx", p.EnableImageGeneration)
	}
	m.Set("output_type", string(s.OutputType))
	if s.Request.Provider != "" {
		m.Set("provider", s.Request.Provider)
	}
	if s.Request.Model != "" {
		m.Set("model", s.Request.Model)
	}
	if s.Request.ImageModel != "" {
		m.Set("image_model", s.Request.ImageModel)
	}
}
