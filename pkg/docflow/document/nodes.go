package document

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/randalmurphal/docflow/pkg/docflow"
	"github.com/randalmurphal/docflow/pkg/docflow/llm"
	"github.com/randalmurphal/docflow/pkg/docflow/sources"
)

// DetectFormat records the input format, the output format and the caller's
// preferences.
func (n *Nodes) DetectFormat(ctx docflow.Context, s docflow.State) (docflow.State, error) {
	docflow.ReportStart(ctx, s)

	doc := s.Document()
	doc.Format = FormatFor(s.OutputType)
	PreferencesFrom(s.Request).Record(&s.Metadata, s)

	if s.InputPath == "" {
		docflow.ReportEnd(ctx, false, "No input file")
		return s, docflow.Fail("No input file for document generation")
	}
	s.InputFormat = sources.DetectFormat(s.InputPath)
	ctx.Logger().Info("detected format", "input_format", s.InputFormat, "output_format", doc.Format)
	docflow.ReportEnd(ctx, true, s.InputFormat)
	return s, nil
}

// ParseContent reads InputPath unless content was already merged or reused.
func (n *Nodes) ParseContent(ctx docflow.Context, s docflow.State) (docflow.State, error) {
	docflow.ReportStart(ctx, s)
	if s.RawContent != "" {
		docflow.ReportEnd(ctx, true, "Using prepared content")
		return s, nil
	}
	if n.Parser == nil {
		docflow.ReportEnd(ctx, false, "Parser not configured")
		return s, docflow.Fail("Parsing failed: no parser configured")
	}

	content, meta, err := n.Parser.Parse(ctx, s.InputPath, s.InputFormat)
	if err != nil {
		ctx.Logger().Error("parsing failed", "path", s.InputPath, "error", err)
		docflow.ReportEnd(ctx, false, err.Error())
		return s, docflow.Failf("Parsing failed: %w", err)
	}
	s.RawContent = content
	if title, ok := meta["title"].(string); ok && title != "" {
		s.Metadata.Set("title", title)
	}
	docflow.ReportMetric(ctx, "content_length", float64(len(content)), "chars")
	docflow.ReportEnd(ctx, true, fmt.Sprintf("%d chars", len(content)))
	return s, nil
}

// TransformContent turns raw content into structured content carrying a
// title, markdown and optional visual markers.
func (n *Nodes) TransformContent(ctx docflow.Context, s docflow.State) (docflow.State, error) {
	docflow.ReportStart(ctx, s)
	if isFallback(s.StructuredContent) {
		// The raw fallback of a failed transform, possibly from a checkpoint.
		// Its summary was written from untransformed text as well.
		ctx.Logger().Info("retrying transformation of fallback content")
		s.StructuredContent = nil
		delete(s.EnhancedContent, "executive_summary")
	}
	if stringField(s.StructuredContent, "markdown") != "" {
		ctx.Logger().Info("reusing structured content")
		docflow.ReportEnd(ctx, true, "Reused structured content")
		return s, nil
	}

	if s.RawContent == "" {
		ctx.Logger().Warn("no content to transform")
		s.StructuredContent = map[string]any{"markdown": "", "title": "Empty Document"}
		docflow.ReportEnd(ctx, true, "Empty document")
		return s, nil
	}

	title := metaTitle(s.Metadata)
	contentType := DetectContentType(s.InputFormat, s.RawContent)
	ctx.Logger().Info("transforming content", "content_type", contentType, "input_format", s.InputFormat)

	if n.Transformer == nil {
		s.StructuredContent = basicStructure(s.RawContent, title)
	} else {
		structured, err := n.Transformer.Transform(ctx, TransformInput{
			Content:     s.RawContent,
			ContentType: contentType,
			InputFormat: s.InputFormat,
			Format:      s.Document().Format,
			Audience:    PreferencesFrom(s.Request).Audience,
		})
		if err != nil {
			ctx.Logger().Error("transformation failed", "error", err)
			s.StructuredContent = map[string]any{
				"markdown":       s.RawContent,
				"title":          title,
				"visual_markers": []any{},
				fallbackKey:      true,
			}
			docflow.ReportEnd(ctx, false, err.Error())
			return s, docflow.Failf("Transformation failed: %w", err)
		}
		s.StructuredContent = structured
	}

	if _, ok := s.Metadata.Get("title"); !ok {
		s.Metadata.Set("title", stringField(s.StructuredContent, "title"))
	}
	markers := len(Markers(s.StructuredContent))
	docflow.ReportMetric(ctx, "visual_markers", float64(markers), "count")
	docflow.ReportEnd(ctx, true, fmt.Sprintf("%q, %d visual markers", stringField(s.StructuredContent, "title"), markers))
	return s, nil
}

// fallbackKey marks structured content that is the raw input of a failed
// transform. Such content is transformed again instead of being reused.
const fallbackKey = "transform_fallback"

func isFallback(structured map[string]any) bool {
	v, _ := structured[fallbackKey].(bool)
	return v
}

func metaTitle(m docflow.Metadata) string {
	if v, ok := m.Get("title"); ok {
		if t, ok := v.(string); ok && t != "" {
			return t
		}
	}
	return "Document"
}

// EnhanceContent adds an executive summary. A failing enhancer is logged and
// the document is rendered without one.
func (n *Nodes) EnhanceContent(ctx docflow.Context, s docflow.State) (docflow.State, error) {
	if n.Enhancer == nil {
		return s, nil
	}
	if stringField(s.EnhancedContent, "executive_summary") != "" {
		return s, nil
	}
	markdown := stringField(s.StructuredContent, "markdown")
	if markdown == "" {
		return s, nil
	}

	docflow.ReportStart(ctx, s)
	summary, err := n.Enhancer.Summarize(ctx, markdown)
	if err != nil {
		ctx.Logger().Warn("enhancement failed", "error", err)
		docflow.ReportEnd(ctx, false, err.Error())
		return s, nil
	}
	if summary != "" {
		if s.EnhancedContent == nil {
			s.EnhancedContent = make(map[string]any)
		}
		s.EnhancedContent["executive_summary"] = summary
	}
	docflow.ReportEnd(ctx, true, "Executive summary")
	return s, nil
}

// GenerateImages renders one image per visual marker. Markers that fail are
// logged and skipped.
func (n *Nodes) GenerateImages(ctx docflow.Context, s docflow.State) (docflow.State, error) {
	prefs := PreferencesFrom(s.Request)
	if !prefs.EnableImageGeneration || n.Images == nil {
		return s, nil
	}
	markers := Markers(s.StructuredContent)
	if len(markers) == 0 {
		return s, nil
	}

	docflow.ReportStart(ctx, s)
	style := prefs.ImageStyle
	if style == "auto" {
		style = ""
	}
	doc := s.Document()
	doc.Images = doc.Images[:0]
	for _, m := range markers {
		prompt := markerPrompt(m)
		resp, err := n.Images.GenerateImage(ctx, llm.ImageRequest{
			Prompt: prompt,
			Model:  s.Request.ImageModel,
			Style:  style,
			Format: llm.FormatPNG,
		})
		if err != nil || resp == nil || len(resp.Data) == 0 {
			ctx.Logger().Warn("image generation failed", "marker", m.ID, "error", err)
			continue
		}
		doc.Images = append(doc.Images, docflow.Image{
			Marker: m.ID,
			Prompt: prompt,
			Data:   resp.Data,
			Format: resp.Format,
		})
	}

	docflow.ReportMetric(ctx, "images_generated", float64(len(doc.Images)), "count")
	docflow.ReportEnd(ctx, len(doc.Images) > 0, fmt.Sprintf("%d of %d images", len(doc.Images), len(markers)))
	return s, nil
}

// DescribeImages captions generated images.
func (n *Nodes) DescribeImages(ctx docflow.Context, s docflow.State) (docflow.State, error) {
	doc := s.Document()
	if n.Describer == nil || len(doc.Images) == 0 {
		return s, nil
	}
	docflow.ReportStart(ctx, s)
	described := 0
	for i := range doc.Images {
		desc, err := n.Describer.Describe(ctx, doc.Images[i])
		if err != nil {
			ctx.Logger().Warn("image description failed", "marker", doc.Images[i].Marker, "error", err)
			continue
		}
		doc.Images[i].Description = desc
		described++
	}
	docflow.ReportEnd(ctx, true, fmt.Sprintf("%d images described", described))
	return s, nil
}

// PersistImages writes generated images under <output dir>/images.
func (n *Nodes) PersistImages(ctx docflow.Context, s docflow.State) (docflow.State, error) {
	doc := s.Document()
	if len(doc.Images) == 0 {
		return s, nil
	}
	docflow.ReportStart(ctx, s)

	dir := filepath.Join(n.outputDir(s), "images")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		ctx.Logger().Warn("cannot create image directory", "dir", dir, "error", err)
		docflow.ReportEnd(ctx, false, err.Error())
		return s, nil
	}
	doc.ImagePaths = doc.ImagePaths[:0]
	for i := range doc.Images {
		img := &doc.Images[i]
		ext := img.Format
		if ext == "" {
			ext = llm.FormatPNG
		}
		path := filepath.Join(dir, Slug(img.Marker)+"."+ext)
		if err := os.WriteFile(path, img.Data, 0o644); err != nil {
			ctx.Logger().Warn("cannot write image", "path", path, "error", err)
			continue
		}
		img.Path = path
		doc.ImagePaths = append(doc.ImagePaths, path)
	}
	docflow.ReportEnd(ctx, true, fmt.Sprintf("%d images saved", len(doc.ImagePaths)))
	return s, nil
}

// GenerateOutput renders the structured content with the renderer of the
// output format.
func (n *Nodes) GenerateOutput(ctx docflow.Context, s docflow.State) (docflow.State, error) {
	docflow.ReportStart(ctx, s)
	doc := s.Document()
	if doc.Format == "" {
		doc.Format = FormatFor(s.OutputType)
	}

	renderer, ok := n.renderers()[doc.Format]
	if !ok {
		docflow.ReportEnd(ctx, false, "No renderer")
		return s, docflow.Failf("Generation failed: no renderer for format %q", doc.Format)
	}

	title := stringField(s.StructuredContent, "title")
	if title == "" {
		title = metaTitle(s.Metadata)
	}
	stem := Slug(title)
	if doc.OutputPath != "" {
		stem = stemOf(doc.OutputPath)
	}

	path, err := renderer.Render(ctx, Doc{
		Title:    title,
		Markdown: stringField(s.StructuredContent, "markdown"),
		Summary:  stringField(s.EnhancedContent, "executive_summary"),
		Content:  s.StructuredContent,
		Images:   doc.Images,
		Prefs:    PreferencesFrom(s.Request),
		Filename: stem,
	}, n.outputDir(s))
	if err != nil {
		ctx.Logger().Error("generation failed", "format", doc.Format, "error", err)
		docflow.ReportEnd(ctx, false, err.Error())
		var genErr *GenerationError
		if errors.As(err, &genErr) {
			return s, docflow.Failf("Generation failed: %w", err)
		}
		return s, docflow.Failf("Unexpected generation error: %w", err)
	}

	doc.OutputPath = path
	ctx.Logger().Info("generated output", "path", path)
	docflow.ReportEnd(ctx, true, filepath.Base(path))
	return s, nil
}

func stemOf(path string) string {
	base := filepath.Base(path)
	return base[:len(base)-len(filepath.Ext(base))]
}

// ValidateOutput checks that the rendered file exists and is not empty.
func (n *Nodes) ValidateOutput(ctx docflow.Context, s docflow.State) (docflow.State, error) {
	docflow.ReportStart(ctx, s)
	path := s.Document().OutputPath
	if path == "" {
		docflow.ReportEnd(ctx, false, "No output")
		return s, docflow.Fail("Validation failed: no output file was generated")
	}
	fi, err := os.Stat(path)
	switch {
	case err != nil:
		docflow.ReportEnd(ctx, false, "Output missing")
		return s, docflow.Failf("Validation failed: output file not found: %s", path)
	case fi.Size() == 0:
		docflow.ReportEnd(ctx, false, "Output empty")
		return s, docflow.Failf("Validation failed: output file is empty: %s", path)
	}

	if len(s.Errors) == 0 {
		s.Completed = true
	}
	docflow.ReportMetric(ctx, "output_size", float64(fi.Size()), "bytes")
	docflow.ReportEnd(ctx, true, filepath.Base(path))
	return s, nil
}
