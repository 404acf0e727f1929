package sources

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/randalmurphal/docflow/pkg/docflow"
)

const excelUnsupported = "Excel files are not supported. Please upload PDF, DOCX, PPTX, Markdown, or text files."

// Validate checks that there is something to prepare and decides whether
// checkpointed content can be reused.
func (p *Preparer) Validate(ctx docflow.Context, s docflow.State) (docflow.State, error) {
	if !s.OutputType.RequiresExtraction() {
		s.Metadata.Skip(docflow.SkipNotRequired)
		return s, nil
	}

	if s.Metadata.ReusedContent && s.RawContent != "" && reusable(s) {
		docflow.ReportStart(ctx, s)
		ctx.Logger().Info("reusing extracted content from checkpoint")
		s.Metadata.Skip(docflow.SkipReusedContent)
		docflow.ReportEnd(ctx, true, "Reused checkpoint")
		return s, nil
	}

	docflow.ReportStart(ctx, s)
	n := len(s.Request.Sources)
	if n == 0 {
		if s.OutputType == docflow.OutputImageGenerate && strings.TrimSpace(s.Request.Prompt) != "" {
			s.Metadata.Skip(docflow.SkipDirectPrompt)
			docflow.ReportEnd(ctx, true, "Direct prompt")
			return s, nil
		}
		docflow.ReportEnd(ctx, false, "No sources")
		return s, docflow.FailSkip(docflow.SkipNoSources, "No sources provided")
	}

	docflow.ReportMetric(ctx, "sources", float64(n), "count")
	docflow.ReportEnd(ctx, true, fmt.Sprintf("%d sources", n))
	return s, nil
}

// reusable reports whether checkpointed content can stand in for extraction.
// Documents also need their merged input file to still exist.
func reusable(s docflow.State) bool {
	if !s.OutputType.IsDocument() {
		return true
	}
	if s.InputPath == "" {
		return false
	}
	_, err := os.Stat(s.InputPath)
	return err == nil
}

// Resolve turns raw source items into descriptors.
func (p *Preparer) Resolve(ctx docflow.Context, s docflow.State) (docflow.State, error) {
	docflow.ReportStart(ctx, s)

	var resolved []docflow.SourceDescriptor
	for _, item := range s.Request.Sources {
		switch item.Type {
		case docflow.SourceFile:
			if item.FileID == "" {
				continue
			}
			if s.Metadata.ResolvedFileID == "" {
				s.Metadata.ResolvedFileID = item.FileID
			}
			path, err := p.uploadPath(ctx, item.FileID)
			if err != nil {
				ctx.Logger().Error("source resolution failed", "file_id", item.FileID, "error", err)
				docflow.ReportEnd(ctx, false, err.Error())
				return s, docflow.FailSkip(docflow.SkipResolutionFailed, "Source resolution failed: "+err.Error())
			}
			if path == "" {
				ctx.Logger().Warn("file not found", "file_id", item.FileID)
				continue
			}
			switch strings.ToLower(filepath.Ext(path)) {
			case ".xlsx", ".xls":
				docflow.ReportEnd(ctx, false, "Excel not supported")
				return s, docflow.FailSkip(docflow.SkipUnsupportedFormat, excelUnsupported)
			}
			resolved = append(resolved, docflow.SourceDescriptor{Kind: docflow.SourceFile, FileID: item.FileID, Path: path})

		case docflow.SourceURL:
			if item.URL == "" {
				continue
			}
			resolved = append(resolved, docflow.SourceDescriptor{Kind: docflow.SourceURL, URL: item.URL, Parser: item.Parser})

		case docflow.SourceText:
			if text := strings.TrimSpace(item.Content); text != "" {
				resolved = append(resolved, docflow.SourceDescriptor{Kind: docflow.SourceText, Text: text})
			}
		}
	}

	s.ResolvedSources = resolved
	docflow.ReportMetric(ctx, "resolved_sources", float64(len(resolved)), "count")
	docflow.ReportEnd(ctx, true, fmt.Sprintf("%d sources", len(resolved)))
	return s, nil
}

// uploadPath resolves fileID through the upload store. A missing upload
// yields an empty path and no error.
func (p *Preparer) uploadPath(ctx docflow.Context, fileID string) (string, error) {
	if p.Uploads == nil {
		return "", errors.New("upload store not configured")
	}
	path, err := p.Uploads.Path(ctx, fileID)
	if errors.Is(err, ErrNotFound) {
		if g, ok := p.Uploads.(globber); ok {
			return g.Glob(fileID), nil
		}
		return "", nil
	}
	return path, err
}

// Extract produces one content block per resolved source.
func (p *Preparer) Extract(ctx docflow.Context, s docflow.State) (docflow.State, error) {
	docflow.ReportStart(ctx, s)

	blocks := make([]docflow.ContentBlock, 0, len(s.ResolvedSources))
	for _, src := range s.ResolvedSources {
		block, err := p.extract(ctx, src)
		if err != nil {
			ctx.Logger().Error("content extraction failed", "kind", string(src.Kind), "error", err)
			docflow.ReportEnd(ctx, false, err.Error())
			return s, docflow.FailSkip(docflow.SkipExtractionFailed, "Content extraction failed: "+err.Error())
		}
		if block.Content == "" {
			continue
		}
		blocks = append(blocks, block)
	}

	if len(blocks) == 0 {
		docflow.ReportEnd(ctx, false, "No valid sources")
		return s, docflow.FailSkip(docflow.SkipNoValidSources, "No valid sources provided")
	}

	s.ContentBlocks = blocks
	s.Metadata.SourceCount = len(blocks)
	docflow.ReportMetric(ctx, "parsed_sources", float64(len(blocks)), "count")
	docflow.ReportEnd(ctx, true, fmt.Sprintf("%d sources", len(blocks)))
	return s, nil
}

func (p *Preparer) extract(ctx docflow.Context, src docflow.SourceDescriptor) (docflow.ContentBlock, error) {
	switch src.Kind {
	case docflow.SourceFile:
		var (
			content string
			meta    map[string]any
			err     error
		)
		if IsImage(src.Path) {
			if p.Images == nil {
				return docflow.ContentBlock{}, errors.New("image extraction not configured")
			}
			content, meta, err = p.Images.Extract(ctx, src.Path)
		} else {
			if p.Documents == nil {
				return docflow.ContentBlock{}, errors.New("document parser not configured")
			}
			content, meta, err = p.Documents.Parse(ctx, src.Path, DetectFormat(src.Path))
		}
		if err != nil {
			return docflow.ContentBlock{}, err
		}
		return docflow.ContentBlock{Title: title(meta, filepath.Base(src.Path)), Source: src.Path, Content: content}, nil

	case docflow.SourceURL:
		if p.Web == nil {
			return docflow.ContentBlock{}, errors.New("web parser not configured")
		}
		content, meta, err := p.Web.Parse(ctx, src.URL)
		if err != nil {
			return docflow.ContentBlock{}, err
		}
		return docflow.ContentBlock{Title: title(meta, src.URL), Source: src.URL, Content: content}, nil

	case docflow.SourceText:
		return docflow.ContentBlock{Title: "Copied Text", Source: "text", Content: strings.TrimSpace(src.Text)}, nil
	}
	return docflow.ContentBlock{}, nil
}

func title(meta map[string]any, fallback string) string {
	if t, ok := meta["title"].(string); ok && t != "" {
		return t
	}
	return fallback
}

// Merge joins the content blocks into RawContent. Document outputs get a
// sectioned markdown file as their input.
func (p *Preparer) Merge(ctx docflow.Context, s docflow.State) (docflow.State, error) {
	docflow.ReportStart(ctx, s)
	if len(s.ContentBlocks) == 0 {
		docflow.ReportEnd(ctx, false, "No content to merge")
		return s, nil
	}

	var merged string
	if s.OutputType.IsDocument() {
		merged = MergeMarkdown(s.ContentBlocks)
		path, err := writeTempMarkdown(p.TempDir, merged)
		if err != nil {
			docflow.ReportEnd(ctx, false, err.Error())
			return s, fmt.Errorf("write merged input: %w", err)
		}
		ctx.Logger().Info("created temp input file", "path", path)
		s.InputPath = path
	} else {
		merged = joinContent(s.ContentBlocks)
	}

	s.RawContent = merged
	if s.Metadata.ResolvedFileID != "" {
		s.Metadata.FileID = s.Metadata.ResolvedFileID
		s.Metadata.ResolvedFileID = ""
	}
	s.ContentBlocks = nil
	s.ResolvedSources = nil

	docflow.ReportMetric(ctx, "content_length", float64(len(merged)), "chars")
	docflow.ReportEnd(ctx, true, fmt.Sprintf("%d chars", len(merged)))
	return s, nil
}
