package docflow

import (
	"fmt"
	"strings"
)

// OutputType is the artifact a caller asked for.
type OutputType string

// Supported output types.
const (
	OutputArticlePDF       OutputType = "article_pdf"
	OutputArticleMarkdown  OutputType = "article_markdown"
	OutputArticleHTML      OutputType = "article_html"
	OutputSlideDeckPDF     OutputType = "slide_deck_pdf"
	OutputPresentationPPTX OutputType = "presentation_pptx"
	OutputPodcast          OutputType = "podcast"
	OutputMindMap          OutputType = "mindmap"
	OutputImageGenerate    OutputType = "image_generate"
	OutputImageEdit        OutputType = "image_edit"
)

// Branch is one of the five fixed output chains.
type Branch string

// Branch tags. These strings are stable and consumed by callers.
const (
	BranchDocument      Branch = "document"
	BranchPodcast       Branch = "podcast"
	BranchMindMap       Branch = "mindmap"
	BranchImageGenerate Branch = "image_generate"
	BranchImageEdit     Branch = "image_edit"
)

// Branch returns the chain that produces t. Unknown types produce documents.
func (t OutputType) Branch() Branch {
	switch t {
	case OutputPodcast:
		return BranchPodcast
	case OutputMindMap:
		return BranchMindMap
	case OutputImageGenerate:
		return BranchImageGenerate
	case OutputImageEdit:
		return BranchImageEdit
	default:
		return BranchDocument
	}
}

// IsDocument reports whether t is rendered by the document branch.
func (t OutputType) IsDocument() bool {
	return t.Branch() == BranchDocument
}

// RequiresExtraction reports whether the shared source chain has work to do for t.
func (t OutputType) RequiresExtraction() bool {
	return t != OutputImageEdit
}

// SkipReason explains why shared source processing was bypassed.
type SkipReason string

// Skip reasons. These strings are stable and consumed by callers.
const (
	SkipNotRequired       SkipReason = "not_required"
	SkipReusedContent     SkipReason = "reused_content"
	SkipDirectPrompt      SkipReason = "direct_prompt"
	SkipNoSources         SkipReason = "no_sources"
	SkipNoValidSources    SkipReason = "no_valid_sources"
	SkipExtractionFailed  SkipReason = "extraction_failed"
	SkipResolutionFailed  SkipReason = "resolution_failed"
	SkipUnsupportedFormat SkipReason = "unsupported_format"
)

// Describe returns the reason in human-readable form, e.g. "reused content".
func (r SkipReason) Describe() string {
	return strings.ReplaceAll(string(r), "_", " ")
}

// SourceType tags a raw source item.
type SourceType string

// Source kinds.
const (
	SourceFile SourceType = "file"
	SourceURL  SourceType = "url"
	SourceText SourceType = "text"
)

// SourceItem is one raw source as submitted by a caller.
type SourceItem struct {
	Type    SourceType `json:"type"`
	FileID  string     `json:"file_id,omitempty"`
	URL     string     `json:"url,omitempty"`
	Content string     `json:"content,omitempty"`
	// Parser is an optional parser hint for URL sources.
	Parser string `json:"parser,omitempty"`
}

// SourceDescriptor is a resolved source. Exactly one variant payload is set:
// Path for files, URL for URLs, Text for inline text.
type SourceDescriptor struct {
	Kind   SourceType `json:"kind"`
	FileID string     `json:"file_id,omitempty"`
	Path   string     `json:"path,omitempty"`
	URL    string     `json:"url,omitempty"`
	Parser string     `json:"parser,omitempty"`
	Text   string     `json:"text,omitempty"`
}

// Validate checks that exactly the payload for Kind is populated.
func (d SourceDescriptor) Validate() error {
	set := 0
	for _, v := range []string{d.Path, d.URL, d.Text} {
		if v != "" {
			set++
		}
	}
	if set != 1 {
		return fmt.Errorf("source descriptor %q: want exactly one payload, have %d", d.Kind, set)
	}
	switch d.Kind {
	case SourceFile:
		if d.Path == "" {
			return fmt.Errorf("file source %q has no path", d.FileID)
		}
	case SourceURL:
		if d.URL == "" {
			return fmt.Errorf("url source has no url")
		}
	case SourceText:
		if d.Text == "" {
			return fmt.Errorf("text source has no content")
		}
	default:
		return fmt.Errorf("unknown source kind %q", d.Kind)
	}
	return nil
}

// ContentBlock is the extracted content of one source.
type ContentBlock struct {
	Title   string `json:"title"`
	Source  string `json:"source"`
	Content string `json:"content"`
}

// Speaker is a podcast voice.
type Speaker struct {
	Name  string `json:"name"`
	Voice string `json:"voice"`
	Role  string `json:"role"`
}

// Region is a normalized bounding box; all values lie in [0,1].
type Region struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// PodcastOptions configures the podcast branch.
type PodcastOptions struct {
	Speakers        []Speaker `json:"speakers,omitempty"`
	Style           string    `json:"style,omitempty"`
	DurationMinutes int       `json:"duration_minutes,omitempty"`
}

// MindMapOptions configures the mind map branch.
type MindMapOptions struct {
	Mode string `json:"mode,omitempty"`
}

// ImageOptions configures the image branches.
type ImageOptions struct {
	Style        string  `json:"style,omitempty"`
	OutputFormat string  `json:"output_format,omitempty"`
	SourceImage  []byte  `json:"source_image,omitempty"`
	EditMode     string  `json:"edit_mode,omitempty"`
	Region       *Region `json:"region,omitempty"`
}

// Request carries the job parameters of one invocation.
type Request struct {
	Sources     []SourceItem   `json:"sources"`
	Prompt      string         `json:"prompt,omitempty"`
	Provider    string         `json:"provider,omitempty"`
	Model       string         `json:"model,omitempty"`
	ImageModel  string         `json:"image_model,omitempty"`
	Preferences map[string]any `json:"preferences,omitempty"`

	Podcast PodcastOptions `json:"podcast,omitempty"`
	MindMap MindMapOptions `json:"mindmap,omitempty"`
	Image   ImageOptions   `json:"image,omitempty"`
}

// Metadata holds workflow bookkeeping that is not branch output.
type Metadata struct {
	SessionID string `json:"session_id,omitempty"`
	// ReusedContent is set when content was injected from a checkpoint.
	ReusedContent bool `json:"reused_content,omitempty"`

	SkipSourceProcessing bool       `json:"skip_source_processing,omitempty"`
	SkipReason           SkipReason `json:"skip_source_reason,omitempty"`

	RetryCount        int    `json:"_retry_count,omitempty"`
	SourceCount       int    `json:"source_count,omitempty"`
	FileID            string `json:"file_id,omitempty"`
	ResolvedFileID    string `json:"-"`
	ImagePromptSource string `json:"image_prompt_source,omitempty"`

	// Extra is a free-form bag for node-specific annotations.
	Extra map[string]any `json:"extra,omitempty"`
}

// Skip marks shared source processing as bypassed. The first reason wins.
func (m *Metadata) Skip(reason SkipReason) {
	if m.SkipSourceProcessing {
		return
	}
	m.SkipSourceProcessing = true
	m.SkipReason = reason
}

// Set stores a value in Extra.
func (m *Metadata) Set(key string, value any) {
	if m.Extra == nil {
		m.Extra = make(map[string]any)
	}
	m.Extra[key] = value
}

// Get returns a value from Extra.
func (m Metadata) Get(key string) (any, bool) {
	v, ok := m.Extra[key]
	return v, ok
}

// Payload is the branch-specific result carried by a State.
type Payload interface {
	Branch() Branch
}

// DocumentResult is the payload of the document branch.
type DocumentResult struct {
	Format     string   `json:"format"`
	OutputPath string   `json:"output_path,omitempty"`
	Images     []Image  `json:"images,omitempty"`
	ImagePaths []string `json:"image_paths,omitempty"`
}

// Image is a generated illustration for a document.
type Image struct {
	Marker      string `json:"marker"`
	Prompt      string `json:"prompt"`
	Data        []byte `json:"-"`
	Format      string `json:"format"`
	Description string `json:"description,omitempty"`
	Path        string `json:"path,omitempty"`
}

// Branch implements Payload.
func (*DocumentResult) Branch() Branch { return BranchDocument }

// DialogueLine is one turn in a podcast script.
type DialogueLine struct {
	Speaker string `json:"speaker"`
	Text    string `json:"text"`
}

// PodcastResult is the payload of the podcast branch.
type PodcastResult struct {
	Title           string         `json:"title"`
	Description     string         `json:"description,omitempty"`
	Script          map[string]any `json:"script,omitempty"`
	Dialogue        []DialogueLine `json:"dialogue,omitempty"`
	Speakers        []Speaker      `json:"speakers,omitempty"`
	Audio           []byte         `json:"-"`
	AudioBase64     string         `json:"audio_base64,omitempty"`
	DurationSeconds float64        `json:"duration_seconds,omitempty"`
}

// Branch implements Payload.
func (*PodcastResult) Branch() Branch { return BranchPodcast }

// MindMapNode is a node of a mind map tree. Children is omitted when empty.
type MindMapNode struct {
	Label    string        `json:"label"`
	Children []MindMapNode `json:"children,omitempty"`
}

// MindMapTree is the normalized mind map.
type MindMapTree struct {
	Title       string      `json:"title"`
	Summary     string      `json:"summary"`
	Mode        string      `json:"mode"`
	SourceCount int         `json:"source_count"`
	Nodes       MindMapNode `json:"nodes"`
}

// MindMapResult is the payload of the mind map branch.
type MindMapResult struct {
	Tree *MindMapTree `json:"tree,omitempty"`
}

// Branch implements Payload.
func (*MindMapResult) Branch() Branch { return BranchMindMap }

// ImageResult is the payload of both image branches.
type ImageResult struct {
	Edit       bool   `json:"edit"`
	Data       []byte `json:"-"`
	Format     string `json:"format"`
	PromptUsed string `json:"prompt_used,omitempty"`
	Style      string `json:"style,omitempty"`
}

// Branch implements Payload.
func (r *ImageResult) Branch() Branch {
	if r.Edit {
		return BranchImageEdit
	}
	return BranchImageGenerate
}

// State is the record threaded through every node.
//
// The core fields are shared by every branch. Branch output lives in Payload and
// its concrete type matches OutputType.Branch(). Nodes must tolerate zero values.
type State struct {
	OutputType OutputType `json:"output_type"`
	Request    Request    `json:"request_data"`

	ResolvedSources []SourceDescriptor `json:"resolved_sources,omitempty"`
	ContentBlocks   []ContentBlock     `json:"content_blocks,omitempty"`

	RawContent        string         `json:"raw_content,omitempty"`
	SummaryContent    string         `json:"summary_content,omitempty"`
	InputPath         string         `json:"input_path,omitempty"`
	InputFormat       string         `json:"input_format,omitempty"`
	StructuredContent map[string]any `json:"structured_content,omitempty"`
	EnhancedContent   map[string]any `json:"enhanced_content,omitempty"`

	Payload Payload `json:"-"`

	Errors    []string `json:"errors"`
	Metadata  Metadata `json:"metadata"`
	Completed bool     `json:"completed"`
}

// NewState returns an initial state for the given output type and request.
func NewState(outputType OutputType, req Request) State {
	return State{
		OutputType: outputType,
		Request:    req,
		Errors:     []string{},
	}
}

// AddError appends msg to Errors.
func (s *State) AddError(msg string) {
	s.Errors = append(s.Errors, msg)
}

// LastError returns the most recent error, or "".
func (s State) LastError() string {
	if len(s.Errors) == 0 {
		return ""
	}
	return s.Errors[len(s.Errors)-1]
}

// Failed reports whether any error has been recorded.
func (s State) Failed() bool {
	return len(s.Errors) > 0
}

// Document returns the document payload, creating it if needed.
func (s *State) Document() *DocumentResult {
	if r, ok := s.Payload.(*DocumentResult); ok {
		return r
	}
	r := &DocumentResult{}
	s.Payload = r
	return r
}

// Podcast returns the podcast payload, creating it if needed.
func (s *State) Podcast() *PodcastResult {
	if r, ok := s.Payload.(*PodcastResult); ok {
		return r
	}
	r := &PodcastResult{}
	s.Payload = r
	return r
}

// MindMap returns the mind map payload, creating it if needed.
func (s *State) MindMap() *MindMapResult {
	if r, ok := s.Payload.(*MindMapResult); ok {
		return r
	}
	r := &MindMapResult{}
	s.Payload = r
	return r
}

// Image returns the image payload, creating it if needed.
func (s *State) Image() *ImageResult {
	if r, ok := s.Payload.(*ImageResult); ok {
		return r
	}
	r := &ImageResult{Edit: s.OutputType == OutputImageEdit}
	s.Payload = r
	return r
}
