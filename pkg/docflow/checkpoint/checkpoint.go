package checkpoint

import (
	"maps"
	"time"

	"github.com/goccy/go-json"

	"github.com/randalmurphal/docflow/pkg/docflow"
)

// Version is the current snapshot format version.
// Increment when making breaking changes to snapshot structure.
const Version = 1

// Snapshot holds the content-bearing fields of a workflow state.
// Branch results are never part of a snapshot.
type Snapshot struct {
	Version int `json:"version"`

	RawContent        string         `json:"raw_content"`
	StructuredContent map[string]any `json:"structured_content,omitempty"`
	EnhancedContent   map[string]any `json:"enhanced_content,omitempty"`
	InputPath         string         `json:"input_path,omitempty"`
	InputFormat       string         `json:"input_format,omitempty"`
	SourceCount       int            `json:"source_count,omitempty"`

	SavedAt time.Time `json:"saved_at"`
}

// FromState extracts a snapshot from s.
func FromState(s docflow.State) *Snapshot {
	return &Snapshot{
		Version:           Version,
		RawContent:        s.RawContent,
		StructuredContent: maps.Clone(s.StructuredContent),
		EnhancedContent:   maps.Clone(s.EnhancedContent),
		InputPath:         s.InputPath,
		InputFormat:       s.InputFormat,
		SourceCount:       s.Metadata.SourceCount,
		SavedAt:           time.Now().UTC(),
	}
}

// Apply injects the snapshot's content into s and marks it as reused.
// A missing source count defaults to one.
func (c *Snapshot) Apply(s docflow.State) docflow.State {
	s.RawContent = c.RawContent
	s.StructuredContent = maps.Clone(c.StructuredContent)
	s.EnhancedContent = maps.Clone(c.EnhancedContent)
	s.InputPath = c.InputPath
	s.InputFormat = c.InputFormat
	s.Metadata.SourceCount = c.SourceCount
	if s.Metadata.SourceCount == 0 {
		s.Metadata.SourceCount = 1
	}
	s.Metadata.ReusedContent = true
	return s
}

// Reusable reports whether the snapshot carries content worth injecting.
func (c *Snapshot) Reusable() bool {
	return c != nil && c.RawContent != ""
}

// Marshal serializes a snapshot to JSON.
func (c *Snapshot) Marshal() ([]byte, error) {
	return json.Marshal(c)
}

// Unmarshal deserializes a snapshot from JSON.
func Unmarshal(data []byte) (*Snapshot, error) {
	var c Snapshot
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, err
	}
	return &c, nil
}
