// Package sources implements the source-preparation chain shared by every
// output: validate, resolve, extract and merge.
//
// Each step is a docflow.NodeFunc method on Preparer. A step that cannot
// continue returns a docflow.Failure with a skip reason so the engine passes
// the rest of the chain through.
package sources

import (
	"context"
	"errors"
)

// ErrNotFound is returned by an UploadStore for an unknown file id.
var ErrNotFound = errors.New("upload not found")

// UploadStore maps uploaded file ids to local paths.
type UploadStore interface {
	Path(ctx context.Context, fileID string) (string, error)
}

// DocumentParser extracts text and metadata from a local file.
type DocumentParser interface {
	Parse(ctx context.Context, path, format string) (string, map[string]any, error)
}

// WebParser extracts text and metadata from a URL.
type WebParser interface {
	Parse(ctx context.Context, url string) (string, map[string]any, error)
}

// ImageExtractor describes an image file as text.
type ImageExtractor interface {
	Extract(ctx context.Context, path string) (string, map[string]any, error)
}

// Preparer holds the collaborators of the source chain.
type Preparer struct {
	Uploads   UploadStore
	Documents DocumentParser
	Web       WebParser
	Images    ImageExtractor
	// TempDir receives merged markdown for document outputs. Empty means os.TempDir().
	TempDir string
}
