package sources

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/google/uuid"
)

// globber is implemented by stores that can locate files by id prefix.
type globber interface {
	Glob(fileID string) string
}

// DirUploadStore keeps uploads as "<id><ext>" files in one directory.
//
// Ids saved through this process are indexed. Other ids are found by the
// file name prefix, which covers uploads from earlier processes.
type DirUploadStore struct {
	Dir string

	mu    sync.RWMutex
	index map[string]string
}

// NewDirUploadStore creates the directory if needed.
func NewDirUploadStore(dir string) (*DirUploadStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create upload dir: %w", err)
	}
	return &DirUploadStore{Dir: dir, index: make(map[string]string)}, nil
}

// Save writes content under a fresh "f_<hex>" id keeping the extension of filename.
func (d *DirUploadStore) Save(filename string, content []byte) (string, error) {
	id := "f_" + strings.ReplaceAll(uuid.NewString(), "-", "")
	path := filepath.Join(d.Dir, id+filepath.Ext(filename))
	if err := os.WriteFile(path, content, 0o644); err != nil {
		return "", fmt.Errorf("save upload: %w", err)
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.index == nil {
		d.index = make(map[string]string)
	}
	d.index[id] = path
	return id, nil
}

// Path implements UploadStore.
func (d *DirUploadStore) Path(_ context.Context, fileID string) (string, error) {
	if strings.ContainsAny(fileID, `/\`) || strings.Contains(fileID, "..") {
		return "", fmt.Errorf("invalid file id %q", fileID)
	}
	d.mu.RLock()
	path, ok := d.index[fileID]
	d.mu.RUnlock()
	if !ok {
		return "", ErrNotFound
	}
	return path, nil
}

// Glob returns the first file in Dir whose name starts with fileID, or "".
func (d *DirUploadStore) Glob(fileID string) string {
	matches, err := filepath.Glob(filepath.Join(d.Dir, fileID+"*"))
	if err != nil || len(matches) == 0 {
		return ""
	}
	return matches[0]
}

var _ UploadStore = (*DirUploadStore)(nil)
