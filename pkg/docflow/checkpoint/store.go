// Package checkpoint persists extracted content per session so that later
// requests over the same sources can skip source preparation.
package checkpoint

import (
	"context"
	"errors"
	"time"
)

// Store persists snapshots keyed by session id and namespace.
// Implementations must be safe for concurrent use. Writes to one key are not
// coordinated: the last Put wins.
type Store interface {
	// Get retrieves a snapshot.
	// Returns ErrNotFound if no snapshot exists for (sessionID, ns).
	Get(ctx context.Context, sessionID, ns string) (*Snapshot, error)

	// Put stores a snapshot, overwriting any existing one for (sessionID, ns).
	Put(ctx context.Context, sessionID, ns string, snap *Snapshot) error

	// Has reports whether any namespace of sessionID holds a snapshot.
	Has(ctx context.Context, sessionID string) (bool, error)

	// Sweep removes snapshots saved more than maxAge ago and returns how many
	// were removed.
	Sweep(ctx context.Context, maxAge time.Duration) (int, error)

	// Close releases any resources (connections, files).
	Close() error
}

// Sentinel errors for checkpoint operations.
var (
	// ErrNotFound indicates a checkpoint doesn't exist.
	ErrNotFound = errors.New("checkpoint not found")

	// ErrStoreClosed indicates the store has been closed.
	ErrStoreClosed = errors.New("checkpoint store closed")
)
