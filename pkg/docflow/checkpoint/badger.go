package checkpoint

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/dgraph-io/badger/v3"
)

const badgerPrefix = "cp:"

// BadgerStore persists checkpoints in an embedded Badger database.
// Entries carry a native TTL so that expired snapshots vanish without a sweep.
//
// Key layout:
//
//	cp:<session_id>:<namespace>  => JSON-encoded Snapshot
type BadgerStore struct {
	db     *badger.DB
	ttl    time.Duration
	mu     sync.RWMutex
	closed bool
}

var _ Store = (*BadgerStore)(nil)

// NewBadgerStore opens a Badger store in dir. An empty dir opens an
// in-memory database. A positive ttl is attached to every entry.
func NewBadgerStore(dir string, ttl time.Duration) (*BadgerStore, error) {
	opts := badger.DefaultOptions(dir).WithLoggingLevel(badger.ERROR)
	if dir == "" {
		opts = opts.WithInMemory(true)
	}
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger: %w", err)
	}
	return &BadgerStore{db: db, ttl: ttl}, nil
}

func badgerKey(sessionID, ns string) []byte {
	return []byte(badgerPrefix + sessionID + ":" + ns)
}

// Get implements Store.
func (b *BadgerStore) Get(_ context.Context, sessionID, ns string) (*Snapshot, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return nil, ErrStoreClosed
	}

	var data []byte
	err := b.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(badgerKey(sessionID, ns))
		if err != nil {
			return err
		}
		data, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load checkpoint: %w", err)
	}

	snap, err := Unmarshal(data)
	if err != nil {
		return nil, fmt.Errorf("decode checkpoint: %w", err)
	}
	return snap, nil
}

// Put implements Store.
func (b *BadgerStore) Put(_ context.Context, sessionID, ns string, snap *Snapshot) error {
	data, err := snap.Marshal()
	if err != nil {
		return fmt.Errorf("encode checkpoint: %w", err)
	}

	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return ErrStoreClosed
	}

	err = b.db.Update(func(txn *badger.Txn) error {
		entry := badger.NewEntry(badgerKey(sessionID, ns), data)
		if b.ttl > 0 {
			entry = entry.WithTTL(b.ttl)
		}
		return txn.SetEntry(entry)
	})
	if err != nil {
		return fmt.Errorf("save checkpoint: %w", err)
	}
	return nil
}

// Has implements Store.
func (b *BadgerStore) Has(_ context.Context, sessionID string) (bool, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return false, ErrStoreClosed
	}

	found := false
	err := b.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()

		prefix := []byte(badgerPrefix + sessionID + ":")
		it.Seek(prefix)
		found = it.ValidForPrefix(prefix)
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("scan checkpoints: %w", err)
	}
	return found, nil
}

// Sweep implements Store. Entries past their TTL are already invisible; Sweep
// removes the ones older than maxAge by their saved time.
func (b *BadgerStore) Sweep(_ context.Context, maxAge time.Duration) (int, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return 0, ErrStoreClosed
	}

	cutoff := time.Now().Add(-maxAge)
	var expired [][]byte
	err := b.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		prefix := []byte(badgerPrefix)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			item := it.Item()
			data, err := item.ValueCopy(nil)
			if err != nil {
				return err
			}
			snap, err := Unmarshal(data)
			if err != nil || snap.SavedAt.Before(cutoff) {
				expired = append(expired, item.KeyCopy(nil))
			}
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("scan checkpoints: %w", err)
	}

	err = b.db.Update(func(txn *badger.Txn) error {
		for _, key := range expired {
			if err := txn.Delete(key); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("sweep checkpoints: %w", err)
	}
	return len(expired), nil
}

// Close implements Store.
func (b *BadgerStore) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil
	}

	b.closed = true
	return b.db.Close()
}
