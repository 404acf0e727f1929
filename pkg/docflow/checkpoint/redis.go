package checkpoint

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore persists checkpoints in Redis with a per-key TTL.
//
// Key layout:
//
//	<prefix>cp:<session_id>:<namespace>  => JSON-encoded Snapshot
type RedisStore struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
	closed atomic.Bool
}

var _ Store = (*RedisStore)(nil)

// NewRedisStore creates a RedisStore. prefix is optional (default "docflow:").
// A positive ttl is set on every key.
func NewRedisStore(client *redis.Client, prefix string, ttl time.Duration) *RedisStore {
	if prefix == "" {
		prefix = "docflow:"
	}
	return &RedisStore{client: client, prefix: prefix, ttl: ttl}
}

// OpenRedisStore parses a redis:// URL and returns a store that owns its client.
func OpenRedisStore(ctx context.Context, url string, ttl time.Duration) (*RedisStore, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return NewRedisStore(client, "", ttl), nil
}

func (r *RedisStore) key(sessionID, ns string) string {
	return r.prefix + "cp:" + sessionID + ":" + ns
}

func (r *RedisStore) pattern(sessionID string) string {
	return r.prefix + "cp:" + sessionID + ":*"
}

// Get implements Store.
func (r *RedisStore) Get(ctx context.Context, sessionID, ns string) (*Snapshot, error) {
	if r.closed.Load() {
		return nil, ErrStoreClosed
	}

	data, err := r.client.Get(ctx, r.key(sessionID, ns)).Bytes()
	if errors.Is(err, redis.Nil) {
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
func (r *RedisStore) Put(ctx context.Context, sessionID, ns string, snap *Snapshot) error {
	if r.closed.Load() {
		return ErrStoreClosed
	}

	data, err := snap.Marshal()
	if err != nil {
		return fmt.Errorf("encode checkpoint: %w", err)
	}
	// A zero expiration keeps the key forever.
	if err := r.client.Set(ctx, r.key(sessionID, ns), data, r.ttl).Err(); err != nil {
		return fmt.Errorf("save checkpoint: %w", err)
	}
	return nil
}

// Has implements Store.
func (r *RedisStore) Has(ctx context.Context, sessionID string) (bool, error) {
	if r.closed.Load() {
		return false, ErrStoreClosed
	}

	iter := r.client.Scan(ctx, 0, r.pattern(sessionID), 100).Iterator()
	found := iter.Next(ctx)
	if err := iter.Err(); err != nil {
		return false, fmt.Errorf("scan checkpoints: %w", err)
	}
	return found, nil
}

// Sweep implements Store. Keys normally expire through their TTL; Sweep
// removes the ones older than maxAge by their saved time.
func (r *RedisStore) Sweep(ctx context.Context, maxAge time.Duration) (int, error) {
	if r.closed.Load() {
		return 0, ErrStoreClosed
	}

	cutoff := time.Now().Add(-maxAge)
	removed := 0
	iter := r.client.Scan(ctx, 0, r.prefix+"cp:*", 100).Iterator()
	for iter.Next(ctx) {
		key := iter.Val()
		data, err := r.client.Get(ctx, key).Bytes()
		if errors.Is(err, redis.Nil) {
			continue
		}
		if err != nil {
			return removed, fmt.Errorf("load checkpoint: %w", err)
		}
		snap, err := Unmarshal(data)
		if err == nil && !snap.SavedAt.Before(cutoff) {
			continue
		}
		n, err := r.client.Del(ctx, key).Result()
		if err != nil {
			return removed, fmt.Errorf("sweep checkpoints: %w", err)
		}
		removed += int(n)
	}
	if err := iter.Err(); err != nil {
		return removed, fmt.Errorf("scan checkpoints: %w", err)
	}
	return removed, nil
}

// Close implements Store.
func (r *RedisStore) Close() error {
	if r.closed.Swap(true) {
		return nil
	}
	return r.client.Close()
}
