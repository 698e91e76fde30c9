// Package db declares the key-value store ports; redis implements them over rueidis.
package db

import (
	"context"
	"time"
)

// Store is the main database facade combining all sub-interfaces.
type Store interface {
	Pinger
	HashStore
	KVStore
	IndexStore
	Close()
	WaitForReady(ctx context.Context, timeout time.Duration) error
}

// Pinger checks database connectivity.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HashStore reads hash records.
type HashStore interface {
	HGetAll(ctx context.Context, key string) (map[string]string, error)
	HGetAllMulti(ctx context.Context, keys []string) ([]map[string]string, error)
}

// KVStore provides counters and expiring values.
type KVStore interface {
	Get(ctx context.Context, key string) ([]byte, error)
	SetWithTTL(ctx context.Context, key string, value []byte, ttl time.Duration) error
	IncrBy(ctx context.Context, key string, val int64) error
	Expire(ctx context.Context, key string, ttl time.Duration, nx bool) error
}

// IndexStore keeps hash records and a newest-first list of their IDs in step.
// Both writes are applied in one MULTI/EXEC transaction.
type IndexStore interface {
	// PutIndexed replaces the hash at key and moves id to the head of the index list.
	PutIndexed(ctx context.Context, key string, fields map[string]string, index, id string) error
	// DelIndexed deletes the hash at key and drops id from the index list.
	// It reports whether the hash existed.
	DelIndexed(ctx context.Context, key, index, id string) (bool, error)
	LRange(ctx context.Context, key string, start, stop int64) ([]string, error)
}
