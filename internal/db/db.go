package db

import (
	"context"
	"time"
)

// Store is the main database facade combining all sub-interfaces.
//
//nolint:interfacebloat // facade; consumers use narrow sub-interfaces (ISP)
type Store interface {
	Pinger
	HashStore
	KVStore
	StreamStore
	Close()
	WaitForReady(ctx context.Context, timeout time.Duration) error
}

// Pinger checks database connectivity.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HashStore provides hash-based key-value operations.
type HashStore interface {
	HSet(ctx context.Context, key string, fields map[string]string) error
	HGetAll(ctx context.Context, key string) (map[string]string, error)
	Scan(ctx context.Context, pattern string) ([]string, error)
}

// KVStore provides simple key-value operations.
type KVStore interface {
	Get(ctx context.Context, key string) ([]byte, error)
	// SetNX stores value only if key does not exist. Reports whether it was stored.
	SetNX(ctx context.Context, key, value string, ttl time.Duration) (bool, error)
	// DelIfEqual deletes key only while it still holds value.
	DelIfEqual(ctx context.Context, key, value string) (bool, error)
}

// StreamEntry is one entry of an append-only stream.
type StreamEntry struct {
	ID     string
	Fields map[string]string
}

// StreamStore provides append-only stream operations.
type StreamStore interface {
	// XAdd appends an entry and returns its server-assigned ID.
	XAdd(ctx context.Context, key string, fields map[string]string) (string, error)
	// XRange returns entries with IDs in [start, end]; count <= 0 means no limit.
	XRange(ctx context.Context, key, start, end string, count int64) ([]StreamEntry, error)
}
