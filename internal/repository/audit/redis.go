// Package audit stores the append-only audit trail of migration runs.
package audit

import (
	"context"
	"fmt"

	"github.com/kailas-cloud/vecshift/internal/db"
	domaudit "github.com/kailas-cloud/vecshift/internal/domain/audit"
)

// DefaultStreamPrefix prefixes the per-run audit stream key.
const DefaultStreamPrefix = "vecshift:audit:"

// streamStore is the consumer interface for the Redis audit log (ISP).
type streamStore interface {
	XAdd(ctx context.Context, key string, fields map[string]string) (string, error)
	XRange(ctx context.Context, key, start, end string, count int64) ([]db.StreamEntry, error)
}

// RedisRepo keeps one stream per run. Streams are only ever appended to.
type RedisRepo struct {
	store  streamStore
	prefix string
}

// NewRedis creates a stream-backed audit repository.
func NewRedis(s streamStore) *RedisRepo {
	return &RedisRepo{store: s, prefix: DefaultStreamPrefix}
}

// WithPrefix overrides the stream key prefix.
func (r *RedisRepo) WithPrefix(prefix string) *RedisRepo {
	if prefix != "" {
		r.prefix = prefix
	}
	return r
}

// Append writes e and returns the stream entry ID.
func (r *RedisRepo) Append(ctx context.Context, e domaudit.Entry) (string, error) {
	if err := e.Validate(); err != nil {
		return "", err
	}
	fields, err := entryToFields(e)
	if err != nil {
		return "", err
	}
	id, err := r.store.XAdd(ctx, r.key(e.RunID), fields)
	if err != nil {
		return "", fmt.Errorf("xadd audit %s: %w", e.RunID, err)
	}
	return id, nil
}

// List returns the run's entries in append order; limit <= 0 returns all.
func (r *RedisRepo) List(ctx context.Context, runID string, limit int) ([]domaudit.Entry, error) {
	raw, err := r.store.XRange(ctx, r.key(runID), "-", "+", int64(limit))
	if err != nil {
		return nil, fmt.Errorf("xrange audit %s: %w", runID, err)
	}
	out := make([]domaudit.Entry, 0, len(raw))
	for _, se := range raw {
		e, err := entryFromFields(se.ID, se.Fields)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, nil
}

func (r *RedisRepo) key(runID string) string {
	return r.prefix + runID
}
