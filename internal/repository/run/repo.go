// Package run persists migration run records and the per-alias run lock.
package run

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/kailas-cloud/vecshift/internal/db"
	"github.com/kailas-cloud/vecshift/internal/domain/migration"
)

const (
	runPrefix  = "vecshift:run:"
	lockPrefix = "vecshift:lock:"

	// DefaultLockTTL bounds how long a crashed process can hold an alias.
	DefaultLockTTL = 48 * time.Hour
)

// store is the consumer interface for run records (ISP).
type store interface {
	HSet(ctx context.Context, key string, fields map[string]string) error
	HGetAll(ctx context.Context, key string) (map[string]string, error)
	Scan(ctx context.Context, pattern string) ([]string, error)
	Get(ctx context.Context, key string) ([]byte, error)
	SetNX(ctx context.Context, key, value string, ttl time.Duration) (bool, error)
	DelIfEqual(ctx context.Context, key, value string) (bool, error)
}

// Repo stores runs as Redis hashes so status survives restarts.
type Repo struct {
	store   store
	lockTTL time.Duration
}

// New creates a run repository.
func New(s store) *Repo {
	return &Repo{store: s, lockTTL: DefaultLockTTL}
}

// WithLockTTL overrides the alias lock expiry.
func (r *Repo) WithLockTTL(ttl time.Duration) *Repo {
	if ttl > 0 {
		r.lockTTL = ttl
	}
	return r
}

// Save writes the full run record.
func (r *Repo) Save(ctx context.Context, run *migration.Run) error {
	fields, err := runToHash(run)
	if err != nil {
		return err
	}
	if err := r.store.HSet(ctx, runKey(run.ID), fields); err != nil {
		return fmt.Errorf("hset run %s: %w", run.ID, err)
	}
	return nil
}

// Get loads a run by ID.
func (r *Repo) Get(ctx context.Context, id string) (*migration.Run, error) {
	m, err := r.store.HGetAll(ctx, runKey(id))
	if err != nil {
		return nil, fmt.Errorf("hgetall run %s: %w", id, err)
	}
	if len(m) == 0 {
		return nil, migration.ErrRunNotFound
	}
	return runFromHash(m)
}

// List returns the IDs of all stored runs, sorted.
func (r *Repo) List(ctx context.Context) ([]string, error) {
	keys, err := r.store.Scan(ctx, runPrefix+"*")
	if err != nil {
		return nil, fmt.Errorf("scan runs: %w", err)
	}
	ids := make([]string, 0, len(keys))
	for _, k := range keys {
		ids = append(ids, strings.TrimPrefix(k, runPrefix))
	}
	sort.Strings(ids)
	return ids, nil
}

// Lock claims alias for runID. It fails with ErrRunActive naming the holder
// when another run owns the alias.
func (r *Repo) Lock(ctx context.Context, alias, runID string) error {
	ok, err := r.store.SetNX(ctx, lockKey(alias), runID, r.lockTTL)
	if err != nil {
		return fmt.Errorf("lock alias %s: %w", alias, err)
	}
	if ok {
		return nil
	}
	holder, err := r.store.Get(ctx, lockKey(alias))
	if err != nil && !errors.Is(err, db.ErrKeyNotFound) {
		return fmt.Errorf("read lock holder %s: %w", alias, err)
	}
	return fmt.Errorf("%w: alias %s held by run %s", migration.ErrRunActive, alias, holder)
}

// Unlock releases alias if runID still holds it.
func (r *Repo) Unlock(ctx context.Context, alias, runID string) error {
	if _, err := r.store.DelIfEqual(ctx, lockKey(alias), runID); err != nil {
		return fmt.Errorf("unlock alias %s: %w", alias, err)
	}
	return nil
}

func runKey(id string) string     { return runPrefix + id }
func lockKey(alias string) string { return lockPrefix + alias }

func runToHash(run *migration.Run) (map[string]string, error) {
	data, err := json.Marshal(run)
	if err != nil {
		return nil, fmt.Errorf("marshal run %s: %w", run.ID, err)
	}
	return map[string]string{
		"record":     string(data),
		"state":      string(run.State),
		"updated_at": run.UpdatedAt.UTC().Format(time.RFC3339Nano),
	}, nil
}

func runFromHash(m map[string]string) (*migration.Run, error) {
	raw, ok := m["record"]
	if !ok {
		return nil, fmt.Errorf("run hash missing record")
	}
	var out migration.Run
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return nil, fmt.Errorf("unmarshal run: %w", err)
	}
	return &out, nil
}
