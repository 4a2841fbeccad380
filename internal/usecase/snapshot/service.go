// Package snapshot backs up the source index and restores it on demand.
package snapshot

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/vecshift/internal/cluster"
	"github.com/kailas-cloud/vecshift/internal/logger"
)

// Errors returned by the snapshot service.
var (
	ErrTimeout    = errors.New("snapshot: timed out")
	ErrIncomplete = errors.New("snapshot: did not succeed")
	ErrExists     = errors.New("snapshot: restore target already exists")
)

// Config controls polling.
type Config struct {
	PollInterval time.Duration
	Timeout      time.Duration
}

// DefaultConfig polls every 5s for up to 30 minutes.
func DefaultConfig() Config {
	return Config{PollInterval: 5 * time.Second, Timeout: 30 * time.Minute}
}

// Service creates and restores snapshots. Snapshots are never deleted here:
// they are kept until an operator removes them.
type Service struct {
	cluster Cluster
	cfg     Config
}

// New creates a snapshot service.
func New(c Cluster, cfg Config) *Service {
	def := DefaultConfig()
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = def.PollInterval
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = def.Timeout
	}
	return &Service{cluster: c, cfg: cfg}
}

// Name returns the snapshot name used for a run.
func Name(index, runID string) string {
	return strings.ToLower("vecshift-" + index + "-" + runID)
}

// Create snapshots idx into repo and blocks until the cluster reports SUCCESS.
// PARTIAL and FAILED are errors; so is running past the configured timeout.
func (s *Service) Create(ctx context.Context, repo, idx, name string) (cluster.SnapshotInfo, error) {
	log := logger.FromContext(ctx).With(zap.String("repository", repo), zap.String("snapshot", name))

	if err := s.cluster.CreateSnapshot(ctx, repo, name, []string{idx}); err != nil {
		return cluster.SnapshotInfo{}, fmt.Errorf("create snapshot %s: %w", name, err)
	}
	log.Info("Snapshot started", zap.String("index", idx))

	var info cluster.SnapshotInfo
	err := s.poll(ctx, func(ctx context.Context) (bool, error) {
		var err error
		info, err = s.cluster.GetSnapshot(ctx, repo, name)
		if err != nil {
			return false, fmt.Errorf("get snapshot %s: %w", name, err)
		}
		log.Debug("Snapshot poll", zap.String("state", string(info.State)))
		return info.State.Terminal(), nil
	})
	if err != nil {
		return info, err
	}
	if info.State != cluster.SnapshotSuccess {
		return info, fmt.Errorf("%w: %s ended %s: %s", ErrIncomplete, name, info.State, info.Reason)
	}
	log.Info("Snapshot completed")
	return info, nil
}

// Restore recreates idx from snapshot snap as newName and waits until the
// index exists. It refuses to overwrite an existing index.
func (s *Service) Restore(ctx context.Context, repo, snap, idx, newName string) error {
	if newName == "" {
		newName = idx
	}
	exists, err := s.cluster.IndexExists(ctx, newName)
	if err != nil {
		return fmt.Errorf("check restore target: %w", err)
	}
	if exists {
		return fmt.Errorf("%w: %s", ErrExists, newName)
	}

	info, err := s.cluster.GetSnapshot(ctx, repo, snap)
	if err != nil {
		return fmt.Errorf("get snapshot %s: %w", snap, err)
	}
	if info.State != cluster.SnapshotSuccess {
		return fmt.Errorf("%w: %s is %s", ErrIncomplete, snap, info.State)
	}

	err = s.cluster.RestoreSnapshot(ctx, cluster.RestoreRequest{
		Repository: repo, Snapshot: snap, Index: idx, RenameTo: newName,
	})
	if err != nil {
		return fmt.Errorf("restore %s from %s: %w", idx, snap, err)
	}

	err = s.poll(ctx, func(ctx context.Context) (bool, error) {
		ok, err := s.cluster.IndexExists(ctx, newName)
		if err != nil {
			return false, fmt.Errorf("check restored index: %w", err)
		}
		return ok, nil
	})
	if err != nil {
		return err
	}
	logger.FromContext(ctx).Info("Snapshot restored",
		zap.String("snapshot", snap), zap.String("index", idx), zap.String("as", newName))
	return nil
}

// poll calls check until it reports done, fails, or the timeout elapses.
func (s *Service) poll(ctx context.Context, check func(context.Context) (bool, error)) error {
	deadline := time.NewTimer(s.cfg.Timeout)
	defer deadline.Stop()
	ticker := time.NewTicker(s.cfg.PollInterval)
	defer ticker.Stop()

	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		done, err := check(ctx)
		if err != nil {
			return err
		}
		if done {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-deadline.C:
			return fmt.Errorf("%w after %s", ErrTimeout, s.cfg.Timeout)
		case <-ticker.C:
		}
	}
}
