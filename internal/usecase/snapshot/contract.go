package snapshot

import (
	"context"

	"github.com/kailas-cloud/vecshift/internal/cluster"
)

// Cluster is the subset of cluster.Cluster used for backups.
type Cluster interface {
	CreateSnapshot(ctx context.Context, repo, name string, indices []string) error
	GetSnapshot(ctx context.Context, repo, name string) (cluster.SnapshotInfo, error)
	RestoreSnapshot(ctx context.Context, req cluster.RestoreRequest) error
	IndexExists(ctx context.Context, name string) (bool, error)
}
