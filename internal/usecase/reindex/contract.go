package reindex

import (
	"context"

	"github.com/kailas-cloud/vecshift/internal/cluster"
)

// Cluster is the subset of cluster.Cluster used to run the bulk copy.
type Cluster interface {
	StartReindex(ctx context.Context, req cluster.ReindexRequest) (string, error)
	GetTask(ctx context.Context, taskID string) (cluster.TaskStatus, error)
	CancelTask(ctx context.Context, taskID string) error
}
