package preflight

import (
	"context"

	"github.com/kailas-cloud/vecshift/internal/cluster"
	"github.com/kailas-cloud/vecshift/internal/domain/index"
)

// Cluster is the read-only subset of cluster.Cluster the checks use.
type Cluster interface {
	Ping(ctx context.Context) (cluster.Info, error)
	Health(ctx context.Context) (cluster.Health, error)
	DiskUsage(ctx context.Context) ([]cluster.NodeDisk, error)
	HeapUsage(ctx context.Context) ([]cluster.NodeHeap, error)
	IndexExists(ctx context.Context, name string) (bool, error)
	Count(ctx context.Context, name string) (int64, error)
	GetMapping(ctx context.Context, name string) (index.Properties, error)
	GetAlias(ctx context.Context, alias string) ([]string, error)
	RepositoryExists(ctx context.Context, repo string) (bool, error)
}

// EmbeddingProber reports the dimension of vectors the embedding model produces.
type EmbeddingProber interface {
	ProbeDimension(ctx context.Context) (int, error)
}
