package provision

import (
	"context"

	"github.com/kailas-cloud/vecshift/internal/cluster"
	"github.com/kailas-cloud/vecshift/internal/domain/index"
)

// Cluster is the subset of cluster.Cluster used to provision the target.
type Cluster interface {
	IndexExists(ctx context.Context, name string) (bool, error)
	CreateIndex(ctx context.Context, name string, body cluster.IndexBody) error
	DeleteIndex(ctx context.Context, name string) error
	GetMapping(ctx context.Context, name string) (index.Properties, error)
	GetAlias(ctx context.Context, alias string) ([]string, error)
	PutSettings(ctx context.Context, name string, settings map[string]any) error
	Refresh(ctx context.Context, name string) error
}
