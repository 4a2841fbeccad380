package cutover

import (
	"context"

	"github.com/kailas-cloud/vecshift/internal/cluster"
)

// Cluster is the alias subset of cluster.Cluster.
type Cluster interface {
	GetAlias(ctx context.Context, alias string) ([]string, error)
	UpdateAliases(ctx context.Context, actions []cluster.AliasAction) error
}
