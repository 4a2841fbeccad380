package verify

import (
	"context"

	"github.com/kailas-cloud/vecshift/internal/cluster"
	"github.com/kailas-cloud/vecshift/internal/domain/index"
)

// Cluster is the read-only subset of cluster.Cluster the verifier uses.
type Cluster interface {
	Count(ctx context.Context, name string) (int64, error)
	GetMapping(ctx context.Context, name string) (index.Properties, error)
	SampleIDs(ctx context.Context, index string, body map[string]any) ([]string, error)
	MultiGet(ctx context.Context, index string, ids []string) (map[string]cluster.Document, error)
}
