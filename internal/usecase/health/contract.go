package health

import (
	"context"

	"github.com/kailas-cloud/vecshift/internal/cluster"
)

// ClusterPinger checks search cluster availability.
type ClusterPinger interface {
	Ping(ctx context.Context) (cluster.Info, error)
}

// AuditPinger checks audit store availability.
type AuditPinger interface {
	Ping(ctx context.Context) error
}

// EmbeddingChecker checks embedding provider availability.
type EmbeddingChecker interface {
	HealthCheck(ctx context.Context) error
}
