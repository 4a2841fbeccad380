// Package cluster defines the primitive search-cluster operations the migration
// orchestrator consumes.
package cluster

import (
	"context"

	"github.com/kailas-cloud/vecshift/internal/domain/index"
)

// Cluster is the client facade combining all sub-interfaces.
//
//nolint:interfacebloat // facade; consumers use narrow sub-interfaces (ISP)
type Cluster interface {
	Pinger
	HealthReader
	ResourceReader
	IndexManager
	AliasManager
	Reindexer
	SnapshotManager
	DocumentReader
}

// Pinger checks connectivity.
type Pinger interface {
	Ping(ctx context.Context) (Info, error)
}

// HealthReader reads cluster health.
type HealthReader interface {
	Health(ctx context.Context) (Health, error)
}

// ResourceReader reads per-node disk and heap usage.
type ResourceReader interface {
	DiskUsage(ctx context.Context) ([]NodeDisk, error)
	HeapUsage(ctx context.Context) ([]NodeHeap, error)
}

// IndexManager provides index lifecycle and inspection operations.
type IndexManager interface {
	IndexExists(ctx context.Context, name string) (bool, error)
	CreateIndex(ctx context.Context, name string, body IndexBody) error
	DeleteIndex(ctx context.Context, name string) error
	GetMapping(ctx context.Context, name string) (index.Properties, error)
	Count(ctx context.Context, name string) (int64, error)
	Refresh(ctx context.Context, name string) error
	PutSettings(ctx context.Context, name string, settings map[string]any) error
}

// AliasManager reads and atomically updates aliases.
type AliasManager interface {
	// GetAlias returns the concrete indices the alias resolves to.
	GetAlias(ctx context.Context, alias string) ([]string, error)
	// UpdateAliases applies all actions in a single server-side request.
	UpdateAliases(ctx context.Context, actions []AliasAction) error
}

// Reindexer starts, observes and cancels background copy tasks.
type Reindexer interface {
	StartReindex(ctx context.Context, req ReindexRequest) (string, error)
	GetTask(ctx context.Context, taskID string) (TaskStatus, error)
	// CancelTask stops a running task. Documents already written stay.
	CancelTask(ctx context.Context, taskID string) error
}

// SnapshotManager creates, inspects and restores snapshots.
type SnapshotManager interface {
	RepositoryExists(ctx context.Context, repo string) (bool, error)
	CreateSnapshot(ctx context.Context, repo, name string, indices []string) error
	GetSnapshot(ctx context.Context, repo, name string) (SnapshotInfo, error)
	RestoreSnapshot(ctx context.Context, req RestoreRequest) error
}

// DocumentReader samples and fetches documents.
type DocumentReader interface {
	SampleIDs(ctx context.Context, index string, body map[string]any) ([]string, error)
	MultiGet(ctx context.Context, index string, ids []string) (map[string]Document, error)
}
