package migration

import (
	"context"

	"github.com/kailas-cloud/vecshift/internal/cluster"
	domaudit "github.com/kailas-cloud/vecshift/internal/domain/audit"
	"github.com/kailas-cloud/vecshift/internal/domain/index"
	dommig "github.com/kailas-cloud/vecshift/internal/domain/migration"
	"github.com/kailas-cloud/vecshift/internal/retry"
	"github.com/kailas-cloud/vecshift/internal/usecase/cutover"
	"github.com/kailas-cloud/vecshift/internal/usecase/preflight"
	"github.com/kailas-cloud/vecshift/internal/usecase/provision"
	"github.com/kailas-cloud/vecshift/internal/usecase/reindex"
	"github.com/kailas-cloud/vecshift/internal/usecase/verify"
)

// Validator runs the read-only preflight checks.
type Validator interface {
	Validate(ctx context.Context, plan *dommig.Plan) preflight.Report
}

// Snapshotter backs up the source index.
type Snapshotter interface {
	Create(ctx context.Context, repo, idx, name string) (cluster.SnapshotInfo, error)
}

// Provisioner creates and finalizes the target index.
type Provisioner interface {
	CreateTarget(ctx context.Context, req provision.Request) (index.Descriptor, error)
	Finalize(ctx context.Context, name string, refreshInterval any) error
}

// Copier runs the background copy.
type Copier interface {
	Start(ctx context.Context, source, target string, exclude []string) (string, error)
	Wait(ctx context.Context, taskID string, onProgress func(reindex.Progress)) (cluster.TaskStatus, error)
	Cancel(ctx context.Context, taskID string) error
}

// Verifier produces the integrity report.
type Verifier interface {
	Verify(ctx context.Context, in verify.Input) (dommig.ValidationReport, error)
}

// Switcher moves the alias.
type Switcher interface {
	Cutover(ctx context.Context, alias, from, to string) error
	Rollback(ctx context.Context, alias, from, to string) (cutover.RollbackResult, error)
	Confirm(ctx context.Context, alias, want string) error
}

// Auditor records the run timeline.
type Auditor interface {
	Step(ctx context.Context, runID, stage string, outcome domaudit.Outcome, detail string, fields map[string]string) bool
	RetryObserver(ctx context.Context, runID, stage string) retry.Observer
	List(ctx context.Context, runID string, limit int) ([]domaudit.Entry, error)
}

// RunStore persists run records and the per-alias lock.
type RunStore interface {
	Save(ctx context.Context, run *dommig.Run) error
	Get(ctx context.Context, id string) (*dommig.Run, error)
	List(ctx context.Context) ([]string, error)
	Lock(ctx context.Context, alias, runID string) error
	Unlock(ctx context.Context, alias, runID string) error
}

// Stages bundles the per-stage services in execution order.
type Stages struct {
	Preflight Validator
	Snapshot  Snapshotter
	Provision Provisioner
	Copy      Copier
	Verify    Verifier
	Alias     Switcher
}
