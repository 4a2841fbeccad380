package chi

import (
	"context"

	domaudit "github.com/kailas-cloud/vecshift/internal/domain/audit"
	dommig "github.com/kailas-cloud/vecshift/internal/domain/migration"
	"github.com/kailas-cloud/vecshift/internal/usecase/cutover"
	healthuc "github.com/kailas-cloud/vecshift/internal/usecase/health"
)

// Migrations is the orchestrator surface exposed over HTTP.
type Migrations interface {
	Submit(ctx context.Context, plan *dommig.Plan) (*dommig.Run, error)
	Get(ctx context.Context, runID string) (*dommig.Run, error)
	List(ctx context.Context) ([]*dommig.Run, error)
	Audit(ctx context.Context, runID string, limit int) ([]domaudit.Entry, error)
	Rollback(ctx context.Context, runID string) (cutover.RollbackResult, error)
	Cancel(ctx context.Context, runID string) error
}

// HealthChecker reports component health.
type HealthChecker interface {
	Check(ctx context.Context) healthuc.Report
}
