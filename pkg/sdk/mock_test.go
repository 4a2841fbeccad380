package vecshift

import (
	"context"

	domaudit "github.com/kailas-cloud/vecshift/internal/domain/audit"
	dommig "github.com/kailas-cloud/vecshift/internal/domain/migration"
	"github.com/kailas-cloud/vecshift/internal/usecase/cutover"
	healthuc "github.com/kailas-cloud/vecshift/internal/usecase/health"
)

// --- migrationUseCase mock ---

type mockMigrationUC struct {
	executeFn  func(ctx context.Context, plan *dommig.Plan) (*dommig.Run, error)
	submitFn   func(ctx context.Context, plan *dommig.Plan) (*dommig.Run, error)
	cancelFn   func(ctx context.Context, runID string) error
	getFn      func(ctx context.Context, runID string) (*dommig.Run, error)
	listFn     func(ctx context.Context) ([]*dommig.Run, error)
	auditFn    func(ctx context.Context, runID string, limit int) ([]domaudit.Entry, error)
	rollbackFn func(ctx context.Context, runID string) (cutover.RollbackResult, error)
	shutdowns  int
}

func (m *mockMigrationUC) Execute(ctx context.Context, plan *dommig.Plan) (*dommig.Run, error) {
	return m.executeFn(ctx, plan)
}

func (m *mockMigrationUC) Submit(ctx context.Context, plan *dommig.Plan) (*dommig.Run, error) {
	return m.submitFn(ctx, plan)
}

func (m *mockMigrationUC) Cancel(ctx context.Context, runID string) error {
	return m.cancelFn(ctx, runID)
}

func (m *mockMigrationUC) Get(ctx context.Context, runID string) (*dommig.Run, error) {
	return m.getFn(ctx, runID)
}

func (m *mockMigrationUC) List(ctx context.Context) ([]*dommig.Run, error) {
	return m.listFn(ctx)
}

func (m *mockMigrationUC) Audit(ctx context.Context, runID string, limit int) ([]domaudit.Entry, error) {
	return m.auditFn(ctx, runID, limit)
}

func (m *mockMigrationUC) Rollback(ctx context.Context, runID string) (cutover.RollbackResult, error) {
	return m.rollbackFn(ctx, runID)
}

func (m *mockMigrationUC) Shutdown(_ context.Context) error {
	m.shutdowns++
	return nil
}

// --- snapshotUseCase mock ---

type mockSnapshotUC struct {
	restoreFn func(ctx context.Context, repo, snap, idx, newName string) error
}

func (m *mockSnapshotUC) Restore(ctx context.Context, repo, snap, idx, newName string) error {
	return m.restoreFn(ctx, repo, snap, idx, newName)
}

// --- healthUseCase mock ---

type mockHealthUC struct {
	report healthuc.Report
}

func (m *mockHealthUC) Check(_ context.Context) healthuc.Report { return m.report }
