package vecshift

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/vecshift/internal/app"
	domaudit "github.com/kailas-cloud/vecshift/internal/domain/audit"
	dommig "github.com/kailas-cloud/vecshift/internal/domain/migration"
	"github.com/kailas-cloud/vecshift/internal/usecase/cutover"
	healthuc "github.com/kailas-cloud/vecshift/internal/usecase/health"
)

// Внутренние интерфейсы для подмены в тестах.
type migrationUseCase interface {
	Execute(ctx context.Context, plan *dommig.Plan) (*dommig.Run, error)
	Submit(ctx context.Context, plan *dommig.Plan) (*dommig.Run, error)
	Cancel(ctx context.Context, runID string) error
	Get(ctx context.Context, runID string) (*dommig.Run, error)
	List(ctx context.Context) ([]*dommig.Run, error)
	Audit(ctx context.Context, runID string, limit int) ([]domaudit.Entry, error)
	Rollback(ctx context.Context, runID string) (cutover.RollbackResult, error)
	Shutdown(ctx context.Context) error
}

type snapshotUseCase interface {
	Restore(ctx context.Context, repo, snap, idx, newName string) error
}

type healthUseCase interface {
	Check(ctx context.Context) healthuc.Report
}

// Client is the vecshift SDK entry point.
type Client struct {
	migrations migrationUseCase
	snapshots  snapshotUseCase
	healthSvc  healthUseCase
	closeFn    func(ctx context.Context) error
	obs        *observer
}

// New creates a Client, connects to the cluster and the audit store.
// The provided context is used for the initial readiness check.
func New(ctx context.Context, opts ...Option) (*Client, error) {
	cc := &clientConfig{}
	for _, o := range opts {
		o.apply(cc)
	}

	if len(cc.cfg.Cluster.Addrs) == 0 {
		return nil, errors.New("vecshift: cluster address required (use WithOpenSearch)")
	}
	cc.cfg.ApplyDefaults()
	if err := cc.cfg.Validate(); err != nil {
		return nil, fmt.Errorf("vecshift: %w", err)
	}

	obs, err := newObserver(cc.logger, cc.metricsReg)
	if err != nil {
		return nil, err
	}

	a, err := app.Build(ctx, cc.cfg, cc.zapLogger)
	if err != nil {
		return nil, fmt.Errorf("vecshift: %w", err)
	}
	return wireClient(a, obs), nil
}

func wireClient(a *app.App, obs *observer) *Client {
	return &Client{
		migrations: a.Migrations,
		snapshots:  a.Snapshots,
		healthSvc:  a.Health,
		closeFn:    a.Close,
		obs:        obs,
	}
}

// newWiredClient builds a client over explicit dependencies, without
// connecting anywhere.
func newWiredClient(cc *clientConfig, deps app.Deps) (*Client, error) {
	cc.cfg.ApplyDefaults()
	obs, err := newObserver(cc.logger, cc.metricsReg)
	if err != nil {
		return nil, err
	}
	logger := cc.zapLogger
	if logger == nil {
		logger = zap.NewNop()
	}
	return wireClient(app.Wire(cc.cfg, deps, logger), obs), nil
}

// Close cancels runs started with Start, waits for their rollback,
// and releases connections.
func (c *Client) Close(ctx context.Context) error {
	if c.closeFn != nil {
		return c.closeFn(ctx)
	}
	if c.migrations != nil {
		return c.migrations.Shutdown(ctx)
	}
	return nil
}

// Migrate runs a migration to a terminal state. A ROLLED_BACK or FAILED run
// is returned together with the stage error, so its ID, State, LastError and
// Report stay available. An empty Run means no run was created (invalid plan,
// alias busy).
func (c *Client) Migrate(ctx context.Context, plan MigrationPlan) (_ Run, err error) {
	start := time.Now()
	defer func() { c.obs.observe("migrate", start, err) }()

	p, err := dommig.NewPlan(toInternalPlan(plan))
	if err != nil {
		return Run{}, fmt.Errorf("migrate: %w", err)
	}
	r, err := c.migrations.Execute(ctx, p)
	if r == nil {
		return Run{}, fmt.Errorf("migrate: %w", err)
	}
	run := fromInternalRun(r)
	c.obs.finished(run)
	if err != nil {
		return run, fmt.Errorf("migrate %s: %w", run.ID, err)
	}
	return run, nil
}

// Start launches a migration in the background and returns the run in INIT.
func (c *Client) Start(ctx context.Context, plan MigrationPlan) (_ Run, err error) {
	start := time.Now()
	defer func() { c.obs.observe("start", start, err) }()

	p, err := dommig.NewPlan(toInternalPlan(plan))
	if err != nil {
		return Run{}, fmt.Errorf("start: %w", err)
	}
	r, err := c.migrations.Submit(ctx, p)
	if err != nil {
		return Run{}, fmt.Errorf("start: %w", err)
	}
	return fromInternalRun(r), nil
}

// Cancel requests cancellation of a background run. The run rolls back at
// the next stage boundary.
func (c *Client) Cancel(ctx context.Context, runID string) (err error) {
	start := time.Now()
	defer func() { c.obs.observe("cancel", start, err) }()

	if err = c.migrations.Cancel(ctx, runID); err != nil {
		return fmt.Errorf("cancel %s: %w", runID, err)
	}
	return nil
}

// Run returns the current state of a run.
func (c *Client) Run(ctx context.Context, runID string) (_ Run, err error) {
	start := time.Now()
	defer func() { c.obs.observe("run.get", start, err) }()

	r, err := c.migrations.Get(ctx, runID)
	if err != nil {
		return Run{}, fmt.Errorf("get run %s: %w", runID, err)
	}
	return fromInternalRun(r), nil
}

// Runs lists known runs.
func (c *Client) Runs(ctx context.Context) (_ []Run, err error) {
	start := time.Now()
	defer func() { c.obs.observe("run.list", start, err) }()

	rs, err := c.migrations.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	out := make([]Run, len(rs))
	for i, r := range rs {
		out[i] = fromInternalRun(r)
	}
	return out, nil
}

// Audit returns up to limit audit entries of a run, oldest first.
// A limit of 0 returns the whole trail.
func (c *Client) Audit(ctx context.Context, runID string, limit int) (_ []AuditEntry, err error) {
	start := time.Now()
	defer func() { c.obs.observe("audit", start, err) }()

	entries, err := c.migrations.Audit(ctx, runID, limit)
	if err != nil {
		return nil, fmt.Errorf("audit %s: %w", runID, err)
	}
	out := make([]AuditEntry, len(entries))
	for i, e := range entries {
		out[i] = fromInternalEntry(e)
	}
	return out, nil
}

// Rollback points the alias of a completed run back at its source index.
func (c *Client) Rollback(ctx context.Context, runID string) (_ RollbackResult, err error) {
	start := time.Now()
	defer func() { c.obs.observe("rollback", start, err) }()

	res, err := c.migrations.Rollback(ctx, runID)
	if err != nil {
		return RollbackResult{}, fmt.Errorf("rollback %s: %w", runID, err)
	}
	out := RollbackResult{Duration: res.Duration, WithinBound: res.WithinBound}
	if r, gerr := c.migrations.Get(ctx, runID); gerr == nil && r.Plan != nil {
		out.Alias = r.Plan.Alias()
		out.Index = r.Plan.Source()
	}
	return out, nil
}

// Restore restores one index from a snapshot under newName
// (empty = original name). Existing indices are never overwritten.
func (c *Client) Restore(ctx context.Context, repo, snapshot, index, newName string) (err error) {
	start := time.Now()
	defer func() { c.obs.observe("restore", start, err) }()

	if err = c.snapshots.Restore(ctx, repo, snapshot, index, newName); err != nil {
		return fmt.Errorf("restore %s: %w", index, err)
	}
	return nil
}
