// Package migration drives a migration run through its state machine:
// validate, snapshot, provision, copy, verify, cut over, and roll back on
// failure.
package migration

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/kailas-cloud/vecshift/internal/cluster"
	domaudit "github.com/kailas-cloud/vecshift/internal/domain/audit"
	dommig "github.com/kailas-cloud/vecshift/internal/domain/migration"
	"github.com/kailas-cloud/vecshift/internal/logger"
	"github.com/kailas-cloud/vecshift/internal/metrics"
	"github.com/kailas-cloud/vecshift/internal/retry"
	"github.com/kailas-cloud/vecshift/internal/usecase/cutover"
	"github.com/kailas-cloud/vecshift/internal/usecase/provision"
	"github.com/kailas-cloud/vecshift/internal/usecase/reindex"
	"github.com/kailas-cloud/vecshift/internal/usecase/snapshot"
	"github.com/kailas-cloud/vecshift/internal/usecase/verify"
)

// StageOperatorRollback labels audit entries of an operator-triggered rollback.
const StageOperatorRollback = "OPERATOR_ROLLBACK"

// stageRunner executes one stage and returns the fields worth auditing.
type stageRunner func(ctx context.Context, run *dommig.Run) (map[string]string, error)

// Service orchestrates migration runs. Each run is a single sequential flow;
// separate aliases may migrate concurrently.
type Service struct {
	stages Stages
	runs   RunStore
	audit  Auditor
	logger *zap.Logger
	now    func() time.Time
	newID  func() string

	mu      sync.Mutex
	cancels map[string]context.CancelFunc
	wg      sync.WaitGroup
}

// New creates the orchestrator.
func New(stages Stages, runs RunStore, audit Auditor, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		stages:  stages,
		runs:    runs,
		audit:   audit,
		logger:  logger,
		now:     time.Now,
		newID:   uuid.NewString,
		cancels: make(map[string]context.CancelFunc),
	}
}

// WithClock overrides the time source.
func (s *Service) WithClock(now func() time.Time) *Service {
	if now != nil {
		s.now = now
	}
	return s
}

// WithIDGenerator overrides run id generation.
func (s *Service) WithIDGenerator(gen func() string) *Service {
	if gen != nil {
		s.newID = gen
	}
	return s
}

// Execute runs plan to a terminal state and returns the final run record.
// The error is the stage failure, if any; the run's State is always terminal
// once the lock was acquired.
func (s *Service) Execute(ctx context.Context, plan *dommig.Plan) (*dommig.Run, error) {
	run, err := s.begin(ctx, plan)
	if err != nil {
		return nil, err
	}
	return s.drive(ctx, run)
}

// Submit starts plan in the background and returns the run as created.
// The run outlives ctx; stop it with Cancel or Shutdown.
func (s *Service) Submit(ctx context.Context, plan *dommig.Plan) (*dommig.Run, error) {
	run, err := s.begin(ctx, plan)
	if err != nil {
		return nil, err
	}
	created := run.Clone()

	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	s.mu.Lock()
	s.cancels[run.ID] = cancel
	s.mu.Unlock()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer func() {
			s.mu.Lock()
			delete(s.cancels, run.ID)
			s.mu.Unlock()
			cancel()
		}()
		_, _ = s.drive(runCtx, run)
	}()
	return created, nil
}

// Cancel asks a background run to stop. The run fails from its current stage
// at the next stage boundary or copy poll, rolling back if needed.
func (s *Service) Cancel(ctx context.Context, runID string) error {
	s.mu.Lock()
	cancel, ok := s.cancels[runID]
	s.mu.Unlock()
	if ok {
		cancel()
		return nil
	}

	run, err := s.Get(ctx, runID)
	if err != nil {
		return err
	}
	if run.State.Terminal() {
		return fmt.Errorf("%w: %s", dommig.ErrTerminal, run.State)
	}
	return fmt.Errorf("%w: run %s is not owned by this process", dommig.ErrRunActive, runID)
}

// Shutdown cancels every background run and waits for them to settle.
func (s *Service) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	for _, cancel := range s.cancels {
		cancel()
	}
	s.mu.Unlock()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("wait for runs: %w", ctx.Err())
	}
}

// Get returns a run record.
func (s *Service) Get(ctx context.Context, runID string) (*dommig.Run, error) {
	run, err := s.runs.Get(ctx, runID)
	if err != nil {
		return nil, fmt.Errorf("get run: %w", err)
	}
	return run, nil
}

// List returns every stored run, oldest id first.
func (s *Service) List(ctx context.Context) ([]*dommig.Run, error) {
	ids, err := s.runs.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	out := make([]*dommig.Run, 0, len(ids))
	for _, id := range ids {
		run, err := s.runs.Get(ctx, id)
		if errors.Is(err, dommig.ErrRunNotFound) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("get run %s: %w", id, err)
		}
		out = append(out, run)
	}
	return out, nil
}

// Audit returns the run's audit trail; limit <= 0 returns all entries.
func (s *Service) Audit(ctx context.Context, runID string, limit int) ([]domaudit.Entry, error) {
	return s.audit.List(ctx, runID, limit)
}

// Rollback moves the alias of a completed run back to its source index.
// The run record is left as is; the audit trail records the rollback.
func (s *Service) Rollback(ctx context.Context, runID string) (cutover.RollbackResult, error) {
	var res cutover.RollbackResult
	run, err := s.Get(ctx, runID)
	if err != nil {
		return res, err
	}
	if run.State != dommig.StateCompleted || !run.CutoverCommitted {
		return res, fmt.Errorf("%w: run %s is %s", dommig.ErrNotCutOver, runID, run.State)
	}

	plan := run.Plan
	holder := "rollback:" + runID
	if err := s.runs.Lock(ctx, plan.Alias(), holder); err != nil {
		return res, fmt.Errorf("lock alias: %w", err)
	}
	defer s.unlock(ctx, plan.Alias(), holder)

	ctx = logger.WithRunID(logger.ContextWithLogger(ctx, s.runLogger(run)), run.ID)
	log := logger.FromContext(ctx)
	fields := map[string]string{"alias": plan.Alias(), "from": plan.Target(), "to": plan.Source()}
	s.audit.Step(ctx, runID, StageOperatorRollback, domaudit.OutcomeAttempted, "operator requested rollback", fields)

	ctx = retry.WithObserver(ctx, s.audit.RetryObserver(ctx, runID, StageOperatorRollback))
	res, err = s.stages.Alias.Rollback(context.WithoutCancel(ctx), plan.Alias(), plan.Target(), plan.Source())
	if err != nil {
		rbErr := dommig.NewStageError(dommig.StateRollingBack, dommig.KindFatal, dommig.ErrRollback, err)
		s.audit.Step(ctx, runID, StageOperatorRollback, domaudit.OutcomeFailed, rbErr.Error(),
			map[string]string{"escalate": "true"})
		log.Error("Operator rollback failed, manual intervention required",
			zap.Bool("escalate", true), zap.Error(err))
		return res, rbErr
	}

	s.audit.Step(ctx, runID, StageOperatorRollback, domaudit.OutcomeSucceeded, "alias restored to source", rollbackFields(res))
	log.Info("Operator rollback completed",
		zap.Duration("duration", res.Duration), zap.Bool("within_bound", res.WithinBound))
	return res, nil
}

// begin creates the run, takes the alias lock and persists the INIT record.
func (s *Service) begin(ctx context.Context, plan *dommig.Plan) (*dommig.Run, error) {
	if plan == nil {
		return nil, fmt.Errorf("%w: nil plan", dommig.ErrInvalidPlan)
	}
	run := dommig.NewRun(s.newID(), plan, s.now())

	if err := s.runs.Lock(ctx, plan.Alias(), run.ID); err != nil {
		return nil, fmt.Errorf("lock alias: %w", err)
	}
	if err := s.runs.Save(ctx, run); err != nil {
		s.unlock(ctx, plan.Alias(), run.ID)
		return nil, fmt.Errorf("save run: %w", err)
	}
	s.audit.Step(ctx, run.ID, string(dommig.StateInit), domaudit.OutcomeInfo, "run created", map[string]string{
		"source": plan.Source(),
		"target": plan.Target(),
		"alias":  plan.Alias(),
		"fields": strings.Join(plan.NewFieldNames(), ","),
	})
	return run, nil
}

// drive advances run to a terminal state and releases the alias lock.
func (s *Service) drive(ctx context.Context, run *dommig.Run) (*dommig.Run, error) {
	ctx = logger.WithRunID(logger.ContextWithLogger(ctx, s.runLogger(run)), run.ID)
	log := logger.FromContext(ctx)
	defer s.unlock(ctx, run.Plan.Alias(), run.ID)

	log.Info("Migration started")
	err := s.advance(ctx, run)

	metrics.RunsTotal.WithLabelValues(string(run.State)).Inc()
	metrics.CopyProgressRatio.DeleteLabelValues(run.ID)
	log.Info("Migration finished",
		zap.String("state", string(run.State)),
		zap.Duration("duration", run.UpdatedAt.Sub(run.CreatedAt)),
	)
	return run.Clone(), err
}

func (s *Service) advance(ctx context.Context, run *dommig.Run) error {
	steps := []struct {
		state dommig.State
		run   stageRunner
	}{
		{dommig.StateValidating, s.validate},
		{dommig.StateSnapshotting, s.snapshot},
		{dommig.StateProvisioningTarget, s.provision},
		{dommig.StateCopying, s.copy},
		{dommig.StateVerifying, s.verify},
		{dommig.StateCuttingOver, s.cutover},
	}

	for _, step := range steps {
		if err := ctx.Err(); err != nil {
			return s.canceled(ctx, run, err)
		}
		if err := s.enter(ctx, run, step.state); err != nil {
			return err
		}

		start := s.now()
		stageCtx := retry.WithObserver(ctx, s.audit.RetryObserver(ctx, run.ID, string(step.state)))
		fields, err := step.run(stageCtx, run)
		elapsed := s.now().Sub(start)
		if err != nil {
			metrics.StageDuration.WithLabelValues(string(step.state), dommig.OutcomeFailed).Observe(elapsed.Seconds())
			return s.fail(ctx, run, err)
		}
		metrics.StageDuration.WithLabelValues(string(step.state), dommig.OutcomeSucceeded).Observe(elapsed.Seconds())
		s.audit.Step(ctx, run.ID, string(step.state), domaudit.OutcomeSucceeded, "stage succeeded", fields)
		logger.FromContext(ctx).Info("Stage succeeded",
			zap.String("stage", string(step.state)), zap.Duration("duration", elapsed))
	}

	if err := run.Transition(dommig.StateCompleted, s.now()); err != nil {
		return err
	}
	s.save(ctx, run)
	s.audit.Step(ctx, run.ID, string(dommig.StateCompleted), domaudit.OutcomeInfo, "alias serves the target index", nil)
	return nil
}

func (s *Service) enter(ctx context.Context, run *dommig.Run, state dommig.State) error {
	if err := run.Transition(state, s.now()); err != nil {
		return err
	}
	s.save(ctx, run)
	s.audit.Step(ctx, run.ID, string(state), domaudit.OutcomeAttempted, "stage started", nil)
	logger.FromContext(ctx).Info("Stage started", zap.String("stage", string(state)))
	return nil
}

// canceled fails the run from its current stage. A run canceled before its
// first stage fails from VALIDATING.
func (s *Service) canceled(ctx context.Context, run *dommig.Run, cause error) error {
	if run.State == dommig.StateInit {
		if err := s.enter(ctx, run, dommig.StateValidating); err != nil {
			return err
		}
	}
	return s.fail(ctx, run, dommig.NewStageError(run.State, dommig.KindFatal, dommig.ErrCanceled, cause))
}

// fail records the failure before any rollback logic so the entry exists even
// if rollback itself fails.
func (s *Service) fail(ctx context.Context, run *dommig.Run, err error) error {
	ctx = context.WithoutCancel(ctx)
	log := logger.FromContext(ctx)
	stage := run.State

	kind := dommig.KindFatal
	var se *dommig.StageError
	if errors.As(err, &se) {
		kind = se.Kind
	}
	s.audit.Step(ctx, run.ID, string(stage), domaudit.OutcomeFailed, err.Error(),
		map[string]string{"kind": string(kind)})
	log.Error("Stage failed", zap.String("stage", string(stage)), zap.String("kind", string(kind)), zap.Error(err))

	if ferr := run.Fail(err, s.now()); ferr != nil {
		return errors.Join(err, ferr)
	}
	s.save(ctx, run)

	if run.State != dommig.StateRollingBack {
		return err
	}
	if rbErr := s.rollback(ctx, run); rbErr != nil {
		return errors.Join(err, rbErr)
	}
	return err
}

// rollback returns the alias to the source. Before a cutover was attempted
// the alias never moved, so only its binding is confirmed.
func (s *Service) rollback(ctx context.Context, run *dommig.Run) error {
	log := logger.FromContext(ctx)
	plan := run.Plan
	stage := string(dommig.StateRollingBack)
	ctx = retry.WithObserver(ctx, s.audit.RetryObserver(ctx, run.ID, stage))

	s.audit.Step(ctx, run.ID, stage, domaudit.OutcomeAttempted, "restore alias to source",
		map[string]string{"alias": plan.Alias(), "to": plan.Source()})

	start := s.now()
	var fields map[string]string
	var err error
	if run.CutoverAttempted {
		var res cutover.RollbackResult
		res, err = s.stages.Alias.Rollback(ctx, plan.Alias(), plan.Target(), plan.Source())
		fields = rollbackFields(res)
	} else {
		err = s.stages.Alias.Confirm(ctx, plan.Alias(), plan.Source())
		fields = map[string]string{"alias_moved": "false"}
	}
	elapsed := s.now().Sub(start)

	if err != nil {
		metrics.StageDuration.WithLabelValues(stage, dommig.OutcomeFailed).Observe(elapsed.Seconds())
		rbErr := dommig.NewStageError(dommig.StateRollingBack, dommig.KindFatal, dommig.ErrRollback, err)
		s.audit.Step(ctx, run.ID, stage, domaudit.OutcomeFailed, rbErr.Error(), map[string]string{"escalate": "true"})
		log.Error("Rollback failed, manual intervention required",
			zap.Bool("escalate", true), zap.String("alias", plan.Alias()), zap.Error(err))
		if ferr := run.Fail(rbErr, s.now()); ferr != nil {
			return errors.Join(rbErr, ferr)
		}
		s.save(ctx, run)
		return rbErr
	}

	metrics.StageDuration.WithLabelValues(stage, dommig.OutcomeSucceeded).Observe(elapsed.Seconds())
	if err := run.Transition(dommig.StateRolledBack, s.now()); err != nil {
		return err
	}
	s.save(ctx, run)
	s.audit.Step(ctx, run.ID, stage, domaudit.OutcomeSucceeded, "alias serves the source index", fields)
	log.Info("Rolled back", zap.Duration("duration", elapsed))
	return nil
}

func (s *Service) validate(ctx context.Context, run *dommig.Run) (map[string]string, error) {
	rep := s.stages.Preflight.Validate(context.WithoutCancel(ctx), run.Plan)
	run.Preflight = rep.Checks
	run.Source = rep.Source

	for _, c := range rep.Checks {
		outcome := domaudit.OutcomeSucceeded
		if !c.OK {
			outcome = domaudit.OutcomeFailed
		}
		s.audit.Step(ctx, run.ID, string(dommig.StateValidating), outcome, c.Detail,
			map[string]string{"check": c.Name})
	}

	if !rep.OK() {
		return nil, dommig.NewStageError(dommig.StateValidating, dommig.KindFatal, dommig.ErrPreflight,
			errors.New(strings.Join(rep.Failures(), "; ")))
	}
	if rep.Source == nil {
		return nil, dommig.NewStageError(dommig.StateValidating, dommig.KindFatal, dommig.ErrPreflight,
			errors.New("source index was not described"))
	}
	return map[string]string{
		"checks":      strconv.Itoa(len(rep.Checks)),
		"source_docs": strconv.FormatInt(rep.Source.DocCount(), 10),
	}, nil
}

func (s *Service) snapshot(ctx context.Context, run *dommig.Run) (map[string]string, error) {
	plan := run.Plan
	name := snapshot.Name(plan.Source(), run.ID)
	info, err := s.stages.Snapshot.Create(context.WithoutCancel(ctx), plan.SnapshotRepository(), plan.Source(), name)
	if err != nil {
		return nil, stageError(dommig.StateSnapshotting, dommig.ErrSnapshot, err)
	}
	run.SnapshotID = info.Name
	return map[string]string{"snapshot": info.Name, "repository": plan.SnapshotRepository()}, nil
}

func (s *Service) provision(ctx context.Context, run *dommig.Run) (map[string]string, error) {
	plan := run.Plan
	props, err := plan.TargetProperties(run.Source.Properties())
	if err != nil {
		return nil, dommig.NewStageError(dommig.StateProvisioningTarget, dommig.KindFatal, dommig.ErrProvision, err)
	}

	desc, err := s.stages.Provision.CreateTarget(context.WithoutCancel(ctx), provision.Request{
		Name:         plan.Target(),
		Settings:     plan.TargetSettings(),
		Properties:   props,
		VectorFields: plan.VectorFields(),
		AllowReplace: plan.AllowReplace(),
		Alias:        plan.Alias(),
	})
	if err != nil {
		return nil, stageError(dommig.StateProvisioningTarget, dommig.ErrProvision, err)
	}
	run.Target = &desc
	return map[string]string{"target": desc.Name(), "fields": strconv.Itoa(len(desc.Properties()))}, nil
}

// copy starts the reindex task and waits for it. Only the wait observes
// cancellation. A task that did not finish is canceled server-side before the
// rollback, so nothing writes into the abandoned target afterwards.
func (s *Service) copy(ctx context.Context, run *dommig.Run) (map[string]string, error) {
	plan := run.Plan
	call := context.WithoutCancel(ctx)

	taskID, err := s.stages.Copy.Start(call, plan.Source(), plan.Target(), plan.NewFieldNames())
	if err != nil {
		return nil, stageError(dommig.StateCopying, dommig.ErrCopy, err)
	}
	run.TaskID = taskID
	s.save(ctx, run)
	s.audit.Step(ctx, run.ID, string(dommig.StateCopying), domaudit.OutcomeInfo, "copy task started",
		map[string]string{"task_id": taskID, "excluded": strings.Join(plan.NewFieldNames(), ",")})

	gauge := metrics.CopyProgressRatio.WithLabelValues(run.ID)
	st, err := s.stages.Copy.Wait(ctx, taskID, func(p reindex.Progress) {
		gauge.Set(p.Ratio())
	})
	if err != nil {
		if !st.Completed {
			s.stopCopy(call, run.ID, taskID)
		}
		return nil, stageError(dommig.StateCopying, dommig.ErrCopy, err)
	}

	if err := s.stages.Provision.Finalize(call, plan.Target(), provision.RefreshInterval(plan.TargetSettings())); err != nil {
		return nil, stageError(dommig.StateCopying, dommig.ErrCopy, fmt.Errorf("finalize target: %w", err))
	}
	return map[string]string{
		"task_id": taskID,
		"copied":  strconv.FormatInt(st.Copied(), 10),
		"total":   strconv.FormatInt(st.Total, 10),
	}, nil
}

// stopCopy cancels an unfinished copy task. A failed cancel is audited with
// escalate=true: the task may still be writing into the target.
func (s *Service) stopCopy(ctx context.Context, runID, taskID string) {
	stage := string(dommig.StateCopying)
	fields := map[string]string{"task_id": taskID}
	if err := s.stages.Copy.Cancel(ctx, taskID); err != nil {
		fields["escalate"] = "true"
		s.audit.Step(ctx, runID, stage, domaudit.OutcomeFailed, "cancel copy task: "+err.Error(), fields)
		logger.FromContext(ctx).Error("Copy task not canceled, it may still write into the target",
			zap.String("task_id", taskID), zap.Bool("escalate", true), zap.Error(err))
		return
	}
	s.audit.Step(ctx, runID, stage, domaudit.OutcomeInfo, "copy task canceled", fields)
}

func (s *Service) verify(ctx context.Context, run *dommig.Run) (map[string]string, error) {
	plan := run.Plan
	seed := plan.SampleSeed()
	if seed == 0 {
		seed = seedFor(run.ID)
	}

	rep, err := s.stages.Verify.Verify(context.WithoutCancel(ctx), verify.Input{Plan: plan, Seed: seed})
	if err != nil {
		return nil, stageError(dommig.StateVerifying, dommig.ErrIntegrity, err)
	}
	run.Report = &rep

	fields := map[string]string{
		"ok":            strconv.FormatBool(rep.OK),
		"source_count":  strconv.FormatInt(rep.SourceCount, 10),
		"target_count":  strconv.FormatInt(rep.TargetCount, 10),
		"count_delta":   strconv.FormatInt(rep.CountDelta, 10),
		"allowed_delta": strconv.FormatInt(rep.AllowedDelta, 10),
		"sample_size":   strconv.Itoa(rep.SampleSize),
		"match_rate":    strconv.FormatFloat(rep.MatchRate, 'f', 4, 64),
		"seed":          strconv.FormatInt(seed, 10),
	}
	s.audit.Step(ctx, run.ID, string(dommig.StateVerifying), domaudit.OutcomeInfo, "validation report", fields)

	if !rep.OK {
		return nil, dommig.NewStageError(dommig.StateVerifying, dommig.KindFatal, dommig.ErrIntegrity,
			errors.New(strings.Join(rep.Reasons, "; ")))
	}
	return fields, nil
}

func (s *Service) cutover(ctx context.Context, run *dommig.Run) (map[string]string, error) {
	if run.Report == nil || !run.Report.OK {
		return nil, dommig.NewStageError(dommig.StateCuttingOver, dommig.KindFatal, dommig.ErrIntegrity,
			errors.New("no passing validation report"))
	}

	plan := run.Plan
	run.CutoverAttempted = true
	s.save(ctx, run)

	if err := s.stages.Alias.Cutover(context.WithoutCancel(ctx), plan.Alias(), plan.Source(), plan.Target()); err != nil {
		return nil, stageError(dommig.StateCuttingOver, dommig.ErrCutover, err)
	}
	run.CutoverCommitted = true
	return map[string]string{"alias": plan.Alias(), "from": plan.Source(), "to": plan.Target()}, nil
}

// save persists run. A store failure is logged; the in-memory record stays
// authoritative for the rest of the run.
func (s *Service) save(ctx context.Context, run *dommig.Run) {
	if err := s.runs.Save(context.WithoutCancel(ctx), run); err != nil {
		logger.FromContext(ctx).Error("Run record not persisted",
			zap.String("state", string(run.State)), zap.Error(err))
	}
}

func (s *Service) unlock(ctx context.Context, alias, holder string) {
	if err := s.runs.Unlock(context.WithoutCancel(ctx), alias, holder); err != nil {
		logger.FromContext(ctx).Warn("Alias lock not released", zap.String("alias", alias), zap.Error(err))
	}
}

// runLogger scopes the service logger to the run's indices; the run id is
// added by logger.WithRunID.
func (s *Service) runLogger(run *dommig.Run) *zap.Logger {
	return s.logger.With(
		zap.String("alias", run.Plan.Alias()),
		zap.String("source", run.Plan.Source()),
		zap.String("target", run.Plan.Target()),
	)
}

// stageError classifies err: cancellation maps to ErrCanceled, transient
// cluster failures are retryable, everything else is fatal.
func stageError(stage dommig.State, sentinel, err error) error {
	if errors.Is(err, context.Canceled) {
		return dommig.NewStageError(stage, dommig.KindFatal, dommig.ErrCanceled, err)
	}
	kind := dommig.KindFatal
	if cluster.IsTransient(err) || errors.Is(err, reindex.ErrPollUnavailable) {
		kind = dommig.KindRetryable
	}
	return dommig.NewStageError(stage, kind, sentinel, err)
}

func rollbackFields(res cutover.RollbackResult) map[string]string {
	return map[string]string{
		"duration_ms":   strconv.FormatInt(res.Duration.Milliseconds(), 10),
		"within_bound":  strconv.FormatBool(res.WithinBound),
		"already_bound": strconv.FormatBool(res.AlreadyBound),
	}
}

// seedFor derives a stable, positive sample seed from the run id.
func seedFor(runID string) int64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(runID))
	return int64(h.Sum64()>>1) | 1 //nolint:gosec // shifted into range
}
