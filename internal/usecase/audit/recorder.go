// Package audit records the per-run audit trail.
package audit

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"go.uber.org/zap"

	domaudit "github.com/kailas-cloud/vecshift/internal/domain/audit"
	"github.com/kailas-cloud/vecshift/internal/metrics"
	"github.com/kailas-cloud/vecshift/internal/retry"
)

// Recorder appends audit entries. Store failures are logged and counted but
// never returned: auditing must not abort a migration.
type Recorder struct {
	repo   Repository
	logger *zap.Logger
	now    func() time.Time
}

// New creates a Recorder.
func New(repo Repository, logger *zap.Logger) *Recorder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Recorder{repo: repo, logger: logger, now: time.Now}
}

// WithClock overrides the timestamp source.
func (r *Recorder) WithClock(now func() time.Time) *Recorder {
	if now != nil {
		r.now = now
	}
	return r
}

// Record appends e, stamping it if Timestamp is zero. Reports whether the
// entry was persisted.
func (r *Recorder) Record(ctx context.Context, e domaudit.Entry) bool {
	if e.Timestamp.IsZero() {
		e.Timestamp = r.now().UTC()
	}
	// Запись аудита переживает отмену прогона.
	id, err := r.repo.Append(context.WithoutCancel(ctx), e)
	if err != nil {
		metrics.AuditWriteErrorsTotal.Inc()
		r.logger.Error("Audit write failed",
			zap.String("run_id", e.RunID),
			zap.String("stage", e.Stage),
			zap.String("outcome", string(e.Outcome)),
			zap.String("detail", e.Detail),
			zap.Error(err),
		)
		return false
	}
	r.logger.Debug("Audit entry recorded",
		zap.String("run_id", e.RunID),
		zap.String("id", id),
		zap.String("stage", e.Stage),
		zap.String("outcome", string(e.Outcome)),
	)
	return true
}

// Step records a stage outcome with optional fields.
func (r *Recorder) Step(
	ctx context.Context, runID, stage string, outcome domaudit.Outcome,
	detail string, fields map[string]string,
) bool {
	return r.Record(ctx, domaudit.Entry{
		RunID:   runID,
		Stage:   stage,
		Outcome: outcome,
		Detail:  detail,
		Fields:  fields,
	})
}

// RetryObserver returns a retry.Observer that records each retry of a
// cluster call made while running stage.
func (r *Recorder) RetryObserver(ctx context.Context, runID, stage string) retry.Observer {
	return func(op string, attempt int, delay time.Duration, err error) {
		r.Step(ctx, runID, stage, domaudit.OutcomeRetried,
			fmt.Sprintf("%s attempt %d failed: %v", op, attempt, err),
			map[string]string{
				"op":      op,
				"attempt": strconv.Itoa(attempt),
				"delay":   delay.String(),
			})
	}
}

// List returns the run's trail in append order; limit <= 0 returns all.
func (r *Recorder) List(ctx context.Context, runID string, limit int) ([]domaudit.Entry, error) {
	entries, err := r.repo.List(ctx, runID, limit)
	if err != nil {
		return nil, fmt.Errorf("list audit entries: %w", err)
	}
	return entries, nil
}
