package migration

import (
	"fmt"
	"time"

	"github.com/kailas-cloud/vecshift/internal/domain/index"
)

// Stage outcomes recorded on the timeline.
const (
	OutcomeRunning   = "running"
	OutcomeSucceeded = "succeeded"
	OutcomeFailed    = "failed"
)

// StageRecord is one entry of a run's timeline.
type StageRecord struct {
	State      State     `json:"state"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at,omitzero"`
	Outcome    string    `json:"outcome"`
	Error      string    `json:"error,omitempty"`
}

// Duration returns how long the stage ran, or 0 while it is running.
func (r StageRecord) Duration() time.Duration {
	if r.FinishedAt.IsZero() {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}

// Run is the mutable execution record of one plan execution. A run in a
// terminal state is never modified again.
type Run struct {
	ID               string            `json:"id"`
	Plan             *Plan             `json:"plan"`
	State            State             `json:"state"`
	Stages           []StageRecord     `json:"stages"`
	LastError        string            `json:"last_error,omitempty"`
	SnapshotID       string            `json:"snapshot_id,omitempty"`
	TaskID           string            `json:"task_id,omitempty"`
	Preflight        []CheckResult     `json:"preflight,omitempty"`
	Report           *ValidationReport `json:"report,omitempty"`
	Source           *index.Descriptor `json:"source,omitempty"`
	Target           *index.Descriptor `json:"target,omitempty"`
	CutoverAttempted bool              `json:"cutover_attempted"`
	CutoverCommitted bool              `json:"cutover_committed"`
	// RollbackFailed marks a FAILED run whose rollback did not confirm the
	// alias on the source. The alias needs manual repair.
	RollbackFailed bool      `json:"rollback_failed,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
	FinishedAt     time.Time `json:"finished_at,omitzero"`
}

// NewRun creates a run in INIT.
func NewRun(id string, plan *Plan, now time.Time) *Run {
	return &Run{
		ID:        id,
		Plan:      plan,
		State:     StateInit,
		Stages:    []StageRecord{{State: StateInit, StartedAt: now, Outcome: OutcomeRunning}},
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Transition moves the run along a state-machine edge, closing the current
// stage record as succeeded unless it was already marked failed.
func (r *Run) Transition(to State, now time.Time) error {
	if r.State.Terminal() {
		return fmt.Errorf("%w: %s", ErrTerminal, r.State)
	}
	if !CanTransition(r.State, to) {
		return fmt.Errorf("%w: %s -> %s", ErrTransition, r.State, to)
	}

	if n := len(r.Stages); n > 0 {
		cur := &r.Stages[n-1]
		cur.FinishedAt = now
		if cur.Outcome == OutcomeRunning {
			cur.Outcome = OutcomeSucceeded
		}
	}

	rec := StageRecord{State: to, StartedAt: now, Outcome: OutcomeRunning}
	if to.Terminal() {
		rec.FinishedAt = now
		rec.Outcome = OutcomeSucceeded
		if to == StateFailed {
			rec.Outcome = OutcomeFailed
		}
		r.FinishedAt = now
	}
	r.Stages = append(r.Stages, rec)
	r.State = to
	r.UpdatedAt = now
	return nil
}

// Fail records err against the current stage and follows its failure edge.
func (r *Run) Fail(err error, now time.Time) error {
	to, ok := FailureTarget(r.State)
	if !ok {
		return fmt.Errorf("%w: no failure edge from %s", ErrTransition, r.State)
	}
	if r.State == StateRollingBack {
		r.RollbackFailed = true
	}
	if err != nil {
		r.LastError = err.Error()
		if n := len(r.Stages); n > 0 {
			r.Stages[n-1].Outcome = OutcomeFailed
			r.Stages[n-1].Error = err.Error()
		}
	}
	return r.Transition(to, now)
}

// Clone returns a copy safe to hand to other goroutines.
func (r *Run) Clone() *Run {
	out := *r
	out.Stages = append([]StageRecord(nil), r.Stages...)
	out.Preflight = append([]CheckResult(nil), r.Preflight...)
	if r.Report != nil {
		rep := *r.Report
		rep.MismatchedIDs = append([]string(nil), r.Report.MismatchedIDs...)
		rep.SchemaFailures = append([]string(nil), r.Report.SchemaFailures...)
		rep.Reasons = append([]string(nil), r.Report.Reasons...)
		out.Report = &rep
	}
	return &out
}

// Timeline returns the stage records.
func (r *Run) Timeline() []StageRecord {
	return append([]StageRecord(nil), r.Stages...)
}
