// Package audit defines the append-only record of a migration run.
package audit

import (
	"errors"
	"time"
)

// Outcome of an audited step.
type Outcome string

// Audit outcomes.
const (
	OutcomeAttempted Outcome = "attempted"
	OutcomeSucceeded Outcome = "succeeded"
	OutcomeFailed    Outcome = "failed"
	OutcomeRetried   Outcome = "retried"
	OutcomeInfo      Outcome = "info"
)

// Valid reports whether o is a known outcome.
func (o Outcome) Valid() bool {
	switch o {
	case OutcomeAttempted, OutcomeSucceeded, OutcomeFailed, OutcomeRetried, OutcomeInfo:
		return true
	}
	return false
}

// ErrInvalidEntry is returned for entries missing a run ID, stage or outcome.
var ErrInvalidEntry = errors.New("invalid audit entry")

// Entry is one audit record. Entries are never edited or deleted; ID is
// assigned by the store and orders entries within a run.
type Entry struct {
	ID        string            `json:"id,omitempty"`
	RunID     string            `json:"run_id"`
	Stage     string            `json:"stage"`
	Outcome   Outcome           `json:"outcome"`
	Detail    string            `json:"detail,omitempty"`
	Fields    map[string]string `json:"fields,omitempty"`
	Timestamp time.Time         `json:"timestamp"`
}

// Validate checks required fields.
func (e Entry) Validate() error {
	if e.RunID == "" || e.Stage == "" || !e.Outcome.Valid() || e.Timestamp.IsZero() {
		return ErrInvalidEntry
	}
	return nil
}
