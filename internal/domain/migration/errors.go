package migration

import (
	"errors"
	"fmt"
)

// Failure taxonomy. Every stage failure unwraps to exactly one of these.
var (
	ErrPreflight = errors.New("preflight failure")
	ErrSnapshot  = errors.New("snapshot failure")
	ErrProvision = errors.New("provision failure")
	ErrCopy      = errors.New("copy failure")
	ErrIntegrity = errors.New("integrity failure")
	ErrCutover   = errors.New("cutover failure")
	ErrRollback  = errors.New("rollback failure")
	ErrCanceled  = errors.New("migration canceled")
)

// Run and plan errors.
var (
	ErrInvalidPlan = errors.New("invalid migration plan")
	ErrRunNotFound = errors.New("migration run not found")
	ErrRunActive   = errors.New("another migration run is active on this alias")
	ErrTerminal    = errors.New("run is in a terminal state")
	ErrTransition  = errors.New("illegal state transition")
	ErrNotCutOver  = errors.New("run has not cut the alias over")
)

// Kind classifies a stage outcome.
type Kind string

// Outcome kinds.
const (
	KindRetryable Kind = "retryable"
	KindFatal     Kind = "fatal"
)

// StageError is the structured outcome of a failed stage.
type StageError struct {
	Stage State
	Kind  Kind
	Err   error
}

// NewStageError wraps cause under a taxonomy sentinel so errors.Is matches both.
func NewStageError(stage State, kind Kind, sentinel, cause error) *StageError {
	err := sentinel
	if cause != nil {
		err = fmt.Errorf("%w: %w", sentinel, cause)
	}
	return &StageError{Stage: stage, Kind: kind, Err: err}
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s (%s): %v", e.Stage, e.Kind, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }
