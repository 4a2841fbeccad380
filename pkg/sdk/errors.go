package vecshift

import dommig "github.com/kailas-cloud/vecshift/internal/domain/migration"

// Sentinel errors re-exported from the domain layer.
// Use errors.Is() to check.
var (
	ErrInvalidPlan = dommig.ErrInvalidPlan
	ErrRunNotFound = dommig.ErrRunNotFound
	ErrRunActive   = dommig.ErrRunActive
	ErrTerminal    = dommig.ErrTerminal
	ErrNotCutOver  = dommig.ErrNotCutOver
)

// Stage failures returned by Migrate alongside the terminal run.
var (
	ErrPreflight = dommig.ErrPreflight
	ErrSnapshot  = dommig.ErrSnapshot
	ErrProvision = dommig.ErrProvision
	ErrCopy      = dommig.ErrCopy
	ErrIntegrity = dommig.ErrIntegrity
	ErrCutover   = dommig.ErrCutover
	ErrRollback  = dommig.ErrRollback
	ErrCanceled  = dommig.ErrCanceled
)
