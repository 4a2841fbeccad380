package migration

// State is a MigrationRun lifecycle state.
type State string

// Run states.
const (
	StateInit               State = "INIT"
	StateValidating         State = "VALIDATING"
	StateSnapshotting       State = "SNAPSHOTTING"
	StateProvisioningTarget State = "PROVISIONING_TARGET"
	StateCopying            State = "COPYING"
	StateVerifying          State = "VERIFYING"
	StateCuttingOver        State = "CUTTING_OVER"
	StateCompleted          State = "COMPLETED"
	StateRollingBack        State = "ROLLING_BACK"
	StateRolledBack         State = "ROLLED_BACK"
	StateFailed             State = "FAILED"
)

var transitions = map[State][]State{
	StateInit:               {StateValidating},
	StateValidating:         {StateSnapshotting, StateFailed},
	StateSnapshotting:       {StateProvisioningTarget, StateFailed},
	StateProvisioningTarget: {StateCopying, StateRollingBack},
	StateCopying:            {StateVerifying, StateRollingBack},
	StateVerifying:          {StateCuttingOver, StateRollingBack},
	StateCuttingOver:        {StateCompleted, StateRollingBack},
	StateRollingBack:        {StateRolledBack, StateFailed},
}

// Terminal reports whether the state admits no further transitions.
func (s State) Terminal() bool {
	return s == StateCompleted || s == StateRolledBack || s == StateFailed
}

// Valid reports whether s is a known state.
func (s State) Valid() bool {
	if s.Terminal() {
		return true
	}
	_, ok := transitions[s]
	return ok
}

// CanTransition reports whether from → to is an edge of the state machine.
func CanTransition(from, to State) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// FailureTarget returns where a failure in s leads: FAILED before any mutation,
// ROLLING_BACK once the target index may exist, FAILED when rollback itself fails.
func FailureTarget(s State) (State, bool) {
	switch s {
	case StateValidating, StateSnapshotting:
		return StateFailed, true
	case StateProvisioningTarget, StateCopying, StateVerifying, StateCuttingOver:
		return StateRollingBack, true
	case StateRollingBack:
		return StateFailed, true
	}
	return "", false
}

// Happy returns the happy-path state sequence.
func Happy() []State {
	return []State{
		StateInit, StateValidating, StateSnapshotting, StateProvisioningTarget,
		StateCopying, StateVerifying, StateCuttingOver, StateCompleted,
	}
}
