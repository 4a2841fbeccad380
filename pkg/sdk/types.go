package vecshift

import "time"

// State is a migration run state.
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

// Terminal reports whether no further transitions are possible.
func (s State) Terminal() bool {
	return s == StateCompleted || s == StateRolledBack || s == StateFailed
}

// SpaceType is the knn distance function.
type SpaceType string

// Space types.
const (
	SpaceCosine       SpaceType = "cosinesimil"
	SpaceL2           SpaceType = "l2"
	SpaceInnerProduct SpaceType = "innerproduct"
)

// Engine is the knn engine.
type Engine string

// Engines.
const (
	EngineFaiss  Engine = "faiss"
	EngineLucene Engine = "lucene"
	EngineNmslib Engine = "nmslib"
)

// VectorField is a knn_vector field to add.
type VectorField struct {
	Name           string
	Dimension      int
	SpaceType      SpaceType
	Engine         Engine // empty = cluster default
	M              int    // hnsw graph degree, 0 = engine default
	EFConstruction int
}

// MigrationPlan describes one migration. CountTolerance and
// SampleMatchThreshold have no defaults and must be set.
type MigrationPlan struct {
	Source               string
	Target               string
	Alias                string
	VectorFields         []VectorField
	Settings             map[string]any
	CountTolerance       *float64
	SampleSize           int
	SampleMatchThreshold *float64
	SampleFilter         map[string]any
	SampleSeed           int64 // 0 = derived from the run ID
	SnapshotRepository   string
	AllowReplace         bool
}

// Float returns a pointer to v, for the plan's threshold fields.
func Float(v float64) *float64 { return &v }

// Stage is one entry of a run's timeline.
type Stage struct {
	State      State
	StartedAt  time.Time
	FinishedAt time.Time
	Outcome    string
	Error      string
}

// Report is the integrity verdict computed before cutover.
type Report struct {
	OK            bool
	SourceCount   int64
	TargetCount   int64
	AllowedDelta  int64
	SampleSize    int
	Matched       int
	MatchRate     float64
	MismatchedIDs []string
	Reasons       []string
}

// Run is a migration run.
type Run struct {
	ID         string
	State      State
	Source     string
	Target     string
	Alias      string
	SnapshotID string
	LastError  string
	// RollbackFailed is set on a FAILED run whose rollback did not restore
	// the alias; the alias needs manual repair.
	RollbackFailed bool
	Stages         []Stage
	Report         *Report
	CreatedAt      time.Time
	UpdatedAt      time.Time
	FinishedAt     time.Time
}

// AuditEntry is one record of a run's append-only audit trail.
type AuditEntry struct {
	ID        string
	RunID     string
	Stage     string
	Outcome   string
	Detail    string
	Fields    map[string]string
	Timestamp time.Time
}

// RollbackResult reports an operator rollback.
type RollbackResult struct {
	Alias    string
	Index    string
	Duration time.Duration
	// WithinBound is false when the alias swap took longer than the
	// configured rollback bound.
	WithinBound bool
}
