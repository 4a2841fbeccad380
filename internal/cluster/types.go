package cluster

// Info describes the cluster answering a ping.
type Info struct {
	ClusterName  string `json:"cluster_name"`
	Version      string `json:"version"`
	Distribution string `json:"distribution,omitempty"`
}

// HealthStatus is the cluster's traffic-light health.
type HealthStatus string

// Health statuses, best to worst.
const (
	StatusGreen  HealthStatus = "green"
	StatusYellow HealthStatus = "yellow"
	StatusRed    HealthStatus = "red"
)

// Health is the subset of _cluster/health the preflight checks use.
type Health struct {
	ClusterName      string       `json:"cluster_name"`
	Status           HealthStatus `json:"status"`
	NumberOfNodes    int          `json:"number_of_nodes"`
	UnassignedShards int          `json:"unassigned_shards"`
}

// NodeDisk is one node's disk allocation.
type NodeDisk struct {
	Node       string
	UsedBytes  int64
	TotalBytes int64
}

// Percent returns used/total as a percentage, or 0 when total is unknown.
func (d NodeDisk) Percent() float64 {
	if d.TotalBytes <= 0 {
		return 0
	}
	return float64(d.UsedBytes) * 100 / float64(d.TotalBytes)
}

// NodeHeap is one node's JVM heap usage.
type NodeHeap struct {
	Node        string
	UsedPercent float64
}

// IndexBody is the create-index request: settings plus field mappings.
type IndexBody struct {
	Settings   map[string]any `json:"settings,omitempty"`
	Properties map[string]any `json:"-"`
}

// AliasActionKind is add or remove.
type AliasActionKind string

// Alias action kinds.
const (
	AliasAdd    AliasActionKind = "add"
	AliasRemove AliasActionKind = "remove"
)

// AliasAction is one entry of an atomic alias update.
type AliasAction struct {
	Kind  AliasActionKind
	Index string
	Alias string
}

// ReindexRequest is a background copy of all documents from Source into Dest.
type ReindexRequest struct {
	Source        string
	Dest          string
	ExcludeFields []string
	// Slices is "auto" or a positive integer; empty means unsliced.
	Slices            string
	RequestsPerSecond float64 // <= 0 means unthrottled
	BatchSize         int
}

// TaskStatus is the state of a background reindex task.
type TaskStatus struct {
	ID               string
	Completed        bool
	Total            int64
	Created          int64
	Updated          int64
	Deleted          int64
	Batches          int64
	VersionConflicts int64
	Failures         []string
	Error            string
	RunningNanos     int64
}

// Copied returns the number of documents written to the destination so far.
func (t TaskStatus) Copied() int64 { return t.Created + t.Updated }

// SnapshotState is the lifecycle state of a snapshot.
type SnapshotState string

// Snapshot states.
const (
	SnapshotInProgress SnapshotState = "IN_PROGRESS"
	SnapshotSuccess    SnapshotState = "SUCCESS"
	SnapshotPartial    SnapshotState = "PARTIAL"
	SnapshotFailed     SnapshotState = "FAILED"
)

// Terminal reports whether no further state change will happen.
func (s SnapshotState) Terminal() bool {
	return s == SnapshotSuccess || s == SnapshotPartial || s == SnapshotFailed
}

// SnapshotInfo describes a snapshot.
type SnapshotInfo struct {
	Name    string
	State   SnapshotState
	Indices []string
	Reason  string
}

// RestoreRequest restores one index of a snapshot under a new name.
type RestoreRequest struct {
	Repository string
	Snapshot   string
	Index      string
	RenameTo   string
}

// Document is a document's _source.
type Document map[string]any
