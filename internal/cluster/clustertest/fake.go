// Package clustertest provides an in-memory cluster.Cluster for tests.
package clustertest

import (
	"context"
	"fmt"
	"math/rand/v2"
	"net/http"
	"sort"
	"strconv"
	"sync"

	"github.com/kailas-cloud/vecshift/internal/cluster"
	"github.com/kailas-cloud/vecshift/internal/domain/index"
)

// Compile-time check: Fake implements cluster.Cluster.
var _ cluster.Cluster = (*Fake)(nil)

// Mutating ops, used by MutatingCalls.
var mutating = map[string]bool{
	cluster.OpCreateIndex:     true,
	cluster.OpDeleteIndex:     true,
	cluster.OpPutSettings:     true,
	cluster.OpUpdateAliases:   true,
	cluster.OpReindex:         true,
	cluster.OpCancelTask:      true,
	cluster.OpCreateSnapshot:  true,
	cluster.OpRestoreSnapshot: true,
}

type fakeIndex struct {
	props    index.Properties
	settings map[string]any
	docs     map[string]cluster.Document
}

type fakeSnapshot struct {
	info  cluster.SnapshotInfo
	polls int
	state map[string]fakeIndex
}

type fakeTask struct {
	req      cluster.ReindexRequest
	polls    int
	done     bool
	canceled bool
	total    int64
}

type fault struct {
	err       error
	remaining int // < 0 means forever
}

// Fake is a thread-safe in-memory cluster. Zero knobs mean: reindex tasks and
// snapshots complete on the first poll.
type Fake struct {
	// Knobs; set before use.
	Info               cluster.Info
	Status             cluster.HealthStatus
	Disks              []cluster.NodeDisk
	Heaps              []cluster.NodeHeap
	TaskPolls          int      // polls before a reindex task completes
	TaskError          string   // error reported by completed tasks
	TaskFailures       []string // bulk failures reported by completed tasks
	CopyShortfall      int      // documents the copy silently drops
	SnapshotPolls      int      // polls before a snapshot is terminal; < 0 never
	SnapshotFinalState cluster.SnapshotState
	// OnTaskPoll runs before each GetTask, outside the lock. Use it to simulate
	// writes landing on the source during the copy window.
	OnTaskPoll func()

	mu              sync.Mutex
	indices         map[string]*fakeIndex
	aliases         map[string]map[string]bool
	repos           map[string]bool
	snapshots       map[string]*fakeSnapshot
	tasks           map[string]*fakeTask
	faults          map[string]*fault
	mappingOverride map[string]index.Properties
	calls           []string
	nextTask        int
}

// New returns an empty green cluster.
func New() *Fake {
	return &Fake{
		Info:               cluster.Info{ClusterName: "test", Version: "2.13.0", Distribution: "opensearch"},
		Status:             cluster.StatusGreen,
		TaskPolls:          1,
		SnapshotPolls:      1,
		SnapshotFinalState: cluster.SnapshotSuccess,
		indices:            make(map[string]*fakeIndex),
		aliases:            make(map[string]map[string]bool),
		repos:              make(map[string]bool),
		snapshots:          make(map[string]*fakeSnapshot),
		tasks:              make(map[string]*fakeTask),
		faults:             make(map[string]*fault),
		mappingOverride:    make(map[string]index.Properties),
	}
}

// AddIndex creates an index with documents.
func (f *Fake) AddIndex(name string, props index.Properties, docs map[string]cluster.Document) {
	f.mu.Lock()
	defer f.mu.Unlock()
	idx := &fakeIndex{props: props.Clone(), settings: map[string]any{}, docs: make(map[string]cluster.Document)}
	for id, d := range docs {
		idx.docs[id] = copyDoc(d)
	}
	f.indices[name] = idx
}

// PutDoc writes a document, creating or replacing it.
func (f *Fake) PutDoc(indexName, id string, doc cluster.Document) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if idx, ok := f.indices[indexName]; ok {
		idx.docs[id] = copyDoc(doc)
	}
}

// SetAlias binds alias to indexName, replacing any previous binding.
func (f *Fake) SetAlias(alias, indexName string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.aliases[alias] = map[string]bool{indexName: true}
}

// AddRepository registers a snapshot repository.
func (f *Fake) AddRepository(repo string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.repos[repo] = true
}

// OverrideMapping makes GetMapping return props for indexName, simulating
// a cluster that silently coerced the requested mapping.
func (f *Fake) OverrideMapping(indexName string, props index.Properties) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.mappingOverride[indexName] = props.Clone()
}

// Fail makes the next times calls of op return err; times < 0 fails forever.
func (f *Fake) Fail(op string, err error, times int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.faults[op] = &fault{err: err, remaining: times}
}

// Calls returns every op invoked, in order.
func (f *Fake) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

// CallCount returns how many times op was invoked.
func (f *Fake) CallCount(op string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		if c == op {
			n++
		}
	}
	return n
}

// MutatingCalls returns the invoked ops that change cluster state.
func (f *Fake) MutatingCalls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for _, c := range f.calls {
		if mutating[c] {
			out = append(out, c)
		}
	}
	return out
}

// HasIndex reports whether a concrete index exists.
func (f *Fake) HasIndex(name string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.indices[name]
	return ok
}

// DocCount returns the number of documents in an index, or -1.
func (f *Fake) DocCount(name string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	idx, ok := f.indices[name]
	if !ok {
		return -1
	}
	return len(idx.docs)
}

// Settings returns a copy of the settings applied to an index.
func (f *Fake) Settings(name string) map[string]any {
	f.mu.Lock()
	defer f.mu.Unlock()
	idx, ok := f.indices[name]
	if !ok {
		return nil
	}
	out := make(map[string]any, len(idx.settings))
	for k, v := range idx.settings {
		out[k] = v
	}
	return out
}

// AliasTarget returns the indices an alias resolves to, sorted.
func (f *Fake) AliasTarget(alias string) []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.aliasIndicesLocked(alias)
}

// Snapshots returns the names of all snapshots in repo.
func (f *Fake) Snapshots(repo string) []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for key, s := range f.snapshots {
		if key == repo+"/"+s.info.Name {
			out = append(out, s.info.Name)
		}
	}
	sort.Strings(out)
	return out
}

// enter records the call and returns an injected fault, if any. Callers hold f.mu.
func (f *Fake) enter(op string) error {
	f.calls = append(f.calls, op)
	ft, ok := f.faults[op]
	if !ok {
		return nil
	}
	if ft.remaining == 0 {
		delete(f.faults, op)
		return nil
	}
	if ft.remaining > 0 {
		ft.remaining--
	}
	return ft.err
}

func (f *Fake) aliasIndicesLocked(alias string) []string {
	out := make([]string, 0, len(f.aliases[alias]))
	for name := range f.aliases[alias] {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

func notFound(op string, err error, what string) error {
	return &cluster.Error{Op: op, Status: http.StatusNotFound, Reason: what, Err: err}
}

// Ping returns Info.
func (f *Fake) Ping(_ context.Context) (cluster.Info, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter(cluster.OpPing); err != nil {
		return cluster.Info{}, err
	}
	return f.Info, nil
}

// Health returns Status.
func (f *Fake) Health(_ context.Context) (cluster.Health, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter(cluster.OpHealth); err != nil {
		return cluster.Health{}, err
	}
	return cluster.Health{ClusterName: f.Info.ClusterName, Status: f.Status, NumberOfNodes: 1}, nil
}

// DiskUsage returns Disks.
func (f *Fake) DiskUsage(_ context.Context) ([]cluster.NodeDisk, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter(cluster.OpAllocation); err != nil {
		return nil, err
	}
	return append([]cluster.NodeDisk(nil), f.Disks...), nil
}

// HeapUsage returns Heaps.
func (f *Fake) HeapUsage(_ context.Context) ([]cluster.NodeHeap, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter(cluster.OpNodeStats); err != nil {
		return nil, err
	}
	return append([]cluster.NodeHeap(nil), f.Heaps...), nil
}

// IndexExists reports whether an index or alias exists.
func (f *Fake) IndexExists(_ context.Context, name string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter(cluster.OpIndexExists); err != nil {
		return false, err
	}
	_, ok := f.indices[name]
	return ok || len(f.aliases[name]) > 0, nil
}

// CreateIndex creates an empty index.
func (f *Fake) CreateIndex(_ context.Context, name string, body cluster.IndexBody) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter(cluster.OpCreateIndex); err != nil {
		return err
	}
	if _, ok := f.indices[name]; ok {
		return &cluster.Error{Op: cluster.OpCreateIndex, Status: http.StatusBadRequest,
			Type: "resource_already_exists_exception", Reason: name, Err: cluster.ErrIndexExists}
	}
	settings := make(map[string]any, len(body.Settings))
	for k, v := range body.Settings {
		settings[k] = v
	}
	f.indices[name] = &fakeIndex{
		props:    index.Properties(body.Properties).Clone(),
		settings: settings,
		docs:     make(map[string]cluster.Document),
	}
	return nil
}

// DeleteIndex deletes an index and drops it from every alias.
func (f *Fake) DeleteIndex(_ context.Context, name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter(cluster.OpDeleteIndex); err != nil {
		return err
	}
	if _, ok := f.indices[name]; !ok {
		return notFound(cluster.OpDeleteIndex, cluster.ErrIndexNotFound, name)
	}
	delete(f.indices, name)
	delete(f.mappingOverride, name)
	for alias, set := range f.aliases {
		delete(set, name)
		if len(set) == 0 {
			delete(f.aliases, alias)
		}
	}
	return nil
}

func (f *Fake) resolveLocked(name string) (*fakeIndex, string, bool) {
	if idx, ok := f.indices[name]; ok {
		return idx, name, true
	}
	if names := f.aliasIndicesLocked(name); len(names) == 1 {
		idx, ok := f.indices[names[0]]
		return idx, names[0], ok
	}
	return nil, "", false
}

// GetMapping returns the accepted properties.
func (f *Fake) GetMapping(_ context.Context, name string) (index.Properties, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter(cluster.OpGetMapping); err != nil {
		return nil, err
	}
	idx, concrete, ok := f.resolveLocked(name)
	if !ok {
		return nil, notFound(cluster.OpGetMapping, cluster.ErrIndexNotFound, name)
	}
	if p, ok := f.mappingOverride[concrete]; ok {
		return p.Clone(), nil
	}
	return idx.props.Clone(), nil
}

// Count returns the number of documents.
func (f *Fake) Count(_ context.Context, name string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter(cluster.OpCount); err != nil {
		return 0, err
	}
	idx, _, ok := f.resolveLocked(name)
	if !ok {
		return 0, notFound(cluster.OpCount, cluster.ErrIndexNotFound, name)
	}
	return int64(len(idx.docs)), nil
}

// Refresh is a no-op on an existing index.
func (f *Fake) Refresh(_ context.Context, name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter(cluster.OpRefresh); err != nil {
		return err
	}
	if _, _, ok := f.resolveLocked(name); !ok {
		return notFound(cluster.OpRefresh, cluster.ErrIndexNotFound, name)
	}
	return nil
}

// PutSettings merges settings into an index.
func (f *Fake) PutSettings(_ context.Context, name string, settings map[string]any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter(cluster.OpPutSettings); err != nil {
		return err
	}
	idx, _, ok := f.resolveLocked(name)
	if !ok {
		return notFound(cluster.OpPutSettings, cluster.ErrIndexNotFound, name)
	}
	for k, v := range settings {
		idx.settings[k] = v
	}
	return nil
}

// GetAlias returns the concrete indices an alias resolves to.
func (f *Fake) GetAlias(_ context.Context, alias string) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter(cluster.OpGetAlias); err != nil {
		return nil, err
	}
	names := f.aliasIndicesLocked(alias)
	if len(names) == 0 {
		return nil, notFound(cluster.OpGetAlias, cluster.ErrAliasNotFound, alias)
	}
	return names, nil
}

// UpdateAliases validates every action, then applies all of them under one lock.
// A failing action leaves the alias table untouched.
func (f *Fake) UpdateAliases(_ context.Context, actions []cluster.AliasAction) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter(cluster.OpUpdateAliases); err != nil {
		return err
	}

	for _, a := range actions {
		switch a.Kind {
		case cluster.AliasAdd:
			if _, ok := f.indices[a.Index]; !ok {
				return notFound(cluster.OpUpdateAliases, cluster.ErrIndexNotFound, a.Index)
			}
		case cluster.AliasRemove:
			if !f.aliases[a.Alias][a.Index] {
				return notFound(cluster.OpUpdateAliases, cluster.ErrAliasNotFound, a.Alias+" on "+a.Index)
			}
		default:
			return &cluster.Error{Op: cluster.OpUpdateAliases, Err: fmt.Errorf("unknown alias action %q", a.Kind)}
		}
	}

	for _, a := range actions {
		switch a.Kind {
		case cluster.AliasAdd:
			if f.aliases[a.Alias] == nil {
				f.aliases[a.Alias] = make(map[string]bool)
			}
			f.aliases[a.Alias][a.Index] = true
		case cluster.AliasRemove:
			delete(f.aliases[a.Alias], a.Index)
			if len(f.aliases[a.Alias]) == 0 {
				delete(f.aliases, a.Alias)
			}
		}
	}
	return nil
}

// StartReindex registers a task; documents are copied when it completes.
func (f *Fake) StartReindex(_ context.Context, req cluster.ReindexRequest) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter(cluster.OpReindex); err != nil {
		return "", err
	}
	src, ok := f.indices[req.Source]
	if !ok {
		return "", notFound(cluster.OpReindex, cluster.ErrIndexNotFound, req.Source)
	}
	if _, ok := f.indices[req.Dest]; !ok {
		return "", notFound(cluster.OpReindex, cluster.ErrIndexNotFound, req.Dest)
	}
	f.nextTask++
	id := "fake:" + strconv.Itoa(f.nextTask)
	f.tasks[id] = &fakeTask{req: req, total: int64(len(src.docs))}
	return id, nil
}

// GetTask advances the task by one poll.
func (f *Fake) GetTask(_ context.Context, taskID string) (cluster.TaskStatus, error) {
	if f.OnTaskPoll != nil {
		f.OnTaskPoll()
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter(cluster.OpGetTask); err != nil {
		return cluster.TaskStatus{}, err
	}
	t, ok := f.tasks[taskID]
	if !ok {
		return cluster.TaskStatus{}, notFound(cluster.OpGetTask, cluster.ErrTaskNotFound, taskID)
	}

	if !t.done {
		t.polls++
		if f.TaskPolls >= 0 && t.polls >= f.TaskPolls {
			t.total = f.copyLocked(t.req)
			t.done = true
		}
	}

	st := cluster.TaskStatus{ID: taskID, Total: t.total, Completed: t.done}
	switch {
	case t.canceled:
		st.Created = int64(f.countLocked(t.req.Dest))
		st.Error = "task_cancelled_exception: by user request"
	case t.done:
		st.Created = int64(f.countLocked(t.req.Dest))
		st.Error = f.TaskError
		st.Failures = append([]string(nil), f.TaskFailures...)
	case f.TaskPolls > 0:
		st.Created = t.total * int64(t.polls) / int64(f.TaskPolls)
	}
	return st, nil
}

// CancelTask stops a task before it copies anything. Canceling a finished
// task is a no-op.
func (f *Fake) CancelTask(_ context.Context, taskID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter(cluster.OpCancelTask); err != nil {
		return err
	}
	t, ok := f.tasks[taskID]
	if !ok {
		return notFound(cluster.OpCancelTask, cluster.ErrTaskNotFound, taskID)
	}
	if !t.done {
		t.done = true
		t.canceled = true
	}
	return nil
}

// TaskCanceled reports whether taskID was stopped by CancelTask.
func (f *Fake) TaskCanceled(taskID string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	t, ok := f.tasks[taskID]
	return ok && t.canceled
}

func (f *Fake) countLocked(name string) int {
	if idx, ok := f.indices[name]; ok {
		return len(idx.docs)
	}
	return 0
}

// copyLocked copies source documents into dest minus excluded fields, dropping
// the last CopyShortfall IDs in sorted order. Returns the source count.
func (f *Fake) copyLocked(req cluster.ReindexRequest) int64 {
	src, ok := f.indices[req.Source]
	if !ok {
		return 0
	}
	dst, ok := f.indices[req.Dest]
	if !ok {
		return 0
	}

	ids := sortedIDs(src.docs)
	keep := len(ids) - f.CopyShortfall
	if keep < 0 {
		keep = 0
	}
	for _, id := range ids[:keep] {
		doc := copyDoc(src.docs[id])
		for _, field := range req.ExcludeFields {
			delete(doc, field)
		}
		dst.docs[id] = doc
	}
	return int64(len(ids))
}

// RepositoryExists reports whether repo was registered.
func (f *Fake) RepositoryExists(_ context.Context, repo string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter(cluster.OpGetRepository); err != nil {
		return false, err
	}
	return f.repos[repo], nil
}

// CreateSnapshot captures the named indices.
func (f *Fake) CreateSnapshot(_ context.Context, repo, name string, indices []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter(cluster.OpCreateSnapshot); err != nil {
		return err
	}
	if !f.repos[repo] {
		return notFound(cluster.OpCreateSnapshot, cluster.ErrRepositoryNotFound, repo)
	}
	key := repo + "/" + name
	if _, ok := f.snapshots[key]; ok {
		return &cluster.Error{Op: cluster.OpCreateSnapshot, Status: http.StatusBadRequest,
			Type: "invalid_snapshot_name_exception", Reason: "snapshot with the same name already exists"}
	}

	state := make(map[string]fakeIndex, len(indices))
	for _, n := range indices {
		idx, ok := f.indices[n]
		if !ok {
			return notFound(cluster.OpCreateSnapshot, cluster.ErrIndexNotFound, n)
		}
		docs := make(map[string]cluster.Document, len(idx.docs))
		for id, d := range idx.docs {
			docs[id] = copyDoc(d)
		}
		state[n] = fakeIndex{props: idx.props.Clone(), docs: docs}
	}
	f.snapshots[key] = &fakeSnapshot{
		info:  cluster.SnapshotInfo{Name: name, State: cluster.SnapshotInProgress, Indices: append([]string(nil), indices...)},
		state: state,
	}
	return nil
}

// GetSnapshot advances the snapshot by one poll.
func (f *Fake) GetSnapshot(_ context.Context, repo, name string) (cluster.SnapshotInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter(cluster.OpGetSnapshot); err != nil {
		return cluster.SnapshotInfo{}, err
	}
	s, ok := f.snapshots[repo+"/"+name]
	if !ok {
		return cluster.SnapshotInfo{}, notFound(cluster.OpGetSnapshot, cluster.ErrSnapshotNotFound, name)
	}
	if !s.info.State.Terminal() {
		s.polls++
		if f.SnapshotPolls >= 0 && s.polls >= f.SnapshotPolls {
			s.info.State = f.SnapshotFinalState
		}
	}
	return s.info, nil
}

// RestoreSnapshot recreates one snapshotted index under RenameTo.
func (f *Fake) RestoreSnapshot(_ context.Context, req cluster.RestoreRequest) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter(cluster.OpRestoreSnapshot); err != nil {
		return err
	}
	s, ok := f.snapshots[req.Repository+"/"+req.Snapshot]
	if !ok {
		return notFound(cluster.OpRestoreSnapshot, cluster.ErrSnapshotNotFound, req.Snapshot)
	}
	src, ok := s.state[req.Index]
	if !ok {
		return notFound(cluster.OpRestoreSnapshot, cluster.ErrIndexNotFound, req.Index)
	}
	dest := req.RenameTo
	if dest == "" {
		dest = req.Index
	}
	if _, exists := f.indices[dest]; exists {
		return &cluster.Error{Op: cluster.OpRestoreSnapshot, Status: http.StatusInternalServerError,
			Type: "snapshot_restore_exception", Reason: "an index with the same name already exists", Err: cluster.ErrIndexExists}
	}
	docs := make(map[string]cluster.Document, len(src.docs))
	for id, d := range src.docs {
		docs[id] = copyDoc(d)
	}
	f.indices[dest] = &fakeIndex{props: src.props.Clone(), settings: map[string]any{}, docs: docs}
	return nil
}

// SampleIDs returns a seeded, deterministic sample. It reads "size" and the
// function_score random_score seed from body; filters are ignored.
func (f *Fake) SampleIDs(_ context.Context, name string, body map[string]any) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter(cluster.OpSearch); err != nil {
		return nil, err
	}
	idx, _, ok := f.resolveLocked(name)
	if !ok {
		return nil, notFound(cluster.OpSearch, cluster.ErrIndexNotFound, name)
	}

	size := int(toInt64(body["size"]))
	seed := uint64(toInt64(dig(body, "query", "function_score", "random_score", "seed"))) //nolint:gosec // test seed

	ids := sortedIDs(idx.docs)
	r := rand.New(rand.NewPCG(seed, seed))
	r.Shuffle(len(ids), func(i, j int) { ids[i], ids[j] = ids[j], ids[i] })
	if size >= 0 && size < len(ids) {
		ids = ids[:size]
	}
	return ids, nil
}

// MultiGet returns copies of the found documents.
func (f *Fake) MultiGet(_ context.Context, name string, ids []string) (map[string]cluster.Document, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter(cluster.OpMultiGet); err != nil {
		return nil, err
	}
	idx, _, ok := f.resolveLocked(name)
	if !ok {
		return nil, notFound(cluster.OpMultiGet, cluster.ErrIndexNotFound, name)
	}
	out := make(map[string]cluster.Document, len(ids))
	for _, id := range ids {
		if d, ok := idx.docs[id]; ok {
			out[id] = copyDoc(d)
		}
	}
	return out, nil
}

func sortedIDs(docs map[string]cluster.Document) []string {
	ids := make([]string, 0, len(docs))
	for id := range docs {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func copyDoc(d cluster.Document) cluster.Document {
	out := make(cluster.Document, len(d))
	for k, v := range d {
		out[k] = v
	}
	return out
}

func dig(m map[string]any, path ...string) any {
	var cur any = m
	for _, p := range path {
		mm, ok := cur.(map[string]any)
		if !ok {
			return nil
		}
		cur = mm[p]
	}
	return cur
}

func toInt64(v any) int64 {
	switch n := v.(type) {
	case int:
		return int64(n)
	case int64:
		return n
	case float64:
		return int64(n)
	}
	return 0
}
