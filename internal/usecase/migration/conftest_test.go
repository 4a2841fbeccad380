package migration

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/kailas-cloud/vecshift/internal/cluster"
	"github.com/kailas-cloud/vecshift/internal/cluster/clustertest"
	domaudit "github.com/kailas-cloud/vecshift/internal/domain/audit"
	"github.com/kailas-cloud/vecshift/internal/domain/index"
	dommig "github.com/kailas-cloud/vecshift/internal/domain/migration"
	runrepo "github.com/kailas-cloud/vecshift/internal/repository/run"
	auditsvc "github.com/kailas-cloud/vecshift/internal/usecase/audit"
	"github.com/kailas-cloud/vecshift/internal/usecase/cutover"
	"github.com/kailas-cloud/vecshift/internal/usecase/preflight"
	"github.com/kailas-cloud/vecshift/internal/usecase/provision"
	"github.com/kailas-cloud/vecshift/internal/usecase/reindex"
	"github.com/kailas-cloud/vecshift/internal/usecase/snapshot"
	"github.com/kailas-cloud/vecshift/internal/usecase/verify"
)

var embedding = index.VectorField{Name: "embedding", Dimension: 4, SpaceType: index.SpaceCosine}

func f64(v float64) *float64 { return &v }

// memAudit is an in-memory audit repository.
type memAudit struct {
	mu      sync.Mutex
	entries []domaudit.Entry
}

func (m *memAudit) Append(_ context.Context, e domaudit.Entry) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = append(m.entries, e)
	return strconv.Itoa(len(m.entries)), nil
}

func (m *memAudit) List(_ context.Context, runID string, limit int) ([]domaudit.Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domaudit.Entry
	for _, e := range m.entries {
		if e.RunID == runID {
			out = append(out, e)
		}
	}
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// index returns the position of the first entry with stage and outcome, or -1.
func (m *memAudit) index(stage string, outcome domaudit.Outcome) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, e := range m.entries {
		if e.Stage == stage && e.Outcome == outcome {
			return i
		}
	}
	return -1
}

// sourceCluster builds a healthy cluster with n documents behind alias "docs".
func sourceCluster(n int) *clustertest.Fake {
	f := clustertest.New()
	f.Disks = []cluster.NodeDisk{{Node: "n1", UsedBytes: 30, TotalBytes: 100}}
	f.Heaps = []cluster.NodeHeap{{Node: "n1", UsedPercent: 40}}
	docs := make(map[string]cluster.Document, n)
	for i := range n {
		docs[fmt.Sprintf("doc-%04d", i)] = cluster.Document{"title": fmt.Sprintf("title %d", i), "views": float64(i)}
	}
	f.AddIndex("docs-v1", index.Properties{
		"title": map[string]any{"type": "text"},
		"views": map[string]any{"type": "long"},
	}, docs)
	f.SetAlias("docs", "docs-v1")
	f.AddRepository("backups")
	return f
}

func testPlan(t *testing.T, tolerance float64) *dommig.Plan {
	t.Helper()
	plan, err := dommig.NewPlan(dommig.PlanParams{
		Source:               "docs-v1",
		Target:               "docs-v2",
		Alias:                "docs",
		VectorFields:         []index.VectorField{embedding},
		Settings:             map[string]any{"index.refresh_interval": "1s"},
		CountTolerance:       f64(tolerance),
		SampleSize:           20,
		SampleMatchThreshold: f64(0.95),
		SnapshotRepository:   "backups",
	})
	if err != nil {
		t.Fatalf("NewPlan: %v", err)
	}
	return plan
}

type harness struct {
	cluster *clustertest.Fake
	runs    *runrepo.Memory
	audit   *memAudit
	stages  Stages
	svc     *Service
}

func newHarness(f *clustertest.Fake) *harness {
	h := &harness{cluster: f, runs: runrepo.NewMemory(), audit: &memAudit{}}
	h.stages = Stages{
		Preflight: preflight.New(f, preflight.DefaultLimits()),
		Snapshot:  snapshot.New(f, snapshot.Config{PollInterval: time.Millisecond, Timeout: time.Second}),
		Provision: provision.New(f),
		Copy: reindex.New(f, reindex.Config{
			PollInterval:    time.Millisecond,
			MaxPollAttempts: 1000,
			MaxWait:         5 * time.Second,
			MaxPollFailures: 3,
		}),
		Verify: verify.New(f, verify.Config{}),
		Alias:  cutover.New(f, 0),
	}
	h.build()
	return h
}

// build (re)creates the service from the current stages.
func (h *harness) build() {
	seq := 0
	h.svc = New(h.stages, h.runs, auditsvc.New(h.audit, nil), nil).
		WithIDGenerator(func() string {
			seq++
			return "run-" + strconv.Itoa(seq)
		})
}

func states(run *dommig.Run) []dommig.State {
	out := make([]dommig.State, 0, len(run.Stages))
	for _, r := range run.Stages {
		out = append(out, r.State)
	}
	return out
}

// brokenSwitcher fails cutover and, optionally, rollback.
type brokenSwitcher struct {
	cutoverErr  error
	rollbackErr error
}

func (b brokenSwitcher) Cutover(context.Context, string, string, string) error { return b.cutoverErr }

func (b brokenSwitcher) Rollback(context.Context, string, string, string) (cutover.RollbackResult, error) {
	return cutover.RollbackResult{}, b.rollbackErr
}

func (b brokenSwitcher) Confirm(context.Context, string, string) error { return b.rollbackErr }
