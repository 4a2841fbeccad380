package reindex

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/kailas-cloud/vecshift/internal/cluster"
	"github.com/kailas-cloud/vecshift/internal/cluster/clustertest"
	"github.com/kailas-cloud/vecshift/internal/domain/index"
)

func fastConfig() Config {
	return Config{PollInterval: time.Millisecond, MaxPollAttempts: 50, MaxWait: time.Second, MaxPollFailures: 3}
}

func newFake() *clustertest.Fake {
	f := clustertest.New()
	f.AddIndex("docs-v1", index.Properties{}, map[string]cluster.Document{
		"1": {"title": "a", "embedding": []any{0.1}},
		"2": {"title": "b"},
		"3": {"title": "c"},
		"4": {"title": "d"},
	})
	f.AddIndex("docs-v2", index.Properties{}, nil)
	return f
}

func unavailable() error {
	return &cluster.Error{Op: cluster.OpGetTask, Status: http.StatusServiceUnavailable, Reason: "busy"}
}

func TestWait_CompletesWithProgress(t *testing.T) {
	f := newFake()
	f.TaskPolls = 4
	svc := New(f, fastConfig())
	ctx := context.Background()

	taskID, err := svc.Start(ctx, "docs-v1", "docs-v2", []string{"embedding"})
	if err != nil {
		t.Fatal(err)
	}

	var reports []Progress
	st, err := svc.Wait(ctx, taskID, func(p Progress) { reports = append(reports, p) })
	if err != nil {
		t.Fatalf("Wait: %v", err)
	}
	if !st.Completed || st.Copied() != 4 {
		t.Errorf("status = %+v", st)
	}
	if len(reports) != 4 {
		t.Fatalf("progress reports = %d, want 4", len(reports))
	}
	for i := 1; i < len(reports); i++ {
		if reports[i].Copied < reports[i-1].Copied {
			t.Errorf("progress went backwards: %+v", reports)
		}
	}
	if r := reports[len(reports)-1].Ratio(); r != 1 {
		t.Errorf("final ratio = %v", r)
	}
	if f.DocCount("docs-v2") != 4 {
		t.Errorf("target count = %d", f.DocCount("docs-v2"))
	}
}

func TestWait_TaskError(t *testing.T) {
	f := newFake()
	f.TaskError = "search_phase_execution_exception"
	svc := New(f, fastConfig())
	taskID, _ := svc.Start(context.Background(), "docs-v1", "docs-v2", nil)

	_, err := svc.Wait(context.Background(), taskID, nil)
	if !errors.Is(err, ErrTaskFailed) {
		t.Fatalf("expected ErrTaskFailed, got %v", err)
	}
}

func TestWait_BulkFailures(t *testing.T) {
	f := newFake()
	f.TaskFailures = []string{"3: mapper_parsing_exception"}
	svc := New(f, fastConfig())
	taskID, _ := svc.Start(context.Background(), "docs-v1", "docs-v2", nil)

	_, err := svc.Wait(context.Background(), taskID, nil)
	if !errors.Is(err, ErrTaskFailed) {
		t.Fatalf("expected ErrTaskFailed, got %v", err)
	}
}

func TestWait_AttemptBudget(t *testing.T) {
	f := newFake()
	f.TaskPolls = -1
	cfg := fastConfig()
	cfg.MaxPollAttempts = 3
	svc := New(f, cfg)
	taskID, _ := svc.Start(context.Background(), "docs-v1", "docs-v2", nil)

	_, err := svc.Wait(context.Background(), taskID, nil)
	if !errors.Is(err, ErrPollAttempts) {
		t.Fatalf("expected ErrPollAttempts, got %v", err)
	}
	if n := f.CallCount(cluster.OpGetTask); n != 3 {
		t.Errorf("polls = %d, want 3", n)
	}
}

func TestWait_MaxWait(t *testing.T) {
	f := newFake()
	f.TaskPolls = -1
	cfg := fastConfig()
	cfg.MaxPollAttempts = 1 << 20
	cfg.MaxWait = 20 * time.Millisecond
	svc := New(f, cfg)
	taskID, _ := svc.Start(context.Background(), "docs-v1", "docs-v2", nil)

	_, err := svc.Wait(context.Background(), taskID, nil)
	if !errors.Is(err, ErrMaxWait) {
		t.Fatalf("expected ErrMaxWait, got %v", err)
	}
}

func TestWait_TransientPollFailuresRecover(t *testing.T) {
	f := newFake()
	f.TaskPolls = 1
	f.Fail(cluster.OpGetTask, unavailable(), 2)
	svc := New(f, fastConfig())
	taskID, _ := svc.Start(context.Background(), "docs-v1", "docs-v2", nil)

	st, err := svc.Wait(context.Background(), taskID, nil)
	if err != nil {
		t.Fatalf("expected recovery, got %v", err)
	}
	if !st.Completed {
		t.Error("task should be complete")
	}
}

func TestWait_ConsecutivePollFailures(t *testing.T) {
	f := newFake()
	f.Fail(cluster.OpGetTask, unavailable(), -1)
	svc := New(f, fastConfig())
	taskID, _ := svc.Start(context.Background(), "docs-v1", "docs-v2", nil)

	_, err := svc.Wait(context.Background(), taskID, nil)
	if !errors.Is(err, ErrPollUnavailable) {
		t.Fatalf("expected ErrPollUnavailable, got %v", err)
	}
	if n := f.CallCount(cluster.OpGetTask); n != 3 {
		t.Errorf("polls = %d, want 3", n)
	}
}

func TestWait_FatalPollError(t *testing.T) {
	f := newFake()
	_, err := New(f, fastConfig()).Wait(context.Background(), "fake:999", nil)
	if !errors.Is(err, cluster.ErrTaskNotFound) {
		t.Fatalf("expected ErrTaskNotFound, got %v", err)
	}
	if n := f.CallCount(cluster.OpGetTask); n != 1 {
		t.Errorf("non-transient error must not be retried; polls = %d", n)
	}
}

func TestWait_Canceled(t *testing.T) {
	f := newFake()
	f.TaskPolls = -1
	svc := New(f, fastConfig())
	taskID, _ := svc.Start(context.Background(), "docs-v1", "docs-v2", nil)

	ctx, cancel := context.WithCancel(context.Background())
	polls := 0
	_, err := svc.Wait(ctx, taskID, func(Progress) {
		polls++
		if polls == 2 {
			cancel()
		}
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestProgress_RateAndETA(t *testing.T) {
	svc := New(clustertest.New(), fastConfig())
	start := time.Unix(0, 0)
	svc.now = func() time.Time { return start.Add(10 * time.Second) }

	p := svc.progress("t", 1, cluster.TaskStatus{Total: 1000, Created: 200, Updated: 50}, start)
	if p.Copied != 250 || p.DocsPerSec != 25 {
		t.Errorf("progress = %+v", p)
	}
	if p.ETA != 30*time.Second {
		t.Errorf("ETA = %v, want 30s", p.ETA)
	}
}

func TestStart_PassesCopySettings(t *testing.T) {
	f := newFake()
	svc := New(f, Config{Slices: "4", RequestsPerSecond: 500, BatchSize: 200})
	if _, err := svc.Start(context.Background(), "docs-v1", "missing", nil); !errors.Is(err, cluster.ErrIndexNotFound) {
		t.Fatalf("expected ErrIndexNotFound, got %v", err)
	}
	if svc.cfg.Slices != "4" || svc.cfg.BatchSize != 200 || svc.cfg.PollInterval != DefaultConfig().PollInterval {
		t.Errorf("config = %+v", svc.cfg)
	}
}

func TestCancel_StopsTask(t *testing.T) {
	f := newFake()
	f.TaskPolls = -1
	svc := New(f, fastConfig())
	ctx := context.Background()
	taskID, _ := svc.Start(ctx, "docs-v1", "docs-v2", nil)

	if err := svc.Cancel(ctx, taskID); err != nil {
		t.Fatalf("Cancel: %v", err)
	}
	if !f.TaskCanceled(taskID) {
		t.Error("task still running")
	}
	if f.DocCount("docs-v2") != 0 {
		t.Errorf("target got %d docs after cancel", f.DocCount("docs-v2"))
	}
}

func TestCancel_UnknownTaskIsStopped(t *testing.T) {
	svc := New(newFake(), fastConfig())
	if err := svc.Cancel(context.Background(), "fake:404"); err != nil {
		t.Fatalf("Cancel: %v", err)
	}
}

func TestCancel_Error(t *testing.T) {
	f := newFake()
	f.Fail(cluster.OpCancelTask, errors.New("node disconnected"), 1)
	svc := New(f, fastConfig())

	if err := svc.Cancel(context.Background(), "fake:1"); err == nil {
		t.Fatal("expected error")
	}
}
