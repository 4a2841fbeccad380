package audit

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	domaudit "github.com/kailas-cloud/vecshift/internal/domain/audit"
)

// --- Mocks ---

type memRepo struct {
	mu      sync.Mutex
	entries []domaudit.Entry
	err     error
	ctxErr  error
}

func (m *memRepo) Append(ctx context.Context, e domaudit.Entry) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ctxErr = ctx.Err()
	if m.err != nil {
		return "", m.err
	}
	m.entries = append(m.entries, e)
	return "id", nil
}

func (m *memRepo) List(_ context.Context, runID string, limit int) ([]domaudit.Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	var out []domaudit.Entry
	for _, e := range m.entries {
		if e.RunID == runID && (limit <= 0 || len(out) < limit) {
			out = append(out, e)
		}
	}
	return out, nil
}

var fixedNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func newTestRecorder() (*Recorder, *memRepo) {
	repo := &memRepo{}
	return New(repo, nil).WithClock(func() time.Time { return fixedNow }), repo
}

// --- Tests ---

func TestRecord_StampsTimestamp(t *testing.T) {
	rec, repo := newTestRecorder()
	ok := rec.Step(context.Background(), "run-1", "COPYING", domaudit.OutcomeSucceeded, "copied", map[string]string{"copied": "10"})
	if !ok {
		t.Fatal("expected entry to be persisted")
	}
	if len(repo.entries) != 1 || !repo.entries[0].Timestamp.Equal(fixedNow) {
		t.Fatalf("entries = %+v", repo.entries)
	}
}

func TestRecord_StoreFailureIsSwallowed(t *testing.T) {
	rec, repo := newTestRecorder()
	repo.err = errors.New("redis down")
	if rec.Step(context.Background(), "run-1", "VALIDATING", domaudit.OutcomeFailed, "boom", nil) {
		t.Fatal("expected false when store fails")
	}
}

func TestRecord_SurvivesCanceledContext(t *testing.T) {
	rec, repo := newTestRecorder()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if !rec.Step(ctx, "run-1", "COPYING", domaudit.OutcomeFailed, "canceled", nil) {
		t.Fatal("expected entry to be persisted")
	}
	if repo.ctxErr != nil {
		t.Errorf("store saw canceled context: %v", repo.ctxErr)
	}
}

func TestRetryObserver_RecordsRetried(t *testing.T) {
	rec, repo := newTestRecorder()
	obs := rec.RetryObserver(context.Background(), "run-1", "COPYING")
	obs("cluster.get_task", 2, 400*time.Millisecond, errors.New("503"))

	if len(repo.entries) != 1 {
		t.Fatalf("entries = %d", len(repo.entries))
	}
	e := repo.entries[0]
	if e.Outcome != domaudit.OutcomeRetried || e.Stage != "COPYING" {
		t.Errorf("entry = %+v", e)
	}
	if e.Fields["op"] != "cluster.get_task" || e.Fields["attempt"] != "2" || e.Fields["delay"] != "400ms" {
		t.Errorf("fields = %v", e.Fields)
	}
}

func TestList(t *testing.T) {
	rec, repo := newTestRecorder()
	ctx := context.Background()
	rec.Step(ctx, "run-1", "INIT", domaudit.OutcomeInfo, "", nil)
	rec.Step(ctx, "run-2", "INIT", domaudit.OutcomeInfo, "", nil)
	rec.Step(ctx, "run-1", "VALIDATING", domaudit.OutcomeAttempted, "", nil)

	got, err := rec.List(ctx, "run-1", 0)
	if err != nil || len(got) != 2 {
		t.Fatalf("List = %v, %v", got, err)
	}

	repo.err = errors.New("down")
	if _, err := rec.List(ctx, "run-1", 0); err == nil {
		t.Fatal("expected error")
	}
}
