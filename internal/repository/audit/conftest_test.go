package audit

import (
	"context"
	"testing"
	"time"

	"github.com/kailas-cloud/vecshift/internal/db"
	domaudit "github.com/kailas-cloud/vecshift/internal/domain/audit"
)

// mockStreamStore implements the consumer interface for tests.
type mockStreamStore struct {
	xaddFn   func(ctx context.Context, key string, fields map[string]string) (string, error)
	xrangeFn func(ctx context.Context, key, start, end string, count int64) ([]db.StreamEntry, error)
}

func (m *mockStreamStore) XAdd(ctx context.Context, key string, fields map[string]string) (string, error) {
	if m.xaddFn != nil {
		return m.xaddFn(ctx, key, fields)
	}
	return "1-0", nil
}

func (m *mockStreamStore) XRange(ctx context.Context, key, start, end string, count int64) ([]db.StreamEntry, error) {
	if m.xrangeFn != nil {
		return m.xrangeFn(ctx, key, start, end, count)
	}
	return nil, nil
}

func newTestRedisRepo(t *testing.T) (*RedisRepo, *mockStreamStore) {
	t.Helper()
	ms := &mockStreamStore{}
	return NewRedis(ms), ms
}

var testTS = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func testEntry(stage string, outcome domaudit.Outcome) domaudit.Entry {
	return domaudit.Entry{
		RunID:     "run-1",
		Stage:     stage,
		Outcome:   outcome,
		Detail:    stage + " " + string(outcome),
		Timestamp: testTS,
	}
}
