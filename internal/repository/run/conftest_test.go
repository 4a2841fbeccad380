package run

import (
	"context"
	"testing"
	"time"

	"github.com/kailas-cloud/vecshift/internal/domain/index"
	"github.com/kailas-cloud/vecshift/internal/domain/migration"
)

// mockStore implements the consumer interface for tests.
type mockStore struct {
	hsetFn       func(ctx context.Context, key string, fields map[string]string) error
	hgetAllFn    func(ctx context.Context, key string) (map[string]string, error)
	scanFn       func(ctx context.Context, pattern string) ([]string, error)
	getFn        func(ctx context.Context, key string) ([]byte, error)
	setNXFn      func(ctx context.Context, key, value string, ttl time.Duration) (bool, error)
	delIfEqualFn func(ctx context.Context, key, value string) (bool, error)
}

func (m *mockStore) HSet(ctx context.Context, key string, fields map[string]string) error {
	if m.hsetFn != nil {
		return m.hsetFn(ctx, key, fields)
	}
	return nil
}

func (m *mockStore) HGetAll(ctx context.Context, key string) (map[string]string, error) {
	if m.hgetAllFn != nil {
		return m.hgetAllFn(ctx, key)
	}
	return map[string]string{}, nil
}

func (m *mockStore) Scan(ctx context.Context, pattern string) ([]string, error) {
	if m.scanFn != nil {
		return m.scanFn(ctx, pattern)
	}
	return nil, nil
}

func (m *mockStore) Get(ctx context.Context, key string) ([]byte, error) {
	if m.getFn != nil {
		return m.getFn(ctx, key)
	}
	return nil, nil
}

func (m *mockStore) SetNX(ctx context.Context, key, value string, ttl time.Duration) (bool, error) {
	if m.setNXFn != nil {
		return m.setNXFn(ctx, key, value, ttl)
	}
	return true, nil
}

func (m *mockStore) DelIfEqual(ctx context.Context, key, value string) (bool, error) {
	if m.delIfEqualFn != nil {
		return m.delIfEqualFn(ctx, key, value)
	}
	return true, nil
}

func newTestRepo(t *testing.T) (*Repo, *mockStore) {
	t.Helper()
	ms := &mockStore{}
	return New(ms), ms
}

func f64(v float64) *float64 { return &v }

func testRun(t *testing.T, id string) *migration.Run {
	t.Helper()
	plan, err := migration.NewPlan(migration.PlanParams{
		Source: "docs-v1",
		Target: "docs-v2",
		Alias:  "docs",
		VectorFields: []index.VectorField{
			{Name: "embedding", Dimension: 384, SpaceType: index.SpaceCosine},
		},
		CountTolerance:       f64(0.001),
		SampleSize:           100,
		SampleMatchThreshold: f64(0.95),
		SnapshotRepository:   "backups",
	})
	if err != nil {
		t.Fatalf("NewPlan: %v", err)
	}
	return migration.NewRun(id, plan, time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
}
