package opensearch

import (
	"context"
	"errors"
	"net/http"
	"sync/atomic"
	"testing"

	"github.com/kailas-cloud/vecshift/internal/cluster"
)

func TestRepositoryExists(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/_snapshot/backups" {
			writeJSON(w, 200, map[string]any{"backups": map[string]any{"type": "fs"}})
			return
		}
		writeJSON(w, 404, map[string]any{
			"error":  map[string]any{"type": "repository_missing_exception", "reason": "[nope] missing"},
			"status": 404,
		})
	}))

	ok, err := c.RepositoryExists(context.Background(), "backups")
	if err != nil || !ok {
		t.Fatalf("RepositoryExists(backups) = %v, %v", ok, err)
	}
	ok, err = c.RepositoryExists(context.Background(), "nope")
	if err != nil || ok {
		t.Fatalf("RepositoryExists(nope) = %v, %v", ok, err)
	}
}

func TestCreateSnapshot(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPut || r.URL.Path != "/_snapshot/backups/snap-1" {
			t.Errorf("unexpected %s %s", r.Method, r.URL.Path)
		}
		if r.URL.Query().Get("wait_for_completion") != "false" {
			t.Error("snapshot must be non-blocking")
		}
		body := decodeBody(t, r)
		if body["indices"] != "docs-v1" || body["include_global_state"] != false {
			t.Errorf("unexpected body: %v", body)
		}
		writeJSON(w, 200, map[string]any{"accepted": true})
	}))

	if err := c.CreateSnapshot(context.Background(), "backups", "snap-1", []string{"docs-v1"}); err != nil {
		t.Fatalf("CreateSnapshot: %v", err)
	}
}

func TestCreateSnapshot_AmbiguousFailureFindsSnapshot(t *testing.T) {
	var puts atomic.Int32
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPut {
			puts.Add(1)
			writeJSON(w, http.StatusGatewayTimeout, map[string]any{"error": "gateway timeout", "status": 504})
			return
		}
		writeJSON(w, 200, map[string]any{"snapshots": []any{
			map[string]any{"snapshot": "snap-1", "state": "IN_PROGRESS", "indices": []any{"docs-v1"}},
		}})
	}))

	if err := c.CreateSnapshot(context.Background(), "backups", "snap-1", []string{"docs-v1"}); err != nil {
		t.Fatalf("CreateSnapshot: %v", err)
	}
	if n := puts.Load(); n != 1 {
		t.Errorf("snapshot puts = %d, want 1", n)
	}
}

func TestCreateSnapshot_AmbiguousFailureNoSnapshot(t *testing.T) {
	var puts atomic.Int32
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPut {
			puts.Add(1)
			writeJSON(w, http.StatusGatewayTimeout, map[string]any{"error": "gateway timeout", "status": 504})
			return
		}
		writeJSON(w, 404, map[string]any{
			"error":  map[string]any{"type": "snapshot_missing_exception", "reason": "[backups:snap-1] is missing"},
			"status": 404,
		})
	}))

	err := c.CreateSnapshot(context.Background(), "backups", "snap-1", []string{"docs-v1"})
	var ce *cluster.Error
	if !errors.As(err, &ce) || ce.Status != http.StatusGatewayTimeout {
		t.Fatalf("expected the 504, got %v", err)
	}
	if n := puts.Load(); n != 1 {
		t.Errorf("snapshot puts = %d, want 1", n)
	}
}

func TestGetSnapshot(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/_snapshot/backups/snap-1" {
			writeJSON(w, 200, map[string]any{"snapshots": []any{
				map[string]any{"snapshot": "snap-1", "state": "SUCCESS", "indices": []any{"docs-v1"}},
			}})
			return
		}
		writeJSON(w, 404, map[string]any{
			"error":  map[string]any{"type": "snapshot_missing_exception", "reason": "missing"},
			"status": 404,
		})
	}))

	info, err := c.GetSnapshot(context.Background(), "backups", "snap-1")
	if err != nil {
		t.Fatalf("GetSnapshot: %v", err)
	}
	if info.State != cluster.SnapshotSuccess || !info.State.Terminal() {
		t.Errorf("unexpected info: %+v", info)
	}

	_, err = c.GetSnapshot(context.Background(), "backups", "snap-2")
	if !errors.Is(err, cluster.ErrSnapshotNotFound) {
		t.Errorf("expected ErrSnapshotNotFound, got %v", err)
	}
}

func TestRestoreSnapshot(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/_snapshot/backups/snap-1/_restore" {
			t.Errorf("unexpected %s %s", r.Method, r.URL.Path)
		}
		body := decodeBody(t, r)
		if body["indices"] != "docs-v1" || body["rename_replacement"] != "docs-v1-restored" {
			t.Errorf("unexpected body: %v", body)
		}
		if body["rename_pattern"] != `^docs-v1$` || body["include_aliases"] != false {
			t.Errorf("unexpected body: %v", body)
		}
		writeJSON(w, 200, map[string]any{"accepted": true})
	}))

	err := c.RestoreSnapshot(context.Background(), cluster.RestoreRequest{
		Repository: "backups", Snapshot: "snap-1", Index: "docs-v1", RenameTo: "docs-v1-restored",
	})
	if err != nil {
		t.Fatalf("RestoreSnapshot: %v", err)
	}
}
