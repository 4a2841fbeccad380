package opensearch

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/kailas-cloud/vecshift/internal/cluster"
	"github.com/kailas-cloud/vecshift/internal/retry"
)

func newTestClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	c, err := NewClient(Config{
		Addrs:          []string{srv.URL},
		RequestTimeout: 2 * time.Second,
		Retry:          retry.Policy{Attempts: 3, BaseDelay: time.Millisecond, MaxDelay: 2 * time.Millisecond, Multiplier: 2},
	}, nil)
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	return c
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func decodeBody(t *testing.T, r *http.Request) map[string]any {
	t.Helper()
	data, err := io.ReadAll(r.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		t.Fatalf("decode body %q: %v", data, err)
	}
	return m
}

func TestNewClient_RequiresAddrs(t *testing.T) {
	if _, err := NewClient(Config{}, nil); err == nil {
		t.Fatal("expected error for empty addrs")
	}
}

func TestPing(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			t.Errorf("path = %s", r.URL.Path)
		}
		writeJSON(w, 200, map[string]any{
			"cluster_name": "docs",
			"version":      map[string]any{"number": "2.13.0", "distribution": "opensearch"},
		})
	}))

	info, err := c.Ping(context.Background())
	if err != nil {
		t.Fatalf("Ping: %v", err)
	}
	if info.ClusterName != "docs" || info.Version != "2.13.0" || info.Distribution != "opensearch" {
		t.Errorf("unexpected info: %+v", info)
	}
}

func TestHealth_RetriesTransient(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) < 3 {
			writeJSON(w, 503, map[string]any{"error": map[string]any{"type": "cluster_block_exception", "reason": "busy"}, "status": 503})
			return
		}
		writeJSON(w, 200, map[string]any{"cluster_name": "docs", "status": "yellow", "number_of_nodes": 3})
	}))

	h, err := c.Health(context.Background())
	if err != nil {
		t.Fatalf("Health: %v", err)
	}
	if h.Status != cluster.StatusYellow || h.NumberOfNodes != 3 {
		t.Errorf("unexpected health: %+v", h)
	}
	if calls.Load() != 3 {
		t.Errorf("calls = %d, want 3", calls.Load())
	}
}

func TestHealth_ExhaustsRetries(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		writeJSON(w, 429, map[string]any{"error": "too many requests", "status": 429})
	}))

	_, err := c.Health(context.Background())
	var ex *retry.ExhaustedError
	if !errors.As(err, &ex) {
		t.Fatalf("expected ExhaustedError, got %v", err)
	}
	var ce *cluster.Error
	if !errors.As(err, &ce) || ce.Status != 429 || ce.Reason != "too many requests" {
		t.Errorf("expected wrapped 429 with string reason, got %+v", ce)
	}
	if calls.Load() != 3 {
		t.Errorf("calls = %d, want 3", calls.Load())
	}
}

func TestCreateIndex_NotRetriedOnBadRequest(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		writeJSON(w, 400, map[string]any{
			"error":  map[string]any{"type": "resource_already_exists_exception", "reason": "index [docs-v2] already exists"},
			"status": 400,
		})
	}))

	err := c.CreateIndex(context.Background(), "docs-v2", cluster.IndexBody{})
	if !errors.Is(err, cluster.ErrIndexExists) {
		t.Fatalf("expected ErrIndexExists, got %v", err)
	}
	if calls.Load() != 1 {
		t.Errorf("calls = %d, want 1", calls.Load())
	}
}

func TestDiskUsage(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/_cat/allocation" || r.URL.Query().Get("bytes") != "b" || r.URL.Query().Get("format") != "json" {
			t.Errorf("unexpected request: %s", r.URL)
		}
		writeJSON(w, 200, []map[string]any{
			{"node": "n1", "disk.used": "600", "disk.total": "1000"},
			{"node": "UNASSIGNED", "disk.used": nil, "disk.total": nil},
		})
	}))

	disks, err := c.DiskUsage(context.Background())
	if err != nil {
		t.Fatalf("DiskUsage: %v", err)
	}
	if len(disks) != 1 || disks[0].Node != "n1" || disks[0].Percent() != 60 {
		t.Errorf("unexpected disks: %+v", disks)
	}
}

func TestHeapUsage(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, 200, map[string]any{"nodes": map[string]any{
			"abc": map[string]any{"name": "n2", "jvm": map[string]any{"mem": map[string]any{"heap_used_percent": 71}}},
			"def": map[string]any{"name": "n1", "jvm": map[string]any{"mem": map[string]any{"heap_used_percent": 40}}},
		}})
	}))

	heaps, err := c.HeapUsage(context.Background())
	if err != nil {
		t.Fatalf("HeapUsage: %v", err)
	}
	if len(heaps) != 2 || heaps[0].Node != "n1" || heaps[1].UsedPercent != 71 {
		t.Errorf("unexpected heaps: %+v", heaps)
	}
}
