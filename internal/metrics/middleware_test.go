package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMiddleware_LabelsByRoutePattern(t *testing.T) {
	r := chi.NewRouter()
	r.Use(Middleware())
	r.Get("/migrations/{id}", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("ok"))
	})

	for _, id := range []string{"a", "b", "c"} {
		rr := httptest.NewRecorder()
		r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/migrations/"+id, http.NoBody))
		if rr.Code != http.StatusOK {
			t.Fatalf("status = %d", rr.Code)
		}
	}

	if got := testutil.ToFloat64(httpRequestsTotal.WithLabelValues("GET", "/migrations/{id}", "200")); got < 3 {
		t.Errorf("requests_total = %f, want >= 3", got)
	}
	if testutil.CollectAndCount(httpRequestDuration) == 0 {
		t.Error("expected http_request_duration_seconds observations")
	}
}

func TestMiddleware_StatusCodes(t *testing.T) {
	r := chi.NewRouter()
	r.Use(Middleware())
	r.Post("/migrations", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusAccepted)
	})
	r.Post("/migrations/{id}/rollback", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusConflict)
		w.WriteHeader(http.StatusInternalServerError) // ignored: first status wins
	})

	tests := []struct {
		path, pattern, status string
	}{
		{"/migrations", "/migrations", "202"},
		{"/migrations/x/rollback", "/migrations/{id}/rollback", "409"},
	}
	for _, tc := range tests {
		t.Run(tc.path, func(t *testing.T) {
			r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, tc.path, http.NoBody))
			if got := testutil.ToFloat64(httpRequestsTotal.WithLabelValues("POST", tc.pattern, tc.status)); got < 1 {
				t.Errorf("requests_total{%s,%s} = %f", tc.pattern, tc.status, got)
			}
		})
	}
}

func TestNormalizePath(t *testing.T) {
	if got := normalizePath(""); got != "unknown" {
		t.Errorf("normalizePath(\"\") = %q", got)
	}
	if got := normalizePath("/health"); got != "/health" {
		t.Errorf("normalizePath(/health) = %q", got)
	}
}

func TestRegisterMigrationMetrics_Idempotent(t *testing.T) {
	RegisterMigrationMetrics()
	RegisterMigrationMetrics()

	StageDuration.WithLabelValues("COPYING", "succeeded").Observe(1.5)
	if testutil.CollectAndCount(StageDuration) == 0 {
		t.Error("expected stage duration observations")
	}
}
