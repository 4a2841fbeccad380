package chi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"

	domaudit "github.com/kailas-cloud/vecshift/internal/domain/audit"
	"github.com/kailas-cloud/vecshift/internal/domain/index"
	dommig "github.com/kailas-cloud/vecshift/internal/domain/migration"
	"github.com/kailas-cloud/vecshift/internal/usecase/cutover"
	healthuc "github.com/kailas-cloud/vecshift/internal/usecase/health"
)

// --- mocks ---

type mockMigrations struct {
	runs        map[string]*dommig.Run
	entries     []domaudit.Entry
	submitted   *dommig.Plan
	submitErr   error
	rollbackRes cutover.RollbackResult
	rollbackErr error
	cancelErr   error
	auditLimit  int
}

func newMockMigrations() *mockMigrations {
	return &mockMigrations{runs: make(map[string]*dommig.Run)}
}

func (m *mockMigrations) Submit(_ context.Context, plan *dommig.Plan) (*dommig.Run, error) {
	if m.submitErr != nil {
		return nil, m.submitErr
	}
	m.submitted = plan
	run := dommig.NewRun("run-1", plan, time.Unix(1700000000, 0))
	m.runs[run.ID] = run
	return run, nil
}

func (m *mockMigrations) Get(_ context.Context, id string) (*dommig.Run, error) {
	run, ok := m.runs[id]
	if !ok {
		return nil, fmt.Errorf("get run: %w", dommig.ErrRunNotFound)
	}
	return run, nil
}

func (m *mockMigrations) List(_ context.Context) ([]*dommig.Run, error) {
	out := make([]*dommig.Run, 0, len(m.runs))
	for _, r := range m.runs {
		out = append(out, r)
	}
	return out, nil
}

func (m *mockMigrations) Audit(_ context.Context, _ string, limit int) ([]domaudit.Entry, error) {
	m.auditLimit = limit
	if limit > 0 && limit < len(m.entries) {
		return m.entries[:limit], nil
	}
	return m.entries, nil
}

func (m *mockMigrations) Rollback(_ context.Context, _ string) (cutover.RollbackResult, error) {
	return m.rollbackRes, m.rollbackErr
}

func (m *mockMigrations) Cancel(_ context.Context, _ string) error { return m.cancelErr }

type mockHealth struct{ report healthuc.Report }

func (m mockHealth) Check(_ context.Context) healthuc.Report { return m.report }

// --- helpers ---

func validPlanParams() dommig.PlanParams {
	tol, thr := 0.001, 0.99
	return dommig.PlanParams{
		Source: "docs-v1",
		Target: "docs-v2",
		Alias:  "docs",
		VectorFields: []index.VectorField{
			{Name: "embedding", Dimension: 384, SpaceType: index.SpaceCosine},
		},
		CountTolerance:       &tol,
		SampleSize:           100,
		SampleMatchThreshold: &thr,
		SnapshotRepository:   "backups",
	}
}

func mustPlan(t *testing.T) *dommig.Plan {
	t.Helper()
	plan, err := dommig.NewPlan(validPlanParams())
	if err != nil {
		t.Fatalf("NewPlan: %v", err)
	}
	return plan
}

func newTestRouter(m *mockMigrations, h healthuc.Report) http.Handler {
	return NewRouter(NewServer(m, mockHealth{report: h}, nil), nil, nil)
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, http.NoBody)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func decodeError(t *testing.T, rr *httptest.ResponseRecorder) ErrorResponse {
	t.Helper()
	var e ErrorResponse
	if err := json.NewDecoder(rr.Body).Decode(&e); err != nil {
		t.Fatalf("decode error response: %v", err)
	}
	return e
}

// --- tests ---

func TestCreateMigration_Accepted(t *testing.T) {
	m := newMockMigrations()
	h := newTestRouter(m, healthuc.Report{})

	body, _ := json.Marshal(validPlanParams())
	rr := do(t, h, http.MethodPost, "/migrations", string(body))

	if rr.Code != http.StatusAccepted {
		t.Fatalf("status = %d, body %s", rr.Code, rr.Body.String())
	}
	if loc := rr.Header().Get("Location"); loc != "/migrations/run-1" {
		t.Errorf("Location = %q", loc)
	}
	if rr.Header().Get("X-Request-ID") == "" {
		t.Error("missing X-Request-ID")
	}

	var resp RunResponse
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.ID != "run-1" || resp.State != string(dommig.StateInit) || resp.Alias != "docs" || resp.Target != "docs-v2" {
		t.Errorf("unexpected response: %+v", resp)
	}
	if m.submitted == nil || m.submitted.SampleSize() != 100 {
		t.Error("plan not submitted")
	}
}

func TestCreateMigration_MissingTolerance_400(t *testing.T) {
	m := newMockMigrations()
	h := newTestRouter(m, healthuc.Report{})

	p := validPlanParams()
	p.CountTolerance = nil
	body, _ := json.Marshal(p)
	rr := do(t, h, http.MethodPost, "/migrations", string(body))

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", rr.Code)
	}
	e := decodeError(t, rr)
	if e.Code != ErrorCodeValidationFailed || !strings.Contains(e.Message, "count_tolerance") {
		t.Errorf("error = %+v", e)
	}
	if m.submitted != nil {
		t.Error("invalid plan must not be submitted")
	}
}

func TestCreateMigration_BadJSON_400(t *testing.T) {
	h := newTestRouter(newMockMigrations(), healthuc.Report{})

	for _, body := range []string{`{not json`, `{"source":"a","bogus":1}`} {
		rr := do(t, h, http.MethodPost, "/migrations", body)
		if rr.Code != http.StatusBadRequest {
			t.Errorf("body %q: status = %d", body, rr.Code)
			continue
		}
		if e := decodeError(t, rr); e.Code != ErrorCodeBadRequest {
			t.Errorf("body %q: code = %s", body, e.Code)
		}
	}
}

func TestCreateMigration_AliasBusy_409(t *testing.T) {
	m := newMockMigrations()
	m.submitErr = fmt.Errorf("lock alias: %w", dommig.ErrRunActive)
	h := newTestRouter(m, healthuc.Report{})

	body, _ := json.Marshal(validPlanParams())
	rr := do(t, h, http.MethodPost, "/migrations", string(body))

	if rr.Code != http.StatusConflict {
		t.Fatalf("status = %d", rr.Code)
	}
	e := decodeError(t, rr)
	if e.Code != ErrorCodeRunActive || e.Message != dommig.ErrRunActive.Error() {
		t.Errorf("error = %+v", e)
	}
}

func TestGetMigration(t *testing.T) {
	m := newMockMigrations()
	run := dommig.NewRun("abc", mustPlan(t), time.Unix(1700000000, 0))
	run.SnapshotID = "vecshift-abc"
	m.runs["abc"] = run
	h := newTestRouter(m, healthuc.Report{})

	rr := do(t, h, http.MethodGet, "/migrations/abc", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	var resp RunResponse
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.SnapshotID == nil || *resp.SnapshotID != "vecshift-abc" {
		t.Errorf("snapshot id = %v", resp.SnapshotID)
	}
	if len(resp.Stages) != 1 || resp.Stages[0].State != string(dommig.StateInit) {
		t.Errorf("stages = %+v", resp.Stages)
	}
}

func TestGetMigration_RollbackFailed(t *testing.T) {
	m := newMockMigrations()
	run := dommig.NewRun("abc", mustPlan(t), time.Unix(1700000000, 0))
	run.State = dommig.StateFailed
	run.RollbackFailed = true
	m.runs["abc"] = run
	h := newTestRouter(m, healthuc.Report{})

	rr := do(t, h, http.MethodGet, "/migrations/abc", "")
	var resp RunResponse
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.State != string(dommig.StateFailed) || !resp.RollbackFailed {
		t.Errorf("response = %+v", resp)
	}
}

func TestGetMigration_NotFound_404(t *testing.T) {
	h := newTestRouter(newMockMigrations(), healthuc.Report{})

	rr := do(t, h, http.MethodGet, "/migrations/missing", "")
	if rr.Code != http.StatusNotFound {
		t.Fatalf("status = %d", rr.Code)
	}
	if e := decodeError(t, rr); e.Code != ErrorCodeRunNotFound {
		t.Errorf("code = %s", e.Code)
	}
}

func TestListMigrations_StateFilter(t *testing.T) {
	m := newMockMigrations()
	a := dommig.NewRun("a", mustPlan(t), time.Now())
	b := dommig.NewRun("b", mustPlan(t), time.Now())
	if err := b.Transition(dommig.StateValidating, time.Now()); err != nil {
		t.Fatal(err)
	}
	m.runs["a"], m.runs["b"] = a, b
	h := newTestRouter(m, healthuc.Report{})

	rr := do(t, h, http.MethodGet, "/migrations?state=validating", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	var resp RunListResponse
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Total != 1 || resp.Items[0].ID != "b" {
		t.Errorf("items = %+v", resp.Items)
	}

	rr = do(t, h, http.MethodGet, "/migrations?state=bogus", "")
	if rr.Code != http.StatusBadRequest {
		t.Errorf("unknown state: status = %d", rr.Code)
	}
}

func TestListAudit_Limit(t *testing.T) {
	m := newMockMigrations()
	m.runs["r1"] = dommig.NewRun("r1", mustPlan(t), time.Now())
	now := time.Now()
	m.entries = []domaudit.Entry{
		{ID: "1-0", RunID: "r1", Stage: "INIT", Outcome: domaudit.OutcomeInfo, Timestamp: now},
		{ID: "2-0", RunID: "r1", Stage: "VALIDATING", Outcome: domaudit.OutcomeAttempted, Timestamp: now},
		{ID: "3-0", RunID: "r1", Stage: "VALIDATING", Outcome: domaudit.OutcomeSucceeded, Timestamp: now},
	}
	h := newTestRouter(m, healthuc.Report{})

	rr := do(t, h, http.MethodGet, "/migrations/r1/audit?limit=2", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	var resp AuditListResponse
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if m.auditLimit != 2 || resp.Total != 2 || resp.Items[1].Stage != "VALIDATING" {
		t.Errorf("limit %d, resp %+v", m.auditLimit, resp)
	}
}

func TestListAudit_BadLimit_400(t *testing.T) {
	m := newMockMigrations()
	m.runs["r1"] = dommig.NewRun("r1", mustPlan(t), time.Now())
	h := newTestRouter(m, healthuc.Report{})

	for _, q := range []string{"limit=abc", "limit=0", "limit=10001"} {
		rr := do(t, h, http.MethodGet, "/migrations/r1/audit?"+q, "")
		if rr.Code != http.StatusBadRequest {
			t.Errorf("%s: status = %d", q, rr.Code)
		}
	}
}

func TestListAudit_UnknownRun_404(t *testing.T) {
	h := newTestRouter(newMockMigrations(), healthuc.Report{})

	rr := do(t, h, http.MethodGet, "/migrations/nope/audit", "")
	if rr.Code != http.StatusNotFound {
		t.Fatalf("status = %d", rr.Code)
	}
}

func TestRollbackMigration(t *testing.T) {
	m := newMockMigrations()
	m.runs["r1"] = dommig.NewRun("r1", mustPlan(t), time.Now())
	m.rollbackRes = cutover.RollbackResult{Duration: 120 * time.Millisecond, WithinBound: true}
	h := newTestRouter(m, healthuc.Report{})

	rr := do(t, h, http.MethodPost, "/migrations/r1/rollback", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	var resp RollbackResponse
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Alias != "docs" || resp.Index != "docs-v1" || resp.DurationMs != 120 || !resp.WithinBound {
		t.Errorf("resp = %+v", resp)
	}
}

func TestRollbackMigration_ErrorMapping(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		code   ErrorCode
	}{
		{"not cut over", fmt.Errorf("%w: run r1 is FAILED", dommig.ErrNotCutOver), http.StatusConflict, ErrorCodeNotCutOver},
		{"alias busy", fmt.Errorf("lock alias: %w", dommig.ErrRunActive), http.StatusConflict, ErrorCodeRunActive},
		{
			"rollback failed",
			dommig.NewStageError(dommig.StateRollingBack, dommig.KindFatal, dommig.ErrRollback, errors.New("boom")),
			http.StatusBadGateway, ErrorCodeRollbackFailed,
		},
		{"unexpected", errors.New("cluster exploded"), http.StatusInternalServerError, ErrorCodeInternalError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := newMockMigrations()
			m.runs["r1"] = dommig.NewRun("r1", mustPlan(t), time.Now())
			m.rollbackErr = tt.err
			h := newTestRouter(m, healthuc.Report{})

			rr := do(t, h, http.MethodPost, "/migrations/r1/rollback", "")
			if rr.Code != tt.status {
				t.Fatalf("status = %d, want %d", rr.Code, tt.status)
			}
			e := decodeError(t, rr)
			if e.Code != tt.code {
				t.Errorf("code = %s, want %s", e.Code, tt.code)
			}
			if strings.Contains(e.Message, "boom") || strings.Contains(e.Message, "exploded") {
				t.Errorf("internal detail leaked: %q", e.Message)
			}
		})
	}
}

func TestCancelMigration(t *testing.T) {
	m := newMockMigrations()
	h := newTestRouter(m, healthuc.Report{})

	rr := do(t, h, http.MethodPost, "/migrations/r1/cancel", "")
	if rr.Code != http.StatusAccepted {
		t.Fatalf("status = %d", rr.Code)
	}

	m.cancelErr = fmt.Errorf("%w: COMPLETED", dommig.ErrTerminal)
	rr = do(t, h, http.MethodPost, "/migrations/r1/cancel", "")
	if rr.Code != http.StatusConflict {
		t.Fatalf("terminal: status = %d", rr.Code)
	}
	if e := decodeError(t, rr); e.Code != ErrorCodeRunTerminal {
		t.Errorf("code = %s", e.Code)
	}
}

func TestHealthCheck(t *testing.T) {
	tests := []struct {
		name   string
		report healthuc.Report
		status int
	}{
		{
			"healthy",
			healthuc.Report{Status: healthuc.Healthy, Checks: map[string]healthuc.CheckResult{"cluster": healthuc.CheckOK}, Version: "2.17.0"},
			http.StatusOK,
		},
		{
			"degraded",
			healthuc.Report{Status: healthuc.Degraded, Checks: map[string]healthuc.CheckResult{"audit": healthuc.CheckError}},
			http.StatusOK,
		},
		{
			"unhealthy",
			healthuc.Report{Status: healthuc.Unhealthy, Checks: map[string]healthuc.CheckResult{"cluster": healthuc.CheckError}},
			http.StatusServiceUnavailable,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newTestRouter(newMockMigrations(), tt.report)
			rr := do(t, h, http.MethodGet, "/health", "")
			if rr.Code != tt.status {
				t.Fatalf("status = %d, want %d", rr.Code, tt.status)
			}
			var resp HealthResponse
			if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if resp.Status != string(tt.report.Status) {
				t.Errorf("status field = %q", resp.Status)
			}
		})
	}
}

func TestRouter_AuthAppliesToMigrationsOnly(t *testing.T) {
	m := newMockMigrations()
	h := NewRouter(NewServer(m, mockHealth{report: healthuc.Report{Status: healthuc.Healthy}}, nil),
		[]string{"secret"}, nil)

	if rr := do(t, h, http.MethodGet, "/migrations", ""); rr.Code != http.StatusUnauthorized {
		t.Errorf("migrations without key: %d", rr.Code)
	}
	if rr := do(t, h, http.MethodGet, "/health", ""); rr.Code != http.StatusOK {
		t.Errorf("health without key: %d", rr.Code)
	}
}

func TestJSONRecoverer(t *testing.T) {
	h := JSONRecoverer(zap.NewNop())(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", http.NoBody))

	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d", rr.Code)
	}
	if e := decodeError(t, rr); e.Code != ErrorCodeInternalError {
		t.Errorf("code = %s", e.Code)
	}
}
