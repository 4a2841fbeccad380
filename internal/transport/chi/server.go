package chi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	domaudit "github.com/kailas-cloud/vecshift/internal/domain/audit"
	dommig "github.com/kailas-cloud/vecshift/internal/domain/migration"
	healthuc "github.com/kailas-cloud/vecshift/internal/usecase/health"
)

// maxAuditLimit caps GET /migrations/{id}/audit?limit=.
const maxAuditLimit = 10000

// errorHandler tries to handle a domain error. Returns true if handled.
type errorHandler func(w http.ResponseWriter, err error, msg string) bool

// Server implements ServerInterface over the migration orchestrator.
type Server struct {
	migrations    Migrations
	health        HealthChecker
	logger        *zap.Logger
	errorHandlers []errorHandler
}

var _ ServerInterface = (*Server)(nil)

// NewServer creates an HTTP API server.
func NewServer(migrations Migrations, health HealthChecker, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		migrations: migrations,
		health:     health,
		logger:     logger,
	}
	s.errorHandlers = []errorHandler{
		invalidPlanHandler,
		sentinelHandler(dommig.ErrRunNotFound, http.StatusNotFound, ErrorCodeRunNotFound),
		sentinelHandler(dommig.ErrRunActive, http.StatusConflict, ErrorCodeRunActive),
		sentinelHandler(dommig.ErrTerminal, http.StatusConflict, ErrorCodeRunTerminal),
		sentinelHandler(dommig.ErrNotCutOver, http.StatusConflict, ErrorCodeNotCutOver),
		sentinelHandler(dommig.ErrRollback, http.StatusBadGateway, ErrorCodeRollbackFailed),
	}
	return s
}

// CreateMigration handles POST /migrations. The run continues in the
// background; poll GET /migrations/{id} for its state.
func (s *Server) CreateMigration(w http.ResponseWriter, r *http.Request) {
	var req CreateMigrationRequest
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, ErrorCodeBadRequest, "Invalid request body: "+err.Error())
		return
	}

	plan, err := dommig.NewPlan(req)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	run, err := s.migrations.Submit(r.Context(), plan)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	w.Header().Set("Location", "/migrations/"+run.ID)
	writeJSON(w, http.StatusAccepted, runToResponse(run))
}

// ListMigrations handles GET /migrations.
func (s *Server) ListMigrations(w http.ResponseWriter, r *http.Request, params ListMigrationsParams) {
	var state dommig.State
	if params.State != nil && *params.State != "" {
		state = dommig.State(strings.ToUpper(*params.State))
		if !state.Valid() {
			writeError(w, http.StatusBadRequest, ErrorCodeValidationFailed, "unknown state "+*params.State)
			return
		}
	}

	runs, err := s.migrations.List(r.Context())
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	items := make([]RunResponse, 0, len(runs))
	for _, run := range runs {
		if state != "" && run.State != state {
			continue
		}
		items = append(items, runToResponse(run))
	}
	writeJSON(w, http.StatusOK, RunListResponse{Items: items, Total: len(items)})
}

// GetMigration handles GET /migrations/{id}.
func (s *Server) GetMigration(w http.ResponseWriter, r *http.Request, id RunID) {
	run, err := s.migrations.Get(r.Context(), id)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, runToResponse(run))
}

// ListAudit handles GET /migrations/{id}/audit.
func (s *Server) ListAudit(w http.ResponseWriter, r *http.Request, id RunID, params ListAuditParams) {
	limit := 0
	if params.Limit != nil {
		if *params.Limit <= 0 || *params.Limit > maxAuditLimit {
			writeError(w, http.StatusBadRequest, ErrorCodeValidationFailed, "limit must be between 1 and 10000")
			return
		}
		limit = *params.Limit
	}

	// 404 для неизвестного run, а не пустой список
	if _, err := s.migrations.Get(r.Context(), id); err != nil {
		s.handleDomainError(w, err)
		return
	}

	entries, err := s.migrations.Audit(r.Context(), id, limit)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	items := make([]AuditEntryResponse, len(entries))
	for i, e := range entries {
		items[i] = auditToResponse(e)
	}
	writeJSON(w, http.StatusOK, AuditListResponse{RunID: id, Items: items, Total: len(items)})
}

// RollbackMigration handles POST /migrations/{id}/rollback.
func (s *Server) RollbackMigration(w http.ResponseWriter, r *http.Request, id RunID) {
	run, err := s.migrations.Get(r.Context(), id)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	res, err := s.migrations.Rollback(r.Context(), id)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, RollbackResponse{
		RunID:        id,
		Alias:        run.Plan.Alias(),
		Index:        run.Plan.Source(),
		DurationMs:   res.Duration.Milliseconds(),
		WithinBound:  res.WithinBound,
		AlreadyBound: res.AlreadyBound,
	})
}

// CancelMigration handles POST /migrations/{id}/cancel.
func (s *Server) CancelMigration(w http.ResponseWriter, r *http.Request, id RunID) {
	if err := s.migrations.Cancel(r.Context(), id); err != nil {
		s.handleDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

// HealthCheck handles GET /health.
func (s *Server) HealthCheck(w http.ResponseWriter, r *http.Request) {
	report := s.health.Check(r.Context())

	checks := make(map[string]string, len(report.Checks))
	for k, v := range report.Checks {
		checks[k] = string(v)
	}

	httpStatus := http.StatusOK
	if report.Status == healthuc.Unhealthy {
		httpStatus = http.StatusServiceUnavailable
	}

	writeJSON(w, httpStatus, HealthResponse{
		Status:  string(report.Status),
		Checks:  checks,
		Version: report.Version,
	})
}

// Metrics handles GET /metrics.
func (s *Server) Metrics(w http.ResponseWriter, r *http.Request) {
	promhttp.Handler().ServeHTTP(w, r)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code ErrorCode, message string) {
	writeJSON(w, status, ErrorResponse{
		Code:    code,
		Message: message,
	})
}

// safeDomainMessage returns a sentinel error message for the client without exposing internals.
func safeDomainMessage(err error) string {
	sentinels := []error{
		dommig.ErrRunNotFound,
		dommig.ErrRunActive,
		dommig.ErrTerminal,
		dommig.ErrNotCutOver,
		dommig.ErrRollback,
	}
	for _, s := range sentinels {
		if errors.Is(err, s) {
			return s.Error()
		}
	}
	return "internal error"
}

// sentinelHandler returns an errorHandler that matches a single sentinel error.
func sentinelHandler(sentinel error, status int, code ErrorCode) errorHandler {
	return func(w http.ResponseWriter, err error, msg string) bool {
		if !errors.Is(err, sentinel) {
			return false
		}
		writeError(w, status, code, msg)
		return true
	}
}

// invalidPlanHandler reports plan validation errors in full: they describe
// the caller's own input.
func invalidPlanHandler(w http.ResponseWriter, err error, _ string) bool {
	if !errors.Is(err, dommig.ErrInvalidPlan) {
		return false
	}
	writeError(w, http.StatusBadRequest, ErrorCodeValidationFailed, err.Error())
	return true
}

func (s *Server) handleDomainError(w http.ResponseWriter, err error) {
	s.logger.Warn("domain error", zap.Error(err))
	msg := safeDomainMessage(err)
	for _, h := range s.errorHandlers {
		if h(w, err, msg) {
			return
		}
	}
	s.logger.Error("internal error", zap.Error(err))
	writeError(w, http.StatusInternalServerError, ErrorCodeInternalError, "internal error")
}

func runToResponse(run *dommig.Run) RunResponse {
	resp := RunResponse{
		ID:               run.ID,
		State:            string(run.State),
		Stages:           make([]StageResponse, len(run.Stages)),
		Preflight:        run.Preflight,
		Report:           run.Report,
		CutoverCommitted: run.CutoverCommitted,
		RollbackFailed:   run.RollbackFailed,
		CreatedAt:        run.CreatedAt.UTC(),
		UpdatedAt:        run.UpdatedAt.UTC(),
	}
	if run.Plan != nil {
		resp.Alias = run.Plan.Alias()
		resp.Source = run.Plan.Source()
		resp.Target = run.Plan.Target()
	}
	if run.LastError != "" {
		resp.LastError = &run.LastError
	}
	if run.SnapshotID != "" {
		resp.SnapshotID = &run.SnapshotID
	}
	if run.TaskID != "" {
		resp.TaskID = &run.TaskID
	}
	if !run.FinishedAt.IsZero() {
		f := run.FinishedAt.UTC()
		resp.FinishedAt = &f
	}

	for i, st := range run.Stages {
		sr := StageResponse{
			State:      string(st.State),
			Outcome:    st.Outcome,
			StartedAt:  st.StartedAt.UTC(),
			DurationMs: st.Duration().Milliseconds(),
			Error:      st.Error,
		}
		if !st.FinishedAt.IsZero() {
			f := st.FinishedAt.UTC()
			sr.FinishedAt = &f
		}
		resp.Stages[i] = sr
	}
	return resp
}

func auditToResponse(e domaudit.Entry) AuditEntryResponse {
	return AuditEntryResponse{
		ID:        e.ID,
		Stage:     e.Stage,
		Outcome:   string(e.Outcome),
		Detail:    e.Detail,
		Fields:    e.Fields,
		Timestamp: e.Timestamp.UTC(),
	}
}
