package chi

import (
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/oapi-codegen/runtime"

	dommig "github.com/kailas-cloud/vecshift/internal/domain/migration"
)

// ErrorCode is the machine-readable error code in ErrorResponse.
type ErrorCode string

// Error codes.
const (
	ErrorCodeBadRequest       ErrorCode = "bad_request"
	ErrorCodeValidationFailed ErrorCode = "validation_failed"
	ErrorCodeUnauthorized     ErrorCode = "unauthorized"
	ErrorCodeRunNotFound      ErrorCode = "run_not_found"
	ErrorCodeRunActive        ErrorCode = "run_active"
	ErrorCodeRunTerminal      ErrorCode = "run_terminal"
	ErrorCodeNotCutOver       ErrorCode = "not_cut_over"
	ErrorCodeRollbackFailed   ErrorCode = "rollback_failed"
	ErrorCodeInternalError    ErrorCode = "internal_error"
)

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
}

// RunID is the {id} path parameter.
type RunID = string

// CreateMigrationRequest is the body of POST /migrations.
type CreateMigrationRequest = dommig.PlanParams

// StageResponse is one timeline entry.
type StageResponse struct {
	State      string     `json:"state"`
	Outcome    string     `json:"outcome"`
	StartedAt  time.Time  `json:"started_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
	DurationMs int64      `json:"duration_ms"`
	Error      string     `json:"error,omitempty"`
}

// RunResponse describes a migration run.
type RunResponse struct {
	ID               string                   `json:"id"`
	State            string                   `json:"state"`
	Alias            string                   `json:"alias"`
	Source           string                   `json:"source"`
	Target           string                   `json:"target"`
	Stages           []StageResponse          `json:"stages"`
	LastError        *string                  `json:"last_error,omitempty"`
	SnapshotID       *string                  `json:"snapshot_id,omitempty"`
	TaskID           *string                  `json:"task_id,omitempty"`
	Preflight        []dommig.CheckResult     `json:"preflight,omitempty"`
	Report           *dommig.ValidationReport `json:"report,omitempty"`
	CutoverCommitted bool                     `json:"cutover_committed"`
	RollbackFailed   bool                     `json:"rollback_failed,omitempty"`
	CreatedAt        time.Time                `json:"created_at"`
	UpdatedAt        time.Time                `json:"updated_at"`
	FinishedAt       *time.Time               `json:"finished_at,omitempty"`
}

// RunListResponse is the body of GET /migrations.
type RunListResponse struct {
	Items []RunResponse `json:"items"`
	Total int           `json:"total"`
}

// AuditEntryResponse is one audit record.
type AuditEntryResponse struct {
	ID        string            `json:"id,omitempty"`
	Stage     string            `json:"stage"`
	Outcome   string            `json:"outcome"`
	Detail    string            `json:"detail,omitempty"`
	Fields    map[string]string `json:"fields,omitempty"`
	Timestamp time.Time         `json:"timestamp"`
}

// AuditListResponse is the body of GET /migrations/{id}/audit.
type AuditListResponse struct {
	RunID string               `json:"run_id"`
	Items []AuditEntryResponse `json:"items"`
	Total int                  `json:"total"`
}

// RollbackResponse is the body of POST /migrations/{id}/rollback.
type RollbackResponse struct {
	RunID        string `json:"run_id"`
	Alias        string `json:"alias"`
	Index        string `json:"index"`
	DurationMs   int64  `json:"duration_ms"`
	WithinBound  bool   `json:"within_bound"`
	AlreadyBound bool   `json:"already_bound"`
}

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status  string            `json:"status"`
	Checks  map[string]string `json:"checks"`
	Version string            `json:"version,omitempty"`
}

// ListMigrationsParams are the query parameters of GET /migrations.
type ListMigrationsParams struct {
	State *string `form:"state,omitempty" json:"state,omitempty"`
}

// ListAuditParams are the query parameters of GET /migrations/{id}/audit.
type ListAuditParams struct {
	Limit *int `form:"limit,omitempty" json:"limit,omitempty"`
}

// ServerInterface is implemented by Server; one method per route.
type ServerInterface interface {
	// (POST /migrations)
	CreateMigration(w http.ResponseWriter, r *http.Request)
	// (GET /migrations)
	ListMigrations(w http.ResponseWriter, r *http.Request, params ListMigrationsParams)
	// (GET /migrations/{id})
	GetMigration(w http.ResponseWriter, r *http.Request, id RunID)
	// (GET /migrations/{id}/audit)
	ListAudit(w http.ResponseWriter, r *http.Request, id RunID, params ListAuditParams)
	// (POST /migrations/{id}/rollback)
	RollbackMigration(w http.ResponseWriter, r *http.Request, id RunID)
	// (POST /migrations/{id}/cancel)
	CancelMigration(w http.ResponseWriter, r *http.Request, id RunID)
	// (GET /health)
	HealthCheck(w http.ResponseWriter, r *http.Request)
	// (GET /metrics)
	Metrics(w http.ResponseWriter, r *http.Request)
}

// InvalidParamFormatError is passed to ErrorHandlerFunc when a parameter
// cannot be bound.
type InvalidParamFormatError struct {
	ParamName string
	Err       error
}

func (e *InvalidParamFormatError) Error() string {
	return fmt.Sprintf("invalid format for parameter %s: %s", e.ParamName, e.Err.Error())
}

func (e *InvalidParamFormatError) Unwrap() error { return e.Err }

// ServerInterfaceWrapper binds path and query parameters before calling Handler.
type ServerInterfaceWrapper struct {
	Handler          ServerInterface
	ErrorHandlerFunc func(w http.ResponseWriter, r *http.Request, err error)
}

func (siw *ServerInterfaceWrapper) pathID(w http.ResponseWriter, r *http.Request) (RunID, bool) {
	var id RunID
	err := runtime.BindStyledParameterWithOptions("simple", "id", chi.URLParam(r, "id"), &id,
		runtime.BindStyledParameterOptions{ParamLocation: runtime.ParamLocationPath, Explode: false, Required: true})
	if err != nil {
		siw.ErrorHandlerFunc(w, r, &InvalidParamFormatError{ParamName: "id", Err: err})
		return "", false
	}
	return id, true
}

// CreateMigration operation middleware.
func (siw *ServerInterfaceWrapper) CreateMigration(w http.ResponseWriter, r *http.Request) {
	siw.Handler.CreateMigration(w, r)
}

// ListMigrations operation middleware.
func (siw *ServerInterfaceWrapper) ListMigrations(w http.ResponseWriter, r *http.Request) {
	var params ListMigrationsParams
	if err := runtime.BindQueryParameter("form", true, false, "state", r.URL.Query(), &params.State); err != nil {
		siw.ErrorHandlerFunc(w, r, &InvalidParamFormatError{ParamName: "state", Err: err})
		return
	}
	siw.Handler.ListMigrations(w, r, params)
}

// GetMigration operation middleware.
func (siw *ServerInterfaceWrapper) GetMigration(w http.ResponseWriter, r *http.Request) {
	id, ok := siw.pathID(w, r)
	if !ok {
		return
	}
	siw.Handler.GetMigration(w, r, id)
}

// ListAudit operation middleware.
func (siw *ServerInterfaceWrapper) ListAudit(w http.ResponseWriter, r *http.Request) {
	id, ok := siw.pathID(w, r)
	if !ok {
		return
	}
	var params ListAuditParams
	if err := runtime.BindQueryParameter("form", true, false, "limit", r.URL.Query(), &params.Limit); err != nil {
		siw.ErrorHandlerFunc(w, r, &InvalidParamFormatError{ParamName: "limit", Err: err})
		return
	}
	siw.Handler.ListAudit(w, r, id, params)
}

// RollbackMigration operation middleware.
func (siw *ServerInterfaceWrapper) RollbackMigration(w http.ResponseWriter, r *http.Request) {
	id, ok := siw.pathID(w, r)
	if !ok {
		return
	}
	siw.Handler.RollbackMigration(w, r, id)
}

// CancelMigration operation middleware.
func (siw *ServerInterfaceWrapper) CancelMigration(w http.ResponseWriter, r *http.Request) {
	id, ok := siw.pathID(w, r)
	if !ok {
		return
	}
	siw.Handler.CancelMigration(w, r, id)
}

// ChiServerOptions configures HandlerWithOptions.
type ChiServerOptions struct {
	BaseURL          string
	BaseRouter       chi.Router
	ErrorHandlerFunc func(w http.ResponseWriter, r *http.Request, err error)
}

// HandlerWithOptions registers every route of si on options.BaseRouter.
func HandlerWithOptions(si ServerInterface, options ChiServerOptions) http.Handler {
	r := options.BaseRouter
	if r == nil {
		r = chi.NewRouter()
	}
	if options.ErrorHandlerFunc == nil {
		options.ErrorHandlerFunc = func(w http.ResponseWriter, _ *http.Request, err error) {
			writeError(w, http.StatusBadRequest, ErrorCodeBadRequest, err.Error())
		}
	}
	wrapper := ServerInterfaceWrapper{
		Handler:          si,
		ErrorHandlerFunc: options.ErrorHandlerFunc,
	}

	r.Group(func(r chi.Router) {
		r.Post(options.BaseURL+"/migrations", wrapper.CreateMigration)
		r.Get(options.BaseURL+"/migrations", wrapper.ListMigrations)
		r.Get(options.BaseURL+"/migrations/{id}", wrapper.GetMigration)
		r.Get(options.BaseURL+"/migrations/{id}/audit", wrapper.ListAudit)
		r.Post(options.BaseURL+"/migrations/{id}/rollback", wrapper.RollbackMigration)
		r.Post(options.BaseURL+"/migrations/{id}/cancel", wrapper.CancelMigration)
		r.Get(options.BaseURL+"/health", si.HealthCheck)
		r.Get(options.BaseURL+"/metrics", si.Metrics)
	})
	return r
}
