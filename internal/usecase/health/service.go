package health

import "context"

// Status represents the aggregated health status.
type Status string

const (
	// Healthy indicates all components are operational.
	Healthy Status = "ok"
	// Degraded indicates an auxiliary component is failing.
	Degraded Status = "degraded"
	// Unhealthy indicates the search cluster is unreachable.
	Unhealthy Status = "error"
)

// CheckResult represents an individual component health check outcome.
type CheckResult string

const (
	// CheckOK indicates a passing health check.
	CheckOK CheckResult = "ok"
	// CheckError indicates a failing health check.
	CheckError CheckResult = "error"
)

// Component names reported in Report.Checks.
const (
	ComponentCluster   = "cluster"
	ComponentAudit     = "audit"
	ComponentEmbedding = "embedding"
)

// Report aggregates health check results.
type Report struct {
	Status  Status
	Checks  map[string]CheckResult
	Version string // cluster version when reachable
}

// Service coordinates health checks.
type Service struct {
	cluster   ClusterPinger
	audit     AuditPinger
	embedding EmbeddingChecker
}

// New creates a Service. audit and embedding can be nil.
func New(c ClusterPinger, audit AuditPinger, embedding EmbeddingChecker) *Service {
	return &Service{cluster: c, audit: audit, embedding: embedding}
}

// Check runs health checks against all components.
func (s *Service) Check(ctx context.Context) Report {
	r := Report{Status: Healthy, Checks: make(map[string]CheckResult)}

	if info, err := s.cluster.Ping(ctx); err != nil {
		r.Checks[ComponentCluster] = CheckError
		r.Status = Unhealthy
	} else {
		r.Checks[ComponentCluster] = CheckOK
		r.Version = info.Version
	}

	if s.audit != nil {
		r.Checks[ComponentAudit] = result(s.audit.Ping(ctx))
	}
	if s.embedding != nil {
		r.Checks[ComponentEmbedding] = result(s.embedding.HealthCheck(ctx))
	}

	if r.Status == Healthy {
		for _, v := range r.Checks {
			if v == CheckError {
				r.Status = Degraded
				break
			}
		}
	}
	return r
}

func result(err error) CheckResult {
	if err != nil {
		return CheckError
	}
	return CheckOK
}
