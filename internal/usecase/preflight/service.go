// Package preflight decides whether the environment is safe for a migration.
package preflight

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/vecshift/internal/cluster"
	"github.com/kailas-cloud/vecshift/internal/domain/index"
	"github.com/kailas-cloud/vecshift/internal/domain/migration"
	"github.com/kailas-cloud/vecshift/internal/logger"
)

// Check names.
const (
	CheckReachable       = "cluster_reachable"
	CheckHealth          = "cluster_health"
	CheckSourceIndex     = "source_index"
	CheckDisk            = "disk_headroom"
	CheckHeap            = "heap_headroom"
	CheckSnapshotRepo    = "snapshot_repository"
	CheckAliasBinding    = "alias_binding"
	CheckTargetFree      = "target_free"
	CheckNewFieldsAbsent = "new_fields_absent"
	CheckEmbeddingDim    = "embedding_dimension"
)

// Limits are the resource ceilings a migration may start under.
type Limits struct {
	MaxDiskPercent float64
	MaxHeapPercent float64
	AllowYellow    bool
	ConnectTimeout time.Duration
}

// DefaultLimits returns 85% disk and heap ceilings, yellow allowed, 5s probe.
func DefaultLimits() Limits {
	return Limits{MaxDiskPercent: 85, MaxHeapPercent: 85, AllowYellow: true, ConnectTimeout: 5 * time.Second}
}

// Report is the outcome of all checks. Source is set when the source index
// could be read.
type Report struct {
	Checks []migration.CheckResult
	Source *index.Descriptor
}

// OK reports whether every check passed.
func (r Report) OK() bool {
	return len(migration.FailedChecks(r.Checks)) == 0
}

// Failures summarizes failed checks as "name: detail".
func (r Report) Failures() []string {
	var out []string
	for _, c := range migration.FailedChecks(r.Checks) {
		out = append(out, c.Name+": "+c.Detail)
	}
	return out
}

// Service runs the preflight checks. It never mutates the cluster.
type Service struct {
	cluster Cluster
	limits  Limits
	prober  EmbeddingProber
	field   string
	now     func() time.Time
}

// New creates a preflight service.
func New(c Cluster, limits Limits) *Service {
	if limits.ConnectTimeout <= 0 {
		limits.ConnectTimeout = DefaultLimits().ConnectTimeout
	}
	return &Service{cluster: c, limits: limits, now: time.Now}
}

// WithEmbeddingProbe enables the embedding dimension check against field
// (the plan's first vector field when empty).
func (s *Service) WithEmbeddingProbe(p EmbeddingProber, field string) *Service {
	s.prober = p
	s.field = field
	return s
}

// Validate runs every check independently and returns all results.
func (s *Service) Validate(ctx context.Context, plan *migration.Plan) Report {
	log := logger.FromContext(ctx)
	var rep Report
	add := func(name string, err error, okDetail string) {
		res := migration.CheckResult{Name: name, OK: err == nil, Detail: okDetail}
		if err != nil {
			res.Detail = err.Error()
		}
		rep.Checks = append(rep.Checks, res)
		log.Debug("Preflight check", zap.String("check", name), zap.Bool("ok", res.OK), zap.String("detail", res.Detail))
	}

	info, err := s.reachable(ctx)
	add(CheckReachable, err, fmt.Sprintf("%s %s (%s)", info.Distribution, info.Version, info.ClusterName))

	detail, err := s.health(ctx)
	add(CheckHealth, err, detail)

	src, err := s.source(ctx, plan.Source())
	if err == nil {
		rep.Source = &src
		detail = fmt.Sprintf("%d documents, %d fields", src.DocCount(), len(src.Properties()))
	}
	add(CheckSourceIndex, err, detail)

	detail, err = s.disk(ctx)
	add(CheckDisk, err, detail)

	detail, err = s.heap(ctx)
	add(CheckHeap, err, detail)

	add(CheckSnapshotRepo, s.repository(ctx, plan.SnapshotRepository()), plan.SnapshotRepository())

	add(CheckAliasBinding, s.aliasBinding(ctx, plan.Alias(), plan.Source()), plan.Alias()+" -> "+plan.Source())

	detail, err = s.targetFree(ctx, plan)
	add(CheckTargetFree, err, detail)

	add(CheckNewFieldsAbsent, newFieldsAbsent(rep.Source, plan), strings.Join(plan.NewFieldNames(), ","))

	if s.prober != nil {
		detail, err = s.embedding(ctx, plan)
		add(CheckEmbeddingDim, err, detail)
	}

	return rep
}

func (s *Service) reachable(ctx context.Context) (cluster.Info, error) {
	ctx, cancel := context.WithTimeout(ctx, s.limits.ConnectTimeout)
	defer cancel()
	info, err := s.cluster.Ping(ctx)
	if err != nil {
		return info, fmt.Errorf("cluster unreachable within %s: %w", s.limits.ConnectTimeout, err)
	}
	return info, nil
}

func (s *Service) health(ctx context.Context) (string, error) {
	h, err := s.cluster.Health(ctx)
	if err != nil {
		return "", fmt.Errorf("read health: %w", err)
	}
	detail := fmt.Sprintf("%s, %d nodes, %d unassigned shards", h.Status, h.NumberOfNodes, h.UnassignedShards)
	switch h.Status {
	case cluster.StatusGreen:
		return detail, nil
	case cluster.StatusYellow:
		if s.limits.AllowYellow {
			return detail, nil
		}
		return "", fmt.Errorf("cluster is yellow and yellow is not allowed: %s", detail)
	}
	return "", fmt.Errorf("cluster health is %s", detail)
}

func (s *Service) source(ctx context.Context, name string) (index.Descriptor, error) {
	exists, err := s.cluster.IndexExists(ctx, name)
	if err != nil {
		return index.Descriptor{}, fmt.Errorf("check source exists: %w", err)
	}
	if !exists {
		return index.Descriptor{}, fmt.Errorf("source index %s does not exist", name)
	}
	count, err := s.cluster.Count(ctx, name)
	if err != nil {
		return index.Descriptor{}, fmt.Errorf("count source: %w", err)
	}
	props, err := s.cluster.GetMapping(ctx, name)
	if err != nil {
		return index.Descriptor{}, fmt.Errorf("read source mapping: %w", err)
	}
	return index.NewDescriptor(name, props, count, s.now()), nil
}

func (s *Service) disk(ctx context.Context) (string, error) {
	nodes, err := s.cluster.DiskUsage(ctx)
	if err != nil {
		return "", fmt.Errorf("read disk usage: %w", err)
	}
	if len(nodes) == 0 {
		return "", errors.New("no data nodes reported disk usage")
	}
	worst := nodes[0]
	for _, n := range nodes[1:] {
		if n.Percent() > worst.Percent() {
			worst = n
		}
	}
	detail := fmt.Sprintf("max %.1f%% on %s (ceiling %.1f%%)", worst.Percent(), worst.Node, s.limits.MaxDiskPercent)
	if worst.Percent() > s.limits.MaxDiskPercent {
		return "", fmt.Errorf("disk usage too high: %s", detail)
	}
	return detail, nil
}

func (s *Service) heap(ctx context.Context) (string, error) {
	nodes, err := s.cluster.HeapUsage(ctx)
	if err != nil {
		return "", fmt.Errorf("read heap usage: %w", err)
	}
	if len(nodes) == 0 {
		return "", errors.New("no nodes reported heap usage")
	}
	worst := nodes[0]
	for _, n := range nodes[1:] {
		if n.UsedPercent > worst.UsedPercent {
			worst = n
		}
	}
	detail := fmt.Sprintf("max %.1f%% on %s (ceiling %.1f%%)", worst.UsedPercent, worst.Node, s.limits.MaxHeapPercent)
	if worst.UsedPercent > s.limits.MaxHeapPercent {
		return "", fmt.Errorf("heap usage too high: %s", detail)
	}
	return detail, nil
}

func (s *Service) repository(ctx context.Context, repo string) error {
	ok, err := s.cluster.RepositoryExists(ctx, repo)
	if err != nil {
		return fmt.Errorf("read snapshot repository %s: %w", repo, err)
	}
	if !ok {
		return fmt.Errorf("snapshot repository %s is not registered", repo)
	}
	return nil
}

func (s *Service) aliasBinding(ctx context.Context, alias, source string) error {
	bound, err := s.cluster.GetAlias(ctx, alias)
	if errors.Is(err, cluster.ErrAliasNotFound) {
		return fmt.Errorf("alias %s does not exist", alias)
	}
	if err != nil {
		return fmt.Errorf("read alias %s: %w", alias, err)
	}
	if len(bound) != 1 || bound[0] != source {
		return fmt.Errorf("alias %s resolves to %v, want exactly [%s]", alias, bound, source)
	}
	return nil
}

func (s *Service) targetFree(ctx context.Context, plan *migration.Plan) (string, error) {
	exists, err := s.cluster.IndexExists(ctx, plan.Target())
	if err != nil {
		return "", fmt.Errorf("check target exists: %w", err)
	}
	switch {
	case !exists:
		return plan.Target() + " is free", nil
	case plan.AllowReplace():
		return plan.Target() + " exists and will be replaced", nil
	}
	return "", fmt.Errorf("target index %s already exists and allow_replace is not set", plan.Target())
}

func newFieldsAbsent(src *index.Descriptor, plan *migration.Plan) error {
	if src == nil {
		return errors.New("source mapping unavailable")
	}
	var present []string
	for _, name := range plan.NewFieldNames() {
		if src.HasField(name) {
			present = append(present, name)
		}
	}
	if len(present) > 0 {
		return fmt.Errorf("source already defines %s", strings.Join(present, ", "))
	}
	return nil
}

func (s *Service) embedding(ctx context.Context, plan *migration.Plan) (string, error) {
	fields := plan.VectorFields()
	want := fields[0]
	if s.field != "" {
		found := false
		for _, f := range fields {
			if f.Name == s.field {
				want, found = f, true
				break
			}
		}
		if !found {
			return "", fmt.Errorf("embedding field %s is not part of the plan", s.field)
		}
	}

	got, err := s.prober.ProbeDimension(ctx)
	if err != nil {
		return "", fmt.Errorf("probe embedding model: %w", err)
	}
	if got != want.Dimension {
		return "", fmt.Errorf("model returns %d dimensions, field %s declares %d", got, want.Name, want.Dimension)
	}
	return fmt.Sprintf("%s: %d dimensions", want.Name, got), nil
}
