// Package verify decides whether the target is a faithful copy of the source.
package verify

import (
	"context"
	"fmt"
	"reflect"
	"slices"
	"sync"

	"go.uber.org/zap"

	"github.com/kailas-cloud/vecshift/internal/cluster"
	"github.com/kailas-cloud/vecshift/internal/domain/index"
	"github.com/kailas-cloud/vecshift/internal/domain/migration"
	"github.com/kailas-cloud/vecshift/internal/domain/query"
	"github.com/kailas-cloud/vecshift/internal/logger"
)

// Config bounds the sample fan-out.
type Config struct {
	Concurrency int // concurrent _mget batches
	FetchBatch  int // ids per _mget
}

// DefaultConfig fetches 50 ids per request, 8 requests at a time.
func DefaultConfig() Config {
	return Config{Concurrency: 8, FetchBatch: 50}
}

// Input selects what to verify.
type Input struct {
	Plan *migration.Plan
	// Seed makes the sample reproducible; the same seed against unchanged
	// indices always yields the same report.
	Seed int64
}

// Service runs the count, sample and schema checks. It only reads.
type Service struct {
	cluster Cluster
	cfg     Config
}

// New creates a verifier.
func New(c Cluster, cfg Config) *Service {
	def := DefaultConfig()
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = def.Concurrency
	}
	if cfg.FetchBatch <= 0 {
		cfg.FetchBatch = def.FetchBatch
	}
	return &Service{cluster: c, cfg: cfg}
}

// Verify produces the report. An error means a check could not run at all;
// a check that ran and failed yields OK=false with reasons.
func (s *Service) Verify(ctx context.Context, in Input) (migration.ValidationReport, error) {
	plan := in.Plan
	var rep migration.ValidationReport

	if err := s.countCheck(ctx, plan, &rep); err != nil {
		return rep, err
	}

	srcProps, err := s.cluster.GetMapping(ctx, plan.Source())
	if err != nil {
		return rep, fmt.Errorf("read source mapping: %w", err)
	}
	tgtProps, err := s.cluster.GetMapping(ctx, plan.Target())
	if err != nil {
		return rep, fmt.Errorf("read target mapping: %w", err)
	}

	if err := s.sampleCheck(ctx, in, comparableFields(srcProps, tgtProps, plan.NewFieldNames()), &rep); err != nil {
		return rep, err
	}

	for _, v := range plan.VectorFields() {
		got, _ := tgtProps.Field(v.Name)
		rep.SchemaFailures = append(rep.SchemaFailures, v.Check(got)...)
	}
	if len(rep.SchemaFailures) > 0 {
		rep.Reasons = append(rep.Reasons, fmt.Sprintf("schema check: %d failures", len(rep.SchemaFailures)))
	}

	rep.OK = len(rep.Reasons) == 0
	logger.FromContext(ctx).Info("Verification finished",
		zap.Bool("ok", rep.OK),
		zap.Int64("source_count", rep.SourceCount),
		zap.Int64("target_count", rep.TargetCount),
		zap.Float64("match_rate", rep.MatchRate),
		zap.Strings("reasons", rep.Reasons),
	)
	return rep, nil
}

func (s *Service) countCheck(ctx context.Context, plan *migration.Plan, rep *migration.ValidationReport) error {
	src, err := s.cluster.Count(ctx, plan.Source())
	if err != nil {
		return fmt.Errorf("count source: %w", err)
	}
	tgt, err := s.cluster.Count(ctx, plan.Target())
	if err != nil {
		return fmt.Errorf("count target: %w", err)
	}
	rep.SourceCount, rep.TargetCount = src, tgt
	rep.CountDelta = src - tgt
	rep.AllowedDelta = plan.AllowedDelta(src)
	if delta := abs(rep.CountDelta); delta > rep.AllowedDelta {
		rep.Reasons = append(rep.Reasons, fmt.Sprintf(
			"count check: source %d, target %d, delta %d exceeds allowed %d", src, tgt, delta, rep.AllowedDelta))
	}
	return nil
}

func (s *Service) sampleCheck(ctx context.Context, in Input, fields []string, rep *migration.ValidationReport) error {
	plan := in.Plan
	sample := query.Sample{Size: plan.SampleSize(), Seed: in.Seed, Filter: plan.SampleFilter()}
	ids, err := s.cluster.SampleIDs(ctx, plan.Source(), sample.Body())
	if err != nil {
		return fmt.Errorf("sample source ids: %w", err)
	}
	rep.SampleSize = len(ids)
	if len(ids) == 0 {
		rep.MatchRate = 1
		return nil
	}

	mismatched, err := s.compare(ctx, plan.Source(), plan.Target(), ids, fields)
	if err != nil {
		return err
	}
	slices.Sort(mismatched)
	rep.MismatchedIDs = mismatched
	rep.Matched = len(ids) - len(mismatched)
	rep.MatchRate = float64(rep.Matched) / float64(len(ids))
	if rep.MatchRate < plan.SampleMatchThreshold() {
		rep.Reasons = append(rep.Reasons, fmt.Sprintf(
			"sample check: %d/%d matched (%.2f%%), threshold %.2f%%",
			rep.Matched, len(ids), rep.MatchRate*100, plan.SampleMatchThreshold()*100))
	}
	return nil
}

// compare fetches ids from both indices in bounded concurrent batches and
// returns the ids whose comparable fields differ or that are missing on either side.
func (s *Service) compare(ctx context.Context, source, target string, ids, fields []string) ([]string, error) {
	batches := chunk(ids, s.cfg.FetchBatch)
	results := make([][]string, len(batches))
	errs := make([]error, len(batches))

	sem := make(chan struct{}, s.cfg.Concurrency)
	var wg sync.WaitGroup
	for i, batch := range batches {
		wg.Add(1)
		go func(idx int, batch []string) {
			defer wg.Done()

			select {
			case sem <- struct{}{}:
				defer func() { <-sem }()
			case <-ctx.Done():
				errs[idx] = ctx.Err()
				return
			}

			src, err := s.cluster.MultiGet(ctx, source, batch)
			if err != nil {
				errs[idx] = fmt.Errorf("fetch source batch: %w", err)
				return
			}
			tgt, err := s.cluster.MultiGet(ctx, target, batch)
			if err != nil {
				errs[idx] = fmt.Errorf("fetch target batch: %w", err)
				return
			}
			for _, id := range batch {
				if !equalOn(src[id], tgt[id], fields) {
					results[idx] = append(results[idx], id)
				}
			}
		}(i, batch)
	}
	wg.Wait()

	var mismatched []string
	for i, err := range errs {
		if err != nil {
			return nil, err
		}
		mismatched = append(mismatched, results[i]...)
	}
	return mismatched, nil
}

// comparableFields returns fields mapped in both indices, minus the new ones.
func comparableFields(src, tgt index.Properties, exclude []string) []string {
	var out []string
	for _, name := range src.Names() {
		if _, ok := tgt[name]; ok && !slices.Contains(exclude, name) {
			out = append(out, name)
		}
	}
	return out
}

func equalOn(a, b cluster.Document, fields []string) bool {
	if a == nil || b == nil {
		return false
	}
	for _, f := range fields {
		av, aok := a[f]
		bv, bok := b[f]
		if aok != bok || !reflect.DeepEqual(av, bv) {
			return false
		}
	}
	return true
}

func chunk(ids []string, size int) [][]string {
	var out [][]string
	for size < len(ids) {
		ids, out = ids[size:], append(out, ids[:size:size])
	}
	return append(out, ids)
}

func abs(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}
