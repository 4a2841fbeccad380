// Package migration holds the migration plan, the run record and its state machine.
package migration

import (
	"encoding/json"
	"fmt"
	"math"

	"github.com/kailas-cloud/vecshift/internal/domain/index"
)

// MaxSampleSize bounds the integrity sample.
const MaxSampleSize = 10000

// PlanParams is the operator input for a migration. CountTolerance and
// SampleMatchThreshold have no defaults and must be set explicitly.
type PlanParams struct {
	Source               string              `json:"source" yaml:"source"`
	Target               string              `json:"target" yaml:"target"`
	Alias                string              `json:"alias" yaml:"alias"`
	VectorFields         []index.VectorField `json:"vector_fields" yaml:"vector_fields"`
	Settings             map[string]any      `json:"settings,omitempty" yaml:"settings"`
	CountTolerance       *float64            `json:"count_tolerance" yaml:"count_tolerance"`
	SampleSize           int                 `json:"sample_size" yaml:"sample_size"`
	SampleMatchThreshold *float64            `json:"sample_match_threshold" yaml:"sample_match_threshold"`
	SampleFilter         map[string]any      `json:"sample_filter,omitempty" yaml:"sample_filter"`
	SampleSeed           int64               `json:"sample_seed,omitempty" yaml:"sample_seed"`
	SnapshotRepository   string              `json:"snapshot_repository" yaml:"snapshot_repository"`
	AllowReplace         bool                `json:"allow_replace,omitempty" yaml:"allow_replace"`
}

// Plan is an immutable, validated migration plan.
type Plan struct {
	p PlanParams
}

// NewPlan validates params and returns an immutable plan.
func NewPlan(params PlanParams) (*Plan, error) {
	if err := validate(params); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidPlan, err)
	}
	return &Plan{p: copyParams(params)}, nil
}

func validate(p PlanParams) error {
	for _, n := range []struct{ label, name string }{
		{"source", p.Source}, {"target", p.Target}, {"alias", p.Alias},
	} {
		if err := index.ValidateIndexName(n.name); err != nil {
			return fmt.Errorf("%s: %w", n.label, err)
		}
	}
	if p.Source == p.Target {
		return fmt.Errorf("source and target must differ")
	}
	if p.Alias == p.Source || p.Alias == p.Target {
		return fmt.Errorf("alias must differ from source and target")
	}

	if p.CountTolerance == nil {
		return fmt.Errorf("count_tolerance is required")
	}
	if t := *p.CountTolerance; math.IsNaN(t) || t < 0 || t > 1 {
		return fmt.Errorf("count_tolerance must be in [0, 1], got %v", t)
	}
	if p.SampleMatchThreshold == nil {
		return fmt.Errorf("sample_match_threshold is required")
	}
	if t := *p.SampleMatchThreshold; math.IsNaN(t) || t < 0 || t > 1 {
		return fmt.Errorf("sample_match_threshold must be in [0, 1], got %v", t)
	}
	if p.SampleSize < 1 || p.SampleSize > MaxSampleSize {
		return fmt.Errorf("sample_size must be in [1, %d], got %d", MaxSampleSize, p.SampleSize)
	}

	if len(p.VectorFields) == 0 {
		return fmt.Errorf("at least one vector field is required")
	}
	seen := make(map[string]bool, len(p.VectorFields))
	for _, v := range p.VectorFields {
		if err := v.Validate(); err != nil {
			return err
		}
		if seen[v.Name] {
			return fmt.Errorf("duplicate vector field %q", v.Name)
		}
		seen[v.Name] = true
	}

	if p.SnapshotRepository == "" {
		return fmt.Errorf("snapshot_repository is required")
	}
	return nil
}

func copyParams(p PlanParams) PlanParams {
	out := p
	out.VectorFields = append([]index.VectorField(nil), p.VectorFields...)
	out.Settings = copyMap(p.Settings)
	out.SampleFilter = copyMap(p.SampleFilter)
	ct, mt := *p.CountTolerance, *p.SampleMatchThreshold
	out.CountTolerance, out.SampleMatchThreshold = &ct, &mt
	return out
}

func copyMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	return map[string]any(index.Properties(m).Clone())
}

// Source returns the source index name.
func (p *Plan) Source() string { return p.p.Source }

// Target returns the target index name.
func (p *Plan) Target() string { return p.p.Target }

// Alias returns the alias that is cut over.
func (p *Plan) Alias() string { return p.p.Alias }

// VectorFields returns the fields the target adds.
func (p *Plan) VectorFields() []index.VectorField {
	return append([]index.VectorField(nil), p.p.VectorFields...)
}

// NewFieldNames returns the names of the added fields; they are excluded from the copy.
func (p *Plan) NewFieldNames() []string {
	names := make([]string, len(p.p.VectorFields))
	for i, v := range p.p.VectorFields {
		names[i] = v.Name
	}
	return names
}

// CountTolerance is the allowed count drift as a fraction of the source count.
func (p *Plan) CountTolerance() float64 { return *p.p.CountTolerance }

// AllowedDelta returns the largest acceptable |source - target| for sourceCount.
func (p *Plan) AllowedDelta(sourceCount int64) int64 {
	return int64(math.Floor(p.CountTolerance()*float64(sourceCount) + 1e-9))
}

// SampleSize is the number of documents the integrity check compares.
func (p *Plan) SampleSize() int { return p.p.SampleSize }

// SampleMatchThreshold is the minimum fraction of sampled documents that must match.
func (p *Plan) SampleMatchThreshold() float64 { return *p.p.SampleMatchThreshold }

// SampleFilter returns the optional clause restricting sampled documents.
func (p *Plan) SampleFilter() map[string]any { return copyMap(p.p.SampleFilter) }

// SampleSeed returns the random sample seed; 0 means the caller picks one.
func (p *Plan) SampleSeed() int64 { return p.p.SampleSeed }

// SnapshotRepository returns the snapshot repository name.
func (p *Plan) SnapshotRepository() string { return p.p.SnapshotRepository }

// AllowReplace reports whether an existing target may be deleted and recreated.
func (p *Plan) AllowReplace() bool { return p.p.AllowReplace }

// TargetProperties returns the source mapping extended with the vector fields.
func (p *Plan) TargetProperties(source index.Properties) (index.Properties, error) {
	extra := make(index.Properties, len(p.p.VectorFields))
	for _, v := range p.p.VectorFields {
		extra[v.Name] = v.Mapping()
	}
	props, err := source.With(extra)
	if err != nil {
		return nil, fmt.Errorf("extend source mapping: %w", err)
	}
	return props, nil
}

// TargetSettings returns the create-index settings. knn is always enabled.
func (p *Plan) TargetSettings() map[string]any {
	s := copyMap(p.p.Settings)
	if s == nil {
		s = make(map[string]any)
	}
	if _, ok := s["index.knn"]; !ok {
		s["index.knn"] = true
	}
	return s
}

// Params returns a copy of the plan input.
func (p *Plan) Params() PlanParams { return copyParams(p.p) }

// MarshalJSON renders the plan as its params.
func (p *Plan) MarshalJSON() ([]byte, error) {
	return json.Marshal(p.p)
}

// UnmarshalJSON decodes and re-validates a plan.
func (p *Plan) UnmarshalJSON(data []byte) error {
	var params PlanParams
	if err := json.Unmarshal(data, &params); err != nil {
		return err
	}
	np, err := NewPlan(params)
	if err != nil {
		return err
	}
	*p = *np
	return nil
}
