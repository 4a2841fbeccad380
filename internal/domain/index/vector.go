package index

import (
	"errors"
	"fmt"
)

// MaxDimension is the largest knn_vector dimension the cluster accepts.
const MaxDimension = 16000

// SpaceType is the distance metric of a vector field.
type SpaceType string

// Supported space types.
const (
	SpaceCosine       SpaceType = "cosinesimil"
	SpaceL2           SpaceType = "l2"
	SpaceInnerProduct SpaceType = "innerproduct"
	SpaceL1           SpaceType = "l1"
	SpaceLInf         SpaceType = "linf"
)

// Engine is the ANN library backing a vector field.
type Engine string

// Supported engines.
const (
	EngineFaiss  Engine = "faiss"
	EngineLucene Engine = "lucene"
	EngineNmslib Engine = "nmslib"
)

// VectorType is the mapping type of vector fields.
const VectorType = "knn_vector"

// VectorField describes the fixed-dimension vector field a migration adds.
type VectorField struct {
	Name           string    `json:"name" yaml:"name"`
	Dimension      int       `json:"dimension" yaml:"dimension"`
	SpaceType      SpaceType `json:"space_type" yaml:"space_type"`
	Engine         Engine    `json:"engine,omitempty" yaml:"engine"`
	Method         string    `json:"method,omitempty" yaml:"method"`
	M              int       `json:"m,omitempty" yaml:"m"`
	EFConstruction int       `json:"ef_construction,omitempty" yaml:"ef_construction"`
}

// Validate checks the field definition.
func (v VectorField) Validate() error {
	if err := ValidateFieldName(v.Name); err != nil {
		return err
	}
	if v.Dimension <= 0 || v.Dimension > MaxDimension {
		return fmt.Errorf("vector field %q: dimension must be in [1, %d], got %d", v.Name, MaxDimension, v.Dimension)
	}
	switch v.SpaceType {
	case SpaceCosine, SpaceL2, SpaceInnerProduct, SpaceL1, SpaceLInf:
	case "":
		return fmt.Errorf("vector field %q: space_type is required", v.Name)
	default:
		return fmt.Errorf("vector field %q: unknown space_type %q", v.Name, v.SpaceType)
	}
	switch v.Engine {
	case "", EngineFaiss, EngineLucene, EngineNmslib:
	default:
		return fmt.Errorf("vector field %q: unknown engine %q", v.Name, v.Engine)
	}
	if v.M < 0 || v.EFConstruction < 0 {
		return errors.New("vector method parameters must not be negative")
	}
	return nil
}

// Mapping renders the knn_vector mapping object. Method details are included only
// when an engine is set so the requested mapping carries no implicit values.
func (v VectorField) Mapping() map[string]any {
	m := map[string]any{
		"type":      VectorType,
		"dimension": float64(v.Dimension),
	}
	if v.Engine == "" {
		m["space_type"] = string(v.SpaceType)
		return m
	}

	method := v.Method
	if method == "" {
		method = "hnsw"
	}
	mm := map[string]any{
		"name":       method,
		"space_type": string(v.SpaceType),
		"engine":     string(v.Engine),
	}
	params := map[string]any{}
	if v.M > 0 {
		params["m"] = float64(v.M)
	}
	if v.EFConstruction > 0 {
		params["ef_construction"] = float64(v.EFConstruction)
	}
	if len(params) > 0 {
		mm["parameters"] = params
	}
	m["method"] = mm
	return m
}

// Check compares an accepted field mapping against this definition's type,
// dimension and space type. It returns one message per failure.
func (v VectorField) Check(accepted map[string]any) []string {
	if accepted == nil {
		return []string{fmt.Sprintf("field %q is missing from the mapping", v.Name)}
	}
	accepted = normalizeMap(accepted)

	var failures []string
	if t, _ := accepted["type"].(string); t != VectorType {
		failures = append(failures, fmt.Sprintf("field %q: type is %q, want %q", v.Name, t, VectorType))
	}
	if dim, _ := accepted["dimension"].(float64); int(dim) != v.Dimension {
		failures = append(failures, fmt.Sprintf("field %q: dimension is %d, want %d", v.Name, int(dim), v.Dimension))
	}

	space, _ := accepted["space_type"].(string)
	if method, ok := accepted["method"].(map[string]any); ok {
		if s, ok := method["space_type"].(string); ok {
			space = s
		}
	}
	if space != string(v.SpaceType) {
		failures = append(failures, fmt.Sprintf("field %q: space_type is %q, want %q", v.Name, space, v.SpaceType))
	}
	return failures
}
