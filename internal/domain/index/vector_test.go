package index

import "testing"

func TestVectorField_Validate(t *testing.T) {
	tests := []struct {
		name  string
		field VectorField
		valid bool
	}{
		{"minimal", VectorField{Name: "v", Dimension: 1024, SpaceType: SpaceCosine}, true},
		{"faiss hnsw", VectorField{Name: "v", Dimension: 8, SpaceType: SpaceL2, Engine: EngineFaiss, M: 16}, true},
		{"zero dim", VectorField{Name: "v", Dimension: 0, SpaceType: SpaceCosine}, false},
		{"too large", VectorField{Name: "v", Dimension: MaxDimension + 1, SpaceType: SpaceCosine}, false},
		{"no space", VectorField{Name: "v", Dimension: 4}, false},
		{"bad space", VectorField{Name: "v", Dimension: 4, SpaceType: "hamming"}, false},
		{"bad engine", VectorField{Name: "v", Dimension: 4, SpaceType: SpaceL2, Engine: "annoy"}, false},
		{"bad name", VectorField{Name: "_v", Dimension: 4, SpaceType: SpaceL2}, false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.field.Validate()
			if (err == nil) != tc.valid {
				t.Errorf("Validate() err = %v, want valid=%v", err, tc.valid)
			}
		})
	}
}

func TestVectorField_Mapping(t *testing.T) {
	v := VectorField{
		Name: "image_vector", Dimension: 1024, SpaceType: SpaceCosine,
		Engine: EngineFaiss, M: 16, EFConstruction: 256,
	}
	m := v.Mapping()
	if m["type"] != VectorType {
		t.Errorf("type = %v", m["type"])
	}
	if m["dimension"] != float64(1024) {
		t.Errorf("dimension = %v", m["dimension"])
	}
	method, ok := m["method"].(map[string]any)
	if !ok {
		t.Fatal("expected method block")
	}
	if method["name"] != "hnsw" || method["engine"] != "faiss" || method["space_type"] != "cosinesimil" {
		t.Errorf("unexpected method: %v", method)
	}
	params := method["parameters"].(map[string]any)
	if params["m"] != float64(16) || params["ef_construction"] != float64(256) {
		t.Errorf("unexpected parameters: %v", params)
	}
}

func TestVectorField_MappingWithoutEngine(t *testing.T) {
	m := VectorField{Name: "v", Dimension: 3, SpaceType: SpaceL2}.Mapping()
	if _, ok := m["method"]; ok {
		t.Error("method must be omitted when no engine is set")
	}
	if m["space_type"] != "l2" {
		t.Errorf("space_type = %v", m["space_type"])
	}
}

func TestVectorField_Check(t *testing.T) {
	v := VectorField{Name: "v", Dimension: 1024, SpaceType: SpaceCosine, Engine: EngineFaiss}

	if f := v.Check(v.Mapping()); len(f) != 0 {
		t.Fatalf("own mapping should pass, got %v", f)
	}

	coerced := map[string]any{"type": "knn_vector", "dimension": 768, "space_type": "l2"}
	if f := v.Check(coerced); len(f) != 2 {
		t.Errorf("expected dimension and space failures, got %v", f)
	}

	wrongType := map[string]any{"type": "float", "dimension": 1024, "space_type": "cosinesimil"}
	if f := v.Check(wrongType); len(f) != 1 {
		t.Errorf("expected type failure, got %v", f)
	}

	if f := v.Check(nil); len(f) != 1 {
		t.Errorf("expected missing failure, got %v", f)
	}
}
