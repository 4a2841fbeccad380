package query

import (
	"reflect"
	"testing"
)

func TestSample_Shape(t *testing.T) {
	if got := (Sample{Size: 10}).Shape(); got != ShapeMatchAll {
		t.Errorf("Shape() = %q, want match_all", got)
	}
	s := Sample{Size: 10, Filter: map[string]any{"range": map[string]any{"ts": map[string]any{"lt": "now-1h"}}}}
	if got := s.Shape(); got != ShapeFiltered {
		t.Errorf("Shape() = %q, want filtered", got)
	}
}

func TestStrategies_CoverEveryShape(t *testing.T) {
	for _, shape := range []Shape{ShapeMatchAll, ShapeFiltered} {
		if _, ok := strategies[shape]; !ok {
			t.Errorf("no strategy for %q", shape)
		}
	}
}

func TestMatchAllBody(t *testing.T) {
	body := Sample{Size: 100, Seed: 42}.Body()
	if body["size"] != 100 || body["_source"] != false {
		t.Fatalf("unexpected envelope: %v", body)
	}
	fs := body["query"].(map[string]any)["function_score"].(map[string]any)
	rs := fs["random_score"].(map[string]any)
	if rs["seed"] != int64(42) || rs["field"] != "_seq_no" {
		t.Errorf("unexpected random_score: %v", rs)
	}
	if _, ok := fs["query"].(map[string]any)["match_all"]; !ok {
		t.Errorf("expected match_all inner query, got %v", fs["query"])
	}
}

func TestFilteredBody(t *testing.T) {
	filter := map[string]any{"term": map[string]any{"category": "invoice"}}
	body := Sample{Size: 5, Seed: 1, Filter: filter}.Body()
	fs := body["query"].(map[string]any)["function_score"].(map[string]any)
	b := fs["query"].(map[string]any)["bool"].(map[string]any)
	got := b["filter"].([]any)
	if len(got) != 1 || !reflect.DeepEqual(got[0], filter) {
		t.Errorf("filter not embedded: %v", got)
	}
}

func TestBody_Deterministic(t *testing.T) {
	s := Sample{Size: 3, Seed: 7}
	if !reflect.DeepEqual(s.Body(), s.Body()) {
		t.Error("same sample must render the same body")
	}
}
