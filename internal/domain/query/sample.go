// Package query shapes the random-sample search used by the integrity check.
package query

// Shape identifies which strategy renders a sample query.
type Shape string

// Sample query shapes.
const (
	ShapeMatchAll Shape = "match_all"
	ShapeFiltered Shape = "filtered"
)

// Sample asks for Size random document IDs, reproducible for a fixed Seed.
// Filter is an optional raw query clause restricting the candidates.
type Sample struct {
	Size   int
	Seed   int64
	Filter map[string]any
}

// Shape picks the strategy for this sample.
func (s Sample) Shape() Shape {
	if len(s.Filter) > 0 {
		return ShapeFiltered
	}
	return ShapeMatchAll
}

// Body renders the _search request body.
func (s Sample) Body() map[string]any {
	return strategies[s.Shape()](s)
}

type strategy func(Sample) map[string]any

var strategies = map[Shape]strategy{
	ShapeMatchAll: func(s Sample) map[string]any {
		return randomScored(s, map[string]any{"match_all": map[string]any{}})
	},
	ShapeFiltered: func(s Sample) map[string]any {
		return randomScored(s, map[string]any{
			"bool": map[string]any{"filter": []any{s.Filter}},
		})
	},
}

func randomScored(s Sample, inner map[string]any) map[string]any {
	return map[string]any{
		"size":    s.Size,
		"_source": false,
		"query": map[string]any{
			"function_score": map[string]any{
				"query": inner,
				"random_score": map[string]any{
					"seed":  s.Seed,
					"field": "_seq_no",
				},
				"boost_mode": "replace",
			},
		},
	}
}
