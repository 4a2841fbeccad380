package opensearch

import (
	"context"
	"net/http"

	"github.com/kailas-cloud/vecshift/internal/cluster"
)

// SampleIDs runs a search and returns the hit IDs in score order.
func (c *Client) SampleIDs(ctx context.Context, index string, body map[string]any) ([]string, error) {
	var resp struct {
		Hits struct {
			Hits []struct {
				ID string `json:"_id"`
			} `json:"hits"`
		} `json:"hits"`
	}
	if err := c.do(ctx, cluster.OpSearch, http.MethodPost, "/"+escape(index)+"/_search", nil, body, &resp); err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(resp.Hits.Hits))
	for _, h := range resp.Hits.Hits {
		ids = append(ids, h.ID)
	}
	return ids, nil
}

// MultiGet fetches documents by ID. Missing documents are absent from the result.
func (c *Client) MultiGet(ctx context.Context, index string, ids []string) (map[string]cluster.Document, error) {
	if len(ids) == 0 {
		return map[string]cluster.Document{}, nil
	}
	var resp struct {
		Docs []struct {
			ID     string           `json:"_id"`
			Found  bool             `json:"found"`
			Source cluster.Document `json:"_source"`
		} `json:"docs"`
	}
	body := map[string]any{"ids": ids}
	if err := c.do(ctx, cluster.OpMultiGet, http.MethodPost, "/"+escape(index)+"/_mget", nil, body, &resp); err != nil {
		return nil, err
	}
	out := make(map[string]cluster.Document, len(resp.Docs))
	for _, d := range resp.Docs {
		if d.Found {
			out[d.ID] = d.Source
		}
	}
	return out, nil
}
