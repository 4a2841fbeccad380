package opensearch

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/kailas-cloud/vecshift/internal/cluster"
	"github.com/kailas-cloud/vecshift/internal/domain/index"
)

// IndexExists checks whether a concrete index (or alias) exists.
func (c *Client) IndexExists(ctx context.Context, name string) (bool, error) {
	err := c.do(ctx, cluster.OpIndexExists, http.MethodHead, "/"+escape(name), nil, nil, nil)
	if errors.Is(err, cluster.ErrIndexNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// CreateIndex creates an index with settings and field mappings.
func (c *Client) CreateIndex(ctx context.Context, name string, body cluster.IndexBody) error {
	req := map[string]any{
		"mappings": map[string]any{"properties": body.Properties},
	}
	if len(body.Settings) > 0 {
		req["settings"] = body.Settings
	}
	var resp struct {
		Acknowledged bool `json:"acknowledged"`
	}
	if err := c.do(ctx, cluster.OpCreateIndex, http.MethodPut, "/"+escape(name), nil, req, &resp); err != nil {
		return err
	}
	if !resp.Acknowledged {
		return &cluster.Error{Op: cluster.OpCreateIndex, Reason: "not acknowledged", Err: fmt.Errorf("create %s not acknowledged", name)}
	}
	return nil
}

// DeleteIndex deletes a concrete index.
func (c *Client) DeleteIndex(ctx context.Context, name string) error {
	return c.do(ctx, cluster.OpDeleteIndex, http.MethodDelete, "/"+escape(name), nil, nil, nil)
}

// GetMapping returns the field mappings of an index.
func (c *Client) GetMapping(ctx context.Context, name string) (index.Properties, error) {
	var resp map[string]struct {
		Mappings struct {
			Properties map[string]any `json:"properties"`
		} `json:"mappings"`
	}
	if err := c.do(ctx, cluster.OpGetMapping, http.MethodGet, "/"+escape(name)+"/_mapping", nil, nil, &resp); err != nil {
		return nil, err
	}
	if m, ok := resp[name]; ok {
		return index.Properties(m.Mappings.Properties), nil
	}
	// name resolved through an alias: the response is keyed by the concrete index.
	if len(resp) == 1 {
		for _, m := range resp {
			return index.Properties(m.Mappings.Properties), nil
		}
	}
	return nil, &cluster.Error{Op: cluster.OpGetMapping, Status: http.StatusNotFound, Reason: name, Err: cluster.ErrIndexNotFound}
}

// Count returns the number of documents in an index.
func (c *Client) Count(ctx context.Context, name string) (int64, error) {
	var resp struct {
		Count int64 `json:"count"`
	}
	if err := c.do(ctx, cluster.OpCount, http.MethodGet, "/"+escape(name)+"/_count", nil, nil, &resp); err != nil {
		return 0, err
	}
	return resp.Count, nil
}

// Refresh makes all operations performed on an index visible to search.
func (c *Client) Refresh(ctx context.Context, name string) error {
	return c.do(ctx, cluster.OpRefresh, http.MethodPost, "/"+escape(name)+"/_refresh", nil, nil, nil)
}

// PutSettings updates dynamic index settings.
func (c *Client) PutSettings(ctx context.Context, name string, settings map[string]any) error {
	return c.do(ctx, cluster.OpPutSettings, http.MethodPut, "/"+escape(name)+"/_settings", nil, settings, nil)
}
