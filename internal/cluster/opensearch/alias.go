package opensearch

import (
	"context"
	"fmt"
	"net/http"
	"sort"

	"github.com/kailas-cloud/vecshift/internal/cluster"
)

// GetAlias returns the concrete indices an alias resolves to, sorted.
func (c *Client) GetAlias(ctx context.Context, alias string) ([]string, error) {
	var resp map[string]struct {
		Aliases map[string]any `json:"aliases"`
	}
	if err := c.do(ctx, cluster.OpGetAlias, http.MethodGet, "/_alias/"+escape(alias), nil, nil, &resp); err != nil {
		return nil, err
	}

	indices := make([]string, 0, len(resp))
	for name, entry := range resp {
		if _, ok := entry.Aliases[alias]; ok {
			indices = append(indices, name)
		}
	}
	if len(indices) == 0 {
		return nil, &cluster.Error{Op: cluster.OpGetAlias, Status: http.StatusNotFound, Reason: alias, Err: cluster.ErrAliasNotFound}
	}
	sort.Strings(indices)
	return indices, nil
}

// UpdateAliases applies every action in one POST /_aliases request, so the
// cluster commits them as a single atomic change.
func (c *Client) UpdateAliases(ctx context.Context, actions []cluster.AliasAction) error {
	if len(actions) == 0 {
		return nil
	}

	body := make([]map[string]any, 0, len(actions))
	for _, a := range actions {
		switch a.Kind {
		case cluster.AliasAdd, cluster.AliasRemove:
		default:
			return &cluster.Error{Op: cluster.OpUpdateAliases, Err: fmt.Errorf("unknown alias action %q", a.Kind)}
		}
		body = append(body, map[string]any{
			string(a.Kind): map[string]any{"index": a.Index, "alias": a.Alias},
		})
	}

	var resp struct {
		Acknowledged bool `json:"acknowledged"`
	}
	err := c.do(ctx, cluster.OpUpdateAliases, http.MethodPost, "/_aliases", nil, map[string]any{"actions": body}, &resp)
	if err != nil {
		return err
	}
	if !resp.Acknowledged {
		return &cluster.Error{Op: cluster.OpUpdateAliases, Reason: "not acknowledged", Err: fmt.Errorf("alias update not acknowledged")}
	}
	return nil
}
