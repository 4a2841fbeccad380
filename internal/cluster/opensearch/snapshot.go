package opensearch

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"regexp"
	"strings"

	"go.uber.org/zap"

	"github.com/kailas-cloud/vecshift/internal/cluster"
)

// RepositoryExists checks that a snapshot repository is registered.
func (c *Client) RepositoryExists(ctx context.Context, repo string) (bool, error) {
	var resp map[string]any
	err := c.do(ctx, cluster.OpGetRepository, http.MethodGet, "/_snapshot/"+escape(repo), nil, nil, &resp)
	if errors.Is(err, cluster.ErrRepositoryNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	_, ok := resp[repo]
	return ok, nil
}

// CreateSnapshot starts a snapshot of the given indices without the global state.
// It returns once the cluster accepted the request; poll GetSnapshot for completion.
func (c *Client) CreateSnapshot(ctx context.Context, repo, name string, indices []string) error {
	q := url.Values{"wait_for_completion": {"false"}}
	body := map[string]any{
		"indices":              strings.Join(indices, ","),
		"include_global_state": false,
		"ignore_unavailable":   false,
	}
	path := "/_snapshot/" + escape(repo) + "/" + escape(name)
	err := c.do(ctx, cluster.OpCreateSnapshot, http.MethodPut, path, q, body, nil)
	if err == nil || !cluster.IsAmbiguous(err) {
		return err
	}
	// Snapshot names are unique per repository: if it exists, our request made it.
	info, gerr := c.GetSnapshot(ctx, repo, name)
	if gerr != nil {
		c.logger.Warn("snapshot create outcome unknown, snapshot not found",
			zap.String("snapshot", name), zap.NamedError("lookup_error", gerr), zap.Error(err))
		return err
	}
	c.logger.Warn("snapshot create outcome unknown, snapshot exists",
		zap.String("snapshot", name), zap.String("state", string(info.State)), zap.Error(err))
	return nil
}

// GetSnapshot returns the current state of a snapshot.
func (c *Client) GetSnapshot(ctx context.Context, repo, name string) (cluster.SnapshotInfo, error) {
	var resp struct {
		Snapshots []struct {
			Snapshot string   `json:"snapshot"`
			State    string   `json:"state"`
			Indices  []string `json:"indices"`
			Reason   string   `json:"reason"`
		} `json:"snapshots"`
	}
	path := "/_snapshot/" + escape(repo) + "/" + escape(name)
	if err := c.do(ctx, cluster.OpGetSnapshot, http.MethodGet, path, nil, nil, &resp); err != nil {
		return cluster.SnapshotInfo{}, err
	}
	for _, s := range resp.Snapshots {
		if s.Snapshot == name {
			return cluster.SnapshotInfo{
				Name:    s.Snapshot,
				State:   cluster.SnapshotState(s.State),
				Indices: s.Indices,
				Reason:  s.Reason,
			}, nil
		}
	}
	return cluster.SnapshotInfo{}, &cluster.Error{
		Op: cluster.OpGetSnapshot, Status: http.StatusNotFound, Reason: name, Err: cluster.ErrSnapshotNotFound,
	}
}

// RestoreSnapshot restores one index of a snapshot under req.RenameTo. Aliases
// stored in the snapshot are not restored.
func (c *Client) RestoreSnapshot(ctx context.Context, req cluster.RestoreRequest) error {
	body := map[string]any{
		"indices":              req.Index,
		"include_global_state": false,
		"include_aliases":      false,
	}
	if req.RenameTo != "" && req.RenameTo != req.Index {
		body["rename_pattern"] = "^" + regexp.QuoteMeta(req.Index) + "$"
		body["rename_replacement"] = req.RenameTo
	}
	path := "/_snapshot/" + escape(req.Repository) + "/" + escape(req.Snapshot) + "/_restore"
	return c.do(ctx, cluster.OpRestoreSnapshot, http.MethodPost, path, nil, body, nil)
}
