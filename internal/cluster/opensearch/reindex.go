package opensearch

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/kailas-cloud/vecshift/internal/cluster"
)

// excludeScript drops fields from every copied document.
const excludeScript = "for (f in params.excluded) { ctx._source.remove(f) }"

// StartReindex launches a background copy and returns its task ID.
func (c *Client) StartReindex(ctx context.Context, req cluster.ReindexRequest) (string, error) {
	q := url.Values{"wait_for_completion": {"false"}}
	if req.Slices != "" {
		q.Set("slices", req.Slices)
	}
	if req.RequestsPerSecond > 0 {
		q.Set("requests_per_second", strconv.FormatFloat(req.RequestsPerSecond, 'f', -1, 64))
	}

	source := map[string]any{"index": req.Source}
	if req.BatchSize > 0 {
		source["size"] = req.BatchSize
	}
	body := map[string]any{
		"source": source,
		"dest":   map[string]any{"index": req.Dest},
	}
	if len(req.ExcludeFields) > 0 {
		body["script"] = map[string]any{
			"lang":   "painless",
			"source": excludeScript,
			"params": map[string]any{"excluded": req.ExcludeFields},
		}
	}

	var resp struct {
		Task string `json:"task"`
	}
	if err := c.do(ctx, cluster.OpReindex, http.MethodPost, "/_reindex", q, body, &resp); err != nil {
		if !cluster.IsAmbiguous(err) {
			return "", err
		}
		// The request may have started a task; adopt it instead of starting a second copy.
		id, ferr := c.findReindexTask(ctx, req.Source, req.Dest)
		if ferr != nil || id == "" {
			c.logger.Warn("reindex outcome unknown, no running task found",
				zap.String("source", req.Source), zap.String("dest", req.Dest), zap.Error(err))
			return "", err
		}
		c.logger.Warn("reindex outcome unknown, adopting running task",
			zap.String("task_id", id), zap.Error(err))
		return id, nil
	}
	if resp.Task == "" {
		return "", &cluster.Error{Op: cluster.OpReindex, Reason: "no task id in response", Err: fmt.Errorf("reindex returned no task")}
	}
	return resp.Task, nil
}

// findReindexTask returns the newest top-level reindex task copying source
// into dest, or "" when none is running.
func (c *Client) findReindexTask(ctx context.Context, source, dest string) (string, error) {
	var resp struct {
		Nodes map[string]struct {
			Tasks map[string]struct {
				Description  string `json:"description"`
				StartMillis  int64  `json:"start_time_in_millis"`
				ParentTaskID string `json:"parent_task_id"`
			} `json:"tasks"`
		} `json:"nodes"`
	}
	q := url.Values{"actions": {"*reindex"}, "detailed": {"true"}}
	if err := c.do(ctx, cluster.OpListTasks, http.MethodGet, "/_tasks", q, nil, &resp); err != nil {
		return "", err
	}

	prefix := "reindex from [" + source + "]"
	target := "to [" + dest + "]"
	var found string
	var newest int64 = -1
	for _, node := range resp.Nodes {
		for id, t := range node.Tasks {
			if t.ParentTaskID != "" {
				continue
			}
			if !strings.HasPrefix(t.Description, prefix) || !strings.Contains(t.Description, target) {
				continue
			}
			if t.StartMillis > newest {
				found, newest = id, t.StartMillis
			}
		}
	}
	return found, nil
}

type taskResponse struct {
	Completed bool `json:"completed"`
	Task      struct {
		RunningTimeNanos int64 `json:"running_time_in_nanos"`
		Status           struct {
			Total            int64 `json:"total"`
			Created          int64 `json:"created"`
			Updated          int64 `json:"updated"`
			Deleted          int64 `json:"deleted"`
			Batches          int64 `json:"batches"`
			VersionConflicts int64 `json:"version_conflicts"`
		} `json:"status"`
	} `json:"task"`
	Response *struct {
		Failures []json.RawMessage `json:"failures"`
	} `json:"response"`
	Error *struct {
		Type   string `json:"type"`
		Reason string `json:"reason"`
	} `json:"error"`
}

// GetTask returns the status of a background task.
func (c *Client) GetTask(ctx context.Context, taskID string) (cluster.TaskStatus, error) {
	var resp taskResponse
	if err := c.do(ctx, cluster.OpGetTask, http.MethodGet, "/_tasks/"+escape(taskID), nil, nil, &resp); err != nil {
		return cluster.TaskStatus{}, err
	}

	st := resp.Task.Status
	out := cluster.TaskStatus{
		ID:               taskID,
		Completed:        resp.Completed,
		Total:            st.Total,
		Created:          st.Created,
		Updated:          st.Updated,
		Deleted:          st.Deleted,
		Batches:          st.Batches,
		VersionConflicts: st.VersionConflicts,
		RunningNanos:     resp.Task.RunningTimeNanos,
	}
	if resp.Response != nil {
		for _, f := range resp.Response.Failures {
			out.Failures = append(out.Failures, truncate(string(f), 512))
		}
	}
	if resp.Error != nil {
		out.Error = resp.Error.Type + ": " + resp.Error.Reason
	}
	return out, nil
}

// CancelTask asks the cluster to stop a running task and its slices.
func (c *Client) CancelTask(ctx context.Context, taskID string) error {
	return c.do(ctx, cluster.OpCancelTask, http.MethodPost, "/_tasks/"+escape(taskID)+"/_cancel", nil, nil, nil)
}
