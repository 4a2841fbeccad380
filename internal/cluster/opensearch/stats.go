package opensearch

import (
	"context"
	"net/http"
	"net/url"
	"sort"
	"strconv"

	"github.com/kailas-cloud/vecshift/internal/cluster"
)

// DiskUsage returns per-node disk allocation. Rows without a known total
// (e.g. UNASSIGNED) are skipped.
func (c *Client) DiskUsage(ctx context.Context) ([]cluster.NodeDisk, error) {
	var rows []struct {
		Node      string  `json:"node"`
		DiskUsed  *string `json:"disk.used"`
		DiskTotal *string `json:"disk.total"`
	}
	q := url.Values{"format": {"json"}, "bytes": {"b"}}
	if err := c.do(ctx, cluster.OpAllocation, http.MethodGet, "/_cat/allocation", q, nil, &rows); err != nil {
		return nil, err
	}

	out := make([]cluster.NodeDisk, 0, len(rows))
	for _, r := range rows {
		if r.DiskUsed == nil || r.DiskTotal == nil {
			continue
		}
		used, err := strconv.ParseInt(*r.DiskUsed, 10, 64)
		if err != nil {
			continue
		}
		total, err := strconv.ParseInt(*r.DiskTotal, 10, 64)
		if err != nil || total <= 0 {
			continue
		}
		out = append(out, cluster.NodeDisk{Node: r.Node, UsedBytes: used, TotalBytes: total})
	}
	return out, nil
}

// HeapUsage returns per-node JVM heap usage.
func (c *Client) HeapUsage(ctx context.Context) ([]cluster.NodeHeap, error) {
	var resp struct {
		Nodes map[string]struct {
			Name string `json:"name"`
			JVM  struct {
				Mem struct {
					HeapUsedPercent float64 `json:"heap_used_percent"`
				} `json:"mem"`
			} `json:"jvm"`
		} `json:"nodes"`
	}
	if err := c.do(ctx, cluster.OpNodeStats, http.MethodGet, "/_nodes/stats/jvm", nil, nil, &resp); err != nil {
		return nil, err
	}

	out := make([]cluster.NodeHeap, 0, len(resp.Nodes))
	for id, n := range resp.Nodes {
		name := n.Name
		if name == "" {
			name = id
		}
		out = append(out, cluster.NodeHeap{Node: name, UsedPercent: n.JVM.Mem.HeapUsedPercent})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Node < out[j].Node })
	return out, nil
}
