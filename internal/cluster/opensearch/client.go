// Package opensearch implements cluster.Cluster over the OpenSearch REST API.
package opensearch

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	osclient "github.com/opensearch-project/opensearch-go/v4"
	"go.uber.org/zap"

	"github.com/kailas-cloud/vecshift/internal/cluster"
	"github.com/kailas-cloud/vecshift/internal/metrics"
	"github.com/kailas-cloud/vecshift/internal/retry"
)

// Compile-time check: Client implements cluster.Cluster.
var _ cluster.Cluster = (*Client)(nil)

const defaultRequestTimeout = 30 * time.Second

// Writes the cluster may have applied before the failure surfaced. They are
// re-sent only when the cluster provably rejected them (429, 503, refused).
var nonIdempotent = map[string]bool{
	cluster.OpCreateIndex:     true,
	cluster.OpDeleteIndex:     true,
	cluster.OpUpdateAliases:   true,
	cluster.OpReindex:         true,
	cluster.OpCreateSnapshot:  true,
	cluster.OpRestoreSnapshot: true,
}

// Config holds connection parameters for an OpenSearch cluster.
type Config struct {
	Addrs              []string
	Username           string
	Password           string
	InsecureSkipVerify bool
	RequestTimeout     time.Duration
	Retry              retry.Policy
}

// Client issues cluster operations. Every call runs under the retry policy and
// carries its own timeout. Non-idempotent writes are not retried on ambiguous
// failures; StartReindex and CreateSnapshot reconcile with the cluster instead.
type Client struct {
	client  *osclient.Client
	timeout time.Duration
	policy  retry.Policy
	logger  *zap.Logger
}

// NewClient creates an OpenSearch client. The transport's built-in retries are
// disabled; cfg.Retry is the only retry policy.
func NewClient(cfg Config, logger *zap.Logger) (*Client, error) {
	if len(cfg.Addrs) == 0 {
		return nil, fmt.Errorf("addrs is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	osCfg := osclient.Config{
		Addresses:    cfg.Addrs,
		Username:     cfg.Username,
		Password:     cfg.Password,
		DisableRetry: true,
	}
	if cfg.InsecureSkipVerify {
		osCfg.Transport = &http.Transport{
			TLSClientConfig: &tls.Config{InsecureSkipVerify: true}, //nolint:gosec // opt-in for self-signed dev clusters
		}
	}

	client, err := osclient.NewClient(osCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create client: %w", err)
	}

	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = defaultRequestTimeout
	}

	policy := cfg.Retry
	if policy.Attempts <= 0 {
		policy = retry.DefaultPolicy()
	}
	policy.Notify = func(op string, attempt int, delay time.Duration, err error) {
		metrics.ClusterRetriesTotal.WithLabelValues(op).Inc()
		logger.Warn("retrying cluster call",
			zap.String("op", op),
			zap.Int("attempt", attempt),
			zap.Duration("delay", delay),
			zap.Error(err),
		)
	}

	return &Client{client: client, timeout: timeout, policy: policy, logger: logger}, nil
}

// Ping checks connectivity and returns cluster identity.
func (c *Client) Ping(ctx context.Context) (cluster.Info, error) {
	var resp struct {
		ClusterName string `json:"cluster_name"`
		Version     struct {
			Number       string `json:"number"`
			Distribution string `json:"distribution"`
		} `json:"version"`
	}
	if err := c.do(ctx, cluster.OpPing, http.MethodGet, "/", nil, nil, &resp); err != nil {
		return cluster.Info{}, err
	}
	return cluster.Info{
		ClusterName:  resp.ClusterName,
		Version:      resp.Version.Number,
		Distribution: resp.Version.Distribution,
	}, nil
}

// Health returns cluster health.
func (c *Client) Health(ctx context.Context) (cluster.Health, error) {
	var h cluster.Health
	if err := c.do(ctx, cluster.OpHealth, http.MethodGet, "/_cluster/health", nil, nil, &h); err != nil {
		return cluster.Health{}, err
	}
	return h, nil
}

func (c *Client) do(ctx context.Context, op, method, path string, query url.Values, body, out any) error {
	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			return &cluster.Error{Op: op, Err: fmt.Errorf("encode body: %w", err)}
		}
	}
	retryable := cluster.IsTransient
	if nonIdempotent[op] {
		retryable = cluster.IsRejected
	}
	return retry.Do(ctx, c.policy, op, func(ctx context.Context) error {
		return c.once(ctx, op, method, path, query, payload, out)
	}, retryable)
}

func (c *Client) once(ctx context.Context, op, method, path string, query url.Values, payload []byte, out any) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	target := path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}
	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return &cluster.Error{Op: op, Err: err}
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.client.Perform(req)
	if err != nil {
		return &cluster.Error{Op: op, Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return &cluster.Error{Op: op, Err: fmt.Errorf("read body: %w", err)}
	}
	if resp.StatusCode >= http.StatusMultipleChoices {
		return parseError(op, resp.StatusCode, data)
	}
	if out == nil || len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return &cluster.Error{Op: op, Status: resp.StatusCode, Err: fmt.Errorf("decode response: %w", err)}
	}
	return nil
}

// parseError builds a *cluster.Error from an error response. The server's
// "error" is either an object with type/reason or a bare string.
func parseError(op string, status int, data []byte) error {
	ce := &cluster.Error{Op: op, Status: status}

	var envelope struct {
		Error json.RawMessage `json:"error"`
	}
	if err := json.Unmarshal(data, &envelope); err == nil && len(envelope.Error) > 0 {
		var obj struct {
			Type   string `json:"type"`
			Reason string `json:"reason"`
		}
		var str string
		switch {
		case json.Unmarshal(envelope.Error, &obj) == nil:
			ce.Type, ce.Reason = obj.Type, obj.Reason
		case json.Unmarshal(envelope.Error, &str) == nil:
			ce.Reason = str
		}
	} else if len(data) > 0 {
		ce.Reason = truncate(string(data), 512)
	}

	ce.Err = sentinelFor(op, status, ce.Type)
	if ce.Err == nil {
		ce.Err = errors.New(http.StatusText(status))
	}
	return ce
}

func sentinelFor(op string, status int, errType string) error {
	switch errType {
	case "index_not_found_exception":
		return cluster.ErrIndexNotFound
	case "resource_already_exists_exception":
		return cluster.ErrIndexExists
	case "snapshot_missing_exception":
		return cluster.ErrSnapshotNotFound
	case "repository_missing_exception":
		return cluster.ErrRepositoryNotFound
	}
	if status != http.StatusNotFound {
		return nil
	}
	switch op {
	case cluster.OpGetAlias:
		return cluster.ErrAliasNotFound
	case cluster.OpGetTask, cluster.OpCancelTask:
		return cluster.ErrTaskNotFound
	case cluster.OpGetSnapshot:
		return cluster.ErrSnapshotNotFound
	case cluster.OpGetRepository:
		return cluster.ErrRepositoryNotFound
	case cluster.OpIndexExists, cluster.OpDeleteIndex, cluster.OpGetMapping, cluster.OpCount,
		cluster.OpRefresh, cluster.OpPutSettings, cluster.OpSearch, cluster.OpMultiGet:
		return cluster.ErrIndexNotFound
	}
	return nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

func escape(name string) string {
	return url.PathEscape(name)
}
