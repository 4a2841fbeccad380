package cluster

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"syscall"
)

// Sentinel errors for cluster operations.
var (
	ErrIndexNotFound      = errors.New("cluster: index not found")
	ErrIndexExists        = errors.New("cluster: index already exists")
	ErrAliasNotFound      = errors.New("cluster: alias not found")
	ErrSnapshotNotFound   = errors.New("cluster: snapshot not found")
	ErrRepositoryNotFound = errors.New("cluster: snapshot repository not found")
	ErrTaskNotFound       = errors.New("cluster: task not found")
)

// Op names used for error context, metrics labels and audit entries.
const (
	OpPing            = "cluster.ping"
	OpHealth          = "cluster.health"
	OpAllocation      = "cat.allocation"
	OpNodeStats       = "nodes.stats"
	OpIndexExists     = "indices.exists"
	OpCreateIndex     = "indices.create"
	OpDeleteIndex     = "indices.delete"
	OpGetMapping      = "indices.get_mapping"
	OpCount           = "indices.count"
	OpRefresh         = "indices.refresh"
	OpPutSettings     = "indices.put_settings"
	OpGetAlias        = "indices.get_alias"
	OpUpdateAliases   = "indices.update_aliases"
	OpReindex         = "reindex"
	OpGetTask         = "tasks.get"
	OpListTasks       = "tasks.list"
	OpCancelTask      = "tasks.cancel"
	OpGetRepository   = "snapshot.get_repository"
	OpCreateSnapshot  = "snapshot.create"
	OpGetSnapshot     = "snapshot.get"
	OpRestoreSnapshot = "snapshot.restore"
	OpSearch          = "search"
	OpMultiGet        = "mget"
)

// Error carries the HTTP status and the server's error type/reason.
type Error struct {
	Op     string
	Status int
	Type   string
	Reason string
	Err    error
}

func (e *Error) Error() string {
	switch {
	case e.Status != 0 && e.Type != "":
		return fmt.Sprintf("%s: %d %s: %s", e.Op, e.Status, e.Type, e.Reason)
	case e.Status != 0:
		return fmt.Sprintf("%s: status %d: %s", e.Op, e.Status, e.Reason)
	case e.Err != nil:
		return e.Op + ": " + e.Err.Error()
	default:
		return e.Op + ": " + e.Reason
	}
}

func (e *Error) Unwrap() error { return e.Err }

// IsTransient reports whether err is worth retrying: network failures,
// timeouts and HTTP 429/502/503/504.
func IsTransient(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) {
		return false
	}
	var ce *Error
	if errors.As(err, &ce) && ce.Status != 0 {
		switch ce.Status {
		case http.StatusTooManyRequests, http.StatusBadGateway,
			http.StatusServiceUnavailable, http.StatusGatewayTimeout:
			return true
		}
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) ||
		errors.Is(err, io.ErrUnexpectedEOF) ||
		errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.ECONNREFUSED) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne)
}

// IsRejected reports whether err proves the cluster did not act on the
// request: HTTP 429/503 or a refused connection. Only these are safe to
// re-send for non-idempotent writes.
func IsRejected(err error) bool {
	if err == nil {
		return false
	}
	var ce *Error
	if errors.As(err, &ce) && ce.Status != 0 {
		return ce.Status == http.StatusTooManyRequests || ce.Status == http.StatusServiceUnavailable
	}
	return errors.Is(err, syscall.ECONNREFUSED)
}

// IsAmbiguous reports whether a write may or may not have been applied: the
// failure is transient but the cluster could have accepted the request.
func IsAmbiguous(err error) bool {
	return IsTransient(err) && !IsRejected(err)
}
