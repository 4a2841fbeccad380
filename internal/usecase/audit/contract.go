package audit

import (
	"context"

	domaudit "github.com/kailas-cloud/vecshift/internal/domain/audit"
)

// Repository is the append-only storage contract for audit entries.
type Repository interface {
	Append(ctx context.Context, e domaudit.Entry) (string, error)
	List(ctx context.Context, runID string, limit int) ([]domaudit.Entry, error)
}
