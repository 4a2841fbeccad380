package logger

import (
	"context"

	"go.uber.org/zap"
)

// FieldRunID is the log field that ties entries to a migration run.
const FieldRunID = "run_id"

type (
	ctxKey   struct{}
	runIDKey struct{}
)

// ContextWithLogger stores a logger in the context.
func ContextWithLogger(ctx context.Context, logger *zap.Logger) context.Context {
	return context.WithValue(ctx, ctxKey{}, logger)
}

// FromContext extracts a logger from the context.
// Returns zap.NewNop() if no logger is found.
func FromContext(ctx context.Context) *zap.Logger {
	if l, ok := ctx.Value(ctxKey{}).(*zap.Logger); ok {
		return l
	}
	return zap.NewNop()
}

// WithRunID tags ctx with a run id and scopes its logger to that run.
// Tagging the same run twice keeps a single run_id field.
func WithRunID(ctx context.Context, runID string) context.Context {
	if RunIDFromContext(ctx) == runID {
		return ctx
	}
	ctx = context.WithValue(ctx, runIDKey{}, runID)
	return ContextWithLogger(ctx, FromContext(ctx).With(zap.String(FieldRunID, runID)))
}

// RunIDFromContext returns the id set by WithRunID, or "".
func RunIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(runIDKey{}).(string)
	return id
}
