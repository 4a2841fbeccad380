// Package cutover repoints the alias between indices in one atomic request.
package cutover

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/vecshift/internal/cluster"
	"github.com/kailas-cloud/vecshift/internal/logger"
	"github.com/kailas-cloud/vecshift/internal/metrics"
)

// ErrUnconfirmed means the alias does not resolve to exactly the expected index.
var ErrUnconfirmed = errors.New("cutover: alias binding not confirmed")

// DefaultTimeBound is the rollback latency target.
const DefaultTimeBound = time.Second

// RollbackResult reports how long the reverse swap took.
type RollbackResult struct {
	Duration    time.Duration
	WithinBound bool
	// AlreadyBound is set when the alias already resolved to the rollback
	// destination and nothing was changed.
	AlreadyBound bool
}

// Service performs cutover and rollback.
type Service struct {
	cluster   Cluster
	timeBound time.Duration
	now       func() time.Time
}

// New creates a cutover service.
func New(c Cluster, timeBound time.Duration) *Service {
	if timeBound <= 0 {
		timeBound = DefaultTimeBound
	}
	return &Service{cluster: c, timeBound: timeBound, now: time.Now}
}

// TimeBound returns the rollback latency target.
func (s *Service) TimeBound() time.Duration { return s.timeBound }

// Cutover moves alias from one index to another in a single request and
// confirms the alias now resolves only to to.
// When the swap fails ambiguously the alias is read back: an applied swap
// counts as success.
func (s *Service) Cutover(ctx context.Context, alias, from, to string) error {
	if err := s.swap(ctx, alias, from, to); err != nil {
		if !cluster.IsAmbiguous(err) || s.Confirm(ctx, alias, to) != nil {
			return fmt.Errorf("swap alias %s: %w", alias, err)
		}
		logger.FromContext(ctx).Warn("Alias update outcome unknown, read-back shows it applied",
			zap.String("alias", alias), zap.Error(err))
	}
	if err := s.Confirm(ctx, alias, to); err != nil {
		return err
	}
	logger.FromContext(ctx).Info("Alias cut over",
		zap.String("alias", alias), zap.String("from", from), zap.String("to", to))
	return nil
}

// Rollback moves alias from back to to. If the swap is rejected because the
// alias already resolves to exactly to, the rollback is a no-op.
func (s *Service) Rollback(ctx context.Context, alias, from, to string) (RollbackResult, error) {
	log := logger.FromContext(ctx).With(zap.String("alias", alias), zap.String("from", from), zap.String("to", to))
	start := s.now()

	var res RollbackResult
	if err := s.swap(ctx, alias, from, to); err != nil {
		if cerr := s.Confirm(ctx, alias, to); cerr != nil {
			return res, fmt.Errorf("rollback alias %s: %w", alias, errors.Join(err, cerr))
		}
		res.AlreadyBound = true
	} else if err := s.Confirm(ctx, alias, to); err != nil {
		return res, fmt.Errorf("rollback alias %s: %w", alias, err)
	}

	res.Duration = s.now().Sub(start)
	res.WithinBound = res.Duration <= s.timeBound
	metrics.RollbackDuration.Observe(res.Duration.Seconds())

	if !res.WithinBound {
		log.Warn("Rollback exceeded time bound", zap.Duration("duration", res.Duration), zap.Duration("bound", s.timeBound))
	} else {
		log.Info("Alias rolled back", zap.Duration("duration", res.Duration), zap.Bool("already_bound", res.AlreadyBound))
	}
	return res, nil
}

// Confirm checks that alias resolves to exactly want.
func (s *Service) Confirm(ctx context.Context, alias, want string) error {
	bound, err := s.cluster.GetAlias(ctx, alias)
	if err != nil {
		return fmt.Errorf("read alias %s: %w", alias, err)
	}
	if !slices.Equal(bound, []string{want}) {
		return fmt.Errorf("%w: %s resolves to %v, want [%s]", ErrUnconfirmed, alias, bound, want)
	}
	return nil
}

// swap issues remove(from) and add(to) as one request; the cluster applies
// both or neither.
func (s *Service) swap(ctx context.Context, alias, from, to string) error {
	return s.cluster.UpdateAliases(ctx, []cluster.AliasAction{
		{Kind: cluster.AliasRemove, Index: from, Alias: alias},
		{Kind: cluster.AliasAdd, Index: to, Alias: alias},
	})
}
