// Package provision creates the target index and proves the cluster accepted
// its schema exactly as requested.
package provision

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/vecshift/internal/cluster"
	"github.com/kailas-cloud/vecshift/internal/domain/index"
	"github.com/kailas-cloud/vecshift/internal/logger"
)

// RefreshIntervalKey is the index setting disabled during the bulk copy.
const RefreshIntervalKey = "index.refresh_interval"

// Errors returned by the provisioner.
var (
	ErrTargetExists   = errors.New("provision: target index already exists")
	ErrTargetInUse    = errors.New("provision: target index is bound to the alias")
	ErrSchemaMismatch = errors.New("provision: accepted schema differs from requested")
)

// Request describes the target index.
type Request struct {
	Name         string
	Settings     map[string]any
	Properties   index.Properties
	VectorFields []index.VectorField
	AllowReplace bool
	// Alias is checked before a replace: the index it resolves to is never deleted.
	Alias string
}

// MismatchError lists every structural difference between requested and
// accepted mappings.
type MismatchError struct {
	Index string
	Diffs []string
}

func (e *MismatchError) Error() string {
	return fmt.Sprintf("%s: %s", e.Index, strings.Join(e.Diffs, "; "))
}

func (e *MismatchError) Unwrap() error { return ErrSchemaMismatch }

// Service provisions target indices.
type Service struct {
	cluster Cluster
	now     func() time.Time
}

// New creates a provisioner.
func New(c Cluster) *Service {
	return &Service{cluster: c, now: time.Now}
}

// CreateTarget creates the target with refresh disabled, re-reads its mapping
// and fails with a *MismatchError on any difference from the request.
func (s *Service) CreateTarget(ctx context.Context, req Request) (index.Descriptor, error) {
	log := logger.FromContext(ctx).With(zap.String("target", req.Name))

	exists, err := s.cluster.IndexExists(ctx, req.Name)
	if err != nil {
		return index.Descriptor{}, fmt.Errorf("check target exists: %w", err)
	}
	if exists {
		if err := s.replace(ctx, req); err != nil {
			return index.Descriptor{}, err
		}
		log.Warn("Existing target index deleted for replacement")
	}

	settings := make(map[string]any, len(req.Settings)+1)
	for k, v := range req.Settings {
		settings[k] = v
	}
	settings[RefreshIntervalKey] = "-1"

	body := cluster.IndexBody{Settings: settings, Properties: req.Properties}
	if err := s.cluster.CreateIndex(ctx, req.Name, body); err != nil {
		return index.Descriptor{}, fmt.Errorf("create target %s: %w", req.Name, err)
	}

	accepted, err := s.cluster.GetMapping(ctx, req.Name)
	if err != nil {
		return index.Descriptor{}, fmt.Errorf("read target mapping: %w", err)
	}

	diffs := index.Diff(req.Properties, accepted)
	for _, v := range req.VectorFields {
		got, _ := accepted.Field(v.Name)
		diffs = append(diffs, v.Check(got)...)
	}
	if len(diffs) > 0 {
		slices.Sort(diffs)
		diffs = slices.Compact(diffs)
		log.Error("Target schema mismatch", zap.Strings("diffs", diffs))
		return index.Descriptor{}, &MismatchError{Index: req.Name, Diffs: diffs}
	}

	log.Info("Target index created", zap.Int("fields", len(accepted)))
	return index.NewDescriptor(req.Name, accepted, 0, s.now()), nil
}

func (s *Service) replace(ctx context.Context, req Request) error {
	if !req.AllowReplace {
		return fmt.Errorf("%w: %s", ErrTargetExists, req.Name)
	}
	if req.Alias != "" {
		bound, err := s.cluster.GetAlias(ctx, req.Alias)
		if err != nil && !errors.Is(err, cluster.ErrAliasNotFound) {
			return fmt.Errorf("read alias %s: %w", req.Alias, err)
		}
		if slices.Contains(bound, req.Name) {
			return fmt.Errorf("%w: %s serves %s", ErrTargetInUse, req.Name, req.Alias)
		}
	}
	if err := s.cluster.DeleteIndex(ctx, req.Name); err != nil {
		return fmt.Errorf("delete existing target %s: %w", req.Name, err)
	}
	return nil
}

// Finalize restores the refresh interval (nil resets it to the cluster
// default) and refreshes the target so its documents are countable.
func (s *Service) Finalize(ctx context.Context, name string, refreshInterval any) error {
	if err := s.cluster.PutSettings(ctx, name, map[string]any{RefreshIntervalKey: refreshInterval}); err != nil {
		return fmt.Errorf("restore refresh interval on %s: %w", name, err)
	}
	if err := s.cluster.Refresh(ctx, name); err != nil {
		return fmt.Errorf("refresh %s: %w", name, err)
	}
	return nil
}

// RefreshInterval returns the interval requested in plan settings, or nil.
func RefreshInterval(settings map[string]any) any {
	if v, ok := settings[RefreshIntervalKey]; ok {
		return v
	}
	if v, ok := settings["refresh_interval"]; ok {
		return v
	}
	return nil
}
