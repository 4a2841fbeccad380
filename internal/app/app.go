// Package app is the composition root shared by the CLI, the HTTP server and
// the SDK: it turns a config.Config into wired use-case services.
package app

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/kailas-cloud/vecshift/internal/cluster"
	"github.com/kailas-cloud/vecshift/internal/cluster/opensearch"
	"github.com/kailas-cloud/vecshift/internal/config"
	dbRedis "github.com/kailas-cloud/vecshift/internal/db/redis"
	"github.com/kailas-cloud/vecshift/internal/metrics"
	auditrepo "github.com/kailas-cloud/vecshift/internal/repository/audit"
	runrepo "github.com/kailas-cloud/vecshift/internal/repository/run"
	openaiProbe "github.com/kailas-cloud/vecshift/internal/transport/openai"
	audituc "github.com/kailas-cloud/vecshift/internal/usecase/audit"
	"github.com/kailas-cloud/vecshift/internal/usecase/cutover"
	healthuc "github.com/kailas-cloud/vecshift/internal/usecase/health"
	migrationuc "github.com/kailas-cloud/vecshift/internal/usecase/migration"
	"github.com/kailas-cloud/vecshift/internal/usecase/preflight"
	"github.com/kailas-cloud/vecshift/internal/usecase/provision"
	"github.com/kailas-cloud/vecshift/internal/usecase/reindex"
	"github.com/kailas-cloud/vecshift/internal/usecase/snapshot"
	"github.com/kailas-cloud/vecshift/internal/usecase/verify"
)

// AuditStore is an audit repository that can report its own health.
type AuditStore interface {
	audituc.Repository
	Ping(ctx context.Context) error
}

// Deps are the external collaborators. Build creates them from config;
// tests pass fakes to Wire directly.
type Deps struct {
	Cluster cluster.Cluster
	Audit   AuditStore
	Runs    migrationuc.RunStore
	// Prober is optional; nil disables the embedding dimension check.
	Prober *openaiProbe.Prober
}

// App holds the wired services.
type App struct {
	Config     config.Config
	Migrations *migrationuc.Service
	Health     *healthuc.Service
	Snapshots  *snapshot.Service
	Recorder   *audituc.Recorder

	closers []func()
}

// Build connects to the cluster and the audit store and wires every service.
func Build(ctx context.Context, cfg config.Config, logger *zap.Logger) (*App, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	metrics.RegisterMigrationMetrics()

	client, err := opensearch.NewClient(opensearch.Config{
		Addrs:              cfg.Cluster.Addrs,
		Username:           cfg.Cluster.Username,
		Password:           cfg.Cluster.Password,
		InsecureSkipVerify: cfg.Cluster.InsecureSkipVerify,
		RequestTimeout:     cfg.Cluster.RequestTimeout(),
		Retry:              cfg.RetryPolicy(),
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("create cluster client: %w", err)
	}

	deps := Deps{Cluster: client}
	var closers []func()

	switch cfg.Audit.Driver {
	case config.AuditDriverRedis, config.AuditDriverValkey:
		store, err := dbRedis.NewStore(dbRedis.Config{
			Addrs:    cfg.Audit.Addrs,
			Password: cfg.Audit.Password,
		})
		if err != nil {
			return nil, fmt.Errorf("create %s store: %w", cfg.Audit.Driver, err)
		}
		if err := store.WaitForReady(ctx, cfg.Audit.Readiness()); err != nil {
			store.Close()
			return nil, fmt.Errorf("%s not ready: %w", cfg.Audit.Driver, err)
		}
		closers = append(closers, store.Close)
		deps.Audit = redisAudit{RedisRepo: auditrepo.NewRedis(store).WithPrefix(cfg.Audit.StreamPrefix), store: store}
		deps.Runs = runrepo.New(store)
		logger.Info("Connected to audit store",
			zap.String("driver", cfg.Audit.Driver), zap.Strings("addrs", cfg.Audit.Addrs))
	case config.AuditDriverSQLite:
		repo, err := auditrepo.NewSQLite(cfg.Audit.SQLitePath)
		if err != nil {
			return nil, fmt.Errorf("open sqlite audit: %w", err)
		}
		closers = append(closers, func() { _ = repo.Close() })
		deps.Audit = repo
		// Run records live in process memory with the sqlite driver.
		deps.Runs = runrepo.NewMemory()
		logger.Info("Opened audit database", zap.String("path", cfg.Audit.SQLitePath))
	default:
		return nil, fmt.Errorf("unknown audit driver %q", cfg.Audit.Driver)
	}

	if cfg.Embedding.Enabled() {
		metrics.RegisterEmbeddingMetrics()
		deps.Prober = openaiProbe.NewProber(&openaiProbe.Config{
			APIKey:     cfg.Embedding.APIKey,
			BaseURL:    cfg.Embedding.BaseURL,
			Model:      cfg.Embedding.Model,
			Dimensions: cfg.Embedding.Dimensions,
			Provider:   cfg.Embedding.Provider,
			Logger:     logger,
		})
	}

	a := Wire(cfg, deps, logger)
	a.closers = closers
	return a, nil
}

// Wire assembles the services over deps.
func Wire(cfg config.Config, deps Deps, logger *zap.Logger) *App {
	if logger == nil {
		logger = zap.NewNop()
	}

	limits := preflight.Limits{
		MaxDiskPercent: cfg.Preflight.MaxDiskPercent,
		MaxHeapPercent: cfg.Preflight.MaxHeapPercent,
		AllowYellow:    cfg.Preflight.AllowYellow == nil || *cfg.Preflight.AllowYellow,
		ConnectTimeout: cfg.Cluster.ConnectTimeout(),
	}
	pre := preflight.New(deps.Cluster, limits)
	if deps.Prober != nil {
		pre = pre.WithEmbeddingProbe(deps.Prober, "")
	}

	snaps := snapshot.New(deps.Cluster, snapshot.Config{
		PollInterval: cfg.Snapshot.PollInterval(),
		Timeout:      cfg.Snapshot.Timeout(),
	})

	stages := migrationuc.Stages{
		Preflight: pre,
		Snapshot:  snaps,
		Provision: provision.New(deps.Cluster),
		Copy: reindex.New(deps.Cluster, reindex.Config{
			PollInterval:      cfg.Copy.PollInterval(),
			MaxPollAttempts:   cfg.Copy.MaxPollAttempts,
			MaxWait:           cfg.Copy.MaxWait(),
			MaxPollFailures:   cfg.Copy.MaxPollFailures,
			Slices:            cfg.Copy.Slices,
			RequestsPerSecond: cfg.Copy.RequestsPerSecond,
			BatchSize:         cfg.Copy.BatchSize,
		}),
		Verify: verify.New(deps.Cluster, verify.Config{
			Concurrency: cfg.Verify.Concurrency,
			FetchBatch:  cfg.Verify.FetchBatch,
		}),
		Alias: cutover.New(deps.Cluster, cfg.Rollback.TimeBound()),
	}

	recorder := audituc.New(deps.Audit, logger)

	// Pass nil interfaces (not typed nil pointers) for absent components.
	var auditPinger healthuc.AuditPinger
	if deps.Audit != nil {
		auditPinger = deps.Audit
	}
	var embChecker healthuc.EmbeddingChecker
	if deps.Prober != nil {
		embChecker = deps.Prober
	}

	return &App{
		Config:     cfg,
		Migrations: migrationuc.New(stages, deps.Runs, recorder, logger),
		Health:     healthuc.New(deps.Cluster, auditPinger, embChecker),
		Snapshots:  snaps,
		Recorder:   recorder,
	}
}

// Close stops background runs and releases connections.
func (a *App) Close(ctx context.Context) error {
	var errs []error
	if a.Migrations != nil {
		if err := a.Migrations.Shutdown(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
	return errors.Join(errs...)
}

// redisAudit pairs the stream repository with the store's Ping.
type redisAudit struct {
	*auditrepo.RedisRepo
	store *dbRedis.Store
}

func (r redisAudit) Ping(ctx context.Context) error {
	if err := r.store.Ping(ctx); err != nil {
		return fmt.Errorf("ping audit store: %w", err)
	}
	return nil
}
