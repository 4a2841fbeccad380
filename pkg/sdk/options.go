package vecshift

import (
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/kailas-cloud/vecshift/internal/config"
)

// Option configures the Client.
type Option interface {
	apply(*clientConfig)
}

// optionFunc adapts a function to the Option interface.
type optionFunc func(*clientConfig)

func (f optionFunc) apply(c *clientConfig) { f(c) }

type clientConfig struct {
	cfg config.Config

	logger     *slog.Logger
	zapLogger  *zap.Logger
	metricsReg prometheus.Registerer
}

// WithOpenSearch sets the cluster node addresses.
func WithOpenSearch(addrs ...string) Option {
	return optionFunc(func(c *clientConfig) {
		c.cfg.Cluster.Addrs = addrs
	})
}

// WithBasicAuth sets cluster credentials.
func WithBasicAuth(username, password string) Option {
	return optionFunc(func(c *clientConfig) {
		c.cfg.Cluster.Username = username
		c.cfg.Cluster.Password = password
	})
}

// WithInsecureTLS disables certificate verification. Development clusters only.
func WithInsecureTLS() Option {
	return optionFunc(func(c *clientConfig) {
		c.cfg.Cluster.InsecureSkipVerify = true
	})
}

// WithRedisAudit stores the audit trail and run records in Redis streams.
func WithRedisAudit(addr, password string) Option {
	return optionFunc(func(c *clientConfig) {
		c.cfg.Audit.Driver = config.AuditDriverRedis
		c.cfg.Audit.Addrs = []string{addr}
		c.cfg.Audit.Password = password
	})
}

// WithValkeyAudit stores the audit trail and run records in Valkey.
func WithValkeyAudit(addr, password string) Option {
	return optionFunc(func(c *clientConfig) {
		c.cfg.Audit.Driver = config.AuditDriverValkey
		c.cfg.Audit.Addrs = []string{addr}
		c.cfg.Audit.Password = password
	})
}

// WithSQLiteAudit stores the audit trail in a local SQLite file.
// Run records are kept in memory.
func WithSQLiteAudit(path string) Option {
	return optionFunc(func(c *clientConfig) {
		c.cfg.Audit.Driver = config.AuditDriverSQLite
		c.cfg.Audit.SQLitePath = path
	})
}

// WithEmbeddingProbe enables the preflight check that the embedding model
// produces vectors of the declared dimension. baseURL may be empty for OpenAI.
func WithEmbeddingProbe(model, apiKey, baseURL string) Option {
	return optionFunc(func(c *clientConfig) {
		c.cfg.Embedding.Model = model
		c.cfg.Embedding.APIKey = apiKey
		c.cfg.Embedding.BaseURL = baseURL
	})
}

// WithRetry configures retries of transient cluster errors.
// Defaults: 3 attempts, 200ms base delay, 5s max delay.
func WithRetry(attempts int, baseDelay, maxDelay time.Duration) Option {
	return optionFunc(func(c *clientConfig) {
		c.cfg.Retry.Attempts = attempts
		c.cfg.Retry.BaseDelayMs = int(baseDelay.Milliseconds())
		c.cfg.Retry.MaxDelayMs = int(maxDelay.Milliseconds())
	})
}

// WithRollbackBound sets the time within which a rollback alias swap is
// expected to finish. Default: 1s.
func WithRollbackBound(d time.Duration) Option {
	return optionFunc(func(c *clientConfig) {
		c.cfg.Rollback.TimeBoundMs = int(d.Milliseconds())
	})
}

// WithPreflightLimits sets the disk and heap usage ceilings in percent.
func WithPreflightLimits(maxDiskPercent, maxHeapPercent float64) Option {
	return optionFunc(func(c *clientConfig) {
		c.cfg.Preflight.MaxDiskPercent = maxDiskPercent
		c.cfg.Preflight.MaxHeapPercent = maxHeapPercent
	})
}

// WithLogger enables structured logging for SDK operations.
// Pass nil to disable (default). Uses standard library slog.
func WithLogger(l *slog.Logger) Option {
	return optionFunc(func(c *clientConfig) {
		c.logger = l
	})
}

// WithZapLogger sets the logger used by the migration engine itself.
func WithZapLogger(l *zap.Logger) Option {
	return optionFunc(func(c *clientConfig) {
		c.zapLogger = l
	})
}

// WithPrometheus registers SDK metrics (operation counts and durations)
// on the given registerer. Pass nil to disable (default).
func WithPrometheus(reg prometheus.Registerer) Option {
	return optionFunc(func(c *clientConfig) {
		c.metricsReg = reg
	})
}
