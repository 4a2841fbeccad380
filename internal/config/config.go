package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/kailas-cloud/vecshift/internal/retry"
)

// Audit drivers.
const (
	AuditDriverRedis  = "redis"
	AuditDriverValkey = "valkey"
	AuditDriverSQLite = "sqlite"
)

// Config holds the vecshift configuration.
type Config struct {
	Cluster   ClusterConfig   `yaml:"cluster"`
	Retry     RetryConfig     `yaml:"retry"`
	Preflight PreflightConfig `yaml:"preflight"`
	Snapshot  SnapshotConfig  `yaml:"snapshot"`
	Copy      CopyConfig      `yaml:"copy"`
	Verify    VerifyConfig    `yaml:"verify"`
	Rollback  RollbackConfig  `yaml:"rollback"`
	Audit     AuditConfig     `yaml:"audit"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	HTTP      HTTPConfig      `yaml:"http"`
	Auth      AuthConfig      `yaml:"auth"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// ClusterConfig holds the search cluster connection.
type ClusterConfig struct {
	Addrs              []string `yaml:"addrs"`
	Username           string   `yaml:"username"`
	Password           string   `yaml:"password"`
	InsecureSkipVerify bool     `yaml:"insecure_skip_verify"`
	RequestTimeoutSec  int      `yaml:"request_timeout_sec"`
	ConnectTimeoutSec  int      `yaml:"connect_timeout_sec"` // reachability probe
}

// RetryConfig is the single retry policy applied to every cluster call.
type RetryConfig struct {
	Attempts    int     `yaml:"attempts"`
	BaseDelayMs int     `yaml:"base_delay_ms"`
	MaxDelayMs  int     `yaml:"max_delay_ms"`
	Multiplier  float64 `yaml:"multiplier"`
	Jitter      *bool   `yaml:"jitter"` // default true
}

// PreflightConfig holds the resource ceilings checked before a migration.
type PreflightConfig struct {
	MaxDiskPercent float64 `yaml:"max_disk_percent"`
	MaxHeapPercent float64 `yaml:"max_heap_percent"`
	AllowYellow    *bool   `yaml:"allow_yellow"` // default true, only red is refused
}

// SnapshotConfig controls snapshot polling.
type SnapshotConfig struct {
	PollIntervalSec int `yaml:"poll_interval_sec"`
	TimeoutSec      int `yaml:"timeout_sec"`
}

// CopyConfig controls the reindex task and its polling.
type CopyConfig struct {
	PollIntervalSec   int     `yaml:"poll_interval_sec"`
	MaxPollAttempts   int     `yaml:"max_poll_attempts"`
	MaxWaitSec        int     `yaml:"max_wait_sec"`
	MaxPollFailures   int     `yaml:"max_poll_failures"`
	Slices            string  `yaml:"slices"`
	RequestsPerSecond float64 `yaml:"requests_per_second"` // -1 = unthrottled
	BatchSize         int     `yaml:"batch_size"`
}

// VerifyConfig bounds the sample comparison fan-out.
type VerifyConfig struct {
	Concurrency int `yaml:"concurrency"`
	FetchBatch  int `yaml:"fetch_batch"`
}

// RollbackConfig holds the rollback time bound.
type RollbackConfig struct {
	TimeBoundMs int `yaml:"time_bound_ms"`
}

// AuditConfig selects the audit and run store.
type AuditConfig struct {
	Driver           string   `yaml:"driver"` // redis, valkey, sqlite (default: redis)
	Addrs            []string `yaml:"addrs"`
	Password         string   `yaml:"password"`
	StreamPrefix     string   `yaml:"stream_prefix"`
	SQLitePath       string   `yaml:"sqlite_path"`
	ReadinessTimeout int      `yaml:"readiness_timeout_sec"`
}

// EmbeddingConfig enables the embedding dimension probe when BaseURL or APIKey is set.
type EmbeddingConfig struct {
	Provider   string `yaml:"provider"`
	BaseURL    string `yaml:"base_url"`
	APIKey     string `yaml:"api_key"`
	Model      string `yaml:"model"`
	Dimensions int    `yaml:"dimensions"`
}

// Enabled reports whether the probe is configured.
func (e EmbeddingConfig) Enabled() bool {
	return e.Model != "" && (e.APIKey != "" || e.BaseURL != "")
}

// HTTPConfig holds HTTP server settings.
type HTTPConfig struct {
	Port            int `yaml:"port"`
	ReadTimeoutSec  int `yaml:"read_timeout_sec"`
	WriteTimeoutSec int `yaml:"write_timeout_sec"`
	ShutdownSec     int `yaml:"shutdown_timeout_sec"`
}

// AuthConfig holds API authentication settings.
type AuthConfig struct {
	APIKeys []string `yaml:"api_keys"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error (default: determined by env)
}

// Load reads configuration from a YAML file by environment name (local, dev, prod).
func Load(env string) (Config, error) {
	return LoadFile(findConfigPath(env))
}

// LoadFile reads configuration from an explicit path.
func LoadFile(path string) (Config, error) {
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config %s: %w", path, err)
	}
	return Parse(data)
}

// Parse decodes YAML, substitutes ${VAR}, applies defaults and validates.
func Parse(data []byte) (Config, error) {
	data = expandEnvVars(data)

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.ApplyDefaults()

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// MustLoad loads configuration or panics.
func MustLoad(env string) Config {
	cfg, err := Load(env)
	if err != nil {
		panic(err)
	}
	return cfg
}

// GetEnv returns the current environment from the ENV variable, defaulting to "local".
func GetEnv() string {
	if env := os.Getenv("ENV"); env != "" {
		return env
	}
	return "local"
}

// ApplyDefaults fills empty fields with default values.
func (c *Config) ApplyDefaults() {
	if c.Cluster.RequestTimeoutSec <= 0 {
		c.Cluster.RequestTimeoutSec = 30
	}
	if c.Cluster.ConnectTimeoutSec <= 0 {
		c.Cluster.ConnectTimeoutSec = 5
	}

	if c.Retry.Attempts <= 0 {
		c.Retry.Attempts = 3
	}
	if c.Retry.BaseDelayMs <= 0 {
		c.Retry.BaseDelayMs = 200
	}
	if c.Retry.MaxDelayMs <= 0 {
		c.Retry.MaxDelayMs = 5000
	}
	if c.Retry.Multiplier <= 0 {
		c.Retry.Multiplier = 2
	}
	if c.Retry.Jitter == nil {
		c.Retry.Jitter = boolPtr(true)
	}

	if c.Preflight.MaxDiskPercent <= 0 {
		c.Preflight.MaxDiskPercent = 85
	}
	if c.Preflight.MaxHeapPercent <= 0 {
		c.Preflight.MaxHeapPercent = 85
	}
	if c.Preflight.AllowYellow == nil {
		c.Preflight.AllowYellow = boolPtr(true)
	}

	if c.Snapshot.PollIntervalSec <= 0 {
		c.Snapshot.PollIntervalSec = 5
	}
	if c.Snapshot.TimeoutSec <= 0 {
		c.Snapshot.TimeoutSec = 1800
	}

	if c.Copy.PollIntervalSec <= 0 {
		c.Copy.PollIntervalSec = 10
	}
	if c.Copy.MaxPollAttempts <= 0 {
		c.Copy.MaxPollAttempts = 8640
	}
	if c.Copy.MaxWaitSec <= 0 {
		c.Copy.MaxWaitSec = 86400
	}
	if c.Copy.MaxPollFailures <= 0 {
		c.Copy.MaxPollFailures = 5
	}
	if c.Copy.Slices == "" {
		c.Copy.Slices = "auto"
	}
	if c.Copy.RequestsPerSecond == 0 {
		c.Copy.RequestsPerSecond = -1
	}
	if c.Copy.BatchSize <= 0 {
		c.Copy.BatchSize = 1000
	}

	if c.Verify.Concurrency <= 0 {
		c.Verify.Concurrency = 8
	}
	if c.Verify.FetchBatch <= 0 {
		c.Verify.FetchBatch = 50
	}

	if c.Rollback.TimeBoundMs <= 0 {
		c.Rollback.TimeBoundMs = 1000
	}

	if c.Audit.Driver == "" {
		c.Audit.Driver = AuditDriverRedis
	}
	if c.Audit.StreamPrefix == "" {
		c.Audit.StreamPrefix = "vecshift:audit:"
	}
	if c.Audit.SQLitePath == "" {
		c.Audit.SQLitePath = "data/audit.db"
	}
	if c.Audit.ReadinessTimeout <= 0 {
		c.Audit.ReadinessTimeout = 10
	}

	if c.Embedding.Provider == "" {
		c.Embedding.Provider = "openai"
	}

	if c.HTTP.ReadTimeoutSec <= 0 {
		c.HTTP.ReadTimeoutSec = 10
	}
	if c.HTTP.WriteTimeoutSec <= 0 {
		c.HTTP.WriteTimeoutSec = 30
	}
	if c.HTTP.ShutdownSec <= 0 {
		c.HTTP.ShutdownSec = 10
	}
}

// Validate checks the configuration for correctness.
func (c *Config) Validate() error {
	if len(c.Cluster.Addrs) == 0 {
		return fmt.Errorf("cluster.addrs is required")
	}
	for i, addr := range c.Cluster.Addrs {
		if strings.TrimSpace(addr) == "" {
			return fmt.Errorf("cluster.addrs[%d] is empty", i)
		}
	}
	if c.HTTP.Port < 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("http.port must be between 0 and 65535, got %d", c.HTTP.Port)
	}
	if c.Retry.MaxDelayMs < c.Retry.BaseDelayMs {
		return fmt.Errorf("retry.max_delay_ms (%d) must be >= retry.base_delay_ms (%d)",
			c.Retry.MaxDelayMs, c.Retry.BaseDelayMs)
	}
	if c.Retry.Multiplier < 1 {
		return fmt.Errorf("retry.multiplier must be >= 1, got %v", c.Retry.Multiplier)
	}
	for name, v := range map[string]float64{
		"preflight.max_disk_percent": c.Preflight.MaxDiskPercent,
		"preflight.max_heap_percent": c.Preflight.MaxHeapPercent,
	} {
		if v > 100 {
			return fmt.Errorf("%s must be <= 100, got %v", name, v)
		}
	}
	switch c.Audit.Driver {
	case AuditDriverRedis, AuditDriverValkey:
		if len(c.Audit.Addrs) == 0 {
			return fmt.Errorf("audit.addrs is required for driver %q", c.Audit.Driver)
		}
	case AuditDriverSQLite:
	default:
		return fmt.Errorf("audit.driver must be \"redis\", \"valkey\" or \"sqlite\", got %q", c.Audit.Driver)
	}
	if c.Embedding.Enabled() && c.Embedding.Dimensions < 0 {
		return fmt.Errorf("embedding.dimensions must not be negative")
	}
	return nil
}

// RetryPolicy converts the retry section.
func (c *Config) RetryPolicy() retry.Policy {
	return retry.Policy{
		Attempts:   c.Retry.Attempts,
		BaseDelay:  time.Duration(c.Retry.BaseDelayMs) * time.Millisecond,
		MaxDelay:   time.Duration(c.Retry.MaxDelayMs) * time.Millisecond,
		Multiplier: c.Retry.Multiplier,
		Jitter:     c.Retry.Jitter == nil || *c.Retry.Jitter,
	}
}

func boolPtr(b bool) *bool { return &b }

func seconds(n int) time.Duration { return time.Duration(n) * time.Second }

// RequestTimeout is the per-call cluster timeout.
func (c ClusterConfig) RequestTimeout() time.Duration { return seconds(c.RequestTimeoutSec) }

// ConnectTimeout bounds the reachability probe.
func (c ClusterConfig) ConnectTimeout() time.Duration { return seconds(c.ConnectTimeoutSec) }

// PollInterval is the delay between snapshot status reads.
func (c SnapshotConfig) PollInterval() time.Duration { return seconds(c.PollIntervalSec) }

// Timeout bounds a snapshot or restore.
func (c SnapshotConfig) Timeout() time.Duration { return seconds(c.TimeoutSec) }

// PollInterval is the delay between task status reads.
func (c CopyConfig) PollInterval() time.Duration { return seconds(c.PollIntervalSec) }

// MaxWait bounds the whole copy.
func (c CopyConfig) MaxWait() time.Duration { return seconds(c.MaxWaitSec) }

// TimeBound is the rollback duration target.
func (c RollbackConfig) TimeBound() time.Duration {
	return time.Duration(c.TimeBoundMs) * time.Millisecond
}

// Readiness bounds the wait for the audit store.
func (c AuditConfig) Readiness() time.Duration { return seconds(c.ReadinessTimeout) }

// findConfigPath locates the config file.
func findConfigPath(env string) string {
	filename := fmt.Sprintf("%s.yaml", env)

	// 1. Check ./config/
	if path := filepath.Join("config", filename); fileExists(path) {
		return path
	}

	// 2. Check relative to the source file
	_, b, _, _ := runtime.Caller(0)
	projectRoot := filepath.Dir(filepath.Dir(filepath.Dir(b))) // internal/config -> project root
	if path := filepath.Join(projectRoot, "config", filename); fileExists(path) {
		return path
	}

	// 3. Fallback to ./config/
	return filepath.Join("config", filename)
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// expandEnvVars replaces ${VAR} and ${VAR:-default} with environment variable values.
var envVarRegex = regexp.MustCompile(`\$\{([^}]+)\}`)

func expandEnvVars(data []byte) []byte {
	return envVarRegex.ReplaceAllFunc(data, func(match []byte) []byte {
		expr := string(match[2 : len(match)-1]) // strip ${ and }
		varName, defaultVal, hasDefault := strings.Cut(expr, ":-")
		val := os.Getenv(varName)
		if val == "" && hasDefault {
			val = defaultVal
		}
		return []byte(val)
	})
}
