package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestParse_Defaults(t *testing.T) {
	cfg, err := Parse([]byte(`
cluster:
  addrs: ["http://localhost:9200"]
audit:
  driver: sqlite
`))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	if cfg.Cluster.RequestTimeout() != 30*time.Second || cfg.Cluster.ConnectTimeout() != 5*time.Second {
		t.Errorf("cluster timeouts: %v / %v", cfg.Cluster.RequestTimeout(), cfg.Cluster.ConnectTimeout())
	}
	if cfg.Copy.PollInterval() != 10*time.Second || cfg.Copy.MaxPollAttempts != 8640 || cfg.Copy.MaxWait() != 24*time.Hour {
		t.Errorf("copy defaults: %+v", cfg.Copy)
	}
	if cfg.Copy.RequestsPerSecond != -1 || cfg.Copy.Slices != "auto" || cfg.Copy.MaxPollFailures != 5 {
		t.Errorf("copy throttle defaults: %+v", cfg.Copy)
	}
	if cfg.Snapshot.Timeout() != 30*time.Minute {
		t.Errorf("snapshot timeout = %v", cfg.Snapshot.Timeout())
	}
	if cfg.Rollback.TimeBound() != time.Second {
		t.Errorf("rollback bound = %v", cfg.Rollback.TimeBound())
	}
	if !*cfg.Preflight.AllowYellow || cfg.Preflight.MaxDiskPercent != 85 {
		t.Errorf("preflight defaults: %+v", cfg.Preflight)
	}
	if cfg.Audit.SQLitePath != "data/audit.db" || cfg.Audit.StreamPrefix != "vecshift:audit:" {
		t.Errorf("audit defaults: %+v", cfg.Audit)
	}

	p := cfg.RetryPolicy()
	if p.Attempts != 3 || p.BaseDelay != 200*time.Millisecond || p.MaxDelay != 5*time.Second || p.Multiplier != 2 || !p.Jitter {
		t.Errorf("retry policy: %+v", p)
	}
}

func TestParse_ExplicitFalseKept(t *testing.T) {
	cfg, err := Parse([]byte(`
cluster:
  addrs: ["http://localhost:9200"]
retry:
  jitter: false
preflight:
  allow_yellow: false
audit:
  driver: sqlite
`))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if cfg.RetryPolicy().Jitter {
		t.Error("jitter: false was overridden")
	}
	if *cfg.Preflight.AllowYellow {
		t.Error("allow_yellow: false was overridden")
	}
}

func TestParse_EnvExpansion(t *testing.T) {
	t.Setenv("VECSHIFT_TEST_PASSWORD", "s3cret")

	cfg, err := Parse([]byte(`
cluster:
  addrs: ["${VECSHIFT_TEST_ADDR:-http://fallback:9200}"]
  password: ${VECSHIFT_TEST_PASSWORD}
audit:
  driver: sqlite
`))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if cfg.Cluster.Addrs[0] != "http://fallback:9200" {
		t.Errorf("addr = %q", cfg.Cluster.Addrs[0])
	}
	if cfg.Cluster.Password != "s3cret" {
		t.Errorf("password = %q", cfg.Cluster.Password)
	}
}

func TestValidate(t *testing.T) {
	base := func() Config {
		c := Config{
			Cluster: ClusterConfig{Addrs: []string{"http://localhost:9200"}},
			Audit:   AuditConfig{Driver: AuditDriverRedis, Addrs: []string{"localhost:6379"}},
		}
		c.ApplyDefaults()
		return c
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"valid", func(*Config) {}, ""},
		{"no cluster", func(c *Config) { c.Cluster.Addrs = nil }, "cluster.addrs is required"},
		{"redis without addrs", func(c *Config) { c.Audit.Addrs = nil }, "audit.addrs is required"},
		{"valkey", func(c *Config) { c.Audit.Driver = AuditDriverValkey }, ""},
		{"unknown driver", func(c *Config) { c.Audit.Driver = "mongo" }, `got "mongo"`},
		{"bad port", func(c *Config) { c.HTTP.Port = 70000 }, "http.port"},
		{"max below base", func(c *Config) { c.Retry.MaxDelayMs = 100 }, "retry.max_delay_ms"},
		{"multiplier below one", func(c *Config) { c.Retry.Multiplier = 0.5 }, "retry.multiplier"},
		{"disk over 100", func(c *Config) { c.Preflight.MaxDiskPercent = 120 }, "preflight.max_disk_percent"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("error = %v, want containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestEmbeddingEnabled(t *testing.T) {
	if (EmbeddingConfig{}).Enabled() {
		t.Error("empty config must be disabled")
	}
	if !(EmbeddingConfig{Model: "text-embedding-3-small", APIKey: "k"}).Enabled() {
		t.Error("model + key must be enabled")
	}
	if (EmbeddingConfig{APIKey: "k"}).Enabled() {
		t.Error("no model must be disabled")
	}
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.yaml")
	if err := os.WriteFile(path, []byte("cluster:\n  addrs: [\"http://os:9200\"]\naudit:\n  driver: sqlite\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if cfg.Cluster.Addrs[0] != "http://os:9200" {
		t.Errorf("addrs = %v", cfg.Cluster.Addrs)
	}

	if _, err := LoadFile(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestLoad_ProdRequiresClusterURL(t *testing.T) {
	t.Setenv("OPENSEARCH_URL", "")
	t.Setenv("AUDIT_ADDRS", "localhost:6379")
	if _, err := Load("prod"); err == nil {
		t.Fatal("expected error without OPENSEARCH_URL")
	}
}

func TestLoad_RepoConfigs(t *testing.T) {
	for _, env := range []string{"local", "prod"} {
		t.Run(env, func(t *testing.T) {
			t.Setenv("OPENSEARCH_URL", "http://localhost:9200")
			t.Setenv("AUDIT_ADDRS", "localhost:6379")
			cfg, err := Load(env)
			if err != nil {
				t.Fatalf("Load(%s): %v", env, err)
			}
			if len(cfg.Cluster.Addrs) != 1 || cfg.Cluster.Addrs[0] != "http://localhost:9200" {
				t.Errorf("cluster.addrs = %v", cfg.Cluster.Addrs)
			}
		})
	}
}
