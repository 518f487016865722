package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.API.Environment != "demo" {
		t.Fatalf("api.environment default = %q", cfg.API.Environment)
	}
	if cfg.API.RequestTimeout != 10*time.Second {
		t.Fatalf("api.request_timeout default = %s", cfg.API.RequestTimeout)
	}
	if cfg.API.ConnectTimeout != 5*time.Second {
		t.Fatalf("api.connect_timeout default = %s", cfg.API.ConnectTimeout)
	}
	if cfg.Cache.Enabled {
		t.Fatal("cache should be disabled by default")
	}
	if cfg.Cache.DatabasePath != "./data/trading212.db" {
		t.Fatalf("cache.database_path default = %q", cfg.Cache.DatabasePath)
	}
	if cfg.Cache.FreshnessMinutes != 60 {
		t.Fatalf("cache.freshness_minutes default = %d", cfg.Cache.FreshnessMinutes)
	}
	if cfg.Retry.MaxRetries != 3 || cfg.Retry.BaseDelay != time.Second || cfg.Retry.MaxDelay != 30*time.Second {
		t.Fatalf("unexpected retry defaults: %+v", cfg.Retry)
	}
	if cfg.Watch.Interval != time.Hour {
		t.Fatalf("watch.interval default = %s", cfg.Watch.Interval)
	}
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := []byte(`
api:
  key: test-key
  secret: test-secret
  environment: live
cache:
  enabled: true
  freshness_minutes: -1
retry:
  max_retries: 5
  base_delay: 500ms
  max_delay: 10s
`)
	if err := os.WriteFile(path, content, 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.API.Environment != "live" || cfg.API.Key != "test-key" {
		t.Fatalf("file values not applied: %+v", cfg.API)
	}
	if !cfg.Cache.Enabled || cfg.Cache.FreshnessMinutes != -1 {
		t.Fatalf("cache values not applied: %+v", cfg.Cache)
	}
	if cfg.Retry.MaxRetries != 5 || cfg.Retry.BaseDelay != 500*time.Millisecond {
		t.Fatalf("retry values not applied: %+v", cfg.Retry)
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	bad := *cfg
	bad.API.Environment = "production"
	if err := bad.Validate(); err == nil {
		t.Fatal("unknown api environment should be rejected")
	}

	bad = *cfg
	bad.Retry.MaxRetries = -1
	if err := bad.Validate(); err == nil {
		t.Fatal("negative max_retries should be rejected")
	}

	bad = *cfg
	bad.Retry.MaxDelay = bad.Retry.BaseDelay / 2
	if err := bad.Validate(); err == nil {
		t.Fatal("max_delay under base_delay should be rejected")
	}

	bad = *cfg
	bad.Alerting.Telegram.Enabled = true
	if err := bad.Validate(); err == nil {
		t.Fatal("telegram without credentials should be rejected")
	}
}

func TestResolveMaxPoints(t *testing.T) {
	cfg := &Config{Export: ExportConfig{MaxDataPoints: 1000}}
	if got := cfg.ResolveMaxPoints(0); got != 1000 {
		t.Fatalf("default = %d", got)
	}
	if got := cfg.ResolveMaxPoints(50); got != 50 {
		t.Fatalf("override = %d", got)
	}
}
