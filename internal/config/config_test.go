package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("LEARNSENSE_CONFIG", "")
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("load defaults: %v", err)
	}
	if cfg.Policy.MinConfidence != 0.60 || cfg.Policy.UncertaintyThreshold != 0.05 {
		t.Fatalf("unexpected policy defaults %+v", cfg.Policy)
	}
	if cfg.Realtime.BufferSize != 50 || cfg.Realtime.FlushInterval != 5*time.Second {
		t.Fatalf("unexpected realtime defaults %+v", cfg.Realtime)
	}
}

func TestLoadFileAndEnvOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "learnsense.yaml")
	body := `
server:
  httpAddress: ":9090"
policy:
  highThreshold: 0.8
realtime:
  bufferSize: 20
store:
  driver: postgres
  dsn: postgres://localhost/learnsense
`
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("LEARNSENSE_REALTIME_BUFFER_SIZE", "75")
	t.Setenv("LEARNSENSE_CACHE_ENABLED", "1")
	t.Setenv("LEARNSENSE_LOG_FORMAT", "json")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Server.HTTPAddress != ":9090" || cfg.Policy.HighThreshold != 0.8 {
		t.Fatalf("file values not applied: %+v", cfg)
	}
	if cfg.Policy.MediumThreshold != 0.40 {
		t.Fatalf("unset values should keep defaults, got %v", cfg.Policy.MediumThreshold)
	}
	if cfg.Realtime.BufferSize != 75 || !cfg.Cache.Enabled || !cfg.Logging.JSON {
		t.Fatalf("env overrides not applied: %+v", cfg)
	}
	if cfg.Store.Driver != "postgres" {
		t.Fatalf("expected postgres driver, got %s", cfg.Store.Driver)
	}
}

func TestLoadRejectsInvalid(t *testing.T) {
	t.Setenv("LEARNSENSE_POLICY_MEDIUM_THRESHOLD", "0.9")
	if _, err := Load(""); err == nil {
		t.Fatalf("expected error when medium exceeds high")
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Fatalf("expected error for missing config file")
	}
}
