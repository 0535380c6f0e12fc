package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultSettings(t *testing.T) {
	cfg := Default()
	if cfg.Environment != EnvProd {
		t.Fatalf("expected prod default environment, got %q", cfg.Environment)
	}
	if cfg.Populate.Workers != 4 {
		t.Fatalf("expected 4 default populate workers, got %d", cfg.Populate.Workers)
	}
	if cfg.Populate.CloneRatePerSecond != 0 {
		t.Fatalf("expected clone throttling disabled by default, got %v", cfg.Populate.CloneRatePerSecond)
	}
	if !cfg.Telemetry.EnableMetrics {
		t.Fatal("expected metrics enabled by default")
	}
}

func TestFromEnvOverrides(t *testing.T) {
	t.Setenv("SPAWNCACHE_ENV", "Dev")
	t.Setenv("SPAWNCACHE_POPULATE_WORKERS", "9")
	t.Setenv("SPAWNCACHE_CLONE_RATE", "120.5")
	t.Setenv("SPAWNCACHE_OTLP_ENDPOINT", "http://collector:4318")

	cfg := FromEnv()
	if cfg.Environment != EnvDev {
		t.Fatalf("expected dev environment, got %q", cfg.Environment)
	}
	if cfg.Populate.Workers != 9 {
		t.Fatalf("expected 9 workers, got %d", cfg.Populate.Workers)
	}
	if cfg.Populate.CloneRatePerSecond != 120.5 {
		t.Fatalf("expected clone rate 120.5, got %v", cfg.Populate.CloneRatePerSecond)
	}
	if cfg.Telemetry.OTLPEndpoint != "http://collector:4318" {
		t.Fatalf("unexpected OTLP endpoint %q", cfg.Telemetry.OTLPEndpoint)
	}
}

func TestFromEnvIgnoresInvalidNumbers(t *testing.T) {
	t.Setenv("SPAWNCACHE_POPULATE_WORKERS", "not-a-number")
	cfg := FromEnv()
	if cfg.Populate.Workers != 4 {
		t.Fatalf("invalid env value should keep default, got %d", cfg.Populate.Workers)
	}
}

func TestLoadYAMLPrecedence(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "spawncache.yaml")
	body := `
environment: staging
populate:
  workers: 2
  queue: 16
  cloneRatePerSecond: 60
categories:
  - name: Sound
    prewarm: 3
  - name: Props
    prewarm: 0
telemetry:
  otlpEndpoint: http://otel:4318
  interval: 30s
metricsServer:
  addr: ":9311"
`
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config fixture: %v", err)
	}

	// Env beats YAML.
	t.Setenv("SPAWNCACHE_ENV", "prod")

	cfg, loaded, err := LoadOrDefault(path)
	if err != nil {
		t.Fatalf("LoadOrDefault failed: %v", err)
	}
	if !loaded {
		t.Fatal("expected config file to be read")
	}
	if cfg.Environment != EnvProd {
		t.Fatalf("env override should win over yaml, got %q", cfg.Environment)
	}
	if cfg.Populate.Workers != 2 || cfg.Populate.Queue != 16 {
		t.Fatalf("unexpected populate settings: %+v", cfg.Populate)
	}
	if len(cfg.Categories) != 2 || cfg.Categories[0].Name != "Sound" || cfg.Categories[0].Prewarm != 3 {
		t.Fatalf("unexpected category seeds: %+v", cfg.Categories)
	}
	if cfg.Telemetry.Interval != 30*time.Second {
		t.Fatalf("unexpected telemetry interval: %v", cfg.Telemetry.Interval)
	}
	if cfg.MetricsServer.Addr != ":9311" {
		t.Fatalf("unexpected metrics addr: %q", cfg.MetricsServer.Addr)
	}
}

func TestLoadMissingFileDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("Load with missing file should not error: %v", err)
	}
	if cfg.Environment != EnvProd {
		t.Fatalf("expected default environment, got %q", cfg.Environment)
	}
}

func TestLoadMissingFileFallsBackToDefaults(t *testing.T) {
	cfg, loaded, err := LoadOrDefault(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("missing file should not error: %v", err)
	}
	if loaded {
		t.Fatal("expected loaded=false for missing file")
	}
	if cfg.Populate.Workers != Default().Populate.Workers {
		t.Fatal("expected default settings for missing file")
	}
}

func TestApplyOptionsDoesNotMutateBase(t *testing.T) {
	base := Default()
	derived := Apply(base,
		WithEnvironment(EnvDev),
		WithPopulateWorkers(8, 128),
		WithCloneRate(10, 5),
		WithCategory("Sound", 4),
	)

	if derived.Environment != EnvDev || derived.Populate.Workers != 8 {
		t.Fatalf("options not applied: %+v", derived)
	}
	if len(derived.Categories) != 1 {
		t.Fatalf("expected one category seed, got %d", len(derived.Categories))
	}
	if len(base.Categories) != 0 {
		t.Fatal("base settings mutated by Apply")
	}
}
