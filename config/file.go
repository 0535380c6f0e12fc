package config

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const defaultConfigPath = "config/spawncache.yaml"

// settingsYAML is the YAML representation that maps to Settings.
type settingsYAML struct {
	Environment string `yaml:"environment"`
	Populate    struct {
		Workers    int     `yaml:"workers"`
		Queue      int     `yaml:"queue"`
		CloneRate  float64 `yaml:"cloneRatePerSecond"`
		CloneBurst int     `yaml:"cloneBurst"`
	} `yaml:"populate"`
	Categories []struct {
		Name    string `yaml:"name"`
		Prewarm int    `yaml:"prewarm"`
	} `yaml:"categories"`
	Telemetry struct {
		OTLPEndpoint  string `yaml:"otlpEndpoint"`
		ServiceName   string `yaml:"serviceName"`
		OTLPInsecure  bool   `yaml:"otlpInsecure"`
		EnableMetrics *bool  `yaml:"enableMetrics"`
		Interval      string `yaml:"interval"`
	} `yaml:"telemetry"`
	MetricsServer struct {
		Addr string `yaml:"addr"`
	} `yaml:"metricsServer"`
}

// Load loads the spawncache configuration with precedence: defaults → YAML → env vars.
func Load(configPath string) (Settings, error) {
	cfg := Default()

	if err := cfg.loadYAML(configPath); err != nil && !isConfigNotFoundError(err) {
		return Settings{}, fmt.Errorf("load yaml config: %w", err)
	}

	cfg.loadEnv()
	return cfg, nil
}

// LoadOrDefault behaves like Load but reports whether a file was actually read.
func LoadOrDefault(configPath string) (Settings, bool, error) {
	cfg := Default()

	yamlErr := cfg.loadYAML(configPath)
	if yamlErr != nil && !isConfigNotFoundError(yamlErr) {
		return Settings{}, false, fmt.Errorf("load yaml config: %w", yamlErr)
	}

	cfg.loadEnv()
	return cfg, yamlErr == nil, nil
}

func isConfigNotFoundError(err error) bool {
	if err == nil {
		return false
	}
	return os.IsNotExist(err) || strings.Contains(err.Error(), "open config")
}

func (s *Settings) loadYAML(path string) error {
	path = strings.TrimSpace(path)
	if path == "" {
		path = os.Getenv("SPAWNCACHE_CONFIG")
	}
	path = strings.TrimSpace(path)
	if path == "" {
		path = defaultConfigPath
	}

	f, err := os.Open(filepath.Clean(path))
	if err != nil {
		return fmt.Errorf("open config: %w", err)
	}
	defer func() { _ = f.Close() }()

	raw, err := io.ReadAll(f)
	if err != nil {
		return fmt.Errorf("read config: %w", err)
	}

	var yamlCfg settingsYAML
	if err := yaml.Unmarshal(raw, &yamlCfg); err != nil {
		return fmt.Errorf("unmarshal config: %w", err)
	}

	if yamlCfg.Environment != "" {
		s.Environment = Environment(strings.ToLower(strings.TrimSpace(yamlCfg.Environment)))
	}
	if yamlCfg.Populate.Workers > 0 {
		s.Populate.Workers = yamlCfg.Populate.Workers
	}
	if yamlCfg.Populate.Queue > 0 {
		s.Populate.Queue = yamlCfg.Populate.Queue
	}
	if yamlCfg.Populate.CloneRate > 0 {
		s.Populate.CloneRatePerSecond = yamlCfg.Populate.CloneRate
	}
	if yamlCfg.Populate.CloneBurst > 0 {
		s.Populate.CloneBurst = yamlCfg.Populate.CloneBurst
	}
	for _, seed := range yamlCfg.Categories {
		name := strings.TrimSpace(seed.Name)
		if name == "" || seed.Prewarm < 0 {
			continue
		}
		s.Categories = append(s.Categories, CategorySeed{Name: name, Prewarm: seed.Prewarm})
	}
	if v := strings.TrimSpace(yamlCfg.Telemetry.OTLPEndpoint); v != "" {
		s.Telemetry.OTLPEndpoint = v
	}
	if v := strings.TrimSpace(yamlCfg.Telemetry.ServiceName); v != "" {
		s.Telemetry.ServiceName = v
	}
	if yamlCfg.Telemetry.OTLPInsecure {
		s.Telemetry.OTLPInsecure = true
	}
	if yamlCfg.Telemetry.EnableMetrics != nil {
		s.Telemetry.EnableMetrics = *yamlCfg.Telemetry.EnableMetrics
	}
	if v := strings.TrimSpace(yamlCfg.Telemetry.Interval); v != "" {
		if dur, err := time.ParseDuration(v); err == nil && dur > 0 {
			s.Telemetry.Interval = dur
		}
	}
	if v := strings.TrimSpace(yamlCfg.MetricsServer.Addr); v != "" {
		s.MetricsServer.Addr = v
	}
	return nil
}
