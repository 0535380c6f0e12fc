// Package config centralises runtime configuration for spawncache services.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Environment identifies the runtime environment where spawncache operates.
type Environment string

const (
	// EnvDev marks the development environment.
	EnvDev Environment = "dev"
	// EnvStaging marks the staging environment.
	EnvStaging Environment = "staging"
	// EnvProd marks the production environment.
	EnvProd Environment = "prod"
)

// PopulateSettings tunes the worker pool that executes deferred clone jobs.
type PopulateSettings struct {
	Workers            int
	Queue              int
	CloneRatePerSecond float64
	CloneBurst         int
}

// CategorySeed declares a category created and prewarmed at startup.
type CategorySeed struct {
	Name    string
	Prewarm int
}

// TelemetrySettings configures OTLP metric export.
type TelemetrySettings struct {
	OTLPEndpoint  string
	ServiceName   string
	OTLPInsecure  bool
	EnableMetrics bool
	Interval      time.Duration
}

// MetricsServerSettings configures the prometheus scrape endpoint of the daemon.
type MetricsServerSettings struct {
	Addr string
}

// Settings contains the spawncache configuration tree loaded from defaults
// and overrides.
type Settings struct {
	Environment   Environment
	Populate      PopulateSettings
	Categories    []CategorySeed
	Telemetry     TelemetrySettings
	MetricsServer MetricsServerSettings
}

// Default returns the default spawncache configuration.
func Default() Settings {
	return Settings{
		Environment: EnvProd,
		Populate: PopulateSettings{
			Workers:            4,
			Queue:              64,
			CloneRatePerSecond: 0,
			CloneBurst:         1,
		},
		Categories: nil,
		Telemetry: TelemetrySettings{
			OTLPEndpoint:  "",
			ServiceName:   "spawncached",
			OTLPInsecure:  false,
			EnableMetrics: true,
			Interval:      15 * time.Second,
		},
		MetricsServer: MetricsServerSettings{
			Addr: "",
		},
	}
}

// FromEnv loads configuration values from environment variables, overriding defaults.
func FromEnv() Settings {
	cfg := Default()
	cfg.loadEnv()
	return cfg
}

func (s *Settings) loadEnv() {
	if env := strings.TrimSpace(os.Getenv("SPAWNCACHE_ENV")); env != "" {
		s.Environment = Environment(strings.ToLower(env))
	}
	if v := strings.TrimSpace(os.Getenv("SPAWNCACHE_POPULATE_WORKERS")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			s.Populate.Workers = n
		}
	}
	if v := strings.TrimSpace(os.Getenv("SPAWNCACHE_POPULATE_QUEUE")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			s.Populate.Queue = n
		}
	}
	if v := strings.TrimSpace(os.Getenv("SPAWNCACHE_CLONE_RATE")); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil && f >= 0 {
			s.Populate.CloneRatePerSecond = f
		}
	}
	if v := strings.TrimSpace(os.Getenv("SPAWNCACHE_OTLP_ENDPOINT")); v != "" {
		s.Telemetry.OTLPEndpoint = v
	}
	if v := strings.TrimSpace(os.Getenv("SPAWNCACHE_SERVICE_NAME")); v != "" {
		s.Telemetry.ServiceName = v
	}
	if v := strings.TrimSpace(os.Getenv("SPAWNCACHE_OTLP_INSECURE")); v != "" {
		s.Telemetry.OTLPInsecure = v == "true"
	}
	if v := strings.TrimSpace(os.Getenv("SPAWNCACHE_METRICS_ADDR")); v != "" {
		s.MetricsServer.Addr = v
	}
}

// Option mutates Settings when applied via Apply.
type Option func(*Settings)

// Apply applies the provided Option set to a copy of the base Settings.
func Apply(base Settings, opts ...Option) Settings {
	cfg := base.clone()
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	return cfg
}

// WithEnvironment configures the top-level environment.
func WithEnvironment(env Environment) Option {
	return func(s *Settings) {
		if env != "" {
			s.Environment = env
		}
	}
}

// WithPopulateWorkers overrides the clone worker count and queue depth.
func WithPopulateWorkers(workers, queue int) Option {
	return func(s *Settings) {
		if workers > 0 {
			s.Populate.Workers = workers
		}
		if queue >= 0 {
			s.Populate.Queue = queue
		}
	}
}

// WithCloneRate throttles clone scheduling to the given sustained rate and
// burst. A rate of zero disables throttling.
func WithCloneRate(perSecond float64, burst int) Option {
	return func(s *Settings) {
		if perSecond >= 0 {
			s.Populate.CloneRatePerSecond = perSecond
		}
		if burst > 0 {
			s.Populate.CloneBurst = burst
		}
	}
}

// WithCategory appends a category seed created and prewarmed at startup.
func WithCategory(name string, prewarm int) Option {
	name = strings.TrimSpace(name)
	return func(s *Settings) {
		if name == "" || prewarm < 0 {
			return
		}
		s.Categories = append(s.Categories, CategorySeed{Name: name, Prewarm: prewarm})
	}
}

// WithOTLPEndpoint configures the telemetry export endpoint.
func WithOTLPEndpoint(endpoint string) Option {
	endpoint = strings.TrimSpace(endpoint)
	return func(s *Settings) {
		if endpoint != "" {
			s.Telemetry.OTLPEndpoint = endpoint
		}
	}
}

func (s Settings) clone() Settings {
	out := s
	if s.Categories != nil {
		out.Categories = make([]CategorySeed, len(s.Categories))
		copy(out.Categories, s.Categories)
	}
	return out
}
