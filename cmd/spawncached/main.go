// Command spawncached hosts a spawncache pool with a demo cloner, prewarmes
// configured categories, and exposes pool state through logs, SIGUSR1
// snapshots, and metrics.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sourcegraph/conc"

	"github.com/spawnforge/spawncache/config"
	"github.com/spawnforge/spawncache/internal/snapshot"
	inttelemetry "github.com/spawnforge/spawncache/internal/telemetry"
	"github.com/spawnforge/spawncache/lib/telemetry"
	"github.com/spawnforge/spawncache/pkg/spawncache"
)

const (
	defaultConfigPath        = "config/spawncache.yaml"
	loggerPrefix             = "spawncached "
	snapshotHistoryLimit     = 32
	stateLogInterval         = 30 * time.Second
	poolShutdownTimeout      = 5 * time.Second
	serverShutdownTimeout    = 5 * time.Second
	telemetryShutdownTimeout = 5 * time.Second
	readHeaderTimeout        = 5 * time.Second
)

// prefabEntity is the demo entity hosted by this daemon. Real hosts supply
// their own Cloner and entity types.
type prefabEntity struct {
	Kind   string
	Serial uint64
}

type prefabCloner struct {
	serial atomic.Uint64
}

func (c *prefabCloner) Clone(_ context.Context, template any) (any, error) {
	src, ok := template.(*prefabEntity)
	if !ok {
		return nil, fmt.Errorf("unsupported template type %T", template)
	}
	return &prefabEntity{Kind: src.Kind, Serial: c.serial.Add(1)}, nil
}

func main() {
	configPath := flag.String("config", defaultConfigPath, "path to the spawncache yaml config")
	flag.Parse()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	logger := log.New(os.Stdout, loggerPrefix, log.LstdFlags|log.Lmsgprefix)

	cfg, loadedFromFile, err := config.LoadOrDefault(*configPath)
	if err != nil {
		logger.Fatalf("load config: %v", err)
	}
	if !loadedFromFile {
		logger.Printf("configuration file not found, using defaults")
	}
	logger.Printf("configuration initialised: env=%s, categories=%d",
		cfg.Environment, len(cfg.Categories))

	meterProvider, telemetryShutdown, err := telemetry.Init(ctx, cfg.Telemetry)
	if err != nil {
		logger.Fatalf("initialise telemetry: %v", err)
	}

	registry := prometheus.NewRegistry()
	metrics := spawncache.NewMetrics(registry)

	pool, err := spawncache.New(&prefabCloner{},
		spawncache.WithLogger(logger),
		spawncache.WithMetrics(metrics),
		spawncache.WithWorkers(cfg.Populate.Workers, cfg.Populate.Queue),
		spawncache.WithCloneRate(cfg.Populate.CloneRatePerSecond, cfg.Populate.CloneBurst),
		spawncache.WithOnDiscard(func(item *spawncache.Item) {
			logger.Printf("discarded item %s from category %q", item.ID(), item.Category())
		}),
	)
	if err != nil {
		logger.Fatalf("construct pool: %v", err)
	}

	instruments, err := inttelemetry.RegisterPoolInstruments(
		meterProvider.Meter("spawncache"), pool.Snapshot)
	if err != nil {
		logger.Fatalf("register pool instruments: %v", err)
	}

	recorder := snapshot.NewRecorder(snapshotHistoryLimit)

	prewarm(ctx, logger, pool, cfg.Categories)

	var server *http.Server
	if cfg.MetricsServer.Addr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
		server = &http.Server{
			Addr:              cfg.MetricsServer.Addr,
			Handler:           mux,
			ReadHeaderTimeout: readHeaderTimeout,
		}
		go func() {
			logger.Printf("metrics listening on %s", cfg.MetricsServer.Addr)
			if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Printf("metrics server: %v", err)
			}
		}()
	}

	dumpCh := make(chan os.Signal, 1)
	signal.Notify(dumpCh, syscall.SIGUSR1)

	var wg conc.WaitGroup
	wg.Go(func() {
		ticker := time.NewTicker(stateLogInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				state := pool.Snapshot()
				recorder.Record(state)
				logger.Printf("pool state: categories=%d available=%d leases=%d",
					len(state.Categories), state.TotalAvailable(), len(state.Leases))
			}
		}
	})
	wg.Go(func() {
		for {
			select {
			case <-ctx.Done():
				return
			case <-dumpCh:
				state := pool.Snapshot()
				recorder.Record(state)
				raw, err := state.Encode()
				if err != nil {
					logger.Printf("encode snapshot: %v", err)
					continue
				}
				logger.Printf("snapshot dump:\n%s", raw)
			}
		}
	})

	<-ctx.Done()
	logger.Printf("shutting down")
	wg.Wait()

	if server != nil {
		shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), serverShutdownTimeout)
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Printf("metrics server shutdown: %v", err)
		}
		cancelShutdown()
	}

	closeCtx, cancelClose := context.WithTimeout(context.Background(), poolShutdownTimeout)
	if err := pool.Close(closeCtx); err != nil {
		logger.Printf("pool close: %v", err)
	}
	cancelClose()

	if err := instruments.Unregister(); err != nil {
		logger.Printf("unregister instruments: %v", err)
	}

	telemetryCtx, cancelTelemetry := context.WithTimeout(context.Background(), telemetryShutdownTimeout)
	if err := telemetryShutdown(telemetryCtx); err != nil {
		logger.Printf("telemetry shutdown: %v", err)
	}
	cancelTelemetry()
}

// prewarm creates each configured category and schedules its initial
// population, logging ticket outcomes without blocking startup.
func prewarm(ctx context.Context, logger *log.Logger, pool *spawncache.Pool, seeds []config.CategorySeed) {
	for _, seed := range seeds {
		if err := pool.CreateCategory(seed.Name); err != nil {
			logger.Printf("create category %q: %v", seed.Name, err)
			continue
		}
		if seed.Prewarm == 0 {
			continue
		}
		template := &prefabEntity{Kind: seed.Name}
		ticket, err := pool.Populate(ctx, seed.Name, template, seed.Prewarm)
		if err != nil {
			logger.Printf("populate category %q: %v", seed.Name, err)
			continue
		}
		name := seed.Name
		go func() {
			if err := ticket.Wait(ctx); err != nil {
				logger.Printf("prewarm %q: %v", name, err)
				return
			}
			logger.Printf("prewarm %q: %d items ready", name, ticket.Added())
		}()
	}
}
