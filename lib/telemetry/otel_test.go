package telemetry

import (
	"context"
	"testing"

	"github.com/spawnforge/spawncache/config"
)

func TestInitWithoutEndpointInstallsNoop(t *testing.T) {
	cfg := config.TelemetrySettings{EnableMetrics: true}
	mp, shutdown, err := Init(context.Background(), cfg)
	if err != nil {
		t.Fatalf("Init failed: %v", err)
	}
	if mp == nil {
		t.Fatal("expected a meter provider")
	}
	if err := shutdown(context.Background()); err != nil {
		t.Fatalf("noop shutdown should not fail: %v", err)
	}
}

func TestInitMetricsDisabled(t *testing.T) {
	cfg := config.TelemetrySettings{OTLPEndpoint: "http://localhost:4318", EnableMetrics: false}
	mp, shutdown, err := Init(context.Background(), cfg)
	if err != nil {
		t.Fatalf("Init failed: %v", err)
	}
	if mp == nil {
		t.Fatal("expected a meter provider")
	}
	if err := shutdown(context.Background()); err != nil {
		t.Fatalf("noop shutdown should not fail: %v", err)
	}
}

func TestParseEndpoint(t *testing.T) {
	host, insecure, err := parseEndpoint("https://collector:4318")
	if err != nil {
		t.Fatalf("parseEndpoint failed: %v", err)
	}
	if host != "collector:4318" {
		t.Fatalf("unexpected host %q", host)
	}
	if insecure {
		t.Fatal("https endpoint should not be insecure")
	}

	host, insecure, err = parseEndpoint("http://collector:4318")
	if err != nil {
		t.Fatalf("parseEndpoint failed: %v", err)
	}
	if host != "collector:4318" || !insecure {
		t.Fatalf("unexpected parse result host=%q insecure=%v", host, insecure)
	}
}
