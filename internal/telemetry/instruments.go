// Package telemetry exposes pool state through OpenTelemetry instruments.
package telemetry

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/spawnforge/spawncache/internal/snapshot"
)

// StateSource supplies the current pool state to observable instruments.
type StateSource func() snapshot.State

// Instruments holds the callback registration for the pool gauges.
type Instruments struct {
	registration metric.Registration
}

// RegisterPoolInstruments wires observable gauges for per-category
// availability, active leases, and category count onto the provided meter.
func RegisterPoolInstruments(meter metric.Meter, source StateSource) (*Instruments, error) {
	if meter == nil || source == nil {
		return nil, fmt.Errorf("telemetry: meter and state source are required")
	}

	available, err := meter.Int64ObservableGauge(
		"spawncache.pool.available",
		metric.WithDescription("Items currently available per category."),
	)
	if err != nil {
		return nil, fmt.Errorf("create available gauge: %w", err)
	}
	leases, err := meter.Int64ObservableGauge(
		"spawncache.pool.leases",
		metric.WithDescription("Active leases across all categories."),
	)
	if err != nil {
		return nil, fmt.Errorf("create leases gauge: %w", err)
	}
	categories, err := meter.Int64ObservableGauge(
		"spawncache.pool.categories",
		metric.WithDescription("Registered category count."),
	)
	if err != nil {
		return nil, fmt.Errorf("create categories gauge: %w", err)
	}

	registration, err := meter.RegisterCallback(func(_ context.Context, o metric.Observer) error {
		state := source()
		for _, c := range state.Categories {
			o.ObserveInt64(available, int64(c.Available),
				metric.WithAttributes(attribute.String("category", c.Name)))
		}
		o.ObserveInt64(leases, int64(len(state.Leases)))
		o.ObserveInt64(categories, int64(len(state.Categories)))
		return nil
	}, available, leases, categories)
	if err != nil {
		return nil, fmt.Errorf("register pool callback: %w", err)
	}

	return &Instruments{registration: registration}, nil
}

// Unregister detaches the gauges from the meter.
func (i *Instruments) Unregister() error {
	if i == nil || i.registration == nil {
		return nil
	}
	return i.registration.Unregister()
}
