package spawncache

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics captures observability counters for pool operations. A nil Metrics
// is valid and records nothing.
type Metrics struct {
	checkoutsTotal *prometheus.CounterVec
	returnsTotal   *prometheus.CounterVec
	discardsTotal  *prometheus.CounterVec
	clonesTotal    *prometheus.CounterVec
	available      *prometheus.GaugeVec
	leaseAge       *prometheus.HistogramVec
}

// NewMetrics constructs metrics instruments and registers them with the
// provided registerer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	m := &Metrics{
		checkoutsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "spawncache",
				Subsystem: "pool",
				Name:      "checkouts_total",
				Help:      "Total number of items checked out, labeled by category.",
			},
			[]string{"category"},
		),
		returnsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "spawncache",
				Subsystem: "pool",
				Name:      "returns_total",
				Help:      "Total number of items returned to the pool, labeled by category.",
			},
			[]string{"category"},
		),
		discardsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "spawncache",
				Subsystem: "pool",
				Name:      "discards_total",
				Help:      "Total number of items discarded by Remove, labeled by category.",
			},
			[]string{"category"},
		),
		clonesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "spawncache",
				Subsystem: "pool",
				Name:      "clones_total",
				Help:      "Total number of clone attempts, labeled by category and outcome.",
			},
			[]string{"category", "outcome"},
		),
		available: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: "spawncache",
				Subsystem: "pool",
				Name:      "available",
				Help:      "Items currently available per category.",
			},
			[]string{"category"},
		),
		leaseAge: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "spawncache",
				Subsystem: "pool",
				Name:      "lease_age_seconds",
				Help:      "How long items were held, observed at return time.",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"category"},
		),
	}
	reg.MustRegister(m.checkoutsTotal, m.returnsTotal, m.discardsTotal,
		m.clonesTotal, m.available, m.leaseAge)
	return m
}

func (m *Metrics) observeCheckout(category string) {
	if m == nil {
		return
	}
	m.checkoutsTotal.WithLabelValues(category).Inc()
}

func (m *Metrics) observeReturn(category string, heldFor time.Duration) {
	if m == nil {
		return
	}
	m.returnsTotal.WithLabelValues(category).Inc()
	m.leaseAge.WithLabelValues(category).Observe(heldFor.Seconds())
}

func (m *Metrics) observeDiscard(category string) {
	if m == nil {
		return
	}
	m.discardsTotal.WithLabelValues(category).Inc()
}

func (m *Metrics) observeClone(category string, landed bool) {
	if m == nil {
		return
	}
	outcome := "ok"
	if !landed {
		outcome = "failed"
	}
	m.clonesTotal.WithLabelValues(category, outcome).Inc()
}

func (m *Metrics) setAvailable(category string, n int) {
	if m == nil {
		return
	}
	m.available.WithLabelValues(category).Set(float64(n))
}
