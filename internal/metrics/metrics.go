// Package metrics exposes Prometheus instruments for repository operations.
package metrics

import (
	"errors"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

// Repository Prometheus metrics.
var (
	OperationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "esmap",
			Name:      "operations_total",
			Help:      "Total number of repository operations",
		},
		[]string{"index", "operation", "status"},
	)

	OperationDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "esmap",
			Name:      "operation_duration_seconds",
			Help:      "Repository operation duration in seconds",
			Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		},
		[]string{"index", "operation"},
	)

	SearchHitsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "esmap",
			Name:      "search_hits_total",
			Help:      "Total documents returned by search operations",
		},
		[]string{"index"},
	)

	DerivedQueriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "esmap",
			Name:      "derived_queries_total",
			Help:      "Query method derivations by outcome",
		},
		[]string{"result"}, // "ok" / "error"
	)

	ScrollsOpen = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "esmap",
			Name:      "scrolls_open",
			Help:      "Currently open scroll contexts",
		},
	)
)

var metricsRegistered bool

// Register registers repository metrics on the default registerer. Must be
// called once from main.
func Register() {
	if metricsRegistered {
		return
	}
	if err := RegisterOn(prometheus.DefaultRegisterer); err != nil {
		panic(err)
	}
	metricsRegistered = true
}

// RegisterOn registers repository metrics on the given registerer, reusing
// collectors already present there.
func RegisterOn(reg prometheus.Registerer) error {
	if err := registerOrReuse(reg, &OperationsTotal); err != nil {
		return err
	}
	if err := registerOrReuse(reg, &OperationDuration); err != nil {
		return err
	}
	if err := registerOrReuse(reg, &SearchHitsTotal); err != nil {
		return err
	}
	if err := registerOrReuse(reg, &DerivedQueriesTotal); err != nil {
		return err
	}
	return registerOrReuse(reg, &ScrollsOpen)
}

// registerOrReuse registers a collector or adopts an existing one.
func registerOrReuse[T prometheus.Collector](reg prometheus.Registerer, c *T) error {
	if err := reg.Register(*c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			existing, ok := are.ExistingCollector.(T)
			if !ok {
				return fmt.Errorf("metric already registered with incompatible type: %T", are.ExistingCollector)
			}
			*c = existing
			return nil
		}
		return fmt.Errorf("register metric: %w", err)
	}
	return nil
}
