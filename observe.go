package esmap

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/kailas-cloud/esmap/internal/logger"
	"github.com/kailas-cloud/esmap/internal/metrics"
)

// WithRequestLogger returns a context carrying a request-scoped logger.
// Operation logging reads it back and prefers it over the client-wide logger.
func WithRequestLogger(ctx context.Context, log *zap.Logger) context.Context {
	return logger.WithContext(ctx, log)
}

// observer provides logging and metrics for client operations.
type observer struct {
	logger    *zap.Logger
	metricsOn bool
}

func newObserver(logger *zap.Logger, reg prometheus.Registerer) (*observer, error) {
	o := &observer{logger: logger}
	if reg != nil {
		if err := metrics.RegisterOn(reg); err != nil {
			return nil, err
		}
		o.metricsOn = true
	}
	return o, nil
}

func (o *observer) observe(ctx context.Context, index, op string, start time.Time, err error) {
	if o == nil {
		return
	}
	dur := time.Since(start)

	if o.metricsOn {
		status := "ok"
		if err != nil {
			status = "error"
		}
		metrics.OperationsTotal.WithLabelValues(index, op, status).Inc()
		metrics.OperationDuration.WithLabelValues(index, op).Observe(dur.Seconds())
	}

	// A request-scoped logger on the context takes precedence over the
	// client-wide one.
	log := logger.FromContext(ctx, o.logger)
	if err != nil {
		log.Warn("operation failed",
			zap.String("index", index),
			zap.String("op", op),
			zap.Duration("duration", dur),
			zap.Error(err),
		)
	} else {
		log.Debug("operation completed",
			zap.String("index", index),
			zap.String("op", op),
			zap.Duration("duration", dur),
		)
	}
}

func (o *observer) observeHits(index string, n int) {
	if o == nil || !o.metricsOn {
		return
	}
	metrics.SearchHitsTotal.WithLabelValues(index).Add(float64(n))
}

func (o *observer) observeDerive(err error) {
	if o == nil || !o.metricsOn {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	metrics.DerivedQueriesTotal.WithLabelValues(result).Inc()
}

func (o *observer) observeScroll(delta float64) {
	if o == nil || !o.metricsOn {
		return
	}
	metrics.ScrollsOpen.Add(delta)
}
