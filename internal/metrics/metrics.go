// Package metrics exposes Prometheus instrumentation for the monitoring loop.
package metrics

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

// Metrics contains all Prometheus metrics for the monitoring loop.
type Metrics struct {
	TicksTotal          prometheus.Counter
	OpportunitiesTotal  *prometheus.CounterVec
	SignalsTotal        *prometheus.CounterVec
	ExecutionsTotal     *prometheus.CounterVec
	ErrorsTotal         *prometheus.CounterVec
	BreakerOpen         prometheus.Gauge
	ReferencePrice      prometheus.Gauge
	TickLatencySeconds  prometheus.Histogram
	PoolPrice           *prometheus.GaugeVec
	ShortTermVolatility prometheus.Gauge
}

// New creates all metrics and registers them on reg. Production wiring passes
// prometheus.DefaultRegisterer; tests pass a fresh registry.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		TicksTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "arbwatcher_ticks_total",
			Help: "Total number of monitoring ticks executed",
		}),
		OpportunitiesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "arbwatcher_opportunities_total",
			Help: "Total number of detected opportunities by pool and validation outcome",
		}, []string{"pool", "outcome"}),
		SignalsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "arbwatcher_signals_total",
			Help: "Total number of generated market-making signals by pool and priority",
		}, []string{"pool", "priority"}),
		ExecutionsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "arbwatcher_executions_total",
			Help: "Total number of simulated executions by status",
		}, []string{"status"}),
		ErrorsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "arbwatcher_errors_total",
			Help: "Total number of errors by classification",
		}, []string{"classification"}),
		BreakerOpen: factory.NewGauge(prometheus.GaugeOpts{
			Name: "arbwatcher_circuit_breaker_open",
			Help: "Whether the circuit breaker is currently open (1) or closed (0)",
		}),
		ReferencePrice: factory.NewGauge(prometheus.GaugeOpts{
			Name: "arbwatcher_reference_price_usd",
			Help: "Last fetched reference price in USD",
		}),
		TickLatencySeconds: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "arbwatcher_tick_latency_seconds",
			Help:    "Wall-clock duration of a full monitoring tick",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
		}),
		PoolPrice: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "arbwatcher_pool_price_usd",
			Help: "Last computed pool price in USD",
		}, []string{"pool"}),
		ShortTermVolatility: factory.NewGauge(prometheus.GaugeOpts{
			Name: "arbwatcher_short_term_volatility_pct",
			Help: "Short-term volatility as a percentage of the window mean",
		}),
	}
}

// RecordError increments the error counter for a classification.
func (m *Metrics) RecordError(classification string) {
	m.ErrorsTotal.WithLabelValues(classification).Inc()
}

// SetBreakerOpen flips the breaker gauge.
func (m *Metrics) SetBreakerOpen(open bool) {
	if open {
		m.BreakerOpen.Set(1)
		return
	}
	m.BreakerOpen.Set(0)
}

// Serve runs the /metrics listener until the context is cancelled.
func Serve(ctx context.Context, listen string, logger zerolog.Logger) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	server := &http.Server{Addr: listen, Handler: mux}
	errCh := make(chan error, 1)
	go func() {
		errCh <- server.ListenAndServe()
	}()

	logger.Info().Str("listen", listen).Msg("metrics listener started")

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	case err := <-errCh:
		if err == http.ErrServerClosed {
			return nil
		}
		return err
	}
}
