package diagnostics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/centraunit/digo"
)

// Metrics records resolve outcomes as Prometheus metrics.
type Metrics struct {
	Resolves    *prometheus.CounterVec
	Duration    *prometheus.HistogramVec
	Activations *prometheus.CounterVec
}

// NewMetrics creates the collectors and registers them with reg.
func NewMetrics(reg prometheus.Registerer, namespace string) (*Metrics, error) {
	m := &Metrics{
		Resolves: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "resolves_total",
				Help:      "Total number of resolve requests",
			},
			[]string{"service", "outcome"},
		),
		Duration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "resolve_duration_seconds",
				Help:      "Resolve request duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"service"},
		),
		Activations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "activations_total",
				Help:      "Total number of instances created",
			},
			[]string{"service"},
		),
	}
	for _, c := range []prometheus.Collector{m.Resolves, m.Duration, m.Activations} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// Middleware returns a request-start stage that observes every request,
// cache hits included.
func (m *Metrics) Middleware() digo.ResolveMiddleware {
	return digo.NewMiddleware("Metrics", digo.PhaseRequestStart,
		func(ctx *digo.ResolveRequestContext, next func(*digo.ResolveRequestContext) error) error {
			service := ctx.Service.Description()
			start := time.Now()
			err := next(ctx)
			m.Duration.WithLabelValues(service).Observe(time.Since(start).Seconds())

			outcome := "success"
			if err != nil {
				outcome = "error"
			}
			m.Resolves.WithLabelValues(service, outcome).Inc()
			if err == nil && ctx.NewInstanceActivated() {
				m.Activations.WithLabelValues(service).Inc()
			}
			return err
		})
}
