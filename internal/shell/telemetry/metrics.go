// Package telemetry exposes Prometheus metrics for sweep runs. Metrics are
// registered on an explicit registry owned by the Collector, never on the
// global default, so tests and the admin server each get a clean instance.
package telemetry

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	namespace = "sweeper"
)

// Collector owns the sweep metrics and their registry.
type Collector struct {
	registry *prometheus.Registry

	runsTotal      *prometheus.CounterVec
	deletionsTotal *prometheus.CounterVec
	sweepsTotal    *prometheus.CounterVec
	runDuration    *prometheus.HistogramVec
	lastCandidates *prometheus.GaugeVec
}

// NewCollector creates a collector on the given registry, or on a fresh one
// when registry is nil.
func NewCollector(registry *prometheus.Registry) *Collector {
	if registry == nil {
		registry = prometheus.NewRegistry()
	}

	c := &Collector{
		registry: registry,

		runsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "runs_total",
				Help:      "Total number of cleanup runs by terminal outcome",
			},
			[]string{"project", "outcome"},
		),

		deletionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "deletions_total",
				Help:      "Total number of individual deployment deletions attempted",
			},
			[]string{"project", "result"},
		),

		sweepsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "sweeps_total",
				Help:      "Total number of scan/delete sweeps executed",
			},
			[]string{"project"},
		),

		runDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "run_duration_seconds",
				Help:      "Duration of cleanup runs in seconds",
				// Runs are dominated by the inter-delete pauses: seconds for
				// small backlogs, minutes for hundreds of deployments.
				Buckets: []float64{1, 5, 15, 60, 300, 900, 3600},
			},
			[]string{"project"},
		),

		lastCandidates: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "last_run_candidates",
				Help:      "Candidate count observed on the first sweep of the most recent run",
			},
			[]string{"project"},
		),
	}

	registry.MustRegister(
		c.runsTotal,
		c.deletionsTotal,
		c.sweepsTotal,
		c.runDuration,
		c.lastCandidates,
	)

	return c
}

// ObserveRun records the aggregate metrics of one finished run.
func (c *Collector) ObserveRun(project, outcome string, deleted, failed, sweeps int, duration time.Duration) {
	c.runsTotal.WithLabelValues(project, outcome).Inc()
	c.deletionsTotal.WithLabelValues(project, "success").Add(float64(deleted))
	c.deletionsTotal.WithLabelValues(project, "failure").Add(float64(failed))
	c.sweepsTotal.WithLabelValues(project).Add(float64(sweeps))
	c.runDuration.WithLabelValues(project).Observe(duration.Seconds())
}

// SetLastCandidates records the opening candidate count of the latest run.
func (c *Collector) SetLastCandidates(project string, count int) {
	c.lastCandidates.WithLabelValues(project).Set(float64(count))
}

// Handler returns the Prometheus scrape handler for this collector's
// registry.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{
		ErrorHandling: promhttp.ContinueOnError,
	})
}
