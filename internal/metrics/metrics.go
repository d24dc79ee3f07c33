// Package metrics exposes bootstrap and readiness measurements to Prometheus.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/sabiqazhar/frappe-env-setup/internal/orchestrator"
	"github.com/sabiqazhar/frappe-env-setup/internal/probe"
)

const metricsNamespace = "frappe_env"

// Collector is a prometheus.Collector for bootstrap runs, stages and
// readiness probes. It satisfies orchestrator.Recorder and probe.Observer.
type Collector struct {
	stageTotal    *prometheus.CounterVec
	stageDuration *prometheus.HistogramVec
	runTotal      *prometheus.CounterVec
	runDuration   prometheus.Histogram
	probeTotal    *prometheus.CounterVec
	probeAttempts *prometheus.HistogramVec
}

// NewCollector returns a new Collector.
func NewCollector() *Collector {
	return &Collector{
		stageTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "stage_total",
				Help:      "Bootstrap stages finished, by stage and status.",
			}, []string{"stage", "status"},
		),
		stageDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: metricsNamespace,
				Name:      "stage_duration_seconds",
				Help:      "Time spent in each bootstrap stage.",
				Buckets:   []float64{0.1, 1, 5, 15, 30, 60, 120, 300, 600, 1200},
			}, []string{"stage"},
		),
		runTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "run_total",
				Help:      "Bootstrap runs finished, by status.",
			}, []string{"status"},
		),
		runDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: metricsNamespace,
				Name:      "run_duration_seconds",
				Help:      "Wall time of a bootstrap run.",
				Buckets:   []float64{1, 10, 60, 300, 600, 1200, 1800, 3600},
			},
		),
		probeTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "probe_total",
				Help:      "Readiness probes finished, by target and outcome.",
			}, []string{"target", "outcome"},
		),
		probeAttempts: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: metricsNamespace,
				Name:      "probe_attempts",
				Help:      "Connection attempts needed per readiness probe.",
				Buckets:   []float64{1, 2, 3, 5, 10, 20, 30, 60},
			}, []string{"target"},
		),
	}
}

// ObserveStage implements orchestrator.Recorder.
func (c *Collector) ObserveStage(stage string, status orchestrator.Status, d time.Duration) {
	c.stageTotal.WithLabelValues(stage, string(status)).Inc()
	c.stageDuration.WithLabelValues(stage).Observe(d.Seconds())
}

// ObserveRun implements orchestrator.Recorder.
func (c *Collector) ObserveRun(status string, d time.Duration) {
	c.runTotal.WithLabelValues(status).Inc()
	c.runDuration.Observe(d.Seconds())
}

// ObserveProbe implements probe.Observer.
func (c *Collector) ObserveProbe(target string, outcome probe.Outcome, attempts int) {
	c.probeTotal.WithLabelValues(target, string(outcome)).Inc()
	c.probeAttempts.WithLabelValues(target).Observe(float64(attempts))
}

// Describe is part of the prometheus.Collector interface.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	c.stageTotal.Describe(ch)
	c.stageDuration.Describe(ch)
	c.runTotal.Describe(ch)
	c.runDuration.Describe(ch)
	c.probeTotal.Describe(ch)
	c.probeAttempts.Describe(ch)
}

// Collect is part of the prometheus.Collector interface.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	c.stageTotal.Collect(ch)
	c.stageDuration.Collect(ch)
	c.runTotal.Collect(ch)
	c.runDuration.Collect(ch)
	c.probeTotal.Collect(ch)
	c.probeAttempts.Collect(ch)
}

// Handler returns an HTTP handler serving c plus the Go runtime collectors
// from a dedicated registry.
func Handler(c *Collector) (http.Handler, error) {
	reg := prometheus.NewRegistry()
	for _, col := range []prometheus.Collector{
		c,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	} {
		if err := reg.Register(col); err != nil {
			return nil, err
		}
	}
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{}), nil
}
