// Package metrics exposes run counters in the Prometheus text format.
//
// The runner is a batch job, so metrics are collected in a private registry
// and written once to a textfile (for node_exporter's textfile collector)
// instead of being served over HTTP.
package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "biosim_runner"

// RunMetrics holds the collectors for one run
type RunMetrics struct {
	registry *prometheus.Registry

	StartRequests prometheus.Counter
	Listed        prometheus.Gauge
	Saved         prometheus.Counter
	FetchFailures *prometheus.CounterVec
	Duration      prometheus.Gauge
	LastSuccess   prometheus.Gauge
}

// New creates the collectors in a fresh registry
func New() *RunMetrics {
	m := &RunMetrics{
		registry: prometheus.NewRegistry(),
		StartRequests: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "start_requests_total",
			Help:      "Simulation start requests submitted.",
		}),
		Listed: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "simulations_listed",
			Help:      "Simulation identifiers returned by the listing endpoint.",
		}),
		Saved: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "simulations_saved_total",
			Help:      "Simulation payloads written to disk.",
		}),
		FetchFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fetch_failures_total",
			Help:      "Simulation fetches answered with a non-200 status.",
		}, []string{"status"}),
		Duration: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "run_duration_seconds",
			Help:      "Wall time of the last run.",
		}),
		LastSuccess: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_success_timestamp_seconds",
			Help:      "Unix time of the last run that completed without error.",
		}),
	}

	m.registry.MustRegister(m.StartRequests, m.Listed, m.Saved, m.FetchFailures, m.Duration, m.LastSuccess)
	return m
}

// Registry returns the registry holding the run collectors
func (m *RunMetrics) Registry() *prometheus.Registry {
	return m.registry
}

// ObserveFailure counts a non-200 fetch
func (m *RunMetrics) ObserveFailure(status int) {
	m.FetchFailures.WithLabelValues(fmt.Sprintf("%d", status)).Inc()
}

// Finish records the run duration and, on success, the completion time
func (m *RunMetrics) Finish(started time.Time, err error) {
	now := time.Now()
	m.Duration.Set(now.Sub(started).Seconds())
	if err == nil {
		m.LastSuccess.Set(float64(now.Unix()))
	}
}

// WriteTextfile writes the metrics to path in the Prometheus text format
func (m *RunMetrics) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, m.registry); err != nil {
		return fmt.Errorf("failed to write metrics to %s: %w", path, err)
	}
	return nil
}
