// Package metrics exposes Prometheus counters for fetch jobs, fan-out and mail delivery
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "weather_tracker"

// Collector groups the application metrics. A nil *Collector is valid and records nothing.
type Collector struct {
	jobs          *prometheus.CounterVec
	fetchDuration prometheus.Histogram
	dispatched    prometheus.Counter
	notifications *prometheus.CounterVec
}

// NewCollector creates the metrics and registers them on reg
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		jobs: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "fetch_jobs_total",
				Help:      "Per-city fetch job executions by outcome.",
			},
			[]string{"outcome"},
		),
		fetchDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "fetch_duration_seconds",
				Help:      "Latency of weather API calls.",
				Buckets:   []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 15},
			},
		),
		dispatched: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "dispatched_jobs_total",
				Help:      "Fetch jobs enqueued by the fan-out dispatcher.",
			},
		),
		notifications: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "notifications_total",
				Help:      "Weather update emails by delivery result.",
			},
			[]string{"result"},
		),
	}
	reg.MustRegister(c.jobs, c.fetchDuration, c.dispatched, c.notifications)
	return c
}

// FetchJob counts one fetch job execution
func (c *Collector) FetchJob(outcome string) {
	if c == nil {
		return
	}
	c.jobs.WithLabelValues(outcome).Inc()
}

// ObserveFetch records one upstream call duration
func (c *Collector) ObserveFetch(d time.Duration) {
	if c == nil {
		return
	}
	c.fetchDuration.Observe(d.Seconds())
}

// Dispatched counts enqueued fan-out jobs
func (c *Collector) Dispatched(n int) {
	if c == nil || n <= 0 {
		return
	}
	c.dispatched.Add(float64(n))
}

// Notification counts one mail delivery result
func (c *Collector) Notification(result string) {
	if c == nil {
		return
	}
	c.notifications.WithLabelValues(result).Inc()
}
