// Package jobmetrics records background job runs for Prometheus.
package jobmetrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Status label values.
const (
	StatusSuccess = "success"
	StatusFailure = "failure"
)

// Metrics holds the job collectors. A nil *Metrics records nothing.
type Metrics struct {
	runs     *prometheus.CounterVec
	duration *prometheus.HistogramVec
	items    *prometheus.CounterVec
}

var (
	defaultOnce    sync.Once
	defaultMetrics *Metrics
)

// NewMetrics registers the collectors with registerer, or once with the
// default registerer when it is nil.
func NewMetrics(registerer prometheus.Registerer) *Metrics {
	if registerer == nil {
		defaultOnce.Do(func() {
			defaultMetrics = register(prometheus.DefaultRegisterer)
		})
		return defaultMetrics
	}
	return register(registerer)
}

// Run executes fn as one run of job. fn returns how many records it
// processed; the count and error are passed through unchanged.
func (m *Metrics) Run(job string, fn func() (int64, error)) (int64, error) {
	start := time.Now()
	n, err := fn()
	m.observe(job, n, err, time.Since(start))
	return n, err
}

func (m *Metrics) observe(job string, n int64, err error, took time.Duration) {
	if m == nil || job == "" {
		return
	}
	status := StatusSuccess
	if err != nil {
		status = StatusFailure
	} else if n > 0 {
		m.items.WithLabelValues(job).Add(float64(n))
	}
	m.runs.WithLabelValues(job, status).Inc()
	m.duration.WithLabelValues(job, status).Observe(took.Seconds())
}

func register(registerer prometheus.Registerer) *Metrics {
	m := &Metrics{
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "odyssey_job_runs_total",
			Help: "Background job runs by job and outcome.",
		}, []string{"job", "status"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "odyssey_job_run_duration_seconds",
			Help:    "Background job run time by job and outcome.",
			Buckets: []float64{.05, .1, .5, 1, 5, 15, 60},
		}, []string{"job", "status"}),
		items: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "odyssey_job_items_total",
			Help: "Records processed by successful background job runs.",
		}, []string{"job"}),
	}
	registerer.MustRegister(m.runs, m.duration, m.items)
	return m
}
