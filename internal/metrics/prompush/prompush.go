// Package prompush implements a Prometheus Pushgateway backend for the
// internal/metrics package. Batch runs cannot be scraped, so each run pushes
// its counters and duration histograms to a gateway instead.
package prompush

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"

	"regpipe/internal/metrics"
)

// Options controls Pushgateway backend configuration.
type Options struct {
	// URL is the Pushgateway base URL, e.g. "http://localhost:9091".
	URL string

	// JobName is the Pushgateway job grouping. Defaults to "regpipe".
	JobName string

	// pushFn is a test seam; production uses the configured pusher.
	pushFn func() error
}

// Backend implements metrics.Backend against a Pushgateway.
type Backend struct {
	pushFn func() error

	step     *prometheus.CounterVec
	records  *prometheus.CounterVec
	joinKeys prometheus.Gauge
	stepDur  *prometheus.HistogramVec
}

// NewBackend constructs the backend and its metric vectors. No network
// traffic happens until Flush.
func NewBackend(opts Options) (*Backend, error) {
	if opts.URL == "" && opts.pushFn == nil {
		return nil, fmt.Errorf("prompush: URL is required")
	}
	job := opts.JobName
	if job == "" {
		job = "regpipe"
	}

	b := &Backend{
		step: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: metrics.StepTotal,
			Help: "Pipeline stage executions.",
		}, []string{"step", "status"}),
		records: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: metrics.RecordsTotal,
			Help: "Rows produced per category.",
		}, []string{"category"}),
		joinKeys: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: metrics.JoinKeysTotal,
			Help: "Distinct composite keys in the combined view.",
		}),
		stepDur: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    metrics.StepDurationSeconds,
			Help:    "Pipeline stage wall time.",
			Buckets: prometheus.DefBuckets,
		}, []string{"step", "status"}),
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(b.step, b.records, b.joinKeys, b.stepDur)

	b.pushFn = opts.pushFn
	if b.pushFn == nil {
		pusher := push.New(opts.URL, job).Gatherer(reg)
		b.pushFn = pusher.Add
	}
	return b, nil
}

// IncCounter implements metrics.Backend.
func (b *Backend) IncCounter(name string, delta float64, labels metrics.Labels) {
	if delta <= 0 {
		return
	}
	switch name {
	case metrics.StepTotal:
		b.step.With(prometheus.Labels{
			"step":   labels["step"],
			"status": labels["status"],
		}).Add(delta)
	case metrics.RecordsTotal:
		b.records.With(prometheus.Labels{
			"category": labels["category"],
		}).Add(delta)
	case metrics.JoinKeysTotal:
		b.joinKeys.Add(delta)
	default:
		// Ignore unknown metrics by design.
	}
}

// ObserveHistogram implements metrics.Backend.
func (b *Backend) ObserveHistogram(name string, value float64, labels metrics.Labels) {
	if value < 0 {
		return
	}
	switch name {
	case metrics.StepDurationSeconds:
		b.stepDur.With(prometheus.Labels{
			"step":   labels["step"],
			"status": labels["status"],
		}).Observe(value)
	default:
	}
}

// Flush pushes the current registry state to the gateway.
func (b *Backend) Flush() error {
	if err := b.pushFn(); err != nil {
		return fmt.Errorf("pushgateway: %w", err)
	}
	return nil
}

// Close performs one final push.
func (b *Backend) Close() error { return b.Flush() }

var _ metrics.Backend = (*Backend)(nil)
