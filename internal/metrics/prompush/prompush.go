// Package prompush implements a Prometheus Pushgateway backend for the
// metrics package.
//
// It adapts metrics.Backend to client_golang collectors (CounterVec,
// SummaryVec, HistogramVec) and pushes them to a Pushgateway instead of
// exposing a scrape endpoint. The sink is a batch-oriented process that may
// exit before a scrape happens, so push fits better than pull.
package prompush

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"

	"sqlsink/internal/metrics"
)

// Backend is a Prometheus Pushgateway metrics backend.
type Backend struct {
	gatewayURL string // e.g. http://pushgateway:9091
	jobName    string // Pushgateway "job" group
	reg        *prometheus.Registry

	flushCounter  *prometheus.CounterVec   // sqlsink_flush_total
	flushDuration *prometheus.SummaryVec   // sqlsink_flush_duration_seconds
	flushRows     *prometheus.HistogramVec // sqlsink_flush_rows
	rowCounter    *prometheus.CounterVec   // sqlsink_rows_total
}

// NewBackend constructs a Prometheus Pushgateway backend.
// jobName: the Pushgateway "job" name (often the sink's job).
// gatewayURL: base URL of the Pushgateway server.
func NewBackend(jobName, gatewayURL string) (*Backend, error) {
	if gatewayURL == "" {
		return nil, fmt.Errorf("prompush: gateway URL is required")
	}
	if jobName == "" {
		jobName = "sqlsink"
	}

	reg := prometheus.NewRegistry()

	// job is the Pushgateway grouping key, so it is not a collector label.
	flushLabels := []string{"destination", "mode", "status"}
	flushCounter := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: metrics.FlushTotal,
			Help: "Writes of buffered rows, partitioned by destination, mode (bulk, individual, single) and status.",
		},
		flushLabels,
	)
	flushDuration := prometheus.NewSummaryVec(
		prometheus.SummaryOpts{
			Name:       metrics.FlushDuration,
			Help:       "Duration of writes in seconds.",
			Objectives: map[float64]float64{0.5: 0.05, 0.9: 0.01, 0.99: 0.001},
		},
		flushLabels,
	)
	flushRows := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    metrics.FlushRows,
			Help:    "Rows per write.",
			Buckets: prometheus.ExponentialBuckets(1, 4, 8),
		},
		flushLabels,
	)
	rowCounter := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: metrics.RowsTotal,
			Help: "Row-level counts per destination and kind (arrived, invalid, committed, written, dropped).",
		},
		[]string{"destination", "kind"},
	)

	for name, c := range map[string]prometheus.Collector{
		"flush counter": flushCounter,
		"flush summary": flushDuration,
		"flush rows":    flushRows,
		"row counter":   rowCounter,
	} {
		if err := reg.Register(c); err != nil {
			return nil, fmt.Errorf("prompush: register %s: %w", name, err)
		}
	}

	return &Backend{
		gatewayURL:    gatewayURL,
		jobName:       jobName,
		reg:           reg,
		flushCounter:  flushCounter,
		flushDuration: flushDuration,
		flushRows:     flushRows,
		rowCounter:    rowCounter,
	}, nil
}

func (b *Backend) IncCounter(name string, delta float64, labels metrics.Labels) {
	switch name {
	case metrics.FlushTotal:
		if b.flushCounter == nil {
			return
		}
		b.flushCounter.WithLabelValues(labels["destination"], labels["mode"], labels["status"]).Add(delta)

	case metrics.RowsTotal:
		if b.rowCounter == nil {
			return
		}
		b.rowCounter.WithLabelValues(labels["destination"], labels["kind"]).Add(delta)

	default:
		// unknown metric name: ignore
	}
}

func (b *Backend) ObserveHistogram(name string, value float64, labels metrics.Labels) {
	switch name {
	case metrics.FlushDuration:
		if b.flushDuration == nil {
			return
		}
		b.flushDuration.WithLabelValues(labels["destination"], labels["mode"], labels["status"]).Observe(value)

	case metrics.FlushRows:
		if b.flushRows == nil {
			return
		}
		b.flushRows.WithLabelValues(labels["destination"], labels["mode"], labels["status"]).Observe(value)
	}
}

// Flush pushes the current registry to the Pushgateway.
func (b *Backend) Flush() error {
	return push.New(b.gatewayURL, b.jobName).
		Gatherer(b.reg).
		Push()
}
