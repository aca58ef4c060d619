// Package metrics provides a small, backend-agnostic abstraction for recording
// operational metrics from the sink.
//
// It exposes a narrow interface (Backend) focused on counters and timing data,
// and a global, pluggable backend that defaults to a no-op implementation so
// metrics are always safe to call even when no real backend is configured.
// Concrete systems (Prometheus Pushgateway, Datadog) live in subpackages.
package metrics

import "time"

// Metric names emitted by the helpers below.
const (
	FlushTotal    = "sqlsink_flush_total"
	FlushDuration = "sqlsink_flush_duration_seconds"
	FlushRows     = "sqlsink_flush_rows"
	RowsTotal     = "sqlsink_rows_total"
)

// Flush modes.
const (
	ModeBulk       = "bulk"
	ModeIndividual = "individual"
	ModeSingle     = "single"
)

// Row kinds.
const (
	KindArrived   = "arrived"
	KindInvalid   = "invalid"
	KindCommitted = "committed"
	KindWritten   = "written"
	KindDropped   = "dropped"
)

// Labels are string key/value pairs attached to a metric.
type Labels map[string]string

// Backend is the minimal interface for metrics backends.
// It is intentionally generic so we can plug in Prometheus, Datadog, etc.
type Backend interface {
	// IncCounter increments a counter by delta.
	IncCounter(name string, delta float64, labels Labels)
	// ObserveHistogram records a value in a latency/duration style metric.
	ObserveHistogram(name string, value float64, labels Labels)
	// Flush pushes or flushes metrics, if the backend needs it (e.g. Pushgateway).
	Flush() error
}

// nopBackend is used by default so metrics are optional.
type nopBackend struct{}

func (nopBackend) IncCounter(name string, delta float64, labels Labels)       {}
func (nopBackend) ObserveHistogram(name string, value float64, labels Labels) {}
func (nopBackend) Flush() error                                               { return nil }

var backend Backend = nopBackend{}

// SetBackend installs a concrete backend. Passing nil keeps the existing backend.
// Call it once at startup, before records flow.
func SetBackend(b Backend) {
	if b == nil {
		return
	}
	backend = b
}

// Flush delegates to the current backend.
func Flush() error {
	return backend.Flush()
}

// RecordFlush measures one write of a destination's rows. mode is one of
// ModeBulk, ModeIndividual or ModeSingle.
func RecordFlush(job, dest, mode string, rows int, err error, d time.Duration) {
	status := "success"
	if err != nil {
		status = "failure"
	}

	lbls := Labels{
		"job":         job,
		"destination": dest,
		"mode":        mode,
		"status":      status,
	}

	backend.IncCounter(FlushTotal, 1, lbls)
	backend.ObserveHistogram(FlushDuration, d.Seconds(), lbls)
	backend.ObserveHistogram(FlushRows, float64(rows), lbls)
}

// RecordRows increments a row-level counter for the given destination.
//
// Kinds:
//   - "arrived"   records handed to the buffer
//   - "invalid"   records rejected by validation
//   - "committed" records written synchronously (batch size 1)
//   - "written"   rows persisted by a flush
//   - "dropped"   rows lost after the individual fallback
func RecordRows(job, dest, kind string, delta int64) {
	if delta <= 0 {
		return
	}
	backend.IncCounter(RowsTotal, float64(delta), Labels{
		"job":         job,
		"destination": dest,
		"kind":        kind,
	})
}
