package buffer

import (
	"log"
	"time"
)

// Option configures a Buffer.
type Option func(*Buffer)

// WithDefaultBatchSize sets the batch size used when neither an override nor
// the destination carries one. Values below 1 are ignored.
func WithDefaultBatchSize(n int) Option {
	return func(b *Buffer) {
		if n >= 1 {
			b.defaultBatch = n
		}
	}
}

// WithBatchSizes sets per-destination batch sizes keyed by destination name.
// They take precedence over the destination's own batch size.
func WithBatchSizes(sizes map[string]int) Option {
	return func(b *Buffer) {
		b.batchSizes = make(map[string]int, len(sizes))
		for name, n := range sizes {
			if n >= 1 {
				b.batchSizes[name] = n
			}
		}
	}
}

// WithFlushInterval enables time-based flushing on idle signals. Zero
// disables it.
func WithFlushInterval(d time.Duration) Option {
	return func(b *Buffer) {
		if d > 0 {
			b.interval = d
		}
	}
}

// WithClock replaces time.Now, mainly for tests.
func WithClock(now func() time.Time) Option {
	return func(b *Buffer) {
		if now != nil {
			b.now = now
		}
	}
}

// WithLogger sets the logger for flush progress and write failures.
func WithLogger(l *log.Logger) Option {
	return func(b *Buffer) {
		if l != nil {
			b.log = l
		}
	}
}

// WithJob sets the job label attached to emitted metrics.
func WithJob(job string) Option {
	return func(b *Buffer) { b.job = job }
}

// WithFlushWorkers bounds how many destinations FlushAll writes concurrently.
func WithFlushWorkers(n int) Option {
	return func(b *Buffer) {
		if n >= 1 {
			b.workers = n
		}
	}
}
