// Package buffer groups incoming records by destination and writes them to a
// relational store in batches.
//
// Each destination has its own pending queue. A queue is flushed when it
// reaches the destination's batch size, when an idle signal finds its flush
// deadline expired, or on Close. A flush first tries one bulk insert of the
// whole queue; if that fails, every row is retried individually and rows that
// still fail are logged and dropped. Store errors never escape a flush.
//
// A batch size of 1 disables buffering: the record is validated and committed
// synchronously, and store errors are returned to the caller.
package buffer

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"sync"
	"time"

	"github.com/puzpuzpuz/xsync/v3"
	"golang.org/x/sync/errgroup"

	"sqlsink/internal/item"
	"sqlsink/internal/metrics"
	"sqlsink/internal/schema"
)

var (
	// ErrUnknownDestination is returned for records or names that the
	// buffer's registry does not know.
	ErrUnknownDestination = errors.New("buffer: unknown destination")

	// ErrClosed is returned by RecordArrived after Close.
	ErrClosed = errors.New("buffer: closed")
)

// Store is what the buffer writes through. storage.Repository satisfies it.
type Store interface {
	// InsertMany writes rows atomically: all of them or none.
	InsertMany(ctx context.Context, dest *schema.Destination, rows []map[string]any) error
	InsertOne(ctx context.Context, dest *schema.Destination, row map[string]any) error
	FindByKey(ctx context.Context, dest *schema.Destination, key map[string]any) (schema.Row, bool, error)
}

// FlushResult describes one flush of one destination.
type FlushResult struct {
	Destination string
	Rows        int  // rows taken from the queue
	Written     int  // rows persisted
	Dropped     int  // rows lost after the individual fallback
	Fallback    bool // the bulk insert failed
}

// destState is the per-destination queue and deadline.
//
// mu guards queue and deadline and is never held across store calls: a
// flush takes the queue under mu and writes it unlocked, so an arrival
// during the write, including one made by the store on the flushing
// goroutine, lands in a fresh queue. flushing serializes the flushes of one
// destination; arrivals only ever TryLock it.
type destState struct {
	mu       sync.Mutex
	dest     *schema.Destination
	queue    []map[string]any
	deadline time.Time

	flushing sync.Mutex
}

// Buffer is the write buffer. It is safe for concurrent use.
type Buffer struct {
	store Store
	reg   *schema.Registry

	defaultBatch int
	batchSizes   map[string]int
	interval     time.Duration
	workers      int
	job          string
	now          func() time.Time
	log          *log.Logger

	started time.Time
	states  *xsync.MapOf[string, *destState]

	// closeMu orders Close against queueing arrivals: an arrival holds it
	// shared from the closed check until its row is in the queue.
	closeMu sync.RWMutex
	closed  bool

	stats counters
}

// New returns a Buffer writing to store for the destinations in reg.
func New(store Store, reg *schema.Registry, opts ...Option) *Buffer {
	if reg == nil {
		reg, _ = schema.NewRegistry()
	}
	b := &Buffer{
		store:        store,
		reg:          reg,
		defaultBatch: 1,
		workers:      1,
		job:          "sqlsink",
		now:          time.Now,
		log:          log.Default(),
		states:       xsync.NewMapOf[string, *destState](),
	}
	for _, o := range opts {
		o(b)
	}
	b.started = b.now()
	return b
}

// BatchSize returns the effective batch size for a destination: an explicit
// override, else the destination's own size, else the default.
func (b *Buffer) BatchSize(dest *schema.Destination) int {
	if n, ok := b.batchSizes[dest.Name()]; ok {
		return n
	}
	if n := dest.BatchSize(); n > 0 {
		return n
	}
	return b.defaultBatch
}

// state returns the destination's state, creating it on first use. A
// destination that was never flushed is due one interval after New.
func (b *Buffer) state(dest *schema.Destination) *destState {
	st, _ := b.states.LoadOrCompute(dest.Name(), func() *destState {
		return &destState{dest: dest, deadline: b.started.Add(b.interval)}
	})
	return st
}

func (b *Buffer) lookup(name string) (*schema.Destination, error) {
	dest, ok := b.reg.Lookup(name)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownDestination, name)
	}
	return dest, nil
}

// RecordArrived hands a record to the buffer.
//
// With an effective batch size of 1 the record is validated and committed
// immediately; validation failures return an *item.ValidationError and
// store failures are returned wrapped. Otherwise the record's destination
// fields are queued, and the queue is flushed once it is full.
func (b *Buffer) RecordArrived(ctx context.Context, rec *item.Record) error {
	if b.isClosed() {
		return ErrClosed
	}
	if rec == nil || rec.Destination() == nil {
		return fmt.Errorf("%w: record has no destination", ErrUnknownDestination)
	}
	dest, err := b.lookup(rec.Destination().Name())
	if err != nil {
		return err
	}
	b.stats.arrived.Add(1)
	metrics.RecordRows(b.job, dest.Name(), metrics.KindArrived, 1)

	size := b.BatchSize(dest)
	if size <= 1 {
		return b.commit(ctx, dest, rec)
	}

	st := b.state(dest)
	b.closeMu.RLock()
	if b.closed {
		b.closeMu.RUnlock()
		return ErrClosed
	}
	st.mu.Lock()
	st.queue = append(st.queue, rec.Args())
	st.mu.Unlock()
	b.closeMu.RUnlock()

	b.flushFull(ctx, st, size)
	return nil
}

func (b *Buffer) isClosed() bool {
	b.closeMu.RLock()
	defer b.closeMu.RUnlock()
	return b.closed
}

func (st *destState) pending() int {
	st.mu.Lock()
	defer st.mu.Unlock()
	return len(st.queue)
}

// flushFull flushes st while its queue holds at least size rows. It never
// waits for a flush already in progress: that flush checks the queue again
// once it has released st.flushing.
func (b *Buffer) flushFull(ctx context.Context, st *destState, size int) {
	for st.pending() >= size {
		if !st.flushing.TryLock() {
			return
		}
		b.write(ctx, st)
		st.flushing.Unlock()
	}
}

// commit writes a single record synchronously. There is no fallback.
func (b *Buffer) commit(ctx context.Context, dest *schema.Destination, rec *item.Record) error {
	if err := item.CheckCommit(rec); err != nil {
		b.stats.invalid.Add(1)
		metrics.RecordRows(b.job, dest.Name(), metrics.KindInvalid, 1)
		return err
	}

	start := b.now()
	err := b.store.InsertOne(ctx, dest, rec.Args())
	metrics.RecordFlush(b.job, dest.Name(), metrics.ModeSingle, 1, err, b.now().Sub(start))
	if err != nil {
		return fmt.Errorf("buffer: commit %s: %w", dest.Name(), err)
	}
	b.stats.committed.Add(1)
	metrics.RecordRows(b.job, dest.Name(), metrics.KindCommitted, 1)
	return nil
}

// Flush writes the named destination's pending rows. An empty queue makes
// no store call. The only error is ErrUnknownDestination.
func (b *Buffer) Flush(ctx context.Context, name string) (FlushResult, error) {
	dest, err := b.lookup(name)
	if err != nil {
		return FlushResult{Destination: name}, err
	}
	return b.flush(ctx, b.state(dest)), nil
}

// flush writes st's queue once, waiting for any flush of st in progress,
// then flushes again while arrivals made during the write filled the queue.
func (b *Buffer) flush(ctx context.Context, st *destState) FlushResult {
	st.flushing.Lock()
	res := b.write(ctx, st)
	st.flushing.Unlock()

	b.flushFull(ctx, st, b.BatchSize(st.dest))
	return res
}

// write takes st's queue and writes it. st.flushing must be held.
func (b *Buffer) write(ctx context.Context, st *destState) FlushResult {
	name := st.dest.Name()

	st.mu.Lock()
	rows := st.queue
	st.queue = nil
	st.mu.Unlock()

	res := FlushResult{Destination: name, Rows: len(rows)}
	if res.Rows == 0 {
		return res
	}

	start := b.now()
	err := b.store.InsertMany(ctx, st.dest, rows)
	metrics.RecordFlush(b.job, name, metrics.ModeBulk, len(rows), err, b.now().Sub(start))
	if err == nil {
		res.Written = len(rows)
		b.stats.batches.Add(1)
	} else {
		res.Fallback = true
		b.stats.fallbacks.Add(1)
		b.log.Printf("buffer: bulk insert failed, retrying individually dest=%s rows=%d err=%v", name, len(rows), err)
		for _, row := range rows {
			t0 := b.now()
			ierr := b.store.InsertOne(ctx, st.dest, row)
			metrics.RecordFlush(b.job, name, metrics.ModeIndividual, 1, ierr, b.now().Sub(t0))
			if ierr != nil {
				b.log.Printf("buffer: individual insert failed dest=%s err=%v", name, ierr)
				res.Dropped++
				continue
			}
			res.Written++
		}
	}

	done := b.now()
	st.mu.Lock()
	st.deadline = done.Add(b.interval)
	st.mu.Unlock()

	b.stats.written.Add(int64(res.Written))
	b.stats.dropped.Add(int64(res.Dropped))
	metrics.RecordRows(b.job, name, metrics.KindWritten, int64(res.Written))
	metrics.RecordRows(b.job, name, metrics.KindDropped, int64(res.Dropped))

	b.log.Printf("buffer: flushed dest=%s rows=%d written=%d dropped=%d fallback=%t elapsed=%s",
		name, res.Rows, res.Written, res.Dropped, res.Fallback, done.Sub(start).Truncate(time.Millisecond))
	return res
}

// FlushAll flushes every destination with pending rows, up to
// WithFlushWorkers destinations at a time. Results are sorted by
// destination name.
func (b *Buffer) FlushAll(ctx context.Context) []FlushResult {
	return b.flushEach(ctx, b.pendingNames())
}

func (b *Buffer) flushEach(ctx context.Context, names []string) []FlushResult {
	if len(names) == 0 {
		return nil
	}
	results := make([]FlushResult, len(names))

	var g errgroup.Group
	g.SetLimit(b.workers)
	for i, name := range names {
		st, ok := b.states.Load(name)
		if !ok {
			continue
		}
		g.Go(func() error {
			results[i] = b.flush(ctx, st)
			return nil
		})
	}
	_ = g.Wait()

	out := results[:0]
	for _, r := range results {
		if r.Rows > 0 {
			out = append(out, r)
		}
	}
	return out
}

// pendingNames returns the sorted names of destinations with queued rows.
func (b *Buffer) pendingNames() []string {
	var names []string
	b.states.Range(func(name string, st *destState) bool {
		if st.pending() > 0 {
			names = append(names, name)
		}
		return true
	})
	sort.Strings(names)
	return names
}

// Close stops accepting records and flushes everything pending. A row
// queued by a RecordArrived that returned nil is never left in a queue
// after Close. Calling it again returns ErrClosed.
func (b *Buffer) Close(ctx context.Context) error {
	b.closeMu.Lock()
	if b.closed {
		b.closeMu.Unlock()
		return ErrClosed
	}
	b.closed = true
	b.closeMu.Unlock()

	res := b.FlushAll(ctx)
	s := b.Stats()
	b.log.Printf("buffer: closed destinations_flushed=%d arrived=%d committed=%d written=%d dropped=%d",
		len(res), s.Arrived, s.Committed, s.Written, s.Dropped)
	return nil
}

// Pending returns the number of queued rows for a destination.
func (b *Buffer) Pending(name string) int {
	st, ok := b.states.Load(name)
	if !ok {
		return 0
	}
	return st.pending()
}

// Deadline returns when the destination next becomes eligible for a
// time-based flush. ok is false for destinations the registry does not know.
func (b *Buffer) Deadline(name string) (deadline time.Time, ok bool) {
	dest, err := b.lookup(name)
	if err != nil {
		return time.Time{}, false
	}
	st := b.state(dest)
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.deadline, true
}

// MatchingRow looks up the stored row matching rec's primary key through the
// buffer's store. Records whose destination is not registered get
// item.ErrNotBound.
func (b *Buffer) MatchingRow(ctx context.Context, rec *item.Record, cache bool) (schema.Row, bool, error) {
	var finder item.RowFinder
	if d := rec.Destination(); d != nil && b.store != nil {
		if _, ok := b.reg.Lookup(d.Name()); ok {
			finder = b.store
		}
	}
	return rec.MatchingRow(ctx, finder, cache)
}
