package buffer

import (
	"context"
	"sort"
	"time"
)

// Due returns the sorted names of destinations whose queue is non-empty and
// whose deadline is before now. Without a flush interval nothing is ever due.
func (b *Buffer) Due(now time.Time) []string {
	if b.interval <= 0 {
		return nil
	}
	var names []string
	b.states.Range(func(name string, st *destState) bool {
		st.mu.Lock()
		due := len(st.queue) > 0 && st.deadline.Before(now)
		st.mu.Unlock()
		if due {
			names = append(names, name)
		}
		return true
	})
	sort.Strings(names)
	return names
}

// OnIdle is the idle signal from the producer. It flushes every destination
// that is Due. Empty queues are skipped and keep their lapsed deadline.
func (b *Buffer) OnIdle(ctx context.Context) []FlushResult {
	return b.flushEach(ctx, b.Due(b.now()))
}
