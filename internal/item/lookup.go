package item

import (
	"context"
	"fmt"

	"github.com/zeebo/xxh3"

	"sqlsink/internal/schema"
)

// RowFinder retrieves the stored row whose primary-key fields equal key.
// It reports found=false, err=nil when no row matches.
type RowFinder interface {
	FindByKey(ctx context.Context, dest *schema.Destination, key map[string]any) (row schema.Row, found bool, err error)
}

// matchEntry is the single cached lookup result of a record. fp
// fingerprints the key values the result was fetched for.
type matchEntry struct {
	fp    uint64
	row   schema.Row
	found bool
}

// MatchingRow returns the stored row matching the record's primary key.
//
// It fails with ErrNotBound when finder or the record's destination is nil,
// and with a *KeyError when a primary-key field is null. With cache=true a
// previous result cached on this record (including "no row") is returned
// without querying, as long as the key values have not changed since.
// cache=false always queries and refreshes the cache.
func (r *Record) MatchingRow(ctx context.Context, finder RowFinder, cache bool) (schema.Row, bool, error) {
	if finder == nil || r.dest == nil {
		return nil, false, fmt.Errorf("%w: %s", ErrNotBound, destName(r))
	}
	if err := CheckKey(r); err != nil {
		return nil, false, err
	}

	key := r.keyValues()
	fp := fingerprint(r.dest.PrimaryKeys(), key)
	if cache && r.match != nil && r.match.fp == fp {
		return r.match.row, r.match.found, nil
	}

	row, found, err := finder.FindByKey(ctx, r.dest, key)
	if err != nil {
		return nil, false, fmt.Errorf("item: lookup %s: %w", r.dest.Name(), err)
	}
	r.match = &matchEntry{fp: fp, row: row, found: found}
	return row, found, nil
}

// ForgetMatch drops any cached lookup result.
func (r *Record) ForgetMatch() { r.match = nil }

func (r *Record) keyValues() map[string]any {
	pks := r.dest.PrimaryKeys()
	out := make(map[string]any, len(pks))
	for _, f := range pks {
		out[f] = r.values[f]
	}
	return out
}

func fingerprint(fields []string, key map[string]any) uint64 {
	h := xxh3.New()
	for _, f := range fields {
		_, _ = h.WriteString(f)
		_, _ = h.Write([]byte{0})
		_, _ = fmt.Fprintf(h, "%T:%v", key[f], key[f])
		_, _ = h.Write([]byte{0})
	}
	return h.Sum64()
}
