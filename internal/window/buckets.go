// Package window aggregates success and error counts into fixed-size time
// buckets over a sliding window.
package window

import (
	"time"
)

// MinBucketSize is the smallest bucket width accepted by the registry.
const MinBucketSize = time.Minute

// Counts holds the tallies of one bucket or of a whole window.
type Counts struct {
	Success int64 `json:"success"`
	Error   int64 `json:"error"`
}

// Total returns Success + Error.
func (c Counts) Total() int64 {
	return c.Success + c.Error
}

// Buckets maps bucket-start timestamps (unix ms) to counts.
// It is not safe for concurrent use; callers hold the owning SLO's lock.
type Buckets struct {
	sizeMs int64
	counts map[int64]*Counts
}

// NewBuckets creates an empty bucket store. Sizes below one millisecond are
// raised to one millisecond; the registry enforces MinBucketSize.
func NewBuckets(size time.Duration) *Buckets {
	ms := size.Milliseconds()
	if ms < 1 {
		ms = 1
	}
	return &Buckets{
		sizeMs: ms,
		counts: make(map[int64]*Counts),
	}
}

// Key returns the bucket-start timestamp (unix ms) for ts.
func (b *Buckets) Key(ts time.Time) int64 {
	ms := ts.UnixMilli()
	key := ms / b.sizeMs * b.sizeMs
	if ms < 0 && ms%b.sizeMs != 0 {
		key -= b.sizeMs
	}
	return key
}

// Add counts one observation at ts, then prunes every bucket before cutoff.
func (b *Buckets) Add(ts time.Time, failure bool, cutoff time.Time) {
	key := b.Key(ts)
	c, ok := b.counts[key]
	if !ok {
		c = &Counts{}
		b.counts[key] = c
	}
	if failure {
		c.Error++
	} else {
		c.Success++
	}
	b.Prune(cutoff)
}

// Prune drops buckets whose key is before cutoff and returns how many were
// removed.
func (b *Buckets) Prune(cutoff time.Time) int {
	limit := cutoff.UnixMilli()
	removed := 0
	for key := range b.counts {
		if key < limit {
			delete(b.counts, key)
			removed++
		}
	}
	return removed
}

// Sum totals every bucket whose key lies in [windowStart, windowEnd].
// Buckets ahead of windowEnd are kept but not counted. Sum does not modify
// the store.
func (b *Buckets) Sum(windowStart, windowEnd time.Time) Counts {
	lower := windowStart.UnixMilli()
	upper := windowEnd.UnixMilli()
	var total Counts
	for key, c := range b.counts {
		if key >= lower && key <= upper {
			total.Success += c.Success
			total.Error += c.Error
		}
	}
	return total
}

// Oldest returns the start of the oldest bucket held.
func (b *Buckets) Oldest() (time.Time, bool) {
	first := true
	var oldest int64
	for key := range b.counts {
		if first || key < oldest {
			oldest = key
			first = false
		}
	}
	if first {
		return time.Time{}, false
	}
	return time.UnixMilli(oldest), true
}

// Len returns the number of live buckets.
func (b *Buckets) Len() int {
	return len(b.counts)
}
