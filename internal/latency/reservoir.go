// Package latency keeps a bounded uniform sample of request latencies and
// summarises it into percentiles.
package latency

import (
	"math/rand/v2"
)

// Reservoir is a fixed-capacity uniform random sample of a stream
// (Algorithm R). It is not safe for concurrent use; callers hold the
// owning SLO's lock.
type Reservoir struct {
	capacity int
	values   []float64
	seen     int64
	rng      *rand.Rand
}

// NewReservoir creates a reservoir holding at most capacity values.
func NewReservoir(capacity int, rng *rand.Rand) *Reservoir {
	if capacity < 1 {
		capacity = 1
	}
	if rng == nil {
		rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	return &Reservoir{
		capacity: capacity,
		values:   make([]float64, 0, min(capacity, 64)),
		rng:      rng,
	}
}

// Add offers v to the sample. The seen counter covers the whole stream and
// is never reset by window pruning.
func (r *Reservoir) Add(v float64) {
	r.seen++
	if len(r.values) < r.capacity {
		r.values = append(r.values, v)
		return
	}
	j := r.rng.Int64N(r.seen)
	if j < int64(r.capacity) {
		r.values[j] = v
	}
}

// Values returns a copy of the current sample.
func (r *Reservoir) Values() []float64 {
	out := make([]float64, len(r.values))
	copy(out, r.values)
	return out
}

// Len returns the number of values held.
func (r *Reservoir) Len() int {
	return len(r.values)
}

// Seen returns the number of values offered since creation.
func (r *Reservoir) Seen() int64 {
	return r.seen
}

// Capacity returns the maximum sample size.
func (r *Reservoir) Capacity() int {
	return r.capacity
}
