package latency

import (
	"math"
	"sort"
)

// Summary is the latency bundle reported in a snapshot. All values are in
// milliseconds, rounded to three decimals.
type Summary struct {
	P50Ms      float64 `json:"p50Ms"`
	P95Ms      float64 `json:"p95Ms"`
	P99Ms      float64 `json:"p99Ms"`
	AverageMs  float64 `json:"averageMs"`
	MaxMs      float64 `json:"maxMs"`
	MinMs      float64 `json:"minMs"`
	SampleSize int     `json:"sampleSize"`
}

// Percentile returns the interpolated p-th percentile (0 < p < 1) of sample.
// ok is false when the sample is empty.
func Percentile(sample []float64, p float64) (value float64, ok bool) {
	if len(sample) == 0 {
		return 0, false
	}
	sorted := make([]float64, len(sample))
	copy(sorted, sample)
	sort.Float64s(sorted)
	return round3(percentileSorted(sorted, p)), true
}

// Summarize computes the latency bundle over sample, or nil when empty.
func Summarize(sample []float64) *Summary {
	if len(sample) == 0 {
		return nil
	}

	sorted := make([]float64, len(sample))
	copy(sorted, sample)
	sort.Float64s(sorted)

	var sum float64
	for _, v := range sorted {
		sum += v
	}

	return &Summary{
		P50Ms:      round3(percentileSorted(sorted, 0.50)),
		P95Ms:      round3(percentileSorted(sorted, 0.95)),
		P99Ms:      round3(percentileSorted(sorted, 0.99)),
		AverageMs:  round3(sum / float64(len(sorted))),
		MaxMs:      round3(sorted[len(sorted)-1]),
		MinMs:      round3(sorted[0]),
		SampleSize: len(sorted),
	}
}

// percentileSorted expects a non-empty ascending slice.
func percentileSorted(sorted []float64, p float64) float64 {
	rank := p * float64(len(sorted)-1)
	lower := int(math.Floor(rank))
	upper := int(math.Ceil(rank))
	if lower == upper {
		return sorted[lower]
	}
	frac := rank - float64(lower)
	return sorted[lower] + (sorted[upper]-sorted[lower])*frac
}

func round3(v float64) float64 {
	return math.Round(v*1000) / 1000
}
