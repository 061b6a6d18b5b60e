package latency

import (
	"math"
	"math/rand/v2"
	"testing"
)

func TestReservoir_BoundedCapacity(t *testing.T) {
	r := NewReservoir(512, rand.New(rand.NewPCG(1, 2)))

	for i := 0; i < 10000; i++ {
		r.Add(float64(i))
	}

	if r.Len() != 512 {
		t.Errorf("expected sample size 512, got %d", r.Len())
	}
	if r.Seen() != 10000 {
		t.Errorf("expected 10000 values seen, got %d", r.Seen())
	}
}

func TestReservoir_FillsBeforeReplacing(t *testing.T) {
	r := NewReservoir(4, rand.New(rand.NewPCG(7, 7)))
	for i := 1; i <= 3; i++ {
		r.Add(float64(i))
	}

	got := r.Values()
	want := []float64{1, 2, 3}
	if len(got) != len(want) {
		t.Fatalf("expected %d values, got %d", len(want), len(got))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("values[%d] = %v, want %v", i, got[i], want[i])
		}
	}

	// Values returns a copy
	got[0] = 99
	if r.Values()[0] != 1 {
		t.Error("mutating Values() result changed the reservoir")
	}
}

func TestReservoir_Uniform(t *testing.T) {
	// Stream 0..9999 through a reservoir of 1000; the sample mean of a
	// uniform subset should sit near the stream mean.
	r := NewReservoir(1000, rand.New(rand.NewPCG(42, 42)))
	for i := 0; i < 10000; i++ {
		r.Add(float64(i))
	}

	var sum float64
	for _, v := range r.Values() {
		sum += v
	}
	mean := sum / float64(r.Len())
	if math.Abs(mean-4999.5) > 500 {
		t.Errorf("sample mean %.1f too far from stream mean 4999.5", mean)
	}
}

func TestPercentile(t *testing.T) {
	tests := []struct {
		name   string
		sample []float64
		p      float64
		want   float64
	}{
		{"single element", []float64{42}, 0.99, 42},
		{"exact rank", []float64{10, 20, 30, 40, 50}, 0.5, 30},
		{"interpolated", []float64{10, 20, 30, 40}, 0.5, 25},
		{"unsorted input", []float64{40, 10, 30, 20}, 0.25, 17.5},
		{"rounded to 3 decimals", []float64{0, 1}, 1.0 / 3.0, 0.333},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := Percentile(tt.sample, tt.p)
			if !ok {
				t.Fatal("expected ok for non-empty sample")
			}
			if got != tt.want {
				t.Errorf("Percentile(%v, %v) = %v, want %v", tt.sample, tt.p, got, tt.want)
			}
		})
	}

	if _, ok := Percentile(nil, 0.5); ok {
		t.Error("expected ok=false for empty sample")
	}
}

func TestSummarize_KnownDistribution(t *testing.T) {
	sample := make([]float64, 0, 51)
	for i := 0; i < 50; i++ {
		sample = append(sample, 100)
	}
	sample = append(sample, 450)

	s := Summarize(sample)
	if s == nil {
		t.Fatal("expected summary for non-empty sample")
	}

	if s.P50Ms != 100 {
		t.Errorf("expected p50=100, got %v", s.P50Ms)
	}
	if s.MaxMs != 450 {
		t.Errorf("expected max=450, got %v", s.MaxMs)
	}
	if s.MinMs != 100 {
		t.Errorf("expected min=100, got %v", s.MinMs)
	}
	if s.P99Ms != 275 {
		t.Errorf("expected p99=275, got %v", s.P99Ms)
	}
	if s.AverageMs != 106.863 {
		t.Errorf("expected average=106.863, got %v", s.AverageMs)
	}
	if s.SampleSize != 51 {
		t.Errorf("expected sampleSize=51, got %d", s.SampleSize)
	}
}

func TestSummarize_Empty(t *testing.T) {
	if s := Summarize(nil); s != nil {
		t.Errorf("expected nil summary, got %+v", s)
	}
}
