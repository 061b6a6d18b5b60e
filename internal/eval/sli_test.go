package eval

import (
	"math"
	"testing"

	"github.com/samijaber1/aegis-tracker/internal/window"
)

func TestComputeAvailability(t *testing.T) {
	tests := []struct {
		name     string
		success  int64
		total    int64
		expected float64
		ok       bool
	}{
		{name: "perfect availability", success: 100, total: 100, expected: 1.0, ok: true},
		{name: "99.9% availability", success: 999, total: 1000, expected: 0.999, ok: true},
		{name: "all errors", success: 0, total: 100, expected: 0, ok: true},
		{name: "zero traffic", success: 0, total: 0, ok: false},
		{name: "success clamped to total", success: 120, total: 100, expected: 1.0, ok: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ComputeAvailability(tt.success, tt.total)
			if ok != tt.ok {
				t.Fatalf("expected ok=%v, got %v", tt.ok, ok)
			}
			if ok && math.Abs(got-tt.expected) > 0.0001 {
				t.Errorf("expected availability=%.4f, got %.4f", tt.expected, got)
			}
		})
	}
}

func TestComputeBurnRate(t *testing.T) {
	tests := []struct {
		name             string
		errors           int64
		budget           float64
		expectedBurnRate float64
	}{
		{name: "no errors", errors: 0, budget: 1, expectedBurnRate: 0},
		{name: "1x burn rate", errors: 1, budget: 1, expectedBurnRate: 1},
		{name: "14x burn rate", errors: 14, budget: 1, expectedBurnRate: 14},
		{name: "fractional budget", errors: 1, budget: 0.255, expectedBurnRate: 3.9216},
		{name: "zero budget", errors: 5, budget: 0, expectedBurnRate: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			burnRate := ComputeBurnRate(tt.errors, tt.budget)
			if math.Abs(burnRate-tt.expectedBurnRate) > 0.0001 {
				t.Errorf("expected burn rate=%.4f, got %.4f", tt.expectedBurnRate, burnRate)
			}
		})
	}
}

func TestComputeBudgetRemaining(t *testing.T) {
	tests := []struct {
		name     string
		budget   float64
		errors   int64
		expected float64
	}{
		{name: "full budget", budget: 5, errors: 0, expected: 5},
		{name: "half budget consumed", budget: 4, errors: 2, expected: 2},
		{name: "budget exhausted", budget: 3, errors: 3, expected: 0},
		{name: "over budget", budget: 0.255, errors: 1, expected: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			remaining := ComputeBudgetRemaining(tt.budget, tt.errors)
			if math.Abs(remaining-tt.expected) > 0.0001 {
				t.Errorf("expected budget remaining=%.4f, got %.4f", tt.expected, remaining)
			}
		})
	}
}

func TestEvaluate(t *testing.T) {
	result := Evaluate(window.Counts{Success: 50, Error: 1}, 0.995)

	if result.TotalRequests != 51 || result.ErrorCount != 1 || result.SuccessCount != 50 {
		t.Fatalf("unexpected counts: %+v", result)
	}
	if result.Availability == nil || math.Abs(*result.Availability-50.0/51.0) > 1e-9 {
		t.Errorf("unexpected availability: %v", result.Availability)
	}
	if result.ErrorBudget == nil || math.Abs(*result.ErrorBudget-0.255) > 1e-9 {
		t.Errorf("expected error budget 0.255, got %v", result.ErrorBudget)
	}
	if result.ErrorBudgetRemaining == nil || *result.ErrorBudgetRemaining != 0 {
		t.Errorf("expected error budget remaining 0, got %v", result.ErrorBudgetRemaining)
	}
	if math.Abs(result.BurnRate-1/0.255) > 1e-9 {
		t.Errorf("expected burn rate %.4f, got %.4f", 1/0.255, result.BurnRate)
	}
}

func TestEvaluate_NoTraffic(t *testing.T) {
	result := Evaluate(window.Counts{}, 0.999)

	if !result.NoData() {
		t.Error("expected NoData for empty window")
	}
	if result.Availability != nil || result.ErrorBudget != nil || result.ErrorBudgetRemaining != nil {
		t.Errorf("expected nil ratios for empty window, got %+v", result)
	}
	if result.BurnRate != 0 {
		t.Errorf("expected zero burn rate, got %v", result.BurnRate)
	}
}
