package eval

import (
	"math"

	"github.com/samijaber1/aegis-tracker/internal/window"
)

// Evaluate computes availability, error budget and burn rate for counts
// against the target availability.
func Evaluate(counts window.Counts, target float64) WindowResult {
	total := counts.Total()
	result := WindowResult{
		SuccessCount:  counts.Success,
		ErrorCount:    counts.Error,
		TotalRequests: total,
	}

	availability, ok := ComputeAvailability(counts.Success, total)
	if !ok {
		return result
	}

	budget := ComputeErrorBudget(target, total)
	remaining := ComputeBudgetRemaining(budget, counts.Error)

	result.Availability = &availability
	result.ErrorBudget = &budget
	result.ErrorBudgetRemaining = &remaining
	result.BurnRate = ComputeBurnRate(counts.Error, budget)
	return result
}

// ComputeAvailability returns success / total. ok is false when total is 0.
func ComputeAvailability(success, total int64) (float64, bool) {
	if total <= 0 {
		return 0, false
	}
	if success > total {
		success = total
	}
	return float64(success) / float64(total), true
}

// ComputeErrorBudget returns the number of failures the window may contain
// while still meeting target:
// error_budget = (1 - target) * total
func ComputeErrorBudget(target float64, total int64) float64 {
	return math.Max(0, 1-target) * float64(total)
}

// ComputeBurnRate calculates how fast the budget is consumed:
// burn_rate = errors / error_budget, 0 when there is no budget
func ComputeBurnRate(errors int64, budget float64) float64 {
	if budget <= 0 {
		return 0
	}
	return float64(errors) / budget
}

// ComputeBudgetRemaining returns max(0, budget - errors).
func ComputeBudgetRemaining(budget float64, errors int64) float64 {
	return math.Max(0, budget-float64(errors))
}
