package policy

import (
	"fmt"

	"github.com/samijaber1/aegis-tracker/internal/eval"
	"github.com/samijaber1/aegis-tracker/internal/slo"
)

// Engine derives a status and annotations from window totals.
type Engine struct{}

// NewEngine creates a new policy engine
func NewEngine() *Engine {
	return &Engine{}
}

// Evaluate classifies a window. Checks run in a fixed order and the first
// hit wins: no data, insufficient data, critical burn, warning burn,
// availability below target, healthy.
func (e *Engine) Evaluate(alerting slo.Alerting, target float64, w eval.WindowResult) Result {
	result := Result{Status: StatusHealthy, Annotations: []Annotation{}}

	switch {
	case w.NoData():
		result.Status = StatusNoData

	case w.TotalRequests < int64(alerting.MinRequests):
		result.Status = StatusInsufficientData

	case w.BurnRate >= alerting.BurnRateCritical:
		result.Status = StatusCritical
		result.Annotations = append(result.Annotations, Annotation{
			Severity: SeverityCritical,
			Code:     CodeBurnRateCritical,
			Message: fmt.Sprintf("burn rate %.2fx is at or above the critical threshold of %.2fx",
				w.BurnRate, alerting.BurnRateCritical),
		})

	case w.BurnRate >= alerting.BurnRateWarning:
		result.Status = StatusWarning
		result.Annotations = append(result.Annotations, Annotation{
			Severity: SeverityWarning,
			Code:     CodeBurnRateWarning,
			Message: fmt.Sprintf("burn rate %.2fx is at or above the warning threshold of %.2fx",
				w.BurnRate, alerting.BurnRateWarning),
		})

	case *w.Availability < target:
		result.Status = StatusBreaching
		result.Annotations = append(result.Annotations, Annotation{
			Severity: SeverityWarning,
			Code:     CodeAvailabilityBreach,
			Message: fmt.Sprintf("availability %.3f%% is below the %.3f%% target (burn rate %.2fx, warning at %.2fx)",
				*w.Availability*100, target*100, w.BurnRate, alerting.BurnRateWarning),
		})
	}

	return result
}
