package policy

// Status is the classification of one SLO snapshot.
type Status string

const (
	StatusNoData           Status = "no_data"
	StatusInsufficientData Status = "insufficient_data"
	StatusCritical         Status = "critical"
	StatusWarning          Status = "warning"
	StatusBreaching        Status = "breaching"
	StatusHealthy          Status = "healthy"
)

// Statuses lists every status in evaluation order.
var Statuses = []Status{
	StatusNoData,
	StatusInsufficientData,
	StatusCritical,
	StatusWarning,
	StatusBreaching,
	StatusHealthy,
}

// Severity of an annotation.
type Severity string

const (
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
)

// Annotation codes.
const (
	CodeBurnRateCritical   = "burn-rate-critical"
	CodeBurnRateWarning    = "burn-rate-warning"
	CodeAvailabilityBreach = "availability-breach"
)

// Annotation explains a non-healthy status.
type Annotation struct {
	Severity Severity `json:"severity"`
	Code     string   `json:"code"`
	Message  string   `json:"message"`
}

// Result is the status derived for one snapshot.
type Result struct {
	Status      Status
	Annotations []Annotation
}
