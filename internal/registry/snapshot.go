package registry

import (
	"strings"
	"time"

	"github.com/samijaber1/aegis-tracker/internal/latency"
	"github.com/samijaber1/aegis-tracker/internal/policy"
	"github.com/samijaber1/aegis-tracker/internal/slo"
)

// Observation is one completed HTTP request.
type Observation struct {
	Route      string
	Method     string
	StatusCode int
	// DurationMs is optional; nil, negative and non-finite values skip the
	// latency sample.
	DurationMs *float64
	// Timestamp defaults to the registry clock when zero.
	Timestamp time.Time
}

// Valid reports whether RecordHTTPObservation would accept obs.
func (o Observation) Valid() bool {
	return o.Route != "" && strings.TrimSpace(o.Method) != "" && o.StatusCode >= 100 && o.StatusCode <= 599
}

// SummaryOptions controls a read.
type SummaryOptions struct {
	IncludeDefinition bool
	// Now defaults to the registry clock when zero.
	Now time.Time
}

// Snapshot is the derived state of one SLO at a point in time. It is
// recomputed on every read and never stored.
type Snapshot struct {
	ID                   string                `json:"id"`
	Name                 string                `json:"name"`
	Description          string                `json:"description"`
	TargetAvailability   float64               `json:"targetAvailability"`
	WindowMinutes        int                   `json:"windowMinutes"`
	Status               policy.Status         `json:"status"`
	MeasuredAvailability *float64              `json:"measuredAvailability"`
	SuccessCount         int64                 `json:"successCount"`
	ErrorCount           int64                 `json:"errorCount"`
	TotalRequests        int64                 `json:"totalRequests"`
	ErrorBudget          *float64              `json:"errorBudget"`
	ErrorBudgetRemaining *float64              `json:"errorBudgetRemaining"`
	BurnRate             float64               `json:"burnRate"`
	Latency              *latency.Summary      `json:"latency"`
	WindowStart          time.Time             `json:"windowStart"`
	WindowEnd            time.Time             `json:"windowEnd"`
	UpdatedAt            *time.Time            `json:"updatedAt"`
	ObservedMinutes      int                   `json:"observedMinutes"`
	Tags                 []string              `json:"tags"`
	Annotations          []policy.Annotation   `json:"annotations"`
	Definition           *slo.PublicDefinition `json:"definition,omitempty"`
}

// Report is the list view returned by Summaries.
type Report struct {
	GeneratedAt time.Time  `json:"generatedAt"`
	SLO         []Snapshot `json:"slo"`
}
