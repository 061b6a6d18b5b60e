package storage

import (
	"context"
	"time"

	"github.com/samijaber1/aegis-tracker/internal/policy"
	"github.com/samijaber1/aegis-tracker/internal/slo"
)

// AuditStorage persists the history of SLO status changes. It never stores
// raw observations.
type AuditStorage interface {
	// StoreDefinition upserts the public view of a definition
	StoreDefinition(ctx context.Context, def *slo.Definition) error

	// StoreTransition records a status change and updates the latest state
	StoreTransition(ctx context.Context, t Transition) error

	// QueryTransitions retrieves transitions, newest first
	QueryTransitions(ctx context.Context, filter TransitionFilter) ([]Transition, error)

	// GetLatestState returns nil when the SLO has no recorded transition
	GetLatestState(ctx context.Context, sloID string) (*LatestState, error)

	// Close closes the storage connection
	Close() error
}

// Transition is one change of an SLO's status.
type Transition struct {
	ID                   int64               `json:"id"`
	SLOID                string              `json:"sloId"`
	From                 policy.Status       `json:"from"` // empty for the first status seen
	To                   policy.Status       `json:"to"`
	BurnRate             float64             `json:"burnRate"`
	MeasuredAvailability *float64            `json:"measuredAvailability"`
	TotalRequests        int64               `json:"totalRequests"`
	ErrorCount           int64               `json:"errorCount"`
	Annotations          []policy.Annotation `json:"annotations"`
	Timestamp            time.Time           `json:"timestamp"`
	CreatedAt            time.Time           `json:"createdAt"`
}

// TransitionFilter defines filtering options for transition queries
type TransitionFilter struct {
	SLOID     string
	Status    string // matches the status transitioned to
	StartTime *time.Time
	EndTime   *time.Time
	Limit     int
	Offset    int
}

// LatestState is the most recent status recorded for an SLO.
type LatestState struct {
	SLOID                string        `json:"sloId"`
	Status               policy.Status `json:"status"`
	BurnRate             float64       `json:"burnRate"`
	MeasuredAvailability *float64      `json:"measuredAvailability"`
	TotalRequests        int64         `json:"totalRequests"`
	ErrorCount           int64         `json:"errorCount"`
	Timestamp            time.Time     `json:"timestamp"`
	UpdatedAt            time.Time     `json:"updatedAt"`
}
