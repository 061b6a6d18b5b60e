package api

import (
	"github.com/samijaber1/aegis-tracker/internal/storage"
)

// HealthResponse represents health check response
type HealthResponse struct {
	Status string `json:"status"`
}

// ReadyResponse represents readiness check response
type ReadyResponse struct {
	Ready      bool     `json:"ready"`
	SLOsLoaded int      `json:"slosLoaded"`
	Reasons    []string `json:"reasons,omitempty"`
}

// IngestResponse reports how a batch of observations was received
type IngestResponse struct {
	Accepted  int `json:"accepted"`
	Discarded int `json:"discarded"`
}

// ResetResponse is returned by the admin reset endpoint
type ResetResponse struct {
	Status     string `json:"status"`
	SLOsLoaded int    `json:"slosLoaded"`
}

// AuditResponse represents audit query results
type AuditResponse struct {
	Transitions []storage.Transition `json:"transitions"`
	Total       int                  `json:"total"`
}

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error string `json:"error"`
}
