package scheduler

import (
	"sort"
	"sync"
	"time"

	"github.com/samijaber1/aegis-tracker/internal/policy"
	"github.com/samijaber1/aegis-tracker/internal/registry"
)

// SLOState is the last status the scheduler observed for an SLO.
type SLOState struct {
	Status    policy.Status
	Since     time.Time // when Status was first observed
	Snapshot  registry.Snapshot
	UpdatedAt time.Time
	TTL       time.Duration
}

// IsStale returns true if the cached state is older than its TTL
func (s *SLOState) IsStale(now time.Time) bool {
	return now.Sub(s.UpdatedAt) > s.TTL
}

// StateCache is a thread-safe cache of per-SLO states
type StateCache struct {
	mu     sync.RWMutex
	states map[string]*SLOState
}

// NewStateCache creates a new state cache
func NewStateCache() *StateCache {
	return &StateCache{
		states: make(map[string]*SLOState),
	}
}

// Get retrieves cached state for an SLO
func (c *StateCache) Get(sloID string) (*SLOState, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	state, exists := c.states[sloID]
	return state, exists
}

// Set stores the state for an SLO
func (c *StateCache) Set(sloID string, state *SLOState) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.states[sloID] = state
}

// Retain drops every state whose id is not in keep and returns how many
// were dropped.
func (c *StateCache) Retain(keep map[string]bool) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	dropped := 0
	for id := range c.states {
		if !keep[id] {
			delete(c.states, id)
			dropped++
		}
	}
	return dropped
}

// Stale returns the ids whose state is older than its TTL at now
func (c *StateCache) Stale(now time.Time) []string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	var ids []string
	for id, state := range c.states {
		if state.IsStale(now) {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids
}

// Size returns the number of cached states
func (c *StateCache) Size() int {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return len(c.states)
}
