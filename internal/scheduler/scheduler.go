// Package scheduler snapshots the registry on a fixed interval and records
// every status change to audit storage.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/samijaber1/aegis-tracker/internal/registry"
	"github.com/samijaber1/aegis-tracker/internal/slo"
	"github.com/samijaber1/aegis-tracker/internal/storage"
)

// Source is the registry surface the scheduler reads.
type Source interface {
	Summaries(registry.SummaryOptions) registry.Report
	Definitions() []*slo.Definition
}

// Scheduler manages periodic status evaluation
type Scheduler struct {
	source   Source
	interval time.Duration
	cache    *StateCache
	audit    storage.AuditStorage
	logger   *zap.Logger
	now      func() time.Time

	// stored tracks which definition values have been persisted; a reload
	// produces new pointers for the same id.
	stored map[string]*slo.Definition
	evalMu sync.Mutex

	cancel  context.CancelFunc
	wg      sync.WaitGroup
	mu      sync.RWMutex
	running bool
}

// NewScheduler creates a new scheduler
func NewScheduler(source Source, interval time.Duration, logger *zap.Logger) *Scheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scheduler{
		source:   source,
		interval: interval,
		cache:    NewStateCache(),
		logger:   logger,
		now:      time.Now,
		stored:   make(map[string]*slo.Definition),
	}
}

// SetAuditStorage sets the audit storage backend (optional)
func (s *Scheduler) SetAuditStorage(audit storage.AuditStorage) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.audit = audit
}

// GetAuditStorage returns the audit storage backend
func (s *Scheduler) GetAuditStorage() storage.AuditStorage {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.audit
}

// GetCache returns the state cache
func (s *Scheduler) GetCache() *StateCache {
	return s.cache
}

// Start runs an evaluation immediately and then every interval until ctx
// is cancelled or Stop is called.
func (s *Scheduler) Start(ctx context.Context) error {
	if s.interval <= 0 {
		return fmt.Errorf("invalid snapshot interval %s", s.interval)
	}

	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return fmt.Errorf("scheduler already running")
	}
	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.running = true
	s.mu.Unlock()

	s.wg.Add(1)
	go s.loop(ctx)

	s.logger.Info("scheduler started", zap.Duration("interval", s.interval))
	return nil
}

// Stop stops the scheduler and waits for the running evaluation to finish
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}

	s.cancel()
	s.running = false
	s.mu.Unlock()

	s.wg.Wait()
	s.logger.Info("scheduler stopped")
}

func (s *Scheduler) loop(ctx context.Context) {
	defer s.wg.Done()

	s.tick(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.tick(ctx)
		}
	}
}

func (s *Scheduler) tick(ctx context.Context) {
	if _, err := s.EvaluateNow(ctx); err != nil {
		s.logger.Warn("failed to persist status transitions", zap.Error(err))
	}
}

// EvaluateNow snapshots every SLO, updates the cache and returns the status
// changes found. Storage failures are returned after every SLO has been
// processed; the cache is updated regardless.
func (s *Scheduler) EvaluateNow(ctx context.Context) ([]storage.Transition, error) {
	s.evalMu.Lock()
	defer s.evalMu.Unlock()

	now := s.now()
	report := s.source.Summaries(registry.SummaryOptions{Now: now})
	audit := s.GetAuditStorage()

	var errs []error
	if audit != nil {
		errs = append(errs, s.storeDefinitions(ctx, audit)...)
	}

	live := make(map[string]bool, len(report.SLO))
	var transitions []storage.Transition

	for _, snap := range report.SLO {
		live[snap.ID] = true

		prev, seen := s.cache.Get(snap.ID)
		state := &SLOState{
			Status:    snap.Status,
			Since:     now,
			Snapshot:  snap,
			UpdatedAt: now,
			TTL:       2 * s.interval,
		}
		if seen && prev.Status == snap.Status {
			state.Since = prev.Since
			s.cache.Set(snap.ID, state)
			continue
		}
		s.cache.Set(snap.ID, state)

		t := storage.Transition{
			SLOID:                snap.ID,
			To:                   snap.Status,
			BurnRate:             snap.BurnRate,
			MeasuredAvailability: snap.MeasuredAvailability,
			TotalRequests:        snap.TotalRequests,
			ErrorCount:           snap.ErrorCount,
			Annotations:          snap.Annotations,
			Timestamp:            now,
		}
		if seen {
			t.From = prev.Status
		}
		transitions = append(transitions, t)

		s.logger.Info("SLO status changed",
			zap.String("slo", snap.ID),
			zap.String("from", string(t.From)),
			zap.String("to", string(t.To)),
			zap.Float64("burn_rate", snap.BurnRate),
		)

		if audit != nil {
			if err := audit.StoreTransition(ctx, t); err != nil {
				errs = append(errs, fmt.Errorf("slo %s: %w", snap.ID, err))
			}
		}
	}

	if dropped := s.cache.Retain(live); dropped > 0 {
		s.logger.Info("dropped state for removed SLOs", zap.Int("count", dropped))
	}

	return transitions, errors.Join(errs...)
}

// storeDefinitions persists definitions not yet written in their current
// form. Callers hold evalMu.
func (s *Scheduler) storeDefinitions(ctx context.Context, audit storage.AuditStorage) []error {
	var errs []error
	for _, def := range s.source.Definitions() {
		if s.stored[def.ID] == def {
			continue
		}
		if err := audit.StoreDefinition(ctx, def); err != nil {
			errs = append(errs, fmt.Errorf("store definition %s: %w", def.ID, err))
			continue
		}
		s.stored[def.ID] = def
	}
	return errs
}
