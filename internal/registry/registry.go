// Package registry owns the registered SLO definitions and their runtime
// state, records observations against them and derives snapshots.
package registry

import (
	"fmt"
	"math"
	"math/rand/v2"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/zap"

	"github.com/samijaber1/aegis-tracker/internal/eval"
	"github.com/samijaber1/aegis-tracker/internal/latency"
	"github.com/samijaber1/aegis-tracker/internal/policy"
	"github.com/samijaber1/aegis-tracker/internal/slo"
	"github.com/samijaber1/aegis-tracker/internal/window"
)

// Registry is safe for concurrent use. Writers to different SLOs do not
// contend: each entry carries its own lock, and the registry lock is only
// taken exclusively to swap the definition table.
type Registry struct {
	mu        sync.RWMutex
	table     *table
	bootstrap []slo.RawDefinition

	settings       slo.Settings
	bucketSize     time.Duration
	sampleSize     int
	routeCacheSize int
	now            func() time.Time
	seed           uint64
	seeded         bool
	streams        atomic.Uint64
	policy         *policy.Engine
	logger         *zap.Logger

	routes      *lru.Cache[routeKey, []*entry]
	cacheHits   atomic.Int64
	cacheMisses atomic.Int64
	discarded   atomic.Int64
}

// table is the registered definitions in registration order.
type table struct {
	order []*entry
	byID  map[string]*entry
}

type entry struct {
	def *slo.Definition

	mu    sync.Mutex
	state *runtimeState // nil until the first matching observation
}

type runtimeState struct {
	buckets       *window.Buckets
	reservoir     *latency.Reservoir
	observedSince time.Time
	lastUpdatedAt time.Time
}

// New creates a registry and registers bootstrap. Any invalid or duplicate
// definition aborts construction.
func New(bootstrap []slo.RawDefinition, opts ...Option) (*Registry, error) {
	r := &Registry{
		settings:       slo.DefaultSettings(),
		bucketSize:     DefaultBucketSize,
		sampleSize:     DefaultLatencySampleSize,
		routeCacheSize: DefaultRouteCacheSize,
		now:            time.Now,
		policy:         policy.NewEngine(),
		logger:         zap.NewNop(),
	}
	for _, opt := range opts {
		opt(r)
	}

	if r.bucketSize < window.MinBucketSize {
		return nil, fmt.Errorf("%w: got %s", ErrInvalidBucketSize, r.bucketSize)
	}
	if r.sampleSize < 1 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidSampleSize, r.sampleSize)
	}
	if r.routeCacheSize < 0 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidCacheConfig, r.routeCacheSize)
	}
	if r.routeCacheSize > 0 {
		cache, err := lru.New[routeKey, []*entry](r.routeCacheSize)
		if err != nil {
			return nil, fmt.Errorf("route cache: %w", err)
		}
		r.routes = cache
	}

	t, err := r.buildTable(bootstrap)
	if err != nil {
		return nil, err
	}
	r.table = t
	r.bootstrap = append([]slo.RawDefinition(nil), bootstrap...)

	r.logger.Info("SLO registry initialised",
		zap.Int("definitions", len(t.order)),
		zap.Duration("bucket_size", r.bucketSize),
		zap.Int("latency_sample_size", r.sampleSize),
	)
	return r, nil
}

// buildTable normalizes defs into a fresh table without touching r.table.
func (r *Registry) buildTable(defs []slo.RawDefinition) (*table, error) {
	t := &table{byID: make(map[string]*entry, len(defs))}
	for _, raw := range defs {
		def, err := slo.Normalize(raw, r.settings)
		if err != nil {
			return nil, err
		}
		if err := t.add(def); err != nil {
			return nil, err
		}
	}
	return t, nil
}

func (t *table) add(def *slo.Definition) error {
	if _, exists := t.byID[def.ID]; exists {
		return fmt.Errorf("%w: %q", ErrDuplicateID, def.ID)
	}
	e := &entry{def: def}
	t.byID[def.ID] = e
	t.order = append(t.order, e)
	return nil
}

// Register normalizes raw and adds it to the registry.
func (r *Registry) Register(raw slo.RawDefinition) (*slo.Definition, error) {
	def, err := slo.Normalize(raw, r.settings)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	next := &table{
		order: append([]*entry(nil), r.table.order...),
		byID:  make(map[string]*entry, len(r.table.byID)+1),
	}
	for id, e := range r.table.byID {
		next.byID[id] = e
	}
	if err := next.add(def); err != nil {
		return nil, err
	}
	r.swap(next)

	r.logger.Info("SLO registered", zap.String("slo", def.ID), zap.Int("window_minutes", def.WindowMinutes))
	return def, nil
}

// Reset drops every definition and all runtime state, then registers defs,
// or the bootstrap set when defs is nil. On error nothing changes.
func (r *Registry) Reset(defs []slo.RawDefinition) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if defs == nil {
		defs = r.bootstrap
	}
	t, err := r.buildTable(defs)
	if err != nil {
		return err
	}
	r.swap(t)

	r.logger.Info("SLO registry reset", zap.Int("definitions", len(t.order)))
	return nil
}

// Reload replaces the bootstrap set with defs and resets to it. On error
// the previous definitions and state stay active.
func (r *Registry) Reload(defs []slo.RawDefinition) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	t, err := r.buildTable(defs)
	if err != nil {
		return err
	}
	r.bootstrap = append([]slo.RawDefinition(nil), defs...)
	r.swap(t)

	r.logger.Info("SLO definitions reloaded", zap.Int("definitions", len(t.order)))
	return nil
}

// swap installs t. Callers hold r.mu exclusively.
func (r *Registry) swap(t *table) {
	r.table = t
	if r.routes != nil {
		r.routes.Purge()
	}
}

// RecordHTTPObservation attributes obs to every matching SLO. Malformed
// observations are discarded; this never fails.
func (r *Registry) RecordHTTPObservation(obs Observation) {
	if !obs.Valid() {
		r.discarded.Add(1)
		r.logger.Debug("discarding malformed observation",
			zap.String("route", obs.Route),
			zap.String("method", obs.Method),
			zap.Int("status", obs.StatusCode),
		)
		return
	}

	ts := obs.Timestamp
	if ts.IsZero() {
		ts = r.now()
	}

	var duration float64
	hasDuration := false
	if obs.DurationMs != nil {
		d := *obs.DurationMs
		hasDuration = d >= 0 && !math.IsInf(d, 0) && !math.IsNaN(d)
		duration = d
	}

	method := strings.ToUpper(strings.TrimSpace(obs.Method))

	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, e := range r.match(obs.Route, method) {
		e.apply(r, ts, e.def.Indicator.IsFailure(obs.StatusCode), duration, hasDuration)
	}
}

// routeKey identifies one cached route match.
type routeKey struct {
	method string
	route  string
}

// match returns the entries whose indicator accepts route and method.
// Callers hold r.mu for reading.
func (r *Registry) match(route, method string) []*entry {
	key := routeKey{method: method, route: route}
	if r.routes != nil {
		if matched, ok := r.routes.Get(key); ok {
			r.cacheHits.Add(1)
			return matched
		}
		r.cacheMisses.Add(1)
	}

	var matched []*entry
	for _, e := range r.table.order {
		if e.def.Indicator.Matches(route, method) {
			matched = append(matched, e)
		}
	}
	if r.routes != nil {
		r.routes.Add(key, matched)
	}
	return matched
}

func (e *entry) apply(r *Registry, ts time.Time, failure bool, durationMs float64, hasDuration bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.state == nil {
		e.state = &runtimeState{
			buckets:       window.NewBuckets(r.bucketSize),
			reservoir:     latency.NewReservoir(r.sampleSize, r.newRand()),
			observedSince: ts,
		}
	}
	s := e.state

	// Prune against the registry clock; a client timestamp ahead of it must
	// not evict the live window.
	cutoff := ts
	if now := r.now(); now.Before(cutoff) {
		cutoff = now
	}
	s.buckets.Add(ts, failure, cutoff.Add(-e.def.Window()))
	if ts.Before(s.observedSince) {
		s.observedSince = ts
	}
	if oldest, ok := s.buckets.Oldest(); ok && oldest.After(s.observedSince) {
		s.observedSince = oldest
	}
	if ts.After(s.lastUpdatedAt) {
		s.lastUpdatedAt = ts
	}

	if hasDuration {
		s.reservoir.Add(durationMs)
	}
}

// newRand returns nil for an unseeded registry, which lets the reservoir
// seed itself. Seeded registries hand every runtime state its own stream.
func (r *Registry) newRand() *rand.Rand {
	if !r.seeded {
		return nil
	}
	return rand.New(rand.NewPCG(r.seed, r.streams.Add(1)))
}

// Summary returns the snapshot of one SLO, or false when id is unknown.
func (r *Registry) Summary(id string, opts SummaryOptions) (*Snapshot, bool) {
	now := opts.Now
	if now.IsZero() {
		now = r.now()
	}

	r.mu.RLock()
	e, ok := r.table.byID[id]
	r.mu.RUnlock()
	if !ok {
		return nil, false
	}

	snap := e.snapshot(r.policy, now, opts.IncludeDefinition)
	return &snap, true
}

// Summaries returns a snapshot of every SLO in registration order, all
// computed at the same instant.
func (r *Registry) Summaries(opts SummaryOptions) Report {
	now := opts.Now
	if now.IsZero() {
		now = r.now()
	}

	r.mu.RLock()
	entries := r.table.order
	r.mu.RUnlock()

	report := Report{GeneratedAt: now.UTC(), SLO: make([]Snapshot, 0, len(entries))}
	for _, e := range entries {
		report.SLO = append(report.SLO, e.snapshot(r.policy, now, opts.IncludeDefinition))
	}
	return report
}

// snapshot derives the public view of e at now. It never mutates state.
func (e *entry) snapshot(engine *policy.Engine, now time.Time, includeDefinition bool) Snapshot {
	def := e.def
	windowStart := now.Add(-def.Window())

	snap := Snapshot{
		ID:                 def.ID,
		Name:               def.Name,
		Description:        def.Description,
		TargetAvailability: def.TargetAvailability,
		WindowMinutes:      def.WindowMinutes,
		WindowStart:        windowStart.UTC(),
		WindowEnd:          now.UTC(),
		Tags:               append([]string{}, def.Tags...),
	}
	if includeDefinition {
		pub := def.Public()
		snap.Definition = &pub
	}

	var counts window.Counts
	e.mu.Lock()
	if s := e.state; s != nil {
		counts = s.buckets.Sum(windowStart, now)
		snap.Latency = latency.Summarize(s.reservoir.Values())
		updated := s.lastUpdatedAt.UTC()
		snap.UpdatedAt = &updated
		snap.ObservedMinutes = observedMinutes(s.observedSince, windowStart, now, def.WindowMinutes)
	}
	e.mu.Unlock()

	w := eval.Evaluate(counts, def.TargetAvailability)
	snap.SuccessCount = w.SuccessCount
	snap.ErrorCount = w.ErrorCount
	snap.TotalRequests = w.TotalRequests
	snap.MeasuredAvailability = w.Availability
	snap.ErrorBudget = w.ErrorBudget
	snap.ErrorBudgetRemaining = w.ErrorBudgetRemaining
	snap.BurnRate = w.BurnRate

	result := engine.Evaluate(def.Alerting, def.TargetAvailability, w)
	snap.Status = result.Status
	snap.Annotations = result.Annotations
	return snap
}

// observedMinutes is how much of the window has been under observation,
// in whole minutes.
func observedMinutes(since, windowStart, now time.Time, windowMinutes int) int {
	start := since
	if windowStart.After(start) {
		start = windowStart
	}
	m := int(now.Sub(start) / time.Minute)
	return max(0, min(m, windowMinutes))
}

// Definitions returns the registered definitions in registration order.
func (r *Registry) Definitions() []*slo.Definition {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*slo.Definition, len(r.table.order))
	for i, e := range r.table.order {
		out[i] = e.def
	}
	return out
}

// Len returns the number of registered definitions.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.table.order)
}

// Stats reports observation and route cache counters.
type Stats struct {
	Discarded   int64
	CacheHits   int64
	CacheMisses int64
	CacheSize   int
}

// Stats returns a copy of the registry counters.
func (r *Registry) Stats() Stats {
	s := Stats{
		Discarded:   r.discarded.Load(),
		CacheHits:   r.cacheHits.Load(),
		CacheMisses: r.cacheMisses.Load(),
	}
	if r.routes != nil {
		s.CacheSize = r.routes.Len()
	}
	return s
}
