package registry

import (
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/samijaber1/aegis-tracker/internal/slo"
)

const (
	DefaultBucketSize        = time.Minute
	DefaultLatencySampleSize = 512
	DefaultRouteCacheSize    = 4096
)

var (
	ErrDuplicateID        = errors.New("duplicate SLO id")
	ErrInvalidBucketSize  = errors.New("bucket size must be at least one minute")
	ErrInvalidSampleSize  = errors.New("latency sample size must be positive")
	ErrInvalidCacheConfig = errors.New("route cache size must not be negative")
)

// Option configures a Registry.
type Option func(*Registry)

// WithSettings sets the defaults applied while normalizing definitions.
func WithSettings(s slo.Settings) Option {
	return func(r *Registry) { r.settings = s }
}

// WithBucketSize sets the width of the counter buckets. It must be at least
// one minute.
func WithBucketSize(d time.Duration) Option {
	return func(r *Registry) { r.bucketSize = d }
}

// WithLatencySampleSize sets the reservoir capacity of every SLO.
func WithLatencySampleSize(n int) Option {
	return func(r *Registry) { r.sampleSize = n }
}

// WithClock replaces time.Now for default timestamps, read times and the
// write-time prune cutoff.
func WithClock(now func() time.Time) Option {
	return func(r *Registry) { r.now = now }
}

// WithRandSeed makes reservoir replacement deterministic.
func WithRandSeed(seed uint64) Option {
	return func(r *Registry) {
		r.seed = seed
		r.seeded = true
	}
}

// WithLogger sets the logger. The default discards everything.
func WithLogger(l *zap.Logger) Option {
	return func(r *Registry) { r.logger = l }
}

// WithRouteCacheSize bounds the memo of per-route matching results.
// Zero disables the cache.
func WithRouteCacheSize(n int) Option {
	return func(r *Registry) { r.routeCacheSize = n }
}
