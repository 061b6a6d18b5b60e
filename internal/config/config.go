package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"

	"github.com/samijaber1/aegis-tracker/internal/logging"
	"github.com/samijaber1/aegis-tracker/internal/slo"
	"github.com/samijaber1/aegis-tracker/internal/window"
)

// Config holds server configuration
type Config struct {
	// Server settings
	Port int
	Host string

	// Definition settings
	DefinitionsGlob  string
	WatchDefinitions bool
	Defaults         slo.Settings

	// Registry settings
	BucketSize        time.Duration
	LatencySampleSize int
	RouteCacheSize    int

	// Audit settings; an empty path disables the audit trail
	AuditDBPath      string
	SnapshotInterval time.Duration

	// Operational settings
	EnableReset             bool
	LogLevel                string
	GracefulShutdownTimeout time.Duration
}

// Validate checks if configuration is valid
func (c *Config) Validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("invalid port: %d", c.Port)
	}

	if c.DefinitionsGlob == "" {
		return fmt.Errorf("definitions glob is required")
	}

	if c.BucketSize < window.MinBucketSize {
		return fmt.Errorf("bucket size must be at least %s, got %s", window.MinBucketSize, c.BucketSize)
	}

	if c.LatencySampleSize < 1 {
		return fmt.Errorf("latency sample size must be positive, got %d", c.LatencySampleSize)
	}

	if c.RouteCacheSize < 0 {
		return fmt.Errorf("route cache size must not be negative, got %d", c.RouteCacheSize)
	}

	if c.Defaults.BurnRateWarning <= 0 || c.Defaults.BurnRateCritical < c.Defaults.BurnRateWarning {
		return fmt.Errorf("default burn rates must satisfy critical (%v) >= warning (%v) > 0",
			c.Defaults.BurnRateCritical, c.Defaults.BurnRateWarning)
	}

	if c.Defaults.TargetAvailability <= 0 || c.Defaults.TargetAvailability >= 1 {
		return fmt.Errorf("default target availability must be in (0, 1), got %v", c.Defaults.TargetAvailability)
	}

	if c.AuditDBPath != "" && c.SnapshotInterval <= 0 {
		return fmt.Errorf("snapshot interval must be positive when audit is enabled")
	}

	if _, err := logging.ParseLevel(c.LogLevel); err != nil {
		return err
	}

	return nil
}

// DefaultConfig returns default configuration
func DefaultConfig() Config {
	return Config{
		Port:                    8080,
		Host:                    "0.0.0.0",
		DefinitionsGlob:         "slos/**/*.yaml",
		Defaults:                slo.DefaultSettings(),
		BucketSize:              time.Minute,
		LatencySampleSize:       512,
		RouteCacheSize:          4096,
		SnapshotInterval:        30 * time.Second,
		LogLevel:                "info",
		GracefulShutdownTimeout: 30 * time.Second,
	}
}

// LoadEnv overlays AEGIS_* variables onto cfg. Values come from the process
// environment first, then from the given dotenv files; missing files are
// ignored.
func LoadEnv(cfg *Config, files ...string) error {
	fileVals := map[string]string{}
	for _, file := range files {
		vals, err := godotenv.Read(file)
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", file, err)
		}
		for k, v := range vals {
			if _, ok := fileVals[k]; !ok {
				fileVals[k] = v
			}
		}
	}

	return ApplyEnv(cfg, func(key string) (string, bool) {
		if v, ok := os.LookupEnv(key); ok {
			return v, true
		}
		v, ok := fileVals[key]
		return v, ok
	})
}

// ApplyEnv overlays variables resolved by lookup onto cfg.
func ApplyEnv(cfg *Config, lookup func(string) (string, bool)) error {
	e := envReader{lookup: lookup}

	e.setString("AEGIS_HOST", &cfg.Host)
	e.setInt("AEGIS_PORT", &cfg.Port)
	e.setString("AEGIS_DEFINITIONS", &cfg.DefinitionsGlob)
	e.setBool("AEGIS_WATCH", &cfg.WatchDefinitions)
	e.setFloat("AEGIS_DEFAULT_TARGET", &cfg.Defaults.TargetAvailability)
	e.setInt("AEGIS_DEFAULT_WINDOW_MINUTES", &cfg.Defaults.WindowMinutes)
	e.setFloat("AEGIS_DEFAULT_BURN_RATE_WARNING", &cfg.Defaults.BurnRateWarning)
	e.setFloat("AEGIS_DEFAULT_BURN_RATE_CRITICAL", &cfg.Defaults.BurnRateCritical)
	e.setInt("AEGIS_DEFAULT_MIN_REQUESTS", &cfg.Defaults.MinRequests)
	e.setDuration("AEGIS_BUCKET_SIZE", &cfg.BucketSize)
	e.setInt("AEGIS_LATENCY_SAMPLE_SIZE", &cfg.LatencySampleSize)
	e.setInt("AEGIS_ROUTE_CACHE_SIZE", &cfg.RouteCacheSize)
	e.setString("AEGIS_AUDIT_DB", &cfg.AuditDBPath)
	e.setDuration("AEGIS_SNAPSHOT_INTERVAL", &cfg.SnapshotInterval)
	e.setBool("AEGIS_ENABLE_RESET", &cfg.EnableReset)
	e.setString("AEGIS_LOG_LEVEL", &cfg.LogLevel)
	e.setDuration("AEGIS_SHUTDOWN_TIMEOUT", &cfg.GracefulShutdownTimeout)

	return errors.Join(e.errs...)
}

type envReader struct {
	lookup func(string) (string, bool)
	errs   []error
}

func (e *envReader) get(key string) (string, bool) {
	v, ok := e.lookup(key)
	if !ok || v == "" {
		return "", false
	}
	return v, true
}

func (e *envReader) fail(key string, err error) {
	e.errs = append(e.errs, fmt.Errorf("invalid %s: %w", key, err))
}

func (e *envReader) setString(key string, dst *string) {
	if v, ok := e.get(key); ok {
		*dst = v
	}
}

func (e *envReader) setInt(key string, dst *int) {
	if v, ok := e.get(key); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			e.fail(key, err)
			return
		}
		*dst = n
	}
}

func (e *envReader) setFloat(key string, dst *float64) {
	if v, ok := e.get(key); ok {
		n, err := strconv.ParseFloat(v, 64)
		if err != nil {
			e.fail(key, err)
			return
		}
		*dst = n
	}
}

func (e *envReader) setBool(key string, dst *bool) {
	if v, ok := e.get(key); ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			e.fail(key, err)
			return
		}
		*dst = b
	}
}

// setDuration accepts Go durations ("90s") and the definition window syntax
// ("1d").
func (e *envReader) setDuration(key string, dst *time.Duration) {
	if v, ok := e.get(key); ok {
		d, err := time.ParseDuration(v)
		if err != nil {
			var werr error
			if d, werr = slo.ParseDuration(v); werr != nil {
				e.fail(key, err)
				return
			}
		}
		*dst = d
	}
}
