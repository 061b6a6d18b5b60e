package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/samijaber1/aegis-tracker/internal/api"
	"github.com/samijaber1/aegis-tracker/internal/config"
	"github.com/samijaber1/aegis-tracker/internal/exporter"
	"github.com/samijaber1/aegis-tracker/internal/logging"
	"github.com/samijaber1/aegis-tracker/internal/registry"
	"github.com/samijaber1/aegis-tracker/internal/scheduler"
	"github.com/samijaber1/aegis-tracker/internal/slo"
	"github.com/samijaber1/aegis-tracker/internal/storage/sqlite"
)

func main() {
	cfg, err := loadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Invalid configuration: %v\n", err)
		os.Exit(1)
	}

	logger, err := logging.New(cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	if err := run(cfg, logger); err != nil {
		logger.Fatal("server exited with error", zap.Error(err))
	}
	logger.Info("shutdown complete")
}

func run(cfg config.Config, logger *zap.Logger) error {
	logger.Info("starting aegis-tracker",
		zap.Int("port", cfg.Port),
		zap.String("definitions", cfg.DefinitionsGlob),
		zap.Duration("bucket_size", cfg.BucketSize),
		zap.Bool("audit", cfg.AuditDBPath != ""),
	)

	validator, err := slo.NewValidator(cfg.Defaults)
	if err != nil {
		return fmt.Errorf("failed to initialize validator: %w", err)
	}

	defs, err := validator.Load(cfg.DefinitionsGlob)
	if err != nil {
		return err
	}

	reg, err := registry.New(defs,
		registry.WithSettings(cfg.Defaults),
		registry.WithBucketSize(cfg.BucketSize),
		registry.WithLatencySampleSize(cfg.LatencySampleSize),
		registry.WithRouteCacheSize(cfg.RouteCacheSize),
		registry.WithLogger(logger.Named("registry")),
	)
	if err != nil {
		return fmt.Errorf("failed to create registry: %w", err)
	}

	var sched *scheduler.Scheduler
	if cfg.SnapshotInterval > 0 {
		sched = scheduler.NewScheduler(reg, cfg.SnapshotInterval, logger.Named("scheduler"))
	}

	if cfg.AuditDBPath != "" {
		store, err := sqlite.NewStore(cfg.AuditDBPath)
		if err != nil {
			return fmt.Errorf("failed to open audit storage: %w", err)
		}
		defer store.Close()
		sched.SetAuditStorage(store)
		logger.Info("audit storage enabled", zap.String("path", cfg.AuditDBPath))
	}

	promRegistry := prometheus.NewRegistry()
	promRegistry.MustRegister(
		exporter.NewCollector(reg),
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	apiServer := api.NewServer(reg, api.Options{
		Addr:        fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Scheduler:   sched,
		Metrics:     promhttp.HandlerFor(promRegistry, promhttp.HandlerOpts{Registry: promRegistry}),
		EnableReset: cfg.EnableReset,
		Logger:      logger.Named("api"),
	})

	var watcher *config.Watcher
	if cfg.WatchDefinitions {
		watcher, err = config.NewWatcher(cfg.DefinitionsGlob, logger.Named("watcher"))
		if err != nil {
			return fmt.Errorf("failed to create definition watcher: %w", err)
		}
		watcher.OnChange(func() {
			defs, err := validator.Load(cfg.DefinitionsGlob)
			if err != nil {
				logger.Error("definition reload rejected", zap.Error(err))
				return
			}
			if err := reg.Reload(defs); err != nil {
				logger.Error("definition reload rejected", zap.Error(err))
				return
			}
			logger.Info("definitions reloaded", zap.Int("slos", reg.Len()))
		})
		if err := watcher.Start(); err != nil {
			return fmt.Errorf("failed to watch definitions: %w", err)
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)

	if sched != nil {
		if err := sched.Start(gctx); err != nil {
			return fmt.Errorf("failed to start scheduler: %w", err)
		}
	}

	g.Go(apiServer.Start)

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.GracefulShutdownTimeout)
		defer cancel()

		err := apiServer.Shutdown(shutdownCtx)
		if sched != nil {
			sched.Stop()
		}
		if watcher != nil {
			watcher.Stop()
		}
		return err
	})

	return g.Wait()
}

// loadConfig applies defaults, then .env and AEGIS_* variables, then flags.
func loadConfig() (config.Config, error) {
	cfg := config.DefaultConfig()

	envFile := os.Getenv("AEGIS_ENV_FILE")
	if envFile == "" {
		envFile = ".env"
	}
	if err := config.LoadEnv(&cfg, envFile); err != nil {
		return cfg, err
	}

	flag.IntVar(&cfg.Port, "port", cfg.Port, "HTTP server port")
	flag.StringVar(&cfg.Host, "host", cfg.Host, "HTTP server host")
	flag.StringVar(&cfg.DefinitionsGlob, "definitions", cfg.DefinitionsGlob, "Glob matching SLO definition YAML files")
	flag.BoolVar(&cfg.WatchDefinitions, "watch", cfg.WatchDefinitions, "Reload definitions when files change")
	flag.DurationVar(&cfg.BucketSize, "bucket-size", cfg.BucketSize, "Counter bucket width (at least 1m)")
	flag.IntVar(&cfg.LatencySampleSize, "latency-sample-size", cfg.LatencySampleSize, "Latency reservoir capacity per SLO")
	flag.IntVar(&cfg.RouteCacheSize, "route-cache-size", cfg.RouteCacheSize, "Route match cache entries (0 disables)")
	flag.StringVar(&cfg.AuditDBPath, "audit-db", cfg.AuditDBPath, "SQLite path for the status transition audit (empty disables)")
	flag.DurationVar(&cfg.SnapshotInterval, "snapshot-interval", cfg.SnapshotInterval, "Status evaluation interval")
	flag.BoolVar(&cfg.EnableReset, "enable-reset", cfg.EnableReset, "Expose POST /v1/admin/reset")
	flag.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "Log level (debug|info|warn|error)")
	flag.DurationVar(&cfg.GracefulShutdownTimeout, "shutdown-timeout", cfg.GracefulShutdownTimeout, "Graceful shutdown timeout")
	flag.Parse()

	return cfg, cfg.Validate()
}
