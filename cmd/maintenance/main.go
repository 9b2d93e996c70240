// Package main runs the chunk lifecycle daemon: scheduled compression and
// retention cycles over the price store, with Prometheus metrics.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"crypto-series-engine/internal/config"
	"crypto-series-engine/internal/lifecycle"
	"crypto-series-engine/internal/observability"
	"crypto-series-engine/internal/storage"
	"crypto-series-engine/internal/storage/memory"
	"crypto-series-engine/internal/storage/migrations"
	pgstore "crypto-series-engine/internal/storage/postgres"
)

func main() {
	configPath := flag.String("config", "", "Path to YAML config file")
	dsn := flag.String("dsn", os.Getenv("DATABASE_DSN"), "TimescaleDB connection string (overrides config)")
	useMemory := flag.Bool("use-memory", false, "Use in-memory storage instead of TimescaleDB")
	migrate := flag.Bool("migrate", true, "Apply schema migrations on startup")
	runOnStart := flag.Bool("run-on-start", false, "Run one compression and retention cycle immediately")
	flag.Parse()

	logger := log.New(os.Stdout, "[maintenance] ", log.LstdFlags)

	cfg := &config.Config{}
	if *configPath != "" {
		loaded, err := config.LoadAndValidate(*configPath)
		if err != nil {
			logger.Fatalf("Failed to load config: %v", err)
		}
		cfg = loaded
	} else {
		cfg.ApplyDefaults()
	}
	if *dsn != "" {
		cfg.Database.DSN = *dsn
	}
	if !*useMemory && cfg.Database.DSN == "" {
		logger.Fatal("--dsn or database.dsn is required (use --use-memory for in-memory storage)")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	metrics := observability.NewMetrics("")

	maintainer, cleanup, err := createMaintainer(ctx, cfg, *useMemory, *migrate, metrics)
	if err != nil {
		logger.Fatalf("Failed to create maintainer: %v", err)
	}
	defer cleanup()

	manager, err := lifecycle.New(lifecycle.Options{
		Maintainer: maintainer,
		Config: lifecycle.Config{
			CompressAfter:       cfg.Lifecycle.CompressAfter,
			RetainFor:           cfg.Lifecycle.RetainFor,
			CompressionSchedule: cfg.Maintenance.CompressionSchedule,
			RetentionSchedule:   cfg.Maintenance.RetentionSchedule,
			MaxRetries:          cfg.Maintenance.MaxRetries,
			RetryInterval:       cfg.Maintenance.RetryInterval,
		},
		Logger:   logger,
		Observer: metrics,
	})
	if err != nil {
		logger.Fatalf("Failed to create lifecycle manager: %v", err)
	}

	// Metrics endpoint
	go func() {
		mux := http.NewServeMux()
		mux.Handle(cfg.Metrics.Path, observability.Handler())
		addr := fmt.Sprintf(":%d", cfg.Metrics.Port)
		logger.Printf("metrics listening on %s%s", addr, cfg.Metrics.Path)
		if err := http.ListenAndServe(addr, mux); err != nil {
			logger.Printf("metrics server error: %v", err)
		}
	}()

	if err := manager.Start(); err != nil {
		logger.Fatalf("Failed to start lifecycle manager: %v", err)
	}

	if *runOnStart || cfg.Maintenance.RunOnStart {
		logger.Println("running initial maintenance cycle")
		manager.RunCompression(ctx)
		manager.RunRetention(ctx)
	}

	// Handle shutdown signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	logger.Printf("Received signal %v, initiating graceful shutdown...", sig)

	done := make(chan struct{})
	go func() {
		manager.Stop()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(30 * time.Second):
		logger.Println("Graceful shutdown timed out after 30s, forcing exit")
		os.Exit(1)
	}

	stats := manager.Snapshot()
	logger.Printf("Shutdown complete (compressed %d chunk(s), dropped %d chunk(s))",
		stats.ChunksCompressed, stats.ChunksDropped)
}

// createMaintainer builds the chunk maintainer against TimescaleDB or the
// in-memory store.
func createMaintainer(ctx context.Context, cfg *config.Config, useMemory, migrate bool, metrics *observability.Metrics) (storage.ChunkMaintainer, func(), error) {
	if useMemory {
		return memory.NewPricePointStore(cfg.Lifecycle.ChunkInterval), func() {}, nil
	}

	pool, err := pgstore.NewPool(ctx, pgstore.Config{
		DSN:            cfg.Database.DSN,
		MinConns:       cfg.Database.MinConns,
		MaxConns:       cfg.Database.MaxConns,
		AcquireTimeout: cfg.Database.AcquireTimeout,
		Hooks:          metrics.PoolHooks(),
	})
	if err != nil {
		return nil, nil, fmt.Errorf("connect to timescaledb: %w", err)
	}

	if migrate {
		if err := migrations.RunPostgresMigrations(ctx, pool); err != nil {
			pool.Close()
			return nil, nil, fmt.Errorf("apply migrations: %w", err)
		}
	}

	// Feed the connection gauges while the daemon runs.
	go func() {
		ticker := time.NewTicker(15 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				st := pool.Stat()
				metrics.ObservePoolStat(st.TotalConns(), st.IdleConns(), st.AcquiredConns())
			}
		}
	}()

	return pgstore.NewChunkMaintainer(pool), pool.Close, nil
}
