// Kestrel - Corridor baseline profiling for payment monitoring.
// Copyright (c) 2026 opensource.finance
// Licensed under the Apache License 2.0

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/opensource-finance/kestrel/internal/api"
	"github.com/opensource-finance/kestrel/internal/bus"
	"github.com/opensource-finance/kestrel/internal/cache"
	"github.com/opensource-finance/kestrel/internal/domain"
	"github.com/opensource-finance/kestrel/internal/profiler"
	"github.com/opensource-finance/kestrel/internal/store"
	"github.com/opensource-finance/kestrel/internal/validate"
	"github.com/opensource-finance/kestrel/internal/worker"
)

// Version information (set via ldflags)
var (
	Version   = "dev"
	Commit    = "none"
	BuildDate = "unknown"
)

func main() {
	// Initialize structured logger
	logLevel := slog.LevelInfo
	if os.Getenv("KESTREL_DEBUG") == "true" {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	}))
	slog.SetDefault(logger)

	slog.Info("starting kestrel",
		"version", Version,
		"commit", Commit,
		"build_date", BuildDate,
	)

	// Load configuration
	cfg := domain.DefaultConfig()

	// Check for Pro tier via environment
	if os.Getenv("KESTREL_TIER") == "pro" {
		cfg = domain.ProConfig()
		slog.Info("running in Pro tier mode")
	}

	slog.Info("configuration loaded",
		"tier", cfg.Tier,
		"store", cfg.Store.Driver,
		"cache", cfg.Cache.Type,
		"eventbus", cfg.EventBus.Type,
	)

	// Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle shutdown signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigCh
		slog.Info("received shutdown signal", "signal", sig)
		cancel()
	}()

	// Initialize ProfileStore
	profileStore, err := store.New(cfg.Store)
	if err != nil {
		slog.Error("failed to initialize store", "error", err)
		os.Exit(1)
	}
	defer profileStore.Close()
	slog.Info("store initialized", "driver", cfg.Store.Driver)

	// Initialize Cache
	cacheImpl, err := cache.New(cfg.Cache)
	if err != nil {
		slog.Error("failed to initialize cache", "error", err)
		os.Exit(1)
	}
	defer cacheImpl.Close()
	slog.Info("cache initialized", "type", cfg.Cache.Type)

	// Initialize EventBus
	busImpl, err := bus.New(cfg.EventBus)
	if err != nil {
		slog.Error("failed to initialize event bus", "error", err)
		os.Exit(1)
	}
	defer busImpl.Close()
	slog.Info("event bus initialized", "type", cfg.EventBus.Type)

	// Initialize profile Generator
	generator := profiler.NewGenerator(cfg.Profiler)
	slog.Info("profile generator initialized",
		"window_days", cfg.Profiler.WindowDays,
		"blend_factor", generator.BlendFactor(),
	)

	// Initialize Validator, with operator checks from file if configured
	if err := loadChecksFromFile(&cfg.Validator); err != nil {
		slog.Error("failed to load custom checks", "error", err)
		os.Exit(1)
	}
	validator, err := validate.NewValidator(cfg.Validator)
	if err != nil {
		slog.Error("failed to initialize validator", "error", err)
		os.Exit(1)
	}
	slog.Info("validator initialized", "custom_checks", validator.ChecksCount())

	// Initialize async Worker
	var asyncWorker *worker.Worker
	if cfg.Tier == domain.TierPro || os.Getenv("KESTREL_ASYNC_WORKER") == "true" {
		asyncWorker = worker.NewWorker(busImpl, profileStore, cacheImpl, generator, validator)
		if err := asyncWorker.Start(); err != nil {
			slog.Error("failed to start async worker", "error", err)
		} else {
			slog.Info("async worker started")
		}
	}

	// Initialize Server
	srv := api.NewServer(cfg.Server, profileStore, cacheImpl, busImpl, generator, validator, Version, cfg.Cache.LocalTTL)

	// Start Server in goroutine
	go func() {
		if err := srv.Start(); err != nil && err != http.ErrServerClosed {
			slog.Error("server failed", "error", err)
			os.Exit(1)
		}
	}()

	slog.Info("kestrel is ready",
		"host", cfg.Server.Host,
		"port", cfg.Server.Port,
	)

	printBanner(cfg, Version)

	// Wait for shutdown signal
	<-ctx.Done()
	slog.Info("shutting down...")

	// Stop async worker first
	if asyncWorker != nil {
		if err := asyncWorker.Stop(); err != nil {
			slog.Error("failed to stop async worker", "error", err)
		}
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server forced to shutdown", "error", err)
	}

	slog.Info("kestrel shutdown complete")
}

// loadChecksFromFile merges operator-defined CEL checks from the file named
// by KESTREL_CHECKS_FILE into the validator configuration.
func loadChecksFromFile(cfg *domain.ValidatorConfig) error {
	path := os.Getenv("KESTREL_CHECKS_FILE")
	if path == "" {
		return nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}

	var checks []domain.CheckConfig
	if err := json.Unmarshal(data, &checks); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}

	cfg.CustomChecks = append(cfg.CustomChecks, checks...)
	slog.Info("loaded custom checks from file", "path", path, "count", len(checks))
	return nil
}

func printBanner(cfg *domain.Config, version string) {
	fmt.Println()
	fmt.Println("  Kestrel - Corridor Baseline Profiling")
	fmt.Println()
	fmt.Printf("  Version:  %s\n", version)
	fmt.Printf("  Tier:     %s\n", cfg.Tier)
	fmt.Printf("  Server:   http://%s:%d\n", cfg.Server.Host, cfg.Server.Port)
	fmt.Println()
	fmt.Println("  Endpoints:")
	fmt.Println("    GET  /corridors                  - List profiled corridors")
	fmt.Println("    POST /corridors/{code}/profile   - Build a profile from a batch")
	fmt.Println("    GET  /corridors/{code}/profile   - Get the current profile")
	fmt.Println("    POST /corridors/{code}/refresh   - Blend a new batch into the profile")
	fmt.Println("    GET  /corridors/{code}/metadata  - Get the profile summary")
	fmt.Println("    GET  /corridors/{code}/history   - List archived profiles")
	fmt.Println("    POST /corridors/{code}/rollback  - Restore an archived profile")
	fmt.Println("    POST /corridors/{code}/score     - Score a value against the profile")
	fmt.Println("    GET  /health                     - Health check")
	fmt.Println()
}
