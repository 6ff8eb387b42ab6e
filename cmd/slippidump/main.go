package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/vladfi1/SlippiDump/internal/logger"
	"github.com/vladfi1/SlippiDump/internal/server"
	"github.com/vladfi1/SlippiDump/pkg/config"
	"github.com/vladfi1/SlippiDump/pkg/gc"
	"github.com/vladfi1/SlippiDump/pkg/ingest"
	"github.com/vladfi1/SlippiDump/pkg/metrics"
	"github.com/vladfi1/SlippiDump/pkg/registry"
)

func main() {
	configPath := flag.String("config", "", "Path to config file (default: search standard locations)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger.SetLevel(cfg.Logging.Level)

	fmt.Println("SlippiDump - Slippi replay ingestion server")
	logger.Info("Log level set to: %s", cfg.Logging.Level)

	if cfg.Metrics.Enabled {
		metrics.InitRegistry()
		logger.Info("Metrics collection enabled at %s", cfg.Metrics.Path)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Create backing stores
	blobStore, err := config.CreateBlobStore(ctx, &cfg.Blob)
	if err != nil {
		log.Fatalf("Failed to create blob store: %v", err)
	}
	logger.Info("Blob store initialized: type=%s", cfg.Blob.Type)

	metaStore, err := config.CreateMetadataStore(ctx, &cfg.Metadata)
	if err != nil {
		log.Fatalf("Failed to create metadata store: %v", err)
	}
	defer func() {
		if err := metaStore.Close(); err != nil {
			logger.Error("Failed to close metadata store: %v", err)
		}
	}()
	logger.Info("Metadata store initialized: type=%s", cfg.Metadata.Type)

	// Registry and preconfigured databases
	reg := registry.New(metaStore)
	if err := config.SeedDatabases(ctx, reg, cfg); err != nil {
		log.Fatalf("Failed to seed databases: %v", err)
	}

	// Ingestion engine
	engine := ingest.New(blobStore, metaStore, reg, metrics.NewIngestMetrics())

	// Garbage collector
	collector := gc.NewCollector(metaStore, blobStore, gc.Config{
		Enabled:   cfg.GC.Enabled,
		Interval:  cfg.GC.Interval,
		BatchSize: cfg.GC.BatchSize,
		DryRun:    cfg.GC.DryRun,
	})
	collector.Start()

	// HTTP upload API
	metricsPath := ""
	if cfg.Metrics.Enabled {
		metricsPath = cfg.Metrics.Path
	}
	srv := server.New(server.Config{
		ListenAddr:     cfg.Server.ListenAddr,
		MaxUploadBytes: cfg.Server.MaxUploadBytes,
		MetricsPath:    metricsPath,
	}, engine, reg)

	serverErr := make(chan error, 1)
	go func() {
		serverErr <- srv.Start()
	}()

	// Wait for shutdown signal or server failure
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		logger.Info("Received signal %s, shutting down...", sig)
	case err := <-serverErr:
		if err != nil {
			logger.Error("HTTP server failed: %v", err)
		}
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP server shutdown failed: %v", err)
	}
	if err := collector.Stop(shutdownCtx); err != nil {
		logger.Error("Garbage collector shutdown failed: %v", err)
	}

	logger.Info("Shutdown complete")
}
