package main

import (
	"context"
	"log"
	"net/http"
	"time"

	"internship-backend/infrastructure/config"
	"internship-backend/infrastructure/di"
	"internship-backend/infrastructure/hosting"

	"go.uber.org/zap"
)

func main() {
	// Cancelled on SIGINT or SIGTERM
	ctx, stop := hosting.ShutdownContext(context.Background())
	defer stop()

	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Initialize dependency container
	container, err := di.InitializeContainer(cfg)
	if err != nil {
		log.Fatalf("Failed to initialize container: %v", err)
	}
	logger := container.Logger
	supervisor := hosting.NewSupervisor(logger)

	// Connect eagerly; a failure is logged and the first request retries.
	container.Manager.Warm(context.Background())

	// Memory sampling only makes sense when this process owns its lifetime.
	var monitor *hosting.MemoryMonitor
	if !cfg.IsManaged() {
		monitor, err = hosting.NewMemoryMonitor(hosting.MemoryConfig{
			Every:        cfg.MemorySampleEvery,
			WarnBytes:    cfg.MemoryWarnBytes,
			ReclaimBytes: cfg.MemoryReclaimBytes,
		}, container.Metrics, logger.Named("memory"))
		if err != nil {
			logger.Fatal("Failed to create memory monitor", zap.Error(err))
		}
		if err := monitor.Start(); err != nil {
			logger.Fatal("Failed to start memory monitor", zap.Error(err))
		}
	}

	// Create HTTP server
	srv := &http.Server{
		Addr:         cfg.ServerAddress,
		Handler:      container.Handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	supervisor.Go("http-server", func() {
		logger.Info("Starting server",
			zap.String("address", cfg.ServerAddress),
			zap.String("environment", cfg.Environment),
			zap.String("hosting_mode", string(cfg.HostingMode)),
			zap.Bool("database_configured", cfg.DatabaseConfigured()),
		)

		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Server failed to start", zap.Error(err))
		}
	})

	<-ctx.Done()

	// Graceful shutdown
	logger.Info("Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server shutdown error", zap.Error(err))
	}
	if monitor != nil {
		monitor.Stop(shutdownCtx)
	}

	// Clean up resources
	if err := container.Manager.Close(shutdownCtx); err != nil {
		logger.Error("Database disconnect error", zap.Error(err))
	}
	if err := logger.Sync(); err != nil {
		log.Printf("Failed to sync logger: %v", err)
	}

	log.Println("Server stopped")
}
