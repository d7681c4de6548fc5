package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ledgerline/reconcile-backend/internal/api"
	"github.com/ledgerline/reconcile-backend/internal/application/service"
	"github.com/ledgerline/reconcile-backend/internal/infrastructure/config"
	"github.com/ledgerline/reconcile-backend/internal/infrastructure/storage"
	"github.com/ledgerline/reconcile-backend/internal/observability"
)

func main() {
	configFile := flag.String("config", "config.yaml", "Configuration file path")
	port := flag.Int("port", 0, "Port to listen on (overrides config)")
	verbose := flag.Bool("verbose", false, "Verbose output")
	flag.Parse()

	cfg := config.LoadOrEnvWithPath(*configFile)
	if *port > 0 {
		cfg.Server.Port = *port
	}

	loggingCfg := cfg.Logging
	if *verbose {
		loggingCfg.Level = "debug"
	}
	logger := observability.NewLoggerWithSystem(loggingCfg, "api")

	if err := run(cfg, logger); err != nil {
		logger.Error("fatal", slog.Any("error", err))
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger *slog.Logger) error {
	store, err := storage.NewStorage(cfg.Storage.DatabasePath)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	svc, err := service.NewReconService(cfg.Matching, store, logger)
	if err != nil {
		return err
	}

	svc.StartBackgroundCleanup(5 * time.Minute)
	defer svc.StopBackgroundCleanup()

	server := api.NewServer(api.Config{
		Port:           cfg.Server.Port,
		AllowedOrigins: cfg.Server.AllowedOrigins,
	}, svc, logger)

	// Handle graceful shutdown
	done := make(chan bool, 1)
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-quit
		logger.Info("received shutdown signal")

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := server.Shutdown(ctx); err != nil {
			logger.Error("server shutdown error", slog.Any("error", err))
		}
		close(done)
	}()

	// Start server (blocks until shutdown)
	if err := server.Start(); err != nil {
		return err
	}

	<-done
	logger.Info("server stopped")
	return nil
}
