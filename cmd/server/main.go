package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/BerylCAtieno/youtube-medallion/internal/config"
	"github.com/BerylCAtieno/youtube-medallion/internal/db"
	"github.com/BerylCAtieno/youtube-medallion/internal/repository"
	"github.com/BerylCAtieno/youtube-medallion/internal/router"
	"github.com/BerylCAtieno/youtube-medallion/internal/services"
	"github.com/BerylCAtieno/youtube-medallion/internal/utils"
)

const shutdownGrace = 30 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger := utils.NewLogger(cfg.LogLevel)

	if err := run(cfg, logger); err != nil {
		logger.Fatal("Server stopped", "error", err)
	}
	logger.Info("Server exited")
}

func run(cfg *config.Config, logger *utils.Logger) error {
	runs, closeLedger, err := openRunLedger(cfg.RunsDBPath)
	if err != nil {
		return err
	}
	defer closeLedger()

	pipeline, err := services.NewPipelineService(cfg, runs, logger)
	if err != nil {
		return fmt.Errorf("initialize pipeline: %w", err)
	}

	// Stage triggers hold the connection for the whole run, which includes
	// one classification call per item.
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router.NewRouter(pipeline, logger),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Minute,
		IdleTimeout:  60 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("Starting server", "port", cfg.Port, "storage_backend", cfg.StorageBackend, "run_ledger", cfg.RunsDBPath != "")
		serveErr <- srv.ListenAndServe()
	}()

	select {
	case err := <-serveErr:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("listen: %w", err)
	case <-ctx.Done():
	}

	logger.Info("Shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("forced shutdown: %w", err)
	}
	return nil
}

// openRunLedger opens the stage run history when a database path is configured.
func openRunLedger(path string) (repository.RunRepository, func(), error) {
	if path == "" {
		return nil, func() {}, nil
	}
	database, err := db.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("open run ledger %s: %w", path, err)
	}
	return repository.NewRunRepository(database), func() { database.Close() }, nil
}
