package main

import (
	"context"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"velvet-pos/internal/config"
	"velvet-pos/internal/database"
	"velvet-pos/internal/logger"
	"velvet-pos/internal/server"

	"go.uber.org/zap"
)

func gracefulShutdown(apiServer *server.Server, logger *zap.Logger, done chan bool) {
	// Create context that listens for the interrupt signal from the OS.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Listen for the interrupt signal.
	<-ctx.Done()

	logger.Info("Shutting down gracefully, press Ctrl+C again to force")
	stop() // Allow Ctrl+C to force shutdown

	// In-flight sales get 30 seconds to commit
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := apiServer.Shutdown(ctx); err != nil {
		logger.Error("Server forced to shutdown", zap.Error(err))
	}

	// Close server resources
	if err := apiServer.Close(); err != nil {
		logger.Error("Error closing server resources", zap.Error(err))
	}

	logger.Info("Server exiting")

	// Notify the main goroutine that the shutdown is complete
	done <- true
}

// openDatabase opens and migrates the SQL database for the SQL ledger
// backends. It returns nil for the memory and redis backends.
func openDatabase(cfg *config.Config, log *zap.Logger) (database.Service, error) {
	if cfg.Ledger.Backend != config.BackendPostgres && cfg.Ledger.Backend != config.BackendSQLite {
		return nil, nil
	}

	dbService, err := database.New(cfg)
	if err != nil {
		return nil, err
	}

	// Check database health
	health := dbService.Health()
	log.Info("Database health check", zap.Any("health", health))

	// Run migrations
	if err := database.RunMigrations(dbService.DB(), dbService.Dialect(), log); err != nil {
		dbService.Close()
		return nil, err
	}
	if err := database.GetMigrationStatus(dbService.DB(), dbService.Dialect()); err != nil {
		log.Warn("Could not read migration status", zap.Error(err))
	}

	return dbService, nil
}

func main() {
	// Load configuration
	cfg := config.Load()

	// Initialize logger
	log, err := logger.New(cfg.Server.Env, cfg.Server.LogLevel)
	if err != nil {
		panic(fmt.Sprintf("failed to initialize logger: %v", err))
	}
	defer log.Sync()

	log.Info("Starting velvet-pos API",
		zap.String("env", cfg.Server.Env),
		zap.String("port", cfg.Server.Port),
		zap.String("ledger_backend", cfg.Ledger.Backend),
	)

	dbService, err := openDatabase(cfg, log)
	if err != nil {
		log.Fatal("Failed to prepare database", zap.Error(err))
	}

	// Create server
	srv, err := server.NewServer(cfg, log, dbService)
	if err != nil {
		if dbService != nil {
			dbService.Close()
		}
		log.Fatal("Failed to create server", zap.Error(err))
	}

	// Create a done channel to signal when the shutdown is complete
	done := make(chan bool, 1)

	// Run graceful shutdown in a separate goroutine
	go gracefulShutdown(srv, log, done)

	log.Info("Server listening", zap.String("addr", srv.Addr))

	err = srv.ListenAndServe()
	if err != nil && err != http.ErrServerClosed {
		log.Fatal("HTTP server error", zap.Error(err))
	}

	// Wait for the graceful shutdown to complete
	<-done
	log.Info("Graceful shutdown complete")
}
