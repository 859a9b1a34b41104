// Command api is the Miya pattern alert engine server.
//
// Usage:
//
//	miya-api
//	API_PORT=8080 miya-api

// @title Miya Pattern Alert Engine API
// @version 1.0.0
// @description Pattern detection and notification dispatch over per-user daily health metrics: baseline deviation, alert episode lifecycle, and push delivery.
// @host localhost:8000
// @BasePath /
// @schemes http https
// @contact.name Miya Health
// @license.name MIT
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/joho/godotenv"

	"github.com/miyahealth/pattern-engine/internal/api"
	"github.com/miyahealth/pattern-engine/internal/cache"
	"github.com/miyahealth/pattern-engine/internal/config"
	"github.com/miyahealth/pattern-engine/internal/db"
	"github.com/miyahealth/pattern-engine/internal/listener"
	"github.com/miyahealth/pattern-engine/internal/maintenance"
	"github.com/miyahealth/pattern-engine/internal/notify"

	_ "github.com/miyahealth/pattern-engine/docs" // swagger docs
)

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	// Load .env if present
	_ = godotenv.Load(".env")

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		logger.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	// Context with signal handling
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	// Apply schema before the pool connects: pool connections prepare
	// statements against these tables on connect.
	if err := db.Migrate(ctx, cfg.DatabaseURL); err != nil {
		logger.Error("Failed to apply schema", "error", err)
		os.Exit(1)
	}

	// Connect to database
	logger.Info("Connecting to database...")
	pool, err := db.New(ctx, cfg)
	if err != nil {
		logger.Error("Failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer pool.Close()
	logger.Info("Database connected",
		"min_conns", cfg.DBPoolMinConns,
		"max_conns", cfg.DBPoolMaxConns)

	// Initialize cache
	appCache := cache.New(cfg.CacheEnabled)
	logger.Info("Cache initialized", "enabled", cfg.CacheEnabled)

	// Start delivery worker (no-op transport when push is unconfigured)
	sender := notify.NewPushSender(cfg.PushCredentials, logger)
	go notify.StartWorker(ctx, pool.Pool, sender, cfg, logger)
	if sender == nil {
		logger.Info("Notification worker started without push transport (no PUSH_CREDENTIALS_FILE)")
	} else {
		logger.Info("Notification dispatch worker started")
	}

	// Start LISTEN/NOTIFY consumer for freshly ingested observations
	go listener.Start(ctx, cfg.DatabaseURL, pool.Pool, cfg, logger)

	// Start maintenance tickers (cleanup, daily sweep, catch-up sweep)
	go maintenance.Start(ctx, pool.Pool, cfg, maintenance.DefaultConfig(), logger)

	// Create router
	router := api.NewRouter(pool.Pool, appCache, cfg, sender, logger)

	// Create HTTP server
	addr := fmt.Sprintf("%s:%d", cfg.APIHost, cfg.APIPort)
	srv := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in background
	go func() {
		logger.Info("Starting Miya Pattern Alert Engine",
			"addr", addr,
			"environment", cfg.Environment,
			"docs", fmt.Sprintf("http://localhost:%d/docs/", cfg.APIPort))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("Server failed", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt
	<-ctx.Done()
	logger.Info("Shutting down...")

	// Graceful shutdown with timeout
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Shutdown error", "error", err)
	}
	logger.Info("Server stopped")
}
