// Package listener provides a Postgres LISTEN/NOTIFY consumer for real-time
// evaluation triggers. It holds a dedicated pgx connection (not from the
// pool) listening on the `observation_ingested` channel.
//
// When the ingestion adapter lands a new daily observation, its trigger
// fires pg_notify and this consumer re-evaluates the affected (user, metric)
// immediately instead of waiting for the nightly sweep. Duplicate triggers
// and races with the sweep are absorbed by the state machine's idempotence
// guard.
package listener

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/miyahealth/pattern-engine/internal/config"
	"github.com/miyahealth/pattern-engine/internal/engine"
)

const (
	channel          = "observation_ingested"
	reconnectBackoff = 5 * time.Second
	maxReconnect     = 30 * time.Second
)

// ObservationEvent is the JSON payload from
// pg_notify('observation_ingested', ...).
type ObservationEvent struct {
	UserID     uuid.UUID `json:"user_id"`
	MetricType string    `json:"metric_type"`
	Day        string    `json:"day"` // YYYY-MM-DD
}

// Start opens a dedicated connection and listens on the observation_ingested
// channel. It reconnects automatically on connection loss. Blocks until ctx
// is cancelled. Intended to be called with `go`.
func Start(ctx context.Context, dbURL string, pool *pgxpool.Pool, cfg *config.Config, logger *slog.Logger) {
	backoff := reconnectBackoff

	for {
		err := listenLoop(ctx, dbURL, pool, cfg, logger)
		if ctx.Err() != nil {
			logger.Info("Observation listener stopped (context cancelled)")
			return
		}

		logger.Error("Observation listener disconnected, reconnecting...",
			"error", err, "backoff", backoff)

		select {
		case <-time.After(backoff):
			backoff = min(backoff*2, maxReconnect)
		case <-ctx.Done():
			return
		}
	}
}

// listenLoop runs a single listen session. Returns when the connection drops
// or the context is cancelled.
func listenLoop(ctx context.Context, dbURL string, pool *pgxpool.Pool, cfg *config.Config, logger *slog.Logger) error {
	conn, err := pgx.Connect(ctx, dbURL)
	if err != nil {
		return fmt.Errorf("connect: %w", err)
	}
	defer conn.Close(context.Background())

	_, err = conn.Exec(ctx, "LISTEN "+channel)
	if err != nil {
		return fmt.Errorf("LISTEN %s: %w", channel, err)
	}
	logger.Info("Observation listener connected", "channel", channel)

	for {
		notification, err := conn.WaitForNotification(ctx)
		if err != nil {
			return fmt.Errorf("wait for notification: %w", err)
		}

		var event ObservationEvent
		if err := json.Unmarshal([]byte(notification.Payload), &event); err != nil {
			logger.Warn("Failed to parse observation event",
				"payload", notification.Payload, "error", err)
			continue
		}

		day, err := time.Parse(time.DateOnly, event.Day)
		if err != nil {
			logger.Warn("Bad day in observation event",
				"day", event.Day, "error", err)
			continue
		}

		logger.Info("Observation event received",
			"user_id", event.UserID,
			"metric", event.MetricType,
			"day", event.Day)

		// Process asynchronously to avoid blocking the listener.
		go handleObservation(ctx, pool, cfg, event, day, logger)
	}
}

// handleObservation re-evaluates the affected (user, metric) for the
// observation's day.
func handleObservation(ctx context.Context, pool *pgxpool.Pool, cfg *config.Config, event ObservationEvent, day time.Time, logger *slog.Logger) {
	if !config.IsValidMetricType(event.MetricType) {
		logger.Warn("Observation event for unknown metric", "metric", event.MetricType)
		return
	}
	if err := engine.EvaluateUserMetric(ctx, pool, cfg, event.UserID, event.MetricType, day, logger); err != nil {
		logger.Warn("Triggered evaluation failed",
			"user_id", event.UserID, "metric", event.MetricType, "error", err)
	}
}
