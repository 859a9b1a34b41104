// Package db provides a pgxpool-based connection pool with prepared statement
// registration and health checking.
package db

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/miyahealth/pattern-engine/internal/config"
)

// Pool wraps pgxpool.Pool with application-specific helpers.
type Pool struct {
	*pgxpool.Pool
}

// New creates and validates a new connection pool.
func New(ctx context.Context, cfg *config.Config) (*Pool, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse database URL: %w", err)
	}

	poolCfg.MinConns = int32(cfg.DBPoolMinConns)
	poolCfg.MaxConns = int32(cfg.DBPoolMaxConns)
	poolCfg.MaxConnLifetime = cfg.DBPoolMaxLife
	poolCfg.MaxConnIdleTime = 5 * time.Minute

	// Register prepared statements on every new connection.
	poolCfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		return registerPreparedStatements(ctx, conn)
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	// Verify connectivity
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return &Pool{Pool: pool}, nil
}

// HealthCheck runs a trivial query to verify the database is reachable.
func (p *Pool) HealthCheck(ctx context.Context) error {
	var n int
	return p.QueryRow(ctx, "health_check").Scan(&n)
}

// registerPreparedStatements registers all statements the engine, dispatcher,
// and API layers use. Prepared statements eliminate parse overhead on every
// evaluation cycle.
func registerPreparedStatements(ctx context.Context, conn *pgx.Conn) error {
	stmts := map[string]string{
		// Health
		"health_check": "SELECT 1",

		// Observation store (read-only from the engine's perspective)
		"observation_window": `
			SELECT day, value FROM metric_observations
			WHERE user_id = $1 AND metric_type = $2 AND day BETWEEN $3 AND $4
			ORDER BY day`,
		"observation_users_for_day": `
			SELECT DISTINCT user_id FROM metric_observations
			WHERE day = $1`,

		// Exercise index
		"exercise_for_day": `
			SELECT had_qualifying_activity FROM exercise_records
			WHERE user_id = $1 AND day = $2`,

		// Alert episodes
		"active_episode_for_update": `
			SELECT id, user_id, metric_type, pattern_type, episode_status,
			       current_level, active_since, last_evaluated_date,
			       last_notified_level, last_notified_at, snoozed_until, computed_at
			FROM alert_episodes
			WHERE user_id = $1 AND metric_type = $2 AND pattern_type = $3
			  AND episode_status = 'active'
			FOR UPDATE`,
		"episode_by_id": `
			SELECT id, user_id, metric_type, pattern_type, episode_status,
			       current_level, active_since, last_evaluated_date,
			       last_notified_level, last_notified_at, snoozed_until, computed_at
			FROM alert_episodes WHERE id = $1`,

		// Notification preferences
		"preferences_for_user": `
			SELECT timezone, quiet_hours_start, quiet_hours_end,
			       quiet_hours_min_level, snoozed_until
			FROM notification_preferences WHERE user_id = $1`,
	}

	for name, sql := range stmts {
		if _, err := conn.Prepare(ctx, name, sql); err != nil {
			return fmt.Errorf("prepare %q: %w", name, err)
		}
	}
	return nil
}
