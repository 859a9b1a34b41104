// Package maintenance runs periodic background tasks as Go tickers.
// Replaces pg_cron — all scheduled work is driven from Go since the API is
// already a persistent, long-running service (required for LISTEN/NOTIFY).
package maintenance

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/miyahealth/pattern-engine/internal/config"
	"github.com/miyahealth/pattern-engine/internal/engine"
	"github.com/miyahealth/pattern-engine/internal/pattern"
)

// Config controls maintenance task intervals. Zero duration disables a task.
type Config struct {
	CleanupInterval time.Duration // Purge finished notification tasks
	SweepInterval   time.Duration // Daily recompute sweep
	CatchUpInterval time.Duration // Re-evaluate keys with missed NOTIFY events
}

// DefaultConfig returns sensible production defaults.
func DefaultConfig() Config {
	return Config{
		CleanupInterval: 30 * time.Minute,
		SweepInterval:   24 * time.Hour,
		CatchUpInterval: 15 * time.Minute,
	}
}

// Start launches all configured maintenance tickers. Blocks until ctx is
// cancelled. Intended to be called with `go`.
func Start(ctx context.Context, pool *pgxpool.Pool, appCfg *config.Config, cfg Config, logger *slog.Logger) {
	logger.Info("Maintenance tickers started",
		"cleanup", cfg.CleanupInterval,
		"sweep", cfg.SweepInterval,
		"catchup", cfg.CatchUpInterval)

	tickers := make([]*time.Ticker, 0, 3)
	defer func() {
		for _, t := range tickers {
			t.Stop()
		}
	}()

	// Cleanup: remove finished notification tasks after their audit window
	if cfg.CleanupInterval > 0 {
		t := time.NewTicker(cfg.CleanupInterval)
		tickers = append(tickers, t)
		go runLoop(ctx, t.C, func() { cleanup(ctx, pool, logger) })
	}

	// Sweep: scheduled daily recompute over all users with fresh data
	if cfg.SweepInterval > 0 {
		t := time.NewTicker(cfg.SweepInterval)
		tickers = append(tickers, t)
		go runLoop(ctx, t.C, func() {
			engine.Sweep(ctx, pool, appCfg, pattern.Day(time.Now()), appCfg.SweepWorkers, logger)
		})
	}

	// Catch-up: re-evaluate keys whose observations postdate their last
	// evaluation (NOTIFY events missed during downtime)
	if cfg.CatchUpInterval > 0 {
		t := time.NewTicker(cfg.CatchUpInterval)
		tickers = append(tickers, t)
		go runLoop(ctx, t.C, func() { catchUpSweep(ctx, pool, appCfg, logger) })
	}

	<-ctx.Done()
	logger.Info("Maintenance tickers stopped")
}

func runLoop(ctx context.Context, ch <-chan time.Time, fn func()) {
	for {
		select {
		case <-ch:
			fn()
		case <-ctx.Done():
			return
		}
	}
}

// --------------------------------------------------------------------------
// Task implementations
// --------------------------------------------------------------------------

// cleanup removes notification tasks older than 30 days that have reached a
// terminal status. Episodes are never deleted; resolved ones are the audit
// trail.
func cleanup(ctx context.Context, pool *pgxpool.Pool, logger *slog.Logger) {
	tag, err := pool.Exec(ctx, `
		DELETE FROM notification_tasks
		WHERE status IN ('sent', 'failed', 'skipped', 'expired')
		  AND updated_at < NOW() - INTERVAL '30 days'`)
	if err != nil {
		logger.Warn("Cleanup: failed to purge old tasks", "error", err)
	} else if tag.RowsAffected() > 0 {
		logger.Info("Cleanup: purged old tasks", "count", tag.RowsAffected())
	}
}

// catchUpSweep finds (user, metric, day) keys whose latest observation was
// never evaluated — the NOTIFY event was lost or the service was down — and
// re-runs evaluation for them. The idempotence guard makes over-matching
// harmless.
func catchUpSweep(ctx context.Context, pool *pgxpool.Pool, appCfg *config.Config, logger *slog.Logger) {
	rows, err := pool.Query(ctx, `
		SELECT o.user_id, o.metric_type, MAX(o.day)
		FROM metric_observations o
		WHERE o.recorded_at > NOW() - INTERVAL '2 hours'
		  AND NOT EXISTS (
			SELECT 1 FROM alert_episodes e
			WHERE e.user_id = o.user_id
			  AND e.metric_type = o.metric_type
			  AND e.last_evaluated_date >= o.day
		  )
		GROUP BY o.user_id, o.metric_type
		LIMIT 500`)
	if err != nil {
		logger.Warn("Catch-up sweep: query failed", "error", err)
		return
	}
	defer rows.Close()

	type key struct {
		userID     uuid.UUID
		metricType string
		day        time.Time
	}
	var keys []key
	for rows.Next() {
		var k key
		if err := rows.Scan(&k.userID, &k.metricType, &k.day); err != nil {
			logger.Warn("Catch-up sweep: scan failed", "error", err)
			return
		}
		keys = append(keys, k)
	}
	if err := rows.Err(); err != nil {
		logger.Warn("Catch-up sweep: rows failed", "error", err)
		return
	}

	evaluated := 0
	for _, k := range keys {
		if err := engine.EvaluateUserMetric(ctx, pool, appCfg, k.userID, k.metricType, k.day, logger); err != nil {
			logger.Warn("Catch-up sweep: evaluation failed",
				"user_id", k.userID, "metric", k.metricType, "error", err)
			continue
		}
		evaluated++
	}
	if evaluated > 0 {
		logger.Info("Catch-up sweep: re-evaluated stale keys", "count", evaluated)
	}
}
