package db

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
)

// Migrate creates or updates the database schema. It opens its own direct
// connection: pool connections prepare statements against these tables on
// connect, so the schema must exist before the pool does. Safe to run on
// every startup; all statements are idempotent.
func Migrate(ctx context.Context, databaseURL string) error {
	conn, err := pgx.Connect(ctx, databaseURL)
	if err != nil {
		return fmt.Errorf("migrate connect: %w", err)
	}
	defer conn.Close(context.Background())

	schema := []string{
		`CREATE TABLE IF NOT EXISTS metric_observations (
			user_id     UUID NOT NULL,
			metric_type TEXT NOT NULL,
			day         DATE NOT NULL,
			value       NUMERIC,
			recorded_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			PRIMARY KEY (user_id, metric_type, day)
		)`,

		`CREATE TABLE IF NOT EXISTS exercise_records (
			user_id                 UUID NOT NULL,
			day                     DATE NOT NULL,
			had_qualifying_activity BOOLEAN NOT NULL DEFAULT FALSE,
			recorded_at             TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			PRIMARY KEY (user_id, day)
		)`,

		`CREATE TABLE IF NOT EXISTS alert_episodes (
			id                  UUID PRIMARY KEY,
			user_id             UUID NOT NULL,
			metric_type         TEXT NOT NULL,
			pattern_type        TEXT NOT NULL,
			episode_status      TEXT NOT NULL DEFAULT 'active',
			current_level       INTEGER NOT NULL DEFAULT 0,
			active_since        DATE NOT NULL,
			last_evaluated_date DATE NOT NULL,
			last_notified_level INTEGER,
			last_notified_at    TIMESTAMPTZ,
			snoozed_until       TIMESTAMPTZ,
			computed_at         TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,

		// At most one active episode per (user, metric, pattern).
		`CREATE UNIQUE INDEX IF NOT EXISTS uq_alert_episodes_active
			ON alert_episodes (user_id, metric_type, pattern_type)
			WHERE episode_status = 'active'`,

		`CREATE INDEX IF NOT EXISTS idx_alert_episodes_user
			ON alert_episodes (user_id, episode_status)`,

		`CREATE TABLE IF NOT EXISTS notification_tasks (
			id               UUID PRIMARY KEY,
			user_id          UUID NOT NULL,
			alert_episode_id UUID NOT NULL REFERENCES alert_episodes(id),
			level            INTEGER NOT NULL,
			payload          JSONB NOT NULL,
			status           TEXT NOT NULL DEFAULT 'pending',
			deliver_after    TIMESTAMPTZ,
			attempts         INTEGER NOT NULL DEFAULT 0,
			last_error       TEXT,
			created_at       TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			sent_at          TIMESTAMPTZ,
			updated_at       TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,

		// At most one task per (episode, level).
		`CREATE UNIQUE INDEX IF NOT EXISTS uq_notification_tasks_episode_level
			ON notification_tasks (alert_episode_id, level)`,

		`CREATE INDEX IF NOT EXISTS idx_notification_tasks_pending
			ON notification_tasks (created_at)
			WHERE status = 'pending'`,

		// NOTIFY on every landed observation so the listener can evaluate
		// it immediately instead of waiting for the nightly sweep.
		`CREATE OR REPLACE FUNCTION notify_observation_ingested() RETURNS trigger AS $$
		BEGIN
			PERFORM pg_notify('observation_ingested', json_build_object(
				'user_id', NEW.user_id,
				'metric_type', NEW.metric_type,
				'day', to_char(NEW.day, 'YYYY-MM-DD')
			)::text);
			RETURN NEW;
		END;
		$$ LANGUAGE plpgsql`,

		`DROP TRIGGER IF EXISTS trg_observation_ingested ON metric_observations`,

		`CREATE TRIGGER trg_observation_ingested
			AFTER INSERT OR UPDATE ON metric_observations
			FOR EACH ROW EXECUTE FUNCTION notify_observation_ingested()`,

		`CREATE TABLE IF NOT EXISTS notification_preferences (
			user_id               UUID PRIMARY KEY,
			timezone              TEXT NOT NULL DEFAULT 'UTC',
			quiet_hours_start     INTEGER NOT NULL DEFAULT 22,
			quiet_hours_end       INTEGER NOT NULL DEFAULT 7,
			quiet_hours_min_level TEXT NOT NULL DEFAULT 'critical',
			snoozed_until         TIMESTAMPTZ,
			updated_at            TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
	}

	for _, stmt := range schema {
		if _, err := conn.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}
