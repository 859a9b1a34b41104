package notify

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/miyahealth/pattern-engine/internal/config"
)

// LoadPreferences returns the user's notification preferences, falling back
// to configured defaults when no row exists.
func LoadPreferences(ctx context.Context, pool *pgxpool.Pool, cfg *config.Config, userID uuid.UUID) (Preferences, error) {
	var p Preferences
	err := pool.QueryRow(ctx, "preferences_for_user", userID).Scan(
		&p.Timezone, &p.QuietHoursStart, &p.QuietHoursEnd,
		&p.QuietMinLevel, &p.SnoozedUntil,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return Preferences{
			Timezone:        cfg.DefaultTimezone,
			QuietHoursStart: cfg.DefaultQuietStartHour,
			QuietHoursEnd:   cfg.DefaultQuietEndHour,
			QuietMinLevel:   cfg.DefaultQuietMinLevel,
		}, nil
	}
	if err != nil {
		return Preferences{}, fmt.Errorf("load preferences: %w", err)
	}
	return p, nil
}

// EpisodeSnoozedUntil returns the episode's snoozed_until, nil when unset.
func EpisodeSnoozedUntil(ctx context.Context, pool *pgxpool.Pool, episodeID uuid.UUID) (*time.Time, error) {
	var until *time.Time
	err := pool.QueryRow(ctx, `
		SELECT snoozed_until FROM alert_episodes WHERE id = $1`, episodeID).Scan(&until)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("episode snooze lookup: %w", err)
	}
	return until, nil
}

// ExpireOlderThan marks pending tasks older than maxAge as expired without
// attempting delivery. The system favors freshness over eventual delivery of
// stale alerts.
func ExpireOlderThan(ctx context.Context, pool *pgxpool.Pool, maxAge time.Duration) (int64, error) {
	tag, err := pool.Exec(ctx, `
		UPDATE notification_tasks
		SET status = 'expired', updated_at = NOW()
		WHERE status = 'pending' AND created_at < NOW() - make_interval(secs => $1)`,
		maxAge.Seconds(),
	)
	if err != nil {
		return 0, fmt.Errorf("expire stale tasks: %w", err)
	}
	return tag.RowsAffected(), nil
}

// ClaimDue atomically claims a batch of deliverable tasks, oldest first.
// Uses FOR UPDATE SKIP LOCKED so concurrent workers never double-claim.
// Quiet-hours-deferred tasks become claimable once deliver_after passes.
func ClaimDue(ctx context.Context, pool *pgxpool.Pool, batchSize int) ([]Task, error) {
	rows, err := pool.Query(ctx, `
		UPDATE notification_tasks
		SET status = 'sending', updated_at = NOW()
		WHERE id IN (
			SELECT id FROM notification_tasks
			WHERE status = 'pending'
			  AND (deliver_after IS NULL OR deliver_after <= NOW())
			ORDER BY created_at
			LIMIT $1
			FOR UPDATE SKIP LOCKED
		)
		RETURNING id, user_id, alert_episode_id, level, payload, attempts, created_at`,
		batchSize,
	)
	if err != nil {
		return nil, fmt.Errorf("claim due tasks: %w", err)
	}
	defer rows.Close()

	var claimed []Task
	for rows.Next() {
		t := Task{Status: StatusSending}
		if err := rows.Scan(&t.ID, &t.UserID, &t.EpisodeID, &t.Level,
			&t.Payload, &t.Attempts, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan claimed task: %w", err)
		}
		claimed = append(claimed, t)
	}
	return claimed, rows.Err()
}

// MarkSent records a successful delivery.
func MarkSent(ctx context.Context, pool *pgxpool.Pool, id uuid.UUID) error {
	_, err := pool.Exec(ctx, `
		UPDATE notification_tasks
		SET status = 'sent', sent_at = NOW(), updated_at = NOW()
		WHERE id = $1`, id)
	return err
}

// MarkRetry returns a claimed task to the queue after a transport failure.
// It stays retryable until the age bound expires it.
func MarkRetry(ctx context.Context, pool *pgxpool.Pool, id uuid.UUID, reason string) error {
	_, err := pool.Exec(ctx, `
		UPDATE notification_tasks
		SET status = 'pending', attempts = attempts + 1, last_error = $2, updated_at = NOW()
		WHERE id = $1`, id, reason)
	return err
}

// MarkFailed records a terminal, non-retryable failure.
func MarkFailed(ctx context.Context, pool *pgxpool.Pool, id uuid.UUID, reason string) error {
	_, err := pool.Exec(ctx, `
		UPDATE notification_tasks
		SET status = 'failed', last_error = $2, updated_at = NOW()
		WHERE id = $1`, id, reason)
	return err
}

// MarkSkipped records a task suppressed at delivery time (snoozed after it
// was enqueued).
func MarkSkipped(ctx context.Context, pool *pgxpool.Pool, id uuid.UUID, reason string) error {
	_, err := pool.Exec(ctx, `
		UPDATE notification_tasks
		SET status = 'skipped', last_error = $2, updated_at = NOW()
		WHERE id = $1`, id, reason)
	return err
}

// ListTasks returns a user's tasks, optionally filtered by status, newest
// first. Serves the operator API.
func ListTasks(ctx context.Context, pool *pgxpool.Pool, userID uuid.UUID, status string, limit int) ([]Task, error) {
	rows, err := pool.Query(ctx, `
		SELECT id, user_id, alert_episode_id, level, payload, status,
		       deliver_after, attempts, COALESCE(last_error, ''), created_at, sent_at
		FROM notification_tasks
		WHERE user_id = $1 AND ($2 = '' OR status = $2)
		ORDER BY created_at DESC
		LIMIT $3`,
		userID, status, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	defer rows.Close()

	var tasks []Task
	for rows.Next() {
		var t Task
		if err := rows.Scan(&t.ID, &t.UserID, &t.EpisodeID, &t.Level, &t.Payload,
			&t.Status, &t.DeliverAfter, &t.Attempts, &t.LastError,
			&t.CreatedAt, &t.SentAt); err != nil {
			return nil, fmt.Errorf("scan task: %w", err)
		}
		tasks = append(tasks, t)
	}
	return tasks, rows.Err()
}
