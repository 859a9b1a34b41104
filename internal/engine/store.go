// Package engine wires the pure pattern computations to durable state: it
// loads observation windows, applies episode transitions under row locks,
// and hands escalations to the notification dispatcher.
package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/miyahealth/pattern-engine/internal/pattern"
)

// ErrConflict signals a lost race on an episode's conditional update. The
// caller retries with fresh reads; a newer last_evaluated_date is never
// silently overwritten.
var ErrConflict = errors.New("episode modified by concurrent evaluator")

// --------------------------------------------------------------------------
// Observation store / exercise index (read-only to the engine)
// --------------------------------------------------------------------------

// LoadObservations returns the user's daily readings for one metric within
// [from, to], ordered by day. Days with no row and days with a NULL value
// both surface as missing data downstream.
func LoadObservations(ctx context.Context, pool *pgxpool.Pool, userID uuid.UUID, metricType string, from, to time.Time) ([]pattern.Observation, error) {
	rows, err := pool.Query(ctx, "observation_window", userID, metricType, from, to)
	if err != nil {
		return nil, fmt.Errorf("load observations: %w", err)
	}
	defer rows.Close()

	var obs []pattern.Observation
	for rows.Next() {
		var o pattern.Observation
		if err := rows.Scan(&o.Day, &o.Value); err != nil {
			return nil, fmt.Errorf("scan observation: %w", err)
		}
		obs = append(obs, o)
	}
	return obs, rows.Err()
}

// HadQualifyingExercise reports whether a qualifying activity session was
// recorded for the day. A missing row is "no information", which never
// suppresses.
func HadQualifyingExercise(ctx context.Context, pool *pgxpool.Pool, userID uuid.UUID, day time.Time) (bool, error) {
	var had bool
	err := pool.QueryRow(ctx, "exercise_for_day", userID, day).Scan(&had)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("load exercise record: %w", err)
	}
	return had, nil
}

// --------------------------------------------------------------------------
// Episode store
// --------------------------------------------------------------------------

const episodeColumns = `id, user_id, metric_type, pattern_type, episode_status,
	current_level, active_since, last_evaluated_date,
	last_notified_level, last_notified_at, snoozed_until, computed_at`

func scanEpisode(row pgx.Row) (*pattern.Episode, error) {
	var e pattern.Episode
	err := row.Scan(&e.ID, &e.UserID, &e.MetricType, &e.PatternType, &e.Status,
		&e.CurrentLevel, &e.ActiveSince, &e.LastEvaluatedDate,
		&e.LastNotifiedLevel, &e.LastNotifiedAt, &e.SnoozedUntil, &e.ComputedAt)
	if err != nil {
		return nil, err
	}
	return &e, nil
}

// activeEpisodeForUpdate locks and returns the active episode for the key,
// or nil when none exists. Must run inside a transaction.
func activeEpisodeForUpdate(ctx context.Context, tx pgx.Tx, userID uuid.UUID, metricType, patternType string) (*pattern.Episode, error) {
	ep, err := scanEpisode(tx.QueryRow(ctx, "active_episode_for_update", userID, metricType, patternType))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("lock active episode: %w", err)
	}
	return ep, nil
}

// insertEpisode creates a new episode row. Losing the insert race on the
// partial unique index (one active episode per key) surfaces as ErrConflict.
func insertEpisode(ctx context.Context, tx pgx.Tx, e *pattern.Episode) error {
	tag, err := tx.Exec(ctx, `
		INSERT INTO alert_episodes (
			id, user_id, metric_type, pattern_type, episode_status,
			current_level, active_since, last_evaluated_date, computed_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
		ON CONFLICT (user_id, metric_type, pattern_type)
			WHERE episode_status = 'active'
			DO NOTHING`,
		e.ID, e.UserID, e.MetricType, e.PatternType, e.Status,
		e.CurrentLevel, e.ActiveSince, e.LastEvaluatedDate, e.ComputedAt,
	)
	if err != nil {
		return fmt.Errorf("insert episode: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrConflict
	}
	return nil
}

// updateEpisode applies a transition as a conditional update guarded by
// last_evaluated_date. Zero rows affected means a concurrent evaluator got
// there first.
func updateEpisode(ctx context.Context, tx pgx.Tx, e *pattern.Episode) error {
	tag, err := tx.Exec(ctx, `
		UPDATE alert_episodes
		SET episode_status = $2, current_level = $3,
		    last_evaluated_date = $4, computed_at = $5
		WHERE id = $1 AND last_evaluated_date < $4`,
		e.ID, e.Status, e.CurrentLevel, e.LastEvaluatedDate, e.ComputedAt,
	)
	if err != nil {
		return fmt.Errorf("update episode: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrConflict
	}
	return nil
}

// GetEpisode returns one episode by ID.
func GetEpisode(ctx context.Context, pool *pgxpool.Pool, id uuid.UUID) (*pattern.Episode, error) {
	ep, err := scanEpisode(pool.QueryRow(ctx, "episode_by_id", id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get episode: %w", err)
	}
	return ep, nil
}

// ListEpisodes returns a user's episodes, optionally filtered by status,
// most recent first.
func ListEpisodes(ctx context.Context, pool *pgxpool.Pool, userID uuid.UUID, status string, limit int) ([]pattern.Episode, error) {
	rows, err := pool.Query(ctx, `
		SELECT `+episodeColumns+`
		FROM alert_episodes
		WHERE user_id = $1 AND ($2 = '' OR episode_status = $2)
		ORDER BY computed_at DESC
		LIMIT $3`,
		userID, status, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list episodes: %w", err)
	}
	defer rows.Close()

	var episodes []pattern.Episode
	for rows.Next() {
		ep, err := scanEpisode(rows)
		if err != nil {
			return nil, fmt.Errorf("scan episode: %w", err)
		}
		episodes = append(episodes, *ep)
	}
	return episodes, rows.Err()
}

// Snooze suppresses future notifications for an episode for the given number
// of days. The episode keeps evaluating and escalating; only delivery is
// held back.
func Snooze(ctx context.Context, pool *pgxpool.Pool, episodeID uuid.UUID, days int) (time.Time, error) {
	until := time.Now().UTC().AddDate(0, 0, days)
	tag, err := pool.Exec(ctx, `
		UPDATE alert_episodes SET snoozed_until = $2 WHERE id = $1`,
		episodeID, until,
	)
	if err != nil {
		return time.Time{}, fmt.Errorf("snooze episode: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return time.Time{}, fmt.Errorf("episode %s not found", episodeID)
	}
	return until, nil
}

// --------------------------------------------------------------------------
// Ingestion (inbound interface for the wearable adapter)
// --------------------------------------------------------------------------

// UpsertObservation stores one already-parsed daily reading. Late or revised
// observations overwrite the same (user, metric, day) key; re-evaluation
// then picks up the revision.
func UpsertObservation(ctx context.Context, pool *pgxpool.Pool, userID uuid.UUID, metricType string, day time.Time, value *float64) error {
	_, err := pool.Exec(ctx, `
		INSERT INTO metric_observations (user_id, metric_type, day, value, recorded_at)
		VALUES ($1,$2,$3,$4,NOW())
		ON CONFLICT (user_id, metric_type, day)
		DO UPDATE SET value = EXCLUDED.value, recorded_at = NOW()`,
		userID, metricType, pattern.Day(day), value,
	)
	if err != nil {
		return fmt.Errorf("upsert observation: %w", err)
	}
	return nil
}

// UpsertExerciseRecord stores one per-day exercise flag.
func UpsertExerciseRecord(ctx context.Context, pool *pgxpool.Pool, userID uuid.UUID, day time.Time, hadActivity bool) error {
	_, err := pool.Exec(ctx, `
		INSERT INTO exercise_records (user_id, day, had_qualifying_activity, recorded_at)
		VALUES ($1,$2,$3,NOW())
		ON CONFLICT (user_id, day)
		DO UPDATE SET had_qualifying_activity = EXCLUDED.had_qualifying_activity, recorded_at = NOW()`,
		userID, pattern.Day(day), hadActivity,
	)
	if err != nil {
		return fmt.Errorf("upsert exercise record: %w", err)
	}
	return nil
}
