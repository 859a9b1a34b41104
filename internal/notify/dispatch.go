package notify

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/miyahealth/pattern-engine/internal/pattern"
	"github.com/miyahealth/pattern-engine/internal/telemetry"
)

// Dispatch applies the dispatcher's decision to a transition inside the same
// transaction that applied the level change. On enqueue it inserts the task
// and stamps last_notified_level/last_notified_at on the episode, so a level
// can never be notified twice even across racing evaluators.
//
// Returns the created task, or nil when the decision was to skip or the
// (episode, level) pair was already enqueued.
func Dispatch(ctx context.Context, tx pgx.Tx, tr pattern.Transition, prefs Preferences,
	supporting []MetricSnapshot, now time.Time, logger *slog.Logger) (*Task, error) {

	decision := Decide(tr, prefs, now)
	if decision.Action == ActionSkip {
		if tr.Episode != nil && tr.Episode.NotificationOwed() {
			logger.Info("notification skipped",
				"episode_id", tr.Episode.ID, "level", tr.Episode.CurrentLevel,
				"reason", decision.Reason)
		}
		return nil, nil
	}

	ep := tr.Episode
	payload, err := BuildEvidence(tr, supporting)
	if err != nil {
		return nil, fmt.Errorf("build evidence: %w", err)
	}

	task := &Task{
		ID:           uuid.New(),
		UserID:       ep.UserID,
		EpisodeID:    ep.ID,
		Level:        ep.CurrentLevel,
		Payload:      payload,
		Status:       StatusPending,
		DeliverAfter: decision.DeliverAfter,
		CreatedAt:    now,
	}

	tag, err := tx.Exec(ctx, `
		INSERT INTO notification_tasks (
			id, user_id, alert_episode_id, level, payload, status, deliver_after, created_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
		ON CONFLICT (alert_episode_id, level) DO NOTHING`,
		task.ID, task.UserID, task.EpisodeID, task.Level,
		task.Payload, task.Status, task.DeliverAfter, task.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("insert notification task: %w", err)
	}
	if tag.RowsAffected() == 0 {
		// Another evaluator already enqueued this level.
		return nil, nil
	}

	if _, err := tx.Exec(ctx, `
		UPDATE alert_episodes
		SET last_notified_level = $2, last_notified_at = $3
		WHERE id = $1`,
		ep.ID, ep.CurrentLevel, now,
	); err != nil {
		return nil, fmt.Errorf("stamp last notified level: %w", err)
	}

	telemetry.NotificationsEnqueuedTotal.Inc()
	logger.Info("notification enqueued",
		"episode_id", ep.ID, "pattern", ep.PatternType,
		"level", ep.CurrentLevel, "severity", ep.Severity(),
		"deferred", decision.DeliverAfter != nil)
	return task, nil
}
