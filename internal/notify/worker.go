package notify

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/miyahealth/pattern-engine/internal/config"
	"github.com/miyahealth/pattern-engine/internal/telemetry"
)

// StartWorker runs a background loop that drains due notification tasks.
// Blocks until ctx is cancelled. Intended to be called with `go`.
func StartWorker(ctx context.Context, pool *pgxpool.Pool, sender *PushSender, cfg *config.Config, logger *slog.Logger) {
	logger.Info("Notification delivery worker started",
		"interval", cfg.DispatchInterval, "batch", cfg.DispatchBatchSize)
	ticker := time.NewTicker(cfg.DispatchInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			res, err := Drain(ctx, pool, sender, cfg, cfg.DispatchBatchSize, cfg.TaskMaxAge, logger)
			if err != nil {
				logger.Error("drain error", "error", err)
			} else if res.Processed+res.Expired > 0 {
				logger.Info("drain batch",
					"processed", res.Processed, "sent", res.Sent,
					"skipped", res.Skipped, "failed", res.Failed,
					"expired", res.Expired)
			}
		case <-ctx.Done():
			logger.Info("Notification delivery worker stopped")
			return
		}
	}
}

// Drain runs one delivery batch: expire aged-out tasks, claim due ones, and
// invoke the transport per task. Delivery is fire-and-forget relative to the
// rest of the pipeline — failures here never roll back episode state.
func Drain(ctx context.Context, pool *pgxpool.Pool, sender *PushSender, cfg *config.Config,
	batchSize int, maxAge time.Duration, logger *slog.Logger) (DrainResult, error) {

	start := time.Now()
	defer func() { telemetry.DrainDuration.Observe(time.Since(start).Seconds()) }()

	var res DrainResult

	expired, err := ExpireOlderThan(ctx, pool, maxAge)
	if err != nil {
		return res, err
	}
	if expired > 0 {
		res.Expired = int(expired)
		telemetry.NotificationsByOutcome.WithLabelValues("expired").Add(float64(expired))
		logger.Info("expired stale notification tasks", "count", expired)
	}

	claimed, err := ClaimDue(ctx, pool, batchSize)
	if err != nil {
		return res, err
	}

	for _, task := range claimed {
		res.Processed++

		// Snooze may have been set after the task was enqueued.
		prefs, prefErr := LoadPreferences(ctx, pool, cfg, task.UserID)
		if prefErr == nil && snoozed(prefs.SnoozedUntil, time.Now()) {
			_ = MarkSkipped(ctx, pool, task.ID, "user snoozed")
			telemetry.NotificationsByOutcome.WithLabelValues("skipped").Inc()
			res.Skipped++
			continue
		}
		epSnooze, snoozeErr := EpisodeSnoozedUntil(ctx, pool, task.EpisodeID)
		if snoozeErr == nil && snoozed(epSnooze, time.Now()) {
			_ = MarkSkipped(ctx, pool, task.ID, "episode snoozed")
			telemetry.NotificationsByOutcome.WithLabelValues("skipped").Inc()
			res.Skipped++
			continue
		}

		sendErr := sender.Send(ctx, task.UserID, task.Payload)
		switch {
		case sendErr == nil:
			_ = MarkSent(ctx, pool, task.ID)
			telemetry.NotificationsByOutcome.WithLabelValues("sent").Inc()
			res.Sent++
		case errors.Is(sendErr, ErrNoRecipient):
			logger.Warn("no recipient for task", "task_id", task.ID, "user_id", task.UserID)
			_ = MarkFailed(ctx, pool, task.ID, sendErr.Error())
			telemetry.NotificationsByOutcome.WithLabelValues("failed").Inc()
			res.Failed++
		default:
			logger.Warn("send failed, will retry", "task_id", task.ID, "error", sendErr)
			_ = MarkRetry(ctx, pool, task.ID, sendErr.Error())
			telemetry.NotificationsByOutcome.WithLabelValues("failed").Inc()
			res.Failed++
		}
	}
	return res, nil
}
