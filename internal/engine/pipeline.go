package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/miyahealth/pattern-engine/internal/config"
	"github.com/miyahealth/pattern-engine/internal/notify"
	"github.com/miyahealth/pattern-engine/internal/pattern"
	"github.com/miyahealth/pattern-engine/internal/telemetry"
)

// maxAdvanceRetries bounds the retry loop on concurrent-write conflicts.
const maxAdvanceRetries = 3

// EvaluateUser runs a full evaluation of one user for one date: every
// registered metric, every pattern direction. Safe to re-invoke for the same
// date (webhook retries, sweep overlap) — the state machine's idempotence
// guard absorbs duplicates.
func EvaluateUser(ctx context.Context, pool *pgxpool.Pool, cfg *config.Config, userID uuid.UUID, date time.Time, logger *slog.Logger) error {
	date = pattern.Day(date)

	// Compute all metric deviations up front so each notification can carry
	// the user's other metrics as supporting evidence.
	deviations := make(map[string]*pattern.DeviationResult)
	for metricType := range config.MetricRegistry {
		dev, err := evaluateDeviation(ctx, pool, userID, metricType, date)
		if err != nil {
			if errors.Is(err, pattern.ErrInsufficientData) {
				telemetry.InsufficientDataTotal.WithLabelValues(metricType).Inc()
				logger.Debug("insufficient data", "user_id", userID, "metric", metricType, "date", date)
				continue
			}
			return err
		}
		deviations[metricType] = dev
	}

	prefs, err := notify.LoadPreferences(ctx, pool, cfg, userID)
	if err != nil {
		return err
	}

	for metricType, dev := range deviations {
		mc := config.MetricRegistry[metricType]

		hadExercise := false
		if mc.RecoveryMetric {
			hadExercise, err = HadQualifyingExercise(ctx, pool, userID, date)
			if err != nil {
				return err
			}
		}

		supporting := supportingSnapshots(deviations, metricType)
		for _, dir := range mc.AdverseDirections {
			eff := pattern.Filter(dev, dir, hadExercise)
			if eff.Suppressed {
				telemetry.SuppressedDaysTotal.WithLabelValues(metricType).Inc()
				logger.Info("adverse day suppressed by exercise",
					"user_id", userID, "pattern", eff.PatternType, "date", date)
			}
			if err := advancePattern(ctx, pool, cfg, eff, prefs, supporting, date, logger); err != nil {
				return err
			}
		}
	}
	return nil
}

// EvaluateUserMetric evaluates a single (user, metric) pair for one date.
// Used by the LISTEN/NOTIFY trigger path, where the changed metric is known.
func EvaluateUserMetric(ctx context.Context, pool *pgxpool.Pool, cfg *config.Config, userID uuid.UUID, metricType string, date time.Time, logger *slog.Logger) error {
	mc, ok := config.MetricRegistry[metricType]
	if !ok {
		return fmt.Errorf("unknown metric type %q", metricType)
	}
	date = pattern.Day(date)

	dev, err := evaluateDeviation(ctx, pool, userID, metricType, date)
	if err != nil {
		if errors.Is(err, pattern.ErrInsufficientData) {
			telemetry.InsufficientDataTotal.WithLabelValues(metricType).Inc()
			logger.Debug("insufficient data", "user_id", userID, "metric", metricType, "date", date)
			return nil
		}
		return err
	}

	prefs, err := notify.LoadPreferences(ctx, pool, cfg, userID)
	if err != nil {
		return err
	}

	hadExercise := false
	if mc.RecoveryMetric {
		hadExercise, err = HadQualifyingExercise(ctx, pool, userID, date)
		if err != nil {
			return err
		}
	}

	for _, dir := range mc.AdverseDirections {
		eff := pattern.Filter(dev, dir, hadExercise)
		if eff.Suppressed {
			telemetry.SuppressedDaysTotal.WithLabelValues(metricType).Inc()
			logger.Info("adverse day suppressed by exercise",
				"user_id", userID, "pattern", eff.PatternType, "date", date)
		}
		if err := advancePattern(ctx, pool, cfg, eff, prefs, nil, date, logger); err != nil {
			return err
		}
	}
	return nil
}

// evaluateDeviation loads the observation window and runs the pure
// calculator.
func evaluateDeviation(ctx context.Context, pool *pgxpool.Pool, userID uuid.UUID, metricType string, date time.Time) (*pattern.DeviationResult, error) {
	telemetry.EvaluationsTotal.WithLabelValues(metricType).Inc()

	obs, err := LoadObservations(ctx, pool, userID, metricType, pattern.WindowStart(date), date)
	if err != nil {
		return nil, err
	}
	return pattern.Compute(userID, metricType, date, obs)
}

// advancePattern applies one pattern's transition as a single atomic
// read-modify-write, retrying on concurrent-write conflicts with fresh reads.
func advancePattern(ctx context.Context, pool *pgxpool.Pool, cfg *config.Config,
	eff pattern.EffectiveDeviation, prefs notify.Preferences,
	supporting []notify.MetricSnapshot, date time.Time, logger *slog.Logger) error {

	for attempt := 0; attempt < maxAdvanceRetries; attempt++ {
		err := tryAdvance(ctx, pool, eff, prefs, supporting, date, logger)
		if errors.Is(err, ErrConflict) {
			telemetry.EvaluateConflictsTotal.Inc()
			continue
		}
		return err
	}
	// A conflicting writer evaluated the same key; its result stands.
	logger.Warn("advance retries exhausted", "pattern", eff.PatternType, "date", date)
	return nil
}

func tryAdvance(ctx context.Context, pool *pgxpool.Pool,
	eff pattern.EffectiveDeviation, prefs notify.Preferences,
	supporting []notify.MetricSnapshot, date time.Time, logger *slog.Logger) error {

	tx, err := pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin advance tx: %w", err)
	}
	defer tx.Rollback(ctx)

	dev := eff.Deviation
	prev, err := activeEpisodeForUpdate(ctx, tx, dev.UserID, dev.MetricType, eff.PatternType)
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	tr := pattern.Advance(prev, eff, date, now)

	switch tr.Kind {
	case pattern.TransitionNoop:
		return tx.Commit(ctx)
	case pattern.TransitionCreated:
		if err := insertEpisode(ctx, tx, tr.Episode); err != nil {
			return err
		}
	default:
		if err := updateEpisode(ctx, tx, tr.Episode); err != nil {
			return err
		}
	}

	telemetry.EpisodeTransitionsTotal.WithLabelValues(eff.PatternType, tr.Kind).Inc()
	logger.Info("episode transition",
		"user_id", dev.UserID, "pattern", eff.PatternType, "kind", tr.Kind,
		"level", tr.Episode.CurrentLevel, "date", date)

	if tr.Episode.NotificationOwed() {
		if _, err := notify.Dispatch(ctx, tx, tr, prefs, supporting, now, logger); err != nil {
			return err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit advance tx: %w", err)
	}
	return nil
}

// supportingSnapshots collects the other metrics' deviations for evidence.
func supportingSnapshots(deviations map[string]*pattern.DeviationResult, exclude string) []notify.MetricSnapshot {
	var out []notify.MetricSnapshot
	for metricType, dev := range deviations {
		if metricType == exclude {
			continue
		}
		out = append(out, notify.MetricSnapshot{
			MetricType:    dev.MetricType,
			BaselineValue: dev.BaselineValue,
			RecentValue:   dev.RecentValue,
			PercentChange: dev.PercentChange,
		})
	}
	return out
}
