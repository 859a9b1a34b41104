package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/miyahealth/pattern-engine/internal/config"
	"github.com/miyahealth/pattern-engine/internal/pattern"
)

// SweepResult tracks the outcome of a full recompute sweep.
type SweepResult struct {
	UsersFound     int
	UsersProcessed int
	UsersFailed    int
	Duration       time.Duration
	Errors         []string
}

// Summary returns a human-readable summary.
func (r *SweepResult) Summary() string {
	return fmt.Sprintf("users=%d processed=%d failed=%d dur=%s",
		r.UsersFound, r.UsersProcessed, r.UsersFailed, r.Duration.Round(time.Second))
}

// Sweep re-evaluates every user with observations for the given date. This
// is the scheduled daily recompute; it may race with webhook-triggered
// evaluations for the same keys, which the idempotence guard absorbs.
// Cross-user work is independent and runs on a worker pool.
func Sweep(ctx context.Context, pool *pgxpool.Pool, cfg *config.Config, date time.Time, workers int, logger *slog.Logger) SweepResult {
	start := time.Now()
	var result SweepResult
	date = pattern.Day(date)

	users, err := usersWithObservations(ctx, pool, date)
	if err != nil {
		result.Errors = append(result.Errors, err.Error())
		result.Duration = time.Since(start)
		return result
	}

	result.UsersFound = len(users)
	if len(users) == 0 {
		logger.Info("No users with observations to sweep", "date", date)
		result.Duration = time.Since(start)
		return result
	}
	logger.Info("Sweep starting", "date", date, "users", len(users))

	if workers < 1 {
		workers = 1
	}
	if workers > len(users) {
		workers = len(users)
	}

	ch := make(chan uuid.UUID, len(users))
	for _, u := range users {
		ch <- u
	}
	close(ch)

	var mu sync.Mutex
	var wg sync.WaitGroup

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for userID := range ch {
				err := EvaluateUser(ctx, pool, cfg, userID, date, logger)

				mu.Lock()
				if err != nil {
					result.UsersFailed++
					result.Errors = append(result.Errors, fmt.Sprintf("user %s: %s", userID, err))
				} else {
					result.UsersProcessed++
				}
				mu.Unlock()
			}
		}()
	}

	wg.Wait()
	result.Duration = time.Since(start)

	logger.Info("Sweep complete", "summary", result.Summary())
	return result
}

// Backfill re-evaluates a single user over a date range, strictly forward in
// date order so the streak arithmetic sees days in sequence.
func Backfill(ctx context.Context, pool *pgxpool.Pool, cfg *config.Config, userID uuid.UUID, from, to time.Time, logger *slog.Logger) error {
	from, to = pattern.Day(from), pattern.Day(to)
	if to.Before(from) {
		return fmt.Errorf("backfill: to %s precedes from %s", to.Format(time.DateOnly), from.Format(time.DateOnly))
	}

	for d := from; !d.After(to); d = d.AddDate(0, 0, 1) {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := EvaluateUser(ctx, pool, cfg, userID, d, logger); err != nil {
			return fmt.Errorf("backfill %s: %w", d.Format(time.DateOnly), err)
		}
	}
	return nil
}

// usersWithObservations returns the distinct users with any observation row
// for the date.
func usersWithObservations(ctx context.Context, pool *pgxpool.Pool, date time.Time) ([]uuid.UUID, error) {
	rows, err := pool.Query(ctx, "observation_users_for_day", date)
	if err != nil {
		return nil, fmt.Errorf("users with observations: %w", err)
	}
	defer rows.Close()

	var users []uuid.UUID
	for rows.Next() {
		var u uuid.UUID
		if err := rows.Scan(&u); err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		users = append(users, u)
	}
	return users, rows.Err()
}
