// Command engine is the Miya pattern engine operator CLI.
//
// Usage:
//
//	miya-engine migrate
//	miya-engine evaluate --user 8f14e45f-... --date 2026-08-29
//	miya-engine sweep --date 2026-08-29 --workers 4
//	miya-engine backfill --user 8f14e45f-... --from 2026-08-01 --to 2026-08-29
//	miya-engine drain --batch 200
//	miya-engine snooze --episode 2c1743a3-... --days 7
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/miyahealth/pattern-engine/internal/config"
	"github.com/miyahealth/pattern-engine/internal/db"
	"github.com/miyahealth/pattern-engine/internal/engine"
	"github.com/miyahealth/pattern-engine/internal/notify"
)

var logger = slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))

func main() {
	// Load .env if present
	_ = godotenv.Load(".env")

	root := &cobra.Command{
		Use:   "miya-engine",
		Short: "Miya pattern alert engine operator CLI",
	}

	root.AddCommand(migrateCmd())
	root.AddCommand(evaluateCmd())
	root.AddCommand(sweepCmd())
	root.AddCommand(backfillCmd())
	root.AddCommand(drainCmd())
	root.AddCommand(snoozeCmd())

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

// --------------------------------------------------------------------------
// migrate command
// --------------------------------------------------------------------------

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply the database schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
			defer cancel()

			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			if err := db.Migrate(ctx, cfg.DatabaseURL); err != nil {
				return err
			}
			logger.Info("Schema applied")
			return nil
		},
	}
}

// --------------------------------------------------------------------------
// evaluate command
// --------------------------------------------------------------------------

func evaluateCmd() *cobra.Command {
	var userFlag, metricFlag, dateFlag string
	cmd := &cobra.Command{
		Use:   "evaluate",
		Short: "Evaluate one user's patterns for a date",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runEngine(func(ctx context.Context, cfg *config.Config, pool *db.Pool) error {
				userID, err := uuid.Parse(userFlag)
				if err != nil {
					return fmt.Errorf("--user must be a UUID: %w", err)
				}
				date, err := parseDateFlag(dateFlag)
				if err != nil {
					return err
				}
				if metricFlag != "" {
					if !config.IsValidMetricType(metricFlag) {
						return fmt.Errorf("unknown metric type %q", metricFlag)
					}
					return engine.EvaluateUserMetric(ctx, pool.Pool, cfg, userID, metricFlag, date, logger)
				}
				return engine.EvaluateUser(ctx, pool.Pool, cfg, userID, date, logger)
			})
		},
	}
	cmd.Flags().StringVar(&userFlag, "user", "", "User ID (UUID)")
	cmd.Flags().StringVar(&metricFlag, "metric", "", "Metric type (default: all)")
	cmd.Flags().StringVar(&dateFlag, "date", "", "Date YYYY-MM-DD (default: today UTC)")
	_ = cmd.MarkFlagRequired("user")
	return cmd
}

// --------------------------------------------------------------------------
// sweep command
// --------------------------------------------------------------------------

func sweepCmd() *cobra.Command {
	var dateFlag string
	var workers int
	cmd := &cobra.Command{
		Use:   "sweep",
		Short: "Evaluate every user with observations for a date",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runEngine(func(ctx context.Context, cfg *config.Config, pool *db.Pool) error {
				date, err := parseDateFlag(dateFlag)
				if err != nil {
					return err
				}
				start := time.Now()
				result := engine.Sweep(ctx, pool.Pool, cfg, date, workers, logger)
				logger.Info("Sweep finished",
					"duration", time.Since(start).Round(time.Millisecond),
					"summary", result.Summary())
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&dateFlag, "date", "", "Date YYYY-MM-DD (default: today UTC)")
	cmd.Flags().IntVar(&workers, "workers", 4, "Concurrent user evaluations")
	return cmd
}

// --------------------------------------------------------------------------
// backfill command
// --------------------------------------------------------------------------

func backfillCmd() *cobra.Command {
	var userFlag, fromFlag, toFlag string
	cmd := &cobra.Command{
		Use:   "backfill",
		Short: "Re-evaluate one user over a date range, oldest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runEngine(func(ctx context.Context, cfg *config.Config, pool *db.Pool) error {
				userID, err := uuid.Parse(userFlag)
				if err != nil {
					return fmt.Errorf("--user must be a UUID: %w", err)
				}
				from, err := time.Parse(time.DateOnly, fromFlag)
				if err != nil {
					return fmt.Errorf("--from must be YYYY-MM-DD: %w", err)
				}
				to, err := time.Parse(time.DateOnly, toFlag)
				if err != nil {
					return fmt.Errorf("--to must be YYYY-MM-DD: %w", err)
				}
				return engine.Backfill(ctx, pool.Pool, cfg, userID, from, to, logger)
			})
		},
	}
	cmd.Flags().StringVar(&userFlag, "user", "", "User ID (UUID)")
	cmd.Flags().StringVar(&fromFlag, "from", "", "Start date YYYY-MM-DD")
	cmd.Flags().StringVar(&toFlag, "to", "", "End date YYYY-MM-DD")
	_ = cmd.MarkFlagRequired("user")
	_ = cmd.MarkFlagRequired("from")
	_ = cmd.MarkFlagRequired("to")
	return cmd
}

// --------------------------------------------------------------------------
// drain command
// --------------------------------------------------------------------------

func drainCmd() *cobra.Command {
	var batch int
	cmd := &cobra.Command{
		Use:   "drain",
		Short: "Run one notification delivery batch",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runEngine(func(ctx context.Context, cfg *config.Config, pool *db.Pool) error {
				sender := notify.NewPushSender(cfg.PushCredentials, logger)
				res, err := notify.Drain(ctx, pool.Pool, sender, cfg, batch, cfg.TaskMaxAge, logger)
				if err != nil {
					return err
				}
				logger.Info("Drain finished",
					"processed", res.Processed, "sent", res.Sent, "skipped", res.Skipped,
					"failed", res.Failed, "expired", res.Expired)
				return nil
			})
		},
	}
	cmd.Flags().IntVar(&batch, "batch", 100, "Max tasks per batch")
	return cmd
}

// --------------------------------------------------------------------------
// snooze command
// --------------------------------------------------------------------------

func snoozeCmd() *cobra.Command {
	var episodeFlag string
	var days int
	cmd := &cobra.Command{
		Use:   "snooze",
		Short: "Snooze an episode's notifications",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runEngine(func(ctx context.Context, cfg *config.Config, pool *db.Pool) error {
				episodeID, err := uuid.Parse(episodeFlag)
				if err != nil {
					return fmt.Errorf("--episode must be a UUID: %w", err)
				}
				until, err := engine.Snooze(ctx, pool.Pool, episodeID, days)
				if err != nil {
					return err
				}
				logger.Info("Episode snoozed", "episode_id", episodeID, "until", until.Format(time.DateOnly))
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&episodeFlag, "episode", "", "Episode ID (UUID)")
	cmd.Flags().IntVar(&days, "days", 7, "Days to snooze (1-90)")
	_ = cmd.MarkFlagRequired("episode")
	return cmd
}

// --------------------------------------------------------------------------
// shared setup
// --------------------------------------------------------------------------

func runEngine(fn func(ctx context.Context, cfg *config.Config, pool *db.Pool) error) error {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	pool, err := db.New(ctx, cfg)
	if err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}
	defer pool.Close()

	return fn(ctx, cfg, pool)
}

func parseDateFlag(s string) (time.Time, error) {
	if s == "" {
		now := time.Now().UTC()
		return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC), nil
	}
	d, err := time.Parse(time.DateOnly, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("date must be YYYY-MM-DD: %w", err)
	}
	return d, nil
}
