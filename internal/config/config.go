// Package config provides centralized configuration loaded from environment
// variables. Shared by both cmd/api and cmd/engine.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// --------------------------------------------------------------------------
// Metric registry — the four tracked wearable metrics and their pattern rules
// --------------------------------------------------------------------------

// Direction is the sign of a deviation relative to baseline.
type Direction string

const (
	DirectionDrop Direction = "drop"
	DirectionRise Direction = "rise"
	DirectionNone Direction = "none"
)

// MetricConfig describes how deviations of one metric type are classified.
type MetricConfig struct {
	ID   string
	Name string
	Unit string
	// AdverseDirections lists which movement directions open an episode.
	// Sleep tracks both; the others track exactly one.
	AdverseDirections []Direction
	// PercentThreshold is the minimum |percent change| considered significant.
	PercentThreshold float64
	// RecoveryMetric marks metrics subject to exercise suppression.
	RecoveryMetric bool
}

var MetricRegistry = map[string]MetricConfig{
	"steps": {
		ID: "steps", Name: "Daily Steps", Unit: "steps",
		AdverseDirections: []Direction{DirectionDrop},
		PercentThreshold:  0.20,
	},
	"sleep_minutes": {
		ID: "sleep_minutes", Name: "Sleep Duration", Unit: "min",
		AdverseDirections: []Direction{DirectionDrop, DirectionRise},
		PercentThreshold:  0.20,
	},
	"hrv_ms": {
		ID: "hrv_ms", Name: "Heart Rate Variability", Unit: "ms",
		AdverseDirections: []Direction{DirectionDrop},
		PercentThreshold:  0.15,
		RecoveryMetric:    true,
	},
	"resting_hr": {
		ID: "resting_hr", Name: "Resting Heart Rate", Unit: "bpm",
		AdverseDirections: []Direction{DirectionRise},
		PercentThreshold:  0.10,
		RecoveryMetric:    true,
	},
}

// IsValidMetricType reports whether s names a tracked metric.
func IsValidMetricType(s string) bool {
	_, ok := MetricRegistry[s]
	return ok
}

// PatternType builds the canonical pattern identifier, e.g. "steps_drop".
func PatternType(metricType string, dir Direction) string {
	return metricType + "_" + string(dir)
}

// --------------------------------------------------------------------------
// Window and level constants
// --------------------------------------------------------------------------

const (
	// BaselineDays is the maximum lookback for the baseline window,
	// counted strictly before the recent window.
	BaselineDays = 21
	// RecentDays is the size of the recent comparison window.
	RecentDays = 3
	// MinBaselineCoverage is the minimum non-null days required in the
	// baseline window for it to be valid.
	MinBaselineCoverage = 7
	// MinRecentCoverage is the minimum non-null days required in the
	// recent window for it to be valid.
	MinRecentCoverage = 2
)

// LevelThresholds are the consecutive-day counts at which an episode
// escalates. An episode below the first threshold has level 0 and does not
// notify.
var LevelThresholds = []int{3, 7, 14, 21}

// Severity buckets derived from an episode level.
const (
	SeverityNone      = "none"
	SeverityWatch     = "watch"     // level 3-6
	SeverityAttention = "attention" // level 7-13
	SeverityCritical  = "critical"  // level >= 14
)

// SeverityForLevel maps an episode level to its severity bucket.
func SeverityForLevel(level int) string {
	switch {
	case level >= 14:
		return SeverityCritical
	case level >= 7:
		return SeverityAttention
	case level >= 3:
		return SeverityWatch
	default:
		return SeverityNone
	}
}

// SeverityRank orders severities for quiet-hours comparisons.
func SeverityRank(severity string) int {
	switch severity {
	case SeverityCritical:
		return 3
	case SeverityAttention:
		return 2
	case SeverityWatch:
		return 1
	default:
		return 0
	}
}

// --------------------------------------------------------------------------
// Config struct — populated from environment variables
// --------------------------------------------------------------------------

type Config struct {
	// Database
	DatabaseURL    string
	DBPoolMinConns int
	DBPoolMaxConns int
	DBPoolMaxLife  time.Duration

	// API server
	APIHost     string
	APIPort     int
	Environment string // development, staging, production
	Debug       bool

	// CORS
	CORSAllowOrigins []string

	// Rate limiting
	RateLimitEnabled  bool
	RateLimitRequests int
	RateLimitWindow   time.Duration

	// Notification dispatch
	DispatchInterval  time.Duration
	DispatchBatchSize int
	TaskMaxAge        time.Duration
	PushCredentials   string // push transport credentials file; empty disables sending

	// Quiet-hours defaults applied when a user has no stored preferences.
	DefaultQuietStartHour int
	DefaultQuietEndHour   int
	DefaultQuietMinLevel  string
	DefaultTimezone       string

	// Sweep
	SweepWorkers int

	// Cache
	CacheEnabled bool
}

// Load reads configuration from environment variables with sensible defaults.
func Load() (*Config, error) {
	dbURL := envOr("DATABASE_URL", envOr("SUPABASE_DB_URL", ""))
	if dbURL == "" {
		return nil, fmt.Errorf("DATABASE_URL or SUPABASE_DB_URL must be set")
	}

	return &Config{
		DatabaseURL:    dbURL,
		DBPoolMinConns: envInt("DB_POOL_MIN_CONNS", 2),
		DBPoolMaxConns: envInt("DB_POOL_MAX_CONNS", 10),
		DBPoolMaxLife:  time.Duration(envInt("DB_POOL_MAX_LIFE_MINUTES", 30)) * time.Minute,

		APIHost:     envOr("API_HOST", "0.0.0.0"),
		APIPort:     envInt("API_PORT", envInt("PORT", 8000)),
		Environment: envOr("ENVIRONMENT", "development"),
		Debug:       envBool("DEBUG", false),

		CORSAllowOrigins: envList("CORS_ALLOW_ORIGINS", []string{
			"http://localhost:3000",
			"http://localhost:5173",
		}),

		RateLimitEnabled:  envBool("RATE_LIMIT_ENABLED", true),
		RateLimitRequests: envInt("RATE_LIMIT_REQUESTS", 100),
		RateLimitWindow:   time.Duration(envInt("RATE_LIMIT_WINDOW", 60)) * time.Second,

		DispatchInterval:  time.Duration(envInt("DISPATCH_INTERVAL_SECONDS", 30)) * time.Second,
		DispatchBatchSize: envInt("DISPATCH_BATCH_SIZE", 100),
		TaskMaxAge:        time.Duration(envInt("TASK_MAX_AGE_HOURS", 24)) * time.Hour,
		PushCredentials:   envOr("PUSH_CREDENTIALS_FILE", ""),

		DefaultQuietStartHour: envInt("QUIET_HOURS_START", 22),
		DefaultQuietEndHour:   envInt("QUIET_HOURS_END", 7),
		DefaultQuietMinLevel:  envOr("QUIET_HOURS_MIN_LEVEL", SeverityCritical),
		DefaultTimezone:       envOr("DEFAULT_TIMEZONE", "UTC"),

		SweepWorkers: envInt("SWEEP_WORKERS", 4),

		CacheEnabled: envBool("CACHE_ENABLED", true),
	}, nil
}

// IsProduction returns true if running in production environment.
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

// --------------------------------------------------------------------------
// Env helpers
// --------------------------------------------------------------------------

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		b, err := strconv.ParseBool(v)
		if err == nil {
			return b
		}
	}
	return fallback
}

func envList(key string, fallback []string) []string {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		result := make([]string, 0, len(parts))
		for _, p := range parts {
			if trimmed := strings.TrimSpace(p); trimmed != "" {
				result = append(result, trimmed)
			}
		}
		if len(result) > 0 {
			return result
		}
	}
	return fallback
}
