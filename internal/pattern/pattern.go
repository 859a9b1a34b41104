// Package pattern implements the deviation calculator, the exercise
// suppression filter, and the alert-episode state machine.
//
// Everything in this package is pure computation over already-loaded data:
// same inputs always produce the same outputs, and nothing here touches the
// database. Durable reads and writes live in internal/engine.
package pattern

import (
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/miyahealth/pattern-engine/internal/config"
)

// ErrInsufficientData is returned when a window lacks the minimum non-null
// coverage, or the baseline is zero. It is an expected condition, not a
// failure: callers must leave durable state untouched when they see it.
var ErrInsufficientData = errors.New("insufficient data for evaluation")

// --------------------------------------------------------------------------
// Types
// --------------------------------------------------------------------------

// Observation is a single per-user per-metric daily reading. A nil Value
// means "no data that day" and is excluded from every average — it is never
// coerced to zero.
type Observation struct {
	Day   time.Time
	Value *float64
}

// DeviationResult is the outcome of comparing the recent window against the
// baseline window for one (user, metric, date). Computed fresh on every
// evaluation; never persisted standalone.
type DeviationResult struct {
	UserID         uuid.UUID
	MetricType     string
	Date           time.Time
	BaselineValue  float64
	RecentValue    float64
	PercentChange  float64
	AbsoluteChange float64
	Direction      config.Direction // drop | rise | none (none = below threshold)
	DaysInBaseline int
	DaysInRecent   int
}

// EffectiveDeviation is a deviation seen through the suppression filter for
// one specific pattern type.
type EffectiveDeviation struct {
	Deviation   *DeviationResult
	PatternType string
	// Adverse is true when the day extends (or opens) an adverse streak.
	Adverse bool
	// Suppressed is true when the raw deviation was adverse but neutralized
	// by a qualifying exercise session.
	Suppressed bool
}

// Episode statuses.
const (
	StatusActive   = "active"
	StatusResolved = "resolved"
)

// Episode is the durable record of one sustained deviation, from first
// detection to resolution.
type Episode struct {
	ID                uuid.UUID
	UserID            uuid.UUID
	MetricType        string
	PatternType       string
	Status            string
	CurrentLevel      int
	ActiveSince       time.Time
	LastEvaluatedDate time.Time
	LastNotifiedLevel *int
	LastNotifiedAt    *time.Time
	SnoozedUntil      *time.Time
	ComputedAt        time.Time
}

// Severity returns the severity bucket for the episode's current level.
func (e *Episode) Severity() string {
	return config.SeverityForLevel(e.CurrentLevel)
}

// NotifiedLevel returns the last notified level, treating "never notified"
// as zero.
func (e *Episode) NotifiedLevel() int {
	if e.LastNotifiedLevel == nil {
		return 0
	}
	return *e.LastNotifiedLevel
}

// NotificationOwed reports whether the episode has escalated past the last
// level a caregiver was told about.
func (e *Episode) NotificationOwed() bool {
	return e.Status == StatusActive && e.CurrentLevel > e.NotifiedLevel()
}

// --------------------------------------------------------------------------
// Date helpers
// --------------------------------------------------------------------------

// Day truncates t to a UTC calendar date. All engine dates are stored and
// compared in this form.
func Day(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// daysBetween returns the number of whole days from a to b (b >= a).
func daysBetween(a, b time.Time) int {
	return int(Day(b).Sub(Day(a)).Hours() / 24)
}
