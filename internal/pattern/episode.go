package pattern

import (
	"time"

	"github.com/google/uuid"

	"github.com/miyahealth/pattern-engine/internal/config"
)

// Transition kinds returned by Advance.
const (
	TransitionNoop      = "noop"      // idempotence guard hit, or nothing to do
	TransitionCreated   = "created"   // new episode opened (below first threshold)
	TransitionExtended  = "extended"  // streak grew, level unchanged
	TransitionEscalated = "escalated" // streak crossed a level threshold
	TransitionResolved  = "resolved"  // streak broke, episode closed
)

// Transition is the outcome of advancing one (user, metric, pattern) for one
// evaluation date.
type Transition struct {
	Kind          string
	Episode       *Episode // resulting state; nil when no episode exists
	PreviousLevel int
	Effective     EffectiveDeviation
}

// LevelForStreak returns the highest level threshold not exceeding the
// streak length, or 0 when the streak is still below the first threshold.
func LevelForStreak(streak int) int {
	level := 0
	for _, t := range config.LevelThresholds {
		if streak >= t {
			level = t
		}
	}
	return level
}

// Advance is the single place episode transitions happen. It consumes the
// effective (post-suppression) deviation for one calendar day and returns
// the resulting state without mutating prev.
//
// Rules, evaluated once per (user, metric, pattern, date):
//
//  1. Idempotence guard: a date at or before last_evaluated_date is a no-op,
//     which makes re-invocation from retried webhooks or backfills safe.
//  2. A non-adverse day (below threshold, or suppressed) resolves an active
//     episode immediately; with no episode it does nothing.
//  3. An adverse day opens an episode at streak 1, or extends the streak of
//     the active one and recomputes the level from the streak length.
//
// Escalation is monotonic by construction: the streak only grows while
// active, and de-escalation happens only through full resolution.
func Advance(prev *Episode, eff EffectiveDeviation, date, now time.Time) Transition {
	date = Day(date)

	// Rule 1: already evaluated this date (or a later one).
	if prev != nil && !prev.LastEvaluatedDate.Before(date) {
		return Transition{Kind: TransitionNoop, Episode: prev, PreviousLevel: prev.CurrentLevel, Effective: eff}
	}

	// Rule 2: streak broken.
	if !eff.Adverse {
		if prev == nil {
			return Transition{Kind: TransitionNoop, Effective: eff}
		}
		next := *prev
		next.Status = StatusResolved
		next.LastEvaluatedDate = date
		next.ComputedAt = now
		return Transition{Kind: TransitionResolved, Episode: &next, PreviousLevel: prev.CurrentLevel, Effective: eff}
	}

	// Rule 3: adverse day.
	if prev == nil {
		ep := &Episode{
			ID:                uuid.New(),
			UserID:            eff.Deviation.UserID,
			MetricType:        eff.Deviation.MetricType,
			PatternType:       eff.PatternType,
			Status:            StatusActive,
			CurrentLevel:      LevelForStreak(1),
			ActiveSince:       date,
			LastEvaluatedDate: date,
			ComputedAt:        now,
		}
		return Transition{Kind: TransitionCreated, Episode: ep, Effective: eff}
	}

	next := *prev
	streak := daysBetween(prev.ActiveSince, date) + 1
	next.CurrentLevel = LevelForStreak(streak)
	next.LastEvaluatedDate = date
	next.ComputedAt = now

	kind := TransitionExtended
	if next.CurrentLevel > prev.CurrentLevel {
		kind = TransitionEscalated
	}
	return Transition{Kind: kind, Episode: &next, PreviousLevel: prev.CurrentLevel, Effective: eff}
}
