package notify

import (
	"time"

	"github.com/miyahealth/pattern-engine/internal/config"
	"github.com/miyahealth/pattern-engine/internal/pattern"
)

// Dispatch decision actions.
const (
	ActionEnqueue = "enqueue"
	ActionSkip    = "skip"
)

// Decision is the dispatcher's verdict on one transition.
type Decision struct {
	Action       string
	DeliverAfter *time.Time // set when quiet hours defer delivery
	Reason       string
}

// Decide determines whether a transition owes a notification and what to do
// with it. Pure: all clock and preference inputs are parameters.
//
//   - No notification is owed unless the episode is active and has escalated
//     past last_notified_level. Resolution is silent.
//   - A snoozed episode (or globally snoozed user) is skipped outright; the
//     episode's last_notified_level is left untouched so the same level is
//     still delivered once the snooze lapses and re-evaluation occurs.
//   - During the user's local quiet hours, transitions below the preferred
//     severity floor are enqueued with a deferred-delivery time rather than
//     dropped.
func Decide(tr pattern.Transition, prefs Preferences, now time.Time) Decision {
	ep := tr.Episode
	if ep == nil || !ep.NotificationOwed() {
		return Decision{Action: ActionSkip, Reason: "no notification owed"}
	}

	if snoozed(ep.SnoozedUntil, now) || snoozed(prefs.SnoozedUntil, now) {
		return Decision{Action: ActionSkip, Reason: "snoozed"}
	}

	loc, err := time.LoadLocation(prefs.Timezone)
	if err != nil {
		loc = time.UTC
	}
	local := now.In(loc)

	if inQuietHours(local.Hour(), prefs.QuietHoursStart, prefs.QuietHoursEnd) &&
		config.SeverityRank(ep.Severity()) < config.SeverityRank(prefs.QuietMinLevel) {
		after := quietHoursEnd(local, prefs.QuietHoursEnd, loc)
		return Decision{Action: ActionEnqueue, DeliverAfter: &after, Reason: "deferred past quiet hours"}
	}

	return Decision{Action: ActionEnqueue}
}

func snoozed(until *time.Time, now time.Time) bool {
	return until != nil && until.After(now)
}

// inQuietHours checks membership in [start, end), handling windows that
// wrap midnight.
func inQuietHours(hour, start, end int) bool {
	if start == end {
		return false
	}
	if start < end {
		return hour >= start && hour < end
	}
	return hour >= start || hour < end
}

// quietHoursEnd returns the next moment quiet hours end after local.
func quietHoursEnd(local time.Time, endHour int, loc *time.Location) time.Time {
	end := time.Date(local.Year(), local.Month(), local.Day(), endHour, 0, 0, 0, loc)
	if !end.After(local) {
		end = end.AddDate(0, 0, 1)
	}
	return end
}
