package notify

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/miyahealth/pattern-engine/internal/config"
	"github.com/miyahealth/pattern-engine/internal/pattern"
)

var testUser = uuid.MustParse("8f14e45f-ceea-467f-a8d9-27f15a1f1e44")

func defaultPrefs() Preferences {
	return Preferences{
		Timezone:        "UTC",
		QuietHoursStart: 22,
		QuietHoursEnd:   7,
		QuietMinLevel:   config.SeverityCritical,
	}
}

func escalatedTransition(level int) pattern.Transition {
	return pattern.Transition{
		Kind: pattern.TransitionEscalated,
		Episode: &pattern.Episode{
			ID:           uuid.New(),
			UserID:       testUser,
			MetricType:   "steps",
			PatternType:  "steps_drop",
			Status:       pattern.StatusActive,
			CurrentLevel: level,
			ActiveSince:  time.Date(2026, 8, 20, 0, 0, 0, 0, time.UTC),
		},
		Effective: pattern.EffectiveDeviation{
			Deviation: &pattern.DeviationResult{
				UserID:        testUser,
				MetricType:    "steps",
				BaselineValue: 7025,
				RecentValue:   4294,
				PercentChange: -0.3887,
				Direction:     config.DirectionDrop,
			},
			PatternType: "steps_drop",
			Adverse:     true,
		},
	}
}

func TestDecideEnqueuesEscalation(t *testing.T) {
	now := time.Date(2026, 8, 29, 14, 0, 0, 0, time.UTC) // daytime
	d := Decide(escalatedTransition(3), defaultPrefs(), now)
	if d.Action != ActionEnqueue {
		t.Fatalf("Action = %s, want enqueue", d.Action)
	}
	if d.DeliverAfter != nil {
		t.Errorf("DeliverAfter = %v, want nil outside quiet hours", d.DeliverAfter)
	}
}

func TestDecideSkipsWhenNotOwed(t *testing.T) {
	now := time.Date(2026, 8, 29, 14, 0, 0, 0, time.UTC)

	resolved := escalatedTransition(7)
	resolved.Episode.Status = pattern.StatusResolved
	if d := Decide(resolved, defaultPrefs(), now); d.Action != ActionSkip {
		t.Errorf("resolved episode: Action = %s, want skip (resolution is silent)", d.Action)
	}

	three := 3
	alreadyTold := escalatedTransition(3)
	alreadyTold.Episode.LastNotifiedLevel = &three
	if d := Decide(alreadyTold, defaultPrefs(), now); d.Action != ActionSkip {
		t.Errorf("already-notified level: Action = %s, want skip", d.Action)
	}

	if d := Decide(escalatedTransition(0), defaultPrefs(), now); d.Action != ActionSkip {
		t.Errorf("level 0: Action = %s, want skip", d.Action)
	}
}

func TestDecideSnooze(t *testing.T) {
	now := time.Date(2026, 8, 29, 14, 0, 0, 0, time.UTC)
	future := now.AddDate(0, 0, 3)
	past := now.AddDate(0, 0, -1)

	tr := escalatedTransition(7)
	tr.Episode.SnoozedUntil = &future
	if d := Decide(tr, defaultPrefs(), now); d.Action != ActionSkip {
		t.Errorf("episode snooze: Action = %s, want skip", d.Action)
	}

	prefs := defaultPrefs()
	prefs.SnoozedUntil = &future
	if d := Decide(escalatedTransition(7), prefs, now); d.Action != ActionSkip {
		t.Errorf("global snooze: Action = %s, want skip", d.Action)
	}

	lapsed := escalatedTransition(7)
	lapsed.Episode.SnoozedUntil = &past
	if d := Decide(lapsed, defaultPrefs(), now); d.Action != ActionEnqueue {
		t.Errorf("lapsed snooze: Action = %s, want enqueue", d.Action)
	}
}

func TestDecideQuietHours(t *testing.T) {
	// 23:30 UTC, quiet hours 22-07, watch-level episode, critical floor.
	now := time.Date(2026, 8, 29, 23, 30, 0, 0, time.UTC)

	d := Decide(escalatedTransition(3), defaultPrefs(), now)
	if d.Action != ActionEnqueue {
		t.Fatalf("Action = %s, want enqueue (deferred, not dropped)", d.Action)
	}
	if d.DeliverAfter == nil {
		t.Fatal("DeliverAfter = nil, want quiet-hours end")
	}
	want := time.Date(2026, 8, 30, 7, 0, 0, 0, time.UTC)
	if !d.DeliverAfter.Equal(want) {
		t.Errorf("DeliverAfter = %v, want %v", d.DeliverAfter, want)
	}

	// Critical severity meets the floor and goes out immediately.
	crit := Decide(escalatedTransition(14), defaultPrefs(), now)
	if crit.Action != ActionEnqueue || crit.DeliverAfter != nil {
		t.Errorf("critical during quiet hours: action=%s deliverAfter=%v, want immediate enqueue", crit.Action, crit.DeliverAfter)
	}
}

func TestDecideQuietHoursEarlyMorning(t *testing.T) {
	// 03:00 is inside a 22-07 window that wraps midnight; delivery defers
	// to 07:00 the same day.
	now := time.Date(2026, 8, 29, 3, 0, 0, 0, time.UTC)
	d := Decide(escalatedTransition(7), defaultPrefs(), now)
	if d.DeliverAfter == nil {
		t.Fatal("DeliverAfter = nil, want same-day quiet-hours end")
	}
	want := time.Date(2026, 8, 29, 7, 0, 0, 0, time.UTC)
	if !d.DeliverAfter.Equal(want) {
		t.Errorf("DeliverAfter = %v, want %v", d.DeliverAfter, want)
	}
}

func TestDecideUnknownTimezoneFallsBackToUTC(t *testing.T) {
	prefs := defaultPrefs()
	prefs.Timezone = "Not/AZone"
	now := time.Date(2026, 8, 29, 23, 30, 0, 0, time.UTC)
	d := Decide(escalatedTransition(3), prefs, now)
	if d.DeliverAfter == nil {
		t.Error("bad timezone must fall back to UTC quiet-hours evaluation")
	}
}

func TestInQuietHours(t *testing.T) {
	tests := []struct {
		hour, start, end int
		want             bool
	}{
		{23, 22, 7, true},
		{3, 22, 7, true},
		{7, 22, 7, false}, // end is exclusive
		{12, 22, 7, false},
		{2, 1, 5, true},
		{5, 1, 5, false},
		{10, 9, 9, false}, // degenerate window disables quiet hours
	}
	for _, tt := range tests {
		if got := inQuietHours(tt.hour, tt.start, tt.end); got != tt.want {
			t.Errorf("inQuietHours(%d, %d, %d) = %v, want %v", tt.hour, tt.start, tt.end, got, tt.want)
		}
	}
}

func TestBuildEvidence(t *testing.T) {
	tr := escalatedTransition(7)
	supporting := []MetricSnapshot{{
		MetricType: "sleep_minutes", BaselineValue: 420, RecentValue: 350, PercentChange: -0.1667,
	}}

	raw, err := BuildEvidence(tr, supporting)
	if err != nil {
		t.Fatalf("BuildEvidence returned error: %v", err)
	}

	var ev Evidence
	if err := json.Unmarshal(raw, &ev); err != nil {
		t.Fatalf("payload is not valid JSON: %v", err)
	}
	if ev.PatternType != "steps_drop" {
		t.Errorf("PatternType = %s, want steps_drop", ev.PatternType)
	}
	if ev.CurrentLevel != 7 || ev.Severity != config.SeverityAttention {
		t.Errorf("level/severity = %d/%s, want 7/attention", ev.CurrentLevel, ev.Severity)
	}
	if len(ev.SupportingMetrics) != 2 {
		t.Fatalf("SupportingMetrics = %d entries, want 2 (trigger + 1)", len(ev.SupportingMetrics))
	}
	if ev.SupportingMetrics[0].MetricType != "steps" {
		t.Errorf("first snapshot = %s, want the triggering metric", ev.SupportingMetrics[0].MetricType)
	}
	if want := "Daily Steps down 39% from baseline for 7 days"; ev.Message != want {
		t.Errorf("Message = %q, want %q", ev.Message, want)
	}
	if !strings.Contains(string(raw), "2026-08-20") {
		t.Errorf("payload missing active_since date: %s", raw)
	}
}
