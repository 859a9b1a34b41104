package pattern

import (
	"testing"
	"time"

	"github.com/miyahealth/pattern-engine/internal/config"
)

func adverseEff(metric string, dir config.Direction, day time.Time) EffectiveDeviation {
	return EffectiveDeviation{
		Deviation: &DeviationResult{
			UserID:        testUser,
			MetricType:    metric,
			Date:          day,
			BaselineValue: 7025,
			RecentValue:   4294,
			PercentChange: -0.389,
			Direction:     dir,
		},
		PatternType: config.PatternType(metric, dir),
		Adverse:     true,
	}
}

func benignEff(metric string, dir config.Direction, day time.Time) EffectiveDeviation {
	eff := adverseEff(metric, dir, day)
	eff.Adverse = false
	return eff
}

func TestLevelForStreak(t *testing.T) {
	tests := []struct {
		streak, want int
	}{
		{1, 0}, {2, 0},
		{3, 3}, {6, 3},
		{7, 7}, {13, 7},
		{14, 14}, {20, 14},
		{21, 21}, {30, 21},
	}
	for _, tt := range tests {
		if got := LevelForStreak(tt.streak); got != tt.want {
			t.Errorf("LevelForStreak(%d) = %d, want %d", tt.streak, got, tt.want)
		}
	}
}

func TestAdvanceCreatesEpisode(t *testing.T) {
	day := date("2026-08-29")
	now := day.Add(10 * time.Hour)

	tr := Advance(nil, adverseEff("steps", config.DirectionDrop, day), day, now)

	if tr.Kind != TransitionCreated {
		t.Fatalf("Kind = %s, want created", tr.Kind)
	}
	ep := tr.Episode
	if ep.Status != StatusActive {
		t.Errorf("Status = %s, want active", ep.Status)
	}
	if ep.CurrentLevel != 0 {
		t.Errorf("CurrentLevel = %d, want 0 (streak 1 is below first threshold)", ep.CurrentLevel)
	}
	if !ep.ActiveSince.Equal(day) {
		t.Errorf("ActiveSince = %s, want %s", ep.ActiveSince, day)
	}
	if !ep.LastEvaluatedDate.Equal(day) {
		t.Errorf("LastEvaluatedDate = %s, want %s", ep.LastEvaluatedDate, day)
	}
	if ep.PatternType != "steps_drop" {
		t.Errorf("PatternType = %s, want steps_drop", ep.PatternType)
	}
	if ep.NotificationOwed() {
		t.Error("level-0 episode must not owe a notification")
	}
}

func TestAdvanceIdempotenceGuard(t *testing.T) {
	day := date("2026-08-29")
	now := time.Now().UTC()

	created := Advance(nil, adverseEff("steps", config.DirectionDrop, day), day, now)

	// Re-delivered webhook for the same date must not grow the streak.
	again := Advance(created.Episode, adverseEff("steps", config.DirectionDrop, day), day, now)
	if again.Kind != TransitionNoop {
		t.Fatalf("Kind = %s, want noop", again.Kind)
	}
	if again.Episode.CurrentLevel != created.Episode.CurrentLevel {
		t.Errorf("CurrentLevel changed on replay: %d", again.Episode.CurrentLevel)
	}

	// Same for a date before the last evaluated one.
	earlier := Advance(created.Episode, adverseEff("steps", config.DirectionDrop, day), day.AddDate(0, 0, -1), now)
	if earlier.Kind != TransitionNoop {
		t.Errorf("Kind = %s, want noop for stale date", earlier.Kind)
	}
}

func TestAdvanceNineDayRun(t *testing.T) {
	start := date("2026-08-01")
	now := time.Now().UTC()

	var ep *Episode
	var escalations []int
	for i := 0; i < 9; i++ {
		day := start.AddDate(0, 0, i)
		tr := Advance(ep, adverseEff("steps", config.DirectionDrop, day), day, now)
		ep = tr.Episode

		if tr.Kind == TransitionEscalated {
			escalations = append(escalations, ep.CurrentLevel)
		}
		if ep.CurrentLevel < tr.PreviousLevel {
			t.Fatalf("level de-escalated on day %d: %d -> %d", i+1, tr.PreviousLevel, ep.CurrentLevel)
		}
	}

	// Escalations fire exactly once per threshold: level 3 on day 3,
	// level 7 on day 7.
	if len(escalations) != 2 || escalations[0] != 3 || escalations[1] != 7 {
		t.Errorf("escalations = %v, want [3 7]", escalations)
	}
	if ep.CurrentLevel != 7 {
		t.Errorf("CurrentLevel after 9 days = %d, want 7", ep.CurrentLevel)
	}
	if !ep.ActiveSince.Equal(start) {
		t.Errorf("ActiveSince = %s, want %s", ep.ActiveSince, start)
	}
}

func TestAdvanceResolvesOnBenignDay(t *testing.T) {
	start := date("2026-08-01")
	now := time.Now().UTC()

	var ep *Episode
	for i := 0; i < 4; i++ {
		day := start.AddDate(0, 0, i)
		ep = Advance(ep, adverseEff("steps", config.DirectionDrop, day), day, now).Episode
	}

	day5 := start.AddDate(0, 0, 4)
	tr := Advance(ep, benignEff("steps", config.DirectionDrop, day5), day5, now)
	if tr.Kind != TransitionResolved {
		t.Fatalf("Kind = %s, want resolved", tr.Kind)
	}
	if tr.Episode.Status != StatusResolved {
		t.Errorf("Status = %s, want resolved", tr.Episode.Status)
	}
	if tr.Episode.CurrentLevel != 3 {
		t.Errorf("CurrentLevel = %d, resolution must not rewrite the level", tr.Episode.CurrentLevel)
	}
	if tr.Episode.NotificationOwed() {
		t.Error("resolved episode must not owe a notification")
	}

	// A benign day with no standing episode does nothing.
	none := Advance(nil, benignEff("steps", config.DirectionDrop, day5), day5, now)
	if none.Kind != TransitionNoop || none.Episode != nil {
		t.Errorf("benign day without episode: kind=%s episode=%v, want noop/nil", none.Kind, none.Episode)
	}
}

func TestAdvanceSuppressedDayResolves(t *testing.T) {
	// A suppressed adverse day breaks the streak the same way a benign day
	// does: exercise explains the deviation, so the episode closes.
	start := date("2026-08-01")
	now := time.Now().UTC()

	var ep *Episode
	for i := 0; i < 3; i++ {
		day := start.AddDate(0, 0, i)
		ep = Advance(ep, adverseEff("hrv_ms", config.DirectionDrop, day), day, now).Episode
	}

	day4 := start.AddDate(0, 0, 3)
	eff := adverseEff("hrv_ms", config.DirectionDrop, day4)
	eff.Adverse = false
	eff.Suppressed = true

	tr := Advance(ep, eff, day4, now)
	if tr.Kind != TransitionResolved {
		t.Errorf("Kind = %s, want resolved", tr.Kind)
	}
}

func TestAdvanceDoesNotMutatePrev(t *testing.T) {
	day := date("2026-08-01")
	now := time.Now().UTC()

	ep := Advance(nil, adverseEff("steps", config.DirectionDrop, day), day, now).Episode
	saved := *ep

	next := day.AddDate(0, 0, 1)
	Advance(ep, adverseEff("steps", config.DirectionDrop, next), next, now)

	if *ep != saved {
		t.Error("Advance mutated its input episode")
	}
}

func TestEpisodeSeverity(t *testing.T) {
	tests := []struct {
		level int
		want  string
	}{
		{0, config.SeverityNone},
		{3, config.SeverityWatch},
		{7, config.SeverityAttention},
		{14, config.SeverityCritical},
		{21, config.SeverityCritical},
	}
	for _, tt := range tests {
		ep := &Episode{CurrentLevel: tt.level}
		if got := ep.Severity(); got != tt.want {
			t.Errorf("Severity(level %d) = %s, want %s", tt.level, got, tt.want)
		}
	}
}

func TestNotificationOwed(t *testing.T) {
	three := 3
	tests := []struct {
		name string
		ep   Episode
		want bool
	}{
		{"active above notified level", Episode{Status: StatusActive, CurrentLevel: 7, LastNotifiedLevel: &three}, true},
		{"active never notified at level 3", Episode{Status: StatusActive, CurrentLevel: 3}, true},
		{"active at notified level", Episode{Status: StatusActive, CurrentLevel: 3, LastNotifiedLevel: &three}, false},
		{"active level 0", Episode{Status: StatusActive, CurrentLevel: 0}, false},
		{"resolved", Episode{Status: StatusResolved, CurrentLevel: 7, LastNotifiedLevel: &three}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.ep.NotificationOwed(); got != tt.want {
				t.Errorf("NotificationOwed = %v, want %v", got, tt.want)
			}
		})
	}
}
