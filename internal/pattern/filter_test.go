package pattern

import (
	"testing"

	"github.com/miyahealth/pattern-engine/internal/config"
)

func TestFilter(t *testing.T) {
	dev := func(metric string, dir config.Direction) *DeviationResult {
		return &DeviationResult{UserID: testUser, MetricType: metric, Direction: dir}
	}

	tests := []struct {
		name           string
		dev            *DeviationResult
		dir            config.Direction
		hadExercise    bool
		wantAdverse    bool
		wantSuppressed bool
	}{
		{
			name: "hrv drop suppressed by exercise",
			dev:  dev("hrv_ms", config.DirectionDrop), dir: config.DirectionDrop,
			hadExercise: true, wantAdverse: false, wantSuppressed: true,
		},
		{
			name: "hrv drop without exercise stays adverse",
			dev:  dev("hrv_ms", config.DirectionDrop), dir: config.DirectionDrop,
			hadExercise: false, wantAdverse: true, wantSuppressed: false,
		},
		{
			name: "resting hr rise suppressed by exercise",
			dev:  dev("resting_hr", config.DirectionRise), dir: config.DirectionRise,
			hadExercise: true, wantAdverse: false, wantSuppressed: true,
		},
		{
			name: "steps drop unaffected by exercise",
			dev:  dev("steps", config.DirectionDrop), dir: config.DirectionDrop,
			hadExercise: true, wantAdverse: true, wantSuppressed: false,
		},
		{
			name: "sleep drop unaffected by exercise",
			dev:  dev("sleep_minutes", config.DirectionDrop), dir: config.DirectionDrop,
			hadExercise: true, wantAdverse: true, wantSuppressed: false,
		},
		{
			name: "benign day stays benign with exercise",
			dev:  dev("hrv_ms", config.DirectionNone), dir: config.DirectionDrop,
			hadExercise: true, wantAdverse: false, wantSuppressed: false,
		},
		{
			name: "direction mismatch is not adverse",
			dev:  dev("sleep_minutes", config.DirectionRise), dir: config.DirectionDrop,
			hadExercise: false, wantAdverse: false, wantSuppressed: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			eff := Filter(tt.dev, tt.dir, tt.hadExercise)
			if eff.Adverse != tt.wantAdverse {
				t.Errorf("Adverse = %v, want %v", eff.Adverse, tt.wantAdverse)
			}
			if eff.Suppressed != tt.wantSuppressed {
				t.Errorf("Suppressed = %v, want %v", eff.Suppressed, tt.wantSuppressed)
			}
			if want := config.PatternType(tt.dev.MetricType, tt.dir); eff.PatternType != want {
				t.Errorf("PatternType = %s, want %s", eff.PatternType, want)
			}
		})
	}
}
