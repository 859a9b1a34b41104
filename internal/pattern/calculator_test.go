package pattern

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/miyahealth/pattern-engine/internal/config"
)

var testUser = uuid.MustParse("8f14e45f-ceea-467f-a8d9-27f15a1f1e44")

func date(s string) time.Time {
	d, err := time.Parse(time.DateOnly, s)
	if err != nil {
		panic(err)
	}
	return d
}

func ptr(v float64) *float64 { return &v }

// series builds observations ending at end: recentVals covers the last
// len(recentVals) days, baselineVals the days before those, oldest first.
func series(end time.Time, baselineVals, recentVals []*float64) []Observation {
	var obs []Observation
	total := len(baselineVals) + len(recentVals)
	all := append(append([]*float64{}, baselineVals...), recentVals...)
	for i, v := range all {
		obs = append(obs, Observation{
			Day:   end.AddDate(0, 0, -(total - 1 - i)),
			Value: v,
		})
	}
	return obs
}

func repeat(v float64, n int) []*float64 {
	out := make([]*float64, n)
	for i := range out {
		out[i] = ptr(v)
	}
	return out
}

func TestWindowStart(t *testing.T) {
	got := WindowStart(date("2026-08-29"))
	want := date("2026-08-06")
	if !got.Equal(want) {
		t.Errorf("WindowStart = %s, want %s", got.Format(time.DateOnly), want.Format(time.DateOnly))
	}
}

func TestComputeStepsDrop(t *testing.T) {
	end := date("2026-08-29")
	obs := series(end, repeat(7025, config.BaselineDays), repeat(4294, config.RecentDays))

	dev, err := Compute(testUser, "steps", end, obs)
	if err != nil {
		t.Fatalf("Compute returned error: %v", err)
	}

	if dev.BaselineValue != 7025 {
		t.Errorf("BaselineValue = %f, want 7025", dev.BaselineValue)
	}
	if dev.RecentValue != 4294 {
		t.Errorf("RecentValue = %f, want 4294", dev.RecentValue)
	}
	wantPct := (4294.0 - 7025.0) / 7025.0
	if math.Abs(dev.PercentChange-wantPct) > 1e-9 {
		t.Errorf("PercentChange = %f, want %f", dev.PercentChange, wantPct)
	}
	if dev.Direction != config.DirectionDrop {
		t.Errorf("Direction = %s, want drop", dev.Direction)
	}
	if dev.DaysInBaseline != config.BaselineDays {
		t.Errorf("DaysInBaseline = %d, want %d", dev.DaysInBaseline, config.BaselineDays)
	}
	if dev.DaysInRecent != config.RecentDays {
		t.Errorf("DaysInRecent = %d, want %d", dev.DaysInRecent, config.RecentDays)
	}
}

func TestComputeNilValuesExcluded(t *testing.T) {
	end := date("2026-08-29")
	baseline := repeat(8000, config.BaselineDays)
	// Nulled days must not drag the average toward zero.
	baseline[2] = nil
	baseline[10] = nil
	recent := []*float64{ptr(6000), nil, ptr(6000)}

	dev, err := Compute(testUser, "steps", end, series(end, baseline, recent))
	if err != nil {
		t.Fatalf("Compute returned error: %v", err)
	}
	if dev.BaselineValue != 8000 {
		t.Errorf("BaselineValue = %f, want 8000 (nil days excluded)", dev.BaselineValue)
	}
	if dev.RecentValue != 6000 {
		t.Errorf("RecentValue = %f, want 6000", dev.RecentValue)
	}
	if dev.DaysInBaseline != config.BaselineDays-2 {
		t.Errorf("DaysInBaseline = %d, want %d", dev.DaysInBaseline, config.BaselineDays-2)
	}
	if dev.DaysInRecent != 2 {
		t.Errorf("DaysInRecent = %d, want 2", dev.DaysInRecent)
	}
}

func TestComputeInsufficientData(t *testing.T) {
	end := date("2026-08-29")

	tests := []struct {
		name     string
		baseline []*float64
		recent   []*float64
	}{
		{
			name:     "baseline below minimum coverage",
			baseline: append(repeat(7000, config.MinBaselineCoverage-1), make([]*float64, config.BaselineDays-config.MinBaselineCoverage+1)...),
			recent:   repeat(5000, config.RecentDays),
		},
		{
			name:     "recent below minimum coverage",
			baseline: repeat(7000, config.BaselineDays),
			recent:   []*float64{nil, nil, ptr(5000)},
		},
		{
			name:     "zero baseline",
			baseline: repeat(0, config.BaselineDays),
			recent:   repeat(5000, config.RecentDays),
		},
		{
			name:     "no observations at all",
			baseline: nil,
			recent:   nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Compute(testUser, "steps", end, series(end, tt.baseline, tt.recent))
			if !errors.Is(err, ErrInsufficientData) {
				t.Errorf("err = %v, want ErrInsufficientData", err)
			}
		})
	}
}

func TestComputeDirectionThresholds(t *testing.T) {
	end := date("2026-08-29")

	tests := []struct {
		name     string
		metric   string
		baseline float64
		recent   float64
		want     config.Direction
	}{
		{"steps 10% drop below threshold", "steps", 10000, 9000, config.DirectionNone},
		{"steps exactly 20% drop", "steps", 10000, 8000, config.DirectionDrop},
		{"sleep 25% rise", "sleep_minutes", 400, 500, config.DirectionRise},
		{"hrv 16% drop", "hrv_ms", 50, 42, config.DirectionDrop},
		{"hrv 14% drop below threshold", "hrv_ms", 100, 86, config.DirectionNone},
		{"resting hr 13% rise", "resting_hr", 60, 68, config.DirectionRise},
		{"resting hr 5% rise below threshold", "resting_hr", 60, 63, config.DirectionNone},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			obs := series(end, repeat(tt.baseline, config.BaselineDays), repeat(tt.recent, config.RecentDays))
			dev, err := Compute(testUser, tt.metric, end, obs)
			if err != nil {
				t.Fatalf("Compute returned error: %v", err)
			}
			if dev.Direction != tt.want {
				t.Errorf("Direction = %s, want %s", dev.Direction, tt.want)
			}
		})
	}
}

func TestComputeIgnoresOutOfWindowDays(t *testing.T) {
	end := date("2026-08-29")
	obs := series(end, repeat(7000, config.BaselineDays), repeat(7000, config.RecentDays))
	// A wild value the day before the window opens must not shift the baseline.
	obs = append(obs, Observation{Day: WindowStart(end).AddDate(0, 0, -1), Value: ptr(1)})

	dev, err := Compute(testUser, "steps", end, obs)
	if err != nil {
		t.Fatalf("Compute returned error: %v", err)
	}
	if dev.BaselineValue != 7000 {
		t.Errorf("BaselineValue = %f, want 7000", dev.BaselineValue)
	}
	if dev.DaysInBaseline != config.BaselineDays {
		t.Errorf("DaysInBaseline = %d, want %d", dev.DaysInBaseline, config.BaselineDays)
	}
}

func TestComputeUnknownMetric(t *testing.T) {
	_, err := Compute(testUser, "blood_oxygen", date("2026-08-29"), nil)
	if err == nil || errors.Is(err, ErrInsufficientData) {
		t.Errorf("err = %v, want unknown-metric error", err)
	}
}
