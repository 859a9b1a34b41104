package pattern

import "github.com/miyahealth/pattern-engine/internal/config"

// Filter applies the exercise suppression rule to a deviation for one
// pattern direction and returns the effective signal the state machine
// consumes.
//
// Suppression applies only to recovery-oriented metrics (hrv_ms,
// resting_hr): a qualifying exercise session explains elevated
// cardiovascular load, so the day must not count toward a poor-recovery
// streak. Suppression only ever neutralizes; a day that was benign stays
// benign regardless of the exercise record.
func Filter(dev *DeviationResult, dir config.Direction, hadExercise bool) EffectiveDeviation {
	mc := config.MetricRegistry[dev.MetricType]

	adverse := dev.Direction == dir
	suppressed := false
	if adverse && mc.RecoveryMetric && hadExercise {
		adverse = false
		suppressed = true
	}

	return EffectiveDeviation{
		Deviation:   dev,
		PatternType: config.PatternType(dev.MetricType, dir),
		Adverse:     adverse,
		Suppressed:  suppressed,
	}
}
