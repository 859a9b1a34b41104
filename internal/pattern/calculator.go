package pattern

import (
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/miyahealth/pattern-engine/internal/config"
)

// WindowStart returns the earliest day of observations needed to evaluate
// the given date: the full baseline window plus the recent window.
func WindowStart(date time.Time) time.Time {
	return Day(date).AddDate(0, 0, -(config.BaselineDays + config.RecentDays - 1))
}

// Compute evaluates the deviation of the recent window against the baseline
// window for one (user, metric, date).
//
// The recent window is the RecentDays calendar days ending at date. The
// baseline window is the up-to-BaselineDays calendar days strictly before
// the recent window. Nil values are excluded from both averages; windows
// under the minimum coverage, and a zero baseline, yield ErrInsufficientData.
func Compute(userID uuid.UUID, metricType string, date time.Time, obs []Observation) (*DeviationResult, error) {
	mc, ok := config.MetricRegistry[metricType]
	if !ok {
		return nil, fmt.Errorf("unknown metric type %q", metricType)
	}

	date = Day(date)
	recentStart := date.AddDate(0, 0, -(config.RecentDays - 1))
	baselineStart := recentStart.AddDate(0, 0, -config.BaselineDays)

	var baseSum, recentSum float64
	var baseCount, recentCount int
	for _, o := range obs {
		if o.Value == nil {
			continue
		}
		d := Day(o.Day)
		switch {
		case !d.Before(recentStart) && !d.After(date):
			recentSum += *o.Value
			recentCount++
		case !d.Before(baselineStart) && d.Before(recentStart):
			baseSum += *o.Value
			baseCount++
		}
	}

	if baseCount < config.MinBaselineCoverage || recentCount < config.MinRecentCoverage {
		return nil, ErrInsufficientData
	}

	baseline := baseSum / float64(baseCount)
	recent := recentSum / float64(recentCount)
	if baseline == 0 {
		return nil, ErrInsufficientData
	}

	pct := (recent - baseline) / baseline
	result := &DeviationResult{
		UserID:         userID,
		MetricType:     metricType,
		Date:           date,
		BaselineValue:  baseline,
		RecentValue:    recent,
		PercentChange:  pct,
		AbsoluteChange: recent - baseline,
		Direction:      classify(pct, mc.PercentThreshold),
		DaysInBaseline: baseCount,
		DaysInRecent:   recentCount,
	}
	return result, nil
}

// classify maps a percent change to a direction, with changes below the
// metric's significance threshold collapsing to none.
func classify(pct, threshold float64) config.Direction {
	if math.Abs(pct) < threshold {
		return config.DirectionNone
	}
	if pct < 0 {
		return config.DirectionDrop
	}
	return config.DirectionRise
}
