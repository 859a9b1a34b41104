package notify

import (
	"encoding/json"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/miyahealth/pattern-engine/internal/config"
	"github.com/miyahealth/pattern-engine/internal/pattern"
)

// Evidence is the structured record handed to the insight generator when a
// notification is created. It is a snapshot, not a live reference: the
// generator may render it at any later time without re-reading engine state.
type Evidence struct {
	UserID            uuid.UUID        `json:"user_id"`
	MetricType        string           `json:"metric_type"`
	PatternType       string           `json:"pattern_type"`
	CurrentLevel      int              `json:"current_level"`
	Severity          string           `json:"severity"`
	ActiveSince       string           `json:"active_since"`
	BaselineValue     float64          `json:"baseline_value"`
	RecentValue       float64          `json:"recent_value"`
	PercentChange     float64          `json:"percent_change"`
	AbsoluteChange    float64          `json:"absolute_change"`
	Message           string           `json:"message"`
	SupportingMetrics []MetricSnapshot `json:"supporting_metrics"`
}

// MetricSnapshot is one metric's state at notification time.
type MetricSnapshot struct {
	MetricType    string  `json:"metric_type"`
	BaselineValue float64 `json:"baseline_value"`
	RecentValue   float64 `json:"recent_value"`
	PercentChange float64 `json:"percent_change"`
}

// BuildEvidence assembles the evidence payload for a transition. supporting
// carries same-day deviations of the user's other metrics when the caller
// has them; the triggering metric is always included first.
func BuildEvidence(tr pattern.Transition, supporting []MetricSnapshot) ([]byte, error) {
	ep := tr.Episode
	dev := tr.Effective.Deviation

	snapshots := append([]MetricSnapshot{{
		MetricType:    dev.MetricType,
		BaselineValue: dev.BaselineValue,
		RecentValue:   dev.RecentValue,
		PercentChange: dev.PercentChange,
	}}, supporting...)

	ev := Evidence{
		UserID:            ep.UserID,
		MetricType:        ep.MetricType,
		PatternType:       ep.PatternType,
		CurrentLevel:      ep.CurrentLevel,
		Severity:          ep.Severity(),
		ActiveSince:       ep.ActiveSince.Format(time.DateOnly),
		BaselineValue:     dev.BaselineValue,
		RecentValue:       dev.RecentValue,
		PercentChange:     dev.PercentChange,
		AbsoluteChange:    dev.AbsoluteChange,
		Message:           buildMessage(ep, dev),
		SupportingMetrics: snapshots,
	}
	return json.Marshal(ev)
}

func buildMessage(ep *pattern.Episode, dev *pattern.DeviationResult) string {
	mc := config.MetricRegistry[ep.MetricType]
	verb := "down"
	if dev.PercentChange > 0 {
		verb = "up"
	}
	pct := int(math.Round(math.Abs(dev.PercentChange) * 100))
	return fmt.Sprintf("%s %s %d%% from baseline for %d days",
		mc.Name, verb, pct, ep.CurrentLevel)
}
