package config

import (
	"testing"
	"time"
)

func TestLoadRequiresDatabaseURL(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	t.Setenv("SUPABASE_DB_URL", "")
	if _, err := Load(); err == nil {
		t.Error("Load succeeded without a database URL")
	}
}

func TestLoadDefaults(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/miya")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.APIPort != 8000 {
		t.Errorf("APIPort = %d, want 8000", cfg.APIPort)
	}
	if cfg.DispatchInterval != 30*time.Second {
		t.Errorf("DispatchInterval = %v, want 30s", cfg.DispatchInterval)
	}
	if cfg.TaskMaxAge != 24*time.Hour {
		t.Errorf("TaskMaxAge = %v, want 24h", cfg.TaskMaxAge)
	}
	if cfg.DefaultQuietStartHour != 22 || cfg.DefaultQuietEndHour != 7 {
		t.Errorf("quiet hours = %d-%d, want 22-7", cfg.DefaultQuietStartHour, cfg.DefaultQuietEndHour)
	}
	if cfg.DefaultQuietMinLevel != SeverityCritical {
		t.Errorf("DefaultQuietMinLevel = %s, want critical", cfg.DefaultQuietMinLevel)
	}
	if cfg.SweepWorkers != 4 {
		t.Errorf("SweepWorkers = %d, want 4", cfg.SweepWorkers)
	}
	if !cfg.CacheEnabled {
		t.Error("CacheEnabled = false, want true by default")
	}
	if cfg.IsProduction() {
		t.Error("IsProduction = true for default environment")
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("SUPABASE_DB_URL", "postgres://supabase/miya")
	t.Setenv("API_PORT", "9000")
	t.Setenv("ENVIRONMENT", "production")
	t.Setenv("TASK_MAX_AGE_HOURS", "6")
	t.Setenv("CORS_ALLOW_ORIGINS", "https://app.example.com, https://admin.example.com")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.DatabaseURL != "postgres://supabase/miya" {
		t.Errorf("DatabaseURL = %s", cfg.DatabaseURL)
	}
	if cfg.APIPort != 9000 {
		t.Errorf("APIPort = %d, want 9000", cfg.APIPort)
	}
	if !cfg.IsProduction() {
		t.Error("IsProduction = false, want true")
	}
	if cfg.TaskMaxAge != 6*time.Hour {
		t.Errorf("TaskMaxAge = %v, want 6h", cfg.TaskMaxAge)
	}
	if len(cfg.CORSAllowOrigins) != 2 || cfg.CORSAllowOrigins[1] != "https://admin.example.com" {
		t.Errorf("CORSAllowOrigins = %v", cfg.CORSAllowOrigins)
	}
}

func TestMetricRegistry(t *testing.T) {
	tests := []struct {
		metric    string
		threshold float64
		dirs      []Direction
		recovery  bool
	}{
		{"steps", 0.20, []Direction{DirectionDrop}, false},
		{"sleep_minutes", 0.20, []Direction{DirectionDrop, DirectionRise}, false},
		{"hrv_ms", 0.15, []Direction{DirectionDrop}, true},
		{"resting_hr", 0.10, []Direction{DirectionRise}, true},
	}

	for _, tt := range tests {
		t.Run(tt.metric, func(t *testing.T) {
			mc, ok := MetricRegistry[tt.metric]
			if !ok {
				t.Fatalf("metric %s missing from registry", tt.metric)
			}
			if mc.PercentThreshold != tt.threshold {
				t.Errorf("PercentThreshold = %f, want %f", mc.PercentThreshold, tt.threshold)
			}
			if len(mc.AdverseDirections) != len(tt.dirs) {
				t.Fatalf("AdverseDirections = %v, want %v", mc.AdverseDirections, tt.dirs)
			}
			for i, d := range tt.dirs {
				if mc.AdverseDirections[i] != d {
					t.Errorf("AdverseDirections[%d] = %s, want %s", i, mc.AdverseDirections[i], d)
				}
			}
			if mc.RecoveryMetric != tt.recovery {
				t.Errorf("RecoveryMetric = %v, want %v", mc.RecoveryMetric, tt.recovery)
			}
		})
	}

	if IsValidMetricType("blood_oxygen") {
		t.Error("blood_oxygen should not be a valid metric type")
	}
}

func TestSeverityForLevel(t *testing.T) {
	tests := []struct {
		level int
		want  string
	}{
		{0, SeverityNone}, {2, SeverityNone},
		{3, SeverityWatch}, {6, SeverityWatch},
		{7, SeverityAttention}, {13, SeverityAttention},
		{14, SeverityCritical}, {21, SeverityCritical},
	}
	for _, tt := range tests {
		if got := SeverityForLevel(tt.level); got != tt.want {
			t.Errorf("SeverityForLevel(%d) = %s, want %s", tt.level, got, tt.want)
		}
	}
}

func TestSeverityRankOrdering(t *testing.T) {
	if !(SeverityRank(SeverityNone) < SeverityRank(SeverityWatch) &&
		SeverityRank(SeverityWatch) < SeverityRank(SeverityAttention) &&
		SeverityRank(SeverityAttention) < SeverityRank(SeverityCritical)) {
		t.Error("severity ranks are not strictly increasing")
	}
}

func TestPatternType(t *testing.T) {
	if got := PatternType("steps", DirectionDrop); got != "steps_drop" {
		t.Errorf("PatternType = %s, want steps_drop", got)
	}
	if got := PatternType("sleep_minutes", DirectionRise); got != "sleep_minutes_rise" {
		t.Errorf("PatternType = %s, want sleep_minutes_rise", got)
	}
}
