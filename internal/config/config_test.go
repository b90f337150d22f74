package config

import (
	"path/filepath"
	"testing"
	"time"
)

func clearPipelineEnv(t *testing.T) {
	t.Helper()
	keys := []string{
		"NIGHTSCOUT_URL", "NIGHTSCOUT_API_SECRET", "NIGHTSCOUT_API_TOKEN",
		"NIGHTSCOUT_USE_TOKEN", "SAVEKIT_STORE", "SAVEKIT_DB_PATH",
		"SAVEKIT_INTERVAL_SECONDS", "SAVEKIT_LOOKBACK_HOURS",
		"SAVEKIT_RETENTION_DAYS", "SAVEKIT_EXPORT_OFFSET_MIN",
		"SAVEKIT_MODEL_WINDOW", "SAVEKIT_INSULIN_HOURS", "SAVEKIT_CARB_HOURS",
		"TARGET_LOW", "TARGET_HIGH", "URGENT_LOW", "URGENT_HIGH",
		"ALERTS_ENABLED", "REPEAT_ALERT_MINUTES",
	}
	for _, key := range keys {
		t.Setenv(key, "")
	}
}

func TestLoad_Defaults(t *testing.T) {
	clearPipelineEnv(t)
	t.Setenv("NIGHTSCOUT_URL", "https://ns.example.com")
	t.Setenv("SAVEKIT_DB_PATH", filepath.Join(t.TempDir(), "test.db"))

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.NightscoutURL != "https://ns.example.com" {
		t.Errorf("NightscoutURL = %s", cfg.NightscoutURL)
	}
	if cfg.UseToken {
		t.Error("UseToken should default to false without a token")
	}
	if cfg.StoreBackend != "sqlite" {
		t.Errorf("StoreBackend = %s, want sqlite", cfg.StoreBackend)
	}
	if cfg.IntervalSeconds != 300 {
		t.Errorf("IntervalSeconds = %d, want 300", cfg.IntervalSeconds)
	}
	if cfg.LookbackHours != 6 {
		t.Errorf("LookbackHours = %d, want 6", cfg.LookbackHours)
	}
	if cfg.RetentionDays != 30 {
		t.Errorf("RetentionDays = %d, want 30", cfg.RetentionDays)
	}
	if cfg.ModelWindow != 6 {
		t.Errorf("ModelWindow = %d, want 6", cfg.ModelWindow)
	}
	if cfg.InsulinActiveHours != 4 {
		t.Errorf("InsulinActiveHours = %v, want 4", cfg.InsulinActiveHours)
	}
	if cfg.CarbActiveHours != 3 {
		t.Errorf("CarbActiveHours = %v, want 3", cfg.CarbActiveHours)
	}
	if cfg.TargetLow != 70 || cfg.TargetHigh != 180 {
		t.Errorf("target range = %d-%d, want 70-180", cfg.TargetLow, cfg.TargetHigh)
	}
	if cfg.UrgentLow != 55 || cfg.UrgentHigh != 250 {
		t.Errorf("urgent range = %d-%d, want 55-250", cfg.UrgentLow, cfg.UrgentHigh)
	}
	if cfg.AlertsEnabled {
		t.Error("AlertsEnabled should default to false")
	}
	if cfg.RepeatAlertMinutes != 15 {
		t.Errorf("RepeatAlertMinutes = %d, want 15", cfg.RepeatAlertMinutes)
	}
}

func TestLoad_Overrides(t *testing.T) {
	clearPipelineEnv(t)
	t.Setenv("NIGHTSCOUT_URL", "https://ns.example.com")
	t.Setenv("NIGHTSCOUT_API_SECRET", "mysecret")
	t.Setenv("SAVEKIT_DB_PATH", filepath.Join(t.TempDir(), "test.db"))
	t.Setenv("SAVEKIT_STORE", "memory")
	t.Setenv("SAVEKIT_INTERVAL_SECONDS", "60")
	t.Setenv("SAVEKIT_LOOKBACK_HOURS", "12")
	t.Setenv("SAVEKIT_INSULIN_HOURS", "5.5")
	t.Setenv("TARGET_LOW", "80")
	t.Setenv("ALERTS_ENABLED", "yes")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.APISecret != "mysecret" {
		t.Errorf("APISecret = %s", cfg.APISecret)
	}
	if cfg.StoreBackend != "memory" {
		t.Errorf("StoreBackend = %s, want memory", cfg.StoreBackend)
	}
	if cfg.IntervalSeconds != 60 {
		t.Errorf("IntervalSeconds = %d, want 60", cfg.IntervalSeconds)
	}
	if cfg.LookbackHours != 12 {
		t.Errorf("LookbackHours = %d, want 12", cfg.LookbackHours)
	}
	if cfg.InsulinActiveHours != 5.5 {
		t.Errorf("InsulinActiveHours = %v, want 5.5", cfg.InsulinActiveHours)
	}
	if cfg.TargetLow != 80 {
		t.Errorf("TargetLow = %d, want 80", cfg.TargetLow)
	}
	if !cfg.AlertsEnabled {
		t.Error("AlertsEnabled should be true")
	}
}

func TestLoad_UseTokenImpliedByToken(t *testing.T) {
	clearPipelineEnv(t)
	t.Setenv("NIGHTSCOUT_URL", "https://ns.example.com")
	t.Setenv("NIGHTSCOUT_API_TOKEN", "tok123")
	t.Setenv("SAVEKIT_DB_PATH", filepath.Join(t.TempDir(), "test.db"))

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if !cfg.UseToken {
		t.Error("UseToken should be implied by a configured token")
	}

	t.Setenv("NIGHTSCOUT_USE_TOKEN", "false")
	cfg, err = Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.UseToken {
		t.Error("NIGHTSCOUT_USE_TOKEN=false should override the implied value")
	}
}

func TestConfig_RequireNightscout(t *testing.T) {
	cfg := &Config{}
	if err := cfg.RequireNightscout(); err == nil {
		t.Error("RequireNightscout() should fail without a URL")
	}

	cfg.NightscoutURL = "https://ns.example.com"
	if err := cfg.RequireNightscout(); err != nil {
		t.Errorf("RequireNightscout() error = %v, want nil", err)
	}
}

func TestConfig_DurationHelpers(t *testing.T) {
	cfg := &Config{
		IntervalSeconds:    300,
		LookbackHours:      6,
		RepeatAlertMinutes: 15,
	}

	if cfg.Interval() != 5*time.Minute {
		t.Errorf("Interval() = %v, want 5m", cfg.Interval())
	}
	if cfg.Lookback() != 6*time.Hour {
		t.Errorf("Lookback() = %v, want 6h", cfg.Lookback())
	}
	if cfg.RepeatAlert() != 15*time.Minute {
		t.Errorf("RepeatAlert() = %v, want 15m", cfg.RepeatAlert())
	}
}

func TestConfig_ExportLocation(t *testing.T) {
	cfg := &Config{ExportOffsetMinutes: 120}

	at := time.Date(2025, 3, 14, 12, 0, 0, 0, time.UTC)
	got := at.In(cfg.ExportLocation()).Format("2006-01-02T15:04:05-07:00")
	if got != "2025-03-14T14:00:00+02:00" {
		t.Errorf("formatted time = %s, want 2025-03-14T14:00:00+02:00", got)
	}
}

func TestGetEnvBoolWithDefault(t *testing.T) {
	tests := []struct {
		name     string
		value    string
		fallback bool
		expected bool
	}{
		{"true", "true", false, true},
		{"one", "1", false, true},
		{"yes", "yes", false, true},
		{"false", "false", true, false},
		{"no", "no", true, false},
		{"unset uses fallback", "", true, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("SAVEKIT_TEST_BOOL", tt.value)
			result := getEnvBoolWithDefault("SAVEKIT_TEST_BOOL", tt.fallback)
			if result != tt.expected {
				t.Errorf("getEnvBoolWithDefault(%q) = %v, want %v", tt.value, result, tt.expected)
			}
		})
	}
}
